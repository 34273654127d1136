package invitations

import (
	"bytes"
	htmltemplate "html/template"
	texttemplate "text/template"

	"projecthub/internal/platform/mail"
)

type inviteEmailData struct {
	OrgName     string
	InviterName string
	Role        string
	AcceptURL   string
	ExpiresOn   string
}

var inviteHTML = htmltemplate.Must(htmltemplate.New("invite").Parse(`<!DOCTYPE html>
<html><body style="font-family:sans-serif">
<h2>You're invited to join {{.OrgName}}</h2>
<p>{{.InviterName}} invited you to join <strong>{{.OrgName}}</strong> as {{.Role}}.</p>
<p><a href="{{.AcceptURL}}" style="background:#4f46e5;color:#fff;padding:10px 18px;border-radius:6px;text-decoration:none">Accept invitation</a></p>
<p style="color:#6b7280">This invitation expires on {{.ExpiresOn}}.</p>
</body></html>`))

var inviteText = texttemplate.Must(texttemplate.New("invite").Parse(`{{.InviterName}} invited you to join {{.OrgName}} as {{.Role}}.

Accept the invitation: {{.AcceptURL}}

This invitation expires on {{.ExpiresOn}}.
`))

func renderInviteEmail(to string, data inviteEmailData) (mail.Message, error) {
	var html, text bytes.Buffer
	if err := inviteHTML.Execute(&html, data); err != nil {
		return mail.Message{}, err
	}
	if err := inviteText.Execute(&text, data); err != nil {
		return mail.Message{}, err
	}
	return mail.Message{
		To:      to,
		Subject: "You're invited to join " + data.OrgName,
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}
