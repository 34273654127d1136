package notifications

import (
	"bytes"
	_ "embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var templatesYAML []byte

const defaultTemplate = "DEFAULT"

// Template is the email presentation of one notification type.
type Template struct {
	Subject string `yaml:"subject"`
	Icon    string `yaml:"icon"`
	Color   string `yaml:"color"`
}

type TemplateTable map[string]Template

func LoadTemplates(data []byte) (TemplateTable, error) {
	var table TemplateTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	if _, ok := table[defaultTemplate]; !ok {
		return nil, fmt.Errorf("email templates: missing %s entry", defaultTemplate)
	}
	return table, nil
}

func mustLoadTemplates() TemplateTable {
	table, err := LoadTemplates(templatesYAML)
	if err != nil {
		panic(err)
	}
	return table
}

// For returns the template for typ, or DEFAULT.
func (t TemplateTable) For(typ string) Template {
	if tpl, ok := t[typ]; ok {
		return tpl
	}
	return t[defaultTemplate]
}

type emailItem struct {
	Title   string
	Message string
	Link    string
}

type emailData struct {
	Template
	AppName string
	Title   string
	Message string
	Link    string
	Items   []emailItem
}

var emailHTML = htmltemplate.Must(htmltemplate.New("email").Parse(`<!DOCTYPE html>
<html><body style="margin:0;font-family:-apple-system,Segoe UI,sans-serif;background:#f8fafc">
<table width="100%" cellpadding="0" cellspacing="0"><tr><td align="center" style="padding:24px">
<table width="560" cellpadding="0" cellspacing="0" style="background:#fff;border-radius:8px;border-top:4px solid {{.Color}}">
<tr><td style="padding:24px">
<h2 style="margin:0 0 12px;color:{{.Color}}">{{.Icon}} {{.Title}}</h2>
{{if .Message}}<p style="color:#334155">{{.Message}}</p>{{end}}
{{if .Items}}<ul style="padding-left:18px;color:#334155">{{range .Items}}<li style="margin-bottom:8px"><strong>{{.Title}}</strong>{{if .Message}}<br>{{.Message}}{{end}}{{if .Link}}<br><a href="{{.Link}}">Open</a>{{end}}</li>{{end}}</ul>{{end}}
{{if .Link}}<p><a href="{{.Link}}" style="background:{{.Color}};color:#fff;padding:10px 18px;border-radius:6px;text-decoration:none">View in {{.AppName}}</a></p>{{end}}
</td></tr></table>
<p style="color:#94a3b8;font-size:12px">Sent by {{.AppName}}</p>
</td></tr></table>
</body></html>`))

var emailText = texttemplate.Must(texttemplate.New("email").Parse(`{{.Title}}
{{if .Message}}
{{.Message}}
{{end}}{{range .Items}}
- {{.Title}}{{if .Message}}: {{.Message}}{{end}}{{if .Link}} ({{.Link}}){{end}}{{end}}
{{if .Link}}
View in {{.AppName}}: {{.Link}}
{{end}}`))

func renderEmail(data emailData) (html, text string, err error) {
	var h, t bytes.Buffer
	if err := emailHTML.Execute(&h, data); err != nil {
		return "", "", err
	}
	if err := emailText.Execute(&t, data); err != nil {
		return "", "", err
	}
	return h.String(), t.String(), nil
}
