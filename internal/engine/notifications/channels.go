package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"projecthub/internal/platform/mail"
	"projecthub/internal/platform/models"
	"projecthub/internal/platform/repositories"
)

type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelSlack Channel = "slack"
)

var ErrPushNotImplemented = errors.New("push notifications not implemented")

// ChannelHandler delivers one notification over one channel.
type ChannelHandler interface {
	Deliver(ctx context.Context, req Request) error
}

type ChannelFunc func(ctx context.Context, req Request) error

func (f ChannelFunc) Deliver(ctx context.Context, req Request) error { return f(ctx, req) }

type inAppChannel struct {
	repo *repositories.NotificationRepository
	now  func() time.Time
}

func (c *inAppChannel) Deliver(ctx context.Context, req Request) error {
	now := c.now().Unix()
	return c.repo.Create(ctx, &models.Notification{
		ID:             "ntf_" + uuid.NewString(),
		UserID:         req.UserID,
		OrganizationID: req.OrganizationID,
		Type:           req.Type,
		Title:          req.Title,
		Message:        req.Message,
		Link:           req.Link,
		Metadata:       req.Metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
}

type emailChannel struct {
	users     *repositories.UserRepository
	mailer    mail.Mailer
	templates TemplateTable
	appName   string
	appURL    string
}

func (c *emailChannel) Deliver(ctx context.Context, req Request) error {
	user, err := c.users.GetByID(ctx, req.UserID)
	if err != nil {
		return fmt.Errorf("load recipient: %w", err)
	}
	if user == nil || user.Email == "" {
		return fmt.Errorf("user %s has no email address", req.UserID)
	}

	tpl := c.templates.For(req.Type)
	html, text, err := renderEmail(emailData{
		Template: tpl,
		AppName:  c.appName,
		Title:    req.Title,
		Message:  req.Message,
		Link:     absoluteLink(c.appURL, req.Link),
	})
	if err != nil {
		return fmt.Errorf("render email: %w", err)
	}
	return c.mailer.Send(ctx, mail.Message{To: user.Email, Subject: tpl.Subject, HTML: html, Text: text})
}

type pushChannel struct{}

func (pushChannel) Deliver(context.Context, Request) error { return ErrPushNotImplemented }

type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackChannel struct {
	orgs   *repositories.OrganizationRepository
	client *http.Client
	appURL string
}

func (c *slackChannel) Deliver(ctx context.Context, req Request) error {
	if req.OrganizationID == "" {
		return errors.New("slack requires an organization")
	}
	org, err := c.orgs.GetByID(ctx, req.OrganizationID)
	if err != nil {
		return fmt.Errorf("load organization: %w", err)
	}
	if org == nil || org.SlackWebhookURL == "" {
		return errors.New("organization has no slack webhook configured")
	}

	body, err := json.Marshal(buildSlackMessage(req, absoluteLink(c.appURL, req.Link)))
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, org.SlackWebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("slack request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func buildSlackMessage(req Request, link string) slackMessage {
	text := "*" + req.Title + "*"
	if req.Message != "" {
		text += "\n" + req.Message
	}
	msg := slackMessage{
		Text:   req.Title,
		Blocks: []slackBlock{{Type: "section", Text: &slackText{Type: "mrkdwn", Text: text}}},
	}
	if link != "" {
		msg.Blocks = append(msg.Blocks, slackBlock{
			Type:     "context",
			Elements: []slackText{{Type: "mrkdwn", Text: "<" + link + "|Open in ProjectHub>"}},
		})
	}
	return msg
}

// absoluteLink prefixes app-relative links with the app URL.
func absoluteLink(appURL, link string) string {
	if link == "" || strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	return strings.TrimRight(appURL, "/") + "/" + strings.TrimLeft(link, "/")
}
