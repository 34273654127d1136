// Package notifications delivers user notifications over in-app, email,
// push and Slack channels.
package notifications

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	apperr "projecthub/internal/pkg/errors"
	"projecthub/internal/pkg/logger"
	"projecthub/internal/platform/mail"
	"projecthub/internal/platform/models"
	"projecthub/internal/platform/repositories"
)

const (
	TypeTaskAssigned  = "TASK_ASSIGNED"
	TypeTaskDueSoon   = "TASK_DUE_SOON"
	TypeTaskCompleted = "TASK_COMPLETED"
	TypeMention       = "MENTION"
	TypeDigest        = "DIGEST"

	digestLimit = 20
)

type Request struct {
	UserID         string                 `json:"user_id"`
	OrganizationID string                 `json:"organization_id,omitempty"`
	Type           string                 `json:"type"`
	Title          string                 `json:"title"`
	Message        string                 `json:"message"`
	Link           string                 `json:"link,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	Channels       []Channel              `json:"channels,omitempty"`
}

type ChannelResult struct {
	Channel Channel `json:"channel"`
	Success bool    `json:"success"`
	Error   string  `json:"error,omitempty"`
}

type Options struct {
	AppName      string
	AppURL       string
	SlackTimeout time.Duration
}

type Service struct {
	repo      *repositories.NotificationRepository
	users     *repositories.UserRepository
	mailer    mail.Mailer
	templates TemplateTable
	handlers  map[Channel]ChannelHandler
	opts      Options
	now       func() time.Time
	log       zerolog.Logger
}

func NewService(db *sql.DB, mailer mail.Mailer, opts Options) *Service {
	if opts.AppName == "" {
		opts.AppName = "ProjectHub"
	}
	if opts.SlackTimeout <= 0 {
		opts.SlackTimeout = 10 * time.Second
	}

	s := &Service{
		repo:      repositories.NewNotificationRepository(db),
		users:     repositories.NewUserRepository(db),
		mailer:    mailer,
		templates: mustLoadTemplates(),
		opts:      opts,
		now:       time.Now,
		log:       logger.Component("notifications"),
	}
	s.handlers = map[Channel]ChannelHandler{
		ChannelInApp: &inAppChannel{repo: s.repo, now: func() time.Time { return s.now() }},
		ChannelEmail: &emailChannel{users: s.users, mailer: mailer, templates: s.templates, appName: opts.AppName, appURL: opts.AppURL},
		ChannelPush:  pushChannel{},
		ChannelSlack: &slackChannel{
			orgs:   repositories.NewOrganizationRepository(db),
			client: &http.Client{Timeout: opts.SlackTimeout},
			appURL: opts.AppURL,
		},
	}
	return s
}

// Register installs or replaces the handler for a channel.
func (s *Service) Register(ch Channel, h ChannelHandler) {
	s.handlers[ch] = h
}

// Send delivers req over each requested channel concurrently. Channel
// failures are reported in the results, never as an error.
func (s *Service) Send(ctx context.Context, req Request) ([]ChannelResult, error) {
	if req.UserID == "" {
		return nil, apperr.Validation("user_id is required")
	}
	if req.Type == "" {
		return nil, apperr.Validation("type is required")
	}
	channels := req.Channels
	if len(channels) == 0 {
		channels = []Channel{ChannelInApp}
	}

	results := make([]ChannelResult, len(channels))
	var g errgroup.Group
	for i, ch := range channels {
		results[i].Channel = ch
		handler, ok := s.handlers[ch]
		if !ok {
			results[i].Error = fmt.Sprintf("unknown channel %q", ch)
			continue
		}
		g.Go(func() error {
			if err := handler.Deliver(ctx, req); err != nil {
				results[i].Error = err.Error()
				s.log.Warn().Err(err).Str("channel", string(ch)).Str("user_id", req.UserID).
					Str("type", req.Type).Msg("Notification channel failed")
				return nil
			}
			results[i].Success = true
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*models.Notification, error) {
	if limit > 100 {
		limit = 100
	}
	list, err := s.repo.ListByUser(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, apperr.Internal(err, "Failed to list notifications")
	}
	if list == nil {
		list = []*models.Notification{}
	}
	return list, nil
}

func (s *Service) SetRead(ctx context.Context, userID, notificationID string, read bool) error {
	ok, err := s.repo.SetRead(ctx, userID, notificationID, read, s.now().Unix())
	if err != nil {
		return apperr.Internal(err, "Failed to update notification")
	}
	if !ok {
		return apperr.NotFound("Notification not found")
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID, s.now().Unix())
	if err != nil {
		return 0, apperr.Internal(err, "Failed to update notifications")
	}
	return n, nil
}

// DigestRecipients lists users with unread notifications created at or after since.
func (s *Service) DigestRecipients(ctx context.Context, since time.Time) ([]string, error) {
	return s.repo.UsersWithUnreadSince(ctx, since.Unix())
}

// SendDigest emails one summary of the user's unread notifications created
// at or after since. It returns how many items were listed; zero means no
// email was sent.
func (s *Service) SendDigest(ctx context.Context, userID string, since time.Time) (int, error) {
	items, err := s.repo.ListUnreadSince(ctx, userID, since.Unix(), digestLimit)
	if err != nil {
		return 0, fmt.Errorf("load unread notifications: %w", err)
	}
	if len(items) == 0 {
		return 0, nil
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return 0, fmt.Errorf("user %s not found", userID)
	}

	data := emailData{
		Template: s.templates.For(TypeDigest),
		AppName:  s.opts.AppName,
		Title:    fmt.Sprintf("You have %d unread notification%s", len(items), plural(len(items))),
		Link:     absoluteLink(s.opts.AppURL, "/notifications"),
	}
	for _, n := range items {
		data.Items = append(data.Items, emailItem{Title: n.Title, Message: n.Message, Link: absoluteLink(s.opts.AppURL, n.Link)})
	}
	html, text, err := renderEmail(data)
	if err != nil {
		return 0, fmt.Errorf("render digest: %w", err)
	}
	if err := s.mailer.Send(ctx, mail.Message{To: user.Email, Subject: data.Subject, HTML: html, Text: text}); err != nil {
		return 0, err
	}
	return len(items), nil
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
