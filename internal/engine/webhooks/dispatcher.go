package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"projecthub/internal/pkg/logger"
	"projecthub/internal/platform/config"
	"projecthub/internal/platform/models"
)

const (
	HeaderSignature = "X-ProjectHub-Signature"
	HeaderEvent     = "X-ProjectHub-Event"
	HeaderDelivery  = "X-ProjectHub-Delivery"

	defaultTimeout   = 10 * time.Second
	defaultThreshold = 10
)

// Store is the persistence the dispatcher needs.
type Store interface {
	ListActiveForEvent(ctx context.Context, orgID, eventType string) ([]*models.Webhook, error)
	RecordSuccess(ctx context.Context, id string, now int64) error
	RecordFailure(ctx context.Context, id string, now int64, lastError string, threshold int) (int, bool, error)
}

type Result struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type Dispatcher struct {
	store     Store
	client    *http.Client
	threshold int
	now       func() time.Time
	stats     *Stats
	log       zerolog.Logger
}

func NewDispatcher(store Store, cfg config.WebhooksConfig) *Dispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	threshold := cfg.FailureThreshold
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	return &Dispatcher{
		store:     store,
		client:    &http.Client{Timeout: timeout},
		threshold: threshold,
		now:       time.Now,
		stats:     &Stats{},
		log:       logger.Component("webhooks"),
	}
}

// WithClient replaces the HTTP client.
func (d *Dispatcher) WithClient(client *http.Client) *Dispatcher {
	d.client = client
	return d
}

func (d *Dispatcher) Stats() *Stats {
	return d.stats
}

// Dispatch delivers eventType to every active webhook of orgID subscribed to
// it and waits for all deliveries. Delivery failures are counted in the
// result, not returned.
func (d *Dispatcher) Dispatch(ctx context.Context, orgID, eventType string, data interface{}) (Result, error) {
	hooks, err := d.store.ListActiveForEvent(ctx, orgID, eventType)
	if err != nil {
		return Result{}, fmt.Errorf("load webhooks for %s: %w", eventType, err)
	}
	if len(hooks) == 0 {
		return Result{}, nil
	}

	body, err := d.encode(eventType, data)
	if err != nil {
		return Result{}, err
	}
	return d.deliverAll(ctx, hooks, eventType, body), nil
}

// Deliver sends one event to a single webhook through the regular delivery
// path, regardless of its subscriptions.
func (d *Dispatcher) Deliver(ctx context.Context, hook *models.Webhook, eventType string, data interface{}) (Result, error) {
	body, err := d.encode(eventType, data)
	if err != nil {
		return Result{}, err
	}
	return d.deliverAll(ctx, []*models.Webhook{hook}, eventType, body), nil
}

func (d *Dispatcher) encode(eventType string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return json.Marshal(models.WebhookEvent{
		Event:     eventType,
		Timestamp: d.now().UTC().Format(time.RFC3339),
		Data:      raw,
	})
}

func (d *Dispatcher) deliverAll(ctx context.Context, hooks []*models.Webhook, eventType string, body []byte) Result {
	delivered := make([]bool, len(hooks))
	var g errgroup.Group
	for i, hook := range hooks {
		g.Go(func() error {
			delivered[i] = d.deliver(ctx, hook, eventType, body)
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Attempted: len(hooks)}
	for _, ok := range delivered {
		if ok {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}
	return res
}

func (d *Dispatcher) deliver(ctx context.Context, hook *models.Webhook, eventType string, body []byte) bool {
	d.stats.attempted.Add(1)
	deliveryID := "dlv_" + uuid.New().String()

	errStr := d.post(ctx, hook, eventType, deliveryID, body)
	now := d.now().Unix()

	if errStr == "" {
		d.stats.succeeded.Add(1)
		if err := d.store.RecordSuccess(ctx, hook.ID, now); err != nil {
			d.log.Error().Err(err).Str("webhook_id", hook.ID).Msg("Failed to record webhook success")
		}
		return true
	}

	d.stats.failed.Add(1)
	count, active, err := d.store.RecordFailure(ctx, hook.ID, now, errStr, d.threshold)
	if err != nil {
		d.log.Error().Err(err).Str("webhook_id", hook.ID).Msg("Failed to record webhook failure")
		return false
	}

	ev := d.log.Warn().Str("webhook_id", hook.ID).Str("delivery_id", deliveryID).
		Str("event", eventType).Str("error", errStr).Int("failure_count", count)
	if !active && hook.Active {
		d.stats.disabled.Add(1)
		ev.Msg("Webhook disabled after repeated failures")
	} else {
		ev.Msg("Webhook delivery failed")
	}
	return false
}

// post returns an empty string on a 2xx response and a description of the
// failure otherwise.
func (d *Dispatcher) post(ctx context.Context, hook *models.Webhook, eventType, deliveryID string, body []byte) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return err.Error()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, Sign(hook.Secret, body))
	req.Header.Set(HeaderEvent, eventType)
	req.Header.Set(HeaderDelivery, deliveryID)

	resp, err := d.client.Do(req)
	if err != nil {
		return err.Error()
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return ""
}
