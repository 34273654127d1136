package middleware

import (
	"context"
	"net/http"
	"time"

	apiContext "projecthub/internal/api/context"
	"projecthub/internal/pkg/errors"
	"projecthub/internal/pkg/logger"
)

// UsageRecorder counts one API call against an organization's monthly quota.
// It reports false once the quota for period is spent.
type UsageRecorder interface {
	RecordAPICall(ctx context.Context, orgID, period string) (bool, error)
}

// Meter enforces max_api_calls_per_month on tenant routes.
type Meter struct {
	usage UsageRecorder
	now   func() time.Time
}

func NewMeter(usage UsageRecorder) *Meter {
	return &Meter{usage: usage, now: time.Now}
}

func (m *Meter) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		org, ok := apiContext.OrganizationFrom(r.Context())
		if !ok {
			next(w, r)
			return
		}

		period := m.now().UTC().Format("2006-01")
		allowed, err := m.usage.RecordAPICall(r.Context(), org.ID, period)
		if err != nil {
			// Fail open on store errors.
			l := logger.Component("meter")
			l.Error().Err(err).Str("org_id", org.ID).Msg("Failed to record API call")
			next(w, r)
			return
		}
		if !allowed {
			errors.WriteError(w, http.StatusTooManyRequests, errors.ErrCodeQuotaExceeded, "Monthly API call quota exceeded", nil)
			return
		}
		next(w, r)
	}
}
