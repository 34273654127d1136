package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"projecthub/internal/platform/database/dbtest"
)

func TestLogger_LogAndList(t *testing.T) {
	l := NewLogger(dbtest.New(t))
	ctx := WithRequestInfo(context.Background(), RequestInfo{UserID: "usr_1", IPAddress: "10.0.0.1", UserAgent: "curl/8.4.0"})

	l.Log(ctx, "org_1", "member.removed", "member", "usr_2", map[string]interface{}{"role": "MEMBER"})
	l.Log(context.Background(), "org_2", "webhook.created", "webhook", "wh_1", nil)

	entries, err := l.List(context.Background(), "org_1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "usr_1", entries[0].UserID)
	assert.Equal(t, "10.0.0.1", entries[0].IPAddress)
	assert.Equal(t, "MEMBER", entries[0].Metadata["role"])
	assert.Equal(t, "curl on Unknown", entries[0].Client)
}
