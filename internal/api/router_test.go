package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projecthub/internal/app"
	"projecthub/internal/platform/config"
	"projecthub/internal/platform/database/dbtest"
	"projecthub/internal/platform/mail"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
	mailer  *mail.Recorder
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{
		App:       config.AppConfig{Name: "ProjectHub", URL: "https://app.example.com", Environment: "test"},
		JWT:       config.JWTConfig{Secret: "test-secret", Issuer: "projecthub", AccessTokenTTL: time.Hour, RefreshTokenTTL: time.Hour},
		CORS:      config.CORSConfig{AllowedOrigins: []string{"https://app.example.com"}},
		Webhooks:  config.WebhooksConfig{Timeout: 5 * time.Second, FailureThreshold: 10},
		Identity:  config.IdentityConfig{HookSecret: "hook-secret", AutoVerifyDomains: []string{"example.com"}},
		RateLimit: config.RateLimitConfig{},
	}
	mailer := &mail.Recorder{}
	svc := app.New(cfg, dbtest.New(t), app.Options{Mailer: mailer})
	return &testServer{t: t, handler: NewHandler(cfg, NewDependencies(cfg, svc)), mailer: mailer}
}

type apiResponse struct {
	Status  int
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
}

func (s *testServer) do(method, path, token string, body interface{}) apiResponse {
	s.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.serve(req)
}

func (s *testServer) serve(req *http.Request) apiResponse {
	s.t.Helper()
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	out := apiResponse{Status: rr.Code}
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	}
	return out
}

func (r apiResponse) decode(t *testing.T, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Data, v))
}

func (s *testServer) signup(email, name string) (token, userID string) {
	s.t.Helper()
	res := s.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email": email, "password": "correct-horse", "full_name": name,
	})
	require.Equal(s.t, http.StatusCreated, res.Status, res.Message)
	var out struct {
		AccessToken string `json:"access_token"`
		User        struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	res.decode(s.t, &out)
	return out.AccessToken, out.User.ID
}

var tokenPattern = regexp.MustCompile(`token=([0-9a-f]{64})`)

func TestRouter_InvitationFlow(t *testing.T) {
	s := newTestServer(t)
	owner, _ := s.signup("owner@example.com", "Olivia Owner")
	bob, bobID := s.signup("bob@example.com", "Bob")

	res := s.do(http.MethodPost, "/api/v1/organizations", owner, map[string]string{"name": "Acme"})
	require.Equal(t, http.StatusCreated, res.Status, res.Message)
	var org struct {
		ID string `json:"id"`
	}
	res.decode(t, &org)
	orgPath := "/api/v1/organizations/" + org.ID

	res = s.do(http.MethodGet, orgPath, bob, nil)
	assert.Equal(t, http.StatusForbidden, res.Status)

	res = s.do(http.MethodPost, orgPath+"/invitations", owner, map[string]string{"email": "BOB@example.com", "role": "member"})
	require.Equal(t, http.StatusCreated, res.Status, res.Message)

	res = s.do(http.MethodPost, orgPath+"/invitations", owner, map[string]string{"email": "bob@example.com", "role": "MEMBER"})
	assert.Equal(t, http.StatusConflict, res.Status, "a pending invitation already exists")

	msgs := s.mailer.Messages()
	require.Len(t, msgs, 1)
	m := tokenPattern.FindStringSubmatch(msgs[0].Text)
	require.Len(t, m, 2, msgs[0].Text)

	res = s.do(http.MethodPost, "/api/v1/invitations/accept", owner, map[string]string{"token": m[1]})
	assert.Equal(t, http.StatusForbidden, res.Status, "email must match the invitation")

	res = s.do(http.MethodPost, "/api/v1/invitations/accept", bob, map[string]string{"token": m[1]})
	require.Equal(t, http.StatusOK, res.Status, res.Message)

	res = s.do(http.MethodPost, "/api/v1/invitations/accept", bob, map[string]string{"token": m[1]})
	assert.Equal(t, http.StatusConflict, res.Status)

	res = s.do(http.MethodGet, orgPath, bob, nil)
	require.Equal(t, http.StatusOK, res.Status)
	var got struct {
		Role  string `json:"role"`
		Usage struct {
			CurrentUsers int `json:"current_users"`
		} `json:"usage"`
	}
	res.decode(t, &got)
	assert.Equal(t, "MEMBER", got.Role)
	assert.Equal(t, 2, got.Usage.CurrentUsers)

	res = s.do(http.MethodPost, orgPath+"/invitations", bob, map[string]string{"email": "carol@example.com", "role": "VIEWER"})
	assert.Equal(t, http.StatusForbidden, res.Status, "members cannot invite")

	dave, _ := s.signup("dave@unverified.test", "Dave")
	res = s.do(http.MethodPost, orgPath+"/invitations", owner, map[string]string{"email": "dave@unverified.test", "role": "MEMBER"})
	require.Equal(t, http.StatusCreated, res.Status, res.Message)
	msgs = s.mailer.Messages()
	last := msgs[len(msgs)-1]
	require.Equal(t, "dave@unverified.test", last.To)
	m = tokenPattern.FindStringSubmatch(last.Text)
	require.Len(t, m, 2, last.Text)
	res = s.do(http.MethodPost, "/api/v1/invitations/accept", dave, map[string]string{"token": m[1]})
	assert.Equal(t, http.StatusForbidden, res.Status, "unverified email cannot redeem")

	res = s.do(http.MethodGet, orgPath+"/members", bob, nil)
	require.Equal(t, http.StatusOK, res.Status)
	var members []map[string]interface{}
	res.decode(t, &members)
	assert.Len(t, members, 2)

	res = s.do(http.MethodDelete, orgPath+"/members/"+bobID, owner, nil)
	require.Equal(t, http.StatusOK, res.Status, res.Message)
	res = s.do(http.MethodGet, orgPath, bob, nil)
	assert.Equal(t, http.StatusForbidden, res.Status)
}

func TestRouter_TasksWebhooksAndImport(t *testing.T) {
	s := newTestServer(t)
	owner, _ := s.signup("owner@example.com", "Olivia Owner")

	var received atomic.Int32
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-ProjectHub-Event") == "task.created" {
			received.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer receiver.Close()

	res := s.do(http.MethodPost, "/api/v1/organizations", owner, map[string]string{"name": "Acme"})
	require.Equal(t, http.StatusCreated, res.Status, res.Message)
	var org struct {
		ID string `json:"id"`
	}
	res.decode(t, &org)
	orgPath := "/api/v1/organizations/" + org.ID

	res = s.do(http.MethodPost, orgPath+"/webhooks", owner, map[string]interface{}{
		"url": receiver.URL, "events": []string{"task.created"},
	})
	require.Equal(t, http.StatusCreated, res.Status, res.Message)
	var hook struct {
		ID     string `json:"id"`
		Secret string `json:"secret"`
	}
	res.decode(t, &hook)
	assert.True(t, strings.HasPrefix(hook.Secret, "whsec_"))

	res = s.do(http.MethodGet, orgPath+"/webhooks", owner, nil)
	require.Equal(t, http.StatusOK, res.Status)
	assert.NotContains(t, string(res.Data), hook.Secret, "list never reveals secrets")

	res = s.do(http.MethodPost, orgPath+"/projects", owner, map[string]string{"name": "Launch"})
	require.Equal(t, http.StatusCreated, res.Status, res.Message)
	var project struct {
		ID string `json:"id"`
	}
	res.decode(t, &project)

	res = s.do(http.MethodPost, orgPath+"/projects/"+project.ID+"/tasks", owner, map[string]string{"title": "Write launch post"})
	require.Equal(t, http.StatusCreated, res.Status, res.Message)
	var task struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	res.decode(t, &task)
	assert.EqualValues(t, 1, received.Load())

	res = s.do(http.MethodPatch, orgPath+"/tasks/"+task.ID, owner, map[string]string{"status": "DONE"})
	require.Equal(t, http.StatusOK, res.Status, res.Message)
	res.decode(t, &task)
	assert.Equal(t, "DONE", task.Status)

	res = s.do(http.MethodPost, orgPath+"/events", owner, map[string]interface{}{"event": "task.created", "data": map[string]string{"id": "manual"}})
	require.Equal(t, http.StatusOK, res.Status, res.Message)
	var dispatched struct {
		Attempted int `json:"attempted"`
		Succeeded int `json:"succeeded"`
	}
	res.decode(t, &dispatched)
	assert.Equal(t, 1, dispatched.Attempted)
	assert.Equal(t, 1, dispatched.Succeeded)

	res = s.do(http.MethodPost, orgPath+"/events", owner, map[string]string{"event": "nope"})
	assert.Equal(t, http.StatusBadRequest, res.Status)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "tasks.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("Title,Priority\nOne,HIGH\n,LOW\nThree,\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, orgPath+"/projects/"+project.ID+"/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+owner)
	res = s.serve(req)
	require.Equal(t, http.StatusOK, res.Status, res.Message)
	var imported struct {
		Total   int `json:"total"`
		Success int `json:"success"`
		Failed  int `json:"failed"`
	}
	res.decode(t, &imported)
	assert.Equal(t, 3, imported.Total)
	assert.Equal(t, 2, imported.Success)
	assert.Equal(t, 1, imported.Failed)

	res = s.do(http.MethodGet, orgPath+"/projects/"+project.ID+"/tasks", owner, nil)
	require.Equal(t, http.StatusOK, res.Status)
	var list []map[string]interface{}
	res.decode(t, &list)
	assert.Len(t, list, 3)

	res = s.do(http.MethodGet, orgPath+"/audit", owner, nil)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Contains(t, string(res.Data), "tasks.imported")
}

func TestRouter_AuthAndPublicRoutes(t *testing.T) {
	s := newTestServer(t)

	res := s.do(http.MethodGet, "/api/v1/organizations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Status)

	token, _ := s.signup("ada@example.com", "Ada")
	res = s.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email": "ada@example.com", "password": "correct-horse", "full_name": "Ada",
	})
	assert.Equal(t, http.StatusConflict, res.Status)

	res = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ada@example.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, res.Status)

	res = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ada@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, res.Status)
	var pair struct {
		RefreshToken string `json:"refresh_token"`
	}
	res.decode(t, &pair)

	res = s.do(http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refresh_token": pair.RefreshToken})
	assert.Equal(t, http.StatusOK, res.Status)
	res = s.do(http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refresh_token": token})
	assert.Equal(t, http.StatusUnauthorized, res.Status, "access tokens cannot refresh")

	res = s.do(http.MethodGet, "/api/v1/organizations/org_missing", token, nil)
	assert.Equal(t, http.StatusNotFound, res.Status)

	res = s.do(http.MethodGet, "/api/v1/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, res.Status)
	assert.Equal(t, "NOT_FOUND", res.Code)

	res = s.do(http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, res.Status)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	assert.Contains(t, rr.Body.String(), "projecthub_webhook_deliveries_total 0")
}

func TestRouter_IdentityHooks(t *testing.T) {
	s := newTestServer(t)
	event := map[string]interface{}{
		"triggerSource": "PreSignUp_SignUp",
		"userName":      "idp-1",
		"request":       map[string]interface{}{"userAttributes": map[string]string{"email": "Eve@Example.com", "name": "Eve", "sub": "idp-1"}},
	}

	res := s.do(http.MethodPost, "/api/v1/hooks/pre-signup", "", event)
	assert.Equal(t, http.StatusUnauthorized, res.Status)

	req := func(path string) apiResponse {
		b, _ := json.Marshal(event)
		r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
		r.Header.Set("X-Hook-Secret", "hook-secret")
		return s.serve(r)
	}
	res = req("/api/v1/hooks/pre-signup")
	require.Equal(t, http.StatusOK, res.Status, res.Message)
	assert.Contains(t, string(res.Data), "eve@example.com")

	res = req("/api/v1/hooks/post-confirmation")
	require.Equal(t, http.StatusOK, res.Status, res.Message)
	res = req("/api/v1/hooks/post-confirmation")
	assert.Equal(t, http.StatusOK, res.Status, "confirmation is idempotent")
}

func TestRouter_NotificationsAndPrivacy(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.signup("ada@example.com", "Ada")

	res := s.do(http.MethodPost, "/api/v1/notifications", token, map[string]interface{}{
		"type": "MENTION", "title": "You were mentioned", "channels": []string{"in_app", "push"},
	})
	require.Equal(t, http.StatusOK, res.Status, res.Message)
	var results []struct {
		Channel string `json:"channel"`
		Success bool   `json:"success"`
	}
	res.decode(t, &results)
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)

	res = s.do(http.MethodPost, "/api/v1/notifications", token, map[string]interface{}{
		"user_id": "usr_someone_else", "type": "MENTION", "title": "hi",
	})
	assert.Equal(t, http.StatusForbidden, res.Status)

	res = s.do(http.MethodGet, "/api/v1/notifications?unread=true", token, nil)
	require.Equal(t, http.StatusOK, res.Status)
	var list []struct {
		ID string `json:"id"`
	}
	res.decode(t, &list)
	require.Len(t, list, 1)

	res = s.do(http.MethodPatch, "/api/v1/notifications/"+list[0].ID, token, map[string]bool{"read": true})
	assert.Equal(t, http.StatusOK, res.Status)
	res = s.do(http.MethodPatch, "/api/v1/notifications/ntf_missing", token, nil)
	assert.Equal(t, http.StatusNotFound, res.Status)

	res = s.do(http.MethodPost, "/api/v1/me/export", token, nil)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Contains(t, string(res.Data), "ada@example.com")

	res = s.do(http.MethodDelete, "/api/v1/me", token, nil)
	assert.Equal(t, http.StatusOK, res.Status)
}
