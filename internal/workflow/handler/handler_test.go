package handler

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comply/internal/activity"
	activitymem "comply/internal/activity/store/memory"
	"comply/internal/authz"
	"comply/internal/notify"
	"comply/internal/platform/metrics"
	"comply/internal/platform/middleware"
	wfservice "comply/internal/workflow/service"
	artifactstore "comply/internal/workflow/store/artifact"
	id "comply/pkg/domain"
	"comply/pkg/testutil"
)

// stubValidator maps fixed bearer tokens to claims so handler tests can
// exercise the real auth middleware without signing JWTs.
type stubValidator struct {
	tokens map[string]*middleware.TokenClaims
}

func (v *stubValidator) ValidateToken(token string) (*middleware.TokenClaims, error) {
	if claims, ok := v.tokens[token]; ok {
		return claims, nil
	}
	return nil, assert.AnError
}

type testEnv struct {
	router    http.Handler
	dispatch  *notify.Dispatcher
	sender    *notify.MemorySender
	ownerID   id.UserID
	companyID id.CompanyID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ownerID := id.NewUserID()
	companyID := id.NewCompanyID()
	reviewerID := id.NewUserID()
	adminID := id.NewUserID()

	validator := &stubValidator{tokens: map[string]*middleware.TokenClaims{
		"partner-token": {
			UserID: ownerID.String(), CompanyID: companyID.String(),
			Role: "partner", SessionID: id.NewSessionID().String(),
		},
		"reviewer-token": {
			UserID: reviewerID.String(), CompanyID: id.NewCompanyID().String(),
			Role: "reviewer", SessionID: id.NewSessionID().String(),
		},
		"admin-token": {
			UserID: adminID.String(), CompanyID: id.NewCompanyID().String(),
			Role: "admin", SessionID: id.NewSessionID().String(),
		},
	}}

	sender := notify.NewMemorySender()
	dispatcher := notify.NewDispatcher(sender, slog.Default(), time.Second, 16)

	svc := wfservice.New(
		artifactstore.NewInMemoryStore(),
		activity.NewPublisher(activitymem.NewInMemoryStore()),
		authz.NewGate(),
		dispatcher,
	)

	h := New(svc, validator, nil, slog.Default(), metrics.New(prometheus.NewRegistry()), 30*24*time.Hour)
	router := chi.NewRouter()
	h.Register(router)

	return &testEnv{
		router:    router,
		dispatch:  dispatcher,
		sender:    sender,
		ownerID:   ownerID,
		companyID: companyID,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.NewJSONRequest(t, method, path, body)
	req = testutil.WithBearer(req, token)
	return testutil.DoRequest(e.router, req)
}

type artifactPayload struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Status string `json:"status"`
	Expiry string `json:"expiry"`
}

func (e *testEnv) createArtifact(t *testing.T, body map[string]any) artifactPayload {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/artifacts", "partner-token", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return *testutil.UnmarshalResponse[artifactPayload](t, rr)
}

func TestCreateArtifactEndpoint(t *testing.T) {
	env := newTestEnv(t)

	t.Run("creates a draft", func(t *testing.T) {
		created := env.createArtifact(t, map[string]any{
			"kind":  "document",
			"title": "Liability insurance",
		})
		assert.Equal(t, "document", created.Kind)
		assert.Equal(t, "draft", created.Status)
		assert.Equal(t, "active", created.Expiry)
	})

	t.Run("rejects an unknown kind", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/artifacts", "partner-token", map[string]any{
			"kind": "blueprint", "title": "x",
		})
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})

	t.Run("rejects a malformed expiration date", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/artifacts", "partner-token", map[string]any{
			"kind": "work_permit", "title": "Permit", "expiration_date": "03/10/2026",
		})
		testutil.AssertStatus(t, rr, http.StatusUnprocessableEntity)
	})

	t.Run("requires authentication", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/artifacts", map[string]any{"kind": "document", "title": "x"})
		rr := testutil.DoRequest(env.router, req)
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})
}

func TestTransitionEndpoint(t *testing.T) {
	env := newTestEnv(t)
	created := env.createArtifact(t, map[string]any{"kind": "document", "title": "Policy"})

	t.Run("owner submits", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/artifacts/"+created.ID+"/transition", "partner-token",
			map[string]any{"target": "submitted"})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, "submitted", testutil.UnmarshalResponse[artifactPayload](t, rr).Status)
	})

	t.Run("illegal jump is a 409", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/artifacts/"+created.ID+"/transition", "reviewer-token",
			map[string]any{"target": "approved"})
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "invalid_transition")
	})

	t.Run("reviewer picks it up and approves", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/artifacts/"+created.ID+"/transition", "reviewer-token",
			map[string]any{"target": "under_review"})
		require.Equal(t, http.StatusOK, rr.Code)

		rr = env.do(t, http.MethodPost, "/artifacts/"+created.ID+"/transition", "reviewer-token",
			map[string]any{"target": "approved"})
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "approved", testutil.UnmarshalResponse[artifactPayload](t, rr).Status)
	})

	t.Run("reviewer may not block", func(t *testing.T) {
		other := env.createArtifact(t, map[string]any{"kind": "document", "title": "Another"})
		env.do(t, http.MethodPost, "/artifacts/"+other.ID+"/transition", "partner-token", map[string]any{"target": "submitted"})
		env.do(t, http.MethodPost, "/artifacts/"+other.ID+"/transition", "reviewer-token", map[string]any{"target": "under_review"})

		rr := env.do(t, http.MethodPost, "/artifacts/"+other.ID+"/transition", "reviewer-token",
			map[string]any{"target": "blocked"})
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")

		rr = env.do(t, http.MethodPost, "/artifacts/"+other.ID+"/transition", "admin-token",
			map[string]any{"target": "blocked"})
		require.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("unknown artifact is a 404", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/artifacts/"+id.NewArtifactID().String()+"/transition", "partner-token",
			map[string]any{"target": "submitted"})
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	})

	t.Run("malformed artifact id is a 400", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/artifacts/not-a-uuid/transition", "partner-token",
			map[string]any{"target": "submitted"})
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestHistoryEndpoint(t *testing.T) {
	env := newTestEnv(t)
	created := env.createArtifact(t, map[string]any{"kind": "startup_folder_document", "title": "Folder doc"})

	env.do(t, http.MethodPost, "/artifacts/"+created.ID+"/transition", "partner-token", map[string]any{"target": "submitted"})

	rr := env.do(t, http.MethodGet, "/artifacts/"+created.ID+"/history", "partner-token", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	type historyPayload struct {
		Events []struct {
			Action   string `json:"action"`
			ToStatus string `json:"to_status"`
		} `json:"events"`
	}
	payload := testutil.UnmarshalResponse[historyPayload](t, rr)
	require.Len(t, payload.Events, 2)
	assert.Equal(t, "submitted", payload.Events[0].Action)
	assert.Equal(t, "created", payload.Events[1].Action)
}

func TestListEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.createArtifact(t, map[string]any{"kind": "document", "title": "One"})
	env.createArtifact(t, map[string]any{"kind": "work_permit", "title": "Two", "expiration_date": "2026-09-05"})

	t.Run("plain listing", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/artifacts", "partner-token", nil)
		require.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("kind filter", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/artifacts?kind=work_permit", "partner-token", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		payload := testutil.UnmarshalResponse[struct {
			Artifacts []artifactPayload `json:"artifacts"`
		}](t, rr)
		require.Len(t, payload.Artifacts, 1)
		assert.Equal(t, "work_permit", payload.Artifacts[0].Kind)
	})

	t.Run("invalid status filter is a 400", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/artifacts?status=archived", "partner-token", nil)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestRecentActivityEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.createArtifact(t, map[string]any{"kind": "document", "title": "One"})

	t.Run("admin reads the feed", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/activity/recent?limit=10", "admin-token", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		testutil.AssertJSONHasKey(t, rr, "events")
	})

	t.Run("partner is denied", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/activity/recent", "partner-token", nil)
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")
	})
}
