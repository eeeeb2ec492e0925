package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/educhain/internal/common"
	"github.com/dmitrijs2005/educhain/internal/logging"
	"github.com/dmitrijs2005/educhain/internal/server/auth"
	"github.com/dmitrijs2005/educhain/internal/server/metrics"
	"github.com/dmitrijs2005/educhain/internal/server/models"
	"github.com/dmitrijs2005/educhain/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	admin = models.Identity{UserID: "admin-1", UserName: "root", Role: models.RoleAdmin}
	alice = models.Identity{UserID: "stu-1", UserName: "alice", Role: models.RoleStudent}
)

const (
	adminToken = "tok-admin"
	aliceToken = "tok-alice"
)

type fakeAuth struct {
	sessions  map[string]models.Identity
	loginErr  error
	lastCreds auth.Credentials
	lastRole  string
	revoked   []string
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{sessions: map[string]models.Identity{adminToken: admin, aliceToken: alice}}
}

func (f *fakeAuth) Register(_ context.Context, c auth.Credentials, role string) (*models.UserSummary, error) {
	f.lastCreds, f.lastRole = c, role
	if c.ChallengeToken == "" {
		return nil, fmt.Errorf("%w: challenge verification is required", common.ErrorValidation)
	}
	return &models.UserSummary{ID: "new-1", UserName: c.UserName, Role: models.Role(role)}, nil
}

func (f *fakeAuth) Login(_ context.Context, c auth.Credentials) (string, models.Identity, error) {
	f.lastCreds = c
	if f.loginErr != nil {
		return "", models.Identity{}, f.loginErr
	}
	return aliceToken, alice, nil
}

func (f *fakeAuth) SessionTTL() time.Duration { return 45 * time.Minute }

func (f *fakeAuth) Logout(_ context.Context, token string) error {
	f.revoked = append(f.revoked, token)
	delete(f.sessions, token)
	return nil
}

func (f *fakeAuth) CheckAuth(_ context.Context, token string) (models.Identity, error) {
	id, ok := f.sessions[token]
	if !ok {
		return models.Identity{}, fmt.Errorf("%w: session expired", common.ErrorAuth)
	}
	return id, nil
}

func (f *fakeAuth) CurrentUser(ctx context.Context, token string) (*models.UserSummary, error) {
	id, err := f.CheckAuth(ctx, token)
	if err != nil {
		return nil, err
	}
	return &models.UserSummary{ID: id.UserID, UserName: id.UserName, Role: id.Role}, nil
}

// fakeDocs answers every call with the configured result. The last
// actor and input are recorded.
type fakeDocs struct {
	doc      *models.Document
	content  []byte
	outcome  *models.VerificationOutcome
	docs     []*models.Document
	students []models.UserSummary
	err      error

	lastActor  models.Identity
	lastUpload services.UploadInput
	lastID     string
	lastType   string
}

func (f *fakeDocs) Upload(_ context.Context, actor models.Identity, in services.UploadInput) (*models.UploadResult, error) {
	f.lastActor, f.lastUpload = actor, in
	if f.err != nil {
		return nil, f.err
	}
	return &models.UploadResult{Document: f.doc, Outcome: *f.outcome}, nil
}

func (f *fakeDocs) Verify(_ context.Context, actor models.Identity, id, declaredType string) (*models.VerificationOutcome, *models.Document, error) {
	f.lastActor, f.lastID, f.lastType = actor, id, declaredType
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.outcome, f.doc, nil
}

func (f *fakeDocs) Download(_ context.Context, actor models.Identity, id string) (*models.Document, []byte, error) {
	f.lastActor, f.lastID = actor, id
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.doc, f.content, nil
}

func (f *fakeDocs) Delete(_ context.Context, actor models.Identity, id string) (*models.Document, error) {
	f.lastActor, f.lastID = actor, id
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

func (f *fakeDocs) ListMine(_ context.Context, actor models.Identity) ([]*models.Document, error) {
	f.lastActor = actor
	return f.docs, f.err
}

func (f *fakeDocs) ListAll(_ context.Context, actor models.Identity) ([]*models.Document, error) {
	f.lastActor = actor
	return f.docs, f.err
}

func (f *fakeDocs) ListStudents(_ context.Context, actor models.Identity) ([]models.UserSummary, error) {
	f.lastActor = actor
	return f.students, f.err
}

type testServer struct {
	*httptest.Server
	auth *fakeAuth
	docs *fakeDocs
	reg  *prometheus.Registry
	srv  *Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{auth: newFakeAuth(), docs: &fakeDocs{}, reg: prometheus.NewRegistry()}
	ts.srv = NewServer(":0", logging.Nop{}, ts.auth, ts.docs, metrics.New(ts.reg), Options{
		MaxUploadBytes: 1 << 20,
	})
	ts.Server = httptest.NewServer(ts.srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) do(t *testing.T, req *http.Request, token string) *http.Response {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("do %s %s: %v", req.Method, req.URL.Path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}
