package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/educhain/internal/common"
	"github.com/dmitrijs2005/educhain/internal/dbx"
	"github.com/dmitrijs2005/educhain/internal/logging"
	"github.com/dmitrijs2005/educhain/internal/server/locks"
	"github.com/dmitrijs2005/educhain/internal/server/models"
	"github.com/dmitrijs2005/educhain/internal/server/oracle"
	"github.com/dmitrijs2005/educhain/internal/server/repositories/documents"
	"github.com/dmitrijs2005/educhain/internal/server/repositories/users"
	"github.com/dmitrijs2005/educhain/internal/server/storage"
)

// --- users ---

type fakeUsersRepo struct {
	byID    map[string]*models.User
	listErr error
}

func (f *fakeUsersRepo) Create(context.Context, *models.User) (*models.User, error) {
	return nil, common.ErrorInternal
}

func (f *fakeUsersRepo) GetUserByLogin(context.Context, string) (*models.User, error) {
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (f *fakeUsersRepo) ListByRole(_ context.Context, role models.Role) ([]*models.User, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*models.User
	for _, u := range f.byID {
		if u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserName < out[j].UserName })
	return out, nil
}

// --- documents ---

type fakeDocsRepo struct {
	mu        sync.Mutex
	docs      map[string]*models.Document
	seq       int
	base      time.Time
	createErr error
	updateErr error
	updates   int
}

func newFakeDocsRepo() *fakeDocsRepo {
	return &fakeDocsRepo{docs: map[string]*models.Document{}, base: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func cloneDoc(d *models.Document) *models.Document {
	c := *d
	return &c
}

func (f *fakeDocsRepo) Create(_ context.Context, d *models.Document) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.seq++
	d.ID = fmt.Sprintf("doc-%d", f.seq)
	d.Status = models.StatusPending
	d.UploadedAt = f.base.Add(time.Duration(f.seq) * time.Minute)
	f.docs[d.ID] = cloneDoc(d)
	return d, nil
}

func (f *fakeDocsRepo) GetByID(_ context.Context, id string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return cloneDoc(d), nil
}

func (f *fakeDocsRepo) list(keep func(*models.Document) bool) []*models.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Document, 0)
	for _, d := range f.docs {
		if keep(d) {
			out = append(out, cloneDoc(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out
}

func (f *fakeDocsRepo) ListByOwner(_ context.Context, ownerID string) ([]*models.Document, error) {
	return f.list(func(d *models.Document) bool { return d.OwnerID == ownerID }), nil
}

func (f *fakeDocsRepo) ListAll(context.Context) ([]*models.Document, error) {
	return f.list(func(*models.Document) bool { return true }), nil
}

func (f *fakeDocsRepo) UpdateVerification(_ context.Context, id string, upd documents.VerificationUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	d, ok := f.docs[id]
	if !ok || d.Status == models.StatusVerified {
		return common.ErrorNotFound
	}
	f.updates++
	d.Status = upd.Status
	d.ConfidenceScore = upd.ConfidenceScore
	d.DetectedType = upd.DetectedType
	d.AttestationHash = upd.AttestationHash
	if upd.DeclaredType != nil {
		d.DeclaredType = *upd.DeclaredType
	}
	return nil
}

func (f *fakeDocsRepo) Delete(_ context.Context, id string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	delete(f.docs, id)
	return d, nil
}

type fakeRM struct {
	users *fakeUsersRepo
	docs  *fakeDocsRepo
}

func (m *fakeRM) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRM) Users(dbx.DBTX) users.Repository              { return m.users }
func (m *fakeRM) Documents(dbx.DBTX) documents.Repository      { return m.docs }

// --- collaborators ---

type fakeOracle struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, req oracle.Request) (models.Classification, error)
}

func (f *fakeOracle) Classify(ctx context.Context, req oracle.Request) (models.Classification, error) {
	f.mu.Lock()
	f.calls++
	fn := f.fn
	f.mu.Unlock()
	return fn(ctx, req)
}

func (f *fakeOracle) returns(detected string, confidence float64) {
	f.fn = func(context.Context, oracle.Request) (models.Classification, error) {
		return models.Classification{DetectedType: detected, Confidence: confidence, Reason: "looks like a " + detected}, nil
	}
}

func (f *fakeOracle) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAttester struct {
	mu          sync.Mutex
	attested    map[string]string
	attestCalls int
	err         error
}

func newFakeAttester() *fakeAttester { return &fakeAttester{attested: map[string]string{}} }

func (f *fakeAttester) Attest(_ context.Context, digest, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.attestCalls++
	h := fmt.Sprintf("0xhash-%d", f.attestCalls)
	f.attested[h] = digest
	return h, nil
}

func (f *fakeAttester) Verify(_ context.Context, hash, digest string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attested[hash] == digest, nil
}

// --- harness ---

var (
	admin = models.Identity{UserID: "admin-1", UserName: "root", Role: models.RoleAdmin}
	alice = models.Identity{UserID: "stu-1", UserName: "alice", Role: models.RoleStudent}
	bob   = models.Identity{UserID: "stu-2", UserName: "bob", Role: models.RoleStudent}
)

type harness struct {
	svc      *DocumentService
	mock     sqlmock.Sqlmock
	users    *fakeUsersRepo
	docs     *fakeDocsRepo
	store    *storage.MemoryStore
	oracle   *fakeOracle
	attester *fakeAttester
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := &harness{
		mock: mock,
		users: &fakeUsersRepo{byID: map[string]*models.User{
			admin.UserID: {ID: admin.UserID, UserName: admin.UserName, Role: models.RoleAdmin, PasswordHash: []byte("x")},
			alice.UserID: {ID: alice.UserID, UserName: alice.UserName, Role: models.RoleStudent, PasswordHash: []byte("x")},
			bob.UserID:   {ID: bob.UserID, UserName: bob.UserName, Role: models.RoleStudent, PasswordHash: []byte("x")},
		}},
		docs:     newFakeDocsRepo(),
		store:    storage.NewMemoryStore(),
		oracle:   &fakeOracle{},
		attester: newFakeAttester(),
	}
	h.oracle.returns("General", 1.0)

	h.svc = NewDocumentService(Deps{
		DB:          db,
		RepoManager: &fakeRM{users: h.users, docs: h.docs},
		Store:       h.store,
		Oracle:      h.oracle,
		Attester:    h.attester,
		Locks:       locks.NewMemoryLocker(),
		Log:         logging.Nop{},
	}, Options{
		MaxUploadBytes:      common.MaxUploadBytes,
		ConfidenceThreshold: 0.70,
		OracleTimeout:       time.Second,
		AttestationTimeout:  time.Second,
	})
	return h
}

func (h *harness) expectTx(commit bool) {
	h.mock.ExpectBegin()
	if commit {
		h.mock.ExpectCommit()
	} else {
		h.mock.ExpectRollback()
	}
}

// seed stores content and a PENDING document for owner directly.
func (h *harness) seed(t *testing.T, owner models.Identity, filename string, declared models.DocumentType, content []byte) *models.Document {
	t.Helper()
	key := storage.NewKey(owner.UserID)
	if err := h.store.Put(context.Background(), key, content, ""); err != nil {
		t.Fatalf("seed put: %v", err)
	}
	d, err := h.docs.Create(context.Background(), &models.Document{
		OwnerID: owner.UserID, OwnerName: owner.UserName, Filename: filename, DeclaredType: declared,
		SizeBytes: int64(len(content)), ContentRef: key, ContentDigest: Digest(content),
	})
	if err != nil {
		t.Fatalf("seed create: %v", err)
	}
	return cloneDoc(d)
}

func (h *harness) stored(t *testing.T, id string) *models.Document {
	t.Helper()
	d, err := h.docs.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load %s: %v", id, err)
	}
	return d
}
