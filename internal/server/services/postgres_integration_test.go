//go:build integration

package services_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/educhain/internal/common"
	"github.com/dmitrijs2005/educhain/internal/logging"
	"github.com/dmitrijs2005/educhain/internal/server/attestation"
	"github.com/dmitrijs2005/educhain/internal/server/locks"
	"github.com/dmitrijs2005/educhain/internal/server/models"
	"github.com/dmitrijs2005/educhain/internal/server/oracle"
	"github.com/dmitrijs2005/educhain/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/educhain/internal/server/services"
	"github.com/dmitrijs2005/educhain/internal/server/storage"
	"github.com/dmitrijs2005/educhain/internal/testutil/containers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentLifecycle_Postgres(t *testing.T) {
	ctx := context.Background()
	db := containers.NewPostgres(t)
	rm := repomanager.NewPostgresRepositoryManager()
	require.NoError(t, rm.RunMigrations(ctx, db))

	student, err := rm.Users(db).Create(ctx, &models.User{UserName: "alice", PasswordHash: []byte("h"), Role: models.RoleStudent})
	require.NoError(t, err)
	adminUser, err := rm.Users(db).Create(ctx, &models.User{UserName: "root", PasswordHash: []byte("h"), Role: models.RoleAdmin})
	require.NoError(t, err)

	admin := models.Identity{UserID: adminUser.ID, UserName: adminUser.UserName, Role: models.RoleAdmin}
	alice := models.Identity{UserID: student.ID, UserName: student.UserName, Role: models.RoleStudent}

	blobs := storage.NewMemoryStore()
	svc := services.NewDocumentService(services.Deps{
		DB:          db,
		RepoManager: rm,
		Store:       blobs,
		Oracle:      oracle.Static{},
		Attester:    attestation.NewLocal("it"),
		Locks:       locks.NewMemoryLocker(),
		Log:         logging.Nop{},
	}, services.Options{
		MaxUploadBytes:      common.MaxUploadBytes,
		ConfidenceThreshold: 0.7,
		OracleTimeout:       time.Second,
		AttestationTimeout:  time.Second,
	})

	content := bytes.Repeat([]byte("t"), 2<<20)
	res, err := svc.Upload(ctx, admin, services.UploadInput{
		OwnerID: student.ID, Filename: "transcript.pdf", DeclaredType: "Transcript", Content: content,
	})
	require.NoError(t, err)
	assert.True(t, res.Outcome.Verified)
	require.NotNil(t, res.Document.AttestationHash)

	// Upload for an admin owner rolls back and stores nothing.
	_, err = svc.Upload(ctx, admin, services.UploadInput{OwnerID: adminUser.ID, Filename: "x.pdf", Content: []byte("x")})
	assert.ErrorIs(t, err, common.ErrorValidation)
	assert.Equal(t, 1, blobs.Len())

	out, _, err := svc.Verify(ctx, alice, res.Document.ID, "")
	require.NoError(t, err)
	require.NotNil(t, out.Intact)
	assert.True(t, *out.Intact)

	mine, err := svc.ListMine(ctx, alice)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	_, got, err := svc.Download(ctx, alice, res.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	_, err = svc.Delete(ctx, admin, res.Document.ID)
	require.NoError(t, err)
	assert.Zero(t, blobs.Len())
	_, err = svc.Delete(ctx, admin, res.Document.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
