// Package services contains the portal's document workflow: the upload
// pipeline, the verification coordinator, authorization-checked download
// and deletion, and the registry listings used by dashboards.
package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/educhain/internal/logging"
	"github.com/dmitrijs2005/educhain/internal/server/locks"
	"github.com/dmitrijs2005/educhain/internal/server/metrics"
	"github.com/dmitrijs2005/educhain/internal/server/models"
	"github.com/dmitrijs2005/educhain/internal/server/oracle"
	"github.com/dmitrijs2005/educhain/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/educhain/internal/server/storage"
)

// Classifier is the verification oracle.
type Classifier interface {
	Classify(ctx context.Context, req oracle.Request) (models.Classification, error)
}

// Attester records and checks attestation hashes for content digests.
type Attester interface {
	Attest(ctx context.Context, digest, subject string) (string, error)
	Verify(ctx context.Context, hash, digest string) (bool, error)
}

// Options tunes the document workflow.
type Options struct {
	MaxUploadBytes      int64
	ConfidenceThreshold float64
	OracleTimeout       time.Duration
	AttestationTimeout  time.Duration
}

// DocumentService owns every state change of a document.
type DocumentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       storage.Store
	oracle      Classifier
	attester    Attester
	locks       locks.Locker
	metrics     *metrics.Metrics
	log         logging.Logger
	opts        Options
}

// Deps groups the collaborators of DocumentService.
type Deps struct {
	DB          *sql.DB
	RepoManager repomanager.RepositoryManager
	Store       storage.Store
	Oracle      Classifier
	Attester    Attester
	Locks       locks.Locker
	Metrics     *metrics.Metrics
	Log         logging.Logger
}

func NewDocumentService(d Deps, opts Options) *DocumentService {
	log := d.Log
	if log == nil {
		log = logging.Nop{}
	}
	return &DocumentService{
		db:          d.DB,
		repomanager: d.RepoManager,
		store:       d.Store,
		oracle:      d.Oracle,
		attester:    d.Attester,
		locks:       d.Locks,
		metrics:     d.Metrics,
		log:         log.With("module", "documents"),
		opts:        opts,
	}
}
