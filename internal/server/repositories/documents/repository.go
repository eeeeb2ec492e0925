package documents

import (
	"context"

	"github.com/dmitrijs2005/educhain/internal/server/models"
)

// VerificationUpdate carries the fields a verification attempt writes back.
type VerificationUpdate struct {
	Status          models.Status
	ConfidenceScore *float64
	DetectedType    *string
	AttestationHash *string
	// DeclaredType, when set, replaces the declared type in the same write.
	DeclaredType *models.DocumentType
}

type Repository interface {
	Create(ctx context.Context, doc *models.Document) (*models.Document, error)
	GetByID(ctx context.Context, id string) (*models.Document, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Document, error)
	ListAll(ctx context.Context) ([]*models.Document, error)
	UpdateVerification(ctx context.Context, id string, upd VerificationUpdate) error
	Delete(ctx context.Context, id string) (*models.Document, error)
}
