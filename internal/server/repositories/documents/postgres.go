// Package documents is the PostgreSQL-backed document registry.
package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/educhain/internal/common"
	"github.com/dmitrijs2005/educhain/internal/dbx"
	"github.com/dmitrijs2005/educhain/internal/server/models"
	"github.com/google/uuid"
)

const selectColumns = `d.id, d.owner_id, u.username, d.filename, d.declared_type, d.description,
		d.size_bytes, d.content_ref, d.content_digest, d.uploaded_at, d.status,
		d.confidence_score, d.detected_type, d.attestation_hash`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*models.Document, error) {
	d := &models.Document{}
	var (
		declared, status string
		confidence       sql.NullFloat64
		detected, hash   sql.NullString
	)
	err := s.Scan(&d.ID, &d.OwnerID, &d.OwnerName, &d.Filename, &declared, &d.Description,
		&d.SizeBytes, &d.ContentRef, &d.ContentDigest, &d.UploadedAt, &status,
		&confidence, &detected, &hash)
	if err != nil {
		return nil, err
	}
	d.DeclaredType = models.DocumentType(declared)
	d.Status = models.Status(status)
	if confidence.Valid {
		v := confidence.Float64
		d.ConfidenceScore = &v
	}
	if detected.Valid {
		v := detected.String
		d.DetectedType = &v
	}
	if hash.Valid {
		v := hash.String
		d.AttestationHash = &v
	}
	return d, nil
}

// Create inserts a new PENDING record. ID is assigned when empty; the
// upload time comes from the database.
func (r *PostgresRepository) Create(ctx context.Context, doc *models.Document) (*models.Document, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.Status = models.StatusPending
	doc.ConfidenceScore, doc.DetectedType, doc.AttestationHash = nil, nil, nil

	query :=
		`INSERT INTO documents (id, owner_id, filename, declared_type, description, size_bytes, content_ref, content_digest, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING uploaded_at`

	err := r.db.QueryRowContext(ctx, query,
		doc.ID, doc.OwnerID, doc.Filename, string(doc.DeclaredType), doc.Description,
		doc.SizeBytes, doc.ContentRef, doc.ContentDigest, string(doc.Status)).Scan(&doc.UploadedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return doc, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	if !dbx.IsUUID(id) {
		return nil, common.ErrorNotFound
	}
	query := `SELECT ` + selectColumns + `
		 FROM documents d JOIN users u ON u.id = d.owner_id
		 WHERE d.id = $1`

	d, err := scanDocument(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

// ListByOwner returns the owner's documents, newest first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Document, error) {
	if !dbx.IsUUID(ownerID) {
		return make([]*models.Document, 0), nil
	}
	query := `SELECT ` + selectColumns + `
		 FROM documents d JOIN users u ON u.id = d.owner_id
		 WHERE d.owner_id = $1
		 ORDER BY d.uploaded_at DESC`

	return r.list(ctx, query, ownerID)
}

// ListAll returns every document, newest first.
func (r *PostgresRepository) ListAll(ctx context.Context) ([]*models.Document, error) {
	query := `SELECT ` + selectColumns + `
		 FROM documents d JOIN users u ON u.id = d.owner_id
		 ORDER BY d.uploaded_at DESC`

	return r.list(ctx, query)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Document, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// UpdateVerification writes a verification result. VERIFIED rows are final
// and are never rewritten; an update against one returns common.ErrorNotFound
// just like a missing row.
func (r *PostgresRepository) UpdateVerification(ctx context.Context, id string, upd VerificationUpdate) error {
	if !dbx.IsUUID(id) {
		return common.ErrorNotFound
	}
	var declared *string
	if upd.DeclaredType != nil {
		s := string(*upd.DeclaredType)
		declared = &s
	}

	query :=
		`UPDATE documents
		 SET status = $2, confidence_score = $3, detected_type = $4, attestation_hash = $5,
		     declared_type = COALESCE($6, declared_type)
		 WHERE id = $1 AND status <> 'VERIFIED'`

	res, err := r.db.ExecContext(ctx, query, id, string(upd.Status),
		upd.ConfidenceScore, upd.DetectedType, upd.AttestationHash, declared)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// Delete removes the record and returns what was removed so the caller can
// release its blob.
func (r *PostgresRepository) Delete(ctx context.Context, id string) (*models.Document, error) {
	if !dbx.IsUUID(id) {
		return nil, common.ErrorNotFound
	}
	query :=
		`WITH d AS (DELETE FROM documents WHERE id = $1 RETURNING *)
		 SELECT ` + selectColumns + `
		 FROM d JOIN users u ON u.id = d.owner_id`

	d, err := scanDocument(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}
