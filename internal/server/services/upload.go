package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/educhain/internal/common"
	"github.com/dmitrijs2005/educhain/internal/dbx"
	"github.com/dmitrijs2005/educhain/internal/server/auth"
	"github.com/dmitrijs2005/educhain/internal/server/models"
	"github.com/dmitrijs2005/educhain/internal/server/oracle"
	"github.com/dmitrijs2005/educhain/internal/server/storage"
)

var allowedExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true,
	".jpg": true, ".jpeg": true, ".png": true,
}

// UploadInput is a file submitted for a student.
type UploadInput struct {
	OwnerID      string
	Filename     string
	DeclaredType string
	Description  string
	Content      []byte
}

// Digest is the hex SHA-256 of content, the value attestations are issued for.
func Digest(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func (s *DocumentService) validateUpload(in UploadInput) (models.DocumentType, error) {
	if strings.TrimSpace(in.OwnerID) == "" {
		return "", fmt.Errorf("%w: student is required", common.ErrorValidation)
	}
	if strings.TrimSpace(in.Filename) == "" || len(in.Content) == 0 {
		return "", fmt.Errorf("%w: file is required", common.ErrorValidation)
	}
	if int64(len(in.Content)) > s.opts.MaxUploadBytes {
		return "", fmt.Errorf("%w: file exceeds %d MiB", common.ErrorValidation, s.opts.MaxUploadBytes>>20)
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(in.Filename))] {
		return "", fmt.Errorf("%w: only PDF, DOC, DOCX, JPG and PNG files are accepted", common.ErrorValidation)
	}
	t, ok := models.ParseDocumentType(in.DeclaredType)
	if !ok {
		return "", fmt.Errorf("%w: unknown document type %q", common.ErrorValidation, in.DeclaredType)
	}
	return t, nil
}

// Upload stores the file for a student, records it as PENDING and runs the
// first verification before returning. A verification that cannot finish,
// e.g. an oracle timeout, does not fail the upload: the document stays
// PENDING and the outcome says so.
func (s *DocumentService) Upload(ctx context.Context, actor models.Identity, in UploadInput) (*models.UploadResult, error) {
	if !auth.Can(actor, auth.ActionUpload, in.OwnerID) {
		return nil, fmt.Errorf("%w: only administrators can upload documents", common.ErrorForbidden)
	}

	declared, err := s.validateUpload(in)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		OwnerID:       in.OwnerID,
		Filename:      filepath.Base(in.Filename),
		DeclaredType:  declared,
		Description:   strings.TrimSpace(in.Description),
		SizeBytes:     int64(len(in.Content)),
		ContentRef:    storage.NewKey(in.OwnerID),
		ContentDigest: Digest(in.Content),
	}

	// Bytes are stored outside the transaction; any failure below releases them.
	if err := s.store.Put(ctx, doc.ContentRef, in.Content, oracle.MimeType(doc.Filename)); err != nil {
		return nil, s.classify(ctx, "store document content", err, "owner_id", in.OwnerID)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		owner, err := s.repomanager.Users(tx).GetByID(ctx, in.OwnerID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return fmt.Errorf("%w: unknown student", common.ErrorValidation)
			}
			return err
		}
		if owner.Role != models.RoleStudent {
			return fmt.Errorf("%w: documents can only be uploaded for students", common.ErrorValidation)
		}
		doc.OwnerName = owner.UserName

		created, err := s.repomanager.Documents(tx).Create(ctx, doc)
		if err != nil {
			return err
		}
		doc = created
		return nil
	})
	if err != nil {
		s.releaseBlob(ctx, doc.ContentRef)
		return nil, s.classify(ctx, "upload failed", err, "owner_id", in.OwnerID)
	}

	s.metrics.ObserveUpload(doc.SizeBytes)
	s.log.Info(ctx, "document uploaded", "document_id", doc.ID, "owner_id", doc.OwnerID, "size", doc.SizeBytes)

	outcome, updated, err := s.runVerification(ctx, doc.ID, nil)
	if err != nil {
		return &models.UploadResult{Document: doc, Outcome: pendingOutcome(err)}, nil
	}
	return &models.UploadResult{Document: updated, Outcome: *outcome}, nil
}

// releaseBlob drops bytes whose document row was never written.
func (s *DocumentService) releaseBlob(ctx context.Context, key string) {
	if err := s.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.log.Warn(ctx, "orphaned blob", "content_ref", key, "error", err)
	}
}

// classify passes expected error kinds through and hides everything else
// behind common.ErrorInternal after logging it.
func (s *DocumentService) classify(ctx context.Context, msg string, err error, kv ...any) error {
	for _, kind := range []error{
		common.ErrorValidation, common.ErrorForbidden, common.ErrorNotFound,
		common.ErrorStorage, common.ErrorVerification, common.ErrorAuth,
	} {
		if errors.Is(err, kind) {
			if errors.Is(err, common.ErrorStorage) {
				s.log.Error(ctx, msg, append(kv, "error", err)...)
			}
			return err
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	s.log.Error(ctx, msg, append(kv, "error", err)...)
	return fmt.Errorf("%w: %s", common.ErrorInternal, msg)
}
