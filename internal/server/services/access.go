package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/educhain/internal/common"
	"github.com/dmitrijs2005/educhain/internal/server/auth"
	"github.com/dmitrijs2005/educhain/internal/server/models"
)

// Download returns the document record and its full stored bytes. Nothing
// is returned unless the whole object was read.
func (s *DocumentService) Download(ctx context.Context, actor models.Identity, documentID string) (*models.Document, []byte, error) {
	doc, err := s.repomanager.Documents(s.db).GetByID(ctx, documentID)
	if err != nil {
		return nil, nil, s.classify(ctx, "load document", err, "document_id", documentID)
	}
	if !auth.Can(actor, auth.ActionDownload, doc.OwnerID) {
		return nil, nil, common.ErrorForbidden
	}

	content, err := s.store.Get(ctx, doc.ContentRef)
	if err != nil {
		return nil, nil, s.classify(ctx, "read document content", err, "document_id", doc.ID)
	}
	if int64(len(content)) != doc.SizeBytes {
		s.log.Error(ctx, "stored content has unexpected size", "document_id", doc.ID, "want", doc.SizeBytes, "got", len(content))
		return nil, nil, fmt.Errorf("%w: stored content is incomplete", common.ErrorStorage)
	}
	return doc, content, nil
}

// Delete removes the document record and then its bytes. Only
// administrators may delete. A failure to release the bytes is logged and
// does not undo the deletion.
func (s *DocumentService) Delete(ctx context.Context, actor models.Identity, documentID string) (*models.Document, error) {
	if !auth.Can(actor, auth.ActionDelete, "") {
		return nil, fmt.Errorf("%w: only administrators can delete documents", common.ErrorForbidden)
	}

	doc, err := s.repomanager.Documents(s.db).Delete(ctx, documentID)
	if err != nil {
		return nil, s.classify(ctx, "delete document", err, "document_id", documentID)
	}

	if err := s.store.Delete(context.WithoutCancel(ctx), doc.ContentRef); err != nil {
		s.log.Warn(ctx, "document deleted but content was not released", "document_id", doc.ID, "content_ref", doc.ContentRef, "error", err)
	}
	s.log.Info(ctx, "document deleted", "document_id", doc.ID, "owner_id", doc.OwnerID, "by", actor.UserID)
	return doc, nil
}
