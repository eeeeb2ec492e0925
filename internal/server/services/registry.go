package services

import (
	"context"

	"github.com/dmitrijs2005/educhain/internal/common"
	"github.com/dmitrijs2005/educhain/internal/server/auth"
	"github.com/dmitrijs2005/educhain/internal/server/models"
)

// ListMine returns the actor's own documents, newest first.
func (s *DocumentService) ListMine(ctx context.Context, actor models.Identity) ([]*models.Document, error) {
	docs, err := s.repomanager.Documents(s.db).ListByOwner(ctx, actor.UserID)
	if err != nil {
		return nil, s.classify(ctx, "list documents", err, "user_id", actor.UserID)
	}
	return docs, nil
}

// ListAll returns every document, newest first. Administrators only.
func (s *DocumentService) ListAll(ctx context.Context, actor models.Identity) ([]*models.Document, error) {
	if !auth.Can(actor, auth.ActionListAll, "") {
		return nil, common.ErrorForbidden
	}
	docs, err := s.repomanager.Documents(s.db).ListAll(ctx)
	if err != nil {
		return nil, s.classify(ctx, "list documents", err)
	}
	return docs, nil
}

// ListStudents returns every STUDENT account without credentials.
// Administrators only.
func (s *DocumentService) ListStudents(ctx context.Context, actor models.Identity) ([]models.UserSummary, error) {
	if !auth.Can(actor, auth.ActionListStudents, "") {
		return nil, common.ErrorForbidden
	}
	users, err := s.repomanager.Users(s.db).ListByRole(ctx, models.RoleStudent)
	if err != nil {
		return nil, s.classify(ctx, "list students", err)
	}
	out := make([]models.UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, u.Summary())
	}
	return out, nil
}
