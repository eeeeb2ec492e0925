package users

import (
	"context"

	"github.com/dmitrijs2005/educhain/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	ListByRole(ctx context.Context, role models.Role) ([]*models.User, error)
}
