// Package users persists portal accounts in PostgreSQL.
package users

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

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts user, assigning an ID when none is set. A taken username
// yields common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	query :=
		`INSERT INTO users (id, username, password_hash, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.UserName, user.PasswordHash, string(user.Role)).Scan(&user.CreatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetUserByLogin(ctx context.Context, userName string) (*models.User, error) {
	query :=
		`SELECT id, username, password_hash, role, created_at FROM users
		 WHERE username = $1`

	return r.getOne(ctx, query, userName)
}

// GetByID treats an id that is not a UUID as unknown.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if !dbx.IsUUID(id) {
		return nil, common.ErrorNotFound
	}
	query :=
		`SELECT id, username, password_hash, role, created_at FROM users
		 WHERE id = $1`

	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*models.User, error) {
	user := &models.User{}
	var role string
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&user.ID, &user.UserName, &user.PasswordHash, &role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	user.Role = models.Role(role)
	return user, nil
}

// ListByRole returns users holding role ordered by username.
func (r *PostgresRepository) ListByRole(ctx context.Context, role models.Role) ([]*models.User, error) {
	query :=
		`SELECT id, username, role, created_at FROM users
		 WHERE role = $1
		 ORDER BY username`

	rows, err := r.db.QueryContext(ctx, query, string(role))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		u := &models.User{}
		var roleName string
		if err := rows.Scan(&u.ID, &u.UserName, &roleName, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		u.Role = models.Role(roleName)
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
