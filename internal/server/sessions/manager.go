package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/educhain/internal/common"
	"github.com/dmitrijs2005/educhain/internal/server/models"
)

// Manager issues, resolves and revokes sessions. The token handed to the
// client is a signed pointer to a Store record.
type Manager struct {
	store  Store
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(store Store, secret []byte, ttl time.Duration) *Manager {
	return &Manager{store: store, secret: secret, ttl: ttl, now: time.Now}
}

// TTL is the lifetime given to new sessions.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue creates a session for identity and returns its token.
func (m *Manager) Issue(ctx context.Context, identity models.Identity) (string, *models.Session, error) {
	id, err := common.MakeRandHexString(16)
	if err != nil {
		return "", nil, fmt.Errorf("session id: %w", err)
	}

	now := m.now()
	s := &models.Session{
		ID:        id,
		UserID:    identity.UserID,
		UserName:  identity.UserName,
		Role:      identity.Role,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	token, err := GenerateToken(id, m.secret, m.ttl)
	if err != nil {
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}
	if err := m.store.Save(ctx, s); err != nil {
		return "", nil, fmt.Errorf("save session: %w", err)
	}
	return token, s, nil
}

// Resolve maps a token to its live session. Any failure to do so is
// reported as common.ErrorAuth.
func (m *Manager) Resolve(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: not logged in", common.ErrorAuth)
	}

	id, err := GetSessionIDFromToken(token, m.secret)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: session expired", common.ErrorAuth)
		}
		return nil, fmt.Errorf("%w: invalid session", common.ErrorAuth)
	}

	s, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: session expired", common.ErrorAuth)
		}
		return nil, err
	}
	if s.Expired(m.now()) {
		_ = m.store.Delete(ctx, id)
		return nil, fmt.Errorf("%w: session expired", common.ErrorAuth)
	}
	return s, nil
}

// Revoke drops the session behind token. Unknown, expired or malformed
// tokens are ignored.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	id, err := sessionIDIgnoringExpiry(token, m.secret)
	if err != nil {
		return nil
	}
	return m.store.Delete(ctx, id)
}
