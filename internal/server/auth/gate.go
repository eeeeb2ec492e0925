// Package auth implements the session gate in front of every portal
// operation: registration, login with a human-verification challenge,
// logout, session checks and the capability policy.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/educhain/internal/common"
	"github.com/dmitrijs2005/educhain/internal/logging"
	"github.com/dmitrijs2005/educhain/internal/server/challenge"
	"github.com/dmitrijs2005/educhain/internal/server/models"
	"github.com/dmitrijs2005/educhain/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/educhain/internal/server/sessions"
	"golang.org/x/crypto/bcrypt"
)

// ChallengeVerifier checks a human-verification token with its provider.
type ChallengeVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

// Credentials is what a caller presents to Login and Register.
type Credentials struct {
	UserName       string
	Password       string
	ChallengeToken string
	RemoteIP       string
}

// Gate authenticates callers and re-derives their identity per request.
type Gate struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	challenge   ChallengeVerifier
	sessions    *sessions.Manager
	log         logging.Logger
	bcryptCost  int
	// dummyHash is compared against when the user does not exist so that
	// unknown usernames cost as much as wrong passwords.
	dummyHash []byte
}

func NewGate(db *sql.DB, m repomanager.RepositoryManager, challenge ChallengeVerifier, sm *sessions.Manager, log logging.Logger) *Gate {
	g := &Gate{
		db:          db,
		repomanager: m,
		challenge:   challenge,
		sessions:    sm,
		log:         log.With("module", "auth"),
		bcryptCost:  bcrypt.DefaultCost,
	}
	g.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("educhain-dummy-password"), g.bcryptCost)
	return g
}

// HashPassword returns the bcrypt hash used for stored credentials.
func HashPassword(password string, cost int) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: password is too long", common.ErrorValidation)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// Register creates an account. It does not log the user in.
func (g *Gate) Register(ctx context.Context, c Credentials, role string) (*models.UserSummary, error) {
	if err := g.checkChallenge(ctx, c); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorValidation, err)
	}

	userName := strings.TrimSpace(c.UserName)
	if userName == "" || c.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", common.ErrorValidation)
	}
	r, ok := models.ParseRole(role)
	if !ok {
		return nil, fmt.Errorf("%w: unknown role %q", common.ErrorValidation, role)
	}

	hash, err := HashPassword(c.Password, g.bcryptCost)
	if err != nil {
		return nil, err
	}

	u, err := g.repomanager.Users(g.db).Create(ctx, &models.User{UserName: userName, PasswordHash: hash, Role: r})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, fmt.Errorf("%w: username already exists", common.ErrorValidation)
		}
		g.log.Error(ctx, "error creating user", "error", err)
		return nil, common.ErrorInternal
	}

	g.log.Info(ctx, "user registered", "user_id", u.ID, "role", u.Role)
	summary := u.Summary()
	return &summary, nil
}

// Login checks the challenge first and only then the credentials. On
// success it returns a session token and the stored identity.
func (g *Gate) Login(ctx context.Context, c Credentials) (string, models.Identity, error) {
	if err := g.checkChallenge(ctx, c); err != nil {
		return "", models.Identity{}, fmt.Errorf("%w: %w", common.ErrorAuth, err)
	}

	user, err := g.repomanager.Users(g.db).GetUserByLogin(ctx, strings.TrimSpace(c.UserName))
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			g.log.Error(ctx, "error loading user", "error", err)
			return "", models.Identity{}, common.ErrorInternal
		}
		_ = bcrypt.CompareHashAndPassword(g.dummyHash, []byte(c.Password))
		return "", models.Identity{}, errInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(c.Password)); err != nil {
		return "", models.Identity{}, errInvalidCredentials
	}

	identity := models.Identity{UserID: user.ID, UserName: user.UserName, Role: user.Role}
	token, _, err := g.sessions.Issue(ctx, identity)
	if err != nil {
		g.log.Error(ctx, "error issuing session", "user_id", user.ID, "error", err)
		return "", models.Identity{}, common.ErrorInternal
	}

	g.log.Info(ctx, "user logged in", "user_id", user.ID, "role", user.Role)
	return token, identity, nil
}

// Logout tears down the session behind token. Calling it without a live
// session is not an error.
// SessionTTL is the lifetime of sessions issued at login.
func (g *Gate) SessionTTL() time.Duration { return g.sessions.TTL() }

func (g *Gate) Logout(ctx context.Context, token string) error {
	if err := g.sessions.Revoke(ctx, token); err != nil {
		g.log.Error(ctx, "error revoking session", "error", err)
		return common.ErrorInternal
	}
	return nil
}

// CheckAuth resolves token to the identity recorded in the server-held session.
func (g *Gate) CheckAuth(ctx context.Context, token string) (models.Identity, error) {
	s, err := g.sessions.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorAuth) {
			return models.Identity{}, err
		}
		g.log.Error(ctx, "error resolving session", "error", err)
		return models.Identity{}, common.ErrorInternal
	}
	return models.Identity{UserID: s.UserID, UserName: s.UserName, Role: s.Role}, nil
}

// CurrentUser returns the stored account behind the session.
func (g *Gate) CurrentUser(ctx context.Context, token string) (*models.UserSummary, error) {
	identity, err := g.CheckAuth(ctx, token)
	if err != nil {
		return nil, err
	}
	u, err := g.repomanager.Users(g.db).GetByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: account no longer exists", common.ErrorAuth)
		}
		g.log.Error(ctx, "error loading user", "user_id", identity.UserID, "error", err)
		return nil, common.ErrorInternal
	}
	summary := u.Summary()
	return &summary, nil
}

var (
	errInvalidCredentials = fmt.Errorf("%w: invalid username or password", common.ErrorAuth)
	errChallengeMissing   = errors.New("challenge verification is required")
	errChallengeRejected  = errors.New("challenge verification failed, please try again")
)

func (g *Gate) checkChallenge(ctx context.Context, c Credentials) error {
	if strings.TrimSpace(c.ChallengeToken) == "" {
		return errChallengeMissing
	}
	ok, err := g.challenge.Verify(ctx, c.ChallengeToken, c.RemoteIP)
	if err != nil {
		if challenge.IsRejected(err) {
			g.log.Info(ctx, "challenge rejected by provider", "error", err)
		} else {
			g.log.Warn(ctx, "challenge provider error", "error", err)
		}
		return errChallengeRejected
	}
	if !ok {
		return errChallengeRejected
	}
	return nil
}
