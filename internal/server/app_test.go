package server

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/educhain/internal/logging"
	"github.com/dmitrijs2005/educhain/internal/server/attestation"
	"github.com/dmitrijs2005/educhain/internal/server/challenge"
	"github.com/dmitrijs2005/educhain/internal/server/config"
	"github.com/dmitrijs2005/educhain/internal/server/locks"
	"github.com/dmitrijs2005/educhain/internal/server/oracle"
	"github.com/dmitrijs2005/educhain/internal/server/sessions"
	"github.com/dmitrijs2005/educhain/internal/server/storage"
)

func defaults() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	return c
}

func TestNewCoordination_MemoryWithoutRedis(t *testing.T) {
	store, locker, rdb, err := newCoordination(context.Background(), defaults(), logging.Nop{})
	require.NoError(t, err)
	assert.Nil(t, rdb)
	assert.IsType(t, &sessions.MemoryStore{}, store)
	assert.IsType(t, &locks.MemoryLocker{}, locker)
}

func TestNewCoordination_BadRedisURL(t *testing.T) {
	c := defaults()
	c.RedisURL = "mysql://nope"

	_, _, _, err := newCoordination(context.Background(), c, logging.Nop{})
	assert.Error(t, err)
}

func TestNewBlobStore(t *testing.T) {
	c := defaults()
	c.StorageBackend = "memory"
	s, err := newBlobStore(context.Background(), c, logging.Nop{})
	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryStore{}, s)

	c.StorageBackend = "tape"
	_, err = newBlobStore(context.Background(), c, logging.Nop{})
	assert.ErrorContains(t, err, "tape")
}

func TestNewOracle(t *testing.T) {
	c := defaults()
	c.OracleAPIKey = ""
	assert.IsType(t, oracle.Static{}, newOracle(c, logging.Nop{}))

	c.OracleAPIKey = "key"
	assert.IsType(t, &oracle.Gemini{}, newOracle(c, logging.Nop{}))

	c.OracleEnabled = false
	assert.IsType(t, oracle.Static{}, newOracle(c, logging.Nop{}))
}

func TestNewAttester(t *testing.T) {
	c := defaults()
	assert.IsType(t, &attestation.Local{}, newAttester(c, logging.Nop{}))

	c.AttestationURL = "http://ledger"
	assert.IsType(t, &attestation.Client{}, newAttester(c, logging.Nop{}))
}

func TestNewChallenge(t *testing.T) {
	c := defaults()
	assert.IsType(t, challenge.AcceptAll{}, newChallenge(c, logging.Nop{}))

	c.ChallengeSecret = "secret"
	assert.IsType(t, &challenge.Client{}, newChallenge(c, logging.Nop{}))
}

func TestNewApp_DatabaseUnreachable(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectClose()

	orig := openDB
	openDB = func(string) (*sql.DB, error) { return db, nil }
	t.Cleanup(func() { openDB = orig })

	app, err := NewApp(context.Background(), defaults())
	assert.Nil(t, app)
	assert.ErrorContains(t, err, "db init error")
	assert.NoError(t, mock.ExpectationsWereMet())
}
