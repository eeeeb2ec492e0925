package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/dmitrijs2005/educhain/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKey(t *testing.T) {
	k1 := NewKey("u-1")
	k2 := NewKey("u-1")
	assert.True(t, strings.HasPrefix(k1, "documents/u-1/"))
	assert.NotEqual(t, k1, k2)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	data := []byte("hello")
	require.NoError(t, m.Put(ctx, "k", data, "text/plain"))
	data[0] = 'j'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got, "store must copy on put")

	got[0] = 'y'
	again, _ := m.Get(ctx, "k")
	assert.Equal(t, []byte("hello"), again, "store must copy on get")
	assert.Equal(t, 1, m.Len())

	require.NoError(t, m.Delete(ctx, "k"))
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, common.ErrorStorage)
	assert.NoError(t, m.Delete(ctx, "k"))
}
