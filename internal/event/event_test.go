package event

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/zeta/internal/apierr"
	"github.com/sage-x-project/zeta/internal/storage/storagetest"
)

func TestNewValidatesTicketRange(t *testing.T) {
	_, err := New("name", "desc", 0, false, 1, false)
	require.Error(t, err)
	de, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.Validation, de.Kind)

	_, err = New("name", "desc", MaxTickets+1, false, 1, false)
	require.Error(t, err)
}

func TestNewClampsTransferLimit(t *testing.T) {
	e, err := New("name", "desc", 10, false, -5, false)
	require.NoError(t, err)
	assert.Equal(t, 0, e.TransferLimit)

	e, err = New("name", "desc", 10, false, TransferLimit+50, false)
	require.NoError(t, err)
	assert.Equal(t, TransferLimit, e.TransferLimit)
}

func TestCreateLoadSearchDelete(t *testing.T) {
	ctx := context.Background()
	events := storagetest.NewEventStore()

	e, err := New("ZETA Night", "a show", 100, false, 3, false)
	require.NoError(t, err)
	require.NoError(t, e.Create(ctx, events, "owner-pubkey"))

	loaded, err := Load(ctx, events, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.Name, loaded.Name)
	assert.Equal(t, 3, loaded.TransferLimit)

	results, err := Search(ctx, events, "night", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	require.NoError(t, Delete(ctx, events, e.ID))
	_, err = Load(ctx, events, e.ID)
	require.Error(t, err)
	de, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.NotFound, de.Kind)
}

func TestLoadMissingEventIsNotFound(t *testing.T) {
	events := storagetest.NewEventStore()
	_, err := Load(context.Background(), events, "missing")
	de, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.NotFound, de.Kind)
}

func TestGetKeyAndOwnerPublicKey(t *testing.T) {
	ctx := context.Background()
	events := storagetest.NewEventStore()
	e, err := New("name", "desc", 10, false, 1, false)
	require.NoError(t, err)
	require.NoError(t, e.Create(ctx, events, "owner-pubkey"))

	key, err := GetKey(ctx, events, e.ID)
	require.NoError(t, err)
	assert.Len(t, key, 32)

	pk, err := GetOwnerPublicKey(ctx, events, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "owner-pubkey", pk)

	_, err = GetKey(ctx, events, "missing")
	de, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.NotFound, de.Kind)
}
