package permissions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/zeta/internal/apierr"
	"github.com/sage-x-project/zeta/internal/cryptoutil"
	"github.com/sage-x-project/zeta/internal/event"
	"github.com/sage-x-project/zeta/internal/storage/storagetest"
)

func setupEvent(t *testing.T, ownerPublicKey string) (context.Context, *storagetest.EventStore, *storagetest.PermissionsStore, string) {
	t.Helper()
	ctx := context.Background()
	events := storagetest.NewEventStore()
	perms := storagetest.NewPermissionsStore(events)

	e, err := event.New("name", "desc", 10, false, 1, false)
	require.NoError(t, err)
	require.NoError(t, e.Create(ctx, events, ownerPublicKey))

	return ctx, events, perms, e.ID
}

func TestOwnerGetsEveryCapabilityImplicitly(t *testing.T) {
	ctx, _, perms, eventID := setupEvent(t, "owner-key")

	p, err := Load(ctx, perms, eventID, "owner-key")
	require.NoError(t, err)
	assert.True(t, p.IsAuthorized(CancelTicket))
	assert.True(t, p.IsAuthorized(StampTicket))
	assert.True(t, p.IsAuthorized(AuthorizeRegistration))
}

func TestNonOwnerWithNoRowGetsAllFalse(t *testing.T) {
	ctx, _, perms, eventID := setupEvent(t, "owner-key")

	p, err := Load(ctx, perms, eventID, "stranger-key")
	require.NoError(t, err)
	assert.False(t, p.IsAuthorized(CancelTicket))
	assert.False(t, p.IsAuthorized(StampTicket))
}

func TestUpdateThenLoadRoundTrips(t *testing.T) {
	ctx, _, perms, eventID := setupEvent(t, "owner-key")

	grant := Permissions{CancelTicket: true, SeeTicketFlag: true}
	require.NoError(t, Update(ctx, perms, eventID, "holder-key", grant))

	loaded, err := Load(ctx, perms, eventID, "holder-key")
	require.NoError(t, err)
	assert.True(t, loaded.IsAuthorized(CancelTicket))
	assert.True(t, loaded.IsAuthorized(SeeTicketFlag))
	assert.False(t, loaded.IsAuthorized(StampTicket))
}

func TestUpdateWithAllFalseDeletesRow(t *testing.T) {
	ctx, _, perms, eventID := setupEvent(t, "owner-key")

	require.NoError(t, Update(ctx, perms, eventID, "holder-key", Permissions{CancelTicket: true}))
	require.NoError(t, Update(ctx, perms, eventID, "holder-key", Permissions{}))

	fields, err := perms.LoadPermissions(ctx, eventID, cryptoutil.SHA256Bytes([]byte("holder-key")))
	require.NoError(t, err)
	assert.Nil(t, fields)
}

func TestIsOwner(t *testing.T) {
	ctx, events, _, eventID := setupEvent(t, "owner-key")

	isOwner, err := IsOwner(ctx, events, eventID, "owner-key")
	require.NoError(t, err)
	assert.True(t, isOwner)

	isOwner, err = IsOwner(ctx, events, eventID, "someone-else")
	require.NoError(t, err)
	assert.False(t, isOwner)

	_, err = IsOwner(ctx, events, "missing-event", "owner-key")
	de, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.NotFound, de.Kind)
}
