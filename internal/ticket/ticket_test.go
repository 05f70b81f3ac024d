package ticket

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/zeta/internal/apierr"
	"github.com/sage-x-project/zeta/internal/event"
	"github.com/sage-x-project/zeta/internal/storage/storagetest"
)

func setupEvent(t *testing.T, transferLimit int) (context.Context, *storagetest.EventStore, *storagetest.TicketStore, string) {
	t.Helper()
	ctx := context.Background()
	events := storagetest.NewEventStore()
	tickets := storagetest.NewTicketStore(events)

	e, err := event.New("name", "desc", 5, false, transferLimit, false)
	require.NoError(t, err)
	require.NoError(t, e.Create(ctx, events, "owner-key"))

	return ctx, events, tickets, e.ID
}

func TestRegisterIssuesVersionZero(t *testing.T) {
	ctx, events, tickets, eventID := setupEvent(t, 2)

	tk, err := Register(ctx, tickets, events, eventID, "holder-key", nil, nil, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, tk.Number)
	assert.Equal(t, 0, tk.Version)
	assert.Equal(t, 2, tk.TransferLimit)
}

func TestRegisterClampsOutOfRangeOverride(t *testing.T) {
	ctx, events, tickets, eventID := setupEvent(t, 2)

	over := 100
	tk, err := Register(ctx, tickets, events, eventID, "holder-key", nil, &over, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, tk.TransferLimit)

	under := -5
	tk, err = Register(ctx, tickets, events, eventID, "holder-key", nil, &under, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, tk.TransferLimit)
}

func TestRegisterFailsWhenSoldOut(t *testing.T) {
	ctx, events, tickets, eventID := setupEvent(t, 2)
	events.Bump(eventID, 5, 5)

	_, err := Register(ctx, tickets, events, eventID, "holder-key", nil, nil, 2)
	de, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.Conflict, de.Kind)
}

func TestPackLoadRoundTrip(t *testing.T) {
	ctx, events, tickets, eventID := setupEvent(t, 2)

	tk, err := Register(ctx, tickets, events, eventID, "holder-key", nil, nil, 2)
	require.NoError(t, err)

	packed, err := tk.Pack()
	require.NoError(t, err)

	loaded, err := Load(ctx, tickets, events, eventID, "holder-key", packed)
	require.NoError(t, err)
	assert.Equal(t, tk.Number, loaded.Number)
	assert.Equal(t, tk.Version, loaded.Version)
}

// TestPackLoadRoundTripsObjectMetadata covers spec.md §3's "metadata
// (arbitrary JSON value)": a non-string, nested value must survive
// Pack/Load unchanged, and the inner hash must be stable regardless of
// the field order the caller happened to serialize the object in.
func TestPackLoadRoundTripsObjectMetadata(t *testing.T) {
	ctx, events, tickets, eventID := setupEvent(t, 2)

	metadata := json.RawMessage(`{"seat":"A1","notes":["vip","aisle"]}`)
	tk, err := Register(ctx, tickets, events, eventID, "holder-key", metadata, nil, 2)
	require.NoError(t, err)

	packed, err := tk.Pack()
	require.NoError(t, err)

	loaded, err := Load(ctx, tickets, events, eventID, "holder-key", packed)
	require.NoError(t, err)
	assert.JSONEq(t, string(metadata), string(loaded.Metadata))
}

func TestLoadRejectsWrongHolder(t *testing.T) {
	ctx, events, tickets, eventID := setupEvent(t, 2)

	tk, err := Register(ctx, tickets, events, eventID, "holder-key", nil, nil, 2)
	require.NoError(t, err)
	packed, err := tk.Pack()
	require.NoError(t, err)

	_, err = Load(ctx, tickets, events, eventID, "someone-else", packed)
	de, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.Validation, de.Kind)
}

func TestLoadRejectsTamperedTicket(t *testing.T) {
	ctx, events, tickets, eventID := setupEvent(t, 2)

	tk, err := Register(ctx, tickets, events, eventID, "holder-key", nil, nil, 2)
	require.NoError(t, err)
	packed, err := tk.Pack()
	require.NoError(t, err)

	tampered := packed[:len(packed)-4] + "abcd"
	_, err = Load(ctx, tickets, events, eventID, "holder-key", tampered)
	de, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.PermissionDenied, de.Kind)
}

func TestReissueAdvancesVersionAndRejectsAtLimit(t *testing.T) {
	ctx, events, tickets, eventID := setupEvent(t, 1)

	tk, err := Register(ctx, tickets, events, eventID, "holder-a", nil, nil, 1)
	require.NoError(t, err)

	reissued, err := Reissue(ctx, tickets, events, eventID, "holder-b", tk.Number, tk.Version, tk.TransferLimit, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, reissued.Version)

	_, err = Reissue(ctx, tickets, events, eventID, "holder-c", reissued.Number, reissued.Version, reissued.TransferLimit, nil)
	de, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.Conflict, de.Kind)
}

func TestReissueRejectsStaleVersion(t *testing.T) {
	ctx, events, tickets, eventID := setupEvent(t, 3)

	tk, err := Register(ctx, tickets, events, eventID, "holder-a", nil, nil, 3)
	require.NoError(t, err)
	_, err = Reissue(ctx, tickets, events, eventID, "holder-b", tk.Number, tk.Version, tk.TransferLimit, nil)
	require.NoError(t, err)

	// tk.Version (0) is now stale; the stored byte has advanced to 1.
	_, err = Reissue(ctx, tickets, events, eventID, "holder-c", tk.Number, tk.Version, tk.TransferLimit, nil)
	de, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.Conflict, de.Kind)
}

func TestRedeemThenVerifyThenStamp(t *testing.T) {
	ctx, events, tickets, eventID := setupEvent(t, 2)

	tk, err := Register(ctx, tickets, events, eventID, "holder-key", nil, nil, 2)
	require.NoError(t, err)

	redeemed, stamped, err := tk.Verify(ctx, tickets)
	require.NoError(t, err)
	assert.False(t, redeemed)
	assert.False(t, stamped)

	require.NoError(t, tk.Redeem(ctx, tickets))

	redeemed, stamped, err = tk.Verify(ctx, tickets)
	require.NoError(t, err)
	assert.True(t, redeemed)
	assert.False(t, stamped)

	ok1, ok2, err := tk.Stamp(ctx, tickets)
	require.NoError(t, err)
	assert.True(t, ok1)
	assert.True(t, ok2)

	_, _, err = tk.Stamp(ctx, tickets)
	de, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.Conflict, de.Kind)
}

func TestStampBeforeRedeemFails(t *testing.T) {
	ctx, events, tickets, eventID := setupEvent(t, 2)

	tk, err := Register(ctx, tickets, events, eventID, "holder-key", nil, nil, 2)
	require.NoError(t, err)

	_, _, err = tk.Stamp(ctx, tickets)
	de, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.Conflict, de.Kind)
}

func TestRedeemTwiceConflicts(t *testing.T) {
	ctx, events, tickets, eventID := setupEvent(t, 2)

	tk, err := Register(ctx, tickets, events, eventID, "holder-key", nil, nil, 2)
	require.NoError(t, err)
	require.NoError(t, tk.Redeem(ctx, tickets))

	err = tk.Redeem(ctx, tickets)
	de, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.Conflict, de.Kind)
}

func TestCancelIsTerminalAndNeverFreesSlot(t *testing.T) {
	ctx, events, tickets, eventID := setupEvent(t, 2)

	tk, err := Register(ctx, tickets, events, eventID, "holder-key", nil, nil, 2)
	require.NoError(t, err)
	require.NoError(t, tk.Cancel(ctx, tickets))

	err = tk.Redeem(ctx, tickets)
	de, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.Conflict, de.Kind)

	rec, err := events.Load(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Issued)
}

func TestFlagRequiresEventFlagsEnabled(t *testing.T) {
	ctx, events, tickets, eventID := setupEvent(t, 2)
	tk, err := Register(ctx, tickets, events, eventID, "holder-key", nil, nil, 2)
	require.NoError(t, err)

	_, _, err = tk.GetFlag(ctx, tickets)
	de, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.Conflict, de.Kind)
}

func TestUpdateFlagSetsDataAndVisibilityIndependently(t *testing.T) {
	ctx, events, tickets, eventID := setupEvent(t, 2)
	tickets.EnableFlags(eventID)

	tk, err := Register(ctx, tickets, events, eventID, "holder-key", nil, nil, 2)
	require.NoError(t, err)

	value := 5
	v, public, err := tk.UpdateFlag(ctx, tickets, &value, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, v)
	assert.False(t, public)

	yes := true
	v, public, err = tk.UpdateFlag(ctx, tickets, nil, &yes)
	require.NoError(t, err)
	assert.Equal(t, 5, v)
	assert.True(t, public)

	v, public, err = tk.GetFlag(ctx, tickets)
	require.NoError(t, err)
	assert.Equal(t, 5, v)
	assert.True(t, public)
}

func TestUpdateFlagRejectsOutOfRangeValue(t *testing.T) {
	ctx, events, tickets, eventID := setupEvent(t, 2)
	tickets.EnableFlags(eventID)

	tk, err := Register(ctx, tickets, events, eventID, "holder-key", nil, nil, 2)
	require.NoError(t, err)

	bad := 200
	_, _, err = tk.UpdateFlag(ctx, tickets, &bad, nil)
	de, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.Validation, de.Kind)
}

func TestClampTransferLimit(t *testing.T) {
	assert.Equal(t, 0, clampTransferLimit(-1, 10))
	assert.Equal(t, 10, clampTransferLimit(20, 10))
	assert.Equal(t, 5, clampTransferLimit(5, 10))
}
