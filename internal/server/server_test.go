package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/zeta/internal/cryptoutil"
	"github.com/sage-x-project/zeta/internal/envelope"
	"github.com/sage-x-project/zeta/internal/logger"
	"github.com/sage-x-project/zeta/internal/noncestore/memory"
	"github.com/sage-x-project/zeta/internal/permissions"
	"github.com/sage-x-project/zeta/internal/storage/storagetest"
)

// testHarness wires a Server against the in-memory fakes and exposes it
// through an httptest.Server, mirroring how cmd/zeta-ctl's demo command
// drives a live server over HTTP rather than calling handlers directly.
type testHarness struct {
	t      *testing.T
	ts     *httptest.Server
	events *storagetest.EventStore
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	signer, err := cryptoutil.GenerateSigner(2048)
	require.NoError(t, err)

	events := storagetest.NewEventStore()
	tickets := storagetest.NewTicketStore(events)
	perms := storagetest.NewPermissionsStore(events)
	nonces := memory.New(0)
	t.Cleanup(func() { _ = nonces.Close() })

	log := logger.NewLogger(io.Discard, logger.ErrorLevel)

	srv := New(events, tickets, perms, nonces, signer, log, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testHarness{t: t, ts: ts, events: events}
}

// principal is a signing identity a test drives requests as.
type principal struct {
	signer *cryptoutil.Signer
	pubKey string
}

func newPrincipal(t *testing.T) principal {
	t.Helper()
	signer, err := cryptoutil.GenerateSigner(2048)
	require.NoError(t, err)
	pk, err := signer.PublicPEM()
	require.NoError(t, err)
	return principal{signer: signer, pubKey: pk}
}

// call posts content signed by p to path and decodes the signed response
// into respContent, returning the raw HTTP status and, on an error
// response, the decoded detail string.
func call[Req, Resp any](t *testing.T, h *testHarness, p principal, path string, content Req) (int, Resp, string) {
	t.Helper()

	auth, err := envelope.Load(content, p.signer)
	require.NoError(t, err)

	body, err := json.Marshal(auth)
	require.NoError(t, err)

	resp, err := http.Post(h.ts.URL+path, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var zero Resp
	if resp.StatusCode != http.StatusOK {
		var eb errorBody
		require.NoError(t, json.Unmarshal(raw, &eb))
		return resp.StatusCode, zero, eb.Detail
	}

	var respAuth envelope.Auth[Resp]
	require.NoError(t, json.Unmarshal(raw, &respAuth))
	return resp.StatusCode, respAuth.Unwrap(), ""
}

func createEvent(t *testing.T, h *testHarness, owner principal, tickets, transferLimit int, restricted, enableFlags bool) string {
	t.Helper()
	status, resp, detail := call[createRequest, createResponse](t, h, owner, "/create", createRequest{
		Event: eventInput{
			Name:          "ZETA Night",
			Description:   "a show",
			Tickets:       tickets,
			Restricted:    restricted,
			TransferLimit: transferLimit,
			EnableFlags:   enableFlags,
		},
	})
	require.Equal(t, http.StatusOK, status, detail)
	require.NotEmpty(t, resp.EventID)
	return resp.EventID
}

func register(t *testing.T, h *testHarness, holder principal, eventID string) string {
	t.Helper()
	status, resp, detail := call[registerRequest, registerResponse](t, h, holder, "/register", registerRequest{EventID: eventID})
	require.Equal(t, http.StatusOK, status, detail)
	require.NotEmpty(t, resp.Ticket)
	return resp.Ticket
}

func TestCreateRegisterRedeemValidate(t *testing.T) {
	h := newHarness(t)
	owner := newPrincipal(t)
	holder := newPrincipal(t)

	eventID := createEvent(t, h, owner, 10, 2, false, false)
	ticket := register(t, h, holder, eventID)

	status, vResp, detail := call[validateRequest, validateResponse](t, h, owner, "/validate", validateRequest{
		EventID:        eventID,
		Ticket:         ticket,
		CheckPublicKey: holder.pubKey,
	})
	require.Equal(t, http.StatusOK, status, detail)
	assert.Equal(t, 1, vResp.TicketNumber)
	assert.False(t, vResp.Redeemed)

	status, rResp, detail := call[redeemRequest, successResponse](t, h, holder, "/redeem", redeemRequest{
		EventID: eventID,
		Ticket:  ticket,
	})
	require.Equal(t, http.StatusOK, status, detail)
	assert.True(t, rResp.Success)

	status, vResp, detail = call[validateRequest, validateResponse](t, h, holder, "/validate", validateRequest{
		EventID:        eventID,
		Ticket:         ticket,
		CheckPublicKey: holder.pubKey,
	})
	require.Equal(t, http.StatusOK, status, detail)
	assert.True(t, vResp.Redeemed)
	require.NotNil(t, vResp.Stamped)
	assert.False(t, *vResp.Stamped)
}

// TestRedeemTwiceIsRejected covers spec.md §8's double-redemption invariant.
func TestRedeemTwiceIsRejected(t *testing.T) {
	h := newHarness(t)
	owner := newPrincipal(t)
	holder := newPrincipal(t)

	eventID := createEvent(t, h, owner, 10, 2, false, false)
	ticket := register(t, h, holder, eventID)

	status, _, _ := call[redeemRequest, successResponse](t, h, holder, "/redeem", redeemRequest{EventID: eventID, Ticket: ticket})
	require.Equal(t, http.StatusOK, status)

	status, _, detail := call[redeemRequest, successResponse](t, h, holder, "/redeem", redeemRequest{EventID: eventID, Ticket: ticket})
	assert.Equal(t, http.StatusConflict, status, detail)
}

// TestStampRequiresRedeemFirst covers spec.md §8's stamp-after-redeem invariant.
func TestStampRequiresRedeemFirst(t *testing.T) {
	h := newHarness(t)
	owner := newPrincipal(t)
	holder := newPrincipal(t)

	eventID := createEvent(t, h, owner, 10, 2, false, false)
	ticket := register(t, h, holder, eventID)

	status, _, detail := call[validateRequest, validateResponse](t, h, owner, "/validate", validateRequest{
		EventID:        eventID,
		Ticket:         ticket,
		CheckPublicKey: holder.pubKey,
		Stamp:          true,
	})
	assert.Equal(t, http.StatusConflict, status, detail)
}

// TestTransferSupersedesOldTicket covers spec.md §8's scenario where a
// transferred-away ticket string can no longer be redeemed by the old
// holder, since Reissue bumps the stored version past what the old packed
// ticket carries.
func TestTransferSupersedesOldTicket(t *testing.T) {
	h := newHarness(t)
	owner := newPrincipal(t)
	holderA := newPrincipal(t)
	holderB := newPrincipal(t)

	eventID := createEvent(t, h, owner, 10, 2, false, false)
	oldTicket := register(t, h, holderA, eventID)

	status, tResp, detail := call[transferRequest, transferResponse](t, h, holderB, "/transfer", transferRequest{
		EventID: eventID,
		Transfer: mustLoad(t, holderA.signer, transferContent{
			Ticket:            oldTicket,
			TransferPublicKey: holderB.pubKey,
		}),
	})
	require.Equal(t, http.StatusOK, status, detail)
	newTicket := tResp.Ticket
	require.NotEmpty(t, newTicket)
	assert.NotEqual(t, oldTicket, newTicket)

	status, _, detail = call[redeemRequest, successResponse](t, h, holderA, "/redeem", redeemRequest{EventID: eventID, Ticket: oldTicket})
	assert.Equal(t, http.StatusConflict, status, detail)

	status, _, detail = call[redeemRequest, successResponse](t, h, holderB, "/redeem", redeemRequest{EventID: eventID, Ticket: newTicket})
	require.Equal(t, http.StatusOK, status, detail)
}

// TestDuplicateRequestIsReplayRejected covers spec.md §4.1/§4.2's nonce
// replay defense: resubmitting the exact same signed envelope a second
// time must be rejected even though the first call already succeeded.
func TestDuplicateRequestIsReplayRejected(t *testing.T) {
	h := newHarness(t)
	owner := newPrincipal(t)

	content := createRequest{Event: eventInput{Name: "n", Description: "d", Tickets: 5, TransferLimit: 1}}
	auth, err := envelope.Load(content, owner.signer)
	require.NoError(t, err)
	body, err := json.Marshal(auth)
	require.NoError(t, err)

	resp1, err := http.Post(h.ts.URL+"/create", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp1.Body.Close()
	assert.Equal(t, http.StatusOK, resp1.StatusCode)

	resp2, err := http.Post(h.ts.URL+"/create", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusConflict, resp2.StatusCode)
}

// TestRestrictedEventRequiresVerification covers spec.md §4.6.3: a
// restricted event rejects registration without an authorization block,
// and accepts one signed by a principal holding authorize_registration.
func TestRestrictedEventRequiresVerification(t *testing.T) {
	h := newHarness(t)
	owner := newPrincipal(t)
	registrar := newPrincipal(t)
	holder := newPrincipal(t)

	eventID := createEvent(t, h, owner, 10, 2, true, false)

	status, _, detail := call[registerRequest, registerResponse](t, h, holder, "/register", registerRequest{EventID: eventID})
	assert.Equal(t, http.StatusForbidden, status, detail)

	status, _, detail = call[permissionsRequest, permissions.Permissions](t, h, owner, "/permissions", permissionsRequest{
		EventID:         eventID,
		TargetPublicKey: registrar.pubKey,
		Permissions:     &permissions.Permissions{AuthorizeRegistration: true},
	})
	require.Equal(t, http.StatusOK, status, detail)

	verified := mustLoad(t, registrar.signer, verification{
		EventID:   eventID,
		PublicKey: holder.pubKey,
	})
	status, rResp, detail := call[registerRequest, registerResponse](t, h, holder, "/register", registerRequest{
		EventID:      eventID,
		Verification: &verified,
	})
	require.Equal(t, http.StatusOK, status, detail)
	assert.NotEmpty(t, rResp.Ticket)
}

// TestRegisterCarriesObjectMetadata covers spec.md §3's "metadata
// (arbitrary JSON value)": a non-string metadata value supplied on
// registration must come back unchanged from /validate, not merely
// round-trip when it happens to be a string.
func TestRegisterCarriesObjectMetadata(t *testing.T) {
	h := newHarness(t)
	owner := newPrincipal(t)
	holder := newPrincipal(t)

	eventID := createEvent(t, h, owner, 10, 2, true, false)

	verified := mustLoad(t, owner.signer, verification{
		EventID:   eventID,
		PublicKey: holder.pubKey,
		Metadata:  json.RawMessage(`{"seat":"A1","vip":true}`),
	})
	status, rResp, detail := call[registerRequest, registerResponse](t, h, holder, "/register", registerRequest{
		EventID:      eventID,
		Verification: &verified,
	})
	require.Equal(t, http.StatusOK, status, detail)

	status, vResp, detail := call[validateRequest, validateResponse](t, h, holder, "/validate", validateRequest{
		EventID:        eventID,
		Ticket:         rResp.Ticket,
		CheckPublicKey: holder.pubKey,
	})
	require.Equal(t, http.StatusOK, status, detail)
	assert.JSONEq(t, `{"seat":"A1","vip":true}`, string(vResp.Metadata))
}

// TestSoldOutEventRejectsRegistration covers spec.md §4.4's issued<=tickets
// invariant surfaced as a 409 once every slot is taken.
func TestSoldOutEventRejectsRegistration(t *testing.T) {
	h := newHarness(t)
	owner := newPrincipal(t)

	eventID := createEvent(t, h, owner, 1, 1, false, false)
	register(t, h, newPrincipal(t), eventID)

	status, _, detail := call[registerRequest, registerResponse](t, h, newPrincipal(t), "/register", registerRequest{EventID: eventID})
	assert.Equal(t, http.StatusConflict, status, detail)
}

// TestTamperedTicketIsRejected covers spec.md §4.7's unseal authentication
// check: flipping bytes in a packed ticket must fail closed.
func TestTamperedTicketIsRejected(t *testing.T) {
	h := newHarness(t)
	owner := newPrincipal(t)
	holder := newPrincipal(t)

	eventID := createEvent(t, h, owner, 10, 2, false, false)
	tk := register(t, h, holder, eventID)
	tampered := tk[:len(tk)-4] + "zzzz"

	status, _, detail := call[redeemRequest, successResponse](t, h, holder, "/redeem", redeemRequest{EventID: eventID, Ticket: tampered})
	assert.Equal(t, http.StatusForbidden, status, detail)
}

// TestFlagVisibilityRules covers spec.md §4.6.8: a non-public flag is
// hidden from callers without see_ticket_flag, and ticket_number is
// externally 1-indexed.
func TestFlagVisibilityRules(t *testing.T) {
	h := newHarness(t)
	owner := newPrincipal(t)
	holder := newPrincipal(t)
	stranger := newPrincipal(t)

	eventID := createEvent(t, h, owner, 10, 2, false, true)
	register(t, h, holder, eventID)

	value := 7
	status, fResp, detail := call[flagRequest, flagResponse](t, h, owner, "/flag", flagRequest{
		EventID:      eventID,
		TicketNumber: 1,
		Value:        &value,
	})
	require.Equal(t, http.StatusOK, status, detail)
	assert.Equal(t, 7, fResp.Value)
	assert.False(t, fResp.Public)

	status, _, detail = call[flagRequest, flagResponse](t, h, stranger, "/flag", flagRequest{
		EventID:      eventID,
		TicketNumber: 1,
	})
	assert.Equal(t, http.StatusForbidden, status, detail)

	yes := true
	status, _, detail = call[flagRequest, flagResponse](t, h, owner, "/flag", flagRequest{
		EventID:      eventID,
		TicketNumber: 1,
		Public:       &yes,
	})
	require.Equal(t, http.StatusOK, status, detail)

	status, fResp, detail = call[flagRequest, flagResponse](t, h, stranger, "/flag", flagRequest{
		EventID:      eventID,
		TicketNumber: 1,
	})
	require.Equal(t, http.StatusOK, status, detail)
	assert.Equal(t, 7, fResp.Value)
	assert.True(t, fResp.Public)
}

// TestCancelThenDeleteRequireOwner covers spec.md §4.6.7/§4.6.10's gating:
// a stranger can neither cancel (no cancel_ticket, which the owner holds
// implicitly) nor delete (owner-only), while the owner can do both.
func TestCancelThenDeleteRequireOwner(t *testing.T) {
	h := newHarness(t)
	owner := newPrincipal(t)
	holder := newPrincipal(t)
	stranger := newPrincipal(t)

	eventID := createEvent(t, h, owner, 10, 2, false, false)
	register(t, h, holder, eventID)

	status, _, detail := call[cancelRequest, successResponse](t, h, stranger, "/cancel", cancelRequest{EventID: eventID, TicketNumber: 1})
	assert.Equal(t, http.StatusForbidden, status, detail)

	status, _, detail = call[cancelRequest, successResponse](t, h, owner, "/cancel", cancelRequest{EventID: eventID, TicketNumber: 1})
	require.Equal(t, http.StatusOK, status, detail)

	status, _, detail = call[deleteRequest, successResponse](t, h, stranger, "/delete", deleteRequest{EventID: eventID})
	assert.Equal(t, http.StatusForbidden, status, detail)

	status, _, detail = call[deleteRequest, successResponse](t, h, owner, "/delete", deleteRequest{EventID: eventID})
	require.Equal(t, http.StatusOK, status, detail)

	status, _, detail = call[searchRequest, searchResponse](t, h, owner, "/search", searchRequest{Text: eventID, Mode: "id"})
	assert.Equal(t, http.StatusNotFound, status, detail)
}

// TestSearchByTextFindsEvent covers spec.md §4.6.2's bounded substring mode.
func TestSearchByTextFindsEvent(t *testing.T) {
	h := newHarness(t)
	owner := newPrincipal(t)
	createEvent(t, h, owner, 10, 1, false, false)

	status, sResp, detail := call[searchRequest, searchResponse](t, h, owner, "/search", searchRequest{Text: "zeta", Mode: "text", Limit: 5})
	require.Equal(t, http.StatusOK, status, detail)
	assert.Len(t, sResp.Events, 1)
}

// mustLoad signs content and fails the test on error, used where the
// Auth[T] value itself (not the HTTP round trip) is an outer request field.
func mustLoad[T any](t *testing.T, signer *cryptoutil.Signer, content T) envelope.Auth[T] {
	t.Helper()
	auth, err := envelope.Load(content, signer)
	require.NoError(t, err)
	return auth
}
