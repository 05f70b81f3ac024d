// Package ticket implements spec.md §4.7's ticket lifecycle: a packed,
// encrypted ticket string a holder carries, backed by a single state byte
// (and, when an event enables flags, a single flag byte) per ticket
// number stored server-side.
//
// Grounded directly on original_source's app/data/models/ticket.py: the
// REDEEMED_BYTE/STAMPED_BYTE/CANCELED_BYTE bit layout, the _validate/
// register/reissue/load/redeem/cancel/verify/stamp/pack method set, and
// the exact condition under which each state transition is permitted are
// all carried over unchanged; the per-ticket transfer_limit override and
// flag byte support are grounded on the register/transfer/flag endpoint
// models, which spec.md §3, §4.6.3, §4.6.4 and §4.6.8 describe as part of
// the authoritative wire shape. Only the storage and crypto calls are
// adapted to internal/storage and internal/cryptoutil.
package ticket

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sage-x-project/zeta/internal/apierr"
	"github.com/sage-x-project/zeta/internal/canonical"
	"github.com/sage-x-project/zeta/internal/cryptoutil"
	"github.com/sage-x-project/zeta/internal/metrics"
	"github.com/sage-x-project/zeta/internal/storage"
)

// State byte layout: low 6 bits hold the transfer version, bit 6 marks
// redemption, bit 7 marks being stamped; a ticket is canceled iff both
// high bits are set.
const (
	RedeemedByte = 1 << 6 // 0b01000000
	StampedByte  = 1 << 7 // 0b10000000
	CanceledByte = StampedByte | RedeemedByte // 0b11000000

	// MaxTransferLimit is the highest representable version (low 6 bits
	// maxed out); a ticket at this version can no longer be reissued.
	MaxTransferLimit = RedeemedByte - 1
)

// Flag byte layout: bit 7 is the public-visibility toggle, the low 7
// bits carry caller-assigned data (spec.md §4.6.8).
const (
	PublicFlagBit = 1 << 7
	flagDataMask  = PublicFlagBit - 1
)

// Ticket is a loaded, authenticated holder ticket. Metadata is an opaque
// JSON value (spec.md §3: "schemaless, any JSON"), carried end-to-end
// without ever being interpreted by this package.
type Ticket struct {
	EventID       string
	PublicKey     string
	Number        int
	Version       int
	Metadata      json.RawMessage
	TransferLimit int
	EventKey      []byte
}

// data is the inner packed payload; its fields are hashed via
// canonical.Marshal (spec.md §4.7), not json.Marshal, so key order in
// Metadata's nested objects never affects the resulting hash.
type data struct {
	EventID       string          `json:"event_id"`
	PublicKey     string          `json:"public_key"`
	Number        int             `json:"number"`
	Version       int             `json:"version"`
	Metadata      json.RawMessage `json:"metadata"`
	TransferLimit int             `json:"transfer_limit"`
}

type verifEnvelope struct {
	Ticket data   `json:"ticket"`
	Hash   string `json:"hash"`
}

func validate(ctx context.Context, tickets storage.TicketStore, eventID string, number, version int) error {
	b, ok, err := tickets.LoadStateByte(ctx, eventID, number)
	if err != nil {
		return apierr.Wrap(apierr.Internal, "load ticket state", err)
	}
	if !ok {
		return apierr.New(apierr.NotFound, "event not found")
	}
	if b&CanceledByte == CanceledByte {
		return apierr.New(apierr.Conflict, "ticket canceled")
	}
	if b&(RedeemedByte-1) != version {
		return apierr.New(apierr.Conflict, "ticket superseded")
	}
	return nil
}

// clampTransferLimit resolves spec.md's open question on an out-of-range
// transfer_limit override: clamp into [0, eventLimit] rather than reject.
func clampTransferLimit(v, eventLimit int) int {
	if v < 0 {
		return 0
	}
	if v > eventLimit {
		return eventLimit
	}
	return v
}

// Register issues a new ticket number for eventID and returns the
// freshly issued, unpacked Ticket at version 0. transferLimit is an
// optional per-ticket override (spec.md §4.6.3); when nil the event's
// default transfer_limit applies.
func Register(ctx context.Context, tickets storage.TicketStore, events storage.EventStore, eventID, publicKey string, metadata json.RawMessage, transferLimit *int, eventTransferLimit int) (*Ticket, error) {
	number, ok, err := tickets.Issue(ctx, eventID)
	if err != nil {
		metrics.TicketTransitions.WithLabelValues("register", "error").Inc()
		return nil, apierr.Wrap(apierr.Internal, "issue ticket", err)
	}
	if !ok {
		metrics.TicketTransitions.WithLabelValues("register", "conflict").Inc()
		return nil, apierr.New(apierr.Conflict, "unable to issue ticket")
	}

	key, err := events.LoadEventKey(ctx, eventID)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "load event key", err)
	}
	if key == nil {
		return nil, apierr.New(apierr.NotFound, "event not found")
	}

	limit := eventTransferLimit
	if transferLimit != nil {
		limit = clampTransferLimit(*transferLimit, eventTransferLimit)
	}

	metrics.TicketTransitions.WithLabelValues("register", "success").Inc()
	metrics.TicketsIssued.Inc()
	metrics.GetGlobalCollector().RecordTicketIssued()

	return &Ticket{
		EventID:       eventID,
		PublicKey:     publicKey,
		Number:        number,
		Version:       0,
		Metadata:      metadata,
		TransferLimit: limit,
		EventKey:      key,
	}, nil
}

// Reissue completes a transfer: the current holder's ticket at `version`
// is advanced to version+1 and rebound to a new public key. Fails once a
// ticket has reached its own transfer_limit (spec.md §4.6.4: "old.version
// < old.transfer_limit"), which may be lower than the event default.
func Reissue(ctx context.Context, tickets storage.TicketStore, events storage.EventStore, eventID, publicKey string, number, version, transferLimit int, metadata json.RawMessage) (*Ticket, error) {
	if version >= transferLimit || version >= MaxTransferLimit {
		metrics.TicketTransitions.WithLabelValues("transfer", "conflict").Inc()
		return nil, apierr.New(apierr.Conflict, "ticket transfer limit reached")
	}

	ok, err := tickets.Reissue(ctx, eventID, number, version)
	if err != nil {
		metrics.TicketTransitions.WithLabelValues("transfer", "error").Inc()
		return nil, apierr.Wrap(apierr.Internal, "reissue ticket", err)
	}
	if !ok {
		metrics.TicketTransitions.WithLabelValues("transfer", "conflict").Inc()
		return nil, apierr.New(apierr.Conflict, "ticket transfer failed")
	}

	key, err := events.LoadEventKey(ctx, eventID)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "load event key", err)
	}
	if key == nil {
		return nil, apierr.New(apierr.NotFound, "event not found")
	}

	metrics.TicketTransitions.WithLabelValues("transfer", "success").Inc()
	metrics.GetGlobalCollector().RecordTicketTransfer()

	return &Ticket{
		EventID:       eventID,
		PublicKey:     publicKey,
		Number:        number,
		Version:       version + 1,
		Metadata:      metadata,
		TransferLimit: transferLimit,
		EventKey:      key,
	}, nil
}

// Load decrypts and validates a holder-supplied ticket string, returning
// the Ticket it encodes. Every unseal failure returns the same deliberately
// vague PermissionDenied error, to avoid giving an attacker a signal
// distinguishing "bad ciphertext" from "bad hash" from "malformed JSON" —
// original_source's load() makes the same choice. A ticket that unseals
// but belongs to another user or event is a Validation error, and a
// canceled or superseded one a Conflict.
func Load(ctx context.Context, tickets storage.TicketStore, events storage.EventStore, eventID, publicKey, ticketString string) (*Ticket, error) {
	key, err := events.LoadEventKey(ctx, eventID)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "load event key", err)
	}
	if key == nil {
		return nil, apierr.New(apierr.NotFound, "event not found")
	}

	td, err := unseal(key, ticketString)
	if err != nil {
		return nil, apierr.New(apierr.PermissionDenied, "ticket verification failed")
	}

	if td.PublicKey != publicKey {
		return nil, apierr.New(apierr.Validation, "ticket for different user")
	}
	if td.EventID != eventID {
		return nil, apierr.New(apierr.Validation, "ticket for different event")
	}

	if err := validate(ctx, tickets, eventID, td.Number, td.Version); err != nil {
		return nil, err
	}

	return &Ticket{
		EventID:       eventID,
		PublicKey:     publicKey,
		Number:        td.Number,
		Version:       td.Version,
		Metadata:      td.Metadata,
		TransferLimit: td.TransferLimit,
		EventKey:      key,
	}, nil
}

// Redeem marks the ticket redeemed, conditioned on it not already being
// redeemed, stamped, or canceled (any of which is >= RedeemedByte), and
// on the ticket number being within the event's issued range.
func (t *Ticket) Redeem(ctx context.Context, tickets storage.TicketStore) error {
	ok, err := tickets.AdvanceState(ctx, t.EventID, t.Number, t.Version|RedeemedByte, RedeemedByte)
	if err != nil {
		metrics.TicketTransitions.WithLabelValues("redeem", "error").Inc()
		return apierr.Wrap(apierr.Internal, "redeem ticket", err)
	}
	if !ok {
		metrics.TicketTransitions.WithLabelValues("redeem", "conflict").Inc()
		return apierr.New(apierr.Conflict, "ticket redemption failed")
	}
	metrics.TicketTransitions.WithLabelValues("redeem", "success").Inc()
	metrics.GetGlobalCollector().RecordTicketRedeemed()
	return nil
}

// Cancel marks the ticket canceled, a terminal state; canceled tickets
// never free their slot in the event's issued count.
func (t *Ticket) Cancel(ctx context.Context, tickets storage.TicketStore) error {
	ok, err := tickets.AdvanceState(ctx, t.EventID, t.Number, t.Version|CanceledByte, CanceledByte)
	if err != nil {
		metrics.TicketTransitions.WithLabelValues("cancel", "error").Inc()
		return apierr.Wrap(apierr.Internal, "cancel ticket", err)
	}
	if !ok {
		metrics.TicketTransitions.WithLabelValues("cancel", "conflict").Inc()
		return apierr.New(apierr.Conflict, "ticket cancelation failed")
	}
	metrics.TicketTransitions.WithLabelValues("cancel", "success").Inc()
	metrics.GetGlobalCollector().RecordTicketCanceled()
	return nil
}

// Verify reports the ticket's redeemed and stamped status without
// mutating it.
func (t *Ticket) Verify(ctx context.Context, tickets storage.TicketStore) (redeemed, stamped bool, err error) {
	b, ok, err := tickets.LoadStateByte(ctx, t.EventID, t.Number)
	if err != nil {
		return false, false, apierr.Wrap(apierr.Internal, "load ticket state", err)
	}
	if !ok {
		return false, false, apierr.New(apierr.NotFound, "event not found")
	}
	if b >= CanceledByte {
		return false, false, apierr.New(apierr.NotFound, "ticket canceled")
	}
	return b >= RedeemedByte, b >= StampedByte, nil
}

// Stamp marks a redeemed, not-yet-stamped ticket as stamped.
func (t *Ticket) Stamp(ctx context.Context, tickets storage.TicketStore) (bool, bool, error) {
	redeemed, stamped, err := t.Verify(ctx, tickets)
	if err != nil {
		return false, false, err
	}
	if !redeemed {
		metrics.TicketTransitions.WithLabelValues("stamp", "conflict").Inc()
		return false, false, apierr.New(apierr.Conflict, "ticket has not been redeemed")
	}
	if stamped {
		metrics.TicketTransitions.WithLabelValues("stamp", "conflict").Inc()
		return false, false, apierr.New(apierr.Conflict, "ticket is already stamped")
	}

	ok, err := tickets.AdvanceState(ctx, t.EventID, t.Number, t.Version|StampedByte, StampedByte)
	if err != nil {
		metrics.TicketTransitions.WithLabelValues("stamp", "error").Inc()
		return false, false, apierr.Wrap(apierr.Internal, "stamp ticket", err)
	}
	if !ok {
		metrics.TicketTransitions.WithLabelValues("stamp", "conflict").Inc()
		return false, false, apierr.New(apierr.Conflict, "ticket stamping failed")
	}
	metrics.TicketTransitions.WithLabelValues("stamp", "success").Inc()
	metrics.GetGlobalCollector().RecordTicketStamped()
	return true, true, nil
}

// GetFlag reads the ticket's flag byte, requiring the event to have
// flags enabled (spec.md §4.6.8). The caller is responsible for applying
// the see_ticket_flag visibility rule before exposing the result.
func (t *Ticket) GetFlag(ctx context.Context, tickets storage.TicketStore) (value int, public bool, err error) {
	b, ok, err := tickets.LoadFlagByte(ctx, t.EventID, t.Number)
	if err != nil {
		return 0, false, apierr.Wrap(apierr.Internal, "load ticket flag", err)
	}
	if !ok {
		return 0, false, apierr.New(apierr.Conflict, "ticket flag retrieval failed")
	}
	return b & flagDataMask, b&PublicFlagBit != 0, nil
}

// UpdateFlag performs a single atomic read-modify-write covering
// whichever of value and public the caller supplied, so a /flag request
// setting both the data bits and the visibility bit in the same call
// never races with a concurrent request touching just one of them.
func (t *Ticket) UpdateFlag(ctx context.Context, tickets storage.TicketStore, value *int, public *bool) (int, bool, error) {
	var mask byte = 0xFF
	var newValue byte

	if value != nil {
		if *value < 0 || *value > flagDataMask {
			return 0, false, apierr.New(apierr.Validation, "flag value out of range")
		}
		mask &^= flagDataMask
		newValue |= byte(*value)
	}
	if public != nil {
		mask &^= PublicFlagBit
		if *public {
			newValue |= PublicFlagBit
		}
	}

	b, ok, err := tickets.UpdateFlagByte(ctx, t.EventID, t.Number, mask, newValue)
	if err != nil {
		return 0, false, apierr.Wrap(apierr.Internal, "update ticket flag", err)
	}
	if !ok {
		return 0, false, apierr.New(apierr.Conflict, "ticket flag set failed")
	}
	return b & flagDataMask, b&PublicFlagBit != 0, nil
}

// Pack seals the ticket into the holder-carried string format:
// "<iv_b64>-<ciphertext_b64>", where the ciphertext is an AES-CBC
// encryption of a JSON envelope carrying both the ticket fields and a
// SHA-256 hash of those fields, so Load can detect tampering or
// corruption before trusting any field inside.
func (t *Ticket) Pack() (string, error) {
	start := time.Now()
	defer func() { metrics.TicketPackDuration.WithLabelValues("pack").Observe(time.Since(start).Seconds()) }()

	td := data{
		EventID:       t.EventID,
		PublicKey:     t.PublicKey,
		Number:        t.Number,
		Version:       t.Version,
		Metadata:      t.Metadata,
		TransferLimit: t.TransferLimit,
	}

	raw, err := canonical.Marshal(td)
	if err != nil {
		return "", fmt.Errorf("ticket: marshal: %w", err)
	}

	verif := verifEnvelope{Ticket: td, Hash: cryptoutil.SHA256Hex(raw)}
	verifRaw, err := json.Marshal(verif)
	if err != nil {
		return "", fmt.Errorf("ticket: marshal envelope: %w", err)
	}

	cipher, err := cryptoutil.NewTicketCipher(t.EventKey)
	if err != nil {
		return "", fmt.Errorf("ticket: cipher: %w", err)
	}

	ivB64, ctB64, err := cipher.Encrypt(verifRaw)
	if err != nil {
		return "", fmt.Errorf("ticket: encrypt: %w", err)
	}

	return ivB64 + "-" + ctB64, nil
}

// unseal reverses Pack, verifying the embedded hash before returning the
// inner ticket fields. Any failure (malformed string, bad ciphertext,
// hash mismatch) is reported identically to the caller.
func unseal(eventKey []byte, ticketString string) (*data, error) {
	start := time.Now()
	defer func() {
		metrics.TicketPackDuration.WithLabelValues("unseal").Observe(time.Since(start).Seconds())
	}()

	ivB64, ctB64, found := strings.Cut(ticketString, "-")
	if !found {
		return nil, fmt.Errorf("ticket: malformed ticket string")
	}

	cipher, err := cryptoutil.NewTicketCipher(eventKey)
	if err != nil {
		return nil, err
	}

	plaintext, err := cipher.Decrypt(ivB64, ctB64)
	if err != nil {
		return nil, err
	}

	var verif verifEnvelope
	if err := json.Unmarshal(plaintext, &verif); err != nil {
		return nil, err
	}

	raw, err := canonical.Marshal(verif.Ticket)
	if err != nil {
		return nil, err
	}
	if cryptoutil.SHA256Hex(raw) != verif.Hash {
		return nil, fmt.Errorf("ticket: hash mismatch")
	}

	return &verif.Ticket, nil
}
