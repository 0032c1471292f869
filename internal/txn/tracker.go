// Package txn tracks a contract write from submission to receipt.
//
// A submission is two-phase: Begin/Issue record the pending handle returned
// by the write call, then Await polls for the receipt and runs the
// confirmation hook. Only the most recently issued handle is observed; a
// receipt for an older handle is reported as superseded and triggers nothing.
package txn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"wordlechain/internal/metrics"
)

type State int

const (
	Idle State = iota
	Submitting
	WriteFailed
	WriteSucceeded
	AwaitingReceipt
	ReceiptConfirmed
	RefetchTriggered
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case WriteFailed:
		return "write_failed"
	case WriteSucceeded:
		return "write_succeeded"
	case AwaitingReceipt:
		return "awaiting_receipt"
	case ReceiptConfirmed:
		return "receipt_confirmed"
	case RefetchTriggered:
		return "refetch_triggered"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrBusy       = errors.New("a transaction is already being submitted")
	ErrSuperseded = errors.New("transaction superseded by a newer submission")
	ErrNotIssued  = errors.New("no transaction issued")
)

// ReceiptReader is satisfied by *ethclient.Client.
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error)
}

// Handle identifies an issued write.
type Handle struct {
	Hash     common.Hash
	Kind     string
	IssuedAt time.Time
	seq      uint64
}

// ConfirmFunc runs once the current handle's receipt is mined.
type ConfirmFunc func(ctx context.Context, receipt *ethtypes.Receipt)

// Tracker is safe for concurrent use.
type Tracker struct {
	reader  ReceiptReader
	poll    time.Duration
	timeout time.Duration
	log     *zap.SugaredLogger
	metrics *metrics.Metrics

	mu      sync.Mutex
	state   State
	busy    bool
	seq     uint64
	current *Handle

	// OnTransition, when set, observes every state change.
	OnTransition func(State)
}

// NewTracker returns an idle tracker. A zero timeout waits for receipts
// without bound.
func NewTracker(reader ReceiptReader, poll, timeout time.Duration, log *zap.SugaredLogger, m *metrics.Metrics) *Tracker {
	if poll <= 0 {
		poll = time.Second
	}
	return &Tracker{
		reader:  reader,
		poll:    poll,
		timeout: timeout,
		log:     log,
		metrics: m,
	}
}

// Begin marks a write call as in flight. It fails with ErrBusy while another
// write call on this tracker has not returned.
func (t *Tracker) Begin() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.busy {
		return ErrBusy
	}
	t.busy = true
	t.transition(Submitting)
	return nil
}

// Fail records a failed write call and returns to idle.
func (t *Tracker) Fail() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.busy = false
	t.transition(WriteFailed)
	t.transition(t.restingState())
}

// Cancel releases the busy flag without a write having been attempted.
func (t *Tracker) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.busy = false
	t.transition(t.restingState())
}

// Issue records the hash returned by a successful write call. It replaces
// any handle still awaiting its receipt.
func (t *Tracker) Issue(hash common.Hash, kind string) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.busy = false
	t.seq++
	h := Handle{Hash: hash, Kind: kind, IssuedAt: time.Now(), seq: t.seq}
	t.current = &h
	t.transition(WriteSucceeded)
	t.transition(AwaitingReceipt)
	return h
}

// Busy reports whether a write call is in flight.
func (t *Tracker) Busy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.busy
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Current returns the handle awaiting its receipt, if any.
func (t *Tracker) Current() (Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return Handle{}, false
	}
	return *t.current, true
}

// Await polls until h is mined, then runs confirm if h is still the current
// handle. The receipt is returned even when it reports a revert. The timeout
// bounds only the wait; confirm runs under ctx.
func (t *Tracker) Await(ctx context.Context, h Handle, confirm ConfirmFunc) (*ethtypes.Receipt, error) {
	if h.seq == 0 {
		return nil, ErrNotIssued
	}
	waitCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	receipt, err := t.waitMined(waitCtx, h.Hash)
	if err != nil {
		t.mu.Lock()
		if t.isCurrent(h) {
			t.current = nil
			t.transition(t.restingState())
		}
		t.mu.Unlock()
		t.metrics.Receipt(h.Kind, "timeout", time.Since(h.IssuedAt))
		return nil, fmt.Errorf("wait for %s receipt %s: %w", h.Kind, h.Hash.Hex(), err)
	}

	status := "success"
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		status = "reverted"
	}
	t.metrics.Receipt(h.Kind, status, time.Since(h.IssuedAt))

	t.mu.Lock()
	if !t.isCurrent(h) {
		t.mu.Unlock()
		t.log.Infow("ignoring receipt for superseded transaction", "kind", h.Kind, "hash", h.Hash.Hex())
		return receipt, ErrSuperseded
	}
	t.transition(ReceiptConfirmed)
	t.mu.Unlock()

	if confirm != nil {
		confirm(ctx, receipt)
	}

	t.mu.Lock()
	if t.isCurrent(h) {
		t.current = nil
		t.transition(RefetchTriggered)
		t.transition(t.restingState())
	}
	t.mu.Unlock()
	return receipt, nil
}

func (t *Tracker) waitMined(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	ticker := time.NewTicker(t.poll)
	defer ticker.Stop()
	for {
		receipt, err := t.reader.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			t.log.Debugw("receipt lookup failed, retrying", "hash", hash.Hex(), "err", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (t *Tracker) isCurrent(h Handle) bool {
	return t.current != nil && t.current.seq == h.seq
}

// restingState is where the machine settles: still submitting if a write
// call is in flight, awaiting if a handle is outstanding, otherwise idle.
func (t *Tracker) restingState() State {
	switch {
	case t.busy:
		return Submitting
	case t.current != nil:
		return AwaitingReceipt
	default:
		return Idle
	}
}

// transition must be called with mu held.
func (t *Tracker) transition(s State) {
	if t.state == s {
		return
	}
	t.state = s
	if t.OnTransition != nil {
		t.OnTransition(s)
	}
}
