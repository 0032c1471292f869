// Package controller drives the token and game contracts on behalf of the
// player: pre-flight guards, write calls, receipt waits and the refetches
// that follow a confirmation.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"wordlechain/internal/metrics"
	"wordlechain/internal/notify"
	"wordlechain/internal/txn"
	"wordlechain/internal/types"
)

// User-facing messages.
const (
	MsgNeedAllowance   = "You need allowance to play the game."
	MsgAlreadyCorrect  = "You have already guessed correctly!"
	MsgExceededTries   = "You already exceeded the limit play tries for today!"
	MsgGuessLength     = "Guess must be 5 letters!"
	MsgWordLength      = "Word must be 5 letters!"
	MsgBusy            = "A transaction is already being submitted."
	MsgGuessFailed     = "Failed to submit guess. Please try again."
	MsgApproveFailed   = "Failed to approve tokens. Please try again."
	MsgSetWordFailed   = "Failed to set word. Please try again."
	MsgGuessCorrect    = "Your guess was correct!!"
	MsgGuessIncorrect  = "Your guess was incorrect..."
	MsgApproved        = "Tokens approved!"
	MsgWordSet         = "Word set successfully!"
	MsgReverted        = "Transaction was reverted on chain."
	MsgReceiptTimedOut = "Timed out waiting for the transaction to confirm."
)

// Pre-flight rejections. None of these reach the contract.
var (
	ErrNoAllowance    = errors.New("no token allowance for the game contract")
	ErrAlreadyCorrect = errors.New("player already guessed correctly")
	ErrTooManyGuesses = errors.New("guess limit reached")
	ErrInvalidLength  = errors.New("word must be 5 letters")
	ErrBusy           = txn.ErrBusy
)

// Deps are shared by both controllers. Background is the context receipt
// waits run under; it outlives the request that issued the write.
type Deps struct {
	Background context.Context
	Tracker    *txn.Tracker
	Notifier   notify.Notifier
	Log        *zap.SugaredLogger
	Metrics    *metrics.Metrics
}

// writer is the submission plumbing shared by both controllers.
type writer struct {
	Deps
	wg sync.WaitGroup
}

type writeOp struct {
	kind    string
	method  string
	failMsg string
	send    func(ctx context.Context) (common.Hash, error)
	// issued runs after the write returns a hash, before the receipt wait.
	issued  func(h txn.Handle)
	confirm txn.ConfirmFunc
	// abandoned runs when the wait ends without a confirmation.
	abandoned func(h txn.Handle, err error)
}

// reject reports a pre-flight failure.
func (w *writer) reject(err error, reason, msg string) error {
	w.Metrics.Rejected(reason)
	w.Notifier.Notify(types.LevelError, msg)
	w.Log.Infow("submission rejected", "reason", reason)
	return err
}

// submit issues op.send and starts watching the resulting transaction. The
// caller must already hold the tracker via Begin.
func (w *writer) submit(ctx context.Context, op writeOp) (txn.Handle, error) {
	hash, err := op.send(ctx)
	if err != nil {
		w.Tracker.Fail()
		w.Metrics.Write(op.method, "error")
		w.Log.Errorw("contract write failed", "method", op.method, "err", err)
		w.Notifier.Notify(types.LevelError, op.failMsg)
		return txn.Handle{}, fmt.Errorf("%s: %w", op.method, err)
	}
	w.Metrics.Write(op.method, "ok")
	h := w.Tracker.Issue(hash, op.kind)
	w.Log.Infow("awaiting receipt", "kind", op.kind, "hash", hash.Hex())
	if op.issued != nil {
		op.issued(h)
	}
	w.watch(h, op)
	return h, nil
}

func (w *writer) watch(h txn.Handle, op writeOp) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		_, err := w.Tracker.Await(w.Background, h, op.confirm)
		if err == nil {
			return
		}
		if op.abandoned != nil {
			op.abandoned(h, err)
		}
		if errors.Is(err, txn.ErrSuperseded) {
			return
		}
		w.Log.Warnw("receipt wait ended without confirmation", "kind", op.kind, "hash", h.Hash.Hex(), "err", err)
		w.Notifier.Notify(types.LevelError, MsgReceiptTimedOut)
	}()
}

// Wait blocks until every receipt wait started so far has finished.
func (w *writer) Wait() {
	w.wg.Wait()
}

// Busy reports whether a write call is in flight.
func (w *writer) Busy() bool {
	return w.Tracker.Busy()
}

// Pending returns the transaction awaiting its receipt, if any.
func (w *writer) Pending() (txn.Handle, bool) {
	return w.Tracker.Current()
}

func (w *writer) begin() error {
	if err := w.Tracker.Begin(); err != nil {
		w.Metrics.Rejected("busy")
		w.Notifier.Notify(types.LevelError, MsgBusy)
		return err
	}
	return nil
}
