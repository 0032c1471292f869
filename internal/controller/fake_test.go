package controller

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"wordlechain/internal/logging"
	"wordlechain/internal/metrics"
	"wordlechain/internal/txn"
	"wordlechain/internal/types"
)

var (
	testPlayer = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	testGame   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

// fakeChain stands in for both contracts and the receipt endpoint. Sent
// transactions are mined immediately unless holdReceipts is set.
type fakeChain struct {
	mu sync.Mutex

	allowance    *big.Int
	balance      *big.Int
	guesses      []string
	correct      bool
	statuses     map[int][]types.LetterStatus
	admin        common.Address
	writeErr     error
	revert       bool
	holdReceipts bool

	// word the next confirmed guess must match to flip correct
	answer string

	calls    map[string]int
	sent     []string
	receipts map[common.Hash]*ethtypes.Receipt
	nonce    uint64
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		allowance: big.NewInt(0),
		balance:   big.NewInt(0),
		statuses:  make(map[int][]types.LetterStatus),
		calls:     make(map[string]int),
		receipts:  make(map[common.Hash]*ethtypes.Receipt),
	}
}

func (f *fakeChain) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeChain) sentCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeChain) record(method string) {
	f.mu.Lock()
	f.calls[method]++
	f.mu.Unlock()
}

func (f *fakeChain) Allowance(_ context.Context, owner, spender common.Address) (*big.Int, error) {
	f.record("allowance")
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.allowance), nil
}

func (f *fakeChain) BalanceOf(_ context.Context, owner common.Address) (*big.Int, error) {
	f.record("balanceOf")
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.balance), nil
}

func (f *fakeChain) Admin(context.Context) (common.Address, error) {
	f.record("admin")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.admin, nil
}

func (f *fakeChain) PlayerGuesses(context.Context, common.Address) ([]string, error) {
	f.record("getPlayerGuesses")
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.guesses...), nil
}

func (f *fakeChain) HasGuessedCorrectly(context.Context, common.Address) (bool, error) {
	f.record("getHasPlayerGuessedCorrectly")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.correct, nil
}

func (f *fakeChain) LetterStatuses(_ context.Context, _ common.Address, index int) ([]types.LetterStatus, error) {
	f.record("getLetterStatuses")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[index], nil
}

func (f *fakeChain) Approve(_ context.Context, spender common.Address, amount *big.Int) (common.Hash, error) {
	return f.write("approve:"+amount.String(), func() {
		f.allowance = new(big.Int).Set(amount)
	})
}

func (f *fakeChain) MakeGuess(_ context.Context, word string) (common.Hash, error) {
	return f.write("makeGuess:"+word, func() {
		f.guesses = append(f.guesses, word)
		if word == f.answer {
			f.correct = true
		}
	})
}

func (f *fakeChain) SetWord(_ context.Context, word string) (common.Hash, error) {
	return f.write("setWord:"+word, func() {
		f.answer = word
	})
}

func (f *fakeChain) write(call string, apply func()) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, call)
	if f.writeErr != nil {
		return common.Hash{}, f.writeErr
	}
	f.nonce++
	hash := common.BigToHash(new(big.Int).SetUint64(f.nonce))
	status := ethtypes.ReceiptStatusSuccessful
	if f.revert {
		status = ethtypes.ReceiptStatusFailed
	} else {
		apply()
	}
	r := &ethtypes.Receipt{TxHash: hash, Status: status}
	if !f.holdReceipts {
		f.receipts[hash] = r
	}
	return hash, nil
}

// release mines a held transaction.
func (f *fakeChain) release(hash common.Hash) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipts[hash] = &ethtypes.Receipt{TxHash: hash, Status: ethtypes.ReceiptStatusSuccessful}
}

func (f *fakeChain) TransactionReceipt(_ context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

// recorder collects notifications.
type recorder struct {
	mu        sync.Mutex
	toasts    []types.Notification
	refreshes int
}

func (r *recorder) Notify(level types.Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, types.Notification{Level: level, Message: message})
}

func (r *recorder) Refresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshes++
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.toasts))
	for _, n := range r.toasts {
		out = append(out, n.Message)
	}
	return out
}

type harness struct {
	chain  *fakeChain
	notes  *recorder
	tokens *TokenController
	game   *GameController
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fc := newFakeChain()
	notes := &recorder{}
	log := logging.Nop()
	m := metrics.New()
	newDeps := func() Deps {
		return Deps{
			Background: context.Background(),
			Tracker:    txn.NewTracker(fc, time.Millisecond, time.Second, log, m),
			Notifier:   notes,
			Log:        log,
			Metrics:    m,
		}
	}
	amount, _ := new(big.Int).SetString("5000000000000000000", 10)
	tokens := NewTokenController(newDeps(), fc, fc, nil, testPlayer, testGame, amount)
	game := NewGameController(newDeps(), fc, fc, tokens, nil, testPlayer)
	return &harness{chain: fc, notes: notes, tokens: tokens, game: game}
}

var errWalletRejected = errors.New("user rejected the request")
