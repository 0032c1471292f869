package controller

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"wordlechain/internal/board"
	"wordlechain/internal/chain"
	"wordlechain/internal/txn"
	"wordlechain/internal/types"
)

// GameController reads the player's progress from the game contract and
// submits guesses.
type GameController struct {
	writer
	reader     chain.GameReader
	send       chain.GameWriter
	tokens     *TokenController
	cache      *chain.ReadCache
	player     common.Address
	maxGuesses int

	mu      sync.Mutex
	pending string // guess whose receipt is outstanding
}

func NewGameController(deps Deps, reader chain.GameReader, send chain.GameWriter, tokens *TokenController, cache *chain.ReadCache, player common.Address) *GameController {
	return &GameController{
		writer:     writer{Deps: deps},
		reader:     reader,
		send:       send,
		tokens:     tokens,
		cache:      cache,
		player:     player,
		maxGuesses: board.MaxGuesses,
	}
}

func (g *GameController) key(name string) string {
	return name + ":" + g.player.Hex()
}

func (g *GameController) statusKey(index int) string {
	return g.key("statuses") + ":" + strconv.Itoa(index)
}

func (g *GameController) Player() common.Address {
	return g.player
}

// Guesses returns the player's submitted guesses.
func (g *GameController) Guesses(ctx context.Context) ([]string, error) {
	return chain.Cached(ctx, g.cache, g.key("guesses"), "getPlayerGuesses", func(ctx context.Context) ([]string, error) {
		return g.reader.PlayerGuesses(ctx, g.player)
	})
}

// GuessedCorrectly reports the contract's correctness flag for the player.
func (g *GameController) GuessedCorrectly(ctx context.Context) (bool, error) {
	return chain.Cached(ctx, g.cache, g.key("correct"), "getHasPlayerGuessedCorrectly", func(ctx context.Context) (bool, error) {
		return g.reader.HasGuessedCorrectly(ctx, g.player)
	})
}

// Admin returns the game contract's admin address.
func (g *GameController) Admin(ctx context.Context) (common.Address, error) {
	return chain.Cached(ctx, g.cache, "admin", "admin", g.reader.Admin)
}

// Snapshot reads guesses, correctness, per-guess letter statuses and the
// admin address.
func (g *GameController) Snapshot(ctx context.Context) (types.PlayerSnapshot, error) {
	guesses, err := g.Guesses(ctx)
	if err != nil {
		return types.PlayerSnapshot{}, fmt.Errorf("read guesses: %w", err)
	}
	correct, err := g.GuessedCorrectly(ctx)
	if err != nil {
		return types.PlayerSnapshot{}, fmt.Errorf("read correctness: %w", err)
	}
	statuses := make([][]types.LetterStatus, 0, len(guesses))
	for i := range guesses {
		st, err := chain.Cached(ctx, g.cache, g.statusKey(i), "getLetterStatuses", func(ctx context.Context) ([]types.LetterStatus, error) {
			return g.reader.LetterStatuses(ctx, g.player, i)
		})
		if err != nil {
			return types.PlayerSnapshot{}, fmt.Errorf("read letter statuses %d: %w", i, err)
		}
		statuses = append(statuses, st)
	}
	admin, err := g.Admin(ctx)
	if err != nil {
		return types.PlayerSnapshot{}, fmt.Errorf("read admin: %w", err)
	}
	return types.PlayerSnapshot{
		Guesses:          guesses,
		GuessedCorrectly: correct,
		LetterStatuses:   statuses,
		Admin:            admin,
		FetchedAt:        time.Now(),
	}, nil
}

// Refetch drops cached game reads and reads them again.
func (g *GameController) Refetch(ctx context.Context) (types.PlayerSnapshot, error) {
	keys := []string{g.key("guesses"), g.key("correct")}
	for i := 0; i <= g.maxGuesses; i++ {
		keys = append(keys, g.statusKey(i))
	}
	g.cache.Invalidate(keys...)
	return g.Snapshot(ctx)
}

// PendingGuess is the guess whose transaction has not confirmed yet.
func (g *GameController) PendingGuess() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending
}

func (g *GameController) setPending(word string) {
	g.mu.Lock()
	g.pending = word
	g.mu.Unlock()
}

// NormalizeWord trims and uppercases user input.
func NormalizeWord(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// SubmitGuess runs the pre-flight guards in order (allowance, already
// correct, guess cap) and, if none trips, sends makeGuess. On confirmation
// the guesses, correctness, letter statuses and allowance are refetched.
func (g *GameController) SubmitGuess(ctx context.Context, guess string) (txn.Handle, error) {
	guess = NormalizeWord(guess)
	if len(guess) != board.WordLength {
		return txn.Handle{}, g.reject(ErrInvalidLength, "invalid_length", MsgGuessLength)
	}
	if err := g.begin(); err != nil {
		return txn.Handle{}, err
	}

	if err := g.preflight(ctx); err != nil {
		g.Tracker.Cancel()
		return txn.Handle{}, err
	}

	return g.submit(ctx, writeOp{
		kind:    "guess",
		method:  "makeGuess",
		failMsg: MsgGuessFailed,
		send: func(ctx context.Context) (common.Hash, error) {
			return g.send.MakeGuess(ctx, guess)
		},
		issued: func(txn.Handle) {
			g.setPending(guess)
		},
		confirm: g.onGuessConfirmed,
		abandoned: func(_ txn.Handle, _ error) {
			if _, ok := g.Pending(); !ok {
				g.setPending("")
			}
		},
	})
}

func (g *GameController) preflight(ctx context.Context) error {
	allowance, err := g.tokens.Allowance(ctx)
	if err != nil {
		g.Log.Errorw("allowance read failed", "err", err)
		g.Notifier.Notify(types.LevelError, MsgGuessFailed)
		return fmt.Errorf("read allowance: %w", err)
	}
	correct, err := g.GuessedCorrectly(ctx)
	if err != nil {
		g.Log.Errorw("correctness read failed", "err", err)
		g.Notifier.Notify(types.LevelError, MsgGuessFailed)
		return fmt.Errorf("read correctness: %w", err)
	}
	guesses, err := g.Guesses(ctx)
	if err != nil {
		g.Log.Errorw("guesses read failed", "err", err)
		g.Notifier.Notify(types.LevelError, MsgGuessFailed)
		return fmt.Errorf("read guesses: %w", err)
	}

	switch {
	case allowance == nil || allowance.Sign() <= 0:
		return g.reject(ErrNoAllowance, "no_allowance", MsgNeedAllowance)
	case correct:
		return g.reject(ErrAlreadyCorrect, "already_correct", MsgAlreadyCorrect)
	case len(guesses) >= g.maxGuesses:
		return g.reject(ErrTooManyGuesses, "guess_limit", MsgExceededTries)
	}
	return nil
}

func (g *GameController) onGuessConfirmed(ctx context.Context, receipt *ethtypes.Receipt) {
	g.setPending("")
	snap, err := g.Refetch(ctx)
	if err != nil {
		g.Log.Warnw("game refetch failed", "err", err)
	}
	if _, err := g.tokens.Refetch(ctx); err != nil {
		g.Log.Warnw("allowance refetch failed", "err", err)
	}

	switch {
	case receipt.Status != ethtypes.ReceiptStatusSuccessful:
		g.Notifier.Notify(types.LevelError, MsgReverted)
	case err != nil:
		g.Notifier.Notify(types.LevelError, MsgGuessFailed)
	case snap.GuessedCorrectly:
		g.Notifier.Notify(types.LevelSuccess, MsgGuessCorrect)
	default:
		g.Notifier.Notify(types.LevelError, MsgGuessIncorrect)
	}
	g.Notifier.Refresh()
}

// IsAdmin reports whether the player is the contract admin. It only drives
// what the page shows; SetWord does not consult it.
func (g *GameController) IsAdmin(ctx context.Context) bool {
	admin, err := g.Admin(ctx)
	if err != nil {
		g.Log.Debugw("admin read failed", "err", err)
		return false
	}
	return admin == g.player
}

// SetWord sends setWord. Only the length is checked here; the contract
// enforces who may call it.
func (g *GameController) SetWord(ctx context.Context, word string) (txn.Handle, error) {
	word = NormalizeWord(word)
	if len(word) != board.WordLength {
		return txn.Handle{}, g.reject(ErrInvalidLength, "invalid_length", MsgWordLength)
	}
	if err := g.begin(); err != nil {
		return txn.Handle{}, err
	}
	return g.submit(ctx, writeOp{
		kind:    "set_word",
		method:  "setWord",
		failMsg: MsgSetWordFailed,
		send: func(ctx context.Context) (common.Hash, error) {
			return g.send.SetWord(ctx, word)
		},
		issued: func(txn.Handle) {
			g.setPending("")
			g.Notifier.Notify(types.LevelSuccess, MsgWordSet)
		},
		confirm: func(ctx context.Context, receipt *ethtypes.Receipt) {
			if _, err := g.Refetch(ctx); err != nil {
				g.Log.Warnw("game refetch failed", "err", err)
			}
			if receipt.Status != ethtypes.ReceiptStatusSuccessful {
				g.Notifier.Notify(types.LevelError, MsgReverted)
			}
			g.Notifier.Refresh()
		},
	})
}
