package main

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"wordlechain/internal/board"
	"wordlechain/internal/txn"
	"wordlechain/internal/types"
)

type contextKey string

// TokenService is the allowance side of the page.
type TokenService interface {
	Snapshot(ctx context.Context) (types.TokenSnapshot, error)
	Refetch(ctx context.Context) (types.TokenSnapshot, error)
	Approve(ctx context.Context) (txn.Handle, error)
	Busy() bool
	Pending() (txn.Handle, bool)
}

// GameService is the game contract side of the page.
type GameService interface {
	Snapshot(ctx context.Context) (types.PlayerSnapshot, error)
	SubmitGuess(ctx context.Context, guess string) (txn.Handle, error)
	SetWord(ctx context.Context, word string) (txn.Handle, error)
	PendingGuess() string
	IsAdmin(ctx context.Context) bool
	Player() common.Address
	Busy() bool
	Pending() (txn.Handle, bool)
}

// SessionState is what a browser session keeps between requests: the guess
// being typed. Everything else is read from the chain.
type SessionState struct {
	Input          string    `json:"input"`
	LastAccessTime time.Time `json:"lastAccessTime"`
}

func (s *SessionState) input() *board.Input {
	return board.NewInput(s.Input)
}

// GameView is the data the board templates render.
type GameView struct {
	Rows          []board.Row
	Keyboard      []board.Key
	Input         string
	CanSubmit     bool
	Correct       bool
	GuessesUsed   int
	MaxGuesses    int
	PendingGuess  string
	PendingTx     string
	Busy          bool
	Allowance     string
	Balance       string
	HasAllowance  bool
	IsAdmin       bool
	Player        string
	ChainError    string
	Notifications []types.Notification
	RenderedAt    int64
}
