package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// LetterStatus is the contract's per-letter classification of a guess.
type LetterStatus uint8

const (
	StatusAbsent  LetterStatus = 0
	StatusPartial LetterStatus = 1
	StatusExact   LetterStatus = 2
)

func (s LetterStatus) String() string {
	switch s {
	case StatusExact:
		return "exact"
	case StatusPartial:
		return "partial"
	case StatusAbsent:
		return "absent"
	default:
		return "unknown"
	}
}

// PlayerSnapshot is the game contract's view of one player.
type PlayerSnapshot struct {
	Guesses          []string         `json:"guesses"`
	GuessedCorrectly bool             `json:"guessedCorrectly"`
	LetterStatuses   [][]LetterStatus `json:"letterStatuses"`
	Admin            common.Address   `json:"admin"`
	FetchedAt        time.Time        `json:"fetchedAt"`
}

// TokenSnapshot holds the allowance granted to the game contract and the
// player's token balance, both in base units.
type TokenSnapshot struct {
	Allowance *big.Int  `json:"allowance"`
	Balance   *big.Int  `json:"balance"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// HasAllowance reports whether the game contract may spend anything at all.
func (t TokenSnapshot) HasAllowance() bool {
	return t.Allowance != nil && t.Allowance.Sign() > 0
}

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notification is a toast shown to the player.
type Notification struct {
	ID      string    `json:"id"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}
