// Package board holds the in-progress guess and lays out the rows and
// on-screen keyboard shown to the player.
package board

import (
	"strings"

	"github.com/samber/lo"

	"wordlechain/internal/types"
)

const (
	WordLength = 5 // Letters per guess
	MaxGuesses = 5 // Guesses the contract allows per player
)

// StatusColors maps a contract letter status to its cell background.
var StatusColors = map[types.LetterStatus]string{
	types.StatusExact:   "#538D4E",
	types.StatusPartial: "#B59F3B",
	types.StatusAbsent:  "#3A3A3C",
}

// Alphabet is the on-screen keyboard order.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Input is a guess being assembled letter by letter. The zero value is an
// empty guess.
type Input struct {
	letters []byte
}

// NewInput restores an input from a previously stored string, dropping
// anything that is not a letter and anything past WordLength.
func NewInput(s string) *Input {
	in := &Input{}
	for _, r := range s {
		in.Add(r)
	}
	return in
}

// Add appends a letter. Non-letters and letters past WordLength are ignored.
func (in *Input) Add(r rune) bool {
	if len(in.letters) >= WordLength {
		return false
	}
	if r >= 'a' && r <= 'z' {
		r -= 'a' - 'A'
	}
	if r < 'A' || r > 'Z' {
		return false
	}
	in.letters = append(in.letters, byte(r))
	return true
}

// Delete removes the last letter, if any.
func (in *Input) Delete() bool {
	if len(in.letters) == 0 {
		return false
	}
	in.letters = in.letters[:len(in.letters)-1]
	return true
}

func (in *Input) Reset() {
	in.letters = in.letters[:0]
}

// Ready reports whether the guess can be submitted.
func (in *Input) Ready() bool {
	return len(in.letters) == WordLength
}

func (in *Input) Len() int {
	return len(in.letters)
}

func (in *Input) String() string {
	return string(in.letters)
}

// Cell is one square of the board.
type Cell struct {
	Letter string
	Status types.LetterStatus
	Scored bool // Status came from the contract
	Color  string
}

// Row is one line of the board.
type Row struct {
	Cells     []Cell
	Submitted bool
	Current   bool
}

// Rows lays out maxGuesses rows: submitted guesses first, then the guess in
// progress, then empty rows. Submitted guesses are padded or truncated to
// WordLength cells. statuses may be shorter than history while a refetch is
// pending; unscored rows render without colour.
func Rows(history []string, statuses [][]types.LetterStatus, current string, maxGuesses int) []Row {
	rows := make([]Row, 0, maxGuesses)
	for i := 0; i < maxGuesses; i++ {
		switch {
		case i < len(history):
			var st []types.LetterStatus
			if i < len(statuses) {
				st = statuses[i]
			}
			rows = append(rows, Row{Cells: cells(history[i], st), Submitted: true})
		case i == len(history):
			rows = append(rows, Row{Cells: cells(current, nil), Current: true})
		default:
			rows = append(rows, Row{Cells: cells("", nil)})
		}
	}
	return rows
}

func cells(word string, statuses []types.LetterStatus) []Cell {
	padded := padWord(word)
	out := make([]Cell, WordLength)
	for i, r := range padded {
		c := Cell{Letter: strings.TrimSpace(strings.ToUpper(string(r)))}
		if i < len(statuses) && c.Letter != "" {
			c.Status = statuses[i]
			c.Scored = true
			c.Color = StatusColors[statuses[i]]
		}
		out[i] = c
	}
	return out
}

func padWord(word string) []rune {
	runes := []rune(word)
	if len(runes) > WordLength {
		return runes[:WordLength]
	}
	for len(runes) < WordLength {
		runes = append(runes, ' ')
	}
	return runes
}

// Key is a keyboard button annotated with the best status seen for it.
type Key struct {
	Letter string
	Color  string
}

// Keyboard returns the alphabet keys. A key takes the colour of the best
// status any scored guess gave its letter.
func Keyboard(history []string, statuses [][]types.LetterStatus) []Key {
	best := make(map[byte]types.LetterStatus)
	for i, word := range history {
		if i >= len(statuses) {
			break
		}
		for j := 0; j < len(word) && j < len(statuses[i]); j++ {
			letter := word[j]
			if letter >= 'a' && letter <= 'z' {
				letter -= 'a' - 'A'
			}
			if st, ok := best[letter]; !ok || statuses[i][j] > st {
				best[letter] = statuses[i][j]
			}
		}
	}
	return lo.Map([]byte(Alphabet), func(letter byte, _ int) Key {
		k := Key{Letter: string(letter)}
		if st, ok := best[letter]; ok {
			k.Color = StatusColors[st]
		}
		return k
	})
}
