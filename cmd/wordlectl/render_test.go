package main

import (
	"math/big"
	"strings"
	"testing"

	"github.com/pterm/pterm"

	"wordlechain/internal/board"
	"wordlechain/internal/types"
)

func init() {
	pterm.DisableStyling()
}

func TestRenderBoard(t *testing.T) {
	rows := board.Rows(
		[]string{"SLATE"},
		[][]types.LetterStatus{{types.StatusExact, types.StatusAbsent, types.StatusPartial, types.StatusAbsent, types.StatusAbsent}},
		"",
		board.MaxGuesses,
	)
	lines := strings.Split(renderBoard(rows), "\n")
	if len(lines) != board.MaxGuesses {
		t.Fatalf("lines = %d, want %d", len(lines), board.MaxGuesses)
	}
	if lines[0] != " S   L   A   T   E " {
		t.Errorf("first row = %q", lines[0])
	}
	if strings.Count(lines[1], "·") != board.WordLength {
		t.Errorf("empty row = %q", lines[1])
	}
}

func TestRenderKeyboard(t *testing.T) {
	keys := board.Keyboard([]string{"SLATE"}, [][]types.LetterStatus{{2, 0, 1, 0, 0}})
	got := renderKeyboard(keys)
	if !strings.HasPrefix(got, "A B C") || !strings.HasSuffix(got, "Y Z") {
		t.Errorf("keyboard = %q", got)
	}
}

func TestTriesLine(t *testing.T) {
	if got := triesLine(2, false); got != "Guesses used: 2/5" {
		t.Errorf("triesLine(2, false) = %q", got)
	}
	if got := triesLine(3, true); !strings.HasSuffix(got, "solved!") {
		t.Errorf("triesLine(3, true) = %q", got)
	}
}

func TestAccountTable(t *testing.T) {
	five, _ := new(big.Int).SetString("5000000000000000000", 10)
	out, err := accountTable("0xabc", types.TokenSnapshot{Allowance: five, Balance: big.NewInt(0)}, 18, true, false)
	if err != nil {
		t.Fatalf("accountTable: %v", err)
	}
	for _, want := range []string{"0xabc", "5 WLD", "0 WLD", "yes", "no"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestShortHash(t *testing.T) {
	h := "0x1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef"
	if got := shortHash(h); got != "0x123456…cdef" {
		t.Errorf("shortHash = %q", got)
	}
	if got := shortHash("0x12"); got != "0x12" {
		t.Errorf("shortHash short = %q", got)
	}
}

func TestCommandArgs(t *testing.T) {
	if err := guessCmd.Args(guessCmd, nil); err == nil {
		t.Error("guess without a word should fail")
	}
	if err := setWordCmd.Args(setWordCmd, []string{"a", "b"}); err == nil {
		t.Error("set-word with two words should fail")
	}
	if err := statusCmd.Args(statusCmd, []string{"x"}); err == nil {
		t.Error("status takes no arguments")
	}
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"status", "approve", "guess", "set-word"} {
		if !names[want] {
			t.Errorf("command %q not registered", want)
		}
	}
}
