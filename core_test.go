package main

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"wordlechain/internal/board"
	"wordlechain/internal/types"
)

func TestGetSession_CreatesEmpty(t *testing.T) {
	app, _, _ := newTestApp(t)
	id := uuid.NewString()
	s := app.getSession(id)
	if s == nil || s.Input != "" {
		t.Fatalf("getSession returned %+v, want an empty session", s)
	}
	if s.LastAccessTime.IsZero() {
		t.Error("getSession did not set LastAccessTime")
	}
	if app.getSession(id) != s {
		t.Error("second getSession returned a different session")
	}
}

func TestGetSession_UpdatesLastAccessTimeFromCache(t *testing.T) {
	app, _, _ := newTestApp(t)
	id := uuid.NewString()
	s := app.getSession(id)
	past := time.Now().Add(-time.Hour)
	app.SessionMutex.Lock()
	s.LastAccessTime = past
	app.SessionMutex.Unlock()

	app.getSession(id)
	app.SessionMutex.RLock()
	defer app.SessionMutex.RUnlock()
	if !s.LastAccessTime.After(past) {
		t.Error("getSession did not refresh LastAccessTime")
	}
}

func TestGetSession_RestoresFromFile(t *testing.T) {
	app, _, _ := newTestApp(t)
	id := uuid.NewString()
	if err := saveSessionToFile(app.Config.SessionDir, id, &SessionState{Input: "SLA"}); err != nil {
		t.Fatalf("saveSessionToFile failed: %v", err)
	}
	if got := app.sessionInput(id); got != "SLA" {
		t.Errorf("restored input = %q, want %q", got, "SLA")
	}
}

func TestUpdateSession_PersistsOnChange(t *testing.T) {
	app, _, _ := newTestApp(t)
	id := uuid.NewString()
	path := filepath.Join(app.Config.SessionDir, id+".json")

	changed := app.updateSession(id, func(s *SessionState) bool { return false })
	if changed {
		t.Error("updateSession reported a change for a no-op")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("no-op update wrote a session file")
	}

	app.updateSession(id, func(s *SessionState) bool {
		s.Input = "CR"
		return true
	})
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("session file not written: %v", err)
	}

	// a fresh app sees the persisted input
	other, _, _ := newTestApp(t)
	other.Config.SessionDir = app.Config.SessionDir
	if got := other.sessionInput(id); got != "CR" {
		t.Errorf("input after restart = %q, want %q", got, "CR")
	}
}

func TestUpdateSession_SaveFailureKeepsMemory(t *testing.T) {
	app, _, _ := newTestApp(t)
	orig := saveSessionToFile
	defer func() { saveSessionToFile = orig }()
	saveSessionToFile = func(string, string, *SessionState) error {
		return errors.New("disk full")
	}

	id := uuid.NewString()
	app.updateSession(id, func(s *SessionState) bool {
		s.Input = "AB"
		return true
	})
	if got := app.sessionInput(id); got != "AB" {
		t.Errorf("input = %q, want %q", got, "AB")
	}
}

func TestEvictIdleSessions(t *testing.T) {
	app, _, _ := newTestApp(t)
	active := uuid.NewString()
	idle := uuid.NewString()
	app.getSession(active)
	s := app.getSession(idle)
	app.SessionMutex.Lock()
	s.LastAccessTime = time.Now().Add(-2 * time.Hour)
	app.SessionMutex.Unlock()

	if n := app.evictIdleSessions(time.Hour); n != 1 {
		t.Errorf("evictIdleSessions = %d, want 1", n)
	}
	app.SessionMutex.RLock()
	_, activeOK := app.Sessions[active]
	_, idleOK := app.Sessions[idle]
	app.SessionMutex.RUnlock()
	if !activeOK {
		t.Error("active session evicted")
	}
	if idleOK {
		t.Error("idle session kept")
	}
}

func TestBuildView_EmptyBoard(t *testing.T) {
	app, _, _ := newTestApp(t)
	view := app.buildView(context.Background(), uuid.NewString())

	if len(view.Rows) != board.MaxGuesses {
		t.Fatalf("rows = %d, want %d", len(view.Rows), board.MaxGuesses)
	}
	if !view.Rows[0].Current {
		t.Error("first row should hold the current input")
	}
	if view.CanSubmit {
		t.Error("empty input should not be submittable")
	}
	if view.Player != testPlayer.Hex() {
		t.Errorf("Player = %q, want %q", view.Player, testPlayer.Hex())
	}
	if view.ChainError != "" {
		t.Errorf("ChainError = %q, want empty", view.ChainError)
	}
	if view.RenderedAt == 0 {
		t.Error("RenderedAt not set")
	}
}

func TestBuildView_HistoryAndPendingGuess(t *testing.T) {
	app, _, game := newTestApp(t)
	game.snap = types.PlayerSnapshot{
		Guesses:        []string{"SLATE", "MOUND"},
		LetterStatuses: [][]types.LetterStatus{{0, 0, 2, 0, 1}, {0, 0, 0, 1, 0}},
	}
	game.pending = "CRANE"
	id := uuid.NewString()
	app.updateSession(id, func(s *SessionState) bool {
		s.Input = "BR"
		return true
	})

	view := app.buildView(context.Background(), id)
	if view.GuessesUsed != 2 {
		t.Errorf("GuessesUsed = %d, want 2", view.GuessesUsed)
	}
	if view.PendingGuess != "CRANE" {
		t.Errorf("PendingGuess = %q, want CRANE", view.PendingGuess)
	}
	pending := view.Rows[2]
	if !pending.Submitted || pending.Cells[0].Letter != "C" || pending.Cells[0].Scored {
		t.Errorf("pending row = %+v, want an unscored CRANE row", pending)
	}
	if !view.Rows[3].Current || view.Rows[3].Cells[1].Letter != "R" {
		t.Errorf("current row = %+v, want BR", view.Rows[3])
	}
	if view.Rows[0].Cells[2].Color != board.StatusColors[types.StatusExact] {
		t.Errorf("exact letter colour = %q", view.Rows[0].Cells[2].Color)
	}
	if view.PendingTx == "" {
		t.Error("PendingTx not set while a guess is outstanding")
	}
}

func TestBuildView_PendingGuessDroppedWhenBoardFull(t *testing.T) {
	app, _, game := newTestApp(t)
	game.snap = types.PlayerSnapshot{Guesses: []string{"AAAAA", "BBBBB", "CCCCC", "DDDDD", "EEEEE"}}
	game.pending = "CRANE"
	view := app.buildView(context.Background(), uuid.NewString())
	if view.PendingGuess != "" {
		t.Errorf("PendingGuess = %q, want empty on a full board", view.PendingGuess)
	}
	if len(view.Rows) != board.MaxGuesses {
		t.Errorf("rows = %d, want %d", len(view.Rows), board.MaxGuesses)
	}
}

func TestBuildView_Allowance(t *testing.T) {
	app, tokens, _ := newTestApp(t)
	allowance, _ := new(big.Int).SetString("5000000000000000000", 10)
	balance, _ := new(big.Int).SetString("12500000000000000000", 10)
	tokens.snap = types.TokenSnapshot{Allowance: allowance, Balance: balance}

	view := app.buildView(context.Background(), uuid.NewString())
	if view.Allowance != "5" || view.Balance != "12.5" {
		t.Errorf("Allowance, Balance = %q, %q; want 5, 12.5", view.Allowance, view.Balance)
	}
	if !view.HasAllowance {
		t.Error("HasAllowance = false, want true")
	}
}

func TestBuildView_ChainError(t *testing.T) {
	app, tokens, game := newTestApp(t)
	game.err = errors.New("dial tcp: connection refused")
	tokens.err = errors.New("dial tcp: connection refused")

	view := app.buildView(context.Background(), uuid.NewString())
	if view.ChainError != ErrorChainUnavailable {
		t.Errorf("ChainError = %q, want %q", view.ChainError, ErrorChainUnavailable)
	}
	if view.Allowance != "0" || view.Balance != "0" {
		t.Errorf("Allowance, Balance = %q, %q; want 0, 0", view.Allowance, view.Balance)
	}
	if len(view.Rows) != board.MaxGuesses {
		t.Errorf("board not rendered on chain error")
	}
}

func TestCellColor(t *testing.T) {
	if got := cellColor(board.Cell{}); got != "transparent" {
		t.Errorf("cellColor(empty) = %q, want transparent", got)
	}
	c := board.Cell{Color: board.StatusColors[types.StatusPartial]}
	if got := cellColor(c); got != c.Color {
		t.Errorf("cellColor = %q, want %q", got, c.Color)
	}
}
