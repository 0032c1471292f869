package main

import (
	"bytes"
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"wordlechain/internal/board"
	"wordlechain/internal/config"
	"wordlechain/internal/controller"
	"wordlechain/internal/logging"
	"wordlechain/internal/metrics"
	"wordlechain/internal/notify"
	"wordlechain/internal/txn"
	"wordlechain/internal/types"
)

var testPlayer = common.HexToAddress("0x00000000000000000000000000000000000000a1")

// stubTokens stands in for the token controller.
type stubTokens struct {
	mu         sync.Mutex
	hub        *notify.Hub
	snap       types.TokenSnapshot
	err        error
	approveErr error
	approvals  int
	refetches  int
	busy       bool
	pending    *txn.Handle
}

func (s *stubTokens) Snapshot(context.Context) (types.TokenSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, s.err
}

func (s *stubTokens) Refetch(context.Context) (types.TokenSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refetches++
	return s.snap, s.err
}

func (s *stubTokens) Approve(context.Context) (txn.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approvals++
	if s.approveErr != nil {
		s.hub.Notify(types.LevelError, controller.MsgApproveFailed)
		return txn.Handle{}, s.approveErr
	}
	h := txn.Handle{Hash: common.HexToHash("0xa11"), Kind: "approve"}
	s.pending = &h
	return h, nil
}

func (s *stubTokens) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

func (s *stubTokens) Pending() (txn.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return txn.Handle{}, false
	}
	return *s.pending, true
}

// stubGame stands in for the game controller. A submission is accepted
// unless rejectErr is set, in which case rejectMsg is raised as a toast.
type stubGame struct {
	mu        sync.Mutex
	hub       *notify.Hub
	snap      types.PlayerSnapshot
	err       error
	rejectErr error
	rejectMsg string
	submitted []string
	words     []string
	pending   string
	admin     bool
	busy      bool
	// onSubmit runs while a guess is being sent.
	onSubmit func()
}

func (s *stubGame) Snapshot(context.Context) (types.PlayerSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, s.err
}

func (s *stubGame) SubmitGuess(_ context.Context, guess string) (txn.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(guess) != board.WordLength {
		s.hub.Notify(types.LevelError, controller.MsgGuessLength)
		return txn.Handle{}, controller.ErrInvalidLength
	}
	if s.rejectErr != nil {
		s.hub.Notify(types.LevelError, s.rejectMsg)
		return txn.Handle{}, s.rejectErr
	}
	if s.onSubmit != nil {
		s.onSubmit()
	}
	s.submitted = append(s.submitted, guess)
	s.pending = guess
	return txn.Handle{Hash: common.HexToHash("0x911"), Kind: "guess"}, nil
}

func (s *stubGame) SetWord(_ context.Context, word string) (txn.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	word = controller.NormalizeWord(word)
	if len(word) != board.WordLength {
		s.hub.Notify(types.LevelError, controller.MsgWordLength)
		return txn.Handle{}, controller.ErrInvalidLength
	}
	s.words = append(s.words, word)
	s.hub.Notify(types.LevelSuccess, controller.MsgWordSet)
	return txn.Handle{Hash: common.HexToHash("0x5e7"), Kind: "set_word"}, nil
}

func (s *stubGame) PendingGuess() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *stubGame) IsAdmin(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.admin
}

func (s *stubGame) Player() common.Address {
	return testPlayer
}

func (s *stubGame) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

func (s *stubGame) Pending() (txn.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == "" {
		return txn.Handle{}, false
	}
	return txn.Handle{Hash: common.HexToHash("0x911"), Kind: "guess"}, true
}

func newTestApp(t *testing.T) (*App, *stubTokens, *stubGame) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.SessionDir = t.TempDir()
	hub := notify.NewHub(cfg.MaxNotification)
	tokens := &stubTokens{
		hub:  hub,
		snap: types.TokenSnapshot{Allowance: big.NewInt(0), Balance: big.NewInt(0)},
	}
	game := &stubGame{hub: hub}
	app := NewApp(cfg, logging.Nop(), tokens, game, hub, metrics.New())
	return app, tokens, game
}

// testClient replays the session cookie the server hands out.
type testClient struct {
	router *gin.Engine
	cookie *http.Cookie
}

func (tc *testClient) do(method, path, form string, htmx bool) *httptest.ResponseRecorder {
	var req *http.Request
	if form != "" {
		req, _ = http.NewRequest(method, path, strings.NewReader(form))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req, _ = http.NewRequest(method, path, nil)
	}
	req.RemoteAddr = "192.0.2.1:1234"
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	if tc.cookie != nil {
		req.AddCookie(tc.cookie)
	}
	w := httptest.NewRecorder()
	tc.router.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookieName {
			tc.cookie = c
		}
	}
	return w
}

func (tc *testClient) sessionID() string {
	if tc.cookie == nil {
		return ""
	}
	return tc.cookie.Value
}

// streamRecorder is a ResponseWriter that can be read while a handler is
// still writing to it.
type streamRecorder struct {
	mu     sync.Mutex
	header http.Header
	buf    bytes.Buffer
	code   int
	closed chan bool
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{header: make(http.Header), closed: make(chan bool, 1)}
}

func (r *streamRecorder) Header() http.Header { return r.header }

func (r *streamRecorder) Write(b []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.code == 0 {
		r.code = http.StatusOK
	}
	return r.buf.Write(b)
}

func (r *streamRecorder) WriteHeader(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.code == 0 {
		r.code = code
	}
}

func (r *streamRecorder) Flush() {}

func (r *streamRecorder) CloseNotify() <-chan bool { return r.closed }

func (r *streamRecorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.String()
}
