package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"slices"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"wordlechain/internal/board"
	"wordlechain/internal/notify"
	"wordlechain/internal/types"
)

// homeHandler renders the full page for the current session.
func (app *App) homeHandler(c *gin.Context) {
	sessionID := app.getOrCreateSession(c)
	view := app.buildView(c.Request.Context(), sessionID)
	c.HTML(http.StatusOK, "index.html", gin.H{
		"title":   PageTitle,
		"message": PageMessage,
		"game":    view,
	})
}

// gameStateHandler renders the board as an HTML fragment. Pages call it
// when the event stream reports confirmed chain state.
func (app *App) gameStateHandler(c *gin.Context) {
	sessionID := app.getOrCreateSession(c)
	view := app.buildView(c.Request.Context(), sessionID)
	c.HTML(http.StatusOK, "game-content", gin.H{"game": view})
}

// letterHandler appends one letter to the session's guess.
func (app *App) letterHandler(c *gin.Context) {
	since := time.Now()
	sessionID := app.getOrCreateSession(c)
	r, _ := utf8.DecodeRuneInString(c.PostForm("letter"))
	app.updateSession(sessionID, func(s *SessionState) bool {
		in := s.input()
		added := in.Add(r)
		s.Input = in.String()
		return added
	})
	app.respond(c, sessionID, since)
}

// deleteHandler removes the last letter of the session's guess.
func (app *App) deleteHandler(c *gin.Context) {
	since := time.Now()
	sessionID := app.getOrCreateSession(c)
	app.updateSession(sessionID, func(s *SessionState) bool {
		in := s.input()
		removed := in.Delete()
		s.Input = in.String()
		return removed
	})
	app.respond(c, sessionID, since)
}

// guessHandler submits the session's guess. The typed letters are cleared
// once the contract accepts the write; a rejected or failed submission
// leaves them in place.
func (app *App) guessHandler(c *gin.Context) {
	since := time.Now()
	sessionID := app.getOrCreateSession(c)
	guess := app.sessionInput(sessionID)

	if _, err := app.Game.SubmitGuess(app.writeContext(c), guess); err != nil {
		logInfo("Guess %q not submitted for session %s: %v", guess, sessionID, err)
	} else {
		logInfo("Session %s submitted guess %s", sessionID, guess)
		app.updateSession(sessionID, func(s *SessionState) bool {
			in := s.input()
			if in.String() != guess {
				return false
			}
			in.Reset()
			s.Input = in.String()
			return true
		})
	}
	app.respond(c, sessionID, since)
}

// approveHandler lets the game contract spend the configured token amount.
func (app *App) approveHandler(c *gin.Context) {
	since := time.Now()
	sessionID := app.getOrCreateSession(c)
	if _, err := app.Tokens.Approve(app.writeContext(c)); err != nil {
		logInfo("Approve not submitted: %v", err)
	}
	app.respond(c, sessionID, since)
}

// allowanceHandler re-reads the allowance and balance, bypassing the cache.
func (app *App) allowanceHandler(c *gin.Context) {
	since := time.Now()
	sessionID := app.getOrCreateSession(c)
	if _, err := app.Tokens.Refetch(c.Request.Context()); err != nil {
		logWarn("Allowance refetch failed: %v", err)
		app.Hub.Notify(types.LevelError, ErrorChainUnavailable)
	}
	app.respond(c, sessionID, since)
}

// setWordHandler sends setWord. The contract decides whether the caller is
// allowed to.
func (app *App) setWordHandler(c *gin.Context) {
	since := time.Now()
	sessionID := app.getOrCreateSession(c)
	if _, err := app.Game.SetWord(app.writeContext(c), c.PostForm("word")); err != nil {
		logInfo("Set word not submitted: %v", err)
	}
	app.respond(c, sessionID, since)
}

// eventsHandler streams notifications and board refresh triggers. A page
// passes the time it was rendered as ?since= (unix millis) to receive
// toasts raised before the stream opened.
func (app *App) eventsHandler(c *gin.Context) {
	events, unsubscribe := app.Hub.Subscribe()
	defer unsubscribe()

	// the stream outlives the server's write timeout
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	if ms, err := strconv.ParseInt(c.Query("since"), 10, 64); err == nil {
		for _, n := range app.Hub.Since(time.UnixMilli(ms)) {
			c.SSEvent(notify.KindToast, n)
		}
	}
	c.Writer.Flush()

	ping := time.NewTicker(ssePingInterval)
	defer ping.Stop()
	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev := <-events:
			if ev.Kind == notify.KindToast {
				c.SSEvent(ev.Kind, ev.Notification)
			} else {
				c.SSEvent(ev.Kind, strconv.FormatInt(time.Now().UnixMilli(), 10))
			}
			return true
		case <-ping.C:
			c.SSEvent("ping", strconv.FormatInt(time.Now().UnixMilli(), 10))
			return true
		}
	})
}

// healthzHandler returns a JSON health check with server stats.
func (app *App) healthzHandler(c *gin.Context) {
	uptime := time.Since(app.StartTime)
	app.SessionMutex.RLock()
	sessions := len(app.Sessions)
	app.SessionMutex.RUnlock()

	pending := ""
	if h, ok := app.Game.Pending(); ok {
		pending = h.Hash.Hex()
	} else if h, ok := app.Tokens.Pending(); ok {
		pending = h.Hash.Hex()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"env":         map[bool]string{true: "production", false: "development"}[app.IsProduction],
		"player":      app.Game.Player().Hex(),
		"read_only":   app.ReadOnly,
		"pending_tx":  pending,
		"sessions":    sessions,
		"subscribers": app.Hub.SubscriberCount(),
		"uptime":      formatUptime(uptime),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

// writeContext keeps a contract write going if the browser disconnects
// mid-request.
func (app *App) writeContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

// respond renders the board fragment for HTMX requests and the full page
// otherwise. Toasts raised since start go out in an HX-Trigger header; the
// page drops any it already received over the event stream.
func (app *App) respond(c *gin.Context, sessionID string, since time.Time) {
	view := app.buildView(c.Request.Context(), sessionID)
	toasts := app.Hub.Since(since)

	if c.GetHeader("HX-Request") == "true" {
		if len(toasts) > 0 {
			if b, err := json.Marshal(map[string]any{"toast": toasts}); err == nil {
				c.Header("HX-Trigger", string(b))
			} else {
				logWarn("Failed to marshal HX-Trigger payload: %v", err)
			}
		}
		c.HTML(http.StatusOK, "game-content", gin.H{"game": view})
		return
	}

	view.Notifications = toasts
	c.HTML(http.StatusOK, "index.html", gin.H{
		"title":   PageTitle,
		"message": PageMessage,
		"game":    view,
	})
}

// buildView reads chain state and lays out the board for one session. A
// guess whose receipt is outstanding is shown as an unscored row.
func (app *App) buildView(ctx context.Context, sessionID string) GameView {
	input := app.sessionInput(sessionID)
	view := GameView{
		Input:      input,
		CanSubmit:  board.NewInput(input).Ready(),
		MaxGuesses: board.MaxGuesses,
		Player:     app.Game.Player().Hex(),
		RenderedAt: time.Now().UnixMilli(),
		Allowance:  "0",
		Balance:    "0",
	}

	snap, err := app.Game.Snapshot(ctx)
	if err != nil {
		logWarn("Game snapshot failed for session %s: %v", sessionID, err)
		view.ChainError = ErrorChainUnavailable
	}
	tokens, err := app.Tokens.Snapshot(ctx)
	if err != nil {
		logWarn("Token snapshot failed for session %s: %v", sessionID, err)
		view.ChainError = ErrorChainUnavailable
	} else {
		view.Allowance = types.FormatUnits(tokens.Allowance, app.Config.TokenDecimals)
		view.Balance = types.FormatUnits(tokens.Balance, app.Config.TokenDecimals)
		view.HasAllowance = tokens.HasAllowance()
	}

	history := snap.Guesses
	if pending := app.Game.PendingGuess(); pending != "" && len(history) < board.MaxGuesses {
		history = append(slices.Clone(history), pending)
		view.PendingGuess = pending
	}
	view.Rows = board.Rows(history, snap.LetterStatuses, input, board.MaxGuesses)
	view.Keyboard = board.Keyboard(snap.Guesses, snap.LetterStatuses)
	view.Correct = snap.GuessedCorrectly
	view.GuessesUsed = len(snap.Guesses)
	view.Busy = app.Game.Busy() || app.Tokens.Busy()
	view.IsAdmin = app.Game.IsAdmin(ctx)

	if h, ok := app.Game.Pending(); ok {
		view.PendingTx = h.Hash.Hex()
	} else if h, ok := app.Tokens.Pending(); ok {
		view.PendingTx = h.Hash.Hex()
	}
	return view
}
