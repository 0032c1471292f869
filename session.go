package main

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// getOrCreateSession retrieves the session ID from the cookie or creates a new one.
func (app *App) getOrCreateSession(c *gin.Context) string {
	sessionID, err := c.Cookie(SessionCookieName)
	if err != nil || !validSessionID(sessionID) {
		sessionID = uuid.NewString()
		c.SetSameSite(http.SameSiteStrictMode)
		secure := app.IsProduction
		c.SetCookie(SessionCookieName, sessionID, int(app.CookieMaxAge.Seconds()), "/", "", secure, true)
		logInfo("Created new session: %s", sessionID)
	}
	return sessionID
}

// getSession returns the in-memory session, falling back to the copy on
// disk, or a fresh empty one.
func (app *App) getSession(sessionID string) *SessionState {
	app.SessionMutex.RLock()
	s, exists := app.Sessions[sessionID]
	app.SessionMutex.RUnlock()
	if exists {
		app.SessionMutex.Lock()
		s.LastAccessTime = time.Now()
		app.SessionMutex.Unlock()
		return s
	}

	s, err := loadSessionFromFile(app.Config.SessionDir, sessionID, app.Config.SessionTimeout)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logWarn("Failed to restore session %s: %v", sessionID, err)
		}
		s = &SessionState{LastAccessTime: time.Now()}
	}

	app.SessionMutex.Lock()
	// another request may have created it meanwhile
	if existing, ok := app.Sessions[sessionID]; ok {
		s = existing
	} else {
		app.Sessions[sessionID] = s
	}
	app.SessionMutex.Unlock()
	return s
}

// updateSession applies fn to the session's input under the lock and
// persists the result. It reports whether fn changed anything.
func (app *App) updateSession(sessionID string, fn func(s *SessionState) bool) bool {
	s := app.getSession(sessionID)

	app.SessionMutex.Lock()
	changed := fn(s)
	s.LastAccessTime = time.Now()
	snapshot := *s
	app.SessionMutex.Unlock()

	if changed {
		if err := saveSessionToFile(app.Config.SessionDir, sessionID, &snapshot); err != nil {
			logWarn("Failed to persist session %s: %v", sessionID, err)
		}
	}
	return changed
}

// sessionInput returns the session's current guess.
func (app *App) sessionInput(sessionID string) string {
	s := app.getSession(sessionID)
	app.SessionMutex.RLock()
	defer app.SessionMutex.RUnlock()
	return s.Input
}

// evictIdleSessions drops in-memory sessions not touched within maxAge.
// Their files stay on disk until cleanupOldSessions removes them.
func (app *App) evictIdleSessions(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	app.SessionMutex.Lock()
	defer app.SessionMutex.Unlock()
	evicted := 0
	for id, s := range app.Sessions {
		if s.LastAccessTime.Before(cutoff) {
			delete(app.Sessions, id)
			evicted++
		}
	}
	return evicted
}
