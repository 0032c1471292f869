package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

var errInvalidSessionID = errors.New("invalid session ID")

// validSessionID reports whether id is a UUID. Session IDs become file
// names, so nothing else is accepted.
func validSessionID(id string) bool {
	return uuid.Validate(id) == nil
}

// sessionPath returns the file a session is stored in.
func sessionPath(dir, sessionID string) (string, error) {
	if !validSessionID(sessionID) {
		return "", errInvalidSessionID
	}
	return filepath.Join(dir, sessionID+".json"), nil
}

// saveSessionToFile persists a session's in-progress guess to disk so a
// restart does not lose what the player typed.
var saveSessionToFile = func(dir, sessionID string, s *SessionState) error {
	sessionFile, err := sessionPath(dir, sessionID)
	if err != nil {
		logWarn("Skipping save for invalid session ID: %q", sessionID)
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		logWarn("Failed to create sessions directory: %v", err)
		return err
	}

	data, err := json.Marshal(s)
	if err != nil {
		logWarn("Failed to marshal session %s: %v", sessionID, err)
		return err
	}

	// readers never see a partially written file
	tmp := sessionFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		logWarn("Failed to write session file %s: %v", tmp, err)
		return err
	}
	if err := os.Rename(tmp, sessionFile); err != nil {
		logWarn("Failed to move session file into place %s: %v", sessionFile, err)
		os.Remove(tmp)
		return err
	}
	return nil
}

// loadSessionFromFile loads a session from disk. Files older than maxAge and
// files that do not decode are removed and reported as missing.
var loadSessionFromFile = func(dir, sessionID string, maxAge time.Duration) (*SessionState, error) {
	sessionFile, err := sessionPath(dir, sessionID)
	if err != nil {
		return nil, os.ErrNotExist
	}

	info, err := os.Stat(sessionFile)
	if err != nil {
		return nil, err
	}

	if age := time.Since(info.ModTime()); maxAge > 0 && age > maxAge {
		logInfo("Session file is too old (%v, max: %v), removing: %s", age, maxAge, sessionFile)
		os.Remove(sessionFile)
		return nil, os.ErrNotExist
	}

	data, err := os.ReadFile(sessionFile)
	if err != nil {
		logWarn("Failed to read session file %s: %v", sessionFile, err)
		return nil, err
	}

	var s SessionState
	if err := json.Unmarshal(data, &s); err != nil {
		logWarn("Failed to unmarshal session file %s (corrupted), removing: %v", sessionFile, err)
		os.Remove(sessionFile)
		return nil, os.ErrNotExist
	}
	// drop anything that could not have been typed
	s.Input = (&s).input().String()
	s.LastAccessTime = time.Now()
	return &s, nil
}

// cleanupOldSessions removes session files older than maxAge.
var cleanupOldSessions = func(dir string, maxAge time.Duration) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		logWarn("Failed to read sessions directory: %v", err)
		return err
	}

	cutoff := time.Now().Add(-maxAge)
	removedCount := 0
	errorCount := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			errorCount++
			continue
		}

		if info.ModTime().Before(cutoff) {
			sessionFile := filepath.Join(dir, entry.Name())
			if err := os.Remove(sessionFile); err != nil {
				logWarn("Failed to remove old session file %s: %v", sessionFile, err)
				errorCount++
			} else {
				removedCount++
			}
		}
	}

	logInfo("Session cleanup completed: removed %d files, %d errors", removedCount, errorCount)
	return nil
}
