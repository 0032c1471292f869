package main

import "time"

// Page configuration
const (
	PageTitle   = "Wordle Chain"
	PageMessage = "Guess the 5-letter word on chain!"
)

// Session configuration constants
const (
	SessionCookieName = "session_id"
)

// Route constants
const (
	RouteHome      = "/"
	RouteGameState = "/game-state"
	RouteLetter    = "/letter"
	RouteDelete    = "/delete"
	RouteGuess     = "/guess"
	RouteApprove   = "/approve"
	RouteAllowance = "/allowance"
	RouteSetWord   = "/admin/word"
	RouteEvents    = "/events"
	RouteHealth    = "/healthz"
	RouteMetrics   = "/metrics"
)

// Error message constants
const (
	ErrorChainUnavailable = "Could not reach the game contract."
	ErrorTooManyRequests  = "Too many requests. Please slow down."
)

// SSE stream settings
const (
	ssePingInterval = 25 * time.Second
)

// Context key constants
const (
	requestIDKey contextKey = "request_id"
)
