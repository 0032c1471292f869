package main

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	ginGzip "github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	cachecontrol "go.eigsys.de/gin-cachecontrol/v2"
	"golang.org/x/time/rate"

	"wordlechain/internal/board"
	"wordlechain/internal/chain"
	"wordlechain/internal/config"
	"wordlechain/internal/controller"
	"wordlechain/internal/logging"
	"wordlechain/internal/metrics"
	"wordlechain/internal/notify"
	"wordlechain/internal/txn"
)

// App holds everything the HTTP layer needs.
type App struct {
	Config         config.Config
	Log            *zap.SugaredLogger
	Tokens         TokenService
	Game           GameService
	Hub            *notify.Hub
	Metrics        *metrics.Metrics
	Sessions       map[string]*SessionState
	SessionMutex   sync.RWMutex
	LimiterMap     map[string]*rate.Limiter
	LimiterMutex   sync.Mutex
	StartTime      time.Time
	IsProduction   bool
	CookieMaxAge   time.Duration
	StaticCacheAge time.Duration
	RateLimitRPS   int
	RateLimitBurst int
	ReadOnly       bool
}

// NewApp wires the HTTP layer to its services.
func NewApp(cfg config.Config, log *zap.SugaredLogger, tokens TokenService, game GameService, hub *notify.Hub, m *metrics.Metrics) *App {
	return &App{
		Config:         cfg,
		Log:            log,
		Tokens:         tokens,
		Game:           game,
		Hub:            hub,
		Metrics:        m,
		Sessions:       make(map[string]*SessionState),
		LimiterMap:     make(map[string]*rate.Limiter),
		StartTime:      time.Now(),
		IsProduction:   cfg.IsProduction,
		CookieMaxAge:   cfg.CookieMaxAge,
		StaticCacheAge: cfg.StaticCacheAge,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}
}

func main() {
	cfg, err := config.Load()
	log := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Production: cfg.IsProduction})
	defer log.Sync()
	zap.ReplaceGlobals(log.Desugar())
	if err != nil {
		logFatal("Invalid configuration: %v", err)
	}
	logInfo("Starting Wordle Chain in %s mode", map[bool]string{true: "production", false: "development"}[cfg.IsProduction])

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := chain.Dial(ctx, cfg, log.Named("chain"))
	if err != nil {
		logFatal("Failed to connect to chain: %v", err)
	}
	defer client.Close()

	m := metrics.New()
	cache, err := chain.NewReadCache(ctx, cfg.ReadCacheTTL, log.Named("cache"), m)
	if err != nil {
		logFatal("Failed to create read cache: %v", err)
	}
	defer cache.Close()

	hub := notify.NewHub(cfg.MaxNotification)
	newDeps := func(name string) controller.Deps {
		tracker := txn.NewTracker(client, cfg.ReceiptPoll, cfg.ReceiptTimeout, log.Named(name), m)
		tracker.OnTransition = func(s txn.State) {
			log.Debugw("transaction state", "controller", name, "state", s.String())
		}
		return controller.Deps{
			Background: ctx,
			Tracker:    tracker,
			Notifier:   hub,
			Log:        log.Named(name),
			Metrics:    m,
		}
	}
	tokens := controller.NewTokenController(newDeps("token"), client, client, cache, client.Player(), cfg.GameAddress, cfg.ApproveAmount)
	game := controller.NewGameController(newDeps("game"), client, client, tokens, cache, client.Player())

	app := NewApp(cfg, log, tokens, game, hub, m)
	app.ReadOnly = client.ReadOnly()
	if app.ReadOnly {
		logWarn("No PRIVATE_KEY configured; writes will fail")
	}

	go app.sessionJanitor(ctx, getEnvDuration("SESSION_CLEANUP_INTERVAL", 30*time.Minute))

	router := app.setupRouter()
	app.startServer(ctx, router)

	// let confirmations that already arrived finish their refetch
	tokens.Wait()
	game.Wait()
}

// setupRouter registers middleware, templates, static assets and routes.
func (app *App) setupRouter() *gin.Engine {
	if app.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestIDMiddleware(), requestLogger(app.Log), app.Metrics.Middleware())

	// the event stream must flush per event, so it is never compressed
	router.Use(ginGzip.Gzip(ginGzip.DefaultCompression,
		ginGzip.WithExcludedExtensions([]string{".svg", ".ico", ".png", ".jpg", ".jpeg", ".gif"}),
		ginGzip.WithExcludedPaths([]string{"/static/fonts", RouteEvents})))

	if err := router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logWarn("Failed to set trusted proxies: %v", err)
	}

	router.Use(func(c *gin.Context) {
		app.applyCacheHeaders(c)
	})

	router.SetFuncMap(template.FuncMap{
		"cellColor": cellColor,
	})
	if app.IsProduction && dirExists("dist") {
		logInfo("Serving assets from dist/ directory")
		router.LoadHTMLGlob("dist/templates/*.html")
		router.Static("/static", "./dist/static")
	} else {
		logInfo("Serving development assets from source directories")
		router.LoadHTMLGlob("templates/*.html")
		router.Static("/static", "./static")
	}

	router.GET(RouteHome, app.homeHandler)
	router.GET(RouteGameState, app.gameStateHandler)
	router.GET(RouteEvents, app.eventsHandler)
	router.GET(RouteHealth, app.healthzHandler)
	router.GET(RouteMetrics, gin.WrapH(promhttp.HandlerFor(app.Metrics.Registry, promhttp.HandlerOpts{})))

	writes := router.Group("/", app.rateLimitMiddleware())
	writes.POST(RouteLetter, app.letterHandler)
	writes.POST(RouteDelete, app.deleteHandler)
	writes.POST(RouteGuess, app.guessHandler)
	writes.POST(RouteApprove, app.approveHandler)
	writes.POST(RouteAllowance, app.allowanceHandler)
	writes.POST(RouteSetWord, app.setWordHandler)

	return router
}

// startServer serves until ctx is cancelled, then shuts down gracefully.
func (app *App) startServer(ctx context.Context, router *gin.Engine) {
	srv := &http.Server{
		Addr:              ":" + app.Config.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		<-ctx.Done()
		logInfo("Shutdown signal received, shutting down server gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logWarn("HTTP server Shutdown: %v", err)
		}
		close(idleConnsClosed)
	}()

	logInfo("Server starting on http://localhost:%s", app.Config.Port)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logFatal("Server failed to start: %v", err)
	}
	<-idleConnsClosed
	logInfo("Server shutdown complete")
}

// applyCacheHeaders lets browsers cache static assets in production and
// nothing else; board state changes with every confirmed transaction.
func (app *App) applyCacheHeaders(c *gin.Context) {
	if app.IsProduction && strings.HasPrefix(c.Request.URL.Path, "/static/") {
		cachecontrol.New(cachecontrol.Config{
			Public: true,
			MaxAge: cachecontrol.Duration(app.StaticCacheAge),
		})(c)
		c.Header("Vary", "Accept-Encoding")
		return
	}
	cachecontrol.New(cachecontrol.Config{
		NoStore:        true,
		NoCache:        true,
		MustRevalidate: true,
	})(c)
}

// sessionJanitor periodically evicts idle sessions from memory and removes
// expired session files.
func (app *App) sessionJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := app.evictIdleSessions(app.Config.SessionTimeout); n > 0 {
				logInfo("Evicted %d idle sessions", n)
			}
			if err := cleanupOldSessions(app.Config.SessionDir, app.Config.SessionTimeout); err != nil {
				logWarn("Session cleanup failed: %v", err)
			}
		}
	}
}

// cellColor is the template helper for a board cell's background.
func cellColor(c board.Cell) string {
	if c.Color != "" {
		return c.Color
	}
	return "transparent"
}
