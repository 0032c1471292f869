// Command wordlectl plays the on-chain Wordle from a terminal with the same
// wallet, guards and receipt handling as the web server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"wordlechain/internal/chain"
	"wordlechain/internal/config"
	"wordlechain/internal/controller"
	"wordlechain/internal/logging"
	"wordlechain/internal/metrics"
	"wordlechain/internal/txn"
)

type globalFlags struct {
	Verbose bool
	NoWait  bool
	NoColor bool
}

var flags globalFlags

var rootCmd = &cobra.Command{
	Use:   "wordlectl",
	Short: "Play Wordle Chain from the terminal",
	Long: `wordlectl talks to the token and game contracts configured for the
server (.env, CONFIG_FILE or the environment).

Examples:
  wordlectl status
  wordlectl approve
  wordlectl guess crane
  wordlectl set-word mound`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flags.NoColor {
			pterm.DisableColor()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Log chain calls and transaction states")
	rootCmd.PersistentFlags().BoolVar(&flags.NoWait, "no-wait", false, "Return once the transaction is sent instead of waiting for its receipt")
	rootCmd.PersistentFlags().BoolVar(&flags.NoColor, "no-color", false, "Disable colours")

	rootCmd.AddCommand(statusCmd, approveCmd, guessCmd, setWordCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		pterm.Error.Println(err)
		stop()
		os.Exit(1)
	}
}

// session is one connection to the contracts plus the controllers that
// drive them.
type session struct {
	cfg    config.Config
	log    *zap.SugaredLogger
	client *chain.Client
	cache  *chain.ReadCache
	tokens *controller.TokenController
	game   *controller.GameController
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}
	level := "warn"
	if flags.Verbose {
		level = "debug"
	}
	log := logging.New(logging.Options{Level: level, File: cfg.LogFile})

	client, err := chain.Dial(ctx, cfg, log.Named("chain"))
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.RPCURL, err)
	}

	m := metrics.New()
	cache, err := chain.NewReadCache(ctx, cfg.ReadCacheTTL, log.Named("cache"), m)
	if err != nil {
		client.Close()
		return nil, err
	}

	out := &printer{}
	newDeps := func(name string) controller.Deps {
		tracker := txn.NewTracker(client, cfg.ReceiptPoll, cfg.ReceiptTimeout, log.Named(name), m)
		tracker.OnTransition = func(s txn.State) {
			log.Debugw("transaction state", "controller", name, "state", s.String())
		}
		return controller.Deps{
			Background: ctx,
			Tracker:    tracker,
			Notifier:   out,
			Log:        log.Named(name),
			Metrics:    m,
		}
	}
	tokens := controller.NewTokenController(newDeps("token"), client, client, cache, client.Player(), cfg.GameAddress, cfg.ApproveAmount)
	game := controller.NewGameController(newDeps("game"), client, client, tokens, cache, client.Player())

	return &session{cfg: cfg, log: log, client: client, cache: cache, tokens: tokens, game: game}, nil
}

func (s *session) Close() {
	_ = s.cache.Close()
	s.client.Close()
	_ = s.log.Sync()
}

// withSession opens a session for the duration of run.
func withSession(run func(cmd *cobra.Command, s *session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		return run(cmd, s, args)
	}
}

// requireSigner fails early when no private key is configured.
func (s *session) requireSigner() error {
	if s.client.ReadOnly() {
		return fmt.Errorf("no PRIVATE_KEY configured; %s can only read", rootCmd.Name())
	}
	return nil
}

// await waits for the receipt of a write the controller just sent.
func (s *session) await(h txn.Handle, wait func()) {
	if flags.NoWait {
		pterm.Info.Printfln("Sent %s: %s", h.Kind, h.Hash.Hex())
		return
	}
	spinner, err := pterm.DefaultSpinner.Start(fmt.Sprintf("Waiting for %s %s", h.Kind, shortHash(h.Hash.Hex())))
	if err != nil {
		wait()
		return
	}
	wait()
	_ = spinner.Stop()
}

func shortHash(h string) string {
	if len(h) <= 14 {
		return h
	}
	return h[:8] + "…" + h[len(h)-4:]
}
