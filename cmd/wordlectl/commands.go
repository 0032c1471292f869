package main

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"wordlechain/internal/board"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show allowance, balance and the board",
	Args:  cobra.NoArgs,
	RunE: withSession(func(cmd *cobra.Command, s *session, _ []string) error {
		ctx := cmd.Context()
		tokens, err := s.tokens.Refetch(ctx)
		if err != nil {
			return fmt.Errorf("read token state: %w", err)
		}
		snap, err := s.game.Refetch(ctx)
		if err != nil {
			return fmt.Errorf("read game state: %w", err)
		}

		pterm.DefaultSection.Println("Account")
		table, err := accountTable(s.game.Player().Hex(), tokens, s.cfg.TokenDecimals, s.game.IsAdmin(ctx), s.client.ReadOnly())
		if err != nil {
			return err
		}
		pterm.Println(table)

		pterm.DefaultSection.Println("Board")
		rows := board.Rows(snap.Guesses, snap.LetterStatuses, "", board.MaxGuesses)
		pterm.Println(renderBoard(rows))
		pterm.Println()
		pterm.Println(renderKeyboard(board.Keyboard(snap.Guesses, snap.LetterStatuses)))
		pterm.Println()
		pterm.Println(triesLine(len(snap.Guesses), snap.GuessedCorrectly))
		return nil
	}),
}

var approveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Let the game contract spend the configured token amount",
	Args:  cobra.NoArgs,
	RunE: withSession(func(cmd *cobra.Command, s *session, _ []string) error {
		if err := s.requireSigner(); err != nil {
			return err
		}
		h, err := s.tokens.Approve(cmd.Context())
		if err != nil {
			return err
		}
		s.await(h, s.tokens.Wait)
		return nil
	}),
}

var guessCmd = &cobra.Command{
	Use:   "guess WORD",
	Short: "Submit a five letter guess",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		if err := s.requireSigner(); err != nil {
			return err
		}
		h, err := s.game.SubmitGuess(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		s.await(h, s.game.Wait)
		if flags.NoWait {
			return nil
		}

		snap, err := s.game.Snapshot(cmd.Context())
		if err != nil {
			return fmt.Errorf("read game state: %w", err)
		}
		pterm.Println(renderBoard(board.Rows(snap.Guesses, snap.LetterStatuses, "", board.MaxGuesses)))
		pterm.Println(triesLine(len(snap.Guesses), snap.GuessedCorrectly))
		return nil
	}),
}

var setWordCmd = &cobra.Command{
	Use:   "set-word WORD",
	Short: "Set the secret word (contract admin only)",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		if err := s.requireSigner(); err != nil {
			return err
		}
		if !s.game.IsAdmin(cmd.Context()) {
			pterm.Warning.Println("This wallet is not the contract admin; the transaction will likely revert.")
		}
		h, err := s.game.SetWord(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		s.await(h, s.game.Wait)
		return nil
	}),
}
