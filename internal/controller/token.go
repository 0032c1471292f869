package controller

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"wordlechain/internal/chain"
	"wordlechain/internal/txn"
	"wordlechain/internal/types"
)

// TokenController reads and raises the allowance the game contract may
// spend from the player's token balance.
type TokenController struct {
	writer
	reader  chain.TokenReader
	send    chain.TokenWriter
	cache   *chain.ReadCache
	player  common.Address
	spender common.Address
	amount  *big.Int
}

// NewTokenController approves amount for spender (the game contract).
func NewTokenController(deps Deps, reader chain.TokenReader, send chain.TokenWriter, cache *chain.ReadCache, player, spender common.Address, amount *big.Int) *TokenController {
	return &TokenController{
		writer:  writer{Deps: deps},
		reader:  reader,
		send:    send,
		cache:   cache,
		player:  player,
		spender: spender,
		amount:  new(big.Int).Set(amount),
	}
}

func (t *TokenController) allowanceKey() string {
	return "allowance:" + t.player.Hex() + ":" + t.spender.Hex()
}

func (t *TokenController) balanceKey() string {
	return "balance:" + t.player.Hex()
}

// Allowance returns the (possibly cached) allowance in base units.
func (t *TokenController) Allowance(ctx context.Context) (*big.Int, error) {
	return chain.Cached(ctx, t.cache, t.allowanceKey(), "allowance", func(ctx context.Context) (*big.Int, error) {
		return t.reader.Allowance(ctx, t.player, t.spender)
	})
}

// Snapshot returns allowance and balance.
func (t *TokenController) Snapshot(ctx context.Context) (types.TokenSnapshot, error) {
	allowance, err := t.Allowance(ctx)
	if err != nil {
		return types.TokenSnapshot{}, fmt.Errorf("read allowance: %w", err)
	}
	balance, err := chain.Cached(ctx, t.cache, t.balanceKey(), "balanceOf", func(ctx context.Context) (*big.Int, error) {
		return t.reader.BalanceOf(ctx, t.player)
	})
	if err != nil {
		return types.TokenSnapshot{}, fmt.Errorf("read balance: %w", err)
	}
	return types.TokenSnapshot{Allowance: allowance, Balance: balance, FetchedAt: time.Now()}, nil
}

// Refetch drops cached token reads and reads them again.
func (t *TokenController) Refetch(ctx context.Context) (types.TokenSnapshot, error) {
	t.cache.Invalidate(t.allowanceKey(), t.balanceKey())
	return t.Snapshot(ctx)
}

// Approve asks the token contract to let the game spend the configured
// amount. The allowance is refetched once the receipt is mined.
func (t *TokenController) Approve(ctx context.Context) (txn.Handle, error) {
	if err := t.begin(); err != nil {
		return txn.Handle{}, err
	}
	return t.submit(ctx, writeOp{
		kind:    "approve",
		method:  "approve",
		failMsg: MsgApproveFailed,
		send: func(ctx context.Context) (common.Hash, error) {
			return t.send.Approve(ctx, t.spender, t.amount)
		},
		confirm: t.onApproveConfirmed,
	})
}

func (t *TokenController) onApproveConfirmed(ctx context.Context, receipt *ethtypes.Receipt) {
	if _, err := t.Refetch(ctx); err != nil {
		t.Log.Warnw("allowance refetch failed", "err", err)
	}
	if receipt.Status == ethtypes.ReceiptStatusSuccessful {
		t.Notifier.Notify(types.LevelSuccess, MsgApproved)
	} else {
		t.Notifier.Notify(types.LevelError, MsgReverted)
	}
	t.Notifier.Refresh()
}
