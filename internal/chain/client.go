// Package chain talks to the token and game contracts over JSON-RPC.
package chain

import (
	"context"
	"crypto/ecdsa"
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"wordlechain/internal/config"
	"wordlechain/internal/types"
)

var (
	//go:embed abi/WordleToken.json
	tokenABIJSON string
	//go:embed abi/WordleGame.json
	gameABIJSON string

	TokenABI = mustParseABI(tokenABIJSON)
	GameABI  = mustParseABI(gameABIJSON)
)

var (
	ErrReadOnly  = errors.New("no signing key configured")
	ErrNoPlayer  = errors.New("no player address: set PRIVATE_KEY or PLAYER_ADDRESS")
	ErrBadOutput = errors.New("unexpected contract output")
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("parse embedded ABI: %v", err))
	}
	return parsed
}

// TokenReader reads the ERC-20 token.
type TokenReader interface {
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
}

// TokenWriter sends token transactions.
type TokenWriter interface {
	Approve(ctx context.Context, spender common.Address, amount *big.Int) (common.Hash, error)
}

// GameReader reads the game contract.
type GameReader interface {
	Admin(ctx context.Context) (common.Address, error)
	PlayerGuesses(ctx context.Context, player common.Address) ([]string, error)
	HasGuessedCorrectly(ctx context.Context, player common.Address) (bool, error)
	LetterStatuses(ctx context.Context, player common.Address, index int) ([]types.LetterStatus, error)
}

// GameWriter sends game transactions.
type GameWriter interface {
	MakeGuess(ctx context.Context, word string) (common.Hash, error)
	SetWord(ctx context.Context, word string) (common.Hash, error)
}

// Client implements every reader and writer above plus receipt lookup.
type Client struct {
	eth     *ethclient.Client
	token   *bind.BoundContract
	game    *bind.BoundContract
	auth    *bind.TransactOpts
	player  common.Address
	chainID *big.Int
	log     *zap.SugaredLogger

	// serialises writes so concurrent approve/guess calls do not race for
	// the same pending nonce
	sendMu sync.Mutex
}

// Dial connects to cfg.RPCURL and binds both contracts. Without a private
// key the client is read-only and reads as cfg.PlayerAddress.
func Dial(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc %s: %w", cfg.RPCURL, err)
	}

	chainID := cfg.ChainID
	if chainID == nil {
		if chainID, err = eth.ChainID(ctx); err != nil {
			eth.Close()
			return nil, fmt.Errorf("query chain id: %w", err)
		}
	}

	c := &Client{
		eth:     eth,
		token:   bind.NewBoundContract(cfg.TokenAddress, TokenABI, eth, eth, eth),
		game:    bind.NewBoundContract(cfg.GameAddress, GameABI, eth, eth, eth),
		player:  cfg.PlayerAddress,
		chainID: chainID,
		log:     log,
	}

	if cfg.PrivateKey != "" {
		key, err := crypto.HexToECDSA(cfg.PrivateKey)
		if err != nil {
			eth.Close()
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		if err := c.useKey(key); err != nil {
			eth.Close()
			return nil, err
		}
	}
	if c.player == (common.Address{}) {
		eth.Close()
		return nil, ErrNoPlayer
	}

	log.Infow("connected to chain", "rpc", cfg.RPCURL, "chainId", chainID.String(),
		"player", c.player.Hex(), "token", cfg.TokenAddress.Hex(), "game", cfg.GameAddress.Hex(),
		"readOnly", c.auth == nil)
	return c, nil
}

func (c *Client) useKey(key *ecdsa.PrivateKey) error {
	auth, err := bind.NewKeyedTransactorWithChainID(key, c.chainID)
	if err != nil {
		return fmt.Errorf("build transactor: %w", err)
	}
	c.auth = auth
	c.player = crypto.PubkeyToAddress(key.PublicKey)
	return nil
}

// Player is the address reads are made for and writes are signed by.
func (c *Client) Player() common.Address {
	return c.player
}

func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

func (c *Client) ReadOnly() bool {
	return c.auth == nil
}

func (c *Client) Close() {
	c.eth.Close()
}

// TransactionReceipt returns ethereum.NotFound while the transaction is pending.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	return c.eth.TransactionReceipt(ctx, hash)
}

func (c *Client) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	out, err := c.call(ctx, c.token, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

func (c *Client) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	out, err := c.call(ctx, c.token, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

func (c *Client) Approve(ctx context.Context, spender common.Address, amount *big.Int) (common.Hash, error) {
	return c.transact(ctx, c.token, "approve", spender, amount)
}

func (c *Client) Admin(ctx context.Context) (common.Address, error) {
	out, err := c.call(ctx, c.game, "admin")
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

func (c *Client) PlayerGuesses(ctx context.Context, player common.Address) ([]string, error) {
	out, err := c.call(ctx, c.game, "getPlayerGuesses", player)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]string)).(*[]string), nil
}

func (c *Client) HasGuessedCorrectly(ctx context.Context, player common.Address) (bool, error) {
	out, err := c.call(ctx, c.game, "getHasPlayerGuessedCorrectly", player)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (c *Client) LetterStatuses(ctx context.Context, player common.Address, index int) ([]types.LetterStatus, error) {
	out, err := c.call(ctx, c.game, "getLetterStatuses", player, big.NewInt(int64(index)))
	if err != nil {
		return nil, err
	}
	raw := *abi.ConvertType(out[0], new([]uint8)).(*[]uint8)
	return toStatuses(raw), nil
}

func (c *Client) MakeGuess(ctx context.Context, word string) (common.Hash, error) {
	return c.transact(ctx, c.game, "makeGuess", word)
}

func (c *Client) SetWord(ctx context.Context, word string) (common.Hash, error) {
	return c.transact(ctx, c.game, "setWord", word)
}

func (c *Client) call(ctx context.Context, contract *bind.BoundContract, method string, args ...any) ([]any, error) {
	var out []any
	opts := &bind.CallOpts{Context: ctx, From: c.player}
	if err := contract.Call(opts, &out, method, args...); err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s returned nothing", ErrBadOutput, method)
	}
	return out, nil
}

func (c *Client) transact(ctx context.Context, contract *bind.BoundContract, method string, args ...any) (common.Hash, error) {
	if c.auth == nil {
		return common.Hash{}, ErrReadOnly
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	opts := *c.auth
	opts.Context = ctx
	tx, err := contract.Transact(&opts, method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("send %s: %w", method, err)
	}
	c.log.Infow("transaction sent", "method", method, "hash", tx.Hash().Hex(), "nonce", tx.Nonce())
	return tx.Hash(), nil
}

func toStatuses(raw []uint8) []types.LetterStatus {
	out := make([]types.LetterStatus, len(raw))
	for i, v := range raw {
		out[i] = types.LetterStatus(v)
	}
	return out
}
