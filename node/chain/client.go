// Package chain provides JSON-RPC access to the chain hosting the game.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"

	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/types"
)

var (
	_ Reader = (*Client)(nil)
)

// Reader is the read side of the chain used by the game services.
type Reader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// Options tunes a Client.
type Options struct {
	// RequestsPerSecond limits read calls. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int
	HTTPTimeout       time.Duration
	Logger            log.Logger
}

// Client wraps the ethereum client with rate limited reads.
type Client struct {
	*ethclient.Client
	rpcClient *rpc.Client
	limiter   *rate.Limiter
	log       log.Logger
}

// createHTTPClient creates an HTTP client that keeps connections alive
// between polls.
func createHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := &http.Transport{
		MaxIdleConns:        16,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   false,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// Dial connects to the node at url.
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	rpcClient, err := rpc.DialOptions(ctx, url, rpc.WithHTTPClient(createHTTPClient(opts.HTTPTimeout)))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rpc client: %w", err)
	}
	return NewClient(rpcClient, opts), nil
}

// NewClient wraps an established rpc client.
func NewClient(rpcClient *rpc.Client, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = log.Root()
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return &Client{
		Client:    ethclient.NewClient(rpcClient),
		rpcClient: rpcClient,
		limiter:   limiter,
		log:       logger.New("component", "chain"),
	}
}

// RPC returns the underlying rpc client.
func (c *Client) RPC() *rpc.Client {
	return c.rpcClient
}

func (c *Client) throttle(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %w", types.ErrRPC, err)
	}
	return nil
}

// CallContract executes a read-only call.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}
	out, err := c.Client.CallContract(ctx, msg, blockNumber)
	if err != nil {
		c.log.Debug("eth_call failed", "to", msg.To, "err", err)
		return nil, fmt.Errorf("%w: eth_call: %w", types.ErrRPC, err)
	}
	return out, nil
}

// BalanceAt returns the native balance of account.
func (c *Client) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}
	bal, err := c.Client.BalanceAt(ctx, account, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: eth_getBalance: %w", types.ErrRPC, err)
	}
	return bal, nil
}

// TransactionReceipt returns the receipt of txHash, or ethereum.NotFound.
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}
	receipt, err := c.Client.TransactionReceipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: eth_getTransactionReceipt: %w", types.ErrRPC, err)
	}
	return receipt, nil
}

// ChainID returns the chain id reported by the node.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := c.Client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: eth_chainId: %w", types.ErrRPC, err)
	}
	return id, nil
}

// Close closes the connection.
func (c *Client) Close() {
	c.rpcClient.Close()
}
