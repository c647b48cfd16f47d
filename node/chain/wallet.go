package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/types"
)

var (
	_ Wallet = (*KeyedWallet)(nil)
	_ Wallet = (*RPCWallet)(nil)
)

// userRejectedCode is the EIP-1193 error code for a declined request.
const userRejectedCode = 4001

// DefaultGasLimit is used when gas estimation fails.
const DefaultGasLimit = 300000

// Wallet submits transactions on behalf of the player.
type Wallet interface {
	Address() common.Address
	SendTransaction(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error)
}

// Backend is the node access a KeyedWallet needs to build and send
// transactions.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
}

// SignRequest describes a transaction awaiting the user's signature.
type SignRequest struct {
	From     common.Address
	To       common.Address
	Data     []byte
	Value    *big.Int
	Gas      uint64
	GasPrice *big.Int
}

// ConfirmFunc asks the user to sign. Returning false declines.
type ConfirmFunc func(ctx context.Context, req SignRequest) (bool, error)

// KeyedWallet signs transactions with a local key.
type KeyedWallet struct {
	key     *ecdsa.PrivateKey
	addr    common.Address
	backend Backend
	signer  gethtypes.Signer
	confirm ConfirmFunc
	log     log.Logger

	mu sync.Mutex
}

// NewKeyedWallet loads a hex private key for chainID.
func NewKeyedWallet(hexKey string, chainID *big.Int, backend Backend, logger log.Logger) (*KeyedWallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	if logger == nil {
		logger = log.Root()
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)
	return &KeyedWallet{
		key:     key,
		addr:    addr,
		backend: backend,
		signer:  gethtypes.LatestSignerForChainID(chainID),
		log:     logger.New("component", "wallet", "address", addr),
	}, nil
}

// SetConfirm installs the signature prompt.
func (w *KeyedWallet) SetConfirm(fn ConfirmFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.confirm = fn
}

// Address returns the signing address.
func (w *KeyedWallet) Address() common.Address {
	return w.addr
}

// SendTransaction builds, signs and broadcasts a transaction to to.
// Sends are serialised so pending nonces do not collide.
func (w *KeyedWallet) SendTransaction(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	value = TxValue(value)
	nonce, err := w.backend.PendingNonceAt(ctx, w.addr)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: failed to get nonce: %w", types.ErrRPC, err)
	}
	gasPrice, err := w.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: failed to get gas price: %w", types.ErrRPC, err)
	}
	gasLimit, err := w.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  w.addr,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		gasLimit = DefaultGasLimit
		w.log.Warn("Gas estimation failed, using default", "gas", gasLimit, "err", err)
	}

	if w.confirm != nil {
		ok, err := w.confirm(ctx, SignRequest{
			From:     w.addr,
			To:       to,
			Data:     common.CopyBytes(data),
			Value:    new(big.Int).Set(value),
			Gas:      gasLimit,
			GasPrice: gasPrice,
		})
		if err != nil {
			return common.Hash{}, fmt.Errorf("signature prompt: %w", err)
		}
		if !ok {
			return common.Hash{}, types.ErrUserRejected
		}
	}

	tx := gethtypes.NewTransaction(nonce, to, value, gasLimit, gasPrice, data)
	signedTx, err := gethtypes.SignTx(tx, w.signer, w.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := w.backend.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("%w: failed to send transaction: %w", types.ErrRPC, err)
	}
	w.log.Debug("Transaction sent", "hash", signedTx.Hash(), "nonce", nonce, "gas", gasLimit)
	return signedTx.Hash(), nil
}

// RPCWallet submits through eth_sendTransaction on an account managed by the
// node or an external signer. The signer's 4001 error is a user rejection.
type RPCWallet struct {
	rpcClient *rpc.Client
	addr      common.Address
}

// NewRPCWallet returns a wallet for the node-managed account addr.
func NewRPCWallet(rpcClient *rpc.Client, addr common.Address) *RPCWallet {
	return &RPCWallet{rpcClient: rpcClient, addr: addr}
}

// Address returns the sending account.
func (w *RPCWallet) Address() common.Address {
	return w.addr
}

type sendTxArgs struct {
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
	Data  hexutil.Bytes  `json:"data"`
	Value *hexutil.Big   `json:"value"`
}

// SendTransaction asks the signer to send a transaction to to.
func (w *RPCWallet) SendTransaction(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error) {
	var hash common.Hash
	args := sendTxArgs{
		From:  w.addr,
		To:    to,
		Data:  data,
		Value: (*hexutil.Big)(TxValue(value)),
	}
	if err := w.rpcClient.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		if IsUserRejection(err) {
			return common.Hash{}, fmt.Errorf("%w: %v", types.ErrUserRejected, err)
		}
		return common.Hash{}, fmt.Errorf("%w: eth_sendTransaction: %w", types.ErrRPC, err)
	}
	return hash, nil
}

// IsUserRejection reports whether err is a signer's rejection.
func IsUserRejection(err error) bool {
	if errors.Is(err, types.ErrUserRejected) {
		return true
	}
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr) && rpcErr.ErrorCode() == userRejectedCode
}
