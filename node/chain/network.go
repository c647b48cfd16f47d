package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/types"
)

// CheckNetwork verifies that r is connected to chain want.
func CheckNetwork(ctx context.Context, r Reader, want uint64) error {
	id, err := r.ChainID(ctx)
	if err != nil {
		return err
	}
	if !id.IsUint64() || id.Uint64() != want {
		return fmt.Errorf("%w: connected to chain %s, want %d", types.ErrNetworkMismatch, id, want)
	}
	return nil
}

// RevertReason replays a failed transaction as a call at its block and
// returns the revert string, if the contract produced one.
func RevertReason(ctx context.Context, r Reader, tx types.Transaction, blockNumber *big.Int) (string, error) {
	to := tx.To
	msg := ethereum.CallMsg{
		From:  tx.From,
		To:    &to,
		Value: tx.Value,
		Data:  tx.Data,
	}
	out, err := r.CallContract(ctx, msg, blockNumber)
	if err != nil {
		var dataErr rpc.DataError
		if errors.As(err, &dataErr) {
			if reason, ok := unpackRevertData(dataErr.ErrorData()); ok {
				return reason, nil
			}
		}
		return "", err
	}
	reason, err := abi.UnpackRevert(out)
	if err != nil {
		return "", errors.New("execution reverted")
	}
	return reason, nil
}

func unpackRevertData(data interface{}) (string, bool) {
	s, ok := data.(string)
	if !ok {
		return "", false
	}
	raw, err := hexutil.Decode(s)
	if err != nil {
		return "", false
	}
	reason, err := abi.UnpackRevert(raw)
	if err != nil {
		return "", false
	}
	return reason, true
}

// TxValue returns v or zero when v is nil.
func TxValue(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
