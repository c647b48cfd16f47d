package events

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/codec"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/types"
)

var (
	gameAddr  = common.HexToAddress("0xFBF81bFA463252e25C8883ac0E3EBae99617A52c")
	tokenAddr = common.HexToAddress("0x55aC731aAa3442CE4D8bd8486eE4521B1D6Af5EC")
	player    = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

func playLog(t *testing.T, slot, payout int64, main, mini bool) *gethtypes.Log {
	t.Helper()
	topic, err := codec.NewGame().EventTopic(codec.EventPlay)
	require.NoError(t, err)
	p := new(big.Int).Mul(big.NewInt(payout), big.NewInt(1e18))
	data, err := codec.EncodeWords(
		codec.Uint256(big.NewInt(slot)),
		codec.Uint256(p),
		codec.Bool(main),
		codec.Bool(mini),
	)
	require.NoError(t, err)
	return &gethtypes.Log{
		Address: gameAddr,
		Topics: []common.Hash{
			topic,
			common.BytesToHash(player.Bytes()),
			common.BigToHash(big.NewInt(77)),
		},
		Data:        data,
		BlockNumber: 1234,
	}
}

func transferLog() *gethtypes.Log {
	return &gethtypes.Log{
		Address: tokenAddr,
		Topics: []common.Hash{
			codec.EventSignatureHash("Transfer(address,address,uint256)"),
			common.BytesToHash(player.Bytes()),
			common.BytesToHash(gameAddr.Bytes()),
		},
		Data: common.BigToHash(big.NewInt(10)).Bytes(),
	}
}

func TestResolvePlay(t *testing.T) {
	pm, err := NewPlayMatcher(codec.NewGame(), common.Address{})
	require.NoError(t, err)

	txHash := common.HexToHash("0xbeef")
	logs := []*gethtypes.Log{transferLog(), playLog(t, 3, 5, false, true)}

	res, err := pm.Resolve(logs, txHash)
	require.NoError(t, err)
	require.Equal(t, player, res.Player)
	require.Equal(t, int64(77), res.PlayID.Int64())
	require.Equal(t, uint64(3), res.Slot)
	require.Equal(t, "5000000000000000000", res.Payout.String())
	require.False(t, res.MainJackpotHit)
	require.True(t, res.MiniJackpotHit)
	require.Equal(t, txHash, res.TxHash)
	require.Equal(t, uint64(1234), res.BlockNumber)
	require.True(t, res.Won())

	again, err := pm.Resolve(logs, txHash)
	require.NoError(t, err)
	require.Equal(t, res, again)
}

func TestResolveZeroPayoutIsNotMissing(t *testing.T) {
	pm, err := NewPlayMatcher(codec.NewGame(), gameAddr)
	require.NoError(t, err)

	res, err := pm.Resolve([]*gethtypes.Log{playLog(t, 0, 0, false, false)}, common.Hash{})
	require.NoError(t, err)
	require.False(t, res.Won())
	require.Zero(t, res.Payout.Sign())

	_, err = pm.Resolve([]*gethtypes.Log{transferLog()}, common.Hash{})
	require.ErrorIs(t, err, types.ErrEventNotFound)

	_, err = pm.Resolve(nil, common.Hash{})
	require.ErrorIs(t, err, types.ErrEventNotFound)
}

func TestFirstMatchWins(t *testing.T) {
	pm, err := NewPlayMatcher(codec.NewGame(), common.Address{})
	require.NoError(t, err)

	res, err := pm.Resolve([]*gethtypes.Log{
		playLog(t, 11, 50, false, false),
		playLog(t, 3, 30, false, false),
	}, common.Hash{})
	require.NoError(t, err)
	require.Equal(t, uint64(11), res.Slot)
}

func TestEmitterFilter(t *testing.T) {
	pm, err := NewPlayMatcher(codec.NewGame(), gameAddr)
	require.NoError(t, err)

	spoofed := playLog(t, 10, 1000, true, false)
	spoofed.Address = tokenAddr
	genuine := playLog(t, 4, 0, false, false)

	res, err := pm.Resolve([]*gethtypes.Log{spoofed, genuine}, common.Hash{})
	require.NoError(t, err)
	require.Equal(t, uint64(4), res.Slot)
	require.False(t, res.MainJackpotHit)
}

func TestDecodeMalformed(t *testing.T) {
	ev, err := codec.NewGame().Event(codec.EventPlay)
	require.NoError(t, err)
	m := NewMatcher(ev)

	l := playLog(t, 3, 5, false, true)
	l.Topics = l.Topics[:2]
	_, err = m.Decode(l)
	require.ErrorIs(t, err, types.ErrMalformedLog)
}

func TestDecodeShortData(t *testing.T) {
	ev, err := codec.NewGame().Event(codec.EventPlay)
	require.NoError(t, err)
	m := NewMatcher(ev)

	l := playLog(t, 7, 2, true, true)
	l.Data = l.Data[:2*codec.WordSize]
	fields, err := m.Decode(l)
	require.NoError(t, err)
	require.Equal(t, int64(7), fields.Big("slot").Int64())
	require.False(t, fields.Bool("mainJackpotHit"))
	require.False(t, fields.Bool("miniJackpotHit"))
}
