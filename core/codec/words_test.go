package codec

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/types"
)

func TestWordRoundTrip(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	maxU256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	data, err := EncodeWords(
		Uint256(big.NewInt(7)),
		Bool(true),
		Bool(false),
		Address(addr),
		Uint256(maxU256),
		Uint64(42),
	)
	require.NoError(t, err)
	require.Len(t, data, 6*WordSize)

	words := DecodeWordsBytes(data, 6)
	require.Equal(t, int64(7), words[0].Int64())
	require.True(t, WordToBool(data[WordSize:2*WordSize]))
	require.False(t, WordToBool(data[2*WordSize:3*WordSize]))
	require.Equal(t, addr, WordToAddress(data[3*WordSize:4*WordSize]))
	require.Equal(t, 0, words[4].Cmp(maxU256))
	require.Equal(t, uint64(42), words[5].Uint64())
	require.Equal(t, 0, WordToBig(data[4*WordSize:5*WordSize]).Cmp(maxU256))
}

func TestDecodeWords(t *testing.T) {
	hexData := "0x" +
		"0000000000000000000000000000000000000000000000000000000000000001" +
		"0000000000000000000000000000000000000000000000000000000000000002"

	words, err := DecodeWords(hexData, 2)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, []int64{words[0].Int64(), words[1].Int64()})

	// missing words decode as zero
	words, err = DecodeWords(hexData, 4)
	require.NoError(t, err)
	require.Len(t, words, 4)
	require.Zero(t, words[2].Sign())
	require.Zero(t, words[3].Sign())

	// prefix is optional
	words, err = DecodeWords(strings.TrimPrefix(hexData, "0x"), 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), words[0].Int64())

	// a short trailing chunk is its own value
	words, err = DecodeWords("0x"+strings.Repeat("0", 63)+"5"+"ff", 2)
	require.NoError(t, err)
	require.Equal(t, int64(5), words[0].Int64())
	require.Equal(t, int64(255), words[1].Int64())

	words, err = DecodeWords("0x", 3)
	require.NoError(t, err)
	require.Len(t, words, 3)

	_, err = DecodeWords("0xzz", 1)
	require.ErrorIs(t, err, types.ErrEncoding)
}

func TestEncodeOverflow(t *testing.T) {
	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)
	_, err := EncodeWords(Uint256(tooBig))
	require.ErrorIs(t, err, types.ErrEncoding)

	_, err = EncodeWords(Uint(8, big.NewInt(256)))
	require.ErrorIs(t, err, types.ErrEncoding)

	_, err = EncodeWords(Uint(8, big.NewInt(255)))
	require.NoError(t, err)

	_, err = EncodeWords(Uint256(big.NewInt(-1)))
	require.ErrorIs(t, err, types.ErrEncoding)

	_, err = EncodeWords(Uint(12, big.NewInt(1)))
	require.ErrorIs(t, err, types.ErrEncoding)
}

func TestEncodeCallLayout(t *testing.T) {
	sel := Selector("transfer(address,uint256)")
	data, err := EncodeCall(sel, Address(common.HexToAddress("0x01")), Uint256(big.NewInt(1)))
	require.NoError(t, err)
	require.Equal(t, []byte{0xa9, 0x05, 0x9c, 0xbb}, data[:4])
	require.Equal(t, byte(1), data[4+WordSize-1])
	require.Equal(t, byte(1), data[len(data)-1])
}

func TestEventSignatureHashCached(t *testing.T) {
	sig := "Approval(address,address,uint256)"
	require.Equal(t, EventSignatureHash(sig), EventSignatureHash(sig))
}
