package codec

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/types"
)

// WordSize is the width of one encoded value.
const WordSize = 32

type paramKind int

const (
	kindUint paramKind = iota
	kindBool
	kindAddress
)

// Param is one fixed-width call argument.
type Param struct {
	kind paramKind
	bits int
	n    *big.Int
	addr common.Address
	b    bool
}

// Address is an address argument, right-aligned in its word.
func Address(a common.Address) Param {
	return Param{kind: kindAddress, addr: a}
}

// Bool is a boolean argument encoded as 0 or 1.
func Bool(b bool) Param {
	return Param{kind: kindBool, b: b}
}

// Uint is an unsigned integer argument of the given bit width.
func Uint(bits int, v *big.Int) Param {
	return Param{kind: kindUint, bits: bits, n: v}
}

// Uint256 is a uint256 argument.
func Uint256(v *big.Int) Param {
	return Uint(256, v)
}

// Uint64 is a uint64 argument.
func Uint64(v uint64) Param {
	return Uint(64, new(big.Int).SetUint64(v))
}

func (p Param) word() ([WordSize]byte, error) {
	var w [WordSize]byte
	switch p.kind {
	case kindAddress:
		copy(w[WordSize-common.AddressLength:], p.addr.Bytes())
	case kindBool:
		if p.b {
			w[WordSize-1] = 1
		}
	case kindUint:
		if p.bits <= 0 || p.bits > 256 || p.bits%8 != 0 {
			return w, fmt.Errorf("%w: invalid width uint%d", types.ErrEncoding, p.bits)
		}
		if p.n == nil || p.n.Sign() < 0 {
			return w, fmt.Errorf("%w: uint%d requires a non-negative value", types.ErrEncoding, p.bits)
		}
		if p.n.BitLen() > p.bits {
			return w, fmt.Errorf("%w: value does not fit uint%d", types.ErrEncoding, p.bits)
		}
		v, overflow := uint256.FromBig(p.n)
		if overflow {
			return w, fmt.Errorf("%w: value does not fit uint256", types.ErrEncoding)
		}
		w = v.Bytes32()
	}
	return w, nil
}

// EncodeWords encodes params as consecutive 32-byte words.
func EncodeWords(params ...Param) ([]byte, error) {
	out := make([]byte, 0, len(params)*WordSize)
	for i, p := range params {
		w, err := p.word()
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
		out = append(out, w[:]...)
	}
	return out, nil
}

// EncodeCall encodes a call as the selector followed by one word per param.
func EncodeCall(selector [4]byte, params ...Param) ([]byte, error) {
	words, err := EncodeWords(params...)
	if err != nil {
		return nil, err
	}
	return append(selector[:], words...), nil
}

// DecodeWords splits hex-encoded return data into count unsigned integers.
// A 0x prefix is optional. Missing words decode as zero and a short trailing
// chunk is read as its own big-endian value.
func DecodeWords(hexData string, count int) ([]*big.Int, error) {
	hexData = strings.TrimPrefix(strings.TrimPrefix(hexData, "0x"), "0X")
	if hexData != "" {
		probe := hexData
		if len(probe)%2 == 1 {
			probe = "0" + probe
		}
		if _, err := hex.DecodeString(probe); err != nil {
			return nil, fmt.Errorf("%w: malformed hex: %v", types.ErrEncoding, err)
		}
	}
	out := make([]*big.Int, 0, max(count, 0))
	for i := 0; i < count; i++ {
		start, end := i*WordSize*2, (i+1)*WordSize*2
		v := new(big.Int)
		if start < len(hexData) {
			v.SetString(hexData[start:min(end, len(hexData))], 16)
		}
		out = append(out, v)
	}
	return out, nil
}

// DecodeWordsBytes applies the DecodeWords rules to raw bytes.
func DecodeWordsBytes(data []byte, count int) []*big.Int {
	out := make([]*big.Int, 0, max(count, 0))
	for i := 0; i < count; i++ {
		w := WordAt(data, i)
		out = append(out, WordToBig(w[:]))
	}
	return out
}

// WordAt returns the i-th word of data. A short trailing chunk is
// right-aligned and a missing word is zero.
func WordAt(data []byte, i int) [WordSize]byte {
	var w [WordSize]byte
	start, end := i*WordSize, (i+1)*WordSize
	if i < 0 || start >= len(data) {
		return w
	}
	chunk := data[start:min(end, len(data))]
	copy(w[WordSize-len(chunk):], chunk)
	return w
}

// WordToAddress reads an address from the low 20 bytes of a word.
func WordToAddress(w []byte) common.Address {
	if len(w) > common.AddressLength {
		w = w[len(w)-common.AddressLength:]
	}
	return common.BytesToAddress(w)
}

// WordToBig reads an unsigned big-endian word.
func WordToBig(w []byte) *big.Int {
	return new(big.Int).SetBytes(w)
}

// WordToBool reads a boolean word. Any non-zero value is true.
func WordToBool(w []byte) bool {
	for _, b := range w {
		if b != 0 {
			return true
		}
	}
	return false
}

var signatureHashes sync.Map // string -> common.Hash

// EventSignatureHash returns the Keccak-256 hash of a canonical signature such
// as "Play(address,uint256,uint256,uint256,bool,bool)".
func EventSignatureHash(signature string) common.Hash {
	if h, ok := signatureHashes.Load(signature); ok {
		return h.(common.Hash)
	}
	h := crypto.Keccak256Hash([]byte(signature))
	signatureHashes.Store(signature, h)
	return h
}

// Selector returns the first 4 bytes of the hash of a function signature.
func Selector(signature string) [4]byte {
	var sel [4]byte
	h := EventSignatureHash(signature)
	copy(sel[:], h[:4])
	return sel
}
