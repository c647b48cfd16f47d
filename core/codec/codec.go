// Package codec translates between typed values and contract call payloads.
//
// A Codec is built from a declared interface schema. Function selectors and
// event topics are derived from the declared signatures when the schema is
// parsed, so they cannot drift from the signatures they name.
package codec

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/types"
)

// Codec encodes calls and decodes results for one contract interface.
type Codec struct {
	abi abi.ABI
}

// New parses schema, a JSON interface description.
func New(schema string) (*Codec, error) {
	parsed, err := abi.JSON(strings.NewReader(schema))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	return &Codec{abi: parsed}, nil
}

// MustNew is like New but panics on a malformed schema.
func MustNew(schema string) *Codec {
	c, err := New(schema)
	if err != nil {
		panic(err)
	}
	return c
}

// NewGame returns a codec for the game contract.
func NewGame() *Codec {
	return MustNew(GameSchema)
}

// NewERC20 returns a codec for the entry token.
func NewERC20() *Codec {
	return MustNew(ERC20Schema)
}

// ABI returns the parsed schema.
func (c *Codec) ABI() abi.ABI {
	return c.abi
}

func (c *Codec) method(name string) (abi.Method, error) {
	m, ok := c.abi.Methods[name]
	if !ok {
		return abi.Method{}, fmt.Errorf("%w: method %q not declared", types.ErrEncoding, name)
	}
	return m, nil
}

// MethodSelector returns the 4-byte selector of a declared method.
func (c *Codec) MethodSelector(name string) ([4]byte, error) {
	var sel [4]byte
	m, err := c.method(name)
	if err != nil {
		return sel, err
	}
	copy(sel[:], m.ID)
	return sel, nil
}

// Pack encodes a call to method with args.
func (c *Codec) Pack(method string, args ...interface{}) ([]byte, error) {
	if _, err := c.method(method); err != nil {
		return nil, err
	}
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: pack %s: %v", types.ErrEncoding, method, err)
	}
	return data, nil
}

// Call builds a CallRequest for method on the contract at to.
func (c *Codec) Call(to common.Address, method string, args ...interface{}) (types.CallRequest, error) {
	data, err := c.Pack(method, args...)
	if err != nil {
		return types.CallRequest{}, err
	}
	return types.NewCallRequest(to, data), nil
}

// Unpack strictly decodes the return data of method.
func (c *Codec) Unpack(method string, data []byte) ([]interface{}, error) {
	if _, err := c.method(method); err != nil {
		return nil, err
	}
	out, err := c.abi.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack %s: %v", types.ErrEncoding, method, err)
	}
	return out, nil
}

// DecodeWords decodes the return data of a method whose outputs are all
// single-word static values. Short data is tolerated: missing words are zero.
func (c *Codec) DecodeWords(method string, data []byte) ([]*big.Int, error) {
	m, err := c.method(method)
	if err != nil {
		return nil, err
	}
	for _, out := range m.Outputs {
		if !isWordType(out.Type) {
			return nil, fmt.Errorf("%w: %s output %s is not a single word", types.ErrEncoding, method, out.Type)
		}
	}
	return DecodeWordsBytes(data, len(m.Outputs)), nil
}

// Event returns a declared event.
func (c *Codec) Event(name string) (abi.Event, error) {
	ev, ok := c.abi.Events[name]
	if !ok {
		return abi.Event{}, fmt.Errorf("%w: event %q not declared", types.ErrEncoding, name)
	}
	return ev, nil
}

// EventTopic returns topic[0] of a declared event.
func (c *Codec) EventTopic(name string) (common.Hash, error) {
	ev, err := c.Event(name)
	if err != nil {
		return common.Hash{}, err
	}
	return ev.ID, nil
}

func isWordType(t abi.Type) bool {
	switch t.T {
	case abi.UintTy, abi.IntTy, abi.BoolTy, abi.AddressTy, abi.FixedBytesTy:
		return true
	default:
		return false
	}
}
