// Package events locates contract events in receipt logs and decodes them.
package events

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/codec"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/types"
)

// Fields holds decoded event parameters by name. Values are common.Address,
// *big.Int, bool, or common.Hash for other indexed types.
type Fields map[string]interface{}

// Address returns the named address field.
func (f Fields) Address(name string) common.Address {
	v, _ := f[name].(common.Address)
	return v
}

// Big returns the named integer field, or zero.
func (f Fields) Big(name string) *big.Int {
	if v, ok := f[name].(*big.Int); ok {
		return v
	}
	return new(big.Int)
}

// Bool returns the named boolean field.
func (f Fields) Bool(name string) bool {
	v, _ := f[name].(bool)
	return v
}

// Matcher finds and decodes one event type.
type Matcher struct {
	event   abi.Event
	emitter *common.Address
}

// NewMatcher returns a matcher for ev.
func NewMatcher(ev abi.Event) *Matcher {
	return &Matcher{event: ev}
}

// FromEmitter restricts matching to logs emitted by addr.
func (m *Matcher) FromEmitter(addr common.Address) *Matcher {
	return &Matcher{event: m.event, emitter: &addr}
}

// Topic returns topic[0] of the matched event.
func (m *Matcher) Topic() common.Hash {
	return m.event.ID
}

// Find returns the first log in logs whose topic[0] is the event topic.
func (m *Matcher) Find(logs []*gethtypes.Log) (*gethtypes.Log, bool) {
	for _, l := range logs {
		if l == nil || len(l.Topics) == 0 || l.Topics[0] != m.event.ID {
			continue
		}
		if m.emitter != nil && l.Address != *m.emitter {
			continue
		}
		return l, true
	}
	return nil, false
}

// Decode extracts indexed parameters from topics[1..] and the rest from data
// as consecutive words in declaration order.
func (m *Matcher) Decode(l *gethtypes.Log) (Fields, error) {
	var indexed int
	for _, in := range m.event.Inputs {
		if in.Indexed {
			indexed++
		}
	}
	if len(l.Topics) < 1+indexed {
		return nil, fmt.Errorf("%w: %s wants %d topics, got %d",
			types.ErrMalformedLog, m.event.Name, 1+indexed, len(l.Topics))
	}

	fields := make(Fields, len(m.event.Inputs))
	topic, word := 1, 0
	for _, in := range m.event.Inputs {
		if in.Indexed {
			fields[in.Name] = decodeWord(in.Type, l.Topics[topic].Bytes())
			topic++
			continue
		}
		if in.Type.T == abi.StringTy || in.Type.T == abi.BytesTy ||
			in.Type.T == abi.SliceTy || in.Type.T == abi.ArrayTy || in.Type.T == abi.TupleTy {
			return nil, fmt.Errorf("%w: %s.%s has unsupported type %s",
				types.ErrMalformedLog, m.event.Name, in.Name, in.Type)
		}
		w := codec.WordAt(l.Data, word)
		fields[in.Name] = decodeWord(in.Type, w[:])
		word++
	}
	return fields, nil
}

// Match finds and decodes the first matching log.
func (m *Matcher) Match(logs []*gethtypes.Log) (Fields, *gethtypes.Log, error) {
	l, ok := m.Find(logs)
	if !ok {
		return nil, nil, fmt.Errorf("%w: no %s log among %d", types.ErrEventNotFound, m.event.Name, len(logs))
	}
	fields, err := m.Decode(l)
	if err != nil {
		return nil, l, err
	}
	return fields, l, nil
}

func decodeWord(t abi.Type, w []byte) interface{} {
	switch t.T {
	case abi.AddressTy:
		return codec.WordToAddress(w)
	case abi.BoolTy:
		return codec.WordToBool(w)
	case abi.UintTy, abi.IntTy:
		return codec.WordToBig(w)
	default:
		return common.BytesToHash(w)
	}
}
