// Package history keeps a local record of resolved plays.
package history

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/types"
)

// ErrNotFound is returned when no record matches.
var ErrNotFound = errors.New("record not found")

var (
	playPrefix = []byte("play:")
	txPrefix   = []byte("tx:")
	seqKey     = []byte("meta:seq")
)

// Record is one stored play.
type Record struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	RecordedAt time.Time `json:"recordedAt"`
	types.PlayResult
}

// Store is a LevelDB backed play log. Records are kept in insertion order
// and indexed by transaction hash.
type Store struct {
	db *leveldb.DB

	mu  sync.Mutex
	seq uint64
}

// Open opens (or creates) a store at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %q: %w", path, err)
	}
	return newStore(db)
}

// OpenMemory returns a store that lives in memory.
func OpenMemory() (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open memory leveldb: %w", err)
	}
	return newStore(db)
}

func newStore(db *leveldb.DB) (*Store, error) {
	s := &Store{db: db}
	val, err := db.Get(seqKey, nil)
	switch {
	case err == leveldb.ErrNotFound:
	case err != nil:
		db.Close()
		return nil, err
	default:
		s.seq = binary.BigEndian.Uint64(val)
	}
	return s, nil
}

func playKey(seq uint64) []byte {
	key := make([]byte, len(playPrefix)+8)
	copy(key, playPrefix)
	binary.BigEndian.PutUint64(key[len(playPrefix):], seq)
	return key
}

func txKey(hash common.Hash) []byte {
	return append(append([]byte{}, txPrefix...), hash.Bytes()...)
}

// Put records a play result. A result whose transaction is already recorded
// is not stored again and the existing record is returned.
func (s *Store) Put(sessionID string, res types.PlayResult) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, err := s.byTxHash(res.TxHash); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Record{}, err
	}

	rec := Record{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		RecordedAt: time.Now().UTC(),
		PlayResult: res,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return Record{}, err
	}

	seq := s.seq + 1
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], seq)

	key := playKey(seq)
	batch := new(leveldb.Batch)
	batch.Put(key, data)
	batch.Put(txKey(res.TxHash), key)
	batch.Put(seqKey, seqBuf[:])
	if err := s.db.Write(batch, nil); err != nil {
		return Record{}, err
	}
	s.seq = seq
	return rec, nil
}

// ByTxHash returns the record of the play submitted in hash.
func (s *Store) ByTxHash(hash common.Hash) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byTxHash(hash)
}

func (s *Store) byTxHash(hash common.Hash) (Record, error) {
	key, err := s.db.Get(txKey(hash), nil)
	if err == leveldb.ErrNotFound {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	data, err := s.db.Get(key, nil)
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(limit int) ([]Record, error) {
	iter := s.db.NewIterator(util.BytesPrefix(playPrefix), nil)
	defer iter.Release()

	var out []Record
	for ok := iter.Last(); ok && (limit <= 0 || len(out) < limit); ok = iter.Prev() {
		var rec Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, iter.Error()
}

// Count returns the number of stored records.
func (s *Store) Count() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
