// Package journal keeps an append-only audit record of accepted vault
// operations in a key-value store.
package journal

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/log"

	"github.com/cantonlabs/vault/pkg/vault"
)

var lastSeqKey = []byte("last_seq")

// Entry is one journaled operation.
type Entry struct {
	Seq uint64 `json:"seq"`
	vault.Event
}

// Journal is a vault.Sink appending accepted operations to a database.
// Journal failures are logged, never surfaced to the operation.
type Journal struct {
	db     database.Database
	logger log.Logger

	mu  sync.Mutex
	seq uint64
}

// Open restores the sequence cursor from the store.
func Open(db database.Database, logger log.Logger) (*Journal, error) {
	j := &Journal{db: db, logger: logger}
	val, err := db.Get(lastSeqKey)
	switch err {
	case nil:
		if len(val) >= 8 {
			j.seq = binary.BigEndian.Uint64(val)
		}
		logger.Info("journal opened", "lastSeq", j.seq)
	case database.ErrNotFound:
		logger.Info("journal opened, no previous entries")
	default:
		return nil, fmt.Errorf("read journal cursor: %w", err)
	}
	return j, nil
}

// Accepted appends the event under the next sequence number.
func (j *Journal) Accepted(_ context.Context, ev vault.Event) {
	j.mu.Lock()
	defer j.mu.Unlock()

	seq := j.seq + 1
	value, err := json.Marshal(Entry{Seq: seq, Event: ev})
	if err != nil {
		j.logger.Error("encode journal entry", "error", err)
		return
	}

	batch := j.db.NewBatch()
	defer batch.Reset()

	var cursor [8]byte
	binary.BigEndian.PutUint64(cursor[:], seq)
	if err := batch.Put(entryKey(seq), value); err == nil {
		err = batch.Put(lastSeqKey, cursor[:])
	}
	if err != nil {
		j.logger.Error("stage journal entry", "seq", seq, "error", err)
		return
	}
	if err := batch.Write(); err != nil {
		j.logger.Error("write journal entry", "seq", seq, "error", err)
		return
	}
	j.seq = seq
}

// LastSeq returns the highest sequence number written.
func (j *Journal) LastSeq() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.seq
}

// Entry reads one journaled operation back.
func (j *Journal) Entry(seq uint64) (Entry, error) {
	val, err := j.db.Get(entryKey(seq))
	if err != nil {
		return Entry{}, err
	}
	var e Entry
	if err := json.Unmarshal(val, &e); err != nil {
		return Entry{}, fmt.Errorf("decode journal entry %d: %w", seq, err)
	}
	return e, nil
}

func entryKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("op:%020d", seq))
}
