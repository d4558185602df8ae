// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package verifier

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const leveldbKeyPrefix = "nonce/"

// LevelDBLedger is a NonceLedger persisted in a LevelDB directory, so
// accepted nonces survive verifier restarts.
type LevelDBLedger struct {
	mu sync.Mutex // serializes check-then-put in Reserve
	db *leveldb.DB
}

// OpenLevelDBLedger opens or creates the ledger at path.
func OpenLevelDBLedger(path string) (*LevelDBLedger, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open nonce ledger %s: %w", path, err)
	}
	return &LevelDBLedger{db: db}, nil
}

func leveldbKey(signer, nonce string) []byte {
	return []byte(leveldbKeyPrefix + signer + "/" + nonce)
}

func encodeExpiry(t time.Time) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(t.Unix()))
	return b
}

func decodeExpiry(b []byte) (time.Time, error) {
	if len(b) != 8 {
		return time.Time{}, fmt.Errorf("corrupt ledger entry: %d bytes", len(b))
	}
	return time.Unix(int64(binary.BigEndian.Uint64(b)), 0), nil
}

func (l *LevelDBLedger) lookup(signer, nonce string, now time.Time) (bool, error) {
	val, err := l.db.Get(leveldbKey(signer, nonce), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	exp, err := decodeExpiry(val)
	if err != nil {
		return false, err
	}
	return now.Before(exp), nil
}

func (l *LevelDBLedger) Seen(_ context.Context, signer, nonce string, now time.Time) (bool, error) {
	return l.lookup(signer, nonce, now)
}

func (l *LevelDBLedger) Reserve(_ context.Context, signer, nonce string, now, expiresAt time.Time) (bool, error) {
	if strings.Contains(signer, "/") {
		return false, fmt.Errorf("invalid signer %q", signer)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	live, err := l.lookup(signer, nonce, now)
	if err != nil {
		return false, err
	}
	if live {
		return false, nil
	}
	if err := l.db.Put(leveldbKey(signer, nonce), encodeExpiry(expiresAt), nil); err != nil {
		return false, err
	}
	return true, nil
}

func (l *LevelDBLedger) Sweep(_ context.Context, now time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	iter := l.db.NewIterator(util.BytesPrefix([]byte(leveldbKeyPrefix)), nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	for iter.Next() {
		exp, err := decodeExpiry(iter.Value())
		if err != nil || !now.Before(exp) {
			batch.Delete(append([]byte(nil), iter.Key()...))
		}
	}
	if err := iter.Error(); err != nil {
		return 0, err
	}
	if batch.Len() == 0 {
		return 0, nil
	}
	if err := l.db.Write(batch, nil); err != nil {
		return 0, err
	}
	return batch.Len(), nil
}

func (l *LevelDBLedger) Close() error {
	return l.db.Close()
}

var _ NonceLedger = (*LevelDBLedger)(nil)
