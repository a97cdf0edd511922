package telegram

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var (
	offsetBucket = []byte("telegram")
	offsetKey    = []byte("update_offset")
)

// OffsetStore persists the last consumed Telegram update id across
// restarts.
type OffsetStore struct {
	db *bbolt.DB
}

func OpenOffsetStore(path string) (*OffsetStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(offsetBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &OffsetStore{db: db}, nil
}

func (s *OffsetStore) Load() (int64, error) {
	var offset int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(offsetBucket).Get(offsetKey)
		if len(data) == 8 {
			offset = int64(binary.BigEndian.Uint64(data))
		}
		return nil
	})
	return offset, err
}

func (s *OffsetStore) Save(offset int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		var data [8]byte
		binary.BigEndian.PutUint64(data[:], uint64(offset))
		return tx.Bucket(offsetBucket).Put(offsetKey, data[:])
	})
}

func (s *OffsetStore) Close() error {
	return s.db.Close()
}
