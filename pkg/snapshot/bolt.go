package snapshot

import (
	"context"
	"encoding/binary"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/vango-dev/vreconcile/internal/errors"
	"github.com/vango-dev/vreconcile/pkg/protocol"
)

const bucketRecords = "records"

// BoltStore keeps records in a bbolt database: one nested bucket per mount
// under the records bucket, keyed by big-endian sequence number so cursor
// order is pass order.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens or creates the database at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.New("R302").WithDetailf("open %s", path).Wrap(err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketRecords))
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.New("R302").WithDetailf("initialize %s", path).Wrap(err)
	}
	return &BoltStore{db: db}, nil
}

// Put implements Store.
func (s *BoltStore) Put(_ context.Context, rec *protocol.PassRecord) error {
	data := protocol.EncodeRecord(rec)
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket([]byte(bucketRecords)).CreateBucketIfNotExists([]byte(rec.Mount))
		if err != nil {
			return err
		}
		return b.Put(marshalSeq(rec.Seq), data)
	})
}

// Get implements Store.
func (s *BoltStore) Get(_ context.Context, mount string, seq uint64) (*protocol.PassRecord, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketRecords)).Bucket([]byte(mount))
		if b == nil {
			return errors.New("R404").WithDetailf("mount %q", mount)
		}
		v := b.Get(marshalSeq(seq))
		if v == nil {
			return errors.New("R404").WithDetailf("mount %q pass %d", mount, seq)
		}
		// v is only valid inside the transaction.
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return protocol.DecodeRecord(data)
}

// List implements Store.
func (s *BoltStore) List(_ context.Context, mount string) ([]uint64, error) {
	var seqs []uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketRecords)).Bucket([]byte(mount))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			seqs = append(seqs, unmarshalSeq(k))
			return nil
		})
	})
	return seqs, err
}

// Mounts implements Store.
func (s *BoltStore) Mounts(_ context.Context) ([]string, error) {
	var mounts []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketRecords)).ForEach(func(k, v []byte) error {
			if v == nil {
				mounts = append(mounts, string(k))
			}
			return nil
		})
	})
	return mounts, err
}

// Close implements Store.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func marshalSeq(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

func unmarshalSeq(key []byte) uint64 {
	return binary.BigEndian.Uint64(key)
}
