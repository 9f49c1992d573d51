// Package localcache persists each teacher's gradebook snapshot to an
// embedded badger store. Every mutation lands here before it becomes
// visible, so a crash or connectivity loss never loses local edits.
package localcache

import (
	"context"
	"encoding/json"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edugrade/core"
	"github.com/trezcool/edugrade/core/school"
)

type Store struct {
	db *badger.DB
}

var _ school.LocalStore = (*Store)(nil)

func NewStore(conf *core.Config) (*Store, error) {
	opts := badger.DefaultOptions(conf.LocalCache.Dir)
	if conf.LocalCache.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "opening local cache")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return errors.Wrap(s.db.Close(), "closing local cache")
}

func snapshotKey(ownerID string) []byte {
	return []byte("snapshot:" + ownerID)
}

func (s *Store) Save(_ context.Context, ownerID string, snap school.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "encoding snapshot")
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(ownerID), data)
	})
	return errors.Wrap(err, "saving snapshot")
}

func (s *Store) Load(_ context.Context, ownerID string) (school.Snapshot, bool, error) {
	var snap school.Snapshot
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(ownerID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})
	if err != nil {
		return school.Snapshot{}, false, errors.Wrap(err, "loading snapshot")
	}
	return snap, found, nil
}

func (s *Store) Clear(_ context.Context, ownerID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(snapshotKey(ownerID))
	})
	return errors.Wrap(err, "clearing snapshot")
}
