package index

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/glorpus-work/urlcache/internal/logger"
	"github.com/glorpus-work/urlcache/pkg/errutils"
)

// Key layout:
//
//	e:<url>             8-byte big-endian epoch millis
//	m:format_version    format version string
//	m:last_update       RFC 3339 timestamp
var (
	entryPrefix       = []byte("e:")
	metaFormatKey     = []byte("m:format_version")
	metaLastUpdateKey = []byte("m:last_update")
)

// LevelDBStore keeps the index in a LevelDB database. LevelDB holds a lock
// on the directory, so a second process opening the same store fails
// instead of racing the first.
type LevelDBStore struct {
	dir string
	db  *leveldb.DB
}

// OpenLevelDBStore opens or creates the database in dir. A corrupted
// database is repaired from its tables when possible and recreated empty
// otherwise.
func OpenLevelDBStore(dir string) (*LevelDBStore, error) {
	if dir == "" {
		return nil, errutils.Wrap(errutils.ErrStorage, "index path cannot be empty")
	}
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil && lerrors.IsCorrupted(err) {
		db, err = recoverLevelDB(dir, err)
	}
	if err != nil {
		return nil, errutils.Wrapf(errutils.ErrStorage, "open leveldb index %s: %v", dir, err)
	}
	return &LevelDBStore{dir: dir, db: db}, nil
}

func recoverLevelDB(dir string, cause error) (*leveldb.DB, error) {
	corrupt := fmt.Errorf("%w: %v", errutils.ErrCorruptCache, cause)

	db, err := leveldb.RecoverFile(dir, nil)
	if err == nil {
		logger.Warn("Cache index was corrupted and has been repaired", logger.Fields{
			"location": dir,
			"error":    corrupt.Error(),
		})
		return db, nil
	}

	logger.Warn("Cache index is unreadable, starting with an empty index", logger.Fields{
		"location": dir,
		"error":    corrupt.Error(),
		"recover":  err.Error(),
	})
	if err := os.RemoveAll(dir); err != nil {
		return nil, err
	}
	return leveldb.OpenFile(dir, nil)
}

// Location implements Store.
func (s *LevelDBStore) Location() string {
	return s.dir
}

// Load implements Store.
func (s *LevelDBStore) Load() (*Index, error) {
	idx := New()

	formatVersion, err := s.db.Get(metaFormatKey, nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		// never saved
		return idx, nil
	case err != nil:
		return New(), errutils.Wrapf(errutils.ErrCorruptCache, "read %s: %v", s.dir, err)
	}
	if err := checkFormatVersion(string(formatVersion)); err != nil {
		return New(), errutils.Wrap(err, s.dir)
	}
	idx.FormatVersion = string(formatVersion)

	if raw, err := s.db.Get(metaLastUpdateKey, nil); err == nil {
		if t, perr := time.Parse(time.RFC3339Nano, string(raw)); perr == nil {
			idx.LastUpdate = t
		}
	}

	it := s.db.NewIterator(util.BytesPrefix(entryPrefix), nil)
	defer it.Release()
	for it.Next() {
		url := string(bytes.TrimPrefix(it.Key(), entryPrefix))
		if len(it.Value()) != 8 {
			return New(), errutils.Wrapf(errutils.ErrCorruptCache, "entry %q has %d-byte value", url, len(it.Value()))
		}
		idx.Entries[url] = int64(binary.BigEndian.Uint64(it.Value()))
	}
	if err := it.Error(); err != nil {
		return New(), errutils.Wrapf(errutils.ErrCorruptCache, "iterate %s: %v", s.dir, err)
	}
	return idx, nil
}

// Save implements Store. Existing entries are dropped and the new set is
// written in one synced batch.
func (s *LevelDBStore) Save(idx *Index) error {
	batch := new(leveldb.Batch)

	it := s.db.NewIterator(util.BytesPrefix(entryPrefix), nil)
	for it.Next() {
		batch.Delete(append([]byte(nil), it.Key()...))
	}
	it.Release()
	if err := it.Error(); err != nil {
		return errutils.Wrapf(errutils.ErrStorage, "iterate %s: %v", s.dir, err)
	}

	var value [8]byte
	for url, millis := range idx.Entries {
		binary.BigEndian.PutUint64(value[:], uint64(millis))
		batch.Put(append(append([]byte(nil), entryPrefix...), url...), append([]byte(nil), value[:]...))
	}
	formatVersion := idx.FormatVersion
	if formatVersion == "" {
		formatVersion = FormatVersion
	}
	batch.Put(metaFormatKey, []byte(formatVersion))
	batch.Put(metaLastUpdateKey, []byte(idx.LastUpdate.UTC().Format(time.RFC3339Nano)))

	if err := s.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return errutils.Wrapf(errutils.ErrStorage, "save index: %v", err)
	}
	return nil
}

// Close implements Store.
func (s *LevelDBStore) Close() error {
	if err := s.db.Close(); err != nil {
		return errutils.Wrapf(errutils.ErrStorage, "close leveldb index: %v", err)
	}
	return nil
}
