package feature

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// BadgerCache persists feature vectors in BadgerDB so repeated builds skip
// extraction of images they have already seen.
type BadgerCache struct {
	db     *badger.DB
	model  string
	logger *zap.Logger
}

// BadgerCacheOptions configures a BadgerCache.
type BadgerCacheOptions struct {
	// Dir is the directory for BadgerDB data files. Required unless InMemory.
	Dir string

	// InMemory runs BadgerDB without disk persistence.
	InMemory bool

	// Model names the extractor that produced the vectors. Records written by
	// a different model are treated as misses.
	Model string

	Logger *zap.Logger
}

// cachedVector is the msgpack record stored per key.
type cachedVector struct {
	Model  string    `msgpack:"model"`
	Vector []float32 `msgpack:"vector"`
}

// NewBadgerCache opens (or creates) a persistent feature cache.
func NewBadgerCache(opts BadgerCacheOptions) (*BadgerCache, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("feature cache: Dir is required for on-disk mode")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{logger.Sugar()})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open feature cache: %w", err)
	}
	return &BadgerCache{db: db, model: opts.Model, logger: logger}, nil
}

// Get returns the stored vector for key. Read or decode errors count as misses.
func (b *BadgerCache) Get(key string) ([]float32, bool) {
	var rec cachedVector
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			b.logger.Warn("Feature cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if rec.Model != b.model {
		return nil, false
	}
	return rec.Vector, true
}

// Set stores the vector for key. Write errors are logged and dropped.
func (b *BadgerCache) Set(key string, value []float32) {
	data, err := msgpack.Marshal(cachedVector{Model: b.model, Vector: value})
	if err != nil {
		b.logger.Warn("Feature cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		b.logger.Warn("Feature cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Close closes the underlying database.
func (b *BadgerCache) Close() error {
	return b.db.Close()
}

// badgerLogger routes badger output to zap, dropping debug and info chatter.
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l badgerLogger) Errorf(f string, v ...interface{})   { l.s.Errorf("badger: "+f, v...) }
func (l badgerLogger) Warningf(f string, v ...interface{}) { l.s.Warnf("badger: "+f, v...) }
func (l badgerLogger) Infof(string, ...interface{})        {}
func (l badgerLogger) Debugf(string, ...interface{})       {}
