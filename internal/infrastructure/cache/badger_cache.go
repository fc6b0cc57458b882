package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// BadgerCache stores entries in an embedded Badger database. Expiry uses
// Badger's native entry TTL, so expired keys read as not found.
type BadgerCache struct {
	db     *badger.DB
	logger *zap.Logger
}

// BadgerConfig configures the embedded store.
type BadgerConfig struct {
	// Dir is the data directory. Ignored when InMemory is set.
	Dir      string
	InMemory bool
}

// NewBadgerCache opens a Badger database.
func NewBadgerCache(cfg BadgerConfig, logger *zap.Logger) (*BadgerCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := badger.DefaultOptions(cfg.Dir).WithLogger(badgerLogger{logger.Sugar()})
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(badgerLogger{logger.Sugar()})
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	logger.Info("Badger cache opened", zap.String("dir", cfg.Dir), zap.Bool("in_memory", cfg.InMemory))
	return &BadgerCache{db: db, logger: logger}, nil
}

// Get retrieves a value from the cache
func (c *BadgerCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set stores a value with the given TTL
func (c *BadgerCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), value).WithTTL(ttl))
	})
}

// Delete removes key and reports whether it was live
func (c *BadgerCache) Delete(ctx context.Context, key string) (bool, error) {
	existed := false
	err := c.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		existed = true
		return txn.Delete([]byte(key))
	})
	return existed, err
}

// Clear removes every key matching pattern
func (c *BadgerCache) Clear(ctx context.Context, pattern string) error {
	if strings.HasPrefix(pattern, "*") && pattern != "*" {
		return c.clearMatching(pattern)
	}

	prefix, wildcard := prefixOf(pattern)
	if !wildcard {
		_, err := c.Delete(ctx, pattern)
		return err
	}
	if prefix == "" {
		return c.db.DropAll()
	}
	return c.db.DropPrefix([]byte(prefix))
}

// clearMatching walks the key space for patterns Badger cannot drop natively.
func (c *BadgerCache) clearMatching(pattern string) error {
	var keys [][]byte
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if matchPattern(string(it.Item().Key()), pattern) {
				keys = append(keys, it.Item().KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	wb := c.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// Close closes the database.
func (c *BadgerCache) Close() error {
	return c.db.Close()
}

// badgerLogger routes Badger's internal logging through zap.
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l badgerLogger) Errorf(f string, v ...interface{})   { l.s.Errorf(f, v...) }
func (l badgerLogger) Warningf(f string, v ...interface{}) { l.s.Warnf(f, v...) }
func (l badgerLogger) Infof(f string, v ...interface{})    { l.s.Debugf(f, v...) }
func (l badgerLogger) Debugf(f string, v ...interface{})   { l.s.Debugf(f, v...) }
