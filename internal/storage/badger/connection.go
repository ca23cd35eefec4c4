package badger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/scriptor/internal/common"
)

const gcInterval = 10 * time.Minute

// BadgerDB manages the Badger database connection
type BadgerDB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
	config *common.BadgerConfig
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewBadgerDB opens the Badger database, optionally resetting it first
func NewBadgerDB(logger arbor.ILogger, config *common.BadgerConfig) (*BadgerDB, error) {
	if config.ResetOnStartup {
		if _, err := os.Stat(config.Path); err == nil {
			logger.Debug().Str("path", config.Path).Msg("Deleting existing database (reset_on_startup=true)")
			if err := os.RemoveAll(config.Path); err != nil {
				logger.Warn().Err(err).Str("path", config.Path).Msg("Failed to delete database directory")
			}
		}
	}

	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = config.Path
	options.ValueDir = config.Path
	options.Logger = nil // Disable default badger logger to use arbor

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Debug().Str("path", config.Path).Msg("Badger database initialized")

	db := &BadgerDB{
		store:  store,
		logger: logger,
		config: config,
		done:   make(chan struct{}),
	}

	db.wg.Add(1)
	go db.gcLoop()

	return db, nil
}

// Store returns the underlying badgerhold store
func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

// gcLoop periodically reclaims value log space. Badger does not run value
// log GC on its own.
func (b *BadgerDB) gcLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.runGC()
		case <-b.done:
			return
		}
	}
}

func (b *BadgerDB) runGC() {
	for {
		err := b.store.Badger().RunValueLogGC(0.5)
		if err == nil {
			continue // a file was rewritten, try for another
		}
		if err != badgerdb.ErrNoRewrite {
			b.logger.Warn().Err(err).Msg("Badger value log GC failed")
		}
		return
	}
}

// Close stops background GC and closes the database connection
func (b *BadgerDB) Close() error {
	close(b.done)
	b.wg.Wait()

	if b.store != nil {
		return b.store.Close()
	}
	return nil
}
