package assets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/maruel/ksid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Defaults for the database name and schema.
const (
	DefaultName   = "trackshow-images"
	SchemaVersion = 1
	containerName = "images"
)

var (
	// ErrUnavailable wraps every failure to open the database or to complete
	// a transaction.
	ErrUnavailable = errors.New("asset store unavailable")

	errIDEmpty = errors.New("asset id cannot be empty")
)

// Blob is a stored binary asset.
type Blob struct {
	ID        string    `gorm:"primaryKey"`
	MIMEType  string    `gorm:"column:mime_type"`
	Size      int64     `gorm:"column:size"`
	Data      []byte    `gorm:"column:data"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// TableName implements gorm's tabler.
func (Blob) TableName() string {
	return containerName
}

// Store is an id-addressed blob store backed by a SQLite file.
type Store struct {
	path  string
	debug bool
}

// New returns a Store for the database named name inside dir. Nothing is
// opened until the first call.
func New(dir, name string) *Store {
	if name == "" {
		name = DefaultName
	}
	return &Store{path: filepath.Join(dir, name+".db")}
}

// SetDebug enables SQL statement logging.
func (s *Store) SetDebug(b bool) {
	s.debug = b
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Put stores data under a freshly generated id and returns the id once the
// transaction committed.
func (s *Store) Put(ctx context.Context, mimeType string, data []byte) (string, error) {
	b := &Blob{
		ID:        ksid.NewID().String(),
		MIMEType:  mimeType,
		Size:      int64(len(data)),
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
	err := s.tx(ctx, func(tx *gorm.DB) error {
		return tx.Create(b).Error
	})
	if err != nil {
		return "", err
	}
	return b.ID, nil
}

// Get returns the blob stored under id, or nil if there is none.
func (s *Store) Get(ctx context.Context, id string) (*Blob, error) {
	if id == "" {
		return nil, errIDEmpty
	}
	var b Blob
	found := true
	err := s.tx(ctx, func(tx *gorm.DB) error {
		err := tx.Where("id = ?", id).Take(&b).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			found = false
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &b, nil
}

// Delete removes the blob stored under id. Deleting an unknown id is not an
// error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errIDEmpty
	}
	return s.tx(ctx, func(tx *gorm.DB) error {
		return tx.Where("id = ?", id).Delete(&Blob{}).Error
	})
}

// IDs returns the ids of every stored blob, oldest first.
func (s *Store) IDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.tx(ctx, func(tx *gorm.DB) error {
		return tx.Model(&Blob{}).Order("created_at, id").Pluck("id", &ids).Error
	})
	return ids, err
}

// GC removes every blob whose id is not in used and returns how many were
// removed.
//
// This is a stop-the-world GC: the caller must not store new assets while it
// runs, or a just-written asset not yet referenced by a record is lost.
func (s *Store) GC(ctx context.Context, used map[string]bool) (int, error) {
	removed := 0
	err := s.tx(ctx, func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&Blob{}).Pluck("id", &ids).Error; err != nil {
			return err
		}
		var orphans []string
		for _, id := range ids {
			if !used[id] {
				orphans = append(orphans, id)
			}
		}
		if len(orphans) == 0 {
			return nil
		}
		res := tx.Where("id IN ?", orphans).Delete(&Blob{})
		removed = int(res.RowsAffected)
		return res.Error
	})
	return removed, err
}

// tx opens the database, runs fn in a transaction and closes the database.
func (s *Store) tx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	db, err := s.open(ctx)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { _ = sqlDB.Close() }()
	if err := db.WithContext(ctx).Transaction(fn); err != nil {
		return fmt.Errorf("%w: transaction failed: %w", ErrUnavailable, err)
	}
	return nil
}

// open opens the database and creates the table on first use.
func (s *Store) open(ctx context.Context) (*gorm.DB, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil { //nolint:gosec // G301: data directory
		return nil, fmt.Errorf("%w: failed to create directory: %w", ErrUnavailable, err)
	}
	logLevel := logger.Silent
	if s.debug {
		logLevel = logger.Info
	}
	dsn := s.path + "?_pragma=journal_mode(DELETE)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logLevel),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %w", ErrUnavailable, s.path, err)
	}
	if err := upgrade(ctx, db); err != nil {
		if sqlDB, err2 := db.DB(); err2 == nil {
			_ = sqlDB.Close()
		}
		return nil, fmt.Errorf("%w: failed to upgrade %s: %w", ErrUnavailable, s.path, err)
	}
	return db, nil
}

// upgrade brings the schema to SchemaVersion. It only does work on the first
// open of a new database.
func upgrade(ctx context.Context, db *gorm.DB) error {
	var version int
	if err := db.WithContext(ctx).Raw("PRAGMA user_version").Scan(&version).Error; err != nil {
		return err
	}
	if version >= SchemaVersion {
		return nil
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !tx.Migrator().HasTable(&Blob{}) {
			if err := tx.Migrator().CreateTable(&Blob{}); err != nil {
				return err
			}
		}
		return tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)).Error
	})
}
