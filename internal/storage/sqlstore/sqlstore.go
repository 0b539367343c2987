// Package sqlstore implements the relational stores with GORM so the same
// code runs on SQLite, PostgreSQL and MySQL. Cascades and lookup-table
// references are enforced in transactions rather than by the schema.
package sqlstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"swap-risk-lab/internal/storage"
)

// Supported dialects.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
)

// Open connects to dsn with the named dialect. Constraint errors are
// translated to gorm's portable sentinels.
func Open(dialect, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(dialect) {
	case DialectSQLite:
		dialector = sqlite.Open(dsn)
	case DialectPostgres:
		dialector = postgres.Open(dsn)
	case DialectMySQL:
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	return db, nil
}

// Store implements storage.Store and storage.RiskHistoryStore on GORM.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Compile-time interface checks.
var (
	_ storage.Store            = (*Store)(nil)
	_ storage.RiskHistoryStore = (*Store)(nil)
)

// AutoMigrate creates or updates every table.
func (s *Store) AutoMigrate() error {
	models := []any{
		&counterpartyRecord{},
		&securityRecord{},
		&swapRecord{},
		&obligationRecord{},
		&triggerRecord{},
		&instrumentRecord{},
		&analysisRecord{},
		&riskSnapshotRecord{},
	}
	for _, m := range models {
		if err := s.db.AutoMigrate(m); err != nil {
			return fmt.Errorf("auto-migrate %T: %w", m, err)
		}
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translateError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return storage.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return storage.ErrDuplicateKey
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return storage.ErrForeignKey
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, storage.ErrForeignKey),
		errors.Is(err, storage.ErrInvalidInput),
		errors.Is(err, storage.ErrDuplicateKey):
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

// likePattern escapes LIKE metacharacters with '!' so the same pattern works
// on every dialect.
func likePattern(substring string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return "%" + r.Replace(strings.ToLower(substring)) + "%"
}
