package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alex-pricope/campus-election-system/logging"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	BackendDynamo   = "dynamodb"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

var modelsToMigrate = []interface{}{
	&User{},
	&Election{},
	&Candidacy{},
	&Ballot{},
}

// OpenSQL connects to a postgres or sqlite database and migrates the schema.
func OpenSQL(backend, dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("storage dsn is required")
	}

	cfg := &gorm.Config{
		Logger: logger.New(logging.Log, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	var dialector gorm.Dialector
	switch backend {
	case BackendPostgres:
		dialector = postgres.Open(dsn)
	case BackendSQLite:
		dialector = sqlite.Open(sqliteDSN(dsn))
	default:
		return nil, fmt.Errorf("unsupported sql backend %q", backend)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("open gorm %s: %w", backend, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve %s sql db handle: %w", backend, err)
	}
	if backend == BackendSQLite {
		// sqlite allows a single writer.
		sqlDB.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", backend, err)
	}

	if err := db.AutoMigrate(modelsToMigrate...); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate %s: %w", backend, err)
	}
	logging.Log.Infof("STORAGE: connected to %s", backend)
	return db, nil
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_busy_timeout=5000&_foreign_keys=on"
}

func CloseSQL(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// uniqueViolation returns the name of the violated unique constraint, or the
// offending column list for sqlite, and whether err was a unique violation.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName + " " + pgErr.Detail, true
	}
	msg := err.Error()
	if i := strings.Index(msg, "UNIQUE constraint failed:"); i >= 0 {
		return msg[i:], true
	}
	return "", false
}

func isRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
