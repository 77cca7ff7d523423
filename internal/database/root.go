package database

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/appclacks/sloworker/internal/validator"
	"github.com/appclacks/sloworker/pkg/slo"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Database struct {
	db     *sqlx.DB
	Logger *slog.Logger
}

var _ slo.Store = (*Database)(nil)

var CleanupQueries = []string{
	"TRUNCATE slis",
}

func (d *Database) Exec(query string) (sql.Result, error) {
	return d.db.Exec(query)
}

func New(logger *slog.Logger, config Configuration) (*Database, error) {
	err := validator.Validator.Struct(config)
	if err != nil {
		return nil, err
	}
	connectionString := fmt.Sprintf("host=%s port=%d user=%s dbname=%s password=%s sslmode=%s", config.Host, config.Port, config.Username, config.Database, config.Password, config.SSLMode)
	sqlDB, err := otelsql.Open("postgres", connectionString, otelsql.WithAttributes(attribute.String("db.system.name", "postgresql")))
	if err != nil {
		return nil, fmt.Errorf("%w: fail to open the database: %w", slo.ErrStoreUnavailable, err)
	}
	db := sqlx.NewDb(sqlDB, "postgres")
	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: fail to connect to the database: %w", slo.ErrStoreUnavailable, err)
	}
	db.SetConnMaxLifetime(time.Duration(60) * time.Second)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	err = applyMigrations(logger, db, config.Migrations)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Database{
		db:     db,
		Logger: logger,
	}, nil
}

func applyMigrations(logger *slog.Logger, db *sqlx.DB, directory string) error {
	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("fail to create postgres migration driver: %w", err)
	}
	var m *migrate.Migrate
	if directory != "" {
		m, err = migrate.NewWithDatabaseInstance(
			fmt.Sprintf("file://%s", directory),
			"postgres",
			driver)
	} else {
		source, sourceErr := iofs.New(migrations, "migrations")
		if sourceErr != nil {
			return fmt.Errorf("fail to read embedded migrations: %w", sourceErr)
		}
		m, err = migrate.NewWithInstance("iofs", source, "postgres", driver)
	}
	if err != nil {
		return fmt.Errorf("fail to instantiate migrations: %w", err)
	}
	logger.Info("Applying databases migrations")
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("fail to apply migrations: %w", err)
	}
	logger.Info("Migrations applied")
	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func checkResult(result sql.Result, expected int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("fail to check affected row: %w", err)
	}
	if affected != expected {
		return fmt.Errorf("expected %d rows changed, got %d", expected, affected)
	}
	return nil
}
