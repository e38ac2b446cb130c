package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/go-sql-driver/mysql"

	"github.com/CTAG07/acfget/pkg/fields"
	"github.com/CTAG07/acfget/pkg/fixture"
	"github.com/CTAG07/acfget/pkg/wpstore"
)

// openSource builds the field data source the config selects. The returned
// close function releases the database, if any.
func openSource(ctx context.Context, cfg *StoreConfig, logger *slog.Logger) (fields.Source, func(), error) {
	switch cfg.Driver {
	case "fixture":
		s, err := fixture.Load(cfg.FixturePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Loaded fixture source", "path", cfg.FixturePath)
		return s, func() {}, nil

	case "sqlite":
		db, err := initDB(cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		if cfg.SetupSchema || cfg.ImportFixture {
			if err = wpstore.SetupSchema(db, cfg.WordPress.TablePrefix); err != nil {
				_ = db.Close()
				return nil, nil, err
			}
		}
		if cfg.ImportFixture {
			if err = importFixture(ctx, db, cfg, logger); err != nil {
				_ = db.Close()
				return nil, nil, err
			}
		}
		return openWordPress(db, cfg, logger)

	case "mysql":
		dsn, err := mysql.ParseDSN(cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid mysql dsn: %w", err)
		}
		db, err := sql.Open("mysql", dsn.FormatDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open mysql database: %w", err)
		}
		if err = db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to reach mysql database %s: %w", dsn.DBName, err)
		}
		logger.Info("Connected to WordPress database", "addr", dsn.Addr, "database", dsn.DBName)
		return openWordPress(db, cfg, logger)
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func openWordPress(db *sql.DB, cfg *StoreConfig, logger *slog.Logger) (fields.Source, func(), error) {
	s, err := wpstore.NewStore(db, cfg.WordPress)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	s.SetLogger(logger)
	return s, func() {
		s.Close()
		if err := db.Close(); err != nil {
			logger.Error("Failed to close store database", "error", err)
		}
	}, nil
}

// importFixture seeds an empty SQLite database from the fixture file. A
// database that already holds posts is left alone.
func importFixture(ctx context.Context, db *sql.DB, cfg *StoreConfig, logger *slog.Logger) error {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+cfg.WordPress.TablePrefix+"posts").Scan(&count); err != nil {
		return fmt.Errorf("failed to count posts: %w", err)
	}
	if count > 0 {
		logger.Info("Database already populated, skipping fixture import", "posts", count)
		return nil
	}

	doc, err := fixture.LoadDocument(cfg.FixturePath)
	if err != nil {
		return err
	}
	w, err := wpstore.NewWriter(db, cfg.WordPress.TablePrefix)
	if err != nil {
		return err
	}
	if err = wpstore.ImportFixture(ctx, w, doc); err != nil {
		return fmt.Errorf("failed to import fixture: %w", err)
	}
	logger.Info("Imported fixture into database", "path", cfg.FixturePath, "posts", len(doc.Posts))
	return nil
}
