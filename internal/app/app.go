// Package app wires configuration into a ready-to-use portal core.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"contaportal/internal/config"
	"contaportal/internal/email/noop"
	"contaportal/internal/email/ses"
	"contaportal/internal/port"
	"contaportal/internal/repository/postgres"
	"contaportal/internal/repository/sqlite"
	"contaportal/internal/service"
	s3storage "contaportal/internal/storage/s3"
	"contaportal/internal/store"
)

// App bundles the store and the services built over it.
type App struct {
	Store   *store.Store
	Sync    service.SyncService
	Session service.SessionService
	Audit   service.AuditService
	// Files is nil when no bucket is configured.
	Files service.FileService

	closers []io.Closer
}

// New builds the services over an already opened store.
func New(st *store.Store, files service.FileService, mailer port.EmailSender, opts ...service.Option) *App {
	syncSvc := service.NewSyncService(st, files, mailer, opts...)
	return &App{
		Store:   st,
		Sync:    syncSvc,
		Session: service.NewSessionService(st, syncSvc, opts...),
		Audit:   service.NewAuditService(st, opts...),
		Files:   files,
	}
}

// Open connects the configured persistence, storage and mail providers and
// loads the collections.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	persister, closer, err := openPersister(cfg)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, persister, store.Options{SeedDemoObligations: cfg.Store.SeedDemoObligations})
	if err != nil {
		closer.Close()
		return nil, err
	}

	var files service.FileService
	if cfg.S3.Bucket != "" {
		s3Client, err := s3storage.NewS3Client(&cfg.S3)
		if err != nil {
			closer.Close()
			return nil, fmt.Errorf("failed to initialize S3 client: %w", err)
		}
		files = service.NewFileService(s3Client, &cfg.S3)
	}

	var mailer port.EmailSender
	switch cfg.Email.Provider {
	case "ses":
		mailer, err = ses.NewSESSender(cfg.Email.Region, cfg.Email.FromAddress, cfg.Email.FromName, cfg.Email.FrontendURL)
		if err != nil {
			closer.Close()
			return nil, fmt.Errorf("failed to initialize SES sender: %w", err)
		}
	default:
		mailer = noop.NewNoopSender(cfg.Email.FrontendURL)
	}

	a := New(st, files, mailer,
		service.WithLatency(cfg.Session.Latency),
		service.WithPasswordPolicy(service.PasswordPolicy{MinLength: cfg.Session.MinPasswordLength}),
	)
	a.closers = append(a.closers, closer)

	log.Info().
		Str("store", cfg.Store.Provider).
		Bool("file_storage", files != nil).
		Str("email", cfg.Email.Provider).
		Msg("app.Open: portal ready")
	return a, nil
}

// Close releases the persistence connection.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func openPersister(cfg *config.Config) (port.CollectionStore, io.Closer, error) {
	switch cfg.Store.Provider {
	case "postgres":
		db, err := postgres.NewDB(&cfg.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return postgres.NewCollectionStore(db), db, nil
	case "sqlite":
		s, err := sqlite.Open(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown store provider %q", cfg.Store.Provider)
	}
}
