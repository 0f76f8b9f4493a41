package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/NordCoder/checksync/internal/repository/kafka"
	pg "github.com/NordCoder/checksync/internal/repository/postgres"
	"github.com/NordCoder/checksync/internal/repository/sqlite"
	"github.com/NordCoder/checksync/internal/services/checksync"
	"github.com/NordCoder/checksync/internal/services/prober"
)

var errNoIdentity = errors.New("auth.owner and auth.secret are required (flags, config or AUTH_OWNER/AUTH_SECRET)")

// session owns every resource behind one logged-in Manager.
type session struct {
	mgr     *checksync.Manager
	db      *pg.DB
	store   *pg.CheckStore
	folders *sqlite.FolderStore
	events  *kafka.StatusEvents
	log     *zap.Logger
}

func (s *session) engine() *checksync.Engine { return s.mgr.Engine() }

// openSession connects the stores and runs the login handshake in mode.
func (a *app) openSession(ctx context.Context, mode checksync.Mode, hooks checksync.ManagerDeps) (*session, error) {
	cfg := a.cfg
	if cfg.Auth.Owner == "" || cfg.Auth.Secret == "" {
		return nil, errNoIdentity
	}

	db, err := initDB(ctx, cfg, a.log)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	s := &session{db: db, log: a.log}
	s.store = pg.NewCheckStore(db, pg.NewTransactor(db, a.log), a.log)

	if s.folders, err = sqlite.Open(ctx, cfg.SQLite.Path); err != nil {
		s.close(ctx)
		return nil, fmt.Errorf("open folder store: %w", err)
	}
	if cfg.Kafka.Enabled() {
		s.events = kafka.BootstrapStatusEvents(ctx, cfg.Kafka, a.log)
	}

	ecfg := cfg.Sync.AsEngineConfig()
	ecfg.Mode = mode
	hooks.Store = s.store
	hooks.Runner = prober.New(cfg.HTTP, a.log)
	hooks.Folders = s.folders
	hooks.Log = a.log
	if s.events != nil {
		hooks.Events = s.events
	}
	s.mgr = checksync.NewManager(ecfg, hooks)

	if err := s.mgr.Login(cfg.Auth.Owner); err != nil {
		s.close(ctx)
		return nil, err
	}
	if err := s.mgr.Authenticate(ctx, cfg.Auth.Secret); err != nil {
		s.close(ctx)
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	return s, nil
}

// close logs out, flushing pending folder writes, then releases every resource.
func (s *session) close(ctx context.Context) error {
	var errs []error
	if s.mgr != nil && s.mgr.Engine() != nil {
		errs = append(errs, s.mgr.Logout(ctx))
	}
	if s.events != nil {
		errs = append(errs, s.events.Close())
	}
	if s.folders != nil {
		errs = append(errs, s.folders.Close())
	}
	if s.db != nil {
		s.db.Close()
	}
	err := errors.Join(errs...)
	if err != nil {
		s.log.Warn("session close", zap.Error(err))
	}
	return err
}
