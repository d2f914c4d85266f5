package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"testai/internal/api"
	"testai/internal/config"
	"testai/internal/files"
	httpserver "testai/internal/http"
	"testai/internal/session"
	"testai/internal/shell"
)

// Application wires together config, session storage, the gateway, the
// shell and its pages.
type Application struct {
	cfg       config.Config
	log       *log.Logger
	storage   session.Storage
	store     *session.Store
	client    *api.Client
	shell     *shell.Shell
	pages     httpserver.Pages
	documents *files.Loader
	srv       *httpserver.Server
}

func NewApplication(ctx context.Context, cfg config.Config, logger *log.Logger) (*Application, error) {
	if cfg.BackendURL == "" {
		return nil, errors.New("backend url is not configured (set TESTAI_BACKEND_URL)")
	}

	storage, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store := session.NewStore(storage, logger)

	client, err := api.NewClient(cfg.APIBase(), store, api.WithLogger(logger))
	if err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("gateway: %w", err)
	}

	sh := shell.New(store, logger)
	sh.Init()

	pages := httpserver.Pages{
		Login:     shell.NewLoginPage(client.Auth, store, sh),
		Register:  shell.NewRegisterPage(client.Auth, store, sh),
		Dashboard: shell.NewDashboardPage(client.Dashboard, logger),
	}

	return &Application{
		cfg:       cfg,
		log:       logger,
		storage:   storage,
		store:     store,
		client:    client,
		shell:     sh,
		pages:     pages,
		documents: files.NewLoader(cfg.MaxUploadBytes),
		srv:       httpserver.NewServer(cfg, sh, pages, logger),
	}, nil
}

func openStorage(ctx context.Context, cfg config.Config) (session.Storage, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return session.NewMemoryStorage(), nil
	case config.StorageSQLite:
		s, err := session.NewSQLiteStorage(ctx, cfg.SessionPath())
		if err != nil {
			return nil, fmt.Errorf("session storage: %w", err)
		}
		return s, nil
	case config.StorageFile, "":
		s, err := session.NewFileStorage(cfg.SessionPath())
		if err != nil {
			return nil, fmt.Errorf("session storage: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown session storage %q", cfg.Storage)
	}
}

func (a *Application) Store() *session.Store { return a.store }

func (a *Application) Client() *api.Client { return a.client }

func (a *Application) Shell() *shell.Shell { return a.shell }

func (a *Application) Documents() *files.Loader { return a.documents }

func (a *Application) Login() *shell.LoginPage { return a.pages.Login }

func (a *Application) Register() *shell.RegisterPage { return a.pages.Register }

func (a *Application) Dashboard() *shell.DashboardPage { return a.pages.Dashboard }

// Start serves the shell over HTTP until Shutdown.
func (a *Application) Start() error {
	a.log.Info("starting HTTP server", "port", a.cfg.Port, "backend", a.client.BaseURL(), "state", a.shell.State())
	return a.srv.Start()
}

func (a *Application) Shutdown(ctx context.Context) {
	if err := a.srv.Shutdown(ctx); err != nil {
		a.log.Error("http shutdown", "err", err)
	}
	if err := a.storage.Close(); err != nil {
		a.log.Error("close session storage", "err", err)
	}
}

// Close releases storage for commands that never start the server.
func (a *Application) Close() error {
	return a.storage.Close()
}
