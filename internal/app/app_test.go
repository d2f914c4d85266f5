package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"testai/internal/config"
	"testai/internal/logger"
	"testai/internal/session"
	"testai/internal/shell"
)

func testConfig(t *testing.T, storage string) config.Config {
	return config.Config{
		BackendURL: "http://localhost:8001",
		APIPath:    "/api",
		StateDir:   t.TempDir(),
		Storage:    storage,
		Port:       "0",
	}
}

func TestMissingBackendURL(t *testing.T) {
	cfg := testConfig(t, config.StorageMemory)
	cfg.BackendURL = ""
	if _, err := NewApplication(context.Background(), cfg, logger.Discard()); err == nil {
		t.Fatal("NewApplication succeeded without a backend url")
	}
}

func TestUnknownStorage(t *testing.T) {
	if _, err := NewApplication(context.Background(), testConfig(t, "redis"), logger.Discard()); err == nil {
		t.Fatal("NewApplication accepted an unknown storage")
	}
}

func TestSQLiteSetupHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewApplication(ctx, testConfig(t, config.StorageSQLite), logger.Discard())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestWiring(t *testing.T) {
	a, err := NewApplication(context.Background(), testConfig(t, config.StorageMemory), logger.Discard())
	if err != nil {
		t.Fatalf("NewApplication: %v", err)
	}
	defer a.Close()

	if got := a.Client().BaseURL(); got != "http://localhost:8001/api" {
		t.Errorf("BaseURL = %q", got)
	}
	if a.Shell().State() != shell.Anonymous {
		t.Errorf("state = %s", a.Shell().State())
	}
	if a.Login() == nil || a.Register() == nil || a.Dashboard() == nil || a.Documents() == nil {
		t.Error("pages not wired")
	}
}

func TestRehydratesPersistedSession(t *testing.T) {
	for _, driver := range []string{config.StorageFile, config.StorageSQLite} {
		t.Run(driver, func(t *testing.T) {
			cfg := testConfig(t, driver)

			first, err := NewApplication(context.Background(), cfg, logger.Discard())
			if err != nil {
				t.Fatalf("NewApplication: %v", err)
			}
			if err := first.Store().Save("T1", session.User{ID: "1", Username: "a"}); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if err := first.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if _, err := os.Stat(cfg.SessionPath()); err != nil {
				t.Fatalf("no session file at %s: %v", filepath.Base(cfg.SessionPath()), err)
			}

			second, err := NewApplication(context.Background(), cfg, logger.Discard())
			if err != nil {
				t.Fatalf("NewApplication: %v", err)
			}
			defer second.Close()
			if second.Shell().State() != shell.Authenticated {
				t.Errorf("state = %s", second.Shell().State())
			}
			if u := second.Shell().User(); u == nil || u.Username != "a" {
				t.Errorf("user = %+v", u)
			}
		})
	}
}
