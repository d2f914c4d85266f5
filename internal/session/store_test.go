package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pgregory.net/rapid"

	"testai/internal/logger"
)

// countingStorage records removals so tests can tell whether recovery ran.
type countingStorage struct {
	*MemoryStorage
	removals int
	getErr   error
}

func (c *countingStorage) GetItem(key string) (string, bool, error) {
	if c.getErr != nil {
		return "", false, c.getErr
	}
	return c.MemoryStorage.GetItem(key)
}

func (c *countingStorage) RemoveItems(keys ...string) error {
	c.removals++
	return c.MemoryStorage.RemoveItems(keys...)
}

func newCounting() *countingStorage {
	return &countingStorage{MemoryStorage: NewMemoryStorage()}
}

func TestSaveThenLoad(t *testing.T) {
	store := NewStore(NewMemoryStorage(), logger.Discard())

	user := User{ID: "1", Username: "a", Email: "a@b.com"}
	if err := store.Save("T1", user); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := store.Load()
	if got.Token != "T1" {
		t.Errorf("Token = %q, want T1", got.Token)
	}
	if got.User == nil || *got.User != user {
		t.Errorf("User = %+v, want %+v", got.User, user)
	}
	if store.Token() != "T1" {
		t.Errorf("Token() = %q, want T1", store.Token())
	}
}

func TestSaveRejectsPartialPair(t *testing.T) {
	storage := NewMemoryStorage()
	store := NewStore(storage, logger.Discard())

	if err := store.Save("", User{Username: "a"}); !errors.Is(err, ErrIncompleteSession) {
		t.Errorf("Save without token: err = %v, want ErrIncompleteSession", err)
	}
	if err := store.Save("T1", User{}); !errors.Is(err, ErrIncompleteSession) {
		t.Errorf("Save without user: err = %v, want ErrIncompleteSession", err)
	}
	if _, ok, _ := storage.GetItem(TokenKey); ok {
		t.Error("token persisted after rejected Save")
	}
	if _, ok, _ := storage.GetItem(UserKey); ok {
		t.Error("user persisted after rejected Save")
	}
}

func TestClearIsIdempotent(t *testing.T) {
	store := NewStore(NewMemoryStorage(), logger.Discard())
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear on empty store: %v", err)
	}
	if err := store.Save("T1", User{Username: "a"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := store.Clear(); err != nil {
			t.Fatalf("Clear #%d: %v", i, err)
		}
	}
	if !store.Load().Anonymous() {
		t.Error("Load after Clear is not anonymous")
	}
}

func TestLoadRecoversFromCorruptUser(t *testing.T) {
	storage := newCounting()
	_ = storage.SetItems(map[string]string{TokenKey: "T1", UserKey: "{not json"})
	store := NewStore(storage, logger.Discard())

	first := store.Load()
	if !first.Anonymous() || first.User != nil {
		t.Fatalf("first Load = %+v, want anonymous", first)
	}
	if storage.removals != 1 {
		t.Fatalf("removals = %d, want 1", storage.removals)
	}
	if _, ok, _ := storage.GetItem(TokenKey); ok {
		t.Error("token left behind after recovery")
	}
	if _, ok, _ := storage.GetItem(UserKey); ok {
		t.Error("user left behind after recovery")
	}

	second := store.Load()
	if !second.Anonymous() {
		t.Fatalf("second Load = %+v, want anonymous", second)
	}
	if storage.removals != 1 {
		t.Errorf("second Load ran recovery again (removals = %d)", storage.removals)
	}
}

func TestLoadRecoversFromMismatchedPair(t *testing.T) {
	cases := map[string]map[string]string{
		"token only":  {TokenKey: "T1"},
		"user only":   {UserKey: `{"id":1,"username":"a"}`},
		"empty token": {TokenKey: "", UserKey: `{"id":1,"username":"a"}`},
		"null user":   {TokenKey: "T1", UserKey: "null"},
	}
	for name, items := range cases {
		t.Run(name, func(t *testing.T) {
			storage := newCounting()
			_ = storage.SetItems(items)
			store := NewStore(storage, logger.Discard())

			if got := store.Load(); !got.Anonymous() || got.User != nil {
				t.Fatalf("Load = %+v, want anonymous", got)
			}
			if storage.removals != 1 {
				t.Errorf("removals = %d, want 1", storage.removals)
			}
		})
	}
}

func TestLoadTreatsReadFailureAsAnonymous(t *testing.T) {
	storage := newCounting()
	_ = storage.SetItems(map[string]string{TokenKey: "T1", UserKey: `{"id":1,"username":"a"}`})
	storage.getErr = errors.New("disk on fire")
	store := NewStore(storage, logger.Discard())

	if got := store.Load(); !got.Anonymous() {
		t.Fatalf("Load = %+v, want anonymous", got)
	}
	if storage.removals != 1 {
		t.Errorf("removals = %d, want 1", storage.removals)
	}
}

func TestUserIDAcceptsNumbersAndStrings(t *testing.T) {
	storage := NewMemoryStorage()
	_ = storage.SetItems(map[string]string{TokenKey: "T1", UserKey: `{"id":1,"username":"a"}`})
	store := NewStore(storage, logger.Discard())

	got := store.Load()
	if got.User == nil || got.User.ID != "1" {
		t.Fatalf("User = %+v, want id 1", got.User)
	}

	_ = storage.SetItems(map[string]string{UserKey: `{"id":"u-7","username":"a"}`})
	if got := store.Load(); got.User == nil || got.User.ID != "u-7" {
		t.Fatalf("User = %+v, want id u-7", got.User)
	}
}

func TestFileStorageRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	storage, err := NewFileStorage(path)
	if err != nil {
		t.Fatalf("NewFileStorage: %v", err)
	}
	store := NewStore(storage, logger.Discard())

	if err := store.Save("T1", User{ID: "1", Username: "a"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 600", perm)
	}

	reopened, err := NewFileStorage(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got := NewStore(reopened, logger.Discard()).Load()
	if got.Token != "T1" || got.User == nil || got.User.Username != "a" {
		t.Errorf("Load after reopen = %+v", got)
	}
}

func TestFileStorageRecoversFromGarbageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("garbage"), 0o600); err != nil {
		t.Fatal(err)
	}
	storage, err := NewFileStorage(path)
	if err != nil {
		t.Fatalf("NewFileStorage: %v", err)
	}
	store := NewStore(storage, logger.Discard())

	if got := store.Load(); !got.Anonymous() {
		t.Fatalf("Load = %+v, want anonymous", got)
	}
	if _, _, err := storage.GetItem(TokenKey); err != nil {
		t.Errorf("file still unreadable after recovery: %v", err)
	}
}

func TestSQLiteStorageRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	storage, err := NewSQLiteStorage(context.Background(), path)
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	defer storage.Close()
	store := NewStore(storage, logger.Discard())

	if err := store.Save("T1", User{ID: "1", Username: "a"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save("T2", User{ID: "2", Username: "b"}); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	got := store.Load()
	if got.Token != "T2" || got.User == nil || got.User.Username != "b" {
		t.Errorf("Load = %+v, want T2/b", got)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if !store.Load().Anonymous() {
		t.Error("Load after Clear is not anonymous")
	}
}

// Property: after any sequence of saves and clears, Load reflects the last
// operation: the last saved pair, or anonymous after a clear.
func TestStoreReflectsLastOperation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store := NewStore(NewMemoryStorage(), logger.Discard())

		var want Session
		ops := rapid.IntRange(1, 20).Draw(t, "ops")
		for i := 0; i < ops; i++ {
			if rapid.Bool().Draw(t, "clear") {
				if err := store.Clear(); err != nil {
					t.Fatalf("Clear: %v", err)
				}
				want = Session{}
				continue
			}
			token := rapid.StringMatching(`[A-Za-z0-9._-]{1,40}`).Draw(t, "token")
			user := User{
				ID:       UserID(rapid.StringMatching(`[0-9]{1,6}`).Draw(t, "id")),
				Username: rapid.StringMatching(`[a-z]{1,12}`).Draw(t, "username"),
				Email:    rapid.StringMatching(`[a-z]{1,8}@[a-z]{1,8}\.com`).Draw(t, "email"),
				FullName: rapid.StringMatching(`[A-Za-z ]{0,20}`).Draw(t, "full_name"),
			}
			if err := store.Save(token, user); err != nil {
				t.Fatalf("Save: %v", err)
			}
			want = Session{Token: token, User: &user}
		}

		got := store.Load()
		if got.Token != want.Token {
			t.Fatalf("Token = %q, want %q", got.Token, want.Token)
		}
		if (got.User == nil) != (want.User == nil) {
			t.Fatalf("User = %+v, want %+v", got.User, want.User)
		}
		if got.User != nil && *got.User != *want.User {
			t.Fatalf("User = %+v, want %+v", *got.User, *want.User)
		}
	})
}
