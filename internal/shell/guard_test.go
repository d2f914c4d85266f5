package shell

import (
	"testing"

	"pgregory.net/rapid"

	"testai/internal/logger"
	"testai/internal/session"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		state State
		path  string
		want  Decision
	}{
		{Authenticated, "/login", Decision{Kind: Redirect, Path: "/login", Location: "/dashboard"}},
		{Authenticated, "/register", Decision{Kind: Redirect, Path: "/register", Location: "/dashboard"}},
		{Anonymous, "/login", Decision{Kind: Render, Path: "/login", View: ViewLogin}},
		{Anonymous, "/register", Decision{Kind: Render, Path: "/register", View: ViewRegister}},
		{Anonymous, "/dashboard", Decision{Kind: Redirect, Path: "/dashboard", Location: "/login"}},
		{Authenticated, "/dashboard", Decision{Kind: Render, Path: "/dashboard", View: ViewDashboard}},
		{Anonymous, "/", Decision{Kind: Redirect, Path: "/", Location: "/login"}},
		{Authenticated, "/", Decision{Kind: Redirect, Path: "/", Location: "/dashboard"}},
		{Anonymous, "/reports", Decision{Kind: Redirect, Path: "/reports", Location: "/login"}},
		{Authenticated, "/executions", Decision{Kind: Render, Path: "/executions", View: ViewDashboard}},
		{Authenticated, "/projects/", Decision{Kind: Render, Path: "/projects", View: ViewDashboard}},
		{Authenticated, "/tests?project_id=p1", Decision{Kind: Render, Path: "/tests", View: ViewDashboard}},
		{Authenticated, "/settings", Decision{Kind: NotFound, Path: "/settings"}},
		{Anonymous, "", Decision{Kind: Redirect, Path: "/", Location: "/login"}},
		{Initializing, "/dashboard", Decision{Kind: Loading, Path: "/dashboard"}},
		{Initializing, "/login", Decision{Kind: Loading, Path: "/login"}},
	}
	for _, tc := range cases {
		t.Run(tc.state.String()+" "+tc.path, func(t *testing.T) {
			if got := Resolve(tc.state, tc.path); got != tc.want {
				t.Errorf("Resolve(%s, %q) = %+v, want %+v", tc.state, tc.path, got, tc.want)
			}
		})
	}
}

func TestResolveIsPure(t *testing.T) {
	paths := append(Paths(), "/nowhere", "/dashboard/", "")
	rapid.Check(t, func(t *rapid.T) {
		state := State(rapid.IntRange(int(Initializing), int(Authenticated)).Draw(t, "state"))
		path := rapid.SampledFrom(paths).Draw(t, "path")

		first := Resolve(state, path)
		if again := Resolve(state, path); again != first {
			t.Fatalf("Resolve not deterministic: %+v then %+v", first, again)
		}
		if first.Kind == Redirect {
			// A redirect always lands somewhere that renders.
			next := Resolve(state, first.Location)
			if next.Kind != Render {
				t.Fatalf("redirect %s -> %s lands on %+v", path, first.Location, next)
			}
		}
	})
}

func TestNavItemsAreMembersOnly(t *testing.T) {
	for _, item := range NavItems {
		if got := Resolve(Anonymous, item.Path); got.Kind != Redirect || got.Location != LoginPath {
			t.Errorf("anonymous %s = %+v", item.Path, got)
		}
		if got := Resolve(Authenticated, item.Path); got.Kind != Render {
			t.Errorf("authenticated %s = %+v", item.Path, got)
		}
	}
}

func TestShellInitRunsOnce(t *testing.T) {
	store := session.NewStore(session.NewMemoryStorage(), logger.Discard())
	if err := store.Save("T1", session.User{ID: "1", Username: "a"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	sh := New(store, logger.Discard())
	if got := sh.Navigate("/dashboard"); got.Kind != Loading {
		t.Fatalf("before Init = %+v, want loading", got)
	}
	if got := sh.Init(); got != Authenticated {
		t.Fatalf("Init = %s", got)
	}
	if u := sh.User(); u == nil || u.Username != "a" {
		t.Fatalf("User = %+v", u)
	}

	// Later changes to storage do not re-run initialization.
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got := sh.Init(); got != Authenticated {
		t.Errorf("second Init = %s, want unchanged", got)
	}
}

func TestShellInitAnonymous(t *testing.T) {
	sh := New(session.NewStore(session.NewMemoryStorage(), logger.Discard()), logger.Discard())
	if got := sh.Init(); got != Anonymous {
		t.Fatalf("Init = %s", got)
	}
	if sh.User() != nil {
		t.Error("anonymous shell has a user")
	}
	if got := sh.Navigate("/"); got.Location != LoginPath {
		t.Errorf("Navigate(/) = %+v", got)
	}
}

func TestShellLogout(t *testing.T) {
	storage := session.NewMemoryStorage()
	store := session.NewStore(storage, logger.Discard())
	if err := store.Save("T1", session.User{ID: "1", Username: "a"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	sh := New(store, logger.Discard())
	sh.Init()

	to, err := sh.Logout()
	if err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if to.Kind != Redirect || to.Location != LoginPath {
		t.Errorf("Logout = %+v", to)
	}
	if sh.State() != Anonymous || sh.User() != nil {
		t.Errorf("state = %s user = %+v", sh.State(), sh.User())
	}
	if !store.Load().Anonymous() {
		t.Error("store still holds a session")
	}
	if got := sh.Navigate("/dashboard"); got.Location != LoginPath {
		t.Errorf("Navigate(/dashboard) = %+v", got)
	}
}
