// Package shell is the app shell of the client: the session state machine,
// the route guard deciding which views are reachable, and the page
// controllers that move the session between states.
package shell

import "strings"

// State is the session state the guard decides on.
type State int

const (
	Initializing State = iota
	Anonymous
	Authenticated
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Navigable paths.
const (
	RootPath       = "/"
	LoginPath      = "/login"
	RegisterPath   = "/register"
	DashboardPath  = "/dashboard"
	ProjectsPath   = "/projects"
	TestsPath      = "/tests"
	ExecutionsPath = "/executions"
	ReportsPath    = "/reports"
)

// Views a path can render.
const (
	ViewLogin     = "login"
	ViewRegister  = "register"
	ViewDashboard = "dashboard"
)

type access int

const (
	guestOnly access = iota
	membersOnly
	dispatch
)

type route struct {
	path   string
	view   string
	access access
}

// The interior feature paths all land on the dashboard until they get
// views of their own.
var routes = []route{
	{RootPath, "", dispatch},
	{LoginPath, ViewLogin, guestOnly},
	{RegisterPath, ViewRegister, guestOnly},
	{DashboardPath, ViewDashboard, membersOnly},
	{ProjectsPath, ViewDashboard, membersOnly},
	{TestsPath, ViewDashboard, membersOnly},
	{ExecutionsPath, ViewDashboard, membersOnly},
	{ReportsPath, ViewDashboard, membersOnly},
}

// Kind is what the shell should do for a navigation.
type Kind int

const (
	Render Kind = iota
	Redirect
	Loading
	NotFound
)

func (k Kind) String() string {
	switch k {
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	case Loading:
		return "loading"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Decision is the outcome of resolving a path. View is set for Render,
// Location for Redirect.
type Decision struct {
	Kind     Kind   `json:"kind"`
	Path     string `json:"path"`
	View     string `json:"view,omitempty"`
	Location string `json:"location,omitempty"`
}

// Resolve decides what navigating to path does in the given state. It has
// no side effects.
func Resolve(state State, path string) Decision {
	path = cleanPath(path)
	if state == Initializing {
		return Decision{Kind: Loading, Path: path}
	}

	r, ok := lookup(path)
	if !ok {
		return Decision{Kind: NotFound, Path: path}
	}

	signedIn := state == Authenticated
	switch r.access {
	case guestOnly:
		if signedIn {
			return redirect(path, DashboardPath)
		}
	case membersOnly:
		if !signedIn {
			return redirect(path, LoginPath)
		}
	case dispatch:
		if signedIn {
			return redirect(path, DashboardPath)
		}
		return redirect(path, LoginPath)
	}
	return Decision{Kind: Render, Path: path, View: r.view}
}

// Paths lists every navigable path.
func Paths() []string {
	out := make([]string, 0, len(routes))
	for _, r := range routes {
		out = append(out, r.path)
	}
	return out
}

func redirect(from, to string) Decision {
	return Decision{Kind: Redirect, Path: from, Location: to}
}

func lookup(path string) (route, bool) {
	for _, r := range routes {
		if r.path == path {
			return r, true
		}
	}
	return route{}, false
}

func cleanPath(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimRight(strings.TrimSpace(path), "/")
	if path == "" {
		return RootPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

// NavItem is one entry of the signed-in navigation bar.
type NavItem struct {
	Path  string `json:"path"`
	Label string `json:"label"`
}

var NavItems = []NavItem{
	{DashboardPath, "Dashboard"},
	{ProjectsPath, "Projects"},
	{TestsPath, "Tests"},
	{ExecutionsPath, "Executions"},
	{ReportsPath, "Reports"},
}
