package shell

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"testai/internal/api"
	"testai/internal/auth"
	"testai/internal/session"
)

const (
	loginFallback    = "Login failed. Please try again."
	registerFallback = "Registration failed. Please try again."

	minPasswordLen = 6
	recentLimit    = 5
)

// Authenticator is the part of the gateway the sign-in pages call.
// *api.AuthService satisfies it.
type Authenticator interface {
	Login(ctx context.Context, in api.Credentials) (*api.AuthResponse, error)
	Register(ctx context.Context, in api.Registration) (*api.AuthResponse, error)
}

// StatsSource is the part of the gateway the dashboard calls.
// *api.DashboardService satisfies it.
type StatsSource interface {
	Stats(ctx context.Context) (*api.DashboardStats, error)
}

// ValidationError reports missing or malformed form fields. No call was made.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "invalid form: " + strings.Join(parts, "; ")
}

// SubmitError is a failed submission. Message is fit for display.
type SubmitError struct {
	Message string
	Err     error
}

func (e *SubmitError) Error() string { return e.Message }
func (e *SubmitError) Unwrap() error { return e.Err }

// LoginPage controls the login form.
type LoginPage struct {
	auth  Authenticator
	store SessionStore
	shell *Shell
}

func NewLoginPage(auth Authenticator, store SessionStore, shell *Shell) *LoginPage {
	return &LoginPage{auth: auth, store: store, shell: shell}
}

// Submit validates, signs in and returns the navigation to the dashboard.
func (p *LoginPage) Submit(ctx context.Context, in api.Credentials) (Decision, error) {
	fields := map[string]string{}
	if in.Email == "" {
		fields["email"] = "Email is required"
	}
	if in.Password == "" {
		fields["password"] = "Password is required"
	}
	if len(fields) > 0 {
		return Decision{}, &ValidationError{Fields: fields}
	}

	resp, err := p.auth.Login(ctx, in)
	if err != nil {
		return Decision{}, &SubmitError{Message: api.Message(err, loginFallback), Err: err}
	}
	return signIn(p.store, p.shell, resp, loginFallback)
}

// RegisterPage controls the registration form.
type RegisterPage struct {
	auth  Authenticator
	store SessionStore
	shell *Shell
}

func NewRegisterPage(auth Authenticator, store SessionStore, shell *Shell) *RegisterPage {
	return &RegisterPage{auth: auth, store: store, shell: shell}
}

func (p *RegisterPage) Submit(ctx context.Context, in api.Registration) (Decision, error) {
	fields := map[string]string{}
	if in.Username == "" {
		fields["username"] = "Username is required"
	}
	if in.Email == "" {
		fields["email"] = "Email is required"
	}
	switch {
	case in.Password == "":
		fields["password"] = "Password is required"
	case utf8.RuneCountInString(in.Password) < minPasswordLen:
		fields["password"] = "Password must be at least 6 characters"
	}
	if len(fields) > 0 {
		return Decision{}, &ValidationError{Fields: fields}
	}

	resp, err := p.auth.Register(ctx, in)
	if err != nil {
		return Decision{}, &SubmitError{Message: api.Message(err, registerFallback), Err: err}
	}
	return signIn(p.store, p.shell, resp, registerFallback)
}

func signIn(store SessionStore, shell *Shell, resp *api.AuthResponse, fallback string) (Decision, error) {
	if resp == nil {
		return Decision{}, &SubmitError{Message: fallback, Err: errors.New("empty auth response")}
	}
	if err := store.Save(resp.AccessToken, resp.User); err != nil {
		return Decision{}, &SubmitError{Message: fallback, Err: err}
	}
	shell.SignedIn(resp.User)
	return Decision{Kind: Redirect, Path: DashboardPath, Location: DashboardPath}, nil
}

// StatCard is one headline number of the dashboard.
type StatCard struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Link  string `json:"link"`
}

// DashboardView is what the dashboard renders.
type DashboardView struct {
	Greeting string             `json:"greeting"`
	User     *session.User      `json:"user,omitempty"`
	Nav      []NavItem          `json:"nav"`
	Stats    api.DashboardStats `json:"stats"`
	Cards    []StatCard         `json:"cards"`
	Recent   []api.Execution    `json:"recent_executions"`
	// Available is false when the stats could not be loaded.
	Available bool `json:"available"`
	// GettingStarted is set for accounts with no tests yet.
	GettingStarted bool `json:"getting_started"`
}

// DashboardPage loads the landing view of signed-in users.
type DashboardPage struct {
	stats StatsSource
	log   *log.Logger
}

func NewDashboardPage(stats StatsSource, logger *log.Logger) *DashboardPage {
	return &DashboardPage{stats: stats, log: logger.WithPrefix("dashboard")}
}

// Load never fails: a stats error is logged and the view shows zeros. The
// greeting names the user carried by ctx (see auth.WithUser).
func (p *DashboardPage) Load(ctx context.Context) DashboardView {
	user, _ := auth.UserFromContext(ctx)
	name := "User"
	if user != nil {
		name = user.DisplayName()
	}
	view := DashboardView{
		Greeting: "Welcome back, " + name + "!",
		User:     user,
		Nav:      NavItems,
	}

	stats, err := p.stats.Stats(ctx)
	if err != nil {
		p.log.Error("error loading stats", "err", err)
	} else if stats != nil {
		view.Stats = *stats
		view.Available = true
		view.GettingStarted = stats.TotalTests == 0
	}

	view.Cards = []StatCard{
		{Title: "Total Projects", Value: strconv.Itoa(view.Stats.TotalProjects), Link: ProjectsPath},
		{Title: "Total Tests", Value: strconv.Itoa(view.Stats.TotalTests), Link: TestsPath},
		{Title: "Test Executions", Value: strconv.Itoa(view.Stats.TotalExecutions), Link: ExecutionsPath},
		{Title: "Pass Rate", Value: strconv.FormatFloat(view.Stats.PassRate, 'f', -1, 64) + "%", Link: ReportsPath},
	}
	view.Recent = view.Stats.RecentExecutions
	if len(view.Recent) > recentLimit {
		view.Recent = view.Recent[:recentLimit]
	}
	if view.Recent == nil {
		view.Recent = []api.Execution{}
	}
	return view
}
