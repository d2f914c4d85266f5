// Package cli is the terminal front end of the client. Each command is a
// page of the app shell and goes through the same route guard.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"testai/internal/api"
	"testai/internal/app"
	"testai/internal/config"
	"testai/internal/logger"
	"testai/internal/output"
	"testai/internal/shell"
)

const requestFallback = "Request failed. Please try again."

// NewApp builds the testai command line.
func NewApp() *cli.App {
	return &cli.App{
		Name:  "testai",
		Usage: "AI-powered test automation from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "backend-url", Usage: "service root, overrides TESTAI_BACKEND_URL"},
			&cli.StringFlag{Name: "state-dir", Usage: "where the session is kept, overrides TESTAI_STATE_DIR"},
			&cli.StringFlag{Name: "storage", Usage: "session storage: file, sqlite or memory"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.BoolFlag{Name: "json", Usage: "print machine-readable JSON"},
		},
		Commands: []*cli.Command{
			loginCommand(),
			registerCommand(),
			logoutCommand(),
			whoamiCommand(),
			dashboardCommand(),
			projectsCommand(),
			testsCommand(),
			executionsCommand(),
			serveCommand(),
		},
	}
}

// env is what a command runs with.
type env struct {
	cfg  config.Config
	log  *log.Logger
	app  *app.Application
	out  *output.Printer
	errs *output.Printer
}

func loadConfig(c *cli.Context) config.Config {
	cfg := config.Load()
	if c.IsSet("backend-url") {
		cfg.BackendURL = strings.TrimRight(c.String("backend-url"), "/")
	}
	if c.IsSet("state-dir") {
		cfg.StateDir = c.String("state-dir")
	}
	if c.IsSet("storage") {
		cfg.Storage = strings.ToLower(c.String("storage"))
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("port") {
		cfg.Port = c.String("port")
	}
	return cfg
}

func newEnv(c *cli.Context) (*env, error) {
	cfg := loadConfig(c)
	l := logger.New(logger.Options{Level: cfg.LogLevel, Output: c.App.ErrWriter})
	application, err := app.NewApplication(c.Context, cfg, l)
	if err != nil {
		return nil, err
	}
	asJSON := c.Bool("json")
	return &env{
		cfg:  cfg,
		log:  l,
		app:  application,
		out:  output.New(c.App.Writer, asJSON),
		errs: output.New(c.App.ErrWriter, asJSON),
	}, nil
}

// withEnv opens the application around fn and renders its failure.
func withEnv(fn func(c *cli.Context, e *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := newEnv(c)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		defer func() {
			if err := e.app.Close(); err != nil {
				e.log.Error("close session storage", "err", err)
			}
		}()
		return e.fail(fn(c, e))
	}
}

// require runs the route guard for path and refuses when it does not render.
func (e *env) require(path string) error {
	decision := e.app.Shell().Navigate(path)
	if decision.Kind == shell.Render {
		return nil
	}
	if decision.Location == shell.LoginPath {
		return cli.Exit("not signed in; run `testai login` first", 1)
	}
	if decision.Location == shell.DashboardPath {
		user := e.app.Shell().User()
		return cli.Exit(fmt.Sprintf("already signed in as %s; run `testai logout` first", user.DisplayName()), 1)
	}
	return cli.Exit(fmt.Sprintf("%s is not available (%s)", path, decision.Kind), 1)
}

func (e *env) fail(err error) error {
	if err == nil {
		return nil
	}
	var exit cli.ExitCoder
	if errors.As(err, &exit) {
		return err
	}

	printer := e.errs
	if e.out.JSON() {
		printer = e.out
	}
	var verr *shell.ValidationError
	var serr *shell.SubmitError
	var apiErr *api.Error
	switch {
	case errors.As(err, &verr):
		_ = printer.Error("validation", "Please fix the following:", verr.Fields)
		return cli.Exit("", 2)
	case errors.As(err, &serr):
		_ = printer.Error("rejected", serr.Message, nil)
		return cli.Exit("", 1)
	case errors.As(err, &apiErr):
		e.log.Debug("request failed", "err", err)
		_ = printer.Error("request_failed", api.Message(err, requestFallback), nil)
		return cli.Exit("", 1)
	default:
		return cli.Exit(err.Error(), 1)
	}
}

// readSecret prompts on a terminal without echo, or reads one line from a
// pipe.
func readSecret(c *cli.Context, label string) (string, error) {
	if f, ok := c.App.Reader.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(c.App.ErrWriter, label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.App.ErrWriter)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(c.App.Reader).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
