package cli

import (
	"time"

	"github.com/urfave/cli/v2"

	"testai/internal/api"
	"testai/internal/auth"
	"testai/internal/output"
	"testai/internal/session"
	"testai/internal/shell"
)

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in and keep the session for later commands",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "prompted for when omitted"},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			if err := e.require(shell.LoginPath); err != nil {
				return err
			}
			in := api.Credentials{Email: c.String("email"), Password: c.String("password")}
			if in.Email != "" && in.Password == "" {
				pw, err := readSecret(c, "Password: ")
				if err != nil {
					return err
				}
				in.Password = pw
			}
			if _, err := e.app.Login().Submit(c.Context, in); err != nil {
				return err
			}
			return e.printSignedIn()
		}),
	}
}

func registerCommand() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Create an account and sign in",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Aliases: []string{"u"}},
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}},
			&cli.StringFlag{Name: "full-name"},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "prompted for when omitted"},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			if err := e.require(shell.RegisterPath); err != nil {
				return err
			}
			in := api.Registration{
				Username: c.String("username"),
				Email:    c.String("email"),
				FullName: c.String("full-name"),
				Password: c.String("password"),
			}
			if in.Username != "" && in.Email != "" && in.Password == "" {
				pw, err := readSecret(c, "Password (at least 6 characters): ")
				if err != nil {
					return err
				}
				in.Password = pw
			}
			if _, err := e.app.Register().Submit(c.Context, in); err != nil {
				return err
			}
			return e.printSignedIn()
		}),
	}
}

func (e *env) printSignedIn() error {
	user := e.app.Shell().User()
	return e.out.Value(map[string]any{"signed_in": true, "user": user}, func(p *output.Printer) {
		p.Linef("Signed in as %s", user.DisplayName())
	})
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Forget the stored session",
		Action: withEnv(func(c *cli.Context, e *env) error {
			if _, err := e.app.Shell().Logout(); err != nil {
				return err
			}
			return e.out.Value(map[string]any{"signed_in": false}, func(p *output.Printer) {
				p.Linef("Signed out")
			})
		}),
	}
}

type whoami struct {
	User      *session.User `json:"user"`
	Subject   string        `json:"subject,omitempty"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
	Expired   bool          `json:"expired"`
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the signed-in user",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "remote", Usage: "ask the service instead of the stored profile"},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			if err := e.require(shell.DashboardPath); err != nil {
				return err
			}
			result := whoami{User: e.app.Shell().User()}
			if c.Bool("remote") {
				me, err := e.app.Client().Auth.Me(c.Context)
				if err != nil {
					return err
				}
				result.User = me
			}
			// Opaque tokens carry nothing to show.
			if info, err := auth.Inspect(e.app.Store().Token()); err == nil {
				result.Subject = info.Subject
				if !info.ExpiresAt.IsZero() {
					result.ExpiresAt = &info.ExpiresAt
				}
				result.Expired = info.Expired(time.Now())
			}

			return e.out.Value(result, func(p *output.Printer) {
				p.Linef("%s <%s>", result.User.DisplayName(), result.User.Email)
				p.Linef("username: %s", result.User.Username)
				p.Linef("id:       %s", result.User.ID)
				if result.ExpiresAt != nil {
					state := "valid"
					if result.Expired {
						state = "expired"
					}
					p.Linef("token:    %s until %s", state, result.ExpiresAt.Local().Format(time.RFC1123))
				}
			})
		}),
	}
}
