package cli

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"testai/internal/api"
	"testai/internal/auth"
	"testai/internal/output"
	"testai/internal/shell"
)

func dashboardCommand() *cli.Command {
	return &cli.Command{
		Name:  "dashboard",
		Usage: "Show headline stats and recent executions",
		Action: withEnv(func(c *cli.Context, e *env) error {
			if err := e.require(shell.DashboardPath); err != nil {
				return err
			}
			ctx := auth.WithUser(c.Context, e.app.Shell().User())
			view := e.app.Dashboard().Load(ctx)
			return e.out.Value(view, func(p *output.Printer) {
				p.Linef("%s", view.Greeting)
				p.Linef("")
				rows := make([][]string, 0, len(view.Cards))
				for _, card := range view.Cards {
					rows = append(rows, []string{card.Title, card.Value})
				}
				p.Table([]string{"STAT", "VALUE"}, rows)
				p.Linef("")
				if len(view.Recent) == 0 {
					p.Linef("No test executions yet")
				} else {
					printExecutions(p, view.Recent)
				}
				if view.GettingStarted {
					p.Linef("")
					p.Linef("Getting started: create a project, write a test in plain English, then run it.")
				}
			})
		}),
	}
}

func printExecutions(p *output.Printer, execs []api.Execution) {
	rows := make([][]string, 0, len(execs))
	for _, x := range execs {
		duration := "running"
		if x.DurationMs > 0 {
			duration = strconv.FormatFloat(x.DurationMs, 'f', -1, 64) + "ms"
		}
		rows = append(rows, []string{x.ID.String(), x.TestID.String(), p.Status(x.Status), duration, formatTime(x.CreatedAt)})
	}
	p.Table([]string{"ID", "TEST", "STATUS", "DURATION", "CREATED"}, rows)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func idArg(c *cli.Context, name string) (string, error) {
	id := c.Args().First()
	if id == "" {
		return "", cli.Exit(fmt.Sprintf("missing %s", name), 2)
	}
	return id, nil
}

func projectsCommand() *cli.Command {
	inputFlags := []cli.Flag{
		&cli.StringFlag{Name: "name", Aliases: []string{"n"}},
		&cli.StringFlag{Name: "description", Aliases: []string{"d"}},
	}
	printProject := func(e *env, p *api.Project) error {
		return e.out.Value(p, func(pr *output.Printer) {
			pr.Linef("%s  %s", p.ID, p.Name)
			if p.Description != "" {
				pr.Linef("%s", p.Description)
			}
		})
	}

	return &cli.Command{
		Name:  "projects",
		Usage: "Manage projects",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List projects",
				Action: withEnv(func(c *cli.Context, e *env) error {
					if err := e.require(shell.ProjectsPath); err != nil {
						return err
					}
					projects, err := e.app.Client().Projects.List(c.Context)
					if err != nil {
						return err
					}
					return e.out.Value(projects, func(p *output.Printer) {
						rows := make([][]string, 0, len(projects))
						for _, pr := range projects {
							rows = append(rows, []string{pr.ID.String(), pr.Name, pr.Description})
						}
						p.Table([]string{"ID", "NAME", "DESCRIPTION"}, rows)
					})
				}),
			},
			{
				Name:      "get",
				Usage:     "Show one project",
				ArgsUsage: "<project-id>",
				Action: withEnv(func(c *cli.Context, e *env) error {
					if err := e.require(shell.ProjectsPath); err != nil {
						return err
					}
					id, err := idArg(c, "project id")
					if err != nil {
						return err
					}
					project, err := e.app.Client().Projects.Get(c.Context, id)
					if err != nil {
						return err
					}
					return printProject(e, project)
				}),
			},
			{
				Name:  "create",
				Usage: "Create a project",
				Flags: inputFlags,
				Action: withEnv(func(c *cli.Context, e *env) error {
					if err := e.require(shell.ProjectsPath); err != nil {
						return err
					}
					if c.String("name") == "" {
						return cli.Exit("--name is required", 2)
					}
					project, err := e.app.Client().Projects.Create(c.Context, api.ProjectInput{
						Name:        c.String("name"),
						Description: c.String("description"),
					})
					if err != nil {
						return err
					}
					return printProject(e, project)
				}),
			},
			{
				Name:      "update",
				Usage:     "Rename or describe a project; only the flags given change",
				ArgsUsage: "<project-id>",
				Flags:     inputFlags,
				Action: withEnv(func(c *cli.Context, e *env) error {
					if err := e.require(shell.ProjectsPath); err != nil {
						return err
					}
					id, err := idArg(c, "project id")
					if err != nil {
						return err
					}
					in := api.ProjectUpdate{
						Name:        setString(c, "name"),
						Description: setString(c, "description"),
					}
					if in.Name == nil && in.Description == nil {
						return cli.Exit("nothing to update: pass --name or --description", 2)
					}
					project, err := e.app.Client().Projects.Update(c.Context, id, in)
					if err != nil {
						return err
					}
					return printProject(e, project)
				}),
			},
			{
				Name:      "delete",
				Usage:     "Delete a project",
				ArgsUsage: "<project-id>",
				Action: withEnv(func(c *cli.Context, e *env) error {
					if err := e.require(shell.ProjectsPath); err != nil {
						return err
					}
					id, err := idArg(c, "project id")
					if err != nil {
						return err
					}
					if err := e.app.Client().Projects.Delete(c.Context, id); err != nil {
						return err
					}
					return e.out.Value(map[string]string{"deleted": id}, func(p *output.Printer) {
						p.Linef("Deleted project %s", id)
					})
				}),
			},
		},
	}
}

func testsCommand() *cli.Command {
	inputFlags := []cli.Flag{
		&cli.StringFlag{Name: "name", Aliases: []string{"n"}},
		&cli.StringFlag{Name: "project", Usage: "project id"},
		&cli.StringFlag{Name: "description", Aliases: []string{"d"}},
		&cli.StringFlag{Name: "script", Aliases: []string{"s"}, Usage: "plain-English test script"},
		&cli.StringFlag{Name: "script-file", Usage: "read the script from a file"},
	}
	testInput := func(c *cli.Context) (api.TestInput, error) {
		script, err := scriptFrom(c)
		if err != nil {
			return api.TestInput{}, err
		}
		return api.TestInput{
			ProjectID:   c.String("project"),
			Name:        c.String("name"),
			Description: c.String("description"),
			Script:      script,
		}, nil
	}
	printTest := func(e *env, t *api.Test) error {
		return e.out.Value(t, func(p *output.Printer) {
			p.Linef("%s  %s (project %s)", t.ID, t.Name, t.ProjectID)
			if t.Script != "" {
				p.Linef("")
				p.Linef("%s", t.Script)
			}
			if len(t.Steps) > 0 {
				p.Linef("")
				_ = p.Raw(t.Steps)
			}
		})
	}

	return &cli.Command{
		Name:  "tests",
		Usage: "Manage tests, parse scripts, generate tests from documents",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List tests",
				Flags: []cli.Flag{&cli.StringFlag{Name: "project", Usage: "only tests of this project"}},
				Action: withEnv(func(c *cli.Context, e *env) error {
					if err := e.require(shell.TestsPath); err != nil {
						return err
					}
					tests, err := e.app.Client().Tests.List(c.Context, c.String("project"))
					if err != nil {
						return err
					}
					return e.out.Value(tests, func(p *output.Printer) {
						rows := make([][]string, 0, len(tests))
						for _, t := range tests {
							rows = append(rows, []string{t.ID.String(), t.ProjectID.String(), t.Name})
						}
						p.Table([]string{"ID", "PROJECT", "NAME"}, rows)
					})
				}),
			},
			{
				Name:      "get",
				Usage:     "Show one test",
				ArgsUsage: "<test-id>",
				Action: withEnv(func(c *cli.Context, e *env) error {
					if err := e.require(shell.TestsPath); err != nil {
						return err
					}
					id, err := idArg(c, "test id")
					if err != nil {
						return err
					}
					t, err := e.app.Client().Tests.Get(c.Context, id)
					if err != nil {
						return err
					}
					return printTest(e, t)
				}),
			},
			{
				Name:  "create",
				Usage: "Create a test",
				Flags: inputFlags,
				Action: withEnv(func(c *cli.Context, e *env) error {
					if err := e.require(shell.TestsPath); err != nil {
						return err
					}
					in, err := testInput(c)
					if err != nil {
						return err
					}
					if in.Name == "" {
						return cli.Exit("--name is required", 2)
					}
					t, err := e.app.Client().Tests.Create(c.Context, in)
					if err != nil {
						return err
					}
					return printTest(e, t)
				}),
			},
			{
				Name:      "update",
				Usage:     "Change a test; only the flags given change",
				ArgsUsage: "<test-id>",
				Flags:     inputFlags,
				Action: withEnv(func(c *cli.Context, e *env) error {
					if err := e.require(shell.TestsPath); err != nil {
						return err
					}
					id, err := idArg(c, "test id")
					if err != nil {
						return err
					}
					in, err := testUpdate(c)
					if err != nil {
						return err
					}
					t, err := e.app.Client().Tests.Update(c.Context, id, in)
					if err != nil {
						return err
					}
					return printTest(e, t)
				}),
			},
			{
				Name:      "delete",
				Usage:     "Delete a test",
				ArgsUsage: "<test-id>",
				Action: withEnv(func(c *cli.Context, e *env) error {
					if err := e.require(shell.TestsPath); err != nil {
						return err
					}
					id, err := idArg(c, "test id")
					if err != nil {
						return err
					}
					if err := e.app.Client().Tests.Delete(c.Context, id); err != nil {
						return err
					}
					return e.out.Value(map[string]string{"deleted": id}, func(p *output.Printer) {
						p.Linef("Deleted test %s", id)
					})
				}),
			},
			{
				Name:      "parse",
				Usage:     "Turn a plain-English script into steps",
				ArgsUsage: "[script]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "script-file", Usage: "read the script from a file"},
				},
				Action: withEnv(func(c *cli.Context, e *env) error {
					if err := e.require(shell.TestsPath); err != nil {
						return err
					}
					script := strings.Join(c.Args().Slice(), " ")
					if script == "" {
						s, err := scriptFrom(c)
						if err != nil {
							return err
						}
						script = s
					}
					if script == "" {
						return cli.Exit("missing script", 2)
					}
					result, err := e.app.Client().Tests.Parse(c.Context, script)
					if err != nil {
						return err
					}
					return e.out.Raw(result)
				}),
			},
			{
				Name:      "generate",
				Usage:     "Generate tests from a requirements document",
				ArgsUsage: "<file>",
				Flags:     []cli.Flag{&cli.StringFlag{Name: "project", Usage: "attach generated tests to this project"}},
				Action: withEnv(func(c *cli.Context, e *env) error {
					if err := e.require(shell.TestsPath); err != nil {
						return err
					}
					path, err := idArg(c, "document path")
					if err != nil {
						return err
					}
					doc, err := e.app.Documents().Open(path)
					if err != nil {
						return err
					}
					e.log.Debug("uploading document", "file", doc.Filename, "type", doc.ContentType, "bytes", doc.Size, "sha256", doc.SHA256)
					result, err := e.app.Client().Tests.GenerateFromDocument(c.Context, doc.Document(), c.String("project"))
					if err != nil {
						return err
					}
					return e.out.Raw(result)
				}),
			},
		},
	}
}

// setString returns the flag value only when it was given, so an update
// leaves the other fields alone.
func setString(c *cli.Context, name string) *string {
	if !c.IsSet(name) {
		return nil
	}
	v := c.String(name)
	return &v
}

func testUpdate(c *cli.Context) (api.TestUpdate, error) {
	in := api.TestUpdate{
		ProjectID:   setString(c, "project"),
		Name:        setString(c, "name"),
		Description: setString(c, "description"),
	}
	if c.IsSet("script") || c.IsSet("script-file") {
		script, err := scriptFrom(c)
		if err != nil {
			return api.TestUpdate{}, err
		}
		in.Script = &script
	}
	if in.ProjectID == nil && in.Name == nil && in.Description == nil && in.Script == nil {
		return api.TestUpdate{}, cli.Exit("nothing to update: pass --name, --project, --description or a script", 2)
	}
	return in, nil
}

// scriptFrom reads --script, or --script-file when given ("-" is stdin).
func scriptFrom(c *cli.Context) (string, error) {
	if s := c.String("script"); s != "" {
		return s, nil
	}
	path := c.String("script-file")
	if path == "" {
		return "", nil
	}
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(c.App.Reader)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func executionsCommand() *cli.Command {
	printExecution := func(e *env, x *api.Execution) error {
		return e.out.Value(x, func(p *output.Printer) {
			printExecutions(p, []api.Execution{*x})
			if x.Error != "" {
				p.Linef("")
				p.Linef("error: %s", x.Error)
			}
			if len(x.Results) > 0 {
				p.Linef("")
				_ = p.Raw(x.Results)
			}
		})
	}

	return &cli.Command{
		Name:  "executions",
		Usage: "Run tests and inspect results",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List executions",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "test", Usage: "only executions of this test"},
					&cli.StringFlag{Name: "status", Usage: "passed, failed or running"},
					&cli.StringSliceFlag{Name: "filter", Usage: "extra key=value query filters"},
				},
				Action: withEnv(func(c *cli.Context, e *env) error {
					if err := e.require(shell.ExecutionsPath); err != nil {
						return err
					}
					filters, err := executionFilters(c)
					if err != nil {
						return err
					}
					execs, err := e.app.Client().Executions.List(c.Context, filters)
					if err != nil {
						return err
					}
					return e.out.Value(execs, func(p *output.Printer) {
						printExecutions(p, execs)
					})
				}),
			},
			{
				Name:      "get",
				Usage:     "Show one execution",
				ArgsUsage: "<execution-id>",
				Action: withEnv(func(c *cli.Context, e *env) error {
					if err := e.require(shell.ExecutionsPath); err != nil {
						return err
					}
					id, err := idArg(c, "execution id")
					if err != nil {
						return err
					}
					x, err := e.app.Client().Executions.Get(c.Context, id)
					if err != nil {
						return err
					}
					return printExecution(e, x)
				}),
			},
			{
				Name:      "run",
				Aliases:   []string{"create"},
				Usage:     "Start an execution of a test",
				ArgsUsage: "<test-id>",
				Action: withEnv(func(c *cli.Context, e *env) error {
					if err := e.require(shell.ExecutionsPath); err != nil {
						return err
					}
					testID, err := idArg(c, "test id")
					if err != nil {
						return err
					}
					x, err := e.app.Client().Executions.Create(c.Context, api.ExecutionInput{TestID: testID})
					if err != nil {
						return err
					}
					return printExecution(e, x)
				}),
			},
			{
				Name:      "screenshot",
				Usage:     "Download or print the address of a step screenshot",
				ArgsUsage: "<execution-id> <step>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write the image here"},
					&cli.BoolFlag{Name: "url", Usage: "only print the address"},
				},
				Action: withEnv(func(c *cli.Context, e *env) error {
					if err := e.require(shell.ExecutionsPath); err != nil {
						return err
					}
					if c.NArg() != 2 {
						return cli.Exit("usage: testai executions screenshot <execution-id> <step>", 2)
					}
					id := c.Args().Get(0)
					step, err := strconv.Atoi(c.Args().Get(1))
					if err != nil || step < 0 {
						return cli.Exit("step must be a non-negative number", 2)
					}

					executions := e.app.Client().Executions
					if c.Bool("url") {
						addr := executions.ScreenshotURL(id, step)
						return e.out.Value(map[string]string{"url": addr}, func(p *output.Printer) {
							p.Linef("%s", addr)
						})
					}

					path := c.String("output")
					if path == "" {
						path = screenshotFilename(id, step)
					}
					f, err := os.Create(path)
					if err != nil {
						return fmt.Errorf("create %s: %w", path, err)
					}
					if err := executions.DownloadScreenshot(c.Context, id, step, f); err != nil {
						f.Close()
						_ = os.Remove(path)
						return err
					}
					if err := f.Close(); err != nil {
						return fmt.Errorf("write %s: %w", path, err)
					}
					return e.out.Value(map[string]string{"file": path}, func(p *output.Printer) {
						p.Linef("Saved %s", path)
					})
				}),
			},
		},
	}
}

// screenshotFilename names a download in the working directory. The id
// comes from the user and may hold separators.
func screenshotFilename(id string, step int) string {
	safe := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r < ' ' {
			return '_'
		}
		return r
	}, id)
	safe = strings.TrimLeft(safe, ".")
	if safe == "" {
		safe = "execution"
	}
	return fmt.Sprintf("%s-step-%d.png", safe, step)
}

func executionFilters(c *cli.Context) (url.Values, error) {
	filters := url.Values{}
	if v := c.String("test"); v != "" {
		filters.Set("test_id", v)
	}
	if v := c.String("status"); v != "" {
		filters.Set("status", v)
	}
	for _, kv := range c.StringSlice("filter") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, cli.Exit(fmt.Sprintf("filter %q is not key=value", kv), 2)
		}
		filters.Add(key, value)
	}
	return filters, nil
}
