package cli

import (
	"context"
	"time"

	"github.com/urfave/cli/v2"
)

const shutdownGrace = 10 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the app shell over HTTP for a browser front end",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "port", Usage: "listen port, overrides TESTAI_PORT"},
		},
		Action: func(c *cli.Context) error {
			e, err := newEnv(c)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			errc := make(chan error, 1)
			go func() {
				errc <- e.app.Start()
			}()

			select {
			case err = <-errc:
			case <-c.Context.Done():
				e.log.Info("shutting down")
			}

			ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			e.app.Shutdown(ctx)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}
