package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/sakif/snippets/internal/config"
	"github.com/sakif/snippets/internal/highlight"
	"github.com/sakif/snippets/internal/server"
	"github.com/sakif/snippets/internal/service"
)

// App builds the command-line application.
func App() *cli.App {
	return &cli.App{
		Name:    "snippets",
		Usage:   "Share syntax-highlighted code snippets over a JSON API",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				EnvVars: []string{"SNIPPETS_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file read before the environment (ignored if missing)",
				Value: ".env",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			createSuperuserCommand(),
			languagesCommand(),
			stylesCommand(),
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	opts := []config.Option{config.WithEnvFile(c.String("env-file"))}
	if path := c.String("config"); path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}
	return config.Load(opts...)
}

// openServer loads configuration and wires the server, creating the
// database directory if needed.
func openServer(c *cli.Context) (*server.Server, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	logger := cfg.Log.NewLogger(c.App.ErrWriter)

	if cfg.Database.Path != ":memory:" {
		dir := filepath.Dir(cfg.Database.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}

	return server.New(cfg, logger)
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP server",
		Action: func(c *cli.Context) error {
			srv, err := openServer(c)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Start(ctx)
		},
	}
}

func createSuperuserCommand() *cli.Command {
	return &cli.Command{
		Name:  "createsuperuser",
		Usage: "Create an administrator account",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "username",
				Aliases:  []string{"u"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "email",
				Aliases: []string{"e"},
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "account password (prefer the environment variable)",
				EnvVars: []string{"SNIPPETS_SUPERUSER_PASSWORD"},
			},
		},
		Action: func(c *cli.Context) error {
			if c.String("password") == "" {
				return errors.New("a password is required: pass --password or set SNIPPETS_SUPERUSER_PASSWORD")
			}

			srv, err := openServer(c)
			if err != nil {
				return err
			}
			defer srv.Close()

			user, err := srv.Users().CreateSuperuser(c.Context, service.UserInput{
				Username: c.String("username"),
				Email:    c.String("email"),
				Password: c.String("password"),
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(c.App.Writer, "Superuser %q created (id %s).\n", user.Username, user.ID)
			return nil
		},
	}
}

func languagesCommand() *cli.Command {
	return &cli.Command{
		Name:  "languages",
		Usage: "List accepted language identifiers",
		Action: func(c *cli.Context) error {
			return printChoices(c, highlight.Languages())
		},
	}
}

func stylesCommand() *cli.Command {
	return &cli.Command{
		Name:  "styles",
		Usage: "List accepted style names",
		Action: func(c *cli.Context) error {
			return printChoices(c, highlight.Styles())
		},
	}
}

func printChoices(c *cli.Context, choices []highlight.Choice) error {
	for _, ch := range choices {
		if _, err := fmt.Fprintf(c.App.Writer, "%-24s %s\n", ch.Value, ch.Label); err != nil {
			return err
		}
	}
	return nil
}
