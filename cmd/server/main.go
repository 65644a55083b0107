package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/meur/cinerank/internal/access"
	"github.com/meur/cinerank/internal/api"
	"github.com/meur/cinerank/internal/auth"
	"github.com/meur/cinerank/internal/service"
	"github.com/meur/cinerank/internal/shared"
	"github.com/meur/cinerank/internal/storage"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	app := &cli.Command{
		Name:  "cinerank-server",
		Usage: "Serve the ranked movie list API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Server port (overrides config and PORT)",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "SQLite database path (overrides config and DB_PATH)",
			},
			&cli.StringFlag{
				Name:  "static",
				Usage: "Directory of frontend files to serve at /",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Log every request",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write an example config file",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					path := cmd.Root().String("config")
					if err := shared.CreateConfigFile(path); err != nil {
						return err
					}
					logger.Info("config written", "path", path)
					return nil
				},
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return serve(ctx, cmd, logger)
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("server error: %v", err)
	}
}

// loadConfig layers the config file, the environment and then flags over
// the embedded defaults.
func loadConfig(cmd *cli.Command) (*shared.Config, error) {
	config := shared.DefaultConfig()
	path := cmd.String("config")
	if _, err := os.Stat(path); err == nil {
		loaded, err := shared.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	if port := cmd.Int("port"); port != 0 {
		config.Server.Port = int(port)
	}
	if db := cmd.String("db"); db != "" {
		config.Database.Path = db
	}
	if dir := cmd.String("static"); dir != "" {
		config.Server.StaticDir = dir
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if _, err := config.Auth.SigningSecret(); err != nil {
		return nil, err
	}
	return config, nil
}

func serve(ctx context.Context, cmd *cli.Command, logger *log.Logger) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Bool("debug") {
		logger.SetLevel(log.DebugLevel)
	}

	store, err := storage.New(config.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := service.New(store, access.Policy{RequireOwnerIdentity: config.Auth.RequireOwnerIdentity}, logger.With("component", "service"))
	gate := auth.NewJWTGate(config.Auth.JWTSecret)
	srv := api.New(svc, gate, config.Server, logger.With("component", "api"))

	if config.Server.StaticDir != "" {
		mountStatic(srv.Router(), config.Server.StaticDir)
	}

	httpServer := &http.Server{
		Addr:              config.Server.Addr(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("cinerank API starting", "addr", httpServer.Addr, "db", config.Database.Path)
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// mountStatic serves the built frontend from dir on every GET the API
// routes do not claim.
func mountStatic(r chi.Router, dir string) {
	r.Get("/*", http.FileServer(http.Dir(dir)).ServeHTTP)
}
