package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/meur/cinerank/internal/models"
	"github.com/meur/cinerank/internal/shared"
	"github.com/meur/cinerank/internal/storage"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	app := &cli.Command{
		Name:  "cinerank-seed",
		Usage: "Manage the movie catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Usage:   "SQLite database path",
				Value:   "./cinerank.db",
				Sources: cli.EnvVars("DB_PATH"),
			},
			&cli.StringFlag{
				Name:  "movies",
				Usage: "JSON file holding an array of {id, title, poster_path}; the built-in catalog when empty",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			movies := models.DefaultMovies()
			if path := cmd.String("movies"); path != "" {
				loaded, err := readMovies(path)
				if err != nil {
					return err
				}
				movies = loaded
			}

			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			added, err := store.BulkUpsertMovies(ctx, movies)
			if err != nil {
				return fmt.Errorf("failed to seed movies: %w", err)
			}
			logger.Info("seeding complete", "movies", len(movies), "new", added)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "remove",
				Usage:     "Remove a catalog entry; list items keep their snapshot",
				ArgsUsage: "<movie-id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := strconv.ParseInt(cmd.Args().First(), 10, 64)
					if err != nil {
						return fmt.Errorf("movie id must be a number: %w", err)
					}

					store, err := openStore(cmd)
					if err != nil {
						return err
					}
					defer store.Close()

					if err := store.DeleteMovie(ctx, id); err != nil {
						return err
					}
					logger.Info("movie removed", "id", id)
					return nil
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("seed error: %v", err)
	}
}

func openStore(cmd *cli.Command) (*storage.Store, error) {
	return storage.New(shared.DatabaseConfig{Path: cmd.Root().String("db"), MaxOpenConns: 1, MaxIdleConns: 1})
}

func readMovies(path string) ([]models.Movie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var movies []models.Movie
	if err := json.Unmarshal(data, &movies); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return movies, nil
}
