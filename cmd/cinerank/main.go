package main

import (
	"context"
	"os"

	"github.com/meur/cinerank/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	app := newApp(NewRunner(RunnerOpts{Logger: logger}))

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("cinerank: %v", err)
	}
}

func newApp(runner *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cinerank",
		Usage: "Edit ranked movie lists on a cinerank server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.StringFlag{
				Name:  "url",
				Usage: "Server base URL (overrides config and CINERANK_URL)",
			},
			&cli.StringFlag{
				Name:  "token",
				Usage: "Bearer token (overrides config and CINERANK_TOKEN)",
			},
			&cli.IntFlag{
				Name:  "retries",
				Usage: "How many times a failed write is re-sent",
				Value: 2,
			},
		},
		Before:   runner.Setup,
		Commands: runner.register(),
	}
}

func tokenCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "token",
		Usage:     "Mint a bearer token with the configured secret",
		ArgsUsage: "<user-id>",
		Action:    r.Token,
	}
}

func mineCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "mine",
		Usage:  "Show the lists you own",
		Action: r.Mine,
	}
}

func createCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create an empty list",
		ArgsUsage: "<name>",
		Action:    r.Create,
	}
}

func showCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a list by its private or public id",
		ArgsUsage: "<ref>",
		Action:    r.Show,
	}
}

func moveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "move",
		Usage:     "Move the item at one position to another (1-based)",
		ArgsUsage: "<ref> <from> <to>",
		Action:    r.Move,
	}
}

func addCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Append a movie to the end of a list",
		ArgsUsage: "<ref> <movie-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "title",
				Usage: "Title to store when the movie is not in the catalog",
			},
			&cli.StringFlag{
				Name:  "poster",
				Usage: "Poster path to store with the title",
			},
		},
		Action: r.Add,
	}
}

func removeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "Remove an item by id or position",
		ArgsUsage: "<ref> <item>",
		Action:    r.Remove,
	}
}

func commentCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "comment",
		Usage:     "Set an item's comment; omit the text to clear it",
		ArgsUsage: "<ref> <item> [text]",
		Action:    r.Comment,
	}
}

func renameCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "rename",
		Usage:     "Rename a list",
		ArgsUsage: "<ref> <name>",
		Action:    r.Rename,
	}
}

func deleteCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a list and all of its items",
		ArgsUsage: "<ref>",
		Action:    r.Delete,
	}
}
