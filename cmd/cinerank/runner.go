package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/meur/cinerank/internal/auth"
	"github.com/meur/cinerank/internal/client"
	"github.com/meur/cinerank/internal/models"
	"github.com/meur/cinerank/internal/ranking"
	"github.com/meur/cinerank/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	client     *client.Client
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	retries    int
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Runner{
		config:     opts.Config,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		tokenCommand, mineCommand, createCommand, showCommand, moveCommand,
		addCommand, removeCommand, commentCommand, renameCommand, deleteCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

// Setup loads the config file and environment, applies the global flags and
// builds the API client.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := shared.LoadConfig(path)
			if err != nil {
				return ctx, err
			}
			r.config = loaded
		}
	}
	if err := r.config.ApplyEnv(); err != nil {
		return ctx, err
	}
	if url := cmd.String("url"); url != "" {
		r.config.Client.BaseURL = url
	}
	if token := cmd.String("token"); token != "" {
		r.config.Client.Token = token
	}
	r.retries = int(cmd.Int("retries"))

	r.client = client.New(r.config.Client.BaseURL, r.config.Client.Token, r.httpClient)
	return ctx, nil
}

// Token mints a bearer token for a user id. It only works against a server
// sharing this config's jwt_secret.
func (r *Runner) Token(ctx context.Context, cmd *cli.Command) error {
	userID := cmd.Args().First()
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	secret, err := r.config.Auth.SigningSecret()
	if err != nil {
		return err
	}
	ttl, err := r.config.Auth.TTL()
	if err != nil {
		return err
	}

	token, err := auth.NewJWTGate(secret).Issue(userID, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.output, token)
	return nil
}

// Mine prints the caller's lists.
func (r *Runner) Mine(ctx context.Context, cmd *cli.Command) error {
	lists, err := r.client.MyLists(ctx)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(lists))
	for _, l := range lists {
		rows = append(rows, []string{l.Name, strconv.Itoa(l.ItemCount), l.PrivateID, l.PublicID})
	}
	fmt.Fprintln(r.output, renderTable(
		[]string{"Name", "Items", "Private ID", "Public ID"}, rows, 1,
	))
	return nil
}

// Create makes a new empty list and prints both of its tokens.
func (r *Runner) Create(ctx context.Context, cmd *cli.Command) error {
	name := strings.Join(cmd.Args().Slice(), " ")
	list, err := r.client.CreateList(ctx, name)
	if err != nil {
		return err
	}

	fmt.Fprintln(r.output, renderTable(
		[]string{"Name", "Private ID (edit)", "Public ID (share)"},
		[][]string{{list.Name, list.PrivateID, list.PublicID}},
	))
	return nil
}

// Show prints a list in rank order.
func (r *Runner) Show(ctx context.Context, cmd *cli.Command) error {
	view, err := r.client.Fetch(ctx, cmd.Args().First(), auth.Identity{})
	if err != nil {
		return err
	}

	role := "viewer"
	if view.IsOwner {
		role = "owner"
	}
	fmt.Fprintf(r.output, "%s (%s)\n", view.Name, role)
	r.printItems(view.Items)
	return nil
}

// Move relocates the item at position from to position to.
func (r *Runner) Move(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args()
	from, err := position(args.Get(1))
	if err != nil {
		return err
	}
	to, err := position(args.Get(2))
	if err != nil {
		return err
	}

	return r.edit(ctx, args.First(), func(sess *ranking.Session) (ranking.Result, error) {
		return sess.Reorder(from, to)
	})
}

// Add appends a movie. Without --title the title comes from the catalog.
func (r *Runner) Add(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args()
	movieID, err := strconv.ParseInt(args.Get(1), 10, 64)
	if err != nil {
		return fmt.Errorf("movie id must be a number: %w", err)
	}

	movie := models.Movie{ID: movieID, Title: cmd.String("title"), PosterPath: cmd.String("poster")}
	if movie.Title == "" {
		found, err := r.client.Movie(ctx, movieID)
		if err != nil {
			return fmt.Errorf("movie %d is not in the catalog, pass --title: %w", movieID, err)
		}
		movie = *found
	}

	return r.edit(ctx, args.First(), func(sess *ranking.Session) (ranking.Result, error) {
		return sess.AddItem(models.Item{Movie: movie})
	})
}

// Remove deletes an item given by id or 1-based position.
func (r *Runner) Remove(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args()
	return r.edit(ctx, args.First(), func(sess *ranking.Session) (ranking.Result, error) {
		itemID, err := resolveItem(sess, args.Get(1))
		if err != nil {
			return ranking.Result{}, err
		}
		return sess.RemoveItem(itemID)
	})
}

// Comment sets or clears an item's comment.
func (r *Runner) Comment(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args()
	var comment *string
	if args.Len() > 2 {
		text := strings.Join(args.Slice()[2:], " ")
		comment = &text
	}

	return r.edit(ctx, args.First(), func(sess *ranking.Session) (ranking.Result, error) {
		itemID, err := resolveItem(sess, args.Get(1))
		if err != nil {
			return ranking.Result{}, err
		}
		return sess.UpdateItemComment(itemID, comment)
	})
}

// Rename changes a list's name.
func (r *Runner) Rename(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args()
	name := strings.Join(args.Tail(), " ")
	return r.edit(ctx, args.First(), func(sess *ranking.Session) (ranking.Result, error) {
		return sess.Rename(name)
	})
}

// Delete removes a list.
func (r *Runner) Delete(ctx context.Context, cmd *cli.Command) error {
	return r.edit(ctx, cmd.Args().First(), func(sess *ranking.Session) (ranking.Result, error) {
		return sess.Delete()
	})
}

// edit opens a session on ref, applies mutate, prints the optimistic result
// and then waits for the write, re-sending it up to r.retries times.
func (r *Runner) edit(ctx context.Context, ref string, mutate func(*ranking.Session) (ranking.Result, error)) error {
	if ref == "" {
		return fmt.Errorf("list id is required")
	}

	opts := ranking.Options{Loader: r.client, Persister: r.client, Logger: r.logger}
	sess, err := ranking.Open(ctx, opts, ref, auth.Identity{})
	defer sess.Close()
	if err != nil {
		return err
	}

	res, err := mutate(sess)
	if err != nil {
		return err
	}
	if res.Pending == nil {
		fmt.Fprintln(r.output, "nothing to change")
		return nil
	}

	if res.Items != nil {
		r.printItems(res.Items)
	}

	pending := res.Pending
	for attempt := 0; ; attempt++ {
		err := pending.Wait(ctx)
		if err == nil {
			r.logger.Info("saved", "op", pending.Op(), "list", res.List.Name)
			return nil
		}
		if !shared.IsPersistence(err) || attempt >= r.retries {
			return fmt.Errorf("change shown above was not saved: %w", err)
		}
		r.logger.Warn("save failed, retrying", "op", pending.Op(), "attempt", attempt+1, "err", err)
		time.Sleep(time.Duration(attempt+1) * 500 * time.Millisecond)
		pending = pending.Retry()
	}
}

func (r *Runner) printItems(items []models.Item) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{strconv.Itoa(item.Rank), item.Movie.Title, item.Comment, item.ID})
	}
	fmt.Fprintln(r.output, renderTable(
		[]string{"#", "Title", "Comment", "Item ID"}, rows, 0,
	))
}

// position turns a 1-based CLI position into an index.
func position(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("position %q must be a number", arg)
	}
	return n - 1, nil
}

// resolveItem accepts an item id or a 1-based position.
func resolveItem(sess *ranking.Session, arg string) (string, error) {
	items := sess.Items()
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(items) {
			return "", shared.Invalid("position", fmt.Sprintf("%d is outside 1..%d", n, len(items)))
		}
		return items[n-1].ID, nil
	}
	return arg, nil
}
