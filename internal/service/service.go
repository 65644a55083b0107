// Package service runs every list operation the HTTP API exposes: access is
// resolved on each call, and mutations go through a store-backed
// [ranking.Session] whose write is awaited before returning.
package service

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/meur/cinerank/internal/access"
	"github.com/meur/cinerank/internal/auth"
	"github.com/meur/cinerank/internal/models"
	"github.com/meur/cinerank/internal/ranking"
	"github.com/meur/cinerank/internal/shared"
	"github.com/meur/cinerank/internal/storage"
)

// Service implements list operations over a [storage.Store].
type Service struct {
	store     *storage.Store
	resolver  *access.Resolver
	persister ranking.Persister
	logger    *log.Logger
}

// New creates a Service.
func New(store *storage.Store, policy access.Policy, logger *log.Logger) *Service {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Service{
		store:     store,
		resolver:  access.NewResolver(store, policy),
		persister: storePersister{store: store},
		logger:    logger,
	}
}

// Fetch resolves ref for identity and returns the list with its items in
// rank order. Viewers do not see the private token.
func (s *Service) Fetch(ctx context.Context, ref string, identity auth.Identity) (*models.ListView, error) {
	grant, err := s.resolver.Resolve(ctx, ref, identity)
	if err != nil {
		return nil, err
	}

	items, err := s.store.ListItems(ctx, grant.List.ID)
	if err != nil {
		return nil, shared.Persistence("fetch items", err)
	}

	view := models.ListView{List: *grant.List, IsOwner: grant.IsOwner(), Items: items}
	if !view.IsOwner {
		view = view.Redacted()
	}
	return &view, nil
}

// MyLists returns the caller's lists with item counts.
func (s *Service) MyLists(ctx context.Context, identity auth.Identity) ([]models.ListSummary, error) {
	if identity.Anonymous() {
		return nil, shared.ErrUnauthenticated
	}
	lists, err := s.store.ListsByOwner(ctx, identity.UserID)
	if err != nil {
		return nil, shared.Persistence("list lists", err)
	}
	return lists, nil
}

// CreateList creates an empty list owned by the caller.
func (s *Service) CreateList(ctx context.Context, identity auth.Identity, name string) (*models.List, error) {
	if identity.Anonymous() {
		return nil, shared.ErrUnauthenticated
	}
	name, err := ranking.NormalizeName(name)
	if err != nil {
		return nil, err
	}

	list, err := s.store.CreateList(ctx, identity.UserID, name)
	if err != nil {
		return nil, shared.Persistence("create list", err)
	}
	s.logger.Info("list created", "list", list.ID, "owner", identity.UserID)
	return list, nil
}

// Rename renames the list addressed by ref.
func (s *Service) Rename(ctx context.Context, ref string, identity auth.Identity, name string) (models.List, error) {
	res, err := s.edit(ctx, ref, identity, "rename list", func(sess *ranking.Session) (ranking.Result, error) {
		return sess.Rename(name)
	})
	return res.List, err
}

// Delete removes the list and all of its items.
func (s *Service) Delete(ctx context.Context, ref string, identity auth.Identity) error {
	_, err := s.edit(ctx, ref, identity, "delete list", func(sess *ranking.Session) (ranking.Result, error) {
		return sess.Delete()
	})
	return err
}

// AddItem appends a movie to the list. The payload is checked only once the
// caller is known to own the list.
func (s *Service) AddItem(ctx context.Context, ref string, identity auth.Identity, req models.ItemCreate) (models.Item, error) {
	res, err := s.edit(ctx, ref, identity, "add item", func(sess *ranking.Session) (ranking.Result, error) {
		movie, err := s.itemMovie(ctx, req)
		if err != nil {
			return ranking.Result{}, err
		}
		return sess.AddItem(models.Item{ID: req.ID, Movie: movie})
	})
	if err != nil {
		return models.Item{}, err
	}
	return res.Items[len(res.Items)-1], nil
}

// itemMovie builds the movie snapshot for a new item, filling the title and
// poster from the catalog when the request carries no title.
func (s *Service) itemMovie(ctx context.Context, req models.ItemCreate) (models.Movie, error) {
	if req.MovieID <= 0 {
		return models.Movie{}, shared.Invalid("movie_id", "is required")
	}
	if req.Title != "" {
		return models.Movie{ID: req.MovieID, Title: req.Title, PosterPath: req.PosterPath}, nil
	}
	movie, err := s.store.GetMovie(ctx, req.MovieID)
	if err != nil {
		return models.Movie{}, shared.Persistence("fetch movie", err)
	}
	if movie == nil {
		return models.Movie{}, shared.Invalid("title", "is required for a movie not in the catalog")
	}
	return *movie, nil
}

// RemoveItem deletes one item and renumbers the rest.
func (s *Service) RemoveItem(ctx context.Context, ref string, identity auth.Identity, itemID string) ([]models.Item, error) {
	res, err := s.edit(ctx, ref, identity, "remove item", func(sess *ranking.Session) (ranking.Result, error) {
		return sess.RemoveItem(itemID)
	})
	return res.Items, err
}

// UpdateItem sets or clears an item's comment.
func (s *Service) UpdateItem(ctx context.Context, ref string, identity auth.Identity, itemID string, update models.ItemUpdate) (models.Item, error) {
	res, err := s.edit(ctx, ref, identity, "update item", func(sess *ranking.Session) (ranking.Result, error) {
		return sess.UpdateItemComment(itemID, update.Comment)
	})
	if err != nil {
		return models.Item{}, err
	}
	for _, item := range res.Items {
		if item.ID == itemID {
			return item, nil
		}
	}
	return models.Item{}, shared.NotFound("item", itemID)
}

// Reorder overwrites the list order with a complete mapping.
func (s *Service) Reorder(ctx context.Context, ref string, identity auth.Identity, mapping []models.RankUpdate) ([]models.Item, error) {
	res, err := s.edit(ctx, ref, identity, "reorder", func(sess *ranking.Session) (ranking.Result, error) {
		return sess.SetOrder(mapping)
	})
	return res.Items, err
}

// Movie returns a catalog entry.
func (s *Service) Movie(ctx context.Context, id int64) (*models.Movie, error) {
	movie, err := s.store.GetMovie(ctx, id)
	if err != nil {
		return nil, shared.Persistence("fetch movie", err)
	}
	if movie == nil {
		return nil, shared.NotFound("movie", "")
	}
	return movie, nil
}

// edit requires owner rights, loads a session, applies mutate and waits for
// the resulting write.
func (s *Service) edit(ctx context.Context, ref string, identity auth.Identity, op string, mutate func(*ranking.Session) (ranking.Result, error)) (ranking.Result, error) {
	grant, err := s.resolver.ResolveOwner(ctx, ref, identity, op)
	if err != nil {
		return ranking.Result{}, err
	}

	opts := ranking.Options{Loader: s, Persister: s.persister, Logger: s.logger}
	sess, err := ranking.Open(ctx, opts, ref, identity)
	defer sess.Close()
	if err != nil {
		return ranking.Result{}, err
	}

	res, err := mutate(sess)
	if err != nil {
		return ranking.Result{}, err
	}
	if err := res.Wait(ctx); err != nil {
		s.logger.Error("write failed", "op", op, "list", grant.List.ID, "err", err)
		return res, err
	}
	return res, nil
}

// storePersister adapts the store to [ranking.Persister], addressing lists by id.
type storePersister struct {
	store *storage.Store
}

func (p storePersister) RenameList(ctx context.Context, list models.List, name string) error {
	return p.store.RenameList(ctx, list.ID, name)
}

func (p storePersister) DeleteList(ctx context.Context, list models.List) error {
	return p.store.DeleteList(ctx, list.ID)
}

func (p storePersister) AddItem(ctx context.Context, list models.List, item models.Item) error {
	return p.store.AddItem(ctx, list.ID, &item)
}

func (p storePersister) RemoveItem(ctx context.Context, list models.List, itemID string) error {
	return p.store.RemoveItem(ctx, list.ID, itemID)
}

func (p storePersister) UpdateItemComment(ctx context.Context, list models.List, itemID, comment string) error {
	return p.store.UpdateItemComment(ctx, list.ID, itemID, comment)
}

func (p storePersister) ReorderItems(ctx context.Context, list models.List, mapping []models.RankUpdate) error {
	return p.store.ReorderItems(ctx, list.ID, mapping)
}
