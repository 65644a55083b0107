package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/meur/cinerank/internal/access"
	"github.com/meur/cinerank/internal/auth"
	"github.com/meur/cinerank/internal/models"
	"github.com/meur/cinerank/internal/service"
	"github.com/meur/cinerank/internal/shared"
	"github.com/meur/cinerank/internal/storage"
)

type testEnv struct {
	server *Server
	alice  string
	bob    string
}

func setupServer(t *testing.T, cfg shared.ServerConfig) *testEnv {
	t.Helper()
	store, err := storage.New(shared.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if _, err := store.BulkUpsertMovies(t.Context(), models.DefaultMovies()); err != nil {
		t.Fatalf("failed to seed movies: %v", err)
	}

	gate := auth.NewJWTGate("test-secret")
	svc := service.New(store, access.Policy{RequireOwnerIdentity: true}, nil)

	alice, _ := gate.Issue("alice", time.Hour)
	bob, _ := gate.Issue("bob", time.Hour)
	return &testEnv{server: New(svc, gate, cfg, nil), alice: alice, bob: bob}
}

func (e *testEnv) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode %q: %v", rec.Body.String(), err)
	}
	return v
}

// seed creates alice's list with movies 1, 2, 3 and returns it with the item
// ids in that order.
func (e *testEnv) seed(t *testing.T) (models.List, []string) {
	t.Helper()
	rec := e.request(t, http.MethodPost, "/api/lists", e.alice, models.ListCreate{Name: "Favorites"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create list: %d %s", rec.Code, rec.Body.String())
	}
	list := decode[models.List](t, rec)

	var ids []string
	for movieID := int64(1); movieID <= 3; movieID++ {
		rec := e.request(t, http.MethodPost, "/api/lists/"+list.PrivateID+"/items", e.alice, models.ItemCreate{MovieID: movieID})
		if rec.Code != http.StatusCreated {
			t.Fatalf("add item: %d %s", rec.Code, rec.Body.String())
		}
		ids = append(ids, decode[models.Item](t, rec).ID)
	}
	return list, ids
}

func (e *testEnv) order(t *testing.T, ref string) []string {
	t.Helper()
	rec := e.request(t, http.MethodGet, "/api/lists/"+ref, "", nil)
	view := decode[models.ListView](t, rec)
	ids := make([]string, len(view.Items))
	for i, item := range view.Items {
		assert.Equal(t, item.Rank, i+1)
		ids[i] = item.ID
	}
	return ids
}

func TestHealth(t *testing.T) {
	env := setupServer(t, shared.ServerConfig{})
	rec := env.request(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, rec.Body.String(), "OK")
}

func TestListLifecycle(t *testing.T) {
	env := setupServer(t, shared.ServerConfig{})
	list, ids := env.seed(t)
	a, b, c := ids[0], ids[1], ids[2]

	t.Run("Owner view", func(t *testing.T) {
		rec := env.request(t, http.MethodGet, "/api/lists/"+list.PrivateID, env.alice, nil)
		assert.Equal(t, rec.Code, http.StatusOK)
		view := decode[models.ListView](t, rec)
		assert.Equal(t, view.IsOwner, true)
		assert.Equal(t, view.PrivateID, list.PrivateID)
		assert.Equal(t, len(view.Items), 3)
		assert.Equal(t, view.Items[0].Movie.Title, "Inception")
	})

	t.Run("Public token hides private id even from the owner", func(t *testing.T) {
		rec := env.request(t, http.MethodGet, "/api/lists/"+list.PublicID, env.alice, nil)
		assert.Equal(t, rec.Code, http.StatusOK)
		view := decode[models.ListView](t, rec)
		assert.Equal(t, view.IsOwner, false)
		assert.Equal(t, view.PrivateID, "")
	})

	t.Run("Reorder", func(t *testing.T) {
		rec := env.request(t, http.MethodPut, "/api/lists/"+list.PrivateID+"/reorder", env.alice, models.ReorderRequest{
			Items: []models.RankUpdate{{ID: c, Rank: 1}, {ID: a, Rank: 2}, {ID: b, Rank: 3}},
		})
		assert.Equal(t, rec.Code, http.StatusOK)
		assert.Equal(t, env.order(t, list.PublicID), []string{c, a, b})
	})

	t.Run("Partial mapping is rejected", func(t *testing.T) {
		rec := env.request(t, http.MethodPut, "/api/lists/"+list.PrivateID+"/reorder", env.alice, models.ReorderRequest{
			Items: []models.RankUpdate{{ID: a, Rank: 1}, {ID: b, Rank: 2}},
		})
		assert.Equal(t, rec.Code, http.StatusBadRequest)
		assert.Equal(t, env.order(t, list.PublicID), []string{c, a, b})
	})

	t.Run("Comment", func(t *testing.T) {
		note := "a classic"
		rec := env.request(t, http.MethodPut, "/api/lists/"+list.PrivateID+"/items/"+a, env.alice, models.ItemUpdate{Comment: &note})
		assert.Equal(t, rec.Code, http.StatusOK)
		assert.Equal(t, decode[models.Item](t, rec).Comment, note)
	})

	t.Run("Remove", func(t *testing.T) {
		rec := env.request(t, http.MethodDelete, "/api/lists/"+list.PrivateID+"/items/"+a, env.alice, nil)
		assert.Equal(t, rec.Code, http.StatusOK)
		assert.Equal(t, env.order(t, list.PublicID), []string{c, b})

		rec = env.request(t, http.MethodDelete, "/api/lists/"+list.PrivateID+"/items/"+a, env.alice, nil)
		assert.Equal(t, rec.Code, http.StatusNotFound)
	})

	t.Run("Rename", func(t *testing.T) {
		empty := "  "
		rec := env.request(t, http.MethodPut, "/api/lists/"+list.PrivateID, env.alice, models.ListUpdate{Name: &empty})
		assert.Equal(t, rec.Code, http.StatusBadRequest)

		name := "All-time"
		rec = env.request(t, http.MethodPut, "/api/lists/"+list.PrivateID, env.alice, models.ListUpdate{Name: &name})
		assert.Equal(t, rec.Code, http.StatusOK)
		assert.Equal(t, decode[models.List](t, rec).Name, name)
	})

	t.Run("Mine", func(t *testing.T) {
		rec := env.request(t, http.MethodGet, "/api/lists/mine", env.alice, nil)
		assert.Equal(t, rec.Code, http.StatusOK)
		lists := decode[[]models.ListSummary](t, rec)
		assert.Equal(t, len(lists), 1)
		assert.Equal(t, lists[0].ItemCount, 2)

		rec = env.request(t, http.MethodGet, "/api/lists/mine", "", nil)
		assert.Equal(t, rec.Code, http.StatusUnauthorized)
	})

	t.Run("Delete", func(t *testing.T) {
		rec := env.request(t, http.MethodDelete, "/api/lists/"+list.PrivateID, env.alice, nil)
		assert.Equal(t, rec.Code, http.StatusOK)

		rec = env.request(t, http.MethodGet, "/api/lists/"+list.PublicID, "", nil)
		assert.Equal(t, rec.Code, http.StatusNotFound)
	})
}

func TestViewerCannotMutate(t *testing.T) {
	env := setupServer(t, shared.ServerConfig{})
	list, ids := env.seed(t)
	name := "Hijacked"
	note := "x"

	cases := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"rename", http.MethodPut, "", models.ListUpdate{Name: &name}},
		{"delete", http.MethodDelete, "", nil},
		{"add", http.MethodPost, "/items", models.ItemCreate{MovieID: 5}},
		{"comment", http.MethodPut, "/items/" + ids[0], models.ItemUpdate{Comment: &note}},
		{"remove", http.MethodDelete, "/items/" + ids[0], nil},
		{"reorder", http.MethodPut, "/reorder", models.ReorderRequest{Items: []models.RankUpdate{
			{ID: ids[2], Rank: 1}, {ID: ids[1], Rank: 2}, {ID: ids[0], Rank: 3},
		}}},
	}

	for _, tc := range cases {
		t.Run(tc.name+" via public token", func(t *testing.T) {
			rec := env.request(t, tc.method, "/api/lists/"+list.PublicID+tc.path, env.alice, tc.body)
			assert.Equal(t, rec.Code, http.StatusForbidden)
		})
		t.Run(tc.name+" by another user", func(t *testing.T) {
			rec := env.request(t, tc.method, "/api/lists/"+list.PrivateID+tc.path, env.bob, tc.body)
			assert.Equal(t, rec.Code, http.StatusForbidden)
		})
		t.Run(tc.name+" on unknown list", func(t *testing.T) {
			rec := env.request(t, tc.method, "/api/lists/nope"+tc.path, env.alice, tc.body)
			assert.Equal(t, rec.Code, http.StatusNotFound)
		})
	}

	assert.Equal(t, env.order(t, list.PublicID), ids)
}

func TestRequestErrors(t *testing.T) {
	env := setupServer(t, shared.ServerConfig{})

	t.Run("Bad token", func(t *testing.T) {
		rec := env.request(t, http.MethodGet, "/api/lists/mine", "garbage", nil)
		assert.Equal(t, rec.Code, http.StatusUnauthorized)
	})

	t.Run("Anonymous create", func(t *testing.T) {
		rec := env.request(t, http.MethodPost, "/api/lists", "", models.ListCreate{Name: "x"})
		assert.Equal(t, rec.Code, http.StatusUnauthorized)
	})

	t.Run("Malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/lists", bytes.NewBufferString("{"))
		req.Header.Set("Authorization", "Bearer "+env.alice)
		rec := httptest.NewRecorder()
		env.server.ServeHTTP(rec, req)
		assert.Equal(t, rec.Code, http.StatusBadRequest)
	})

	t.Run("Movie lookup", func(t *testing.T) {
		rec := env.request(t, http.MethodGet, "/api/movies/7", "", nil)
		assert.Equal(t, rec.Code, http.StatusOK)
		assert.Equal(t, decode[models.Movie](t, rec).Title, "The Matrix")

		rec = env.request(t, http.MethodGet, "/api/movies/999", "", nil)
		assert.Equal(t, rec.Code, http.StatusNotFound)

		rec = env.request(t, http.MethodGet, "/api/movies/abc", "", nil)
		assert.Equal(t, rec.Code, http.StatusBadRequest)
	})
}

func TestWriteLimit(t *testing.T) {
	env := setupServer(t, shared.ServerConfig{WriteRate: 0.001, WriteBurst: 1})

	rec := env.request(t, http.MethodPost, "/api/lists", env.alice, models.ListCreate{Name: "one"})
	assert.Equal(t, rec.Code, http.StatusCreated)

	rec = env.request(t, http.MethodPost, "/api/lists", env.alice, models.ListCreate{Name: "two"})
	assert.Equal(t, rec.Code, http.StatusTooManyRequests)

	rec = env.request(t, http.MethodGet, "/api/lists/mine", env.alice, nil)
	assert.Equal(t, rec.Code, http.StatusOK)

	rec = env.request(t, http.MethodPost, "/api/lists", env.bob, models.ListCreate{Name: "bob's"})
	assert.Equal(t, rec.Code, http.StatusCreated)
}
