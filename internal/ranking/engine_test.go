package ranking

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/go-playground/assert/v2"
	"github.com/meur/cinerank/internal/models"
	"github.com/meur/cinerank/internal/shared"
)

func item(id string, rank int) models.Item {
	return models.Item{ID: id, Rank: rank, Movie: models.Movie{ID: 1, Title: "Movie " + id}}
}

func order(items []models.Item) string {
	s := ""
	for i, it := range items {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%s:%d", it.ID, it.Rank)
	}
	return s
}

// assertContiguous checks ranks are exactly 1..N in slice order.
func assertContiguous(t *testing.T, items []models.Item) {
	t.Helper()
	for i, it := range items {
		if it.Rank != i+1 {
			t.Fatalf("rank %d at position %d in %s", it.Rank, i, order(items))
		}
	}
}

func abc() *WorkingCopy {
	return Load(models.List{ID: "L", Name: "Top"}, []models.Item{item("A", 1), item("B", 2), item("C", 3)})
}

func TestLoad(t *testing.T) {
	t.Run("Sorts by rank", func(t *testing.T) {
		wc := Load(models.List{ID: "L"}, []models.Item{item("C", 3), item("A", 1), item("B", 2)})
		assert.Equal(t, order(wc.Items()), "A:1 B:2 C:3")
	})

	t.Run("Ties keep store order", func(t *testing.T) {
		wc := Load(models.List{ID: "L"}, []models.Item{item("X", 2), item("Y", 1), item("Z", 2)})
		assert.Equal(t, order(wc.Items()), "Y:1 X:2 Z:3")
	})

	t.Run("Empty", func(t *testing.T) {
		wc := Load(models.List{ID: "L"}, nil)
		assert.Equal(t, wc.Len(), 0)
	})

	t.Run("Items returns a copy", func(t *testing.T) {
		wc := abc()
		items := wc.Items()
		items[0].Comment = "changed"
		assert.Equal(t, wc.Items()[0].Comment, "")
	})
}

func TestReorder(t *testing.T) {
	t.Run("Last to first", func(t *testing.T) {
		wc := abc()
		changed, err := wc.Reorder(2, 0)
		assert.Equal(t, err, nil)
		assert.Equal(t, changed, true)
		assert.Equal(t, order(wc.Items()), "C:1 A:2 B:3")
		assert.Equal(t, wc.Mapping(), []models.RankUpdate{{ID: "C", Rank: 1}, {ID: "A", Rank: 2}, {ID: "B", Rank: 3}})
	})

	t.Run("First to last", func(t *testing.T) {
		wc := abc()
		_, err := wc.Reorder(0, 2)
		assert.Equal(t, err, nil)
		assert.Equal(t, order(wc.Items()), "B:1 C:2 A:3")
	})

	t.Run("Same position is a no-op", func(t *testing.T) {
		wc := abc()
		changed, err := wc.Reorder(1, 1)
		assert.Equal(t, err, nil)
		assert.Equal(t, changed, false)
		assert.Equal(t, order(wc.Items()), "A:1 B:2 C:3")
	})

	t.Run("Single item accepts only no-op", func(t *testing.T) {
		wc := Load(models.List{ID: "L"}, []models.Item{item("A", 1)})
		changed, err := wc.Reorder(0, 0)
		assert.Equal(t, err, nil)
		assert.Equal(t, changed, false)

		_, err = wc.Reorder(0, 1)
		assert.Equal(t, shared.IsValidation(err), true)
	})

	t.Run("Empty list accepts only the no-op", func(t *testing.T) {
		wc := Load(models.List{ID: "L"}, nil)
		changed, err := wc.Reorder(0, 0)
		assert.Equal(t, err, nil)
		assert.Equal(t, changed, false)

		_, err = wc.Reorder(0, 1)
		assert.Equal(t, shared.IsValidation(err), true)
		_, err = wc.Reorder(1, 1)
		assert.Equal(t, shared.IsValidation(err), true)
		assert.Equal(t, len(wc.Items()), 0)
	})

	t.Run("Out of range leaves order untouched", func(t *testing.T) {
		wc := abc()
		_, err := wc.Reorder(-1, 2)
		assert.Equal(t, shared.IsValidation(err), true)
		_, err = wc.Reorder(0, 3)
		assert.Equal(t, shared.IsValidation(err), true)
		assert.Equal(t, order(wc.Items()), "A:1 B:2 C:3")
	})

	t.Run("Preserves relative order of untouched items", func(t *testing.T) {
		rng := rand.New(rand.NewSource(7))
		for trial := 0; trial < 200; trial++ {
			n := 1 + rng.Intn(12)
			items := make([]models.Item, n)
			for i := range items {
				items[i] = item(fmt.Sprintf("i%d", i), i+1)
			}
			wc := Load(models.List{ID: "L"}, items)
			src, dst := rng.Intn(n), rng.Intn(n)
			moved := wc.Items()[src].ID

			before := wc.Items()
			if _, err := wc.Reorder(src, dst); err != nil {
				t.Fatalf("reorder(%d,%d): %v", src, dst, err)
			}
			after := wc.Items()

			assertContiguous(t, after)
			assert.Equal(t, after[dst].ID, moved)

			var restBefore, restAfter []string
			for _, it := range before {
				if it.ID != moved {
					restBefore = append(restBefore, it.ID)
				}
			}
			for _, it := range after {
				if it.ID != moved {
					restAfter = append(restAfter, it.ID)
				}
			}
			assert.Equal(t, restAfter, restBefore)
		}
	})
}

func TestAppendRemove(t *testing.T) {
	t.Run("Append goes last", func(t *testing.T) {
		wc := abc()
		added := wc.Append(models.Item{ID: "D", Movie: models.Movie{ID: 1}})
		assert.Equal(t, added.Rank, 4)
		assert.Equal(t, added.ListID, "L")
		assert.Equal(t, order(wc.Items()), "A:1 B:2 C:3 D:4")
	})

	t.Run("Duplicate movies are allowed", func(t *testing.T) {
		wc := abc()
		wc.Append(models.Item{ID: "D", Movie: models.Movie{ID: 1}})
		assert.Equal(t, wc.Len(), 4)
	})

	t.Run("Remove renumbers", func(t *testing.T) {
		wc := abc()
		removed, err := wc.Remove("B")
		assert.Equal(t, err, nil)
		assert.Equal(t, removed.ID, "B")
		assert.Equal(t, order(wc.Items()), "A:1 C:2")
	})

	t.Run("Double remove is not found", func(t *testing.T) {
		wc := abc()
		_, err := wc.Remove("B")
		assert.Equal(t, err, nil)
		_, err = wc.Remove("B")
		assert.Equal(t, shared.IsNotFound(err), true)
		assert.Equal(t, wc.Len(), 2)
	})

	t.Run("Ranks stay contiguous under random operations", func(t *testing.T) {
		rng := rand.New(rand.NewSource(42))
		wc := Load(models.List{ID: "L"}, nil)
		next := 0
		for step := 0; step < 500; step++ {
			switch op := rng.Intn(3); {
			case op == 0 || wc.Len() == 0:
				next++
				wc.Append(models.Item{ID: fmt.Sprintf("n%d", next), Movie: models.Movie{ID: 1}})
			case op == 1:
				victim := wc.Items()[rng.Intn(wc.Len())].ID
				if _, err := wc.Remove(victim); err != nil {
					t.Fatalf("remove: %v", err)
				}
			default:
				if _, err := wc.Reorder(rng.Intn(wc.Len()), rng.Intn(wc.Len())); err != nil {
					t.Fatalf("reorder: %v", err)
				}
			}
			assertContiguous(t, wc.Items())
		}
	})
}

func TestCommentAndRename(t *testing.T) {
	t.Run("SetComment keeps rank", func(t *testing.T) {
		wc := abc()
		updated, err := wc.SetComment("C", "best ending")
		assert.Equal(t, err, nil)
		assert.Equal(t, updated.Comment, "best ending")
		assert.Equal(t, updated.Rank, 3)

		_, err = wc.SetComment("Z", "x")
		assert.Equal(t, shared.IsNotFound(err), true)
	})

	t.Run("Rename trims", func(t *testing.T) {
		wc := abc()
		assert.Equal(t, wc.Rename("  Best of 2024 "), nil)
		assert.Equal(t, wc.List().Name, "Best of 2024")
	})

	t.Run("Blank rename leaves name unchanged", func(t *testing.T) {
		wc := abc()
		for _, name := range []string{"", "   ", "\t\n"} {
			err := wc.Rename(name)
			assert.Equal(t, shared.IsValidation(err), true)
		}
		assert.Equal(t, wc.List().Name, "Top")
	})
}

func TestMapping(t *testing.T) {
	t.Run("ApplyMapping reorders", func(t *testing.T) {
		wc := abc()
		err := wc.ApplyMapping([]models.RankUpdate{{ID: "B", Rank: 1}, {ID: "C", Rank: 2}, {ID: "A", Rank: 3}})
		assert.Equal(t, err, nil)
		assert.Equal(t, order(wc.Items()), "B:1 C:2 A:3")
	})

	cases := []struct {
		name    string
		mapping []models.RankUpdate
	}{
		{"missing item", []models.RankUpdate{{ID: "A", Rank: 1}, {ID: "B", Rank: 2}}},
		{"unknown item", []models.RankUpdate{{ID: "A", Rank: 1}, {ID: "B", Rank: 2}, {ID: "Z", Rank: 3}}},
		{"duplicate item", []models.RankUpdate{{ID: "A", Rank: 1}, {ID: "A", Rank: 2}, {ID: "B", Rank: 3}}},
		{"duplicate rank", []models.RankUpdate{{ID: "A", Rank: 1}, {ID: "B", Rank: 1}, {ID: "C", Rank: 3}}},
		{"rank out of range", []models.RankUpdate{{ID: "A", Rank: 0}, {ID: "B", Rank: 2}, {ID: "C", Rank: 3}}},
		{"gap", []models.RankUpdate{{ID: "A", Rank: 1}, {ID: "B", Rank: 2}, {ID: "C", Rank: 4}}},
	}
	for _, tc := range cases {
		t.Run("Rejects "+tc.name, func(t *testing.T) {
			wc := abc()
			err := wc.ApplyMapping(tc.mapping)
			assert.Equal(t, shared.IsValidation(err), true)
			assert.Equal(t, order(wc.Items()), "A:1 B:2 C:3")
		})
	}

	t.Run("Empty list accepts empty mapping", func(t *testing.T) {
		wc := Load(models.List{ID: "L"}, nil)
		assert.Equal(t, wc.ApplyMapping(nil), nil)
	})
}
