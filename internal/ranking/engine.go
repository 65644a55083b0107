// Package ranking holds the in-memory working copy of a ranked list and the
// session that keeps it in step with a backing store.
//
// A [WorkingCopy] owns the item order. Every mutation leaves ranks as the
// contiguous sequence 1..N before it returns.
package ranking

import (
	"sort"
	"strings"

	"github.com/meur/cinerank/internal/models"
	"github.com/meur/cinerank/internal/shared"
)

// WorkingCopy is the local, mutable order of one list's items.
type WorkingCopy struct {
	list  models.List
	items []models.Item
}

// Load builds a working copy from items in arbitrary store order, sorted by
// rank. Equal ranks keep their store order. Ranks are then renumbered 1..N.
func Load(list models.List, items []models.Item) *WorkingCopy {
	sorted := make([]models.Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Rank < sorted[j].Rank
	})

	wc := &WorkingCopy{list: list, items: sorted}
	wc.renumber()
	return wc
}

// List returns the list record as currently known locally.
func (wc *WorkingCopy) List() models.List {
	return wc.list
}

// Len returns the number of items.
func (wc *WorkingCopy) Len() int {
	return len(wc.items)
}

// Items returns a copy of the items in rank order.
func (wc *WorkingCopy) Items() []models.Item {
	out := make([]models.Item, len(wc.items))
	copy(out, wc.items)
	return out
}

// Position returns the 0-based index of itemID, or -1.
func (wc *WorkingCopy) Position(itemID string) int {
	for i := range wc.items {
		if wc.items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// Reorder moves the item at src so that it ends up at index dst, keeping the
// relative order of every other item. It reports whether anything moved.
func (wc *WorkingCopy) Reorder(src, dst int) (bool, error) {
	n := len(wc.items)
	if n == 0 && src == 0 && dst == 0 {
		// An empty list has no positions; the no-op is the only move it accepts.
		return false, nil
	}
	if src < 0 || src >= n {
		return false, shared.Invalid("source position", "out of range")
	}
	if dst < 0 || dst >= n {
		return false, shared.Invalid("target position", "out of range")
	}
	if src == dst {
		return false, nil
	}

	moved := wc.items[src]
	if src < dst {
		copy(wc.items[src:dst], wc.items[src+1:dst+1])
	} else {
		copy(wc.items[dst+1:src+1], wc.items[dst:src])
	}
	wc.items[dst] = moved

	wc.renumber()
	return true, nil
}

// Append adds item at the end with rank N+1. The same movie may appear more
// than once; items are told apart by their own id.
func (wc *WorkingCopy) Append(item models.Item) models.Item {
	item.ListID = wc.list.ID
	item.Rank = len(wc.items) + 1
	wc.items = append(wc.items, item)
	return item
}

// Remove deletes itemID and closes the gap it leaves.
func (wc *WorkingCopy) Remove(itemID string) (models.Item, error) {
	pos := wc.Position(itemID)
	if pos < 0 {
		return models.Item{}, shared.NotFound("item", itemID)
	}

	removed := wc.items[pos]
	wc.items = append(wc.items[:pos], wc.items[pos+1:]...)
	wc.renumber()
	return removed, nil
}

// SetComment replaces an item's comment. Rank is untouched.
func (wc *WorkingCopy) SetComment(itemID, comment string) (models.Item, error) {
	pos := wc.Position(itemID)
	if pos < 0 {
		return models.Item{}, shared.NotFound("item", itemID)
	}

	wc.items[pos].Comment = comment
	return wc.items[pos], nil
}

// Rename sets the list name. Blank names are rejected and leave the name as is.
func (wc *WorkingCopy) Rename(name string) error {
	name, err := NormalizeName(name)
	if err != nil {
		return err
	}
	wc.list.Name = name
	return nil
}

// Mapping returns the complete {id, rank} set for the current order.
func (wc *WorkingCopy) Mapping() []models.RankUpdate {
	mapping := make([]models.RankUpdate, len(wc.items))
	for i, item := range wc.items {
		mapping[i] = models.RankUpdate{ID: item.ID, Rank: item.Rank}
	}
	return mapping
}

// CheckMapping verifies that mapping names every item exactly once and that
// its ranks are exactly 1..N.
func (wc *WorkingCopy) CheckMapping(mapping []models.RankUpdate) error {
	ids := make([]string, len(wc.items))
	for i, item := range wc.items {
		ids[i] = item.ID
	}
	return CheckMapping(ids, mapping)
}

// ApplyMapping reorders the working copy to match a full rank mapping.
func (wc *WorkingCopy) ApplyMapping(mapping []models.RankUpdate) error {
	if err := wc.CheckMapping(mapping); err != nil {
		return err
	}

	rank := make(map[string]int, len(mapping))
	for _, m := range mapping {
		rank[m.ID] = m.Rank
	}
	reordered := make([]models.Item, len(wc.items))
	for _, item := range wc.items {
		reordered[rank[item.ID]-1] = item
	}
	wc.items = reordered
	wc.renumber()
	return nil
}

func (wc *WorkingCopy) renumber() {
	for i := range wc.items {
		wc.items[i].Rank = i + 1
	}
}

// CheckMapping verifies mapping against the ids currently in a list.
func CheckMapping(ids []string, mapping []models.RankUpdate) error {
	if len(mapping) != len(ids) {
		return shared.Invalid("items", "mapping must cover every item exactly once")
	}

	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}

	seenID := make(map[string]bool, len(mapping))
	seenRank := make(map[int]bool, len(mapping))
	for _, m := range mapping {
		if !known[m.ID] {
			return shared.Invalid("items", "unknown item "+m.ID)
		}
		if seenID[m.ID] {
			return shared.Invalid("items", "duplicate item "+m.ID)
		}
		if m.Rank < 1 || m.Rank > len(ids) || seenRank[m.Rank] {
			return shared.Invalid("items", "ranks must be 1..N without duplicates")
		}
		seenID[m.ID] = true
		seenRank[m.Rank] = true
	}
	return nil
}

// NormalizeName trims a list name and rejects it when nothing is left.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", shared.Invalid("name", "must not be empty")
	}
	return name, nil
}
