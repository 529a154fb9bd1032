package library

import "slices"

// partialReorder puts the items named by ids first, in ids order, followed by
// the remaining items in their original order. Unknown and repeated ids are
// skipped, so every item appears exactly once.
func partialReorder[T any](items []T, ids []string, key func(T) string) []T {
	byID := make(map[string]int, len(items))
	for i, it := range items {
		byID[key(it)] = i
	}
	out := make([]T, 0, len(items))
	taken := make(map[string]bool, len(ids))
	for _, id := range ids {
		i, ok := byID[id]
		if !ok || taken[id] {
			continue
		}
		taken[id] = true
		out = append(out, items[i])
	}
	for _, it := range items {
		if !taken[key(it)] {
			out = append(out, it)
		}
	}
	return out
}

// moveItem returns a copy of items with the element at from reinserted at to.
func moveItem[T any](items []T, from, to int) []T {
	out := slices.Clone(items)
	it := out[from]
	out = slices.Delete(out, from, from+1)
	return slices.Insert(out, to, it)
}

// MoveID is the array-move used by reorder gestures: it removes id from ids
// and reinserts it at the index target held before the move. It returns nil
// when either id is missing.
func MoveID(ids []string, id, target string) []string {
	from := slices.Index(ids, id)
	to := slices.Index(ids, target)
	if from < 0 || to < 0 {
		return nil
	}
	return moveItem(ids, from, to)
}
