package memtable

import (
	"sort"
	"strconv"

	"github.com/google/btree"

	"github.com/Digithought/quereus-sub006/types"
)

// effectiveRow is one row surviving the merge-cursor fold: the key it was
// found under, its current value (nil if shadowed by a deletion), its
// RowId, and whether this entry is itself a deletion marker.
type effectiveRow struct {
	item    *pkItem
	deleted bool
}

// mergePrimaryChain implements the read path of spec §4.7: a scan produces
// a sorted stream by merging each layer's modifications with the
// (recursively merged) parent, per the six numbered rules. It takes no
// direction parameter; the merged rows come out in ascending key order.
func mergePrimaryChain(chain []*layer) []*pkItem {
	var merged []effectiveRow
	for i, l := range chain {
		if i == 0 {
			merged = collectBasePrimary(l)
			continue
		}
		merged = foldPrimaryLayer(l, merged)
	}
	out := make([]*pkItem, 0, len(merged))
	for _, e := range merged {
		if !e.deleted {
			out = append(out, e.item)
		}
	}
	return out
}

func collectBasePrimary(l *layer) []effectiveRow {
	var out []effectiveRow
	l.primary.Ascend(func(i btree.Item) bool {
		out = append(out, effectiveRow{item: i.(*pkItem)})
		return true
	})
	return out
}

func collectLayerMods(l *layer) []effectiveRow {
	var out []effectiveRow
	l.primary.Ascend(func(i btree.Item) bool {
		p := i.(*pkItem)
		out = append(out, effectiveRow{item: p, deleted: p.deleted})
		return true
	})
	return out
}

// foldPrimaryLayer merges one layer's own modifications (ascending by key)
// against parent (already merged, ascending by key), applying the six
// merge rules of spec §4.7 plus the explicit-deletion-set filter.
func foldPrimaryLayer(l *layer, parent []effectiveRow) []effectiveRow {
	mods := collectLayerMods(l)
	out := make([]effectiveRow, 0, len(mods)+len(parent))
	i, j := 0, 0
	for {
		modDone := i >= len(mods)
		parentDone := j >= len(parent)
		switch {
		case modDone && parentDone:
			// Rule 1: both exhausted.
			return filterDeletedRowIDs(out, l.deletedRowIDs)
		case modDone:
			// Rule 2: only parent remains.
			out = append(out, parent[j])
			j++
		case parentDone:
			// Rule 3: only mod remains.
			out = append(out, mods[i])
			i++
		default:
			switch cmp := compareKey(mods[i].item.key, parent[j].item.key); cmp {
			case types.Equal:
				// Rule 4: mod shadows parent.
				out = append(out, mods[i])
				i++
				j++
			case types.Less:
				// Rule 5: mod key first.
				out = append(out, mods[i])
				i++
			default:
				// Rule 6: parent key first.
				out = append(out, parent[j])
				j++
			}
		}
	}
}

func filterDeletedRowIDs(rows []effectiveRow, deleted map[int64]struct{}) []effectiveRow {
	if len(deleted) == 0 {
		return rows
	}
	out := rows[:0]
	for _, r := range rows {
		if _, gone := deleted[r.item.rowID]; gone {
			continue
		}
		out = append(out, r)
	}
	return out
}

// effectiveSK is one secondary-index merge result: a (IndexKey, RowId) pair
// and whether it is a Drop tombstone.
type effectiveSK struct {
	item    *skItem
	dropped bool
}

// mergeSecondaryChain runs the same six-rule merge over one secondary
// index's Add/Drop trees across the layer chain, returning the live
// (IndexKey, RowId) pairs in ascending key order.
func mergeSecondaryChain(chain []*layer, indexName string) []*skItem {
	var merged []effectiveSK
	for i, l := range chain {
		sm := l.secondary[indexName]
		if sm == nil {
			continue
		}
		if i == 0 {
			merged = collectBaseSecondary(sm)
			continue
		}
		merged = foldSecondaryLayer(l, sm, merged)
	}
	out := make([]*skItem, 0, len(merged))
	for _, e := range merged {
		if !e.dropped {
			out = append(out, e.item)
		}
	}
	return out
}

func collectBaseSecondary(sm *secondaryMod) []effectiveSK {
	var out []effectiveSK
	sm.add.Ascend(func(i btree.Item) bool {
		out = append(out, effectiveSK{item: i.(*skItem)})
		return true
	})
	return out
}

// layerSecondaryMods collapses one layer's own Add and Drop trees into a
// single ascending list: a Drop of a pair this same layer also Added
// cancels out (net: absent), matching ordinary net-effect semantics for a
// single statement or savepoint layer.
func layerSecondaryMods(l *layer, sm *secondaryMod) []effectiveSK {
	byKey := make(map[string]effectiveSK)
	sm.add.Ascend(func(i btree.Item) bool {
		s := i.(*skItem)
		byKey[keyString(s.key)+skRowSuffix(s.rowID)] = effectiveSK{item: s}
		return true
	})
	if sm.drop != nil {
		sm.drop.Ascend(func(i btree.Item) bool {
			s := i.(*skItem)
			k := keyString(s.key) + skRowSuffix(s.rowID)
			if _, addedHere := byKey[k]; addedHere {
				delete(byKey, k)
				return true
			}
			byKey[k] = effectiveSK{item: s, dropped: true}
			return true
		})
	}
	out := make([]effectiveSK, 0, len(byKey))
	for _, v := range byKey {
		out = append(out, v)
	}
	sort.Slice(out, func(a, b int) bool {
		ia, ib := out[a].item, out[b].item
		switch compareKey(ia.key, ib.key) {
		case types.Less:
			return true
		case types.Greater:
			return false
		default:
			return ia.rowID < ib.rowID
		}
	})
	return out
}

func foldSecondaryLayer(l *layer, sm *secondaryMod, parent []effectiveSK) []effectiveSK {
	mods := layerSecondaryMods(l, sm)
	out := make([]effectiveSK, 0, len(mods)+len(parent))
	i, j := 0, 0
	skEqual := func(a, b *skItem) bool {
		return compareKey(a.key, b.key) == types.Equal && a.rowID == b.rowID
	}
	skLess := func(a, b *skItem) bool {
		switch compareKey(a.key, b.key) {
		case types.Less:
			return true
		case types.Greater:
			return false
		default:
			return a.rowID < b.rowID
		}
	}
	for {
		modDone := i >= len(mods)
		parentDone := j >= len(parent)
		switch {
		case modDone && parentDone:
			return out
		case modDone:
			out = append(out, parent[j])
			j++
		case parentDone:
			out = append(out, mods[i])
			i++
		default:
			switch {
			case skEqual(mods[i].item, parent[j].item):
				out = append(out, mods[i])
				i++
				j++
			case skLess(mods[i].item, parent[j].item):
				out = append(out, mods[i])
				i++
			default:
				out = append(out, parent[j])
				j++
			}
		}
	}
}

func skRowSuffix(rowID int64) string {
	return "#" + strconv.FormatInt(rowID, 36)
}
