package search

import (
	"sort"

	"github.com/google/btree"

	"github.com/ArunaStorage/aos-server/internal/kv"
	"github.com/ArunaStorage/aos-server/internal/model"
)

// hit is a candidate result ordered first by descending score, then
// by ascending idx to break ties deterministically.
type hit struct {
	idx   model.Idx
	score int
}

func (h hit) Less(than btree.Item) bool {
	o := than.(hit)
	if h.score != o.score {
		return h.score > o.score // higher score sorts first
	}
	return h.idx < o.idx
}

// Query runs a full-text search over name/description/title/labels/
// identifiers, scoring each candidate by the number of matched query
// tokens whose postings contain it. Results are ranked by score, ties
// broken by ascending idx (spec query-surface contract).
func Query(rtxn *kv.ROTxn, text string, limit int) ([]model.Idx, error) {
	tokens := tokenize(text)
	scores := make(map[model.Idx]int)
	for _, tok := range tokens {
		bm, err := readPostings(rtxn, []byte(tok))
		if err != nil {
			return nil, err
		}
		it := bm.Iterator()
		for it.HasNext() {
			scores[model.Idx(it.Next())]++
		}
	}

	tree := btree.New(32)
	for idx, score := range scores {
		tree.ReplaceOrInsert(hit{idx: idx, score: score})
	}

	out := make([]model.Idx, 0, limit)
	tree.Ascend(func(item btree.Item) bool {
		if len(out) >= limit {
			return false
		}
		out = append(out, item.(hit).idx)
		return true
	})
	return out, nil
}

// ExactMatch returns every idx whose field value equals want exactly,
// used for structured (non full-text) lookups, e.g. by tag. Results
// are sorted ascending by idx.
func ExactMatch(rtxn *kv.ROTxn, field model.FieldID, want []byte) ([]model.Idx, error) {
	var out []model.Idx
	err := rtxn.ForEach(kv.TableDocuments, func(k, v []byte) (bool, error) {
		idx := model.Idx(kv.DecodeIdxKey(k))
		node, err := decodeFieldRaw(v, field)
		if err != nil {
			return true, nil // corruption on one record must not abort the scan
		}
		if node != nil && string(node) == string(want) {
			out = append(out, idx)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
