// Package search implements the structured + full-text index (C3).
// Postings are stored as compressed roaring bitmaps in the
// search_postings table; documents and the external-id mapping live
// in the documents / external_documents_ids tables that C3 owns per
// the spec, physically inside the shared C2 environment.
package search

import (
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/ArunaStorage/aos-server/internal/apierror"
	"github.com/ArunaStorage/aos-server/internal/codec"
	"github.com/ArunaStorage/aos-server/internal/kv"
	"github.com/ArunaStorage/aos-server/internal/model"
)

// textFields lists the fields that feed the full-text inverted index,
// per the query surface contract.
var textFields = []model.FieldID{
	model.FieldID_Name,
	model.FieldID_Description,
	model.FieldID_Tag,
}

// AddDocument assigns the next primary-key idx for a new external id,
// persists the encoded record, and rebuilds its postings. The
// assignment is visible to the caller (via the returned idx) before
// the surrounding write transaction commits, so C4's AddNode can be
// asserted equal to it in the same commit (see internal/engine).
func AddDocument(wtxn *kv.RWTxn, id model.ID, variant model.Variant, doc codec.Document) (model.Idx, error) {
	if existing, ok, err := GetIdx(&wtxn.ROTxn, id); err != nil {
		return 0, err
	} else if ok {
		return 0, apierror.New(apierror.KindConflict, "document already indexed: "+existing.String())
	}

	next, err := wtxn.NextIdx()
	if err != nil {
		return 0, err
	}
	idx := model.Idx(next)

	raw, err := codec.Encode(variant, doc)
	if err != nil {
		return 0, err
	}
	if err := wtxn.Put(kv.TableDocuments, kv.EncodeIdxKey(uint32(idx)), raw); err != nil {
		return 0, err
	}
	if err := wtxn.Put(kv.TableExternalDocumentsIDs, id[:], kv.EncodeIdxKey(uint32(idx))); err != nil {
		return 0, err
	}
	if err := indexPostings(wtxn, idx, doc); err != nil {
		return 0, err
	}
	return idx, nil
}

func indexPostings(wtxn *kv.RWTxn, idx model.Idx, doc codec.Document) error {
	seen := make(map[string]bool)
	for _, fieldID := range textFields {
		raw, ok := doc.GetField(fieldID)
		if !ok {
			continue
		}
		for _, tok := range tokenize(string(raw)) {
			if seen[tok] {
				continue
			}
			seen[tok] = true
			if err := addPosting(wtxn, tok, idx); err != nil {
				return err
			}
		}
	}
	if raw, ok := doc.GetField(model.FieldID_Labels); ok {
		labels, err := codec.DecodeLabels(raw)
		if err == nil {
			for _, l := range labels {
				for _, tok := range tokenize(l.Key + " " + l.Value) {
					if !seen[tok] {
						seen[tok] = true
						if err := addPosting(wtxn, tok, idx); err != nil {
							return err
						}
					}
				}
			}
		}
	}
	if raw, ok := doc.GetField(model.FieldID_Identifiers); ok {
		ids, err := codec.DecodeIdentifiers(raw)
		if err == nil {
			for _, s := range ids {
				for _, tok := range tokenize(s) {
					if !seen[tok] {
						seen[tok] = true
						if err := addPosting(wtxn, tok, idx); err != nil {
							return err
						}
					}
				}
			}
		}
	}
	return nil
}

func addPosting(wtxn *kv.RWTxn, token string, idx model.Idx) error {
	key := []byte(token)
	bm, err := readPostings(&wtxn.ROTxn, key)
	if err != nil {
		return err
	}
	bm.Add(uint32(idx))
	buf, err := bm.ToBytes()
	if err != nil {
		return apierror.Wrap(apierror.KindDatabaseError, err, "serializing postings bitmap")
	}
	return wtxn.Put(kv.TableSearchPostings, key, buf)
}

func readPostings(rtxn *kv.ROTxn, key []byte) (*roaring.Bitmap, error) {
	v, ok, err := rtxn.Get(kv.TableSearchPostings, key)
	if err != nil {
		return nil, err
	}
	bm := roaring.New()
	if !ok {
		return bm, nil
	}
	if err := bm.UnmarshalBinary(v); err != nil {
		return nil, apierror.Wrap(apierror.KindParseError, err, "decoding postings bitmap")
	}
	return bm, nil
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	return fields
}

// GetIdx returns the internal idx for an external id, consulting the
// same snapshot as the surrounding transaction.
func GetIdx(rtxn *kv.ROTxn, id model.ID) (model.Idx, bool, error) {
	v, ok, err := rtxn.Get(kv.TableExternalDocumentsIDs, id[:])
	if err != nil || !ok {
		return 0, false, err
	}
	return model.Idx(kv.DecodeIdxKey(v)), true, nil
}

// GetDocument returns the decoded document at idx, or false if absent.
func GetDocument(rtxn *kv.ROTxn, idx model.Idx) (model.Node, bool, error) {
	v, ok, err := rtxn.Get(kv.TableDocuments, kv.EncodeIdxKey(uint32(idx)))
	if err != nil || !ok {
		return nil, false, err
	}
	node, err := codec.DecodeNode(v)
	if err != nil {
		return nil, false, err
	}
	return node, true, nil
}
