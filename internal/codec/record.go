// Package codec implements the field codec (C1): encoding and
// decoding of the compact per-document records stored in the KV
// store. Fields are keyed by the small integer ids of
// model.Fields and are written/read in ascending index order.
package codec

import (
	"encoding/binary"

	"github.com/ArunaStorage/aos-server/internal/apierror"
	"github.com/ArunaStorage/aos-server/internal/model"
)

// Document is the decoded, in-memory form of one record: a sparse map
// from field id to raw encoded bytes. Unset fields are simply absent
// from the map.
type Document map[model.FieldID][]byte

// Encode writes the fields of doc in ascending field-id order. Field
// 0 (id) is mandatory and is written first, immediately after the
// variant byte, as a fixed 16-byte value; every other present field
// follows as (varint field id, varint length, raw bytes).
func Encode(variant model.Variant, doc Document) ([]byte, error) {
	idBytes, ok := doc[model.FieldID_ID]
	if !ok || len(idBytes) != 16 {
		return nil, apierror.New(apierror.KindParseError, "field 0 (id) is mandatory and must be 16 bytes")
	}

	buf := make([]byte, 0, 64)
	buf = append(buf, byte(variant))
	buf = append(buf, idBytes...)

	ids := sortedFieldIDs(doc)
	for _, id := range ids {
		if id == model.FieldID_ID {
			continue
		}
		v := doc[id]
		buf = appendVarint(buf, uint64(id))
		buf = appendVarint(buf, uint64(len(v)))
		buf = append(buf, v...)
	}
	return buf, nil
}

// Decode parses raw into a Document, verifying that every field in
// required is present. required is the caller's required-field set
// for the node's variant (see RequiredFieldSet).
func Decode(raw []byte, required map[model.FieldID]model.FieldType) (model.Variant, Document, error) {
	if len(raw) < 17 {
		return 0, nil, apierror.New(apierror.KindParseError, "record too short")
	}
	variant := model.Variant(raw[0])
	doc := make(Document)
	doc[model.FieldID_ID] = raw[1:17]

	rest := raw[17:]
	for len(rest) > 0 {
		id, n, err := readVarint(rest)
		if err != nil {
			return 0, nil, apierror.Wrap(apierror.KindParseError, err, "reading field id")
		}
		rest = rest[n:]
		length, n, err := readVarint(rest)
		if err != nil {
			return 0, nil, apierror.Wrap(apierror.KindParseError, err, "reading field length")
		}
		rest = rest[n:]
		if uint64(len(rest)) < length {
			return 0, nil, apierror.New(apierror.KindParseError, "field value truncated")
		}
		doc[model.FieldID(id)] = rest[:length]
		rest = rest[length:]
	}

	for id := range required {
		if _, ok := doc[id]; !ok {
			return 0, nil, apierror.New(apierror.KindParseError, "missing required field")
		}
	}
	return variant, doc, nil
}

func sortedFieldIDs(doc Document) []model.FieldID {
	ids := make([]model.FieldID, 0, len(doc))
	for id := range doc {
		ids = append(ids, id)
	}
	// insertion sort: field count per document is small (<=23)
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	return ids
}

func appendVarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func readVarint(b []byte) (uint64, int, error) {
	v, n := binary.Uvarint(b)
	if n <= 0 {
		return 0, 0, apierror.New(apierror.KindParseError, "malformed varint")
	}
	return v, n, nil
}
