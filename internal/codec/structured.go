package codec

import (
	"github.com/ArunaStorage/aos-server/internal/apierror"
	"github.com/ArunaStorage/aos-server/internal/model"
)

// Structured fields (labels, authors, hashes, locations, identifiers)
// share one wire shape: a varint count followed by that many records,
// each a sequence of length-prefixed strings/bytes. The shape is
// stable across restarts; it is an internal implementation detail not
// exposed outside this package.

func putString(buf []byte, s string) []byte {
	buf = appendVarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func readString(b []byte) (string, []byte, error) {
	n, adv, err := readVarint(b)
	if err != nil {
		return "", nil, err
	}
	b = b[adv:]
	if uint64(len(b)) < n {
		return "", nil, apierror.New(apierror.KindParseError, "truncated string")
	}
	return string(b[:n]), b[n:], nil
}

// EncodeIdentifiers encodes an ordered sequence of strings (used for
// both identifiers and tags).
func EncodeIdentifiers(ids []string) []byte {
	buf := appendVarint(nil, uint64(len(ids)))
	for _, s := range ids {
		buf = putString(buf, s)
	}
	return buf
}

func DecodeIdentifiers(raw []byte) ([]string, error) {
	n, adv, err := readVarint(raw)
	if err != nil {
		return nil, err
	}
	raw = raw[adv:]
	out := make([]string, 0, n)
	for i := uint64(0); i < n; i++ {
		var s string
		s, raw, err = readString(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func EncodeLabels(labels []model.Label) []byte {
	buf := appendVarint(nil, uint64(len(labels)))
	for _, l := range labels {
		buf = putString(buf, l.Key)
		buf = putString(buf, l.Value)
		if l.Locked {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}
	return buf
}

func DecodeLabels(raw []byte) ([]model.Label, error) {
	n, adv, err := readVarint(raw)
	if err != nil {
		return nil, err
	}
	raw = raw[adv:]
	out := make([]model.Label, 0, n)
	for i := uint64(0); i < n; i++ {
		var l model.Label
		l.Key, raw, err = readString(raw)
		if err != nil {
			return nil, err
		}
		l.Value, raw, err = readString(raw)
		if err != nil {
			return nil, err
		}
		if len(raw) < 1 {
			return nil, apierror.New(apierror.KindParseError, "truncated label")
		}
		l.Locked = raw[0] != 0
		raw = raw[1:]
		out = append(out, l)
	}
	return out, nil
}

func EncodeHashes(hashes []model.Hash) []byte {
	buf := appendVarint(nil, uint64(len(hashes)))
	for _, h := range hashes {
		buf = putString(buf, h.Algorithm)
		buf = putString(buf, h.Value)
	}
	return buf
}

func DecodeHashes(raw []byte) ([]model.Hash, error) {
	n, adv, err := readVarint(raw)
	if err != nil {
		return nil, err
	}
	raw = raw[adv:]
	out := make([]model.Hash, 0, n)
	for i := uint64(0); i < n; i++ {
		var h model.Hash
		h.Algorithm, raw, err = readString(raw)
		if err != nil {
			return nil, err
		}
		h.Value, raw, err = readString(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func EncodeLocations(locs []model.Location) []byte {
	buf := appendVarint(nil, uint64(len(locs)))
	for _, l := range locs {
		buf = append(buf, l.EndpointID[:]...)
		buf = putString(buf, l.SyncingStatus)
	}
	return buf
}

func DecodeLocations(raw []byte) ([]model.Location, error) {
	n, adv, err := readVarint(raw)
	if err != nil {
		return nil, err
	}
	raw = raw[adv:]
	out := make([]model.Location, 0, n)
	for i := uint64(0); i < n; i++ {
		if len(raw) < 16 {
			return nil, apierror.New(apierror.KindParseError, "truncated location endpoint id")
		}
		var l model.Location
		copy(l.EndpointID[:], raw[:16])
		raw = raw[16:]
		l.SyncingStatus, raw, err = readString(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func EncodeAuthors(authors []model.Author) []byte {
	buf := appendVarint(nil, uint64(len(authors)))
	for _, a := range authors {
		buf = putString(buf, a.Name)
		buf = putString(buf, a.Email)
		if a.ID != nil {
			buf = append(buf, 1)
			buf = append(buf, a.ID[:]...)
		} else {
			buf = append(buf, 0)
		}
	}
	return buf
}

func DecodeAuthors(raw []byte) ([]model.Author, error) {
	n, adv, err := readVarint(raw)
	if err != nil {
		return nil, err
	}
	raw = raw[adv:]
	out := make([]model.Author, 0, n)
	for i := uint64(0); i < n; i++ {
		var a model.Author
		a.Name, raw, err = readString(raw)
		if err != nil {
			return nil, err
		}
		a.Email, raw, err = readString(raw)
		if err != nil {
			return nil, err
		}
		if len(raw) < 1 {
			return nil, apierror.New(apierror.KindParseError, "truncated author")
		}
		hasID := raw[0] != 0
		raw = raw[1:]
		if hasID {
			if len(raw) < 16 {
				return nil, apierror.New(apierror.KindParseError, "truncated author id")
			}
			var id model.ID
			copy(id[:], raw[:16])
			a.ID = &id
			raw = raw[16:]
		}
		out = append(out, a)
	}
	return out, nil
}
