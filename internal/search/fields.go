package search

import (
	"github.com/ArunaStorage/aos-server/internal/codec"
	"github.com/ArunaStorage/aos-server/internal/model"
)

// decodeFieldRaw extracts a single field's raw bytes from an encoded
// record without materializing the full typed Node, used by
// ExactMatch scans where most fields are irrelevant.
func decodeFieldRaw(raw []byte, field model.FieldID) ([]byte, error) {
	_, doc, err := codec.Decode(raw, nil)
	if err != nil {
		return nil, err
	}
	v, _ := doc.GetField(field)
	return v, nil
}
