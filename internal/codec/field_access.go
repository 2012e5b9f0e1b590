package codec

import (
	"encoding/binary"

	"github.com/ArunaStorage/aos-server/internal/apierror"
	"github.com/ArunaStorage/aos-server/internal/model"
)

// GetField returns the raw bytes of field id, or false if absent.
func (d Document) GetField(id model.FieldID) ([]byte, bool) {
	v, ok := d[id]
	return v, ok
}

// GetRequiredField returns the raw bytes of field id, failing with
// ParseError if absent.
func (d Document) GetRequiredField(id model.FieldID) ([]byte, error) {
	v, ok := d[id]
	if !ok {
		return nil, apierror.New(apierror.KindParseError, "required field absent")
	}
	return v, nil
}

func (d Document) SetString(id model.FieldID, s string) { d[id] = []byte(s) }

func (d Document) GetString(id model.FieldID) (string, bool) {
	v, ok := d[id]
	if !ok {
		return "", false
	}
	return string(v), true
}

func (d Document) RequiredString(id model.FieldID) (string, error) {
	v, err := d.GetRequiredField(id)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (d Document) SetU64(id model.FieldID, v uint64) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	d[id] = buf
}

func (d Document) GetU64(id model.FieldID) (uint64, bool) {
	v, ok := d[id]
	if !ok || len(v) != 8 {
		return 0, false
	}
	return binary.LittleEndian.Uint64(v), true
}

func (d Document) SetI64(id model.FieldID, v int64) { d.SetU64(id, uint64(v)) }

func (d Document) GetI64(id model.FieldID) (int64, bool) {
	v, ok := d.GetU64(id)
	return int64(v), ok
}

func (d Document) SetBool(id model.FieldID, v bool) {
	if v {
		d[id] = []byte{1}
	} else {
		d[id] = []byte{0}
	}
}

func (d Document) GetBool(id model.FieldID) (bool, bool) {
	v, ok := d[id]
	if !ok || len(v) < 1 {
		return false, false
	}
	return v[0]&0x1 != 0, true
}

// GetBoolFlag reads the bit-th flag bit out of a byte field, used to
// pack UserNode.Active alongside global_admin without consuming a new
// field id (see SPEC_FULL.md Open Question (b)).
func (d Document) GetBoolFlag(id model.FieldID, bit uint) (bool, bool) {
	v, ok := d[id]
	if !ok || len(v) < 1 {
		return false, false
	}
	return v[0]&(1<<bit) != 0, true
}

func (d Document) SetBoolFlag(id model.FieldID, bit uint, v bool) {
	cur := byte(0)
	if existing, ok := d[id]; ok && len(existing) > 0 {
		cur = existing[0]
	}
	if v {
		cur |= 1 << bit
	} else {
		cur &^= 1 << bit
	}
	d[id] = []byte{cur}
}
