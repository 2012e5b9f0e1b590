package kv

import "encoding/binary"

// EncodeIdxKey encodes a u32 idx as a big-endian key so that MDBX's
// lexicographic key ordering matches numeric idx ordering. Every
// table keyed by idx (documents, relations, events,
// read_group_perms) uses this encoding.
func EncodeIdxKey(idx uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, idx)
	return buf
}

func DecodeIdxKey(k []byte) uint32 {
	return binary.BigEndian.Uint32(k)
}
