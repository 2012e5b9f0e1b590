package graph

import (
	"encoding/binary"

	"github.com/ArunaStorage/aos-server/internal/apierror"
	"github.com/ArunaStorage/aos-server/internal/codec"
	"github.com/ArunaStorage/aos-server/internal/kv"
	"github.com/ArunaStorage/aos-server/internal/model"
)

// Load rebuilds the graph from the documents and relations tables.
// It scans documents in ascending idx order to recover variant tags
// and allocate vertices, then scans relations to recover edges. The
// rebuild is deterministic and produces a graph byte-identical to the
// pre-shutdown state as long as documents were written with
// contiguous idx starting at 0 (invariant 1).
func Load(rtxn *kv.ROTxn) (*Graph, error) {
	g := New()
	wg := g.Lock()
	defer wg.Unlock()

	var loadErr error
	err := rtxn.ForEach(kv.TableDocuments, func(k, v []byte) (bool, error) {
		idx := binary.BigEndian.Uint32(k)
		variant, _, err := codec.Decode(v, nil)
		if err != nil {
			loadErr = apierror.Wrap(apierror.KindParseError, err, "decoding document during graph rebuild")
			return false, nil
		}
		got := wg.AddNode(variant)
		if got != model.Idx(idx) {
			panic("graph rebuild: vertex index diverged from document idx")
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if loadErr != nil {
		return nil, loadErr
	}

	err = rtxn.ForEach(kv.TableRelations, func(k, v []byte) (bool, error) {
		rel, err := decodeRawRelation(v)
		if err != nil {
			loadErr = err
			return false, nil
		}
		wg.AddEdge(rel.Source, rel.Target, rel.EdgeType)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if loadErr != nil {
		return nil, loadErr
	}

	return g, nil
}

func decodeRawRelation(v []byte) (model.RawRelation, error) {
	if len(v) != 12 {
		return model.RawRelation{}, apierror.New(apierror.KindParseError, "malformed relation record")
	}
	return model.RawRelation{
		Source:   model.Idx(binary.LittleEndian.Uint32(v[0:4])),
		Target:   model.Idx(binary.LittleEndian.Uint32(v[4:8])),
		EdgeType: model.EdgeType(binary.LittleEndian.Uint32(v[8:12])),
	}, nil
}

// EncodeRawRelation is the wire encoding written to the relations
// table's value; shared by engine.Commit and Load so both sides agree.
func EncodeRawRelation(rel model.RawRelation) []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(rel.Source))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(rel.Target))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(rel.EdgeType))
	return buf
}
