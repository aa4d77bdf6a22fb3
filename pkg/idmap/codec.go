package idmap

import (
	"encoding/binary"

	derrors "github.com/matzehuels/segdag/pkg/errors"
	"github.com/matzehuels/segdag/pkg/vertex"
)

// EncodeEntry serializes an entry as uvarint(id) followed by the name.
func EncodeEntry(e Entry) []byte {
	buf := make([]byte, 0, binary.MaxVarintLen64+len(e.Name))
	buf = binary.AppendUvarint(buf, uint64(e.ID))
	return append(buf, e.Name...)
}

// DecodeEntry parses a record written by EncodeEntry.
func DecodeEntry(data []byte) (Entry, error) {
	id, n := binary.Uvarint(data)
	if n <= 0 {
		return Entry{}, derrors.New(derrors.ErrCodeCorruption, "id map record: bad id")
	}
	if len(data) == n {
		return Entry{}, derrors.New(derrors.ErrCodeCorruption, "id map record: empty name")
	}
	vid := vertex.ID(id)
	if !vid.Valid() {
		return Entry{}, derrors.New(derrors.ErrCodeCorruption, "id map record: id %d outside known groups", id)
	}
	return Entry{ID: vid, Name: vertex.NameFromBytes(data[n:])}, nil
}
