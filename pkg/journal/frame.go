package journal

import (
	"bytes"
	"encoding/binary"

	"lukechampine.com/blake3"

	derrors "github.com/matzehuels/segdag/pkg/errors"
)

const (
	checksumSize = 8
	// MaxFrameSize bounds a single record payload.
	MaxFrameSize = 64 << 20
)

func checksum(payload []byte) []byte {
	sum := blake3.Sum256(payload)
	return sum[:checksumSize]
}

// AppendFrame appends the framed payload to dst.
func AppendFrame(dst, payload []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(payload)))
	dst = append(dst, payload...)
	return append(dst, checksum(payload)...)
}

// EncodeFrames frames every payload into one buffer.
func EncodeFrames(payloads [][]byte) []byte {
	var buf []byte
	for _, p := range payloads {
		buf = AppendFrame(buf, p)
	}
	return buf
}

// ReadFrames splits data into payloads. The returned tail is the number of
// trailing bytes that do not form a complete frame. A checksum mismatch is
// a CORRUPTION error.
func ReadFrames(data []byte) (payloads [][]byte, tail int, err error) {
	off := 0
	for off < len(data) {
		n, sz := binary.Uvarint(data[off:])
		if sz == 0 {
			return payloads, len(data) - off, nil
		}
		if sz < 0 || n > MaxFrameSize {
			return nil, 0, derrors.New(derrors.ErrCodeCorruption, "bad frame length at offset %d", off)
		}
		end := off + sz + int(n) + checksumSize
		if end > len(data) {
			return payloads, len(data) - off, nil
		}
		payload := data[off+sz : off+sz+int(n)]
		if !bytes.Equal(checksum(payload), data[end-checksumSize:end]) {
			return nil, 0, derrors.New(derrors.ErrCodeCorruption, "checksum mismatch at offset %d", off)
		}
		payloads = append(payloads, payload)
		off = end
	}
	return payloads, 0, nil
}

// ReadCommittedFrames is ReadFrames for a region that must hold only
// complete frames.
func ReadCommittedFrames(data []byte) ([][]byte, error) {
	payloads, tail, err := ReadFrames(data)
	if err != nil {
		return nil, err
	}
	if tail != 0 {
		return nil, derrors.New(derrors.ErrCodeCorruption, "committed log ends with %d bytes of a partial frame", tail)
	}
	return payloads, nil
}
