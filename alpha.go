package pik

import (
	"encoding/binary"
	"github.com/klauspost/compress/zstd"
)

// The alpha side-channel rides behind the color payload as a
// length-prefixed zstd frame of the raw 8-bit plane.

func AlphaToPik(alpha *ImageB, compressed []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return compressed, err
	}
	defer enc.Close()
	packed := enc.EncodeAll(alpha.data_, nil)
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(len(packed)))
	compressed = append(compressed, buf[:]...)
	return append(compressed, packed...), nil
}

func PikToAlpha(data []byte, pos int, alpha *ImageB) (int, error) {
	if pos+4 > len(data) {
		return pos, ErrTruncatedPayload
	}
	packed_size := int(binary.LittleEndian.Uint32(data[pos:]))
	pos += 4
	if pos+packed_size > len(data) {
		return pos, ErrTruncatedPayload
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return pos, err
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(data[pos:pos+packed_size], nil)
	if err != nil || len(raw) != len(alpha.data_) {
		return pos, ErrDecodeFailure
	}
	copy(alpha.data_, raw)
	return pos + packed_size, nil
}
