package pik

import "encoding/binary"

// Container header: three little-endian u32 words ahead of the
// payload produced by CompressedImage.Encode or EncodeFast.
type Header struct {
	xsize uint32
	ysize uint32
	flags uint32
}

const (
	kFlagAlpha = 1
	// Reserved; a payload carrying it is not ours.
	kFlagWebPLossless = 2
)

const kHeaderSize = 12

const kMaxImageWidth = (1 << 25) - 1

func StoreHeader(h *Header, out []byte) []byte {
	var buf [kHeaderSize]byte
	binary.LittleEndian.PutUint32(buf[0:], h.xsize)
	binary.LittleEndian.PutUint32(buf[4:], h.ysize)
	binary.LittleEndian.PutUint32(buf[8:], h.flags)
	return append(out, buf[:]...)
}

func LoadHeader(data []byte, h *Header) (int, error) {
	if len(data) < kHeaderSize {
		return 0, ErrTruncatedHeader
	}
	h.xsize = binary.LittleEndian.Uint32(data[0:])
	h.ysize = binary.LittleEndian.Uint32(data[4:])
	h.flags = binary.LittleEndian.Uint32(data[8:])
	return kHeaderSize, nil
}
