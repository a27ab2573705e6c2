package pik

import (
	"encoding/binary"
	"math"
)

const kHuffmanAlphabetSize = 256

// One extra slot for the fake least-frequent symbol that reserves the
// all 1s code, so that a corrupt bitstream cannot decode to a valid
// symbol from a complete code.
const kHistogramSize = kHuffmanAlphabetSize + 1

// Maps zig-zag position to natural (row-major) coefficient index.
var kNaturalOrder = [kBlockSize]int{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}

type Histogram struct {
	counts [kHistogramSize]uint32
}

func (h *Histogram) Clear() {
	for i := range h.counts {
		h.counts[i] = 0
	}
	h.counts[kHistogramSize-1] = 1
}

// Every symbol is counted twice so that the fake symbol with count 1
// stays strictly least frequent.
func (h *Histogram) Add(symbol int) {
	h.counts[symbol] += 2
}

func (h *Histogram) AddW(symbol int, weight int) {
	h.counts[symbol] += uint32(2 * weight)
}

func (h *Histogram) NumSymbols() int {
	n := 0
	for i := 0; i+1 < kHistogramSize; i++ {
		if h.counts[i] > 0 {
			n++
		}
	}
	return n
}

// Receives the symbol stream of an image once per pass: either to
// accumulate histograms or to write the entropy coded bits.
type coeffSink interface {
	Emit(ctx, symbol, nbits int, bits uint32)
}

// HistogramBuilder accumulates per-context symbol populations and
// estimates the entropy coded size. The weight is +-1 so a caller can
// subtract a block's old contribution and add the new one without
// rebuilding the whole histogram.
type HistogramBuilder struct {
	histograms_ []Histogram
	weight_     int
	extra_bits_ func(symbol int) int
}

func NewHistogramBuilder(num_contexts int, extra_bits func(int) int) *HistogramBuilder {
	b := &HistogramBuilder{
		histograms_: make([]Histogram, num_contexts),
		weight_:     1,
		extra_bits_: extra_bits,
	}
	for i := range b.histograms_ {
		b.histograms_[i].Clear()
	}
	return b
}

func (b *HistogramBuilder) set_weight(w int) { b.weight_ = w }

func (b *HistogramBuilder) Emit(ctx, symbol, nbits int, bits uint32) {
	b.histograms_[ctx].AddW(symbol, b.weight_)
}

// EncodedSize estimates the byte size of the streams this builder
// describes: per-context histogram headers plus the self-information
// of the coded symbols and their mantissa bits. ctx_bits covers the
// context-count signaling, precision the fixed-point granularity of
// the entropy term.
func (b *HistogramBuilder) EncodedSize(ctx_bits, precision int) int {
	header_bits := ctx_bits
	data_bits := 0.0
	for i := range b.histograms_ {
		h := &b.histograms_[i]
		header_bits += 17 * 8
		total := uint32(0)
		for s := 0; s+1 < kHistogramSize; s++ {
			total += h.counts[s] / 2
		}
		for s := 0; s+1 < kHistogramSize; s++ {
			n := h.counts[s] / 2
			if n == 0 {
				continue
			}
			header_bits += 8
			data_bits += float64(n) * (math.Log2(float64(total)/float64(n)) +
				float64(b.extra_bits_(s)))
		}
	}
	scale := float64(int(1) << uint(precision))
	data_bits = math.Ceil(data_bits*scale) / scale
	return (header_bits + int(math.Ceil(data_bits)) + 7) / 8
}

func dcExtraBits(symbol int) int { return symbol }
func acExtraBits(symbol int) int { return symbol & 0xf }

// Symbol coding of a single value: JPEG-style size category plus
// sign-folded mantissa.
func coeffSymbolBits(v coeff_t) (nbits int, bits uint32) {
	if v == 0 {
		return 0, 0
	}
	nbits = Log2FloorNonZero(uint32(std_abs(int(v)))) + 1
	b := int(v)
	if b < 0 {
		b += (1 << uint(nbits)) - 1
	}
	return nbits, uint32(b)
}

func coeffFromSymbolBits(nbits int, bits uint32) coeff_t {
	if nbits == 0 {
		return 0
	}
	v := int(bits)
	if v < 1<<uint(nbits-1) {
		v += 1 - (1 << uint(nbits))
	}
	return coeff_t(v)
}

// The number of coding contexts of each stream: one per plane for the
// full model, a single shared one for the fast model.
const (
	kNumContexts     = 3
	kNumContextsFast = 1
)

func planeContext(c, num_contexts int) int {
	return std_min(c, num_contexts-1)
}

func processDCBlock(residual coeff_t, ctx int, sink coeffSink) {
	nbits, bits := coeffSymbolBits(residual)
	sink.Emit(ctx, nbits, nbits, bits)
}

// Emits the run-length coded AC symbols of one 64 coefficient block
// in zig-zag order: (run << 4 | size) with 0xf0 for a run of 16 zeros
// and 0x00 closing the block.
func processACBlock(block []coeff_t, ctx int, sink coeffSink) {
	r := 0
	for k := 1; k < kBlockSize; k++ {
		coeff := block[kNaturalOrder[k]]
		if coeff == 0 {
			r++
			continue
		}
		for r > 15 {
			sink.Emit(ctx, 0xf0, 0, 0)
			r -= 16
		}
		nbits, bits := coeffSymbolBits(coeff)
		symbol := (r << 4) + nbits
		sink.Emit(ctx, symbol, nbits, bits)
		r = 0
	}
	if r > 0 {
		sink.Emit(ctx, 0, 0, 0)
	}
}

func processDCImage(residuals *Image3W, num_contexts int, sink coeffSink) {
	for by := 0; by < residuals.ysize(); by++ {
		for bx := 0; bx < residuals.xsize(); bx++ {
			for c := 0; c < 3; c++ {
				processDCBlock(residuals.Row(c, by)[bx], planeContext(c, num_contexts), sink)
			}
		}
	}
}

func processACImage(coeffs *Image3W, num_contexts int, sink coeffSink) {
	block_xsize := coeffs.xsize() / kBlockSize
	for by := 0; by < coeffs.ysize(); by++ {
		for bx := 0; bx < block_xsize; bx++ {
			for c := 0; c < 3; c++ {
				block := coeffs.Row(c, by)[bx*kBlockSize : (bx+1)*kBlockSize]
				processACBlock(block, planeContext(c, num_contexts), sink)
			}
		}
	}
}

// DC prediction from the three causal neighbors; the median of
// (left, top, left + top - topleft) is the gradient predictor shared
// by the encoder and the decoder.
func predictFromNeighbors(left, top, topleft coeff_t, has_left, has_top bool) coeff_t {
	switch {
	case has_left && has_top:
		grad := left + top - topleft
		lo, hi := left, top
		if hi < lo {
			lo, hi = hi, lo
		}
		if grad < lo {
			return lo
		}
		if grad > hi {
			return hi
		}
		return grad
	case has_left:
		return left
	case has_top:
		return top
	}
	return 0
}

// PredictDC returns the per-block DC residual image: stored DC minus
// the causal-neighborhood prediction.
func PredictDC(coeffs *Image3W) Image3W {
	block_xsize := coeffs.xsize() / kBlockSize
	block_ysize := coeffs.ysize()
	out := NewImage3W(block_xsize, block_ysize)
	for c := 0; c < 3; c++ {
		for by := 0; by < block_ysize; by++ {
			row := coeffs.Row(c, by)
			row_out := out.Row(c, by)
			for bx := 0; bx < block_xsize; bx++ {
				dc := row[bx*kBlockSize]
				var left, top, topleft coeff_t
				if bx > 0 {
					left = row[(bx-1)*kBlockSize]
				}
				if by > 0 {
					top = coeffs.Row(c, by-1)[bx*kBlockSize]
					if bx > 0 {
						topleft = coeffs.Row(c, by-1)[(bx-1)*kBlockSize]
					}
				}
				pred := predictFromNeighbors(left, top, topleft, bx > 0, by > 0)
				row_out[bx] = dc - pred
			}
		}
	}
	return out
}

// UnpredictDC reconstructs the stored DC coefficients from the
// residual image, mirroring PredictDC block by block.
func UnpredictDC(residuals *Image3W, coeffs *Image3W) {
	block_xsize := residuals.xsize()
	block_ysize := residuals.ysize()
	for c := 0; c < 3; c++ {
		for by := 0; by < block_ysize; by++ {
			row_res := residuals.Row(c, by)
			row := coeffs.Row(c, by)
			for bx := 0; bx < block_xsize; bx++ {
				var left, top, topleft coeff_t
				if bx > 0 {
					left = row[(bx-1)*kBlockSize]
				}
				if by > 0 {
					top = coeffs.Row(c, by-1)[bx*kBlockSize]
					if bx > 0 {
						topleft = coeffs.Row(c, by-1)[(bx-1)*kBlockSize]
					}
				}
				pred := predictFromNeighbors(left, top, topleft, bx > 0, by > 0)
				row[bx*kBlockSize] = row_res[bx] + pred
			}
		}
	}
}

type huffmanSink struct {
	bw    *BitWriter
	codes []HuffmanCodeTable
}

func (s *huffmanSink) Emit(ctx, symbol, nbits int, bits uint32) {
	table := &s.codes[ctx]
	assert(table.depth[symbol] > 0)
	s.bw.WriteBits(int(table.depth[symbol]), uint64(table.code[symbol]))
	if nbits > 0 {
		s.bw.WriteBits(nbits, uint64(bits))
	}
}

// The histogram descriptor is a canonical code description: 16 bytes
// of per-length code counts followed by the symbols in canonical
// order. The fake all-ones symbol is dropped from the description; it
// always sits alone at the end of the deepest length.
func encodeHistogram(h *Histogram, out []byte) ([]byte, HuffmanCodeTable) {
	depth := make([]uint8, kHistogramSize)
	CreateHuffmanTree(h.counts[:], kHistogramSize, kHuffmanMaxBitLength, depth)
	depth[kHistogramSize-1] = 0
	counts := make([]int, kHuffmanMaxBitLength+1)
	num_values := 0
	for i := 0; i < kHuffmanAlphabetSize; i++ {
		if depth[i] > 0 {
			num_values++
		}
	}
	values := make([]int, num_values)
	BuildHuffmanCode(depth[:kHuffmanAlphabetSize], counts, values)
	for l := 1; l <= kHuffmanMaxBitLength; l++ {
		assert(counts[l] <= 255)
		out = append(out, byte(counts[l]))
	}
	for _, v := range values {
		out = append(out, byte(v))
	}
	var table HuffmanCodeTable
	BuildHuffmanCodeTable(counts, values, &table)
	return out, table
}

func decodeHistogram(data []byte, pos int) (HuffmanDecodeTable, int, error) {
	var table HuffmanDecodeTable
	if pos+kHuffmanMaxBitLength > len(data) {
		return table, pos, ErrTruncatedPayload
	}
	counts := make([]int, kHuffmanMaxBitLength+1)
	num_values := 0
	for l := 1; l <= kHuffmanMaxBitLength; l++ {
		counts[l] = int(data[pos])
		num_values += counts[l]
		pos++
	}
	if num_values > kHuffmanAlphabetSize || pos+num_values > len(data) {
		return table, pos, ErrDecodeFailure
	}
	values := make([]int, num_values)
	for i := 0; i < num_values; i++ {
		values[i] = int(data[pos])
		pos++
	}
	BuildHuffmanDecodeTable(counts, values, &table)
	return table, pos, nil
}

func encodeStream(num_contexts int, builder *HistogramBuilder,
	walk func(sink coeffSink), out []byte) []byte {
	out = append(out, byte(num_contexts))
	codes := make([]HuffmanCodeTable, num_contexts)
	for i := 0; i < num_contexts; i++ {
		out, codes[i] = encodeHistogram(&builder.histograms_[i], out)
	}
	bw := NewBitWriter()
	walk(&huffmanSink{bw: bw, codes: codes})
	bw.JumpToByteBoundary()
	bits := bw.Bytes()
	var lenbuf [4]byte
	binary.LittleEndian.PutUint32(lenbuf[:], uint32(len(bits)))
	out = append(out, lenbuf[:]...)
	out = append(out, bits...)
	return out
}

// EncodeDCImage entropy codes the DC residual image.
func EncodeDCImage(residuals *Image3W, num_contexts int, out []byte) []byte {
	builder := NewHistogramBuilder(num_contexts, dcExtraBits)
	processDCImage(residuals, num_contexts, builder)
	return encodeStream(num_contexts, builder,
		func(sink coeffSink) { processDCImage(residuals, num_contexts, sink) }, out)
}

// EncodeACImage entropy codes the AC coefficients of every block.
func EncodeACImage(coeffs *Image3W, num_contexts int, out []byte) []byte {
	builder := NewHistogramBuilder(num_contexts, acExtraBits)
	processACImage(coeffs, num_contexts, builder)
	return encodeStream(num_contexts, builder,
		func(sink coeffSink) { processACImage(coeffs, num_contexts, sink) }, out)
}

func decodeStreamHeader(data []byte, pos int) ([]HuffmanDecodeTable, *BitReader, int, error) {
	if pos >= len(data) {
		return nil, nil, pos, ErrTruncatedPayload
	}
	num_contexts := int(data[pos])
	pos++
	if num_contexts < 1 || num_contexts > kNumContexts {
		return nil, nil, pos, ErrDecodeFailure
	}
	tables := make([]HuffmanDecodeTable, num_contexts)
	var err error
	for i := 0; i < num_contexts; i++ {
		tables[i], pos, err = decodeHistogram(data, pos)
		if err != nil {
			return nil, nil, pos, err
		}
	}
	if pos+4 > len(data) {
		return nil, nil, pos, ErrTruncatedPayload
	}
	stream_len := int(binary.LittleEndian.Uint32(data[pos:]))
	pos += 4
	if pos+stream_len > len(data) {
		return nil, nil, pos, ErrTruncatedPayload
	}
	br := NewBitReader(data[pos : pos+stream_len])
	return tables, br, pos + stream_len, nil
}

// DecodeDCImage decodes the DC residual stream and reconstructs the
// DC coefficient of every block in coeffs.
func DecodeDCImage(data []byte, pos int, coeffs *Image3W) (int, error) {
	tables, br, end, err := decodeStreamHeader(data, pos)
	if err != nil {
		return pos, err
	}
	num_contexts := len(tables)
	block_xsize := coeffs.xsize() / kBlockSize
	block_ysize := coeffs.ysize()
	residuals := NewImage3W(block_xsize, block_ysize)
	for by := 0; by < block_ysize; by++ {
		for bx := 0; bx < block_xsize; bx++ {
			for c := 0; c < 3; c++ {
				table := &tables[planeContext(c, num_contexts)]
				symbol := table.ReadSymbol(br)
				if symbol < 0 || symbol > 16 {
					return pos, ErrDecodeFailure
				}
				bits := br.ReadBits(symbol)
				residuals.Row(c, by)[bx] = coeffFromSymbolBits(symbol, bits)
			}
		}
	}
	if br.Overrun() {
		return pos, ErrTruncatedPayload
	}
	UnpredictDC(&residuals, coeffs)
	return end, nil
}

// DecodeACImage decodes the AC stream into coefficients 1..63 of
// every block in coeffs.
func DecodeACImage(data []byte, pos int, coeffs *Image3W) (int, error) {
	tables, br, end, err := decodeStreamHeader(data, pos)
	if err != nil {
		return pos, err
	}
	num_contexts := len(tables)
	block_xsize := coeffs.xsize() / kBlockSize
	for by := 0; by < coeffs.ysize(); by++ {
		for bx := 0; bx < block_xsize; bx++ {
			for c := 0; c < 3; c++ {
				table := &tables[planeContext(c, num_contexts)]
				block := coeffs.Row(c, by)[bx*kBlockSize : (bx+1)*kBlockSize]
				k := 1
				for k < kBlockSize {
					symbol := table.ReadSymbol(br)
					if symbol < 0 {
						return pos, ErrDecodeFailure
					}
					if symbol == 0 {
						break
					}
					if symbol == 0xf0 {
						k += 16
						continue
					}
					run := symbol >> 4
					nbits := symbol & 0xf
					if nbits == 0 || k+run >= kBlockSize {
						return pos, ErrDecodeFailure
					}
					k += run
					bits := br.ReadBits(nbits)
					block[kNaturalOrder[k]] = coeffFromSymbolBits(nbits, bits)
					k++
				}
			}
		}
	}
	if br.Overrun() {
		return pos, ErrTruncatedPayload
	}
	return end, nil
}
