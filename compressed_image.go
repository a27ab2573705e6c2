package pik

import "encoding/binary"

const (
	kBlockEdge        = 8
	kBlockSize        = kBlockEdge * kBlockEdge
	kTileToBlockRatio = 8
	kTileEdge         = kBlockEdge * kTileToBlockRatio
)

const kStartYToB = 120

type AdaptiveQuantParams struct {
	initial_quant_val_dc float32
	initial_quant_val_ac float32
}

// CompressedImage represents both the quantized and the transformed
// original version of an image. It is used by the encoder and the
// decoder; the opsin original and the real-valued coefficients exist
// only on the encoder side.
type CompressedImage struct {
	xsize_, ysize_             int
	block_xsize_, block_ysize_ int
	tile_xsize_, tile_ysize_   int
	quantizer_                 Quantizer
	dct_coeffs_                Image3W
	// Real-valued DCT coefficients of the opsin original, encoder only.
	opsin_coeffs_ Image3F
	// Pixel space overlay, recomputed from the quantized coefficients
	// after every Quantize in both the encoder and the decoder.
	opsin_overlay_ *Image3F
	ytob_dc_       int
	ytob_ac_       ImageI
	// Not owned; write-only statistics sink.
	pik_info_ *PikInfo
}

func divCeil(a, b int) int { return (a + b - 1) / b }

// NewCompressedImage returns an image in an undefined state; Decode
// or Quantize make it consistent.
func NewCompressedImage(xsize, ysize int, info *PikInfo) CompressedImage {
	block_xsize := divCeil(xsize, kBlockEdge)
	block_ysize := divCeil(ysize, kBlockEdge)
	tile_xsize := divCeil(block_xsize, kTileToBlockRatio)
	tile_ysize := divCeil(block_ysize, kTileToBlockRatio)
	return CompressedImage{
		xsize_:       xsize,
		ysize_:       ysize,
		block_xsize_: block_xsize,
		block_ysize_: block_ysize,
		tile_xsize_:  tile_xsize,
		tile_ysize_:  tile_ysize,
		quantizer_:   NewQuantizer(block_xsize, block_ysize),
		dct_coeffs_:  NewImage3W(block_xsize*kBlockSize, block_ysize),
		ytob_dc_:     kStartYToB,
		ytob_ac_:     NewImageIValue(tile_xsize, tile_ysize, kStartYToB),
		pik_info_:    info,
	}
}

// CompressedImageFromOpsinImage computes the block DCT of an opsin
// dynamics image. The result is in an undefined state until
// Quantize() is called.
func CompressedImageFromOpsinImage(opsin *Image3F, info *PikInfo) CompressedImage {
	img := NewCompressedImage(opsin.xsize(), opsin.ysize(), info)
	img.opsin_coeffs_ = NewImage3F(img.block_xsize_*kBlockSize, img.block_ysize_)
	for block_y := 0; block_y < img.block_ysize_; block_y++ {
		for block_x := 0; block_x < img.block_xsize_; block_x++ {
			for c := 0; c < 3; c++ {
				var block [kBlockSize]float32
				for iy := 0; iy < kBlockEdge; iy++ {
					// Pad by replicating the last image row and column.
					y := std_min(block_y*kBlockEdge+iy, opsin.ysize()-1)
					row := opsin.Row(c, y)
					for ix := 0; ix < kBlockEdge; ix++ {
						x := std_min(block_x*kBlockEdge+ix, opsin.xsize()-1)
						block[iy*kBlockEdge+ix] = row[x]
					}
				}
				ComputeBlockDCT(block[:])
				copy(img.opsin_coeffs_.Row(c, block_y)[block_x*kBlockSize:(block_x+1)*kBlockSize], block[:])
			}
		}
	}
	return img
}

func (img *CompressedImage) xsize() int       { return img.xsize_ }
func (img *CompressedImage) ysize() int       { return img.ysize_ }
func (img *CompressedImage) block_xsize() int { return img.block_xsize_ }
func (img *CompressedImage) block_ysize() int { return img.block_ysize_ }
func (img *CompressedImage) tile_xsize() int  { return img.tile_xsize_ }
func (img *CompressedImage) tile_ysize() int  { return img.tile_ysize_ }

func (img *CompressedImage) quantizer() *Quantizer { return &img.quantizer_ }
func (img *CompressedImage) coeffs() *Image3W      { return &img.dct_coeffs_ }

func (img *CompressedImage) adaptive_quant_params() AdaptiveQuantParams {
	return AdaptiveQuantParams{
		initial_quant_val_dc: 1.0625,
		initial_quant_val_ac: 0.5625,
	}
}

// Y-to-blue correlation accessors. The semantic multiplier is
// ytob / 128, stored values are in [0, 255].
func (img *CompressedImage) YToBDC() float32 { return float32(img.ytob_dc_) / 128.0 }
func (img *CompressedImage) YToBAC(tile_x, tile_y int) float32 {
	return float32(img.ytob_ac_.Row(tile_y)[tile_x]) / 128.0
}
func (img *CompressedImage) SetYToBDC(ytob int) { img.ytob_dc_ = ytob }
func (img *CompressedImage) SetYToBAC(tile_x, tile_y, ytob int) {
	img.ytob_ac_.Row(tile_y)[tile_x] = ytob
}

// QuantizeBlock quantizes all 64 coefficients of one block in all
// three planes. The blue plane is quantized as a residual against the
// dequantized luma scaled by the tile's Y-to-blue multiplier, which
// is exactly what the decoder adds back.
func (img *CompressedImage) QuantizeBlock(block_x, block_y int) {
	q := &img.quantizer_
	offset := block_x * kBlockSize
	ytob_dc := img.YToBDC()
	ytob_ac := img.YToBAC(block_x/kTileToBlockRatio, block_y/kTileToBlockRatio)

	real_y := img.opsin_coeffs_.Row(1, block_y)[offset : offset+kBlockSize]
	row_y := img.dct_coeffs_.Row(1, block_y)[offset : offset+kBlockSize]
	var ydeq [kBlockSize]float32
	row_y[0] = q.QuantizeBlockDC(real_y[0])
	ydeq[0] = q.DequantizeBlockDC(row_y[0])
	for k := 1; k < kBlockSize; k++ {
		row_y[k] = q.QuantizeBlockAC(block_x, block_y, k, real_y[k])
		ydeq[k] = q.DequantizeBlockAC(block_x, block_y, k, row_y[k])
	}

	real_x := img.opsin_coeffs_.Row(0, block_y)[offset : offset+kBlockSize]
	row_x := img.dct_coeffs_.Row(0, block_y)[offset : offset+kBlockSize]
	row_x[0] = q.QuantizeBlockDC(real_x[0])
	for k := 1; k < kBlockSize; k++ {
		row_x[k] = q.QuantizeBlockAC(block_x, block_y, k, real_x[k])
	}

	real_b := img.opsin_coeffs_.Row(2, block_y)[offset : offset+kBlockSize]
	row_b := img.dct_coeffs_.Row(2, block_y)[offset : offset+kBlockSize]
	row_b[0] = q.QuantizeBlockDC(real_b[0] - ytob_dc*ydeq[0])
	for k := 1; k < kBlockSize; k++ {
		row_b[k] = q.QuantizeBlockAC(block_x, block_y, k, real_b[k]-ytob_ac*ydeq[k])
	}
}

// QuantizeDC quantizes only coefficient 0 of every block, leaving the
// AC untouched. The encoder runs this coarse first pass before any AC
// work so that the blue DC residual sees a stable luma DC.
func (img *CompressedImage) QuantizeDC() {
	q := &img.quantizer_
	ytob_dc := img.YToBDC()
	for block_y := 0; block_y < img.block_ysize_; block_y++ {
		for block_x := 0; block_x < img.block_xsize_; block_x++ {
			offset := block_x * kBlockSize
			dc_y := q.QuantizeBlockDC(img.opsin_coeffs_.Row(1, block_y)[offset])
			img.dct_coeffs_.Row(1, block_y)[offset] = dc_y
			ydeq := q.DequantizeBlockDC(dc_y)
			img.dct_coeffs_.Row(0, block_y)[offset] =
				q.QuantizeBlockDC(img.opsin_coeffs_.Row(0, block_y)[offset])
			img.dct_coeffs_.Row(2, block_y)[offset] =
				q.QuantizeBlockDC(img.opsin_coeffs_.Row(2, block_y)[offset] - ytob_dc*ydeq)
		}
	}
}

// Quantize applies the current quantizer to every block and recomputes
// the opsin overlay, leaving encoder state consistent with what a
// decoder would reconstruct.
func (img *CompressedImage) Quantize() {
	img.QuantizeDC()
	for block_y := 0; block_y < img.block_ysize_; block_y++ {
		for block_x := 0; block_x < img.block_xsize_; block_x++ {
			img.QuantizeBlock(block_x, block_y)
		}
	}
	img.ComputeOpsinOverlay()
}

// DequantizeBlock fills block with the 3x64 dequantized coefficients
// of one block, with the Y-to-blue correction applied to the blue
// plane.
func (img *CompressedImage) DequantizeBlock(block_x, block_y int, block *[3][kBlockSize]float32) {
	q := &img.quantizer_
	offset := block_x * kBlockSize
	ytob_dc := img.YToBDC()
	ytob_ac := img.YToBAC(block_x/kTileToBlockRatio, block_y/kTileToBlockRatio)
	for c := 0; c < 3; c++ {
		row := img.dct_coeffs_.Row(c, block_y)[offset : offset+kBlockSize]
		block[c][0] = q.DequantizeBlockDC(row[0])
		for k := 1; k < kBlockSize; k++ {
			block[c][k] = q.DequantizeBlockAC(block_x, block_y, k, row[k])
		}
	}
	block[2][0] += ytob_dc * block[1][0]
	for k := 1; k < kBlockSize; k++ {
		block[2][k] += ytob_ac * block[1][k]
	}
}

// ComputeOpsinOverlay rebuilds the pixel space opsin image from the
// quantized coefficients. The overlay is what every reconstruction
// path reads, so encoder and decoder cannot drift apart.
func (img *CompressedImage) ComputeOpsinOverlay() {
	overlay := NewImage3F(img.block_xsize_*kBlockEdge, img.block_ysize_*kBlockEdge)
	var block [3][kBlockSize]float32
	for block_y := 0; block_y < img.block_ysize_; block_y++ {
		for block_x := 0; block_x < img.block_xsize_; block_x++ {
			img.DequantizeBlock(block_x, block_y, &block)
			for c := 0; c < 3; c++ {
				ComputeBlockIDCT(block[c][:])
				for iy := 0; iy < kBlockEdge; iy++ {
					row := overlay.Row(c, block_y*kBlockEdge+iy)
					copy(row[block_x*kBlockEdge:(block_x+1)*kBlockEdge],
						block[c][iy*kBlockEdge:(iy+1)*kBlockEdge])
				}
			}
		}
	}
	img.opsin_overlay_ = &overlay
}

// ToSRGB returns the 8-bit sRGB reconstruction from the quantization
// values and the quantized coefficients.
func (img *CompressedImage) ToSRGB() Image3B {
	assert(img.opsin_overlay_ != nil)
	out := NewImage3B(img.xsize_, img.ysize_)
	for y := 0; y < img.ysize_; y++ {
		row_x := img.opsin_overlay_.Row(0, y)
		row_y := img.opsin_overlay_.Row(1, y)
		row_b := img.opsin_overlay_.Row(2, y)
		out_r := out.Row(0, y)
		out_g := out.Row(1, y)
		out_b := out.Row(2, y)
		for x := 0; x < img.xsize_; x++ {
			r, g, b := OpsinToLinearPixel(float64(row_x[x]), float64(row_y[x]), float64(row_b[x]))
			out_r[x] = LinearToSrgb8(r)
			out_g[x] = LinearToSrgb8(g)
			out_b[x] = LinearToSrgb8(b)
		}
	}
	return out
}

func (img *CompressedImage) ToSRGB16() Image3U {
	assert(img.opsin_overlay_ != nil)
	out := NewImage3U(img.xsize_, img.ysize_)
	for y := 0; y < img.ysize_; y++ {
		row_x := img.opsin_overlay_.Row(0, y)
		row_y := img.opsin_overlay_.Row(1, y)
		row_b := img.opsin_overlay_.Row(2, y)
		out_r := out.Row(0, y)
		out_g := out.Row(1, y)
		out_b := out.Row(2, y)
		for x := 0; x < img.xsize_; x++ {
			r, g, b := OpsinToLinearPixel(float64(row_x[x]), float64(row_y[x]), float64(row_b[x]))
			out_r[x] = LinearToSrgb16(r)
			out_g[x] = LinearToSrgb16(g)
			out_b[x] = LinearToSrgb16(b)
		}
	}
	return out
}

// ToLinear returns the reconstruction as linear (gamma expanded) sRGB
// on the 0..255 scale.
func (img *CompressedImage) ToLinear() Image3F {
	assert(img.opsin_overlay_ != nil)
	out := NewImage3F(img.xsize_, img.ysize_)
	for y := 0; y < img.ysize_; y++ {
		row_x := img.opsin_overlay_.Row(0, y)
		row_y := img.opsin_overlay_.Row(1, y)
		row_b := img.opsin_overlay_.Row(2, y)
		out_r := out.Row(0, y)
		out_g := out.Row(1, y)
		out_b := out.Row(2, y)
		for x := 0; x < img.xsize_; x++ {
			r, g, b := OpsinToLinearPixel(float64(row_x[x]), float64(row_y[x]), float64(row_b[x]))
			out_r[x] = float32(r)
			out_g[x] = float32(g)
			out_b[x] = float32(b)
		}
	}
	return out
}

func (img *CompressedImage) encode(num_contexts int) []byte {
	out := make([]byte, 0, 1024)
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], floatBits(img.quantizer_.quant_dc_))
	out = append(out, buf[:]...)
	for y := 0; y < img.block_ysize_; y++ {
		row := img.quantizer_.quant_ac_.Row(y)
		for x := 0; x < img.block_xsize_; x++ {
			binary.LittleEndian.PutUint32(buf[:], floatBits(row[x]))
			out = append(out, buf[:]...)
		}
	}
	out = append(out, byte(img.ytob_dc_))
	for y := 0; y < img.tile_ysize_; y++ {
		row := img.ytob_ac_.Row(y)
		for x := 0; x < img.tile_xsize_; x++ {
			out = append(out, byte(row[x]))
		}
	}
	residuals := PredictDC(&img.dct_coeffs_)
	out = EncodeDCImage(&residuals, num_contexts, out)
	out = EncodeACImage(&img.dct_coeffs_, num_contexts, out)
	return out
}

// Encode returns a lossless encoding of the quantized coefficients
// together with the quantizer and Y-to-blue state.
func (img *CompressedImage) Encode() []byte {
	return img.encode(kNumContexts)
}

// EncodeFast uses a simpler context model: one shared context per
// stream instead of one per plane.
func (img *CompressedImage) EncodeFast() []byte {
	return img.encode(kNumContextsFast)
}

func (img *CompressedImage) reset() {
	img.dct_coeffs_ = NewImage3W(img.block_xsize_*kBlockSize, img.block_ysize_)
	img.quantizer_ = NewQuantizer(img.block_xsize_, img.block_ysize_)
	img.ytob_dc_ = 0
	img.ytob_ac_ = NewImageI(img.tile_xsize_, img.tile_ysize_)
	img.opsin_overlay_ = nil
}

// Decode replaces the image contents with what the bitstream holds
// and returns the number of bytes consumed. On error the image is
// left in a well-defined empty state.
func (img *CompressedImage) Decode(data []byte) (int, error) {
	pos, err := img.decode(data)
	if err != nil {
		img.reset()
		return 0, err
	}
	return pos, nil
}

func (img *CompressedImage) decode(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, ErrEmptyInput
	}
	pos := 0
	need := 4 * (1 + img.block_xsize_*img.block_ysize_)
	need += 1 + img.tile_xsize_*img.tile_ysize_
	if len(data) < need {
		return 0, ErrTruncatedPayload
	}
	quant_dc := floatFromBits(binary.LittleEndian.Uint32(data[pos:]))
	pos += 4
	if !(quant_dc > 0) {
		return 0, ErrDecodeFailure
	}
	quant_ac := NewImageF(img.block_xsize_, img.block_ysize_)
	for y := 0; y < img.block_ysize_; y++ {
		row := quant_ac.Row(y)
		for x := 0; x < img.block_xsize_; x++ {
			row[x] = floatFromBits(binary.LittleEndian.Uint32(data[pos:]))
			pos += 4
			if !(row[x] > 0) {
				return 0, ErrDecodeFailure
			}
		}
	}
	img.quantizer_.SetQuantField(quant_dc, &quant_ac)
	img.ytob_dc_ = int(data[pos])
	pos++
	for y := 0; y < img.tile_ysize_; y++ {
		row := img.ytob_ac_.Row(y)
		for x := 0; x < img.tile_xsize_; x++ {
			row[x] = int(data[pos])
			pos++
		}
	}
	var err error
	pos, err = DecodeDCImage(data, pos, &img.dct_coeffs_)
	if err != nil {
		return 0, err
	}
	pos, err = DecodeACImage(data, pos, &img.dct_coeffs_)
	if err != nil {
		return 0, err
	}
	img.ComputeOpsinOverlay()
	if img.pik_info_ != nil {
		img.pik_info_.decoded_size = pos
	}
	return pos, nil
}
