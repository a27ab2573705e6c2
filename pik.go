package pik

type CompressParams struct {
	// Anything less than butteraugli distance 1.0 will compress
	// to a visually lossless result.
	butteraugli_distance float32
	target_bitrate       float32
	// If nonzero, does away with the perceptual search and applies one
	// constant quantization multiplier everywhere.
	uniform_quant float32
	fast_mode     bool
	// Iteration budget of the perceptual search.
	max_butteraugli_iters int
	alpha_channel         bool
}

func DefaultCompressParams() CompressParams {
	return CompressParams{
		butteraugli_distance:  1.0,
		target_bitrate:        0.0,
		uniform_quant:         0.0,
		fast_mode:             false,
		max_butteraugli_iters: 7,
		alpha_channel:         false,
	}
}

type DecompressParams struct {
	max_num_pixels          uint64
	check_decompressed_size bool
}

func DefaultDecompressParams() DecompressParams {
	return DecompressParams{max_num_pixels: 1 << 30}
}

// TileDistMap reduces a per-pixel distance map to per-block maxima.
// Blocks on the right and bottom edges only see the pixels that exist,
// so grid padding never leaks into the reduction.
func TileDistMap(distmap *ImageF, tile_size int) ImageF {
	tile_xsize := divCeil(distmap.xsize(), tile_size)
	tile_ysize := divCeil(distmap.ysize(), tile_size)
	tile_distmap := NewImageF(tile_xsize, tile_ysize)
	for tile_y := 0; tile_y < tile_ysize; tile_y++ {
		for tile_x := 0; tile_x < tile_xsize; tile_x++ {
			x_max := std_min(distmap.xsize(), tile_size*(tile_x+1))
			y_max := std_min(distmap.ysize(), tile_size*(tile_y+1))
			max_dist := float32(0.0)
			for y := tile_size * tile_y; y < y_max; y++ {
				row := distmap.Row(y)
				for x := tile_size * tile_x; x < x_max; x++ {
					max_dist = std_maxFloat32(max_dist, row[x])
				}
			}
			tile_distmap.Row(tile_y)[tile_x] = max_dist
		}
	}
	return tile_distmap
}

// DistToPeakMap marks the cells whose distance sticks out above the
// local neighborhood and writes the Chebyshev distance to the nearest
// such peak into every cell the peak influences; untouched cells
// stay at -1.
func DistToPeakMap(field *ImageF, peak_min float32, local_radius int, peak_weight float32) ImageF {
	result := NewImageFValue(field.xsize(), field.ysize(), -1.0)
	for y0 := 0; y0 < field.ysize(); y0++ {
		for x0 := 0; x0 < field.xsize(); x0++ {
			x_min := std_max(0, x0-local_radius)
			y_min := std_max(0, y0-local_radius)
			x_max := std_min(field.xsize(), x0+1+local_radius)
			y_max := std_min(field.ysize(), y0+1+local_radius)
			local_max := peak_min
			for y := y_min; y < y_max; y++ {
				for x := x_min; x < x_max; x++ {
					local_max = std_maxFloat32(local_max, field.Row(y)[x])
				}
			}
			if field.Row(y0)[x0] > (1.0-peak_weight)*peak_min+peak_weight*local_max {
				for y := y_min; y < y_max; y++ {
					for x := x_min; x < x_max; x++ {
						dist := float32(std_max(std_abs(y-y0), std_abs(x-x0)))
						cur_dist := result.Row(y)[x]
						if cur_dist < 0.0 || cur_dist > dist {
							result.Row(y)[x] = dist
						}
					}
				}
			}
		}
	}
	return result
}

func AdjustQuantVal(q *float32, d, factor, quant_max float32) bool {
	if *q >= 0.999*quant_max {
		return false
	}
	inv_q := 1.0 / *q
	adj_inv_q := inv_q - factor/(d+1.0)
	*q = 1.0 / std_maxFloat32(1.0/quant_max, adj_inv_q)
	return true
}

const kMaxOuterIters = 3

// kAdjSpeed and kQuantScale are indexed by the outer iteration and
// must stay the same length as each other.
var kAdjSpeed = [kMaxOuterIters]float32{0.1, 0.05, 0.025}

// The 0.0 slot is a sentinel: the scale is only ever applied after
// outer_iter has been incremented past zero.
var kQuantScale = [kMaxOuterIters]float32{0.0, 0.8, 0.9}

// FindBestQuantization refines the per-block quantization field
// against the butteraugli distance of the reconstruction. It stops
// when the iteration budget runs out or after three outer passes; an
// outer pass ends when the inner adjustment changes nothing, which is
// also the case once the distance is at or below the target.
func FindBestQuantization(opsin_orig *Image3F, butteraugli_target float32,
	max_butteraugli_iters int, img *CompressedImage, aux_out *PikInfo) {
	comparator := NewButteraugliComparator(opsin_orig)
	quant_params := img.adaptive_quant_params()
	kInitialQuantDC := quant_params.initial_quant_val_dc / butteraugli_target
	kInitialQuantAC := quant_params.initial_quant_val_ac / butteraugli_target
	quant_field := NewImageFValue(img.block_xsize(), img.block_ysize(), kInitialQuantAC)
	var tile_distmap ImageF
	outer_iter := 0
	butteraugli_iter := 0
	quant_max := float32(4.0)
	for {
		if aux_out.DumpQuantState() {
			aux_out.DumpQuantField("Quantization field", &quant_field)
			aux_out.Logf("max_butteraugli_iters = %d\n", max_butteraugli_iters)
		}
		if img.quantizer().SetQuantField(kInitialQuantDC, &quant_field) {
			img.Quantize()
			if butteraugli_iter >= max_butteraugli_iters {
				break
			}
			srgb := img.ToSRGB()
			comparator.Compare(&srgb)
			tile_distmap = TileDistMap(comparator.distmap(), kBlockEdge)
			butteraugli_iter++
			if aux_out != nil {
				aux_out.DumpQuantField("Tile distance map", &tile_distmap)
				aux_out.num_butteraugli_iters++
			}
			if aux_out.DumpQuantState() {
				aux_out.Logf("\nButteraugli iter: %d\n", butteraugli_iter)
				aux_out.Logf("Butteraugli distance: %f\n", comparator.distance())
				aux_out.Logf("quant_max: %f\n", quant_max)
				img.quantizer().DumpQuantizationMap(aux_out)
			}
		}
		changed := false
		for !changed && comparator.distance() > butteraugli_target {
			for radius := 1; radius <= 4 && !changed; radius++ {
				dist_to_peak_map := DistToPeakMap(
					&tile_distmap, butteraugli_target, radius, 0.65)
				for y := 0; y < img.block_ysize(); y++ {
					row_q := quant_field.Row(y)
					row_dist := dist_to_peak_map.Row(y)
					for x := 0; x < img.block_xsize(); x++ {
						if row_dist[x] >= 0.0 {
							factor := kAdjSpeed[outer_iter] * tile_distmap.Row(y)[x]
							if AdjustQuantVal(&row_q[x], row_dist[x], factor, quant_max) {
								changed = true
							}
						}
					}
				}
			}
			if quant_max >= 8.0 {
				break
			}
			if !changed {
				quant_max += 0.5
			}
		}
		if !changed {
			outer_iter++
			if outer_iter == kMaxOuterIters {
				break
			}
			assert(outer_iter >= 1)
			for y := 0; y < img.block_ysize(); y++ {
				row := quant_field.Row(y)
				for x := 0; x < img.block_xsize(); x++ {
					row[x] *= kQuantScale[outer_iter]
				}
			}
		}
	}
}

// The Y-to-blue searches evaluate candidate correlation values by the
// estimated entropy coded size of the whole image.
type yToBEval interface {
	SetVal(ytob int)
	Eval(ytob int) int
}

type EvalGlobalYToB struct {
	img *CompressedImage
}

func (e *EvalGlobalYToB) SetVal(ytob int) {
	e.img.SetYToBDC(ytob)
	for tiley := 0; tiley < e.img.tile_ysize(); tiley++ {
		for tilex := 0; tilex < e.img.tile_xsize(); tilex++ {
			e.img.SetYToBAC(tilex, tiley, ytob)
		}
	}
	e.img.Quantize()
}

func (e *EvalGlobalYToB) Eval(ytob int) int {
	e.SetVal(ytob)
	residuals := PredictDC(e.img.coeffs())
	dc_histo := NewHistogramBuilder(kNumContexts, dcExtraBits)
	processDCImage(&residuals, kNumContexts, dc_histo)
	ac_histo := NewHistogramBuilder(kNumContexts, acExtraBits)
	processACImage(e.img.coeffs(), kNumContexts, ac_histo)
	return dc_histo.EncodedSize(1, 2) + ac_histo.EncodedSize(1, 2)
}

// EvalLocalYToB keeps whole-image histograms and updates them
// incrementally: a changed tile first unweights its old blocks, is
// requantized, then adds its new blocks back, so the histograms
// describe the full image at every step.
type EvalLocalYToB struct {
	img                *CompressedImage
	dc_histo, ac_histo *HistogramBuilder
	tilex, tiley       int
}

func NewEvalLocalYToB(img *CompressedImage) *EvalLocalYToB {
	e := &EvalLocalYToB{
		img:      img,
		dc_histo: NewHistogramBuilder(kNumContexts, dcExtraBits),
		ac_histo: NewHistogramBuilder(kNumContexts, acExtraBits),
	}
	residuals := PredictDC(img.coeffs())
	processDCImage(&residuals, kNumContexts, e.dc_histo)
	processACImage(img.coeffs(), kNumContexts, e.ac_histo)
	return e
}

func (e *EvalLocalYToB) SetTile(tx, ty int) {
	e.tilex = tx
	e.tiley = ty
}

func (e *EvalLocalYToB) SetVal(ytob int) {
	e.img.SetYToBAC(e.tilex, e.tiley, ytob)
	for iy := 0; iy < kTileToBlockRatio; iy++ {
		for ix := 0; ix < kTileToBlockRatio; ix++ {
			block_y := kTileToBlockRatio*e.tiley + iy
			block_x := kTileToBlockRatio*e.tilex + ix
			if block_x >= e.img.block_xsize() || block_y >= e.img.block_ysize() {
				continue
			}
			offset := block_x * kBlockSize
			e.ac_histo.set_weight(-1)
			for c := 0; c < 3; c++ {
				block := e.img.coeffs().Row(c, block_y)[offset : offset+kBlockSize]
				processACBlock(block, planeContext(c, kNumContexts), e.ac_histo)
			}
			e.img.QuantizeBlock(block_x, block_y)
			e.ac_histo.set_weight(1)
			for c := 0; c < 3; c++ {
				block := e.img.coeffs().Row(c, block_y)[offset : offset+kBlockSize]
				processACBlock(block, planeContext(c, kNumContexts), e.ac_histo)
			}
		}
	}
}

func (e *EvalLocalYToB) Eval(ytob int) int {
	e.SetVal(ytob)
	return e.dc_histo.EncodedSize(1, 2) + e.ac_histo.EncodedSize(1, 2)
}

// Optimize runs a refined grid search over [minval, maxval]: each
// resolution sweeps the current window, then the window narrows
// around the best value found. The final best value is applied.
func Optimize(eval yToBEval, minval, maxval, best_val int, best_objval *int) int {
	start := minval
	end := maxval
	for resolution := 16; resolution >= 1; resolution /= 4 {
		for val := start; val <= end; val += resolution {
			objval := eval.Eval(val)
			if objval < *best_objval {
				best_val = val
				*best_objval = objval
			}
		}
		start = std_max(minval, best_val-resolution+1)
		end = std_min(maxval, best_val+resolution-1)
	}
	eval.SetVal(best_val)
	return best_val
}

// FindBestYToBCorrelation picks one global Y-to-blue value, then
// refines every tile in raster order against the shared histograms.
func FindBestYToBCorrelation(img *CompressedImage) {
	eval_global := &EvalGlobalYToB{img: img}
	best_size := eval_global.Eval(kStartYToB)
	global_ytob := Optimize(eval_global, 0, 255, kStartYToB, &best_size)
	eval_local := NewEvalLocalYToB(img)
	for tiley := 0; tiley < img.tile_ysize(); tiley++ {
		for tilex := 0; tilex < img.tile_xsize(); tilex++ {
			eval_local.SetTile(tilex, tiley)
			Optimize(eval_local, 0, 255, global_ytob, &best_size)
		}
	}
}

// ScaleQuantizationMap multiplies the AC field by scale and the DC
// multiplier by a softened version of it, requantizes, and reports
// whether the field changed.
func ScaleQuantizationMap(quant_dc float32, quant_field_ac *ImageF, scale float32,
	img *CompressedImage, aux_out *PikInfo) bool {
	scale_dc := 0.8*scale + 0.2
	scaled := ScaleImage(scale, quant_field_ac)
	changed := img.quantizer().SetQuantField(scale_dc*quant_dc, &scaled)
	if aux_out.DumpQuantState() {
		aux_out.Logf("\nScaling quantization map with scale %f\n", scale)
		img.quantizer().DumpQuantizationMap(aux_out)
	}
	img.Quantize()
	return changed
}

// compressToTargetSize searches a quantization scale whose encoding
// fits in target_size bytes: geometric descent first, then bisection
// between the last too-big and the first fitting scale.
func compressToTargetSize(target_size int, img *CompressedImage, aux_out *PikInfo) []byte {
	var quant_dc float32
	var quant_ac ImageF
	img.quantizer().GetQuantField(&quant_dc, &quant_ac)
	scale_bad := float32(1.0)
	scale_good := float32(1.0)
	var candidate []byte
	var compressed []byte
	for i := 0; i < 10; i++ {
		ScaleQuantizationMap(quant_dc, &quant_ac, scale_good, img, aux_out)
		candidate = img.Encode()
		if len(candidate) <= target_size {
			compressed = candidate
			break
		}
		scale_bad = scale_good
		scale_good *= 0.5
	}
	if compressed == nil {
		// We could not make the compressed size small enough, so we
		// return the last candidate.
		return candidate
	}
	if scale_good == 1.0 {
		// We dont want to go below butteraugli distance 1.0
		return compressed
	}
	for i := 0; i < 16; i++ {
		scale := 0.5 * (scale_bad + scale_good)
		if !ScaleQuantizationMap(quant_dc, &quant_ac, scale, img, aux_out) {
			break
		}
		candidate = img.Encode()
		if len(candidate) <= target_size {
			compressed = candidate
			scale_good = scale
		} else {
			scale_bad = scale
		}
	}
	return compressed
}

func CompressToButteraugliDistance(opsin *Image3F, params *CompressParams, info *PikInfo) []byte {
	img := CompressedImageFromOpsinImage(opsin, info)
	img.quantizer().SetQuant(1.0)
	img.Quantize()
	FindBestYToBCorrelation(&img)
	FindBestQuantization(opsin, params.butteraugli_distance,
		params.max_butteraugli_iters, &img, info)
	return img.Encode()
}

func CompressFast(opsin *Image3F, params *CompressParams, info *PikInfo) []byte {
	const kQuantDC = 0.76953163840390082
	const kQuantAC = 1.52005680264295
	img := CompressedImageFromOpsinImage(opsin, info)
	qf := AdaptiveQuantizationMap(opsin.plane(1), kBlockEdge)
	scaled := ScaleImage(kQuantAC, &qf)
	img.quantizer().SetQuantField(kQuantDC, &scaled)
	img.Quantize()
	return img.EncodeFast()
}

func CompressToTargetSize(opsin *Image3F, params *CompressParams,
	target_size int, aux_out *PikInfo) []byte {
	img := CompressedImageFromOpsinImage(opsin, aux_out)
	img.quantizer().SetQuant(1.0)
	img.Quantize()
	FindBestYToBCorrelation(&img)
	FindBestQuantization(opsin, 1.0, params.max_butteraugli_iters, &img, aux_out)
	return compressToTargetSize(target_size, &img, aux_out)
}

// OpsinToPik runs the mode selected by the params on an opsin
// dynamics image and frames the result.
func OpsinToPik(params *CompressParams, opsin *Image3F, info *PikInfo) ([]byte, error) {
	if opsin.xsize() == 0 || opsin.ysize() == 0 {
		return nil, ErrEmptyInput
	}
	var compressed_data []byte
	switch {
	case params.butteraugli_distance >= 0.0:
		compressed_data = CompressToButteraugliDistance(opsin, params, info)
	case params.target_bitrate > 0.0:
		target_size := int(float64(opsin.xsize()) * float64(opsin.ysize()) *
			float64(params.target_bitrate) / 8.0)
		compressed_data = CompressToTargetSize(opsin, params, target_size, info)
	case params.uniform_quant > 0.0:
		img := CompressedImageFromOpsinImage(opsin, info)
		img.quantizer().SetQuant(params.uniform_quant)
		img.Quantize()
		compressed_data = img.Encode()
	case params.fast_mode:
		compressed_data = CompressFast(opsin, params, info)
	default:
		return nil, ErrNotImplemented
	}
	header := Header{
		xsize: uint32(opsin.xsize()),
		ysize: uint32(opsin.ysize()),
	}
	if params.alpha_channel {
		header.flags |= kFlagAlpha
	}
	out := StoreHeader(&header, make([]byte, 0, kHeaderSize+len(compressed_data)))
	return append(out, compressed_data...), nil
}

// PixelsToPik compresses an 8-bit sRGB image.
func PixelsToPik(params *CompressParams, image *Image3B, info *PikInfo) ([]byte, error) {
	if image.xsize() == 0 || image.ysize() == 0 {
		return nil, ErrEmptyInput
	}
	if params.alpha_channel {
		return nil, ErrUnsupportedAlpha
	}
	opsin := OpsinDynamicsImage(image)
	return OpsinToPik(params, &opsin, info)
}

// LinearToPik compresses a linear (gamma expanded) sRGB image.
func LinearToPik(params *CompressParams, image *Image3F, info *PikInfo) ([]byte, error) {
	if image.xsize() == 0 || image.ysize() == 0 {
		return nil, ErrEmptyInput
	}
	if params.alpha_channel {
		return nil, ErrUnsupportedAlpha
	}
	opsin := OpsinDynamicsImageLinear(image)
	return OpsinToPik(params, &opsin, info)
}

// MetaPixelsToPik compresses an 8-bit sRGB image with an optional
// alpha plane riding behind the color payload.
func MetaPixelsToPik(params *CompressParams, image *MetaImageB, info *PikInfo) ([]byte, error) {
	if image.xsize() == 0 || image.ysize() == 0 {
		return nil, ErrEmptyInput
	}
	opsin := OpsinDynamicsImage(image.GetColor())
	compressed, err := OpsinToPik(params, &opsin, info)
	if err != nil {
		return nil, err
	}
	if params.alpha_channel {
		if !image.HasAlpha() {
			return nil, ErrUnsupportedAlpha
		}
		compressed, err = AlphaToPik(image.GetAlpha(), compressed)
		if err != nil {
			return nil, err
		}
	}
	return compressed, nil
}

// MetaLinearToPik is MetaPixelsToPik for linear float color.
func MetaLinearToPik(params *CompressParams, image *MetaImageF, info *PikInfo) ([]byte, error) {
	if image.xsize() == 0 || image.ysize() == 0 {
		return nil, ErrEmptyInput
	}
	opsin := OpsinDynamicsImageLinear(image.GetColor())
	compressed, err := OpsinToPik(params, &opsin, info)
	if err != nil {
		return nil, err
	}
	if params.alpha_channel {
		if !image.HasAlpha() {
			return nil, ErrUnsupportedAlpha
		}
		compressed, err = AlphaToPik(image.GetAlpha(), compressed)
		if err != nil {
			return nil, err
		}
	}
	return compressed, nil
}

// pikToCompressed parses the container and decodes the payload into a
// compressed image; byte_pos points past everything consumed so far.
func pikToCompressed(params *DecompressParams, compressed []byte,
	info *PikInfo) (*CompressedImage, Header, int, error) {
	var header Header
	if len(compressed) == 0 {
		return nil, header, 0, ErrEmptyInput
	}
	byte_pos, err := LoadHeader(compressed, &header)
	if err != nil {
		return nil, header, 0, err
	}
	if header.flags&kFlagWebPLossless != 0 {
		return nil, header, 0, ErrInvalidFormat
	}
	if header.xsize == 0 || header.ysize == 0 {
		return nil, header, 0, ErrEmptyInput
	}
	if header.xsize > kMaxImageWidth {
		return nil, header, 0, ErrDimensionsTooLarge
	}
	num_pixels := uint64(header.xsize) * uint64(header.ysize)
	if num_pixels > params.max_num_pixels {
		return nil, header, 0, ErrDimensionsTooLarge
	}
	img := NewCompressedImage(int(header.xsize), int(header.ysize), info)
	bytes_read, err := img.Decode(compressed[byte_pos:])
	if err != nil {
		return nil, header, 0, err
	}
	byte_pos += bytes_read
	return &img, header, byte_pos, nil
}

func finishDecode(params *DecompressParams, compressed []byte, byte_pos int,
	header *Header, alpha *ImageB) (int, error) {
	if header.flags&kFlagAlpha != 0 {
		var err error
		byte_pos, err = PikToAlpha(compressed, byte_pos, alpha)
		if err != nil {
			return byte_pos, err
		}
	}
	if params.check_decompressed_size && byte_pos != len(compressed) {
		return byte_pos, ErrSizeMismatch
	}
	return byte_pos, nil
}

// MetaPikToPixels decompresses to 8-bit sRGB plus optional alpha.
func MetaPikToPixels(params *DecompressParams, compressed []byte,
	image *MetaImageB, info *PikInfo) error {
	img, header, byte_pos, err := pikToCompressed(params, compressed, info)
	if err != nil {
		return err
	}
	image.SetColor(img.ToSRGB())
	if header.flags&kFlagAlpha != 0 {
		image.AddAlpha()
	}
	byte_pos, err = finishDecode(params, compressed, byte_pos, &header, image.GetAlpha())
	if err != nil {
		return err
	}
	if info != nil {
		info.decoded_size = byte_pos
	}
	return nil
}

// MetaPikToPixels16 decompresses to 16-bit sRGB plus optional alpha.
func MetaPikToPixels16(params *DecompressParams, compressed []byte,
	image *MetaImageU, info *PikInfo) error {
	img, header, byte_pos, err := pikToCompressed(params, compressed, info)
	if err != nil {
		return err
	}
	image.SetColor(img.ToSRGB16())
	if header.flags&kFlagAlpha != 0 {
		image.AddAlpha()
	}
	byte_pos, err = finishDecode(params, compressed, byte_pos, &header, image.GetAlpha())
	if err != nil {
		return err
	}
	if info != nil {
		info.decoded_size = byte_pos
	}
	return nil
}

// MetaPikToLinear decompresses to linear float sRGB plus optional
// alpha.
func MetaPikToLinear(params *DecompressParams, compressed []byte,
	image *MetaImageF, info *PikInfo) error {
	img, header, byte_pos, err := pikToCompressed(params, compressed, info)
	if err != nil {
		return err
	}
	image.SetColor(img.ToLinear())
	if header.flags&kFlagAlpha != 0 {
		image.AddAlpha()
	}
	byte_pos, err = finishDecode(params, compressed, byte_pos, &header, image.GetAlpha())
	if err != nil {
		return err
	}
	if info != nil {
		info.decoded_size = byte_pos
	}
	return nil
}

// PikToPixels decompresses to a bare 8-bit image; alpha-carrying
// streams are rejected because there is nowhere to put the plane.
func PikToPixels(params *DecompressParams, compressed []byte,
	image *Image3B, info *PikInfo) error {
	var temp MetaImageB
	if err := MetaPikToPixels(params, compressed, &temp, info); err != nil {
		return err
	}
	if temp.HasAlpha() {
		return ErrUnsupportedAlpha
	}
	*image = *temp.GetColor()
	return nil
}

func PikToPixels16(params *DecompressParams, compressed []byte,
	image *Image3U, info *PikInfo) error {
	var temp MetaImageU
	if err := MetaPikToPixels16(params, compressed, &temp, info); err != nil {
		return err
	}
	if temp.HasAlpha() {
		return ErrUnsupportedAlpha
	}
	*image = *temp.GetColor()
	return nil
}

func PikToLinear(params *DecompressParams, compressed []byte,
	image *Image3F, info *PikInfo) error {
	var temp MetaImageF
	if err := MetaPikToLinear(params, compressed, &temp, info); err != nil {
		return err
	}
	if temp.HasAlpha() {
		return ErrUnsupportedAlpha
	}
	*image = *temp.GetColor()
	return nil
}
