package pik

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// A unimodal objective for the grid search.
type quadraticEval struct {
	minimum int
	applied int
	evals   int
}

func (e *quadraticEval) SetVal(v int) { e.applied = v }
func (e *quadraticEval) Eval(v int) int {
	e.evals++
	d := v - e.minimum
	return d*d + 10
}

func TestOptimizeFindsMinimum(t *testing.T) {
	for _, minimum := range []int{0, 1, 120, 173, 254, 255} {
		eval := &quadraticEval{minimum: minimum}
		best_objval := eval.Eval(120)
		best := Optimize(eval, 0, 255, 120, &best_objval)
		if best != minimum {
			t.Errorf("minimum %d: Optimize returned %d", minimum, best)
		}
		if best_objval != 10 {
			t.Errorf("minimum %d: best objective %d, want 10", minimum, best_objval)
		}
		if eval.applied != best {
			t.Errorf("minimum %d: best value %d not applied (got %d)", minimum, best, eval.applied)
		}
	}
}

func TestAdjustQuantVal(t *testing.T) {
	q := float32(4.0)
	if AdjustQuantVal(&q, 1.0, 0.1, 4.0) {
		t.Error("value at quant_max must not be adjusted")
	}
	if q != 4.0 {
		t.Errorf("false return modified q to %f", q)
	}
	q = 1.0
	if !AdjustQuantVal(&q, 0.0, 0.5, 4.0) {
		t.Error("adjustable value must report a change")
	}
	if q < 1.0 {
		t.Errorf("positive factor must not coarsen: q = %f", q)
	}
	if q > 4.0 {
		t.Errorf("q exceeded quant_max: %f", q)
	}
	// A huge factor saturates at quant_max.
	q = 1.0
	AdjustQuantVal(&q, 0.0, 100.0, 4.0)
	if q != 4.0 {
		t.Errorf("saturated q = %f, want 4", q)
	}
}

func TestTileDistMapIgnoresPadding(t *testing.T) {
	// 9x9 pixels: a 2x2 block grid whose right and bottom blocks only
	// cover one pixel row/column each.
	distmap := NewImageF(9, 9)
	for y := 0; y < 9; y++ {
		row := distmap.Row(y)
		for x := 0; x < 9; x++ {
			row[x] = 1.0
		}
	}
	distmap.Row(8)[8] = 7.0
	tiles := TileDistMap(&distmap, kBlockEdge)
	if tiles.xsize() != 2 || tiles.ysize() != 2 {
		t.Fatalf("tile grid %dx%d", tiles.xsize(), tiles.ysize())
	}
	if tiles.Row(0)[0] != 1.0 || tiles.Row(1)[1] != 7.0 {
		t.Errorf("tile maxima %v %v", tiles.Row(0), tiles.Row(1))
	}
}

func TestDistToPeakMap(t *testing.T) {
	field := NewImageF(5, 5)
	field.Row(2)[2] = 10.0
	m := DistToPeakMap(&field, 1.0, 1, 0.65)
	if m.Row(2)[2] != 0.0 {
		t.Errorf("peak cell distance %f, want 0", m.Row(2)[2])
	}
	if m.Row(1)[1] != 1.0 || m.Row(2)[1] != 1.0 {
		t.Errorf("neighbor distances %f %f, want 1", m.Row(1)[1], m.Row(2)[1])
	}
	if m.Row(0)[0] != -1.0 {
		t.Errorf("out-of-reach cell %f, want -1", m.Row(0)[0])
	}
	if m.Row(4)[4] != -1.0 {
		t.Errorf("far cell %f, want -1", m.Row(4)[4])
	}
}

func TestFindBestQuantizationTerminates(t *testing.T) {
	opsin := makeTestOpsin(24, 16)
	img := CompressedImageFromOpsinImage(&opsin, nil)
	img.quantizer().SetQuant(1.0)
	img.Quantize()
	info := NewPikInfo()
	const max_iters = 2
	FindBestQuantization(&opsin, 1.0, max_iters, &img, info)
	if info.num_butteraugli_iters > 3*max_iters+3 {
		t.Errorf("%d butteraugli iterations", info.num_butteraugli_iters)
	}
}

func TestFindBestQuantizationZeroIters(t *testing.T) {
	// With a zero budget the loop quantizes once with the initial
	// field and stops.
	opsin := makeTestOpsin(16, 16)
	img := CompressedImageFromOpsinImage(&opsin, nil)
	img.quantizer().SetQuant(1.0)
	img.Quantize()
	FindBestQuantization(&opsin, 1.0, 0, &img, nil)
	var dc float32
	var ac ImageF
	img.quantizer().GetQuantField(&dc, &ac)
	if dc != 1.0625 {
		t.Errorf("quant_dc = %f, want the initial 1.0625", dc)
	}
	for _, v := range ac.data_ {
		if v != 0.5625 {
			t.Fatalf("quant field value %f, want the initial 0.5625", v)
		}
	}
	if len(img.Encode()) == 0 {
		t.Error("no payload after zero-budget search")
	}
}

func TestFindBestYToBCorrelation(t *testing.T) {
	opsin := makeTestOpsin(16, 16)
	img := CompressedImageFromOpsinImage(&opsin, nil)
	img.quantizer().SetQuant(1.0)
	img.Quantize()
	before := len(img.Encode())
	FindBestYToBCorrelation(&img)
	if img.ytob_dc_ < 0 || img.ytob_dc_ > 255 {
		t.Errorf("ytob_dc out of range: %d", img.ytob_dc_)
	}
	for _, v := range img.ytob_ac_.data_ {
		if v < 0 || v > 255 {
			t.Fatalf("ytob_ac out of range: %d", v)
		}
	}
	// The search minimizes estimated size; the real encoding should
	// not grow materially.
	img.Quantize()
	after := len(img.Encode())
	if after > before+before/4 {
		t.Errorf("size grew from %d to %d", before, after)
	}
}

func TestRoundTripDistanceMode(t *testing.T) {
	srgb := NewImage3B(24, 16)
	for c := 0; c < 3; c++ {
		for y := 0; y < 16; y++ {
			row := srgb.Row(c, y)
			for x := 0; x < 24; x++ {
				row[x] = byte(10*x + 5*y + 60*c)
			}
		}
	}
	params := DefaultCompressParams()
	params.max_butteraugli_iters = 2
	info := NewPikInfo()
	data, err := PixelsToPik(&params, &srgb, info)
	if err != nil {
		t.Fatal(err)
	}
	dparams := DefaultDecompressParams()
	dparams.check_decompressed_size = true
	var out Image3B
	if err := PikToPixels(&dparams, data, &out, info); err != nil {
		t.Fatal(err)
	}
	if out.xsize() != 24 || out.ysize() != 16 {
		t.Fatalf("decoded %dx%d", out.xsize(), out.ysize())
	}
}

func TestRoundTripFastMode(t *testing.T) {
	srgb := NewImage3B(17, 11)
	for y := 0; y < 11; y++ {
		for c := 0; c < 3; c++ {
			row := srgb.Row(c, y)
			for x := 0; x < 17; x++ {
				row[x] = byte((x*x + y*c*19) % 256)
			}
		}
	}
	params := DefaultCompressParams()
	params.butteraugli_distance = -1
	params.fast_mode = true
	data, err := PixelsToPik(&params, &srgb, nil)
	if err != nil {
		t.Fatal(err)
	}
	dparams := DefaultDecompressParams()
	var out Image3B
	if err := PikToPixels(&dparams, data, &out, nil); err != nil {
		t.Fatal(err)
	}
	if out.xsize() != 17 || out.ysize() != 11 {
		t.Fatalf("decoded %dx%d", out.xsize(), out.ysize())
	}
}

func TestUniformGreyBlockIsExact(t *testing.T) {
	// 8x8 uniform grey at uniform_quant 1.0: all AC coefficients are
	// zero and the decoded image equals the input.
	srgb := NewImage3B(8, 8)
	for c := 0; c < 3; c++ {
		for y := 0; y < 8; y++ {
			row := srgb.Row(c, y)
			for x := 0; x < 8; x++ {
				row[x] = 128
			}
		}
	}
	params := DefaultCompressParams()
	params.butteraugli_distance = -1
	params.uniform_quant = 1.0
	data, err := PixelsToPik(&params, &srgb, nil)
	if err != nil {
		t.Fatal(err)
	}

	img := NewCompressedImage(8, 8, nil)
	if _, err := img.Decode(data[kHeaderSize:]); err != nil {
		t.Fatal(err)
	}
	for c := 0; c < 3; c++ {
		row := img.coeffs().Row(c, 0)
		for k := 1; k < kBlockSize; k++ {
			if row[k] != 0 {
				t.Errorf("plane %d AC[%d] = %d, want 0", c, k, row[k])
			}
		}
	}

	dparams := DefaultDecompressParams()
	var out Image3B
	if err := PikToPixels(&dparams, data, &out, nil); err != nil {
		t.Fatal(err)
	}
	for c := 0; c < 3; c++ {
		if !cmp.Equal(out.plane(c).data_, srgb.plane(c).data_) {
			t.Errorf("plane %d: decoded grey differs from input", c)
		}
	}
}

func TestOneByOneImage(t *testing.T) {
	srgb := NewImage3B(1, 1)
	srgb.Row(0, 0)[0] = 200
	srgb.Row(1, 0)[0] = 100
	srgb.Row(2, 0)[0] = 50
	params := DefaultCompressParams()
	params.butteraugli_distance = -1
	params.uniform_quant = 1.0
	data, err := PixelsToPik(&params, &srgb, nil)
	if err != nil {
		t.Fatal(err)
	}
	dparams := DefaultDecompressParams()
	var out Image3B
	if err := PikToPixels(&dparams, data, &out, nil); err != nil {
		t.Fatal(err)
	}
	if out.xsize() != 1 || out.ysize() != 1 {
		t.Fatalf("decoded %dx%d", out.xsize(), out.ysize())
	}
}

func TestTargetSizeTinyTarget(t *testing.T) {
	// An absurdly small target cannot be hit; the controller still
	// terminates and returns its last candidate.
	opsin := makeTestOpsin(32, 32)
	params := DefaultCompressParams()
	params.max_butteraugli_iters = 1
	data := CompressToTargetSize(&opsin, &params, 16, nil)
	if len(data) == 0 {
		t.Fatal("no candidate returned")
	}
}

func TestTargetSizeFits(t *testing.T) {
	opsin := makeTestOpsin(32, 32)
	params := DefaultCompressParams()
	params.max_butteraugli_iters = 1

	// Baseline size at distance 1.0.
	baseline := CompressToTargetSize(&opsin, &params, 1<<20, nil)
	target := len(baseline) * 3 / 4
	data := CompressToTargetSize(&opsin, &params, target, nil)
	if len(data) > target {
		t.Errorf("size %d exceeds reachable target %d", len(data), target)
	}
}

func TestDecodeToOtherPixelFormats(t *testing.T) {
	srgb := NewImage3B(9, 9)
	for c := 0; c < 3; c++ {
		for y := 0; y < 9; y++ {
			row := srgb.Row(c, y)
			for x := 0; x < 9; x++ {
				row[x] = byte(25*x + 20*y + 30*c)
			}
		}
	}
	params := DefaultCompressParams()
	params.butteraugli_distance = -1
	params.uniform_quant = 1.0
	data, err := PixelsToPik(&params, &srgb, nil)
	if err != nil {
		t.Fatal(err)
	}
	dparams := DefaultDecompressParams()

	var out16 Image3U
	if err := PikToPixels16(&dparams, data, &out16, nil); err != nil {
		t.Fatal(err)
	}
	if out16.xsize() != 9 || out16.ysize() != 9 {
		t.Fatalf("16-bit decode: %dx%d", out16.xsize(), out16.ysize())
	}

	var out8 Image3B
	if err := PikToPixels(&dparams, data, &out8, nil); err != nil {
		t.Fatal(err)
	}
	var linear Image3F
	if err := PikToLinear(&dparams, data, &linear, nil); err != nil {
		t.Fatal(err)
	}
	// The three output formats describe the same reconstruction.
	for y := 0; y < 9; y++ {
		for x := 0; x < 9; x++ {
			want := out8.Row(0, y)[x]
			got := LinearToSrgb8(float64(linear.Row(0, y)[x]))
			if std_abs(int(got)-int(want)) > 1 {
				t.Fatalf("pixel (%d,%d): linear %f maps to %d, 8-bit path gives %d",
					x, y, linear.Row(0, y)[x], got, want)
			}
			got16 := out16.Row(0, y)[x]
			if std_abs(int(got16)/257-int(want)) > 1 {
				t.Fatalf("pixel (%d,%d): 16-bit %d vs 8-bit %d", x, y, got16, want)
			}
		}
	}
}

func TestLinearEncodeRoundTrip(t *testing.T) {
	linear := NewImage3F(12, 10)
	for c := 0; c < 3; c++ {
		for y := 0; y < 10; y++ {
			row := linear.Row(c, y)
			for x := 0; x < 12; x++ {
				row[x] = float32(x*20+y) + 0.5*float32(c)
			}
		}
	}
	params := DefaultCompressParams()
	params.butteraugli_distance = -1
	params.uniform_quant = 1.0
	data, err := LinearToPik(&params, &linear, nil)
	if err != nil {
		t.Fatal(err)
	}
	dparams := DefaultDecompressParams()
	var out Image3F
	if err := PikToLinear(&dparams, data, &out, nil); err != nil {
		t.Fatal(err)
	}
	// Quantization at 1.0 is gentle; the reconstruction stays close on
	// the linear scale.
	for y := 0; y < 10; y++ {
		for x := 0; x < 12; x++ {
			diff := float64(out.Row(1, y)[x] - linear.Row(1, y)[x])
			if diff > 8.0 || diff < -8.0 {
				t.Fatalf("pixel (%d,%d): %f vs %f", x, y, out.Row(1, y)[x], linear.Row(1, y)[x])
			}
		}
	}
}

func TestModeSelectionErrors(t *testing.T) {
	srgb := NewImage3B(8, 8)
	params := DefaultCompressParams()
	params.butteraugli_distance = -1
	if _, err := PixelsToPik(&params, &srgb, nil); err != ErrNotImplemented {
		t.Errorf("got %v, want ErrNotImplemented", err)
	}

	empty := NewImage3B(0, 0)
	good := DefaultCompressParams()
	if _, err := PixelsToPik(&good, &empty, nil); err != ErrEmptyInput {
		t.Errorf("got %v, want ErrEmptyInput", err)
	}
}

func TestDecoderRejections(t *testing.T) {
	dparams := DefaultDecompressParams()
	var out Image3B

	if err := PikToPixels(&dparams, nil, &out, nil); err != ErrEmptyInput {
		t.Errorf("empty: got %v", err)
	}
	if err := PikToPixels(&dparams, []byte{1, 2, 3}, &out, nil); err != ErrTruncatedHeader {
		t.Errorf("short header: got %v", err)
	}

	var h Header
	h.xsize, h.ysize = 8, 8
	h.flags = kFlagWebPLossless
	if err := PikToPixels(&dparams, StoreHeader(&h, nil), &out, nil); err != ErrInvalidFormat {
		t.Errorf("reserved flag: got %v", err)
	}

	h.flags = 0
	h.xsize = kMaxImageWidth + 1
	if err := PikToPixels(&dparams, StoreHeader(&h, nil), &out, nil); err != ErrDimensionsTooLarge {
		t.Errorf("too wide: got %v", err)
	}

	h.xsize = 1 << 20
	h.ysize = 1 << 20
	if err := PikToPixels(&dparams, StoreHeader(&h, nil), &out, nil); err != ErrDimensionsTooLarge {
		t.Errorf("too many pixels: got %v", err)
	}

	h.xsize, h.ysize = 0, 4
	if err := PikToPixels(&dparams, StoreHeader(&h, nil), &out, nil); err != ErrEmptyInput {
		t.Errorf("zero dimension: got %v", err)
	}
}

func TestSizeMismatchCheck(t *testing.T) {
	srgb := NewImage3B(8, 8)
	params := DefaultCompressParams()
	params.butteraugli_distance = -1
	params.uniform_quant = 1.0
	data, err := PixelsToPik(&params, &srgb, nil)
	if err != nil {
		t.Fatal(err)
	}
	data = append(data, 0xcc)
	dparams := DefaultDecompressParams()
	dparams.check_decompressed_size = true
	var out Image3B
	if err := PikToPixels(&dparams, data, &out, nil); err != ErrSizeMismatch {
		t.Errorf("got %v, want ErrSizeMismatch", err)
	}
	dparams.check_decompressed_size = false
	if err := PikToPixels(&dparams, data, &out, nil); err != nil {
		t.Errorf("lenient decode failed: %v", err)
	}
}
