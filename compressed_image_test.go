package pik

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func makeTestOpsin(xsize, ysize int) Image3F {
	srgb := NewImage3B(xsize, ysize)
	for c := 0; c < 3; c++ {
		for y := 0; y < ysize; y++ {
			row := srgb.Row(c, y)
			for x := 0; x < xsize; x++ {
				row[x] = byte((x*29 + y*17 + c*53) % 256)
			}
		}
	}
	return OpsinDynamicsImage(&srgb)
}

func quantizedTestImage(t *testing.T, xsize, ysize int) CompressedImage {
	t.Helper()
	opsin := makeTestOpsin(xsize, ysize)
	img := CompressedImageFromOpsinImage(&opsin, nil)
	img.quantizer().SetQuant(1.0)
	img.SetYToBAC(0, 0, 144)
	img.Quantize()
	return img
}

func checkStateEqual(t *testing.T, a, b *CompressedImage) {
	t.Helper()
	for c := 0; c < 3; c++ {
		if !cmp.Equal(a.dct_coeffs_.plane(c).data_, b.dct_coeffs_.plane(c).data_) {
			t.Errorf("coefficient plane %d differs", c)
		}
	}
	if a.quantizer_.quant_dc_ != b.quantizer_.quant_dc_ {
		t.Errorf("quant_dc %f != %f", a.quantizer_.quant_dc_, b.quantizer_.quant_dc_)
	}
	if !cmp.Equal(a.quantizer_.quant_ac_.data_, b.quantizer_.quant_ac_.data_) {
		t.Error("quant field differs")
	}
	if a.ytob_dc_ != b.ytob_dc_ {
		t.Errorf("ytob_dc %d != %d", a.ytob_dc_, b.ytob_dc_)
	}
	if !cmp.Equal(a.ytob_ac_.data_, b.ytob_ac_.data_) {
		t.Error("ytob field differs")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, size := range []struct{ x, y int }{{1, 1}, {8, 8}, {9, 9}, {24, 17}, {64, 64}} {
		img := quantizedTestImage(t, size.x, size.y)
		data := img.Encode()
		decoded := NewCompressedImage(size.x, size.y, nil)
		consumed, err := decoded.Decode(data)
		if err != nil {
			t.Fatalf("%dx%d: %v", size.x, size.y, err)
		}
		if consumed != len(data) {
			t.Errorf("%dx%d: consumed %d of %d bytes", size.x, size.y, consumed, len(data))
		}
		checkStateEqual(t, &img, &decoded)
	}
}

func TestEncodeFastDecodeRoundTrip(t *testing.T) {
	img := quantizedTestImage(t, 16, 16)
	data := img.EncodeFast()
	decoded := NewCompressedImage(16, 16, nil)
	consumed, err := decoded.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if consumed != len(data) {
		t.Errorf("consumed %d of %d bytes", consumed, len(data))
	}
	checkStateEqual(t, &img, &decoded)
}

func TestDecodeMatchesEncoderReconstruction(t *testing.T) {
	img := quantizedTestImage(t, 24, 17)
	srgb_enc := img.ToSRGB()
	data := img.Encode()
	decoded := NewCompressedImage(24, 17, nil)
	if _, err := decoded.Decode(data); err != nil {
		t.Fatal(err)
	}
	srgb_dec := decoded.ToSRGB()
	for c := 0; c < 3; c++ {
		if !cmp.Equal(srgb_enc.plane(c).data_, srgb_dec.plane(c).data_) {
			t.Errorf("plane %d reconstruction differs between encoder and decoder", c)
		}
	}
}

func TestReconstructionDims(t *testing.T) {
	img := quantizedTestImage(t, 13, 5)
	srgb := img.ToSRGB()
	if srgb.xsize() != 13 || srgb.ysize() != 5 {
		t.Errorf("ToSRGB: %dx%d", srgb.xsize(), srgb.ysize())
	}
	srgb16 := img.ToSRGB16()
	if srgb16.xsize() != 13 || srgb16.ysize() != 5 {
		t.Errorf("ToSRGB16: %dx%d", srgb16.xsize(), srgb16.ysize())
	}
	linear := img.ToLinear()
	if linear.xsize() != 13 || linear.ysize() != 5 {
		t.Errorf("ToLinear: %dx%d", linear.xsize(), linear.ysize())
	}
}

func TestBlockGridGeometry(t *testing.T) {
	for _, tc := range []struct {
		xsize, ysize                            int
		block_xsize, block_ysize, tile_x, tile_y int
	}{
		{1, 1, 1, 1, 1, 1},
		{8, 8, 1, 1, 1, 1},
		{9, 9, 2, 2, 1, 1},
		{64, 64, 8, 8, 1, 1},
		{65, 64, 9, 8, 2, 1},
	} {
		img := NewCompressedImage(tc.xsize, tc.ysize, nil)
		if img.block_xsize() != tc.block_xsize || img.block_ysize() != tc.block_ysize {
			t.Errorf("%dx%d: block grid %dx%d", tc.xsize, tc.ysize, img.block_xsize(), img.block_ysize())
		}
		if img.tile_xsize() != tc.tile_x || img.tile_ysize() != tc.tile_y {
			t.Errorf("%dx%d: tile grid %dx%d", tc.xsize, tc.ysize, img.tile_xsize(), img.tile_ysize())
		}
	}
}

func TestDecodeFailureLeavesEmptyState(t *testing.T) {
	img := quantizedTestImage(t, 16, 16)
	data := img.Encode()
	decoded := NewCompressedImage(16, 16, nil)
	if _, err := decoded.Decode(data[:len(data)/2]); err == nil {
		t.Fatal("truncated payload must not decode")
	}
	empty := NewCompressedImage(16, 16, nil)
	empty.reset()
	checkStateEqual(t, &decoded, &empty)
	if decoded.opsin_overlay_ != nil {
		t.Error("failed decode left an overlay behind")
	}
}

func TestDecodeEmptyPayload(t *testing.T) {
	decoded := NewCompressedImage(8, 8, nil)
	if _, err := decoded.Decode(nil); err != ErrEmptyInput {
		t.Errorf("got %v, want ErrEmptyInput", err)
	}
}
