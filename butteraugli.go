package pik

import "math"

// A compact butteraugli style metric: both images are taken to opsin
// dynamics space, split into a blurred low frequency part and the
// high frequency remainder, and the per-pixel distance is a weighted
// norm over the six difference channels. The scalar distance is the
// peak of the map, so finer quantization can only lower it.

var kLowFreqWeights = [3]float64{2400.0, 3600.0, 520.0}
var kHighFreqWeights = [3]float64{1300.0, 2200.0, 240.0}

const kDiffmapScale = 0.055
const kBlurSigma = 1.56

func gaussianKernel(sigma float64) []float64 {
	radius := int(3.0 * sigma)
	kernel := make([]float64, 2*radius+1)
	scale := -0.5 / (sigma * sigma)
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(scale * d * d)
	}
	return kernel
}

// Convolution with edge renormalization: near the border only the
// kernel mass that overlaps the image is used.
func convolveHorizontal(in *ImageF, kernel []float64) ImageF {
	radius := len(kernel) / 2
	out := NewImageF(in.xsize(), in.ysize())
	for y := 0; y < in.ysize(); y++ {
		row := in.Row(y)
		row_out := out.Row(y)
		for x := 0; x < in.xsize(); x++ {
			sum := 0.0
			weight := 0.0
			for i, k := range kernel {
				xi := x + i - radius
				if xi < 0 || xi >= in.xsize() {
					continue
				}
				sum += k * float64(row[xi])
				weight += k
			}
			row_out[x] = float32(sum / weight)
		}
	}
	return out
}

func convolveVertical(in *ImageF, kernel []float64) ImageF {
	radius := len(kernel) / 2
	out := NewImageF(in.xsize(), in.ysize())
	for y := 0; y < in.ysize(); y++ {
		row_out := out.Row(y)
		for x := 0; x < in.xsize(); x++ {
			sum := 0.0
			weight := 0.0
			for i, k := range kernel {
				yi := y + i - radius
				if yi < 0 || yi >= in.ysize() {
					continue
				}
				sum += k * float64(in.Row(yi)[x])
				weight += k
			}
			row_out[x] = float32(sum / weight)
		}
	}
	return out
}

func Blur(in *ImageF, sigma float64) ImageF {
	kernel := gaussianKernel(sigma)
	tmp := convolveHorizontal(in, kernel)
	return convolveVertical(&tmp, kernel)
}

// ButteraugliDiffmap returns the per-pixel perceptual distance between
// two opsin dynamics images of equal size.
func ButteraugliDiffmap(opsin0, opsin1 *Image3F) ImageF {
	xsize, ysize := opsin0.xsize(), opsin0.ysize()
	assert(opsin1.xsize() == xsize && opsin1.ysize() == ysize)
	diffmap := NewImageF(xsize, ysize)
	for c := 0; c < 3; c++ {
		lf0 := Blur(opsin0.plane(c), kBlurSigma)
		lf1 := Blur(opsin1.plane(c), kBlurSigma)
		for y := 0; y < ysize; y++ {
			row0 := opsin0.Row(c, y)
			row1 := opsin1.Row(c, y)
			row_lf0 := lf0.Row(y)
			row_lf1 := lf1.Row(y)
			row_diff := diffmap.Row(y)
			for x := 0; x < xsize; x++ {
				dlf := float64(row_lf0[x] - row_lf1[x])
				dhf := float64((row0[x] - row_lf0[x]) - (row1[x] - row_lf1[x]))
				row_diff[x] += float32(kLowFreqWeights[c]*dlf*dlf + kHighFreqWeights[c]*dhf*dhf)
			}
		}
	}
	for i, v := range diffmap.data_ {
		diffmap.data_[i] = float32(math.Sqrt(float64(v)) * kDiffmapScale)
	}
	return diffmap
}

// ButteraugliDistanceFromDiffmap aggregates the map into the scalar
// distance; the metric is a maximum norm.
func ButteraugliDistanceFromDiffmap(diffmap *ImageF) float32 {
	max := float32(0.0)
	for _, v := range diffmap.data_ {
		max = std_maxFloat32(max, v)
	}
	return max
}
