package pik

import "math"

// Conversion between linear sRGB and the opsin dynamics space the
// codec quantizes in. The forward transform is an absorbance mix of
// the linear channels followed by a cube-root response; both stages
// are invertible, so the round trip is exact up to float precision.

// Row-major mixing matrix applied to linear (R, G, B) on the 0..255
// scale. Rows are the long/medium/short absorbance bands.
var kOpsinAbsorbance = [9]float64{
	0.355, 0.565, 0.080,
	0.250, 0.670, 0.080,
	0.090, 0.160, 0.750,
}

var kOpsinAbsorbanceInverse = invert3x3(kOpsinAbsorbance)

const kOpsinBias = 9.0

var kCbrtOpsinBias = math.Cbrt(kOpsinBias)

func invert3x3(m [9]float64) [9]float64 {
	det := m[0]*(m[4]*m[8]-m[5]*m[7]) -
		m[1]*(m[3]*m[8]-m[5]*m[6]) +
		m[2]*(m[3]*m[7]-m[4]*m[6])
	assert(det != 0.0)
	d := 1.0 / det
	return [9]float64{
		(m[4]*m[8] - m[5]*m[7]) * d, (m[2]*m[7] - m[1]*m[8]) * d, (m[1]*m[5] - m[2]*m[4]) * d,
		(m[5]*m[6] - m[3]*m[8]) * d, (m[0]*m[8] - m[2]*m[6]) * d, (m[2]*m[3] - m[0]*m[5]) * d,
		(m[3]*m[7] - m[4]*m[6]) * d, (m[1]*m[6] - m[0]*m[7]) * d, (m[0]*m[4] - m[1]*m[3]) * d,
	}
}

func opsinResponse(v float64) float64 {
	return math.Cbrt(v+kOpsinBias) - kCbrtOpsinBias
}

func opsinResponseInverse(g float64) float64 {
	t := g + kCbrtOpsinBias
	return t*t*t - kOpsinBias
}

// LinearToOpsinPixel maps one linear RGB pixel to (X, Y, B).
// Plane 1 carries luma; plane 2 correlates with it, which is what the
// Y-to-blue predictor exploits.
func LinearToOpsinPixel(r, g, b float64) (float64, float64, float64) {
	m := &kOpsinAbsorbance
	lg := opsinResponse(m[0]*r + m[1]*g + m[2]*b)
	mg := opsinResponse(m[3]*r + m[4]*g + m[5]*b)
	sg := opsinResponse(m[6]*r + m[7]*g + m[8]*b)
	return 0.5 * (lg - mg), 0.5 * (lg + mg), sg
}

func OpsinToLinearPixel(x, y, bl float64) (float64, float64, float64) {
	l := opsinResponseInverse(y + x)
	m := opsinResponseInverse(y - x)
	s := opsinResponseInverse(bl)
	inv := &kOpsinAbsorbanceInverse
	r := inv[0]*l + inv[1]*m + inv[2]*s
	g := inv[3]*l + inv[4]*m + inv[5]*s
	b := inv[6]*l + inv[7]*m + inv[8]*s
	return r, g, b
}

func OpsinDynamicsImageLinear(linear *Image3F) Image3F {
	xsize, ysize := linear.xsize(), linear.ysize()
	opsin := NewImage3F(xsize, ysize)
	for y := 0; y < ysize; y++ {
		row_r := linear.Row(0, y)
		row_g := linear.Row(1, y)
		row_b := linear.Row(2, y)
		out_x := opsin.Row(0, y)
		out_y := opsin.Row(1, y)
		out_b := opsin.Row(2, y)
		for x := 0; x < xsize; x++ {
			vx, vy, vb := LinearToOpsinPixel(float64(row_r[x]), float64(row_g[x]), float64(row_b[x]))
			out_x[x] = float32(vx)
			out_y[x] = float32(vy)
			out_b[x] = float32(vb)
		}
	}
	return opsin
}

func OpsinDynamicsImage(srgb *Image3B) Image3F {
	xsize, ysize := srgb.xsize(), srgb.ysize()
	opsin := NewImage3F(xsize, ysize)
	lut := Srgb8ToLinearTable
	for y := 0; y < ysize; y++ {
		row_r := srgb.Row(0, y)
		row_g := srgb.Row(1, y)
		row_b := srgb.Row(2, y)
		out_x := opsin.Row(0, y)
		out_y := opsin.Row(1, y)
		out_b := opsin.Row(2, y)
		for x := 0; x < xsize; x++ {
			vx, vy, vb := LinearToOpsinPixel(lut[row_r[x]], lut[row_g[x]], lut[row_b[x]])
			out_x[x] = float32(vx)
			out_y[x] = float32(vy)
			out_b[x] = float32(vb)
		}
	}
	return opsin
}

func OpsinDynamicsImage16(srgb *Image3U) Image3F {
	xsize, ysize := srgb.xsize(), srgb.ysize()
	opsin := NewImage3F(xsize, ysize)
	for y := 0; y < ysize; y++ {
		row_r := srgb.Row(0, y)
		row_g := srgb.Row(1, y)
		row_b := srgb.Row(2, y)
		out_x := opsin.Row(0, y)
		out_y := opsin.Row(1, y)
		out_b := opsin.Row(2, y)
		for x := 0; x < xsize; x++ {
			vx, vy, vb := LinearToOpsinPixel(
				Srgb16ToLinear(row_r[x]), Srgb16ToLinear(row_g[x]), Srgb16ToLinear(row_b[x]))
			out_x[x] = float32(vx)
			out_y[x] = float32(vy)
			out_b[x] = float32(vb)
		}
	}
	return opsin
}
