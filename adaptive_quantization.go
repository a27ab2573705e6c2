package pik

import "math"

// AdaptiveQuantizationMap returns a positive per-block multiplier
// field for the fast encoding path, derived from the local activity
// of the luma plane: busy blocks mask quantization error and can be
// coded coarser, so they get a lower multiplier.
func AdaptiveQuantizationMap(luma *ImageF, block_edge int) ImageF {
	block_xsize := divCeil(luma.xsize(), block_edge)
	block_ysize := divCeil(luma.ysize(), block_edge)
	out := NewImageF(block_xsize, block_ysize)
	const kActivityStrength = 4.2
	for block_y := 0; block_y < block_ysize; block_y++ {
		row_out := out.Row(block_y)
		for block_x := 0; block_x < block_xsize; block_x++ {
			activity := 0.0
			n := 0
			y_max := std_min(luma.ysize(), (block_y+1)*block_edge)
			x_max := std_min(luma.xsize(), (block_x+1)*block_edge)
			for y := block_y * block_edge; y < y_max; y++ {
				row := luma.Row(y)
				for x := block_x * block_edge; x < x_max; x++ {
					if x+1 < luma.xsize() {
						activity += math.Abs(float64(row[x+1] - row[x]))
						n++
					}
					if y+1 < luma.ysize() {
						activity += math.Abs(float64(luma.Row(y+1)[x] - row[x]))
						n++
					}
				}
			}
			if n > 0 {
				activity /= float64(n)
			}
			row_out[block_x] = float32(1.0 / (1.0 + kActivityStrength*activity))
		}
	}
	return out
}
