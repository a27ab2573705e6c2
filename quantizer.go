package pik

// Per-coefficient quantization weights. The stored integer for
// coefficient k is round(real * quant / kQuantWeights[k]), so larger
// weights mean coarser steps at higher frequencies.
var kQuantWeights = [kBlockSize]float32{
	0.0150, 0.0174, 0.0198, 0.0234, 0.0285, 0.0356, 0.0450, 0.0569,
	0.0174, 0.0186, 0.0210, 0.0251, 0.0306, 0.0382, 0.0483, 0.0610,
	0.0198, 0.0210, 0.0243, 0.0290, 0.0354, 0.0441, 0.0557, 0.0704,
	0.0234, 0.0251, 0.0290, 0.0347, 0.0423, 0.0527, 0.0665, 0.0840,
	0.0285, 0.0306, 0.0354, 0.0423, 0.0516, 0.0642, 0.0810, 0.1023,
	0.0356, 0.0382, 0.0441, 0.0527, 0.0642, 0.0800, 0.1009, 0.1274,
	0.0450, 0.0483, 0.0557, 0.0665, 0.0810, 0.1009, 0.1273, 0.1608,
	0.0569, 0.0610, 0.0704, 0.0840, 0.1023, 0.1274, 0.1608, 0.2031,
}

// Quantizer holds the scalar DC multiplier and the per-block AC
// multiplier field. Outer search loops probe SetQuantField and rely
// on the returned changed flag to detect fixed points.
type Quantizer struct {
	block_xsize_ int
	block_ysize_ int
	quant_dc_    float32
	quant_ac_    ImageF
}

func NewQuantizer(block_xsize, block_ysize int) Quantizer {
	return Quantizer{
		block_xsize_: block_xsize,
		block_ysize_: block_ysize,
		quant_ac_:    NewImageF(block_xsize, block_ysize),
	}
}

func (q *Quantizer) QuantDC() float32 { return q.quant_dc_ }

func (q *Quantizer) QuantAC(block_x, block_y int) float32 {
	return q.quant_ac_.Row(block_y)[block_x]
}

// SetQuant fills the whole field with one multiplier.
func (q *Quantizer) SetQuant(v float32) bool {
	field := NewImageFValue(q.block_xsize_, q.block_ysize_, v)
	return q.SetQuantField(v, &field)
}

// SetQuantField replaces the DC multiplier and the AC field and
// reports whether anything actually changed.
func (q *Quantizer) SetQuantField(quant_dc float32, quant_ac *ImageF) bool {
	assert(quant_ac.xsize() == q.block_xsize_ && quant_ac.ysize() == q.block_ysize_)
	changed := q.quant_dc_ != quant_dc
	q.quant_dc_ = quant_dc
	for y := 0; y < q.block_ysize_; y++ {
		row_in := quant_ac.Row(y)
		row := q.quant_ac_.Row(y)
		for x := 0; x < q.block_xsize_; x++ {
			if row[x] != row_in[x] {
				changed = true
				row[x] = row_in[x]
			}
		}
	}
	return changed
}

func (q *Quantizer) GetQuantField(quant_dc *float32, quant_ac *ImageF) {
	*quant_dc = q.quant_dc_
	*quant_ac = q.quant_ac_.Clone()
}

// Quantized coefficients stay strictly inside int16 so the size
// categories of the entropy code never exceed 15 bits for AC.
func quantizeValue(v, quant float32, k int) coeff_t {
	return coeff_t(clampInt(-32767, 32767, std_round(v*quant/kQuantWeights[k])))
}

func dequantizeValue(iv coeff_t, quant float32, k int) float32 {
	return float32(iv) * kQuantWeights[k] / quant
}

func (q *Quantizer) QuantizeBlockDC(v float32) coeff_t {
	return quantizeValue(v, q.quant_dc_, 0)
}

func (q *Quantizer) DequantizeBlockDC(iv coeff_t) float32 {
	return dequantizeValue(iv, q.quant_dc_, 0)
}

func (q *Quantizer) QuantizeBlockAC(block_x, block_y, k int, v float32) coeff_t {
	return quantizeValue(v, q.QuantAC(block_x, block_y), k)
}

func (q *Quantizer) DequantizeBlockAC(block_x, block_y, k int, iv coeff_t) float32 {
	return dequantizeValue(iv, q.QuantAC(block_x, block_y), k)
}

func (q *Quantizer) DumpQuantizationMap(info *PikInfo) {
	info.Logf("Quantization map:\n  quant_dc: %.5f\n", q.quant_dc_)
	for y := 0; y < q.block_ysize_; y++ {
		row := q.quant_ac_.Row(y)
		for x := 0; x < q.block_xsize_; x++ {
			info.Logf(" %.5f", row[x])
		}
		info.Logf("\n")
	}
}
