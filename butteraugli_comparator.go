package pik

// ButteraugliComparator compares 8-bit sRGB reconstructions against a
// fixed opsin dynamics original and keeps the latest distance map.
type ButteraugliComparator struct {
	xsize_, ysize_ int
	opsin_orig_    *Image3F
	distance_      float32
	distmap_       ImageF
}

func NewButteraugliComparator(opsin_orig *Image3F) *ButteraugliComparator {
	return &ButteraugliComparator{
		xsize_:      opsin_orig.xsize(),
		ysize_:      opsin_orig.ysize(),
		opsin_orig_: opsin_orig,
		distmap_:    NewImageF(opsin_orig.xsize(), opsin_orig.ysize()),
	}
}

func (bc *ButteraugliComparator) Compare(srgb *Image3B) {
	assert(srgb.xsize() == bc.xsize_ && srgb.ysize() == bc.ysize_)
	opsin := OpsinDynamicsImage(srgb)
	bc.distmap_ = ButteraugliDiffmap(bc.opsin_orig_, &opsin)
	bc.distance_ = ButteraugliDistanceFromDiffmap(&bc.distmap_)
}

func (bc *ButteraugliComparator) distance() float32 { return bc.distance_ }
func (bc *ButteraugliComparator) distmap() *ImageF  { return &bc.distmap_ }
