package pik

type coeff_t int16

// A rectangular single-channel raster, row-major, dense.
// The pixel type variants below mirror each other; Go has no templates
// and the handful of copies is cheaper than interface indirection in
// the per-pixel loops.
type ImageF struct {
	xsize_, ysize_ int
	data_          []float32
}

func NewImageF(xsize, ysize int) ImageF {
	return ImageF{xsize_: xsize, ysize_: ysize, data_: make([]float32, xsize*ysize)}
}

func NewImageFValue(xsize, ysize int, val float32) ImageF {
	img := NewImageF(xsize, ysize)
	for i := range img.data_ {
		img.data_[i] = val
	}
	return img
}

func (im *ImageF) xsize() int          { return im.xsize_ }
func (im *ImageF) ysize() int          { return im.ysize_ }
func (im *ImageF) Row(y int) []float32 { return im.data_[y*im.xsize_ : (y+1)*im.xsize_] }

func (im *ImageF) Clone() ImageF {
	out := NewImageF(im.xsize_, im.ysize_)
	copy(out.data_, im.data_)
	return out
}

type ImageW struct {
	xsize_, ysize_ int
	data_          []coeff_t
}

func NewImageW(xsize, ysize int) ImageW {
	return ImageW{xsize_: xsize, ysize_: ysize, data_: make([]coeff_t, xsize*ysize)}
}

func (im *ImageW) xsize() int          { return im.xsize_ }
func (im *ImageW) ysize() int          { return im.ysize_ }
func (im *ImageW) Row(y int) []coeff_t { return im.data_[y*im.xsize_ : (y+1)*im.xsize_] }

type ImageB struct {
	xsize_, ysize_ int
	data_          []byte
}

func NewImageB(xsize, ysize int) ImageB {
	return ImageB{xsize_: xsize, ysize_: ysize, data_: make([]byte, xsize*ysize)}
}

func (im *ImageB) xsize() int       { return im.xsize_ }
func (im *ImageB) ysize() int       { return im.ysize_ }
func (im *ImageB) Row(y int) []byte { return im.data_[y*im.xsize_ : (y+1)*im.xsize_] }

type ImageU struct {
	xsize_, ysize_ int
	data_          []uint16
}

func NewImageU(xsize, ysize int) ImageU {
	return ImageU{xsize_: xsize, ysize_: ysize, data_: make([]uint16, xsize*ysize)}
}

func (im *ImageU) xsize() int         { return im.xsize_ }
func (im *ImageU) ysize() int         { return im.ysize_ }
func (im *ImageU) Row(y int) []uint16 { return im.data_[y*im.xsize_ : (y+1)*im.xsize_] }

type ImageI struct {
	xsize_, ysize_ int
	data_          []int
}

func NewImageI(xsize, ysize int) ImageI {
	return ImageI{xsize_: xsize, ysize_: ysize, data_: make([]int, xsize*ysize)}
}

func NewImageIValue(xsize, ysize, val int) ImageI {
	img := NewImageI(xsize, ysize)
	for i := range img.data_ {
		img.data_[i] = val
	}
	return img
}

func (im *ImageI) xsize() int      { return im.xsize_ }
func (im *ImageI) ysize() int      { return im.ysize_ }
func (im *ImageI) Row(y int) []int { return im.data_[y*im.xsize_ : (y+1)*im.xsize_] }

// Three-plane images. Plane indices are 0,1,2 and mean R,G,B or the
// three opsin channels depending on context.

type Image3F struct {
	plane_ [3]ImageF
}

func NewImage3F(xsize, ysize int) Image3F {
	return Image3F{plane_: [3]ImageF{NewImageF(xsize, ysize), NewImageF(xsize, ysize), NewImageF(xsize, ysize)}}
}

func (im *Image3F) xsize() int             { return im.plane_[0].xsize_ }
func (im *Image3F) ysize() int             { return im.plane_[0].ysize_ }
func (im *Image3F) plane(c int) *ImageF    { return &im.plane_[c] }
func (im *Image3F) Row(c, y int) []float32 { return im.plane_[c].Row(y) }

type Image3W struct {
	plane_ [3]ImageW
}

func NewImage3W(xsize, ysize int) Image3W {
	return Image3W{plane_: [3]ImageW{NewImageW(xsize, ysize), NewImageW(xsize, ysize), NewImageW(xsize, ysize)}}
}

func (im *Image3W) xsize() int             { return im.plane_[0].xsize_ }
func (im *Image3W) ysize() int             { return im.plane_[0].ysize_ }
func (im *Image3W) plane(c int) *ImageW    { return &im.plane_[c] }
func (im *Image3W) Row(c, y int) []coeff_t { return im.plane_[c].Row(y) }

type Image3B struct {
	plane_ [3]ImageB
}

func NewImage3B(xsize, ysize int) Image3B {
	return Image3B{plane_: [3]ImageB{NewImageB(xsize, ysize), NewImageB(xsize, ysize), NewImageB(xsize, ysize)}}
}

func (im *Image3B) xsize() int          { return im.plane_[0].xsize_ }
func (im *Image3B) ysize() int          { return im.plane_[0].ysize_ }
func (im *Image3B) plane(c int) *ImageB { return &im.plane_[c] }
func (im *Image3B) Row(c, y int) []byte { return im.plane_[c].Row(y) }

type Image3U struct {
	plane_ [3]ImageU
}

func NewImage3U(xsize, ysize int) Image3U {
	return Image3U{plane_: [3]ImageU{NewImageU(xsize, ysize), NewImageU(xsize, ysize), NewImageU(xsize, ysize)}}
}

func (im *Image3U) xsize() int            { return im.plane_[0].xsize_ }
func (im *Image3U) ysize() int            { return im.plane_[0].ysize_ }
func (im *Image3U) plane(c int) *ImageU   { return &im.plane_[c] }
func (im *Image3U) Row(c, y int) []uint16 { return im.plane_[c].Row(y) }

func ScaleImage(scale float32, img *ImageF) ImageF {
	out := NewImageF(img.xsize_, img.ysize_)
	for i, v := range img.data_ {
		out.data_[i] = scale * v
	}
	return out
}

// A color image plus an optional 8-bit alpha plane. Alpha is carried
// only through this wrapper; the bare Image3 entry points reject it.

type MetaImageB struct {
	color_ Image3B
	alpha_ *ImageB
}

func (m *MetaImageB) SetColor(color Image3B) { m.color_ = color }
func (m *MetaImageB) GetColor() *Image3B     { return &m.color_ }
func (m *MetaImageB) HasAlpha() bool         { return m.alpha_ != nil }
func (m *MetaImageB) GetAlpha() *ImageB      { return m.alpha_ }
func (m *MetaImageB) xsize() int             { return m.color_.xsize() }
func (m *MetaImageB) ysize() int             { return m.color_.ysize() }

func (m *MetaImageB) AddAlpha() {
	alpha := NewImageB(m.color_.xsize(), m.color_.ysize())
	m.alpha_ = &alpha
}

func (m *MetaImageB) SetAlpha(alpha ImageB) { m.alpha_ = &alpha }

type MetaImageU struct {
	color_ Image3U
	alpha_ *ImageB
}

func (m *MetaImageU) SetColor(color Image3U) { m.color_ = color }
func (m *MetaImageU) GetColor() *Image3U     { return &m.color_ }
func (m *MetaImageU) HasAlpha() bool         { return m.alpha_ != nil }
func (m *MetaImageU) GetAlpha() *ImageB      { return m.alpha_ }
func (m *MetaImageU) xsize() int             { return m.color_.xsize() }
func (m *MetaImageU) ysize() int             { return m.color_.ysize() }

func (m *MetaImageU) AddAlpha() {
	alpha := NewImageB(m.color_.xsize(), m.color_.ysize())
	m.alpha_ = &alpha
}

func (m *MetaImageU) SetAlpha(alpha ImageB) { m.alpha_ = &alpha }

type MetaImageF struct {
	color_ Image3F
	alpha_ *ImageB
}

func (m *MetaImageF) SetColor(color Image3F) { m.color_ = color }
func (m *MetaImageF) GetColor() *Image3F     { return &m.color_ }
func (m *MetaImageF) HasAlpha() bool         { return m.alpha_ != nil }
func (m *MetaImageF) GetAlpha() *ImageB      { return m.alpha_ }
func (m *MetaImageF) xsize() int             { return m.color_.xsize() }
func (m *MetaImageF) ysize() int             { return m.color_.ysize() }

func (m *MetaImageF) AddAlpha() {
	alpha := NewImageB(m.color_.xsize(), m.color_.ysize())
	m.alpha_ = &alpha
}

func (m *MetaImageF) SetAlpha(alpha ImageB) { m.alpha_ = &alpha }
