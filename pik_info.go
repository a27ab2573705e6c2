package pik

import (
	"fmt"
	"io"
)

// PikInfo collects statistics for the callers of PixelsToPik and
// PikToPixels. The core only ever writes to it; attaching a debug
// writer turns on the quantization state traces that used to hide
// behind a process-wide flag.
type PikInfo struct {
	num_butteraugli_iters int
	decoded_size          int
	debug_output          io.Writer
}

func NewPikInfo() *PikInfo {
	return &PikInfo{}
}

func (info *PikInfo) DumpQuantState() bool {
	return info != nil && info.debug_output != nil
}

func (info *PikInfo) Logf(format string, args ...interface{}) {
	if info == nil || info.debug_output == nil {
		return
	}
	fmt.Fprintf(info.debug_output, format, args...)
}

func (info *PikInfo) DumpQuantField(label string, quant_field *ImageF) {
	if !info.DumpQuantState() {
		return
	}
	info.Logf("\n%s:\n", label)
	for y := 0; y < quant_field.ysize(); y++ {
		row := quant_field.Row(y)
		for x := 0; x < quant_field.xsize(); x++ {
			info.Logf(" %.5f", row[x])
		}
		info.Logf("\n")
	}
}
