package pik

import (
	"bytes"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
)

var (
	flagDistance = flag.Float64("distance", 1.0,
		"Maximum butteraugli distance, smaller value means higher quality")
	flagTargetBitrate = flag.Float64("target_bitrate", 0.0,
		"Aim at this many bits per pixel instead of a distance target")
	flagUniformQuant = flag.Float64("uniform_quant", 0.0,
		"Use one constant quantization multiplier for the whole image")
	flagFast = flag.Bool("fast", false,
		"Use the fast heuristic mode instead of the perceptual search")
	flagIters = flag.Int("iters", 7,
		"Maximum number of butteraugli iterations")
	flagDecompress = flag.Bool("d", false,
		"Decompress instead of compressing")
	flagVerbose = flag.Bool("verbose", false,
		"Print a trace of the quantization state to standard error")
)

func usage() {
	fmt.Fprintln(os.Stderr,
		"PIK image compressor. Usage:\n",
		"cpik [flags] input_filename output_filename")
	flag.PrintDefaults()
	os.Exit(1)
}

func Main() {
	flag.Usage = usage
	flag.Parse()

	if len(flag.Args()) != 2 {
		usage()
	}
	inputFilename, outputFilename := flag.Arg(0), flag.Arg(1)
	in_data := ReadFileOrDie(inputFilename)

	info := NewPikInfo()
	if *flagVerbose {
		info.debug_output = os.Stderr
	}

	if *flagDecompress {
		dparams := DefaultDecompressParams()
		var out Image3B
		if err := PikToPixels(&dparams, in_data, &out, info); err != nil {
			log.Fatalln("PIK decoding failed:", err)
		}
		var buf bytes.Buffer
		if err := WritePNG(&out, &buf); err != nil {
			log.Fatalln("Can't encode PNG:", err)
		}
		WriteFileOrDie(outputFilename, buf.Bytes())
		return
	}

	params := DefaultCompressParams()
	params.butteraugli_distance = float32(*flagDistance)
	params.max_butteraugli_iters = *flagIters
	switch {
	case *flagTargetBitrate > 0:
		params.butteraugli_distance = -1
		params.target_bitrate = float32(*flagTargetBitrate)
	case *flagUniformQuant > 0:
		params.butteraugli_distance = -1
		params.uniform_quant = float32(*flagUniformQuant)
	case *flagFast:
		params.butteraugli_distance = -1
		params.fast_mode = true
	}

	in, err := ReadPNG(in_data)
	if err != nil {
		log.Fatalln("Can't read PNG data from input file:", err)
	}
	out_data, err := PixelsToPik(&params, &in, info)
	if err != nil {
		log.Fatalln("PIK encoding failed:", err)
	}
	WriteFileOrDie(outputFilename, out_data)
}

func ReadPNG(data []byte) (Image3B, error) {
	m, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return Image3B{}, err
	}
	bounds := m.Bounds()
	out := NewImage3B(bounds.Dx(), bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row_r := out.Row(0, y-bounds.Min.Y)
		row_g := out.Row(1, y-bounds.Min.Y)
		row_b := out.Row(2, y-bounds.Min.Y)
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := m.At(x, y).RGBA()
			row_r[x-bounds.Min.X] = byte(r >> 8)
			row_g[x-bounds.Min.X] = byte(g >> 8)
			row_b[x-bounds.Min.X] = byte(b >> 8)
		}
	}
	return out, nil
}

func WritePNG(img *Image3B, w *bytes.Buffer) error {
	m := image.NewNRGBA(image.Rect(0, 0, img.xsize(), img.ysize()))
	for y := 0; y < img.ysize(); y++ {
		row_r := img.Row(0, y)
		row_g := img.Row(1, y)
		row_b := img.Row(2, y)
		for x := 0; x < img.xsize(); x++ {
			m.SetNRGBA(x, y, color.NRGBA{row_r[x], row_g[x], row_b[x], 255})
		}
	}
	return png.Encode(w, m)
}

func ReadFileOrDie(filename string) []byte {
	var buffer []byte
	var err error
	if filename == "-" {
		buffer, err = readAll(os.Stdin)
	} else {
		buffer, err = os.ReadFile(filename)
	}
	if err != nil {
		log.Fatalln("Can't open input file:", err)
	}
	return buffer
}

func readAll(f *os.File) ([]byte, error) {
	var buf bytes.Buffer
	_, err := buf.ReadFrom(f)
	return buf.Bytes(), err
}

func WriteFileOrDie(filename string, contents []byte) {
	var err error
	if filename == "-" {
		_, err = os.Stdout.Write(contents)
	} else {
		err = os.WriteFile(filename, contents, 0666)
	}
	if err != nil {
		log.Fatalln("Can't write:", err)
	}
}
