package renderer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/ankek/terraform-provider-drawio/internal/parser"
	"github.com/ankek/terraform-provider-drawio/internal/validation"
)

const jpegQuality = 90

// pngHeaderSize covers the signature and the IHDR chunk; ancillary chunks
// are spliced in right after it.
const pngHeaderSize = 8 + 25

// encodeRaster encodes img in the requested raster format.
func encodeRaster(img image.Image, req validation.ExportRequest) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch req.Format.Format {
	case validation.FormatPNG:
		err = png.Encode(&buf, img)
	case validation.FormatJPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
	case validation.FormatGIF:
		err = gif.Encode(&buf, img, &gif.Options{NumColors: 256, Drawer: draw.FloydSteinberg})
	case validation.FormatBMP:
		err = bmp.Encode(&buf, img)
	case validation.FormatTIFF:
		err = tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedFormat, req.Format.Format, err)
	}

	data := buf.Bytes()
	if req.Format.Format != validation.FormatPNG {
		return data, nil
	}
	var chunks [][]byte
	if req.DPI > 0 {
		chunks = append(chunks, physChunk(req.DPI))
	}
	if req.EmbedSource && req.SourceXML != "" {
		chunks = append(chunks, textChunk("mxfile", parser.EncodeURIComponent(req.SourceXML)))
	}
	return insertPNGChunks(data, chunks...), nil
}

// physChunk declares the pixel density in pixels per metre.
func physChunk(dpi int) []byte {
	ppm := uint32(math.Round(float64(dpi) / 0.0254))
	data := make([]byte, 9)
	binary.BigEndian.PutUint32(data[0:4], ppm)
	binary.BigEndian.PutUint32(data[4:8], ppm)
	data[8] = 1
	return pngChunk("pHYs", data)
}

func textChunk(keyword, text string) []byte {
	data := make([]byte, 0, len(keyword)+1+len(text))
	data = append(data, keyword...)
	data = append(data, 0)
	data = append(data, text...)
	return pngChunk("tEXt", data)
}

func pngChunk(typ string, data []byte) []byte {
	b := make([]byte, 12+len(data))
	binary.BigEndian.PutUint32(b[0:4], uint32(len(data)))
	copy(b[4:8], typ)
	copy(b[8:], data)
	binary.BigEndian.PutUint32(b[8+len(data):], crc32.ChecksumIEEE(b[4:8+len(data)]))
	return b
}

func insertPNGChunks(data []byte, chunks ...[]byte) []byte {
	if len(chunks) == 0 || len(data) < pngHeaderSize {
		return data
	}
	out := make([]byte, 0, len(data)+len(bytes.Join(chunks, nil)))
	out = append(out, data[:pngHeaderSize]...)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return append(out, data[pngHeaderSize:]...)
}
