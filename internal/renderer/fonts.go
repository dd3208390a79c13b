package renderer

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// fontFamily is the name the PDF surface registers the faces under.
const fontFamily = "go"

// lineSpacing is the line height as a multiple of the font size.
const lineSpacing = 1.2

type fontStyle int

const (
	styleRegular fontStyle = iota
	styleBold
	styleItalic
	styleBoldItalic
)

func (f Font) style() fontStyle {
	switch {
	case f.Bold && f.Italic:
		return styleBoldItalic
	case f.Bold:
		return styleBold
	case f.Italic:
		return styleItalic
	default:
		return styleRegular
	}
}

var fontTTF = [...][]byte{
	styleRegular:    goregular.TTF,
	styleBold:       gobold.TTF,
	styleItalic:     goitalic.TTF,
	styleBoldItalic: gobolditalic.TTF,
}

var (
	parseFontsOnce sync.Once
	parsedFonts    [len(fontTTF)]*opentype.Font
	parseFontsErr  error
)

func loadFonts() ([len(fontTTF)]*opentype.Font, error) {
	parseFontsOnce.Do(func() {
		for i, ttf := range fontTTF {
			f, err := opentype.Parse(ttf)
			if err != nil {
				parseFontsErr = fmt.Errorf("failed to parse built-in font: %w", err)
				return
			}
			parsedFonts[i] = f
		}
	})
	return parsedFonts, parseFontsErr
}

type faceKey struct {
	style fontStyle
	size  float64
}

// faceCache creates font faces on demand. Faces are not safe for concurrent
// use, so every render owns its cache.
type faceCache struct {
	faces map[faceKey]font.Face
}

func newFaceCache() *faceCache {
	return &faceCache{faces: make(map[faceKey]font.Face)}
}

func (c *faceCache) face(f Font) (font.Face, error) {
	key := faceKey{style: f.style(), size: f.Size}
	if face, ok := c.faces[key]; ok {
		return face, nil
	}
	fonts, err := loadFonts()
	if err != nil {
		return nil, err
	}
	face, err := opentype.NewFace(fonts[key.style], &opentype.FaceOptions{
		Size:    f.Size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	c.faces[key] = face
	return face, nil
}

// measure returns the advance width of text.
func (c *faceCache) measure(text string, f Font) float64 {
	face, err := c.face(f)
	if err != nil {
		return 0
	}
	return float64(font.MeasureString(face, text)) / 64
}

// ascent returns the distance from the top of a line to its baseline.
func (c *faceCache) ascent(f Font) float64 {
	face, err := c.face(f)
	if err != nil {
		return f.Size * 0.8
	}
	return float64(face.Metrics().Ascent) / 64
}

func (c *faceCache) close() {
	for _, face := range c.faces {
		face.Close()
	}
	c.faces = map[faceKey]font.Face{}
}
