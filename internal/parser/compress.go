package parser

import (
	"bytes"
	"compress/flate"
	"encoding/base64"
	"errors"
	"io"
	"net/url"
	"strings"

	"oss.terrastruct.com/xdefer"
)

// maxInflatedSize bounds the decompressed size of an embedded diagram.
const maxInflatedSize = 64 << 20

// ErrPayloadTooLarge is returned when a compressed diagram inflates beyond
// maxInflatedSize.
var ErrPayloadTooLarge = errors.New("compressed diagram exceeds size limit")

// Inflate decodes a base64(deflate(urlencode(xml))) diagram payload. The
// deflate stream is raw, without a zlib header.
func Inflate(payload string) (_ string, err error) {
	defer xdefer.Errorf(&err, "failed to inflate diagram payload")

	raw, err := decodeBase64(payload)
	if err != nil {
		return "", err
	}

	r := flate.NewReader(bytes.NewReader(raw))
	defer r.Close()

	data, err := io.ReadAll(io.LimitReader(r, maxInflatedSize+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxInflatedSize {
		return "", ErrPayloadTooLarge
	}

	return url.QueryUnescape(string(data))
}

// Compress produces the payload Inflate reverses.
func Compress(xml string) (_ string, err error) {
	defer xdefer.Errorf(&err, "failed to compress diagram")

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return "", err
	}
	if _, err := io.WriteString(w, EncodeURIComponent(xml)); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// EncodeURIComponent percent-encodes s the way browsers encode URI
// components: spaces become %20, never '+'.
func EncodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}
