package renderer

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
)

// Bytes returns the encoded output, undoing the base64 transport encoding
// when it was applied.
func (o *Output) Bytes() ([]byte, error) {
	if !o.Base64 {
		return o.Data, nil
	}
	raw, err := base64.StdEncoding.DecodeString(string(o.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 output: %w", err)
	}
	return raw, nil
}

// WriteFile writes Data as is to path, creating missing parent directories.
func (o *Output) WriteFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, o.Data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return nil
}
