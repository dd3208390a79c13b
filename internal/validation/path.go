package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidateOutputPath checks that an export of the given format can be written
// to outputPath. The parent directory must exist and accept new files, and a
// recognised extension must name the same format.
func ValidateOutputPath(outputPath string, format FormatInfo) error {
	if outputPath == "" {
		return fmt.Errorf("output path cannot be empty")
	}
	clean := filepath.Clean(outputPath)
	if hasParentRef(clean) {
		return fmt.Errorf("output path must not leave its base directory: %s", outputPath)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(clean), "."))
	switch ext {
	case "xml", "drawio":
		return fmt.Errorf("output path %s would overwrite a diagram source", outputPath)
	}
	if other, ok := LookupFormat(ext); ok && other.Format != format.Format {
		return fmt.Errorf("output path %s has a .%s extension but the export format is %s", outputPath, ext, format.Format)
	}

	abs, err := filepath.Abs(clean)
	if err != nil {
		return fmt.Errorf("failed to resolve output path: %w", err)
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return fmt.Errorf("output path is a directory: %s", abs)
	}
	dir := filepath.Dir(abs)
	if err := requireDir(dir, "output directory"); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".drawio-export-*")
	if err != nil {
		return fmt.Errorf("output directory is not writable: %s: %w", dir, err)
	}
	name := tmp.Name()
	tmp.Close()
	os.Remove(name)
	return nil
}

// ValidateSourcePath checks a diagram file before it is read. Files larger
// than maxSize bytes are refused up front; a non-positive maxSize disables
// the size check.
func ValidateSourcePath(sourcePath string, maxSize int) error {
	if sourcePath == "" {
		return fmt.Errorf("diagram path cannot be empty")
	}
	clean := filepath.Clean(sourcePath)
	info, err := os.Stat(clean)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("diagram file does not exist: %s", clean)
		}
		return fmt.Errorf("failed to access diagram file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("diagram path is not a regular file: %s", clean)
	}
	if maxSize > 0 && info.Size() > int64(maxSize) {
		return invalid(ParamXML, fmt.Sprintf("diagram file %s is %d bytes, over the limit of %d", clean, info.Size(), maxSize), nil)
	}
	return nil
}

// ValidateImageRoot checks the directory local image references are served
// from.
func ValidateImageRoot(root string) error {
	if root == "" {
		return fmt.Errorf("image root cannot be empty")
	}
	abs, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return fmt.Errorf("failed to resolve image root: %w", err)
	}
	if err := requireDir(abs, "image root"); err != nil {
		return err
	}
	f, err := os.Open(abs)
	if err != nil {
		return fmt.Errorf("image root is not readable: %w", err)
	}
	return f.Close()
}

func requireDir(dir, what string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s does not exist: %s", what, dir)
		}
		return fmt.Errorf("failed to access %s: %w", what, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory: %s", what, dir)
	}
	return nil
}

// hasParentRef reports whether a cleaned relative path climbs above its
// starting directory.
func hasParentRef(clean string) bool {
	if filepath.IsAbs(clean) {
		return false
	}
	return clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator))
}
