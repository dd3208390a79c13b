//go:build ignore

// Wraps a plain mxGraphModel file into a compressed .drawio file and renders
// a PNG preview next to it. Used to refresh fixtures by hand:
//
//	go run tools/generate_diagram.go model.xml
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ankek/terraform-provider-drawio/internal/config"
	"github.com/ankek/terraform-provider-drawio/internal/parser"
	"github.com/ankek/terraform-provider-drawio/internal/provider"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Println("usage: go run tools/generate_diagram.go <model.xml>")
		os.Exit(2)
	}
	input := os.Args[1]

	raw, err := os.ReadFile(input)
	if err != nil {
		fmt.Printf("Error reading model: %v\n", err)
		os.Exit(1)
	}

	payload, err := parser.Compress(string(raw))
	if err != nil {
		fmt.Printf("Error compressing model: %v\n", err)
		os.Exit(1)
	}
	source := `<mxfile><diagram id="page-1" name="Page-1">` + payload + `</diagram></mxfile>`

	base := strings.TrimSuffix(input, ".xml")
	if err := os.WriteFile(base+".drawio", []byte(source), 0644); err != nil {
		fmt.Printf("Error writing diagram: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s.drawio (%d bytes compressed from %d)\n", base, len(payload), len(raw))

	gen := provider.NewExportGenerator(config.Defaults())
	result, err := gen.Generate(context.Background(), provider.ExportConfig{
		Source: source,
		Format: "png",
		Border: 10,
	})
	if err != nil {
		fmt.Printf("Error rendering preview: %v\n", err)
		os.Exit(1)
	}
	if err := result.Output.WriteFile(base + ".png"); err != nil {
		fmt.Printf("Error writing preview: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s.png (%dx%d, %d cells skipped)\n", base, result.Output.Width, result.Output.Height, result.Output.Skipped)
}
