package provider

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankek/terraform-provider-drawio/internal/config"
	"github.com/ankek/terraform-provider-drawio/internal/parser"
	"github.com/ankek/terraform-provider-drawio/internal/validation"
)

const testDiagram = `<mxGraphModel><root>
<mxCell id="0"/><mxCell id="1" parent="0"/>
<mxCell id="a" value="API" style="rounded=1;fillColor=#dae8fc;" vertex="1" parent="1"><mxGeometry x="10" y="10" width="120" height="60" as="geometry"/></mxCell>
<mxCell id="b" value="DB" style="shape=cylinder;" vertex="1" parent="1"><mxGeometry x="200" y="10" width="60" height="80" as="geometry"/></mxCell>
<mxCell id="e" edge="1" parent="1" source="a" target="b"><mxGeometry relative="1" as="geometry"/></mxCell>
</root></mxGraphModel>`

func TestExportGenerator_Generate(t *testing.T) {
	generator := NewExportGenerator(config.Defaults())
	ctx := context.Background()

	tests := []struct {
		name       string
		config     ExportConfig
		wantStatus parser.Status
		wantType   string
		wantErr    bool
	}{
		{
			name:       "default format",
			config:     ExportConfig{Source: testDiagram},
			wantStatus: parser.StatusOK,
			wantType:   "image/png",
		},
		{
			name:       "sized pdf",
			config:     ExportConfig{Source: testDiagram, Format: "PDF", Width: 300, Height: 200},
			wantStatus: parser.StatusOK,
			wantType:   "application/pdf",
		},
		{
			name:       "empty container",
			config:     ExportConfig{Source: `<mxfile><diagram id="p1"></diagram></mxfile>`, Format: "jpg", Width: 10, Height: 10},
			wantStatus: parser.StatusEmpty,
			wantType:   "image/jpeg",
		},
		{
			name:    "malformed source",
			config:  ExportConfig{Source: `<mxGraphModel><root>`},
			wantErr: true,
		},
		{
			name:    "unsupported format",
			config:  ExportConfig{Source: testDiagram, Format: "svg"},
			wantErr: true,
		},
		{
			name:    "bad extras",
			config:  ExportConfig{Source: testDiagram, Extras: "[1,2]"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := generator.Generate(ctx, tt.config)

			if (err != nil) != tt.wantErr {
				t.Errorf("Generate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if result.Status != tt.wantStatus {
				t.Errorf("Generate() Status = %v, want %v", result.Status, tt.wantStatus)
			}
			if result.Output.ContentType != tt.wantType {
				t.Errorf("Generate() ContentType = %v, want %v", result.Output.ContentType, tt.wantType)
			}
			if len(result.Output.Data) == 0 {
				t.Error("Generate() returned empty output")
			}
		})
	}
}

func TestExportGenerator_ErrorKinds(t *testing.T) {
	generator := NewExportGenerator(config.Defaults())

	_, err := generator.Generate(context.Background(), ExportConfig{Source: `<mxGraphModel><root>`})
	assert.ErrorIs(t, err, parser.ErrInvalidSource)

	_, err = generator.Generate(context.Background(), ExportConfig{Source: testDiagram, Width: -5})
	var verr *validation.ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Equal(t, validation.ParamWidth, verr.Field)
}

func TestExportGenerator_Limits(t *testing.T) {
	settings := config.Defaults()
	settings.MaxSourceSize = 64
	settings.MaxArea = 1000
	generator := NewExportGenerator(settings)

	_, err := generator.Generate(context.Background(), ExportConfig{Source: testDiagram})
	assert.Error(t, err, "source larger than the limit")

	small := `<mxGraphModel><root/></mxGraphModel>`
	_, err = generator.Generate(context.Background(), ExportConfig{Source: small, Width: 100, Height: 100})
	assert.Error(t, err, "requested area above the limit")

	result, err := generator.Generate(context.Background(), ExportConfig{Source: small, Width: 10, Height: 10})
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(result.Output.Data))
	require.NoError(t, err)
	assert.Equal(t, 10, img.Bounds().Dx())
}

func TestExportGenerator_ContextCancellation(t *testing.T) {
	generator := NewExportGenerator(config.Defaults())
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	_, err := generator.Generate(ctx, ExportConfig{Source: testDiagram})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Generate() error = %v, want context.Canceled", err)
	}
}

func TestExportConfig_Params(t *testing.T) {
	cfg := ExportConfig{
		Source:      testDiagram,
		Format:      "gif",
		Width:       640,
		Scale:       1.5,
		Border:      0,
		Background:  "#fff",
		EmbedSource: true,
	}
	got := cfg.params()

	assert.Equal(t, map[string]string{
		validation.ParamFormat:     "gif",
		validation.ParamXML:        testDiagram,
		validation.ParamWidth:      "640",
		validation.ParamScale:      "1.5",
		validation.ParamBackground: "#fff",
		validation.ParamEmbedXML:   "1",
	}, got)

	assert.Equal(t, "png", ExportConfig{}.params()[validation.ParamFormat])
}

func TestExportConfig_ID(t *testing.T) {
	a := ExportConfig{Source: testDiagram, Format: "png"}
	b := ExportConfig{Source: testDiagram}
	c := ExportConfig{Source: testDiagram, Format: "pdf"}

	assert.Len(t, a.ID(), 64)
	assert.Equal(t, a.ID(), b.ID(), "explicit default format gives the same ID")
	assert.NotEqual(t, a.ID(), c.ID())
}
