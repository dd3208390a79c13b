package main

import (
	"context"
	"testing"

	fwprovider "github.com/hashicorp/terraform-plugin-framework/provider"
	"github.com/hashicorp/terraform-plugin-framework/providerserver"

	"github.com/ankek/terraform-provider-drawio/internal/provider"
)

func TestVersion(t *testing.T) {
	// Test that version variable exists and has a default value
	if version == "" {
		t.Error("version should not be empty")
	}

	// Default version should be "dev"
	if version != "dev" {
		t.Logf("version = %s (expected 'dev' but may be set by build)", version)
	}
}

func TestProviderServer(t *testing.T) {
	p := provider.New(version)()

	resp := &fwprovider.MetadataResponse{}
	p.Metadata(context.Background(), fwprovider.MetadataRequest{}, resp)
	if resp.TypeName != "drawio" {
		t.Errorf("TypeName = %q, want drawio", resp.TypeName)
	}

	server, err := providerserver.NewProtocol6WithError(p)()
	if err != nil {
		t.Fatalf("NewProtocol6WithError() error = %v", err)
	}
	if server == nil {
		t.Error("provider server should not be nil")
	}
}
