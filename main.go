package main

import (
	"context"
	"log"

	"github.com/hashicorp/terraform-plugin-framework/providerserver"
	"github.com/spf13/pflag"

	"github.com/ankek/terraform-provider-drawio/internal/provider"
)

// version is set by the release build.
var version string = "dev"

const providerAddress = "registry.terraform.io/ankek/drawio"

func main() {
	var debug bool

	pflag.BoolVar(&debug, "debug", false, "set to true to run the provider with support for debuggers like delve")
	pflag.Parse()

	opts := providerserver.ServeOpts{
		Address: providerAddress,
		Debug:   debug,
	}

	if err := providerserver.Serve(context.Background(), provider.New(version), opts); err != nil {
		log.Fatal(err.Error())
	}
}
