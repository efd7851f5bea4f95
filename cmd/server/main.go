package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gowvp/camcore/internal/app"
	"github.com/gowvp/camcore/internal/conf"
)

var (
	buildVersion = "0.0.1"
	configPath   = flag.String("conf", "./configs/config.toml", "config file path")
	debug        = flag.Bool("debug", false, "debug mode")
)

func main() {
	flag.Parse()

	bc, err := conf.SetupConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	bc.Debug = *debug
	bc.BuildVersion = buildVersion

	if err := app.Run(bc); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
