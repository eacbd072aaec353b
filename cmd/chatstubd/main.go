package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/matheus3301/chatsync/internal/daemon"
	"github.com/matheus3301/chatsync/internal/profile"
	"go.uber.org/fx"
)

func main() {
	addrFlag := flag.String("addr", daemon.DefaultAddr, "listen address")
	dataFlag := flag.String("data", filepath.Join(profile.BaseDir(), "stub"), "data directory")
	debugFlag := flag.Bool("debug", false, "debug logging")
	flag.Parse()

	if err := os.MkdirAll(*dataFlag, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{
			DataDir: *dataFlag,
			Addr:    *addrFlag,
			Stderr:  true,
			Debug:   *debugFlag,
		}),
		fx.NopLogger,
	)
	if err := app.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app.Run()
}
