package main

import (
	"context"
	"fmt"
	"os"

	"github.com/conveyor/conveyor/internal/logger"
)

func main() {
	verbose := false
	for _, arg := range os.Args[1:] {
		if arg == "-v" || arg == "--verbose" {
			verbose = true
			break
		}
	}

	level := "info"
	if verbose {
		level = "debug"
	}

	log, err := logger.New(logger.Options{
		Level:         level,
		HumanReadable: true,
		Component:     "conveyor",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	app, err := newAppContext(log, os.Getenv("CONVEYOR_NATIVE_PLUGIN_DIR"), os.Getenv("CONVEYOR_WASM_PLUGIN_DIR"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize conveyor: %v\n", err)
		os.Exit(1)
	}

	rootCmd := newRootCmd(app)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Error(err, "command failed")
		os.Exit(1)
	}
}
