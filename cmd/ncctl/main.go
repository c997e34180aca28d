// Package main is the entry point for the ncctl CLI application
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pulsepoint/nextcloud/internal/cli"
	"github.com/pulsepoint/nextcloud/pkg/logger"
	"go.uber.org/zap"
)

// Version information (set during build)
var (
	Version   = "dev"
	BuildDate = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer logger.Sync()

	// Set version info for CLI
	cli.SetVersionInfo(Version, BuildDate)

	// Execute the root command
	if err := cli.ExecuteContext(ctx); err != nil {
		logger.Get().Debug("ncctl execution failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
