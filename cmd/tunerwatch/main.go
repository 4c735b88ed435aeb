// tunerwatch is a terminal monitor for a Mirakurun tuner server. It mirrors
// the tuner table over the server's event stream, follows the server log
// and reports whether any tuner is actively in use.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/five82/tunerwatch/internal/app"
	"github.com/five82/tunerwatch/internal/config"
	"github.com/five82/tunerwatch/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	flags := pflag.NewFlagSet("tunerwatch", pflag.ContinueOnError)
	configPath := flags.String("config", "", "config file path (default "+config.DefaultPath+")")
	host := flags.String("host", "", "server address, a private IPv4 literal (stored in the config)")
	port := flags.String("port", "", "server port (stored in the config)")
	logFile := flags.String("log-file", logging.DefaultPath, "log file path")
	logLevel := flags.String("log-level", "info", "log level: debug, info, warn or error")
	logFormat := flags.String("log-format", "text", "log format: text or json")
	showVersion := flags.Bool("version", false, "print version and exit")
	flags.BoolP("help", "h", false, "show help")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flags)
			return 0
		}
		fmt.Fprintf(os.Stderr, "tunerwatch: %v\n", err)
		return 2
	}
	if help, _ := flags.GetBool("help"); help {
		printHelp(flags)
		return 0
	}
	if *showVersion {
		fmt.Printf("tunerwatch %s\n", version)
		return 0
	}
	if args := flags.Args(); len(args) > 0 {
		fmt.Fprintf(os.Stderr, "tunerwatch: unexpected argument: %s\n", args[0])
		return 2
	}

	logPath, err := config.ExpandPath(*logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tunerwatch: %v\n", err)
		return 1
	}
	logger, closeLog, err := logging.New(logging.Options{
		Path:   logPath,
		Level:  *logLevel,
		Format: *logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "tunerwatch: %v\n", err)
		return 1
	}
	defer closeLog()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath: *configPath,
		Host:       *host,
		Port:       *port,
		Version:    version,
		Logger:     logger,
	}
	if err := app.Run(ctx, opts); err != nil {
		logger.Error("tunerwatch exited", "error", err)
		fmt.Fprintf(os.Stderr, "tunerwatch: %v\n", err)
		return 1
	}
	return 0
}

func printHelp(flags *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `tunerwatch monitors a Mirakurun tuner server.

Usage:
  tunerwatch [flags]

Flags:
%s`, flags.FlagUsages())
}
