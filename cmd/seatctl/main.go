// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

// Command seatctl is a device-side client for the session seat service.
//
// # Usage
//
//	seatctl [flags] register -user <id>
//	seatctl [flags] heartbeat
//	seatctl [flags] watch
//	seatctl [flags] revoke [-device <id>]
//	seatctl [flags] logout -user <id>
//	seatctl [flags] active -user <id>
//
// The device id is generated once and kept in the credentials file; sign-out
// clears the session but never the device id.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gapgens/gapgens/internal/client"
	"github.com/gapgens/gapgens/internal/enforce"
)

// errUsage marks argument errors; they exit with status 2.
var errUsage = errors.New("usage")

type globalFlags struct {
	server      string
	credentials string
	bearer      string
	signInPath  string
	verbose     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	err := run(ctx, os.Args[1:])
	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, "seatctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	var global globalFlags

	flags := flag.NewFlagSet("seatctl", flag.ContinueOnError)
	flags.StringVar(&global.server, "server", envOr("GAPGENS_SERVER", "http://127.0.0.1:8080"), "Seat service base URL")
	flags.StringVar(&global.credentials, "credentials", defaultCredentialsPath(), "Credentials file")
	flags.StringVar(&global.bearer, "token", os.Getenv("GAPGENS_ACCESS_TOKEN"), "Auth provider access token")
	flags.StringVar(&global.signInPath, "sign-in", "/sign-in", "Sign-in entry point used when forced out")
	flags.BoolVar(&global.verbose, "v", false, "Verbose logging")
	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	level := slog.LevelWarn
	if global.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	rest := flags.Args()
	if len(rest) == 0 {
		return fmt.Errorf("%w: seatctl [flags] register|heartbeat|watch|revoke|logout|active", errUsage)
	}

	var options []client.Option
	if global.bearer != "" {
		options = append(options, client.WithBearerToken(global.bearer))
	}
	api, err := client.New(global.server, options...)
	if err != nil {
		return err
	}

	device := &deviceState{store: client.NewFileCredentials(global.credentials)}
	if err := device.load(); err != nil {
		return err
	}

	command := &commands{
		api:    api,
		device: device,
		logger: logger,
		global: global,
	}

	switch rest[0] {
	case "register":
		return command.register(ctx, rest[1:])
	case "heartbeat":
		return command.heartbeat(ctx)
	case "watch":
		return command.watch(ctx)
	case "revoke":
		return command.revoke(ctx, rest[1:])
	case "logout":
		return command.logout(ctx, rest[1:])
	case "active":
		return command.active(ctx, rest[1:])
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, rest[0])
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func defaultCredentialsPath() string {
	directory, err := os.UserConfigDir()
	if err != nil {
		directory = "."
	}
	return filepath.Join(directory, "gapgens", "credentials.json")
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

// stdoutNavigator prints the sign-in redirect a GUI would follow.
type stdoutNavigator struct{}

func (stdoutNavigator) Navigate(target string) {
	fmt.Println("signed out, continue at", target)
}

func (command *commands) hook() *enforce.Hook {
	return enforce.New(enforce.Config{
		DeviceID:   command.device.current.DeviceID,
		SignInPath: command.global.signInPath,
	}, command.device, stdoutNavigator{}, command.logger, enforce.WithRemoteRevoker(command.api))
}
