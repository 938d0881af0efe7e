// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"

	"github.com/gapgens/gapgens/internal/client"
	"github.com/gapgens/gapgens/internal/session"
)

type commands struct {
	api    *client.Client
	device *deviceState
	logger *slog.Logger
	global globalFlags
}

func (command *commands) register(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("register", flag.ContinueOnError)
	userID := flags.String("user", command.device.current.UserID, "User id")
	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *userID == "" {
		return fmt.Errorf("%w: register requires -user", errUsage)
	}

	deviceID, err := command.device.store.DeviceID()
	if err != nil {
		return err
	}
	command.device.current.DeviceID = deviceID

	response, err := command.api.Register(ctx, *userID, deviceID)
	if err != nil {
		return err
	}

	if command.hook().OnAdmission(ctx, response) {
		return printJSON(response)
	}

	// A reused session keeps the token already on disk.
	if response.SessionToken != "" {
		command.device.current.UserID = *userID
		command.device.current.SessionID = response.SessionID
		command.device.current.SessionToken = response.SessionToken
		command.device.current.ExpiresAt = response.ExpiresAt
		if err := command.device.store.Save(command.device.current); err != nil {
			return err
		}
	}
	return printJSON(response)
}

func (command *commands) heartbeat(ctx context.Context) error {
	if !command.device.current.SignedIn() {
		return errors.New("not signed in on this device")
	}

	response, err := command.api.Heartbeat(ctx, command.device.current.SessionToken)
	if client.IsCode(err, "NOT_FOUND") {
		// The session was revoked while this device was away.
		command.hook().ForceLogout(ctx, session.ReasonSignedOut)
		return nil
	}
	if err != nil {
		return err
	}
	return printJSON(response)
}

// watch blocks until this device is evicted or revoked, then signs it out.
func (command *commands) watch(ctx context.Context) error {
	current := command.device.current
	if !current.SignedIn() {
		return errors.New("not signed in on this device")
	}

	events, err := command.api.WatchRevocations(ctx, current.UserID, current.DeviceID)
	if err != nil {
		return err
	}
	command.logger.Debug("seatctl_watching", slog.String("device_id", current.DeviceID))

	hook := command.hook()
	if err := hook.Run(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if !hook.Fired() {
		command.logger.Warn("seatctl_feed_closed", slog.String("device_id", current.DeviceID))
	}
	return nil
}

func (command *commands) revoke(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("revoke", flag.ContinueOnError)
	deviceID := flags.String("device", "", "Device to sign out (default: this device)")
	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	if *deviceID == "" || *deviceID == command.device.current.DeviceID {
		// Signing this device out is the same path a forced logout takes.
		command.hook().ForceLogout(ctx, session.ReasonSignedOut)
		return nil
	}

	revoked, err := command.api.RevokeDevice(ctx, *deviceID)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"success": true, "revoked": revoked})
}

func (command *commands) logout(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("logout", flag.ContinueOnError)
	userID := flags.String("user", command.device.current.UserID, "User id")
	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *userID == "" {
		return fmt.Errorf("%w: logout requires -user", errUsage)
	}

	revoked, err := command.api.Logout(ctx, *userID)
	if err != nil {
		return err
	}
	command.device.ClearAuth()
	if err := command.device.ClearCredentials(); err != nil {
		return err
	}
	return printJSON(map[string]any{"success": true, "revoked": revoked})
}

func (command *commands) active(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("active", flag.ContinueOnError)
	userID := flags.String("user", command.device.current.UserID, "User id")
	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *userID == "" {
		return fmt.Errorf("%w: active requires -user", errUsage)
	}

	sessions, err := command.api.Active(ctx, *userID)
	if err != nil {
		return err
	}
	return printJSON(sessions)
}
