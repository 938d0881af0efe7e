// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

package main

import (
	"sync"

	"github.com/gapgens/gapgens/internal/client"
)

// deviceState pairs the in-memory credentials with their file.
type deviceState struct {
	store *client.FileCredentials

	mutex   sync.Mutex
	current client.Credentials
}

func (state *deviceState) load() error {
	credentials, err := state.store.Load()
	if err != nil {
		return err
	}
	state.current = credentials
	return nil
}

func (state *deviceState) ClearAuth() {
	state.mutex.Lock()
	defer state.mutex.Unlock()
	state.current = client.Credentials{DeviceID: state.current.DeviceID}
}

func (state *deviceState) ClearCredentials() error {
	return state.store.ClearCredentials()
}
