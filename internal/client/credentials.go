// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gapgens/gapgens/pkg/uuid"
)

// Credentials is what a device keeps between runs.
type Credentials struct {
	// DeviceID identifies this installation. It survives sign-out.
	DeviceID     string     `json:"device_id"`
	UserID       string     `json:"user_id,omitempty"`
	SessionID    string     `json:"session_id,omitempty"`
	SessionToken string     `json:"session_token,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// SignedIn reports whether a session token is held.
func (credentials Credentials) SignedIn() bool {
	return credentials.SessionToken != ""
}

// FileCredentials persists [Credentials] as a JSON file readable only by its owner.
type FileCredentials struct {
	path  string
	mutex sync.Mutex
}

// NewFileCredentials returns a store backed by the file at path. The file is
// created lazily.
func NewFileCredentials(path string) *FileCredentials {
	return &FileCredentials{path: path}
}

// Path returns the backing file path.
func (store *FileCredentials) Path() string {
	return store.path
}

// Load reads the stored credentials. A missing file yields zero Credentials.
func (store *FileCredentials) Load() (Credentials, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.load()
}

// DeviceID returns the installation's device id, generating and persisting
// one on first use.
func (store *FileCredentials) DeviceID() (string, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	credentials, err := store.load()
	if err != nil {
		return "", err
	}
	if credentials.DeviceID != "" {
		return credentials.DeviceID, nil
	}

	credentials.DeviceID = uuid.New()
	if err := store.save(credentials); err != nil {
		return "", err
	}
	return credentials.DeviceID, nil
}

// Save replaces the stored credentials. An empty DeviceID keeps the current one.
func (store *FileCredentials) Save(credentials Credentials) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if credentials.DeviceID == "" {
		current, err := store.load()
		if err != nil {
			return err
		}
		credentials.DeviceID = current.DeviceID
	}
	return store.save(credentials)
}

// ClearCredentials drops the session but keeps the device id. Safe to call repeatedly.
func (store *FileCredentials) ClearCredentials() error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	current, err := store.load()
	if err != nil {
		// Unreadable state is discarded; sign-out must not get stuck on it.
		current = Credentials{}
	}
	if current.DeviceID == "" && !current.SignedIn() {
		if _, statErr := os.Stat(store.path); errors.Is(statErr, fs.ErrNotExist) {
			return nil
		}
	}
	return store.save(Credentials{DeviceID: current.DeviceID})
}

func (store *FileCredentials) load() (Credentials, error) {
	var credentials Credentials

	raw, err := os.ReadFile(store.path)
	if errors.Is(err, fs.ErrNotExist) {
		return credentials, nil
	}
	if err != nil {
		return credentials, fmt.Errorf("client: read credentials: %w", err)
	}

	if err := json.Unmarshal(raw, &credentials); err != nil {
		return Credentials{}, fmt.Errorf("client: decode credentials %s: %w", store.path, err)
	}
	return credentials, nil
}

// save writes through a temp file and rename so a crash never leaves a torn file.
func (store *FileCredentials) save(credentials Credentials) error {
	raw, err := json.MarshalIndent(credentials, "", "  ")
	if err != nil {
		return fmt.Errorf("client: encode credentials: %w", err)
	}

	directory := filepath.Dir(store.path)
	if err := os.MkdirAll(directory, 0o700); err != nil {
		return fmt.Errorf("client: create credentials dir: %w", err)
	}

	temp, err := os.CreateTemp(directory, ".credentials-*")
	if err != nil {
		return fmt.Errorf("client: create temp file: %w", err)
	}
	tempPath := temp.Name()
	defer func() { _ = os.Remove(tempPath) }()

	if _, err := temp.Write(raw); err != nil {
		_ = temp.Close()
		return fmt.Errorf("client: write credentials: %w", err)
	}
	if err := temp.Chmod(0o600); err != nil {
		_ = temp.Close()
		return fmt.Errorf("client: chmod credentials: %w", err)
	}
	if err := temp.Close(); err != nil {
		return fmt.Errorf("client: close credentials: %w", err)
	}

	if err := os.Rename(tempPath, store.path); err != nil {
		return fmt.Errorf("client: replace credentials: %w", err)
	}
	return nil
}
