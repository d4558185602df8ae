// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aplane-algo/apbridge/internal/fsutil"
	"github.com/aplane-algo/apbridge/internal/util"

	"github.com/fsnotify/fsnotify"
)

// ErrVaultExists is returned by Create when a vault is already stored.
var ErrVaultExists = errors.New("vault already exists")

// ErrNoVault is returned by Load when no vault file is present.
var ErrNoVault = errors.New("no vault found")

// FileStore keeps one exported vault in a file.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the vault file location.
func (s *FileStore) Path() string { return s.path }

// Exists reports whether a vault file is present.
func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads and parses the stored vault.
func (s *FileStore) Load() (*Vault, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrNoVault, s.path)
		}
		return nil, fmt.Errorf("failed to read vault: %w", err)
	}
	if private, err := fsutil.IsPrivate(s.path); err == nil && !private {
		util.Logger.Warn("vault file is accessible to other users", "path", s.path)
	}
	return Load(data)
}

// Create stores v. It refuses to overwrite an existing vault.
func (s *FileStore) Create(v *Vault) error {
	if s.Exists() {
		return fmt.Errorf("%w at %s", ErrVaultExists, s.path)
	}
	return s.write(v)
}

// Replace overwrites the stored vault. This is the migration path and the
// only way a stored vault changes.
func (s *FileStore) Replace(v *Vault) error {
	return s.write(v)
}

func (s *FileStore) write(v *Vault) error {
	if err := v.Check(); err != nil {
		return err
	}
	data, err := Export(v)
	if err != nil {
		return err
	}
	if err := fsutil.MkdirAll(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("failed to create vault directory: %w", err)
	}
	return fsutil.WriteFileAtomic(s.path, data)
}

// watchDebounce collapses the burst of events an atomic replace produces.
const watchDebounce = 500 * time.Millisecond

// Watch calls onChange with the reloaded vault whenever the file is created
// or replaced, until ctx is cancelled. A removal is reported as ErrNoVault.
// The parent directory is watched so atomic renames are seen.
func (s *FileStore) Watch(ctx context.Context, onChange func(*Vault, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch vault directory: %w", err)
	}

	target := filepath.Clean(s.path)
	go func() {
		defer func() { _ = watcher.Close() }()

		var debounce *time.Timer
		defer func() {
			if debounce != nil {
				debounce.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(watchDebounce, func() {
					if ctx.Err() != nil {
						return
					}
					v, err := s.Load()
					onChange(v, err)
				})

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				util.Logger.Warn("vault watcher error", "error", err)
			}
		}
	}()

	return nil
}
