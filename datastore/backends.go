/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datastore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/suparena/docstore/errors"
)

// Settings carries the connection parameters a Factory needs. Each backend
// reads the fields it understands and ignores the rest.
type Settings struct {
	Endpoint    string `yaml:"endpoint"`
	Region      string `yaml:"region"`
	AccessKey   string `yaml:"accessKey"`
	SecretKey   string `yaml:"secretKey"`
	Path        string `yaml:"path"`
	TablePrefix string `yaml:"tablePrefix"`
}

// Factory opens a Transport for a backend.
type Factory func(ctx context.Context, s Settings) (Transport, error)

// backendRegistry is a thread-safe name to Factory map.
type backendRegistry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

var backends = &backendRegistry{factories: make(map[string]Factory)}

// Register makes a backend available under name. Backends call it from init.
func Register(name string, f Factory) error {
	if name == "" {
		return errors.NewValidationError("name", "backend name is required")
	}
	if f == nil {
		return errors.NewValidationError("factory", fmt.Sprintf("backend %q has a nil factory", name))
	}

	backends.mu.Lock()
	defer backends.mu.Unlock()

	if _, exists := backends.factories[name]; exists {
		return errors.NewAlreadyExistsError("backend", name)
	}
	backends.factories[name] = f
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister(name string, f Factory) {
	if err := Register(name, f); err != nil {
		panic(err)
	}
}

// Open creates a Transport with the backend registered under name.
func Open(ctx context.Context, name string, s Settings) (Transport, error) {
	backends.mu.RLock()
	f, ok := backends.factories[name]
	backends.mu.RUnlock()

	if !ok {
		return nil, errors.NewNotFoundError("backend", name)
	}
	t, err := f(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", name, err)
	}
	return t, nil
}

// Backends returns the registered backend names in sorted order.
func Backends() []string {
	backends.mu.RLock()
	defer backends.mu.RUnlock()

	names := make([]string, 0, len(backends.factories))
	for name := range backends.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases t if it implements Closer.
func Close(t Transport) error {
	if c, ok := t.(Closer); ok {
		return c.Close()
	}
	return nil
}
