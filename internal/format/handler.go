// Package format provides the lenses that map configuration file formats
// to trees, and a registry to find them by name or by file.
package format

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hercules-team/augeasproviders/internal/tree"
)

// Handler is a lens together with the files it applies to.
type Handler interface {
	tree.Lens

	// Includes returns glob patterns of the files the lens handles by default.
	Includes() []string
}

var (
	mu       sync.RWMutex
	handlers = make(map[string]Handler)
	aliases  = make(map[string]string)
)

// Register makes a handler available under its name and the given aliases.
// Lens packages call it from init.
func Register(h Handler, alias ...string) {
	mu.Lock()
	defer mu.Unlock()
	handlers[h.Name()] = h
	for _, a := range alias {
		aliases[a] = h.Name()
	}
}

// Lookup returns the handler registered under name or one of its aliases.
func Lookup(name string) (Handler, error) {
	mu.RLock()
	defer mu.RUnlock()
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	h, ok := handlers[name]
	if !ok {
		return nil, fmt.Errorf("unknown lens %q", name)
	}
	return h, nil
}

// ForFile returns the handler whose include patterns match file or its
// base name.
func ForFile(file string) (Handler, error) {
	mu.RLock()
	defer mu.RUnlock()
	for _, name := range sortedNames() {
		h := handlers[name]
		for _, pattern := range h.Includes() {
			if ok, _ := filepath.Match(pattern, file); ok {
				return h, nil
			}
			if ok, _ := filepath.Match(pattern, filepath.Base(file)); ok {
				return h, nil
			}
		}
	}
	return nil, fmt.Errorf("no lens handles %s; pass one explicitly", file)
}

// Names returns the names of all registered handlers.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	return sortedNames()
}

func sortedNames() []string {
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
