package nnabi

import (
	"fmt"
	"os"
	"sync"
)

// EnvLibrary names the environment variable consulted for the runtime
// library path when Load is called with an empty path.
const EnvLibrary = "DEEPVIEWRT_LIBRARY"

var (
	mu      sync.Mutex
	bound   bool
	library string
)

// Load binds the ABI function variables to the DeepViewRT shared library at
// path. An empty path falls back to $DEEPVIEWRT_LIBRARY and then the
// platform's default library name. Load is idempotent; asking for a second,
// different library once bound is an error.
func Load(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if bound {
		if path != "" && path != library {
			return fmt.Errorf("nnabi: already bound to %s", library)
		}
		return nil
	}

	if path == "" {
		path = os.Getenv(EnvLibrary)
	}
	if path == "" {
		path = defaultLibrary
	}

	lib, err := dlopen(path)
	if err != nil {
		return fmt.Errorf("nnabi: load %s: %w", path, err)
	}
	if err := register(lib); err != nil {
		return fmt.Errorf("nnabi: %s: %w", path, err)
	}

	bound = true
	library = path
	return nil
}

// Loaded reports whether the ABI is bound to an implementation.
func Loaded() bool {
	mu.Lock()
	defer mu.Unlock()
	return bound
}

// Library returns what the ABI is bound to: the shared library path, or the
// origin recorded by MarkLoaded.
func Library() string {
	mu.Lock()
	defer mu.Unlock()
	return library
}

// MarkLoaded records an externally bound ABI. In-process stub runtimes call
// this after assigning the function variables directly.
func MarkLoaded(origin string) {
	mu.Lock()
	bound = true
	library = origin
	mu.Unlock()
}

// MarkUnloaded clears the bound state. The function variables keep their
// last values; only the bookkeeping is reset.
func MarkUnloaded() {
	mu.Lock()
	bound = false
	library = ""
	mu.Unlock()
}
