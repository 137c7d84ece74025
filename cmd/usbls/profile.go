//go:build profile

package main

import (
	"fmt"
	"os"
	"runtime/pprof"
)

// startCPUProfile opens path and begins streaming CPU samples to it. The
// returned stop function closes the file and must be called before the
// process exits or the profile is left truncated.
func startCPUProfile(path string) (stop func(), err error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create cpu profile %q: %w", path, err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("start cpu profile: %w", err)
	}
	return func() {
		pprof.StopCPUProfile()
		f.Close()
	}, nil
}
