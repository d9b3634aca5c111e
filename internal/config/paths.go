package config

import (
	"os"
	"path/filepath"
	"strings"
)

// homeEnv overrides the directory runtime paths are resolved against.
const homeEnv = "KOMUNESS_HOME"

// RuntimeRoot is the base for relative runtime directories: KOMUNESS_HOME when
// set, otherwise the directory holding the binary, otherwise the working directory.
func RuntimeRoot() string {
	if home := strings.TrimSpace(os.Getenv(homeEnv)); home != "" {
		return filepath.Clean(home)
	}
	if exe, err := os.Executable(); err == nil && exe != "" {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		return filepath.Dir(exe)
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// ResolveDir turns a configured directory into an absolute path. An empty
// value falls back to subdir under RuntimeRoot.
func ResolveDir(dir, subdir string) string {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = subdir
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(RuntimeRoot(), dir)
}
