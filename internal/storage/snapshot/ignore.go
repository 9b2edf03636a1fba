package snapshot

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
)

// DefaultIgnoreFilePatterns match files the engine creates and deletes on its
// own while running. They are never part of a snapshot.
var DefaultIgnoreFilePatterns = []string{
	"*.tmp",
	"*.temp",
	"*.log",
	"*.lock",
	"LOCK",
	"lockfile",
	"Singleton*",
	"*-journal",
	"*.pma",
	"*.dmp",
}

// DefaultIgnoreDirPatterns match directories skipped as a whole.
var DefaultIgnoreDirPatterns = []string{
	"Crashpad",
	"crashpad",
	"Crash Reports",
}

// IgnorePolicy decides which entries of a live state directory are
// expected transient artifacts.
type IgnorePolicy struct {
	files []glob.Glob
	dirs  []glob.Glob
}

// NewIgnorePolicy compiles the default patterns plus extra file patterns.
func NewIgnorePolicy(extraFilePatterns ...string) (*IgnorePolicy, error) {
	p := &IgnorePolicy{}

	patterns := append(append([]string{}, DefaultIgnoreFilePatterns...), extraFilePatterns...)
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("snapshot: invalid ignore pattern %q: %w", pattern, err)
		}
		p.files = append(p.files, g)
	}

	for _, pattern := range DefaultIgnoreDirPatterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("snapshot: invalid ignore pattern %q: %w", pattern, err)
		}
		p.dirs = append(p.dirs, g)
	}

	return p, nil
}

// IgnoreFile reports whether a file with the given base name is skipped.
func (p *IgnorePolicy) IgnoreFile(name string) bool {
	for _, g := range p.files {
		if g.Match(name) {
			return true
		}
	}
	return isUUIDName(name)
}

// IgnoreDir reports whether a directory with the given base name is skipped.
func (p *IgnorePolicy) IgnoreDir(name string) bool {
	for _, g := range p.dirs {
		if g.Match(name) {
			return true
		}
	}
	return isUUIDName(name)
}

// isUUIDName matches xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx with any extension.
func isUUIDName(name string) bool {
	stem, _, _ := strings.Cut(name, ".")
	if len(stem) != 36 {
		return false
	}
	_, err := uuid.Parse(stem)
	return err == nil
}
