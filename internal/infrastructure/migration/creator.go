package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"
)

const (
	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
)

var (
	nonWord    = regexp.MustCompile(`[^a-z0-9_ -]+`)
	separators = regexp.MustCompile(`[ _-]+`)
)

// File is a generated up/down migration pair
type File struct {
	Version  string
	Name     string
	UpPath   string
	DownPath string
}

// Create writes an empty up/down pair named <timestamp>_<name> into dir
func Create(dir, name, description string, now time.Time) (*File, error) {
	base := sanitizeName(name)
	if base == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	version := now.UTC().Format("20060102150405")
	f := &File{
		Version:  version,
		Name:     base,
		UpPath:   filepath.Join(dir, version+"_"+base+upSuffix),
		DownPath: filepath.Join(dir, version+"_"+base+downSuffix),
	}

	header := fmt.Sprintf("-- Migration: %s\n-- Description: %s\n\n", strings.ReplaceAll(base, "_", " "), description)
	if err := os.WriteFile(f.UpPath, []byte(header), 0o644); err != nil {
		return nil, fmt.Errorf("failed to create up migration: %w", err)
	}
	rollback := fmt.Sprintf("-- Migration: %s (Rollback)\n\n", strings.ReplaceAll(base, "_", " "))
	if err := os.WriteFile(f.DownPath, []byte(rollback), 0o644); err != nil {
		_ = os.Remove(f.UpPath)
		return nil, fmt.Errorf("failed to create down migration: %w", err)
	}
	return f, nil
}

// sanitizeName lowercases name and joins its words with underscores
func sanitizeName(name string) string {
	s := nonWord.ReplaceAllString(strings.ToLower(name), "")
	s = separators.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// List returns migration base names found in fsys, sorted by version.
// Every up file must have a matching down file.
func List(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	ups := make(map[string]bool)
	downs := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch name := e.Name(); {
		case strings.HasSuffix(name, upSuffix):
			ups[strings.TrimSuffix(name, upSuffix)] = true
		case strings.HasSuffix(name, downSuffix):
			downs[strings.TrimSuffix(name, downSuffix)] = true
		}
	}

	names := make([]string, 0, len(ups))
	for base := range ups {
		if !downs[base] {
			return nil, fmt.Errorf("migration %s has no down file", base)
		}
		names = append(names, base)
	}
	for base := range downs {
		if !ups[base] {
			return nil, fmt.Errorf("migration %s has no up file", base)
		}
	}
	slices.Sort(names)
	return names, nil
}
