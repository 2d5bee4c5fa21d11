package adapters

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/openfroyo/hostsync/pkg/manifest"
)

// shimMarker identifies scripts written by this adapter. Files without it are
// never listed, rewritten or removed.
const shimMarker = "# hostsync-shim: "

// ErrUnmanagedShim is returned when a shim would replace a file this adapter
// did not write.
var ErrUnmanagedShim = errors.New("refusing to overwrite unmanaged file")

// Shims manages a directory of generated wrapper scripts.
type Shims struct {
	dir string
}

// NewShims returns a shim adapter for dir.
func NewShims(dir string) *Shims {
	return &Shims{dir: dir}
}

// Dir returns the managed directory.
func (s *Shims) Dir() string { return s.dir }

// List returns the generated shims, sorted by name.
func (s *Shims) List(_ context.Context) ([]manifest.Shim, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read shim directory: %w", err)
	}

	var shims []manifest.Shim
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		command, ok, err := readShimCommand(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if ok {
			shims = append(shims, manifest.Shim{Name: e.Name(), Command: command})
		}
	}
	sort.Slice(shims, func(i, j int) bool { return shims[i].Name < shims[j].Name })
	return shims, nil
}

// Regenerate writes every shim and removes generated shims not listed.
//
// A shim whose path holds a file without the marker is not written; the other
// shims still are and the conflicts are returned together.
func (s *Shims) Regenerate(ctx context.Context, shims []manifest.Shim) error {
	for _, shim := range shims {
		if err := validShimName(shim.Name); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create shim directory: %w", err)
	}

	existing, err := s.List(ctx)
	if err != nil {
		return err
	}
	wanted := make(map[string]struct{}, len(shims))
	for _, shim := range shims {
		wanted[shim.Name] = struct{}{}
	}
	for _, shim := range existing {
		if _, ok := wanted[shim.Name]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, shim.Name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove shim %s: %w", shim.Name, err)
		}
	}

	var conflicts []error
	for _, shim := range shims {
		path := filepath.Join(s.dir, shim.Name)
		if err := checkOwned(path); err != nil {
			if errors.Is(err, ErrUnmanagedShim) {
				conflicts = append(conflicts, err)
				continue
			}
			return err
		}
		if err := writeShim(path, shim.Command); err != nil {
			return err
		}
	}
	return errors.Join(conflicts...)
}

func validShimName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, '/') {
		return fmt.Errorf("invalid shim name %q", name)
	}
	return nil
}

// checkOwned fails with ErrUnmanagedShim when path exists and was not written
// by this adapter.
func checkOwned(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat shim: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("shim %s: %w", filepath.Base(path), ErrUnmanagedShim)
	}
	_, ok, err := readShimCommand(path)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("shim %s: %w", filepath.Base(path), ErrUnmanagedShim)
	}
	return nil
}

func shimScript(command string) string {
	return "#!/bin/sh\n" + shimMarker + command + "\nexec " + command + " \"$@\"\n"
}

func writeShim(path, command string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".shim-*")
	if err != nil {
		return fmt.Errorf("failed to create shim: %w", err)
	}
	success := false
	defer func() {
		if !success {
			os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.WriteString(shimScript(command)); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write shim: %w", err)
	}
	if err := tmp.Chmod(0o755); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod shim: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close shim: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to install shim: %w", err)
	}
	success = true
	return nil
}

func readShimCommand(path string) (string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, fmt.Errorf("failed to open shim: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for i := 0; i < 3 && scanner.Scan(); i++ {
		if command, ok := strings.CutPrefix(scanner.Text(), shimMarker); ok {
			return command, true, nil
		}
	}
	return "", false, scanner.Err()
}
