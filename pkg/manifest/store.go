package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// Layer names one of the two manifest layers.
type Layer string

const (
	// LayerSystem is the read-only layer supplied by image tooling.
	LayerSystem Layer = "system"

	// LayerUser is the user's personal layer. It is the only one ever written.
	LayerUser Layer = "user"
)

// Mergeable is implemented by every subsystem document.
type Mergeable[D any] interface {
	Merge(user D) D
}

// Store reads and writes manifest layers for all subsystems.
type Store struct {
	systemDir string
	userDir   string
	schemas   *SchemaRegistry
	validate  *validator.Validate
}

// NewStore creates a store over the given layer directories.
func NewStore(systemDir, userDir string) *Store {
	return &Store{
		systemDir: systemDir,
		userDir:   userDir,
		schemas:   NewSchemaRegistry(),
		validate:  validator.New(),
	}
}

// SystemDir returns the system layer directory.
func (s *Store) SystemDir() string { return s.systemDir }

// UserDir returns the user layer directory.
func (s *Store) UserDir() string { return s.userDir }

// Path returns the file of subsystem in layer.
func (s *Store) Path(layer Layer, subsystem string) string {
	dir := s.userDir
	if layer == LayerSystem {
		dir = s.systemDir
	}
	return filepath.Join(dir, subsystem+".json")
}

// ReadLayer decodes the layer file of subsystem into doc. It returns false when the
// file does not exist, leaving doc untouched.
func (s *Store) ReadLayer(layer Layer, subsystem string, doc any) (bool, error) {
	path := s.Path(layer, subsystem)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, NewError(path, "cannot read file", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}

	if s.schemas.Has(subsystem) {
		if err := s.schemas.ValidateJSON(subsystem, data); err != nil {
			return false, NewError(path, err.Error(), err)
		}
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return false, NewError(path, fmt.Sprintf("invalid JSON: %v", err), err)
	}
	if err := s.validate.Struct(doc); err != nil {
		return false, NewError(path, fmt.Sprintf("invalid document: %v", err), err)
	}
	return true, nil
}

// WriteUser replaces the user layer file of subsystem with doc. The document is
// validated first and written to a temporary file in the same directory, synced and
// renamed over the target, so a reader never observes a partial file.
func (s *Store) WriteUser(subsystem string, doc any) error {
	path := s.Path(LayerUser, subsystem)

	if err := s.validate.Struct(doc); err != nil {
		return NewError(path, fmt.Sprintf("invalid document: %v", err), err)
	}
	if s.schemas.Has(subsystem) {
		if err := s.schemas.ValidateDocument(subsystem, doc); err != nil {
			return NewError(path, err.Error(), err)
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s manifest: %w", subsystem, err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(s.userDir, 0o755); err != nil {
		return fmt.Errorf("creating manifest directory: %w", err)
	}
	return writeFileAtomic(path, data)
}

func writeFileAtomic(path string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp manifest file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing manifest data: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("syncing manifest data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp manifest file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("setting manifest permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming manifest file to %s: %w", path, err)
	}

	success = true
	return nil
}

// Load reads both layers of subsystem and merges them.
func Load[D Mergeable[D]](s *Store, subsystem string) (D, error) {
	var system, user D
	if _, err := s.ReadLayer(LayerSystem, subsystem, &system); err != nil {
		return system, err
	}
	if _, err := s.ReadLayer(LayerUser, subsystem, &user); err != nil {
		return system, err
	}
	return system.Merge(user), nil
}

// LoadUser reads only the user layer of subsystem.
func LoadUser[D any](s *Store, subsystem string) (D, error) {
	var user D
	_, err := s.ReadLayer(LayerUser, subsystem, &user)
	return user, err
}
