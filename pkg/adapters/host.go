package adapters

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Package backends.
const (
	BackendDNF       = "dnf"
	BackendRPMOSTree = "rpm-ostree"
)

// HostFacts describes the local operating system.
type HostFacts struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	ID        string `json:"id"`
	VariantID string `json:"variant_id,omitempty"`
	Hostname  string `json:"hostname"`

	// Immutable is true on image-based (ostree) systems.
	Immutable bool `json:"immutable"`
}

// Backend returns the package backend matching the host.
func (h HostFacts) Backend() string {
	if h.Immutable {
		return BackendRPMOSTree
	}
	return BackendDNF
}

// DetectHost collects host facts below root ("/" for the running system).
func DetectHost(root string) (HostFacts, error) {
	facts := HostFacts{}

	data, err := os.ReadFile(filepath.Join(root, "etc", "os-release"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return facts, fmt.Errorf("failed to read os-release: %w", err)
	}
	for key, value := range parseOSRelease(string(data)) {
		switch key {
		case "NAME":
			facts.Name = value
		case "VERSION_ID":
			facts.Version = value
		case "ID":
			facts.ID = value
		case "VARIANT_ID":
			facts.VariantID = value
		}
	}

	if _, err := os.Stat(filepath.Join(root, "run", "ostree-booted")); err == nil {
		facts.Immutable = true
	}

	facts.Hostname, _ = os.Hostname()
	return facts, nil
}

// ResolveBackend returns configured unless it is empty or "auto", in which case
// the backend is derived from the host.
func ResolveBackend(configured string, facts HostFacts) (string, error) {
	switch configured {
	case "", "auto":
		return facts.Backend(), nil
	case BackendDNF, BackendRPMOSTree:
		return configured, nil
	default:
		return "", fmt.Errorf("unknown package backend %q", configured)
	}
}

func parseOSRelease(content string) map[string]string {
	out := make(map[string]string)
	for _, line := range lines(content) {
		if strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[key] = strings.Trim(value, `"'`)
	}
	return out
}
