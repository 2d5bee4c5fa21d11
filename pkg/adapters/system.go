package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/openfroyo/hostsync/pkg/manifest"
)

// DefaultReposDir is where dnf keeps repository definitions.
const DefaultReposDir = "/etc/yum.repos.d"

const coprRepoPrefix = "_copr:"

// ErrUnsupportedOnBackend is returned for operations a backend cannot perform.
var ErrUnsupportedOnBackend = errors.New("not supported by package backend")

// System manages packages, groups and COPR repositories through dnf or rpm-ostree.
type System struct {
	runner     CommandRunner
	privileged CommandRunner
	backend    string
	reposDir   string
}

// SystemOption configures a System adapter.
type SystemOption func(*System)

// WithReposDir overrides the repository directory scanned for COPR repositories.
func WithReposDir(dir string) SystemOption {
	return func(s *System) { s.reposDir = dir }
}

// WithPrivilegedRunner sets the runner used for mutations, typically WithSudo(runner).
func WithPrivilegedRunner(r CommandRunner) SystemOption {
	return func(s *System) { s.privileged = r }
}

// NewSystem returns a system adapter that scans with backend.
func NewSystem(runner CommandRunner, backend string, opts ...SystemOption) *System {
	s := &System{
		runner:     runner,
		privileged: runner,
		backend:    backend,
		reposDir:   DefaultReposDir,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns enabled COPR repositories, installed groups and user-requested
// packages, in that order.
func (s *System) List(ctx context.Context) ([]manifest.SystemItem, error) {
	var items []manifest.SystemItem

	coprs, err := s.listCopr()
	if err != nil {
		return nil, err
	}
	for _, c := range coprs {
		items = append(items, manifest.SystemItem{Kind: manifest.SystemKindCopr, Name: c})
	}

	if s.backend != BackendRPMOSTree {
		groups, err := s.listGroups(ctx)
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			items = append(items, manifest.SystemItem{Kind: manifest.SystemKindGroup, Name: g})
		}
	}

	packages, err := s.listPackages(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range packages {
		items = append(items, manifest.SystemItem{Kind: manifest.SystemKindPackage, Name: p})
	}
	return items, nil
}

// IsPresent reports whether item is currently on the system.
func (s *System) IsPresent(ctx context.Context, item manifest.SystemItem) (bool, error) {
	if item.Kind == manifest.SystemKindPackage {
		_, err := s.runner.Run(ctx, "rpm", "-q", "--quiet", item.Name)
		if err == nil {
			return true, nil
		}
		if ExitCode(err) > 0 {
			return false, nil
		}
		return false, fmt.Errorf("failed to query package %s: %w", item.Name, err)
	}

	items, err := s.List(ctx)
	if err != nil {
		return false, err
	}
	for _, i := range items {
		if i == item {
			return true, nil
		}
	}
	return false, nil
}

// Install adds item using backend.
func (s *System) Install(ctx context.Context, backend string, item manifest.SystemItem) error {
	args, err := installArgs(backend, item)
	if err != nil {
		return err
	}
	_, err = s.privileged.Run(ctx, args[0], args[1:]...)
	return err
}

// Remove takes item off the system using backend.
func (s *System) Remove(ctx context.Context, backend string, item manifest.SystemItem) error {
	args, err := removeArgs(backend, item)
	if err != nil {
		return err
	}
	_, err = s.privileged.Run(ctx, args[0], args[1:]...)
	return err
}

func installArgs(backend string, item manifest.SystemItem) ([]string, error) {
	switch item.Kind {
	case manifest.SystemKindPackage:
		if backend == BackendRPMOSTree {
			return []string{"rpm-ostree", "install", "--idempotent", "--allow-inactive", "-y", item.Name}, nil
		}
		return []string{"dnf", "install", "-y", item.Name}, nil
	case manifest.SystemKindGroup:
		if backend == BackendRPMOSTree {
			return nil, fmt.Errorf("group %s: %w", item.Name, ErrUnsupportedOnBackend)
		}
		return []string{"dnf", "group", "install", "-y", item.Name}, nil
	case manifest.SystemKindCopr:
		if backend == BackendRPMOSTree {
			return nil, fmt.Errorf("copr %s: %w", item.Name, ErrUnsupportedOnBackend)
		}
		return []string{"dnf", "copr", "enable", "-y", item.Name}, nil
	default:
		return nil, fmt.Errorf("unknown system item kind %q", item.Kind)
	}
}

func removeArgs(backend string, item manifest.SystemItem) ([]string, error) {
	switch item.Kind {
	case manifest.SystemKindPackage:
		if backend == BackendRPMOSTree {
			return []string{"rpm-ostree", "uninstall", "--idempotent", "-y", item.Name}, nil
		}
		return []string{"dnf", "remove", "-y", item.Name}, nil
	case manifest.SystemKindGroup:
		if backend == BackendRPMOSTree {
			return nil, fmt.Errorf("group %s: %w", item.Name, ErrUnsupportedOnBackend)
		}
		return []string{"dnf", "group", "remove", "-y", item.Name}, nil
	case manifest.SystemKindCopr:
		if backend == BackendRPMOSTree {
			return nil, fmt.Errorf("copr %s: %w", item.Name, ErrUnsupportedOnBackend)
		}
		return []string{"dnf", "copr", "remove", "-y", item.Name}, nil
	default:
		return nil, fmt.Errorf("unknown system item kind %q", item.Kind)
	}
}

// listCopr derives "owner/project" names from repository files such as
// _copr:copr.fedorainfracloud.org:atim:starship.repo.
func (s *System) listCopr() ([]string, error) {
	entries, err := os.ReadDir(s.reposDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read repository directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, coprRepoPrefix) || !strings.HasSuffix(name, ".repo") {
			continue
		}
		parts := strings.Split(strings.TrimSuffix(strings.TrimPrefix(name, coprRepoPrefix), ".repo"), ":")
		if len(parts) < 3 {
			continue
		}
		owner, project := parts[len(parts)-2], parts[len(parts)-1]
		// group projects are stored with the "group_" prefix and declared with "@".
		if strings.HasPrefix(owner, "group_") {
			owner = "@" + strings.TrimPrefix(owner, "group_")
		}
		names = append(names, owner+"/"+project)
	}
	sort.Strings(names)
	return names, nil
}

func (s *System) listGroups(ctx context.Context) ([]string, error) {
	out, err := s.runner.Run(ctx, "dnf", "group", "list", "--installed", "--quiet")
	if err != nil {
		return nil, fmt.Errorf("failed to list package groups: %w", err)
	}
	var groups []string
	for _, fields := range columns(out) {
		if fields[0] == "ID" {
			continue
		}
		groups = append(groups, fields[0])
	}
	return groups, nil
}

// rpmOSTreeStatus is the part of `rpm-ostree status --json` that is read.
type rpmOSTreeStatus struct {
	Deployments []struct {
		Booted                 bool     `json:"booted"`
		RequestedPackages      []string `json:"requested-packages"`
		RequestedLocalPackages []string `json:"requested-local-packages"`
	} `json:"deployments"`
}

func (s *System) listPackages(ctx context.Context) ([]string, error) {
	if s.backend == BackendRPMOSTree {
		out, err := s.runner.Run(ctx, "rpm-ostree", "status", "--json")
		if err != nil {
			return nil, fmt.Errorf("failed to read rpm-ostree status: %w", err)
		}
		var status rpmOSTreeStatus
		if err := json.Unmarshal([]byte(out), &status); err != nil {
			return nil, fmt.Errorf("failed to parse rpm-ostree status: %w", err)
		}
		// The first deployment is the one that becomes active next.
		if len(status.Deployments) == 0 {
			return nil, nil
		}
		pkgs := append([]string{}, status.Deployments[0].RequestedPackages...)
		sort.Strings(pkgs)
		return pkgs, nil
	}

	out, err := s.runner.Run(ctx, "dnf", "repoquery", "--userinstalled", "--queryformat", "%{name}\n")
	if err != nil {
		return nil, fmt.Errorf("failed to list user-installed packages: %w", err)
	}
	seen := make(map[string]struct{})
	var pkgs []string
	for _, name := range lines(out) {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		pkgs = append(pkgs, name)
	}
	sort.Strings(pkgs)
	return pkgs, nil
}
