// Package source classifies the payload of a mounted volume or extracted
// archive against an install destination.
package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound means nothing in the directory plausibly matches the destination.
var ErrNotFound = errors.New("no installable source found")

// Kind tags a Resolved source.
type Kind int

const (
	ApplicationBundle Kind = iota + 1
	PackageInstaller
	PlainFile
)

// String names the source kind for logs.
func (k Kind) String() string {
	switch k {
	case ApplicationBundle:
		return "application bundle"
	case PackageInstaller:
		return "package installer"
	case PlainFile:
		return "file"
	}
	return "unknown"
}

// Resolved is the classified payload. Version is filled in later for bundles.
type Resolved struct {
	Kind    Kind
	Path    string
	Version string
}

// Entry is one top-level item of a directory listing.
type Entry struct {
	Name  string
	IsDir bool
	// HasBundleDescriptor is true when Name/Contents/Info.plist exists.
	HasBundleDescriptor bool
}

// BundleDescriptor is the path, relative to a bundle, that marks it as one.
const BundleDescriptor = "Contents/Info.plist"

// List reads the top level of dir into Entries.
func List(dir string) ([]Entry, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	entries := make([]Entry, 0, len(items))
	for _, it := range items {
		e := Entry{Name: it.Name(), IsDir: it.IsDir()}
		if e.IsDir {
			if _, err := os.Stat(filepath.Join(dir, it.Name(), BundleDescriptor)); err == nil {
				e.HasBundleDescriptor = true
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Resolve lists dir and classifies it; see Classify.
func Resolve(dir, destination string) (Resolved, error) {
	entries, err := List(dir)
	if err != nil {
		return Resolved{}, err
	}
	r, err := Classify(entries, destination)
	if err != nil {
		return Resolved{}, fmt.Errorf("%s in %s: %w", filepath.Base(destination), dir, err)
	}
	r.Path = filepath.Join(dir, r.Path)
	return r, nil
}

// Classify picks, in order: a bundle named like the destination, the only
// top-level .pkg, or any entry named like the destination. Path in the result
// is the entry name. Anything ambiguous is ErrNotFound.
func Classify(entries []Entry, destination string) (Resolved, error) {
	base := filepath.Base(destination)

	for _, e := range entries {
		if e.Name == base && e.IsDir && e.HasBundleDescriptor {
			return Resolved{Kind: ApplicationBundle, Path: e.Name}, nil
		}
	}

	var pkgs []string
	for _, e := range entries {
		if strings.EqualFold(filepath.Ext(e.Name), ".pkg") {
			pkgs = append(pkgs, e.Name)
		}
	}
	if len(pkgs) == 1 {
		return Resolved{Kind: PackageInstaller, Path: pkgs[0]}, nil
	}

	for _, e := range entries {
		if e.Name == base {
			return Resolved{Kind: PlainFile, Path: e.Name}, nil
		}
	}
	return Resolved{}, ErrNotFound
}
