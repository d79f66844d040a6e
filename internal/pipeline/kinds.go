package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"

	"fleet-installer/internal/archive"
	"fleet-installer/internal/source"
)

// Kind supplies the artifact-specific steps of a run.
type Kind interface {
	Name() string
	Download(ctx context.Context, p *Pipeline, run *Run) error
	Extract(ctx context.Context, p *Pipeline, run *Run) error
	Source(ctx context.Context, p *Pipeline, run *Run) (source.Resolved, error)
	Install(ctx context.Context, p *Pipeline, run *Run) error
	Cleanup(ctx context.Context, p *Pipeline, run *Run) error
}

// KindFor picks a Kind from an artifact file name or URL.
func KindFor(name string) (Kind, error) {
	lower := strings.ToLower(artifactName(name))
	switch {
	case strings.HasSuffix(lower, ".dmg"):
		return DMG{}, nil
	case strings.HasSuffix(lower, ".pkg"):
		return PKG{}, nil
	case strings.HasSuffix(lower, ".zip"):
		return ZIP{}, nil
	case archive.DetectFormat(lower) != archive.FormatUnknown:
		return Archive{}, nil
	}
	return nil, fmt.Errorf("cannot tell installer kind of %q", name)
}

// KindByName maps "dmg", "pkg", "zip" and "archive" to a Kind.
func KindByName(name string) (Kind, error) {
	switch strings.ToLower(name) {
	case "dmg":
		return DMG{}, nil
	case "pkg":
		return PKG{}, nil
	case "zip":
		return ZIP{}, nil
	case "archive":
		return Archive{}, nil
	}
	return nil, fmt.Errorf("unknown installer kind %q", name)
}

// artifactName is the last path element of a URL or file path, without query.
func artifactName(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return filepath.Base(raw)
}

// base holds the steps shared by every kind.
type base struct{}

func (base) download(ctx context.Context, p *Pipeline, run *Run, ext string) error {
	dir, err := os.MkdirTemp(p.DownloadDir, "fleet-download-")
	if err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}
	run.artifactDir = dir

	name := artifactName(run.Request.URL)
	if name == "" || name == "." || name == "/" {
		name = "artifact"
	}
	if ext != "" && !strings.HasSuffix(strings.ToLower(name), ext) {
		name += ext
	}
	run.Artifact = filepath.Join(dir, name)
	return p.Downloader.Download(ctx, run.Request.URL, run.Artifact, run.Request.UserAgent)
}

// Install hands the resolved source to the pipeline's Installer.
func (base) Install(ctx context.Context, p *Pipeline, run *Run) error {
	return p.Installer.Install(ctx, *run.Source, run.Request.Destination)
}

// Source resolves run.Dir. When nothing is named like the destination and the
// run has a target version, any bundle declaring that version is accepted.
func (base) Source(ctx context.Context, p *Pipeline, run *Run) (source.Resolved, error) {
	r, err := source.Resolve(run.Dir, run.Request.Destination)
	if err == nil || !errors.Is(err, source.ErrNotFound) || run.Target == "" {
		return r, err
	}
	m := VersionMatcher(run.Target)

	entries, lerr := source.List(run.Dir)
	if lerr != nil {
		return source.Resolved{}, lerr
	}
	for _, e := range entries {
		if !e.HasBundleDescriptor {
			continue
		}
		cand := source.Resolved{Kind: source.ApplicationBundle, Path: filepath.Join(run.Dir, e.Name)}
		if v, verr := p.Bundles.Version(ctx, cand.Path); verr == nil {
			cand.Version = v
		}
		if m.Match(cand) {
			return cand, nil
		}
	}
	return source.Resolved{}, err
}

// Cleanup releases the session's mounts and extractions and deletes the artifact.
func (base) Cleanup(ctx context.Context, p *Pipeline, run *Run) error {
	var merr *multierror.Error
	if run.Session != nil {
		if err := run.Session.Release(ctx); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if run.artifactDir != "" {
		if err := os.RemoveAll(run.artifactDir); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("remove artifact %s: %w", run.Artifact, err))
		}
	}
	return merr.ErrorOrNil()
}

// DMG mounts a disk image and installs from its volume.
type DMG struct{ base }

// Name returns "dmg".
func (DMG) Name() string { return "dmg" }

// Download saves the image with a .dmg extension so hdiutil accepts it.
func (k DMG) Download(ctx context.Context, p *Pipeline, run *Run) error {
	return k.download(ctx, p, run, ".dmg")
}

// Extract mounts the image and uses its volume as the source directory.
func (DMG) Extract(ctx context.Context, _ *Pipeline, run *Run) error {
	h, err := run.Session.Mount(ctx, run.Artifact)
	if err != nil {
		return err
	}
	run.Dir = h.Volume
	return nil
}

// PKG installs the downloaded package directly.
type PKG struct{ base }

// Name returns "pkg".
func (PKG) Name() string { return "pkg" }

// Download saves the package with a .pkg extension.
func (k PKG) Download(ctx context.Context, p *Pipeline, run *Run) error {
	return k.download(ctx, p, run, ".pkg")
}

// Extract does nothing; packages install as downloaded.
func (PKG) Extract(context.Context, *Pipeline, *Run) error { return nil }

// Source is the downloaded package itself.
func (PKG) Source(_ context.Context, _ *Pipeline, run *Run) (source.Resolved, error) {
	if _, err := os.Stat(run.Artifact); err != nil {
		return source.Resolved{}, err
	}
	return source.Resolved{Kind: source.PackageInstaller, Path: run.Artifact}, nil
}

// ZIP expands with the system unzip.
type ZIP struct{ base }

// Name returns "zip".
func (ZIP) Name() string { return "zip" }

// Download saves the archive with a .zip extension.
func (k ZIP) Download(ctx context.Context, p *Pipeline, run *Run) error {
	return k.download(ctx, p, run, ".zip")
}

// Extract unzips into a fresh directory owned by the run's session.
func (ZIP) Extract(ctx context.Context, _ *Pipeline, run *Run) error {
	h, err := run.Session.Extract(ctx, run.Artifact)
	if err != nil {
		return err
	}
	run.Dir = h.Dir
	return nil
}

// Archive expands 7z, tar and compressed tar files in-process.
type Archive struct{ base }

// Name returns "archive".
func (Archive) Name() string { return "archive" }

// Download rejects URLs without a recognised archive extension, since the
// extension selects the extractor.
func (k Archive) Download(ctx context.Context, p *Pipeline, run *Run) error {
	if archive.DetectFormat(artifactName(run.Request.URL)) == archive.FormatUnknown {
		return fmt.Errorf("unsupported archive format: %s", run.Request.URL)
	}
	return k.download(ctx, p, run, "")
}

// Extract expands the archive in-process into a fresh directory.
func (Archive) Extract(ctx context.Context, _ *Pipeline, run *Run) error {
	h, err := run.Session.ExtractNative(ctx, run.Artifact)
	if err != nil {
		return err
	}
	run.Dir = h.Dir
	return nil
}
