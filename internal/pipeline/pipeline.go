// Package pipeline runs the fixed install sequence for one artifact:
// upgrade check, overwrite check, download, extract, verify source, install,
// verify install, and an unconditional cleanup.
package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"fleet-installer/internal/archive"
	"fleet-installer/internal/bundle"
	"fleet-installer/internal/logger"
	"fleet-installer/internal/runner"
	"fleet-installer/internal/source"
	"fleet-installer/internal/version"
)

// Downloader fetches an artifact to a local path.
type Downloader interface {
	Download(ctx context.Context, url, dest, userAgent string) error
}

// Installer puts a resolved source at its destination.
type Installer interface {
	Install(ctx context.Context, src source.Resolved, destination string) error
}

// Matcher accepts an application bundle whose name differs from the destination.
type Matcher interface {
	Match(candidate source.Resolved) bool
}

// MatcherFunc adapts a function to Matcher.
type MatcherFunc func(candidate source.Resolved) bool

// Match calls f.
func (f MatcherFunc) Match(c source.Resolved) bool { return f(c) }

// VersionMatcher accepts bundles that declare the given target version. With
// no target it accepts nothing.
func VersionMatcher(target string) Matcher {
	want := version.Parse(target)
	return MatcherFunc(func(c source.Resolved) bool {
		if target == "" {
			return false
		}
		return c.Version != "" && version.Parse(c.Version).Eq(want)
	})
}

// Pipeline holds the collaborators shared by every run of one Kind.
type Pipeline struct {
	Kind       Kind
	Runner     runner.Runner
	Downloader Downloader
	Installer  Installer
	Bundles    bundle.Reader
	// DownloadDir and TempDir default to os.TempDir().
	DownloadDir string
	TempDir     string

	newSession func() *archive.Session
}

// Report is the result of Execute.
type Report struct {
	RunID      string
	Outcome    Outcome
	Stage      string
	Message    string
	Err        error
	CleanupErr error
	// Version is the target version the run worked towards, if known.
	Version string
}

// ExitCode is 0 only when the run succeeded and cleanup released everything.
func (r Report) ExitCode() int {
	if r.Outcome == Success && r.CleanupErr == nil {
		return 0
	}
	return 1
}

type stage struct {
	name string
	fn   func(ctx context.Context, run *Run) Result
}

func (p *Pipeline) stages() []stage {
	return []stage{
		{"upgrade-check", p.upgradeCheck},
		{"overwrite-check", p.overwriteCheck},
		{"download", p.download},
		{"extract", p.extract},
		{"verify-source", p.verifySource},
		{"install", p.install},
		{"verify-install", p.verifyInstall},
	}
}

// Execute runs every stage until one stops the run, then always cleans up.
func (p *Pipeline) Execute(ctx context.Context, req Request) Report {
	run := &Run{
		ID:      uuid.NewString(),
		Request: req,
		Session: p.session(),
		Target:  req.Target,
	}
	logger.Debug("[DEBUG] Run %s: %s %s -> %s\n", run.ID, p.Kind.Name(), req.URL, req.Destination)

	rep := Report{RunID: run.ID, Outcome: Failure}
	for _, st := range p.stages() {
		res := st.fn(ctx, run)
		logger.Debug("[DEBUG] Stage %s: %s\n", st.name, res.Outcome)
		if res.Outcome == Continue {
			continue
		}
		rep.Outcome, rep.Stage, rep.Message, rep.Err = res.Outcome, st.name, res.Message, res.Err
		break
	}

	// cleanup uses a fresh context so a cancelled run still releases mounts
	cctx := context.WithoutCancel(ctx)
	if err := p.Kind.Cleanup(cctx, p, run); err != nil {
		rep.CleanupErr = err
		logger.Error("[ERROR] Cleanup failed: %v\n", err)
	}
	rep.Version = run.Target
	return rep
}

func (p *Pipeline) session() *archive.Session {
	if p.newSession != nil {
		return p.newSession()
	}
	s := archive.NewSession(p.Runner)
	s.TempDir = p.TempDir
	return s
}

func (p *Pipeline) upgradeCheck(ctx context.Context, run *Run) Result {
	if run.Request.Overwrite {
		return next()
	}
	installed := run.Request.Installed
	if installed == "" && bundle.IsBundle(run.Request.Destination) {
		if v, err := p.Bundles.Version(ctx, run.Request.Destination); err == nil {
			installed = v
		} else {
			logger.Debug("[DEBUG] Cannot read installed version of %s: %v\n", run.Request.Destination, err)
		}
	}
	if installed == "" || run.Target == "" {
		return next()
	}

	inst := version.Parse(installed)
	if inst.Gte(version.Parse(run.Target)) {
		return done("%s is up to date (installed %s, current %s)",
			filepath.Base(run.Request.Destination), installed, run.Target)
	}
	if inst.IsZero() {
		logger.Debug("[DEBUG] Installed version %q of %s has no numeric part, treating it as older\n", installed, run.Request.Destination)
	}
	logger.Info("[INFO] Upgrading %s from %s to %s\n", filepath.Base(run.Request.Destination), installed, run.Target)
	run.Upgrade = true
	return next()
}

func (p *Pipeline) overwriteCheck(_ context.Context, run *Run) Result {
	if run.Upgrade || run.Request.Overwrite {
		return next()
	}
	if _, err := os.Lstat(run.Request.Destination); err == nil {
		return done("%s already exists; use --overwrite to replace it", run.Request.Destination)
	}
	return next()
}

func (p *Pipeline) download(ctx context.Context, run *Run) Result {
	logger.Info("[INFO] Downloading %s\n", run.Request.URL)
	if err := p.Kind.Download(ctx, p, run); err != nil {
		return fail(err)
	}
	return next()
}

func (p *Pipeline) extract(ctx context.Context, run *Run) Result {
	if err := p.Kind.Extract(ctx, p, run); err != nil {
		return fail(err)
	}
	return next()
}

func (p *Pipeline) verifySource(ctx context.Context, run *Run) Result {
	src, err := p.Kind.Source(ctx, p, run)
	if err != nil {
		return fail(err)
	}
	if src.Kind == source.ApplicationBundle && src.Version == "" {
		if v, err := p.Bundles.Version(ctx, src.Path); err == nil {
			src.Version = v
		}
	}
	if src.Kind == source.ApplicationBundle && run.Target != "" && src.Version != "" &&
		!version.Parse(src.Version).Eq(version.Parse(run.Target)) {
		return failf("Source Version (%s) != Target Version (%s)!", src.Version, run.Target)
	}
	if run.Target == "" && src.Version != "" {
		run.Target = src.Version
	}
	logger.Debug("[DEBUG] Source is %s %s (version %q)\n", src.Kind, src.Path, src.Version)
	run.Source = &src
	return next()
}

func (p *Pipeline) install(ctx context.Context, run *Run) Result {
	if err := p.Kind.Install(ctx, p, run); err != nil {
		return fail(err)
	}
	return next()
}

func (p *Pipeline) verifyInstall(ctx context.Context, run *Run) Result {
	dest := run.Request.Destination
	if _, err := os.Lstat(dest); err != nil {
		return failf("%s was not installed", dest)
	}
	if run.Target == "" || !bundle.IsBundle(dest) {
		return done("Installed %s", dest)
	}

	got, err := p.Bundles.Version(ctx, dest)
	if err != nil || got == "" {
		return failf("Cannot read new version number!")
	}
	if !version.Parse(got).Eq(version.Parse(run.Target)) {
		return failf("New Version (%s) != Target Version (%s)!", got, run.Target)
	}
	return done("Installed %s %s", dest, got)
}
