package softwareupdate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"fleet-installer/internal/logger"
	"fleet-installer/internal/pipeline"
	"fleet-installer/internal/report"
	"fleet-installer/internal/runner"
	"fleet-installer/internal/wait"
)

const (
	softwareUpdateBin = "/usr/sbin/softwareupdate"
	preferencePane    = "/System/Library/PreferencePanes/SoftwareUpdate.prefPane"

	DefaultTimeout = 7200 * time.Second
	DefaultWait    = 60
)

// Options are the softwareupdate command flags.
type Options struct {
	List     bool
	Count    bool
	Summary  bool
	Download bool
	Install  bool
	NoScan   bool
	JSON     bool
	// Wait is how many seconds to wait for conditions before installing.
	Wait int
	// Skip names wait conditions to ignore.
	Skip    map[string]bool
	Timeout time.Duration
}

// Facts is what the orchestrator needs to know about the machine.
type Facts interface {
	AppleSilicon(ctx context.Context) (bool, error)
	ConsoleUser(ctx context.Context) (string, error)
	ConsoleUID(ctx context.Context) (string, error)
	OnBattery(ctx context.Context) (bool, error)
	BatteryPercent(ctx context.Context) (int, error)
	Encrypting(ctx context.Context) (bool, error)
	DisplaySleepPrevented(ctx context.Context) (bool, error)
	CatalogURL(ctx context.Context) (string, error)
	CatalogOffline(ctx context.Context) (bool, error)
	Conditions(names ...string) ([]wait.Condition, error)
}

// Scheduler runs a shell command later, outside this process.
type Scheduler interface {
	Schedule(ctx context.Context, command string) error
}

// At schedules through at(1) two minutes out, leaving time for this process
// and the management agent around it to finish logging.
type At struct {
	Runner runner.Runner
}

// Schedule queues command with at(1) to run two minutes from now.
func (a At) Schedule(ctx context.Context, command string) error {
	_, err := a.Runner.Run(ctx, runner.Command{
		Name:    "/usr/bin/at",
		Args:    []string{"now", "+", "2", "minutes"},
		Stdin:   command + "\n",
		Timeout: 30 * time.Second,
	})
	return err
}

// Orchestrator scans once per run and routes to list, count, summary,
// download or install.
type Orchestrator struct {
	Runner    runner.Runner
	Parser    Parser
	Facts     Facts
	Report    *report.Report
	Scheduler Scheduler
	Options   Options
	// Out receives human listings; logger output carries progress.
	Out io.Writer
	// WaitInterval overrides the one-second condition poll, for tests.
	WaitInterval time.Duration

	items   []Item
	scanned bool
}

// Updates runs the scan on first use and returns the memoized items.
func (o *Orchestrator) Updates(ctx context.Context) ([]Item, error) {
	if o.scanned {
		return o.items, nil
	}
	args := []string{"--list", "--all"}
	if o.Options.NoScan {
		args = append(args, "--no-scan")
	}
	res, err := o.softwareupdate(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("softwareupdate scan: %w", err)
	}
	// the listing goes to stdout, progress chatter to stderr
	o.items = o.Parser.Parse(res.Stdout)
	o.scanned = true
	return o.items, nil
}

func (o *Orchestrator) softwareupdate(ctx context.Context, args ...string) (runner.Result, error) {
	timeout := o.Options.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return o.Runner.Run(ctx, runner.Command{
		Name:        softwareUpdateBin,
		Args:        args,
		Timeout:     timeout,
		IdleTimeout: timeout,
	})
}

func (o *Orchestrator) add(key string, value any) {
	if o.Report == nil {
		return
	}
	if err := o.Report.Add(key, value); err != nil {
		logger.Debug("[DEBUG] %v\n", err)
	}
}

func (o *Orchestrator) printf(format string, a ...any) {
	if o.Out == nil || o.Options.JSON {
		return
	}
	fmt.Fprintf(o.Out, format, a...)
}

func success(format string, a ...any) pipeline.Result {
	return pipeline.Result{Outcome: pipeline.Success, Message: fmt.Sprintf(format, a...)}
}

func failure(err error) pipeline.Result {
	return pipeline.Result{Outcome: pipeline.Failure, Message: err.Error(), Err: err}
}

// Execute runs the requested action. It never returns Continue: an install
// that needs a restart or halt goes on to schedule it here.
func (o *Orchestrator) Execute(ctx context.Context) pipeline.Result {
	arm, err := o.Facts.AppleSilicon(ctx)
	if err != nil {
		logger.Debug("[DEBUG] Cannot tell CPU architecture, assuming Intel: %v\n", err)
	}
	o.add("apple_silicon", arm)

	if o.Options.NoScan {
		logger.Info("[INFO] Reading previously scanned updates\n")
	} else {
		logger.Info("[INFO] Finding available software\n")
	}
	items, err := o.Updates(ctx)
	if err != nil {
		logger.Error("[ERROR] %v\n", err)
		o.add("scan", !o.Options.NoScan)
		o.add("count", false)
		o.add("error", true)
		return failure(err)
	}
	if o.Options.NoScan {
		o.add("scan", nil)
	} else {
		o.add("scan", true)
	}
	o.add("count", len(items))

	switch {
	case o.Options.Summary:
		return o.summary(ctx, items)
	case o.Options.List:
		return o.list(items)
	case o.Options.Count:
		o.printf("There are %d updates pending.\n", len(items))
		return success("%d updates pending", len(items))
	case len(items) == 0:
		logger.Info("[INFO] No new software available.\n")
		return success("No new software available.")
	case o.Options.Download:
		return o.download(ctx, items, arm)
	case o.Options.Install:
		if res := o.wait(ctx, arm); res.Outcome != pipeline.Continue {
			return res
		}
		res := o.install(ctx, items, arm)
		if res.Outcome != pipeline.Continue {
			return res
		}
		return o.restart(ctx, items)
	}
	return failure(errors.New("no action was requested"))
}

func (o *Orchestrator) list(items []Item) pipeline.Result {
	o.add("updates", items)
	if len(items) == 0 {
		o.printf("No new software available.\n")
		return success("No new software available.")
	}
	for _, it := range items {
		line := fmt.Sprintf("  %s (%s) [%dK]", it.Name, it.ID, it.SizeKB)
		if it.Recommended {
			line += "[Recommended]"
		}
		if it.Firmware {
			line += "[BridgeOS]"
		}
		if it.Restart {
			line += "[Restart]"
		}
		if it.Halt {
			line += "[Shutdown]"
		}
		o.printf("%s\n", line)
	}
	return success("%d updates listed", len(items))
}

func (o *Orchestrator) download(ctx context.Context, items []Item, arm bool) pipeline.Result {
	o.add("action", "download")
	if arm {
		err := errors.New("Apple Silicon devices do not support automated downloads via softwareupdate")
		logger.Error("[ERROR] %v\n", err)
		for _, it := range items {
			o.add("download", map[string]any{it.Name: err.Error()})
		}
		return failure(err)
	}

	var failed []string
	for _, it := range items {
		logger.Info("[INFO] Downloading %s\n", it.Name)
		res, err := o.softwareupdate(ctx, "--download", it.ID, "--no-scan")
		if err != nil {
			logger.Error("[ERROR] Download of %s failed: %s\n", it.Name, errorOutput(res, err))
			o.add("download", map[string]any{it.Name: errorLines(res, err)})
			failed = append(failed, it.Name)
			continue
		}
		o.add("download", map[string]any{it.Name: true})
	}
	if len(failed) > 0 {
		return failure(fmt.Errorf("download failed for: %s", strings.Join(failed, ", ")))
	}
	return success("Downloaded %d updates", len(items))
}

// waitConditions lists the conditions an install waits for, minus skips.
func (o *Orchestrator) waitConditions(arm bool) []string {
	var names []string
	for _, n := range []string{wait.CPU, wait.User, wait.Power, wait.Screen, wait.FileVault, wait.Catalog} {
		if o.Options.Skip[n] {
			continue
		}
		// nobody can approve the install on Apple Silicon without a user
		if arm && n == wait.User {
			continue
		}
		names = append(names, n)
	}
	return names
}

func (o *Orchestrator) wait(ctx context.Context, arm bool) pipeline.Result {
	logger.Info("[INFO] Checking wait conditions\n")
	conds, err := o.Facts.Conditions(o.waitConditions(arm)...)
	if err != nil {
		return failure(err)
	}
	w := wait.New(conds...)
	if o.WaitInterval > 0 {
		w.Interval = o.WaitInterval
	}
	err = w.Wait(ctx, o.Options.Wait)
	o.add("wait", w.States())

	var blocked *wait.BlockedError
	if errors.As(err, &blocked) {
		for _, n := range blocked.Names {
			logger.Warn("[WARN]   Waiting for %s\n", n)
		}
		return failure(err)
	}
	if err != nil {
		return failure(err)
	}
	return pipeline.Result{Outcome: pipeline.Continue}
}

func (o *Orchestrator) install(ctx context.Context, items []Item, arm bool) pipeline.Result {
	if arm {
		return o.openPreferencePane(ctx, items)
	}

	var (
		remains []string
		failed  []string
	)
	for _, it := range items {
		if it.Pending() {
			remains = append(remains, it.Name)
			continue
		}
		logger.Info("[INFO] Installing %s\n", it.Name)
		res, err := o.softwareupdate(ctx, "--install", it.ID, "--no-scan")
		if err != nil {
			logger.Error("[ERROR] Install of %s failed: %s\n", it.Name, errorOutput(res, err))
			o.add("install", map[string]any{it.Name: errorLines(res, err)})
			failed = append(failed, it.Name)
			continue
		}
		o.add("install", map[string]any{it.Name: true})
	}
	if len(failed) > 0 {
		return failure(fmt.Errorf("install failed for: %s", strings.Join(failed, ", ")))
	}
	if len(remains) == 0 {
		return success("Installed %d updates", len(items))
	}

	logger.Info("[INFO] Installing remaining updates\n")
	res, err := o.softwareupdate(ctx, "--install", "--all", "--no-scan")
	if err != nil {
		lines := errorLines(res, err)
		logger.Error("[ERROR] Install of remaining updates failed: %s\n", errorOutput(res, err))
		o.add("install", fill(remains, lines))
		return failure(fmt.Errorf("install failed for: %s", strings.Join(remains, ", ")))
	}
	logger.Debug("[DEBUG] %s\n", strings.TrimSpace(res.Stdout))
	o.add("install", fill(remains, true))
	return pipeline.Result{Outcome: pipeline.Continue}
}

// openPreferencePane is the Apple Silicon install path: installs there need
// the user's approval, so the pane is opened for them instead.
func (o *Orchestrator) openPreferencePane(ctx context.Context, items []Item) pipeline.Result {
	logger.Info("[INFO] Opening Software Update preference pane\n")
	for _, it := range items {
		o.add("install", map[string]any{it.Name: nil})
	}

	user, _ := o.Facts.ConsoleUser(ctx)
	if user == "" {
		o.add("action", map[string]any{"preference_pane": false})
		logger.Warn("[WARN] No console user, Software Update was not opened\n")
		return success("No console user to open Software Update for")
	}
	uid, err := o.Facts.ConsoleUID(ctx)
	if err != nil {
		o.add("action", map[string]any{"preference_pane": false})
		return failure(fmt.Errorf("console user %s: %w", user, err))
	}
	_, err = o.Runner.Run(ctx, runner.Command{
		Name:    "/bin/launchctl",
		Args:    []string{"asuser", uid, "/usr/bin/sudo", "-u", user, "/usr/bin/open", preferencePane},
		Timeout: time.Minute,
	})
	if err != nil {
		o.add("action", map[string]any{"preference_pane": false})
		return failure(fmt.Errorf("open Software Update for %s: %w", user, err))
	}
	o.add("action", map[string]any{"preference_pane": user})
	return success("Opened Software Update for %s", user)
}

// restart schedules a halt when any update is halt-type or firmware, and a
// restart otherwise.
func (o *Orchestrator) restart(ctx context.Context, items []Item) pipeline.Result {
	key, flag, verb := "restart", "-r", "restart"
	for _, it := range items {
		if it.Halt || it.Firmware {
			key, flag, verb = "halt", "-h", "shutdown"
			break
		}
	}
	o.add(key, true)
	logger.Info("[INFO] Triggering system %s\n", verb)

	if err := o.Scheduler.Schedule(ctx, fmt.Sprintf("shutdown %s +2m", flag)); err != nil {
		o.add(key, false)
		logger.Error("[ERROR] Could not schedule %s: %v\n", verb, err)
		return failure(fmt.Errorf("schedule %s: %w", verb, err))
	}
	return success("Updates installed, %s in 2 minutes", verb)
}

func fill(names []string, v any) map[string]any {
	m := make(map[string]any, len(names))
	for _, n := range names {
		m[n] = v
	}
	return m
}

func errorOutput(res runner.Result, err error) string {
	if out := res.Output(); out != "" {
		return out
	}
	return err.Error()
}

func errorLines(res runner.Result, err error) []string {
	var lines []string
	for _, l := range strings.Split(errorOutput(res, err), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
