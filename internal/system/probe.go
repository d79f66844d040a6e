// Package system answers questions about the local Mac by running the stock
// command-line tools (sysctl, pmset, fdesetup, sw_vers, ...).
package system

import (
	"context"
	"fmt"
	"net/http"
	"os/user"
	"regexp"
	"strconv"
	"strings"
	"time"

	"fleet-installer/internal/runner"
)

// Probe runs the queries. CPUThreshold is the 1-minute load average per core
// above which the machine counts as busy.
type Probe struct {
	Runner       runner.Runner
	HTTP         *http.Client
	CPUThreshold float64
}

// New returns a Probe that runs system tools through r and treats a load
// average per core above cpuThreshold as high.
func New(r runner.Runner, cpuThreshold float64) *Probe {
	return &Probe{
		Runner:       r,
		HTTP:         &http.Client{Timeout: 15 * time.Second},
		CPUThreshold: cpuThreshold,
	}
}

func (p *Probe) output(ctx context.Context, name string, args ...string) (string, error) {
	res, err := p.Runner.Run(ctx, runner.Command{Name: name, Args: args, Timeout: 30 * time.Second})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

var loadAvg = regexp.MustCompile(`\{\s*([0-9.]+)`)

// CPULoadHigh compares the 1-minute load average per core to CPUThreshold.
func (p *Probe) CPULoadHigh(ctx context.Context) (bool, error) {
	out, err := p.output(ctx, "/usr/sbin/sysctl", "-n", "vm.loadavg")
	if err != nil {
		return false, err
	}
	m := loadAvg.FindStringSubmatch(out)
	if m == nil {
		return false, fmt.Errorf("unexpected vm.loadavg %q", out)
	}
	load, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return false, err
	}

	cores := 1
	if out, err := p.output(ctx, "/usr/sbin/sysctl", "-n", "hw.ncpu"); err == nil {
		if n, err := strconv.Atoi(out); err == nil && n > 0 {
			cores = n
		}
	}
	return load/float64(cores) > p.CPUThreshold, nil
}

// OnBattery reports whether the machine is drawing from its battery.
func (p *Probe) OnBattery(ctx context.Context) (bool, error) {
	out, err := p.output(ctx, "/usr/bin/pmset", "-g", "batt")
	if err != nil {
		return false, err
	}
	return strings.Contains(out, "'Battery Power'"), nil
}

var batteryPercent = regexp.MustCompile(`(\d+)%`)

// BatteryPercent returns the charge level, or -1 when there is no battery.
func (p *Probe) BatteryPercent(ctx context.Context) (int, error) {
	out, err := p.output(ctx, "/usr/bin/pmset", "-g", "batt")
	if err != nil {
		return -1, err
	}
	m := batteryPercent.FindStringSubmatch(out)
	if m == nil {
		return -1, nil
	}
	return strconv.Atoi(m[1])
}

// Encrypting reports a FileVault encryption or decryption in progress.
func (p *Probe) Encrypting(ctx context.Context) (bool, error) {
	out, err := p.output(ctx, "/usr/bin/fdesetup", "status")
	if err != nil {
		return false, err
	}
	return strings.Contains(out, "Encryption in progress") || strings.Contains(out, "Decryption in progress"), nil
}

var displayAssertion = regexp.MustCompile(`(?m)^\s*PreventUserIdleDisplaySleep\s+(\d+)`)

// DisplaySleepPrevented reports an active display-sleep assertion, as held
// by presentation and video-call apps.
func (p *Probe) DisplaySleepPrevented(ctx context.Context) (bool, error) {
	out, err := p.output(ctx, "/usr/bin/pmset", "-g", "assertions")
	if err != nil {
		return false, err
	}
	m := displayAssertion.FindStringSubmatch(out)
	return m != nil && m[1] != "0", nil
}

// ConsoleUser returns the user at the login window, or "" when nobody is.
func (p *Probe) ConsoleUser(ctx context.Context) (string, error) {
	out, err := p.output(ctx, "/usr/bin/stat", "-f", "%Su", "/dev/console")
	if err != nil {
		return "", err
	}
	switch out {
	case "", "root", "loginwindow", "_mbsetupuser":
		return "", nil
	}
	return out, nil
}

// UserLoggedIn reports whether a user owns the console.
func (p *Probe) UserLoggedIn(ctx context.Context) (bool, error) {
	u, err := p.ConsoleUser(ctx)
	return u != "", err
}

// ConsoleUID returns the numeric id of the console user.
func (p *Probe) ConsoleUID(ctx context.Context) (string, error) {
	name, err := p.ConsoleUser(ctx)
	if err != nil || name == "" {
		return "", err
	}
	u, err := user.Lookup(name)
	if err != nil {
		return "", err
	}
	return u.Uid, nil
}

// OSVersion returns the macOS product version, e.g. 14.6.1.
func (p *Probe) OSVersion(ctx context.Context) (string, error) {
	return p.output(ctx, "/usr/bin/sw_vers", "-productVersion")
}

// KernelRelease returns the Darwin kernel release, e.g. 23.6.0.
func (p *Probe) KernelRelease(ctx context.Context) (string, error) {
	return p.output(ctx, "/usr/bin/uname", "-r")
}

// AppleSilicon reports an arm64 Mac, including when running under Rosetta.
func (p *Probe) AppleSilicon(ctx context.Context) (bool, error) {
	out, err := p.output(ctx, "/usr/sbin/sysctl", "-n", "hw.optional.arm64")
	if err != nil {
		// the key does not exist on Intel Macs
		return false, nil
	}
	return out == "1", nil
}

// SecurityChip reports a T1/T2 or Apple Silicon Mac, where firmware
// (bridgeOS) updates can ship alongside OS updates.
func (p *Probe) SecurityChip(ctx context.Context) (bool, error) {
	if arm, _ := p.AppleSilicon(ctx); arm {
		return true, nil
	}
	out, err := p.output(ctx, "/usr/sbin/system_profiler", "SPiBridgeDataType")
	if err != nil {
		return false, err
	}
	return strings.Contains(out, "Apple T1") || strings.Contains(out, "Apple T2"), nil
}

// CatalogURL returns the managed software update catalog, or "" for Apple's.
func (p *Probe) CatalogURL(ctx context.Context) (string, error) {
	out, err := p.output(ctx, "/usr/bin/defaults", "read", "/Library/Preferences/com.apple.SoftwareUpdate", "CatalogURL")
	if err != nil {
		return "", nil
	}
	return out, nil
}

// CatalogOffline reports whether a managed catalog fails to answer HEAD with
// 200. Machines using Apple's catalog are never considered offline.
func (p *Probe) CatalogOffline(ctx context.Context) (bool, error) {
	url, err := p.CatalogURL(ctx)
	if err != nil || url == "" {
		return false, err
	}
	release, _ := p.KernelRelease(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return true, err
	}
	req.Header.Set("User-Agent", "Darwin/"+release)
	client := p.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return true, nil
	}
	resp.Body.Close()
	return resp.StatusCode != http.StatusOK, nil
}
