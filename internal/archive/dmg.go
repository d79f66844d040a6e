package archive

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"fleet-installer/internal/logger"
	"fleet-installer/internal/poll"
)

const hdiutil = "/usr/bin/hdiutil"

const defaultMountRoot = "/Volumes"

// attachPattern matches "/dev/disk4s2   Apple_HFS   /Volumes/Firefox" for
// the given mount root.
func attachPattern(root string) *regexp.Regexp {
	return regexp.MustCompile(`^/dev/(\S+)\s+([^/]*)(` + regexp.QuoteMeta(root) + `/.*)$`)
}

// Mount attaches dmg without showing it in Finder. Mounting the same image
// twice in a session returns the first handle.
func (s *Session) Mount(ctx context.Context, dmg string) (MountHandle, error) {
	s.init()
	if h, ok := s.mounts[dmg]; ok {
		logger.Debug("[DEBUG] %s already mounted at %s\n", dmg, h.Volume)
		return h, nil
	}

	args := []string{"attach", "-nobrowse"}
	root := defaultMountRoot
	if s.MountRoot != "" {
		root = strings.TrimRight(s.MountRoot, "/")
		args = append(args, "-mountroot", root)
	}
	res, err := s.Runner.Run(ctx, s.command(hdiutil, append(args, dmg)...))
	if err != nil {
		return MountHandle{}, &ResourceError{Op: "mount", Path: dmg, Output: res.Stdout + res.Stderr, Err: err}
	}

	h, ok := parseAttach(res.Stdout, root)
	if !ok {
		return MountHandle{}, &ResourceError{
			Op:     "mount",
			Path:   dmg,
			Output: res.Stdout + res.Stderr,
			Err:    errors.New("no mounted volume in hdiutil output"),
		}
	}
	h.Image = dmg

	s.mounts[dmg] = h
	s.mountOrder = append(s.mountOrder, dmg)
	logger.Debug("[DEBUG] Mounted %s on %s (%s)\n", dmg, h.Volume, h.Device)
	return h, nil
}

func parseAttach(out, root string) (MountHandle, bool) {
	pattern := attachPattern(root)
	for _, line := range strings.Split(out, "\n") {
		m := pattern.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		return MountHandle{Device: m[1], Volume: strings.TrimSpace(m[3])}, true
	}
	return MountHandle{}, false
}

// Unmount detaches h and waits, bounded, for its volume directory to disappear.
func (s *Session) Unmount(ctx context.Context, h MountHandle) error {
	s.init()
	res, detachErr := s.Runner.Run(ctx, s.command(hdiutil, "detach", "/dev/"+h.Device))
	if detachErr != nil {
		logger.Debug("[DEBUG] hdiutil detach %s: %v\n", h.Device, detachErr)
	}

	err := poll.Until(ctx, s.PollInterval, s.UnmountPolls, func(context.Context) (bool, error) {
		return s.volumeGone(h.Volume), nil
	})
	if err != nil {
		return &ResourceError{
			Op:     "unmount",
			Path:   h.Image,
			Output: fmt.Sprintf("volume: %s\ndevice: %s\n%s", h.Volume, h.Device, res.Output()),
			Err:    err,
		}
	}

	delete(s.mounts, h.Image)
	s.mountOrder = removeKey(s.mountOrder, h.Image)
	logger.Debug("[DEBUG] Unmounted %s\n", h.Volume)
	return nil
}
