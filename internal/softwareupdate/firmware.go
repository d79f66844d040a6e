package softwareupdate

import (
	"bufio"
	"io"
	"os"
	"strings"
	"time"

	"fleet-installer/internal/logger"
)

const (
	installLogPath = "/var/log/install.log"
	bridgeOSMarker = "requires bridgeOS update"
)

// InstallLog finds bridgeOS requirements that softwareupdated logged today.
type InstallLog struct {
	Path string
	// OSVersion is stripped from update identifiers ("-14.6") before matching.
	OSVersion string
	Open      func(name string) (io.ReadCloser, error)
	Now       func() time.Time
}

// NewInstallLog returns a detector reading /var/log/install.log.
func NewInstallLog(osVersion string) *InstallLog {
	return &InstallLog{Path: installLogPath, OSVersion: osVersion}
}

// RequiresFirmware reports a line from today naming the update and the
// bridgeOS marker. Any read problem counts as no firmware.
func (l *InstallLog) RequiresFirmware(id string) bool {
	search := id
	if l.OSVersion != "" {
		search = strings.ReplaceAll(id, "-"+l.OSVersion, "")
	}
	if search == "" {
		return false
	}

	open := l.Open
	if open == nil {
		open = func(name string) (io.ReadCloser, error) { return os.Open(name) }
	}
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	path := l.Path
	if path == "" {
		path = installLogPath
	}

	f, err := open(path)
	if err != nil {
		logger.Debug("[DEBUG] Cannot read %s: %v\n", path, err)
		return false
	}
	defer f.Close()

	today := now().Format("2006-01-02")
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, today) && strings.Contains(line, bridgeOSMarker) && strings.Contains(line, search) {
			return true
		}
	}
	return false
}
