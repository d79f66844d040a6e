// Package softwareupdate drives the macOS softwareupdate tool: it parses the
// scan listing and downloads, installs and schedules the restart.
package softwareupdate

import (
	"regexp"
	"strconv"
	"strings"

	"fleet-installer/internal/version"
)

// Item is one pending update from a scan.
type Item struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	SizeKB      int64  `json:"size"`
	Recommended bool   `json:"recommended"`
	Restart     bool   `json:"restart"`
	Halt        bool   `json:"shutdown"`
	Firmware    bool   `json:"bridgeos"`
}

// Pending reports whether the item needs a restart, a halt or a firmware
// update, and so must wait for the final install-all pass.
func (i Item) Pending() bool {
	return i.Restart || i.Halt || i.Firmware
}

// FirmwareDetector decides whether a restart item carries a bridgeOS update.
type FirmwareDetector interface {
	RequiresFirmware(id string) bool
}

// Parser reads `softwareupdate --list --all` output. Modern selects the
// Catalina-and-later grammar.
type Parser struct {
	Modern   bool
	Firmware FirmwareDetector
}

// IsModern reports whether macOS osVersion uses the "* Label:" listing.
func IsModern(osVersion string) bool {
	v := version.Parse(osVersion)
	return v.Major >= 11 || (v.Major == 10 && v.Minor >= 15)
}

var (
	labelLine    = regexp.MustCompile(`^\*\s(.*)$`)
	modernLabel  = regexp.MustCompile(`^Label:\s(.*)$`)
	modernField  = regexp.MustCompile(`([A-Z][a-z]+):\s([^,]+),`)
	legacyDetail = regexp.MustCompile(`^(.*), ([0-9]+)K\s?(.*)$`)
	leadingSize  = regexp.MustCompile(`^\s*([0-9]+)`)
)

// Parse returns the updates in listing order. Blocks that do not match the
// grammar, or that carry no title, are dropped.
func (p Parser) Parse(output string) []Item {
	lines := strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n")
	var items []Item
	for i := 0; i < len(lines); i++ {
		m := labelLine.FindStringSubmatch(strings.TrimSpace(lines[i]))
		if m == nil || strings.TrimSpace(m[1]) == "" || i+1 >= len(lines) {
			continue
		}
		details := strings.TrimSpace(lines[i+1])
		if details == "" {
			continue
		}

		var (
			item Item
			ok   bool
		)
		if p.Modern {
			item, ok = p.modern(m[1], details)
		} else {
			item, ok = p.legacy(m[1], details)
		}
		if ok {
			items = append(items, item)
			i++
		}
	}
	return items
}

func (p Parser) modern(label, details string) (Item, bool) {
	lm := modernLabel.FindStringSubmatch(strings.TrimSpace(label))
	if lm == nil {
		return Item{}, false
	}
	item := Item{ID: strings.TrimSpace(lm[1])}
	// the last field is not always followed by a comma
	if !strings.HasSuffix(details, ",") {
		details += ","
	}
	for _, f := range modernField.FindAllStringSubmatch(details, -1) {
		val := strings.TrimSpace(f[2])
		switch f[1] {
		case "Title":
			item.Name = val
		case "Version":
			item.Version = val
		case "Size":
			item.SizeKB = parseSize(val)
		case "Recommended":
			item.Recommended = val == "YES"
		case "Action":
			switch val {
			case "restart":
				item.Restart = true
			case "shut down", "halt":
				item.Halt = true
			}
		}
	}
	if item.ID == "" || item.Name == "" {
		return Item{}, false
	}
	p.checkFirmware(&item)
	return item, true
}

func (p Parser) legacy(label, details string) (Item, bool) {
	dm := legacyDetail.FindStringSubmatch(details)
	if dm == nil {
		return Item{}, false
	}
	item := Item{
		ID:     strings.TrimSpace(label),
		Name:   strings.TrimSpace(dm[1]),
		SizeKB: parseSize(dm[2]),
	}
	if item.Name == "" {
		return Item{}, false
	}
	flags := dm[3]
	item.Recommended = strings.Contains(flags, "recommended")
	if strings.Contains(flags, "restart") {
		item.Restart = true
	} else if strings.Contains(flags, "halt") || strings.Contains(flags, "shut down") {
		item.Halt = true
	}
	p.checkFirmware(&item)
	return item, true
}

func (p Parser) checkFirmware(item *Item) {
	if item.Restart && p.Firmware != nil {
		item.Firmware = p.Firmware.RequiresFirmware(item.ID)
	}
}

// parseSize reads the leading digits of "1000K" or "1000KiB".
func parseSize(s string) int64 {
	m := leadingSize.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	n, _ := strconv.ParseInt(m[1], 10, 64)
	return n
}
