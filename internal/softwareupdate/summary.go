package softwareupdate

import (
	"context"
	"fmt"

	"fleet-installer/internal/logger"
	"fleet-installer/internal/pipeline"
)

// Summary counts pending updates and the machine state that decides whether
// they can be installed now.
type Summary struct {
	Count          int    `json:"count"`
	Recommended    int    `json:"recommended"`
	Restart        int    `json:"restart"`
	Shutdown       int    `json:"shutdown"`
	BridgeOS       int    `json:"bridgeos"`
	Battery        bool   `json:"battery"`
	BatteryPercent *int   `json:"battery_percent"`
	ConsoleUser    string `json:"console_user"`
	ConsoleUID     string `json:"console_userid"`
	Encrypting     bool   `json:"encrypting"`
	PreventSleep   bool   `json:"prevent_sleep"`
	CatalogOffline bool   `json:"sus_offline"`
	CatalogURL     string `json:"sus_url"`
}

// Summarize builds a Summary. Facts that cannot be read are left at zero.
func Summarize(ctx context.Context, items []Item, facts Facts) Summary {
	s := Summary{Count: len(items)}
	for _, it := range items {
		// recommended counts only what installs without a restart
		if it.Recommended && !it.Pending() {
			s.Recommended++
		}
		if it.Restart {
			s.Restart++
		}
		if it.Firmware {
			s.BridgeOS++
		}
		if it.Halt {
			s.Shutdown++
		}
	}

	note := func(what string, err error) {
		if err != nil {
			logger.Debug("[DEBUG] Summary %s: %v\n", what, err)
		}
	}
	var err error
	s.Battery, err = facts.OnBattery(ctx)
	note("battery", err)
	if pct, err := facts.BatteryPercent(ctx); err == nil && pct >= 0 {
		s.BatteryPercent = &pct
	}
	s.ConsoleUser, err = facts.ConsoleUser(ctx)
	note("console user", err)
	s.ConsoleUID, err = facts.ConsoleUID(ctx)
	note("console uid", err)
	s.Encrypting, err = facts.Encrypting(ctx)
	note("filevault", err)
	s.PreventSleep, err = facts.DisplaySleepPrevented(ctx)
	note("display sleep", err)
	s.CatalogURL, err = facts.CatalogURL(ctx)
	note("catalog url", err)
	s.CatalogOffline, err = facts.CatalogOffline(ctx)
	note("catalog", err)
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}

func (o *Orchestrator) summary(ctx context.Context, items []Item) pipeline.Result {
	s := Summarize(ctx, items, o.Facts)
	o.add("summary", s)

	row := func(label string, v any) { o.printf("%-40s %v\n", label, v) }
	row("Total Updates", s.Count)
	row("Recommended Updates", s.Recommended)
	row("Updates Requiring Restart", s.Restart)
	row("Updates Requiring Shutdown", s.Shutdown)
	row("BridgeOS Updates", s.BridgeOS)
	o.printf("\n")
	row("Console Username", orNone(s.ConsoleUser))
	row("SUS Url", orNone(s.CatalogURL))
	if s.BatteryPercent != nil {
		row("Battery Percentage", fmt.Sprintf("%d%%", *s.BatteryPercent))
	} else {
		row("Battery Percentage", "N/A")
	}
	row("On Battery Power?", yesNo(s.Battery))
	o.printf("\n")
	row("Encryption in Progress?", yesNo(s.Encrypting))
	row("Screen Sleep Prevented?", yesNo(s.PreventSleep))
	row("SUS Offline?", yesNo(s.CatalogOffline))
	return success("%d updates pending", s.Count)
}
