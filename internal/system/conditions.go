package system

import (
	"context"
	"fmt"

	"fleet-installer/internal/wait"
)

// Condition maps a wait condition name to the probe that evaluates it.
func (p *Probe) Condition(name string) (wait.Condition, error) {
	var check func(ctx context.Context) (bool, error)
	switch name {
	case wait.CPU:
		check = p.CPULoadHigh
	case wait.Power:
		check = p.OnBattery
	case wait.FileVault:
		check = p.Encrypting
	case wait.Screen:
		check = p.DisplaySleepPrevented
	case wait.User:
		check = p.UserLoggedIn
	case wait.Catalog:
		check = p.CatalogOffline
	default:
		return wait.Condition{}, fmt.Errorf("unknown wait condition %q", name)
	}
	return wait.Condition{Name: name, Check: check}, nil
}

// Conditions builds conditions for names, in order.
func (p *Probe) Conditions(names ...string) ([]wait.Condition, error) {
	conds := make([]wait.Condition, 0, len(names))
	for _, n := range names {
		c, err := p.Condition(n)
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}
	return conds, nil
}
