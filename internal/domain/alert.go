package domain

import "slices"

// AlertRule — правило оповещения. С клиента меняется только Enabled.
type AlertRule struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Severity   Severity `json:"severity"`
	Enabled    bool     `json:"enabled"`
	Conditions string   `json:"conditions"`
	Actions    []string `json:"actions"`
}

func (r AlertRule) GetID() string { return r.ID }

func (r AlertRule) Clone() AlertRule {
	r.Actions = slices.Clone(r.Actions)
	return r
}

type AlertRuleUpdate struct {
	Enabled *bool `json:"enabled,omitempty"`
}
