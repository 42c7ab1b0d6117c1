package domain

import "time"

// Schedule is a cron-driven trigger that invokes a suite with
// TriggerType = SCHEDULED.
type Schedule struct {
	ID            string     `json:"id"`
	SuiteID       string     `json:"suiteId"`
	EnvironmentID string     `json:"environmentId,omitempty"`
	CronExpr      string     `json:"cronExpr"`
	Enabled       bool       `json:"enabled"`
	DeletedAt     *time.Time `json:"deletedAt,omitempty"`
}

// InputField describes one manual-input token awaiting operator
// submission, as surfaced by the `input-required` event.
type InputField struct {
	Name         string  `json:"name"`
	DefaultValue *string `json:"defaultValue"`
	CachedValue  *string `json:"cachedValue"`
}
