package model

import "time"

// AlertRule is a mutable catalog record describing when an Event fires an Alert.
type AlertRule struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Kinds            []EventKind `json:"kinds"`
	MinSeverity      Severity   `json:"min_severity"`
	MaxSeverity      Severity   `json:"max_severity,omitempty"`
	Cooldown         time.Duration `json:"cooldown_seconds"`
	AutoInvestigate  bool       `json:"auto_investigate"`
	MuteUntil        *time.Time `json:"mute_until,omitempty"`
	ChannelSelector  []string   `json:"channels,omitempty"`
	FlapSuppression  bool       `json:"flap_suppression"`
	FlapWindow       time.Duration `json:"flap_window_seconds,omitempty"`
	FlapThreshold    int        `json:"flap_threshold,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Matches reports whether the rule covers the given kind and severity, and
// is not currently muted.
func (r *AlertRule) Matches(kind EventKind, severity Severity, now time.Time) bool {
	if r.MuteUntil != nil && now.Before(*r.MuteUntil) {
		return false
	}
	found := false
	for _, k := range r.Kinds {
		if k == kind {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	if severity.Less(r.MinSeverity) {
		return false
	}
	if r.MaxSeverity != "" && r.MaxSeverity.Less(severity) {
		return false
	}
	return true
}

// MuteRequest is the body of POST /rules/:id/mute.
type MuteRequest struct {
	DurationHours float64 `json:"duration_hours" binding:"required"`
}
