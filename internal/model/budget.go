package model

import "time"

// BudgetPriority orders admission preference for token reservations.
type BudgetPriority string

const (
	PriorityRoutine  BudgetPriority = "routine"
	PriorityElevated BudgetPriority = "elevated"
	PriorityUrgent   BudgetPriority = "urgent"
	PriorityCritical BudgetPriority = "critical"
)

// BudgetWindow is a rolling token counter over a fixed duration.
type BudgetWindow struct {
	Limit       int64     `json:"limit"`
	Used        int64     `json:"used"`
	Reserved    int64     `json:"reserved"`
	WindowStart time.Time `json:"window_start"`
	Duration    time.Duration `json:"-"`
}

// BudgetStatus is the read-only snapshot returned by GET /budget and
// published on budget.update.
type BudgetStatus struct {
	Hourly   BudgetWindow              `json:"hourly"`
	Daily    BudgetWindow              `json:"daily"`
	Reserves map[BudgetPriority]int64  `json:"priority_reserved"`
}

// ReservationToken correlates a reserve() call with its later settle() call.
type ReservationToken string
