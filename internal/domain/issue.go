package domain

import (
	"fmt"
	"time"
)

// IssueStatus enumerates lifecycle states for issues. Any status may follow any other.
type IssueStatus string

const (
	IssueStatusOpen       IssueStatus = "open"
	IssueStatusInProgress IssueStatus = "in_progress"
	IssueStatusResolved   IssueStatus = "resolved"
	IssueStatusClosed     IssueStatus = "closed"
)

// IssueStatuses lists statuses in display order.
var IssueStatuses = []IssueStatus{IssueStatusOpen, IssueStatusInProgress, IssueStatusResolved, IssueStatusClosed}

var statusLabels = map[IssueStatus]string{
	IssueStatusOpen:       "Open",
	IssueStatusInProgress: "In Progress",
	IssueStatusResolved:   "Resolved",
	IssueStatusClosed:     "Closed",
}

func (s IssueStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label returns the human readable status.
func (s IssueStatus) Label() string {
	return statusLabels[s]
}

// ParseIssueStatus validates a raw status value.
func ParseIssueStatus(raw string) (IssueStatus, error) {
	s := IssueStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%q is not a valid status", raw)
	}
	return s, nil
}

// IssuePriority enumerates urgency levels.
type IssuePriority string

const (
	IssuePriorityLow      IssuePriority = "low"
	IssuePriorityMedium   IssuePriority = "medium"
	IssuePriorityHigh     IssuePriority = "high"
	IssuePriorityCritical IssuePriority = "critical"
)

var priorityLabels = map[IssuePriority]string{
	IssuePriorityLow:      "Low",
	IssuePriorityMedium:   "Medium",
	IssuePriorityHigh:     "High",
	IssuePriorityCritical: "Critical",
}

func (p IssuePriority) Valid() bool {
	_, ok := priorityLabels[p]
	return ok
}

func (p IssuePriority) Label() string {
	return priorityLabels[p]
}

// ParseIssuePriority validates a raw priority value.
func ParseIssuePriority(raw string) (IssuePriority, error) {
	p := IssuePriority(raw)
	if !p.Valid() {
		return "", fmt.Errorf("%q is not a valid priority", raw)
	}
	return p, nil
}

// Issue is a road maintenance work item.
type Issue struct {
	ID           string
	Title        string
	Description  string
	Status       IssueStatus
	Priority     IssuePriority
	CreatedByID  *string
	AssignedToID *string
	DueDate      *time.Time
	Location     string
	Latitude     *float64
	Longitude    *float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasCoordinates reports whether both latitude and longitude are set.
func (i *Issue) HasCoordinates() bool {
	return i.Latitude != nil && i.Longitude != nil
}

// IssueComment is a note left on an issue.
type IssueComment struct {
	ID        string
	IssueID   string
	AuthorID  string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
