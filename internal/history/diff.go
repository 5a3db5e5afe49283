// Package history records field-level changes to issues.
package history

import (
	"strconv"
	"time"

	"github.com/spec-kit/road-maintenance/internal/domain"
)

// Tracked issue fields, in the order changes are reported.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldStatus      = "status"
	FieldPriority    = "priority"
	FieldCreatedBy   = "created_by"
	FieldAssignedTo  = "assigned_to"
	FieldDueDate     = "due_date"
	FieldLocation    = "location"
	FieldLatitude    = "latitude"
	FieldLongitude   = "longitude"
)

var trackedFields = []string{
	FieldTitle,
	FieldDescription,
	FieldStatus,
	FieldPriority,
	FieldCreatedBy,
	FieldAssignedTo,
	FieldDueDate,
	FieldLocation,
	FieldLatitude,
	FieldLongitude,
}

// FieldChange is one differing field between two snapshots.
type FieldChange struct {
	Field    string
	OldValue string
	NewValue string
}

// State is the stringified form of an issue keyed by field name.
type State map[string]string

// Snapshot stringifies the tracked fields of an issue. Account references are rendered through
// labels (account id to display value), falling back to the raw id.
func Snapshot(issue *domain.Issue, labels map[string]string) State {
	return State{
		FieldTitle:       issue.Title,
		FieldDescription: issue.Description,
		FieldStatus:      string(issue.Status),
		FieldPriority:    string(issue.Priority),
		FieldCreatedBy:   accountLabel(issue.CreatedByID, labels),
		FieldAssignedTo:  accountLabel(issue.AssignedToID, labels),
		FieldDueDate:     formatTime(issue.DueDate),
		FieldLocation:    issue.Location,
		FieldLatitude:    formatCoordinate(issue.Latitude),
		FieldLongitude:   formatCoordinate(issue.Longitude),
	}
}

// Diff lists the tracked fields whose values differ. Timestamps are never part of a diff.
func Diff(before, after State) []FieldChange {
	var changes []FieldChange
	for _, field := range trackedFields {
		oldValue, newValue := before[field], after[field]
		if oldValue == newValue {
			continue
		}
		changes = append(changes, FieldChange{Field: field, OldValue: oldValue, NewValue: newValue})
	}
	return changes
}

// Fields returns the names of the changed fields.
func Fields(changes []FieldChange) []string {
	names := make([]string, len(changes))
	for i, c := range changes {
		names[i] = c.Field
	}
	return names
}

func accountLabel(id *string, labels map[string]string) string {
	if id == nil {
		return ""
	}
	if label, ok := labels[*id]; ok && label != "" {
		return label
	}
	return *id
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatCoordinate(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 6, 64)
}
