// Package domain defines the logical entities, the fragmented persisted
// document, and the error taxonomy used by incidentcore.
package domain

import (
	"math"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

// EntityType identifies the type of logical record reconstructed from fragments.
type EntityType string

// Supported entity type identifiers used in errors, logs, and metrics labels.
const (
	// EntityUser identifies a user account.
	EntityUser EntityType = "user"
	// EntityIncident identifies an incident report.
	EntityIncident EntityType = "incident"
	// EntityNotification identifies a notification addressed to a user.
	EntityNotification EntityType = "notification"
)

// DefaultSeverity is reported for incidents whose severity fragment is absent
// and applied when a caller creates an incident without a severity.
const DefaultSeverity = 1

// UnknownIncidentType is reported by location-anchored reads when the type
// fragment of an incident is absent.
const UnknownIncidentType = "unknown"

// User is the logical user record assembled from the users.* fragments.
// PasswordHash is carried for credential checks and is never serialized.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         *string   `json:"name"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IncidentStatus is the review lifecycle state of an incident.
type IncidentStatus string

// Incident review states. The zero value is not a valid state.
const (
	// StatusPending is the initial state: neither approved nor flagged.
	StatusPending IncidentStatus = "pending"
	// StatusVerified marks an approved incident.
	StatusVerified IncidentStatus = "verified"
	// StatusFlagged marks an incident reported as wrong or abusive.
	StatusFlagged IncidentStatus = "flagged"
)

// Valid reports whether s names one of the three review states.
func (s IncidentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusFlagged:
		return true
	}
	return false
}

// StatusOf maps the persisted approved/flagged pair onto a review state.
// A pair with both flags set never results from a transition; it is treated
// as flagged so that a suspicious record is never shown as verified.
func StatusOf(approved, flagged bool) IncidentStatus {
	switch {
	case flagged:
		return StatusFlagged
	case approved:
		return StatusVerified
	default:
		return StatusPending
	}
}

// Incident is the logical incident record assembled from the incidents.* fragments.
type Incident struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Description *string   `json:"description"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Severity    int       `json:"severity"`
	Approved    bool      `json:"approved"`
	Flagged     bool      `json:"flagged"`
	AuthorID    string    `json:"authorId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Status returns the review state derived from the approved/flagged pair.
func (i Incident) Status() IncidentStatus {
	return StatusOf(i.Approved, i.Flagged)
}

// NewIncident carries the caller supplied fields for incident creation.
type NewIncident struct {
	Type        string
	Description *string
	Latitude    float64
	Longitude   float64
	// Severity is semantically 1-5; zero selects DefaultSeverity. The range is
	// not enforced by the store.
	Severity int
	AuthorID string
}

// Validate checks the creation preconditions: a non-blank type, valid UTF-8
// text, and finite coordinates.
func (n NewIncident) Validate() error {
	if strings.TrimSpace(n.Type) == "" {
		return InvalidArgument("create incident", "type is required")
	}
	description := ""
	if n.Description != nil {
		description = *n.Description
	}
	if err := ValidateText("create incident", map[string]string{
		"type":        n.Type,
		"description": description,
		"author id":   n.AuthorID,
	}); err != nil {
		return err
	}
	if !finite(n.Latitude) || !finite(n.Longitude) {
		return InvalidArgument("create incident", "latitude and longitude must be finite numbers")
	}
	return nil
}

// ValidateText rejects any field that is not valid UTF-8. The JSON encoding
// replaces invalid bytes with U+FFFD, so such a value would not read back as
// written.
func ValidateText(op string, fields map[string]string) error {
	for _, name := range sortedKeys(fields) {
		if !utf8.ValidString(fields[name]) {
			return InvalidArgument(op, "%s must be valid UTF-8", name)
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// IncidentFilter narrows an incident listing. Zero values disable a criterion.
type IncidentFilter struct {
	Status      IncidentStatus
	Type        string
	AuthorID    string
	MinSeverity int
	// Limit caps the number of returned incidents; zero means no cap.
	Limit int
}

// Match reports whether the incident satisfies every set criterion.
func (f IncidentFilter) Match(i Incident) bool {
	if f.Status != "" && i.Status() != f.Status {
		return false
	}
	if f.Type != "" && !strings.EqualFold(i.Type, f.Type) {
		return false
	}
	if f.AuthorID != "" && i.AuthorID != f.AuthorID {
		return false
	}
	if f.MinSeverity > 0 && i.Severity < f.MinSeverity {
		return false
	}
	return true
}

// DangerZone is the map-marker projection of an incident, anchored on its
// location fragment.
type DangerZone struct {
	ID       string  `json:"id"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Type     string  `json:"type"`
	Severity int     `json:"severity"`
	Approved bool    `json:"approved"`
}

// NotificationKind describes what happened to the incident a notification refers to.
type NotificationKind string

// Notification kinds emitted by status transitions.
const (
	NotificationVerified NotificationKind = "verified"
	NotificationFlagged  NotificationKind = "flagged"
)

// Notification is an alert addressed to the author of an incident.
type Notification struct {
	ID         string           `json:"id"`
	UserID     string           `json:"userId"`
	IncidentID string           `json:"incidentId"`
	Kind       NotificationKind `json:"kind"`
	Message    string           `json:"message"`
	Read       bool             `json:"read"`
	Dismissed  bool             `json:"dismissed"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// NotificationFilter selects notifications the way the notifications screen tabs do.
type NotificationFilter string

// Notification filters.
const (
	// NotificationsAll lists every notification that has not been dismissed.
	NotificationsAll NotificationFilter = "all"
	// NotificationsUnread lists notifications neither read nor dismissed.
	NotificationsUnread NotificationFilter = "unread"
	// NotificationsDismissed lists dismissed notifications only.
	NotificationsDismissed NotificationFilter = "dismissed"
)

// Match reports whether n is selected by the filter. An empty filter behaves
// like NotificationsAll.
func (f NotificationFilter) Match(n Notification) bool {
	switch f {
	case NotificationsUnread:
		return !n.Read && !n.Dismissed
	case NotificationsDismissed:
		return n.Dismissed
	default:
		return !n.Dismissed
	}
}
