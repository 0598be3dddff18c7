package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Collection names of the persisted document. Each collection is a sequence
// of {id, ...fields} rows keyed by the owning entity id.
const (
	CollectionUserEmails           = "users.email"
	CollectionUserPasswordHashes   = "users.passwordHash"
	CollectionUserNames            = "users.name"
	CollectionUserCreatedAt        = "users.createdAt"
	CollectionIncidentTypes        = "incidents.type"
	CollectionIncidentDescriptions = "incidents.description"
	CollectionIncidentLocations    = "incidents.location"
	CollectionIncidentSeverities   = "incidents.severity"
	CollectionIncidentStatuses     = "incidents.status"
	CollectionIncidentCreatedAt    = "incidents.createdAt"
	CollectionIncidentAuthors      = "incidents.authorMap"
	CollectionNotifications        = "notifications"
)

// CollectionNames lists every collection in persisted order.
var CollectionNames = []string{
	CollectionUserEmails,
	CollectionUserPasswordHashes,
	CollectionUserNames,
	CollectionUserCreatedAt,
	CollectionIncidentTypes,
	CollectionIncidentDescriptions,
	CollectionIncidentLocations,
	CollectionIncidentSeverities,
	CollectionIncidentStatuses,
	CollectionIncidentCreatedAt,
	CollectionIncidentAuthors,
	CollectionNotifications,
}

// Row is implemented by every fragment row; RowID is the owning entity id.
type Row interface {
	RowID() string
}

// EmailRow is the users.email fragment and the user anchor.
type EmailRow struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// PasswordHashRow is the users.passwordHash fragment.
type PasswordHashRow struct {
	ID           string `json:"id"`
	PasswordHash string `json:"passwordHash"`
}

// NameRow is the users.name fragment. A nil name is a stored null.
type NameRow struct {
	ID   string  `json:"id"`
	Name *string `json:"name"`
}

// CreatedAtRow is the createdAt fragment shared by users and incidents.
type CreatedAtRow struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// TypeRow is the incidents.type fragment and the incident anchor.
type TypeRow struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// DescriptionRow is the incidents.description fragment.
type DescriptionRow struct {
	ID          string  `json:"id"`
	Description *string `json:"description"`
}

// LocationRow is the incidents.location fragment (WGS-84 degrees).
type LocationRow struct {
	ID  string  `json:"id"`
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// SeverityRow is the incidents.severity fragment.
type SeverityRow struct {
	ID       string `json:"id"`
	Severity int    `json:"severity"`
}

// StatusRow is the incidents.status fragment.
type StatusRow struct {
	ID       string `json:"id"`
	Approved bool   `json:"approved"`
	Flagged  bool   `json:"flagged"`
}

// AuthorRow maps an incident (ID) to the user who reported it. The mapping is
// not a foreign key: the user may no longer exist.
type AuthorRow struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
}

// NotificationRow is a row of the notifications collection.
type NotificationRow struct {
	ID         string           `json:"id"`
	UserID     string           `json:"userId"`
	IncidentID string           `json:"incidentId"`
	Kind       NotificationKind `json:"kind"`
	Message    string           `json:"message"`
	Read       bool             `json:"read"`
	Dismissed  bool             `json:"dismissed"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// RowID implements Row.
func (r EmailRow) RowID() string { return r.ID }

// RowID implements Row.
func (r PasswordHashRow) RowID() string { return r.ID }

// RowID implements Row.
func (r NameRow) RowID() string { return r.ID }

// RowID implements Row.
func (r CreatedAtRow) RowID() string { return r.ID }

// RowID implements Row.
func (r TypeRow) RowID() string { return r.ID }

// RowID implements Row.
func (r DescriptionRow) RowID() string { return r.ID }

// RowID implements Row.
func (r LocationRow) RowID() string { return r.ID }

// RowID implements Row.
func (r SeverityRow) RowID() string { return r.ID }

// RowID implements Row.
func (r StatusRow) RowID() string { return r.ID }

// RowID implements Row. The id is the incident, not the author.
func (r AuthorRow) RowID() string { return r.ID }

// RowID implements Row.
func (r NotificationRow) RowID() string { return r.ID }

// Document is the whole persisted state. Field order fixes the encoded
// layout, which keeps repeated load/persist cycles byte-identical.
type Document struct {
	UserEmails           []EmailRow        `json:"users.email"`
	UserPasswordHashes   []PasswordHashRow `json:"users.passwordHash"`
	UserNames            []NameRow         `json:"users.name"`
	UserCreatedAt        []CreatedAtRow    `json:"users.createdAt"`
	IncidentTypes        []TypeRow         `json:"incidents.type"`
	IncidentDescriptions []DescriptionRow  `json:"incidents.description"`
	IncidentLocations    []LocationRow     `json:"incidents.location"`
	IncidentSeverities   []SeverityRow     `json:"incidents.severity"`
	IncidentStatuses     []StatusRow       `json:"incidents.status"`
	IncidentCreatedAt    []CreatedAtRow    `json:"incidents.createdAt"`
	IncidentAuthors      []AuthorRow       `json:"incidents.authorMap"`
	Notifications        []NotificationRow `json:"notifications"`
}

// NewDocument returns a document with every collection present and empty.
func NewDocument() Document {
	var d Document
	d.Normalize()
	return d
}

// Normalize replaces absent collections with empty ones so that they encode
// as [] rather than null.
func (d *Document) Normalize() {
	if d.UserEmails == nil {
		d.UserEmails = []EmailRow{}
	}
	if d.UserPasswordHashes == nil {
		d.UserPasswordHashes = []PasswordHashRow{}
	}
	if d.UserNames == nil {
		d.UserNames = []NameRow{}
	}
	if d.UserCreatedAt == nil {
		d.UserCreatedAt = []CreatedAtRow{}
	}
	if d.IncidentTypes == nil {
		d.IncidentTypes = []TypeRow{}
	}
	if d.IncidentDescriptions == nil {
		d.IncidentDescriptions = []DescriptionRow{}
	}
	if d.IncidentLocations == nil {
		d.IncidentLocations = []LocationRow{}
	}
	if d.IncidentSeverities == nil {
		d.IncidentSeverities = []SeverityRow{}
	}
	if d.IncidentStatuses == nil {
		d.IncidentStatuses = []StatusRow{}
	}
	if d.IncidentCreatedAt == nil {
		d.IncidentCreatedAt = []CreatedAtRow{}
	}
	if d.IncidentAuthors == nil {
		d.IncidentAuthors = []AuthorRow{}
	}
	if d.Notifications == nil {
		d.Notifications = []NotificationRow{}
	}
}

// Clone returns a deep copy. Mutators always work on a clone so that a failed
// mutation leaves the committed document untouched.
func (d Document) Clone() Document {
	out := Document{
		UserEmails:           append([]EmailRow{}, d.UserEmails...),
		UserPasswordHashes:   append([]PasswordHashRow{}, d.UserPasswordHashes...),
		UserNames:            make([]NameRow, len(d.UserNames)),
		UserCreatedAt:        append([]CreatedAtRow{}, d.UserCreatedAt...),
		IncidentTypes:        append([]TypeRow{}, d.IncidentTypes...),
		IncidentDescriptions: make([]DescriptionRow, len(d.IncidentDescriptions)),
		IncidentLocations:    append([]LocationRow{}, d.IncidentLocations...),
		IncidentSeverities:   append([]SeverityRow{}, d.IncidentSeverities...),
		IncidentStatuses:     append([]StatusRow{}, d.IncidentStatuses...),
		IncidentCreatedAt:    append([]CreatedAtRow{}, d.IncidentCreatedAt...),
		IncidentAuthors:      append([]AuthorRow{}, d.IncidentAuthors...),
		Notifications:        append([]NotificationRow{}, d.Notifications...),
	}
	for i, row := range d.UserNames {
		out.UserNames[i] = NameRow{ID: row.ID, Name: CloneString(row.Name)}
	}
	for i, row := range d.IncidentDescriptions {
		out.IncidentDescriptions[i] = DescriptionRow{ID: row.ID, Description: CloneString(row.Description)}
	}
	return out
}

// Bucket pairs a collection name with a pointer to its row slice. Snapshot
// backends that store one payload per collection iterate buckets.
type Bucket struct {
	Name string
	Rows any
}

// Buckets returns every collection of d in persisted order. The Rows values
// point into d, so decoding into them fills the document.
func (d *Document) Buckets() []Bucket {
	return []Bucket{
		{CollectionUserEmails, &d.UserEmails},
		{CollectionUserPasswordHashes, &d.UserPasswordHashes},
		{CollectionUserNames, &d.UserNames},
		{CollectionUserCreatedAt, &d.UserCreatedAt},
		{CollectionIncidentTypes, &d.IncidentTypes},
		{CollectionIncidentDescriptions, &d.IncidentDescriptions},
		{CollectionIncidentLocations, &d.IncidentLocations},
		{CollectionIncidentSeverities, &d.IncidentSeverities},
		{CollectionIncidentStatuses, &d.IncidentStatuses},
		{CollectionIncidentCreatedAt, &d.IncidentCreatedAt},
		{CollectionIncidentAuthors, &d.IncidentAuthors},
		{CollectionNotifications, &d.Notifications},
	}
}

// EncodeDocument renders the canonical on-disk form: two-space indented JSON
// followed by a newline.
func EncodeDocument(d Document) ([]byte, error) {
	d.Normalize()
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return append(b, '\n'), nil
}

// DecodeDocument parses the on-disk form. Unknown collections are ignored and
// absent ones come back empty.
func DecodeDocument(b []byte) (Document, error) {
	var d Document
	if len(bytes.TrimSpace(b)) == 0 {
		return NewDocument(), nil
	}
	if err := json.Unmarshal(b, &d); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	d.Normalize()
	return d, nil
}

// CloneString copies an optional string.
func CloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
