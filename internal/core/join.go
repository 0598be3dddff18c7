package core

import (
	"incidentcore/pkg/domain"
)

// corruptReporter is told about anchor rows lacking a required fragment.
type corruptReporter func(entity domain.EntityType, id, collection string)

// indexByID maps each id to its first row; later duplicates are ignored.
func indexByID[T domain.Row](rows []T) map[string]T {
	idx := make(map[string]T, len(rows))
	for _, row := range rows {
		if _, ok := idx[row.RowID()]; !ok {
			idx[row.RowID()] = row
		}
	}
	return idx
}

// findByID returns the position of the first row with id, or -1.
func findByID[T domain.Row](rows []T, id string) int {
	for i, row := range rows {
		if row.RowID() == id {
			return i
		}
	}
	return -1
}

// removeByID drops every row with id and reports how many were removed.
func removeByID[T domain.Row](rows []T, id string) ([]T, int) {
	out := rows[:0]
	removed := 0
	for _, row := range rows {
		if row.RowID() == id {
			removed++
			continue
		}
		out = append(out, row)
	}
	return out, removed
}

type userFragments struct {
	hashes    map[string]domain.PasswordHashRow
	names     map[string]domain.NameRow
	createdAt map[string]domain.CreatedAtRow
}

func indexUserFragments(doc domain.Document) userFragments {
	return userFragments{
		hashes:    indexByID(doc.UserPasswordHashes),
		names:     indexByID(doc.UserNames),
		createdAt: indexByID(doc.UserCreatedAt),
	}
}

// assemble merges the fragments of one user anchored on its email row.
func (f userFragments) assemble(anchor domain.EmailRow, report corruptReporter) domain.User {
	u := domain.User{ID: anchor.ID, Email: anchor.Email}
	if row, ok := f.hashes[anchor.ID]; ok {
		u.PasswordHash = row.PasswordHash
	} else {
		report(domain.EntityUser, anchor.ID, domain.CollectionUserPasswordHashes)
	}
	if row, ok := f.names[anchor.ID]; ok {
		u.Name = domain.CloneString(row.Name)
	}
	if row, ok := f.createdAt[anchor.ID]; ok {
		u.CreatedAt = row.CreatedAt
	} else {
		report(domain.EntityUser, anchor.ID, domain.CollectionUserCreatedAt)
	}
	return u
}

// firstByID keeps the first row of each id in order, the same row indexByID
// and findByID resolve to.
func firstByID[T domain.Row](rows []T) []T {
	seen := make(map[string]struct{}, len(rows))
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		if _, dup := seen[row.RowID()]; dup {
			continue
		}
		seen[row.RowID()] = struct{}{}
		out = append(out, row)
	}
	return out
}

// joinUsers reconstructs every user in users.email insertion order.
func joinUsers(doc domain.Document, report corruptReporter) []domain.User {
	f := indexUserFragments(doc)
	out := make([]domain.User, 0, len(doc.UserEmails))
	for _, anchor := range firstByID(doc.UserEmails) {
		out = append(out, f.assemble(anchor, report))
	}
	return out
}

type incidentFragments struct {
	descriptions map[string]domain.DescriptionRow
	locations    map[string]domain.LocationRow
	severities   map[string]domain.SeverityRow
	statuses     map[string]domain.StatusRow
	createdAt    map[string]domain.CreatedAtRow
	authors      map[string]domain.AuthorRow
}

func indexIncidentFragments(doc domain.Document) incidentFragments {
	return incidentFragments{
		descriptions: indexByID(doc.IncidentDescriptions),
		locations:    indexByID(doc.IncidentLocations),
		severities:   indexByID(doc.IncidentSeverities),
		statuses:     indexByID(doc.IncidentStatuses),
		createdAt:    indexByID(doc.IncidentCreatedAt),
		authors:      indexByID(doc.IncidentAuthors),
	}
}

// assemble merges the fragments of one incident anchored on its type row.
// Description, severity, and author are defaultable; location, status, and
// createdAt are expected and reported when missing.
func (f incidentFragments) assemble(anchor domain.TypeRow, report corruptReporter) domain.Incident {
	inc := domain.Incident{ID: anchor.ID, Type: anchor.Type, Severity: domain.DefaultSeverity}
	if row, ok := f.descriptions[anchor.ID]; ok {
		inc.Description = domain.CloneString(row.Description)
	}
	if row, ok := f.locations[anchor.ID]; ok {
		inc.Latitude, inc.Longitude = row.Lat, row.Lng
	} else {
		report(domain.EntityIncident, anchor.ID, domain.CollectionIncidentLocations)
	}
	if row, ok := f.severities[anchor.ID]; ok {
		inc.Severity = row.Severity
	}
	if row, ok := f.statuses[anchor.ID]; ok {
		inc.Approved, inc.Flagged = row.Approved, row.Flagged
	} else {
		report(domain.EntityIncident, anchor.ID, domain.CollectionIncidentStatuses)
	}
	if row, ok := f.createdAt[anchor.ID]; ok {
		inc.CreatedAt = row.CreatedAt
	} else {
		report(domain.EntityIncident, anchor.ID, domain.CollectionIncidentCreatedAt)
	}
	if row, ok := f.authors[anchor.ID]; ok {
		inc.AuthorID = row.UserID
	}
	return inc
}

// joinIncidents reconstructs every incident in incidents.type insertion order.
func joinIncidents(doc domain.Document, report corruptReporter) []domain.Incident {
	f := indexIncidentFragments(doc)
	out := make([]domain.Incident, 0, len(doc.IncidentTypes))
	for _, anchor := range firstByID(doc.IncidentTypes) {
		out = append(out, f.assemble(anchor, report))
	}
	return out
}

// joinDangerZones projects incidents anchored on incidents.location, so an
// incident whose type row is missing still appears with UnknownIncidentType.
func joinDangerZones(doc domain.Document) []domain.DangerZone {
	types := indexByID(doc.IncidentTypes)
	severities := indexByID(doc.IncidentSeverities)
	statuses := indexByID(doc.IncidentStatuses)
	out := make([]domain.DangerZone, 0, len(doc.IncidentLocations))
	seen := make(map[string]struct{}, len(doc.IncidentLocations))
	for _, loc := range doc.IncidentLocations {
		if _, dup := seen[loc.ID]; dup {
			continue
		}
		seen[loc.ID] = struct{}{}
		zone := domain.DangerZone{
			ID:       loc.ID,
			Lat:      loc.Lat,
			Lng:      loc.Lng,
			Type:     domain.UnknownIncidentType,
			Severity: domain.DefaultSeverity,
		}
		if row, ok := types[loc.ID]; ok {
			zone.Type = row.Type
		}
		if row, ok := severities[loc.ID]; ok {
			zone.Severity = row.Severity
		}
		if row, ok := statuses[loc.ID]; ok {
			zone.Approved = row.Approved
		}
		out = append(out, zone)
	}
	return out
}
