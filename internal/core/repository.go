package core

import (
	"context"
	"log/slog"
	"strings"

	"incidentcore/pkg/domain"
)

// Repository presents users, incidents, and notifications as whole records
// over the fragmented document. Writes go through the Serializer; reads load
// the committed document straight from the store and join it.
type Repository struct {
	store  domain.DocumentStore
	writes *Serializer
	opts   options
}

// NewRepository wires a repository to store and its serializer. The
// serializer must own the same store.
func NewRepository(store domain.DocumentStore, writes *Serializer, opts ...Option) *Repository {
	return &Repository{store: store, writes: writes, opts: applyOptions(opts)}
}

func (r *Repository) load(ctx context.Context) (domain.Document, error) {
	doc, err := r.store.Load(ctx)
	if err != nil {
		return domain.Document{}, domain.StorageError("load", err)
	}
	return doc, nil
}

func (r *Repository) reportCorrupt(entity domain.EntityType, id, collection string) {
	r.opts.logger.Warn("missing required fragment",
		slog.String("entity", string(entity)),
		slog.String("id", id),
		slog.String("collection", collection),
		slog.Any("error", domain.CorruptFragment(entity, id, collection)),
	)
	r.opts.metrics.CorruptFragment(entity, collection)
}

// CreateUser inserts every user fragment in one serialized mutation. The
// duplicate email check runs inside that mutation against the freshest
// document, so concurrent signups with one email cannot both succeed.
func (r *Repository) CreateUser(ctx context.Context, email, passwordHash string, name *string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", domain.InvalidArgument("create user", "email is required")
	}
	if passwordHash == "" {
		return "", domain.InvalidArgument("create user", "password hash is required")
	}
	fields := map[string]string{"email": email, "password hash": passwordHash}
	if name != nil {
		fields["name"] = *name
	}
	if err := domain.ValidateText("create user", fields); err != nil {
		return "", err
	}
	id := r.opts.newID()
	now := r.opts.now()
	name = domain.CloneString(name)
	_, err := r.writes.Schedule(ctx, "create user", func(doc *domain.Document) error {
		for _, row := range doc.UserEmails {
			if strings.TrimSpace(row.Email) == email {
				return domain.Conflict(domain.EntityUser, "email %q already registered", email)
			}
		}
		doc.UserEmails = append(doc.UserEmails, domain.EmailRow{ID: id, Email: email})
		doc.UserPasswordHashes = append(doc.UserPasswordHashes, domain.PasswordHashRow{ID: id, PasswordHash: passwordHash})
		doc.UserNames = append(doc.UserNames, domain.NameRow{ID: id, Name: name})
		doc.UserCreatedAt = append(doc.UserCreatedAt, domain.CreatedAtRow{ID: id, CreatedAt: now})
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetUser reconstructs the user with id.
func (r *Repository) GetUser(ctx context.Context, id string) (domain.User, error) {
	doc, err := r.load(ctx)
	if err != nil {
		return domain.User{}, err
	}
	i := findByID(doc.UserEmails, id)
	if i < 0 {
		return domain.User{}, domain.NotFound(domain.EntityUser, id)
	}
	return indexUserFragments(doc).assemble(doc.UserEmails[i], r.reportCorrupt), nil
}

// FindUserByEmail reconstructs the first user whose email matches after trimming.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (domain.User, error) {
	email = strings.TrimSpace(email)
	doc, err := r.load(ctx)
	if err != nil {
		return domain.User{}, err
	}
	for _, row := range doc.UserEmails {
		if strings.TrimSpace(row.Email) == email {
			return indexUserFragments(doc).assemble(row, r.reportCorrupt), nil
		}
	}
	return domain.User{}, domain.NotFound(domain.EntityUser, email)
}

// ListUsers reconstructs every user in creation order.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	doc, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	return joinUsers(doc, r.reportCorrupt), nil
}

// DeleteUser removes every user fragment and the notifications addressed to
// the user. Authored incidents and their author rows stay.
func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	_, err := r.writes.Schedule(ctx, "delete user", func(doc *domain.Document) error {
		var removed int
		if doc.UserEmails, removed = removeByID(doc.UserEmails, id); removed == 0 {
			return domain.NotFound(domain.EntityUser, id)
		}
		doc.UserPasswordHashes, _ = removeByID(doc.UserPasswordHashes, id)
		doc.UserNames, _ = removeByID(doc.UserNames, id)
		doc.UserCreatedAt, _ = removeByID(doc.UserCreatedAt, id)
		kept := doc.Notifications[:0]
		for _, n := range doc.Notifications {
			if n.UserID != id {
				kept = append(kept, n)
			}
		}
		doc.Notifications = kept
		return nil
	})
	return err
}

// CreateIncident inserts every incident fragment in one serialized mutation.
// A zero severity selects domain.DefaultSeverity; an empty AuthorID writes no
// author row.
func (r *Repository) CreateIncident(ctx context.Context, in domain.NewIncident) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}
	severity := in.Severity
	if severity == 0 {
		severity = domain.DefaultSeverity
	}
	id := r.opts.newID()
	now := r.opts.now()
	incidentType := strings.TrimSpace(in.Type)
	description := domain.CloneString(in.Description)
	_, err := r.writes.Schedule(ctx, "create incident", func(doc *domain.Document) error {
		doc.IncidentTypes = append(doc.IncidentTypes, domain.TypeRow{ID: id, Type: incidentType})
		doc.IncidentDescriptions = append(doc.IncidentDescriptions, domain.DescriptionRow{ID: id, Description: description})
		doc.IncidentLocations = append(doc.IncidentLocations, domain.LocationRow{ID: id, Lat: in.Latitude, Lng: in.Longitude})
		doc.IncidentSeverities = append(doc.IncidentSeverities, domain.SeverityRow{ID: id, Severity: severity})
		doc.IncidentStatuses = append(doc.IncidentStatuses, domain.StatusRow{ID: id})
		doc.IncidentCreatedAt = append(doc.IncidentCreatedAt, domain.CreatedAtRow{ID: id, CreatedAt: now})
		if in.AuthorID != "" {
			doc.IncidentAuthors = append(doc.IncidentAuthors, domain.AuthorRow{ID: id, UserID: in.AuthorID})
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetIncident reconstructs the incident with id.
func (r *Repository) GetIncident(ctx context.Context, id string) (domain.Incident, error) {
	doc, err := r.load(ctx)
	if err != nil {
		return domain.Incident{}, err
	}
	i := findByID(doc.IncidentTypes, id)
	if i < 0 {
		return domain.Incident{}, domain.NotFound(domain.EntityIncident, id)
	}
	return indexIncidentFragments(doc).assemble(doc.IncidentTypes[i], r.reportCorrupt), nil
}

// ListIncidents reconstructs incidents in creation order, keeping those that
// match filter, up to filter.Limit when set.
func (r *Repository) ListIncidents(ctx context.Context, filter domain.IncidentFilter) ([]domain.Incident, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.InvalidArgument("list incidents", "unknown status %q", filter.Status)
	}
	if filter.Limit < 0 {
		return nil, domain.InvalidArgument("list incidents", "limit must not be negative")
	}
	doc, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	all := joinIncidents(doc, r.reportCorrupt)
	out := make([]domain.Incident, 0, len(all))
	for _, inc := range all {
		if !filter.Match(inc) {
			continue
		}
		out = append(out, inc)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// DeleteIncident removes the incident's rows from every incident fragment and
// the author map. Notifications that mention it are kept.
func (r *Repository) DeleteIncident(ctx context.Context, id string) error {
	_, err := r.writes.Schedule(ctx, "delete incident", func(doc *domain.Document) error {
		var removed int
		if doc.IncidentTypes, removed = removeByID(doc.IncidentTypes, id); removed == 0 {
			return domain.NotFound(domain.EntityIncident, id)
		}
		doc.IncidentDescriptions, _ = removeByID(doc.IncidentDescriptions, id)
		doc.IncidentLocations, _ = removeByID(doc.IncidentLocations, id)
		doc.IncidentSeverities, _ = removeByID(doc.IncidentSeverities, id)
		doc.IncidentStatuses, _ = removeByID(doc.IncidentStatuses, id)
		doc.IncidentCreatedAt, _ = removeByID(doc.IncidentCreatedAt, id)
		doc.IncidentAuthors, _ = removeByID(doc.IncidentAuthors, id)
		return nil
	})
	return err
}

// DangerZones lists map markers for every located incident.
func (r *Repository) DangerZones(ctx context.Context) ([]domain.DangerZone, error) {
	doc, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	return joinDangerZones(doc), nil
}

// Document returns the committed document as stored.
func (r *Repository) Document(ctx context.Context) (domain.Document, error) {
	return r.load(ctx)
}
