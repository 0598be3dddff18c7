package core

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"incidentcore/internal/credential"
	"incidentcore/pkg/domain"
)

// Service is the boundary consumed by request handlers and the CLI. It owns
// the store, its write serializer, and the repository built on both, and
// records an outcome for every operation.
type Service struct {
	store  domain.DocumentStore
	writes *Serializer
	repo   *Repository
	hasher credential.Hasher
	opts   options
}

// NewService loads the document from store and starts its serializer. The
// service takes ownership of store and closes it in Close.
func NewService(ctx context.Context, store domain.DocumentStore, opts ...Option) (*Service, error) {
	o := applyOptions(opts)
	writes, err := NewSerializer(ctx, store, opts...)
	if err != nil {
		return nil, err
	}
	return &Service{
		store:  store,
		writes: writes,
		repo:   NewRepository(store, writes, opts...),
		hasher: o.hasher,
		opts:   o,
	}, nil
}

// Repository exposes the underlying repository.
func (s *Service) Repository() *Repository { return s.repo }

// Close drains pending writes, then closes the store.
func (s *Service) Close() error {
	return errors.Join(s.writes.Close(), s.store.Close())
}

func (s *Service) observe(ctx context.Context, op string, start time.Time, err error) {
	d := time.Since(start)
	s.opts.metrics.Observe(ctx, op, err == nil, d)
	if err == nil {
		s.opts.logger.Debug("operation completed", slog.String("op", op), slog.Duration("duration", d))
		return
	}
	level := slog.LevelInfo
	if domain.KindOf(err) == domain.KindStorageUnavailable || domain.KindOf(err) == "" {
		level = slog.LevelError
	}
	s.opts.logger.Log(ctx, level, "operation failed",
		slog.String("op", op),
		slog.String("kind", string(domain.KindOf(err))),
		slog.Any("error", err),
	)
}

// CreateUser stores a user with an already hashed password.
func (s *Service) CreateUser(ctx context.Context, email, passwordHash string, name *string) (id string, err error) {
	defer func(start time.Time) { s.observe(ctx, "create_user", start, err) }(time.Now())
	return s.repo.CreateUser(ctx, email, passwordHash, name)
}

// Register hashes password and creates the user.
func (s *Service) Register(ctx context.Context, email, password string, name *string) (id string, err error) {
	defer func(start time.Time) { s.observe(ctx, "register", start, err) }(time.Now())
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", err
	}
	return s.repo.CreateUser(ctx, email, hash, name)
}

// Authenticate returns the user whose email and password match. Unknown
// email and wrong password both yield domain.ErrInvalidCredentials after a
// bcrypt comparison of the same cost.
func (s *Service) Authenticate(ctx context.Context, email, password string) (u domain.User, err error) {
	defer func(start time.Time) { s.observe(ctx, "authenticate", start, err) }(time.Now())
	u, err = s.repo.FindUserByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, s.hasher.CompareUnknown(password)
	}
	if err != nil {
		return domain.User{}, err
	}
	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// FindUserByEmail reconstructs the user registered under email.
func (s *Service) FindUserByEmail(ctx context.Context, email string) (u domain.User, err error) {
	defer func(start time.Time) { s.observe(ctx, "find_user_by_email", start, err) }(time.Now())
	return s.repo.FindUserByEmail(ctx, email)
}

// FindUserByID reconstructs the user with id.
func (s *Service) FindUserByID(ctx context.Context, id string) (u domain.User, err error) {
	defer func(start time.Time) { s.observe(ctx, "find_user_by_id", start, err) }(time.Now())
	return s.repo.GetUser(ctx, id)
}

// ListUsers reconstructs every user.
func (s *Service) ListUsers(ctx context.Context) (users []domain.User, err error) {
	defer func(start time.Time) { s.observe(ctx, "list_users", start, err) }(time.Now())
	return s.repo.ListUsers(ctx)
}

// DeleteUser removes a user.
func (s *Service) DeleteUser(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { s.observe(ctx, "delete_user", start, err) }(time.Now())
	return s.repo.DeleteUser(ctx, id)
}

// CreateIncident stores a new pending incident.
func (s *Service) CreateIncident(ctx context.Context, in domain.NewIncident) (id string, err error) {
	defer func(start time.Time) { s.observe(ctx, "create_incident", start, err) }(time.Now())
	return s.repo.CreateIncident(ctx, in)
}

// GetIncident reconstructs the incident with id.
func (s *Service) GetIncident(ctx context.Context, id string) (inc domain.Incident, err error) {
	defer func(start time.Time) { s.observe(ctx, "get_incident", start, err) }(time.Now())
	return s.repo.GetIncident(ctx, id)
}

// ListIncidents reconstructs the incidents matching filter.
func (s *Service) ListIncidents(ctx context.Context, filter domain.IncidentFilter) (incidents []domain.Incident, err error) {
	defer func(start time.Time) { s.observe(ctx, "list_incidents", start, err) }(time.Now())
	return s.repo.ListIncidents(ctx, filter)
}

// VerifyIncident marks an incident verified.
func (s *Service) VerifyIncident(ctx context.Context, id string) (t Transition, err error) {
	defer func(start time.Time) { s.observe(ctx, "verify_incident", start, err) }(time.Now())
	return s.repo.Verify(ctx, id)
}

// FlagIncident marks an incident flagged; reason is echoed in the result.
func (s *Service) FlagIncident(ctx context.Context, id, reason string) (t Transition, err error) {
	defer func(start time.Time) { s.observe(ctx, "flag_incident", start, err) }(time.Now())
	return s.repo.Flag(ctx, id, reason)
}

// DeleteIncident removes an incident.
func (s *Service) DeleteIncident(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { s.observe(ctx, "delete_incident", start, err) }(time.Now())
	return s.repo.DeleteIncident(ctx, id)
}

// DangerZones lists map markers for located incidents.
func (s *Service) DangerZones(ctx context.Context) (zones []domain.DangerZone, err error) {
	defer func(start time.Time) { s.observe(ctx, "danger_zones", start, err) }(time.Now())
	return s.repo.DangerZones(ctx)
}

// Nearby lists incidents within radius meters of a point.
func (s *Service) Nearby(ctx context.Context, lat, lng, radius float64, filter domain.IncidentFilter) (out []NearbyIncident, err error) {
	defer func(start time.Time) { s.observe(ctx, "nearby", start, err) }(time.Now())
	return s.repo.Nearby(ctx, lat, lng, radius, filter)
}

// ListNotifications lists a user's notifications.
func (s *Service) ListNotifications(ctx context.Context, userID string, filter domain.NotificationFilter) (out []domain.Notification, err error) {
	defer func(start time.Time) { s.observe(ctx, "list_notifications", start, err) }(time.Now())
	return s.repo.ListNotifications(ctx, userID, filter)
}

// MarkNotificationRead marks a notification read.
func (s *Service) MarkNotificationRead(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { s.observe(ctx, "mark_notification_read", start, err) }(time.Now())
	return s.repo.MarkNotificationRead(ctx, id)
}

// DismissNotification dismisses a notification.
func (s *Service) DismissNotification(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { s.observe(ctx, "dismiss_notification", start, err) }(time.Now())
	return s.repo.DismissNotification(ctx, id)
}

// Document returns the committed document.
func (s *Service) Document(ctx context.Context) (doc domain.Document, err error) {
	defer func(start time.Time) { s.observe(ctx, "document", start, err) }(time.Now())
	return s.repo.Document(ctx)
}
