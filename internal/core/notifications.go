package core

import (
	"context"
	"sort"

	"incidentcore/pkg/domain"
)

// ListNotifications returns the notifications addressed to userID that pass
// filter, newest first.
func (r *Repository) ListNotifications(ctx context.Context, userID string, filter domain.NotificationFilter) ([]domain.Notification, error) {
	switch filter {
	case "", domain.NotificationsAll, domain.NotificationsUnread, domain.NotificationsDismissed:
	default:
		return nil, domain.InvalidArgument("list notifications", "unknown filter %q", filter)
	}
	doc, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.Notification
	for _, row := range doc.Notifications {
		if row.UserID != userID {
			continue
		}
		n := domain.Notification(row)
		if filter.Match(n) {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// MarkNotificationRead sets the read flag of a notification.
func (r *Repository) MarkNotificationRead(ctx context.Context, id string) error {
	return r.updateNotification(ctx, "mark notification read", id, func(n *domain.NotificationRow) bool {
		if n.Read {
			return false
		}
		n.Read = true
		return true
	})
}

// DismissNotification hides a notification from the default listing.
func (r *Repository) DismissNotification(ctx context.Context, id string) error {
	return r.updateNotification(ctx, "dismiss notification", id, func(n *domain.NotificationRow) bool {
		if n.Dismissed {
			return false
		}
		n.Dismissed = true
		return true
	})
}

func (r *Repository) updateNotification(ctx context.Context, op, id string, update func(*domain.NotificationRow) bool) error {
	_, err := r.writes.Schedule(ctx, op, func(doc *domain.Document) error {
		i := findByID(doc.Notifications, id)
		if i < 0 {
			return domain.NotFound(domain.EntityNotification, id)
		}
		if !update(&doc.Notifications[i]) {
			return ErrUnchanged
		}
		return nil
	})
	return err
}
