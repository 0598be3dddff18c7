package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/looplab/fsm"

	"incidentcore/pkg/domain"
)

const (
	eventVerify = "verify"
	eventFlag   = "flag"
)

var reviewStates = []string{
	string(domain.StatusPending),
	string(domain.StatusVerified),
	string(domain.StatusFlagged),
}

// reviewEvents is the incident review lifecycle. Both events are valid from
// every state; firing one in its own target state is a no-op.
var reviewEvents = fsm.Events{
	{Name: eventVerify, Src: reviewStates, Dst: string(domain.StatusVerified)},
	{Name: eventFlag, Src: reviewStates, Dst: string(domain.StatusFlagged)},
}

// review fires event on a machine positioned at from. changed is false when
// from already is the destination.
func review(ctx context.Context, from domain.IncidentStatus, event string) (to domain.IncidentStatus, changed bool, err error) {
	m := fsm.NewFSM(string(from), reviewEvents, nil)
	err = m.Event(ctx, event)
	var same fsm.NoTransitionError
	switch {
	case errors.As(err, &same):
		return from, false, nil
	case err != nil:
		return from, false, fmt.Errorf("%s from %s: %w", event, from, err)
	}
	return domain.IncidentStatus(m.Current()), true, nil
}

// Transition reports the outcome of a status change. Changed is false when
// the incident already was in the target state.
type Transition struct {
	ID      string                `json:"id"`
	From    domain.IncidentStatus `json:"from"`
	To      domain.IncidentStatus `json:"to"`
	Reason  string                `json:"reason,omitempty"`
	Changed bool                  `json:"changed"`
}

// Verify moves an incident to Verified (approved=true, flagged=false).
func (r *Repository) Verify(ctx context.Context, id string) (Transition, error) {
	return r.transition(ctx, id, domain.StatusVerified, "")
}

// Flag moves an incident to Flagged (approved=false, flagged=true). The
// reason is echoed back and included in the author's notification.
func (r *Repository) Flag(ctx context.Context, id, reason string) (Transition, error) {
	if err := domain.ValidateText("flag incident", map[string]string{"reason": reason}); err != nil {
		return Transition{}, err
	}
	return r.transition(ctx, id, domain.StatusFlagged, strings.TrimSpace(reason))
}

func (r *Repository) transition(ctx context.Context, id string, to domain.IncidentStatus, reason string) (Transition, error) {
	t := Transition{ID: id, To: to, Reason: reason}
	op, event := "verify incident", eventVerify
	if to == domain.StatusFlagged {
		op, event = "flag incident", eventFlag
	}
	now := r.opts.now()
	notificationID := r.opts.newID()
	machineCtx := context.WithoutCancel(ctx)
	_, err := r.writes.Schedule(ctx, op, func(doc *domain.Document) error {
		if findByID(doc.IncidentTypes, id) < 0 {
			return domain.NotFound(domain.EntityIncident, id)
		}
		// a missing status fragment reads as pending and is recreated below
		t.From = domain.StatusPending
		i := findByID(doc.IncidentStatuses, id)
		if i >= 0 {
			t.From = domain.StatusOf(doc.IncidentStatuses[i].Approved, doc.IncidentStatuses[i].Flagged)
		}
		next, changed, err := review(machineCtx, t.From, event)
		if err != nil {
			return err
		}
		if !changed {
			return ErrUnchanged
		}
		row := domain.StatusRow{ID: id, Approved: next == domain.StatusVerified, Flagged: next == domain.StatusFlagged}
		if i >= 0 {
			doc.IncidentStatuses[i] = row
		} else {
			doc.IncidentStatuses = append(doc.IncidentStatuses, row)
		}
		t.Changed = true
		if a := findByID(doc.IncidentAuthors, id); a >= 0 {
			doc.Notifications = append(doc.Notifications, statusNotification(notificationID, doc.IncidentAuthors[a].UserID, id, next, reason, now))
		}
		return nil
	})
	if err != nil {
		return Transition{}, err
	}
	return t, nil
}

func statusNotification(id, userID, incidentID string, to domain.IncidentStatus, reason string, at time.Time) domain.NotificationRow {
	n := domain.NotificationRow{ID: id, UserID: userID, IncidentID: incidentID, CreatedAt: at}
	switch to {
	case domain.StatusFlagged:
		n.Kind = domain.NotificationFlagged
		n.Message = "Your report was flagged"
		if reason != "" {
			n.Message = fmt.Sprintf("Your report was flagged: %s", reason)
		}
	default:
		n.Kind = domain.NotificationVerified
		n.Message = "Your report was verified"
	}
	return n
}
