package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
	"github.com/jwalitptl/practice-api/pkg/metrics"
)

// Checker decides whether a candidate interval can be booked for a
// practitioner. It has no side effects.
type Checker struct {
	slots        repository.AvailabilityRepository
	exceptions   repository.ExceptionRepository
	appointments repository.AppointmentRepository
	loc          *time.Location
	metrics      *metrics.Metrics
}

// NewChecker builds a checker evaluating calendar dates in loc. A nil loc
// means UTC.
func NewChecker(
	slots repository.AvailabilityRepository,
	exceptions repository.ExceptionRepository,
	appointments repository.AppointmentRepository,
	loc *time.Location,
	m *metrics.Metrics,
) *Checker {
	if loc == nil {
		loc = time.UTC
	}
	return &Checker{
		slots:        slots,
		exceptions:   exceptions,
		appointments: appointments,
		loc:          loc,
		metrics:      m,
	}
}

// IsBookable runs the schedule checks and the overlap query. A schedule
// failure is reported ahead of a conflict; Conflicts is filled either way.
func (c *Checker) IsBookable(ctx context.Context, req model.BookingRequest) (*model.Bookability, error) {
	start := req.Start.In(c.loc)
	end := req.End.In(c.loc)

	if !end.After(start) {
		return c.result(model.ReasonInvalidInterval, nil), nil
	}
	if !sameDate(start, end) {
		return c.result(model.ReasonCrossesDayBoundary, nil), nil
	}

	reason, err := c.scheduleReason(ctx, req, start, end)
	if err != nil {
		return nil, err
	}

	conflicts, err := c.appointments.FindConflicting(ctx, req.PractitionerID, start, end, req.ExcludeAppointmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to check conflicts: %w", err)
	}
	if reason == model.ReasonOK && len(conflicts) > 0 {
		reason = model.ReasonConflict
	}
	return c.result(reason, conflicts), nil
}

func (c *Checker) scheduleReason(ctx context.Context, req model.BookingRequest, start, end time.Time) (model.BookabilityReason, error) {
	slot, err := c.slots.Find(ctx, req.PractitionerID, model.WeekdayOf(start), req.AppointmentType)
	if err != nil {
		return "", fmt.Errorf("failed to load availability: %w", err)
	}
	if slot == nil {
		return model.ReasonNoSlot, nil
	}

	exceptions, err := c.exceptions.Overlapping(ctx, req.PractitionerID, start, end)
	if err != nil {
		return "", fmt.Errorf("failed to load exceptions: %w", err)
	}

	var (
		typeBlocked bool
		window      *hoursWindow
	)
	for _, e := range exceptions {
		switch e.ExceptionType {
		case model.ExceptionTimeOff:
			return model.ReasonTimeOff, nil
		case model.ExceptionTypeOnly:
			if !e.Allows(req.AppointmentType) {
				typeBlocked = true
			}
		case model.ExceptionModifiedHours:
			if e.ModifiedStartTime == nil || e.ModifiedEndTime == nil {
				continue
			}
			window = window.narrow(*e.ModifiedStartTime, *e.ModifiedEndTime)
		}
	}

	switch {
	case typeBlocked:
		return model.ReasonTypeNotAllowed, nil
	case window != nil:
		if !window.contains(start, end) {
			return model.ReasonOutsideModifiedHours, nil
		}
		return model.ReasonOK, nil
	case !slot.Contains(start, end):
		return model.ReasonOutsideSlot, nil
	}
	return model.ReasonOK, nil
}

func (c *Checker) result(reason model.BookabilityReason, conflicts []uuid.UUID) *model.Bookability {
	c.metrics.Bookability(string(reason))
	return &model.Bookability{
		Bookable:  reason == model.ReasonOK,
		Reason:    reason,
		Conflicts: conflicts,
	}
}

// hoursWindow is the intersection of every modified_hours exception in play.
type hoursWindow struct {
	start, end model.TimeOfDay
}

func (w *hoursWindow) narrow(start, end model.TimeOfDay) *hoursWindow {
	if w == nil {
		return &hoursWindow{start: start, end: end}
	}
	n := *w
	if start > n.start {
		n.start = start
	}
	if end < n.end {
		n.end = end
	}
	return &n
}

func (w *hoursWindow) contains(start, end time.Time) bool {
	if w.end <= w.start {
		return false
	}
	return !start.Before(w.start.On(start)) && !end.After(w.end.On(start))
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
