package lifecycle

import "time"

// ActiveWindow is the reconstructed in-force interval for a Policy or
// Permit (§4.5 "Active window reconstruction"). To is nil while the record
// is still in force.
type ActiveWindow struct {
	From time.Time
	To   *time.Time
}

// IsActiveAt reports whether t falls inside the window: from ≤ t AND (to is
// nil OR t < to).
func (w ActiveWindow) IsActiveAt(t time.Time) bool {
	if w.From.IsZero() {
		return false
	}
	if t.Before(w.From) {
		return false
	}
	return w.To == nil || t.Before(*w.To)
}

// PolicyWindow reconstructs a Policy's ActiveWindow. From is the later of
// activated_at and start_date — a policy activated ahead of its start_date
// (§4.5/§9: "if start_date > today, the entity is still set active but the
// compliance service treats it as not-yet-in-force until start_date") does
// not count as in force until start_date arrives. To is cancelled_at if
// cancelled, end_date if expired, otherwise nil (still in force).
func PolicyWindow(activatedAt, cancelledAt, startDate, endDate *time.Time, status string) ActiveWindow {
	return windowFor(activatedAt, cancelledAt, startDate, endDate, status)
}

// PermitWindow is the Permit analogue of PolicyWindow — the computation is
// identical, the shared lifecycle shape (§4.5) makes no distinction here.
func PermitWindow(activatedAt, cancelledAt, startDate, endDate *time.Time, status string) ActiveWindow {
	return windowFor(activatedAt, cancelledAt, startDate, endDate, status)
}

func windowFor(activatedAt, cancelledAt, startDate, endDate *time.Time, status string) ActiveWindow {
	w := ActiveWindow{}
	if activatedAt != nil {
		w.From = *activatedAt
	}
	if startDate != nil && startDate.After(w.From) {
		w.From = *startDate
	}
	switch status {
	case "cancelled":
		w.To = cancelledAt
	case "expired":
		w.To = endDate
	}
	return w
}
