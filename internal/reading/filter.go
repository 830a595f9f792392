package reading

import (
	"strings"
	"time"
)

// Filter narrows a listing. Every bound is optional and inclusive;
// present bounds combine with AND.
type Filter struct {
	StartDate *time.Time
	EndDate   *time.Time
	MinValue  *int64
	MaxValue  *int64
}

// IsEmpty reports whether the filter has no bounds at all.
func (f Filter) IsEmpty() bool {
	return f.StartDate == nil && f.EndDate == nil && f.MinValue == nil && f.MaxValue == nil
}

// Matches reports whether r satisfies every present bound.
func (f Filter) Matches(r Reading) bool {
	if f.StartDate != nil && r.LoggedAt.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && r.LoggedAt.After(*f.EndDate) {
		return false
	}
	if f.MinValue != nil && r.Value < *f.MinValue {
		return false
	}
	if f.MaxValue != nil && r.Value > *f.MaxValue {
		return false
	}
	return true
}

// whereClause renders the filter as a SQL WHERE clause with positional
// arguments. It returns an empty clause for an empty filter.
func (f Filter) whereClause() (string, []any) {
	var conds []string
	var args []any

	if f.StartDate != nil {
		conds = append(conds, "logged_at >= ?")
		args = append(args, formatTimestamp(*f.StartDate))
	}
	if f.EndDate != nil {
		conds = append(conds, "logged_at <= ?")
		args = append(args, formatTimestamp(*f.EndDate))
	}
	if f.MinValue != nil {
		conds = append(conds, "value >= ?")
		args = append(args, *f.MinValue)
	}
	if f.MaxValue != nil {
		conds = append(conds, "value <= ?")
		args = append(args, *f.MaxValue)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
