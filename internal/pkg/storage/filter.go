package storage

import (
	"fmt"
	"strings"
)

// Special user filter values understood by StatFilter. GuestUser selects
// anonymous rows, ActiveUsers selects real (non-internal) accounts and a
// value prefixed with CustomListPrefix carries a comma-separated email list.
const (
	GuestUser        = "guest"
	ActiveUsers      = "ACTIVE_USERS"
	CustomListPrefix = "CUSTOM_LIST:"
)

// whereBuilder composes a WHERE clause as an ordered list of parametrized
// conditions joined with AND. Conditions are written with `?` markers which
// are rewritten into positional `$n` placeholders, so parametrization is
// structural rather than convention-based.
type whereBuilder struct {
	conditions []string
	args       []interface{}
}

// bind registers an argument and returns its placeholder.
func (b *whereBuilder) bind(arg interface{}) string {
	b.args = append(b.args, arg)
	return fmt.Sprintf("$%d", len(b.args))
}

// add appends one condition; every `?` in it is replaced with the
// placeholder of the matching argument, in order.
func (b *whereBuilder) add(condition string, args ...interface{}) {
	for _, arg := range args {
		condition = strings.Replace(condition, "?", b.bind(arg), 1)
	}
	b.conditions = append(b.conditions, condition)
}

// addRaw appends a condition that carries no bound arguments.
func (b *whereBuilder) addRaw(condition string) {
	b.conditions = append(b.conditions, condition)
}

// clause returns the composed WHERE clause with a leading space, or the
// empty string when no condition is active.
func (b *whereBuilder) clause() string {
	if len(b.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conditions, " AND ")
}

func (b *whereBuilder) arguments() []interface{} {
	return b.args
}

// StatFilter - optional criteria for statistics list/count operations.
// Zero values mean "no filtering".
type StatFilter struct {
	ActionType string
	UserEmail  string
}

// apply contributes the active filter conditions to the builder.
func (f StatFilter) apply(b *whereBuilder) {
	if f.ActionType != "" {
		b.add("action_type = ?", f.ActionType)
	}
	if f.UserEmail == "" {
		return
	}
	switch {
	case f.UserEmail == GuestUser:
		b.addRaw("user_email IS NULL")

	case f.UserEmail == ActiveUsers:
		b.addRaw("user_email IS NOT NULL AND user_email NOT LIKE '%example.com%' AND LOWER(user_email) NOT LIKE '%admin%'")

	case strings.HasPrefix(f.UserEmail, CustomListPrefix):
		users := splitNonEmpty(strings.TrimPrefix(f.UserEmail, CustomListPrefix))
		if len(users) == 0 {
			return
		}
		placeholders := make([]string, len(users))
		for i, u := range users {
			placeholders[i] = b.bind(u)
		}
		b.addRaw(fmt.Sprintf("user_email IN (%s)", strings.Join(placeholders, ",")))

	default:
		b.add("user_email = ?", f.UserEmail)
	}
}

// splitNonEmpty splits a comma-separated list, trimming whitespace and
// discarding empty entries.
func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
