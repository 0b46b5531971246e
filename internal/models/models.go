package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the fixed-width UTC timestamp format used everywhere a task or
// user timestamp is stored. Fixed width keeps lexicographic order identical to
// chronological order, which the sort comparators rely on.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// NowISO returns the current UTC time in TimeLayout.
func NowISO() string {
	return time.Now().UTC().Format(TimeLayout)
}

// Task represents a single tracked unit of work.
type Task struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Points    int    `json:"points"`
	Assignee  string `json:"assignee"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// User is a registered account, keyed by username in the persisted users map.
// PasswordHash is a bcrypt digest and only ever travels through the
// persistence codec, never through an HTTP response.
type User struct {
	PasswordHash string `json:"password_hash"`
	CreatedAt    string `json:"created_at"`
	Role         string `json:"role"`
}

// Roles supported by the permission policy. RoleInvited is synthetic: it has
// no stored record and is accepted as an identity by name alone.
const (
	RoleProductOwner = "product_owner"
	RoleNormal       = "normal"
	RoleInvited      = "invited"
)

// Task statuses supported by the board.
const (
	StatusTodo       = "TODO"
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
)

// ValidTaskStatuses enumerates the statuses a task may hold.
var ValidTaskStatuses = map[string]struct{}{
	StatusTodo:       {},
	StatusInProgress: {},
	StatusDone:       {},
}

var validRoles = map[string]struct{}{
	RoleProductOwner: {},
	RoleNormal:       {},
	RoleInvited:      {},
}

// NormalizeStatus trims and uppercases the input and falls back to TODO for
// anything outside the valid set. Empty input therefore also yields TODO.
func NormalizeStatus(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if _, ok := ValidTaskStatuses[s]; ok {
		return s
	}
	return StatusTodo
}

// NormalizeRole maps unknown or empty role names to RoleNormal.
func NormalizeRole(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if _, ok := validRoles[s]; ok {
		return s
	}
	return RoleNormal
}

// ParsePoints converts a loosely typed points value to an int, defaulting to 1
// when the value is absent or does not parse. JSON decoding hands us float64
// or json.Number depending on the decoder and persisted CSV hands us strings,
// so all of those are accepted.
func ParsePoints(v any) int {
	switch n := v.(type) {
	case nil:
		return 1
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		return 1
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i
		}
		return 1
	default:
		return 1
	}
}
