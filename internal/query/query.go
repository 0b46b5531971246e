// Package query filters and sorts task snapshots. It never mutates its input
// and has no side effects; handlers feed it the store's copied snapshot.
package query

import (
	"sort"
	"strconv"
	"strings"

	"taskboard/internal/models"
)

// Sort orders accepted by Apply. Anything unrecognized falls back to
// SortCreatedAsc.
const (
	SortPointsDesc  = "points_desc"
	SortCreatedDesc = "created_desc"
	SortCreatedAsc  = "created_asc"
)

// Params carries the raw query-string values. Empty strings mean "no filter";
// Sort defaults to points_desc when empty.
type Params struct {
	Status   string
	Assignee string
	Points   string
	Sort     string
}

// Apply returns the tasks matching every supplied filter, in the requested
// order. A points value that does not parse as an integer disables that
// filter rather than failing the query.
func Apply(tasks []models.Task, p Params) []models.Task {
	result := make([]models.Task, len(tasks))
	copy(result, tasks)

	if p.Status != "" {
		want := models.NormalizeStatus(p.Status)
		result = filter(result, func(t models.Task) bool { return t.Status == want })
	}
	if assignee := strings.ToLower(strings.TrimSpace(p.Assignee)); assignee != "" {
		result = filter(result, func(t models.Task) bool {
			return strings.ToLower(strings.TrimSpace(t.Assignee)) == assignee
		})
	}
	if p.Points != "" {
		if want, err := strconv.Atoi(strings.TrimSpace(p.Points)); err == nil {
			result = filter(result, func(t models.Task) bool { return t.Points == want })
		}
	}

	sortTasks(result, strings.ToLower(strings.TrimSpace(p.Sort)))
	return result
}

func filter(tasks []models.Task, keep func(models.Task) bool) []models.Task {
	out := tasks[:0]
	for _, t := range tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

// sortTasks orders the slice in place. Timestamps are fixed-width UTC strings,
// so plain string comparison is chronological.
func sortTasks(tasks []models.Task, order string) {
	switch order {
	case SortPointsDesc, "":
		sort.SliceStable(tasks, func(i, j int) bool {
			if tasks[i].Points != tasks[j].Points {
				return tasks[i].Points > tasks[j].Points
			}
			return tasks[i].CreatedAt > tasks[j].CreatedAt
		})
	case SortCreatedDesc:
		sort.SliceStable(tasks, func(i, j int) bool {
			return tasks[i].CreatedAt > tasks[j].CreatedAt
		})
	default:
		sort.SliceStable(tasks, func(i, j int) bool {
			return tasks[i].CreatedAt < tasks[j].CreatedAt
		})
	}
}
