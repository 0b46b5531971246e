package flatfile

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"taskboard/internal/models"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoadTasksCreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "tasks.json")

	tasks, repairs, err := loadTasks(path, false)
	if err != nil {
		t.Fatalf("loadTasks: %v", err)
	}
	if len(tasks) != 0 || repairs != 0 {
		t.Errorf("expected empty collection, got %d tasks and %d repairs", len(tasks), repairs)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file to be created: %v", err)
	}
}

func TestLoadTasksLenientRepairs(t *testing.T) {
	body := `{"tasks": [
		{"id": "t1", "title": "ok", "points": 3, "assignee": "alice", "status": "DONE", "created_at": "2024-01-01T00:00:00.000000Z", "updated_at": "2024-01-01T00:00:00.000000Z"},
		{"id": "t2", "title": "needs defaults", "points": "abc", "status": "bogus"},
		{"title": "no id, dropped"},
		{"id": "t3", "title": ""}
	]}`
	path := writeFile(t, "tasks.json", body)

	tasks, repairs, err := loadTasks(path, false)
	if err != nil {
		t.Fatalf("loadTasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 surviving tasks, got %d", len(tasks))
	}
	if repairs < 3 {
		t.Errorf("expected at least 3 repairs (two drops, one defaulted record), got %d", repairs)
	}

	repairedTask := tasks[1]
	if repairedTask.Points != 1 {
		t.Errorf("expected points default 1, got %d", repairedTask.Points)
	}
	if repairedTask.Status != models.StatusTodo {
		t.Errorf("expected status default TODO, got %q", repairedTask.Status)
	}
	if repairedTask.CreatedAt == "" || repairedTask.UpdatedAt == "" {
		t.Errorf("expected timestamps to be stamped, got %+v", repairedTask)
	}
}

func TestLoadTasksLegacyPerUserShape(t *testing.T) {
	body := `{"tasks": {
		"alice": [{"id": "t1", "title": "from alice", "points": 2, "status": "TODO", "created_at": "2024-01-01T00:00:00.000000Z", "updated_at": "2024-01-01T00:00:00.000000Z"}],
		"bob":   [{"id": "t2", "title": "from bob", "points": 1, "status": "DONE", "created_at": "2024-01-02T00:00:00.000000Z", "updated_at": "2024-01-02T00:00:00.000000Z"}]
	}}`
	path := writeFile(t, "tasks.json", body)

	tasks, _, err := loadTasks(path, false)
	if err != nil {
		t.Fatalf("loadTasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks from legacy map, got %d", len(tasks))
	}

	owners := map[string]string{}
	for _, task := range tasks {
		owners[task.ID] = task.Assignee
	}
	if owners["t1"] != "alice" || owners["t2"] != "bob" {
		t.Errorf("expected map keys to become assignees, got %v", owners)
	}
}

func TestLoadTasksStrictMode(t *testing.T) {
	path := writeFile(t, "tasks.json", `{"tasks": [{"title": "no id"}]}`)

	if _, _, err := loadTasks(path, true); err == nil {
		t.Error("expected strict load to fail on a dropped record")
	}
}

func TestLoadRepairIsIdempotent(t *testing.T) {
	body := `{"tasks": [{"id": "t1", "title": "x", "points": "zzz", "status": "weird", "created_at": "2024-01-01T00:00:00.000000Z", "updated_at": "2024-01-01T00:00:00.000000Z"}]}`
	path := writeFile(t, "tasks.json", body)

	first, _, err := loadTasks(path, false)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	second, _, err := loadTasks(path, false)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("loads disagree: %+v vs %+v", first, second)
	}
}

func TestTasksRoundTripJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	want := []models.Task{
		{ID: "t1", Title: "one", Points: 2, Assignee: "alice", Status: models.StatusTodo, CreatedAt: "2024-01-01T00:00:00.000000Z", UpdatedAt: "2024-01-01T00:00:00.000000Z"},
		{ID: "t2", Title: "two", Points: 5, Assignee: "", Status: models.StatusDone, CreatedAt: "2024-01-02T00:00:00.000000Z", UpdatedAt: "2024-01-03T00:00:00.000000Z"},
	}

	if err := saveTasks(path, want); err != nil {
		t.Fatalf("saveTasks: %v", err)
	}
	got, repairs, err := loadTasks(path, true)
	if err != nil {
		t.Fatalf("loadTasks: %v", err)
	}
	if repairs != 0 {
		t.Errorf("round trip should need no repairs, got %d", repairs)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestTasksRoundTripCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.csv")
	want := []models.Task{
		{ID: "t1", Title: "with, comma", Points: 3, Assignee: "bob", Status: models.StatusInProgress, CreatedAt: "2024-01-01T00:00:00.000000Z", UpdatedAt: "2024-01-01T00:00:00.000000Z"},
	}

	if err := saveTasks(path, want); err != nil {
		t.Fatalf("saveTasks: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.HasPrefix(string(raw), "id,title,points,assignee,status,created_at,updated_at") {
		t.Errorf("expected csv header row, got %q", strings.SplitN(string(raw), "\n", 2)[0])
	}

	got, repairs, err := loadTasks(path, true)
	if err != nil {
		t.Fatalf("loadTasks: %v", err)
	}
	if repairs != 0 {
		t.Errorf("round trip should need no repairs, got %d", repairs)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestUsersRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	want := map[string]models.User{
		"alice": {PasswordHash: "$2a$10$fake", CreatedAt: "2024-01-01T00:00:00.000000Z", Role: models.RoleProductOwner},
	}

	if err := saveUsers(path, want); err != nil {
		t.Fatalf("saveUsers: %v", err)
	}
	got, repairs, err := loadUsers(path, true)
	if err != nil {
		t.Fatalf("loadUsers: %v", err)
	}
	if repairs != 0 {
		t.Errorf("round trip should need no repairs, got %d", repairs)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestLoadUsersDropsBrokenRecords(t *testing.T) {
	body := `{"users": {
		"alice": {"password_hash": "$2a$10$fake", "created_at": "2024-01-01T00:00:00.000000Z", "role": "superuser"},
		"":      {"password_hash": "$2a$10$fake"},
		"bob":   {"password_hash": ""}
	}}`
	path := writeFile(t, "users.json", body)

	users, repairs, err := loadUsers(path, false)
	if err != nil {
		t.Fatalf("loadUsers: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 surviving user, got %d", len(users))
	}
	if users["alice"].Role != models.RoleNormal {
		t.Errorf("expected unknown role to default to normal, got %q", users["alice"].Role)
	}
	if repairs < 3 {
		t.Errorf("expected at least 3 repairs, got %d", repairs)
	}
}
