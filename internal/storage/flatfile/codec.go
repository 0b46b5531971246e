package flatfile

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"taskboard/internal/models"
)

// csvHeader is the fixed column order of the CSV task encoding. The header row
// is always written and always expected.
var csvHeader = []string{"id", "title", "points", "assignee", "status", "created_at", "updated_at"}

type taskDocument struct {
	Tasks json.RawMessage `json:"tasks"`
}

type userDocument struct {
	Users map[string]models.User `json:"users"`
}

// isCSV picks the task codec from the file extension.
func isCSV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".csv")
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// loadTasks reads the task file, creating it with an empty collection when it
// does not exist. Malformed records are repaired or dropped per the lenient
// decode policy; the second return value counts every repair and drop. In
// strict mode the first repair aborts the load instead.
func loadTasks(path string, strict bool) ([]models.Task, int, error) {
	if err := ensureDir(path); err != nil {
		return nil, 0, fmt.Errorf("ensure data dir: %w", err)
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := saveTasks(path, nil); err != nil {
			return nil, 0, err
		}
		return []models.Task{}, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read tasks file: %w", err)
	}

	var raw []map[string]any
	if isCSV(path) {
		raw, err = decodeTasksCSV(data)
	} else {
		raw, err = decodeTasksJSON(data)
	}
	if err != nil {
		if strict {
			return nil, 0, err
		}
		// Unreadable file body counts as one repair and yields an empty
		// collection, which the next save will overwrite with canonical form.
		return []models.Task{}, 1, nil
	}

	now := models.NowISO()
	tasks := make([]models.Task, 0, len(raw))
	repairs := 0
	for _, record := range raw {
		task, repaired, ok := repairTask(record, now)
		if !ok {
			repairs++
			if strict {
				return nil, repairs, fmt.Errorf("strict load: dropping record without id or title")
			}
			continue
		}
		if repaired {
			repairs++
			if strict {
				return nil, repairs, fmt.Errorf("strict load: record %s required repair", task.ID)
			}
		}
		tasks = append(tasks, task)
	}
	return tasks, repairs, nil
}

// decodeTasksJSON accepts the canonical {"tasks": [...]} shape as well as the
// legacy {"tasks": {"user": [...]}} per-user map, which is flattened.
func decodeTasksJSON(data []byte) ([]map[string]any, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var doc taskDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode tasks file: %w", err)
	}
	if len(doc.Tasks) == 0 {
		return nil, nil
	}

	var flat []map[string]any
	if err := json.Unmarshal(doc.Tasks, &flat); err == nil {
		return flat, nil
	}

	var byUser map[string][]map[string]any
	if err := json.Unmarshal(doc.Tasks, &byUser); err != nil {
		return nil, fmt.Errorf("decode tasks collection: %w", err)
	}
	var merged []map[string]any
	for owner, list := range byUser {
		for _, record := range list {
			if _, ok := record["assignee"]; !ok {
				record["assignee"] = owner
			}
			merged = append(merged, record)
		}
	}
	return merged, nil
}

func decodeTasksCSV(data []byte) ([]map[string]any, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.FieldsPerRecord = -1

	var records []map[string]any
	first := true
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode tasks csv: %w", err)
		}
		if first {
			first = false
			if len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "id") {
				continue
			}
		}
		record := map[string]any{}
		for i, column := range csvHeader {
			if i < len(row) {
				record[column] = row[i]
			}
		}
		records = append(records, record)
	}
	return records, nil
}

// repairTask normalizes one raw record into a Task. Records without an id or a
// title cannot be repaired and are reported as not ok; everything else is
// defaulted in place and flagged as repaired.
func repairTask(record map[string]any, now string) (models.Task, bool, bool) {
	id := strings.TrimSpace(stringField(record, "id"))
	title := strings.TrimSpace(stringField(record, "title"))
	if id == "" || title == "" {
		return models.Task{}, false, false
	}

	task := models.Task{
		ID:        id,
		Title:     title,
		Assignee:  strings.TrimSpace(stringField(record, "assignee")),
		CreatedAt: strings.TrimSpace(stringField(record, "created_at")),
		UpdatedAt: strings.TrimSpace(stringField(record, "updated_at")),
	}

	repaired := false

	rawStatus := stringField(record, "status")
	task.Status = models.NormalizeStatus(rawStatus)
	if task.Status != strings.TrimSpace(rawStatus) {
		repaired = true
	}

	task.Points = models.ParsePoints(record["points"])
	if _, ok := record["points"]; !ok {
		repaired = true
	} else if s, isString := record["points"].(string); isString && models.ParsePoints(s) == 1 && strings.TrimSpace(s) != "1" {
		repaired = true
	}

	if task.CreatedAt == "" {
		task.CreatedAt = now
		repaired = true
	}
	if task.UpdatedAt == "" {
		task.UpdatedAt = task.CreatedAt
		repaired = true
	}

	return task, repaired, true
}

func stringField(record map[string]any, key string) string {
	if v, ok := record[key].(string); ok {
		return v
	}
	return ""
}

// saveTasks writes the whole collection to a temp file in the target directory
// and renames it into place, so a crash mid-write never leaves a truncated
// task file behind.
func saveTasks(path string, tasks []models.Task) error {
	if tasks == nil {
		tasks = []models.Task{}
	}

	var body []byte
	var err error
	if isCSV(path) {
		body, err = encodeTasksCSV(tasks)
	} else {
		body, err = json.MarshalIndent(map[string]any{"tasks": tasks}, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}
	return writeAtomic(path, body)
}

func encodeTasksCSV(tasks []models.Task) ([]byte, error) {
	var sb strings.Builder
	writer := csv.NewWriter(&sb)
	if err := writer.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, t := range tasks {
		row := []string{t.ID, t.Title, fmt.Sprintf("%d", t.Points), t.Assignee, t.Status, t.CreatedAt, t.UpdatedAt}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

// loadUsers reads the users file, creating it empty when absent. Users are
// always JSON regardless of the task codec. Entries with an empty name or
// password hash are dropped, unknown roles default to normal.
func loadUsers(path string, strict bool) (map[string]models.User, int, error) {
	if err := ensureDir(path); err != nil {
		return nil, 0, fmt.Errorf("ensure data dir: %w", err)
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := saveUsers(path, nil); err != nil {
			return nil, 0, err
		}
		return map[string]models.User{}, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read users file: %w", err)
	}

	var doc userDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		if strict {
			return nil, 0, fmt.Errorf("decode users file: %w", err)
		}
		return map[string]models.User{}, 1, nil
	}

	now := models.NowISO()
	users := make(map[string]models.User, len(doc.Users))
	repairs := 0
	for name, user := range doc.Users {
		name = strings.TrimSpace(name)
		if name == "" || user.PasswordHash == "" {
			repairs++
			if strict {
				return nil, repairs, fmt.Errorf("strict load: dropping user record without name or password hash")
			}
			continue
		}
		if normalized := models.NormalizeRole(user.Role); normalized != user.Role {
			user.Role = normalized
			repairs++
			if strict {
				return nil, repairs, fmt.Errorf("strict load: user %s required repair", name)
			}
		}
		if user.CreatedAt == "" {
			user.CreatedAt = now
			repairs++
			if strict {
				return nil, repairs, fmt.Errorf("strict load: user %s required repair", name)
			}
		}
		users[name] = user
	}
	return users, repairs, nil
}

func saveUsers(path string, users map[string]models.User) error {
	if users == nil {
		users = map[string]models.User{}
	}
	body, err := json.MarshalIndent(userDocument{Users: users}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode users: %w", err)
	}
	return writeAtomic(path, body)
}

func writeAtomic(path string, body []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
