package flatfile

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"taskboard/internal/models"
)

// Sentinel errors the HTTP layer maps to status codes.
var (
	ErrNotFound      = errors.New("task not found")
	ErrEmptyTitle    = errors.New("title must not be empty")
	ErrDuplicateUser = errors.New("user already exists")
)

// Options tunes how the backing files are loaded.
type Options struct {
	// StrictLoad turns every lenient repair or dropped record into a fatal
	// load error instead of a logged count.
	StrictLoad bool
}

// Store keeps the authoritative task and user collections in memory, mirrored
// from two flat files. One mutex guards everything; the critical-section
// contract is that it stays held from the first cache mutation until the
// matching file flush has returned, so no two requests ever interleave a
// cache update with a save.
type Store struct {
	mu        sync.Mutex
	tasksPath string
	usersPath string
	tasks     []models.Task
	users     map[string]models.User
	logger    *slog.Logger
}

// Open loads both collections exactly once and returns a ready store. Any
// load failure is fatal; there is no partially populated store.
func Open(tasksPath, usersPath string, opts Options, logger *slog.Logger) (*Store, error) {
	if tasksPath == "" || usersPath == "" {
		return nil, fmt.Errorf("empty data file path")
	}
	if logger == nil {
		logger = slog.Default()
	}

	tasks, taskRepairs, err := loadTasks(tasksPath, opts.StrictLoad)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	users, userRepairs, err := loadUsers(usersPath, opts.StrictLoad)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}

	if taskRepairs+userRepairs > 0 {
		logger.Warn("repaired malformed records during load",
			slog.Int("task_repairs", taskRepairs),
			slog.Int("user_repairs", userRepairs))
	}
	logger.Info("store loaded",
		slog.Int("tasks", len(tasks)),
		slog.Int("users", len(users)))

	return &Store{
		tasksPath: tasksPath,
		usersPath: usersPath,
		tasks:     tasks,
		users:     users,
		logger:    logger,
	}, nil
}

// Close flushes both collections one last time.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := saveTasks(s.tasksPath, s.tasks); err != nil {
		return err
	}
	return saveUsers(s.usersPath, s.users)
}

// TasksPath reports the backing task file, for the health endpoint.
func (s *Store) TasksPath() string { return s.tasksPath }

// UsersPath reports the backing users file, for the health endpoint.
func (s *Store) UsersPath() string { return s.usersPath }

// List returns a copy of the task collection. The copy is what the query
// engine filters and sorts, so callers never observe a half-mutated slice.
func (s *Store) List() []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]models.Task, len(s.tasks))
	copy(snapshot, s.tasks)
	return snapshot
}

// Get fetches a single task by id.
func (s *Store) Get(id string) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return models.Task{}, ErrNotFound
}

// Create validates and inserts a new task, assigning its id and timestamps,
// and flushes the collection before returning.
func (s *Store) Create(title string, points any, assignee, status string) (models.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Task{}, ErrEmptyTitle
	}

	now := models.NowISO()
	task := models.Task{
		ID:        uuid.NewString(),
		Title:     title,
		Points:    models.ParsePoints(points),
		Assignee:  strings.TrimSpace(assignee),
		Status:    models.NormalizeStatus(status),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
	if err := saveTasks(s.tasksPath, s.tasks); err != nil {
		return models.Task{}, fmt.Errorf("persist tasks: %w", err)
	}
	return task, nil
}

// Update applies a partial patch to an existing task. Only keys present in
// the patch change the task; a present-but-empty title is rejected and the
// stored task is left untouched. UpdatedAt always advances on success.
func (s *Store) Update(id string, patch map[string]any) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, t := range s.tasks {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return models.Task{}, ErrNotFound
	}

	task := s.tasks[idx]
	if raw, ok := patch["title"]; ok {
		title, _ := raw.(string)
		title = strings.TrimSpace(title)
		if title == "" {
			return models.Task{}, ErrEmptyTitle
		}
		task.Title = title
	}
	if raw, ok := patch["assignee"]; ok {
		assignee, _ := raw.(string)
		task.Assignee = strings.TrimSpace(assignee)
	}
	if raw, ok := patch["points"]; ok {
		task.Points = models.ParsePoints(raw)
	}
	if raw, ok := patch["status"]; ok {
		status, _ := raw.(string)
		task.Status = models.NormalizeStatus(status)
	}
	task.UpdatedAt = models.NowISO()

	s.tasks[idx] = task
	if err := saveTasks(s.tasksPath, s.tasks); err != nil {
		return models.Task{}, fmt.Errorf("persist tasks: %w", err)
	}
	return task, nil
}

// Delete removes a task by id and flushes the collection.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range s.tasks {
		if t.ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			if err := saveTasks(s.tasksPath, s.tasks); err != nil {
				return fmt.Errorf("persist tasks: %w", err)
			}
			return nil
		}
	}
	return ErrNotFound
}

// Register stores a new user record, enforcing username uniqueness, and
// flushes the users file before returning.
func (s *Store) Register(username string, user models.User) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username must not be empty")
	}
	user.Role = models.NormalizeRole(user.Role)
	if user.CreatedAt == "" {
		user.CreatedAt = models.NowISO()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.users[username]; taken {
		return ErrDuplicateUser
	}
	s.users[username] = user
	if err := saveUsers(s.usersPath, s.users); err != nil {
		return fmt.Errorf("persist users: %w", err)
	}
	return nil
}

// Lookup fetches a registered user by name.
func (s *Store) Lookup(username string) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[strings.TrimSpace(username)]
	return user, ok
}
