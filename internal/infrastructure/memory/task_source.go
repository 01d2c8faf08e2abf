package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ContentOrchestrator/internal/domain"
	"ContentOrchestrator/internal/ports"
)

// ErrNotFound is returned for writes against an unknown task reference.
var ErrNotFound = errors.New("task not found")

// Record is a snapshot of one stored task.
type Record struct {
	Task     domain.Task
	Fields   map[string]string
	ErrorLog []string
	History  []domain.TaskStatus
}

// TaskSource keeps tasks in process memory. Each write is applied under one lock.
type TaskSource struct {
	mu      sync.Mutex
	order   []string
	records map[string]*Record
	nextRow int
	now     func() time.Time
}

var _ ports.TaskSource = (*TaskSource)(nil)

func NewTaskSource() *TaskSource {
	return &TaskSource{records: map[string]*Record{}, now: time.Now}
}

// Add stores a new pending task and returns it.
func (s *TaskSource) Add(prompt string, priority domain.Priority, category string) domain.Task {
	now := s.now()
	return s.Seed(domain.Task{
		ID:        uuid.New().String(),
		Prompt:    prompt,
		Priority:  priority,
		Status:    domain.StatusPending,
		Category:  category,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// Seed stores task as given, filling ID, Ref and Row when they are empty.
func (s *TaskSource) Seed(task domain.Task) domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.Ref == "" {
		task.Ref = task.ID
	}
	s.nextRow++
	if task.Row == 0 {
		task.Row = s.nextRow
	}
	if _, exists := s.records[task.Ref]; !exists {
		s.order = append(s.order, task.Ref)
	}
	s.records[task.Ref] = &Record{Task: task, Fields: map[string]string{}}
	return task
}

func (s *TaskSource) ListPending(_ context.Context, filter ports.TaskFilter) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := filter.Statuses
	if len(statuses) == 0 {
		statuses = []domain.TaskStatus{domain.StatusPending, ""}
	}

	var out []domain.Task
	for _, ref := range s.order {
		task := s.records[ref].Task
		if filter.Priority != nil && task.Priority != *filter.Priority {
			continue
		}
		if !hasStatus(statuses, task.Status) {
			continue
		}
		out = append(out, task.Clone())
	}
	return out, nil
}

func (s *TaskSource) UpdateStatus(_ context.Context, ref string, status domain.TaskStatus, extra map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[ref]
	if !ok {
		return fmt.Errorf("update status %s: %w", ref, ErrNotFound)
	}
	rec.Task.Status = status
	rec.Task.UpdatedAt = s.now()
	rec.History = append(rec.History, status)
	for k, v := range extra {
		rec.Fields[k] = v
	}
	return nil
}

func (s *TaskSource) SaveResults(_ context.Context, ref string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[ref]
	if !ok {
		return fmt.Errorf("save results %s: %w", ref, ErrNotFound)
	}
	for k, v := range fields {
		rec.Fields[k] = v
	}
	rec.Task.UpdatedAt = s.now()
	return nil
}

func (s *TaskSource) LogError(_ context.Context, ref, message string, category domain.ErrorCategory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[ref]
	if !ok {
		return fmt.Errorf("log error %s: %w", ref, ErrNotFound)
	}
	rec.ErrorLog = append(rec.ErrorLog, domain.ErrorNote(s.now(), category, message))
	rec.Fields["error_notes"] = strings.Join(rec.ErrorLog, "\n")
	return nil
}

// Get returns a copy of the record stored under ref.
func (s *TaskSource) Get(ref string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[ref]
	if !ok {
		return Record{}, false
	}
	out := Record{
		Task:     rec.Task,
		Fields:   make(map[string]string, len(rec.Fields)),
		ErrorLog: append([]string(nil), rec.ErrorLog...),
		History:  append([]domain.TaskStatus(nil), rec.History...),
	}
	for k, v := range rec.Fields {
		out.Fields[k] = v
	}
	return out, true
}

// All returns every task in insertion order.
func (s *TaskSource) All() []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Task, 0, len(s.order))
	for _, ref := range s.order {
		out = append(out, s.records[ref].Task.Clone())
	}
	return out
}

func hasStatus(statuses []domain.TaskStatus, status domain.TaskStatus) bool {
	for _, st := range statuses {
		if st == status {
			return true
		}
	}
	return false
}
