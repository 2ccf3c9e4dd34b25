package recovery

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kalinov/scribe-api/internal/domain"
	"github.com/kalinov/scribe-api/internal/store"
)

// fakeTaskStore is an in-memory store.TaskStore for tests. WithTx
// returns the same instance so transactional code paths can run without
// a database.
type fakeTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.ProcessingTask

	// statusWrites counts UpdateStatus calls that changed a row, keyed by
	// task ID. Used to assert idempotence.
	statusWrites map[uuid.UUID]int

	findErr error
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{
		tasks:        make(map[uuid.UUID]*domain.ProcessingTask),
		statusWrites: make(map[uuid.UUID]int),
	}
}

func (s *fakeTaskStore) put(task *domain.ProcessingTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *task
	s.tasks[task.ID] = &cp
}

func (s *fakeTaskStore) get(id uuid.UUID) *domain.ProcessingTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		cp := *t
		return &cp
	}
	return nil
}

func (s *fakeTaskStore) Create(_ context.Context, task *domain.ProcessingTask) error {
	if err := task.Validate(); err != nil {
		return err
	}
	s.put(task)
	return nil
}

func (s *fakeTaskStore) GetByID(_ context.Context, id uuid.UUID) (*domain.ProcessingTask, error) {
	if t := s.get(id); t != nil {
		return t, nil
	}
	return nil, store.ErrTaskNotFound
}

func (s *fakeTaskStore) UpdateStatus(_ context.Context, id uuid.UUID, status domain.TaskStatus, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil
	}

	now := time.Now().UTC()
	t.Status = status
	t.UpdatedAt = now
	if status == domain.TaskStatusCompleted || status == domain.TaskStatusFailed {
		t.CompletedAt = &now
	} else {
		t.CompletedAt = nil
	}
	if status == domain.TaskStatusFailed {
		t.ErrorMessage = errorMessage
	} else {
		t.ErrorMessage = ""
	}

	s.statusWrites[id]++
	return nil
}

func (s *fakeTaskStore) UpdateProgress(_ context.Context, id uuid.UUID, progress float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || t.Status != domain.TaskStatusInProgress {
		return nil
	}
	if progress > t.Progress {
		t.Progress = progress
		t.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *fakeTaskStore) FindByStatus(_ context.Context, status domain.TaskStatus, updatedBefore time.Time) ([]*domain.ProcessingTask, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.ProcessingTask
	for _, t := range s.tasks {
		if t.Status != status {
			continue
		}
		if !updatedBefore.IsZero() && !t.UpdatedAt.Before(updatedBefore) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeTaskStore) FindByMediaFile(_ context.Context, mediaFileID uuid.UUID) ([]*domain.ProcessingTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.ProcessingTask
	for _, t := range s.tasks {
		if t.MediaFileID == mediaFileID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeTaskStore) CountCompletedRetries(_ context.Context, mediaFileID uuid.UUID, taskType domain.TaskType) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, t := range s.tasks {
		if t.MediaFileID == mediaFileID && t.Type == taskType && t.Status == domain.TaskStatusFailed {
			count++
		}
	}
	return count, nil
}

func (s *fakeTaskStore) WithTx(_ *sql.Tx) store.TaskStore { return s }

// fakeMediaFileStore is an in-memory store.MediaFileStore for tests.
type fakeMediaFileStore struct {
	mu    sync.Mutex
	files map[uuid.UUID]*domain.MediaFile

	statusWrites map[uuid.UUID]int
}

func newFakeMediaFileStore() *fakeMediaFileStore {
	return &fakeMediaFileStore{
		files:        make(map[uuid.UUID]*domain.MediaFile),
		statusWrites: make(map[uuid.UUID]int),
	}
}

func (s *fakeMediaFileStore) put(file *domain.MediaFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *file
	s.files[file.ID] = &cp
}

func (s *fakeMediaFileStore) get(id uuid.UUID) *domain.MediaFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.files[id]; ok {
		cp := *f
		return &cp
	}
	return nil
}

func (s *fakeMediaFileStore) Create(_ context.Context, file *domain.MediaFile) error {
	if err := file.Validate(); err != nil {
		return err
	}
	s.put(file)
	return nil
}

func (s *fakeMediaFileStore) GetByID(_ context.Context, id uuid.UUID) (*domain.MediaFile, error) {
	if f := s.get(id); f != nil {
		return f, nil
	}
	return nil, store.ErrMediaFileNotFound
}

func (s *fakeMediaFileStore) UpdateStatus(_ context.Context, id uuid.UUID, status domain.MediaFileStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return store.ErrMediaFileNotFound
	}
	f.Status = status
	f.UpdatedAt = time.Now().UTC()
	s.statusWrites[id]++
	return nil
}

func (s *fakeMediaFileStore) SetCurrentTask(_ context.Context, id uuid.UUID, taskID *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return store.ErrMediaFileNotFound
	}
	f.CurrentTaskID = taskID
	f.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *fakeMediaFileStore) FindByStatuses(_ context.Context, statuses []domain.MediaFileStatus) ([]*domain.MediaFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[domain.MediaFileStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	var out []*domain.MediaFile
	for _, f := range s.files {
		if want[f.Status] {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (s *fakeMediaFileStore) WithTx(_ *sql.Tx) store.MediaFileStore { return s }

// fakeSettingsStore is an in-memory store.SettingsStore for tests.
type fakeSettingsStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeSettingsStore() *fakeSettingsStore {
	return &fakeSettingsStore{values: make(map[string]string)}
}

func (s *fakeSettingsStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.values[key]; ok {
		return v, nil
	}
	return "", store.ErrSettingNotFound
}

func (s *fakeSettingsStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *fakeSettingsStore) WithTx(_ *sql.Tx) store.SettingsStore { return s }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig returns a valid policy with round numbers the tests can
// reason about.
func testConfig() Config {
	return Config{
		StalenessThreshold:    5 * time.Minute,
		StartupRecoveryDelay:  time.Minute,
		HealthCheckInterval:   5 * time.Minute,
		HealthCheckMaxRuntime: 4 * time.Minute,
		OrphanThreshold:       15 * time.Minute,
		RecentStallThreshold:  10 * time.Minute,
		LongStallThreshold:    time.Hour,
		DefaultMaxDuration:    30 * time.Minute,
		MaxDurations: map[domain.TaskType]time.Duration{
			domain.TaskTypeTranscription: 30 * time.Minute,
			domain.TaskTypeExtractAudio:  10 * time.Minute,
		},
		PreventTaskOverlap: true,
	}
}
