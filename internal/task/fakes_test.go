package task

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kalinov/scribe-api/internal/domain"
	"github.com/kalinov/scribe-api/internal/events"
	"github.com/kalinov/scribe-api/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockTask implements the Task interface for testing
type mockTask struct {
	id          uuid.UUID
	taskType    domain.TaskType
	userID      uuid.UUID
	mediaFileID uuid.UUID
	execFn      func(ctx context.Context) error
}

func (m *mockTask) ID() uuid.UUID          { return m.id }
func (m *mockTask) Type() domain.TaskType  { return m.taskType }
func (m *mockTask) UserID() uuid.UUID      { return m.userID }
func (m *mockTask) MediaFileID() uuid.UUID { return m.mediaFileID }

func (m *mockTask) Execute(ctx context.Context) error {
	if m.execFn != nil {
		return m.execFn(ctx)
	}
	return nil
}

func newMockTask() *mockTask {
	return &mockTask{
		id:          uuid.New(),
		taskType:    domain.TaskTypeExtractAudio,
		userID:      uuid.New(),
		mediaFileID: uuid.New(),
	}
}

// memTaskStore is an in-memory store.TaskStore for tests.
type memTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.ProcessingTask

	createErr error
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{tasks: make(map[uuid.UUID]*domain.ProcessingTask)}
}

func (s *memTaskStore) get(id uuid.UUID) *domain.ProcessingTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		cp := *t
		return &cp
	}
	return nil
}

func (s *memTaskStore) Create(_ context.Context, task *domain.ProcessingTask) error {
	if s.createErr != nil {
		return s.createErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.tasks {
		if existing.MediaFileID == task.MediaFileID && existing.Type == task.Type && !existing.IsTerminal() {
			return store.ErrActiveTaskExists
		}
	}

	cp := *task
	s.tasks[task.ID] = &cp
	return nil
}

func (s *memTaskStore) GetByID(_ context.Context, id uuid.UUID) (*domain.ProcessingTask, error) {
	if t := s.get(id); t != nil {
		return t, nil
	}
	return nil, store.ErrTaskNotFound
}

func (s *memTaskStore) UpdateStatus(_ context.Context, id uuid.UUID, status domain.TaskStatus, errorMessage string) error {
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
	return nil
}

func (s *memTaskStore) UpdateProgress(_ context.Context, id uuid.UUID, progress float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || t.Status != domain.TaskStatusInProgress {
		return nil
	}
	if progress > t.Progress {
		t.Progress = progress
	}
	return nil
}

func (s *memTaskStore) FindByStatus(_ context.Context, status domain.TaskStatus, updatedBefore time.Time) ([]*domain.ProcessingTask, error) {
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

func (s *memTaskStore) FindByMediaFile(_ context.Context, mediaFileID uuid.UUID) ([]*domain.ProcessingTask, error) {
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

func (s *memTaskStore) CountCompletedRetries(_ context.Context, mediaFileID uuid.UUID, taskType domain.TaskType) (int, error) {
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

func (s *memTaskStore) WithTx(_ *sql.Tx) store.TaskStore { return s }

// memMediaFileStore is an in-memory store.MediaFileStore for tests.
type memMediaFileStore struct {
	mu    sync.Mutex
	files map[uuid.UUID]*domain.MediaFile
}

func newMemMediaFileStore() *memMediaFileStore {
	return &memMediaFileStore{files: make(map[uuid.UUID]*domain.MediaFile)}
}

func (s *memMediaFileStore) put(file *domain.MediaFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *file
	s.files[file.ID] = &cp
}

func (s *memMediaFileStore) get(id uuid.UUID) *domain.MediaFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.files[id]; ok {
		cp := *f
		return &cp
	}
	return nil
}

func (s *memMediaFileStore) Create(_ context.Context, file *domain.MediaFile) error {
	s.put(file)
	return nil
}

func (s *memMediaFileStore) GetByID(_ context.Context, id uuid.UUID) (*domain.MediaFile, error) {
	if f := s.get(id); f != nil {
		return f, nil
	}
	return nil, store.ErrMediaFileNotFound
}

func (s *memMediaFileStore) UpdateStatus(_ context.Context, id uuid.UUID, status domain.MediaFileStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return store.ErrMediaFileNotFound
	}
	f.Status = status
	f.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memMediaFileStore) SetCurrentTask(_ context.Context, id uuid.UUID, taskID *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return store.ErrMediaFileNotFound
	}
	f.CurrentTaskID = taskID
	return nil
}

func (s *memMediaFileStore) FindByStatuses(_ context.Context, statuses []domain.MediaFileStatus) ([]*domain.MediaFile, error) {
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
	return out, nil
}

func (s *memMediaFileStore) WithTx(_ *sql.Tx) store.MediaFileStore { return s }

// memArtifactStore is an in-memory store.ArtifactStore for tests.
type memArtifactStore struct {
	mu       sync.Mutex
	contents map[uuid.UUID]map[store.ArtifactKind]string
}

func newMemArtifactStore() *memArtifactStore {
	return &memArtifactStore{contents: make(map[uuid.UUID]map[store.ArtifactKind]string)}
}

func (s *memArtifactStore) Save(_ context.Context, mediaFileID uuid.UUID, kind store.ArtifactKind, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.contents[mediaFileID] == nil {
		s.contents[mediaFileID] = make(map[store.ArtifactKind]string)
	}
	s.contents[mediaFileID][kind] = content
	return nil
}

func (s *memArtifactStore) Get(_ context.Context, mediaFileID uuid.UUID, kind store.ArtifactKind) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if content, ok := s.contents[mediaFileID][kind]; ok {
		return content, nil
	}
	return "", store.ErrArtifactNotFound
}

func (s *memArtifactStore) WithTx(_ *sql.Tx) store.ArtifactStore { return s }

// memSettingsStore is an in-memory store.SettingsStore for tests.
type memSettingsStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemSettingsStore() *memSettingsStore {
	return &memSettingsStore{values: make(map[string]string)}
}

func (s *memSettingsStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.values[key]; ok {
		return v, nil
	}
	return "", store.ErrSettingNotFound
}

func (s *memSettingsStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *memSettingsStore) WithTx(_ *sql.Tx) store.SettingsStore { return s }

// recordingEmitter captures emitted events.
type recordingEmitter struct {
	mu     sync.Mutex
	events []*events.TaskRequestEvent
	err    error
}

func (e *recordingEmitter) EmitEvent(_ context.Context, event *events.TaskRequestEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return e.err
}

func (e *recordingEmitter) emitted() []*events.TaskRequestEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*events.TaskRequestEvent(nil), e.events...)
}

// stubProviders implements all four provider interfaces with function
// fields, defaulting to canned outputs.
type stubProviders struct {
	extractFn    func(ctx context.Context, file *domain.MediaFile) (string, error)
	transcribeFn func(ctx context.Context, file *domain.MediaFile, audioRef string) (string, error)
	analyzeFn    func(ctx context.Context, transcript string) (string, error)
	summarizeFn  func(ctx context.Context, transcript string) (string, error)
}

func (p *stubProviders) ExtractAudio(ctx context.Context, file *domain.MediaFile) (string, error) {
	if p.extractFn != nil {
		return p.extractFn(ctx, file)
	}
	return "audio://" + file.ID.String(), nil
}

func (p *stubProviders) Transcribe(ctx context.Context, file *domain.MediaFile, audioRef string) (string, error) {
	if p.transcribeFn != nil {
		return p.transcribeFn(ctx, file, audioRef)
	}
	return "hello world", nil
}

func (p *stubProviders) AnalyzeTranscript(ctx context.Context, transcript string) (string, error) {
	if p.analyzeFn != nil {
		return p.analyzeFn(ctx, transcript)
	}
	return "analysis of: " + transcript, nil
}

func (p *stubProviders) SummarizeTranscript(ctx context.Context, transcript string) (string, error) {
	if p.summarizeFn != nil {
		return p.summarizeFn(ctx, transcript)
	}
	return "summary of: " + transcript, nil
}

// testDeps wires PipelineDeps over fresh fakes.
func testDeps() (PipelineDeps, *memTaskStore, *memMediaFileStore, *memArtifactStore, *recordingEmitter) {
	tasks := newMemTaskStore()
	files := newMemMediaFileStore()
	artifacts := newMemArtifactStore()
	emitter := &recordingEmitter{}
	providers := &stubProviders{}

	deps := PipelineDeps{
		Tasks:     tasks,
		Files:     files,
		Artifacts: artifacts,
		Settings:  newMemSettingsStore(),
		Providers: Providers{
			Extractor:   providers,
			Transcriber: providers,
			Analyzer:    providers,
			Summarizer:  providers,
		},
		Emitter: emitter,
		Logger:  testLogger(),
	}

	return deps, tasks, files, artifacts, emitter
}

var errProviderDown = errors.New("provider unavailable")
