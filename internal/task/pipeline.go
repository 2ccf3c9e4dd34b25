package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/kalinov/scribe-api/internal/domain"
	"github.com/kalinov/scribe-api/internal/events"
	"github.com/kalinov/scribe-api/internal/recovery"
	"github.com/kalinov/scribe-api/internal/store"
)

// AudioExtractor extracts the audio track from a media file and returns
// a reference to the extracted audio.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, file *domain.MediaFile) (string, error)
}

// Transcriber converts extracted audio into a transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, file *domain.MediaFile, audioRef string) (string, error)
}

// TranscriptAnalyzer produces a structured analysis of a transcript.
type TranscriptAnalyzer interface {
	AnalyzeTranscript(ctx context.Context, transcript string) (string, error)
}

// TranscriptSummarizer produces a summary of a transcript.
type TranscriptSummarizer interface {
	SummarizeTranscript(ctx context.Context, transcript string) (string, error)
}

// Providers bundles the stage implementations behind the pipeline.
type Providers struct {
	Extractor   AudioExtractor
	Transcriber Transcriber
	Analyzer    TranscriptAnalyzer
	Summarizer  TranscriptSummarizer
}

// PipelineDeps carries everything a pipeline task needs to run a stage.
type PipelineDeps struct {
	Tasks     store.TaskStore
	Files     store.MediaFileStore
	Artifacts store.ArtifactStore
	Settings  store.SettingsStore
	Providers Providers
	Emitter   events.EventEmitter
	Logger    *slog.Logger
}

// nextTaskType chains pipeline stages: when a stage completes, a task
// of the next type is requested. The last stage has no successor.
var nextTaskType = map[domain.TaskType]domain.TaskType{
	domain.TaskTypeExtractAudio:      domain.TaskTypeTranscription,
	domain.TaskTypeTranscription:     domain.TaskTypeAnalyzeTranscript,
	domain.TaskTypeAnalyzeTranscript: domain.TaskTypeSummarizeTranscript,
}

// pipelineTask runs one stage of the media pipeline. All four stage
// tasks share the same lifecycle: move the file into the stage's
// in-flight status, do the provider work, store the output artifact,
// advance the file, and request the next stage.
type pipelineTask struct {
	id          uuid.UUID
	userID      uuid.UUID
	mediaFileID uuid.UUID
	taskType    domain.TaskType
	deps        PipelineDeps
}

// NewExtractAudioTask creates the task for the audio extraction stage.
func NewExtractAudioTask(deps PipelineDeps, mediaFileID, userID uuid.UUID) Task {
	return newPipelineTask(deps, domain.TaskTypeExtractAudio, mediaFileID, userID)
}

// NewTranscriptionTask creates the task for the transcription stage.
func NewTranscriptionTask(deps PipelineDeps, mediaFileID, userID uuid.UUID) Task {
	return newPipelineTask(deps, domain.TaskTypeTranscription, mediaFileID, userID)
}

// NewAnalyzeTranscriptTask creates the task for the analysis stage.
func NewAnalyzeTranscriptTask(deps PipelineDeps, mediaFileID, userID uuid.UUID) Task {
	return newPipelineTask(deps, domain.TaskTypeAnalyzeTranscript, mediaFileID, userID)
}

// NewSummarizeTranscriptTask creates the task for the summarization stage.
func NewSummarizeTranscriptTask(deps PipelineDeps, mediaFileID, userID uuid.UUID) Task {
	return newPipelineTask(deps, domain.TaskTypeSummarizeTranscript, mediaFileID, userID)
}

func newPipelineTask(deps PipelineDeps, taskType domain.TaskType, mediaFileID, userID uuid.UUID) *pipelineTask {
	return &pipelineTask{
		id:          uuid.New(),
		userID:      userID,
		mediaFileID: mediaFileID,
		taskType:    taskType,
		deps:        deps,
	}
}

func (t *pipelineTask) ID() uuid.UUID          { return t.id }
func (t *pipelineTask) Type() domain.TaskType  { return t.taskType }
func (t *pipelineTask) UserID() uuid.UUID      { return t.userID }
func (t *pipelineTask) MediaFileID() uuid.UUID { return t.mediaFileID }

// Execute runs the stage. On success the media file advances to the
// stage's completed status and the next stage is requested. On failure
// the file moves to the error stage; the worker writes the failed
// status on the task record.
func (t *pipelineTask) Execute(ctx context.Context) error {
	log := t.logger().With(
		slog.String("task_id", t.id.String()),
		slog.String("task_type", string(t.taskType)),
		slog.String("media_file_id", t.mediaFileID.String()))

	file, err := t.deps.Files.GetByID(ctx, t.mediaFileID)
	if err != nil {
		return fmt.Errorf("failed to load media file: %w", err)
	}

	activeStage, ok := t.taskType.ActiveStage()
	if !ok {
		return fmt.Errorf("task type %q is not a pipeline stage", t.taskType)
	}

	if err := t.deps.Files.UpdateStatus(ctx, file.ID, activeStage); err != nil {
		return fmt.Errorf("failed to move media file into %s: %w", activeStage, err)
	}
	if err := t.deps.Files.SetCurrentTask(ctx, file.ID, &t.id); err != nil {
		return fmt.Errorf("failed to set current task reference: %w", err)
	}

	if err := t.deps.Tasks.UpdateProgress(ctx, t.id, 0.1); err != nil {
		log.Warn("failed to record progress", slog.String("error", err.Error()))
	}

	if err := t.runStage(ctx, file); err != nil {
		t.failFile(ctx, file.ID, log)
		return err
	}

	if err := t.deps.Tasks.UpdateProgress(ctx, t.id, 0.9); err != nil {
		log.Warn("failed to record progress", slog.String("error", err.Error()))
	}

	doneStage, _ := t.taskType.CompletedStage()
	if err := t.deps.Files.UpdateStatus(ctx, file.ID, doneStage); err != nil {
		return fmt.Errorf("failed to advance media file to %s: %w", doneStage, err)
	}
	if err := t.deps.Files.SetCurrentTask(ctx, file.ID, nil); err != nil {
		return fmt.Errorf("failed to clear current task reference: %w", err)
	}

	t.requestNextStage(ctx, log)

	log.Info("pipeline stage complete", slog.String("stage", string(doneStage)))
	return nil
}

// runStage does the provider work for this task's type and stores the
// resulting artifact.
func (t *pipelineTask) runStage(ctx context.Context, file *domain.MediaFile) error {
	switch t.taskType {
	case domain.TaskTypeExtractAudio:
		audioRef, err := t.deps.Providers.Extractor.ExtractAudio(ctx, file)
		if err != nil {
			return fmt.Errorf("audio extraction failed: %w", err)
		}
		return t.saveArtifact(ctx, store.ArtifactAudio, audioRef)

	case domain.TaskTypeTranscription:
		audioRef, err := t.deps.Artifacts.Get(ctx, file.ID, store.ArtifactAudio)
		if err != nil {
			return fmt.Errorf("failed to load extracted audio: %w", err)
		}

		transcript, err := t.deps.Providers.Transcriber.Transcribe(ctx, file, audioRef)
		if err != nil {
			return fmt.Errorf("transcription failed: %w", err)
		}

		overlay := recovery.LoadSettingsOverlay(ctx, t.deps.Settings)
		if overlay.GarbageCleanupEnabled {
			transcript = ScrubGarbageWords(transcript, overlay.MaxWordLength)
		}
		return t.saveArtifact(ctx, store.ArtifactTranscript, transcript)

	case domain.TaskTypeAnalyzeTranscript:
		transcript, err := t.deps.Artifacts.Get(ctx, file.ID, store.ArtifactTranscript)
		if err != nil {
			return fmt.Errorf("failed to load transcript: %w", err)
		}

		analysis, err := t.deps.Providers.Analyzer.AnalyzeTranscript(ctx, transcript)
		if err != nil {
			return fmt.Errorf("transcript analysis failed: %w", err)
		}
		return t.saveArtifact(ctx, store.ArtifactAnalysis, analysis)

	case domain.TaskTypeSummarizeTranscript:
		transcript, err := t.deps.Artifacts.Get(ctx, file.ID, store.ArtifactTranscript)
		if err != nil {
			return fmt.Errorf("failed to load transcript: %w", err)
		}

		summary, err := t.deps.Providers.Summarizer.SummarizeTranscript(ctx, transcript)
		if err != nil {
			return fmt.Errorf("transcript summarization failed: %w", err)
		}
		return t.saveArtifact(ctx, store.ArtifactSummary, summary)

	default:
		return fmt.Errorf("task type %q is not a pipeline stage", t.taskType)
	}
}

func (t *pipelineTask) saveArtifact(ctx context.Context, kind store.ArtifactKind, content string) error {
	if err := t.deps.Artifacts.Save(ctx, t.mediaFileID, kind, content); err != nil {
		return fmt.Errorf("failed to save %s artifact: %w", kind, err)
	}
	return nil
}

// failFile moves the media file to the error stage and clears its task
// reference. Best effort: the task's own failure is the primary signal.
func (t *pipelineTask) failFile(ctx context.Context, fileID uuid.UUID, log *slog.Logger) {
	if err := t.deps.Files.UpdateStatus(ctx, fileID, domain.MediaFileStatusError); err != nil {
		log.Error("failed to move media file to error stage", slog.String("error", err.Error()))
	}
	if err := t.deps.Files.SetCurrentTask(ctx, fileID, nil); err != nil {
		log.Error("failed to clear current task reference", slog.String("error", err.Error()))
	}
}

// requestNextStage emits the event that chains the pipeline forward.
// An emit failure leaves the file at its completed stage for manual
// resubmission; the finished stage is not rolled back over it.
func (t *pipelineTask) requestNextStage(ctx context.Context, log *slog.Logger) {
	next, ok := nextTaskType[t.taskType]
	if !ok {
		return
	}

	event, err := events.NewPipelineTaskRequest(next, t.mediaFileID, t.userID)
	if err != nil {
		log.Error("failed to build next stage event",
			slog.String("next_type", string(next)),
			slog.String("error", err.Error()))
		return
	}

	if err := t.deps.Emitter.EmitEvent(ctx, event); err != nil {
		log.Error("failed to emit next stage event",
			slog.String("next_type", string(next)),
			slog.String("error", err.Error()))
	}
}

func (t *pipelineTask) logger() *slog.Logger {
	if t.deps.Logger != nil {
		return t.deps.Logger
	}
	return slog.Default()
}

// PipelineTaskFactory builds pipeline tasks by type and rebuilds them
// from durable records for requeueing.
type PipelineTaskFactory struct {
	deps PipelineDeps
}

// NewPipelineTaskFactory creates a factory over the given dependencies.
func NewPipelineTaskFactory(deps PipelineDeps) *PipelineTaskFactory {
	return &PipelineTaskFactory{deps: deps}
}

// CreateTask builds a new pipeline task of the given type.
// Returns an error for non-pipeline task types.
func (f *PipelineTaskFactory) CreateTask(taskType domain.TaskType, mediaFileID, userID uuid.UUID) (Task, error) {
	if !taskType.IsPipeline() {
		return nil, fmt.Errorf("task type %q is not a pipeline stage", taskType)
	}

	return newPipelineTask(f.deps, taskType, mediaFileID, userID), nil
}

// CreateFromRecord implements TaskFactory: the rebuilt task keeps the
// record's ID so requeued work keeps tracking the same row.
func (f *PipelineTaskFactory) CreateFromRecord(rec *domain.ProcessingTask) (Task, error) {
	if !rec.Type.IsPipeline() {
		return nil, fmt.Errorf("task type %q is not a pipeline stage", rec.Type)
	}

	t := newPipelineTask(f.deps, rec.Type, rec.MediaFileID, rec.UserID)
	t.id = rec.ID
	return t, nil
}

// Ensure PipelineTaskFactory implements TaskFactory
var _ TaskFactory = (*PipelineTaskFactory)(nil)
