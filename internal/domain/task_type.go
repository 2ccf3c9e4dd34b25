package domain

// TaskType identifies one kind of pipeline job. The set is closed:
// every type the system can run is declared here, together with the
// media file stages it moves through (see pipelineStages).
type TaskType string

// Possible task type values
const (
	TaskTypeExtractAudio        TaskType = "extract_audio"
	TaskTypeTranscription       TaskType = "transcription"
	TaskTypeAnalyzeTranscript   TaskType = "analyze_transcript"
	TaskTypeSummarizeTranscript TaskType = "summarize_transcript"
	TaskTypeHealthCheck         TaskType = "health_check"
)

// pipelineStageInfo associates a pipeline task type with the media file
// stages it touches: the stage a file is in while the task runs, the
// last stable stage before it (the rollback target), and the stage the
// file reaches when the task completes.
type pipelineStageInfo struct {
	active MediaFileStatus
	prior  MediaFileStatus
	done   MediaFileStatus
}

var pipelineStages = map[TaskType]pipelineStageInfo{
	TaskTypeExtractAudio: {
		active: MediaFileStatusExtractingAudio,
		prior:  MediaFileStatusUploaded,
		done:   MediaFileStatusAudioExtracted,
	},
	TaskTypeTranscription: {
		active: MediaFileStatusTranscribing,
		prior:  MediaFileStatusAudioExtracted,
		done:   MediaFileStatusTranscribed,
	},
	TaskTypeAnalyzeTranscript: {
		active: MediaFileStatusAnalyzing,
		prior:  MediaFileStatusTranscribed,
		done:   MediaFileStatusAnalyzed,
	},
	TaskTypeSummarizeTranscript: {
		active: MediaFileStatusSummarizing,
		prior:  MediaFileStatusAnalyzed,
		done:   MediaFileStatusSummarized,
	},
}

// IsValid reports whether the task type is one of the declared values.
func (t TaskType) IsValid() bool {
	switch t {
	case TaskTypeExtractAudio, TaskTypeTranscription, TaskTypeAnalyzeTranscript,
		TaskTypeSummarizeTranscript, TaskTypeHealthCheck:
		return true
	default:
		return false
	}
}

// IsPipeline reports whether the task type operates on a media file.
// Maintenance types such as health_check are valid but not pipeline work.
func (t TaskType) IsPipeline() bool {
	_, ok := pipelineStages[t]
	return ok
}

// ActiveStage returns the media file stage a file is in while a task of
// this type is running. ok is false for non-pipeline types.
func (t TaskType) ActiveStage() (MediaFileStatus, bool) {
	info, ok := pipelineStages[t]
	return info.active, ok
}

// PriorStage returns the last stable media file stage before a task of
// this type starts. Recovery rolls a file back to this stage, never
// forward. ok is false for non-pipeline types.
func (t TaskType) PriorStage() (MediaFileStatus, bool) {
	info, ok := pipelineStages[t]
	return info.prior, ok
}

// CompletedStage returns the media file stage a file reaches when a
// task of this type completes. ok is false for non-pipeline types.
func (t TaskType) CompletedStage() (MediaFileStatus, bool) {
	info, ok := pipelineStages[t]
	return info.done, ok
}
