package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kalinov/scribe-api/internal/config"
	"github.com/kalinov/scribe-api/internal/domain"
	"github.com/kalinov/scribe-api/internal/platform/logger"
)

// WhisperTranscriber converts extracted audio into a transcript with
// whisper.cpp. The transcript text is returned to the caller; the .txt
// file whisper writes next to the audio is an intermediate.
type WhisperTranscriber struct {
	whisperPath string
	modelPath   string
	runner      commandRunner
	logger      *slog.Logger

	readFile func(name string) ([]byte, error)
}

// NewWhisperTranscriber creates the transcriber from the media
// configuration. If logger is nil, a default logger will be used.
func NewWhisperTranscriber(cfg config.MediaConfig, logger *slog.Logger) *WhisperTranscriber {
	if logger == nil {
		logger = slog.Default()
	}

	return &WhisperTranscriber{
		whisperPath: cfg.WhisperPath,
		modelPath:   cfg.WhisperModelPath,
		runner:      &execRunner{},
		logger:      logger.With(slog.String("component", "whisper_transcriber")),
		readFile:    os.ReadFile,
	}
}

// Transcribe runs whisper.cpp over the extracted audio and returns the
// transcript text.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, file *domain.MediaFile, audioRef string) (string, error) {
	log := logger.FromContextOrDefault(ctx, t.logger)

	if strings.TrimSpace(audioRef) == "" {
		return "", fmt.Errorf("audio reference is required")
	}

	textBase := strings.TrimSuffix(audioRef, ".wav")
	args := []string{
		"-m", t.modelPath,
		"-f", audioRef,
		"-of", textBase,
		"-otxt",
	}

	result, err := t.runner.Run(ctx, t.whisperPath, args...)
	if err != nil {
		log.Error("whisper.cpp transcription failed",
			slog.String("media_file_id", file.ID.String()),
			slog.Int("exit_code", result.ExitCode),
			slog.String("stderr", result.Stderr))
		return "", fmt.Errorf("whisper.cpp transcription failed: %w", err)
	}

	content, err := t.readFile(textBase + ".txt")
	if err != nil {
		return "", fmt.Errorf("failed to read transcript file: %w", err)
	}

	transcript := strings.TrimSpace(string(content))
	if transcript == "" {
		return "", fmt.Errorf("whisper.cpp produced an empty transcript for %s", audioRef)
	}

	return transcript, nil
}
