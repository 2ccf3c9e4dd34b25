package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kalinov/scribe-api/internal/config"
	"github.com/kalinov/scribe-api/internal/domain"
	"github.com/kalinov/scribe-api/internal/platform/logger"
)

// FFmpegExtractor extracts a 16 kHz mono wav from an uploaded media
// file. The returned reference is the path to the wav under the work
// directory; the transcription stage reads it from there.
type FFmpegExtractor struct {
	ffmpegPath string
	uploadDir  string
	workDir    string
	runner     commandRunner
	logger     *slog.Logger

	stat     func(name string) (os.FileInfo, error)
	mkdirAll func(path string, perm os.FileMode) error
}

// NewFFmpegExtractor creates the extractor from the media configuration.
// If logger is nil, a default logger will be used.
func NewFFmpegExtractor(cfg config.MediaConfig, logger *slog.Logger) *FFmpegExtractor {
	if logger == nil {
		logger = slog.Default()
	}

	return &FFmpegExtractor{
		ffmpegPath: cfg.FFmpegPath,
		uploadDir:  cfg.UploadDir,
		workDir:    cfg.WorkDir,
		runner:     &execRunner{},
		logger:     logger.With(slog.String("component", "ffmpeg_extractor")),
		stat:       os.Stat,
		mkdirAll:   os.MkdirAll,
	}
}

// ExtractAudio runs ffmpeg over the uploaded file and returns the path
// of the extracted wav.
func (e *FFmpegExtractor) ExtractAudio(ctx context.Context, file *domain.MediaFile) (string, error) {
	log := logger.FromContextOrDefault(ctx, e.logger)

	inputPath := filepath.Join(e.uploadDir, file.Filename)
	if _, err := e.stat(inputPath); err != nil {
		return "", fmt.Errorf("cannot access uploaded media %s: %w", inputPath, err)
	}

	if err := e.mkdirAll(e.workDir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create work directory %s: %w", e.workDir, err)
	}

	outPath := filepath.Join(e.workDir, file.ID.String()+".wav")
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}

	result, err := e.runner.Run(ctx, e.ffmpegPath, args...)
	if err != nil {
		log.Error("ffmpeg audio conversion failed",
			slog.String("media_file_id", file.ID.String()),
			slog.Int("exit_code", result.ExitCode),
			slog.String("stderr", result.Stderr))
		return "", fmt.Errorf("ffmpeg audio conversion failed: %w", err)
	}

	if _, err := e.stat(outPath); err != nil {
		return "", fmt.Errorf("ffmpeg completed but output file is missing: %w", err)
	}

	return outPath, nil
}
