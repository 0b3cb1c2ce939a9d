package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"sacraltrack/logger"
)

// ErrTranscodeFailed is returned when the codec engine fails for any reason.
// The underlying ffmpeg error is wrapped for the logs.
var ErrTranscodeFailed = errors.New("an error occurred while converting the audio file")

// SegmentFilePattern is the ffmpeg output pattern for segment files.
const SegmentFilePattern = "segment-%03d.mp3"

// TranscodeResult describes the distribution copy produced from a source file.
type TranscodeResult struct {
	MP3Path  string
	MimeType string
}

// FFmpegTranscoder converts validated source audio into the distribution
// format by shelling out to ffmpeg.
type FFmpegTranscoder struct {
	ffmpegPath string
	bitrate    string // constant bitrate, e.g. "192k"
}

// NewFFmpegTranscoder creates a new FFmpegTranscoder.
func NewFFmpegTranscoder(ffmpegPath, bitrate string) *FFmpegTranscoder {
	return &FFmpegTranscoder{ffmpegPath: ffmpegPath, bitrate: bitrate}
}

// FFmpegPath returns the configured ffmpeg executable path.
func (t *FFmpegTranscoder) FFmpegPath() string {
	return t.ffmpegPath
}

// MP3OutputName derives the output file name by replacing the source
// extension with .mp3.
func MP3OutputName(sourceName string) string {
	ext := filepath.Ext(sourceName)
	return strings.TrimSuffix(sourceName, ext) + ".mp3"
}

// encodeArgs builds the ffmpeg argument list for the CBR MP3 encode.
func (t *FFmpegTranscoder) encodeArgs(inputPath, outputPath string) []string {
	return []string{
		"-i", inputPath,
		"-c:a", "libmp3lame",
		"-b:a", t.bitrate,
		"-vn",
		"-map_metadata", "-1",
		outputPath,
	}
}

// TranscodeToMP3 encodes the source file into a 192 kbps MP3 next to the
// given output directory. The source name decides the output name.
func (t *FFmpegTranscoder) TranscodeToMP3(ctx context.Context, inputPath, outputDir string) (*TranscodeResult, error) {
	if fileInfo, err := os.Stat(inputPath); err != nil {
		return nil, fmt.Errorf("input file not accessible %s: %w", inputPath, err)
	} else if fileInfo.Size() == 0 {
		return nil, fmt.Errorf("input file is empty %s", inputPath)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	outputPath := filepath.Join(outputDir, MP3OutputName(filepath.Base(inputPath)))
	args := t.encodeArgs(inputPath, outputPath)

	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Debug("executing ffmpeg encode",
		logger.String("path", t.ffmpegPath),
		logger.String("args", strings.Join(args, " ")))

	if err := cmd.Run(); err != nil {
		logger.Error("ffmpeg encode failed",
			logger.String("input", inputPath),
			logger.String("ffmpegError", stderr.String()),
			logger.ErrorField(err))
		return nil, fmt.Errorf("%w: %v", ErrTranscodeFailed, err)
	}

	if _, err := os.Stat(outputPath); err != nil {
		return nil, fmt.Errorf("%w: output file not produced", ErrTranscodeFailed)
	}

	return &TranscodeResult{
		MP3Path:  outputPath,
		MimeType: "audio/mpeg",
	}, nil
}

// segmentArgs builds the ffmpeg argument list for splitting an MP3 into
// fixed-duration chunks without re-encoding.
func (t *FFmpegTranscoder) segmentArgs(inputPath, outputDir, segmentTime string) []string {
	return []string{
		"-i", inputPath,
		"-c", "copy",
		"-f", "segment",
		"-segment_time", segmentTime,
		filepath.Join(outputDir, SegmentFilePattern),
	}
}

// SegmentMP3 splits the MP3 into segmentTime-second chunks named
// segment-000.mp3, segment-001.mp3, ... in outputDir.
func (t *FFmpegTranscoder) SegmentMP3(ctx context.Context, inputPath, outputDir, segmentTime string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create segment directory %s: %w", outputDir, err)
	}

	args := t.segmentArgs(inputPath, outputDir, segmentTime)

	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Debug("executing ffmpeg segment",
		logger.String("path", t.ffmpegPath),
		logger.String("args", strings.Join(args, " ")))

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg segmentation failed for %s: %w\nFFmpeg Error: %s", inputPath, err, stderr.String())
	}

	return nil
}

// ffprobeOutput defines the structure for ffprobe JSON output.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// GetAudioDuration uses ffprobe to get the duration of an audio file in seconds.
func (t *FFmpegTranscoder) GetAudioDuration(inputFile string) (float64, error) {
	ffprobePath := strings.Replace(t.ffmpegPath, "ffmpeg", "ffprobe", 1)

	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		inputFile,
	}

	cmd := exec.Command(ffprobePath, args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe execution failed for %s: %w\nFFprobe Error: %s", inputFile, err, stderr.String())
	}

	var probeData ffprobeOutput
	if err := json.Unmarshal(out.Bytes(), &probeData); err != nil {
		return 0, fmt.Errorf("failed to unmarshal ffprobe output for %s: %w\nFFprobe Output: %s", inputFile, err, out.String())
	}

	if probeData.Format.Duration == "" {
		return 0, fmt.Errorf("duration not found in ffprobe output for %s\nFFprobe Output: %s", inputFile, out.String())
	}

	duration, err := strconv.ParseFloat(probeData.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration string %q for %s: %w", probeData.Format.Duration, inputFile, err)
	}

	return duration, nil
}
