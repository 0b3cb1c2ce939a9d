package audio

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"sacraltrack/logger"
	"sacraltrack/model"
)

// SegmentUploader persists segments and manifests to durable object storage.
type SegmentUploader interface {
	UploadSegment(ctx context.Context, trackID string, index int, data []byte) (model.Segment, error)
	UploadManifest(ctx context.Context, trackID string, file ManifestFile) (string, error)
}

// ProgressSink records upload completion percentage for a track. Writes are
// best-effort; implementations log failures instead of returning them.
type ProgressSink interface {
	Save(trackID string, progress float64)
}

// PipelineResult summarizes a finished ingestion.
type PipelineResult struct {
	ManifestURL  string
	Segments     []model.Segment
	SegmentCount int
	Duration     float64
	TotalTime    time.Duration
}

// segmentTask is one emitted chunk waiting for upload.
type segmentTask struct {
	path  string
	index int
}

// Pipeline runs the ingestion flow: transcode to MP3, split into chunks,
// upload chunks as ffmpeg emits them, then assemble and upload the manifest.
//
// Architecture: ffmpeg segment output -> fsnotify watcher -> worker pool ->
// object storage. Uploads run concurrently; results are re-sorted by index
// before the manifest is built, because manifest correctness depends on
// positional order, not upload completion order.
//
// There is no cross-stage rollback: when segment N fails after 1..N-1
// succeeded, the earlier segments stay uploaded and unreferenced.
type Pipeline struct {
	transcoder  *FFmpegTranscoder
	uploader    SegmentUploader
	progress    ProgressSink
	tracker     *ProcessingTracker
	segmentTime string
	workerCount int
}

// NewPipeline wires an ingestion pipeline. workers <= 0 selects a default.
func NewPipeline(transcoder *FFmpegTranscoder, uploader SegmentUploader, progress ProgressSink, tracker *ProcessingTracker, segmentTime string, workers int) *Pipeline {
	if workers <= 0 {
		workers = 4
	}
	return &Pipeline{
		transcoder:  transcoder,
		uploader:    uploader,
		progress:    progress,
		tracker:     tracker,
		segmentTime: segmentTime,
		workerCount: workers,
	}
}

// Process ingests a validated source file. sourceDuration is the measured
// duration from validation, used to estimate per-segment progress.
func (p *Pipeline) Process(ctx context.Context, trackID, sourcePath string, sourceDuration float64) (result *PipelineResult, err error) {
	startTime := time.Now()

	if _, ok := p.tracker.TryLock(trackID); !ok {
		return nil, fmt.Errorf("track %s is already being processed", trackID)
	}
	defer func() { p.tracker.Release(trackID, err) }()

	logger.Info("starting ingestion pipeline",
		logger.String("trackId", trackID),
		logger.String("sourcePath", sourcePath),
		logger.Float64("sourceDuration", sourceDuration),
		logger.Int("workerCount", p.workerCount))

	tempDir, err := os.MkdirTemp("", "ingest-"+trackID+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	p.progress.Save(trackID, 5)

	// Stage 1: WAV -> 192k CBR MP3.
	transcoded, err := p.transcoder.TranscodeToMP3(ctx, sourcePath, tempDir)
	if err != nil {
		return nil, err
	}
	p.progress.Save(trackID, 25)

	if sourceDuration <= 0 {
		if d, derr := p.transcoder.GetAudioDuration(transcoded.MP3Path); derr == nil {
			sourceDuration = d
		}
	}
	totalEstimate := int(math.Ceil(sourceDuration / float64(model.SegmentDuration)))
	if totalEstimate < 1 {
		totalEstimate = 1
	}

	// Stage 2: split and upload, pipelined.
	segments, err := p.segmentAndUpload(ctx, trackID, transcoded.MP3Path, tempDir, totalEstimate)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("no segments produced for track %s", trackID)
	}

	// Upload completion order is arbitrary; the manifest needs submission order.
	sort.Slice(segments, func(i, j int) bool { return segments[i].Index < segments[j].Index })
	if err = verifySequence(segments); err != nil {
		return nil, fmt.Errorf("track %s: %w", trackID, err)
	}

	// Stage 3: manifest assembly and upload.
	urls := make([]string, len(segments))
	for i, seg := range segments {
		urls[i] = seg.URL
	}
	manifest := BuildManifestFile("playlist.m3u8", urls)

	manifestURL, err := p.uploader.UploadManifest(ctx, trackID, manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to upload manifest for track %s: %w", trackID, err)
	}
	p.progress.Save(trackID, 100)

	result = &PipelineResult{
		ManifestURL:  manifestURL,
		Segments:     segments,
		SegmentCount: len(segments),
		Duration:     sourceDuration,
		TotalTime:    time.Since(startTime),
	}

	logger.Info("ingestion pipeline finished",
		logger.String("trackId", trackID),
		logger.Int("segmentCount", result.SegmentCount),
		logger.Float64("duration", result.Duration),
		logger.Duration("totalTime", result.TotalTime))

	return result, nil
}

// segmentAndUpload runs ffmpeg segmentation and uploads each chunk as soon
// as it lands on disk.
func (p *Pipeline) segmentAndUpload(ctx context.Context, trackID, mp3Path, tempDir string, totalEstimate int) ([]model.Segment, error) {
	segDir := filepath.Join(tempDir, "segments")
	if err := os.MkdirAll(segDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create segment directory: %w", err)
	}

	taskChan := make(chan segmentTask, 100)
	var wg sync.WaitGroup

	var mu sync.Mutex
	var segments []model.Segment
	var firstErr error
	uploaded := 0

	record := func(seg model.Segment, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		segments = append(segments, seg)
		uploaded++
		// Transcode ends at 25%, manifest upload takes the final 5%.
		progress := 25 + 70*float64(uploaded)/float64(totalEstimate)
		if progress > 95 {
			progress = 95
		}
		p.progress.Save(trackID, progress)
	}

	for i := 0; i < p.workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.uploadWorker(ctx, workerID, trackID, taskChan, record)
		}(i)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		close(taskChan)
		wg.Wait()
		return nil, fmt.Errorf("failed to create segment watcher: %w", err)
	}

	if err := watcher.Add(segDir); err != nil {
		watcher.Close()
		close(taskChan)
		wg.Wait()
		return nil, fmt.Errorf("failed to watch segment directory: %w", err)
	}

	queued := &sync.Map{}

	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		p.watchSegments(ctx, watcher, taskChan, queued)
	}()

	// ffmpeg runs while the watcher feeds the workers.
	ffmpegDone := make(chan error, 1)
	go func() {
		ffmpegDone <- p.transcoder.SegmentMP3(ctx, mp3Path, segDir, p.segmentTime)
	}()

	ffmpegErr := <-ffmpegDone

	// Give the watcher a moment to pick up trailing file events.
	time.Sleep(200 * time.Millisecond)
	watcher.Close()
	<-watcherDone

	// Final sweep for anything the watcher missed.
	p.queueRemaining(segDir, taskChan, queued)

	close(taskChan)
	wg.Wait()

	if ffmpegErr != nil {
		return nil, ffmpegErr
	}

	mu.Lock()
	defer mu.Unlock()
	if firstErr != nil {
		// Already-uploaded segments stay behind; no compensating deletion.
		return nil, firstErr
	}
	return segments, nil
}

// watchSegments turns filesystem events into upload tasks once files stop
// growing.
func (p *Pipeline) watchSegments(ctx context.Context, watcher *fsnotify.Watcher, taskChan chan<- segmentTask, queued *sync.Map) {
	pendingFiles := make(map[string]time.Time)
	checkTicker := time.NewTicker(50 * time.Millisecond)
	defer checkTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if _, ok := ParseSegmentIndex(filepath.Base(event.Name)); ok {
					pendingFiles[event.Name] = time.Now()
				}
			}

		case <-checkTicker.C:
			now := time.Now()
			for filePath, lastModTime := range pendingFiles {
				if now.Sub(lastModTime) < 100*time.Millisecond {
					continue // likely still being written
				}

				name := filepath.Base(filePath)
				index, ok := ParseSegmentIndex(name)
				if !ok {
					delete(pendingFiles, filePath)
					continue
				}

				if _, loaded := queued.LoadOrStore(name, true); loaded {
					delete(pendingFiles, filePath)
					continue
				}

				if !isFileComplete(filePath) {
					queued.Delete(name)
					continue
				}

				select {
				case taskChan <- segmentTask{path: filePath, index: index}:
					logger.Debug("segment detected",
						logger.String("segment", name),
						logger.Int("index", index))
					delete(pendingFiles, filePath)
				default:
					// Channel full, retry on the next tick.
					queued.Delete(name)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("segment watcher error", logger.ErrorField(err))
		}
	}
}

// uploadWorker drains the task channel and uploads each chunk.
func (p *Pipeline) uploadWorker(ctx context.Context, workerID int, trackID string, taskChan <-chan segmentTask, record func(model.Segment, error)) {
	for task := range taskChan {
		select {
		case <-ctx.Done():
			record(model.Segment{}, ctx.Err())
			continue
		default:
		}

		data, err := os.ReadFile(task.path)
		if err != nil {
			logger.Warn("failed to read segment",
				logger.Int("worker", workerID),
				logger.Int("index", task.index),
				logger.ErrorField(err))
			record(model.Segment{}, fmt.Errorf("failed to read segment %d: %w", task.index, err))
			continue
		}

		seg, err := p.uploader.UploadSegment(ctx, trackID, task.index, data)
		if err != nil {
			logger.Error("segment upload failed",
				logger.Int("worker", workerID),
				logger.Int("index", task.index),
				logger.ErrorField(err))
			record(model.Segment{}, err)
			continue
		}

		logger.Debug("segment uploaded",
			logger.Int("worker", workerID),
			logger.Int("index", task.index),
			logger.Int("size", len(data)))
		record(seg, nil)
	}
}

// queueRemaining scans the segment directory for files the watcher missed.
func (p *Pipeline) queueRemaining(segDir string, taskChan chan<- segmentTask, queued *sync.Map) {
	files, err := filepath.Glob(filepath.Join(segDir, "segment-*.mp3"))
	if err != nil {
		return
	}

	for _, filePath := range files {
		name := filepath.Base(filePath)
		index, ok := ParseSegmentIndex(name)
		if !ok {
			continue
		}
		if _, loaded := queued.LoadOrStore(name, true); loaded {
			continue
		}
		// Blocking send: the workers are still draining the channel and it
		// is closed only after this sweep returns, so every leftover file
		// must be handed off here or it is lost from the manifest.
		taskChan <- segmentTask{path: filePath, index: index}
	}
}

// verifySequence checks that sorted segment indices form a gapless run from
// zero. A manifest built over a gap would silently skip audio.
func verifySequence(segments []model.Segment) error {
	for i, seg := range segments {
		if seg.Index != i {
			return fmt.Errorf("segment sequence has a gap: expected index %d, got %d", i, seg.Index)
		}
	}
	return nil
}

// isFileComplete checks that a file has a stable, non-zero size.
func isFileComplete(path string) bool {
	info1, err := os.Stat(path)
	if err != nil || info1.Size() == 0 {
		return false
	}

	time.Sleep(30 * time.Millisecond)

	info2, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info1.Size() == info2.Size()
}

// ParseSegmentIndex extracts the sequence index from a segment file name
// like "segment-004.mp3".
func ParseSegmentIndex(name string) (int, bool) {
	if !strings.HasPrefix(name, "segment-") || !strings.HasSuffix(name, ".mp3") {
		return 0, false
	}
	indexStr := strings.TrimSuffix(strings.TrimPrefix(name, "segment-"), ".mp3")
	index, err := strconv.Atoi(indexStr)
	if err != nil {
		return 0, false
	}
	return index, true
}
