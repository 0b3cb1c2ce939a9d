package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"sacraltrack/model"
)

func TestParseSegmentIndex(t *testing.T) {
	tests := []struct {
		name  string
		index int
		ok    bool
	}{
		{"segment-000.mp3", 0, true},
		{"segment-004.mp3", 4, true},
		{"segment-123.mp3", 123, true},
		{"segment-.mp3", 0, false},
		{"segment-abc.mp3", 0, false},
		{"playlist.m3u8", 0, false},
		{"segment-001.ts", 0, false},
		{"other-001.mp3", 0, false},
	}
	for _, tt := range tests {
		index, ok := ParseSegmentIndex(tt.name)
		if ok != tt.ok || index != tt.index {
			t.Errorf("ParseSegmentIndex(%q) = (%d, %v), want (%d, %v)", tt.name, index, ok, tt.index, tt.ok)
		}
	}
}

// fakeUploader records uploads in completion order.
type fakeUploader struct {
	mu       sync.Mutex
	indices  []int
	failAt   int // index to fail on, -1 for none
	manifest ManifestFile
}

func (f *fakeUploader) UploadSegment(_ context.Context, trackID string, index int, data []byte) (model.Segment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if index == f.failAt {
		return model.Segment{}, fmt.Errorf("failed to upload segment %d to storage", index)
	}
	f.indices = append(f.indices, index)
	return model.Segment{
		ID:       fmt.Sprintf("id-%d", index),
		URL:      fmt.Sprintf("http://store/files/id-%d/view", index),
		Index:    index,
		Duration: model.SegmentDuration,
	}, nil
}

func (f *fakeUploader) UploadManifest(_ context.Context, trackID string, file ManifestFile) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.manifest = file
	return "http://store/files/manifest/view", nil
}

type fakeProgress struct {
	mu     sync.Mutex
	values []float64
}

func (f *fakeProgress) Save(trackID string, progress float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = append(f.values, progress)
}

func writeSegmentFiles(t *testing.T, dir string, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		name := fmt.Sprintf("segment-%03d.mp3", i)
		if err := os.WriteFile(filepath.Join(dir, name), []byte("mp3data"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestUploadWorkerUploadsQueuedSegments(t *testing.T) {
	dir := t.TempDir()
	writeSegmentFiles(t, dir, 5)

	uploader := &fakeUploader{failAt: -1}
	p := NewPipeline(nil, uploader, &fakeProgress{}, NewProcessingTracker(), "10", 1)

	taskChan := make(chan segmentTask, 5)
	for i := 0; i < 5; i++ {
		taskChan <- segmentTask{
			path:  filepath.Join(dir, fmt.Sprintf("segment-%03d.mp3", i)),
			index: i,
		}
	}
	close(taskChan)

	var got []model.Segment
	record := func(seg model.Segment, err error) {
		if err != nil {
			t.Errorf("unexpected upload error: %v", err)
			return
		}
		got = append(got, seg)
	}
	p.uploadWorker(context.Background(), 0, "track-1", taskChan, record)

	if len(got) != 5 {
		t.Fatalf("uploaded %d segments, want 5", len(got))
	}
	sort.Slice(got, func(i, j int) bool { return got[i].Index < got[j].Index })
	for i, seg := range got {
		if seg.Index != i {
			t.Errorf("segment %d has index %d", i, seg.Index)
		}
		if seg.Duration != model.SegmentDuration {
			t.Errorf("segment %d duration = %v, want nominal %d", i, seg.Duration, model.SegmentDuration)
		}
	}
}

func TestUploadWorkerReportsFailure(t *testing.T) {
	dir := t.TempDir()
	writeSegmentFiles(t, dir, 3)

	uploader := &fakeUploader{failAt: 1}
	p := NewPipeline(nil, uploader, &fakeProgress{}, NewProcessingTracker(), "10", 1)

	taskChan := make(chan segmentTask, 3)
	for i := 0; i < 3; i++ {
		taskChan <- segmentTask{
			path:  filepath.Join(dir, fmt.Sprintf("segment-%03d.mp3", i)),
			index: i,
		}
	}
	close(taskChan)

	var firstErr error
	var uploaded int
	record := func(seg model.Segment, err error) {
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		uploaded++
	}
	p.uploadWorker(context.Background(), 0, "track-1", taskChan, record)

	if firstErr == nil {
		t.Fatal("expected an upload failure to be recorded")
	}
	// Siblings before and after the failed index still upload; there is
	// no rollback of earlier segments.
	if uploaded != 2 {
		t.Errorf("uploaded = %d, want 2", uploaded)
	}
}

func TestQueueRemainingHandsOffEveryLeftoverSegment(t *testing.T) {
	dir := t.TempDir()
	writeSegmentFiles(t, dir, 3)

	p := NewPipeline(nil, &fakeUploader{failAt: -1}, &fakeProgress{}, NewProcessingTracker(), "10", 1)

	// Channel smaller than the number of leftover files: the sweep must
	// block until a consumer drains it, never drop a segment.
	taskChan := make(chan segmentTask, 1)

	var mu sync.Mutex
	var received []int
	done := make(chan struct{})
	go func() {
		defer close(done)
		for task := range taskChan {
			mu.Lock()
			received = append(received, task.index)
			mu.Unlock()
		}
	}()

	queued := &sync.Map{}
	p.queueRemaining(dir, taskChan, queued)
	close(taskChan)
	<-done

	if len(received) != 3 {
		t.Fatalf("received %d tasks, want 3", len(received))
	}
	sort.Ints(received)
	for i, index := range received {
		if index != i {
			t.Errorf("task %d has index %d", i, index)
		}
	}
	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("segment-%03d.mp3", i)
		if _, ok := queued.Load(name); !ok {
			t.Errorf("%s not marked queued", name)
		}
	}
}

func TestProcessingTrackerWait(t *testing.T) {
	tracker := NewProcessingTracker()

	// No lock held: returns immediately.
	if !tracker.Wait("t1", time.Second) {
		t.Error("Wait on an idle track should return true")
	}

	if _, ok := tracker.TryLock("t1"); !ok {
		t.Fatal("TryLock failed")
	}
	if tracker.Wait("t1", 20*time.Millisecond) {
		t.Error("Wait should time out while the lock is held")
	}

	go func() {
		time.Sleep(30 * time.Millisecond)
		tracker.Release("t1", nil)
	}()
	if !tracker.Wait("t1", time.Second) {
		t.Error("Wait should return true once the lock is released")
	}
}

func TestVerifySequence(t *testing.T) {
	seg := func(indices ...int) []model.Segment {
		out := make([]model.Segment, len(indices))
		for i, idx := range indices {
			out[i] = model.Segment{Index: idx}
		}
		return out
	}

	tests := []struct {
		name    string
		segs    []model.Segment
		wantErr bool
	}{
		{"empty", seg(), false},
		{"single", seg(0), false},
		{"contiguous", seg(0, 1, 2, 3), false},
		{"gap in the middle", seg(0, 1, 3), true},
		{"missing first", seg(1, 2, 3), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifySequence(tt.segs)
			if (err != nil) != tt.wantErr {
				t.Errorf("verifySequence = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProcessingTrackerLocking(t *testing.T) {
	tracker := NewProcessingTracker()

	if _, ok := tracker.TryLock("t1"); !ok {
		t.Fatal("first TryLock failed")
	}
	if _, ok := tracker.TryLock("t1"); ok {
		t.Fatal("second TryLock succeeded while processing")
	}
	if !tracker.IsProcessing("t1") {
		t.Error("IsProcessing = false, want true")
	}

	tracker.Release("t1", nil)
	if tracker.IsProcessing("t1") {
		t.Error("IsProcessing = true after release")
	}
	if _, ok := tracker.TryLock("t1"); !ok {
		t.Error("TryLock failed after release")
	}
}
