package rolling

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/reunio/reunio/pkg/adapters/capture"
	"github.com/reunio/reunio/pkg/metrics"
	"github.com/reunio/reunio/pkg/providers/mock"
	"github.com/reunio/reunio/pkg/resilience"
	"github.com/reunio/reunio/pkg/suggest"
)

func testClip(size int) capture.Clip {
	return capture.Clip{Data: make([]byte, size), MIME: "audio/webm", Duration: 15 * time.Second}
}

func newTestDriver(t *testing.T, results []mock.TranscribeResult, collector *suggest.Collector) (*Driver, *mock.Capture, *mock.Transcriber) {
	t.Helper()
	source := mock.NewCapture(mock.CaptureConfig{Snapshots: []capture.Clip{testClip(4096)}})
	tr := mock.NewTranscriber(mock.TranscribeConfig{Results: results})
	d := NewDriver(source, tr, collector, DriverConfig{SessionID: "s1"})
	return d, source, tr
}

func TestDriverAcceptsAndDedupes(t *testing.T) {
	d, _, _ := newTestDriver(t, []mock.TranscribeResult{
		{Text: "Bonjour à tous, bienvenue à cette réunion"},
		{Text: "bonjour à tous"},
		{Text: "Commençons par le budget"},
	}, nil)
	obs := metrics.NewMemoryObserver()
	d.SetObserver(obs)
	d.ctx = context.Background()

	d.tick()
	d.tick()
	d.tick()
	d.Wait()

	chunks := d.Chunks()
	if len(chunks) != 2 {
		t.Fatalf("expected 2 accepted chunks, got %d: %+v", len(chunks), chunks)
	}
	dups := 0
	for _, ev := range obs.Events {
		if ev.Name == metrics.EventChunkDuplicate {
			dups++
		}
	}
	if dups != 1 {
		t.Fatalf("expected 1 duplicate event, got %d", dups)
	}
}

func TestDriverFoldsLateResultsBySeq(t *testing.T) {
	source := mock.NewCapture(mock.CaptureConfig{Snapshots: []capture.Clip{testClip(4096)}})
	var calls atomic.Int64
	tr := mock.NewTranscriber(mock.TranscribeConfig{
		Results: []mock.TranscribeResult{
			{Text: "première fenêtre de quinze secondes"},
			{Text: "deuxième fenêtre de quinze secondes"},
		},
		Delay: func(ctx context.Context) error {
			// First call finishes after the second.
			if calls.Add(1) == 1 {
				select {
				case <-time.After(50 * time.Millisecond):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		},
	})
	d := NewDriver(source, tr, nil, DriverConfig{SessionID: "s1"})
	d.ctx = context.Background()

	d.tick()
	d.tick()
	d.Wait()

	chunks := d.Chunks()
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Seq != 0 || chunks[1].Seq != 1 {
		t.Fatalf("chunks out of order: %+v", chunks)
	}
	if chunks[0].Text != "première fenêtre de quinze secondes" {
		t.Fatalf("seq 0 holds wrong text: %q", chunks[0].Text)
	}
}

func TestDriverSkipsSmallSnapshots(t *testing.T) {
	source := mock.NewCapture(mock.CaptureConfig{Snapshots: []capture.Clip{testClip(100)}})
	tr := mock.NewTranscriber(mock.TranscribeConfig{})
	obs := metrics.NewMemoryObserver()
	d := NewDriver(source, tr, nil, DriverConfig{SessionID: "s1", MinClipBytes: 1000})
	d.SetObserver(obs)
	d.ctx = context.Background()

	d.tick()
	d.Wait()

	if tr.Calls() != 0 {
		t.Fatalf("small snapshot must not reach the transcriber")
	}
	found := false
	for _, ev := range obs.Events {
		if ev.Name == metrics.EventWindowSkipped {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s event", metrics.EventWindowSkipped)
	}
}

func TestDriverErrorSkipsWindowAndContinues(t *testing.T) {
	d, _, _ := newTestDriver(t, []mock.TranscribeResult{
		{Err: errors.New("upstream down")},
		{Text: "la suite après l'erreur"},
	}, nil)
	d.ctx = context.Background()

	d.tick()
	d.tick()
	d.Wait()

	chunks := d.Chunks()
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Seq != 1 {
		t.Fatalf("surviving chunk should keep seq 1, got %d", chunks[0].Seq)
	}
}

func TestDriverBreakerOpensOnRateLimits(t *testing.T) {
	rl := resilience.RateLimitError{Provider: "test", Message: "429"}
	d, _, tr := newTestDriver(t, []mock.TranscribeResult{{Err: rl}}, nil)
	obs := metrics.NewMemoryObserver()
	d.SetObserver(obs)
	d.ctx = context.Background()

	for i := 0; i < 5; i++ {
		d.tick()
		d.Wait()
	}

	if tr.Calls() >= 5 {
		t.Fatalf("breaker never denied a window: %d calls", tr.Calls())
	}
	denied := false
	for _, ev := range obs.Events {
		if ev.Name == metrics.EventBreakerDenied {
			denied = true
		}
	}
	if !denied {
		t.Fatalf("expected %s event", metrics.EventBreakerDenied)
	}
}

func TestDriverIgnoresResultsAfterStop(t *testing.T) {
	release := make(chan struct{})
	source := mock.NewCapture(mock.CaptureConfig{Snapshots: []capture.Clip{testClip(4096)}})
	tr := mock.NewTranscriber(mock.TranscribeConfig{
		Results: []mock.TranscribeResult{{Text: "résultat tardif de la fenêtre"}},
		Delay: func(ctx context.Context) error {
			<-release
			return nil
		},
	})
	d := NewDriver(source, tr, nil, DriverConfig{SessionID: "s1"})
	d.ctx = context.Background()

	d.tick()
	d.Stop()
	close(release)
	d.Wait()

	if d.chunks.Len() != 0 {
		t.Fatalf("late result after stop must be dropped")
	}
}

func TestDriverFeedsCollectorTwoChunkWindow(t *testing.T) {
	analyzer := mock.NewAssist(mock.AssistConfig{Topics: []string{"Budget"}})
	collector := suggest.NewCollector(analyzer, suggest.CollectorConfig{Timeout: time.Second})
	d, _, _ := newTestDriver(t, []mock.TranscribeResult{
		{Text: "on commence la réunion"},
		{Text: "passons maintenant au budget"},
	}, collector)
	d.ctx = context.Background()

	d.tick()
	d.Wait()
	collector.Wait()
	d.tick()
	d.Wait()
	collector.Wait()

	windows := analyzer.Windows()
	if len(windows) != 2 {
		t.Fatalf("expected 2 analysis windows, got %d", len(windows))
	}
	want := "on commence la réunion passons maintenant au budget"
	if windows[1] != want {
		t.Fatalf("second window should span both chunks:\n got %q\nwant %q", windows[1], want)
	}
}

func TestDriverAnalysisWindowPairsAdjacentSeqs(t *testing.T) {
	analyzer := mock.NewAssist(mock.AssistConfig{Topics: []string{"Budget"}})
	collector := suggest.NewCollector(analyzer, suggest.CollectorConfig{Timeout: time.Second})
	// Completion order 0, 2, 1: the middle window's transcription is
	// delayed past its successor.
	d, _, _ := newTestDriver(t, []mock.TranscribeResult{
		{Text: "on ouvre la séance"},
		{Text: "enfin le point recrutement"},
		{Text: "ensuite le budget annuel"},
	}, collector)
	ctx := context.Background()

	d.transcribeWindow(ctx, testClip(4096), 0)
	collector.Wait()
	d.transcribeWindow(ctx, testClip(4096), 2)
	collector.Wait()
	d.transcribeWindow(ctx, testClip(4096), 1)
	collector.Wait()

	windows := analyzer.Windows()
	if len(windows) != 3 {
		t.Fatalf("expected 3 analysis windows, got %d", len(windows))
	}
	// The delayed seq 1 pairs with its sequence predecessor, not with
	// the chunk that happened to finish last.
	want := "on ouvre la séance ensuite le budget annuel"
	if windows[2] != want {
		t.Fatalf("delayed window paired wrong chunks:\n got %q\nwant %q", windows[2], want)
	}
}

func TestDriverPauseStopsTicks(t *testing.T) {
	source := mock.NewCapture(mock.CaptureConfig{Snapshots: []capture.Clip{testClip(4096)}})
	tr := mock.NewTranscriber(mock.TranscribeConfig{Results: []mock.TranscribeResult{{Text: "fenêtre pendant la pause"}}})
	d := NewDriver(source, tr, nil, DriverConfig{SessionID: "s1", Interval: 10 * time.Millisecond})

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(35 * time.Millisecond)
	d.Pause()
	d.Wait()
	paused := source.SnapshotCalls()
	if paused == 0 {
		t.Fatalf("expected ticks before pause")
	}
	time.Sleep(35 * time.Millisecond)
	if got := source.SnapshotCalls(); got != paused {
		t.Fatalf("ticks continued while paused: %d -> %d", paused, got)
	}
	d.Resume()
	time.Sleep(35 * time.Millisecond)
	d.Stop()
	d.Wait()
	if got := source.SnapshotCalls(); got <= paused {
		t.Fatalf("expected ticks after resume: %d -> %d", paused, got)
	}
}
