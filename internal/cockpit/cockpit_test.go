package cockpit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/punkyapp/diabetes-cockpit/internal/bus"
	"github.com/punkyapp/diabetes-cockpit/internal/domain"
	"github.com/punkyapp/diabetes-cockpit/internal/store"
)

func fptr(v float64) *float64 {
	return &v
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeMonitor struct {
	entries  []domain.GlucoseEntry
	fetchErr error

	uploadErr error
	uploaded  []domain.ProfilePatch

	bolusErr   error
	bolusCalls int
}

func (m *fakeMonitor) FetchRecent(ctx context.Context, limit int) ([]domain.GlucoseEntry, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.entries, nil
}

func (m *fakeMonitor) UploadProfilePatch(ctx context.Context, patch domain.ProfilePatch) error {
	m.uploaded = append(m.uploaded, patch)
	return m.uploadErr
}

func (m *fakeMonitor) AuthorizePendingBolus(ctx context.Context) error {
	m.bolusCalls++
	return m.bolusErr
}

type fakeAdvice struct {
	advice *domain.Advice
	err    error

	started chan struct{} // signaled when Analyze begins, if non-nil
	block   chan struct{} // Analyze waits for close, if non-nil
}

func (a *fakeAdvice) Analyze(ctx context.Context, history []domain.GlucoseEntry) (*domain.Advice, error) {
	if a.started != nil {
		a.started <- struct{}{}
	}
	if a.block != nil {
		<-a.block
	}
	return a.advice, a.err
}

type fakePin struct {
	ok    bool
	err   error
	calls int
}

func (p *fakePin) Confirm(ctx context.Context) (bool, error) {
	p.calls++
	return p.ok, p.err
}

type fixture struct {
	cockpit *Cockpit
	entries *store.EntryStore
	history *store.HistoryLog
	bus     *bus.Bus
	monitor *fakeMonitor
	advice  *fakeAdvice
	pin     *fakePin
}

func newFixture() *fixture {
	f := &fixture{
		entries: store.NewEntryStore(),
		history: store.NewHistoryLog(),
		bus:     bus.New(),
		monitor: &fakeMonitor{},
		advice:  &fakeAdvice{},
		pin:     &fakePin{ok: true},
	}
	f.cockpit = New(f.entries, f.history, f.bus, f.monitor, f.advice, f.pin, nil, testLogger())
	return f
}

func sampleBatchItems() []domain.RecommendationItem {
	return []domain.RecommendationItem{
		{Change: "a", Reason: "x", ProfilePatch: map[string]any{"k": 1}},
		{Change: "b", Reason: "y", ProfilePatch: map[string]any{"k": 2, "j": 5}},
	}
}

func TestRunAnalysis_AppendsBatchAndPublishes(t *testing.T) {
	f := newFixture()
	f.advice.advice = &domain.Advice{
		Suggestion:      "Basalrate nachts senken.",
		Recommendations: sampleBatchItems(),
	}

	var batchEvents, adviceEvents int
	f.bus.Subscribe(bus.KindBatchAvailable, func(bus.Event) { batchEvents++ })
	f.bus.Subscribe(bus.KindAdviceReady, func(bus.Event) { adviceEvents++ })

	msg := f.cockpit.RunAnalysis(context.Background())
	if msg != "Basalrate nachts senken." {
		t.Errorf("RunAnalysis() = %q, want the suggestion", msg)
	}

	latest := f.history.Latest()
	if latest == nil || len(latest.Items) != 2 {
		t.Fatalf("history Latest() = %v, want batch with 2 items", latest)
	}
	if batchEvents != 1 || adviceEvents != 1 {
		t.Errorf("events: batch=%d advice=%d, want 1 each", batchEvents, adviceEvents)
	}
	if f.cockpit.State() != StateIdle {
		t.Errorf("state after analysis = %v, want idle", f.cockpit.State())
	}
}

func TestRunAnalysis_NoAdvice(t *testing.T) {
	f := newFixture()
	f.advice.advice = nil

	msg := f.cockpit.RunAnalysis(context.Background())
	if msg != MsgNoAdvice {
		t.Errorf("RunAnalysis() = %q, want %q", msg, MsgNoAdvice)
	}
	if f.history.Latest() != nil {
		t.Error("a run without advice must not append a batch")
	}
}

func TestRunAnalysis_UpstreamFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	f.monitor.fetchErr = context.DeadlineExceeded

	msg := f.cockpit.RunAnalysis(context.Background())
	if msg != MsgNoAdvice {
		t.Errorf("RunAnalysis() = %q, want fallback %q", msg, MsgNoAdvice)
	}
	if f.cockpit.State() != StateIdle {
		t.Errorf("state = %v, want idle after upstream failure", f.cockpit.State())
	}
}

func TestRunAnalysis_SecondRequestRejected(t *testing.T) {
	f := newFixture()
	f.advice.started = make(chan struct{})
	f.advice.block = make(chan struct{})
	f.advice.advice = &domain.Advice{Suggestion: "ok"}

	done := make(chan string)
	go func() {
		done <- f.cockpit.RunAnalysis(context.Background())
	}()
	<-f.advice.started

	if msg := f.cockpit.RunAnalysis(context.Background()); msg != MsgAnalysisBusy {
		t.Errorf("second RunAnalysis() = %q, want %q", msg, MsgAnalysisBusy)
	}

	close(f.advice.block)
	if msg := <-done; msg != "ok" {
		t.Errorf("first RunAnalysis() = %q, want %q", msg, "ok")
	}
}

func TestRunAnalysis_StaleResultDiscarded(t *testing.T) {
	f := newFixture()
	f.advice.started = make(chan struct{})
	f.advice.block = make(chan struct{})
	f.advice.advice = &domain.Advice{Suggestion: "late", Recommendations: sampleBatchItems()}

	done := make(chan string)
	go func() {
		done <- f.cockpit.RunAnalysis(context.Background())
	}()
	<-f.advice.started

	f.cockpit.Reset()
	close(f.advice.block)

	if msg := <-done; msg != "" {
		t.Errorf("stale RunAnalysis() = %q, want discarded empty result", msg)
	}
	if f.history.Latest() != nil {
		t.Error("stale analysis result must not reach the history log")
	}
	if f.cockpit.State() != StateIdle {
		t.Errorf("state = %v, want idle after reset", f.cockpit.State())
	}
}

func TestApplyRecommendations_GrantedUploadsMergedPatch(t *testing.T) {
	f := newFixture()
	f.history.Append(domain.RecommendationBatch{Timestamp: time.Now(), Items: sampleBatchItems()})

	msg := f.cockpit.ApplyRecommendations(context.Background())
	if msg != MsgApplied {
		t.Errorf("ApplyRecommendations() = %q, want %q", msg, MsgApplied)
	}

	if len(f.monitor.uploaded) != 1 {
		t.Fatalf("uploads = %d, want 1", len(f.monitor.uploaded))
	}
	patch := f.monitor.uploaded[0]
	if patch["k"] != 2 || patch["j"] != 5 {
		t.Errorf("uploaded patch = %v, want last-item-wins merge {k:2 j:5}", patch)
	}
}

func TestApplyRecommendations_DeniedNeverUploads(t *testing.T) {
	f := newFixture()
	f.pin.ok = false
	f.history.Append(domain.RecommendationBatch{Timestamp: time.Now(), Items: sampleBatchItems()})

	msg := f.cockpit.ApplyRecommendations(context.Background())
	if msg != MsgPinDenied {
		t.Errorf("ApplyRecommendations() = %q, want %q", msg, MsgPinDenied)
	}
	if len(f.monitor.uploaded) != 0 {
		t.Errorf("uploads = %d, want 0 after denial", len(f.monitor.uploaded))
	}
	if f.cockpit.State() != StateIdle {
		t.Errorf("state = %v, want idle after denial", f.cockpit.State())
	}
}

func TestApplyRecommendations_UploadFailureIsDistinctFromDenial(t *testing.T) {
	f := newFixture()
	f.monitor.uploadErr = context.DeadlineExceeded
	f.history.Append(domain.RecommendationBatch{Timestamp: time.Now(), Items: sampleBatchItems()})

	msg := f.cockpit.ApplyRecommendations(context.Background())
	if msg != MsgUploadFailed {
		t.Errorf("ApplyRecommendations() = %q, want %q", msg, MsgUploadFailed)
	}
	if msg == MsgPinDenied {
		t.Error("upload failure must not read like a denial")
	}
}

func TestApplyRecommendations_EmptyBatchIsNoOp(t *testing.T) {
	f := newFixture()
	f.history.Append(domain.RecommendationBatch{Timestamp: time.Now()})

	msg := f.cockpit.ApplyRecommendations(context.Background())
	if msg != "" {
		t.Errorf("ApplyRecommendations() = %q, want no-op for empty batch", msg)
	}
	if f.pin.calls != 0 {
		t.Errorf("PIN prompted %d times, want 0 for a no-op", f.pin.calls)
	}
}

func TestApplyRecommendations_NoBatchIsNoOp(t *testing.T) {
	f := newFixture()
	if msg := f.cockpit.ApplyRecommendations(context.Background()); msg != "" {
		t.Errorf("ApplyRecommendations() = %q, want no-op without a batch", msg)
	}
}

func TestAuthorizeBolus(t *testing.T) {
	tests := []struct {
		name     string
		pinOK    bool
		bolusErr error
		want     string
		calls    int
	}{
		{"granted", true, nil, MsgBolusAuthorized, 1},
		{"denied", false, nil, MsgPinDenied, 0},
		{"upstream failure", true, context.DeadlineExceeded, MsgBolusFailed, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.pin.ok = tt.pinOK
			f.monitor.bolusErr = tt.bolusErr

			if msg := f.cockpit.AuthorizeBolus(context.Background()); msg != tt.want {
				t.Errorf("AuthorizeBolus() = %q, want %q", msg, tt.want)
			}
			if f.monitor.bolusCalls != tt.calls {
				t.Errorf("bolus calls = %d, want %d", f.monitor.bolusCalls, tt.calls)
			}
		})
	}
}

func TestRefresh_AppendsOnlyNewerEntries(t *testing.T) {
	f := newFixture()
	base := time.Date(2024, 3, 14, 8, 0, 0, 0, time.UTC)
	f.monitor.entries = []domain.GlucoseEntry{
		{Timestamp: base.Add(10 * time.Minute), SGV: fptr(130)}, // newest first, as the API returns
		{Timestamp: base.Add(5 * time.Minute), SGV: fptr(125)},
		{Timestamp: base, SGV: fptr(120)},
	}

	var published int
	f.bus.Subscribe(bus.KindEntryAppended, func(bus.Event) { published++ })

	n, err := f.cockpit.Refresh(context.Background())
	if err != nil || n != 3 {
		t.Fatalf("Refresh() = %d, %v, want 3, nil", n, err)
	}

	// Same readings again plus one newer one.
	f.monitor.entries = append([]domain.GlucoseEntry{
		{Timestamp: base.Add(15 * time.Minute), SGV: fptr(135)},
	}, f.monitor.entries...)

	n, err = f.cockpit.Refresh(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("second Refresh() = %d, %v, want 1, nil", n, err)
	}

	if published != 4 {
		t.Errorf("EntryAppended events = %d, want 4", published)
	}
	snap := f.entries.Snapshot()
	if len(snap) != 4 {
		t.Fatalf("store has %d entries, want 4", len(snap))
	}
	for i := 1; i < len(snap); i++ {
		if !snap[i].Timestamp.After(snap[i-1].Timestamp) {
			t.Errorf("store order broken at %d: %v !> %v", i, snap[i].Timestamp, snap[i-1].Timestamp)
		}
	}
}

func TestAverageAndWindowSelection(t *testing.T) {
	f := newFixture()
	at := func(hour, min int) time.Time {
		return time.Date(2024, 3, 14, hour, min, 0, 0, time.UTC)
	}
	f.entries.Append(domain.GlucoseEntry{Timestamp: at(6, 5), SGV: fptr(120)})
	f.entries.Append(domain.GlucoseEntry{Timestamp: at(6, 10)})
	f.entries.Append(domain.GlucoseEntry{Timestamp: at(7, 0), SGV: fptr(140)})

	// Reversed bounds from the picker are normalized, not rejected.
	f.cockpit.SelectWindow(at(7, 0), at(6, 0))

	avg := f.cockpit.Average()
	if avg == nil || *avg != 130 {
		t.Fatalf("Average() = %v, want 130", avg)
	}

	w := f.cockpit.Window()
	if w.From.After(w.To) {
		t.Errorf("Window() bounds reversed: [%v, %v]", w.From, w.To)
	}
}
