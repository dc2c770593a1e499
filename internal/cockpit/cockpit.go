// Package cockpit coordinates the caregiver dashboard core: it reacts
// to new readings, runs the advice workflow, guards therapy changes
// behind the PIN gate and reports outcomes as user-visible messages.
package cockpit

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/punkyapp/diabetes-cockpit/internal/analysis"
	"github.com/punkyapp/diabetes-cockpit/internal/bus"
	"github.com/punkyapp/diabetes-cockpit/internal/domain"
	apperrors "github.com/punkyapp/diabetes-cockpit/internal/errors"
	"github.com/punkyapp/diabetes-cockpit/internal/store"
)

// recentEntryLimit bounds how much history an analysis run sends to
// the advice service: 24h at 5-minute sampling.
const recentEntryLimit = 288

// State of the orchestrator's analysis/apply path.
type State int

const (
	StateIdle State = iota
	StateAnalyzingAdvice
	StateAwaitingAuthorization
	StateApplying
)

func (s State) String() string {
	switch s {
	case StateAnalyzingAdvice:
		return "analyzing_advice"
	case StateAwaitingAuthorization:
		return "awaiting_authorization"
	case StateApplying:
		return "applying"
	default:
		return "idle"
	}
}

// User-visible outcome messages. Denial is deliberately worded apart
// from upload failure so the caregiver can tell "you said no" from
// "the server rejected it".
const (
	MsgNoAdvice        = "Keine Empfehlung erhalten."
	MsgAnalysisBusy    = "Analyse läuft bereits."
	MsgActionBusy      = "Aktion läuft bereits."
	MsgApplied         = "Profil angepasst"
	MsgUploadFailed    = "Upload fehlgeschlagen"
	MsgPinDenied       = "Abgebrochen: PIN nicht bestätigt"
	MsgBolusAuthorized = "Bolus freigegeben"
	MsgBolusFailed     = "Freigabe fehlgeschlagen"
)

// Cockpit owns the session state machine. All collaborator failures
// are converted to outcome messages at this boundary.
type Cockpit struct {
	entries *store.EntryStore
	history *store.HistoryLog
	bus     *bus.Bus
	monitor domain.MonitorService
	advice  domain.AdviceService
	gate    *Gate
	archive domain.BatchArchive // optional

	logger *slog.Logger
	errs   *apperrors.Handler
	now    func() time.Time

	mu         sync.Mutex
	state      State
	generation uint64
	window     domain.TimeWindow

	bolusInFlight atomic.Bool
}

// New wires a cockpit for one session. archive may be nil when no
// persistence collaborator is configured.
func New(entries *store.EntryStore, history *store.HistoryLog, eventBus *bus.Bus,
	monitor domain.MonitorService, advice domain.AdviceService,
	confirmer domain.PinConfirmer, archive domain.BatchArchive, logger *slog.Logger) *Cockpit {
	now := time.Now
	return &Cockpit{
		entries: entries,
		history: history,
		bus:     eventBus,
		monitor: monitor,
		advice:  advice,
		gate:    NewGate(confirmer, logger),
		archive: archive,
		logger:  logger,
		errs:    apperrors.NewHandler(logger),
		now:     now,
		state:   StateIdle,
		window:  domain.DefaultWindow(now()),
	}
}

// State returns the current analysis/apply state.
func (c *Cockpit) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Window returns the currently selected averaging window.
func (c *Cockpit) Window() domain.TimeWindow {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window
}

// SelectWindow re-selects the averaging window. Bounds are normalized,
// never rejected; the picker workflow can hand them back reversed.
func (c *Cockpit) SelectWindow(from, to time.Time) {
	c.mu.Lock()
	c.window = domain.NewTimeWindow(from, to)
	c.mu.Unlock()
}

// Average computes the live windowed average over the entry store.
// Nil means no valued reading fell inside the window.
func (c *Cockpit) Average() *float64 {
	return analysis.Average(c.entries.Snapshot(), c.Window())
}

// Refresh pulls recent readings from the upstream service and appends
// the ones newer than the current reading, publishing EntryAppended
// for each. This is the entry store's single producer path, so the
// cutoff here is what keeps the store free of resent readings.
func (c *Cockpit) Refresh(ctx context.Context) (int, error) {
	fetched, err := c.monitor.FetchRecent(ctx, recentEntryLimit)
	if err != nil {
		c.errs.Handle(ctx, apperrors.NewExternalAPIError(err, "nightscout"))
		return 0, err
	}

	sort.Slice(fetched, func(i, j int) bool {
		return fetched[i].Timestamp.Before(fetched[j].Timestamp)
	})

	var cutoff time.Time
	if cur := c.entries.Current(); cur != nil {
		cutoff = cur.Timestamp
	}

	appended := 0
	for _, e := range fetched {
		if !cutoff.IsZero() && !e.Timestamp.After(cutoff) {
			continue
		}
		c.entries.Append(e)
		c.bus.Publish(bus.EntryAppended{Entry: e})
		appended++
	}

	if appended > 0 {
		c.logger.Debug("entries refreshed", "appended", appended, "total", c.entries.Len())
	}
	return appended, nil
}

// RunAnalysis fetches the recent history from the upstream service,
// sends it to the advice service and appends the resulting batch to
// the history log. A second request while a run is active is rejected
// as a no-op; queueing could silently swap advice mid-flight and
// last-request-wins is ruled out for the same reason. The returned
// string is the user-visible suggestion or fallback message.
func (c *Cockpit) RunAnalysis(ctx context.Context) string {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return MsgAnalysisBusy
	}
	c.state = StateAnalyzingAdvice
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	c.logger.Info("analysis run started", "limit", recentEntryLimit)

	history, err := c.monitor.FetchRecent(ctx, recentEntryLimit)
	var advice *domain.Advice
	if err != nil {
		c.errs.Handle(ctx, apperrors.NewExternalAPIError(err, "nightscout"))
	} else {
		advice, err = c.advice.Analyze(ctx, history)
		if err != nil {
			c.errs.Handle(ctx, apperrors.NewExternalAPIError(err, "advice"))
			advice = nil
		}
	}

	if !c.finishTransition(gen) {
		c.logger.Warn("discarding stale analysis result", "generation", gen)
		return ""
	}

	if advice == nil {
		c.bus.Publish(bus.AdviceReady{Advice: nil})
		return MsgNoAdvice
	}

	batch := domain.RecommendationBatch{Timestamp: c.now(), Items: advice.Recommendations}
	c.history.Append(batch)
	c.archiveBatch(ctx, batch)
	c.bus.Publish(bus.BatchAvailable{Batch: batch})
	c.bus.Publish(bus.AdviceReady{Advice: advice})

	c.logger.Info("analysis run finished", "recommendations", len(batch.Items))
	return advice.Suggestion
}

// ApplyRecommendations merges the latest batch's profile patches and
// uploads the result, guarded by the PIN gate. An empty or missing
// batch is a no-op, not an error.
func (c *Cockpit) ApplyRecommendations(ctx context.Context) string {
	latest := c.history.Latest()
	if latest == nil || len(latest.Items) == 0 {
		return ""
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return MsgActionBusy
	}
	c.state = StateAwaitingAuthorization
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	outcome, opErr := c.gate.Guard(ctx, domain.ActionApplyPatch, func(ctx context.Context) error {
		c.setState(StateApplying)
		patch := analysis.MergePatches(latest.Items)
		return c.monitor.UploadProfilePatch(ctx, patch)
	})

	if !c.finishTransition(gen) {
		c.logger.Warn("discarding stale apply result", "generation", gen)
		return ""
	}

	switch {
	case outcome == domain.OutcomeDenied:
		return MsgPinDenied
	case opErr != nil:
		c.errs.Handle(ctx, apperrors.NewExternalAPIError(opErr, "nightscout"))
		return MsgUploadFailed
	default:
		return MsgApplied
	}
}

// AuthorizeBolus releases the pending bolus, guarded by the PIN gate.
// The path is independent of the analysis/apply state machine: both
// can be in flight since they touch disjoint upstream endpoints, but
// a second bolus request while one is pending is rejected.
func (c *Cockpit) AuthorizeBolus(ctx context.Context) string {
	if !c.bolusInFlight.CompareAndSwap(false, true) {
		return MsgActionBusy
	}
	defer c.bolusInFlight.Store(false)

	outcome, opErr := c.gate.Guard(ctx, domain.ActionAuthorizeBolus, c.monitor.AuthorizePendingBolus)
	switch {
	case outcome == domain.OutcomeDenied:
		return MsgPinDenied
	case opErr != nil:
		c.errs.Handle(ctx, apperrors.NewExternalAPIError(opErr, "nightscout"))
		return MsgBolusFailed
	default:
		return MsgBolusAuthorized
	}
}

// Reset aborts whatever the session is waiting on: the state returns
// to Idle and any suspended completion still in flight is discarded
// when it checks its generation token.
func (c *Cockpit) Reset() {
	c.mu.Lock()
	c.state = StateIdle
	c.generation++
	c.mu.Unlock()
}

// finishTransition closes the transition opened under gen. It reports
// false when the token no longer matches, meaning the session moved
// on and the caller's result must be discarded.
func (c *Cockpit) finishTransition(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	c.state = StateIdle
	c.generation++
	return true
}

func (c *Cockpit) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Cockpit) archiveBatch(ctx context.Context, batch domain.RecommendationBatch) {
	if c.archive == nil {
		return
	}
	if err := c.archive.SaveBatch(ctx, batch); err != nil {
		c.logger.Warn("failed to archive recommendation batch", "error", err)
	}
}
