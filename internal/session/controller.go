package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Phase is the session state machine: Active -> Saving -> Active for saves,
// Active -> Submitting -> Submitted (terminal) for submission, and
// Active <-> Offline while connectivity is lost.
type Phase int

const (
	PhaseActive Phase = iota
	PhaseSaving
	PhaseSubmitting
	PhaseSubmitted
	PhaseOffline
)

func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhaseSaving:
		return "saving"
	case PhaseSubmitting:
		return "submitting"
	case PhaseSubmitted:
		return "submitted"
	case PhaseOffline:
		return "offline"
	}
	return "unknown"
}

const (
	// TimingCountdown counts down from a fixed duration; reaching zero
	// triggers an automatic submission unless offline.
	TimingCountdown = "countdown"
	// TimingCountUp ticks upward with no cap; submission is always manual.
	TimingCountUp = "count_up"
)

const (
	autosaveInterval = 5 * time.Minute
	// offlineGrace is how long an expired offline session waits for
	// reconnection before force-submitting from the offline buffer.
	offlineGrace = 30 * time.Second
)

// Options wires a Controller. Clock defaults to the system clock; Media may
// be nil when the session has no speaking parts.
type Options struct {
	API   API
	Store Store
	Media MediaStore
	Clock Clock
}

// Controller owns one exam session on the client: the answer map, the
// current-question pointer, the timer, and the save/submit state machine.
// All event sources (ticks, user edits, connectivity events) serialize
// through one mutex, with isSaving/isSubmitting flags suppressing
// overlapping network calls rather than queueing them.
type Controller struct {
	api   API
	store Store
	media MediaStore
	clock Clock

	mu              sync.Mutex
	phase           Phase
	testID          uint
	resultID        uint
	timingMode      string
	durationMinutes int
	startedAt       time.Time
	fromHistory     bool

	questions    map[AnswerKey]QuestionInfo
	answers      map[AnswerKey]Answer
	currentIndex int

	dirty        bool
	isSaving     bool
	isSubmitting bool
	lastSaveAt   time.Time
	lastSyncAt   time.Time

	online        bool
	offlineBuffer map[AnswerKey]Answer
	offlineAt     time.Time
	expiredAt     time.Time

	outcome *SubmitOutcome
}

func NewController(opts Options) (*Controller, error) {
	if opts.API == nil {
		return nil, errors.New("session: API is required")
	}
	if opts.Store == nil {
		return nil, errors.New("session: Store is required")
	}
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock
	}
	return &Controller{
		api:       opts.API,
		store:     opts.Store,
		media:     opts.Media,
		clock:     clock,
		questions: make(map[AnswerKey]QuestionInfo),
		answers:   make(map[AnswerKey]Answer),
		online:    true,
	}, nil
}

// StartFresh begins a session from a selection/continue action. The answer
// map is the union of the caller-supplied seed (continuing from history)
// and the bootstrap's server-confirmed answers, server values winning per
// key. fromHistory pins the session identity: nothing a later grading call
// returns may overwrite it.
func (c *Controller) StartFresh(ctx context.Context, testID uint, timingMode string, seed map[AnswerKey]Answer, fromHistory bool) error {
	boot, err := c.api.Start(ctx, testID, timingMode)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.adoptBootstrapLocked(testID, boot)
	c.fromHistory = fromHistory
	c.answers = mergeFreshStart(seed, boot.SavedAnswers)
	c.currentIndex = 0
	c.persistLocked(ctx)
	return nil
}

// Reload rebuilds an already-active session after a page reload. The
// server's saved answers are the complete authoritative set: local-only
// answers from before the reload are discarded, only the current-question
// pointer is restored from local storage.
func (c *Controller) Reload(ctx context.Context, testID uint, timingMode string) error {
	local, err := c.store.Load(ctx, testID)
	if err != nil {
		log.Warn().Err(err).Uint("testID", testID).Msg("Session reload: local state unavailable")
	}

	boot, err := c.api.Start(ctx, testID, timingMode)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.adoptBootstrapLocked(testID, boot)
	c.answers = reloadAnswers(boot.SavedAnswers)
	if local != nil {
		c.currentIndex = local.CurrentIndex
	}
	c.persistLocked(ctx)
	return nil
}

func (c *Controller) adoptBootstrapLocked(testID uint, boot *Bootstrap) {
	c.phase = PhaseActive
	c.testID = testID
	c.resultID = boot.TestResultID
	c.timingMode = boot.TimingMode
	c.durationMinutes = boot.DurationMinutes
	c.startedAt = boot.StartedAt
	c.fromHistory = false
	c.dirty = false
	c.outcome = nil
	c.online = true
	c.offlineBuffer = nil
	c.expiredAt = time.Time{}
	c.lastSaveAt = c.clock.Now()
	c.lastSyncAt = c.clock.Now()

	c.questions = make(map[AnswerKey]QuestionInfo)
	for _, q := range boot.Questions {
		count := q.SubCount
		if count < 1 {
			count = 1
		}
		for sub := 0; sub < count; sub++ {
			c.questions[AnswerKey{QuestionID: q.QuestionID, SubIndex: sub}] = q
		}
	}
}

// SetAnswer records one answer mutation and mirrors it to local storage.
func (c *Controller) SetAnswer(ctx context.Context, key AnswerKey, answer Answer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseSubmitted || c.phase == PhaseSubmitting {
		return ErrSessionClosed
	}
	now := c.clock.Now()
	answer.UpdatedAt = now
	if answer.CreatedAt.IsZero() {
		if prev, ok := c.answers[key]; ok && !prev.CreatedAt.IsZero() {
			answer.CreatedAt = prev.CreatedAt
		} else {
			answer.CreatedAt = now
		}
	}
	c.answers[key] = answer
	if c.phase == PhaseOffline {
		if c.offlineBuffer == nil {
			c.offlineBuffer = make(map[AnswerKey]Answer)
		}
		c.offlineBuffer[key] = answer
	}
	c.dirty = true
	c.persistLocked(ctx)
	return nil
}

// SetCurrentIndex moves the current-question pointer; like answers, the
// pointer is mirrored immediately so a reload lands on the same question.
func (c *Controller) SetCurrentIndex(ctx context.Context, index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseSubmitted || c.phase == PhaseSubmitting {
		return
	}
	c.currentIndex = index
	c.persistLocked(ctx)
}

// Elapsed returns time since the session start instant.
func (c *Controller) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock.Now().Sub(c.startedAt)
}

// Remaining returns the countdown value: max(0, allowed - elapsed). In
// count-up mode there is no cap and Remaining reports zero.
func (c *Controller) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remainingLocked(c.clock.Now())
}

func (c *Controller) remainingLocked(now time.Time) time.Duration {
	if c.timingMode != TimingCountdown {
		return 0
	}
	total := time.Duration(c.durationMinutes) * time.Minute
	elapsed := now.Sub(c.startedAt)
	if elapsed >= total {
		return 0
	}
	return total - elapsed
}

// Tick is the 1 Hz heartbeat: it drives countdown expiry and the periodic
// autosave. Expiry with the client online triggers an automatic submission;
// expiry while offline arms a grace window after which the offline buffer
// is force-submitted.
func (c *Controller) Tick(ctx context.Context) {
	c.mu.Lock()
	now := c.clock.Now()

	if c.phase == PhaseSubmitted || c.phase == PhaseSubmitting || c.isSubmitting {
		c.mu.Unlock()
		return
	}

	if c.timingMode == TimingCountdown && c.remainingLocked(now) == 0 {
		if c.phase == PhaseOffline {
			if c.expiredAt.IsZero() {
				c.expiredAt = now
				c.mu.Unlock()
				return
			}
			if now.Sub(c.expiredAt) >= offlineGrace {
				c.mu.Unlock()
				if _, err := c.Submit(ctx, true); err != nil {
					log.Warn().Err(err).Msg("Offline force-submit failed")
				}
				return
			}
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
		if _, err := c.Submit(ctx, true); err != nil {
			log.Warn().Err(err).Msg("Auto-submit on expiry failed")
		}
		return
	}

	autosaveDue := c.phase == PhaseActive &&
		c.online && c.dirty && !c.isSaving &&
		now.Sub(c.lastSaveAt) >= autosaveInterval
	c.mu.Unlock()

	if autosaveDue {
		if err := c.Save(ctx); err != nil && !errors.Is(err, ErrSaveInFlight) {
			log.Warn().Err(err).Msg("Autosave failed")
		}
	}
}

// RunTimer drives Tick once per second until ctx is cancelled.
func (c *Controller) RunTimer(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}

// Save pushes the current answers to the server's progress store. A save
// requested while one is in flight is dropped, not queued. A
// connectivity-classified failure becomes an offline transition instead of
// an error.
func (c *Controller) Save(ctx context.Context) error {
	c.mu.Lock()
	if c.phase == PhaseSubmitted || c.phase == PhaseSubmitting {
		c.mu.Unlock()
		return ErrSessionClosed
	}
	if c.isSaving {
		c.mu.Unlock()
		return ErrSaveInFlight
	}
	if !c.online {
		c.mu.Unlock()
		return nil
	}
	c.isSaving = true
	if c.phase == PhaseActive {
		c.phase = PhaseSaving
	}
	resultID := c.resultID
	uploads := savableAnswers(c.answers)
	c.mu.Unlock()

	err := c.api.SaveProgress(ctx, resultID, uploads)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.isSaving = false
	if c.phase == PhaseSaving {
		c.phase = PhaseActive
	}
	now := c.clock.Now()
	if err != nil {
		if IsConnectivity(err) {
			log.Warn().Err(err).Msg("Save hit a connectivity failure, going offline")
			c.goOfflineLocked(now)
			return nil
		}
		return fmt.Errorf("failed to save progress: %w", err)
	}
	c.dirty = false
	c.lastSaveAt = now
	c.lastSyncAt = now
	c.persistLocked(ctx)
	return nil
}

// savableAnswers flattens the answer map for a progress save. Recordings
// that were never uploaded have no URL yet and are not savable; they stay
// local until submission uploads them.
func savableAnswers(answers map[AnswerKey]Answer) []AnswerUpload {
	uploads := make([]AnswerUpload, 0, len(answers))
	for key, a := range answers {
		if a.Empty() {
			continue
		}
		if a.Kind == Audio && a.AudioURL == "" {
			continue
		}
		uploads = append(uploads, AnswerUpload{
			QuestionID:  key.QuestionID,
			SubIndex:    key.SubIndex,
			ChosenLabel: a.ChosenLabel,
			Text:        a.Text,
			AudioURL:    a.AudioURL,
		})
	}
	return uploads
}

// GoOffline snapshots the current answers into the offline buffer and
// surfaces the offline phase until connectivity returns.
func (c *Controller) GoOffline() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.goOfflineLocked(c.clock.Now())
}

func (c *Controller) goOfflineLocked(now time.Time) {
	if c.phase == PhaseSubmitted || !c.online {
		return
	}
	c.online = false
	if c.phase == PhaseActive || c.phase == PhaseSaving {
		c.phase = PhaseOffline
	}
	c.offlineAt = now
	c.offlineBuffer = make(map[AnswerKey]Answer, len(c.answers))
	for k, v := range c.answers {
		c.offlineBuffer[k] = v
	}
	log.Warn().Time("at", now).Msg("Session went offline, answers buffered")
}

// ComeOnline adopts the offline buffer as the current answers and
// immediately attempts an autosave.
func (c *Controller) ComeOnline(ctx context.Context) {
	c.mu.Lock()
	if c.online {
		c.mu.Unlock()
		return
	}
	c.online = true
	if c.phase == PhaseOffline {
		c.phase = PhaseActive
	}
	if c.offlineBuffer != nil {
		c.answers = c.offlineBuffer
		c.offlineBuffer = nil
	}
	c.expiredAt = time.Time{}
	c.dirty = true
	c.persistLocked(ctx)
	c.mu.Unlock()

	if err := c.Save(ctx); err != nil && !errors.Is(err, ErrSaveInFlight) {
		log.Warn().Err(err).Msg("Save after reconnect failed")
	}
}

// AttemptExit is the navigation guard. An unconfirmed exit is blocked; a
// confirmed one is treated as an implicit submit-now request. Once a
// submission has begun the guard does nothing.
func (c *Controller) AttemptExit(ctx context.Context, confirmed bool) (*SubmitOutcome, bool) {
	c.mu.Lock()
	if c.phase == PhaseSubmitted {
		outcome := c.outcome
		c.mu.Unlock()
		return outcome, true
	}
	if !confirmed {
		c.mu.Unlock()
		return nil, false
	}
	if c.isSubmitting {
		c.mu.Unlock()
		return nil, true
	}
	c.mu.Unlock()

	outcome, err := c.Submit(ctx, true)
	if err != nil {
		log.Warn().Err(err).Msg("Implicit submit on exit failed")
	}
	return outcome, true
}

// Phase returns the current state-machine phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// ResultID returns the session identity currently in use.
func (c *Controller) ResultID() uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resultID
}

// CurrentIndex returns the current-question pointer.
func (c *Controller) CurrentIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentIndex
}

// Answer returns the answer stored for key.
func (c *Controller) Answer(key AnswerKey) (Answer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.answers[key]
	return a, ok
}

// Answers returns a copy of the answer map.
func (c *Controller) Answers() map[AnswerKey]Answer {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[AnswerKey]Answer, len(c.answers))
	for k, v := range c.answers {
		out[k] = v
	}
	return out
}

// Outcome returns the submission outcome once the session is submitted.
func (c *Controller) Outcome() *SubmitOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}

// persistLocked mirrors the session into local storage. The mirror is
// advisory, so a failed write is logged and otherwise ignored.
func (c *Controller) persistLocked(ctx context.Context) {
	persisted := &PersistedSession{
		TestID:           c.testID,
		TestResultID:     c.resultID,
		Answers:          make(map[string]PersistedAnswer, len(c.answers)),
		CurrentIndex:     c.currentIndex,
		StartedAt:        c.startedAt,
		TimingMode:       c.timingMode,
		DurationMinutes:  c.durationMinutes,
		LastServerSyncAt: c.lastSyncAt,
	}
	for k, a := range c.answers {
		persisted.Answers[EncodeKey(k)] = PersistedAnswer{
			Kind:        a.Kind,
			ChosenLabel: a.ChosenLabel,
			Text:        a.Text,
			AudioURL:    a.AudioURL,
			PartType:    a.PartType,
			UpdatedAt:   a.UpdatedAt,
			CreatedAt:   a.CreatedAt,
		}
	}
	if err := c.store.Save(ctx, persisted); err != nil {
		log.Warn().Err(err).Uint("testID", c.testID).Msg("Failed to mirror session to local storage")
	}
}
