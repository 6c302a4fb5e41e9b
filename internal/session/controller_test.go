package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeAPI struct {
	mu sync.Mutex

	boot       Bootstrap
	startCalls int

	saveCalls   [][]AnswerUpload
	saveErr     error
	saveStarted chan struct{}
	saveRelease chan struct{}

	objCalls   []ObjectiveSubmission
	objResult  *ObjectiveResult
	objErr     error
	objStarted chan struct{}
	objRelease chan struct{}

	subCalls []SubjectiveSubmission
	subErr   error
}

func (f *fakeAPI) Start(_ context.Context, testID uint, _ string) (*Bootstrap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	boot := f.boot
	boot.TestID = testID
	return &boot, nil
}

func (f *fakeAPI) SaveProgress(_ context.Context, _ uint, answers []AnswerUpload) error {
	if f.saveStarted != nil {
		f.saveStarted <- struct{}{}
		<-f.saveRelease
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCalls = append(f.saveCalls, answers)
	return f.saveErr
}

func (f *fakeAPI) SubmitObjective(_ context.Context, req ObjectiveSubmission) (*ObjectiveResult, error) {
	if f.objStarted != nil {
		f.objStarted <- struct{}{}
		<-f.objRelease
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objCalls = append(f.objCalls, req)
	if f.objErr != nil {
		return nil, f.objErr
	}
	if f.objResult != nil {
		return f.objResult, nil
	}
	return &ObjectiveResult{TestResultID: req.TestResultID}, nil
}

func (f *fakeAPI) SubmitSubjective(_ context.Context, req SubjectiveSubmission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subCalls = append(f.subCalls, req)
	return f.subErr
}

func (f *fakeAPI) savedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saveCalls)
}

type fakeMedia struct {
	mu      sync.Mutex
	uploads []string
	err     error
}

func (m *fakeMedia) Upload(_ context.Context, name string, _ []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.uploads = append(m.uploads, name)
	return "https://cdn.example.com/" + name, nil
}

func defaultBootstrap(clock Clock) Bootstrap {
	return Bootstrap{
		TestResultID:    42,
		TimingMode:      TimingCountdown,
		DurationMinutes: 30,
		StartedAt:       clock.Now(),
		Questions: []QuestionInfo{
			{QuestionID: 1, SubCount: 1, Skill: "listening"},
			{QuestionID: 2, SubCount: 1, Skill: "reading"},
			{QuestionID: 3, SubCount: 2, Skill: "reading"},
			{QuestionID: 4, SubCount: 1, Skill: "writing", PartType: "opinion_essay"},
			{QuestionID: 5, SubCount: 1, Skill: "speaking", PartType: "read_aloud"},
			{QuestionID: 6, SubCount: 1, Skill: "writing", PartType: "write_email"},
		},
	}
}

func newTestController(t *testing.T, api *fakeAPI, clock Clock, media MediaStore) *Controller {
	t.Helper()
	ctrl, err := NewController(Options{API: api, Store: NewMemoryStore(), Media: media, Clock: clock})
	require.NoError(t, err)
	return ctrl
}

func TestStartFreshMergesSeedWithServerAnswers(t *testing.T) {
	clock := newFakeClock()
	api := &fakeAPI{boot: defaultBootstrap(clock)}
	api.boot.SavedAnswers = []SavedAnswer{
		{QuestionID: 1, ChosenLabel: strPtr("B"), UpdatedAt: clock.Now()},
		{QuestionID: 2, ChosenLabel: strPtr("C"), UpdatedAt: clock.Now()},
	}
	ctrl := newTestController(t, api, clock, nil)

	seed := map[AnswerKey]Answer{
		{QuestionID: 1, SubIndex: 0}: {Kind: Objective, ChosenLabel: "A"},
		{QuestionID: 3, SubIndex: 1}: {Kind: Objective, ChosenLabel: "D"},
	}
	require.NoError(t, ctrl.StartFresh(context.Background(), 7, TimingCountdown, seed, false))

	// Server value wins for the overlapping key; seed-only keys survive.
	got, ok := ctrl.Answer(AnswerKey{QuestionID: 1})
	require.True(t, ok)
	require.Equal(t, "B", got.ChosenLabel)
	got, ok = ctrl.Answer(AnswerKey{QuestionID: 2})
	require.True(t, ok)
	require.Equal(t, "C", got.ChosenLabel)
	got, ok = ctrl.Answer(AnswerKey{QuestionID: 3, SubIndex: 1})
	require.True(t, ok)
	require.Equal(t, "D", got.ChosenLabel)

	require.Equal(t, uint(42), ctrl.ResultID())
	require.Equal(t, PhaseActive, ctrl.Phase())
}

func TestReloadDiscardsLocalOnlyAnswers(t *testing.T) {
	clock := newFakeClock()
	api := &fakeAPI{boot: defaultBootstrap(clock)}
	api.boot.SavedAnswers = []SavedAnswer{
		{QuestionID: 1, ChosenLabel: strPtr("A"), UpdatedAt: clock.Now()},
	}
	ctrl := newTestController(t, api, clock, nil)
	ctx := context.Background()

	require.NoError(t, ctrl.StartFresh(ctx, 7, TimingCountdown, nil, false))
	require.NoError(t, ctrl.SetAnswer(ctx, AnswerKey{QuestionID: 2}, Answer{Kind: Objective, ChosenLabel: "D"}))
	ctrl.SetCurrentIndex(ctx, 3)

	require.NoError(t, ctrl.Reload(ctx, 7, TimingCountdown))

	// The locally buffered answer for question 2 is gone; only the
	// server-committed answer survives. The question pointer is restored
	// from local storage.
	_, ok := ctrl.Answer(AnswerKey{QuestionID: 2})
	require.False(t, ok)
	got, ok := ctrl.Answer(AnswerKey{QuestionID: 1})
	require.True(t, ok)
	require.Equal(t, "A", got.ChosenLabel)
	require.Equal(t, 3, ctrl.CurrentIndex())
}

func TestSaveDropsSecondRequestWhileInFlight(t *testing.T) {
	clock := newFakeClock()
	api := &fakeAPI{
		boot:        defaultBootstrap(clock),
		saveStarted: make(chan struct{}, 1),
		saveRelease: make(chan struct{}),
	}
	ctrl := newTestController(t, api, clock, nil)
	ctx := context.Background()

	require.NoError(t, ctrl.StartFresh(ctx, 7, TimingCountdown, nil, false))
	require.NoError(t, ctrl.SetAnswer(ctx, AnswerKey{QuestionID: 1}, Answer{Kind: Objective, ChosenLabel: "A"}))

	done := make(chan error, 1)
	go func() { done <- ctrl.Save(ctx) }()
	<-api.saveStarted

	require.ErrorIs(t, ctrl.Save(ctx), ErrSaveInFlight)

	close(api.saveRelease)
	require.NoError(t, <-done)
	require.Equal(t, 1, api.savedCount())
}

func TestTickAutosavesWhenDirtyAndDue(t *testing.T) {
	clock := newFakeClock()
	api := &fakeAPI{boot: defaultBootstrap(clock)}
	ctrl := newTestController(t, api, clock, nil)
	ctx := context.Background()

	require.NoError(t, ctrl.StartFresh(ctx, 7, TimingCountdown, nil, false))
	require.NoError(t, ctrl.SetAnswer(ctx, AnswerKey{QuestionID: 1}, Answer{Kind: Objective, ChosenLabel: "A"}))

	ctrl.Tick(ctx)
	require.Zero(t, api.savedCount(), "autosave must not fire before the interval")

	clock.Advance(5 * time.Minute)
	ctrl.Tick(ctx)
	require.Equal(t, 1, api.savedCount())

	// Nothing changed since; the next due tick has nothing to push.
	clock.Advance(5 * time.Minute)
	ctrl.Tick(ctx)
	require.Equal(t, 1, api.savedCount())
}

func TestSaveConnectivityFailureBecomesOfflineTransition(t *testing.T) {
	clock := newFakeClock()
	api := &fakeAPI{boot: defaultBootstrap(clock)}
	ctrl := newTestController(t, api, clock, nil)
	ctx := context.Background()

	require.NoError(t, ctrl.StartFresh(ctx, 7, TimingCountdown, nil, false))
	require.NoError(t, ctrl.SetAnswer(ctx, AnswerKey{QuestionID: 1}, Answer{Kind: Objective, ChosenLabel: "A"}))

	api.saveErr = &ConnectivityError{Err: errors.New("connection refused")}
	require.NoError(t, ctrl.Save(ctx))
	require.Equal(t, PhaseOffline, ctrl.Phase())

	// Edits while offline land in the buffer; reconnecting adopts it and
	// pushes a save immediately.
	require.NoError(t, ctrl.SetAnswer(ctx, AnswerKey{QuestionID: 2}, Answer{Kind: Objective, ChosenLabel: "B"}))
	api.saveErr = nil
	ctrl.ComeOnline(ctx)

	require.Equal(t, PhaseActive, ctrl.Phase())
	got, ok := ctrl.Answer(AnswerKey{QuestionID: 2})
	require.True(t, ok)
	require.Equal(t, "B", got.ChosenLabel)
	require.Equal(t, 2, api.savedCount()) // offline attempt + reconnect save
}

func TestTickAutoSubmitsOnCountdownExpiry(t *testing.T) {
	clock := newFakeClock()
	api := &fakeAPI{boot: defaultBootstrap(clock)}
	ctrl := newTestController(t, api, clock, nil)
	ctx := context.Background()

	require.NoError(t, ctrl.StartFresh(ctx, 7, TimingCountdown, nil, false))
	require.NoError(t, ctrl.SetAnswer(ctx, AnswerKey{QuestionID: 1}, Answer{Kind: Objective, ChosenLabel: "A"}))

	clock.Advance(29 * time.Minute)
	ctrl.Tick(ctx)
	require.Equal(t, PhaseActive, ctrl.Phase())

	clock.Advance(time.Minute)
	ctrl.Tick(ctx)

	require.Equal(t, PhaseSubmitted, ctrl.Phase())
	require.Len(t, api.objCalls, 1)
	require.True(t, api.objCalls[0].Auto)
	require.Equal(t, 30, api.objCalls[0].ElapsedMinutes)
}

func TestOfflineExpiryForceSubmitsBufferAfterGrace(t *testing.T) {
	clock := newFakeClock()
	api := &fakeAPI{boot: defaultBootstrap(clock)}
	ctrl := newTestController(t, api, clock, nil)
	ctx := context.Background()

	require.NoError(t, ctrl.StartFresh(ctx, 7, TimingCountdown, nil, false))
	require.NoError(t, ctrl.SetAnswer(ctx, AnswerKey{QuestionID: 1}, Answer{Kind: Objective, ChosenLabel: "A"}))
	ctrl.GoOffline()

	clock.Advance(31 * time.Minute)
	ctrl.Tick(ctx) // arms the grace window
	require.NotEqual(t, PhaseSubmitted, ctrl.Phase())
	require.Empty(t, api.objCalls)

	clock.Advance(offlineGrace)
	ctrl.Tick(ctx)

	require.Equal(t, PhaseSubmitted, ctrl.Phase())
	require.Len(t, api.objCalls, 1)
	require.True(t, api.objCalls[0].Auto)
	require.Len(t, api.objCalls[0].Answers, 1)
	require.Equal(t, "A", api.objCalls[0].Answers[0].ChosenLabel)
}

func TestSubmitPartitionsAnswerBuckets(t *testing.T) {
	clock := newFakeClock()
	api := &fakeAPI{boot: defaultBootstrap(clock)}
	media := &fakeMedia{}
	ctrl := newTestController(t, api, clock, media)
	ctx := context.Background()

	require.NoError(t, ctrl.StartFresh(ctx, 7, TimingCountdown, nil, false))
	require.NoError(t, ctrl.SetAnswer(ctx, AnswerKey{QuestionID: 1}, Answer{Kind: Objective, ChosenLabel: "A"}))
	require.NoError(t, ctrl.SetAnswer(ctx, AnswerKey{QuestionID: 3, SubIndex: 0}, Answer{Kind: Objective, ChosenLabel: "B"}))
	require.NoError(t, ctrl.SetAnswer(ctx, AnswerKey{QuestionID: 3, SubIndex: 1}, Answer{Kind: Objective, ChosenLabel: "C"}))
	require.NoError(t, ctrl.SetAnswer(ctx, AnswerKey{QuestionID: 4}, Answer{Kind: Text, Text: "my essay", PartType: "opinion_essay"}))
	require.NoError(t, ctrl.SetAnswer(ctx, AnswerKey{QuestionID: 6}, Answer{Kind: Text, Text: "Dear team,", PartType: "write_email"}))
	require.NoError(t, ctrl.SetAnswer(ctx, AnswerKey{QuestionID: 5}, Answer{Kind: Audio, AudioData: []byte("pcm"), PartType: "read_aloud"}))
	// An empty slot must not reach the wire.
	require.NoError(t, ctrl.SetAnswer(ctx, AnswerKey{QuestionID: 2}, Answer{Kind: Objective}))

	outcome, err := ctrl.Submit(ctx, false)
	require.NoError(t, err)
	require.Empty(t, outcome.Warnings)
	require.NoError(t, outcome.ObjectiveErr)
	require.NoError(t, outcome.SubjectiveErr)

	require.Len(t, api.objCalls, 1)
	require.Len(t, api.objCalls[0].Answers, 3)
	require.Len(t, api.subCalls, 1)
	require.Len(t, api.subCalls[0].Parts, 3)
	require.Len(t, media.uploads, 1)

	// Both buckets ride the same session identity.
	require.Equal(t, api.objCalls[0].TestResultID, api.subCalls[0].TestResultID)

	var audioPart *SubjectivePart
	for i := range api.subCalls[0].Parts {
		if api.subCalls[0].Parts[i].AudioURL != "" {
			audioPart = &api.subCalls[0].Parts[i]
		}
	}
	require.NotNil(t, audioPart)
	require.Equal(t, uint(5), audioPart.QuestionID)
	require.Contains(t, audioPart.AudioURL, "https://cdn.example.com/")
}

func TestManualSubmitRejectsEmptySession(t *testing.T) {
	clock := newFakeClock()
	api := &fakeAPI{boot: defaultBootstrap(clock)}
	ctrl := newTestController(t, api, clock, nil)
	ctx := context.Background()

	require.NoError(t, ctrl.StartFresh(ctx, 7, TimingCountdown, nil, false))

	_, err := ctrl.Submit(ctx, false)
	require.ErrorIs(t, err, ErrEmptySubmission)
	require.Empty(t, api.objCalls, "rejection must happen before any network call")
	require.NotEqual(t, PhaseSubmitted, ctrl.Phase())
}

func TestSubmitAdoptsReturnedIdentityUnlessResumed(t *testing.T) {
	clock := newFakeClock()
	api := &fakeAPI{boot: defaultBootstrap(clock), objResult: &ObjectiveResult{TestResultID: 99}}
	ctrl := newTestController(t, api, clock, nil)
	ctx := context.Background()

	require.NoError(t, ctrl.StartFresh(ctx, 7, TimingCountdown, nil, false))
	require.NoError(t, ctrl.SetAnswer(ctx, AnswerKey{QuestionID: 1}, Answer{Kind: Objective, ChosenLabel: "A"}))
	outcome, err := ctrl.Submit(ctx, false)
	require.NoError(t, err)
	require.Equal(t, uint(99), outcome.TestResultID)
	require.Equal(t, uint(99), ctrl.ResultID())

	// A session resumed from history keeps its pinned identity.
	resumed := newTestController(t, &fakeAPI{boot: defaultBootstrap(clock), objResult: &ObjectiveResult{TestResultID: 99}}, clock, nil)
	require.NoError(t, resumed.StartFresh(ctx, 7, TimingCountdown, nil, true))
	require.NoError(t, resumed.SetAnswer(ctx, AnswerKey{QuestionID: 1}, Answer{Kind: Objective, ChosenLabel: "A"}))
	outcome, err = resumed.Submit(ctx, false)
	require.NoError(t, err)
	require.Equal(t, uint(42), outcome.TestResultID)
	require.Equal(t, uint(42), resumed.ResultID())
}

func TestConcurrentSubmitIsSilentNoop(t *testing.T) {
	clock := newFakeClock()
	api := &fakeAPI{
		boot:       defaultBootstrap(clock),
		objStarted: make(chan struct{}, 1),
		objRelease: make(chan struct{}),
	}
	ctrl := newTestController(t, api, clock, nil)
	ctx := context.Background()

	require.NoError(t, ctrl.StartFresh(ctx, 7, TimingCountdown, nil, false))
	require.NoError(t, ctrl.SetAnswer(ctx, AnswerKey{QuestionID: 1}, Answer{Kind: Objective, ChosenLabel: "A"}))

	done := make(chan *SubmitOutcome, 1)
	go func() {
		outcome, _ := ctrl.Submit(ctx, false)
		done <- outcome
	}()
	<-api.objStarted

	second, err := ctrl.Submit(ctx, false)
	require.NoError(t, err)
	require.Nil(t, second)

	close(api.objRelease)
	require.NotNil(t, <-done)
	require.Len(t, api.objCalls, 1)

	// After the terminal state, submitting again returns the recorded outcome.
	again, err := ctrl.Submit(ctx, false)
	require.NoError(t, err)
	require.NotNil(t, again)
	require.Equal(t, PhaseSubmitted, ctrl.Phase())
}

func TestSubmitSkipsFailedRecordingUpload(t *testing.T) {
	clock := newFakeClock()
	api := &fakeAPI{boot: defaultBootstrap(clock)}
	media := &fakeMedia{err: errors.New("upload quota exceeded")}
	ctrl := newTestController(t, api, clock, media)
	ctx := context.Background()

	require.NoError(t, ctrl.StartFresh(ctx, 7, TimingCountdown, nil, false))
	require.NoError(t, ctrl.SetAnswer(ctx, AnswerKey{QuestionID: 4}, Answer{Kind: Text, Text: "essay", PartType: "opinion_essay"}))
	require.NoError(t, ctrl.SetAnswer(ctx, AnswerKey{QuestionID: 5}, Answer{Kind: Audio, AudioData: []byte("pcm"), PartType: "read_aloud"}))

	outcome, err := ctrl.Submit(ctx, false)
	require.NoError(t, err)

	require.Len(t, outcome.Warnings, 1)
	require.Equal(t, AnswerKey{QuestionID: 5, SubIndex: 0}, outcome.Warnings[0].Key)
	require.Len(t, api.subCalls, 1)
	require.Len(t, api.subCalls[0].Parts, 1, "failed recording is skipped, the text part still goes out")
	require.Equal(t, PhaseSubmitted, ctrl.Phase())
}

func TestSubmitConnectivityFailureKeepsSessionOpen(t *testing.T) {
	clock := newFakeClock()
	api := &fakeAPI{boot: defaultBootstrap(clock), objErr: &ConnectivityError{Err: errors.New("timeout")}}
	ctrl := newTestController(t, api, clock, nil)
	ctx := context.Background()

	require.NoError(t, ctrl.StartFresh(ctx, 7, TimingCountdown, nil, false))
	require.NoError(t, ctrl.SetAnswer(ctx, AnswerKey{QuestionID: 1}, Answer{Kind: Objective, ChosenLabel: "A"}))

	outcome, err := ctrl.Submit(ctx, false)
	require.NoError(t, err)
	require.Error(t, outcome.ObjectiveErr)
	require.Equal(t, PhaseOffline, ctrl.Phase())

	// Connectivity returns; the retry completes the session.
	api.mu.Lock()
	api.objErr = nil
	api.mu.Unlock()
	ctrl.ComeOnline(ctx)
	_, err = ctrl.Submit(ctx, true)
	require.NoError(t, err)
	require.Equal(t, PhaseSubmitted, ctrl.Phase())
}

func TestAttemptExitGuardsNavigation(t *testing.T) {
	clock := newFakeClock()
	api := &fakeAPI{boot: defaultBootstrap(clock)}
	ctrl := newTestController(t, api, clock, nil)
	ctx := context.Background()

	require.NoError(t, ctrl.StartFresh(ctx, 7, TimingCountdown, nil, false))
	require.NoError(t, ctrl.SetAnswer(ctx, AnswerKey{QuestionID: 1}, Answer{Kind: Objective, ChosenLabel: "A"}))

	_, allowed := ctrl.AttemptExit(ctx, false)
	require.False(t, allowed)
	require.Equal(t, PhaseActive, ctrl.Phase())

	outcome, allowed := ctrl.AttemptExit(ctx, true)
	require.True(t, allowed)
	require.NotNil(t, outcome)
	require.Equal(t, PhaseSubmitted, ctrl.Phase())
}

func strPtr(s string) *string { return &s }

func TestElapsedMinutesFloorsAtOne(t *testing.T) {
	clock := newFakeClock()
	api := &fakeAPI{boot: defaultBootstrap(clock)}
	ctrl := newTestController(t, api, clock, nil)
	ctx := context.Background()

	require.NoError(t, ctrl.StartFresh(ctx, 7, TimingCountdown, nil, false))
	require.NoError(t, ctrl.SetAnswer(ctx, AnswerKey{QuestionID: 1}, Answer{Kind: Objective, ChosenLabel: "A"}))

	clock.Advance(20 * time.Second)
	_, err := ctrl.Submit(ctx, false)
	require.NoError(t, err)
	require.Len(t, api.objCalls, 1)
	require.Equal(t, 1, api.objCalls[0].ElapsedMinutes)
}

func TestPersistedSessionRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	saved := &PersistedSession{
		TestID:       7,
		TestResultID: 42,
		CurrentIndex: 5,
		TimingMode:   TimingCountdown,
		Answers: map[string]PersistedAnswer{
			EncodeKey(AnswerKey{QuestionID: 3, SubIndex: 1}): {Kind: Objective, ChosenLabel: "C"},
		},
	}
	require.NoError(t, store.Save(ctx, saved))

	loaded, err := store.Load(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, 5, loaded.CurrentIndex)

	key, err := DecodeKey(fmt.Sprintf("%d:%d", 3, 1))
	require.NoError(t, err)
	require.Equal(t, AnswerKey{QuestionID: 3, SubIndex: 1}, key)
	require.Equal(t, "C", loaded.Answers[EncodeKey(key)].ChosenLabel)

	require.NoError(t, store.Clear(ctx, 7))
	gone, err := store.Load(ctx, 7)
	require.NoError(t, err)
	require.Nil(t, gone)
}

func TestManualSubmitStaysOpenWhenEveryRecordingFails(t *testing.T) {
	clock := newFakeClock()
	api := &fakeAPI{boot: defaultBootstrap(clock)}
	media := &fakeMedia{err: errors.New("storage down")}
	ctrl := newTestController(t, api, clock, media)
	ctx := context.Background()

	require.NoError(t, ctrl.StartFresh(ctx, 7, TimingCountdown, nil, false))
	require.NoError(t, ctrl.SetAnswer(ctx, AnswerKey{QuestionID: 5}, Answer{Kind: Audio, AudioData: []byte("pcm"), PartType: "read_aloud"}))

	outcome, err := ctrl.Submit(ctx, false)
	require.ErrorIs(t, err, ErrEmptySubmission)
	require.NotNil(t, outcome)
	require.Len(t, outcome.Warnings, 1)

	// Nothing reached the server and the session is still live.
	require.Empty(t, api.objCalls)
	require.Empty(t, api.subCalls)
	require.Equal(t, PhaseActive, ctrl.Phase())
	got, ok := ctrl.Answer(AnswerKey{QuestionID: 5})
	require.True(t, ok)
	require.Equal(t, []byte("pcm"), got.AudioData)

	// Once storage recovers, the same session submits normally.
	media.err = nil
	outcome, err = ctrl.Submit(ctx, false)
	require.NoError(t, err)
	require.Empty(t, outcome.Warnings)
	require.Equal(t, PhaseSubmitted, ctrl.Phase())
	require.Len(t, media.uploads, 1)
	require.Len(t, api.subCalls, 1)
}

func TestStartSaveReloadSubmitScenario(t *testing.T) {
	clock := newFakeClock()
	api := &fakeAPI{boot: defaultBootstrap(clock)}
	media := &fakeMedia{}
	ctrl := newTestController(t, api, clock, media)
	ctx := context.Background()

	require.NoError(t, ctrl.StartFresh(ctx, 7, TimingCountdown, nil, false))
	startID := ctrl.ResultID()

	require.NoError(t, ctrl.SetAnswer(ctx, AnswerKey{QuestionID: 1}, Answer{Kind: Objective, ChosenLabel: "B"}))
	require.NoError(t, ctrl.Save(ctx))
	require.Len(t, api.saveCalls, 1)

	// The server now owns the saved row; the next bootstrap returns it.
	saved := api.saveCalls[0][0]
	api.boot.SavedAnswers = []SavedAnswer{{
		QuestionID:  saved.QuestionID,
		ChosenLabel: strPtr(saved.ChosenLabel),
		UpdatedAt:   clock.Now(),
	}}

	require.NoError(t, ctrl.Reload(ctx, 7, TimingCountdown))
	got, ok := ctrl.Answer(AnswerKey{QuestionID: 1})
	require.True(t, ok)
	require.Equal(t, "B", got.ChosenLabel)
	require.Len(t, ctrl.Answers(), 1)

	require.NoError(t, ctrl.SetAnswer(ctx, AnswerKey{QuestionID: 4}, Answer{Kind: Text, Text: "Hello", PartType: "opinion_essay"}))

	outcome, err := ctrl.Submit(ctx, false)
	require.NoError(t, err)
	require.False(t, outcome.Auto)

	require.Len(t, api.objCalls, 1)
	require.Len(t, api.objCalls[0].Answers, 1)
	require.Equal(t, uint(1), api.objCalls[0].Answers[0].QuestionID)
	require.Len(t, api.subCalls, 1)
	require.Len(t, api.subCalls[0].Parts, 1)
	require.Equal(t, uint(4), api.subCalls[0].Parts[0].QuestionID)
	require.Equal(t, startID, api.objCalls[0].TestResultID)
	require.Equal(t, startID, api.subCalls[0].TestResultID)
}
