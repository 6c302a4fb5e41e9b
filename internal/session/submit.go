package session

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// SubmitOutcome reports one submission attempt. The objective and
// subjective buckets travel independently: one failing never blocks the
// other, so both errors are surfaced side by side along with any recording
// uploads that were skipped.
type SubmitOutcome struct {
	TestResultID  uint
	Auto          bool
	Result        *ObjectiveResult
	ObjectiveErr  error
	SubjectiveErr error
	Warnings      []MediaSkipWarning
}

// buckets is the partition of the answer map at submission time. Empty
// answers are dropped before partitioning.
type buckets struct {
	objective []AnswerUpload
	text      []SubjectivePart
	audio     []audioItem
}

type audioItem struct {
	part SubjectivePart
	data []byte
}

func partition(answers map[AnswerKey]Answer) buckets {
	keys := make([]AnswerKey, 0, len(answers))
	for k := range answers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].QuestionID != keys[j].QuestionID {
			return keys[i].QuestionID < keys[j].QuestionID
		}
		return keys[i].SubIndex < keys[j].SubIndex
	})

	var b buckets
	for _, k := range keys {
		a := answers[k]
		if a.Empty() {
			continue
		}
		switch a.Kind {
		case Objective:
			b.objective = append(b.objective, AnswerUpload{
				QuestionID:  k.QuestionID,
				SubIndex:    k.SubIndex,
				ChosenLabel: a.ChosenLabel,
			})
		case Text:
			b.text = append(b.text, SubjectivePart{
				QuestionID: k.QuestionID,
				SubIndex:   k.SubIndex,
				PartType:   a.PartType,
				Text:       a.Text,
			})
		case Audio:
			b.audio = append(b.audio, audioItem{
				part: SubjectivePart{
					QuestionID: k.QuestionID,
					SubIndex:   k.SubIndex,
					PartType:   a.PartType,
					AudioURL:   a.AudioURL,
				},
				data: a.AudioData,
			})
		}
	}
	return b
}

func (b buckets) empty() bool {
	return len(b.objective) == 0 && len(b.text) == 0 && len(b.audio) == 0
}

// Submit grades the session. The answer map is partitioned into the
// objective, text and audio buckets; recordings are uploaded first, then
// the objective bucket goes to the synchronous grader and the subjective
// buckets to the AI-assessment endpoint, both bound to the same session
// identity. A second Submit while one is running is a silent no-op.
func (c *Controller) Submit(ctx context.Context, auto bool) (*SubmitOutcome, error) {
	c.mu.Lock()
	if c.phase == PhaseSubmitted {
		outcome := c.outcome
		c.mu.Unlock()
		return outcome, nil
	}
	if c.isSubmitting {
		c.mu.Unlock()
		return nil, nil
	}

	src := c.answers
	if !c.online && auto && c.offlineBuffer != nil {
		src = c.offlineBuffer
	}
	b := partition(src)
	if b.empty() && !auto {
		c.mu.Unlock()
		return nil, ErrEmptySubmission
	}

	c.isSubmitting = true
	prevPhase := c.phase
	c.phase = PhaseSubmitting
	resultID := c.resultID
	testID := c.testID
	fromHistory := c.fromHistory
	elapsed := c.elapsedMinutesLocked(c.clock.Now())
	c.mu.Unlock()

	outcome := &SubmitOutcome{TestResultID: resultID, Auto: auto}

	subjective := c.uploadRecordings(ctx, b, outcome)

	// A manual submit whose every recording was skipped has nothing left to
	// send; closing the session here would discard the buffered answers.
	if !auto && len(b.objective) == 0 && len(subjective) == 0 {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.isSubmitting = false
		c.phase = prevPhase
		return outcome, ErrEmptySubmission
	}

	if len(b.objective) > 0 || len(subjective) == 0 {
		res, err := c.api.SubmitObjective(ctx, ObjectiveSubmission{
			TestResultID:   resultID,
			TestID:         testID,
			ElapsedMinutes: elapsed,
			Auto:           auto,
			Answers:        b.objective,
		})
		if err != nil {
			outcome.ObjectiveErr = fmt.Errorf("failed to submit answers: %w", err)
		} else {
			outcome.Result = res
			if !fromHistory && res.TestResultID != 0 {
				resultID = res.TestResultID
				outcome.TestResultID = res.TestResultID
			}
		}
	}

	if len(subjective) > 0 {
		err := c.api.SubmitSubjective(ctx, SubjectiveSubmission{
			TestResultID:   resultID,
			ElapsedMinutes: elapsed,
			Parts:          subjective,
		})
		if err != nil {
			outcome.SubjectiveErr = fmt.Errorf("failed to submit assessment: %w", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.isSubmitting = false

	if submitFailedOnConnectivity(outcome) {
		c.phase = prevPhase
		c.goOfflineLocked(c.clock.Now())
		log.Warn().Msg("Submission hit a connectivity failure, session stays open")
		return outcome, nil
	}

	c.phase = PhaseSubmitted
	c.resultID = resultID
	c.outcome = outcome
	if err := c.store.Clear(ctx, testID); err != nil {
		log.Warn().Err(err).Uint("testID", testID).Msg("Failed to clear local session state")
	}
	return outcome, nil
}

// uploadRecordings pushes every locally-buffered recording to media storage
// and folds the resulting URLs into the subjective parts. An item whose
// upload fails is skipped with a warning; the rest of the submission
// proceeds.
func (c *Controller) uploadRecordings(ctx context.Context, b buckets, outcome *SubmitOutcome) []SubjectivePart {
	parts := make([]SubjectivePart, 0, len(b.text)+len(b.audio))
	parts = append(parts, b.text...)

	for _, item := range b.audio {
		if item.part.AudioURL == "" {
			if c.media == nil || len(item.data) == 0 {
				outcome.Warnings = append(outcome.Warnings, MediaSkipWarning{
					Key: AnswerKey{QuestionID: item.part.QuestionID, SubIndex: item.part.SubIndex},
					Err: fmt.Errorf("no recording data available"),
				})
				continue
			}
			name := fmt.Sprintf("answer_%d_%d_%d", item.part.QuestionID, item.part.SubIndex, c.clock.Now().UnixNano())
			url, err := c.media.Upload(ctx, name, item.data)
			if err != nil {
				log.Warn().Err(err).
					Uint("questionID", item.part.QuestionID).
					Int("subIndex", item.part.SubIndex).
					Msg("Recording upload failed, answer skipped")
				outcome.Warnings = append(outcome.Warnings, MediaSkipWarning{
					Key: AnswerKey{QuestionID: item.part.QuestionID, SubIndex: item.part.SubIndex},
					Err: err,
				})
				continue
			}
			item.part.AudioURL = url
		}
		parts = append(parts, item.part)
	}
	return parts
}

// elapsedMinutesLocked reports the minutes to record on the session. Under
// countdown the value is capped at the allowed duration; count-up is
// uncapped. Never below one minute.
func (c *Controller) elapsedMinutesLocked(now time.Time) int {
	elapsed := int(now.Sub(c.startedAt) / time.Minute)
	if c.timingMode == TimingCountdown && c.durationMinutes > 0 && elapsed > c.durationMinutes {
		elapsed = c.durationMinutes
	}
	if elapsed < 1 {
		elapsed = 1
	}
	return elapsed
}

// submitFailedOnConnectivity reports whether every bucket that was
// attempted failed for connectivity reasons. Only then does the session
// stay open; a semantic rejection is final.
func submitFailedOnConnectivity(o *SubmitOutcome) bool {
	objFailed := o.ObjectiveErr != nil
	subFailed := o.SubjectiveErr != nil
	if !objFailed && !subFailed {
		return false
	}
	if o.Result != nil {
		return false
	}
	if objFailed && !IsConnectivity(o.ObjectiveErr) {
		return false
	}
	if subFailed && !IsConnectivity(o.SubjectiveErr) {
		return false
	}
	return objFailed || subFailed
}
