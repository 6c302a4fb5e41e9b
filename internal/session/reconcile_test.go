package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDedupeSavedKeepsLatestPerKey(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	rows := []SavedAnswer{
		{QuestionID: 1, ChosenLabel: strPtr("A"), UpdatedAt: base},
		{QuestionID: 1, ChosenLabel: strPtr("B"), UpdatedAt: base.Add(time.Minute)},
		{QuestionID: 1, ChosenLabel: strPtr("C"), UpdatedAt: base.Add(-time.Minute)},
	}
	out := dedupeSaved(rows)
	require.Len(t, out, 1)
	require.Equal(t, "B", out[AnswerKey{QuestionID: 1}].ChosenLabel)
}

func TestDedupeSavedFallsBackToCreatedAt(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	rows := []SavedAnswer{
		{QuestionID: 1, ChosenLabel: strPtr("A"), CreatedAt: base.Add(time.Hour)},
		{QuestionID: 1, ChosenLabel: strPtr("B"), UpdatedAt: base},
	}
	out := dedupeSaved(rows)
	require.Equal(t, "A", out[AnswerKey{QuestionID: 1}].ChosenLabel)
}

func TestDedupeSavedNormalizesMissingSubIndex(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	zero := 0

	rows := []SavedAnswer{
		{QuestionID: 1, SubIndex: nil, ChosenLabel: strPtr("A"), UpdatedAt: base},
		{QuestionID: 1, SubIndex: &zero, ChosenLabel: strPtr("B"), UpdatedAt: base.Add(time.Minute)},
	}
	// A nil sub-index and an explicit zero are the same slot.
	out := dedupeSaved(rows)
	require.Len(t, out, 1)
	require.Equal(t, "B", out[AnswerKey{QuestionID: 1}].ChosenLabel)
}

func TestAnswerFromSavedTagsPayloadKind(t *testing.T) {
	text := "my essay"
	audio := "https://cdn.example.com/a.mp3"

	a := answerFromSaved(SavedAnswer{QuestionID: 1, ChosenLabel: strPtr("D")})
	require.Equal(t, Objective, a.Kind)
	require.Equal(t, "D", a.ChosenLabel)

	a = answerFromSaved(SavedAnswer{QuestionID: 2, Text: &text})
	require.Equal(t, Text, a.Kind)
	require.Equal(t, text, a.Text)

	a = answerFromSaved(SavedAnswer{QuestionID: 3, AudioURL: &audio})
	require.Equal(t, Audio, a.Kind)
	require.Equal(t, audio, a.AudioURL)
}

func TestMergeFreshStartServerWins(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	seed := map[AnswerKey]Answer{
		{QuestionID: 1, SubIndex: 0}: {Kind: Objective, ChosenLabel: "A"},
		{QuestionID: 9, SubIndex: 0}: {Kind: Objective, ChosenLabel: "D"},
	}
	saved := []SavedAnswer{
		{QuestionID: 1, ChosenLabel: strPtr("B"), UpdatedAt: base},
	}

	merged := mergeFreshStart(seed, saved)
	require.Len(t, merged, 2)
	require.Equal(t, "B", merged[AnswerKey{QuestionID: 1}].ChosenLabel)
	require.Equal(t, "D", merged[AnswerKey{QuestionID: 9}].ChosenLabel)
}

func TestReloadAnswersIgnoresSeed(t *testing.T) {
	saved := []SavedAnswer{
		{QuestionID: 2, ChosenLabel: strPtr("C"), UpdatedAt: time.Now()},
	}
	out := reloadAnswers(saved)
	require.Len(t, out, 1)
	require.Equal(t, "C", out[AnswerKey{QuestionID: 2}].ChosenLabel)
}
