package session

// dedupeSaved collapses raw server answer rows into one answer per identity
// key. When the persistence layer produced multiple rows for one key, the
// row with the latest update timestamp (falling back to creation timestamp)
// wins; the rest are discarded for display purposes.
func dedupeSaved(rows []SavedAnswer) map[AnswerKey]Answer {
	out := make(map[AnswerKey]Answer, len(rows))
	for _, row := range rows {
		key := AnswerKey{
			QuestionID: row.QuestionID,
			SubIndex:   NormalizeSubIndex(row.SubIndex),
		}
		candidate := answerFromSaved(row)
		if existing, ok := out[key]; ok && !candidate.recency().After(existing.recency()) {
			continue
		}
		out[key] = candidate
	}
	return out
}

func answerFromSaved(row SavedAnswer) Answer {
	a := Answer{UpdatedAt: row.UpdatedAt, CreatedAt: row.CreatedAt}
	switch {
	case row.ChosenLabel != nil && *row.ChosenLabel != "":
		a.Kind = Objective
		a.ChosenLabel = *row.ChosenLabel
	case row.Text != nil && *row.Text != "":
		a.Kind = Text
		a.Text = *row.Text
	case row.AudioURL != nil && *row.AudioURL != "":
		a.Kind = Audio
		a.AudioURL = *row.AudioURL
	}
	return a
}

// mergeFreshStart builds the initial answer map for a fresh session start:
// the union of a caller-supplied seed (e.g. continuing from history) and the
// bootstrap's server-confirmed answers, with server values taking precedence
// per key.
func mergeFreshStart(seed map[AnswerKey]Answer, saved []SavedAnswer) map[AnswerKey]Answer {
	merged := make(map[AnswerKey]Answer, len(seed))
	for k, v := range seed {
		merged[k] = v
	}
	for k, v := range dedupeSaved(saved) {
		merged[k] = v
	}
	return merged
}

// reloadAnswers builds the answer map for a reload of an already-active
// session: the server's saved set is the complete authoritative state, and
// local-only answers from before the reload are discarded. Only committed
// answers survive a reload.
func reloadAnswers(saved []SavedAnswer) map[AnswerKey]Answer {
	return dedupeSaved(saved)
}
