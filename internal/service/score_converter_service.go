package service

import (
	"fmt"
	"math"
)

// ScoreConverterService maps raw correctness counts to TOEIC scaled scores.
// Listening/Reading use the published 0-495 conversion bands; speaking and
// writing map an averaged 0-100 AI raw score onto the 0-200 band in steps
// of ten.
type ScoreConverterService interface {
	ListeningScaled(correct int) (int, error)
	ReadingScaled(correct int) (int, error)
	SWScaled(rawAverage float64) (int, error)
}

type scoreConverterService struct{}

func NewScoreConverterService() ScoreConverterService {
	return &scoreConverterService{}
}

func (s *scoreConverterService) ListeningScaled(correct int) (int, error) {
	if correct < 0 || correct > 100 {
		return 0, fmt.Errorf("listening correct count %d out of range [0,100]", correct)
	}
	switch {
	case correct <= 5:
		return 5, nil
	case correct <= 25:
		return 5 + (correct-5)*5, nil
	case correct <= 50:
		return 105 + (correct-25)*8, nil
	case correct <= 75:
		return 305 + (correct-50)*6, nil
	case correct <= 95:
		return 455 + (correct-75)*2, nil
	default:
		return 495, nil
	}
}

func (s *scoreConverterService) ReadingScaled(correct int) (int, error) {
	if correct < 0 || correct > 100 {
		return 0, fmt.Errorf("reading correct count %d out of range [0,100]", correct)
	}
	switch {
	case correct <= 5:
		return 5, nil
	case correct <= 30:
		return 5 + (correct-5)*4, nil
	case correct <= 55:
		return 105 + (correct-30)*8, nil
	case correct <= 80:
		return 305 + (correct-55)*6, nil
	case correct <= 97:
		return 455 + (correct-80)*2, nil
	default:
		return 495, nil
	}
}

func (s *scoreConverterService) SWScaled(rawAverage float64) (int, error) {
	if rawAverage < 0 || rawAverage > 100 {
		return 0, fmt.Errorf("raw average %f out of range [0,100]", rawAverage)
	}
	scaled := math.Round(rawAverage*2/10) * 10
	if scaled > 200 {
		scaled = 200
	}
	return int(scaled), nil
}
