package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ngophuc/toeic-exam-api/internal/dto"
	"github.com/ngophuc/toeic-exam-api/internal/model"
)

func TestSubmitLRGradesAgainstSnapshots(t *testing.T) {
	db := setupServiceDB(t)
	test, questions := createLRTest(t, db, 30)
	grading := newGradingForTest(db)
	userID := uuid.New()

	result := model.TestResult{UserID: userID, TestID: test.ID, Status: model.TestResultInProgress}
	require.NoError(t, db.Create(&result).Error)

	out, err := grading.SubmitLR(userID, dto.SubmitLRRequest{
		TestResultID:   uintPtr(result.ID),
		TestID:         test.ID,
		ElapsedMinutes: 20,
		Answers: []dto.LRAnswerInput{
			{TestQuestionID: questions[0].ID, ChosenOptionLabel: "A"},                            // correct, listening
			{TestQuestionID: questions[1].ID, ChosenOptionLabel: "C"},                            // wrong
			{TestQuestionID: questions[2].ID, SubQuestionIndex: intPtr(0), ChosenOptionLabel: "A"}, // correct, reading
		},
	})
	require.NoError(t, err)

	require.Equal(t, result.ID, out.TestResultID)
	require.Equal(t, 2, out.CorrectCount)
	require.Equal(t, 4, out.TotalQuestions) // 2 standalone + 2 group members
	require.Equal(t, 1, out.SkipCount)      // group sub-index 1 never answered
	require.Equal(t, 5, out.ListeningScore)
	require.Equal(t, 5, out.ReadingScore)
	require.Equal(t, 10, out.TotalScore)
	require.Equal(t, 20, out.Duration)

	var stored model.TestResult
	require.NoError(t, db.First(&stored, result.ID).Error)
	require.Equal(t, model.TestResultGraded, stored.Status)
}

func TestSubmitLRRejectsEmptyManualSubmission(t *testing.T) {
	db := setupServiceDB(t)
	test, _ := createLRTest(t, db, 30)
	grading := newGradingForTest(db)

	_, err := grading.SubmitLR(uuid.New(), dto.SubmitLRRequest{TestID: test.ID})
	require.EqualError(t, err, "No answers provided.")
}

func TestSubmitLRAutoRequiresSession(t *testing.T) {
	db := setupServiceDB(t)
	test, _ := createLRTest(t, db, 30)
	grading := newGradingForTest(db)

	_, err := grading.SubmitLR(uuid.New(), dto.SubmitLRRequest{TestID: test.ID, Auto: true})
	require.EqualError(t, err, "Test session must be provided.")
}

func TestSubmitLRSessionValidation(t *testing.T) {
	db := setupServiceDB(t)
	test, questions := createLRTest(t, db, 30)
	grading := newGradingForTest(db)
	owner := uuid.New()

	answers := []dto.LRAnswerInput{{TestQuestionID: questions[0].ID, ChosenOptionLabel: "A"}}

	_, err := grading.SubmitLR(owner, dto.SubmitLRRequest{
		TestResultID: uintPtr(9999), TestID: test.ID, Answers: answers,
	})
	require.EqualError(t, err, "Test session not found.")

	result := model.TestResult{UserID: owner, TestID: test.ID, Status: model.TestResultInProgress}
	require.NoError(t, db.Create(&result).Error)

	_, err = grading.SubmitLR(uuid.New(), dto.SubmitLRRequest{
		TestResultID: uintPtr(result.ID), TestID: test.ID, Answers: answers,
	})
	require.EqualError(t, err, "Test session does not match the submitted data.")

	_, err = grading.SubmitLR(owner, dto.SubmitLRRequest{
		TestResultID: uintPtr(result.ID), TestID: test.ID + 1, Answers: answers,
	})
	require.EqualError(t, err, "Test session does not match the submitted data.")
}

func TestSubmitLRIsTerminalPerSession(t *testing.T) {
	db := setupServiceDB(t)
	test, questions := createLRTest(t, db, 30)
	grading := newGradingForTest(db)
	userID := uuid.New()

	result := model.TestResult{UserID: userID, TestID: test.ID, Status: model.TestResultInProgress}
	require.NoError(t, db.Create(&result).Error)

	req := dto.SubmitLRRequest{
		TestResultID: uintPtr(result.ID),
		TestID:       test.ID,
		Answers:      []dto.LRAnswerInput{{TestQuestionID: questions[0].ID, ChosenOptionLabel: "A"}},
	}
	_, err := grading.SubmitLR(userID, req)
	require.NoError(t, err)

	_, err = grading.SubmitLR(userID, req)
	require.EqualError(t, err, "This test session has already been submitted.")
}

func TestSubmitLRCreatesIdentityWhenMissing(t *testing.T) {
	db := setupServiceDB(t)
	test, questions := createLRTest(t, db, 30)
	grading := newGradingForTest(db)
	userID := uuid.New()

	out, err := grading.SubmitLR(userID, dto.SubmitLRRequest{
		TestID:  test.ID,
		Answers: []dto.LRAnswerInput{{TestQuestionID: questions[0].ID, ChosenOptionLabel: "B"}},
	})
	require.NoError(t, err)
	require.NotZero(t, out.TestResultID)

	var stored model.TestResult
	require.NoError(t, db.First(&stored, out.TestResultID).Error)
	require.Equal(t, userID, stored.UserID)
	require.Equal(t, model.TestResultGraded, stored.Status)
}

func TestSubmitLRCapsDurationUnderCountdown(t *testing.T) {
	db := setupServiceDB(t)
	test, questions := createLRTest(t, db, 30)
	grading := newGradingForTest(db)
	userID := uuid.New()

	result := model.TestResult{UserID: userID, TestID: test.ID, Status: model.TestResultInProgress}
	require.NoError(t, db.Create(&result).Error)

	out, err := grading.SubmitLR(userID, dto.SubmitLRRequest{
		TestResultID:   uintPtr(result.ID),
		TestID:         test.ID,
		ElapsedMinutes: 45,
		Answers:        []dto.LRAnswerInput{{TestQuestionID: questions[0].ID, ChosenOptionLabel: "A"}},
	})
	require.NoError(t, err)
	require.Equal(t, 30, out.Duration)
}

func TestSubmitLRAutoFallsBackToSavedAnswers(t *testing.T) {
	db := setupServiceDB(t)
	test, questions := createLRTest(t, db, 30)
	grading := newGradingForTest(db)
	userID := uuid.New()

	result := model.TestResult{UserID: userID, TestID: test.ID, Status: model.TestResultInProgress}
	require.NoError(t, db.Create(&result).Error)

	saved := []model.UserAnswer{
		{TestResultID: result.ID, TestQuestionID: questions[0].ID, ChosenOptionLabel: strPtr("A")},
		{TestResultID: result.ID, TestQuestionID: questions[2].ID, SubQuestionIndex: 1, ChosenOptionLabel: strPtr("C")},
	}
	require.NoError(t, db.Create(&saved).Error)

	out, err := grading.SubmitLR(userID, dto.SubmitLRRequest{
		TestResultID: uintPtr(result.ID),
		TestID:       test.ID,
		Auto:         true,
	})
	require.NoError(t, err)
	require.Equal(t, 2, out.CorrectCount)
	require.Equal(t, 2, out.SkipCount)
}

func TestSubmitLRUpsertsGradedAnswersIdempotently(t *testing.T) {
	db := setupServiceDB(t)
	test, questions := createLRTest(t, db, 30)
	grading := newGradingForTest(db)
	userID := uuid.New()

	result := model.TestResult{UserID: userID, TestID: test.ID, Status: model.TestResultInProgress}
	require.NoError(t, db.Create(&result).Error)

	// The slot was saved mid-session with a different choice; grading must
	// update that row, not add a second one for the same identity key.
	presaved := model.UserAnswer{TestResultID: result.ID, TestQuestionID: questions[0].ID, ChosenOptionLabel: strPtr("D")}
	require.NoError(t, db.Create(&presaved).Error)

	_, err := grading.SubmitLR(userID, dto.SubmitLRRequest{
		TestResultID: uintPtr(result.ID),
		TestID:       test.ID,
		Answers:      []dto.LRAnswerInput{{TestQuestionID: questions[0].ID, ChosenOptionLabel: "A"}},
	})
	require.NoError(t, err)

	var rows []model.UserAnswer
	require.NoError(t, db.Where("test_result_id = ? AND test_question_id = ?", result.ID, questions[0].ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, "A", *rows[0].ChosenOptionLabel)
	require.NotNil(t, rows[0].IsCorrect)
	require.True(t, *rows[0].IsCorrect)
}
