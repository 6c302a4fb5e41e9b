package service

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ngophuc/toeic-exam-api/internal/model"
	"github.com/ngophuc/toeic-exam-api/internal/repository"
)

var testDBSeq atomic.Int64

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:servicetest%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Part{},
		&model.Question{},
		&model.QuestionGroup{},
		&model.Option{},
		&model.Test{},
		&model.TestQuestion{},
		&model.TestResult{},
		&model.UserAnswer{},
		&model.AIFeedback{},
		&model.UserTestSkillScore{},
	))
	return db
}

func createPart(t *testing.T, db *gorm.DB, name, skill string, partNumber int) *model.Part {
	t.Helper()
	part := &model.Part{Name: name, Skill: skill, PartNumber: partNumber, OrderIndex: partNumber}
	require.NoError(t, db.Create(part).Error)
	return part
}

func questionSnapshot(t *testing.T, content, correctLabel string) datatypes.JSON {
	t.Helper()
	snap := model.QuestionSnapshot{
		Content: content,
		Options: []model.OptionSnapshot{
			{Label: "A", Content: "first", IsCorrect: correctLabel == "A"},
			{Label: "B", Content: "second", IsCorrect: correctLabel == "B"},
			{Label: "C", Content: "third", IsCorrect: correctLabel == "C"},
			{Label: "D", Content: "fourth", IsCorrect: correctLabel == "D"},
		},
	}
	raw, err := model.EncodeSnapshot(snap)
	require.NoError(t, err)
	return raw
}

func groupSnapshot(t *testing.T, passage string, correctLabels ...string) datatypes.JSON {
	t.Helper()
	snap := model.QuestionGroupSnapshot{PassageText: passage}
	for i, label := range correctLabels {
		snap.Questions = append(snap.Questions, model.QuestionSnapshot{
			Content: fmt.Sprintf("sub question %d", i+1),
			Options: []model.OptionSnapshot{
				{Label: "A", Content: "first", IsCorrect: label == "A"},
				{Label: "B", Content: "second", IsCorrect: label == "B"},
				{Label: "C", Content: "third", IsCorrect: label == "C"},
				{Label: "D", Content: "fourth", IsCorrect: label == "D"},
			},
		})
	}
	raw, err := model.EncodeSnapshot(snap)
	require.NoError(t, err)
	return raw
}

// createLRTest builds a published L/R test with one listening question
// (correct A), one reading question (correct B) and one reading group with
// two members (correct A, C). Five gradable slots in total.
func createLRTest(t *testing.T, db *gorm.DB, duration int) (*model.Test, []model.TestQuestion) {
	t.Helper()
	listening := createPart(t, db, "Photographs", model.PartSkillListening, 1)
	reading := createPart(t, db, "Reading Comprehension", model.PartSkillReading, 7)

	test := &model.Test{
		Title:            "LR Practice",
		TestType:         model.TestTypePractice,
		TestSkill:        model.TestSkillLR,
		Duration:         duration,
		Version:          1,
		VisibilityStatus: model.TestVisibilityPublished,
	}
	require.NoError(t, db.Create(test).Error)

	questions := []model.TestQuestion{
		{TestID: test.ID, PartID: listening.ID, OrderInTest: 1, Snapshot: questionSnapshot(t, "listening one", "A")},
		{TestID: test.ID, PartID: reading.ID, OrderInTest: 2, Snapshot: questionSnapshot(t, "reading one", "B")},
		{TestID: test.ID, PartID: reading.ID, OrderInTest: 3, IsQuestionGroup: true, Snapshot: groupSnapshot(t, "a short passage", "A", "C")},
	}
	for i := range questions {
		require.NoError(t, db.Create(&questions[i]).Error)
	}
	return test, questions
}

func newGradingForTest(db *gorm.DB) GradingService {
	return NewGradingService(
		repository.NewTestRepository(db),
		repository.NewTestQuestionRepository(db),
		repository.NewTestResultRepository(db),
		repository.NewUserAnswerRepository(db),
		repository.NewPartRepository(db),
		NewScoreConverterService(),
		db,
	)
}

func intPtr(v int) *int       { return &v }
func uintPtr(v uint) *uint    { return &v }
func strPtr(v string) *string { return &v }
