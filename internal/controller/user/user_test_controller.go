package user

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ngophuc/toeic-exam-api/internal/dto"
	"github.com/ngophuc/toeic-exam-api/internal/middleware"
	"github.com/ngophuc/toeic-exam-api/internal/model"
	"github.com/ngophuc/toeic-exam-api/internal/service"
	"github.com/rs/zerolog/log"
)

type UserTestController struct {
	sessionService    service.SessionService
	progressService   service.ProgressService
	gradingService    service.GradingService
	assessmentService service.AssessmentService
	testService       service.TestService
}

func NewUserTestController(
	sessionService service.SessionService,
	progressService service.ProgressService,
	gradingService service.GradingService,
	assessmentService service.AssessmentService,
	testService service.TestService,
) *UserTestController {
	return &UserTestController{
		sessionService:    sessionService,
		progressService:   progressService,
		gradingService:    gradingService,
		assessmentService: assessmentService,
		testService:       testService,
	}
}

// GetAllTests godoc
// @Summary (User) List all published tests
// @Tags User - Tests & Sessions
// @Produce json
// @Success 200 {array} dto.TestSummaryDTO
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /tests [get]
func (c *UserTestController) GetAllTests(ctx *gin.Context) {
	tests, err := c.testService.GetAllTests()
	if err != nil {
		log.Error().Err(err).Msg("User GetAllTests: service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to retrieve tests", Details: []string{err.Error()}})
		return
	}
	ctx.JSON(http.StatusOK, tests)
}

// Start godoc
// @Summary (User) Start or resume an exam session
// @Description Resolves the single in-progress session for this user and test (creating one if absent), returns the ordered snapshot question list and every server-committed answer so the client can resume.
// @Tags User - Tests & Sessions
// @Produce json
// @Param test_id query int true "Test ID"
// @Param timing_mode query string false "countdown or count_up (ignored for simulator tests)"
// @Success 200 {object} dto.TestStartResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid Test ID format"
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /tests/start [post]
func (c *UserTestController) Start(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Not authenticated"})
		return
	}

	testID, err := strconv.ParseUint(ctx.Query("test_id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid Test ID format"})
		return
	}
	timingMode := ctx.DefaultQuery("timing_mode", model.TimingModeCountdown)

	resp, err := c.sessionService.Start(userID, uint(testID), timingMode)
	if err != nil {
		log.Warn().Err(err).Uint64("testID", testID).Msg("User Start: service error")
		ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// SaveProgress godoc
// @Summary (User) Save in-session answers
// @Description Idempotent upsert per (session, question, sub-index); entries without a usable payload are dropped.
// @Tags User - Tests & Sessions
// @Accept json
// @Produce json
// @Param progress body dto.SaveProgressRequest true "Session id and answer slots"
// @Success 200 {object} map[string]int
// @Failure 400 {object} dto.ErrorResponse "Invalid request body or session mismatch"
// @Router /tests/save-progress [post]
func (c *UserTestController) SaveProgress(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Not authenticated"})
		return
	}

	var req dto.SaveProgressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	saved, err := c.progressService.SaveProgress(userID, req)
	if err != nil {
		log.Warn().Err(err).Uint("testResultID", req.TestResultID).Msg("User SaveProgress: service error")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"saved": saved})
}

// SubmitLR godoc
// @Summary (User) Submit a Listening/Reading test for synchronous grading
// @Description Grades against snapshot correctness, flips the session to graded exactly once, and returns the authoritative result identity with the merged score breakdown.
// @Tags User - Tests & Sessions
// @Accept json
// @Produce json
// @Param submission body dto.SubmitLRRequest true "Session id, test id, elapsed minutes and objective answers"
// @Success 200 {object} dto.GeneralLRResult
// @Failure 400 {object} dto.ErrorResponse "Validation failure"
// @Router /tests/submit/lr [post]
func (c *UserTestController) SubmitLR(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Not authenticated"})
		return
	}

	var req dto.SubmitLRRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	result, err := c.gradingService.SubmitLR(userID, req)
	if err != nil {
		log.Warn().Err(err).Uint("testID", req.TestID).Msg("User SubmitLR: service error")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// SubmitBulkAssessment godoc
// @Summary (User) Submit speaking/writing answers for AI grading
// @Description Blank parts are skipped and counted; each remaining part is graded independently, so one failure never aborts the rest.
// @Tags User - Tests & Sessions
// @Accept json
// @Produce json
// @Param submission body dto.BulkAssessmentRequest true "Session id and answered parts"
// @Success 200 {object} dto.BulkAssessmentResponse
// @Failure 400 {object} dto.ErrorResponse "Validation failure"
// @Router /assessment/bulk [post]
func (c *UserTestController) SubmitBulkAssessment(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Not authenticated"})
		return
	}

	var req dto.BulkAssessmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	result, err := c.assessmentService.SubmitBulk(ctx.Request.Context(), userID, req)
	if err != nil {
		log.Warn().Err(err).Uint("testResultID", req.TestResultID).Msg("User SubmitBulkAssessment: service error")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// GetHistory godoc
// @Summary (User) List this user's test results
// @Tags User - Tests & Sessions
// @Produce json
// @Success 200 {array} dto.TestResultSummaryDTO
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /tests/history [get]
func (c *UserTestController) GetHistory(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Not authenticated"})
		return
	}

	history, err := c.sessionService.GetHistory(userID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to retrieve history", Details: []string{err.Error()}})
		return
	}
	ctx.JSON(http.StatusOK, history)
}

// GetLRResult godoc
// @Summary (User) Get the detailed result of a graded LR session
// @Tags User - Tests & Sessions
// @Produce json
// @Param test_result_id path int true "Test Result ID"
// @Success 200 {object} dto.LRResultDetailDTO
// @Failure 404 {object} dto.ErrorResponse "Result not found"
// @Router /tests/result/lr/{test_result_id} [get]
func (c *UserTestController) GetLRResult(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Not authenticated"})
		return
	}

	resultID, err := strconv.ParseUint(ctx.Param("test_result_id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid Test Result ID format"})
		return
	}

	detail, err := c.sessionService.GetLRResultDetail(userID, uint(resultID))
	if err != nil {
		log.Warn().Err(err).Uint64("testResultID", resultID).Msg("User GetLRResult: service error")
		ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, detail)
}
