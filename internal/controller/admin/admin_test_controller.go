package admin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ngophuc/toeic-exam-api/internal/dto"
	"github.com/ngophuc/toeic-exam-api/internal/service"
	"github.com/rs/zerolog/log"
)

type AdminTestController struct {
	testService service.TestService
}

func NewAdminTestController(testService service.TestService) *AdminTestController {
	return &AdminTestController{testService: testService}
}

// CreateFromBank godoc
// @Summary (Admin) Create a test from the question bank
// @Description Snapshots the referenced bank questions/groups into a new draft test. Later edits to the bank never reach the created test.
// @Tags Admin - Tests
// @Accept json
// @Produce json
// @Param test_data body dto.CreateTestFromBankRequest true "Test metadata and bank references"
// @Success 201 {object} dto.TestSummaryDTO
// @Failure 400 {object} dto.ErrorResponse "Validation failure"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /admin/tests/from-bank [post]
func (c *AdminTestController) CreateFromBank(ctx *gin.Context) {
	var req dto.CreateTestFromBankRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	summary, err := c.testService.CreateFromBank(req)
	if err != nil {
		log.Warn().Err(err).Str("title", req.Title).Msg("Admin CreateFromBank: service error")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}
	ctx.JSON(http.StatusCreated, summary)
}

// CreateManual godoc
// @Summary (Admin) Create a test from inline content
// @Tags Admin - Tests
// @Accept json
// @Produce json
// @Param test_data body dto.CreateManualTestRequest true "Test metadata and inline questions"
// @Success 201 {object} dto.TestSummaryDTO
// @Failure 400 {object} dto.ErrorResponse "Validation failure"
// @Router /admin/tests/manual [post]
func (c *AdminTestController) CreateManual(ctx *gin.Context) {
	var req dto.CreateManualTestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	summary, err := c.testService.CreateManual(req)
	if err != nil {
		log.Warn().Err(err).Str("title", req.Title).Msg("Admin CreateManual: service error")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}
	ctx.JSON(http.StatusCreated, summary)
}

// Publish godoc
// @Summary (Admin) Publish a test
// @Tags Admin - Tests
// @Produce json
// @Param test_id path int true "Test ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /admin/tests/{test_id}/publish [put]
func (c *AdminTestController) Publish(ctx *gin.Context) {
	c.setVisibility(ctx, c.testService.Publish)
}

// Hide godoc
// @Summary (Admin) Hide a test from examinees
// @Tags Admin - Tests
// @Produce json
// @Param test_id path int true "Test ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /admin/tests/{test_id}/hide [put]
func (c *AdminTestController) Hide(ctx *gin.Context) {
	c.setVisibility(ctx, c.testService.Hide)
}

func (c *AdminTestController) setVisibility(ctx *gin.Context, op func(uint) error) {
	testID, err := strconv.ParseUint(ctx.Param("test_id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid Test ID format"})
		return
	}
	if err := op(uint(testID)); err != nil {
		ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "ok"})
}

// CreateNewVersion godoc
// @Summary (Admin) Re-author a test, appending a new version if it has sessions
// @Description A test that already has sessions is never mutated; a new row with Version+1 is appended and the old one hidden.
// @Tags Admin - Tests
// @Accept json
// @Produce json
// @Param test_id path int true "Test ID"
// @Param test_data body dto.CreateManualTestRequest true "Replacement content"
// @Success 200 {object} dto.TestSummaryDTO
// @Failure 400 {object} dto.ErrorResponse "Validation failure"
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /admin/tests/{test_id}/version [put]
func (c *AdminTestController) CreateNewVersion(ctx *gin.Context) {
	testID, err := strconv.ParseUint(ctx.Param("test_id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid Test ID format"})
		return
	}

	var req dto.CreateManualTestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	summary, err := c.testService.CreateNewVersion(uint(testID), req)
	if err != nil {
		log.Warn().Err(err).Uint64("testID", testID).Msg("Admin CreateNewVersion: service error")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, summary)
}

// GetVersions godoc
// @Summary (Admin) List all versions of a test
// @Tags Admin - Tests
// @Produce json
// @Param parent_id path int true "Parent Test ID"
// @Success 200 {array} dto.TestSummaryDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid ID format"
// @Router /admin/tests/versions/{parent_id} [get]
func (c *AdminTestController) GetVersions(ctx *gin.Context) {
	parentID, err := strconv.ParseUint(ctx.Param("parent_id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid Test ID format"})
		return
	}
	versions, err := c.testService.GetVersions(uint(parentID))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to list versions", Details: []string{err.Error()}})
		return
	}
	ctx.JSON(http.StatusOK, versions)
}
