package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ngophuc/toeic-exam-api/internal/dto"
	"github.com/ngophuc/toeic-exam-api/pkg/mediastore"
	"github.com/rs/zerolog/log"
)

type FileController struct {
	store mediastore.Store
}

func NewFileController(store mediastore.Store) *FileController {
	return &FileController{store: store}
}

// Upload godoc
// @Summary (User) Upload an answer recording
// @Description Stores the file in durable media storage and returns its URL; the exam engine only ever persists the URL.
// @Tags User - Files
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Audio recording"
// @Success 200 {object} dto.UploadResponse
// @Failure 400 {object} dto.ErrorResponse "No file provided"
// @Failure 500 {object} dto.ErrorResponse "Upload failed"
// @Router /files/upload [post]
func (c *FileController) Upload(ctx *gin.Context) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "No file provided", Details: []string{err.Error()}})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Cannot read uploaded file", Details: []string{err.Error()}})
		return
	}
	defer file.Close()

	url, err := c.store.Upload(ctx.Request.Context(), fileHeader.Filename, file)
	if err != nil {
		log.Error().Err(err).Str("filename", fileHeader.Filename).Msg("File upload failed")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Upload failed", Details: []string{err.Error()}})
		return
	}
	ctx.JSON(http.StatusOK, dto.UploadResponse{URL: url})
}
