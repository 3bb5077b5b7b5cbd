package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/examdesk/internal/controller"
	"github.com/lshigami/examdesk/internal/service"
)

type ExamController struct {
	examService service.ExamService
}

func NewExamController(examService service.ExamService) *ExamController {
	return &ExamController{examService: examService}
}

// GetAllExams godoc
// @Summary List active exams
// @Description Admins may pass include_inactive=true to see every exam.
// @Tags Exams
// @Produce json
// @Security BearerAuth
// @Param include_inactive query bool false "Include inactive exams (admin only)"
// @Success 200 {array} dto.ExamSummaryDTO
// @Failure 500 {object} dto.ErrorResponse
// @Router /exams [get]
func (c *ExamController) GetAllExams(ctx *gin.Context) {
	actor, ok := controller.Actor(ctx)
	if !ok {
		return
	}
	includeInactive := actor.IsAdmin() && ctx.Query("include_inactive") == "true"

	exams, err := c.examService.GetAllExams(ctx.Request.Context(), includeInactive)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to retrieve exams")
		return
	}
	ctx.JSON(http.StatusOK, exams)
}

// GetExamDetails godoc
// @Summary Get an exam with its questions
// @Tags Exams
// @Produce json
// @Security BearerAuth
// @Param id path int true "Exam ID"
// @Success 200 {object} dto.ExamResponseDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid Exam ID format"
// @Failure 404 {object} dto.ErrorResponse "Exam not found"
// @Router /exams/{id} [get]
func (c *ExamController) GetExamDetails(ctx *gin.Context) {
	examID, ok := controller.ParseID(ctx, "id", "Exam")
	if !ok {
		return
	}
	exam, err := c.examService.GetExamDetails(ctx.Request.Context(), examID)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to retrieve exam")
		return
	}
	ctx.JSON(http.StatusOK, exam)
}
