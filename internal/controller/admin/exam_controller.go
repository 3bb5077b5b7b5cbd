package admin

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/lshigami/examdesk/config"
	"github.com/lshigami/examdesk/internal/controller"
	"github.com/lshigami/examdesk/internal/dto"
	"github.com/lshigami/examdesk/internal/realtime"
	"github.com/lshigami/examdesk/internal/service"
	"github.com/rs/zerolog/log"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type AdminExamController struct {
	adminExamService service.AdminExamService
	resultsService   service.ResultsService
	hub              *realtime.Hub
	upgrader         websocket.Upgrader
}

func NewAdminExamController(adminExamService service.AdminExamService, resultsService service.ResultsService, hub *realtime.Hub, cfg *config.Config) *AdminExamController {
	return &AdminExamController{
		adminExamService: adminExamService,
		resultsService:   resultsService,
		hub:              hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     allowedOrigin(cfg.Server.CorsOrigins),
		},
	}
}

// allowedOrigin applies the CORS origin list to websocket upgrades. Requests without an
// Origin header come from non-browser clients and pass.
func allowedOrigin(origins []string) func(r *http.Request) bool {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.ToLower(strings.TrimSuffix(o, "/"))] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if allowAll || origin == "" {
			return true
		}
		return allowed[strings.ToLower(origin)]
	}
}

// CreateExam godoc
// @Summary (Admin) Create an exam with its questions
// @Tags Admin - Exams
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param exam_data body dto.ExamCreateDTO true "Exam and questions"
// @Success 201 {object} dto.ExamResponseDTO "Exam created successfully"
// @Failure 400 {object} dto.ErrorResponse "Invalid input data or duplicate title"
// @Failure 403 {object} dto.ErrorResponse
// @Router /admin/exams [post]
func (c *AdminExamController) CreateExam(ctx *gin.Context) {
	var req dto.ExamCreateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		controller.BindError(ctx, err)
		return
	}
	exam, err := c.adminExamService.CreateExam(ctx.Request.Context(), req)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to create exam")
		return
	}
	ctx.JSON(http.StatusCreated, exam)
}

// GetExamResults godoc
// @Summary (Admin) Results dashboard for an exam
// @Description Attempt counts, pass rate, averages and per-question difficulty.
// @Tags Admin - Exams
// @Produce json
// @Security BearerAuth
// @Param examId path int true "Exam ID"
// @Success 200 {object} dto.ExamResultsDTO
// @Failure 404 {object} dto.ErrorResponse "Exam not found"
// @Router /admin/exams/{examId}/results [get]
func (c *AdminExamController) GetExamResults(ctx *gin.Context) {
	examID, ok := controller.ParseID(ctx, "examId", "Exam")
	if !ok {
		return
	}
	results, err := c.resultsService.GetExamResults(ctx.Request.Context(), examID)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to compute results")
		return
	}
	ctx.JSON(http.StatusOK, results)
}

// ExportExamResults godoc
// @Summary (Admin) Download exam results as an Excel workbook
// @Tags Admin - Exams
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param examId path int true "Exam ID"
// @Success 200 {file} file
// @Failure 404 {object} dto.ErrorResponse "Exam not found"
// @Router /admin/exams/{examId}/results/export [get]
func (c *AdminExamController) ExportExamResults(ctx *gin.Context) {
	examID, ok := controller.ParseID(ctx, "examId", "Exam")
	if !ok {
		return
	}
	data, filename, err := c.resultsService.ExportExamResults(ctx.Request.Context(), examID)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to export results")
		return
	}
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	ctx.Data(http.StatusOK, xlsxContentType, data)
}

// LiveAttempts godoc
// @Summary (Admin) Live attempt feed for an exam
// @Description Upgrades to a websocket that receives attempt_started, attempt_progress, attempt_submitted,
// @Description attempt_abandoned, attempt_deleted and attempt_imported events.
// @Tags Admin - Exams
// @Security BearerAuth
// @Param examId path int true "Exam ID"
// @Param token query string false "Bearer token for clients that cannot set headers"
// @Success 101
// @Router /admin/exams/{examId}/live [get]
func (c *AdminExamController) LiveAttempts(ctx *gin.Context) {
	examID, ok := controller.ParseID(ctx, "examId", "Exam")
	if !ok {
		return
	}
	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Warn().Err(err).Uint("examID", examID).Msg("Live feed: websocket upgrade failed")
		return
	}
	log.Info().Uint("examID", examID).Msg("Live feed: watcher connected")
	c.hub.Serve(examID, conn)
}
