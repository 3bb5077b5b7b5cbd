package user

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/examdesk/internal/controller"
	"github.com/lshigami/examdesk/internal/dto"
	"github.com/lshigami/examdesk/internal/service"
	"github.com/rs/zerolog/log"
)

type AttemptController struct {
	attemptService service.AttemptService
}

func NewAttemptController(attemptService service.AttemptService) *AttemptController {
	return &AttemptController{attemptService: attemptService}
}

// StartAttempt godoc
// @Summary Start or resume an exam attempt
// @Description Returns the caller's in-progress attempt for the exam if one exists, otherwise creates it.
// @Tags Attempts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.StartAttemptRequest true "Exam to start"
// @Success 201 {object} dto.AttemptResponse "New attempt"
// @Success 200 {object} dto.AttemptResponse "Resumed attempt"
// @Failure 400 {object} dto.ErrorResponse "Exam not available"
// @Failure 401 {object} dto.ErrorResponse
// @Router /attempts/start [post]
func (c *AttemptController) StartAttempt(ctx *gin.Context) {
	actor, ok := controller.Actor(ctx)
	if !ok {
		return
	}
	var req dto.StartAttemptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		controller.BindError(ctx, err)
		return
	}

	attempt, created, err := c.attemptService.Start(ctx.Request.Context(), actor, req.ExamID)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to start attempt")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	ctx.JSON(status, attempt)
}

// SaveProgress godoc
// @Summary Autosave answers of an in-progress attempt
// @Tags Attempts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Attempt ID"
// @Param request body dto.SaveProgressRequest true "Current answers, position and remaining time"
// @Success 200 {object} dto.AttemptResponse
// @Failure 400 {object} dto.ErrorResponse "Attempt is not in progress"
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /attempts/{id}/progress [post]
func (c *AttemptController) SaveProgress(ctx *gin.Context) {
	actor, ok := controller.Actor(ctx)
	if !ok {
		return
	}
	id, ok := controller.ParseID(ctx, "id", "Attempt")
	if !ok {
		return
	}
	var req dto.SaveProgressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		controller.BindError(ctx, err)
		return
	}

	attempt, err := c.attemptService.SaveProgress(ctx.Request.Context(), actor, id, req)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to save progress")
		return
	}
	ctx.JSON(http.StatusOK, attempt)
}

// UpdateAttempt godoc
// @Summary Partially update an in-progress attempt
// @Description Only the fields present in the body are changed.
// @Tags Attempts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Attempt ID"
// @Param request body dto.UpdateAttemptRequest true "Fields to change"
// @Success 200 {object} dto.AttemptResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /attempts/{id} [put]
func (c *AttemptController) UpdateAttempt(ctx *gin.Context) {
	actor, ok := controller.Actor(ctx)
	if !ok {
		return
	}
	id, ok := controller.ParseID(ctx, "id", "Attempt")
	if !ok {
		return
	}
	var req dto.UpdateAttemptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		controller.BindError(ctx, err)
		return
	}

	attempt, err := c.attemptService.Update(ctx.Request.Context(), actor, id, req)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to update attempt")
		return
	}
	ctx.JSON(http.StatusOK, attempt)
}

// SubmitAttempt godoc
// @Summary Submit an attempt for grading
// @Description Grades the submitted answers (or the last saved ones when none are sent) and closes the attempt.
// @Tags Attempts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Attempt ID"
// @Param request body dto.SubmitAttemptRequest false "Final answers"
// @Success 200 {object} dto.AttemptResponse
// @Failure 400 {object} dto.ErrorResponse "Attempt already submitted"
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /attempts/{id}/submit [post]
func (c *AttemptController) SubmitAttempt(ctx *gin.Context) {
	actor, ok := controller.Actor(ctx)
	if !ok {
		return
	}
	id, ok := controller.ParseID(ctx, "id", "Attempt")
	if !ok {
		return
	}
	var req dto.SubmitAttemptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		controller.BindError(ctx, err)
		return
	}

	attempt, err := c.attemptService.Submit(ctx.Request.Context(), actor, id, req)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to submit attempt")
		return
	}
	ctx.JSON(http.StatusOK, attempt)
}

// AbandonAttempt godoc
// @Summary Abandon an in-progress attempt
// @Tags Attempts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Attempt ID"
// @Success 200 {object} dto.AttemptResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /attempts/{id}/abandon [post]
func (c *AttemptController) AbandonAttempt(ctx *gin.Context) {
	actor, ok := controller.Actor(ctx)
	if !ok {
		return
	}
	id, ok := controller.ParseID(ctx, "id", "Attempt")
	if !ok {
		return
	}
	attempt, err := c.attemptService.Abandon(ctx.Request.Context(), actor, id)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to abandon attempt")
		return
	}
	ctx.JSON(http.StatusOK, attempt)
}

// GetAttempt godoc
// @Summary Get an attempt with its exam
// @Tags Attempts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Attempt ID"
// @Success 200 {object} dto.AttemptDetailResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /attempts/{id} [get]
func (c *AttemptController) GetAttempt(ctx *gin.Context) {
	actor, ok := controller.Actor(ctx)
	if !ok {
		return
	}
	id, ok := controller.ParseID(ctx, "id", "Attempt")
	if !ok {
		return
	}
	attempt, err := c.attemptService.Get(ctx.Request.Context(), actor, id)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to fetch attempt")
		return
	}
	ctx.JSON(http.StatusOK, attempt)
}

// ListUserAttempts godoc
// @Summary List a user's exam attempts
// @Description Newest first. Students may only list their own attempts.
// @Tags Attempts
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Success 200 {array} dto.AttemptResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /attempts/user/{userId} [get]
func (c *AttemptController) ListUserAttempts(ctx *gin.Context) {
	actor, ok := controller.Actor(ctx)
	if !ok {
		return
	}
	userID, ok := controller.ParseID(ctx, "userId", "User")
	if !ok {
		return
	}
	attempts, err := c.attemptService.ListByUser(ctx.Request.Context(), actor, userID)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to fetch attempts")
		return
	}
	ctx.JSON(http.StatusOK, attempts)
}

// ListExamAttempts godoc
// @Summary List attempts on an exam
// @Description Admins see every attempt; other callers only their own.
// @Tags Attempts
// @Produce json
// @Security BearerAuth
// @Param examId path int true "Exam ID"
// @Success 200 {array} dto.AttemptResponse
// @Router /attempts/exam/{examId} [get]
func (c *AttemptController) ListExamAttempts(ctx *gin.Context) {
	actor, ok := controller.Actor(ctx)
	if !ok {
		return
	}
	examID, ok := controller.ParseID(ctx, "examId", "Exam")
	if !ok {
		return
	}
	attempts, err := c.attemptService.ListByExam(ctx.Request.Context(), actor, examID)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to fetch attempts")
		return
	}
	ctx.JSON(http.StatusOK, attempts)
}

// DeleteAttempt godoc
// @Summary (Admin) Delete an attempt
// @Tags Attempts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Attempt ID"
// @Success 200 {object} dto.MessageResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /attempts/{id} [delete]
func (c *AttemptController) DeleteAttempt(ctx *gin.Context) {
	actor, ok := controller.Actor(ctx)
	if !ok {
		return
	}
	id, ok := controller.ParseID(ctx, "id", "Attempt")
	if !ok {
		return
	}
	if err := c.attemptService.Delete(ctx.Request.Context(), actor, id); err != nil {
		controller.RespondError(ctx, err, "Failed to delete attempt")
		return
	}
	ctx.JSON(http.StatusOK, dto.MessageResponse{Message: "Attempt deleted successfully"})
}

// UpsertAssignmentStatus godoc
// @Summary Record the status of an assignment attempt
// @Description Creates or updates the caller's attempt for (assignment_id, subject_id).
// @Tags Attempts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.AssignmentStatusRequest true "Assignment status"
// @Success 200 {object} dto.AssignmentStatusResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /attempts/assignment-status [post]
func (c *AttemptController) UpsertAssignmentStatus(ctx *gin.Context) {
	actor, ok := controller.Actor(ctx)
	if !ok {
		return
	}
	var req dto.AssignmentStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		controller.BindError(ctx, err)
		return
	}
	resp, err := c.attemptService.UpsertAssignmentStatus(ctx.Request.Context(), actor, req)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to update assignment status")
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// ListAssignmentAttempts godoc
// @Summary List the caller's assignment attempts for a subject
// @Tags Attempts
// @Produce json
// @Security BearerAuth
// @Param subjectId path string true "Subject ID"
// @Success 200 {array} dto.AttemptResponse
// @Router /attempts/user-assignments/{subjectId} [get]
func (c *AttemptController) ListAssignmentAttempts(ctx *gin.Context) {
	actor, ok := controller.Actor(ctx)
	if !ok {
		return
	}
	attempts, err := c.attemptService.ListAssignmentAttempts(ctx.Request.Context(), actor, ctx.Param("subjectId"))
	if err != nil {
		controller.RespondError(ctx, err, "Failed to fetch assignment attempts")
		return
	}
	ctx.JSON(http.StatusOK, attempts)
}

// CreateAttempt godoc
// @Summary Import a finished attempt
// @Description Creates a graded attempt in one call. Only one attempt per user and exam is accepted.
// @Tags Attempts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateAttemptRequest true "Attempt to import"
// @Success 201 {object} dto.AttemptResponse
// @Failure 400 {object} dto.ErrorResponse "Already attempted"
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /attempts [post]
func (c *AttemptController) CreateAttempt(ctx *gin.Context) {
	actor, ok := controller.Actor(ctx)
	if !ok {
		return
	}
	var req dto.CreateAttemptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		controller.BindError(ctx, err)
		return
	}
	attempt, err := c.attemptService.Create(ctx.Request.Context(), actor, req)
	if err != nil {
		log.Warn().Err(err).Uint("examID", req.ExamID).Msg("CreateAttempt: rejected")
		controller.RespondError(ctx, err, "Failed to create attempt")
		return
	}
	ctx.JSON(http.StatusCreated, attempt)
}
