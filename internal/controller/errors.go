package controller

import (
	"errors"
	"net/http"

	"sel_rubric_backend/internal/repository"
	"sel_rubric_backend/internal/rubric"
	"sel_rubric_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// respondError maps service errors onto the response envelope.
func respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrAssessmentNotFound),
		errors.Is(err, util.ErrDistributionNotFound),
		errors.Is(err, util.ErrProfileNotFound),
		errors.Is(err, util.ErrUploadNotFound):
		util.Error(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, util.ErrInvalidTestType),
		errors.Is(err, util.ErrIncompleteCohort),
		errors.Is(err, util.ErrEmptyBatch),
		errors.Is(err, util.ErrBatchTooLarge),
		errors.Is(err, util.ErrInvalidFileType),
		errors.Is(err, rubric.ErrTooManyAnswers):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrFileTooLarge):
		util.Error(ctx, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, util.ErrDistributionConflict):
		util.Conflict(ctx, "cohort distribution is busy, please resubmit")
	case errors.Is(err, repository.ErrStaleRecord):
		util.Conflict(ctx, "assessment was changed by another request, please reload")
	default:
		util.LogInternalError(ctx, err)
	}
}

// currentTeacher returns the authenticated teacher's ID, writing 401 when absent.
func currentTeacher(ctx *gin.Context) (string, bool) {
	claims := util.GetTeacherFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return "", false
	}
	return claims.TeacherID, true
}
