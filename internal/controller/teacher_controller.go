package controller

import (
	"sel_rubric_backend/internal/service"
	"sel_rubric_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type TeacherController struct {
	Service *service.TeacherService
}

func NewTeacherController(svc *service.TeacherService) *TeacherController {
	return &TeacherController{Service: svc}
}

// GetProfile GET /api/teacher/profile
func (c *TeacherController) GetProfile(ctx *gin.Context) {
	teacherID, ok := currentTeacher(ctx)
	if !ok {
		return
	}

	p, err := c.Service.GetProfile(ctx.Request.Context(), teacherID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, p)
}

// UpdateProfile PUT /api/teacher/profile
func (c *TeacherController) UpdateProfile(ctx *gin.Context) {
	teacherID, ok := currentTeacher(ctx)
	if !ok {
		return
	}

	var req service.UpdateProfileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	p, err := c.Service.UpsertProfile(ctx.Request.Context(), teacherID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, p)
}

// RecordConsent POST /api/teacher/profile/consent
func (c *TeacherController) RecordConsent(ctx *gin.Context) {
	teacherID, ok := currentTeacher(ctx)
	if !ok {
		return
	}

	p, err := c.Service.RecordConsent(ctx.Request.Context(), teacherID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, p)
}
