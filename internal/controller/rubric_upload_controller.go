package controller

import (
	"sel_rubric_backend/internal/service"
	"sel_rubric_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type RubricUploadController struct {
	Service *service.RubricUploadService
}

func NewRubricUploadController(svc *service.RubricUploadService) *RubricUploadController {
	return &RubricUploadController{Service: svc}
}

// Upload 上传量表照片
// POST /api/rubric-uploads (multipart, field "file")
func (c *RubricUploadController) Upload(ctx *gin.Context) {
	teacherID, ok := currentTeacher(ctx)
	if !ok {
		return
	}

	header, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	file, err := header.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	u, err := c.Service.Upload(ctx.Request.Context(), teacherID, header.Filename, header.Size, file)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, u)
}

// List GET /api/rubric-uploads
func (c *RubricUploadController) List(ctx *gin.Context) {
	teacherID, ok := currentTeacher(ctx)
	if !ok {
		return
	}

	page, limit := util.PageParams(ctx.Query("page"), ctx.Query("limit"))
	list, total, err := c.Service.List(ctx.Request.Context(), teacherID, page, limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{
		List:  list,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// Delete DELETE /api/rubric-uploads/:id
func (c *RubricUploadController) Delete(ctx *gin.Context) {
	teacherID, ok := currentTeacher(ctx)
	if !ok {
		return
	}

	if err := c.Service.Delete(ctx.Request.Context(), teacherID, ctx.Param("id")); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
