package controller

import (
	"sel_rubric_backend/internal/repository"
	"sel_rubric_backend/internal/service"
	"sel_rubric_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AssessmentController struct {
	Service *service.AssessmentService
}

func NewAssessmentController(svc *service.AssessmentService) *AssessmentController {
	return &AssessmentController{Service: svc}
}

type batchSubmitRequest struct {
	Assessments []service.SubmitAssessmentRequest `json:"assessments" binding:"required,dive"`
}

type scoreRequest struct {
	Answers []string `json:"answers" binding:"required"`
}

// Submit 保存单个学生的评估并更新班级分布
// POST /api/assessments
func (c *AssessmentController) Submit(ctx *gin.Context) {
	teacherID, ok := currentTeacher(ctx)
	if !ok {
		return
	}

	var req service.SubmitAssessmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	a, err := c.Service.Submit(ctx.Request.Context(), teacherID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, a)
}

// SubmitBatch 批量保存，逐条返回结果
// POST /api/assessments/batch
func (c *AssessmentController) SubmitBatch(ctx *gin.Context) {
	teacherID, ok := currentTeacher(ctx)
	if !ok {
		return
	}

	var req batchSubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	results, err := c.Service.SubmitBatch(ctx.Request.Context(), teacherID, req.Assessments)
	if err != nil {
		respondError(ctx, err)
		return
	}

	saved := 0
	for _, r := range results {
		if r.Error == "" {
			saved++
		}
	}
	util.Success(ctx, gin.H{
		"saved":   saved,
		"failed":  len(results) - saved,
		"results": results,
	})
}

// List GET /api/assessments
func (c *AssessmentController) List(ctx *gin.Context) {
	teacherID, ok := currentTeacher(ctx)
	if !ok {
		return
	}

	page, limit := util.PageParams(ctx.Query("page"), ctx.Query("limit"))
	list, total, err := c.Service.List(ctx.Request.Context(), teacherID, repository.AssessmentFilter{
		TestType:       ctx.Query("testType"),
		School:         ctx.Query("school"),
		Grade:          ctx.Query("grade"),
		AssessmentName: ctx.Query("assessmentName"),
		Page:           page,
		Limit:          limit,
	})
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

// Get GET /api/assessments/:id
func (c *AssessmentController) Get(ctx *gin.Context) {
	teacherID, ok := currentTeacher(ctx)
	if !ok {
		return
	}

	a, err := c.Service.Get(ctx.Request.Context(), teacherID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}

	answers, err := a.AnswerSet()
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"assessment": a,
		"summary":    service.Summarize(answers),
	})
}

// Update 修改答案后重新计分
// PUT /api/assessments/:id
func (c *AssessmentController) Update(ctx *gin.Context) {
	teacherID, ok := currentTeacher(ctx)
	if !ok {
		return
	}

	var req service.UpdateAssessmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	a, err := c.Service.Update(ctx.Request.Context(), teacherID, ctx.Param("id"), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, a)
}

// Delete DELETE /api/assessments/:id
func (c *AssessmentController) Delete(ctx *gin.Context) {
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

// Score 仅计分，不保存
// POST /api/assessments/score
func (c *AssessmentController) Score(ctx *gin.Context) {
	var req scoreRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	summary, err := c.Service.Preview(req.Answers)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}
