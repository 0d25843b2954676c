package controller

import (
	"sel_rubric_backend/internal/model"
	"sel_rubric_backend/internal/repository"
	"sel_rubric_backend/internal/service"
	"sel_rubric_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type DistributionController struct {
	Service *service.DistributionService
	Audit   *service.DistributionAuditService
}

func NewDistributionController(svc *service.DistributionService, audit *service.DistributionAuditService) *DistributionController {
	return &DistributionController{Service: svc, Audit: audit}
}

// List GET /api/distributions?school=&grade=&testType=
func (c *DistributionController) List(ctx *gin.Context) {
	f := repository.DistributionFilter{
		School:         ctx.Query("school"),
		Grade:          ctx.Query("grade"),
		Section:        ctx.Query("section"),
		Zone:           ctx.Query("zone"),
		AssessmentName: ctx.Query("assessmentName"),
	}
	if t := ctx.Query("testType"); t != "" {
		testType, err := service.NormalizeTestType(t)
		if err != nil {
			respondError(ctx, err)
			return
		}
		f.TestType = testType
	}

	list, err := c.Service.List(ctx.Request.Context(), f)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// GetCohort 按完整班级键查询分布
// GET /api/distributions/cohort
func (c *DistributionController) GetCohort(ctx *gin.Context) {
	var key model.CohortKey
	if err := ctx.ShouldBindQuery(&key); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	testType, err := service.NormalizeTestType(key.TestType)
	if err != nil {
		respondError(ctx, err)
		return
	}
	key.TestType = testType

	d, err := c.Service.Get(ctx.Request.Context(), key)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, d)
}

// RunAudit GET /api/admin/distributions/audit
func (c *DistributionController) RunAudit(ctx *gin.Context) {
	report, err := c.Audit.Audit(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, report)
}
