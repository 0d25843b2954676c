package controller

import (
	"sel_rubric_backend/internal/rubric"
	"sel_rubric_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type RubricController struct{}

func NewRubricController() *RubricController {
	return &RubricController{}
}

// GetDefinition 返回评分量表（题目、技能映射、等级阈值）
// GET /api/rubric
func (c *RubricController) GetDefinition(ctx *gin.Context) {
	util.Success(ctx, rubric.GetDefinition())
}
