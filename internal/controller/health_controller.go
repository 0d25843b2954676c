package controller

import (
	"context"
	"net/http"
	"time"

	"sel_rubric_backend/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Pinger is an optional dependency reported by the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	DB         *gorm.DB
	components map[string]Pinger
}

// NewHealthController takes optional components (cache, storage) keyed by name.
func NewHealthController(db *gorm.DB, components map[string]Pinger) *HealthController {
	return &HealthController{DB: db, components: components}
}

// HealthCheck GET /api/health
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	// 检查数据库连接
	sqlDB, err := c.DB.DB()
	if err != nil {
		util.InternalServerError(ctx)
		return
	}

	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		util.Error(ctx, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	status := "ok"
	components := gin.H{"database": "up"}
	for name, p := range c.components {
		if p == nil {
			continue
		}
		if err := p.Ping(pingCtx); err != nil {
			components[name] = "down"
			status = "degraded"
			continue
		}
		components[name] = "up"
	}

	util.Success(ctx, gin.H{
		"status":     status,
		"components": components,
	})
}
