package app

import (
	"sel_rubric_backend/internal/config"
	"sel_rubric_backend/internal/middleware"
	"sel_rubric_backend/internal/util"
	"sel_rubric_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(&cfg.JWT), middleware.RoleMiddleware(util.RoleTeacher))
	{
		a.registerTeacherRoutes(authGroup, c)
		a.registerAssessmentRoutes(authGroup, c)
		a.registerDistributionRoutes(authGroup, c)
		a.registerUploadRoutes(authGroup, c)
	}

	// 3. 管理员相关接口
	a.registerAdminRoutes(router, c, cfg)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.GET("/rubric", c.rubric.GetDefinition)
	}
}

func (a *App) registerTeacherRoutes(group *gin.RouterGroup, c *controllers) {
	teacher := group.Group("/teacher")
	{
		teacher.GET("/profile", c.teacher.GetProfile)
		teacher.PUT("/profile", c.teacher.UpdateProfile)
		teacher.POST("/profile/consent", c.teacher.RecordConsent)
	}
}

func (a *App) registerAssessmentRoutes(group *gin.RouterGroup, c *controllers) {
	assessments := group.Group("/assessments")
	{
		assessments.POST("", c.assessment.Submit)
		assessments.POST("/batch", c.assessment.SubmitBatch)
		assessments.POST("/score", c.assessment.Score)
		assessments.GET("", c.assessment.List)
		assessments.GET("/:id", c.assessment.Get)
		assessments.PUT("/:id", c.assessment.Update)
		assessments.DELETE("/:id", c.assessment.Delete)
	}
}

func (a *App) registerDistributionRoutes(group *gin.RouterGroup, c *controllers) {
	distributions := group.Group("/distributions")
	{
		distributions.GET("", c.distribution.List)
		distributions.GET("/cohort", c.distribution.GetCohort)
	}
}

func (a *App) registerUploadRoutes(group *gin.RouterGroup, c *controllers) {
	uploads := group.Group("/rubric-uploads")
	{
		uploads.POST("", c.upload.Upload)
		uploads.GET("", c.upload.List)
		uploads.DELETE("/:id", c.upload.Delete)
	}
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(&cfg.JWT), middleware.RoleMiddleware(util.RoleAdmin))
	{
		admin.GET("/distributions/audit", c.distribution.RunAudit)
	}
}
