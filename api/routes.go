package api

import (
	"net/http"

	"knowbase/api/handlers/knowledge"
	"knowbase/internal/infra"
	"knowbase/internal/middleware"
	"knowbase/internal/rag"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter 构建 HTTP 路由
func NewRouter(mode string, service *rag.Service) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(RequestLogger())
	router.Use(CORS())

	// 运维端点
	router.GET("/health", healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	registerAPIRoutes(router.Group("/api/v1"), service)
	return router
}

// registerAPIRoutes 注册业务路由
func registerAPIRoutes(apiGroup *gin.RouterGroup, service *rag.Service) {
	documentHandler := knowledge.NewDocumentHandler(service)
	jobHandler := knowledge.NewJobHandler(service)
	searchHandler := knowledge.NewSearchHandler(service)

	documents := apiGroup.Group("/documents")
	{
		documents.POST("/:id/process", documentHandler.Process)
		documents.GET("/:id/chunks", documentHandler.GetChunks)
	}

	jobs := apiGroup.Group("/jobs")
	{
		jobs.GET("/:id", jobHandler.GetStatus)
	}

	apiGroup.POST("/knowledge/search", searchHandler.Search)
	apiGroup.DELETE("/collections/:name", searchHandler.DeleteCollection)
}

// healthCheck 健康检查, 数据库或 Redis 异常时返回 503
func healthCheck(c *gin.Context) {
	checks := gin.H{"database": "ok", "redis": "ok"}
	healthy := true

	if err := infra.HealthCheck(); err != nil {
		checks["database"] = err.Error()
		healthy = false
	}
	if err := infra.HealthCheckRedis(); err != nil {
		checks["redis"] = err.Error()
		healthy = false
	}

	status := http.StatusOK
	state := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status": state,
		"checks": checks,
	})
}
