package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) SetUpRouter() *gin.Engine {
	router := gin.New()
	router.Use(RequestId())
	router.Use(Logger())
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "ok",
		})
	})
	if s.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
			return
		}
		c.Status(http.StatusNotFound)
	})

	apiV1 := router.Group("/api/v1")
	s.SetUpApiV1Router(apiV1)

	return router
}

func (s *Server) SetUpApiV1Router(apiV1 *gin.RouterGroup) {
	if s.conf.JwtSecret != "" {
		apiV1.Use(TrySetSubjectToContext(s.conf.JwtSecret), NeedAuth())
	}

	apiV1.GET("/status", s.handleGetStatus)

	apiV1.GET("/calibration/:role", s.handleGetCalibration)
	apiV1.POST("/calibration/reset", s.handleResetCalibration)

	apiV1.GET("/statistics", s.handleGetStatistics)
	apiV1.GET("/statistics/daily", s.handleGetDailyStatistics)
	apiV1.GET("/records", s.handleListRecords)

	apiV1.GET("/settings/:key", s.handleGetSetting)
	apiV1.PUT("/settings/:key", s.handlePutSetting)
}
