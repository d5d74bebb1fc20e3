package knowledge

import (
	"errors"
	"net/http"

	response "knowbase/api/handlers/common"
	"knowbase/internal/rag"
	"knowbase/internal/worker/jobs"

	"github.com/gin-gonic/gin"
)

// JobHandler 摄取任务状态处理器
type JobHandler struct {
	service *rag.Service
}

// NewJobHandler 创建任务状态处理器
func NewJobHandler(service *rag.Service) *JobHandler {
	return &JobHandler{service: service}
}

// GetStatus 查询摄取任务状态
func (h *JobHandler) GetStatus(c *gin.Context) {
	jobID := c.Param("id")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: "缺少任务 ID"})
		return
	}

	status, err := h.service.GetJobStatus(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, response.ErrorResponse{Success: false, Message: "任务不存在或已过期"})
			return
		}
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: "查询任务状态失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, JobStatusResponse{
		JobID:       status.JobID,
		State:       status.State,
		Progress:    status.Progress,
		ChunksCount: status.ChunksCount,
		Error:       status.Error,
	})
}
