package knowledge

import (
	"errors"
	"net/http"
	"strconv"

	response "knowbase/api/handlers/common"
	"knowbase/internal/document"
	"knowbase/internal/rag"

	"github.com/gin-gonic/gin"
)

// DocumentHandler 文档摄取处理器
type DocumentHandler struct {
	service *rag.Service
}

// NewDocumentHandler 创建文档摄取处理器
func NewDocumentHandler(service *rag.Service) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// Process 提交文档摄取任务
// 入队成功立即返回 202 和任务 ID, 进度通过任务接口轮询
func (h *DocumentHandler) Process(c *gin.Context) {
	documentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: "文档 ID 无效"})
		return
	}

	jobID, err := h.service.SubmitIngestion(c.Request.Context(), documentID)
	if err != nil {
		if errors.Is(err, document.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, response.ErrorResponse{Success: false, Message: "文档不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: "提交摄取任务失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, ProcessResponse{
		JobID:      jobID,
		DocumentID: documentID,
	})
}

// GetChunks 列出文档已入库的分块
func (h *DocumentHandler) GetChunks(c *gin.Context) {
	documentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: "文档 ID 无效"})
		return
	}

	chunks, err := h.service.GetDocumentChunks(c.Request.Context(), documentID)
	if err != nil {
		if errors.Is(err, document.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, response.ErrorResponse{Success: false, Message: "文档不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: "查询分块失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, ChunkListResponse{
		DocumentID: documentID,
		Chunks:     chunks,
		Total:      len(chunks),
	})
}
