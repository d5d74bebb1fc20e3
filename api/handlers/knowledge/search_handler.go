package knowledge

import (
	"fmt"
	"net/http"

	response "knowbase/api/handlers/common"
	"knowbase/internal/rag"

	"github.com/gin-gonic/gin"
)

// SearchHandler 检索处理器
type SearchHandler struct {
	service *rag.Service
}

// NewSearchHandler 创建检索处理器
func NewSearchHandler(service *rag.Service) *SearchHandler {
	return &SearchHandler{service: service}
}

// Search 语义检索
func (h *SearchHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: "参数错误: " + err.Error()})
		return
	}

	collection, err := resolveCollection(req.CategoryID, req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: err.Error()})
		return
	}

	topK := req.TopK
	if topK <= 0 {
		topK = 5
	}
	if topK > 20 {
		topK = 20
	}

	hits, err := h.service.Search(c.Request.Context(), rag.SearchRequest{
		Collection: collection,
		Query:      req.Query,
		TopK:       topK,
		FilterExpr: req.Filter,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: "检索失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, SearchResponse{
		Query:   req.Query,
		Results: hits,
		Total:   len(hits),
	})
}

// DeleteCollection 删除整个命名空间
func (h *SearchHandler) DeleteCollection(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: "缺少命名空间名称"})
		return
	}

	if err := h.service.DeleteCollection(c.Request.Context(), name); err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: "删除命名空间失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, response.APIResponse{Success: true, Message: "命名空间已删除"})
}

// resolveCollection 由归属推导命名空间: 分类优先, 否则个人空间
func resolveCollection(categoryID *int64, userID int64) (string, error) {
	if categoryID != nil {
		return fmt.Sprintf("category_%d", *categoryID), nil
	}
	if userID > 0 {
		return fmt.Sprintf("user_%d", userID), nil
	}
	return "", fmt.Errorf("category_id 和 user_id 至少填一个")
}
