package tasks

// 任务类型
const (
	TypeProcessDocument = "ingest:process_document"
)

// ProcessDocumentPayload 文档摄取任务载荷
type ProcessDocumentPayload struct {
	JobID      string `json:"job_id"`
	DocumentID int64  `json:"document_id"`
	UserID     int64  `json:"user_id"`
}
