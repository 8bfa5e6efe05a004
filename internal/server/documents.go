package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clauselens/clauselens/internal/async"
	"github.com/clauselens/clauselens/internal/common"
	"github.com/clauselens/clauselens/internal/entity"
	"github.com/clauselens/clauselens/internal/ingest"
	"github.com/clauselens/clauselens/internal/risk"
)

// jobView is the job summary returned by the API. The full row carries the
// extracted document text, which does not belong in list responses.
type jobView struct {
	ID                string   `json:"id"`
	Status            *string  `json:"status,omitempty"`
	Format            string   `json:"format,omitempty"`
	ExtractMethod     *string  `json:"extract_method,omitempty"`
	ExtractConfidence *float32 `json:"extract_confidence,omitempty"`
	NeedsReview       bool     `json:"needs_review"`
	FlagCount         int      `json:"flag_count"`
	ChunkCount        int      `json:"chunk_count"`
	ModelName         *string  `json:"model_name,omitempty"`
	ErrorMessage      *string  `json:"error_message,omitempty"`
}

func newJobView(job *entity.AnalysisJob) *jobView {
	if job == nil {
		return nil
	}
	return &jobView{
		ID:                job.ID.String(),
		Status:            job.Status,
		Format:            job.Format,
		ExtractMethod:     job.ExtractMethod,
		ExtractConfidence: job.ExtractConfidence,
		NeedsReview:       job.NeedsReview,
		FlagCount:         job.FlagCount,
		ChunkCount:        job.ChunkCount,
		ModelName:         job.ModelName,
		ErrorMessage:      job.ErrorMessage,
	}
}

func (s *Server) handleUpload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "multipart field 'file' is required",
		})
		return
	}
	if header.Size > s.cfg.MaxUploadMB<<20 {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"success": false,
			"error":   "file exceeds the upload size limit",
		})
		return
	}

	f, err := header.Open()
	if err != nil {
		respondError(c, common.WrapError(err, "open upload"))
		return
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		respondError(c, common.WrapError(err, "read upload"))
		return
	}

	res, err := s.deps.Ingestor.IngestFile(c.Request.Context(), ingest.IngestRequest{
		Filename: header.Filename,
		Content:  content,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if res.Duplicate {
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"document":  res.Document,
			"duplicate": true,
			"queued":    false,
		})
		return
	}

	if err := s.deps.Queue.Enqueue(c.Request.Context(), async.Job{DocumentID: res.Document.ID}); err != nil {
		s.logger.Warn("upload.enqueue_failed", "document_id", res.Document.ID, "err", err)
		// the document row exists; the client can POST /reprocess once the
		// queue drains
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success":     false,
			"error":       "processing queue is full; reprocess the document later",
			"document_id": res.Document.ID,
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success":   true,
		"document":  res.Document,
		"duplicate": false,
		"queued":    true,
	})
}

func (s *Server) handleListDocuments(c *gin.Context) {
	limit := queryInt(c, "limit", 50, 500)
	offset := queryInt(c, "offset", 0, 0)

	docs, err := s.deps.Docs.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	total, err := s.deps.Docs.Count(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"documents": docs,
		"count":     len(docs),
		"total":     total,
	})
}

func (s *Server) handleGetDocument(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	doc, err := s.deps.Docs.GetByID(ctx, id)
	if err != nil {
		respondError(c, notFoundAs(err, "document not found"))
		return
	}

	job, err := s.deps.Jobs.LatestForDocument(ctx, id)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		respondError(c, err)
		return
	}
	contract, err := s.deps.Contracts.GetByDocument(ctx, id)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		respondError(c, err)
		return
	}
	flags, err := s.deps.Risks.ListByDocument(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"document": doc,
		"job":      newJobView(job),
		"contract": contract,
		"risk":     risk.Assess(derefFlags(flags)),
	})
}

func (s *Server) handleDeleteDocument(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := s.deps.Docs.Delete(c.Request.Context(), id); err != nil {
		respondError(c, notFoundAs(err, "document not found"))
		return
	}
	if s.deps.Index != nil {
		s.deps.Index.RemoveDocument(id)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "document deleted",
	})
}

func (s *Server) handleReprocess(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if _, err := s.deps.Docs.GetByID(ctx, id); err != nil {
		respondError(c, notFoundAs(err, "document not found"))
		return
	}

	if err := s.deps.Queue.Enqueue(ctx, async.Job{DocumentID: id, Force: true}); err != nil {
		s.logger.Warn("reprocess.enqueue_failed", "document_id", id, "err", err)
		respondError(c, common.UnavailableError("processing queue is full"))
		return
	}
	if err := s.deps.Docs.UpdateStatus(ctx, id, "QUEUED"); err != nil {
		s.logger.Warn("reprocess.status_update_failed", "document_id", id, "err", err)
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success":     true,
		"document_id": id,
		"status":      "QUEUED",
	})
}

func (s *Server) handleDocumentRisks(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if _, err := s.deps.Docs.GetByID(ctx, id); err != nil {
		respondError(c, notFoundAs(err, "document not found"))
		return
	}
	flags, err := s.deps.Risks.ListByDocument(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"flags":      flags,
		"count":      len(flags),
		"assessment": risk.Assess(derefFlags(flags)),
	})
}

// notFoundAs swaps a bare ErrNotFound for a message the client can show.
func notFoundAs(err error, msg string) error {
	if errors.Is(err, common.ErrNotFound) {
		return common.NotFoundError(msg)
	}
	return err
}

func derefFlags(flags []*entity.RiskFlag) []entity.RiskFlag {
	out := make([]entity.RiskFlag, 0, len(flags))
	for _, f := range flags {
		out = append(out, *f)
	}
	return out
}
