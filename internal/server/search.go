package server

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clauselens/clauselens/internal/common"
	"github.com/clauselens/clauselens/internal/embedding"
	"github.com/clauselens/clauselens/internal/entity"
)

const snippetMax = 280

// handleSearch answers GET /api/search?q=&k= across every indexed document.
func (s *Server) handleSearch(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "query parameter 'q' is required",
		})
		return
	}
	k := queryInt(c, "k", s.cfg.SearchTopK, 50)

	if s.deps.Engine == nil || s.deps.Index == nil {
		respondError(c, common.UnavailableError("semantic search is not configured"))
		return
	}
	ctx := c.Request.Context()

	qvec, err := s.deps.Engine.Embed(ctx, query, embedding.TaskQuery)
	if err != nil {
		s.logger.Warn("search.embed_failed", "err", err)
		respondError(c, common.UnavailableError("embedding backend unavailable"))
		return
	}

	matches := s.deps.Index.Search(qvec, k, uuid.Nil)
	ids := make([]uuid.UUID, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ChunkID)
	}

	var chunks []*entity.Chunk
	if len(ids) > 0 {
		chunks, err = s.deps.Chunks.GetByIDs(ctx, ids)
		if err != nil {
			respondError(c, err)
			return
		}
	}
	byID := make(map[uuid.UUID]*entity.Chunk, len(chunks))
	for _, ch := range chunks {
		byID[ch.ID] = ch
	}

	filenames := make(map[uuid.UUID]string)
	results := make([]gin.H, 0, len(matches))
	for _, m := range matches {
		ch, ok := byID[m.ChunkID]
		if !ok {
			continue
		}
		name, seen := filenames[m.DocumentID]
		if !seen {
			if doc, err := s.deps.Docs.GetByID(ctx, m.DocumentID); err == nil {
				name = doc.Filename
			}
			filenames[m.DocumentID] = name
		}
		results = append(results, gin.H{
			"document_id": m.DocumentID,
			"filename":    name,
			"chunk_id":    ch.ID,
			"seq":         ch.Seq,
			"heading":     ch.Heading,
			"score":       m.Score,
			"snippet":     snippet(ch.Text),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"query":   query,
		"results": results,
		"count":   len(results),
	})
}

func snippet(text string) string {
	if len(text) <= snippetMax {
		return text
	}
	end := snippetMax
	for end > 0 && !utf8.RuneStart(text[end]) {
		end--
	}
	cut := text[:end]
	if i := strings.LastIndexAny(cut, " \n\t"); i > snippetMax/2 {
		cut = cut[:i]
	}
	return cut + "…"
}
