package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type askBody struct {
	Question string `json:"question"`
}

func (s *Server) handleChatAsk(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var body askBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "body must be JSON with a 'question' field",
		})
		return
	}

	ans, err := s.deps.Chat.Ask(c.Request.Context(), id, body.Question)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"answer":    ans.Text,
		"citations": ans.Citations,
	})
}

func (s *Server) handleChatHistory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	limit := queryInt(c, "limit", 50, 200)

	msgs, err := s.deps.Chat.History(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"messages": msgs,
		"count":    len(msgs),
	})
}
