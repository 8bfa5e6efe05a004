package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clauselens/clauselens/internal/common"
)

// respondError maps a service error onto the JSON envelope. AppError messages
// are client-safe; anything else passes through as-is.
func respondError(c *gin.Context, err error) {
	msg := err.Error()
	var app *common.AppError
	if errors.As(err, &app) {
		msg = app.Message
	}
	c.JSON(common.HTTPStatus(err), gin.H{
		"success": false,
		"error":   msg,
	})
}

// pathID parses the :id route parameter; on failure it writes the 400 itself
// and reports ok=false.
func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "id must be a UUID",
		})
		return uuid.Nil, false
	}
	return id, true
}

// queryInt reads an integer query parameter with a default and an upper cap.
func queryInt(c *gin.Context, name string, def, max int) int {
	raw := c.DefaultQuery(name, strconv.Itoa(def))
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}
