package utils

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"stockroom-server/internal/store"
)

// maxLimit caps a single listing so a client cannot pull the whole
// collection in one request.
const maxLimit = 1000

// ParsePage reads the skip/limit query parameters of a listing endpoint.
func ParsePage(c *gin.Context) (store.Page, error) {
	p := store.Page{Skip: 0, Limit: store.DefaultLimit}

	if raw := c.Query("skip"); raw != "" {
		val, err := strconv.Atoi(raw)
		if err != nil || val < 0 {
			return p, fmt.Errorf("invalid skip")
		}
		p.Skip = val
	}

	if raw := c.Query("limit"); raw != "" {
		val, err := strconv.Atoi(raw)
		if err != nil || val <= 0 {
			return p, fmt.Errorf("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		p.Limit = val
	}

	return p, nil
}
