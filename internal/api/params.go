package api

import (
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pinnity/pinnity/internal/id"
	"github.com/pinnity/pinnity/internal/service"
)

// pathID parses the :id parameter with the expected entity prefix.
func pathID(c *gin.Context, parse func(string) (id.ID, error)) (id.ID, bool) {
	v, err := parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid id")
		return id.Nil, false
	}
	return v, true
}

func queryInt(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		badRequest(c, key+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func pageFrom(c *gin.Context) (service.Page, bool) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return service.Page{}, false
	}
	offset, ok := queryInt(c, "offset")
	if !ok {
		return service.Page{}, false
	}
	return service.Page{Limit: limit, Offset: offset}, true
}

// bindJSON decodes the body into dst. Optional bodies may be empty.
func bindJSON(c *gin.Context, dst any, optional bool) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		badRequest(c, "invalid request body")
		return false
	}
	return true
}
