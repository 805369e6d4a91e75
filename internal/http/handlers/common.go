package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"gocart/internal/http/middleware"
	"gocart/internal/utils"

	"github.com/gin-gonic/gin"
)

// IDList accepts either a JSON array of ids or a "1, 2, 3" string.
type IDList []int64

func (l *IDList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var arr []int64
		if err := json.Unmarshal(data, &arr); err != nil {
			return err
		}
		*l = arr
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	ids, err := utils.SplitIDList(strings.TrimSpace(str))
	if err != nil {
		return err
	}
	*l = ids
	return nil
}

// BindJSONOrError ensures body is present and parsable.
func BindJSONOrError[T any](c *gin.Context, dst *T) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		respondError(c, http.StatusBadRequest, "invalid_payload", "request body is empty", nil)
		return false
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_payload", "invalid payload: "+err.Error(), nil)
		return false
	}
	return true
}

// idParam parses a positive path id, answering 400 otherwise.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "invalid_"+name, "invalid "+name, nil)
		return 0, false
	}
	return id, true
}

func caller(c *gin.Context) int64 {
	return middleware.GetRequestContext(c).UserID
}
