package httpapi

import (
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"
)

// errorResponse is the machine-readable error body returned for every
// 4xx: a distinct surface "kind" plus a human-readable detail.
type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeError(c *gin.Context, status int, kind string, err error) {
	c.Error(err)
	c.AbortWithStatusJSON(status, errorResponse{Kind: kind, Message: err.Error()})
}

// decodeStrict decodes the request body into v, rejecting unknown fields —
// the same strict-parsing posture internal/wire.Parse and
// internal/persistence/filebackend.readStrict take with client-controlled
// input, applied here to every control-API request body.
func decodeStrict(c *gin.Context, v any) error {
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}
