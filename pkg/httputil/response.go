package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/practice-api/pkg/errors"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// Response wraps all API responses
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// RespondWithSuccess sends a 200 success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Status: "success", Data: data})
}

// RespondWithCreated sends a 201 success response
func RespondWithCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Status: "success", Data: data})
}

// RespondWithError maps err onto its status code. Internal details of
// storage and unexpected errors are logged, not returned.
func RespondWithError(c *gin.Context, err error) {
	kind := errors.KindOf(err)
	status := errors.HTTPStatus(kind)

	resp := Response{Status: "error", Code: string(kind)}
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		resp.Message = appErr.Message
		if appErr.Code != "" {
			resp.Code = appErr.Code
		}
	}

	switch kind {
	case errors.KindStorage, errors.KindInternal:
		log.Error().
			Err(err).
			Str(RequestIDKey, c.GetString(RequestIDKey)).
			Str("path", c.FullPath()).
			Msg("request failed")
		if resp.Message == "" || kind == errors.KindInternal {
			resp.Message = http.StatusText(status)
		}
	}

	c.AbortWithStatusJSON(status, resp)
}

// BadRequest reports malformed input.
func BadRequest(c *gin.Context, message string, err error) {
	RespondWithError(c, errors.Validation(message, err))
}
