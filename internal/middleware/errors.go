package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"contactbook/internal/apperr"
	"contactbook/internal/response"
)

// Errors turns the last error a handler attached with c.Error into the JSON
// error envelope. Internal causes are logged and never sent to the client.
func Errors(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := apperr.From(c.Errors.Last().Err)
		if err.Kind == apperr.KindInternal {
			log.Error().
				Err(err.Cause).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Str("request_id", c.Writer.Header().Get(requestIDHeader)).
				Msg(err.Message)
		}

		response.Error(c, err.Kind.HTTPStatus(), err.Message)
	}
}
