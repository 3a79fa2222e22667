package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"giftpos/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// statusClientClosed is logged when the operator's UI dropped the request.
const statusClientClosed = 499

// ErrorHandler turns errors handlers left on the context into a generic 500.
// Internal details only reach the log.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		if errors.Is(err, context.Canceled) {
			if !c.Writer.Written() {
				c.AbortWithStatus(statusClientClosed)
			}
			return
		}

		requestLog(c, log.Error()).
			Str("route", c.FullPath()).
			Err(err).
			Msg("unhandled error")

		if c.Writer.Written() {
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.New("Error interno del servidor"))
	}
}

// Recovery converts panics into 500 responses.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				requestLog(c, log.Error()).
					Interface("panic", r).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.New("Error interno del servidor"))
			}
		}()
		c.Next()
	}
}

// Logger logs each request once it completes. Health probes log at debug;
// notification streams are logged when the client disconnects.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			ev = log.Error()
		case c.FullPath() == "/health":
			ev = log.Debug()
		default:
			ev = log.Info()
		}
		requestLog(c, ev).
			Int("status", status).
			Str("client_ip", c.ClientIP()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// requestLog adds the fields every request line shares. Order routes also
// carry the order id so a single order's history can be grepped.
func requestLog(c *gin.Context, ev *zerolog.Event) *zerolog.Event {
	ev = ev.
		Str("request_id", c.GetString(RequestIDKey)).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path)
	if id := c.Param("id"); id != "" {
		ev = ev.Str("id", id)
	}
	if claims := GetClaims(c); claims != nil {
		ev = ev.Str("operator", claims.Username)
	}
	return ev
}
