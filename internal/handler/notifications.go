package handler

import (
	"io"
	"time"

	"giftpos/internal/notify"

	"github.com/gin-gonic/gin"
)

const sseHeartbeat = 25 * time.Second

// Notifications godoc
// @Summary      Notificaciones del terminal
// @Description  Flujo SSE de avisos (éxito, advertencia, error). La suscripción termina al cerrar la conexión.
// @Tags         session
// @Produce      text/event-stream
// @Router       /v1/notifications [get]
func Notifications(bus *notify.Bus) gin.HandlerFunc {
	return func(c *gin.Context) {
		ch, cancel := bus.Subscribe()
		defer cancel()

		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")

		heartbeat := time.NewTicker(sseHeartbeat)
		defer heartbeat.Stop()

		ctx := c.Request.Context()
		c.Stream(func(w io.Writer) bool {
			select {
			case <-ctx.Done():
				return false
			case n, ok := <-ch:
				if !ok {
					return false
				}
				c.SSEvent(string(n.Level), n)
				return true
			case <-heartbeat.C:
				c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
				return true
			}
		})
	}
}
