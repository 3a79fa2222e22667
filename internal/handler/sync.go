package handler

import (
	"context"
	"net/http"

	"giftpos/internal/apierror"
	"giftpos/internal/dto"
	"giftpos/internal/reconcile"
	"giftpos/internal/session"

	"github.com/gin-gonic/gin"
)

// Syncer is the reconciliation loop as seen by the HTTP layer.
type Syncer interface {
	ManualSync(ctx context.Context) (reconcile.Result, error)
	Start(ctx context.Context) bool
	Stop()
	Running() bool
}

// SessionHandler exposes the terminal UI state the reconciliation guards read,
// plus the manual sync and orders-view lifecycle.
type SessionHandler struct {
	state  *session.State
	syncer Syncer
	// appCtx outlives requests; the loop started from a request runs on it.
	appCtx context.Context
}

func NewSessionHandler(appCtx context.Context, state *session.State, syncer Syncer) *SessionHandler {
	return &SessionHandler{state: state, syncer: syncer, appCtx: appCtx}
}

// Sync godoc
// @Summary      Sincronización manual
// @Description  Envía los pedidos locales recientes a la nube y trae los cambios remotos (últimos 30 días).
// @Tags         sync
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} reconcile.Result
// @Failure      502 {object} apierror.APIError
// @Failure      503 {object} apierror.APIError
// @Router       /v1/sync [post]
func (h *SessionHandler) Sync(c *gin.Context) {
	res, err := h.syncer.ManualSync(c.Request.Context())
	if err != nil {
		if res.Skipped == reconcile.SkipNotConfigured {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusBadGateway, apierror.New("Error al sincronizar con la nube"))
		return
	}
	c.JSON(http.StatusOK, res)
}

// Status godoc
// @Summary      Estado de la sesión del terminal
// @Tags         session
// @Produce      json
// @Success      200 {object} dto.SessionResponse
// @Router       /v1/session [get]
func (h *SessionHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.snapshot())
}

// OpenModal godoc
// @Summary      Registrar diálogo abierto
// @Description  Mientras haya diálogos de edición, autorización o pago abiertos la sincronización automática se pausa.
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body body dto.OpenModalRequest true "Tipo de diálogo"
// @Success      201 {object} dto.ModalResponse
// @Router       /v1/session/modals [post]
func (h *SessionHandler) OpenModal(c *gin.Context) {
	var req dto.OpenModalRequest
	if !bindAndValidate(c, &req) {
		return
	}
	kind := session.ModalKind(req.Kind)
	if !session.ValidModal(kind) {
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(map[string]string{"Kind": "oneof"}))
		return
	}
	id := h.state.OpenModal(kind)
	c.JSON(http.StatusCreated, dto.ModalResponse{ID: id, Kind: req.Kind})
}

// CloseModal godoc
// @Summary      Registrar diálogo cerrado
// @Tags         session
// @Param        id path string true "ID del diálogo"
// @Success      204
// @Failure      404 {object} apierror.APIError
// @Router       /v1/session/modals/{id} [delete]
func (h *SessionHandler) CloseModal(c *gin.Context) {
	if !h.state.CloseModal(c.Param("id")) {
		c.JSON(http.StatusNotFound, apierror.New("Dialogo no encontrado"))
		return
	}
	c.Status(http.StatusNoContent)
}

// SetVisibility godoc
// @Summary      Visibilidad del terminal
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body body dto.VisibilityRequest true "Primer plano"
// @Success      200 {object} dto.SessionResponse
// @Router       /v1/session/visibility [put]
func (h *SessionHandler) SetVisibility(c *gin.Context) {
	var req dto.VisibilityRequest
	if !bindAndValidate(c, &req) {
		return
	}
	h.state.SetForeground(*req.Foreground)
	c.JSON(http.StatusOK, h.snapshot())
}

// ActivateView godoc
// @Summary      Abrir vista de pedidos
// @Description  Inicia la sincronización periódica (con una sincronización inmediata).
// @Tags         session
// @Produce      json
// @Success      200 {object} dto.SessionResponse
// @Router       /v1/session/view [post]
func (h *SessionHandler) ActivateView(c *gin.Context) {
	h.syncer.Start(h.appCtx)
	c.JSON(http.StatusOK, h.snapshot())
}

// DeactivateView godoc
// @Summary      Cerrar vista de pedidos
// @Description  Detiene la sincronización periódica y descarta resultados en curso.
// @Tags         session
// @Produce      json
// @Success      200 {object} dto.SessionResponse
// @Router       /v1/session/view [delete]
func (h *SessionHandler) DeactivateView(c *gin.Context) {
	h.syncer.Stop()
	c.JSON(http.StatusOK, h.snapshot())
}

func (h *SessionHandler) snapshot() dto.SessionResponse {
	return dto.SessionResponse{
		OpenModals:  h.state.OpenModals(),
		Foreground:  h.state.Foreground(),
		SyncRunning: h.syncer.Running(),
	}
}
