package handler

import (
	"net/http"

	"giftpos/internal/dto"
	"giftpos/internal/service"

	"github.com/gin-gonic/gin"
)

type OrdersHandler struct{ svc service.FulfillmentService }

func NewOrdersHandler(svc service.FulfillmentService) *OrdersHandler {
	return &OrdersHandler{svc: svc}
}

// List godoc
// @Summary      Listar pedidos
// @Description  Pedidos del terminal, más recientes primero. Filtra por etapa de producción.
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        fulfillment_status query string false "Etapa"
// @Param        include_cancelled  query bool   false "Incluir cancelados"
// @Param        page               query int    false "Página"
// @Param        limit              query int    false "Tamaño de página"
// @Success      200 {object} dto.OrderListResponse
// @Router       /v1/orders [get]
func (h *OrdersHandler) List(c *gin.Context) {
	var filter dto.OrderFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary      Detalle de pedido
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "UUID del pedido"
// @Success      200 {object} dto.OrderResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/orders/{id} [get]
func (h *OrdersHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Advance godoc
// @Summary      Avanzar etapa
// @Description  Mueve el pedido una etapa hacia adelante. Enviado/entregado exigen guía o entrega local.
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "UUID del pedido"
// @Success      200 {object} dto.OrderResponse
// @Failure      422 {object} apierror.WorkflowError
// @Router       /v1/orders/{id}/advance [post]
func (h *OrdersHandler) Advance(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Advance(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Retreat godoc
// @Summary      Retroceder etapa
// @Description  Abre una solicitud de autorización; nada cambia hasta ingresar la contraseña maestra.
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "UUID del pedido"
// @Success      202 {object} dto.TransitionResponse
// @Success      200 {object} dto.TransitionResponse
// @Router       /v1/orders/{id}/retreat [post]
func (h *OrdersHandler) Retreat(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Retreat(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeTransition(c, resp)
}

// SetStatus godoc
// @Summary      Editar etapa y envío
// @Description  Hacia adelante se aplica de inmediato; hacia atrás requiere autorización (202).
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                       true "UUID del pedido"
// @Param        body body dto.FulfillmentUpdateRequest true "Etapa y datos de envío"
// @Success      200 {object} dto.TransitionResponse
// @Success      202 {object} dto.TransitionResponse
// @Failure      422 {object} apierror.WorkflowError
// @Router       /v1/orders/{id}/fulfillment [put]
func (h *OrdersHandler) SetStatus(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.FulfillmentUpdateRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.SetStatus(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	writeTransition(c, resp)
}

// UpdateShipping godoc
// @Summary      Guardar datos de envío
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string              true "UUID del pedido"
// @Param        body body dto.ShippingRequest true "Cambios de envío"
// @Success      200 {object} dto.OrderResponse
// @Failure      422 {object} apierror.WorkflowError
// @Router       /v1/orders/{id}/shipping [put]
func (h *OrdersHandler) UpdateShipping(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.ShippingRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.UpdateShipping(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RegisterPayment godoc
// @Summary      Registrar pago
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string             true "UUID del pedido"
// @Param        body body dto.PaymentRequest true "Pago"
// @Success      200 {object} dto.OrderResponse
// @Failure      422 {object} apierror.WorkflowError
// @Router       /v1/orders/{id}/payments [post]
func (h *OrdersHandler) RegisterPayment(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.PaymentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RegisterPayment(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Cancel godoc
// @Summary      Cancelar pedido
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                 true "UUID del pedido"
// @Param        body body dto.CancelOrderRequest true "Motivo"
// @Success      200 {object} dto.OrderResponse
// @Router       /v1/orders/{id}/cancel [post]
func (h *OrdersHandler) Cancel(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.CancelOrderRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Cancel(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ApproveRollback godoc
// @Summary      Autorizar retroceso
// @Description  Verifica la contraseña maestra y aplica el retroceso pendiente.
// @Tags         rollbacks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                     true "UUID de la solicitud"
// @Param        body body dto.ApproveRollbackRequest true "Contraseña maestra"
// @Success      200 {object} dto.OrderResponse
// @Failure      401 {object} apierror.APIError
// @Failure      404 {object} apierror.APIError
// @Router       /v1/rollbacks/{id}/approve [post]
func (h *OrdersHandler) ApproveRollback(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.ApproveRollbackRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.ApproveRollback(c.Request.Context(), id, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CancelRollback godoc
// @Summary      Descartar retroceso
// @Tags         rollbacks
// @Security     BearerAuth
// @Param        id path string true "UUID de la solicitud"
// @Success      204
// @Failure      404 {object} apierror.APIError
// @Router       /v1/rollbacks/{id} [delete]
func (h *OrdersHandler) CancelRollback(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.CancelRollback(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeTransition(c *gin.Context, resp *dto.TransitionResponse) {
	if resp.Rollback != nil {
		c.JSON(http.StatusAccepted, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
