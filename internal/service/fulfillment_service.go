package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"giftpos/internal/authgate"
	"giftpos/internal/dto"
	"giftpos/internal/model"
	"giftpos/internal/notify"
	"giftpos/internal/orderlock"
	"giftpos/internal/repository"
	"giftpos/internal/workflow"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Pusher schedules a background upload of the order's current local state.
type Pusher interface {
	EnqueuePush(ctx context.Context, orderID uuid.UUID) error
}

// ErrInvalidPayment is wrapped by payment validation failures.
var ErrInvalidPayment = errors.New("monto de pago inválido")

type FulfillmentService interface {
	List(ctx context.Context, filter dto.OrderFilter) (*dto.OrderListResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.OrderResponse, error)
	Advance(ctx context.Context, id uuid.UUID) (*dto.OrderResponse, error)
	Retreat(ctx context.Context, id uuid.UUID) (*dto.TransitionResponse, error)
	SetStatus(ctx context.Context, id uuid.UUID, req dto.FulfillmentUpdateRequest) (*dto.TransitionResponse, error)
	ApproveRollback(ctx context.Context, requestID uuid.UUID, password string) (*dto.OrderResponse, error)
	CancelRollback(ctx context.Context, requestID uuid.UUID) error
	UpdateShipping(ctx context.Context, id uuid.UUID, req dto.ShippingRequest) (*dto.OrderResponse, error)
	RegisterPayment(ctx context.Context, id uuid.UUID, req dto.PaymentRequest) (*dto.OrderResponse, error)
	Cancel(ctx context.Context, id uuid.UUID, req dto.CancelOrderRequest) (*dto.OrderResponse, error)
}

type fulfillmentService struct {
	repo     repository.OrderRepository
	seq      workflow.Sequence
	gate     *authgate.Gate
	locker   *orderlock.Locker
	pusher   Pusher
	notifier notify.Notifier
	now      func() time.Time
}

// NewFulfillmentService wires the workflow engine. locker must be the same
// instance the reconciliation loop uses. pusher and notifier may be nil.
func NewFulfillmentService(
	repo repository.OrderRepository,
	seq workflow.Sequence,
	gate *authgate.Gate,
	locker *orderlock.Locker,
	pusher Pusher,
	notifier notify.Notifier,
) FulfillmentService {
	return &fulfillmentService{
		repo:     repo,
		seq:      seq,
		gate:     gate,
		locker:   locker,
		pusher:   pusher,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *fulfillmentService) List(ctx context.Context, filter dto.OrderFilter) (*dto.OrderListResponse, error) {
	orders, total, err := s.repo.List(ctx, repository.OrderFilter{
		FulfillmentStatus: filter.FulfillmentStatus,
		IncludeCancelled:  filter.IncludeCancelled,
		Page:              filter.Page,
		Limit:             filter.Limit,
	})
	if err != nil {
		return nil, err
	}
	out := &dto.OrderListResponse{
		Data:  make([]dto.OrderResponse, 0, len(orders)),
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}
	for i := range orders {
		out.Data = append(out.Data, *s.toResponse(&orders[i]))
	}
	return out, nil
}

func (s *fulfillmentService) Get(ctx context.Context, id uuid.UUID) (*dto.OrderResponse, error) {
	o, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toResponse(o), nil
}

// ── Advance / Retreat ─────────────────────────────────────────────────────────
// Advance moves one stage forward and never needs authorization. Retreat
// never mutates: it raises a rollback request that waits for the master
// password. Both clamp silently at the ends of the sequence.

func (s *fulfillmentService) Advance(ctx context.Context, id uuid.UUID) (*dto.OrderResponse, error) {
	unlock := s.locker.Lock(id)
	defer unlock()

	o, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.reject(o, workflow.CheckActive(o)); err != nil {
		return nil, err
	}
	current := workflow.Current(o)
	target := s.seq.Next(current)
	if s.seq.Classify(current, target) == workflow.NoOp {
		return s.toResponse(o), nil
	}
	if err := s.reject(o, workflow.CheckGuide(target, o.ShippingDetails)); err != nil {
		return nil, err
	}
	return s.commitStatus(ctx, o, target, nil)
}

func (s *fulfillmentService) Retreat(ctx context.Context, id uuid.UUID) (*dto.TransitionResponse, error) {
	o, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.reject(o, workflow.CheckActive(o)); err != nil {
		return nil, err
	}
	current := workflow.Current(o)
	target := s.seq.Prev(current)
	if s.seq.Classify(current, target) != workflow.Backward {
		return &dto.TransitionResponse{Order: s.toResponse(o)}, nil
	}
	if err := s.reject(o, workflow.CheckGuide(target, o.ShippingDetails)); err != nil {
		return nil, err
	}
	req := s.gate.Open(o.ID, current, target, nil)
	return &dto.TransitionResponse{Rollback: rollbackToResponse(req)}, nil
}

// ── SetStatus ─────────────────────────────────────────────────────────────────
// Direct edit from the detail form. Forward (or same-stage with shipping
// changes) applies immediately; backward is routed through the gate with the
// shipping patch bundled so both commit together.

func (s *fulfillmentService) SetStatus(ctx context.Context, id uuid.UUID, req dto.FulfillmentUpdateRequest) (*dto.TransitionResponse, error) {
	target, err := workflow.ParseStage(req.FulfillmentStatus)
	if err != nil {
		return nil, err
	}
	if !s.seq.Contains(target) {
		return nil, &workflow.ValidationError{
			Field:   "fulfillmentStatus",
			Message: fmt.Sprintf("el estado %q no pertenece al flujo activo", target),
		}
	}
	patch := shippingPatch(req.Shipping)

	unlock := s.locker.Lock(id)
	defer unlock()

	o, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.reject(o, workflow.CheckActive(o)); err != nil {
		return nil, err
	}
	shipping, err := patch.Apply(o.ShippingDetails)
	if err != nil {
		return nil, s.reject(o, err)
	}

	current := workflow.Current(o)
	switch s.seq.Classify(current, target) {
	case workflow.NoOp:
		if patch == nil {
			return &dto.TransitionResponse{Order: s.toResponse(o)}, nil
		}
		resp, err := s.commitShipping(ctx, o, current, shipping)
		if err != nil {
			return nil, err
		}
		return &dto.TransitionResponse{Order: resp}, nil

	case workflow.Backward:
		// A rollback that could never commit gets no prompt.
		if err := s.reject(o, workflow.CheckGuide(target, shipping)); err != nil {
			return nil, err
		}
		rb := s.gate.Open(o.ID, current, target, patch)
		return &dto.TransitionResponse{Rollback: rollbackToResponse(rb)}, nil

	default:
		if err := s.reject(o, workflow.CheckGuide(target, shipping)); err != nil {
			return nil, err
		}
		if patch == nil {
			shipping = nil
		}
		resp, err := s.commitStatus(ctx, o, target, shipping)
		if err != nil {
			return nil, err
		}
		return &dto.TransitionResponse{Order: resp}, nil
	}
}

// ── Rollback authorization ────────────────────────────────────────────────────

// ApproveRollback checks the secret before anything else, so a wrong password
// is always reported as such. Once the secret is accepted the prompt is
// closed whatever happens next; if the order changed underneath and the
// rollback no longer validates, the operator starts over.
func (s *fulfillmentService) ApproveRollback(ctx context.Context, requestID uuid.UUID, password string) (*dto.OrderResponse, error) {
	pending, ok := s.gate.Get(requestID)
	if !ok {
		return nil, authgate.ErrRequestNotFound
	}

	unlock := s.locker.Lock(pending.OrderID)
	defer unlock()

	req, err := s.gate.Approve(requestID, password)
	if err != nil {
		if workflow.IsAuthorization(err) {
			s.notify(notify.LevelError, err.Error(), pending.OrderID)
		}
		return nil, err
	}

	o, err := s.repo.FindByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if err := s.reject(o, workflow.CheckActive(o)); err != nil {
		return nil, err
	}
	shipping, err := req.Shipping.Apply(o.ShippingDetails)
	if err != nil {
		return nil, s.reject(o, err)
	}
	if err := s.reject(o, workflow.CheckGuide(req.Target, shipping)); err != nil {
		return nil, err
	}

	if req.Shipping == nil {
		shipping = nil
	}
	if workflow.Current(o) == req.Target && shipping == nil {
		return s.toResponse(o), nil
	}
	return s.commitStatus(ctx, o, req.Target, shipping)
}

func (s *fulfillmentService) CancelRollback(_ context.Context, requestID uuid.UUID) error {
	return s.gate.Cancel(requestID)
}

// ── Shipping / payment / cancellation ─────────────────────────────────────────

func (s *fulfillmentService) UpdateShipping(ctx context.Context, id uuid.UUID, req dto.ShippingRequest) (*dto.OrderResponse, error) {
	unlock := s.locker.Lock(id)
	defer unlock()

	o, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.reject(o, workflow.CheckActive(o)); err != nil {
		return nil, err
	}
	shipping, err := shippingPatch(&req).Apply(o.ShippingDetails)
	if err != nil {
		return nil, s.reject(o, err)
	}
	return s.commitShipping(ctx, o, workflow.Current(o), shipping)
}

func (s *fulfillmentService) RegisterPayment(ctx context.Context, id uuid.UUID, req dto.PaymentRequest) (*dto.OrderResponse, error) {
	unlock := s.locker.Lock(id)
	defer unlock()

	o, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.reject(o, workflow.CheckActive(o)); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, s.reject(o, &workflow.ValidationError{Field: "amount", Message: "el monto debe ser mayor a cero", Err: ErrInvalidPayment})
	}
	if req.Amount.GreaterThan(o.Balance) {
		return nil, s.reject(o, &workflow.ValidationError{
			Field:   "amount",
			Message: fmt.Sprintf("el monto excede el saldo pendiente (%s)", o.Balance.StringFixed(2)),
			Err:     ErrInvalidPayment,
		})
	}

	o.AmountPaid = o.AmountPaid.Add(req.Amount)
	o.Balance = o.Total.Sub(o.AmountPaid)
	if o.Balance.LessThanOrEqual(decimal.Zero) {
		o.Balance = decimal.Zero
		if o.DocumentType == model.DocumentQuote {
			o.DocumentType = model.DocumentTicket
		}
	}
	workflow.Touch(o, s.now())
	if err := s.repo.Upsert(ctx, o); err != nil {
		return nil, err
	}

	log.Info().
		Str("order_id", o.ID.String()).
		Str("amount", req.Amount.StringFixed(2)).
		Str("method", req.Method).
		Str("balance", o.Balance.StringFixed(2)).
		Msg("fulfillment: payment registered")
	s.notify(notify.LevelSuccess, "Pago registrado", o.ID)
	s.push(ctx, o.ID)
	return s.toResponse(o), nil
}

func (s *fulfillmentService) Cancel(ctx context.Context, id uuid.UUID, req dto.CancelOrderRequest) (*dto.OrderResponse, error) {
	unlock := s.locker.Lock(id)
	defer unlock()

	o, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.IsCancelled() {
		return s.toResponse(o), nil
	}
	o.Status = model.OrderStatusCancelled
	o.CancellationReason = req.Reason
	workflow.Touch(o, s.now())
	if err := s.repo.Upsert(ctx, o); err != nil {
		return nil, err
	}
	log.Info().Str("order_id", o.ID.String()).Str("reason", req.Reason).Msg("fulfillment: order cancelled")
	s.notify(notify.LevelSuccess, fmt.Sprintf("Pedido %s cancelado", o.Folio), o.ID)
	s.push(ctx, o.ID)
	return s.toResponse(o), nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

// commitStatus writes the transition through the store and schedules the push.
// Callers hold the order lock.
func (s *fulfillmentService) commitStatus(ctx context.Context, o *model.Order, target workflow.Stage, shipping *model.ShippingDetails) (*dto.OrderResponse, error) {
	from := workflow.Current(o)
	updated, err := s.repo.UpdateStatus(ctx, o.ID, string(target), shipping, s.now())
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("order_id", o.ID.String()).
		Str("from", string(from)).
		Str("to", string(target)).
		Msg("fulfillment: status changed")
	s.notify(notify.LevelSuccess, fmt.Sprintf("Pedido %s: %s", updated.Folio, target), updated.ID)
	s.push(ctx, updated.ID)
	return s.toResponse(updated), nil
}

// commitShipping saves shipping details without a stage change. The order's
// current stage must still satisfy the guide precondition afterwards.
func (s *fulfillmentService) commitShipping(ctx context.Context, o *model.Order, current workflow.Stage, shipping *model.ShippingDetails) (*dto.OrderResponse, error) {
	if err := s.reject(o, workflow.CheckGuide(current, shipping)); err != nil {
		return nil, err
	}
	o.ShippingDetails = shipping
	workflow.Touch(o, s.now())
	if err := s.repo.Upsert(ctx, o); err != nil {
		return nil, err
	}
	s.notify(notify.LevelSuccess, "Datos de envío guardados", o.ID)
	s.push(ctx, o.ID)
	return s.toResponse(o), nil
}

// reject reports a validation failure to the operator and passes err through.
func (s *fulfillmentService) reject(o *model.Order, err error) error {
	if err != nil && workflow.IsValidation(err) {
		s.notify(notify.LevelWarning, err.Error(), o.ID)
	}
	return err
}

// push never fails the caller: the local commit already happened and the
// next sync cycle retries implicitly.
func (s *fulfillmentService) push(ctx context.Context, id uuid.UUID) {
	if s.pusher == nil {
		return
	}
	if err := s.pusher.EnqueuePush(ctx, id); err != nil {
		log.Warn().Err(err).Str("order_id", id.String()).Msg("fulfillment: could not enqueue push")
	}
}

func (s *fulfillmentService) notify(level notify.Level, msg string, id uuid.UUID) {
	if s.notifier != nil {
		s.notifier.Notify(level, msg, id.String())
	}
}

func shippingPatch(req *dto.ShippingRequest) *workflow.ShippingPatch {
	if req == nil {
		return nil
	}
	return &workflow.ShippingPatch{
		Carrier:          req.Carrier,
		TrackingNumber:   req.TrackingNumber,
		Notes:            req.Notes,
		GuideFile:        req.GuideFile,
		GuideFileType:    req.GuideFileType,
		GuideFileName:    req.GuideFileName,
		ClearGuide:       req.ClearGuide,
		ProductionImages: req.ProductionImages,
		IsLocalDelivery:  req.IsLocalDelivery,
	}
}

func (s *fulfillmentService) toResponse(o *model.Order) *dto.OrderResponse {
	current := workflow.Current(o)
	resp := &dto.OrderResponse{
		ID:                 o.ID.String(),
		Folio:              o.Folio,
		CustomerName:       o.CustomerName,
		Date:               o.Date,
		Items:              make([]dto.OrderItemResponse, 0, len(o.Items)),
		Subtotal:           o.Subtotal,
		Tax:                o.Tax,
		Discount:           o.Discount,
		Total:              o.Total,
		AmountPaid:         o.AmountPaid,
		Balance:            o.Balance,
		DocumentType:       o.DocumentType,
		Status:             o.Status,
		CancellationReason: o.CancellationReason,
		FulfillmentStatus:  string(current),
		NextStage:          string(s.seq.Next(current)),
		PrevStage:          string(s.seq.Prev(current)),
		History:            make([]dto.HistoryEntryResponse, 0, len(o.FulfillmentHistory)),
		UpdatedAt:          o.UpdatedAt,
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, dto.OrderItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     it.Price,
			Cost:      it.Cost,
		})
	}
	for _, h := range o.FulfillmentHistory {
		resp.History = append(resp.History, dto.HistoryEntryResponse{Status: h.Status, Timestamp: h.Timestamp})
	}
	if sd := o.ShippingDetails; sd != nil {
		resp.Shipping = &dto.ShippingResponse{
			Carrier:          sd.Carrier,
			TrackingNumber:   sd.TrackingNumber,
			Notes:            sd.Notes,
			HasGuide:         sd.HasGuide(),
			GuideFileType:    sd.GuideFileType,
			GuideFileName:    sd.GuideFileName,
			ProductionImages: sd.ProductionImages,
			IsLocalDelivery:  sd.IsLocalDelivery,
		}
	}
	return resp
}

func rollbackToResponse(r *authgate.RollbackRequest) *dto.RollbackResponse {
	return &dto.RollbackResponse{
		ID:        r.ID.String(),
		OrderID:   r.OrderID.String(),
		From:      string(r.From),
		Target:    string(r.Target),
		CreatedAt: r.CreatedAt,
	}
}
