// Package testutil provides in-memory collaborators for unit tests.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"giftpos/internal/model"
	"giftpos/internal/notify"
	"giftpos/internal/repository"
	"giftpos/internal/workflow"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryOrderRepo implements repository.OrderRepository over a map. Stored
// orders are cloned on the way in and out.
type MemoryOrderRepo struct {
	mu      sync.Mutex
	orders  map[uuid.UUID]*model.Order
	Upserts int
}

var _ repository.OrderRepository = (*MemoryOrderRepo)(nil)

func NewMemoryOrderRepo(orders ...*model.Order) *MemoryOrderRepo {
	r := &MemoryOrderRepo{orders: make(map[uuid.UUID]*model.Order)}
	for _, o := range orders {
		r.orders[o.ID] = o.Clone()
	}
	return r
}

// Get returns a copy of the stored order or nil.
func (r *MemoryOrderRepo) Get(id uuid.UUID) *model.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[id].Clone()
}

func (r *MemoryOrderRepo) List(_ context.Context, f repository.OrderFilter) ([]model.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Order
	for _, o := range r.orders {
		if f.FulfillmentStatus != "" {
			st := o.FulfillmentStatus
			if st == "" {
				st = "pending"
			}
			if st != f.FulfillmentStatus {
				continue
			}
		}
		if !f.IncludeCancelled && o.IsCancelled() {
			continue
		}
		out = append(out, *o.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	total := int64(len(out))

	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	start := (page - 1) * limit
	if start >= len(out) {
		return []model.Order{}, total, nil
	}
	end := start + limit
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func (r *MemoryOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *MemoryOrderRepo) Upsert(_ context.Context, o *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = o.Clone()
	r.Upserts++
	return nil
}

func (r *MemoryOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string, shipping *model.ShippingDetails, at time.Time) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if shipping != nil {
		o.ShippingDetails = shipping
	}
	workflow.Transition(o, workflow.Stage(status), at)
	r.Upserts++
	return o.Clone(), nil
}

func (r *MemoryOrderRepo) ListUpdatedSince(_ context.Context, since time.Time, limit int) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Order
	for _, o := range r.orders {
		if o.UpdatedAt != nil && o.UpdatedAt.After(since) {
			out = append(out, *o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(*out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryOrderRepo) NextFolio(_ context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return repository.FormatFolio(int64(len(r.orders)) + 1), nil
}

// FakeRemote is an in-memory cloud store.
type FakeRemote struct {
	mu       sync.Mutex
	orders   map[uuid.UUID]*model.Order
	disabled bool

	FetchErr  error
	UpsertErr error
	// Block, when set, makes FetchUpdatedSince wait for it to be closed.
	Block chan struct{}

	FetchCalls int
	Pushed     []uuid.UUID
}

func NewFakeRemote(orders ...*model.Order) *FakeRemote {
	f := &FakeRemote{orders: make(map[uuid.UUID]*model.Order)}
	for _, o := range orders {
		f.orders[o.ID] = o.Clone()
	}
	return f
}

// Disable makes the remote report itself as unconfigured.
func (f *FakeRemote) Disable() { f.mu.Lock(); f.disabled = true; f.mu.Unlock() }

func (f *FakeRemote) Put(o *model.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[o.ID] = o.Clone()
}

func (f *FakeRemote) Get(id uuid.UUID) *model.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[id].Clone()
}

func (f *FakeRemote) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.FetchCalls
}

func (f *FakeRemote) Configured() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.disabled
}

func (f *FakeRemote) FetchUpdatedSince(ctx context.Context, since time.Time, limit int) ([]model.Order, error) {
	f.mu.Lock()
	f.FetchCalls++
	block := f.Block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	var out []model.Order
	for _, o := range f.orders {
		if o.UpdatedAt != nil && o.UpdatedAt.After(since) {
			out = append(out, *o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *FakeRemote) Upsert(_ context.Context, o *model.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UpsertErr != nil {
		return f.UpsertErr
	}
	f.orders[o.ID] = o.Clone()
	f.Pushed = append(f.Pushed, o.ID)
	return nil
}

// FailUpserts makes every later Upsert return err.
func (f *FakeRemote) FailUpserts(err error) {
	f.mu.Lock()
	f.UpsertErr = err
	f.mu.Unlock()
}

// PushedIDs returns a copy of the ids upserted so far.
func (f *FakeRemote) PushedIDs() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.Pushed...)
}

// RecordingNotifier captures notifications.
type RecordingNotifier struct {
	mu   sync.Mutex
	list []notify.Notification
}

func (n *RecordingNotifier) Notify(level notify.Level, message, orderID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.list = append(n.list, notify.Notification{Level: level, Message: message, OrderID: orderID})
}

func (n *RecordingNotifier) All() []notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Notification(nil), n.list...)
}

// Last returns the most recent notification; ok is false when none.
func (n *RecordingNotifier) Last() (notify.Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.list) == 0 {
		return notify.Notification{}, false
	}
	return n.list[len(n.list)-1], true
}

// Count returns how many notifications of level were recorded.
func (n *RecordingNotifier) Count(level notify.Level) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, x := range n.list {
		if x.Level == level {
			c++
		}
	}
	return c
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(t time.Time) *Clock { return &Clock{now: t} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Recorder captures pushed order ids; it satisfies service.Pusher.
type Recorder struct {
	mu  sync.Mutex
	ids []uuid.UUID
	Err error
}

func (p *Recorder) EnqueuePush(_ context.Context, id uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, id)
	return p.Err
}

func (p *Recorder) IDs() []uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]uuid.UUID(nil), p.ids...)
}

// NewOrder builds an active ticket order with the given status and stamp.
// A nil updatedAt leaves the order unstamped.
func NewOrder(status string, updatedAt *time.Time) *model.Order {
	id := uuid.New()
	total := decimal.NewFromInt(100)
	o := &model.Order{
		ID:                id,
		Folio:             fmt.Sprintf("F-%s", id.String()[:6]),
		CustomerName:      "Cliente Prueba",
		Date:              time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		Items:             []model.OrderItem{{ProductID: "P-1", Name: "Taza personalizada", Quantity: 1, Price: total, Cost: decimal.NewFromInt(40)}},
		Subtotal:          total,
		Tax:               decimal.Zero,
		Discount:          decimal.Zero,
		Total:             total,
		AmountPaid:        decimal.Zero,
		Balance:           total,
		DocumentType:      model.DocumentTicket,
		Status:            model.OrderStatusActive,
		FulfillmentStatus: status,
	}
	if updatedAt != nil {
		t := *updatedAt
		o.UpdatedAt = &t
	}
	return o
}

// TimePtr parses an RFC3339 timestamp and returns a pointer to it.
func TimePtr(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}
