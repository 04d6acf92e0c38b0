package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"hq-entitlements/internal/cache"
	"hq-entitlements/internal/clock"
	"hq-entitlements/internal/downloadcode"
	"hq-entitlements/internal/model"
	"hq-entitlements/internal/redemption"
	"hq-entitlements/internal/store"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Options tunes an entitlement service. Zero values select the defaults.
type Options struct {
	Clock            clock.Clock
	Codes            *downloadcode.Generator
	MaxCodeAttempts  int
	DownloadBasePath string
}

// entitlementService implements EntitlementService.
type entitlementService struct {
	store    store.Store
	events   store.EventLog
	cache    *cache.Cache
	locks    *redemption.KeyedMutex
	clock    clock.Clock
	codes    *downloadcode.Generator
	validate *validator.Validate
	opts     Options
	logger   zerolog.Logger

	createMu sync.Mutex // code allocation and insert
	saveMu   sync.Mutex // snapshot and SaveAll

	statusMu sync.Mutex
	status   PersistenceStatus
}

// NewEntitlementService creates a service owning its own cache over st.
func NewEntitlementService(
	st store.Store,
	events store.EventLog,
	opts Options,
	logger zerolog.Logger,
) EntitlementService {
	if opts.Clock == nil {
		opts.Clock = clock.NewRealClock()
	}
	if opts.Codes == nil {
		opts.Codes = downloadcode.NewGenerator()
	}
	if opts.MaxCodeAttempts <= 0 {
		opts.MaxCodeAttempts = downloadcode.DefaultMaxAttempts
	}
	if opts.DownloadBasePath == "" {
		opts.DownloadBasePath = "/download/"
	}
	if events == nil {
		events = store.NopEventLog()
	}

	logger = logger.With().Str("service", "entitlement").Logger()

	return &entitlementService{
		store:    st,
		events:   events,
		cache:    cache.New(st, logger),
		locks:    redemption.NewKeyedMutex(),
		clock:    opts.Clock,
		codes:    opts.Codes,
		validate: validator.New(),
		opts:     opts,
		logger:   logger,
		status:   PersistenceStatus{Backend: st.Backend()},
	}
}

// CreateOrder validates a completed purchase and issues its download code.
func (s *entitlementService) CreateOrder(ctx context.Context, req *model.OrderRequest) (*model.Order, error) {
	if err := s.validateOrderRequest(req); err != nil {
		return nil, err
	}

	s.ensureLoaded(ctx)

	s.createMu.Lock()
	now := s.clock.Now()

	code, err := s.codes.GenerateUnique(s.cache.HasCode, s.opts.MaxCodeAttempts)
	if err != nil {
		s.createMu.Unlock()
		if errors.Is(err, downloadcode.ErrExhausted) {
			s.logger.Error().
				Int("attempts", s.opts.MaxCodeAttempts).
				Int("orders", s.cache.Len()).
				Msg("download code space exhausted")
			return nil, model.ErrCodeExhausted
		}
		return nil, fmt.Errorf("failed to generate download code: %w", err)
	}

	orderID := s.newOrderID(now)
	for {
		if _, taken := s.cache.GetByID(orderID); !taken {
			break
		}
		orderID = s.newOrderID(now)
	}

	order := model.Order{
		OrderID:       orderID,
		BuyerEmail:    strings.TrimSpace(req.BuyerEmail),
		PaymentMethod: req.PaymentMethod,
		Items:         make([]model.OrderItem, len(req.Items)),
		Total:         req.Total,
		DownloadCode:  code,
		DownloadLink:  s.downloadLink(code),
		CreatedAt:     now,
	}
	for i, item := range req.Items {
		order.Items[i] = model.OrderItem{
			ImageID:     item.ImageID,
			ActressID:   item.ActressID,
			ActressName: item.ActressName,
			HQURL:       item.HQURL,
			ImageURL:    item.ImageURL,
			Width:       item.Width,
			Height:      item.Height,
			FileSizeMB:  item.FileSizeMB,
		}
	}

	s.cache.Upsert(order)
	s.createMu.Unlock()

	s.logger.Info().
		Str("order_id", order.OrderID).
		Int("items", len(order.Items)).
		Float64("total", order.Total).
		Msg("order created")

	s.persist(ctx, order.OrderID)

	created := order.Clone()
	return &created, nil
}

// GetOrderByID returns the order with the given ID.
func (s *entitlementService) GetOrderByID(ctx context.Context, id string) (*model.Order, error) {
	s.ensureLoaded(ctx)

	order, ok := s.cache.GetByID(strings.TrimSpace(id))
	if !ok {
		return nil, model.ErrOrderNotFound
	}
	return &order, nil
}

// GetOrderByCode returns the order holding code.
func (s *entitlementService) GetOrderByCode(ctx context.Context, code string) (*model.Order, error) {
	s.ensureLoaded(ctx)

	order, ok := s.cache.GetByCode(code)
	if !ok {
		return nil, model.ErrOrderNotFound
	}
	return &order, nil
}

// MarkUsed revokes the code. Revoking an already used code changes nothing.
func (s *entitlementService) MarkUsed(ctx context.Context, code string) (*model.Order, error) {
	s.ensureLoaded(ctx)

	found, ok := s.cache.GetByCode(code)
	if !ok {
		return nil, model.ErrOrderNotFound
	}

	unlock := s.locks.Lock(found.OrderID)
	order, ok := s.cache.GetByID(found.OrderID)
	if !ok {
		unlock()
		return nil, model.ErrOrderNotFound
	}
	changed := redemption.ForceUsed(&order)
	if changed {
		s.cache.Upsert(order)
	}
	unlock()

	if changed {
		s.logger.Info().
			Str("order_id", order.OrderID).
			Int("downloads", len(order.Downloads)).
			Msg("order marked used")
		s.persist(ctx, order.OrderID)
	}

	return &order, nil
}

// RecordDownload applies one redemption to the order.
func (s *entitlementService) RecordDownload(ctx context.Context, orderID, itemID string) (bool, error) {
	s.ensureLoaded(ctx)

	_, out, err := s.apply(ctx, strings.TrimSpace(orderID), itemID, false)
	if err != nil {
		return false, err
	}
	if !out.Recorded {
		return out.Used, nil
	}
	return out.BecameUsed, nil
}

// Redeem resolves code and records itemID for the buyer. A code that was
// already used before the call is refused with model.ErrCodeUsed; the check
// and the write happen under the same order lock.
func (s *entitlementService) Redeem(ctx context.Context, code, itemID string) (*model.RedeemResponse, error) {
	s.ensureLoaded(ctx)

	found, ok := s.cache.GetByCode(code)
	if !ok {
		return nil, model.ErrOrderNotFound
	}

	order, out, err := s.apply(ctx, found.OrderID, itemID, true)
	if err != nil {
		return nil, err
	}

	item := order.Item(itemID)
	return &model.RedeemResponse{
		OrderID: order.OrderID,
		ImageID: item.ImageID,
		HQURL:   item.HQURL,
		Used:    out.Used,
		NowUsed: out.BecameUsed,
	}, nil
}

// apply runs one redemption under the order lock and persists it. With
// gated set, the item must be listed on the order and the order must not
// be used yet.
func (s *entitlementService) apply(ctx context.Context, orderID, itemID string, gated bool) (model.Order, redemption.Outcome, error) {
	unlock := s.locks.Lock(orderID)
	order, ok := s.cache.GetByID(orderID)
	if !ok {
		unlock()
		return model.Order{}, redemption.Outcome{}, model.ErrOrderNotFound
	}
	if (gated || len(order.Items) > 0) && !order.HasItem(itemID) {
		unlock()
		return model.Order{}, redemption.Outcome{}, model.ErrItemNotInOrder
	}
	if gated && order.Used {
		unlock()
		return model.Order{}, redemption.Outcome{}, model.ErrCodeUsed
	}

	now := s.clock.Now()
	out := redemption.Apply(&order, itemID, now)
	if out.Recorded {
		s.cache.Upsert(order)
	}
	unlock()

	if out.IntegrityViolation {
		s.logger.Error().
			Str("event", "entitlement_integrity").
			Str("order_id", orderID).
			Str("item_id", itemID).
			Msg("order has no items and can never expire")
	}

	if out.Recorded {
		s.logger.Info().
			Str("order_id", orderID).
			Str("item_id", itemID).
			Str("state", redemption.StateOf(&order).String()).
			Bool("now_used", out.BecameUsed).
			Msg("download recorded")
		s.persist(ctx, orderID)
	} else {
		s.logger.Debug().
			Str("order_id", orderID).
			Str("item_id", itemID).
			Msg("download replayed")
	}

	rec := store.DownloadRecord{
		OrderID:      orderID,
		ImageID:      itemID,
		DownloadedAt: now,
		Replay:       !out.Recorded,
		NowUsed:      out.BecameUsed,
	}
	if err := s.events.Append(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Warn().Err(err).Str("order_id", orderID).Msg("failed to append download record")
	}

	return order, out, nil
}

// ListOrders returns every known order, newest first.
func (s *entitlementService) ListOrders(ctx context.Context) ([]model.Order, error) {
	s.ensureLoaded(ctx)

	orders := s.cache.All()
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].OrderID > orders[j].OrderID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

// PersistenceStatus reports the state of durable writes.
func (s *entitlementService) PersistenceStatus() PersistenceStatus {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	status := s.status
	if status.LastFailureAt != nil {
		at := *status.LastFailureAt
		status.LastFailureAt = &at
	}
	return status
}

// ensureLoaded hydrates the cache on first use. A failed load still makes
// the cache authoritative so reads keep working from memory.
func (s *entitlementService) ensureLoaded(ctx context.Context) {
	if s.cache.Hydrated() {
		return
	}
	if err := s.cache.EnsureLoaded(ctx); err != nil {
		s.degraded(err, store.OpLoad, "")
		s.cache.MarkHydrated()
	}
}

// persist writes a snapshot of the cache to the durable store. Failures
// are recorded and logged, never returned. Until the durable document has
// been read once, saving is skipped so its history is not overwritten.
func (s *entitlementService) persist(ctx context.Context, orderID string) {
	ctx = context.WithoutCancel(ctx)

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if !s.cache.DurablyLoaded() {
		if err := s.cache.EnsureLoaded(ctx); err != nil {
			s.degraded(err, store.OpLoad, orderID)
			return
		}
	}

	if err := s.store.SaveAll(ctx, s.cache.All()); err != nil {
		s.degraded(err, store.OpSave, orderID)
		return
	}

	s.statusMu.Lock()
	recovered := s.status.Degraded
	s.status.Degraded = false
	s.statusMu.Unlock()

	if recovered {
		s.logger.Info().
			Str("backend", s.store.Backend()).
			Msg("durable store writable again, document rewritten")
	}
}

func (s *entitlementService) degraded(err error, op store.Op, orderID string) {
	now := s.clock.Now()

	s.statusMu.Lock()
	s.status.Degraded = true
	s.status.Failures++
	s.status.LastError = err.Error()
	s.status.LastFailureAt = &now
	s.statusMu.Unlock()

	s.logger.Error().
		Err(err).
		Str("event", "persistence_degraded").
		Str("op", string(op)).
		Str("backend", s.store.Backend()).
		Str("order_id", orderID).
		Msg("durable store unavailable, continuing from memory")
	s.logger.Debug().Msgf("%+v", err)
}

func (s *entitlementService) newOrderID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), suffix)
}

func (s *entitlementService) downloadLink(code string) string {
	return strings.TrimSuffix(s.opts.DownloadBasePath, "/") + "/" + code
}

// validateOrderRequest rejects a purchase before anything is written.
func (s *entitlementService) validateOrderRequest(req *model.OrderRequest) error {
	if req == nil || len(req.Items) == 0 {
		return model.ErrEmptyItems
	}

	if err := s.validate.Var(strings.TrimSpace(req.BuyerEmail), "required,email"); err != nil {
		return model.ErrInvalidEmail
	}

	seen := make(map[string]struct{}, len(req.Items))
	for _, item := range req.Items {
		if strings.TrimSpace(item.ImageID) == "" || strings.TrimSpace(item.HQURL) == "" {
			return model.ErrInvalidItem
		}
		if _, dup := seen[item.ImageID]; dup {
			return model.ErrInvalidItem
		}
		seen[item.ImageID] = struct{}{}
	}

	if req.Total < 0 || math.IsNaN(req.Total) || math.IsInf(req.Total, 0) {
		return model.ErrInvalidTotal
	}

	return nil
}
