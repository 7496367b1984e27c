package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rl1809/orderbot/internal/core/domain"
	"github.com/rl1809/orderbot/internal/core/invoice"
	"github.com/rl1809/orderbot/internal/port"
)

type InvoiceRenderer interface {
	Render(orderID int64, lines []domain.InvoiceLine, total int64) ([]byte, error)
}

type CartService struct {
	catalog   *CatalogService
	orders    port.OrderRepository
	renderer  InvoiceRenderer
	cache     port.CacheRepository
	publisher port.EventPublisher
	logger    zerolog.Logger
	locks     *keyedMutex
	now       func() time.Time
}

type CartOption func(*CartService)

// WithInvoiceCache keeps rendered previews keyed by order id and line count.
func WithInvoiceCache(cache port.CacheRepository) CartOption {
	return func(s *CartService) { s.cache = cache }
}

// WithEventPublisher emits order events. Publish failures are logged and never fail the request.
func WithEventPublisher(p port.EventPublisher) CartOption {
	return func(s *CartService) { s.publisher = p }
}

func WithCartLogger(logger zerolog.Logger) CartOption {
	return func(s *CartService) { s.logger = logger }
}

func NewCartService(catalog *CatalogService, orders port.OrderRepository, renderer InvoiceRenderer, opts ...CartOption) *CartService {
	s := &CartService{
		catalog:  catalog,
		orders:   orders,
		renderer: renderer,
		logger:   zerolog.Nop(),
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddItem parses "<code> <quantity>" and appends the product at its current
// price to the customer's open order, creating the order when needed.
func (s *CartService) AddItem(ctx context.Context, customerID, raw string) (*domain.Confirmation, error) {
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return nil, domain.ErrInvalidFormat
	}

	qty, err := strconv.Atoi(fields[1])
	if err != nil || qty <= 0 || strings.HasPrefix(fields[1], "+") {
		return nil, domain.ErrInvalidQuantity
	}

	product, err := s.catalog.LookupByCode(ctx, fields[0])
	if isNotFound(err) {
		return nil, domain.ErrInvalidCode
	}
	if err != nil {
		return nil, err
	}
	if !product.Active {
		return nil, domain.ErrInvalidCode
	}
	if product.Price > 0 && int64(qty) > math.MaxInt64/product.Price {
		return nil, domain.ErrInvalidQuantity
	}

	line, err := s.appendLine(ctx, customerID, product, qty)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domain.OrderEvent{
		Type:        domain.EventLineAdded,
		OrderID:     line.OrderID,
		CustomerID:  customerID,
		ProductCode: line.ProductCode,
		Quantity:    line.Quantity,
		UnitPrice:   line.UnitPrice,
		LineTotal:   line.LineTotal,
	})

	s.logger.Info().
		Str("customer_id", customerID).
		Int64("order_id", line.OrderID).
		Str("code", product.Code).
		Int("quantity", qty).
		Int64("line_total", line.LineTotal).
		Msg("item added")

	return &domain.Confirmation{
		OrderID:     line.OrderID,
		ProductName: product.Name,
		Quantity:    line.Quantity,
		LineTotal:   line.LineTotal,
	}, nil
}

func (s *CartService) appendLine(ctx context.Context, customerID string, p *domain.Product, qty int) (*domain.OrderLine, error) {
	unlock := s.locks.Lock(customerID)
	defer unlock()

	orderID, err := s.orders.GetOrCreateCurrentOrder(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("current order: %w", err)
	}

	line, err := s.orders.AppendLine(ctx, orderID, p.Code, qty, p.Price)
	if err != nil {
		return nil, fmt.Errorf("append line to order %d: %w", orderID, err)
	}
	return line, nil
}

// Preview renders the invoice of the customer's open order without changing it.
// Names and units are read from the catalog on every call.
func (s *CartService) Preview(ctx context.Context, customerID string) (*domain.Invoice, error) {
	order, lines, err := s.currentCart(ctx, customerID)
	if err != nil {
		return nil, err
	}

	resolved, err := s.resolveLines(ctx, lines)
	if err != nil {
		return nil, err
	}

	var fp string
	if s.cache != nil {
		fp = invoiceFingerprint(resolved, order.Total)
		img, ok, err := s.cache.GetInvoice(ctx, order.ID, fp)
		if err != nil {
			s.logger.Warn().Err(err).Int64("order_id", order.ID).Msg("invoice cache read failed")
		} else if ok {
			return &domain.Invoice{OrderID: order.ID, Image: img, ContentType: invoice.ContentType}, nil
		}
	}

	inv, err := s.render(order, resolved)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetInvoice(ctx, order.ID, fp, inv.Image); err != nil {
			s.logger.Warn().Err(err).Int64("order_id", order.ID).Msg("invoice cache write failed")
		}
	}
	return inv, nil
}

// Finalize renders the final invoice and closes the open order. The next
// AddItem starts a new cart.
func (s *CartService) Finalize(ctx context.Context, customerID string) (*domain.Invoice, error) {
	unlock := s.locks.Lock(customerID)
	defer unlock()

	order, lines, err := s.currentCart(ctx, customerID)
	if err != nil {
		return nil, err
	}

	resolved, err := s.resolveLines(ctx, lines)
	if err != nil {
		return nil, err
	}

	inv, err := s.render(order, resolved)
	if err != nil {
		return nil, err
	}

	if err := s.orders.FinalizeOrder(ctx, order.ID); err != nil {
		return nil, fmt.Errorf("finalize order %d: %w", order.ID, err)
	}

	s.publish(ctx, domain.OrderEvent{
		Type:       domain.EventFinalized,
		OrderID:    order.ID,
		CustomerID: customerID,
		Total:      order.Total,
	})

	s.logger.Info().
		Str("customer_id", customerID).
		Int64("order_id", order.ID).
		Int64("total", order.Total).
		Int("lines", len(lines)).
		Msg("order finalized")

	return inv, nil
}

func (s *CartService) currentCart(ctx context.Context, customerID string) (*domain.Order, []domain.OrderLine, error) {
	open, err := s.orders.FindOpenOrder(ctx, customerID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return nil, nil, domain.ErrEmptyCart
	}
	if err != nil {
		return nil, nil, fmt.Errorf("find open order: %w", err)
	}

	order, lines, err := s.orders.GetOrderWithLines(ctx, open.ID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return nil, nil, domain.ErrEmptyCart
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load order %d: %w", open.ID, err)
	}
	if len(lines) == 0 {
		return nil, nil, domain.ErrEmptyCart
	}
	return order, lines, nil
}

func (s *CartService) render(order *domain.Order, resolved []domain.InvoiceLine) (*domain.Invoice, error) {
	img, err := s.renderer.Render(order.ID, resolved, order.Total)
	if err != nil {
		return nil, fmt.Errorf("render invoice %d: %w", order.ID, err)
	}
	return &domain.Invoice{OrderID: order.ID, Image: img, ContentType: invoice.ContentType}, nil
}

// resolveLines joins lines with the catalog. A product missing from the
// catalog is shown by its code.
func (s *CartService) resolveLines(ctx context.Context, lines []domain.OrderLine) ([]domain.InvoiceLine, error) {
	products := make(map[string]*domain.Product)
	out := make([]domain.InvoiceLine, 0, len(lines))

	for _, l := range lines {
		p, ok := products[l.ProductCode]
		if !ok {
			var err error
			p, err = s.catalog.LookupByCode(ctx, l.ProductCode)
			if err != nil && !isNotFound(err) {
				return nil, err
			}
			products[l.ProductCode] = p
		}

		il := domain.InvoiceLine{Name: l.ProductCode, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
		if p != nil {
			il.Name = p.Name
			il.Unit = p.Unit
		}
		out = append(out, il)
	}
	return out, nil
}

// invoiceFingerprint hashes everything the renderer draws.
func invoiceFingerprint(lines []domain.InvoiceLine, total int64) string {
	d := xxhash.New()
	for _, l := range lines {
		fmt.Fprintf(d, "%s\x00%s\x00%d\x00%d\n", l.Name, l.Unit, l.Quantity, l.UnitPrice)
	}
	fmt.Fprintf(d, "total=%d", total)
	return strconv.FormatUint(d.Sum64(), 16)
}

func (s *CartService) publish(ctx context.Context, event domain.OrderEvent) {
	if s.publisher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.OccurredAt = s.now().UTC()

	if err := s.publisher.PublishOrderEvent(ctx, event); err != nil {
		s.logger.Error().Err(err).
			Str("event_type", string(event.Type)).
			Int64("order_id", event.OrderID).
			Msg("failed to publish order event")
	}
}
