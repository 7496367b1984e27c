package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/mock"

	"github.com/rl1809/orderbot/internal/core/domain"
)

// Mock ProductRepository
type mockProductRepo struct {
	mu       sync.Mutex
	products map[string]domain.Product
	order    []string
	listErr  error
	lists    atomic.Int32
	gate     chan struct{}
}

func newMockProductRepo(products ...domain.Product) *mockProductRepo {
	m := &mockProductRepo{products: make(map[string]domain.Product)}
	for _, p := range products {
		m.UpsertProduct(context.Background(), p)
	}
	return m
}

func (m *mockProductRepo) GetProductByCode(ctx context.Context, code string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[code]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) ListActiveProducts(ctx context.Context) ([]domain.Product, error) {
	m.lists.Add(1)
	if m.gate != nil {
		<-m.gate
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.Product
	for _, code := range m.order {
		if p := m.products[code]; p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) UpsertProduct(ctx context.Context, p domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[p.Code]; !ok {
		m.order = append(m.order, p.Code)
	}
	m.products[p.Code] = p
	return nil
}

func (m *mockProductRepo) setPrice(code string, price int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.products[code]
	p.Price = price
	m.products[code] = p
}

func (m *mockProductRepo) remove(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.products, code)
}

// Mock OrderRepository
type mockOrderRepo struct {
	mu        sync.Mutex
	nextOrder int64
	nextLine  int64
	orders    map[int64]*domain.Order
	lines     map[int64][]domain.OrderLine
	appendErr error
	creates   atomic.Int32
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{
		orders: make(map[int64]*domain.Order),
		lines:  make(map[int64][]domain.OrderLine),
	}
}

func (m *mockOrderRepo) openOrder(customerID string) *domain.Order {
	for _, o := range m.orders {
		if o.CustomerID == customerID && o.Status == domain.OrderStatusOpen {
			return o
		}
	}
	return nil
}

func (m *mockOrderRepo) GetOrCreateCurrentOrder(ctx context.Context, customerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if o := m.openOrder(customerID); o != nil {
		return o.ID, nil
	}
	m.creates.Add(1)
	m.nextOrder++
	m.orders[m.nextOrder] = &domain.Order{ID: m.nextOrder, CustomerID: customerID, Status: domain.OrderStatusOpen}
	return m.nextOrder, nil
}

func (m *mockOrderRepo) FindOpenOrder(ctx context.Context, customerID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o := m.openOrder(customerID)
	if o == nil {
		return nil, domain.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) AppendLine(ctx context.Context, orderID int64, code string, qty int, price int64) (*domain.OrderLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.appendErr != nil {
		return nil, m.appendErr
	}
	o, ok := m.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if o.Status != domain.OrderStatusOpen {
		return nil, domain.ErrOrderFinalized
	}

	m.nextLine++
	line := domain.OrderLine{
		ID:          m.nextLine,
		OrderID:     orderID,
		ProductCode: code,
		Quantity:    qty,
		UnitPrice:   price,
		LineTotal:   int64(qty) * price,
	}
	m.lines[orderID] = append(m.lines[orderID], line)
	o.Total += line.LineTotal
	return &line, nil
}

func (m *mockOrderRepo) GetOrderWithLines(ctx context.Context, orderID int64) (*domain.Order, []domain.OrderLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return nil, nil, domain.ErrOrderNotFound
	}
	cp := *o
	return &cp, append([]domain.OrderLine(nil), m.lines[orderID]...), nil
}

func (m *mockOrderRepo) FinalizeOrder(ctx context.Context, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.Status != domain.OrderStatusOpen {
		return domain.ErrOrderFinalized
	}
	o.Status = domain.OrderStatusFinalized
	return nil
}

func (m *mockOrderRepo) Ping(ctx context.Context) error { return nil }

func (m *mockOrderRepo) ordersOf(customerID string) []domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Order
	for _, o := range m.orders {
		if o.CustomerID == customerID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Mock CacheRepository
type mockCache struct {
	mu       sync.Mutex
	active   []domain.Product
	hasAct   bool
	invoices map[string][]byte
	readErr  error
}

func newMockCache() *mockCache {
	return &mockCache{invoices: make(map[string][]byte)}
}

func (m *mockCache) GetActiveProducts(ctx context.Context) ([]domain.Product, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, false, m.readErr
	}
	return m.active, m.hasAct, nil
}

func (m *mockCache) SetActiveProducts(ctx context.Context, products []domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active, m.hasAct = products, true
	return nil
}

func (m *mockCache) InvalidateActiveProducts(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active, m.hasAct = nil, false
	return nil
}

func (m *mockCache) GetInvoice(ctx context.Context, orderID int64, fingerprint string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, false, m.readErr
	}
	img, ok := m.invoices[fmt.Sprintf("%d:%s", orderID, fingerprint)]
	return img, ok, nil
}

func (m *mockCache) SetInvoice(ctx context.Context, orderID int64, fingerprint string, image []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoices[fmt.Sprintf("%d:%s", orderID, fingerprint)] = image
	return nil
}

// Mock InvoiceRenderer, records what it was asked to draw
type mockRenderer struct {
	mu    sync.Mutex
	calls int
	lines []domain.InvoiceLine
	total int64
}

func (m *mockRenderer) Render(orderID int64, lines []domain.InvoiceLine, total int64) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lines = lines
	m.total = total
	return []byte(fmt.Sprintf("invoice-%d-%d-%d", orderID, len(lines), total)), nil
}

func (m *mockRenderer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishOrderEvent(ctx context.Context, event domain.OrderEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
