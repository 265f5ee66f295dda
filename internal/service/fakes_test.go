package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"backoffice-api/internal/models"
	"backoffice-api/internal/store"

	"github.com/shopspring/decimal"
)

// memStore is an in-memory ledger and inventory. Transactions run one at a
// time and their writes are discarded unless fn succeeds.
type memStore struct {
	mu          sync.Mutex
	products    map[int64]*models.Product
	customers   map[int64]string
	orders      []*models.Order
	nextOrderID int64
	nextItemID  int64

	failItemInsert bool
}

func newMemStore() *memStore {
	return &memStore{
		products:  map[int64]*models.Product{},
		customers: map[int64]string{1: "Ada Lovelace"},
	}
}

func (m *memStore) addProduct(id int64, name, price string, stock, reorder int) {
	m.products[id] = &models.Product{
		ID:            id,
		Name:          name,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		ReorderLevel:  reorder,
	}
}

func (m *memStore) stock(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].StockQuantity
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memStore) WithinTx(ctx context.Context, fn func(store.InventoryTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := make(map[int64]*models.Product, len(m.products))
	for id, p := range m.products {
		cp := *p
		staged[id] = &cp
	}
	tx := &memTx{store: m, products: staged, nextOrderID: m.nextOrderID, nextItemID: m.nextItemID}

	if err := fn(tx); err != nil {
		return err
	}

	m.products = tx.products
	m.orders = append(m.orders, tx.orders...)
	m.nextOrderID = tx.nextOrderID
	m.nextItemID = tx.nextItemID
	return nil
}

func (m *memStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ID == id {
			return m.copyOrder(o), nil
		}
	}
	return nil, models.ErrOrderNotFound
}

func (m *memStore) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			return m.copyOrder(o), nil
		}
	}
	return nil, nil
}

func (m *memStore) GetOrders(ctx context.Context) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	orders := []models.Order{}
	for _, o := range m.orders {
		orders = append(orders, *m.copyOrder(o))
	}
	return orders, nil
}

func (m *memStore) GetOrdersByCustomerID(ctx context.Context, customerID int64) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	orders := []models.Order{}
	for _, o := range m.orders {
		if o.CustomerID == customerID {
			orders = append(orders, *m.copyOrder(o))
		}
	}
	return orders, nil
}

func (m *memStore) UpdateOrderStatus(ctx context.Context, orderID int64, from, to models.OrderStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ID == orderID && o.Status == from {
			o.Status = to
			return true, nil
		}
	}
	return false, nil
}

// putOrder stores an order directly, bypassing the workflow
func (m *memStore) putOrder(o *models.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append(m.orders, o)
}

func (m *memStore) copyOrder(o *models.Order) *models.Order {
	cp := *o
	cp.CustomerName = m.customers[o.CustomerID]
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	return &cp
}

type memTx struct {
	store       *memStore
	products    map[int64]*models.Product
	orders      []*models.Order
	nextOrderID int64
	nextItemID  int64
}

func (t *memTx) LockProducts(ctx context.Context, ids []int64) (map[int64]*models.Product, error) {
	locked := make(map[int64]*models.Product, len(ids))
	for _, id := range ids {
		if p, ok := t.products[id]; ok {
			cp := *p
			locked[id] = &cp
		}
	}
	return locked, nil
}

func (t *memTx) DecrementStock(ctx context.Context, productID int64, quantity int) (int, error) {
	p, ok := t.products[productID]
	if !ok || p.StockQuantity < quantity {
		return 0, models.ErrInsufficientStock
	}
	p.StockQuantity -= quantity
	return p.StockQuantity, nil
}

func (t *memTx) InsertOrder(ctx context.Context, order *models.Order) error {
	if _, ok := t.store.customers[order.CustomerID]; !ok {
		return models.ErrCustomerNotFound
	}
	if order.IdempotencyKey != nil {
		for _, o := range t.store.orders {
			if o.IdempotencyKey != nil && *o.IdempotencyKey == *order.IdempotencyKey {
				return store.ErrDuplicateIdempotencyKey
			}
		}
	}
	t.nextOrderID++
	order.ID = t.nextOrderID
	cp := *order
	t.orders = append(t.orders, &cp)
	return nil
}

func (t *memTx) InsertOrderItem(ctx context.Context, item *models.OrderItem) error {
	if t.store.failItemInsert {
		return errors.New("connection reset")
	}
	t.nextItemID++
	item.ID = t.nextItemID
	for _, o := range t.orders {
		if o.ID == item.OrderID {
			o.Items = append(o.Items, *item)
		}
	}
	return nil
}

type fakeCache struct {
	mu          sync.Mutex
	products    map[int64]*models.Product
	list        []models.Product
	invalidated []int64
	getErr      error
}

func newFakeCache() *fakeCache {
	return &fakeCache{products: map[int64]*models.Product{}}
}

func (c *fakeCache) GetProduct(ctx context.Context, id int64) (*models.Product, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	p, ok := c.products[id]
	return p, ok, nil
}

func (c *fakeCache) SetProduct(ctx context.Context, product *models.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[product.ID] = product
	return nil
}

func (c *fakeCache) GetProductList(ctx context.Context) ([]models.Product, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	return c.list, c.list != nil, nil
}

func (c *fakeCache) SetProductList(ctx context.Context, products []models.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = products
	return nil
}

func (c *fakeCache) InvalidateProducts(ctx context.Context, ids ...int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = nil
	for _, id := range ids {
		delete(c.products, id)
		c.invalidated = append(c.invalidated, id)
	}
	return nil
}

type fakeLocker struct {
	mu    sync.Mutex
	locks map[string]string
	seq   int
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{locks: map[string]string{}}
}

func (l *fakeLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.locks[key]; held {
		return "", nil
	}
	l.seq++
	token := fmt.Sprintf("token-%d", l.seq)
	l.locks[key] = token
	return token, nil
}

func (l *fakeLocker) ReleaseLock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks[key] == token {
		delete(l.locks, key)
	}
	return nil
}

type fakePublisher struct {
	mu            sync.Mutex
	created       []*models.OrderCreatedEvent
	statusChanged []*models.OrderStatusChangedEvent
	stockLow      []*models.StockLowEvent
	err           error
}

func (p *fakePublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, event)
	return p.err
}

func (p *fakePublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statusChanged = append(p.statusChanged, event)
	return p.err
}

func (p *fakePublisher) PublishStockLow(ctx context.Context, event *models.StockLowEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stockLow = append(p.stockLow, event)
	return p.err
}

// memReportStore filters a fixed set of orders the way the SQL query does
type memReportStore struct {
	orders   []models.Order
	products []models.Product

	gotLimit int
}

func (r *memReportStore) GetRecentOrders(ctx context.Context, limit int) ([]models.Order, error) {
	r.gotLimit = limit
	orders := append([]models.Order(nil), r.orders...)
	sort.SliceStable(orders, func(i, j int) bool {
		if !orders[i].OrderDate.Equal(orders[j].OrderDate) {
			return orders[i].OrderDate.After(orders[j].OrderDate)
		}
		return orders[i].ID < orders[j].ID
	})
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (r *memReportStore) SumSales(ctx context.Context, from, to time.Time, excludedStatuses []string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, o := range r.orders {
		if o.OrderDate.Before(from) || !o.OrderDate.Before(to) {
			continue
		}
		excluded := false
		for _, s := range excludedStatuses {
			if string(o.Status) == s {
				excluded = true
			}
		}
		if !excluded {
			total = total.Add(o.TotalAmount)
		}
	}
	return total, nil
}

func (r *memReportStore) GetLowStockProducts(ctx context.Context) ([]models.Product, error) {
	low := []models.Product{}
	for _, p := range r.products {
		if p.IsLowStock() {
			low = append(low, p)
		}
	}
	return low, nil
}

type memUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: map[string]*models.User{}}
}

func (u *memUserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.users[email]
	if !ok {
		return nil, nil
	}
	cp := *user
	cp.Roles = append([]string(nil), user.Roles...)
	return &cp, nil
}

func (u *memUserStore) CreateUser(ctx context.Context, user *models.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.users[user.Email]; ok {
		return models.ErrDuplicateIdentity
	}
	cp := *user
	u.users[user.Email] = &cp
	return nil
}

func (u *memUserStore) AddUserRole(ctx context.Context, userID, role string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, user := range u.users {
		if user.ID == userID {
			for _, r := range user.Roles {
				if r == role {
					return nil
				}
			}
			user.Roles = append(user.Roles, role)
		}
	}
	return nil
}

type memAlertStore struct {
	alerts   []models.RestockAlert
	gotLimit int
}

func (a *memAlertStore) RecordRestockAlert(ctx context.Context, alert *models.RestockAlert) (bool, error) {
	for _, existing := range a.alerts {
		if existing.EventID == alert.EventID {
			return false, nil
		}
	}
	alert.ID = int64(len(a.alerts) + 1)
	a.alerts = append(a.alerts, *alert)
	return true, nil
}

func (a *memAlertStore) GetRestockAlerts(ctx context.Context, limit int) ([]models.RestockAlert, error) {
	a.gotLimit = limit
	return a.alerts, nil
}
