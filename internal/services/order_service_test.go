package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/onegreenvn/crm-campaign-backend/internal/apperror"
	"github.com/onegreenvn/crm-campaign-backend/internal/models"
)

type fakeOrderStore struct {
	orders     map[string]*models.Order
	batchSizes []int
	failBatch  int
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: map[string]*models.Order{}, failBatch: -1}
}

func (s *fakeOrderStore) Create(_ context.Context, o *models.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = models.OrderStatusCompleted
	}
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *fakeOrderStore) CreateBatch(ctx context.Context, orders []*models.Order) error {
	s.batchSizes = append(s.batchSizes, len(orders))
	if len(s.batchSizes)-1 == s.failBatch {
		return errors.New("deadlock detected")
	}
	for _, o := range orders {
		s.Create(ctx, o)
	}
	return nil
}

func (s *fakeOrderStore) GetByID(_ context.Context, id string) (*models.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *fakeOrderStore) Update(_ context.Context, o *models.Order) error {
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *fakeOrderStore) Delete(_ context.Context, id string) error {
	if _, ok := s.orders[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(s.orders, id)
	return nil
}

func (s *fakeOrderStore) List(_ context.Context, filter models.OrderFilter) ([]models.Order, int64, error) {
	var out []models.Order
	for _, o := range s.orders {
		if filter.CustomerID != "" && o.CustomerID != filter.CustomerID {
			continue
		}
		out = append(out, *o)
	}
	return out, int64(len(out)), nil
}

func (s *fakeOrderStore) Stats(context.Context, string, *time.Time, *time.Time) (*models.OrderStats, error) {
	return &models.OrderStats{}, nil
}

type orderFixture struct {
	svc       *OrderService
	orders    *fakeOrderStore
	customers *fakeCustomerStore
	customer  string
}

func newOrderFixture(t *testing.T) *orderFixture {
	customers := newFakeCustomerStore()
	c := &models.Customer{Name: "Nguyen Van A", Email: "a@example.com"}
	require.NoError(t, customers.Create(context.Background(), c))

	orders := newFakeOrderStore()
	svc := NewOrderService(orders, customers)
	svc.now = fixedNow
	return &orderFixture{svc: svc, orders: orders, customers: customers, customer: c.ID}
}

func TestCreateOrder(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, models.CreateOrderRequest{
		CustomerID: f.customer,
		OrderValue: float(249.9),
		Items:      []models.OrderItem{{ProductName: "Tea", Quantity: 2, Price: 124.95}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
	assert.True(t, order.OrderDate.Equal(testNow))
	assert.JSONEq(t, `[{"productId":"","productName":"Tea","quantity":2,"price":124.95}]`, string(order.Items))

	_, err = f.svc.CreateOrder(ctx, models.CreateOrderRequest{CustomerID: uuid.NewString(), OrderValue: float(10)})
	var nf *apperror.NotFoundError
	assert.ErrorAs(t, err, &nf)

	_, err = f.svc.CreateOrder(ctx, models.CreateOrderRequest{
		CustomerID: "abc",
		Status:     "shipped",
		Items:      []models.OrderItem{{Quantity: 0, Price: -1}},
	})
	require.Error(t, err)
	assert.Len(t, apperror.Violations(err), 6)
}

func TestUpdateAndDeleteOrder(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order, err := f.svc.CreateOrder(ctx, models.CreateOrderRequest{CustomerID: f.customer, OrderValue: float(100)})
	require.NoError(t, err)

	cancelled := models.OrderStatusCancelled
	updated, err := f.svc.UpdateOrder(ctx, order.ID, models.UpdateOrderRequest{Status: &cancelled, OrderValue: float(0)})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, updated.Status)
	assert.Zero(t, updated.OrderValue)

	_, err = f.svc.UpdateOrder(ctx, order.ID, models.UpdateOrderRequest{CustomerID: str(uuid.NewString())})
	var nf *apperror.NotFoundError
	assert.ErrorAs(t, err, &nf)

	require.NoError(t, f.svc.DeleteOrder(ctx, order.ID))
	assert.ErrorAs(t, f.svc.DeleteOrder(ctx, order.ID), &nf)

	var v *apperror.ValidationError
	assert.ErrorAs(t, f.svc.DeleteOrder(ctx, "7"), &v)
}

func TestListOrdersValidatesFilters(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	_, err := f.svc.ListOrders(ctx, models.OrderFilter{CustomerID: "not-a-uuid"})
	assert.Equal(t, 400, apperror.HTTPStatus(err))

	_, err = f.svc.ListOrders(ctx, models.OrderFilter{Status: "refunded"})
	assert.Equal(t, 400, apperror.HTTPStatus(err))

	page, err := f.svc.CustomerOrders(ctx, f.customer, models.OrderFilter{})
	require.NoError(t, err)
	assert.NotNil(t, page.Orders)
	assert.Empty(t, page.Orders)

	_, err = f.svc.CustomerOrders(ctx, uuid.NewString(), models.OrderFilter{})
	assert.Equal(t, 404, apperror.HTTPStatus(err))
}

func TestBulkCreateOrders(t *testing.T) {
	t.Run("missing customers are reported per row", func(t *testing.T) {
		f := newOrderFixture(t)
		missing := uuid.NewString()
		result, err := f.svc.BulkCreateOrders(context.Background(), models.BulkCreateOrdersRequest{Orders: []models.CreateOrderRequest{
			{CustomerID: f.customer, OrderValue: float(10)},
			{CustomerID: missing, OrderValue: float(20)},
			{CustomerID: f.customer, OrderValue: float(30)},
		}})
		require.NoError(t, err)
		assert.Equal(t, 2, result.Inserted)
		assert.Equal(t, 1, result.Failed)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "order 2")
		assert.Len(t, f.orders.orders, 2)
	})

	t.Run("any invalid order rejects the request", func(t *testing.T) {
		f := newOrderFixture(t)
		_, err := f.svc.BulkCreateOrders(context.Background(), models.BulkCreateOrdersRequest{Orders: []models.CreateOrderRequest{
			{CustomerID: f.customer, OrderValue: float(10)},
			{CustomerID: f.customer},
		}})
		require.Error(t, err)
		assert.Equal(t, []string{"order 2: orderValue is required"}, apperror.Violations(err))
		assert.Empty(t, f.orders.batchSizes)
	})

	t.Run("inserts in batches and survives a failed batch", func(t *testing.T) {
		f := newOrderFixture(t)
		f.orders.failBatch = 1
		rows := make([]models.CreateOrderRequest, 2*models.OrderBulkBatchSize+50)
		for i := range rows {
			rows[i] = models.CreateOrderRequest{CustomerID: f.customer, OrderValue: float(float64(i))}
		}

		result, err := f.svc.BulkCreateOrders(context.Background(), models.BulkCreateOrdersRequest{Orders: rows})
		require.NoError(t, err)
		assert.Equal(t, []int{models.OrderBulkBatchSize, models.OrderBulkBatchSize, 50}, f.orders.batchSizes)
		assert.Equal(t, models.OrderBulkBatchSize+50, result.Inserted)
		assert.Equal(t, models.OrderBulkBatchSize, result.Failed)
		assert.Equal(t, []string{fmt.Sprintf("batch starting at %d failed", models.OrderBulkBatchSize)}, result.Errors)
	})

	t.Run("empty", func(t *testing.T) {
		f := newOrderFixture(t)
		_, err := f.svc.BulkCreateOrders(context.Background(), models.BulkCreateOrdersRequest{})
		assert.Equal(t, 400, apperror.HTTPStatus(err))
	})
}
