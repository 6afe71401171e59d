package service

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/d60-Lab/quantum-checkout/internal/model"
	"github.com/d60-Lab/quantum-checkout/internal/repository"
)

func newCheckoutForTest(r testRepos, gw *fakeGateway) *CheckoutService {
	// a typed nil would make the interface non-nil, so branch explicitly
	if gw == nil {
		return NewCheckoutService(r.orders, r.products, r.payments, nil, NewAdminNotifier(""), "")
	}
	return NewCheckoutService(r.orders, r.products, r.payments, gw, NewAdminNotifier(""), "https://shop.example.com")
}

func TestCreateOrderValidation(t *testing.T) {
	db := setupTestDB(t)
	svc := newCheckoutForTest(newTestRepos(db), nil)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CheckoutInput)
	}{
		{"missing name", func(in *CheckoutInput) { in.CustomerName = "" }},
		{"missing email", func(in *CheckoutInput) { in.CustomerEmail = "" }},
		{"missing phone", func(in *CheckoutInput) { in.CustomerPhone = "" }},
		{"no items", func(in *CheckoutInput) { in.Items = nil }},
		{"total mismatch", func(in *CheckoutInput) { in.Total = 99999 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := testCheckoutInput()
			tc.mutate(&in)
			_, err := svc.CreateOrder(ctx, in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	// nothing written for rejected requests
	var count int64
	db.Model(&model.Order{}).Count(&count)
	assert.Zero(t, count)
}

func TestCreateOrderHappyPath(t *testing.T) {
	db := setupTestDB(t)
	repos := newTestRepos(db)
	svc := newCheckoutForTest(repos, nil)
	ctx := context.Background()

	result, err := svc.CreateOrder(ctx, testCheckoutInput())
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^QM-\d{8}-\d{4}$`), result.OrderNumber)
	assert.Regexp(t, regexp.MustCompile(`^QEM_.+_\d+$`), result.PaymentReference)
	assert.Equal(t, 52000.0, result.Amount)
	assert.Empty(t, result.AuthorizationURL)

	order, err := repos.orders.GetByID(ctx, result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.Equal(t, model.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, order.Total, order.Subtotal+order.DeliveryFee)
	assert.Equal(t, "pickup", order.DeliveryMethod)

	var items []model.OrderItem
	require.NoError(t, db.Where("order_id = ?", result.OrderID).Find(&items).Error)
	require.Len(t, items, 1)
	assert.Equal(t, 49000.0, items[0].TotalPrice)
	assert.Nil(t, items[0].ProductID)

	attempt, err := repos.payments.GetAttemptByReference(ctx, result.PaymentReference)
	require.NoError(t, err)
	require.NotNil(t, attempt)
	assert.Equal(t, result.OrderID, attempt.OrderID)
	assert.Equal(t, model.AttemptStatusPending, attempt.Status)
	assert.Equal(t, 52000.0, attempt.Amount)
}

func TestCreateOrderPreInitializesGateway(t *testing.T) {
	db := setupTestDB(t)
	repos := newTestRepos(db)
	gw := &fakeGateway{}
	svc := newCheckoutForTest(repos, gw)
	ctx := context.Background()

	result, err := svc.CreateOrder(ctx, testCheckoutInput())
	require.NoError(t, err)
	assert.NotEmpty(t, result.AuthorizationURL)
	assert.NotEmpty(t, result.PaystackReference)

	attempt, err := repos.payments.GetAttemptByReference(ctx, result.PaymentReference)
	require.NoError(t, err)
	assert.Equal(t, result.PaystackReference, attempt.PaystackReference)
}

func TestCreateOrderGatewayInitFailureIsNonFatal(t *testing.T) {
	db := setupTestDB(t)
	repos := newTestRepos(db)
	gw := &fakeGateway{initErr: errors.New("boom")}
	svc := newCheckoutForTest(repos, gw)

	result, err := svc.CreateOrder(context.Background(), testCheckoutInput())
	require.NoError(t, err)
	assert.Empty(t, result.AuthorizationURL)
}

func TestCreateOrderLinksExistingProduct(t *testing.T) {
	db := setupTestDB(t)
	repos := newTestRepos(db)
	svc := newCheckoutForTest(repos, nil)
	ctx := context.Background()

	p := &model.Product{Name: "Quantum Energy Plate", Price: 49000, IsActive: true}
	require.NoError(t, repos.products.Create(ctx, p))

	in := testCheckoutInput()
	in.Items[0].ProductID = p.ID
	result, err := svc.CreateOrder(ctx, in)
	require.NoError(t, err)

	var items []model.OrderItem
	require.NoError(t, db.Where("order_id = ?", result.OrderID).Find(&items).Error)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].ProductID)
	assert.Equal(t, p.ID, *items[0].ProductID)
}

func TestCreateOrderProvisionsPlaceholderProduct(t *testing.T) {
	db := setupTestDB(t)
	repos := newTestRepos(db)
	svc := newCheckoutForTest(repos, nil)
	ctx := context.Background()

	in := testCheckoutInput()
	in.Items[0].ProductID = "ext-sku-4711" // not a UUID, not in catalog
	result, err := svc.CreateOrder(ctx, in)
	require.NoError(t, err)

	var items []model.OrderItem
	require.NoError(t, db.Where("order_id = ?", result.OrderID).Find(&items).Error)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].ProductID)

	var product model.Product
	require.NoError(t, db.Where("id = ?", *items[0].ProductID).First(&product).Error)
	assert.False(t, product.IsActive)
	assert.Equal(t, "ext-sku-4711", product.Metadata["externalProductId"])
}

// failingOrderRepo 注入指定步骤的失败
type failingOrderRepo struct {
	repository.OrderRepository
	failCreateItems bool
	dupRemaining    int
}

func (f *failingOrderRepo) Create(ctx context.Context, order *model.Order) error {
	if f.dupRemaining > 0 {
		f.dupRemaining--
		return gorm.ErrDuplicatedKey
	}
	return f.OrderRepository.Create(ctx, order)
}

func (f *failingOrderRepo) CreateItems(ctx context.Context, items []model.OrderItem) error {
	if f.failCreateItems {
		return errors.New("items insert rejected")
	}
	return f.OrderRepository.CreateItems(ctx, items)
}

type failingPaymentRepo struct {
	repository.PaymentRepository
	failCreateAttempt bool
}

func (f *failingPaymentRepo) CreateAttempt(ctx context.Context, attempt *model.PaymentAttempt) error {
	if f.failCreateAttempt {
		return errors.New("attempt insert rejected")
	}
	return f.PaymentRepository.CreateAttempt(ctx, attempt)
}

func TestCreateOrderRollsBackOrderWhenItemsFail(t *testing.T) {
	db := setupTestDB(t)
	repos := newTestRepos(db)
	orders := &failingOrderRepo{OrderRepository: repos.orders, failCreateItems: true}
	svc := NewCheckoutService(orders, repos.products, repos.payments, nil, NewAdminNotifier(""), "")

	_, err := svc.CreateOrder(context.Background(), testCheckoutInput())
	assert.ErrorIs(t, err, ErrOrderItems)

	var count int64
	db.Model(&model.Order{}).Count(&count)
	assert.Zero(t, count, "order must be rolled back")
	db.Model(&model.OrderItem{}).Count(&count)
	assert.Zero(t, count)
}

func TestCreateOrderRollsBackEverythingWhenAttemptFails(t *testing.T) {
	db := setupTestDB(t)
	repos := newTestRepos(db)
	payments := &failingPaymentRepo{PaymentRepository: repos.payments, failCreateAttempt: true}
	svc := NewCheckoutService(repos.orders, repos.products, payments, nil, NewAdminNotifier(""), "")

	_, err := svc.CreateOrder(context.Background(), testCheckoutInput())
	assert.ErrorIs(t, err, ErrPaymentAttempt)

	ctx := context.Background()
	var orders []model.Order
	require.NoError(t, db.Find(&orders).Error)
	assert.Empty(t, orders, "no orphaned order")
	var count int64
	db.Model(&model.OrderItem{}).Count(&count)
	assert.Zero(t, count, "no orphaned items")

	// lookup by any order number comes back empty too
	order, err := repos.orders.GetByOrderNumber(ctx, "QM-00000000-0000")
	require.NoError(t, err)
	assert.Nil(t, order)
}

func TestCreateOrderRetriesOrderNumberCollisions(t *testing.T) {
	db := setupTestDB(t)
	repos := newTestRepos(db)
	orders := &failingOrderRepo{OrderRepository: repos.orders, dupRemaining: 3}
	svc := NewCheckoutService(orders, repos.products, repos.payments, nil, NewAdminNotifier(""), "")

	result, err := svc.CreateOrder(context.Background(), testCheckoutInput())
	require.NoError(t, err, "three collisions are within the retry budget")
	assert.NotEmpty(t, result.OrderNumber)
}

func TestCreateOrderNumberRetriesExhausted(t *testing.T) {
	db := setupTestDB(t)
	repos := newTestRepos(db)
	orders := &failingOrderRepo{OrderRepository: repos.orders, dupRemaining: orderNumberMaxTries}
	svc := NewCheckoutService(orders, repos.products, repos.payments, nil, NewAdminNotifier(""), "")

	_, err := svc.CreateOrder(context.Background(), testCheckoutInput())
	assert.ErrorIs(t, err, ErrOrderCreation)
}
