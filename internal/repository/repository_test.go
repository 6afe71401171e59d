package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/quantum-checkout/internal/model"
	"github.com/d60-Lab/quantum-checkout/pkg/database"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func pendingOrder(number string) *model.Order {
	return &model.Order{
		OrderNumber:   number,
		CustomerName:  "Ada Obi",
		CustomerEmail: "ada@example.com",
		Subtotal:      49000,
		DeliveryFee:   3000,
		Total:         52000,
		Status:        model.OrderStatusPending,
		PaymentStatus: model.PaymentStatusPending,
	}
}

func TestOrderNumberUniqueConflictIsTranslated(t *testing.T) {
	db := setupDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, pendingOrder("QM-20260831-0001")))
	err := repo.Create(ctx, pendingOrder("QM-20260831-0001"))
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestMarkPaidIsMonotonic(t *testing.T) {
	db := setupDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	order := pendingOrder("QM-20260831-0002")
	require.NoError(t, repo.Create(ctx, order))

	changed, err := repo.MarkPaid(ctx, order.ID, "QEM_ref_1")
	require.NoError(t, err)
	assert.True(t, changed)

	// 重复置 paid 不再产生变化
	changed, err = repo.MarkPaid(ctx, order.ID, "QEM_ref_other")
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, got.PaymentStatus)
	assert.Equal(t, model.OrderStatusProcessing, got.Status)
	assert.Equal(t, "QEM_ref_1", got.PaymentReference, "first writer wins")
}

func TestMarkPaymentFailedNeverTouchesPaidOrder(t *testing.T) {
	db := setupDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	order := pendingOrder("QM-20260831-0003")
	require.NoError(t, repo.Create(ctx, order))
	_, err := repo.MarkPaid(ctx, order.ID, "QEM_ref_1")
	require.NoError(t, err)

	require.NoError(t, repo.MarkPaymentFailed(ctx, order.ID))
	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, got.PaymentStatus)
}

func TestEnsurePaymentIsIdempotent(t *testing.T) {
	db := setupDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	orderID := "ord-1"
	first, err := repo.EnsurePayment(ctx, &model.Payment{
		Reference: "QEM_ord-1_1", OrderID: &orderID, Amount: 52000, Status: model.PaymentCompleted,
	})
	require.NoError(t, err)

	second, err := repo.EnsurePayment(ctx, &model.Payment{
		Reference: "QEM_ord-1_1", Amount: 99999,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 52000.0, second.Amount, "existing row is authoritative")

	var count int64
	db.Model(&model.Payment{}).Where("reference = ?", "QEM_ord-1_1").Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestMarkAttemptSuccessOnlyFromPending(t *testing.T) {
	db := setupDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateAttempt(ctx, &model.PaymentAttempt{
		OrderID:          "ord-1",
		PaymentReference: "QEM_ord-1_1",
		Amount:           52000,
		Status:           model.AttemptStatusPending,
	}))

	changed, err := repo.MarkAttemptSuccess(ctx, "QEM_ord-1_1", model.JSON{"status": "success"})
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkAttemptSuccess(ctx, "QEM_ord-1_1", nil)
	require.NoError(t, err)
	assert.False(t, changed, "success is terminal")

	// 迟到的失败不会覆盖 success
	require.NoError(t, repo.MarkAttemptFailed(ctx, "QEM_ord-1_1", nil))
	attempt, err := repo.GetAttemptByReference(ctx, "QEM_ord-1_1")
	require.NoError(t, err)
	assert.Equal(t, model.AttemptStatusSuccess, attempt.Status)
	require.NotNil(t, attempt.CompletedAt)
}

func TestGetAttemptByGatewayReference(t *testing.T) {
	db := setupDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateAttempt(ctx, &model.PaymentAttempt{
		OrderID:          "ord-1",
		PaymentReference: "QEM_ord-1_1",
		Amount:           52000,
		Status:           model.AttemptStatusPending,
	}))
	require.NoError(t, repo.SetPaystackReference(ctx, "QEM_ord-1_1", "PS_abc"))

	attempt, err := repo.GetAttemptByGatewayReference(ctx, "PS_abc")
	require.NoError(t, err)
	require.NotNil(t, attempt)
	assert.Equal(t, "QEM_ord-1_1", attempt.PaymentReference)

	missing, err := repo.GetAttemptByGatewayReference(ctx, "PS_nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestExistingIDsFiltersUnknownProducts(t *testing.T) {
	db := setupDB(t)
	repo := NewProductRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &model.Product{
		ID: "prod-1", Name: "Quantum Energy Plate", Price: 49000, IsActive: true,
	}))

	ids, err := repo.ExistingIDs(ctx, []string{"prod-1", "prod-ghost"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"prod-1": true}, ids)
}
