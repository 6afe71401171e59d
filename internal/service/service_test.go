package service

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/quantum-checkout/internal/gateway"
	"github.com/d60-Lab/quantum-checkout/internal/repository"
	"github.com/d60-Lab/quantum-checkout/pkg/database"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type testRepos struct {
	orders     repository.OrderRepository
	products   repository.ProductRepository
	payments   repository.PaymentRepository
	emailQueue repository.EmailQueueRepository
}

func newTestRepos(db *gorm.DB) testRepos {
	return testRepos{
		orders:     repository.NewOrderRepository(db),
		products:   repository.NewProductRepository(db),
		payments:   repository.NewPaymentRepository(db),
		emailQueue: repository.NewEmailQueueRepository(db),
	}
}

// fakeGateway 可编程的网关替身
type fakeGateway struct {
	verifyCalls  int
	verification *gateway.Verification
	verifyErr    error
	initResult   *gateway.InitializeResult
	initErr      error
}

func (f *fakeGateway) Initialize(ctx context.Context, req gateway.InitializeRequest) (*gateway.InitializeResult, error) {
	if f.initErr != nil {
		return nil, f.initErr
	}
	if f.initResult != nil {
		return f.initResult, nil
	}
	return &gateway.InitializeResult{AuthorizationURL: "https://checkout.paystack.com/xyz", Reference: "PS_" + req.Email}, nil
}

func (f *fakeGateway) Verify(ctx context.Context, reference string) (*gateway.Verification, error) {
	f.verifyCalls++
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.verification, nil
}

func testCheckoutInput() CheckoutInput {
	return CheckoutInput{
		CustomerName:  "Ada Obi",
		CustomerEmail: "ada@example.com",
		CustomerPhone: "+2348012345678",
		Items: []CheckoutItem{{
			ProductName: "Quantum Energy Plate",
			UnitPrice:   49000,
			Quantity:    1,
			TotalPrice:  49000,
			Raw:         map[string]interface{}{"productName": "Quantum Energy Plate", "unitPrice": 49000.0, "quantity": 1.0},
		}},
		Subtotal:    49000,
		DeliveryFee: 3000,
		Total:       52000,
		Delivery: CheckoutDelivery{
			Method:         "pickup",
			PickupLocation: "Lagos Island",
			Raw:            map[string]interface{}{"method": "pickup"},
		},
	}
}

func newNotifierForTest(r testRepos) *Notifier {
	// no sender and no workers: Dispatch only buffers, deliveries queue
	return NewNotifier(nil, r.emailQueue, "owner@example.com", 16)
}
