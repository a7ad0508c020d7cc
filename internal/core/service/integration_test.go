package service_test

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/pizzeria/internal/adapter/storage"
	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/core/service"
)

type testEnv struct {
	redis   *redis.Client
	sql     *sql.DB
	cache   *storage.RedisAdapter
	db      *storage.SQLAdapter
	cleanup func()
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	driver := os.Getenv("TEST_DB_DRIVER")
	if driver == "" {
		driver = storage.DriverMySQL
	}
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/pizzeria?parseTime=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		t.Skipf("database not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("database not available: %v", err)
	}

	adapter, err := storage.NewSQLAdapter(db, driver)
	if err != nil {
		t.Fatalf("NewSQLAdapter: %v", err)
	}
	if err := adapter.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return &testEnv{
		redis: rdb,
		sql:   db,
		cache: storage.NewRedisAdapter(rdb, nil),
		db:    adapter,
		cleanup: func() {
			rdb.Close()
			db.Close()
		},
	}
}

type countingNotifier struct {
	sent atomic.Int32
}

func (n *countingNotifier) Notify(ctx context.Context, order domain.Order) error {
	n.sent.Add(1)
	return nil
}

func submission() domain.Submission {
	return domain.Submission{
		Items: []domain.OrderItem{
			{Kind: domain.LineKindPizza, Name: "Pizza Calabresa", Size: "Média", Price: domain.Reais(45, 0), Quantity: 1},
		},
		DeliveryType:  domain.DeliveryTypePickup,
		PaymentMethod: domain.PaymentMethodPix,
		Customer:      domain.Customer{Name: "Integração", Phone: "11900000000"},
	}
}

func TestIntegration_ConcurrentOrdersGetUniqueNumbers(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	userID := "integration-user-" + uuid.NewString()

	svc := service.NewOrderService(env.db, env.cache, env.cache, nil, 100)
	if err := svc.SyncOrderNumbers(ctx); err != nil {
		t.Fatalf("sync order numbers: %v", err)
	}

	notifier := &countingNotifier{}
	var wg sync.WaitGroup
	workerCount := 3
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			svc.DispatchNotifications(ctx, id, notifier)
		}(i)
	}

	var (
		mu      sync.Mutex
		numbers = make(map[int64]bool)
		placeWg sync.WaitGroup
	)
	totalRequests := 20
	for i := 0; i < totalRequests; i++ {
		placeWg.Add(1)
		go func() {
			defer placeWg.Done()
			order, err := svc.Submit(ctx, service.SubmitRequest{
				RequestID:  uuid.NewString(),
				UserID:     userID,
				Submission: submission(),
			})
			if err != nil {
				t.Errorf("submit failed: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if numbers[order.Number] {
				t.Errorf("duplicate order number %d", order.Number)
			}
			numbers[order.Number] = true
		}()
	}
	placeWg.Wait()

	svc.Close()
	wg.Wait()

	if int(notifier.sent.Load()) != totalRequests {
		t.Errorf("expected %d notifications, got %d", totalRequests, notifier.sent.Load())
	}

	orders, err := env.db.ListOrdersByUser(ctx, userID)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != totalRequests {
		t.Errorf("expected %d stored orders, got %d", totalRequests, len(orders))
	}

	// Cleanup
	env.sql.ExecContext(ctx, `DELETE FROM orders WHERE user_id = '`+userID+`'`)
}

func TestIntegration_IdempotencyPreventsDoubleOrder(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	guestID := "integration-guest-" + uuid.NewString()
	requestID := "same-request-id-" + uuid.NewString()
	defer env.redis.Del(ctx, "dkasa_orders:"+guestID)

	svc := service.NewOrderService(env.db, env.cache, env.cache, nil, 100)
	defer svc.Close()

	req := service.SubmitRequest{RequestID: requestID, GuestID: guestID, Submission: submission()}
	if _, err := svc.Submit(ctx, req); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}

	_, err := svc.Submit(ctx, req)
	if err != service.ErrDuplicateRequest {
		t.Errorf("expected ErrDuplicateRequest, got: %v", err)
	}

	orders, err := svc.ListGuestOrders(ctx, guestID)
	if err != nil {
		t.Fatalf("list guest orders: %v", err)
	}
	if len(orders) != 1 {
		t.Errorf("expected 1 guest order, got %d", len(orders))
	}
}

func TestIntegration_GuestLifecycle(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	guestID := "integration-guest-" + uuid.NewString()
	defer env.redis.Del(ctx, "dkasa_orders:"+guestID)

	svc := service.NewOrderService(env.db, env.cache, env.cache, nil, 100)
	defer svc.Close()

	order, err := svc.Submit(ctx, service.SubmitRequest{RequestID: uuid.NewString(), GuestID: guestID, Submission: submission()})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	for _, st := range []domain.OrderStatus{domain.OrderStatusPreparing, domain.OrderStatusReady, domain.OrderStatusCompleted} {
		if _, err := svc.Advance(ctx, order.ID, st); err != nil {
			t.Fatalf("advance to %s: %v", st, err)
		}
	}

	n, err := svc.ClearCompleted(ctx, guestID)
	if err != nil {
		t.Fatalf("clear completed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 cleared order, got %d", n)
	}
}
