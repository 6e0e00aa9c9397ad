package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/catalog-fulfillment/internal/adapter/storage"
	"github.com/rl1809/catalog-fulfillment/internal/config"
	"github.com/rl1809/catalog-fulfillment/internal/core/domain"
	"github.com/rl1809/catalog-fulfillment/internal/core/service"
)

const (
	productID     = 900001
	initialStock  = 20
	totalRequests = 50
	quantity      = 1
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Initialize database
	dialect, err := storage.ParseDialect(cfg.DBDriver)
	if err != nil {
		log.Fatalf("invalid database driver: %v", err)
	}
	dsn := cfg.DBDSN
	if dialect == storage.DialectSQLite {
		dsn = storage.SQLiteDSN(cfg.DBDSN)
	}
	db, err := storage.Open(ctx, dialect, dsn, storage.PoolConfig{MaxOpenConns: cfg.DBMaxOpenConns})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	store := storage.NewSQLStore(db, dialect)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("failed to apply schema: %v", err)
	}

	// Reset test product
	if err := store.UpsertItem(ctx, domain.InventoryItem{ID: productID, Name: "stress-item", Stock: initialStock}); err != nil {
		log.Fatalf("failed to seed stock: %v", err)
	}

	opts := []service.Option{service.WithTxRetries(cfg.TxRetries)}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		defer rdb.Close()
		opts = append(opts, service.WithCache(storage.NewRedisAdapter(rdb)))
	}
	orderService := service.NewOrderService(store, opts...)

	// Counters
	var successCount atomic.Int32
	var soldOutCount atomic.Int32
	var errorCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			lines := []domain.OrderLine{domain.NewOrderLine(productID, quantity)}
			var err error
			if cfg.RedisAddr != "" {
				_, err = orderService.ProcessOrderOnce(ctx, uuid.NewString(), lines)
			} else {
				_, err = orderService.ProcessOrder(ctx, lines)
			}

			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				soldOutCount.Add(1)
			default:
				errorCount.Add(1)
				log.Printf("order failed: %v", err)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := int(successCount.Load())
	soldOut := int(soldOutCount.Load())
	failed := int(errorCount.Load())

	item, err := store.GetInventory(ctx, productID)
	if err != nil || item == nil {
		log.Fatalf("failed to read final stock: %v", err)
	}

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Driver:           %s\n", dialect)
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Sold Out:         %d\n", soldOut)
	fmt.Printf("Errors:           %d\n", failed)
	fmt.Printf("Final Stock:      %d\n", item.Stock)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	ok := true
	if success*quantity+item.Stock != initialStock {
		fmt.Printf("FAIL: %d reserved + %d remaining != %d initial\n", success*quantity, item.Stock, initialStock)
		ok = false
	} else {
		fmt.Println("PASS: Stock conserved")
	}
	if item.Stock < 0 {
		fmt.Printf("FAIL: Negative stock %d\n", item.Stock)
		ok = false
	}
	if failed == 0 && success != min(initialStock/quantity, totalRequests) {
		fmt.Printf("FAIL: Expected %d successes, got %d\n", min(initialStock/quantity, totalRequests), success)
		ok = false
	}
	if !ok {
		os.Exit(1)
	}
}
