package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rl1809/orderbot/internal/adapter/storage"
	"github.com/rl1809/orderbot/internal/core/domain"
	"github.com/rl1809/orderbot/internal/core/invoice"
	"github.com/rl1809/orderbot/internal/core/service"
)

const (
	productCode       = "STRESS-1"
	unitPrice         = 1500
	customers         = 5
	addsPerCustomer   = 40
	quantityPerAdd    = 2
	customerIDPattern = "stress-customer-%d"
)

func main() {
	ctx := context.Background()

	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/orderbot?parseTime=true"
	}

	if err := storage.MigrateMySQL(dsn); err != nil {
		log.Fatalf("failed to migrate mysql: %v", err)
	}
	db, err := storage.OpenMySQL(ctx, dsn, 50, 25)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	defer db.Close()

	// Clear previous test data
	for i := 0; i < customers; i++ {
		clearCustomer(ctx, db, fmt.Sprintf(customerIDPattern, i))
	}

	// Initialize adapter and services
	mysqlAdapter := storage.NewMySQLAdapter(db)
	if err := mysqlAdapter.UpsertProduct(ctx, domain.Product{
		Code: productCode, Name: "Stress Widget", Unit: "pcs", Price: unitPrice, Active: true,
	}); err != nil {
		log.Fatalf("failed to seed product: %v", err)
	}

	renderer, err := invoice.NewRenderer(invoice.DefaultCurrency)
	if err != nil {
		log.Fatalf("failed to load font: %v", err)
	}
	catalog := service.NewCatalogService(mysqlAdapter)
	cart := service.NewCartService(catalog, mysqlAdapter, renderer)

	// Counters
	var successCount atomic.Int32
	var failCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for c := 0; c < customers; c++ {
		for i := 0; i < addsPerCustomer; i++ {
			wg.Add(1)
			go func(customerID string) {
				defer wg.Done()

				_, err := cart.AddItem(ctx, customerID, fmt.Sprintf("%s %d", productCode, quantityPerAdd))
				if err == nil {
					successCount.Add(1)
				} else {
					failCount.Add(1)
				}
			}(fmt.Sprintf(customerIDPattern, c))
		}
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	fail := failCount.Load()
	total := customers * addsPerCustomer

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Customers:        %d\n", customers)
	fmt.Printf("Total Requests:   %d\n", total)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == int32(total) {
		fmt.Printf("PASS: All %d adds succeeded\n", total)
	} else {
		fmt.Printf("FAIL: Expected %d successes, got %d\n", total, success)
	}

	// Verify one open order per customer with a consistent total
	wantTotal := int64(addsPerCustomer * quantityPerAdd * unitPrice)
	for c := 0; c < customers; c++ {
		customerID := fmt.Sprintf(customerIDPattern, c)

		var openOrders int
		if err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM orders WHERE customer_id = ? AND status = 'open'", customerID,
		).Scan(&openOrders); err != nil {
			log.Fatalf("failed to count orders: %v", err)
		}

		order, err := mysqlAdapter.FindOpenOrder(ctx, customerID)
		if err != nil || order == nil {
			fmt.Printf("FAIL: %s has no open order (%v)\n", customerID, err)
			continue
		}
		_, lines, err := mysqlAdapter.GetOrderWithLines(ctx, order.ID)
		if err != nil {
			log.Fatalf("failed to load lines: %v", err)
		}

		var sum int64
		for _, l := range lines {
			sum += l.LineTotal
		}

		switch {
		case openOrders != 1:
			fmt.Printf("FAIL: %s has %d open orders\n", customerID, openOrders)
		case order.Total != sum:
			fmt.Printf("FAIL: %s total %d != line sum %d\n", customerID, order.Total, sum)
		case order.Total != wantTotal || len(lines) != addsPerCustomer:
			fmt.Printf("FAIL: %s expected %d lines totalling %d, got %d lines totalling %d\n",
				customerID, addsPerCustomer, wantTotal, len(lines), order.Total)
		default:
			fmt.Printf("PASS: %s has 1 open order, %d lines, total %d\n", customerID, len(lines), order.Total)
		}
	}
}

func clearCustomer(ctx context.Context, db *sql.DB, customerID string) {
	db.ExecContext(ctx,
		"DELETE l FROM order_lines l JOIN orders o ON o.id = l.order_id WHERE o.customer_id = ?", customerID)
	db.ExecContext(ctx, "DELETE FROM orders WHERE customer_id = ?", customerID)
}
