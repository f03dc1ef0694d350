// Package testdb opens isolated in-memory sqlite databases migrated with the
// application models. It is imported by tests only.
package testdb

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/haatbazaar/marketplace-backend/pkg/db/models"
)

// Models lists every table the settlement core persists.
func Models() []any {
	return []any{
		&models.User{},
		&models.SellerProfile{},
		&models.Address{},
		&models.Product{},
		&models.ProductVariant{},
		&models.CartItem{},
		&models.Coupon{},
		&models.Order{},
		&models.SubOrder{},
		&models.OrderItem{},
		&models.WalletAccount{},
		&models.WalletTransaction{},
		&models.Notification{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	}
}

// Open returns a fresh migrated database private to the calling test.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(uuid.NewString(), "-", "")
	dsn := fmt.Sprintf("file:test_%s?mode=memory&cache=shared", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(Models()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}
