package backup

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wighaven/storefront/domain/catalog"
	"github.com/wighaven/storefront/domain/discount"
	"github.com/wighaven/storefront/domain/order"
	"github.com/wighaven/storefront/domain/user"
	"gorm.io/gorm"
)

// table exports one table as a JSON array and reports its row count.
type table struct {
	name   string
	export func(ctx context.Context, db *gorm.DB) (json.RawMessage, int, error)
}

func exportAll[T any](unscoped bool) func(ctx context.Context, db *gorm.DB) (json.RawMessage, int, error) {
	return func(ctx context.Context, db *gorm.DB) (json.RawMessage, int, error) {
		var rows []T
		q := db.WithContext(ctx)
		if unscoped {
			q = q.Unscoped()
		}
		if err := q.Find(&rows).Error; err != nil {
			return nil, 0, err
		}
		data, err := json.Marshal(rows)
		if err != nil {
			return nil, 0, err
		}
		return data, len(rows), nil
	}
}

// tables lists everything a snapshot contains. User password hashes never
// leave the database; the entity omits them from JSON.
var tables = []table{
	{"categories", exportAll[catalog.Category](false)},
	{"products", exportAll[catalog.Product](true)},
	{"variants", exportAll[catalog.Variant](false)},
	{"discounts", exportAll[discount.Discount](false)},
	{"discount_redemptions", exportAll[discount.Redemption](false)},
	{"orders", exportAll[order.Order](false)},
	{"order_items", exportAll[order.Item](false)},
	{"order_status_history", exportAll[order.StatusChange](false)},
	{"users", exportAll[user.User](false)},
}

// Export reads every table inside one read transaction so the snapshot is
// consistent.
func Export(ctx context.Context, db *gorm.DB) (map[string]json.RawMessage, map[string]int, error) {
	data := make(map[string]json.RawMessage, len(tables))
	counts := make(map[string]int, len(tables))
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range tables {
			raw, n, err := t.export(ctx, tx)
			if err != nil {
				return fmt.Errorf("failed to export %s: %w", t.name, err)
			}
			data[t.name] = raw
			counts[t.name] = n
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return data, counts, nil
}
