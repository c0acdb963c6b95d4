// Package report turns report tasks into spreadsheet artifacts. Output files
// are keyed by task id, so re-running a task after a crash overwrites the
// same artifact instead of duplicating it.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"shopease-backend/internal/model"
	"shopease-backend/pkg/database"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Report kinds accepted by Submit.
const (
	KindTopSellingProducts = "top_selling_products"
	KindStoreRevenue       = "store_revenue"
	KindSalesSummary       = "sales_summary"
)

// Kinds returns every report kind the generator can execute.
func Kinds() []string {
	return []string{KindTopSellingProducts, KindStoreRevenue, KindSalesSummary}
}

// ValidKind reports whether kind names a known report.
func ValidKind(kind string) bool {
	switch kind {
	case KindTopSellingProducts, KindStoreRevenue, KindSalesSummary:
		return true
	}
	return false
}

// SummaryParams narrows the sales summary to a date range. Both bounds are
// optional and compared against orders.order_date.
type SummaryParams struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

type topProductRow struct {
	ProductID   uint   `json:"product_id"`
	ProductName string `json:"product_name"`
	TotalSold   int64  `json:"total_sold"`
}

type storeRevenueRow struct {
	StoreID      uint            `json:"store_id"`
	StoreName    string          `json:"store_name"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}

type salesSummaryRow struct {
	SaleDate     string          `json:"sale_date"`
	OrderCount   int64           `json:"order_count"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}

// Generator executes report tasks against the reporting views and writes
// .xlsx artifacts into OutputDir.
type Generator struct {
	db  *gorm.DB
	dir string
	log *zap.Logger
}

// NewGenerator creates a Generator writing artifacts under dir.
func NewGenerator(db *gorm.DB, dir string, log *zap.Logger) *Generator {
	return &Generator{db: db, dir: dir, log: log}
}

// Execute implements scheduler.Executor.
func (g *Generator) Execute(ctx context.Context, task *model.ReportTask) (string, error) {
	var headers []string
	var rows [][]interface{}
	var err error

	switch task.Kind {
	case KindTopSellingProducts:
		headers, rows, err = g.topSellingProducts(ctx)
	case KindStoreRevenue:
		headers, rows, err = g.storeRevenue(ctx)
	case KindSalesSummary:
		headers, rows, err = g.salesSummary(ctx, task.Params)
	default:
		return "", fmt.Errorf("unknown report kind %q", task.Kind)
	}
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(g.dir, fmt.Sprintf("%s_%s.xlsx", task.Kind, task.ID))
	if err := writeWorkbook(path, headers, rows); err != nil {
		return "", err
	}

	g.log.Info("report artifact written",
		zap.String("task_id", task.ID),
		zap.String("kind", task.Kind),
		zap.String("path", path),
		zap.Int("rows", len(rows)))
	return path, nil
}

func (g *Generator) topSellingProducts(ctx context.Context) ([]string, [][]interface{}, error) {
	var records []topProductRow
	err := database.WithRetry(ctx, database.ReadAttempts, database.ReadBackoff, func() error {
		return g.db.WithContext(ctx).
			Raw(`SELECT product_id, product_name, total_sold FROM top_selling_products`).
			Scan(&records).Error
	})
	if err != nil {
		return nil, nil, err
	}

	rows := make([][]interface{}, 0, len(records))
	for _, r := range records {
		rows = append(rows, []interface{}{r.ProductID, r.ProductName, r.TotalSold})
	}
	return []string{"ProductID", "ProductName", "TotalSold"}, rows, nil
}

func (g *Generator) storeRevenue(ctx context.Context) ([]string, [][]interface{}, error) {
	var records []storeRevenueRow
	err := database.WithRetry(ctx, database.ReadAttempts, database.ReadBackoff, func() error {
		return g.db.WithContext(ctx).
			Raw(`SELECT store_id, store_name, total_revenue FROM store_revenue`).
			Scan(&records).Error
	})
	if err != nil {
		return nil, nil, err
	}

	rows := make([][]interface{}, 0, len(records))
	for _, r := range records {
		rows = append(rows, []interface{}{r.StoreID, r.StoreName, r.TotalRevenue.StringFixed(2)})
	}
	return []string{"StoreID", "StoreName", "TotalRevenue"}, rows, nil
}

func (g *Generator) salesSummary(ctx context.Context, params string) ([]string, [][]interface{}, error) {
	var p SummaryParams
	if params != "" {
		if err := json.Unmarshal([]byte(params), &p); err != nil {
			return nil, nil, fmt.Errorf("invalid sales summary params: %w", err)
		}
	}

	query := g.db.WithContext(ctx).Model(&model.Order{}).
		Select("order_date::date AS sale_date, COUNT(id) AS order_count, SUM(total_amount) AS total_revenue").
		Group("order_date::date").
		Order("sale_date")
	if p.From != "" {
		query = query.Where("order_date >= ?", p.From)
	}
	if p.To != "" {
		query = query.Where("order_date < ?", p.To)
	}

	var records []salesSummaryRow
	err := database.WithRetry(ctx, database.ReadAttempts, database.ReadBackoff, func() error {
		return query.Scan(&records).Error
	})
	if err != nil {
		return nil, nil, err
	}

	rows := make([][]interface{}, 0, len(records))
	for _, r := range records {
		rows = append(rows, []interface{}{r.SaleDate, r.OrderCount, r.TotalRevenue.StringFixed(2)})
	}
	return []string{"Date", "Orders", "Revenue"}, rows, nil
}
