package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iara-orders/orders-api/models"
	"github.com/iara-orders/orders-api/utils"
	"github.com/rs/zerolog/log"
)

// ExportedOrder is one order with its items in a JSON export
type ExportedOrder struct {
	Order models.Order       `json:"order"`
	Items []models.OrderItem `json:"items"`
}

// ExportDocument is the JSON export/import format
type ExportDocument struct {
	ExportDate  string          `json:"export_date"`
	TotalOrders int             `json:"total_orders"`
	Data        []ExportedOrder `json:"data"`
}

// SQLExport is a replayable SQL script of the whole store
type SQLExport struct {
	ExportDate string   `json:"export_date"`
	Statements []string `json:"sql_statements"`
	Content    string   `json:"sql_content"`
}

// ImportResult reports what an import created
type ImportResult struct {
	ImportedOrders int      `json:"imported_orders"`
	ImportedItems  int      `json:"imported_items"`
	Skipped        int      `json:"skipped"`
	Errors         []string `json:"errors,omitempty"`
}

// ExportService serializes the store and rebuilds it from exports
type ExportService struct {
	orders  OrderService
	storage ExportStorage
	now     func() time.Time
}

var exportServiceInstance *ExportService

// NewExportService builds an export service over orders and storage
func NewExportService(orders OrderService, storage ExportStorage) *ExportService {
	return &ExportService{orders: orders, storage: storage, now: time.Now}
}

// InitExportService builds the shared export service instance
func InitExportService(orders OrderService, storage ExportStorage) *ExportService {
	exportServiceInstance = NewExportService(orders, storage)
	return exportServiceInstance
}

// GetExportService returns the initialized export service instance
func GetExportService() *ExportService {
	return exportServiceInstance
}

// SetExportService sets the export service instance (primarily for testing)
func SetExportService(service *ExportService) {
	exportServiceInstance = service
}

func (s *ExportService) today() string {
	return s.now().Format(models.DateLayout)
}

// ExportJSON returns every order with its items
func (s *ExportService) ExportJSON(ctx context.Context) (*ExportDocument, error) {
	orders, err := s.orders.ListOrders(ctx)
	if err != nil {
		return nil, err
	}

	doc := &ExportDocument{
		ExportDate:  s.today(),
		TotalOrders: len(orders),
		Data:        make([]ExportedOrder, 0, len(orders)),
	}
	for _, order := range orders {
		items, err := s.orders.ListItemsForOrder(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []models.OrderItem{}
		}
		doc.Data = append(doc.Data, ExportedOrder{Order: order, Items: items})
	}
	return doc, nil
}

const sqlSchema = `CREATE TABLE IF NOT EXISTS orders (
    order_id INTEGER PRIMARY KEY AUTOINCREMENT,
    customer_id INTEGER NOT NULL,
    order_date DATE NOT NULL,
    total_amount DECIMAL(10, 2) DEFAULT 0.00
);

CREATE TABLE IF NOT EXISTS order_items (
    order_item_id INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id INTEGER NOT NULL,
    product_id INTEGER NOT NULL,
    quantity INTEGER NOT NULL,
    unit_price DECIMAL(10, 2) NOT NULL,
    line_total DECIMAL(10, 2) NOT NULL,
    FOREIGN KEY (order_id) REFERENCES orders(order_id) ON DELETE CASCADE
);`

// ExportSQL renders the schema and one INSERT per order and item
func (s *ExportService) ExportSQL(ctx context.Context) (*SQLExport, error) {
	doc, err := s.ExportJSON(ctx)
	if err != nil {
		return nil, err
	}

	statements := []string{
		"-- Orders and Order Items Export",
		"-- Generated on " + doc.ExportDate,
		"",
	}
	statements = append(statements, strings.Split(sqlSchema, "\n")...)
	statements = append(statements, "", "-- Data Inserts", "")

	for _, entry := range doc.Data {
		o := entry.Order
		statements = append(statements, fmt.Sprintf(
			"INSERT INTO orders (order_id, customer_id, order_date, total_amount) VALUES (%d, %d, '%s', %s);",
			o.ID, o.CustomerID, o.OrderDate, o.TotalAmount.StringFixed(models.CurrencyPlaces)))
		for _, item := range entry.Items {
			statements = append(statements, fmt.Sprintf(
				"INSERT INTO order_items (order_item_id, order_id, product_id, quantity, unit_price, line_total) VALUES (%d, %d, %d, %d, %s, %s);",
				item.ID, item.OrderID, item.ProductID, item.Quantity,
				item.UnitPrice.StringFixed(models.CurrencyPlaces), item.LineTotal.StringFixed(models.CurrencyPlaces)))
		}
		statements = append(statements, "")
	}

	return &SQLExport{
		ExportDate: doc.ExportDate,
		Statements: statements,
		Content:    strings.Join(statements, "\n"),
	}, nil
}

type importDocument struct {
	Data *[]importEntry `json:"data"`
}

type importEntry struct {
	Order *importOrder `json:"order"`
	Items *[]ItemSpec  `json:"items"`
}

type importOrder struct {
	CustomerID uint   `json:"customer_id"`
	OrderDate  string `json:"order_date"`
}

// ImportJSON recreates every order of an export document. Ids are
// reassigned and totals recomputed; each order is created atomically.
// Entries missing "order" or "items" are skipped, as are orders with
// an unparseable order_date or invalid item data.
func (s *ExportService) ImportJSON(ctx context.Context, content []byte) (*ImportResult, error) {
	var doc importDocument
	if err := json.NewDecoder(bytes.NewReader(content)).Decode(&doc); err != nil {
		return nil, invalidData("invalid import document: %v", err)
	}
	if doc.Data == nil {
		return nil, invalidData("invalid import format: missing 'data' field")
	}

	result := &ImportResult{}
	for i, entry := range *doc.Data {
		if entry.Order == nil || entry.Items == nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("entry %d: missing order or items", i+1))
			continue
		}

		orderDate, err := models.ParseDate(entry.Order.OrderDate)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("entry %d: invalid order_date %q", i+1, entry.Order.OrderDate))
			continue
		}

		order, err := s.orders.CreateOrderWithItems(ctx, entry.Order.CustomerID, orderDate, *entry.Items)
		if err != nil {
			if errors.Is(err, ErrInvalidData) {
				result.Skipped++
				result.Errors = append(result.Errors, fmt.Sprintf("entry %d: %v", i+1, err))
				continue
			}
			return result, err
		}
		result.ImportedOrders++
		result.ImportedItems += len(order.Items)
	}

	log.Ctx(ctx).Info().
		Int("orders", result.ImportedOrders).
		Int("items", result.ImportedItems).
		Int("skipped", result.Skipped).
		Msg("import completed")
	return result, nil
}

// Render produces the file content of an export in format
func (s *ExportService) Render(ctx context.Context, format string) ([]byte, error) {
	switch format {
	case utils.ExportFormatJSON:
		doc, err := s.ExportJSON(ctx)
		if err != nil {
			return nil, err
		}
		return json.MarshalIndent(doc, "", "  ")
	case utils.ExportFormatSQL:
		export, err := s.ExportSQL(ctx)
		if err != nil {
			return nil, err
		}
		return []byte(export.Content + "\n"), nil
	default:
		return nil, invalidData("unsupported export format %q", format)
	}
}

// Archive renders an export and saves it to storage under today's name
func (s *ExportService) Archive(ctx context.Context, format string) (string, error) {
	content, err := s.Render(ctx, format)
	if err != nil {
		return "", err
	}
	return s.storage.Save(ctx, utils.ExportFilename(format, s.now()), content)
}

// ImportFromStorage loads name from storage and imports it
func (s *ExportService) ImportFromStorage(ctx context.Context, name string) (*ImportResult, error) {
	content, err := s.storage.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.ImportJSON(ctx, content)
}
