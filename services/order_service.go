package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/iara-orders/orders-api/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ItemSpec carries the client-settable fields of an order item
type ItemSpec struct {
	ProductID uint            `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Validate rejects non-positive quantities and negative prices
func (s ItemSpec) Validate() error {
	if s.Quantity <= 0 {
		return invalidData("quantity must be positive, got %d", s.Quantity)
	}
	if s.UnitPrice.IsNegative() {
		return invalidData("unit_price must not be negative, got %s", s.UnitPrice)
	}
	return nil
}

func (s ItemSpec) toItem(orderID uint) models.OrderItem {
	price := models.RoundCurrency(s.UnitPrice)
	return models.OrderItem{
		OrderID:   orderID,
		ProductID: s.ProductID,
		Quantity:  s.Quantity,
		UnitPrice: price,
		LineTotal: models.LineTotal(s.Quantity, price),
	}
}

// OrderService owns persistence of orders and their items and keeps every
// order's total equal to the sum of its items' line totals.
type OrderService interface {
	CreateOrder(ctx context.Context, customerID uint, orderDate models.Date) (*models.Order, error)
	// CreateOrderWithItems persists the order and all items, or nothing
	CreateOrderWithItems(ctx context.Context, customerID uint, orderDate models.Date, items []ItemSpec) (*models.Order, error)
	GetOrder(ctx context.Context, orderID uint) (*models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
	UpdateOrder(ctx context.Context, orderID, customerID uint, orderDate models.Date) (*models.Order, error)
	// DeleteOrder removes the order and all of its items
	DeleteOrder(ctx context.Context, orderID uint) error

	CreateItem(ctx context.Context, orderID uint, spec ItemSpec) (*models.OrderItem, error)
	GetItem(ctx context.Context, itemID uint) (*models.OrderItem, error)
	ListItems(ctx context.Context) ([]models.OrderItem, error)
	ListItemsForOrder(ctx context.Context, orderID uint) ([]models.OrderItem, error)
	UpdateItem(ctx context.Context, itemID uint, spec ItemSpec) (*models.OrderItem, error)
	DeleteItem(ctx context.Context, itemID uint) error

	OrderSummary(ctx context.Context, orderID uint) (*OrderSummary, error)
	Stats(ctx context.Context) (*Stats, error)
}

// GormOrderService implements OrderService on top of gorm
type GormOrderService struct {
	db        *gorm.DB
	publisher EventPublisher
}

var orderServiceInstance OrderService

// NewOrderService builds an order service; a nil publisher drops events
func NewOrderService(db *gorm.DB, publisher EventPublisher) *GormOrderService {
	if publisher == nil {
		publisher = NoopEventPublisher{}
	}
	return &GormOrderService{db: db, publisher: publisher}
}

// InitOrderService builds the shared order service instance
func InitOrderService(db *gorm.DB, publisher EventPublisher) OrderService {
	orderServiceInstance = NewOrderService(db, publisher)
	return orderServiceInstance
}

// GetOrderService returns the initialized order service instance
func GetOrderService() OrderService {
	return orderServiceInstance
}

// SetOrderService sets the order service instance (primarily for testing)
func SetOrderService(service OrderService) {
	orderServiceInstance = service
}

func (s *GormOrderService) CreateOrder(ctx context.Context, customerID uint, orderDate models.Date) (*models.Order, error) {
	if orderDate.IsZero() {
		return nil, invalidData("order_date is required")
	}

	order := models.Order{
		CustomerID:  customerID,
		OrderDate:   orderDate,
		TotalAmount: decimal.Zero,
	}
	if err := s.db.WithContext(ctx).Create(&order).Error; err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.publish(ctx, newOrderEvent(EventOrderCreated, &order))
	return &order, nil
}

func (s *GormOrderService) CreateOrderWithItems(ctx context.Context, customerID uint, orderDate models.Date, items []ItemSpec) (*models.Order, error) {
	if orderDate.IsZero() {
		return nil, invalidData("order_date is required")
	}
	for i, spec := range items {
		if err := spec.Validate(); err != nil {
			return nil, invalidData("item %d: %v", i+1, err)
		}
	}

	order := models.Order{
		CustomerID:  customerID,
		OrderDate:   orderDate,
		TotalAmount: decimal.Zero,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		rows := make([]models.OrderItem, len(items))
		for i, spec := range items {
			rows[i] = spec.toItem(order.ID)
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("insert order items: %w", err)
			}
		}

		total, err := recomputeTotal(tx, order.ID)
		if err != nil {
			return err
		}
		order.TotalAmount = total
		order.Items = rows
		return nil
	})
	if err != nil {
		return nil, transactionFailed(err)
	}

	log.Ctx(ctx).Debug().Uint("order_id", order.ID).Int("items", len(order.Items)).Msg("order created with items")
	s.publish(ctx, newOrderEvent(EventOrderCreated, &order))
	return &order, nil
}

func (s *GormOrderService) GetOrder(ctx context.Context, orderID uint) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order %d: %w", orderID, err)
	}
	return &order, nil
}

func (s *GormOrderService) ListOrders(ctx context.Context) ([]models.Order, error) {
	orders := []models.Order{}
	if err := s.db.WithContext(ctx).Order("order_id").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// UpdateOrder changes the customer and date only; the total stays derived
func (s *GormOrderService) UpdateOrder(ctx context.Context, orderID, customerID uint, orderDate models.Date) (*models.Order, error) {
	if orderDate.IsZero() {
		return nil, invalidData("order_date is required")
	}

	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockOrder(tx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}

		if err := tx.Model(&models.Order{}).Where("order_id = ?", orderID).Updates(map[string]interface{}{
			"customer_id": customerID,
			"order_date":  orderDate,
		}).Error; err != nil {
			return fmt.Errorf("update order: %w", err)
		}

		locked.CustomerID = customerID
		locked.OrderDate = orderDate
		order = locked
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "failed to update order")
	}

	s.publish(ctx, newOrderEvent(EventOrderUpdated, order))
	return order, nil
}

func (s *GormOrderService) DeleteOrder(ctx context.Context, orderID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockOrder(tx, orderID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if err := tx.Where("order_id = ?", orderID).Delete(&models.OrderItem{}).Error; err != nil {
			return fmt.Errorf("delete order items: %w", err)
		}
		if err := tx.Where("order_id = ?", orderID).Delete(&models.Order{}).Error; err != nil {
			return fmt.Errorf("delete order: %w", err)
		}
		return nil
	})
	if err != nil {
		return storeErr(err, "failed to delete order")
	}

	s.publish(ctx, OrderEvent{Type: EventOrderDeleted, OrderID: orderID})
	return nil
}

func (s *GormOrderService) CreateItem(ctx context.Context, orderID uint, spec ItemSpec) (*models.OrderItem, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	item := spec.toItem(orderID)
	var total decimal.Decimal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockOrder(tx, orderID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrParentNotFound
			}
			return err
		}
		if err := tx.Create(&item).Error; err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}

		var err error
		total, err = recomputeTotal(tx, orderID)
		return err
	})
	if err != nil {
		return nil, storeErr(err, "failed to create order item")
	}

	s.publish(ctx, newItemEvent(EventItemCreated, &item, total))
	return &item, nil
}

func (s *GormOrderService) GetItem(ctx context.Context, itemID uint) (*models.OrderItem, error) {
	var item models.OrderItem
	if err := s.db.WithContext(ctx).First(&item, "order_item_id = ?", itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to load order item %d: %w", itemID, err)
	}
	return &item, nil
}

func (s *GormOrderService) ListItems(ctx context.Context) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	if err := s.db.WithContext(ctx).Order("order_item_id").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	return items, nil
}

func (s *GormOrderService) ListItemsForOrder(ctx context.Context, orderID uint) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).Order("order_item_id").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list items for order %d: %w", orderID, err)
	}
	return items, nil
}

func (s *GormOrderService) UpdateItem(ctx context.Context, itemID uint, spec ItemSpec) (*models.OrderItem, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	var item models.OrderItem
	var total decimal.Decimal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, "order_item_id = ?", itemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrItemNotFound
			}
			return fmt.Errorf("load order item: %w", err)
		}
		if _, err := lockOrder(tx, item.OrderID); err != nil {
			return fmt.Errorf("lock order %d: %w", item.OrderID, err)
		}

		updated := spec.toItem(item.OrderID)
		updated.ID = item.ID
		res := tx.Model(&models.OrderItem{}).Where("order_item_id = ?", itemID).Updates(map[string]interface{}{
			"product_id": updated.ProductID,
			"quantity":   updated.Quantity,
			"unit_price": updated.UnitPrice,
			"line_total": updated.LineTotal,
		})
		if res.Error != nil {
			return fmt.Errorf("update order item: %w", res.Error)
		}
		// the row can vanish between the read and the parent lock
		if res.RowsAffected == 0 {
			return ErrItemNotFound
		}
		item = updated

		var err error
		total, err = recomputeTotal(tx, item.OrderID)
		return err
	})
	if err != nil {
		return nil, storeErr(err, "failed to update order item")
	}

	s.publish(ctx, newItemEvent(EventItemUpdated, &item, total))
	return &item, nil
}

func (s *GormOrderService) DeleteItem(ctx context.Context, itemID uint) error {
	var item models.OrderItem
	var total decimal.Decimal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, "order_item_id = ?", itemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrItemNotFound
			}
			return fmt.Errorf("load order item: %w", err)
		}
		if _, err := lockOrder(tx, item.OrderID); err != nil {
			return fmt.Errorf("lock order %d: %w", item.OrderID, err)
		}
		res := tx.Where("order_item_id = ?", itemID).Delete(&models.OrderItem{})
		if res.Error != nil {
			return fmt.Errorf("delete order item: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrItemNotFound
		}

		var err error
		total, err = recomputeTotal(tx, item.OrderID)
		return err
	})
	if err != nil {
		return storeErr(err, "failed to delete order item")
	}

	s.publish(ctx, newItemEvent(EventItemDeleted, &item, total))
	return nil
}

// lockOrder loads the order row and holds it for the rest of tx, so
// concurrent item mutations on one order recompute the total one at a time.
// sqlite ignores the locking clause; its writers are already serialized.
func lockOrder(tx *gorm.DB, orderID uint) (*models.Order, error) {
	var order models.Order
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, "order_id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// recomputeTotal sets the order total from a fresh aggregate over its items
func recomputeTotal(tx *gorm.DB, orderID uint) (decimal.Decimal, error) {
	var total decimal.Decimal
	row := tx.Model(&models.OrderItem{}).
		Select("COALESCE(SUM(line_total), 0)").
		Where("order_id = ?", orderID).
		Row()
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("sum line totals: %w", err)
	}
	total = models.RoundCurrency(total)

	if err := tx.Model(&models.Order{}).Where("order_id = ?", orderID).Update("total_amount", total).Error; err != nil {
		return decimal.Zero, fmt.Errorf("update order total: %w", err)
	}
	return total, nil
}

// storeErr passes StoreErrors through and wraps everything else
func storeErr(err error, msg string) error {
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func (s *GormOrderService) publish(ctx context.Context, event OrderEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("event", event.Type).Uint("order_id", event.OrderID).Msg("failed to publish order event")
	}
}

// ProductSummary aggregates the lines of one product inside an order
type ProductSummary struct {
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

// SummaryTotals holds the derived figures of an order summary
type SummaryTotals struct {
	TotalItems       int                     `json:"total_items"`
	TotalQuantity    int                     `json:"total_quantity"`
	TotalAmount      decimal.Decimal         `json:"total_amount"`
	AverageItemPrice decimal.Decimal         `json:"average_item_price"`
	ItemsByProduct   map[uint]ProductSummary `json:"items_by_product"`
}

// OrderSummary is an order with its items and derived figures
type OrderSummary struct {
	Order   models.Order       `json:"order"`
	Items   []models.OrderItem `json:"items"`
	Summary SummaryTotals      `json:"summary"`
}

// OrderSummary reads the order and its items from one transaction
func (s *GormOrderService) OrderSummary(ctx context.Context, orderID uint) (*OrderSummary, error) {
	summary := &OrderSummary{Items: []models.OrderItem{}}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&summary.Order, "order_id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		return tx.Where("order_id = ?", orderID).Order("order_item_id").Find(&summary.Items).Error
	})
	if err != nil {
		return nil, storeErr(err, "failed to load order summary")
	}

	summary.Summary = summarize(summary.Order, summary.Items)
	return summary, nil
}

func summarize(order models.Order, items []models.OrderItem) SummaryTotals {
	totals := SummaryTotals{
		TotalItems:       len(items),
		TotalAmount:      order.TotalAmount,
		AverageItemPrice: decimal.Zero,
		ItemsByProduct:   make(map[uint]ProductSummary),
	}
	for _, item := range items {
		totals.TotalQuantity += item.Quantity

		product, ok := totals.ItemsByProduct[item.ProductID]
		if !ok {
			product = ProductSummary{UnitPrice: item.UnitPrice, Total: decimal.Zero}
		}
		product.Quantity += item.Quantity
		product.Total = product.Total.Add(item.LineTotal)
		totals.ItemsByProduct[item.ProductID] = product
	}
	if totals.TotalQuantity > 0 {
		totals.AverageItemPrice = models.RoundCurrency(
			order.TotalAmount.Div(decimal.NewFromInt(int64(totals.TotalQuantity))))
	}
	return totals
}

// ProductStats aggregates one product across all orders
type ProductStats struct {
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// DateRange spans the earliest and latest order dates
type DateRange struct {
	EarliestOrder models.Date `json:"earliest_order"`
	LatestOrder   models.Date `json:"latest_order"`
}

// Stats describes the whole store
type Stats struct {
	TotalOrders       int                   `json:"total_orders"`
	TotalItems        int                   `json:"total_items"`
	TotalRevenue      decimal.Decimal       `json:"total_revenue"`
	AverageOrderValue decimal.Decimal       `json:"average_order_value"`
	UniqueCustomers   int                   `json:"unique_customers"`
	UniqueProducts    int                   `json:"unique_products"`
	CustomerIDs       []uint                `json:"customer_ids"`
	ProductStats      map[uint]ProductStats `json:"product_stats"`
	DateRange         *DateRange            `json:"date_range,omitempty"`
}

func (s *GormOrderService) Stats(ctx context.Context) (*Stats, error) {
	orders := []models.Order{}
	items := []models.OrderItem{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Order("order_id").Find(&orders).Error; err != nil {
			return err
		}
		return tx.Order("order_item_id").Find(&items).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load statistics: %w", err)
	}
	return computeStats(orders, items), nil
}

func computeStats(orders []models.Order, items []models.OrderItem) *Stats {
	stats := &Stats{
		TotalOrders:       len(orders),
		TotalItems:        len(items),
		TotalRevenue:      decimal.Zero,
		AverageOrderValue: decimal.Zero,
		CustomerIDs:       []uint{},
		ProductStats:      make(map[uint]ProductStats),
	}
	if len(orders) == 0 {
		return stats
	}

	customers := make(map[uint]struct{})
	dates := DateRange{EarliestOrder: orders[0].OrderDate, LatestOrder: orders[0].OrderDate}
	for _, order := range orders {
		stats.TotalRevenue = stats.TotalRevenue.Add(order.TotalAmount)
		customers[order.CustomerID] = struct{}{}
		if order.OrderDate.Before(dates.EarliestOrder) {
			dates.EarliestOrder = order.OrderDate
		}
		if dates.LatestOrder.Before(order.OrderDate) {
			dates.LatestOrder = order.OrderDate
		}
	}
	for _, item := range items {
		product, ok := stats.ProductStats[item.ProductID]
		if !ok {
			product.Revenue = decimal.Zero
		}
		product.Quantity += item.Quantity
		product.Revenue = product.Revenue.Add(item.LineTotal)
		stats.ProductStats[item.ProductID] = product
	}

	for id := range customers {
		stats.CustomerIDs = append(stats.CustomerIDs, id)
	}
	sort.Slice(stats.CustomerIDs, func(i, j int) bool { return stats.CustomerIDs[i] < stats.CustomerIDs[j] })

	stats.TotalRevenue = models.RoundCurrency(stats.TotalRevenue)
	stats.AverageOrderValue = models.RoundCurrency(stats.TotalRevenue.Div(decimal.NewFromInt(int64(len(orders)))))
	stats.UniqueCustomers = len(customers)
	stats.UniqueProducts = len(stats.ProductStats)
	stats.DateRange = &dates
	return stats
}
