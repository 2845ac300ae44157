package main

import (
	"context"
	"fmt"

	"github.com/iara-orders/orders-api/models"
	"github.com/iara-orders/orders-api/services"
	"github.com/shopspring/decimal"
)

type sampleOrder struct {
	customerID uint
	date       models.Date
	items      []services.ItemSpec
}

func item(productID uint, quantity int, price string) services.ItemSpec {
	return services.ItemSpec{ProductID: productID, Quantity: quantity, UnitPrice: decimal.RequireFromString(price)}
}

var sampleOrders = []sampleOrder{
	{101, models.NewDate(2025, 8, 10), []services.ItemSpec{
		item(501, 2, "10.50"),
		item(502, 1, "25.00"),
	}},
	{102, models.NewDate(2025, 8, 11), []services.ItemSpec{
		item(503, 3, "15.75"),
		item(504, 1, "32.99"),
		item(505, 2, "8.50"),
	}},
	{103, models.NewDate(2025, 8, 12), []services.ItemSpec{
		item(506, 4, "12.25"),
		item(507, 1, "45.00"),
	}},
}

// seed creates the sample orders one item at a time so every total is
// built through recomputation
func (m *manager) seed(ctx context.Context) error {
	fmt.Fprintln(m.out, "Creating sample orders...")
	for _, sample := range sampleOrders {
		order, err := m.orders.CreateOrder(ctx, sample.customerID, sample.date)
		if err != nil {
			return err
		}
		fmt.Fprintf(m.out, "Created order %d for customer %d\n", order.ID, order.CustomerID)

		for _, spec := range sample.items {
			created, err := m.orders.CreateItem(ctx, order.ID, spec)
			if err != nil {
				return err
			}
			fmt.Fprintf(m.out, "Created order item %d: Product %d (qty: %d, price: $%s, total: $%s)\n",
				created.ID, created.ProductID, created.Quantity,
				created.UnitPrice.StringFixed(2), created.LineTotal.StringFixed(2))
		}

		updated, err := m.orders.GetOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(m.out, "Order %d: Customer %d, Total: $%s, Items: %d\n",
			updated.ID, updated.CustomerID, updated.TotalAmount.StringFixed(2), len(sample.items))
	}
	fmt.Fprintln(m.out, "Sample data created successfully!")
	return nil
}
