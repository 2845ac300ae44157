// Command datamanager exports, imports, backs up and seeds the orders store.
//
//	datamanager <export-json|export-sql|import-json|backup|info|seed> [file]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/iara-orders/orders-api/config"
	"github.com/iara-orders/orders-api/services"
	"github.com/iara-orders/orders-api/utils"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const usage = "Usage: datamanager [export-json|export-sql|import-json|backup|info|seed] [filename]"

var errUsage = errors.New(usage)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	config.InitLogger(cfg)

	if err := config.ConnectDatabase(cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	db := config.GetDB()
	if err := config.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	ctx := context.Background()
	storage, err := services.InitExportStorage(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize export storage")
	}

	m := &manager{
		db:      db,
		orders:  services.NewOrderService(db, nil),
		storage: storage,
		dbPath:  config.SQLitePath(cfg.DatabaseURL),
		out:     os.Stdout,
		now:     time.Now,
	}
	m.exports = services.NewExportService(m.orders, storage)

	if err := m.run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		log.Fatal().Err(err).Msg("datamanager failed")
	}
}

type manager struct {
	db      *gorm.DB
	orders  services.OrderService
	exports *services.ExportService
	storage services.ExportStorage
	dbPath  string
	out     io.Writer
	now     func() time.Time
}

func (m *manager) run(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	var file string
	if len(args) > 1 {
		file = args[1]
	}

	switch args[0] {
	case "export-json":
		return m.export(ctx, utils.ExportFormatJSON, file)
	case "export-sql":
		return m.export(ctx, utils.ExportFormatSQL, file)
	case "import-json":
		if file == "" {
			return fmt.Errorf("filename required for import: %w", errUsage)
		}
		return m.importJSON(ctx, file)
	case "backup":
		return m.backup(ctx)
	case "info":
		return m.info(ctx)
	case "seed":
		return m.seed(ctx)
	default:
		return fmt.Errorf("unknown command %q: %w", args[0], errUsage)
	}
}

// export writes to file when given, otherwise to export storage under the default name
func (m *manager) export(ctx context.Context, format, file string) error {
	content, err := m.exports.Render(ctx, format)
	if err != nil {
		return err
	}

	var location string
	if file != "" {
		if err := os.WriteFile(file, content, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", file, err)
		}
		location = file
	} else {
		location, err = m.storage.Save(ctx, utils.ExportFilename(format, m.now()), content)
		if err != nil {
			return err
		}
	}

	stats, err := m.orders.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Data exported to %s\n", location)
	fmt.Fprintf(m.out, "Exported %d orders with %d items\n", stats.TotalOrders, stats.TotalItems)
	return nil
}

func (m *manager) importJSON(ctx context.Context, file string) error {
	content, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}

	result, err := m.exports.ImportJSON(ctx, content)
	if err != nil {
		return err
	}

	fmt.Fprintln(m.out, "Import completed successfully:")
	fmt.Fprintf(m.out, "Imported %d orders\n", result.ImportedOrders)
	fmt.Fprintf(m.out, "Imported %d items\n", result.ImportedItems)
	for _, msg := range result.Errors {
		fmt.Fprintf(m.out, "Skipped: %s\n", msg)
	}
	return nil
}

func (m *manager) backup(ctx context.Context) error {
	location, err := services.BackupSQLite(ctx, m.db, m.storage, m.now())
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Database backed up to: %s\n", location)
	return nil
}

type databaseInfo struct {
	Status        string              `json:"status"`
	TotalOrders   int                 `json:"total_orders"`
	TotalItems    int                 `json:"total_items"`
	TotalRevenue  string              `json:"total_revenue,omitempty"`
	DateRange     *services.DateRange `json:"date_range,omitempty"`
	DatabaseFile  string              `json:"database_file"`
	CustomerCount int                 `json:"customer_count,omitempty"`
	ProductCount  int                 `json:"product_count,omitempty"`
}

func (m *manager) info(ctx context.Context) error {
	stats, err := m.orders.Stats(ctx)
	if err != nil {
		return err
	}

	info := databaseInfo{
		Status:       "empty",
		TotalOrders:  stats.TotalOrders,
		TotalItems:   stats.TotalItems,
		DatabaseFile: m.dbPath,
	}
	if stats.TotalOrders > 0 {
		info.Status = "active"
		info.TotalRevenue = stats.TotalRevenue.StringFixed(2)
		info.DateRange = stats.DateRange
		info.CustomerCount = stats.UniqueCustomers
		info.ProductCount = stats.UniqueProducts
	}

	fmt.Fprintln(m.out, "Database Information:")
	enc := json.NewEncoder(m.out)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}
