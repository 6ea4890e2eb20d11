package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/errgroup"

	"sales-insights/internal/errors"
)

const maxConcurrentLoads = 4

// Open opens the source sqlite database in read-focused WAL mode.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open source database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	return db, nil
}

// TableCache memoizes loaded tables per process. It is owned by whoever
// constructs the Loader so tests can reset it between runs.
type TableCache struct {
	mu     sync.Mutex
	tables map[string]any
}

func NewTableCache() *TableCache {
	return &TableCache{tables: make(map[string]any)}
}

func (c *TableCache) get(name string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.tables[name]
	return v, ok
}

func (c *TableCache) put(name string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[name] = v
}

// Reset drops every memoized table.
func (c *TableCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables = make(map[string]any)
}

// Loader reads source tables by name, memoizing every load in the injected
// cache so repeated reads within a process never touch sqlite again.
type Loader struct {
	db     *sql.DB
	cache  *TableCache
	logger *slog.Logger
}

func NewLoader(db *sql.DB, cache *TableCache, logger *slog.Logger) *Loader {
	if cache == nil {
		cache = NewTableCache()
	}
	return &Loader{db: db, cache: cache, logger: logger}
}

func (l *Loader) tableExists(ctx context.Context, name string) (bool, error) {
	var found string
	err := l.db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// loadTable runs the registered query for a table and scans every row. A
// missing table is a MissingData failure; retrying is the caller's business.
func loadTable[T any](ctx context.Context, l *Loader, name string, scan func(*sql.Rows) (T, error)) ([]T, error) {
	if cached, ok := l.cache.get(name); ok {
		return cached.([]T), nil
	}

	exists, err := l.tableExists(ctx, name)
	if err != nil {
		return nil, errors.InternalWrap(err, fmt.Sprintf("probe table %s", name))
	}
	if !exists {
		return nil, errors.MissingData(fmt.Sprintf("required source table %s does not exist", name))
	}

	query, ok := tableQueries[name]
	if !ok {
		return nil, errors.MissingData(fmt.Sprintf("unknown table %s", name))
	}

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.InternalWrap(err, fmt.Sprintf("query table %s", name))
	}
	defer rows.Close()

	var result []T
	for rows.Next() {
		record, err := scan(rows)
		if err != nil {
			return nil, errors.InternalWrap(err, fmt.Sprintf("scan row of %s", name))
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.InternalWrap(err, fmt.Sprintf("read table %s", name))
	}

	l.cache.put(name, result)
	if l.logger != nil {
		l.logger.Debug("table loaded", "table", name, "rows", len(result))
	}
	return result, nil
}

func (l *Loader) OrderHeaders(ctx context.Context) ([]OrderHeader, error) {
	return loadTable(ctx, l, TableOrderHeader, scanOrderHeader)
}

func (l *Loader) OrderDetails(ctx context.Context) ([]OrderDetail, error) {
	return loadTable(ctx, l, TableOrderDetail, scanOrderDetail)
}

func (l *Loader) Customers(ctx context.Context) ([]Customer, error) {
	return loadTable(ctx, l, TableCustomer, scanCustomer)
}

func (l *Loader) Territories(ctx context.Context) ([]Territory, error) {
	return loadTable(ctx, l, TableTerritory, scanTerritory)
}

func (l *Loader) Addresses(ctx context.Context) ([]Address, error) {
	return loadTable(ctx, l, TableAddress, scanAddress)
}

func (l *Loader) StateProvinces(ctx context.Context) ([]StateProvince, error) {
	return loadTable(ctx, l, TableStateProvince, scanStateProvince)
}

func (l *Loader) CountryRegions(ctx context.Context) ([]CountryRegion, error) {
	return loadTable(ctx, l, TableCountryRegion, scanCountryRegion)
}

func (l *Loader) Products(ctx context.Context) ([]Product, error) {
	return loadTable(ctx, l, TableProduct, scanProduct)
}

func (l *Loader) Subcategories(ctx context.Context) ([]Subcategory, error) {
	return loadTable(ctx, l, TableSubcategory, scanSubcategory)
}

func (l *Loader) Categories(ctx context.Context) ([]Category, error) {
	return loadTable(ctx, l, TableCategory, scanCategory)
}

// LoadSalesCore loads every fact and dimension table the enrichment stage
// needs, a few tables at a time.
func (l *Loader) LoadSalesCore(ctx context.Context) (*SalesCore, error) {
	core := &SalesCore{}

	var group errgroup.Group
	group.SetLimit(maxConcurrentLoads)

	group.Go(func() (err error) { core.Headers, err = l.OrderHeaders(ctx); return })
	group.Go(func() (err error) { core.Details, err = l.OrderDetails(ctx); return })
	group.Go(func() (err error) { core.Customers, err = l.Customers(ctx); return })
	group.Go(func() (err error) { core.Territories, err = l.Territories(ctx); return })
	group.Go(func() (err error) { core.Addresses, err = l.Addresses(ctx); return })
	group.Go(func() (err error) { core.StateProvinces, err = l.StateProvinces(ctx); return })
	group.Go(func() (err error) { core.CountryRegions, err = l.CountryRegions(ctx); return })
	group.Go(func() (err error) { core.Products, err = l.Products(ctx); return })
	group.Go(func() (err error) { core.Subcategories, err = l.Subcategories(ctx); return })
	group.Go(func() (err error) { core.Categories, err = l.Categories(ctx); return })

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return core, nil
}
