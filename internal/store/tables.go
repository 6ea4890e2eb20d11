package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Source table names as they are ingested into sqlite.
const (
	TableOrderHeader   = "sales_salesorderheader"
	TableOrderDetail   = "sales_salesorderdetail"
	TableCustomer      = "sales_customer"
	TableTerritory     = "sales_salesterritory"
	TableAddress       = "person_address"
	TableStateProvince = "person_stateprovince"
	TableCountryRegion = "person_countryregion"
	TableProduct       = "production_product"
	TableSubcategory   = "production_productsubcategory"
	TableCategory      = "production_productcategory"
)

type OrderHeader struct {
	SalesOrderID    int
	OrderDate       time.Time
	ShipDate        time.Time
	CustomerID      int
	TerritoryID     int
	ShipToAddressID int
	OnlineOrderFlag bool
	SubTotal        float64
	TaxAmt          float64
	Freight         float64
	TotalDue        float64
}

type OrderDetail struct {
	SalesOrderID       int
	SalesOrderDetailID int
	ProductID          int
	OrderQty           int
	UnitPrice          float64
	UnitPriceDiscount  float64
	LineTotal          float64
}

type Customer struct {
	CustomerID  int
	PersonID    int
	StoreID     int
	TerritoryID int
}

type Territory struct {
	TerritoryID int
	Name        string
}

type Address struct {
	AddressID       int
	City            string
	StateProvinceID int
	PostalCode      string
}

type StateProvince struct {
	StateProvinceID   int
	Name              string
	CountryRegionCode string
}

type CountryRegion struct {
	CountryRegionCode string
	Name              string
}

type Product struct {
	ProductID            int
	Name                 string
	ProductNumber        string
	ProductSubcategoryID int
	ListPrice            float64
	Color                string
}

type Subcategory struct {
	ProductSubcategoryID int
	ProductCategoryID    int
	Name                 string
}

type Category struct {
	ProductCategoryID int
	Name              string
}

// SalesCore bundles every source table the enrichment stage consumes.
type SalesCore struct {
	Headers        []OrderHeader
	Details        []OrderDetail
	Customers      []Customer
	Territories    []Territory
	Addresses      []Address
	StateProvinces []StateProvince
	CountryRegions []CountryRegion
	Products       []Product
	Subcategories  []Subcategory
	Categories     []Category
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseDate accepts the date formats the csv ingestion leaves behind in
// sqlite. Empty values map to the zero time.
func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date value %q", value)
}

func scanOrderHeader(rows *sql.Rows) (OrderHeader, error) {
	var (
		h                   OrderHeader
		orderDate, shipDate sql.NullString
		territoryID         sql.NullInt64
		shipToAddressID     sql.NullInt64
		onlineFlag          sql.NullInt64
	)
	err := rows.Scan(&h.SalesOrderID, &orderDate, &shipDate, &h.CustomerID,
		&territoryID, &shipToAddressID, &onlineFlag,
		&h.SubTotal, &h.TaxAmt, &h.Freight, &h.TotalDue)
	if err != nil {
		return OrderHeader{}, err
	}
	if h.OrderDate, err = parseDate(orderDate.String); err != nil {
		return OrderHeader{}, err
	}
	if h.ShipDate, err = parseDate(shipDate.String); err != nil {
		return OrderHeader{}, err
	}
	h.TerritoryID = int(territoryID.Int64)
	h.ShipToAddressID = int(shipToAddressID.Int64)
	h.OnlineOrderFlag = onlineFlag.Int64 != 0
	return h, nil
}

func scanOrderDetail(rows *sql.Rows) (OrderDetail, error) {
	var d OrderDetail
	err := rows.Scan(&d.SalesOrderID, &d.SalesOrderDetailID, &d.ProductID,
		&d.OrderQty, &d.UnitPrice, &d.UnitPriceDiscount, &d.LineTotal)
	return d, err
}

func scanCustomer(rows *sql.Rows) (Customer, error) {
	var (
		c                            Customer
		personID, storeID, territory sql.NullInt64
	)
	err := rows.Scan(&c.CustomerID, &personID, &storeID, &territory)
	c.PersonID = int(personID.Int64)
	c.StoreID = int(storeID.Int64)
	c.TerritoryID = int(territory.Int64)
	return c, err
}

func scanTerritory(rows *sql.Rows) (Territory, error) {
	var t Territory
	err := rows.Scan(&t.TerritoryID, &t.Name)
	return t, err
}

func scanAddress(rows *sql.Rows) (Address, error) {
	var (
		a          Address
		postalCode sql.NullString
	)
	err := rows.Scan(&a.AddressID, &a.City, &a.StateProvinceID, &postalCode)
	a.PostalCode = postalCode.String
	return a, err
}

func scanStateProvince(rows *sql.Rows) (StateProvince, error) {
	var s StateProvince
	err := rows.Scan(&s.StateProvinceID, &s.Name, &s.CountryRegionCode)
	return s, err
}

func scanCountryRegion(rows *sql.Rows) (CountryRegion, error) {
	var c CountryRegion
	err := rows.Scan(&c.CountryRegionCode, &c.Name)
	return c, err
}

func scanProduct(rows *sql.Rows) (Product, error) {
	var (
		p             Product
		subcategoryID sql.NullInt64
		color         sql.NullString
	)
	err := rows.Scan(&p.ProductID, &p.Name, &p.ProductNumber, &subcategoryID,
		&p.ListPrice, &color)
	p.ProductSubcategoryID = int(subcategoryID.Int64)
	p.Color = color.String
	return p, err
}

func scanSubcategory(rows *sql.Rows) (Subcategory, error) {
	var s Subcategory
	err := rows.Scan(&s.ProductSubcategoryID, &s.ProductCategoryID, &s.Name)
	return s, err
}

func scanCategory(rows *sql.Rows) (Category, error) {
	var c Category
	err := rows.Scan(&c.ProductCategoryID, &c.Name)
	return c, err
}

// tableQueries maps each table name to the projection the loader reads. The
// explicit column lists keep scans stable even when raw tables carry extra
// columns.
var tableQueries = map[string]string{
	TableOrderHeader:   "SELECT sales_order_id, order_date, ship_date, customer_id, territory_id, ship_to_address_id, online_order_flag, sub_total, tax_amt, freight, total_due FROM " + TableOrderHeader,
	TableOrderDetail:   "SELECT sales_order_id, sales_order_detail_id, product_id, order_qty, unit_price, unit_price_discount, line_total FROM " + TableOrderDetail,
	TableCustomer:      "SELECT customer_id, person_id, store_id, territory_id FROM " + TableCustomer,
	TableTerritory:     "SELECT territory_id, name FROM " + TableTerritory,
	TableAddress:       "SELECT address_id, city, state_province_id, postal_code FROM " + TableAddress,
	TableStateProvince: "SELECT state_province_id, name, country_region_code FROM " + TableStateProvince,
	TableCountryRegion: "SELECT country_region_code, name FROM " + TableCountryRegion,
	TableProduct:       "SELECT product_id, name, product_number, product_subcategory_id, list_price, color FROM " + TableProduct,
	TableSubcategory:   "SELECT product_subcategory_id, product_category_id, name FROM " + TableSubcategory,
	TableCategory:      "SELECT product_category_id, name FROM " + TableCategory,
}
