package pipeline

import (
	"time"

	"sales-insights/internal/models"
	"sales-insights/internal/store"
)

// enrichedHeader is an order header with its customer, territory, and geo
// dimensions already resolved. Left joins only: missing dimension rows leave
// zero-valued fields.
type enrichedHeader struct {
	SalesOrderID    int
	OrderDate       time.Time
	ShipDate        time.Time
	CustomerID      int
	PersonID        int
	TerritoryID     int
	TerritoryName   string
	OnlineOrderFlag bool
	TotalDue        float64
	City            string
	StateName       string
	CountryName     string
	PostalCode      string
}

// productDim is a product with its subcategory and category resolved.
type productDim struct {
	ProductID       int
	ProductName     string
	ProductNumber   string
	SubcategoryID   int
	SubcategoryName string
	CategoryID      int
	CategoryName    string
}

// Enrich denormalizes the sales core into the OrderLine fact table: one row
// per order detail row, dimensions joined many-to-one so the row count never
// changes.
func Enrich(core *store.SalesCore) []models.OrderLine {
	customers := make(map[int]store.Customer, len(core.Customers))
	for _, c := range core.Customers {
		customers[c.CustomerID] = c
	}
	territories := make(map[int]store.Territory, len(core.Territories))
	for _, t := range core.Territories {
		territories[t.TerritoryID] = t
	}
	addresses := make(map[int]store.Address, len(core.Addresses))
	for _, a := range core.Addresses {
		addresses[a.AddressID] = a
	}
	states := make(map[int]store.StateProvince, len(core.StateProvinces))
	for _, s := range core.StateProvinces {
		states[s.StateProvinceID] = s
	}
	countries := make(map[string]store.CountryRegion, len(core.CountryRegions))
	for _, c := range core.CountryRegions {
		countries[c.CountryRegionCode] = c
	}

	headers := make(map[int]enrichedHeader, len(core.Headers))
	for _, h := range core.Headers {
		eh := enrichedHeader{
			SalesOrderID:    h.SalesOrderID,
			OrderDate:       h.OrderDate,
			ShipDate:        h.ShipDate,
			CustomerID:      h.CustomerID,
			TerritoryID:     h.TerritoryID,
			OnlineOrderFlag: h.OnlineOrderFlag,
			TotalDue:        h.TotalDue,
		}
		if c, ok := customers[h.CustomerID]; ok {
			eh.PersonID = c.PersonID
		}
		if t, ok := territories[h.TerritoryID]; ok {
			eh.TerritoryName = t.Name
		}
		if a, ok := addresses[h.ShipToAddressID]; ok {
			eh.City = a.City
			eh.PostalCode = a.PostalCode
			if s, ok := states[a.StateProvinceID]; ok {
				eh.StateName = s.Name
				if c, ok := countries[s.CountryRegionCode]; ok {
					eh.CountryName = c.Name
				}
			}
		}
		headers[h.SalesOrderID] = eh
	}

	subcategories := make(map[int]store.Subcategory, len(core.Subcategories))
	for _, s := range core.Subcategories {
		subcategories[s.ProductSubcategoryID] = s
	}
	categories := make(map[int]store.Category, len(core.Categories))
	for _, c := range core.Categories {
		categories[c.ProductCategoryID] = c
	}
	products := make(map[int]productDim, len(core.Products))
	for _, p := range core.Products {
		dim := productDim{
			ProductID:     p.ProductID,
			ProductName:   p.Name,
			ProductNumber: p.ProductNumber,
			SubcategoryID: p.ProductSubcategoryID,
		}
		if s, ok := subcategories[p.ProductSubcategoryID]; ok {
			dim.SubcategoryName = s.Name
			dim.CategoryID = s.ProductCategoryID
			if c, ok := categories[s.ProductCategoryID]; ok {
				dim.CategoryName = c.Name
			}
		}
		products[p.ProductID] = dim
	}

	lines := make([]models.OrderLine, 0, len(core.Details))
	for _, d := range core.Details {
		line := models.OrderLine{
			SalesOrderID:       d.SalesOrderID,
			SalesOrderDetailID: d.SalesOrderDetailID,
			ProductID:          d.ProductID,
			OrderQty:           d.OrderQty,
			UnitPrice:          d.UnitPrice,
			UnitPriceDiscount:  d.UnitPriceDiscount,
			LineTotal:          d.LineTotal,
		}
		if p, ok := products[d.ProductID]; ok {
			line.ProductName = p.ProductName
			line.ProductNumber = p.ProductNumber
			line.SubcategoryID = p.SubcategoryID
			line.SubcategoryName = p.SubcategoryName
			line.CategoryID = p.CategoryID
			line.CategoryName = p.CategoryName
		}
		if h, ok := headers[d.SalesOrderID]; ok {
			line.OrderDate = h.OrderDate
			line.ShipDate = h.ShipDate
			line.CustomerID = h.CustomerID
			line.PersonID = h.PersonID
			line.TerritoryID = h.TerritoryID
			line.TerritoryName = h.TerritoryName
			line.OnlineOrderFlag = h.OnlineOrderFlag
			line.TotalDue = h.TotalDue
			line.City = h.City
			line.StateName = h.StateName
			line.CountryName = h.CountryName
			line.PostalCode = h.PostalCode
		}
		lines = append(lines, line)
	}
	return lines
}
