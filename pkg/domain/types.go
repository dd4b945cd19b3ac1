package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

type UserRole string

const (
	RoleAdmin    UserRole = "admin"
	RoleSupplier UserRole = "supplier"
	RoleBuyer    UserRole = "buyer"
)

// User is the session record returned by the login endpoint and persisted
// locally between runs. Access is the short-lived bearer credential,
// Refresh the long-lived one.
type User struct {
	ID       int64    `json:"id,omitempty"`
	Username string   `json:"username,omitempty"`
	Email    string   `json:"email,omitempty"`
	Role     UserRole `json:"role,omitempty"`
	Access   string   `json:"access"`
	Refresh  string   `json:"refresh"`
}

// Decimal carries backend decimal fields. Serializer-backed endpoints emit
// them as JSON strings ("12.50"), the pricing views as bare numbers; both
// decode into the raw textual form so values round-trip unchanged.
type Decimal string

func (d *Decimal) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*d = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*d = Decimal(v)
		return nil
	}
	*d = Decimal(s)
	return nil
}

func (d Decimal) MarshalJSON() ([]byte, error) {
	if d == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(d))
}

// Float64 parses the decimal for display math. Empty decimals parse to 0.
func (d Decimal) Float64() (float64, error) {
	if d == "" {
		return 0, nil
	}
	return strconv.ParseFloat(string(d), 64)
}

// Product is a catalog entry. ID is server-assigned and immutable.
// OptimizedPrice and DemandForecast are computed server side and only
// present on records that have a pricing-optimization row.
type Product struct {
	ID               int64    `json:"id,omitempty"`
	Name             string   `json:"name"`
	Category         string   `json:"category"`
	CostPrice        Decimal  `json:"cost_price"`
	SellingPrice     Decimal  `json:"selling_price"`
	Description      string   `json:"description"`
	StockAvailable   int      `json:"stock_available"`
	UnitsSold        int      `json:"units_sold"`
	CustomerRating   *float64 `json:"customer_rating,omitempty"`
	OptimizedPrice   *float64 `json:"optimized_price,omitempty"`
	DemandForecast   *float64 `json:"demand_forecast,omitempty"`
	CreateTimestamp  string   `json:"create_timestamp,omitempty"`
	UpdatedTimestamp string   `json:"updated_timestamp,omitempty"`
}

// ForecastRow is one record of the demand-forecast response.
type ForecastRow struct {
	ProductName      string  `json:"product_name"`
	Category         string  `json:"product_category"`
	CostPrice        float64 `json:"product_cost_price"`
	SellingPrice     float64 `json:"product_selling_price"`
	AvailableStock   int     `json:"product_available_stock"`
	UnitsSold        int     `json:"product_units_sold"`
	ProductAddedYear int     `json:"product_added_year"`
	DemandForecast   float64 `json:"demand_forecast"`
}

// Collection selects which product collection an operation targets.
type Collection string

const (
	CollectionProducts Collection = "products"
	CollectionPricing  Collection = "pricing"
)
