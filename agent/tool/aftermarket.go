package tool

import (
	"math"

	dealx "github.com/forrest321/aifi/agent/deal"
)

// AftermarketOption is one tier of the protection package menu.
type AftermarketOption struct {
	Name          string   `json:"name"`
	Cost          float64  `json:"cost"`
	Includes      []string `json:"includes"`
	MonthlyImpact string   `json:"monthly_impact"`
}

// AftermarketMenu is the 3-tier offer for one deal, priced off the vehicle.
type AftermarketMenu struct {
	DealNumber  string                       `json:"deal_number"`
	VehicleInfo string                       `json:"vehicle_info"`
	SalePrice   float64                      `json:"sale_price"`
	Options     map[string]AftermarketOption `json:"options"`
}

// AftermarketOptions builds the protection package menu for a deal. Pricing
// scales with the vehicle sale price tier.
func AftermarketOptions(d *dealx.Deal) AftermarketMenu {
	multiplier := 1.0
	switch {
	case d.SalePrice > 60000:
		multiplier = 1.5
	case d.SalePrice > 40000:
		multiplier = 1.2
	case d.SalePrice < 25000:
		multiplier = 0.8
	}

	return AftermarketMenu{
		DealNumber:  d.DealNumber,
		VehicleInfo: d.Vehicle,
		SalePrice:   d.SalePrice,
		Options: map[string]AftermarketOption{
			"option1": {
				Name: "Premium Protection Package",
				Cost: math.Round(3000 * multiplier),
				Includes: []string{
					"Extended Warranty (7yr/100k)",
					"Maintenance Plan (5yr)",
					"Tire Protection",
					"Theft Protection",
					"Paint Protection",
				},
				MonthlyImpact: "Approximately $50-60/month",
			},
			"option2": {
				Name: "Standard Protection Package",
				Cost: math.Round(2000 * multiplier),
				Includes: []string{
					"Extended Warranty (5yr/75k)",
					"Maintenance Plan (3yr)",
					"Tire Protection",
				},
				MonthlyImpact: "Approximately $30-40/month",
			},
			"option3": {
				Name: "Basic Protection Package",
				Cost: math.Round(1000 * multiplier),
				Includes: []string{
					"Extended Warranty (3yr/50k)",
					"Basic Maintenance Plan (2yr)",
				},
				MonthlyImpact: "Approximately $15-25/month",
			},
		},
	}
}
