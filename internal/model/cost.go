package model

import "gorm.io/gorm"

// DefaultModelName is the fallback pricing row. It is seeded at startup and
// must always exist, so cost resolution never fails outright.
const DefaultModelName = "default"

// CostConfig maps a model name to its per-1K-token prices.
type CostConfig struct {
	gorm.Model
	ModelName        string  `gorm:"type:varchar(100);uniqueIndex;not null" json:"model_name"`
	InputPricePer1K  float64 `gorm:"default:0;not null" json:"input_price_per_1k"`
	OutputPricePer1K float64 `gorm:"default:0;not null" json:"output_price_per_1k"`
	OperationType    string  `gorm:"type:varchar(50);default:'completion';not null" json:"operation_type"`
	Active           bool    `gorm:"default:true;not null" json:"active"`
}
