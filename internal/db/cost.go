package db

import (
	"fmt"

	"aigateway/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetCostConfig returns the active pricing row for an exact model name.
// Callers fall back to model.DefaultModelName on ErrNotFound.
func (s *service) GetCostConfig(modelName string) (*model.CostConfig, error) {
	var cfg model.CostConfig
	err := s.db.Where("model_name = ? AND active = ?", modelName, true).First(&cfg).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &cfg, nil
}

// defaultCostConfigs is the pricing seed. The "default" row is the invariant
// fallback; the rest are convenience rows that admins can overwrite.
var defaultCostConfigs = []model.CostConfig{
	{ModelName: model.DefaultModelName, InputPricePer1K: 0.001, OutputPricePer1K: 0.002, OperationType: "completion", Active: true},
	{ModelName: "gpt-4o", InputPricePer1K: 0.0025, OutputPricePer1K: 0.01, OperationType: "completion", Active: true},
	{ModelName: "gpt-4o-mini", InputPricePer1K: 0.00015, OutputPricePer1K: 0.0006, OperationType: "completion", Active: true},
	{ModelName: "claude-sonnet-4-20250514", InputPricePer1K: 0.003, OutputPricePer1K: 0.015, OperationType: "completion", Active: true},
	{ModelName: "gemini-2.0-flash", InputPricePer1K: 0.0001, OutputPricePer1K: 0.0004, OperationType: "completion", Active: true},
}

// SeedDefaultCostConfigs inserts the seed rows if they are missing. Existing
// rows are left untouched so operator overrides survive restarts.
func (s *service) SeedDefaultCostConfigs() error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, cfg := range defaultCostConfigs {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "model_name"}},
				DoNothing: true,
			}).Create(&cfg).Error
			if err != nil {
				return fmt.Errorf("failed to seed cost config %s: %w", cfg.ModelName, err)
			}
		}
		return nil
	})
}
