package model

import "time"

// UsageMetric is one append-only audit row per billable call. Rows are never
// updated after insert; failed calls are recorded too but carry Success=false.
type UsageMetric struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"index;not null" json:"user_id"`
	RequestID    string    `gorm:"type:varchar(64);index" json:"request_id"`
	RequestType  string    `gorm:"type:varchar(50);not null" json:"request_type"`
	ResourceID   string    `gorm:"type:varchar(100)" json:"resource_id,omitempty"`
	Model        string    `gorm:"type:varchar(100);index" json:"model"`
	TokensIn     int64     `gorm:"default:0;not null" json:"tokens_in"`
	TokensOut    int64     `gorm:"default:0;not null" json:"tokens_out"`
	Cost         float64   `gorm:"default:0;not null" json:"cost"`
	DurationMS   int64     `gorm:"default:0" json:"duration_ms"`
	Endpoint     string    `gorm:"type:varchar(255)" json:"endpoint"`
	Success      bool      `gorm:"not null" json:"success"`
	ErrorMessage string    `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

// TotalTokens returns input plus output tokens.
func (m *UsageMetric) TotalTokens() int64 {
	return m.TokensIn + m.TokensOut
}
