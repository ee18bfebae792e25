package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PixCharge is the ledger row of one Pix charge issued to a storefront.
type PixCharge struct {
	BaseModel
	ChargeID      string          `gorm:"column:charge_id;uniqueIndex" json:"charge_id"`
	StorefrontID  uuid.UUID       `gorm:"type:uuid;index" json:"storefront_id"`
	Flow          string          `gorm:"index" json:"flow"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `gorm:"type:numeric(12,2)" json:"amount"`
	Metadata      json.RawMessage `gorm:"type:jsonb" json:"metadata"`
	Status        string          `gorm:"index" json:"status"`
	CheckCount    int             `json:"check_count"`
	LastCheckedAt *time.Time      `json:"last_checked_at"`
	PaidAt        *time.Time      `json:"paid_at"`
}
