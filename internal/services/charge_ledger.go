package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/vitrine/internal/gateway"
	"github.com/example/vitrine/internal/models"
	"github.com/example/vitrine/internal/payment"
	"github.com/example/vitrine/internal/utils"
)

// ChargeFilter narrows a ledger listing. Empty fields match everything.
type ChargeFilter struct {
	Status string
	Flow   string
}

// ChargeLedger persists every charge the storefronts issue and its last known status.
type ChargeLedger struct {
	db *gorm.DB
}

func NewChargeLedger(db *gorm.DB) *ChargeLedger {
	return &ChargeLedger{db: db}
}

// ForFlow returns a recorder that tags rows with the storefront and flow.
func (l *ChargeLedger) ForFlow(storefrontID uuid.UUID, flow string) payment.Recorder {
	return &flowRecorder{ledger: l, storefrontID: storefrontID, flow: flow}
}

// List returns a page of charges, newest first, and the total matching count.
func (l *ChargeLedger) List(ctx context.Context, filter ChargeFilter, page utils.Pagination) ([]models.PixCharge, int64, error) {
	query := l.db.WithContext(ctx).Model(&models.PixCharge{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Flow != "" {
		query = query.Where("flow = ?", filter.Flow)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var charges []models.PixCharge
	if err := query.Order("created_at DESC").Offset(page.Offset).Limit(page.Limit).Find(&charges).Error; err != nil {
		return nil, 0, err
	}
	return charges, total, nil
}

// ChargeStats aggregates the ledger for the admin dashboard.
type ChargeStats struct {
	TotalCharges int64            `json:"total_charges"`
	ByStatus     map[string]int64 `json:"by_status"`
	PaidRevenue  decimal.Decimal  `json:"paid_revenue"`
	PaidToday    decimal.Decimal  `json:"paid_today"`
}

// Stats counts charges per status and sums paid amounts, overall and since
// midnight of now's day.
func (l *ChargeLedger) Stats(ctx context.Context, now time.Time) (ChargeStats, error) {
	db := l.db.WithContext(ctx)
	stats := ChargeStats{ByStatus: map[string]int64{}}

	if err := db.Model(&models.PixCharge{}).Count(&stats.TotalCharges).Error; err != nil {
		return ChargeStats{}, err
	}

	type statusCount struct {
		Status string
		Count  int64
	}
	var counts []statusCount
	if err := db.Model(&models.PixCharge{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&counts).Error; err != nil {
		return ChargeStats{}, err
	}
	for _, sc := range counts {
		stats.ByStatus[sc.Status] = sc.Count
	}

	if err := db.Model(&models.PixCharge{}).
		Where("paid_at IS NOT NULL").
		Select("COALESCE(SUM(amount), 0)").
		Scan(&stats.PaidRevenue).Error; err != nil {
		return ChargeStats{}, err
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := db.Model(&models.PixCharge{}).
		Where("paid_at >= ?", midnight).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&stats.PaidToday).Error; err != nil {
		return ChargeStats{}, err
	}

	return stats, nil
}

func (l *ChargeLedger) recordCreated(ctx context.Context, storefrontID uuid.UUID, flow string, charge payment.Charge) error {
	row := newChargeRow(storefrontID, flow, charge)
	return l.db.WithContext(ctx).Create(row).Error
}

func (l *ChargeLedger) recordStatus(ctx context.Context, chargeID string, status gateway.Status, at time.Time) error {
	updates := map[string]interface{}{
		"status":          string(status),
		"check_count":     gorm.Expr("check_count + 1"),
		"last_checked_at": at,
	}

	tx := l.db.WithContext(ctx).Model(&models.PixCharge{}).Where("charge_id = ?", chargeID)
	if status == gateway.StatusPaid {
		updates["paid_at"] = gorm.Expr("COALESCE(paid_at, ?)", at)
	}
	return tx.Updates(updates).Error
}

func newChargeRow(storefrontID uuid.UUID, flow string, charge payment.Charge) *models.PixCharge {
	row := &models.PixCharge{
		ChargeID:     charge.ID,
		StorefrontID: storefrontID,
		Flow:         flow,
		Description:  charge.Description,
		Amount:       charge.Amount,
		Status:       string(gateway.StatusCreated),
	}
	if len(charge.Metadata) > 0 {
		if data, err := json.Marshal(charge.Metadata); err == nil {
			row.Metadata = data
		}
	}
	return row
}

type flowRecorder struct {
	ledger       *ChargeLedger
	storefrontID uuid.UUID
	flow         string
}

func (r *flowRecorder) ChargeCreated(ctx context.Context, charge payment.Charge) error {
	return r.ledger.recordCreated(ctx, r.storefrontID, r.flow, charge)
}

func (r *flowRecorder) StatusChecked(ctx context.Context, chargeID string, status gateway.Status) error {
	return r.ledger.recordStatus(ctx, chargeID, status, time.Now())
}
