package billing

import (
	"errors"
	"time"
)

// ComputationType enumerates how a charge head derives its amount.
type ComputationType string

const (
	ComputePerArea    ComputationType = "per_area"
	ComputeFixed      ComputationType = "fixed"
	ComputePercentage ComputationType = "percentage_of"
)

// LateFeeType enumerates late-fee rule kinds.
type LateFeeType string

const (
	LateFeeFixed      LateFeeType = "fixed"
	LateFeePercentage LateFeeType = "percentage"
)

// BillStatus enumerates the bill lifecycle. A bill is only ever created as
// pending and is never deleted afterwards.
type BillStatus string

const (
	BillStatusPending          BillStatus = "pending"
	BillStatusPendingClearance BillStatus = "pending_clearance"
	BillStatusPaid             BillStatus = "paid"
	BillStatusOverdue          BillStatus = "overdue"
)

// PaymentMethod enumerates accepted payment instruments.
type PaymentMethod string

const (
	MethodCash       PaymentMethod = "cash"
	MethodUPI        PaymentMethod = "upi"
	MethodCard       PaymentMethod = "card"
	MethodNetBanking PaymentMethod = "netbanking"
	MethodCheque     PaymentMethod = "cheque"
)

// ClearsImmediately reports whether a payment method settles at record time.
// Cheques clear later and keep the bill in pending_clearance until then.
func (m PaymentMethod) ClearsImmediately() bool {
	return m != MethodCheque
}

// PaymentStatus enumerates transaction states.
type PaymentStatus string

const (
	PaymentCleared          PaymentStatus = "cleared"
	PaymentPendingClearance PaymentStatus = "pending_clearance"
)

// ChargeHead is one named component of a society's bill. Heads are ordered;
// percentage_of heads resolve against amounts computed earlier in the list.
type ChargeHead struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	Type             ComputationType `json:"computationType"`
	Rate             float64         `json:"rate"`
	PercentageOf     string          `json:"percentageOf,omitempty"`
	NonOccupancyOnly bool            `json:"nonOccupancyOnly"`
	SinkingFund      bool            `json:"sinkingFund"`
	Active           bool            `json:"active"`
	Position         int             `json:"position"`
}

// LateFeeRule describes the optional penalty applied to overdue bills.
type LateFeeRule struct {
	Enabled   bool        `json:"enabled"`
	Amount    float64     `json:"amount"`
	Type      LateFeeType `json:"type"`
	GraceDays int         `json:"graceDays"`
}

// Config holds one society's billing rules. Exactly one exists per society;
// it is created lazily with DefaultChargeHeads on first read.
type Config struct {
	ID            int64        `json:"id"`
	SocietyID     int64        `json:"societyId"`
	ChargeHeads   []ChargeHead `json:"chargeHeads"`
	DefaultDueDay int          `json:"defaultDueDay"`
	LateFee       LateFeeRule  `json:"lateFee"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// DefaultDueDay is assigned when a config is lazily created.
const DefaultDueDay = 10

// DefaultChargeHeads returns the charge set a society starts with before an
// administrator configures billing.
func DefaultChargeHeads() []ChargeHead {
	return []ChargeHead{
		{Name: "Maintenance", Type: ComputePerArea, Rate: 5, Active: true, Position: 0},
		{Name: "Sinking Fund", Type: ComputePerArea, Rate: 1, SinkingFund: true, Active: true, Position: 1},
		{Name: "Water Charges", Type: ComputeFixed, Rate: 300, Active: true, Position: 2},
		{Name: "Parking", Type: ComputeFixed, Rate: 500, Active: true, Position: 3},
		{Name: "Non-Occupancy Charges", Type: ComputeFixed, Rate: 1000, NonOccupancyOnly: true, Active: true, Position: 4},
	}
}

// BreakdownLine is one itemised amount on a bill. Amounts are whole rupees;
// each line is rounded independently so the lines always sum to the total.
type BreakdownLine struct {
	ChargeName string `json:"chargeName"`
	Amount     int64  `json:"amount"`
}

// ResponsibleParty identifies who a bill is raised against.
type ResponsibleParty string

const (
	ResponsibleOwner    ResponsibleParty = "owner"
	ResponsibleOccupant ResponsibleParty = "occupant"
	ResponsibleNone     ResponsibleParty = "none"
)

// Bill is one unit's invoice for one billing period. (society, unit, period)
// is unique; duplicates are prevented both by the pre-computed skip set and
// by the storage constraint.
type Bill struct {
	ID               int64            `json:"id"`
	SocietyID        int64            `json:"societyId"`
	UnitID           int64            `json:"unitId"`
	BillingPeriod    string           `json:"billingPeriod"`
	DueDate          time.Time        `json:"dueDate"`
	Breakdown        []BreakdownLine  `json:"breakdown"`
	TotalAmount      int64            `json:"totalAmount"`
	Status           BillStatus       `json:"status"`
	ResponsibleParty ResponsibleParty `json:"responsibleParty"`
	ResidentID       *int64           `json:"residentId,omitempty"`
	LateFeeApplied   bool             `json:"lateFeeApplied"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// Transaction records one payment against one bill.
type Transaction struct {
	ID        int64         `json:"id"`
	BillID    int64         `json:"billId"`
	SocietyID int64         `json:"societyId"`
	Amount    int64         `json:"amount"`
	Method    PaymentMethod `json:"method"`
	Reference string        `json:"reference"`
	Status    PaymentStatus `json:"status"`
	PaidAt    time.Time     `json:"paidAt"`
	CreatedAt time.Time     `json:"createdAt"`
}

// GenerationSummary reports the outcome of a bulk generation run.
type GenerationSummary struct {
	Generated  int `json:"generated"`
	Skipped    int `json:"skipped"`
	TotalUnits int `json:"totalUnits"`
}

// Sentinel errors surfaced by the billing service.
var (
	ErrConfigurationMissing = errors.New("billing: no charge heads configured, set up billing configuration first")
	ErrNoUnitsFound         = errors.New("billing: no active units found for society")
	ErrBillNotFound         = errors.New("billing: bill not found")
	ErrBillExists           = errors.New("billing: bill already exists for this unit and period")
	ErrBillAlreadyPaid      = errors.New("billing: bill is already paid")
	ErrTransactionNotFound  = errors.New("billing: transaction not found")
	ErrNotPendingClearance  = errors.New("billing: transaction is not pending clearance")
)
