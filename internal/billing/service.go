package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aravali-saas/aravali/internal/platform/httpx"
	"github.com/aravali-saas/aravali/internal/shared"
	"github.com/aravali-saas/aravali/internal/units"
)

// UnitSource supplies the billable units of a society. Implemented by the
// units service.
type UnitSource interface {
	ListActive(ctx context.Context, societyID int64) ([]units.Unit, error)
}

// ReceiptNotice describes a recorded payment for downstream notification.
type ReceiptNotice struct {
	SocietyID     int64
	BillID        int64
	BillingPeriod string
	Amount        int64
	Method        PaymentMethod
	Reference     string
}

// Notifier publishes post-commit side effects. Failures are logged, never
// propagated; the payment has already committed.
type Notifier interface {
	PaymentRecorded(ctx context.Context, notice ReceiptNotice) error
}

// Service handles billing business logic.
type Service struct {
	repo     Repository
	unitSrc  UnitSource
	locks    *shared.PeriodLock
	notifier Notifier
}

// NewService builds Service instance. locks and notifier may be nil.
func NewService(repo Repository, unitSrc UnitSource, locks *shared.PeriodLock, notifier Notifier) *Service {
	return &Service{repo: repo, unitSrc: unitSrc, locks: locks, notifier: notifier}
}

// --- Configuration ---

// GetConfig returns the society's billing configuration, creating it with
// defaults on first read.
func (s *Service) GetConfig(ctx context.Context, societyID int64) (Config, error) {
	return s.repo.GetOrCreateConfig(ctx, societyID)
}

// UpdateConfig applies a partial configuration update. Provided charge heads
// replace the list wholesale and are validated here, including percentage
// cross-references, so a bad reference is rejected at save time.
func (s *Service) UpdateConfig(ctx context.Context, societyID int64, patch ConfigPatch) (Config, error) {
	if patch.ChargeHeads != nil {
		if err := ValidateChargeHeads(patch.ChargeHeads); err != nil {
			return Config{}, err
		}
	}
	if patch.DefaultDueDay != nil {
		if err := ValidateDueDay(*patch.DefaultDueDay); err != nil {
			return Config{}, err
		}
	}
	if patch.LateFee != nil {
		if err := validateLateFeePatch(*patch.LateFee); err != nil {
			return Config{}, err
		}
	}
	return s.repo.UpdateConfig(ctx, societyID, patch)
}

func validateLateFeePatch(patch LateFeePatch) error {
	if patch.Amount != nil && *patch.Amount < 0 {
		return fmt.Errorf("%w: late fee amount must be non-negative", httpx.ErrValidation)
	}
	if patch.Type != nil && *patch.Type != LateFeeFixed && *patch.Type != LateFeePercentage {
		return fmt.Errorf("%w: late fee type must be fixed or percentage", httpx.ErrValidation)
	}
	if patch.GraceDays != nil && *patch.GraceDays < 0 {
		return fmt.Errorf("%w: late fee grace days must be non-negative", httpx.ErrValidation)
	}
	return nil
}

// --- Generation ---

// GenerateInput names one bulk generation run.
type GenerateInput struct {
	BillingPeriod string
	DueDate       time.Time
}

// GenerateBills creates one pending bill per active unit that does not yet
// hold a bill for the period. All reads precede all writes: the config, unit
// list and already-billed set load up front, every breakdown is computed and
// staged, then the batch inserts in one transaction. Re-running the same
// period generates nothing.
func (s *Service) GenerateBills(ctx context.Context, societyID int64, input GenerateInput) (GenerationSummary, error) {
	period := strings.TrimSpace(input.BillingPeriod)
	if period == "" {
		return GenerationSummary{}, fmt.Errorf("%w: billing period required", httpx.ErrValidation)
	}
	if input.DueDate.IsZero() {
		return GenerationSummary{}, fmt.Errorf("%w: due date required", httpx.ErrValidation)
	}

	if s.locks != nil {
		// Best effort: the unique constraint on (society, unit, period) is
		// the backstop when redis is down or both callers slip through.
		release, _ := s.locks.Acquire(ctx, shared.GenerationLockKey(societyID, period))
		defer release()
	}

	var (
		cfg       Config
		unitList  []units.Unit
		billedSet map[int64]struct{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cfg, err = s.repo.GetOrCreateConfig(gctx, societyID)
		return err
	})
	g.Go(func() error {
		var err error
		unitList, err = s.unitSrc.ListActive(gctx, societyID)
		return err
	})
	g.Go(func() error {
		var err error
		billedSet, err = s.repo.ListBilledUnitIDs(gctx, societyID, period)
		return err
	})
	if err := g.Wait(); err != nil {
		return GenerationSummary{}, err
	}

	if len(cfg.ChargeHeads) == 0 {
		return GenerationSummary{}, ErrConfigurationMissing
	}
	if len(unitList) == 0 {
		return GenerationSummary{}, ErrNoUnitsFound
	}

	staged := make([]Bill, 0, len(unitList))
	for _, unit := range unitList {
		if _, done := billedSet[unit.ID]; done {
			continue
		}
		staged = append(staged, s.buildBill(unit, cfg.ChargeHeads, period, input.DueDate))
	}

	inserted := 0
	if len(staged) > 0 {
		var err error
		inserted, err = s.repo.InsertBills(ctx, staged)
		if err != nil {
			return GenerationSummary{}, err
		}
	}

	return GenerationSummary{
		Generated:  inserted,
		Skipped:    len(unitList) - inserted,
		TotalUnits: len(unitList),
	}, nil
}

// GenerateBillForUnit is the manual single-unit variant of GenerateBills.
func (s *Service) GenerateBillForUnit(ctx context.Context, societyID, unitID int64, input GenerateInput) (Bill, error) {
	period := strings.TrimSpace(input.BillingPeriod)
	if period == "" {
		return Bill{}, fmt.Errorf("%w: billing period required", httpx.ErrValidation)
	}
	if input.DueDate.IsZero() {
		return Bill{}, fmt.Errorf("%w: due date required", httpx.ErrValidation)
	}

	cfg, err := s.repo.GetOrCreateConfig(ctx, societyID)
	if err != nil {
		return Bill{}, err
	}
	if len(cfg.ChargeHeads) == 0 {
		return Bill{}, ErrConfigurationMissing
	}

	unitList, err := s.unitSrc.ListActive(ctx, societyID)
	if err != nil {
		return Bill{}, err
	}
	var target *units.Unit
	for i := range unitList {
		if unitList[i].ID == unitID {
			target = &unitList[i]
			break
		}
	}
	if target == nil {
		return Bill{}, ErrNoUnitsFound
	}

	bill := s.buildBill(*target, cfg.ChargeHeads, period, input.DueDate)
	inserted, err := s.repo.InsertBills(ctx, []Bill{bill})
	if err != nil {
		return Bill{}, err
	}
	if inserted == 0 {
		return Bill{}, ErrBillExists
	}

	bills, _, err := s.repo.ListBills(ctx, societyID, BillFilters{Period: period, UnitID: unitID, Limit: 1})
	if err != nil {
		return Bill{}, err
	}
	if len(bills) == 0 {
		return Bill{}, ErrBillNotFound
	}
	return bills[0], nil
}

func (s *Service) buildBill(unit units.Unit, heads []ChargeHead, period string, dueDate time.Time) Bill {
	breakdown, total := ComputeBreakdown(UnitProfile{
		AreaSqft:      unit.AreaSqft,
		OwnerOccupied: unit.Occupancy == units.OccupancyOwnerOccupied,
	}, heads)

	bill := Bill{
		SocietyID:        unit.SocietyID,
		UnitID:           unit.ID,
		BillingPeriod:    period,
		DueDate:          dueDate,
		Breakdown:        breakdown,
		TotalAmount:      total,
		Status:           BillStatusPending,
		ResponsibleParty: ResponsibleNone,
	}
	switch {
	case unit.OwnerID != nil:
		bill.ResponsibleParty = ResponsibleOwner
		bill.ResidentID = unit.OwnerID
	case unit.OccupantID != nil:
		bill.ResponsibleParty = ResponsibleOccupant
		bill.ResidentID = unit.OccupantID
	}
	return bill
}

// --- Reads ---

// BillWithTransactions pairs a bill with its payment history.
type BillWithTransactions struct {
	Bill
	Transactions []Transaction `json:"transactions"`
}

func (s *Service) ListBills(ctx context.Context, societyID int64, filters BillFilters) ([]Bill, int, error) {
	return s.repo.ListBills(ctx, societyID, filters)
}

func (s *Service) GetBill(ctx context.Context, societyID, id int64) (BillWithTransactions, error) {
	bill, err := s.repo.GetBill(ctx, societyID, id)
	if err != nil {
		return BillWithTransactions{}, err
	}
	txns, err := s.repo.ListBillTransactions(ctx, societyID, id)
	if err != nil {
		return BillWithTransactions{}, err
	}
	return BillWithTransactions{Bill: bill, Transactions: txns}, nil
}

// --- Payments ---

// PaymentInput describes one payment being recorded against a bill.
type PaymentInput struct {
	Amount    int64
	Method    PaymentMethod
	Reference string
	PaidAt    time.Time
}

// RecordPayment records one payment inside an atomic transaction. A paid bill
// rejects further payments. Immediate methods settle the bill; deferred ones
// (cheque) hold it in pending_clearance until ClearPayment.
func (s *Service) RecordPayment(ctx context.Context, societyID, billID int64, input PaymentInput) (Transaction, error) {
	if input.Amount <= 0 {
		return Transaction{}, fmt.Errorf("%w: payment amount must be positive", httpx.ErrValidation)
	}
	switch input.Method {
	case MethodCash, MethodUPI, MethodCard, MethodNetBanking, MethodCheque:
	default:
		return Transaction{}, fmt.Errorf("%w: unknown payment method %q", httpx.ErrValidation, input.Method)
	}
	if input.PaidAt.IsZero() {
		input.PaidAt = time.Now()
	}
	if input.Reference == "" {
		input.Reference = uuid.NewString()
	}

	txnStatus := PaymentCleared
	billStatus := BillStatusPaid
	if !input.Method.ClearsImmediately() {
		txnStatus = PaymentPendingClearance
		billStatus = BillStatusPendingClearance
	}

	txn, err := s.repo.RecordPayment(ctx, Transaction{
		BillID:    billID,
		SocietyID: societyID,
		Amount:    input.Amount,
		Method:    input.Method,
		Reference: input.Reference,
		Status:    txnStatus,
		PaidAt:    input.PaidAt,
	}, billStatus)
	if err != nil {
		return Transaction{}, err
	}

	if s.notifier != nil {
		bill, billErr := s.repo.GetBill(ctx, societyID, billID)
		period := ""
		if billErr == nil {
			period = bill.BillingPeriod
		}
		_ = s.notifier.PaymentRecorded(ctx, ReceiptNotice{
			SocietyID:     societyID,
			BillID:        billID,
			BillingPeriod: period,
			Amount:        txn.Amount,
			Method:        txn.Method,
			Reference:     txn.Reference,
		})
	}
	return txn, nil
}

// ClearPayment settles a pending_clearance transaction and marks its bill paid.
func (s *Service) ClearPayment(ctx context.Context, societyID, txnID int64) error {
	if txnID <= 0 {
		return fmt.Errorf("%w: invalid transaction id", httpx.ErrValidation)
	}
	return s.repo.ClearTransaction(ctx, societyID, txnID)
}
