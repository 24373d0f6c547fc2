package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aravali-saas/aravali/internal/platform/httpx"
	"github.com/aravali-saas/aravali/internal/units"
)

type billKey struct {
	societyID int64
	unitID    int64
	period    string
}

// memoryBillingRepo is an in-memory Repository for service tests.
type memoryBillingRepo struct {
	config      Config
	hasConfig   bool
	emptyConfig bool

	bills      map[billKey]*Bill
	txns       map[int64]*Transaction
	nextBillID int64
	nextTxnID  int64
}

func newMemoryBillingRepo() *memoryBillingRepo {
	return &memoryBillingRepo{
		bills: map[billKey]*Bill{},
		txns:  map[int64]*Transaction{},
	}
}

func (m *memoryBillingRepo) GetOrCreateConfig(ctx context.Context, societyID int64) (Config, error) {
	if m.emptyConfig {
		return Config{SocietyID: societyID, DefaultDueDay: DefaultDueDay}, nil
	}
	if !m.hasConfig {
		m.config = Config{
			ID:            1,
			SocietyID:     societyID,
			ChargeHeads:   DefaultChargeHeads(),
			DefaultDueDay: DefaultDueDay,
		}
		m.hasConfig = true
	}
	return m.config, nil
}

func (m *memoryBillingRepo) UpdateConfig(ctx context.Context, societyID int64, patch ConfigPatch) (Config, error) {
	cfg, err := m.GetOrCreateConfig(ctx, societyID)
	if err != nil {
		return Config{}, err
	}
	if patch.ChargeHeads != nil {
		cfg.ChargeHeads = patch.ChargeHeads
	}
	if patch.DefaultDueDay != nil {
		cfg.DefaultDueDay = *patch.DefaultDueDay
	}
	if patch.LateFee != nil {
		if patch.LateFee.Enabled != nil {
			cfg.LateFee.Enabled = *patch.LateFee.Enabled
		}
		if patch.LateFee.Amount != nil {
			cfg.LateFee.Amount = *patch.LateFee.Amount
		}
		if patch.LateFee.Type != nil {
			cfg.LateFee.Type = *patch.LateFee.Type
		}
		if patch.LateFee.GraceDays != nil {
			cfg.LateFee.GraceDays = *patch.LateFee.GraceDays
		}
	}
	m.config = cfg
	return cfg, nil
}

func (m *memoryBillingRepo) ListBilledUnitIDs(ctx context.Context, societyID int64, period string) (map[int64]struct{}, error) {
	billed := map[int64]struct{}{}
	for key := range m.bills {
		if key.societyID == societyID && key.period == period {
			billed[key.unitID] = struct{}{}
		}
	}
	return billed, nil
}

func (m *memoryBillingRepo) InsertBills(ctx context.Context, bills []Bill) (int, error) {
	inserted := 0
	for _, b := range bills {
		key := billKey{b.SocietyID, b.UnitID, b.BillingPeriod}
		if _, exists := m.bills[key]; exists {
			continue
		}
		m.nextBillID++
		b.ID = m.nextBillID
		stored := b
		m.bills[key] = &stored
		inserted++
	}
	return inserted, nil
}

func (m *memoryBillingRepo) GetBill(ctx context.Context, societyID, id int64) (Bill, error) {
	for _, b := range m.bills {
		if b.SocietyID == societyID && b.ID == id {
			return *b, nil
		}
	}
	return Bill{}, ErrBillNotFound
}

func (m *memoryBillingRepo) ListBills(ctx context.Context, societyID int64, filters BillFilters) ([]Bill, int, error) {
	var out []Bill
	for _, b := range m.bills {
		if b.SocietyID != societyID {
			continue
		}
		if filters.Period != "" && b.BillingPeriod != filters.Period {
			continue
		}
		if filters.Status != "" && b.Status != filters.Status {
			continue
		}
		if filters.UnitID != 0 && b.UnitID != filters.UnitID {
			continue
		}
		out = append(out, *b)
	}
	return out, len(out), nil
}

func (m *memoryBillingRepo) RecordPayment(ctx context.Context, txn Transaction, newStatus BillStatus) (Transaction, error) {
	var bill *Bill
	for _, b := range m.bills {
		if b.SocietyID == txn.SocietyID && b.ID == txn.BillID {
			bill = b
			break
		}
	}
	if bill == nil {
		return Transaction{}, ErrBillNotFound
	}
	if bill.Status == BillStatusPaid {
		return Transaction{}, ErrBillAlreadyPaid
	}
	m.nextTxnID++
	txn.ID = m.nextTxnID
	txn.CreatedAt = time.Now()
	m.txns[txn.ID] = &txn
	bill.Status = newStatus
	return txn, nil
}

func (m *memoryBillingRepo) ClearTransaction(ctx context.Context, societyID, txnID int64) error {
	txn, ok := m.txns[txnID]
	if !ok || txn.SocietyID != societyID {
		return ErrTransactionNotFound
	}
	if txn.Status != PaymentPendingClearance {
		return ErrNotPendingClearance
	}
	txn.Status = PaymentCleared
	for _, b := range m.bills {
		if b.ID == txn.BillID {
			b.Status = BillStatusPaid
		}
	}
	return nil
}

func (m *memoryBillingRepo) ListBillTransactions(ctx context.Context, societyID, billID int64) ([]Transaction, error) {
	var out []Transaction
	for _, t := range m.txns {
		if t.SocietyID == societyID && t.BillID == billID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memoryBillingRepo) ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]OverdueCandidate, error) {
	return nil, nil
}

func (m *memoryBillingRepo) MarkOverdue(ctx context.Context, billID int64, lateFee *BreakdownLine) error {
	return nil
}

type staticUnitSource struct {
	units []units.Unit
}

func (s *staticUnitSource) ListActive(ctx context.Context, societyID int64) ([]units.Unit, error) {
	var out []units.Unit
	for _, u := range s.units {
		if u.SocietyID == societyID {
			out = append(out, u)
		}
	}
	return out, nil
}

type capturingNotifier struct {
	notices []ReceiptNotice
}

func (c *capturingNotifier) PaymentRecorded(ctx context.Context, notice ReceiptNotice) error {
	c.notices = append(c.notices, notice)
	return nil
}

const testSocietyID = int64(7)

func ptrInt64(v int64) *int64 { return &v }

func testUnits() []units.Unit {
	return []units.Unit{
		{ID: 1, SocietyID: testSocietyID, Number: "A-101", AreaSqft: 1000, Occupancy: units.OccupancyOwnerOccupied, OwnerID: ptrInt64(11), Active: true},
		{ID: 2, SocietyID: testSocietyID, Number: "A-102", AreaSqft: 650, Occupancy: units.OccupancyRented, OccupantID: ptrInt64(22), Active: true},
		{ID: 3, SocietyID: testSocietyID, Number: "A-103", AreaSqft: 925, Occupancy: units.OccupancyVacant, Active: true},
	}
}

func newTestService(repo *memoryBillingRepo, src *staticUnitSource) *Service {
	return NewService(repo, src, nil, nil)
}

func generateInput() GenerateInput {
	return GenerateInput{
		BillingPeriod: "2026-08",
		DueDate:       time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestGenerateBillsCreatesOnePendingBillPerUnit(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := newTestService(repo, &staticUnitSource{units: testUnits()})

	summary, err := svc.GenerateBills(context.Background(), testSocietyID, generateInput())
	require.NoError(t, err)

	require.Equal(t, GenerationSummary{Generated: 3, Skipped: 0, TotalUnits: 3}, summary)

	bills, total, err := repo.ListBills(context.Background(), testSocietyID, BillFilters{Period: "2026-08"})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	for _, b := range bills {
		require.Equal(t, BillStatusPending, b.Status)
		require.Equal(t, "2026-08", b.BillingPeriod)
		require.NotEmpty(t, b.Breakdown)
	}
}

func TestGenerateBillsComputesPerUnitTotals(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := newTestService(repo, &staticUnitSource{units: testUnits()})

	_, err := svc.GenerateBills(context.Background(), testSocietyID, generateInput())
	require.NoError(t, err)

	byUnit := map[int64]Bill{}
	bills, _, _ := repo.ListBills(context.Background(), testSocietyID, BillFilters{})
	for _, b := range bills {
		byUnit[b.UnitID] = b
	}

	// Owner-occupied 1000 sqft: 5000 + 1000 + 300 + 500, no non-occupancy head.
	require.Equal(t, int64(6800), byUnit[1].TotalAmount)
	require.Equal(t, ResponsibleOwner, byUnit[1].ResponsibleParty)
	require.Equal(t, int64(11), *byUnit[1].ResidentID)

	// Rented 650 sqft: 3250 + 650 + 300 + 500 + 1000.
	require.Equal(t, int64(5700), byUnit[2].TotalAmount)
	require.Equal(t, ResponsibleOccupant, byUnit[2].ResponsibleParty)
	require.Equal(t, int64(22), *byUnit[2].ResidentID)

	// Vacant 925 sqft: 4625 + 925 + 300 + 500 + 1000. Nobody to bill.
	require.Equal(t, int64(7350), byUnit[3].TotalAmount)
	require.Equal(t, ResponsibleNone, byUnit[3].ResponsibleParty)
	require.Nil(t, byUnit[3].ResidentID)
}

func TestGenerateBillsIsIdempotentForAPeriod(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := newTestService(repo, &staticUnitSource{units: testUnits()})

	first, err := svc.GenerateBills(context.Background(), testSocietyID, generateInput())
	require.NoError(t, err)
	require.Equal(t, 3, first.Generated)

	second, err := svc.GenerateBills(context.Background(), testSocietyID, generateInput())
	require.NoError(t, err)
	require.Equal(t, GenerationSummary{Generated: 0, Skipped: 3, TotalUnits: 3}, second)

	_, total, _ := repo.ListBills(context.Background(), testSocietyID, BillFilters{Period: "2026-08"})
	require.Equal(t, 3, total, "re-running must not create duplicates")
}

func TestGenerateBillsPicksUpNewUnitsOnRerun(t *testing.T) {
	repo := newMemoryBillingRepo()
	src := &staticUnitSource{units: testUnits()}
	svc := newTestService(repo, src)

	_, err := svc.GenerateBills(context.Background(), testSocietyID, generateInput())
	require.NoError(t, err)

	src.units = append(src.units, units.Unit{
		ID: 4, SocietyID: testSocietyID, Number: "B-201", AreaSqft: 500,
		Occupancy: units.OccupancyOwnerOccupied, Active: true,
	})

	summary, err := svc.GenerateBills(context.Background(), testSocietyID, generateInput())
	require.NoError(t, err)
	require.Equal(t, GenerationSummary{Generated: 1, Skipped: 3, TotalUnits: 4}, summary)
}

func TestGenerateBillsSeparatePeriodsAreIndependent(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := newTestService(repo, &staticUnitSource{units: testUnits()})

	_, err := svc.GenerateBills(context.Background(), testSocietyID, generateInput())
	require.NoError(t, err)

	next, err := svc.GenerateBills(context.Background(), testSocietyID, GenerateInput{
		BillingPeriod: "2026-09",
		DueDate:       time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, 3, next.Generated)
}

func TestGenerateBillsRequiresConfiguration(t *testing.T) {
	repo := newMemoryBillingRepo()
	repo.emptyConfig = true
	svc := newTestService(repo, &staticUnitSource{units: testUnits()})

	_, err := svc.GenerateBills(context.Background(), testSocietyID, generateInput())
	require.ErrorIs(t, err, ErrConfigurationMissing)
}

func TestGenerateBillsRequiresUnits(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := newTestService(repo, &staticUnitSource{})

	_, err := svc.GenerateBills(context.Background(), testSocietyID, generateInput())
	require.ErrorIs(t, err, ErrNoUnitsFound)
}

func TestGenerateBillsValidatesInput(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := newTestService(repo, &staticUnitSource{units: testUnits()})

	_, err := svc.GenerateBills(context.Background(), testSocietyID, GenerateInput{DueDate: time.Now()})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.GenerateBills(context.Background(), testSocietyID, GenerateInput{BillingPeriod: "2026-08"})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestGenerateBillForUnit(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := newTestService(repo, &staticUnitSource{units: testUnits()})

	bill, err := svc.GenerateBillForUnit(context.Background(), testSocietyID, 1, generateInput())
	require.NoError(t, err)
	require.Equal(t, int64(6800), bill.TotalAmount)

	_, err = svc.GenerateBillForUnit(context.Background(), testSocietyID, 1, generateInput())
	require.ErrorIs(t, err, ErrBillExists)

	_, err = svc.GenerateBillForUnit(context.Background(), testSocietyID, 99, generateInput())
	require.ErrorIs(t, err, ErrNoUnitsFound)
}

func generateOneBill(t *testing.T, svc *Service) Bill {
	t.Helper()
	bill, err := svc.GenerateBillForUnit(context.Background(), testSocietyID, 1, generateInput())
	require.NoError(t, err)
	return bill
}

func TestRecordPaymentSettlesBill(t *testing.T) {
	repo := newMemoryBillingRepo()
	notifier := &capturingNotifier{}
	svc := NewService(repo, &staticUnitSource{units: testUnits()}, nil, notifier)
	bill := generateOneBill(t, svc)

	txn, err := svc.RecordPayment(context.Background(), testSocietyID, bill.ID, PaymentInput{
		Amount: bill.TotalAmount,
		Method: MethodUPI,
	})
	require.NoError(t, err)
	require.Equal(t, PaymentCleared, txn.Status)
	require.NotEmpty(t, txn.Reference, "reference defaults when omitted")
	require.False(t, txn.PaidAt.IsZero())

	stored, err := repo.GetBill(context.Background(), testSocietyID, bill.ID)
	require.NoError(t, err)
	require.Equal(t, BillStatusPaid, stored.Status)

	require.Len(t, notifier.notices, 1)
	require.Equal(t, bill.ID, notifier.notices[0].BillID)
	require.Equal(t, bill.TotalAmount, notifier.notices[0].Amount)
}

func TestRecordPaymentRejectsPaidBill(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := newTestService(repo, &staticUnitSource{units: testUnits()})
	bill := generateOneBill(t, svc)

	_, err := svc.RecordPayment(context.Background(), testSocietyID, bill.ID, PaymentInput{Amount: 100, Method: MethodCash})
	require.NoError(t, err)

	_, err = svc.RecordPayment(context.Background(), testSocietyID, bill.ID, PaymentInput{Amount: 100, Method: MethodCash})
	require.ErrorIs(t, err, ErrBillAlreadyPaid)
}

func TestRecordPaymentChequeAwaitsClearance(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := newTestService(repo, &staticUnitSource{units: testUnits()})
	bill := generateOneBill(t, svc)

	txn, err := svc.RecordPayment(context.Background(), testSocietyID, bill.ID, PaymentInput{
		Amount:    bill.TotalAmount,
		Method:    MethodCheque,
		Reference: "CHQ-001234",
	})
	require.NoError(t, err)
	require.Equal(t, PaymentPendingClearance, txn.Status)

	stored, err := repo.GetBill(context.Background(), testSocietyID, bill.ID)
	require.NoError(t, err)
	require.Equal(t, BillStatusPendingClearance, stored.Status)

	require.NoError(t, svc.ClearPayment(context.Background(), testSocietyID, txn.ID))

	stored, err = repo.GetBill(context.Background(), testSocietyID, bill.ID)
	require.NoError(t, err)
	require.Equal(t, BillStatusPaid, stored.Status)

	require.ErrorIs(t, svc.ClearPayment(context.Background(), testSocietyID, txn.ID), ErrNotPendingClearance)
}

func TestRecordPaymentValidatesInput(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := newTestService(repo, &staticUnitSource{units: testUnits()})
	bill := generateOneBill(t, svc)

	_, err := svc.RecordPayment(context.Background(), testSocietyID, bill.ID, PaymentInput{Amount: 0, Method: MethodCash})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.RecordPayment(context.Background(), testSocietyID, bill.ID, PaymentInput{Amount: 100, Method: "barter"})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestRecordPaymentUnknownBill(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := newTestService(repo, &staticUnitSource{units: testUnits()})

	_, err := svc.RecordPayment(context.Background(), testSocietyID, 404, PaymentInput{Amount: 100, Method: MethodCash})
	require.ErrorIs(t, err, ErrBillNotFound)
}

func TestUpdateConfigValidatesAndApplies(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := newTestService(repo, &staticUnitSource{units: testUnits()})

	_, err := svc.UpdateConfig(context.Background(), testSocietyID, ConfigPatch{
		ChargeHeads: []ChargeHead{
			{Name: "Cess", Type: ComputePercentage, Rate: 10, PercentageOf: "Nope", Active: true},
		},
	})
	require.ErrorIs(t, err, httpx.ErrValidation)

	dueDay := 5
	enabled := true
	amount := 150.0
	feeType := LateFeeFixed
	cfg, err := svc.UpdateConfig(context.Background(), testSocietyID, ConfigPatch{
		DefaultDueDay: &dueDay,
		LateFee:       &LateFeePatch{Enabled: &enabled, Amount: &amount, Type: &feeType},
	})
	require.NoError(t, err)
	require.Equal(t, 5, cfg.DefaultDueDay)
	require.True(t, cfg.LateFee.Enabled)
	require.Equal(t, 150.0, cfg.LateFee.Amount)
	require.Len(t, cfg.ChargeHeads, len(DefaultChargeHeads()), "omitted heads stay untouched")
}

func TestGetBillIncludesTransactions(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := newTestService(repo, &staticUnitSource{units: testUnits()})
	bill := generateOneBill(t, svc)

	_, err := svc.RecordPayment(context.Background(), testSocietyID, bill.ID, PaymentInput{Amount: 500, Method: MethodCash})
	require.NoError(t, err)

	got, err := svc.GetBill(context.Background(), testSocietyID, bill.ID)
	require.NoError(t, err)
	require.Equal(t, bill.ID, got.ID)
	require.Len(t, got.Transactions, 1)
}
