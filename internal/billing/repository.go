package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aravali-saas/aravali/internal/platform/db"
)

// ConfigPatch carries a partial config update. Nil fields are left unchanged;
// late-fee sub-fields are merged individually rather than replaced wholesale.
type ConfigPatch struct {
	ChargeHeads   []ChargeHead
	DefaultDueDay *int
	LateFee       *LateFeePatch
}

// LateFeePatch mirrors LateFeeRule with optional fields.
type LateFeePatch struct {
	Enabled   *bool        `json:"enabled"`
	Amount    *float64     `json:"amount"`
	Type      *LateFeeType `json:"type"`
	GraceDays *int         `json:"graceDays"`
}

// BillFilters narrows bill listings.
type BillFilters struct {
	Period string
	Status BillStatus
	UnitID int64
	Page   int
	Limit  int
}

// OverdueCandidate pairs a past-due pending bill with its society's late-fee
// rule, for the overdue scan job.
type OverdueCandidate struct {
	Bill    Bill
	LateFee LateFeeRule
}

// Repository defines data access for billing.
type Repository interface {
	GetOrCreateConfig(ctx context.Context, societyID int64) (Config, error)
	UpdateConfig(ctx context.Context, societyID int64, patch ConfigPatch) (Config, error)

	ListBilledUnitIDs(ctx context.Context, societyID int64, period string) (map[int64]struct{}, error)
	InsertBills(ctx context.Context, bills []Bill) (int, error)
	GetBill(ctx context.Context, societyID, id int64) (Bill, error)
	ListBills(ctx context.Context, societyID int64, filters BillFilters) ([]Bill, int, error)

	RecordPayment(ctx context.Context, txn Transaction, newStatus BillStatus) (Transaction, error)
	ClearTransaction(ctx context.Context, societyID, txnID int64) error
	ListBillTransactions(ctx context.Context, societyID, billID int64) ([]Transaction, error)

	ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]OverdueCandidate, error)
	MarkOverdue(ctx context.Context, billID int64, lateFee *BreakdownLine) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// --- Configuration ---

// GetOrCreateConfig returns the society's billing config, creating it with the
// default charge set on first read. Creation races resolve on the unique
// society_id constraint: the loser re-reads the winner's row.
func (r *repository) GetOrCreateConfig(ctx context.Context, societyID int64) (Config, error) {
	cfg, err := r.getConfig(ctx, societyID)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Config{}, err
	}

	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		now := time.Now()
		var configID int64
		insertErr := tx.QueryRow(ctx, `
			INSERT INTO billing_configs (society_id, default_due_day, late_fee_enabled, late_fee_amount, late_fee_type, late_fee_grace_days, created_at, updated_at)
			VALUES ($1, $2, FALSE, 0, 'fixed', 0, $3, $3)
			ON CONFLICT (society_id) DO NOTHING
			RETURNING id`,
			societyID, DefaultDueDay, now,
		).Scan(&configID)
		if errors.Is(insertErr, pgx.ErrNoRows) {
			// Concurrent creation won; nothing to seed.
			return nil
		}
		if insertErr != nil {
			return insertErr
		}
		return insertChargeHeads(ctx, tx, configID, DefaultChargeHeads())
	})
	if err != nil {
		return Config{}, err
	}

	return r.getConfig(ctx, societyID)
}

// UpdateConfig applies a partial update. The charge-head list, when provided,
// replaces the stored list wholesale.
func (r *repository) UpdateConfig(ctx context.Context, societyID int64, patch ConfigPatch) (Config, error) {
	current, err := r.GetOrCreateConfig(ctx, societyID)
	if err != nil {
		return Config{}, err
	}

	dueDay := current.DefaultDueDay
	if patch.DefaultDueDay != nil {
		dueDay = *patch.DefaultDueDay
	}
	lateFee := current.LateFee
	if patch.LateFee != nil {
		if patch.LateFee.Enabled != nil {
			lateFee.Enabled = *patch.LateFee.Enabled
		}
		if patch.LateFee.Amount != nil {
			lateFee.Amount = *patch.LateFee.Amount
		}
		if patch.LateFee.Type != nil {
			lateFee.Type = *patch.LateFee.Type
		}
		if patch.LateFee.GraceDays != nil {
			lateFee.GraceDays = *patch.LateFee.GraceDays
		}
	}

	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE billing_configs
			SET default_due_day = $2, late_fee_enabled = $3, late_fee_amount = $4, late_fee_type = $5, late_fee_grace_days = $6, updated_at = $7
			WHERE id = $1`,
			current.ID, dueDay, lateFee.Enabled, lateFee.Amount, string(lateFee.Type), lateFee.GraceDays, time.Now())
		if err != nil {
			return err
		}
		if patch.ChargeHeads == nil {
			return nil
		}
		if _, err := tx.Exec(ctx, `DELETE FROM charge_heads WHERE config_id = $1`, current.ID); err != nil {
			return err
		}
		return insertChargeHeads(ctx, tx, current.ID, patch.ChargeHeads)
	})
	if err != nil {
		return Config{}, err
	}

	return r.getConfig(ctx, societyID)
}

func (r *repository) getConfig(ctx context.Context, societyID int64) (Config, error) {
	var cfg Config
	var lateFeeType string
	err := r.pool.QueryRow(ctx, `
		SELECT id, society_id, default_due_day, late_fee_enabled, late_fee_amount, late_fee_type, late_fee_grace_days, created_at, updated_at
		FROM billing_configs WHERE society_id = $1`, societyID,
	).Scan(&cfg.ID, &cfg.SocietyID, &cfg.DefaultDueDay,
		&cfg.LateFee.Enabled, &cfg.LateFee.Amount, &lateFeeType, &cfg.LateFee.GraceDays,
		&cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		return Config{}, err
	}
	cfg.LateFee.Type = LateFeeType(lateFeeType)

	rows, err := r.pool.Query(ctx, `
		SELECT id, name, computation_type, rate, COALESCE(percentage_of, ''), non_occupancy_only, sinking_fund, active, position
		FROM charge_heads WHERE config_id = $1 ORDER BY position`, cfg.ID)
	if err != nil {
		return Config{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var h ChargeHead
		var ctype string
		if err := rows.Scan(&h.ID, &h.Name, &ctype, &h.Rate, &h.PercentageOf,
			&h.NonOccupancyOnly, &h.SinkingFund, &h.Active, &h.Position); err != nil {
			return Config{}, err
		}
		h.Type = ComputationType(ctype)
		cfg.ChargeHeads = append(cfg.ChargeHeads, h)
	}
	return cfg, rows.Err()
}

func insertChargeHeads(ctx context.Context, tx pgx.Tx, configID int64, heads []ChargeHead) error {
	for i, h := range heads {
		var pctOf pgtype.Text
		if h.PercentageOf != "" {
			pctOf = pgtype.Text{String: h.PercentageOf, Valid: true}
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO charge_heads (config_id, position, name, computation_type, rate, percentage_of, non_occupancy_only, sinking_fund, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			configID, i, h.Name, string(h.Type), h.Rate, pctOf, h.NonOccupancyOnly, h.SinkingFund, h.Active)
		if err != nil {
			return err
		}
	}
	return nil
}

// --- Bills ---

// ListBilledUnitIDs returns the units that already hold a bill for the exact
// period string. Fetched once per generation run, not per unit.
func (r *repository) ListBilledUnitIDs(ctx context.Context, societyID int64, period string) (map[int64]struct{}, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT unit_id FROM bills WHERE society_id = $1 AND billing_period = $2`, societyID, period)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	billed := make(map[int64]struct{})
	for rows.Next() {
		var unitID int64
		if err := rows.Scan(&unitID); err != nil {
			return nil, err
		}
		billed[unitID] = struct{}{}
	}
	return billed, rows.Err()
}

// InsertBills stages the whole batch inside one transaction. Rows that
// collide on (society, unit, period) are dropped by ON CONFLICT DO NOTHING
// and not counted, which is how concurrent generation runs of the same period
// resolve without duplicate bills.
func (r *repository) InsertBills(ctx context.Context, bills []Bill) (int, error) {
	inserted := 0
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		now := time.Now()
		for _, b := range bills {
			breakdown, err := json.Marshal(b.Breakdown)
			if err != nil {
				return fmt.Errorf("billing: marshal breakdown: %w", err)
			}
			tag, err := tx.Exec(ctx, `
				INSERT INTO bills (society_id, unit_id, billing_period, due_date, breakdown, total_amount, status, responsible_party, resident_id, late_fee_applied, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, $10, $10)
				ON CONFLICT (society_id, unit_id, billing_period) DO NOTHING`,
				b.SocietyID, b.UnitID, b.BillingPeriod, b.DueDate, breakdown,
				b.TotalAmount, string(b.Status), string(b.ResponsibleParty),
				int8OrNull(b.ResidentID), now)
			if err != nil {
				return err
			}
			inserted += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

const billColumns = `id, society_id, unit_id, billing_period, due_date, breakdown, total_amount, status, responsible_party, resident_id, late_fee_applied, created_at, updated_at`

func (r *repository) GetBill(ctx context.Context, societyID, id int64) (Bill, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+billColumns+` FROM bills WHERE society_id = $1 AND id = $2`, societyID, id)
	b, err := scanBill(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Bill{}, ErrBillNotFound
	}
	return b, err
}

func (r *repository) ListBills(ctx context.Context, societyID int64, filters BillFilters) ([]Bill, int, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE society_id = $1`
	countQuery := `SELECT COUNT(*) FROM bills WHERE society_id = $1`
	args := []any{societyID}
	countArgs := []any{societyID}
	argCount := 1

	appendFilter := func(clause string, value any) {
		argCount++
		placeholder := "$" + strconv.Itoa(argCount)
		query += " AND " + clause + " " + placeholder
		countQuery += " AND " + clause + " " + placeholder
		args = append(args, value)
		countArgs = append(countArgs, value)
	}
	if filters.Period != "" {
		appendFilter("billing_period =", filters.Period)
	}
	if filters.Status != "" {
		appendFilter("status =", string(filters.Status))
	}
	if filters.UnitID > 0 {
		appendFilter("unit_id =", filters.UnitID)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += " ORDER BY created_at DESC, id DESC"
	if filters.Limit > 0 {
		argCount++
		query += " LIMIT $" + strconv.Itoa(argCount)
		args = append(args, filters.Limit)

		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		argCount++
		query += " OFFSET $" + strconv.Itoa(argCount)
		args = append(args, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var bills []Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, 0, err
		}
		bills = append(bills, b)
	}
	return bills, total, rows.Err()
}

// --- Payments ---

// RecordPayment performs the whole money-affecting write as one transaction:
// lock the bill row, guard its status, insert the transaction, transition the
// bill. Both commit or neither does.
func (r *repository) RecordPayment(ctx context.Context, txn Transaction, newStatus BillStatus) (Transaction, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx,
			`SELECT status FROM bills WHERE society_id = $1 AND id = $2 FOR UPDATE`,
			txn.SocietyID, txn.BillID,
		).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrBillNotFound
		}
		if err != nil {
			return err
		}
		if BillStatus(status) == BillStatusPaid {
			return ErrBillAlreadyPaid
		}

		now := time.Now()
		err = tx.QueryRow(ctx, `
			INSERT INTO payment_transactions (bill_id, society_id, amount, method, reference, status, paid_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`,
			txn.BillID, txn.SocietyID, txn.Amount, string(txn.Method), txn.Reference,
			string(txn.Status), txn.PaidAt, now,
		).Scan(&txn.ID)
		if err != nil {
			return err
		}
		txn.CreatedAt = now

		_, err = tx.Exec(ctx,
			`UPDATE bills SET status = $3, updated_at = $4 WHERE society_id = $1 AND id = $2`,
			txn.SocietyID, txn.BillID, string(newStatus), now)
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	return txn, nil
}

// ClearTransaction settles a deferred-clearing payment: the transaction moves
// to cleared and its bill to paid, atomically.
func (r *repository) ClearTransaction(ctx context.Context, societyID, txnID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var billID int64
		var status string
		err := tx.QueryRow(ctx,
			`SELECT bill_id, status FROM payment_transactions WHERE society_id = $1 AND id = $2 FOR UPDATE`,
			societyID, txnID,
		).Scan(&billID, &status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTransactionNotFound
		}
		if err != nil {
			return err
		}
		if PaymentStatus(status) != PaymentPendingClearance {
			return ErrNotPendingClearance
		}

		now := time.Now()
		if _, err := tx.Exec(ctx,
			`UPDATE payment_transactions SET status = $3 WHERE society_id = $1 AND id = $2`,
			societyID, txnID, string(PaymentCleared)); err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE bills SET status = $3, updated_at = $4 WHERE society_id = $1 AND id = $2`,
			societyID, billID, string(BillStatusPaid), now)
		return err
	})
}

func (r *repository) ListBillTransactions(ctx context.Context, societyID, billID int64) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, bill_id, society_id, amount, method, reference, status, paid_at, created_at
		FROM payment_transactions
		WHERE society_id = $1 AND bill_id = $2
		ORDER BY paid_at`, societyID, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []Transaction
	for rows.Next() {
		var t Transaction
		var method, status string
		if err := rows.Scan(&t.ID, &t.BillID, &t.SocietyID, &t.Amount, &method,
			&t.Reference, &status, &t.PaidAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Method = PaymentMethod(method)
		t.Status = PaymentStatus(status)
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// --- Overdue scan ---

// ListOverdueCandidates returns pending bills whose due date plus the
// society's grace period has passed, across all societies.
func (r *repository) ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]OverdueCandidate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+prefixedBillColumns("b")+`,
			c.late_fee_enabled, c.late_fee_amount, c.late_fee_type, c.late_fee_grace_days
		FROM bills b
		JOIN billing_configs c ON c.society_id = b.society_id
		WHERE b.status = 'pending'
		  AND b.due_date + make_interval(days => c.late_fee_grace_days) < $1
		ORDER BY b.society_id, b.id`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []OverdueCandidate
	for rows.Next() {
		var c OverdueCandidate
		var breakdown []byte
		var status, party, lateFeeType string
		var resident pgtype.Int8
		err := rows.Scan(&c.Bill.ID, &c.Bill.SocietyID, &c.Bill.UnitID, &c.Bill.BillingPeriod,
			&c.Bill.DueDate, &breakdown, &c.Bill.TotalAmount, &status, &party, &resident,
			&c.Bill.LateFeeApplied, &c.Bill.CreatedAt, &c.Bill.UpdatedAt,
			&c.LateFee.Enabled, &c.LateFee.Amount, &lateFeeType, &c.LateFee.GraceDays)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(breakdown, &c.Bill.Breakdown); err != nil {
			return nil, fmt.Errorf("billing: unmarshal breakdown: %w", err)
		}
		c.Bill.Status = BillStatus(status)
		c.Bill.ResponsibleParty = ResponsibleParty(party)
		if resident.Valid {
			c.Bill.ResidentID = &resident.Int64
		}
		c.LateFee.Type = LateFeeType(lateFeeType)
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// MarkOverdue transitions one bill to overdue, appending the late-fee line
// when provided. The status guard makes the scan safe to re-run.
func (r *repository) MarkOverdue(ctx context.Context, billID int64, lateFee *BreakdownLine) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var breakdownRaw []byte
		var total int64
		var applied bool
		err := tx.QueryRow(ctx,
			`SELECT breakdown, total_amount, late_fee_applied FROM bills WHERE id = $1 AND status = 'pending' FOR UPDATE`,
			billID,
		).Scan(&breakdownRaw, &total, &applied)
		if errors.Is(err, pgx.ErrNoRows) {
			// Already transitioned (or paid meanwhile); nothing to do.
			return nil
		}
		if err != nil {
			return err
		}

		if lateFee != nil && !applied {
			var breakdown []BreakdownLine
			if err := json.Unmarshal(breakdownRaw, &breakdown); err != nil {
				return fmt.Errorf("billing: unmarshal breakdown: %w", err)
			}
			breakdown = append(breakdown, *lateFee)
			total += lateFee.Amount
			breakdownRaw, err = json.Marshal(breakdown)
			if err != nil {
				return fmt.Errorf("billing: marshal breakdown: %w", err)
			}
			applied = true
		}

		_, err = tx.Exec(ctx, `
			UPDATE bills
			SET status = 'overdue', breakdown = $2, total_amount = $3, late_fee_applied = $4, updated_at = $5
			WHERE id = $1`,
			billID, breakdownRaw, total, applied, time.Now())
		return err
	})
}

// --- Helpers ---

func scanBill(row pgx.Row) (Bill, error) {
	var b Bill
	var breakdown []byte
	var status, party string
	var resident pgtype.Int8
	err := row.Scan(&b.ID, &b.SocietyID, &b.UnitID, &b.BillingPeriod, &b.DueDate,
		&breakdown, &b.TotalAmount, &status, &party, &resident, &b.LateFeeApplied,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return Bill{}, err
	}
	if err := json.Unmarshal(breakdown, &b.Breakdown); err != nil {
		return Bill{}, fmt.Errorf("billing: unmarshal breakdown: %w", err)
	}
	b.Status = BillStatus(status)
	b.ResponsibleParty = ResponsibleParty(party)
	if resident.Valid {
		b.ResidentID = &resident.Int64
	}
	return b, nil
}

func prefixedBillColumns(alias string) string {
	return alias + ".id, " + alias + ".society_id, " + alias + ".unit_id, " + alias + ".billing_period, " +
		alias + ".due_date, " + alias + ".breakdown, " + alias + ".total_amount, " + alias + ".status, " +
		alias + ".responsible_party, " + alias + ".resident_id, " + alias + ".late_fee_applied, " +
		alias + ".created_at, " + alias + ".updated_at"
}

func int8OrNull(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}
