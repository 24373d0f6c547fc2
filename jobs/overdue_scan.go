package jobs

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/hibiken/asynq"

	"github.com/aravali-saas/aravali/internal/billing"
)

// LateFeeLineName is the charge name appended when a bill turns overdue.
const LateFeeLineName = "Late Fee"

// OverdueScan walks pending bills whose due date plus grace period has
// passed, flips them to overdue and applies the society's late fee once.
type OverdueScan struct {
	Repo   billing.Repository
	Logger *slog.Logger
}

// AsynqHandler adapts the scan to the worker mux.
func (s *OverdueScan) AsynqHandler() asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		return s.Run(ctx, time.Now())
	}
}

// Run executes one scan pass. Bills already carrying a late fee keep their
// totals; the scan only transitions status for those.
func (s *OverdueScan) Run(ctx context.Context, asOf time.Time) error {
	candidates, err := s.Repo.ListOverdueCandidates(ctx, asOf)
	if err != nil {
		return err
	}

	marked := 0
	for _, c := range candidates {
		line := lateFeeLine(c.Bill, c.LateFee)
		if err := s.Repo.MarkOverdue(ctx, c.Bill.ID, line); err != nil {
			s.log().Error("mark overdue",
				slog.Int64("bill_id", c.Bill.ID),
				slog.Int64("society_id", c.Bill.SocietyID),
				slog.Any("error", err))
			continue
		}
		marked++
	}

	s.log().Info("overdue scan finished",
		slog.Int("candidates", len(candidates)),
		slog.Int("marked", marked))
	return nil
}

// lateFeeLine computes the late-fee breakdown line for a bill, or nil when
// the society has no enabled rule or the fee was already applied.
func lateFeeLine(bill billing.Bill, rule billing.LateFeeRule) *billing.BreakdownLine {
	if !rule.Enabled || bill.LateFeeApplied || rule.Amount <= 0 {
		return nil
	}
	var amount int64
	switch rule.Type {
	case billing.LateFeePercentage:
		amount = int64(math.Round(float64(bill.TotalAmount) * rule.Amount / 100))
	default:
		amount = int64(math.Round(rule.Amount))
	}
	if amount <= 0 {
		return nil
	}
	return &billing.BreakdownLine{ChargeName: LateFeeLineName, Amount: amount}
}

func (s *OverdueScan) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
