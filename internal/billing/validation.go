package billing

import (
	"fmt"
	"strings"

	"github.com/aravali-saas/aravali/internal/platform/httpx"
)

// ValidateChargeHeads checks a replacement charge-head list before it is
// persisted. Percentage references are resolved here, at save time, so a typo
// fails loudly instead of silently computing against the running total.
// Configs saved before this validation existed may still carry dangling
// references; ComputeBreakdown keeps the running-total fallback for those.
func ValidateChargeHeads(heads []ChargeHead) error {
	if len(heads) == 0 {
		return fmt.Errorf("%w: at least one charge head required", httpx.ErrValidation)
	}

	activeNames := make(map[string]ComputationType)
	for _, h := range heads {
		name := strings.TrimSpace(h.Name)
		if name == "" {
			return fmt.Errorf("%w: charge head name required", httpx.ErrValidation)
		}
		if h.Rate < 0 {
			return fmt.Errorf("%w: charge head %q rate must be non-negative", httpx.ErrValidation, name)
		}
		switch h.Type {
		case ComputePerArea, ComputeFixed, ComputePercentage:
		default:
			return fmt.Errorf("%w: charge head %q has unknown computation type %q", httpx.ErrValidation, name, h.Type)
		}
		if !h.Active {
			continue
		}
		if _, dup := activeNames[name]; dup {
			return fmt.Errorf("%w: duplicate active charge head name %q", httpx.ErrValidation, name)
		}
		activeNames[name] = h.Type
	}

	for _, h := range heads {
		if !h.Active || h.Type != ComputePercentage {
			continue
		}
		target := strings.TrimSpace(h.PercentageOf)
		if target == "" {
			return fmt.Errorf("%w: charge head %q requires a percentageOf target", httpx.ErrValidation, h.Name)
		}
		targetType, ok := activeNames[target]
		if !ok {
			return fmt.Errorf("%w: charge head %q references unknown charge head %q", httpx.ErrValidation, h.Name, target)
		}
		if targetType == ComputePercentage {
			// Percentage heads resolve against first-pass amounts only.
			return fmt.Errorf("%w: charge head %q cannot reference percentage head %q", httpx.ErrValidation, h.Name, target)
		}
	}

	return nil
}

// ValidateDueDay bounds the default due day so every month has the date.
func ValidateDueDay(day int) error {
	if day < 1 || day > 28 {
		return fmt.Errorf("%w: default due day must be between 1 and 28", httpx.ErrValidation)
	}
	return nil
}

// ValidateLateFee checks a late-fee rule.
func ValidateLateFee(rule LateFeeRule) error {
	if !rule.Enabled {
		return nil
	}
	if rule.Amount < 0 {
		return fmt.Errorf("%w: late fee amount must be non-negative", httpx.ErrValidation)
	}
	if rule.Type != LateFeeFixed && rule.Type != LateFeePercentage {
		return fmt.Errorf("%w: late fee type must be fixed or percentage", httpx.ErrValidation)
	}
	if rule.GraceDays < 0 {
		return fmt.Errorf("%w: late fee grace days must be non-negative", httpx.ErrValidation)
	}
	return nil
}
