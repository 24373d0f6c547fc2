package billing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aravali-saas/aravali/internal/platform/httpx"
)

func TestValidateChargeHeadsAcceptsDefaults(t *testing.T) {
	require.NoError(t, ValidateChargeHeads(DefaultChargeHeads()))
}

func TestValidateChargeHeadsRejectsEmptyList(t *testing.T) {
	err := ValidateChargeHeads(nil)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestValidateChargeHeadsRejectsBlankName(t *testing.T) {
	err := ValidateChargeHeads([]ChargeHead{{Name: "  ", Type: ComputeFixed, Rate: 100, Active: true}})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestValidateChargeHeadsRejectsNegativeRate(t *testing.T) {
	err := ValidateChargeHeads([]ChargeHead{{Name: "Maintenance", Type: ComputeFixed, Rate: -1, Active: true}})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestValidateChargeHeadsRejectsUnknownType(t *testing.T) {
	err := ValidateChargeHeads([]ChargeHead{{Name: "Maintenance", Type: "per_head", Rate: 10, Active: true}})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestValidateChargeHeadsRejectsDuplicateActiveNames(t *testing.T) {
	err := ValidateChargeHeads([]ChargeHead{
		{Name: "Maintenance", Type: ComputeFixed, Rate: 100, Active: true},
		{Name: "Maintenance", Type: ComputePerArea, Rate: 5, Active: true},
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestValidateChargeHeadsAllowsDuplicateWhenInactive(t *testing.T) {
	err := ValidateChargeHeads([]ChargeHead{
		{Name: "Maintenance", Type: ComputeFixed, Rate: 100, Active: true},
		{Name: "Maintenance", Type: ComputePerArea, Rate: 5, Active: false},
	})
	require.NoError(t, err)
}

func TestValidateChargeHeadsRejectsDanglingPercentageReference(t *testing.T) {
	err := ValidateChargeHeads([]ChargeHead{
		{Name: "Maintenance", Type: ComputeFixed, Rate: 100, Active: true},
		{Name: "Cess", Type: ComputePercentage, Rate: 10, PercentageOf: "No Such Head", Active: true},
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Contains(t, err.Error(), "No Such Head")
}

func TestValidateChargeHeadsRejectsPercentageOfPercentage(t *testing.T) {
	err := ValidateChargeHeads([]ChargeHead{
		{Name: "Maintenance", Type: ComputeFixed, Rate: 100, Active: true},
		{Name: "Cess A", Type: ComputePercentage, Rate: 10, PercentageOf: "Maintenance", Active: true},
		{Name: "Cess B", Type: ComputePercentage, Rate: 10, PercentageOf: "Cess A", Active: true},
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestValidateChargeHeadsRequiresPercentageTarget(t *testing.T) {
	err := ValidateChargeHeads([]ChargeHead{
		{Name: "Maintenance", Type: ComputeFixed, Rate: 100, Active: true},
		{Name: "Cess", Type: ComputePercentage, Rate: 10, Active: true},
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestValidateDueDayBounds(t *testing.T) {
	require.NoError(t, ValidateDueDay(1))
	require.NoError(t, ValidateDueDay(28))
	require.ErrorIs(t, ValidateDueDay(0), httpx.ErrValidation)
	require.ErrorIs(t, ValidateDueDay(29), httpx.ErrValidation)
}

func TestValidateLateFee(t *testing.T) {
	require.NoError(t, ValidateLateFee(LateFeeRule{}))
	require.NoError(t, ValidateLateFee(LateFeeRule{Enabled: true, Amount: 100, Type: LateFeeFixed}))
	require.ErrorIs(t, ValidateLateFee(LateFeeRule{Enabled: true, Amount: -5, Type: LateFeeFixed}), httpx.ErrValidation)
	require.ErrorIs(t, ValidateLateFee(LateFeeRule{Enabled: true, Amount: 5, Type: "daily"}), httpx.ErrValidation)
	require.ErrorIs(t, ValidateLateFee(LateFeeRule{Enabled: true, Amount: 5, Type: LateFeeFixed, GraceDays: -1}), httpx.ErrValidation)
}
