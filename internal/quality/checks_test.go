package quality

import (
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citl-review-server/internal/domain"
)

func newTestGate() *Gate {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewGate(logger, DefaultConfig())
}

func TestCheckSampleSizes_AllAdequate(t *testing.T) {
	gate := newTestGate()

	outcome := gate.CheckSampleSizes(map[string]int{
		"tumor_core": 100,
		"stroma":     150,
		"interface":  80,
	})

	assert.True(t, outcome.Passed)
	assert.Equal(t, domain.SeverityInfo, outcome.Severity)
}

func TestCheckSampleSizes_MarginalRegionWarns(t *testing.T) {
	gate := newTestGate()

	// interface is between the minimum (30) and the ideal (50)
	outcome := gate.CheckSampleSizes(map[string]int{
		"tumor_core": 100,
		"interface":  45,
		"stroma":     150,
		"necrotic":   35,
	})

	assert.False(t, outcome.Passed)
	assert.Equal(t, domain.SeverityWarning, outcome.Severity)
	assert.Contains(t, outcome.Message, "interface=45")
	assert.Contains(t, outcome.Message, "necrotic=35")
}

func TestCheckSampleSizes_SmallRegionIsCritical(t *testing.T) {
	gate := newTestGate()

	outcome := gate.CheckSampleSizes(map[string]int{
		"tumor_core": 100,
		"necrotic":   12,
	})

	assert.False(t, outcome.Passed)
	assert.Equal(t, domain.SeverityCritical, outcome.Severity)
	assert.Contains(t, outcome.Message, "necrotic=12")
}

func TestCheckSampleSizes_CriticalOutranksMarginal(t *testing.T) {
	gate := newTestGate()

	// One region below minimum and another merely marginal: critical wins.
	outcome := gate.CheckSampleSizes(map[string]int{
		"necrotic":  12,
		"interface": 45,
	})

	assert.Equal(t, domain.SeverityCritical, outcome.Severity)
	assert.Contains(t, outcome.Message, "necrotic=12")
	assert.NotContains(t, outcome.Message, "interface")
}

func TestCheckSampleSizes_NilInputPassesVacuously(t *testing.T) {
	gate := newTestGate()

	outcome := gate.CheckSampleSizes(nil)

	assert.True(t, outcome.Passed)
	assert.Equal(t, domain.SeverityInfo, outcome.Severity)
}

func TestCheckStatisticalThresholds_EmptyFindingsIsCritical(t *testing.T) {
	gate := newTestGate()

	outcome := gate.CheckStatisticalThresholds(nil)

	assert.False(t, outcome.Passed)
	assert.Equal(t, domain.SeverityCritical, outcome.Severity)
	assert.Equal(t, "No significant findings", outcome.Message)
}

func TestCheckStatisticalThresholds_MostlyMarginalWarns(t *testing.T) {
	gate := newTestGate()

	findings := []domain.MolecularFinding{
		{FindingID: "F1", FDR: 0.001},
		{FindingID: "F2", FDR: 0.02},
		{FindingID: "F3", FDR: 0.03},
		{FindingID: "F4", FDR: 0.045},
	}

	outcome := gate.CheckStatisticalThresholds(findings)

	assert.False(t, outcome.Passed)
	assert.Equal(t, domain.SeverityWarning, outcome.Severity)
	assert.Contains(t, outcome.Message, "3/4")
}

func TestCheckStatisticalThresholds_ExactlyHalfMarginalPasses(t *testing.T) {
	gate := newTestGate()

	// The warning requires strictly more than half marginal.
	findings := []domain.MolecularFinding{
		{FindingID: "F1", FDR: 0.001},
		{FindingID: "F2", FDR: 0.005},
		{FindingID: "F3", FDR: 0.02},
		{FindingID: "F4", FDR: 0.03},
	}

	outcome := gate.CheckStatisticalThresholds(findings)

	assert.True(t, outcome.Passed)
}

func TestCheckStatisticalThresholds_BandBoundaries(t *testing.T) {
	gate := newTestGate()

	// 0.05 is outside the marginal band [0.01, 0.05); 0.01 is inside.
	findings := []domain.MolecularFinding{
		{FindingID: "F1", FDR: 0.05},
		{FindingID: "F2", FDR: 0.05},
		{FindingID: "F3", FDR: 0.01},
	}

	outcome := gate.CheckStatisticalThresholds(findings)

	assert.True(t, outcome.Passed)
}

func TestCheckDataCompleteness_CleanMatrixPasses(t *testing.T) {
	gate := newTestGate()

	outcome := gate.CheckDataCompleteness([][]float64{
		{1.5, 2.0, 0.0},
		{0.3, 4.1, 2.2},
	})

	assert.True(t, outcome.Passed)
	assert.Equal(t, domain.SeverityInfo, outcome.Severity)
}

func TestCheckDataCompleteness_ZerosDoNotGate(t *testing.T) {
	gate := newTestGate()

	// All-zero cells are biologically meaningful dropout, not missing data.
	outcome := gate.CheckDataCompleteness([][]float64{
		{0, 0, 0},
		{0, 0, 0},
	})

	assert.True(t, outcome.Passed)
}

func TestCheckDataCompleteness_MissingWarning(t *testing.T) {
	gate := newTestGate()

	nan := math.NaN()
	// 2 of 25 cells missing: 8%, above the 5% warning threshold
	matrix := make([][]float64, 5)
	for i := range matrix {
		matrix[i] = []float64{1, 2, 3, 4, 5}
	}
	matrix[0][0] = nan
	matrix[4][4] = nan

	outcome := gate.CheckDataCompleteness(matrix)

	assert.False(t, outcome.Passed)
	assert.Equal(t, domain.SeverityWarning, outcome.Severity)
}

func TestCheckDataCompleteness_MissingCritical(t *testing.T) {
	gate := newTestGate()

	nan := math.NaN()
	// 3 of 10 cells missing: 30%, above the 10% critical threshold
	outcome := gate.CheckDataCompleteness([][]float64{
		{nan, nan, nan, 1, 2},
		{3, 4, 5, 6, 7},
	})

	assert.False(t, outcome.Passed)
	assert.Equal(t, domain.SeverityCritical, outcome.Severity)
}

func TestCheckDataCompleteness_NilMatrixPassesVacuously(t *testing.T) {
	gate := newTestGate()

	outcome := gate.CheckDataCompleteness(nil)

	assert.True(t, outcome.Passed)
}

func TestCheckCrossModalConsistency_ConcordantPasses(t *testing.T) {
	gate := newTestGate()

	outcome := gate.CheckCrossModalConsistency(map[string]float64{
		"transcriptome": 0.92,
		"proteome":      0.81,
	})

	assert.True(t, outcome.Passed)
}

func TestCheckCrossModalConsistency_DiscordantWarns(t *testing.T) {
	gate := newTestGate()

	outcome := gate.CheckCrossModalConsistency(map[string]float64{
		"transcriptome": 0.92,
		"proteome":      0.60,
	})

	assert.False(t, outcome.Passed)
	assert.Equal(t, domain.SeverityWarning, outcome.Severity)
	assert.Contains(t, outcome.Message, "proteome=0.60")
}

func TestCheckCrossModalConsistency_SingleModalityPassesVacuously(t *testing.T) {
	gate := newTestGate()

	outcome := gate.CheckCrossModalConsistency(map[string]float64{
		"transcriptome": 0.3,
	})

	assert.True(t, outcome.Passed)
}

func TestRun_AggregatesAllFourChecks(t *testing.T) {
	gate := newTestGate()

	result := gate.Run(Inputs{
		RegionCounts: map[string]int{"tumor_core": 100},
		Findings:     []domain.MolecularFinding{{FindingID: "F1", FDR: 0.001}},
		Expression:   [][]float64{{1, 2}, {3, 4}},
		Concordance:  map[string]float64{"transcriptome": 0.9, "proteome": 0.85},
	})

	assert.True(t, result.AllChecksPassed)
	assert.Empty(t, result.Flags)
	require.Len(t, result.ChecksDetail, 4)
	for _, name := range domain.CheckNames {
		assert.Contains(t, result.ChecksDetail, name)
	}
}

func TestRun_FailedCheckClearsAggregateAndFlags(t *testing.T) {
	gate := newTestGate()

	result := gate.Run(Inputs{
		RegionCounts: map[string]int{"necrotic": 10},
		Findings:     []domain.MolecularFinding{{FindingID: "F1", FDR: 0.001}},
	})

	assert.False(t, result.AllChecksPassed)
	require.Len(t, result.Flags, 1)
	assert.Equal(t, domain.CheckSampleSizeAdequate, result.Flags[0].Check)
	assert.Equal(t, domain.SeverityCritical, result.Flags[0].Severity)
}

func TestRun_DegradedQualityIsNotAnError(t *testing.T) {
	gate := newTestGate()

	// Everything degraded at once still yields a result, never a panic or error.
	result := gate.Run(Inputs{
		RegionCounts: map[string]int{"necrotic": 5},
		Findings:     nil,
		Expression:   [][]float64{{math.NaN(), math.NaN()}},
		Concordance:  map[string]float64{"a": 0.1, "b": 0.2},
	})

	assert.False(t, result.AllChecksPassed)
	assert.Len(t, result.Flags, 4)
}
