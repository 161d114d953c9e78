// Package quality implements the fixed pre-review quality gate. It evaluates
// the supporting data behind a draft report against clinical/statistical
// thresholds and produces the quality verdict embedded in the draft. The gate
// has no side effects and never fails for well-formed input: a degraded check
// becomes a flag for the reviewer, not an error.
package quality

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/citl-review-server/internal/domain"
)

// Inputs carries the already-materialized supporting data for one case.
// Optional inputs left nil pass vacuously with an info note; they are never
// treated as critical failures.
type Inputs struct {
	// RegionCounts maps spatial/tissue region name to observed sample count.
	RegionCounts map[string]int
	// Findings is the table of differentially-expressed findings.
	Findings []domain.MolecularFinding
	// Expression is the expression matrix; NaN cells count as missing.
	Expression [][]float64
	// Concordance maps modality name to its cross-modal concordance in [0,1].
	Concordance map[string]float64
}

// Gate evaluates draft reports against fixed thresholds.
type Gate struct {
	logger *logrus.Logger
	cfg    domain.QualityConfig
}

// DefaultConfig returns the fixed clinical thresholds.
func DefaultConfig() domain.QualityConfig {
	return domain.QualityConfig{
		MinSpotsPerRegion:    30,
		IdealSpotsPerRegion:  50,
		MarginalFDRLow:       0.01,
		MarginalFDRHigh:      0.05,
		MarginalFraction:     0.5,
		MissingWarningPct:    5.0,
		MissingCriticalPct:   10.0,
		ConcordanceTolerance: 0.75,
	}
}

// NewGate creates a quality gate with the given thresholds. Zero-valued
// thresholds fall back to the defaults.
func NewGate(logger *logrus.Logger, cfg domain.QualityConfig) *Gate {
	def := DefaultConfig()
	if cfg.MinSpotsPerRegion == 0 {
		cfg.MinSpotsPerRegion = def.MinSpotsPerRegion
	}
	if cfg.IdealSpotsPerRegion == 0 {
		cfg.IdealSpotsPerRegion = def.IdealSpotsPerRegion
	}
	if cfg.MarginalFDRLow == 0 {
		cfg.MarginalFDRLow = def.MarginalFDRLow
	}
	if cfg.MarginalFDRHigh == 0 {
		cfg.MarginalFDRHigh = def.MarginalFDRHigh
	}
	if cfg.MarginalFraction == 0 {
		cfg.MarginalFraction = def.MarginalFraction
	}
	if cfg.MissingWarningPct == 0 {
		cfg.MissingWarningPct = def.MissingWarningPct
	}
	if cfg.MissingCriticalPct == 0 {
		cfg.MissingCriticalPct = def.MissingCriticalPct
	}
	if cfg.ConcordanceTolerance == 0 {
		cfg.ConcordanceTolerance = def.ConcordanceTolerance
	}
	return &Gate{logger: logger, cfg: cfg}
}

// Run evaluates all four checks and aggregates the result.
// all_checks_passed is the AND of every per-check outcome.
func (g *Gate) Run(inputs Inputs) domain.QualityCheckResult {
	detail := map[string]domain.CheckOutcome{
		domain.CheckSampleSizeAdequate:    g.CheckSampleSizes(inputs.RegionCounts),
		domain.CheckFDRThresholdsMet:      g.CheckStatisticalThresholds(inputs.Findings),
		domain.CheckDataCompleteness:      g.CheckDataCompleteness(inputs.Expression),
		domain.CheckConsistencyCrossModal: g.CheckCrossModalConsistency(inputs.Concordance),
	}

	result := domain.QualityCheckResult{
		AllChecksPassed: true,
		Flags:           []domain.QualityFlag{},
		ChecksDetail:    detail,
	}
	for _, name := range domain.CheckNames {
		outcome := detail[name]
		if !outcome.Passed {
			result.AllChecksPassed = false
			result.Flags = append(result.Flags, domain.QualityFlag{
				Check:          name,
				Severity:       outcome.Severity,
				Message:        outcome.Message,
				Recommendation: outcome.Recommendation,
			})
		}
	}

	g.logger.WithFields(logrus.Fields{
		"all_checks_passed": result.AllChecksPassed,
		"flags":             len(result.Flags),
	}).Info("Quality gate evaluation completed")

	return result
}

// CheckSampleSizes verifies that every region has an adequate sample count.
// Regions are judged individually, never averaged: a single region below the
// minimum fails the whole check as critical.
func (g *Gate) CheckSampleSizes(regionCounts map[string]int) domain.CheckOutcome {
	if regionCounts == nil {
		return vacuousPass("no region counts provided")
	}

	small := map[string]int{}
	marginal := map[string]int{}
	for region, count := range regionCounts {
		switch {
		case count < g.cfg.MinSpotsPerRegion:
			small[region] = count
		case count < g.cfg.IdealSpotsPerRegion:
			marginal[region] = count
		}
	}

	if len(small) > 0 {
		return domain.CheckOutcome{
			Passed:         false,
			Severity:       domain.SeverityCritical,
			Message:        fmt.Sprintf("Regions below minimum: %s", formatRegionCounts(small)),
			Recommendation: "Increase sequencing depth or exclude small regions",
		}
	}
	if len(marginal) > 0 {
		return domain.CheckOutcome{
			Passed:         false,
			Severity:       domain.SeverityWarning,
			Message:        fmt.Sprintf("Regions below ideal: %s", formatRegionCounts(marginal)),
			Recommendation: "Consider increasing sample size for better statistical power",
		}
	}
	return domain.CheckOutcome{
		Passed:         true,
		Severity:       domain.SeverityInfo,
		Message:        "All regions have adequate sample sizes",
		Recommendation: "N/A",
	}
}

// CheckStatisticalThresholds verifies the FDR distribution of the findings.
// An empty findings table is critical: there is nothing to review.
func (g *Gate) CheckStatisticalThresholds(findings []domain.MolecularFinding) domain.CheckOutcome {
	if len(findings) == 0 {
		return domain.CheckOutcome{
			Passed:         false,
			Severity:       domain.SeverityCritical,
			Message:        "No significant findings",
			Recommendation: "Check analysis parameters or data quality",
		}
	}

	marginal := 0
	for _, f := range findings {
		if f.FDR >= g.cfg.MarginalFDRLow && f.FDR < g.cfg.MarginalFDRHigh {
			marginal++
		}
	}
	fraction := float64(marginal) / float64(len(findings))

	if fraction > g.cfg.MarginalFraction {
		return domain.CheckOutcome{
			Passed:   false,
			Severity: domain.SeverityWarning,
			Message: fmt.Sprintf("%d/%d findings have marginal FDR (%.2f-%.2f)",
				marginal, len(findings), g.cfg.MarginalFDRLow, g.cfg.MarginalFDRHigh),
			Recommendation: fmt.Sprintf("Consider stricter FDR threshold (%.2f) for higher confidence", g.cfg.MarginalFDRLow),
		}
	}
	return domain.CheckOutcome{
		Passed:         true,
		Severity:       domain.SeverityInfo,
		Message:        fmt.Sprintf("%d significant findings with appropriate FDR distribution", len(findings)),
		Recommendation: "N/A",
	}
}

// CheckDataCompleteness measures the missing-cell proportion of the
// expression matrix. Zero-valued cells are tracked for reporting but do not
// gate the outcome.
func (g *Gate) CheckDataCompleteness(expression [][]float64) domain.CheckOutcome {
	if expression == nil {
		return vacuousPass("no expression matrix provided")
	}

	total, missing, zeros := 0, 0, 0
	for _, row := range expression {
		for _, v := range row {
			total++
			if math.IsNaN(v) {
				missing++
			} else if v == 0 {
				zeros++
			}
		}
	}
	if total == 0 {
		return vacuousPass("expression matrix is empty")
	}

	missingPct := float64(missing) / float64(total) * 100
	zeroPct := float64(zeros) / float64(total) * 100

	switch {
	case missingPct > g.cfg.MissingCriticalPct:
		return domain.CheckOutcome{
			Passed:         false,
			Severity:       domain.SeverityCritical,
			Message:        fmt.Sprintf("Missing data: %.1f%% (zeros: %.1f%%)", missingPct, zeroPct),
			Recommendation: "Investigate data quality issues before proceeding",
		}
	case missingPct > g.cfg.MissingWarningPct:
		return domain.CheckOutcome{
			Passed:         false,
			Severity:       domain.SeverityWarning,
			Message:        fmt.Sprintf("Missing data: %.1f%% (zeros: %.1f%%)", missingPct, zeroPct),
			Recommendation: "Consider imputation or filtering low-quality samples",
		}
	default:
		return domain.CheckOutcome{
			Passed:         true,
			Severity:       domain.SeverityInfo,
			Message:        fmt.Sprintf("Data completeness: %.1f%%", 100-missingPct),
			Recommendation: "N/A",
		}
	}
}

// CheckCrossModalConsistency compares concordance across data modalities for
// the same case. Any modality below the tolerance is a warning; fewer than two
// modalities is a vacuous pass.
func (g *Gate) CheckCrossModalConsistency(concordance map[string]float64) domain.CheckOutcome {
	if len(concordance) < 2 {
		return vacuousPass("fewer than two modalities available for comparison")
	}

	discordant := map[string]float64{}
	for modality, score := range concordance {
		if score < g.cfg.ConcordanceTolerance {
			discordant[modality] = score
		}
	}

	if len(discordant) > 0 {
		return domain.CheckOutcome{
			Passed:         false,
			Severity:       domain.SeverityWarning,
			Message:        fmt.Sprintf("Cross-modal disagreement: %s", formatConcordance(discordant)),
			Recommendation: "Review discordant modalities before relying on combined findings",
		}
	}
	return domain.CheckOutcome{
		Passed:         true,
		Severity:       domain.SeverityInfo,
		Message:        fmt.Sprintf("All %d modalities concordant", len(concordance)),
		Recommendation: "N/A",
	}
}

func vacuousPass(note string) domain.CheckOutcome {
	return domain.CheckOutcome{
		Passed:         true,
		Severity:       domain.SeverityInfo,
		Message:        fmt.Sprintf("Check skipped: %s", note),
		Recommendation: "N/A",
	}
}

// formatRegionCounts renders region counts sorted by name so messages are
// deterministic regardless of map iteration order.
func formatRegionCounts(counts map[string]int) string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, counts[name]))
	}
	return strings.Join(parts, ", ")
}

func formatConcordance(scores map[string]float64) string {
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%.2f", name, scores[name]))
	}
	return strings.Join(parts, ", ")
}
