package workflow

import (
	"fmt"
	"strings"

	"github.com/citl-review-server/internal/domain"
)

// RenderClinicalSummary renders a plain-text summary of a final report for
// inclusion in the medical record.
func RenderClinicalSummary(report *domain.FinalReport) string {
	var b strings.Builder

	meta := report.ReportMetadata
	fmt.Fprintf(&b, "CLINICAL REPORT SUMMARY\n")
	fmt.Fprintf(&b, "Patient: %s\n", meta.PatientID)
	fmt.Fprintf(&b, "Report date: %s\n", meta.ReportDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "Status: %s\n", meta.Status)
	if meta.Reviewer != "" {
		fmt.Fprintf(&b, "Reviewed by: %s\n", meta.Reviewer)
	}
	if meta.ApprovalDate != nil {
		fmt.Fprintf(&b, "Approved: %s\n", meta.ApprovalDate.Format("2006-01-02"))
	}

	fmt.Fprintf(&b, "\nQuality checks: ")
	if report.QualityChecks.AllChecksPassed {
		fmt.Fprintf(&b, "all passed\n")
	} else {
		fmt.Fprintf(&b, "%d flag(s)\n", len(report.QualityChecks.Flags))
		for _, flag := range report.QualityChecks.Flags {
			fmt.Fprintf(&b, "  [%s] %s: %s\n", flag.Severity, flag.Check, flag.Message)
		}
	}

	fmt.Fprintf(&b, "\nKey molecular findings (%d):\n", len(report.KeyMolecularFindings))
	for _, f := range report.KeyMolecularFindings {
		fmt.Fprintf(&b, "  %s %s log2FC=%.2f FDR=%.4f (%s)\n",
			f.FindingID, f.Gene, f.Log2FoldChange, f.FDR, f.ClinicalSignificance)
	}

	if len(report.TreatmentRecommendations) > 0 {
		fmt.Fprintf(&b, "\nTreatment recommendations:\n")
		for _, t := range report.TreatmentRecommendations {
			fmt.Fprintf(&b, "  %s: %s\n", t.Therapy, t.Rationale)
		}
	}

	return b.String()
}
