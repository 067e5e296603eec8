// Package report turns a similarity result into the pass/fail verdict shown to reviewers.
package report

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/spigell/placement-checker/internal/matcher"
)

const (
	StatusPass = "PASS - Proceed to Next Step"
	StatusFail = "Not Eligible Yet"

	ExplanationPass = "Your internship responsibilities align well with the approved BIA role requirements."
	ExplanationFail = "This internship does not sufficiently align with the approved BIA role requirements."
)

// Report is the verdict for a single scored placement.
type Report struct {
	Role       string  `json:"role"`
	Similarity float64 `json:"similarity"`
	Weight     float64 `json:"weight"`
	Threshold  float64 `json:"threshold"`
	Passed     bool    `json:"passed"`
	// Percent and ThresholdPercent are rounded to one decimal place.
	Percent          float64 `json:"percent"`
	ThresholdPercent float64 `json:"threshold_percent"`
	Status           string  `json:"status"`
	Explanation      string  `json:"explanation"`

	Company       string  `json:"company,omitempty"`
	CompanyWeight float64 `json:"company_weight,omitempty"`
}

// New builds a report for result. A placement passes when its similarity is at least
// threshold. Weights are carried over untouched.
func New(result *matcher.Result, threshold float64) Report {
	r := Report{
		Role:             result.Role,
		Similarity:       result.Similarity,
		Weight:           result.Weight,
		Threshold:        threshold,
		Passed:           result.Similarity >= threshold,
		Percent:          roundPercent(result.Similarity),
		ThresholdPercent: roundPercent(threshold),
	}

	if r.Passed {
		r.Status = StatusPass
		r.Explanation = ExplanationPass
	} else {
		r.Status = StatusFail
		r.Explanation = ExplanationFail
	}

	return r
}

// WithCompany attaches the informational company weight.
func (r Report) WithCompany(name string, weight float64) Report {
	r.Company = strings.TrimSpace(name)
	r.CompanyWeight = weight
	return r
}

// BarWidth is the progress bar fill in percent, kept within [0, 100].
func (r Report) BarWidth() float64 {
	return math.Max(0, math.Min(100, r.Percent))
}

// Write prints the report in the plain text layout used by the command line.
func (r Report) Write(w io.Writer) error {
	line := strings.Repeat("=", 29)

	var b strings.Builder
	fmt.Fprintf(&b, "Role: %s\n", r.Role)
	if r.Company != "" {
		fmt.Fprintf(&b, "Company: %s (weight %g)\n", r.Company, r.CompanyWeight)
	}
	fmt.Fprintf(&b, "Required threshold: %.1f%%\n", r.ThresholdPercent)
	fmt.Fprintf(&b, "Your result is: %.1f%% (similarity %.4f)\n", r.Percent, r.Similarity)
	fmt.Fprintf(&b, "%s\n%s\n%s\n", line, r.Status, line)
	fmt.Fprintf(&b, "%s\n", r.Explanation)

	_, err := io.WriteString(w, b.String())
	return err
}

func roundPercent(v float64) float64 {
	return math.Round(v*1000) / 10
}
