package analysis

import (
	"fmt"
	"strings"

	"github.com/HendryAvila/miso/internal/completeness"
	"github.com/HendryAvila/miso/internal/normalize"
	"github.com/HendryAvila/miso/internal/norms"
	"github.com/HendryAvila/miso/internal/temporal"
)

func (e *Engine) summarize(r *Result) Summary {
	s := Summary{
		KeyFindings: []string{},
		DataNeeded:  r.Completeness.DataNeeded(),
	}
	if r.Level() == completeness.None {
		s.Text = "No analysis was possible: submit a complete DASS-21 screening (depression, anxiety and stress raw scores) to begin."
		if errs := r.Validation.Errors; len(errs) > 0 {
			s.Text += " Rejected input: " + strings.Join(errs, "; ") + "."
		}
		return s
	}

	var parts []string
	switch r.Level() {
	case completeness.Minimal:
		parts = append(parts, fmt.Sprintf("Screening-only analysis: %s (risk %s).", r.Profile.Name, r.Profile.RiskLevel))
	case completeness.Full:
		parts = append(parts, fmt.Sprintf("Full analysis: profile %s %s (risk %s).", r.Profile.Code, r.Profile.Name, r.Profile.RiskLevel))
	}

	if sc := r.screening(); sc != nil {
		bands := make([]string, 0, len(norms.Subscales))
		for _, sub := range norms.Subscales {
			bands = append(bands, fmt.Sprintf("%s %v (%s)", sub, sc.Raw(sub), sc.Severity(sub)))
		}
		s.KeyFindings = append(s.KeyFindings, "Screening: "+strings.Join(bands, ", "))
		if sc.Critical() {
			s.KeyFindings = append(s.KeyFindings, "Screening is in a critical range; first-aid resources are included.")
		}
	}

	if r.Discrepancies != nil {
		if top := r.Discrepancies.Top; top != nil {
			s.KeyFindings = append(s.KeyFindings, fmt.Sprintf("Top discrepancy %s: %s (%s).", top.ID, top.Name, top.Severity))
			parts = append(parts, fmt.Sprintf("%d discrepancy(ies) detected.", len(r.Discrepancies.Items)))
		} else {
			s.KeyFindings = append(s.KeyFindings, "Symptoms are consistent with the trait profile.")
		}
	}

	if sci := r.ScientificAnalysis; sci != nil && len(sci.Mechanisms.Pathways) > 0 {
		p := sci.Mechanisms.Pathways[0]
		s.KeyFindings = append(s.KeyFindings, fmt.Sprintf("Strongest pathway: %s (activation %.2f).", p.Name, p.Activation))
	}

	if v := r.VIAAnalysis; v != nil && len(v.Signature) > 0 {
		s.KeyFindings = append(s.KeyFindings, "Signature strengths: "+strings.Join(v.Signature, ", "))
	}

	if t := r.Temporal.DASS21; t != nil {
		s.KeyFindings = append(s.KeyFindings, trendFinding(t))
	}
	if st := r.Temporal.Big5; st != nil && !st.Stable {
		s.KeyFindings = append(s.KeyFindings, fmt.Sprintf("Trait drift detected in %d trait(s).", len(st.Drifting)))
	}

	if n := r.Interventions.Len(); n > 0 {
		parts = append(parts, fmt.Sprintf("%d intervention(s) planned, %d immediate.", n, len(r.Interventions.Immediate)))
	}
	if r.Completeness.TraitsInferred {
		parts = append(parts, "Traits were inferred from the type code and should be confirmed with a Big Five inventory.")
	}
	s.Text = strings.Join(parts, " ")
	return s
}

func trendFinding(t *temporal.ScreeningTrend) string {
	if !t.Reliable {
		return fmt.Sprintf("No reliable change across %d screenings (total change %+.0f).", t.Points, t.TotalChange)
	}
	return fmt.Sprintf("Screening trend %s across %d screenings (total change %+.0f).", t.Trend, t.Points, t.TotalChange)
}

// screening returns the normalized screening of the run, if any.
func (r *Result) screening() normalize.ScreeningScores {
	if r.ScientificAnalysis == nil {
		return nil
	}
	return r.ScientificAnalysis.Screening
}
