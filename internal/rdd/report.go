package rdd

import (
	"fmt"
	"strings"
)

// stars maps a p-value to conventional significance markers.
func stars(p *float64) string {
	if p == nil {
		return ""
	}
	switch {
	case *p < 0.01:
		return "***"
	case *p < 0.05:
		return "**"
	case *p < 0.10:
		return "*"
	}
	return ""
}

// FormatText renders the result rows as the human-readable summary
// table, grouped into panels by score type and outcome.
func FormatText(rows []ResultRow, cfg Config) string {
	var b strings.Builder
	rule := strings.Repeat("=", 90)

	b.WriteString(rule + "\n")
	b.WriteString("RDD ESTIMATION RESULTS\n")
	b.WriteString("Review-Score Threshold -> Box Office Revenue\n")
	fmt.Fprintf(&b, "Cutoff: %d%%  |  Study Period: %s to %s\n",
		cfg.ScoreThreshold, cfg.StartDate.Format("2006-01-02"), cfg.EndDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "Wide releases only (>=%d opening theaters)\n", cfg.MinOpeningTheaters)
	b.WriteString(rule + "\n\n")

	for _, score := range []string{"Critic", "Audience"} {
		scoreVar := "Tomatometer"
		if score == "Audience" {
			scoreVar = "Audience Score"
		}
		b.WriteString(rule + "\n")
		fmt.Fprintf(&b, "PANEL: %s SCORE (%s centered at %d)\n", strings.ToUpper(score), scoreVar, cfg.ScoreThreshold)
		b.WriteString(rule + "\n\n")

		for _, outcome := range []string{"Log Opening Gross", "Log Total Gross"} {
			var subset []ResultRow
			for _, r := range rows {
				if r.Score == score && r.Outcome == outcome {
					subset = append(subset, r)
				}
			}
			if len(subset) == 0 {
				continue
			}

			note := ""
			if outcome == "Log Total Gross" {
				note = " (excluding movies still in theaters)"
			}
			fmt.Fprintf(&b, "  Outcome: %s%s\n", outcome, note)
			b.WriteString("  " + strings.Repeat("-", 86) + "\n")
			fmt.Fprintf(&b, "  %-22s %-10s %10s %10s %8s %-4s %22s %8s %7s\n",
				"Method", "Controls", "Coef", "SE", "p-val", "", "95% CI", "N", "BW")
			b.WriteString("  " + strings.Repeat("-", 86) + "\n")

			for _, r := range subset {
				if r.Error != "" {
					fmt.Fprintf(&b, "  %-22s %-10s ERROR: %s\n", r.Method, r.Controls, r.Error)
					continue
				}
				fmt.Fprintf(&b, "  %-22s %-10s %10s %10s %8s %-4s %22s %8s %7s\n",
					r.Method, r.Controls,
					fmtFloat(r.Coef, "%.4f"),
					fmtFloat(r.SE, "%.4f"),
					fmtFloat(r.PValue, "%.4f"),
					stars(r.PValue),
					fmtCI(r.CILower, r.CIUpper),
					fmtN(r),
					fmtFloat(r.Bandwidth, "%.2f"))
			}
			b.WriteString("  " + strings.Repeat("-", 86) + "\n\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(rule + "\n")
	b.WriteString("Notes:\n")
	b.WriteString("  * p < 0.10, ** p < 0.05, *** p < 0.01\n")
	b.WriteString("  RD Robust: bias-corrected local polynomial estimates with robust standard errors\n")
	b.WriteString("    (Calonico, Cattaneo, Titiunik 2014). N = effective sample within bandwidth.\n")
	b.WriteString("  OLS: HC1 robust standard errors. Full score range.\n")
	b.WriteString("  Controls: log(budget), log(theaters), rating dummies, year dummies.\n")
	b.WriteString("  Coefficients are in log points (multiply by 100 for approx. % effect).\n")
	b.WriteString(rule + "\n")

	return b.String()
}

func fmtFloat(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}

func fmtCI(lo, hi *float64) string {
	if lo == nil || hi == nil {
		return "-"
	}
	return fmt.Sprintf("[%8.4f, %8.4f]", *lo, *hi)
}

func fmtN(r ResultRow) string {
	if r.NEff != nil {
		return fmt.Sprintf("%d", *r.NEff)
	}
	return fmt.Sprintf("%d", r.N)
}
