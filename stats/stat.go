// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stats

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var lang language.Tag = language.English

// WriteWith 以指定 render 輸出報告。
func (r *AuditReport) WriteWith(w io.Writer, rep AuditReportRender) error {
	return rep.Write(w, r)
}

// Table 回傳文字表格。
func (r *AuditReport) Table() string {
	keys, msg := r.fmtBasic()
	return fmtTable("Uniformity Audit", keys, msg)
}

// StdOut 輸出用時、速度與表格。
func (r *AuditReport) StdOut(w io.Writer) {
	fmt.Fprint(w, formatDuration(r.Elapsed, r.Draws))
	fmt.Fprintln(w, r.Table())
}

func formatDuration(d time.Duration, draws int) string {
	p := message.NewPrinter(lang)
	if d < 0 {
		d = -d
	}
	sec := d.Seconds()
	if sec <= 0 {
		sec = 1e-9
	}
	dps := int(float64(draws) / sec)
	if sec < 60.0 {
		return p.Sprintf("used: %.2f seconds\ndps : %d draws/sec\n", sec, dps)
	}
	s := int(d.Seconds()) % 60
	m := int(d.Minutes()) % 60
	h := int(d.Hours())
	if h == 0 {
		return p.Sprintf("used: %dm %ds\ndps : %d draws/sec\n", m, s, dps)
	}
	return p.Sprintf("used: %dh:%dm:%ds\ndps : %d draws/sec\n", h, m, s, dps)
}

func (r *AuditReport) fmtBasic() ([]string, map[string]string) {
	p := message.NewPrinter(lang)
	verdict := "PASS"
	if !r.Uniform(0.01) {
		verdict = "FAIL"
	}
	basic := map[string]string{
		"Range":         r.Range,
		"Policy":        r.Policy,
		"Draws":         p.Sprintf("%d", r.Draws),
		"Seed":          fmt.Sprintf("%d", r.Seed),
		"Workers":       p.Sprintf("%d", r.Workers),
		"Expected":      p.Sprintf("%.2f", r.Expected),
		"Min / Max":     p.Sprintf("%d / %d", r.MinCount, r.MaxCount),
		"Max Deviation": p.Sprintf("%.3f %%", 100.0*r.MaxDeviation),
		"Worst Value":   p.Sprintf("%d (%.4f%%, 95%% CI [%.4f%%,%.4f%%])", r.Worst.Value, 100*r.Worst.Share, 100*r.Worst.CI.Lo, 100*r.Worst.CI.Hi),
		"Chi-Square":    p.Sprintf("%.3f (df=%d)", r.ChiSquare, r.DF),
		"p-value":       p.Sprintf("%.4f", r.PValue),
		"Cycles":        p.Sprintf("%d", r.Cycles),
		"Repeats":       p.Sprintf("%d", r.RepeatViolations),
		"Verdict":       verdict,
	}
	keys := []string{"Range", "Policy", "Draws", "Seed", "Workers", "Expected", "Min / Max", "Max Deviation", "Worst Value", "Chi-Square", "p-value", "Cycles", "Repeats", "Verdict"}
	return keys, basic
}

func fmtTable(title string, keys []string, msg map[string]string) string {
	p := message.NewPrinter(lang)
	maxKeyLen := 0
	maxValLen := 0
	for k, m := range msg {
		if w := runewidth.StringWidth(k); w > maxKeyLen {
			maxKeyLen = w
		}
		if w := runewidth.StringWidth(m); w > maxValLen {
			maxValLen = w
		}
	}
	maxKeyLen += 2
	maxValLen += 2

	divider := "+" + strings.Repeat("-", maxKeyLen) + "+" + strings.Repeat("-", maxValLen) + "+\n"
	top := "+" + strings.Repeat("-", maxKeyLen+1+maxValLen) + "+\n"

	totalInner := maxKeyLen + maxValLen + 1
	titleW := runewidth.StringWidth(title)
	left := max(0, (totalInner-titleW)/2)
	right := max(0, totalInner-titleW-left)

	var b strings.Builder
	b.WriteString(top)
	b.WriteString(p.Sprintf("|%s%s%s|\n", blank(left), title, blank(right)))
	b.WriteString(divider)
	for _, k := range keys {
		b.WriteString(p.Sprintf("| %s%s | %s%s |\n", k, blank(maxKeyLen-2-runewidth.StringWidth(k)), msg[k], blank(maxValLen-2-runewidth.StringWidth(msg[k]))))
	}
	b.WriteString(divider)
	return b.String()
}

func blank(w int) string {
	if w < 1 {
		return ""
	}
	return strings.Repeat(" ", w)
}
