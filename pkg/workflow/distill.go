// Package workflow contains the task planner, the context distiller, and the
// workflow executor that turns plans into running agents.
package workflow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/agentfleet/maestro/pkg/models"
)

// errorContextOutputLimit bounds how much raw output leaks into the error
// context handed to a fixing agent.
const errorContextOutputLimit = 1000

// maxExtractedErrors caps the error lines harvested from a failing output.
const maxExtractedErrors = 5

// TestResults summarizes pass/fail counts parsed from TESTER output.
type TestResults struct {
	Passed    int    `json:"passed"`
	Failed    int    `json:"failed"`
	HasPassed bool   `json:"-"`
	HasFailed bool   `json:"-"`
	Failures  string `json:"failures,omitempty"`
}

// AgentContext is the distilled, structured view of a completed agent's
// output. The forward projection is what the next agent sees; FullOutput is
// kept as the escape hatch for debugging and error context.
type AgentContext struct {
	Summary         string
	FilesCreated    []string
	FilesModified   []string
	KeyFindings     []string
	Recommendations string
	TestResults     *TestResults
	Errors          []string
	RequiresFix     bool
	FullOutput      string
}

// Section parsers are lenient by design: the Markdown schema is a soft
// contract with the role prompts, so missing sections simply yield empty
// fields and FullOutput remains available.
var (
	summaryRe       = regexp.MustCompile(`(?s)## Summary\s*\n(.*?)(\n## |\z)`)
	filesCreatedRe  = regexp.MustCompile(`(?s)## (?:Files Created|Documentation Files Created|Test Files Created)\s*\n(.*?)(\n## |\z)`)
	filesModifiedRe = regexp.MustCompile(`(?s)## Files Modified\s*\n(.*?)(\n## |\z)`)
	findingsRe      = regexp.MustCompile(`(?s)## Key Findings\s*\n(.*?)(\n## |\z)`)
	recsRe          = regexp.MustCompile(`(?s)## (?:Recommendations for Next Agent|For Next Agent)\s*\n(.*?)(\n## |\z)`)
	issuesRe        = regexp.MustCompile(`(?s)## Issues\s*\n(.*?)(\n## |\z)`)

	passedRe = regexp.MustCompile(`(\d+) passed`)
	failedRe = regexp.MustCompile(`(\d+) failed`)

	errorLineRes = []*regexp.Regexp{
		regexp.MustCompile(`AssertionError: (.*)`),
		regexp.MustCompile(`Error: (.*)`),
		regexp.MustCompile(`Exception: (.*)`),
	}

	reviewIndicators = []string{
		"does not meet",
		"missing",
		"issues found",
		"problems",
		"incorrect",
		"needs revision",
	}
)

// Distill extracts structured context from an agent's output. Role-specific
// rules apply for TESTER (test results, requires_fix on failures) and
// REVIEWER (requires_fix on negative indicators, Issues section).
func Distill(output string, role models.AgentRole) AgentContext {
	ctx := AgentContext{FullOutput: output}

	ctx.Summary = matchProse(summaryRe, output)
	ctx.FilesCreated = bulletList(matchSection(filesCreatedRe, output))
	ctx.FilesModified = bulletList(matchSection(filesModifiedRe, output))
	ctx.KeyFindings = bulletList(matchSection(findingsRe, output))
	ctx.Recommendations = matchProse(recsRe, output)

	switch role {
	case models.RoleTester:
		ctx.TestResults = extractTestResults(output)
		ctx.RequiresFix = ctx.TestResults != nil && ctx.TestResults.Failed > 0
		if ctx.RequiresFix {
			ctx.Errors = extractErrorLines(output)
		}
	case models.RoleReviewer:
		ctx.RequiresFix = hasReviewIssues(output)
		if ctx.RequiresFix {
			ctx.Errors = bulletList(matchSection(issuesRe, output))
		}
	}

	return ctx
}

// ForwardContext is the minimal projection handed to the next agent in a
// sequential pipeline: summary, file manifests, findings, and
// recommendations. Never the raw output.
func (c AgentContext) ForwardContext() string {
	var parts []string

	if c.Summary != "" {
		parts = append(parts, "## Previous Agent Summary\n"+c.Summary)
	}
	if len(c.FilesCreated) > 0 {
		parts = append(parts, "\n## Files Created\n"+bullets(c.FilesCreated))
	}
	if len(c.FilesModified) > 0 {
		parts = append(parts, "\n## Files Modified\n"+bullets(c.FilesModified))
	}
	if len(c.KeyFindings) > 0 {
		parts = append(parts, "\n## Key Findings\n"+bullets(c.KeyFindings))
	}
	if c.Recommendations != "" {
		parts = append(parts, "\n## Recommendations\n"+c.Recommendations)
	}

	return strings.Join(parts, "\n")
}

// ErrorContext is the detailed projection used when a downstream verifier
// flagged a failure: it adds errors, test results, and a bounded slice of
// the raw output.
func (c AgentContext) ErrorContext() string {
	parts := []string{"## Previous Agent Summary\n" + c.Summary}

	if len(c.Errors) > 0 {
		parts = append(parts, "\n## Errors Found\n"+bullets(c.Errors))
	}
	if c.TestResults != nil {
		parts = append(parts, "\n## Test Results\n"+c.TestResults.Format())
	}
	if c.FullOutput != "" && c.RequiresFix {
		tail := c.FullOutput
		if len(tail) > errorContextOutputLimit {
			tail = tail[:errorContextOutputLimit]
		}
		parts = append(parts, "\n## Additional Details\n"+tail)
	}

	return strings.Join(parts, "\n")
}

// Format renders test results for inclusion in an error context.
func (r *TestResults) Format() string {
	if r == nil {
		return "No test results available"
	}
	var parts []string
	if r.HasPassed {
		parts = append(parts, fmt.Sprintf("Passed: %d", r.Passed))
	}
	if r.HasFailed {
		parts = append(parts, fmt.Sprintf("Failed: %d", r.Failed))
	}
	if r.Failures != "" {
		parts = append(parts, "\nFailure Details:\n"+r.Failures)
	}
	return strings.Join(parts, "\n")
}

func matchSection(re *regexp.Regexp, output string) string {
	m := re.FindStringSubmatch(output)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// matchProse captures a prose section and bounds it at the first paragraph
// break. A trailing section is otherwise open-ended, and agents routinely
// append unstructured log output after their summary block; the paragraph
// bound keeps that noise out of the forward context.
func matchProse(re *regexp.Regexp, output string) string {
	section := matchSection(re, output)
	if cut := strings.Index(section, "\n\n"); cut >= 0 {
		section = section[:cut]
	}
	return strings.TrimSpace(section)
}

func bulletList(text string) []string {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if item, ok := strings.CutPrefix(line, "- "); ok {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
	}
	return items
}

func bullets(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item
	}
	return strings.Join(lines, "\n")
}

func extractTestResults(output string) *TestResults {
	results := &TestResults{}
	found := false

	if m := passedRe.FindStringSubmatch(output); m != nil {
		results.Passed, _ = strconv.Atoi(m[1])
		results.HasPassed = true
		found = true
	}
	if m := failedRe.FindStringSubmatch(output); m != nil {
		results.Failed, _ = strconv.Atoi(m[1])
		results.HasFailed = true
		found = true
	}
	if failures := extractFailuresBlock(output); failures != "" {
		results.Failures = failures
		found = true
	}

	if !found {
		return nil
	}
	return results
}

// extractFailuresBlock captures from the first FAILED marker up to the next
// PASSED or ===== line (or end of output).
func extractFailuresBlock(output string) string {
	start := strings.Index(output, "FAILED")
	if start < 0 {
		return ""
	}
	block := output[start:]
	for _, line := range strings.Split(block, "\n")[1:] {
		if strings.HasPrefix(line, "PASSED") || strings.HasPrefix(line, "=====") {
			end := strings.Index(block, "\n"+line)
			if end >= 0 {
				return block[:end]
			}
		}
	}
	return block
}

func extractErrorLines(output string) []string {
	var errs []string
	for _, re := range errorLineRes {
		for _, m := range re.FindAllStringSubmatch(output, -1) {
			errs = append(errs, strings.TrimSpace(m[1]))
			if len(errs) >= maxExtractedErrors {
				return errs
			}
		}
	}
	return errs
}

func hasReviewIssues(output string) bool {
	lowered := strings.ToLower(output)
	for _, indicator := range reviewIndicators {
		if strings.Contains(lowered, indicator) {
			return true
		}
	}
	return false
}
