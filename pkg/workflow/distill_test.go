package workflow

import (
	"strings"
	"testing"

	"github.com/agentfleet/maestro/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistill_Sections(t *testing.T) {
	output := `Some preamble the agent wrote.

## Summary
Implemented the cache layer.

## Files Created
- internal/cache/cache.go
- internal/cache/lru.go

## Files Modified
- internal/server/handler.go

## Key Findings
- The old code never evicted entries
- TTLs were ignored

## Recommendations for Next Agent
Run the eviction benchmarks.
`

	ctx := Distill(output, models.RoleBuilder)
	assert.Equal(t, "Implemented the cache layer.", ctx.Summary)
	assert.Equal(t, []string{"internal/cache/cache.go", "internal/cache/lru.go"}, ctx.FilesCreated)
	assert.Equal(t, []string{"internal/server/handler.go"}, ctx.FilesModified)
	assert.Equal(t, []string{"The old code never evicted entries", "TTLs were ignored"}, ctx.KeyFindings)
	assert.Equal(t, "Run the eviction benchmarks.", ctx.Recommendations)
	assert.Equal(t, output, ctx.FullOutput)
	assert.False(t, ctx.RequiresFix)
}

func TestDistill_AlternateHeadings(t *testing.T) {
	ctx := Distill("## Test Files Created\n- tests/a_test.go\n\n## For Next Agent\nProceed.", models.RoleTester)
	assert.Equal(t, []string{"tests/a_test.go"}, ctx.FilesCreated)
	assert.Equal(t, "Proceed.", ctx.Recommendations)
}

func TestDistill_MissingSectionsAreEmpty(t *testing.T) {
	ctx := Distill("no structure at all, just prose", models.RoleBuilder)
	assert.Empty(t, ctx.Summary)
	assert.Empty(t, ctx.FilesCreated)
	assert.Empty(t, ctx.ForwardContext())
	assert.Equal(t, "no structure at all, just prose", ctx.FullOutput)
}

func TestDistill_Tester(t *testing.T) {
	t.Run("all green", func(t *testing.T) {
		ctx := Distill("## Summary\nAll good.\n\n12 passed in 1.3s", models.RoleTester)
		require.NotNil(t, ctx.TestResults)
		assert.Equal(t, 12, ctx.TestResults.Passed)
		assert.False(t, ctx.RequiresFix)
	})

	t.Run("failures set requires_fix and harvest errors", func(t *testing.T) {
		output := `## Summary
Two tests are broken.

10 passed, 2 failed

FAILED tests/test_cache.py::test_eviction
AssertionError: expected 3 entries, found 4
FAILED tests/test_cache.py::test_ttl
Error: timeout waiting for expiry
===== short summary =====`

		ctx := Distill(output, models.RoleTester)
		require.NotNil(t, ctx.TestResults)
		assert.Equal(t, 10, ctx.TestResults.Passed)
		assert.Equal(t, 2, ctx.TestResults.Failed)
		assert.True(t, ctx.RequiresFix)
		assert.NotEmpty(t, ctx.Errors)
		assert.Contains(t, ctx.TestResults.Failures, "test_eviction")
	})

	t.Run("error harvest caps at five", func(t *testing.T) {
		var sb strings.Builder
		sb.WriteString("1 failed\n")
		for i := 0; i < 10; i++ {
			sb.WriteString("AssertionError: boom\n")
		}
		ctx := Distill(sb.String(), models.RoleTester)
		assert.Len(t, ctx.Errors, 5)
	})
}

func TestDistill_Reviewer(t *testing.T) {
	t.Run("negative indicators set requires_fix", func(t *testing.T) {
		output := `The implementation does not meet the requirements.

## Issues
- missing input validation
- incorrect error handling`

		ctx := Distill(output, models.RoleReviewer)
		assert.True(t, ctx.RequiresFix)
		assert.Equal(t, []string{"missing input validation", "incorrect error handling"}, ctx.Errors)
	})

	t.Run("clean review passes", func(t *testing.T) {
		ctx := Distill("Looks great. Approved.", models.RoleReviewer)
		assert.False(t, ctx.RequiresFix)
	})

	t.Run("indicators are case-insensitive", func(t *testing.T) {
		ctx := Distill("NEEDS REVISION before merge", models.RoleReviewer)
		assert.True(t, ctx.RequiresFix)
	})
}

func TestForwardContext_Minimality(t *testing.T) {
	// A tester output with structured sections plus a large amount of log
	// noise: the forward context must carry only the distilled sections.
	noise := strings.Repeat("log line that should never be forwarded\n", 2000)
	output := "## Summary\nAll green.\n\n## Test Files Created\n- tests/a.py\n\n## For Next Agent\nProceed.\n\n" + noise

	ctx := Distill(output, models.RoleTester)
	forward := ctx.ForwardContext()

	assert.Contains(t, forward, "All green.")
	assert.Contains(t, forward, "- tests/a.py")
	assert.Contains(t, forward, "Proceed.")
	assert.NotContains(t, forward, "log line that should never be forwarded")
}

func TestErrorContext(t *testing.T) {
	output := "## Summary\nBroken.\n\n2 failed\nAssertionError: nope"
	ctx := Distill(output, models.RoleTester)
	require.True(t, ctx.RequiresFix)

	errCtx := ctx.ErrorContext()
	assert.Contains(t, errCtx, "## Previous Agent Summary")
	assert.Contains(t, errCtx, "## Errors Found")
	assert.Contains(t, errCtx, "## Test Results")
	assert.Contains(t, errCtx, "## Additional Details")
}

func TestErrorContext_TruncatesFullOutput(t *testing.T) {
	output := "## Summary\nBroken.\n\n1 failed\n" + strings.Repeat("x", 5000)
	ctx := Distill(output, models.RoleTester)

	errCtx := ctx.ErrorContext()
	// The raw output slice is bounded at 1000 characters.
	idx := strings.Index(errCtx, "## Additional Details\n")
	require.GreaterOrEqual(t, idx, 0)
	tail := errCtx[idx+len("## Additional Details\n"):]
	assert.LessOrEqual(t, len(tail), 1000)
}
