package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunSummary_TotalFetched(t *testing.T) {
	r := &RunSummary{
		Projects: []ProjectRunStats{
			{ProjectID: 1, Fetched: 10},
			{ProjectID: 2, Fetched: 5},
		},
	}
	assert.Equal(t, 15, r.TotalFetched())
}

func TestRunSummary_HasFailures(t *testing.T) {
	t.Run("clean run has no failures", func(t *testing.T) {
		r := &RunSummary{Projects: []ProjectRunStats{{ProjectID: 1, Fetched: 3}}}
		assert.False(t, r.HasFailures())
	})

	t.Run("fatal error counts as a failure", func(t *testing.T) {
		r := &RunSummary{FatalError: "database unreachable"}
		assert.True(t, r.HasFailures())
	})

	t.Run("per-project failed count counts as a failure", func(t *testing.T) {
		r := &RunSummary{Projects: []ProjectRunStats{{ProjectID: 1, Failed: 1}}}
		assert.True(t, r.HasFailures())
	})

	t.Run("per-project error list counts as a failure", func(t *testing.T) {
		r := &RunSummary{Projects: []ProjectRunStats{{ProjectID: 1, Errors: []string{"timeout"}}}}
		assert.True(t, r.HasFailures())
	})
}
