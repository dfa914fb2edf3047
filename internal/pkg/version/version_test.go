package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetFullVersion(t *testing.T) {
	orig := GitCommit
	t.Cleanup(func() { GitCommit = orig })

	GitCommit = ""
	assert.Equal(t, Version, GetFullVersion())

	GitCommit = "abc1234"
	assert.Equal(t, Version+"+abc1234", GetFullVersion())
}
