package workers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsKernelThread_MatchesKnownNames(t *testing.T) {
	assert.True(t, isKernelThread("kthreadd"))
	assert.True(t, isKernelThread("KSOFTIRQD"))
}

func TestIsKernelThread_MatchesBracketedNames(t *testing.T) {
	assert.True(t, isKernelThread("[kworker/0:1]"))
}

func TestIsKernelThread_RegularProcessIsNotAKernelThread(t *testing.T) {
	assert.False(t, isKernelThread("steam"))
	assert.False(t, isKernelThread("firefox"))
}
