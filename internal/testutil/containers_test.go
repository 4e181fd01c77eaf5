package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSkipUnlessHealthy(t *testing.T) {
	tests := []struct {
		name        string
		check       func(*testing.T)
		wantSkipped bool
	}{
		{"healthy runtime", func(*testing.T) {}, false},
		{"check skips", func(t *testing.T) { t.Skip("provider not healthy") }, true},
		{"check panics", func(*testing.T) { panic("rootless Docker not found") }, true},
	}
	for _, tt := range tests {
		var sub *testing.T
		reached := false
		t.Run(tt.name, func(t *testing.T) {
			sub = t
			skipUnlessHealthy(t, tt.check)
			reached = true
		})
		assert.Equal(t, tt.wantSkipped, sub.Skipped(), tt.name)
		assert.Equal(t, !tt.wantSkipped, reached, tt.name)
	}
}
