package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutcomeStyle(t *testing.T) {
	tests := []struct {
		outcome string
		want    any
	}{
		{"sent", ColorGreen},
		{"dry_run", ColorBlue},
		{"validation_error", ColorYellow},
		{"transport_error", ColorOrange},
		{"store_error", ColorRed},
		{"internal_error", ColorRed},
		{"other", ColorGray},
	}

	for _, tt := range tests {
		t.Run(tt.outcome, func(t *testing.T) {
			assert.Equal(t, tt.want, OutcomeStyle(tt.outcome).GetForeground())
		})
	}
}
