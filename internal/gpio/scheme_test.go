package gpio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemeResolve(t *testing.T) {
	tests := []struct {
		name    string
		scheme  Scheme
		id      int
		want    int
		wantErr bool
	}{
		{"logical passthrough", Logical, 17, 17, false},
		{"logical zero", Logical, 0, 0, false},
		{"logical negative", Logical, -1, 0, true},
		{"physical 11 is GPIO17", Physical, 11, 17, false},
		{"physical 13 is GPIO27", Physical, 13, 27, false},
		{"physical 40 is GPIO21", Physical, 40, 21, false},
		{"physical ground pin", Physical, 6, 0, true},
		{"physical out of range", Physical, 41, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.scheme.Resolve(tt.id)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPin)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseScheme(t *testing.T) {
	for in, want := range map[string]Scheme{
		"logical":  Logical,
		"BCM":      Logical,
		"physical": Physical,
		"board":    Physical,
	} {
		got, err := ParseScheme(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseScheme("wiringpi")
	assert.Error(t, err)
}
