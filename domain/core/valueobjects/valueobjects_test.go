package valueobjects

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	pkgerrors "synergy-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScore(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		wantErr bool
	}{
		{"zero", 0, false},
		{"one", 1, false},
		{"threshold", 0.75, false},
		{"negative", -0.001, true},
		{"above one", 1.0001, true},
		{"NaN", math.NaN(), true},
		{"infinity", math.Inf(1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewScore(tt.value)
			if tt.wantErr {
				assert.True(t, pkgerrors.IsInvalidScore(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.value, s.Float64())
		})
	}
}

func TestScore_Meets_IsInclusive(t *testing.T) {
	assert.True(t, MustScore(0.75).Meets(0.75))
	assert.True(t, MustScore(0.76).Meets(0.75))
	assert.False(t, MustScore(0.7499).Meets(0.75))
}

func TestScore_JSON(t *testing.T) {
	var s Score
	require.NoError(t, json.Unmarshal([]byte("0.9"), &s))
	assert.Equal(t, 0.9, s.Float64())

	assert.Error(t, json.Unmarshal([]byte("1.2"), &s))

	data, err := json.Marshal(MustScore(0.8))
	require.NoError(t, err)
	assert.Equal(t, "0.8", string(data))
}

func TestNewDomainID(t *testing.T) {
	id, err := NewDomainID("  materials-science ")
	require.NoError(t, err)
	assert.Equal(t, "materials-science", id.String())

	_, err = NewDomainID("   ")
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = NewDomainIDWithLimit(strings.Repeat("x", 11), 10)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestDomainID_JSON(t *testing.T) {
	var id DomainID
	require.NoError(t, json.Unmarshal([]byte(`"biology"`), &id))
	assert.True(t, id.Equals(MustDomainID("biology")))

	assert.Error(t, json.Unmarshal([]byte(`""`), &id))
	assert.Error(t, json.Unmarshal([]byte(`42`), &id))

	data, err := json.Marshal(MustDomainID("chemistry"))
	require.NoError(t, err)
	assert.Equal(t, `"chemistry"`, string(data))
}
