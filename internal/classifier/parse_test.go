package classifier

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/inertial_activity/internal/activity"
)

func TestParseResponse(t *testing.T) {
	body := []byte(`{"y": "[[0.1, 0.2, 0.05, 0.6, 0.03, 0.02]]"}`)
	pv, err := ParseResponse(body)
	require.NoError(t, err)

	want := activity.ProbabilityVector{0.1, 0.2, 0.05, 0.6, 0.03, 0.02}
	if diff := cmp.Diff(want, pv); diff != "" {
		t.Errorf("parsed vector mismatch (-want +got):\n%s", diff)
	}
}

func TestParseProbabilities_StripsExactlyTwoEachSide(t *testing.T) {
	// Any two-character envelope is cut; the content is what matters.
	pv, err := ParseProbabilities("((1,0,0,0,0,0))")
	require.NoError(t, err)
	assert.Equal(t, float32(1), pv[0])

	// A single-bracket list is still cut by two characters on each side,
	// so its first and last values are truncated ("0.1" -> ".1", "0.02" -> "0.0").
	pv, err = ParseProbabilities("[0.1, 0.2, 0.05, 0.6, 0.03, 0.02]")
	require.NoError(t, err)
	assert.Equal(t, float32(0.1), pv[0])
	assert.Equal(t, float32(0), pv[5])
}

func TestParseResponse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>oops</html>`},
		{"missing y", `{"z": "[[0.1]]"}`},
		{"y not a string", `{"y": [[0.1, 0.2]]}`},
		{"too short", `{"y": "[]"}`},
		{"wrong count", `{"y": "[[0.1, 0.2, 0.7]]"}`},
		{"non numeric", `{"y": "[[0.1, 0.2, abc, 0.6, 0.03, 0.02]]"}`},
		{"empty token", `{"y": "[[0.1, , 0.05, 0.6, 0.03, 0.02]]"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResponse([]byte(tt.body))
			var terr *TransportError
			require.True(t, errors.As(err, &terr), "got %v", err)
			assert.Equal(t, MalformedBody, terr.Kind)
		})
	}
}
