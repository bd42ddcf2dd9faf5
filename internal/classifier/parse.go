package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/relabs-tech/inertial_activity/internal/activity"
)

// predictResponse is the prediction service's reply. Y holds the batch
// result rendered as a string, e.g. "[[0.1, 0.2, 0.05, 0.6, 0.03, 0.02]]".
type predictResponse struct {
	Y *string `json:"y"`
}

// ParseResponse decodes a prediction service body into a probability vector.
// Every failure is a TransportError of kind MalformedBody.
func ParseResponse(body []byte) (activity.ProbabilityVector, error) {
	var resp predictResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &TransportError{Kind: MalformedBody, Err: fmt.Errorf("decode response: %w", err)}
	}
	if resp.Y == nil {
		return nil, &TransportError{Kind: MalformedBody, Err: errors.New(`response has no string field "y"`)}
	}
	pv, err := ParseProbabilities(*resp.Y)
	if err != nil {
		return nil, &TransportError{Kind: MalformedBody, Err: err}
	}
	return pv, nil
}

// ParseProbabilities parses the service's embedded list. The first two and
// last two characters are the batch delimiters ("[[" and "]]") and are cut
// unconditionally; the server emits exactly that envelope, so any other
// encoding is rejected by the token parse rather than tolerated.
func ParseProbabilities(y string) (activity.ProbabilityVector, error) {
	if len(y) < 4 {
		return nil, fmt.Errorf("embedded list %q too short", y)
	}
	inner := y[2 : len(y)-2]

	tokens := strings.Split(inner, ",")
	if len(tokens) != activity.LabelCount {
		return nil, fmt.Errorf("embedded list has %d values, want %d", len(tokens), activity.LabelCount)
	}

	pv := make(activity.ProbabilityVector, len(tokens))
	for i, tok := range tokens {
		v, err := strconv.ParseFloat(strings.TrimSpace(tok), 32)
		if err != nil {
			return nil, fmt.Errorf("value %d %q: %w", i, tok, err)
		}
		pv[i] = float32(v)
	}
	return pv, nil
}
