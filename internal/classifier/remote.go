package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/relabs-tech/inertial_activity/internal/activity"
	"github.com/relabs-tech/inertial_activity/internal/httputil"
	"github.com/relabs-tech/inertial_activity/internal/window"
)

// FormField is the multipart field carrying the serialized window.
const FormField = "x"

// RemoteName is the Name reported by RemoteClassifier.
const RemoteName = "remote"

// maxDiscard bounds how much of a rejected response body is drained.
const maxDiscard = 64 << 10

// RemoteClassifier posts windows to an HTTP prediction service.
// It never retries.
type RemoteClassifier struct {
	endpoint string
	client   httputil.HTTPClient
}

// RemoteOption configures a RemoteClassifier.
type RemoteOption func(*RemoteClassifier)

// WithHTTPClient replaces the timeout-enforcing default client.
func WithHTTPClient(c httputil.HTTPClient) RemoteOption {
	return func(r *RemoteClassifier) {
		r.client = c
	}
}

// NewRemoteClassifier creates a backend for endpoint with per-phase timeouts t.
func NewRemoteClassifier(endpoint string, t Timeouts, opts ...RemoteOption) *RemoteClassifier {
	r := &RemoteClassifier{
		endpoint: endpoint,
		client:   httputil.NewStandardClient(NewTimeoutHTTPClient(t)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name implements Backend.
func (r *RemoteClassifier) Name() string { return RemoteName }

// Endpoint returns the prediction URL.
func (r *RemoteClassifier) Endpoint() string { return r.endpoint }

// Classify implements Backend.
func (r *RemoteClassifier) Classify(ctx context.Context, fv window.FeatureVector) (activity.ProbabilityVector, error) {
	if err := checkFeatures(fv); err != nil {
		return nil, r.fail("invalid input", err)
	}

	body, contentType, err := EncodeRequest(fv)
	if err != nil {
		return nil, r.fail("encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, body)
	if err != nil {
		return nil, r.fail("build request", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, r.fail("post", transportError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDiscard))
		return nil, r.fail("post", &TransportError{Kind: NonSuccessStatus, StatusCode: resp.StatusCode})
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, r.fail("read body", transportError(err))
	}

	pv, err := ParseResponse(data)
	if err != nil {
		return nil, r.fail("parse response", err)
	}
	return pv, nil
}

func (r *RemoteClassifier) fail(detail string, err error) error {
	return &ClassificationError{Kind: RemoteFailure, Backend: r.Name(), Detail: detail, Err: err}
}

// EncodeRequest builds the multipart body: field "x" holds the window as a
// batch of one, i.e. a JSON array wrapping the feature array.
func EncodeRequest(fv window.FeatureVector) (io.Reader, string, error) {
	payload, err := json.Marshal([][]float32{fv})
	if err != nil {
		return nil, "", fmt.Errorf("marshal features: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField(FormField, string(payload)); err != nil {
		return nil, "", fmt.Errorf("write form field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}
