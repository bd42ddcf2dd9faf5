package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/inertial_activity/internal/activity"
	"github.com/relabs-tech/inertial_activity/internal/httputil"
	"github.com/relabs-tech/inertial_activity/internal/window"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func testVector() window.FeatureVector {
	fv := make(window.FeatureVector, window.FeatureLength)
	for i := range fv {
		fv[i] = float32(i) / 100
	}
	return fv
}

func requireTransportKind(t *testing.T, err error, want TransportErrorKind) {
	t.Helper()
	var cerr *ClassificationError
	require.True(t, errors.As(err, &cerr), "got %v", err)
	assert.Equal(t, RemoteFailure, cerr.Kind)

	var terr *TransportError
	require.True(t, errors.As(err, &terr), "got %v", err)
	assert.Equal(t, want, terr.Kind, "got %v", err)
}

func TestRemoteClassifier_WireFormat(t *testing.T) {
	fv := testVector()
	var gotField string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotField = r.FormValue(FormField)
		_, _ = io.WriteString(w, `{"y": "[[0.1, 0.2, 0.05, 0.6, 0.03, 0.02]]"}`)
	}))
	defer srv.Close()

	rc := NewRemoteClassifier(srv.URL+"/predict", DefaultTimeouts())
	pv, err := rc.Classify(context.Background(), fv)
	require.NoError(t, err)
	assert.Equal(t, activity.ProbabilityVector{0.1, 0.2, 0.05, 0.6, 0.03, 0.02}, pv)

	var batch [][]float32
	require.NoError(t, json.Unmarshal([]byte(gotField), &batch))
	require.Len(t, batch, 1)
	assert.Equal(t, []float32(fv), batch[0])
	assert.True(t, strings.HasPrefix(gotField, "[["))
}

func TestRemoteClassifier_NonSuccessStatus(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(http.StatusInternalServerError, `{"error":"boom"}`)

	rc := NewRemoteClassifier("http://predict.invalid/predict", DefaultTimeouts(), WithHTTPClient(mock))
	_, err := rc.Classify(context.Background(), testVector())
	requireTransportKind(t, err, NonSuccessStatus)

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, http.StatusInternalServerError, terr.StatusCode)
	assert.Equal(t, 1, mock.RequestCount(), "no retry")
}

type stallingBody struct{}

func (stallingBody) Read([]byte) (int, error) {
	return 0, &net.OpError{Op: "read", Net: "tcp", Err: timeoutErr{}}
}

func (stallingBody) Close() error { return nil }

func TestRemoteClassifier_StatusCheckedBeforeBody(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.DoFunc = func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusServiceUnavailable,
			Body:       stallingBody{},
			Header:     make(http.Header),
			Request:    req,
		}, nil
	}

	rc := NewRemoteClassifier("http://predict.invalid/predict", DefaultTimeouts(), WithHTTPClient(mock))
	_, err := rc.Classify(context.Background(), testVector())
	requireTransportKind(t, err, NonSuccessStatus)

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, http.StatusServiceUnavailable, terr.StatusCode)
}

func TestRemoteClassifier_MalformedBody(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, `{"y": "[[0.1, 0.2]]"}`)

	rc := NewRemoteClassifier("http://predict.invalid/predict", DefaultTimeouts(), WithHTTPClient(mock))
	_, err := rc.Classify(context.Background(), testVector())
	requireTransportKind(t, err, MalformedBody)
}

func TestRemoteClassifier_TransportErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want TransportErrorKind
	}{
		{"connect timeout", &net.OpError{Op: "dial", Net: "tcp", Err: timeoutErr{}}, ConnectTimeout},
		{"write timeout", &net.OpError{Op: "write", Net: "tcp", Err: timeoutErr{}}, WriteTimeout},
		{"read timeout", &net.OpError{Op: "read", Net: "tcp", Err: timeoutErr{}}, ReadTimeout},
		{"header timeout", fmt.Errorf("post: %w", timeoutErr{}), ReadTimeout},
		{"refused", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, ConnectionFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := httputil.NewMockHTTPClient()
			mock.AddErrorResponse(tt.err)

			rc := NewRemoteClassifier("http://predict.invalid/predict", DefaultTimeouts(), WithHTTPClient(mock))
			_, err := rc.Classify(context.Background(), testVector())
			requireTransportKind(t, err, tt.want)
			assert.Equal(t, 1, mock.RequestCount())
		})
	}
}

func TestRemoteClassifier_RealReadTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	rc := NewRemoteClassifier(srv.URL, Timeouts{Connect: time.Second, Write: time.Second, Read: 50 * time.Millisecond})
	_, err := rc.Classify(context.Background(), testVector())
	requireTransportKind(t, err, ReadTimeout)
}

func TestRemoteClassifier_WrongLength(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	rc := NewRemoteClassifier("http://predict.invalid/predict", DefaultTimeouts(), WithHTTPClient(mock))

	_, err := rc.Classify(context.Background(), window.FeatureVector{1, 2, 3})
	var cerr *ClassificationError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, RemoteFailure, cerr.Kind)
	assert.ErrorIs(t, err, ErrFeatureLength)
	assert.Zero(t, mock.RequestCount())
}

func TestRemoteClassifier_Name(t *testing.T) {
	rc := NewRemoteClassifier("http://host:54321/predict", DefaultTimeouts())
	assert.Equal(t, "remote", rc.Name())
	assert.Equal(t, "http://host:54321/predict", rc.Endpoint())
}

func TestDefaultTimeouts(t *testing.T) {
	assert.Equal(t, Timeouts{Connect: 30 * time.Second, Write: 30 * time.Second, Read: 30 * time.Second}, DefaultTimeouts())
}
