// Package testutil provides shared test utilities and fixtures.
//
// This package centralises pose fixtures and small assertion helpers used
// across the mapping, session and output tests.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/posegrain/internal/pose"
)

// BodyLandmarkCount is the number of landmarks the pose estimator emits per
// body.
const BodyLandmarkCount = 33

// NeutralBody returns a full body with every landmark at the image centre.
func NeutralBody() []pose.Landmark {
	b := make([]pose.Landmark, BodyLandmarkCount)
	for i := range b {
		b[i] = pose.Landmark{X: 0.5, Y: 0.5, Visibility: 1}
	}
	return b
}

// Body returns NeutralBody with the given landmark indices replaced.
func Body(overrides map[int]pose.Landmark) []pose.Landmark {
	b := NeutralBody()
	for i, lm := range overrides {
		if i >= 0 && i < len(b) {
			b[i] = lm
		}
	}
	return b
}

// Frame wraps bodies in a pose frame.
func Frame(bodies ...[]pose.Landmark) *pose.Frame {
	return &pose.Frame{Bodies: bodies}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// NewTestRequest creates a test HTTP request that appears to come from
// localhost, so tsweb debug routes accept it.
func NewTestRequest(method, path string) *http.Request {
	return NewTestRequestBody(method, path, nil)
}

// NewTestRequestBody is NewTestRequest with a request body.
func NewTestRequestBody(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}
