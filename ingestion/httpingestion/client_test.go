package httpingestion

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/relex/logchannel/base"
	"github.com/relex/logchannel/defs"
	"github.com/stretchr/testify/assert"
)

var testInstallID = uuid.MustParse("5f3b0e8a-3c55-4b8e-9c1a-2b1c0d6e7f80")

type receivedRequest struct {
	Path      string
	Header    http.Header
	Container base.LogContainer
}

type testServer struct {
	*httptest.Server
	mutex    sync.Mutex
	status   int
	requests []receivedRequest
}

func newTestServer(t *testing.T, status int) *testServer {
	srv := &testServer{status: status}
	srv.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reader io.Reader = r.Body
		if r.Header.Get("Content-Encoding") == "gzip" {
			gz, err := gzip.NewReader(r.Body)
			if !assert.NoError(t, err) {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			reader = gz
		}
		req := receivedRequest{Path: r.URL.RequestURI(), Header: r.Header.Clone()}
		assert.NoError(t, json.NewDecoder(reader).Decode(&req.Container))

		srv.mutex.Lock()
		srv.requests = append(srv.requests, req)
		status := srv.status
		srv.mutex.Unlock()

		w.WriteHeader(status)
		_, _ = w.Write([]byte("response-text"))
	}))
	return srv
}

func (srv *testServer) Requests() []receivedRequest {
	srv.mutex.Lock()
	defer srv.mutex.Unlock()
	return append([]receivedRequest(nil), srv.requests...)
}

func newTestClient(serverURL string, compress bool) *Client {
	return NewClient(logger.WithField(defs.LabelComponent, "TestHTTPIngestion"),
		promreg.NewMetricFactory("testhttpingestion_", nil, nil), serverURL, 2*time.Second, compress)
}

func makeTestContainer(n int) base.LogContainer {
	container := base.LogContainer{}
	for i := 0; i < n; i++ {
		container.Logs = append(container.Logs, &base.Log{
			Type:       defs.LogTypeEvent,
			ID:         uuid.NewString(),
			Timestamp:  time.Date(2022, 7, 1, 0, 0, i, 0, time.UTC),
			Name:       "click",
			Properties: map[string]string{"button": "ok"},
		})
	}
	return container
}

func sendAndWait(t *testing.T, client *Client, container base.LogContainer) base.SendResult {
	done := make(chan base.SendResult, 2)
	client.SendAsync("app-secret", testInstallID, container, func(result base.SendResult) {
		done <- result
	})
	select {
	case result := <-done:
		return result
	case <-time.After(5 * time.Second):
		assert.Fail(t, "timeout waiting for completion")
		return base.SendResult{}
	}
}

func TestClientSuccess(t *testing.T) {
	for _, compress := range []bool{false, true} {
		srv := newTestServer(t, http.StatusOK)
		client := newTestClient(srv.URL+"/", compress)

		result := sendAndWait(t, client, makeTestContainer(3))
		assert.Equal(t, base.SendSucceeded, result.Outcome)
		assert.NoError(t, result.Err)

		requests := srv.Requests()
		if assert.Len(t, requests, 1) {
			req := requests[0]
			assert.Equal(t, "/logs?api-version=1.0.0", req.Path)
			assert.Equal(t, "app-secret", req.Header.Get("App-Secret"))
			assert.Equal(t, testInstallID.String(), req.Header.Get("Install-ID"))
			assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
			if assert.Len(t, req.Container.Logs, 3) {
				assert.Equal(t, "click", req.Container.Logs[0].Name)
				assert.Equal(t, "ok", req.Container.Logs[2].Properties["button"])
			}
		}

		client.Close()
		srv.Close()
	}
}

func TestClientHTTPErrors(t *testing.T) {
	cases := []struct {
		status      int
		recoverable bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusTooManyRequests, true},
		{http.StatusBadRequest, false},
		{http.StatusForbidden, false},
	}
	srv := newTestServer(t, http.StatusOK)
	defer srv.Close()
	client := newTestClient(srv.URL, false)
	defer client.Close()

	for _, c := range cases {
		srv.mutex.Lock()
		srv.status = c.status
		srv.mutex.Unlock()

		result := sendAndWait(t, client, makeTestContainer(1))
		assert.Equal(t, base.SendFailed, result.Outcome, c.status)
		var httpErr *HTTPError
		if assert.True(t, errors.As(result.Err, &httpErr)) {
			assert.Equal(t, c.status, httpErr.StatusCode)
			assert.Equal(t, "response-text", httpErr.Body)
		}
		assert.Equal(t, c.recoverable, client.IsRecoverable(result.Err), c.status)
	}
}

func TestClientNetworkError(t *testing.T) {
	srv := newTestServer(t, http.StatusOK)
	serverURL := srv.URL
	srv.Close()

	client := newTestClient(serverURL, false)
	defer client.Close()
	result := sendAndWait(t, client, makeTestContainer(1))
	assert.Equal(t, base.SendFailed, result.Outcome)
	assert.True(t, client.IsRecoverable(result.Err))
}

func TestClientClose(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := newTestClient(srv.URL, false)
	done := make(chan base.SendResult, 1)
	client.SendAsync("app-secret", testInstallID, makeTestContainer(1), func(result base.SendResult) {
		done <- result
	})
	time.Sleep(100 * time.Millisecond)
	client.Close()

	select {
	case result := <-done:
		assert.NotEqual(t, base.SendSucceeded, result.Outcome)
		assert.ErrorIs(t, result.Err, ErrClientClosed)
		assert.True(t, client.IsRecoverable(result.Err))
	default:
		assert.Fail(t, "outstanding request not completed by Close")
	}

	// sends after close fail immediately
	result := sendAndWait(t, client, makeTestContainer(1))
	assert.ErrorIs(t, result.Err, ErrClientClosed)
}

func TestIsRecoverableError(t *testing.T) {
	assert.False(t, IsRecoverableError(nil))
	assert.False(t, IsRecoverableError(errEncoding))
	assert.True(t, IsRecoverableError(&HTTPError{StatusCode: http.StatusRequestTimeout}))
	assert.False(t, IsRecoverableError(&HTTPError{StatusCode: http.StatusNotFound}))
	assert.False(t, IsRecoverableError(errors.New("unknown")))
}

func TestEncodeContainer(t *testing.T) {
	container := makeTestContainer(2)
	plain, err := encodeContainer(container, false)
	assert.NoError(t, err)
	assert.True(t, bytes.HasPrefix(plain, []byte(`{"logs":[{"type":"event"`)))

	compressed, cerr := encodeContainer(container, true)
	assert.NoError(t, cerr)
	gz, gerr := gzip.NewReader(bytes.NewReader(compressed))
	if assert.NoError(t, gerr) {
		decompressed, rerr := io.ReadAll(gz)
		assert.NoError(t, rerr)
		assert.Equal(t, plain, decompressed)
	}
}
