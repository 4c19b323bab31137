// Package httpingestion sends log containers to the ingestion endpoint over HTTP
package httpingestion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/relex/logchannel/base"
	"github.com/relex/logchannel/defs"
	"github.com/relex/logchannel/util"
)

const logsPath = "/logs?api-version=1.0.0"

// Client implements base.IngestionClient by HTTP POST of JSON
//
// Each send runs in its own goroutine. Concurrency is bounded by the channel's parallel limit of each group.
type Client struct {
	logger      logger.Logger
	httpClient  *http.Client
	endpoint    string
	compress    bool
	metrics     clientMetrics
	baseContext context.Context
	cancel      context.CancelFunc
	taskCounter *sync.WaitGroup
	close       func() bool

	mutex  sync.Mutex
	closed bool
}

// NewClient creates a Client for the server at serverURL, e.g. "https://in.example.com"
func NewClient(parentLogger logger.Logger, metricCreator promreg.MetricCreator, serverURL string, requestTimeout time.Duration,
	compress bool,
) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		logger:      parentLogger.WithFields(logger.Fields{defs.LabelComponent: "HTTPIngestion", defs.LabelRemote: serverURL}),
		httpClient:  &http.Client{Timeout: requestTimeout},
		endpoint:    strings.TrimSuffix(serverURL, "/") + logsPath,
		compress:    compress,
		metrics:     newClientMetrics(metricCreator),
		baseContext: ctx,
		cancel:      cancel,
		taskCounter: &sync.WaitGroup{},
		mutex:       sync.Mutex{},
		closed:      false,
	}
	client.close = util.NewRunOnce(client.doClose)
	return client
}

// SendAsync posts the container in background and calls onDone with the unclassified result
func (client *Client) SendAsync(appSecret string, installID uuid.UUID, container base.LogContainer, onDone func(result base.SendResult)) {
	client.mutex.Lock()
	if client.closed {
		client.mutex.Unlock()
		onDone(base.Failed(ErrClientClosed))
		return
	}
	client.taskCounter.Add(1)
	client.mutex.Unlock()

	go func() {
		defer client.taskCounter.Done()
		client.metrics.outstandingRequests.Inc()
		result := client.send(appSecret, installID, container)
		client.metrics.outstandingRequests.Dec()
		client.metrics.OnCompleted(result, len(container.Logs))
		onDone(result)
	}()
}

func (client *Client) send(appSecret string, installID uuid.UUID, container base.LogContainer) base.SendResult {
	body, eerr := encodeContainer(container, client.compress)
	if eerr != nil {
		client.logger.Errorf("error encoding %d logs: %s", len(container.Logs), eerr.Error())
		return base.Fatal(eerr)
	}

	request, rerr := http.NewRequestWithContext(client.baseContext, http.MethodPost, client.endpoint, bytes.NewReader(body))
	if rerr != nil {
		return base.Fatal(fmt.Errorf("%w: %s", errEncoding, rerr.Error()))
	}
	request.Header.Set("Content-Type", "application/json")
	if client.compress {
		request.Header.Set("Content-Encoding", "gzip")
	}
	request.Header.Set("App-Secret", appSecret)
	request.Header.Set("Install-ID", installID.String())

	client.metrics.OnRequesting(len(body))
	response, herr := client.httpClient.Do(request)
	if herr != nil {
		if client.baseContext.Err() != nil {
			return base.Recoverable(fmt.Errorf("%w: %s", ErrClientClosed, herr.Error()))
		}
		client.logger.Warnf("request error: %s", herr.Error())
		return base.Failed(fmt.Errorf("request error: %w", herr))
	}
	defer response.Body.Close()

	responseBody, berr := io.ReadAll(io.LimitReader(response.Body, int64(defs.IngestionMaxResponseBytes)))
	if response.StatusCode >= 200 && response.StatusCode < 300 {
		client.logger.Debugf("sent %d logs, %d bytes", len(container.Logs), len(body))
		return base.Succeeded()
	}
	if berr != nil {
		client.logger.Debugf("error reading response body: %s", berr.Error())
	}
	httpErr := &HTTPError{StatusCode: response.StatusCode, Body: string(responseBody)}
	client.logger.Warnf("request rejected: %s", httpErr.Error())
	return base.Failed(httpErr)
}

// IsRecoverable classifies errors passed to onDone
func (client *Client) IsRecoverable(err error) bool {
	return IsRecoverableError(err)
}

// Close aborts outstanding requests and waits for their callbacks. Subsequent sends fail with ErrClientClosed
func (client *Client) Close() {
	client.close()
}

func (client *Client) doClose() {
	client.mutex.Lock()
	client.closed = true
	client.mutex.Unlock()

	client.cancel()
	if !channels.NewWaitGroupAwaitable(client.taskCounter).Wait(defs.IngestionCloseTimeout) {
		client.logger.Warnf("timeout waiting for outstanding requests")
	}
	client.httpClient.CloseIdleConnections()
	client.logger.Infof("closed")
}
