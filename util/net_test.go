package util

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNet(t *testing.T) {
	lsnr, lerr := net.Listen("tcp", "localhost:0")
	assert.NoError(t, lerr)

	t.Log("listening " + lsnr.Addr().String())

	go func() {
		cconn, cerr := net.Dial("tcp", lsnr.Addr().String())
		assert.NoError(t, cerr)

		cconn.Close()
	}()

	sconn, serr := lsnr.Accept()
	assert.NoError(t, serr)

	t.Run("check error", func(tt *testing.T) {
		sconn.Close()
		_, err := sconn.Write([]byte("Hi"))
		if assert.Error(tt, err) {
			assert.True(tt, IsNetworkError(err))
			assert.True(tt, IsNetworkClosed(err))
		}
	})

	t.Run("connection refused", func(tt *testing.T) {
		addr := lsnr.Addr().String()
		lsnr.Close()
		_, err := net.DialTimeout("tcp", addr, time.Second)
		if assert.Error(tt, err) {
			assert.True(tt, IsNetworkError(err))
			assert.True(tt, IsNetworkError(fmt.Errorf("wrapped: %w", err)))
		}
	})
}

func TestIsNetworkErrorClassification(t *testing.T) {
	assert.False(t, IsNetworkError(nil))
	assert.False(t, IsNetworkError(errors.New("bad request")))
	assert.True(t, IsNetworkError(context.DeadlineExceeded))
	assert.True(t, IsNetworkError(fmt.Errorf("post: %w", context.DeadlineExceeded)))
	assert.True(t, IsNetworkError(&net.DNSError{Err: "no such host", Name: "nowhere.invalid"}))
}
