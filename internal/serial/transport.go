package serial

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/igbemx/dev-softimax-lauda-t2200/internal/lauda"
	"github.com/igbemx/dev-softimax-lauda-t2200/internal/metrics"
)

// nowFn and sleepFn allow tests to intercept the deadline clock.
var (
	nowFn   = time.Now
	sleepFn = time.Sleep
)

// idleWait is how long the read loop pauses after an empty read slice before
// polling the port again.
const idleWait = 5 * time.Millisecond

// Transport serializes line-oriented request/response exchanges over a single
// serial port. The instrument protocol permits exactly one in-flight request,
// so the whole write+read is guarded by one mutex.
type Transport struct {
	mu      sync.Mutex
	port    Port
	timeout time.Duration
}

// NewTransport wraps an open port. timeout is the overall per-exchange
// deadline for the response line.
func NewTransport(p Port, timeout time.Duration) *Transport {
	return &Transport{port: p, timeout: timeout}
}

// Exchange writes cmd terminated CRLF and reads back one response line.
// It fails with lauda.ErrTimeout when no full line arrives within the
// deadline and lauda.ErrTransport on port errors.
func (t *Transport) Exchange(ctx context.Context, cmd string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := t.port.Write([]byte(cmd + "\r\n")); err != nil {
		metrics.IncError(metrics.ErrSerialWrite)
		return "", fmt.Errorf("%w: write %s: %v", lauda.ErrTransport, cmd, err)
	}
	line, err := t.readLine(ctx, cmd)
	if err != nil {
		return "", err
	}
	metrics.IncSerialExchange()
	return line, nil
}

func (t *Transport) readLine(ctx context.Context, cmd string) (string, error) {
	deadline := nowFn().Add(t.timeout)
	buf := make([]byte, 256)
	var acc bytes.Buffer
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := t.port.Read(buf)
		if n > 0 {
			acc.Write(buf[:n])
			if i := bytes.IndexByte(acc.Bytes(), '\n'); i >= 0 {
				return strings.TrimSpace(string(acc.Bytes()[:i])), nil
			}
		}
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			metrics.IncError(metrics.ErrSerialRead)
			return "", fmt.Errorf("%w: read after %s: %v", lauda.ErrTransport, cmd, err)
		}
		if !nowFn().Before(deadline) {
			metrics.IncSerialTimeout()
			return "", fmt.Errorf("%w: no response to %s within %v", lauda.ErrTimeout, cmd, t.timeout)
		}
		if n == 0 {
			sleepFn(idleWait)
		}
	}
}

// Close releases the underlying port.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port.Close()
}
