package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/igbemx/dev-softimax-lauda-t2200/internal/lauda"
)

// fakePort serves scripted response lines. A Read with nothing pending
// mimics a tarm read-timeout slice (0, io.EOF).
type fakePort struct {
	mu       sync.Mutex
	writes   []string
	pending  []byte
	respond  func(cmd string) string
	writeErr error
	readErr  error
	maxRead  int // cap bytes per Read; 0 = unlimited
}

func (f *fakePort) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.writes = append(f.writes, string(p))
	if f.respond != nil {
		cmd := strings.TrimSpace(string(p))
		f.pending = append(f.pending, []byte(f.respond(cmd)+"\r\n")...)
	}
	return len(p), nil
}

func (f *fakePort) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return 0, f.readErr
	}
	if len(f.pending) == 0 {
		return 0, io.EOF
	}
	n := len(f.pending)
	if f.maxRead > 0 && n > f.maxRead {
		n = f.maxRead
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, f.pending[:n])
	f.pending = f.pending[n:]
	return n, nil
}

func (f *fakePort) Close() error { return nil }

func TestTransport_Exchange(t *testing.T) {
	fp := &fakePort{respond: func(cmd string) string {
		if cmd == "IN_PV_00" {
			return "23.5"
		}
		return "OK"
	}}
	tr := NewTransport(fp, time.Second)
	resp, err := tr.Exchange(context.Background(), "IN_PV_00")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if resp != "23.5" {
		t.Fatalf("response = %q, want 23.5", resp)
	}
	if len(fp.writes) != 1 || fp.writes[0] != "IN_PV_00\r\n" {
		t.Fatalf("wire writes = %q, want one CRLF-terminated command", fp.writes)
	}
}

func TestTransport_SplitResponse(t *testing.T) {
	fp := &fakePort{maxRead: 1, respond: func(string) string { return "21.00" }}
	tr := NewTransport(fp, time.Second)
	resp, err := tr.Exchange(context.Background(), "IN_SP_00")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if resp != "21.00" {
		t.Fatalf("response = %q, want 21.00 reassembled from single-byte reads", resp)
	}
}

func TestTransport_Timeout(t *testing.T) {
	fp := &fakePort{} // never responds
	tr := NewTransport(fp, 30*time.Millisecond)
	_, err := tr.Exchange(context.Background(), "STATUS")
	if !errors.Is(err, lauda.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestTransport_WriteError(t *testing.T) {
	fp := &fakePort{writeErr: errors.New("port gone")}
	tr := NewTransport(fp, time.Second)
	_, err := tr.Exchange(context.Background(), "STATUS")
	if !errors.Is(err, lauda.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestTransport_ReadError(t *testing.T) {
	fp := &fakePort{respond: func(string) string { return "0" }}
	fp.readErr = errors.New("read failed")
	tr := NewTransport(fp, time.Second)
	_, err := tr.Exchange(context.Background(), "STATUS")
	if !errors.Is(err, lauda.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestTransport_ContextCancelled(t *testing.T) {
	fp := &fakePort{}
	tr := NewTransport(fp, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tr.Exchange(ctx, "STATUS"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTransport_SerializesExchanges(t *testing.T) {
	fp := &fakePort{respond: func(cmd string) string { return "val-" + cmd }}
	tr := NewTransport(fp, time.Second)
	const n = 16
	var wg sync.WaitGroup
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cmd := fmt.Sprintf("CMD_%02d", i)
			resp, err := tr.Exchange(context.Background(), cmd)
			if err != nil {
				errCh <- err
				return
			}
			if resp != "val-"+cmd {
				errCh <- fmt.Errorf("response %q for command %q", resp, cmd)
			}
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("interleaved exchange: %v", err)
	}
	// Every write on the wire must be one complete command line.
	for _, w := range fp.writes {
		if !strings.HasSuffix(w, "\r\n") || strings.Count(w, "\r\n") != 1 {
			t.Fatalf("partial or merged write on the wire: %q", w)
		}
	}
	if len(fp.writes) != n {
		t.Fatalf("got %d writes, want %d", len(fp.writes), n)
	}
}
