package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/igbemx/dev-softimax-lauda-t2200/internal/attr"
	"github.com/igbemx/dev-softimax-lauda-t2200/internal/hub"
	"github.com/igbemx/dev-softimax-lauda-t2200/internal/metrics"
)

// helloLine is the client side of the handshake. The server answers with the
// same token followed by the device-server instance name.
const helloLine = "HELLO LAUDA/1"

type session struct {
	srv    *Server
	conn   net.Conn
	logger *slog.Logger
	wmu    sync.Mutex
	submu  sync.Mutex
	cl     *hub.Client
}

// runSession performs the handshake and then serves commands until the
// connection drops or the context is cancelled.
func (s *Server) runSession(ctx context.Context, conn net.Conn, logger *slog.Logger) {
	sess := &session{srv: s, conn: conn, logger: logger}
	defer func() {
		sess.unsubscribe()
		_ = conn.Close()
		s.totalDisconnected.Add(1)
		logger.Info("client_disconnected")
	}()
	br := bufio.NewReader(conn)
	if err := sess.handshake(br); err != nil {
		wrap := fmt.Errorf("%w: %v", ErrHandshake, err)
		metrics.IncError(mapErrToMetric(wrap))
		s.setError(wrap)
		s.totalHandshakeFail.Add(1)
		logger.Warn("handshake_failed", "error", wrap)
		return
	}
	s.totalConnected.Add(1)
	logger.Info("client_connected")
	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.readDeadline))
		line, err := br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue // idle subscriber; refresh deadline
			}
			wrap := fmt.Errorf("%w: %v", ErrConnRead, err)
			metrics.IncError(mapErrToMetric(wrap))
			s.setError(wrap)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		metrics.IncTCPCommand()
		resp := sess.execute(ctx, line)
		if resp == "" {
			continue
		}
		if err := sess.writeLine(resp); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// handshake expects the client hello within the handshake timeout and
// answers with the instance banner.
func (sess *session) handshake(br *bufio.Reader) error {
	if err := sess.conn.SetDeadline(time.Now().Add(sess.srv.handshakeTimeout)); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}
	defer sess.conn.SetDeadline(time.Time{})
	line, err := br.ReadString('\n')
	if err != nil {
		return err
	}
	if strings.TrimSpace(line) != helloLine {
		return errors.New("bad hello")
	}
	banner := helloLine
	if sess.srv.instance != "" {
		banner += " " + sess.srv.instance
	}
	return sess.writeLine(banner)
}

// writeLine sends one CRLF-terminated line, serialized against concurrent
// update pushes on the same connection.
func (sess *session) writeLine(line string) error {
	sess.wmu.Lock()
	defer sess.wmu.Unlock()
	if _, err := sess.conn.Write([]byte(line + "\r\n")); err != nil {
		wrap := fmt.Errorf("%w: %v", ErrConnWrite, err)
		metrics.IncError(mapErrToMetric(wrap))
		sess.srv.setError(wrap)
		return wrap
	}
	return nil
}

// execute runs one client command and returns the response line.
func (sess *session) execute(ctx context.Context, line string) string {
	s := sess.srv
	fields := strings.Fields(line)
	cmd := strings.ToUpper(fields[0])
	switch cmd {
	case "READ":
		if len(fields) != 2 {
			return "ERR " + CodeBadCmd + " usage: READ <attr>"
		}
		name := fields[1]
		v, err := s.Registry.Read(ctx, name)
		if err != nil {
			return fmt.Sprintf("ERR %s %v", errCode(err), err)
		}
		return fmt.Sprintf("OK %s %s", name, v)
	case "WRITE":
		if len(fields) < 3 {
			return "ERR " + CodeBadCmd + " usage: WRITE <attr> <value>"
		}
		name := fields[1]
		a, ok := s.Registry.Get(name)
		if !ok {
			return fmt.Sprintf("ERR %s unknown attribute: %s", CodeBadAttr, name)
		}
		v, err := attr.ParseValue(a.Kind, strings.Join(fields[2:], " "))
		if err != nil {
			return fmt.Sprintf("ERR %s %v", CodeBadValue, err)
		}
		got, err := s.Registry.Write(ctx, name, v)
		if err != nil {
			return fmt.Sprintf("ERR %s %v", errCode(err), err)
		}
		return fmt.Sprintf("OK %s %s", name, got)
	case "ATTRS":
		specs := make([]string, 0, 8)
		for _, name := range s.Registry.Names() {
			a, _ := s.Registry.Get(name)
			unit := a.Unit
			if unit == "" {
				unit = "-"
			}
			specs = append(specs, fmt.Sprintf("%s:%s:%s:%s", a.Name, a.Kind, a.Access, unit))
		}
		return "OK " + strings.Join(specs, " ")
	case "STATE":
		if s.stateFn == nil {
			return "ERR " + CodeBadCmd + " state not available"
		}
		return "OK " + s.stateFn().String()
	case "SUBSCRIBE":
		sess.subscribe(ctx.Done())
		return "OK subscribed"
	case "UNSUBSCRIBE":
		sess.unsubscribe()
		return "OK unsubscribed"
	case "PING":
		return "OK pong"
	default:
		return fmt.Sprintf("ERR %s unknown command: %s", CodeBadCmd, cmd)
	}
}

// subscribe registers the session with the hub and starts the update pusher.
// Idempotent.
func (sess *session) subscribe(ctxDone <-chan struct{}) {
	sess.submu.Lock()
	defer sess.submu.Unlock()
	if sess.cl != nil {
		return
	}
	bufSize := 64
	if sess.srv.Hub != nil && sess.srv.Hub.OutBufSize > 0 {
		bufSize = sess.srv.Hub.OutBufSize
	}
	cl := &hub.Client{Out: make(chan attr.Update, bufSize), Closed: make(chan struct{})}
	sess.cl = cl
	sess.srv.Hub.Add(cl)
	sess.srv.wg.Add(1)
	go sess.push(ctxDone, cl)
}

// unsubscribe removes the session from the hub. Idempotent.
func (sess *session) unsubscribe() {
	sess.submu.Lock()
	cl := sess.cl
	sess.cl = nil
	sess.submu.Unlock()
	if cl != nil && sess.srv.Hub != nil {
		sess.srv.Hub.Remove(cl)
	}
}

// push forwards hub updates to the connection as UPDATE lines. A close of
// the client channel while still subscribed means the hub kicked us for
// backpressure; the connection is dropped in that case.
func (sess *session) push(ctxDone <-chan struct{}, cl *hub.Client) {
	defer sess.srv.wg.Done()
	for {
		select {
		case u := <-cl.Out:
			if err := sess.writeLine(fmt.Sprintf("UPDATE %s %s", u.Name, u.Value)); err != nil {
				_ = sess.conn.Close()
				return
			}
			metrics.IncUpdatePushed()
		case <-cl.Closed:
			sess.submu.Lock()
			kicked := sess.cl == cl
			sess.cl = nil
			sess.submu.Unlock()
			if kicked {
				sess.logger.Warn("client_kicked_backpressure")
				_ = sess.conn.Close()
				sess.srv.Hub.Remove(cl)
			}
			return
		case <-ctxDone:
			return
		}
	}
}
