package mail

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/audit-mailer/internal/model"
)

// testSMTPServer is a minimal SMTP server that accepts messages on a
// single connection and records the envelope and data it received.
type testSMTPServer struct {
	host string
	port int

	mu    sync.Mutex
	rcpts []string
	data  []string
	conns int

	ln net.Listener
	wg sync.WaitGroup
}

func startTestSMTPServer(t *testing.T) *testSMTPServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &testSMTPServer{host: "127.0.0.1", ln: ln}
	s.port = ln.Addr().(*net.TCPAddr).Port

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.conns++
			s.mu.Unlock()
			s.serve(conn)
		}
	}()

	t.Cleanup(func() {
		ln.Close()
		s.wg.Wait()
	})
	return s
}

func (s *testSMTPServer) serve(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	fmt.Fprintf(conn, "220 localhost Test SMTP Service Ready\r\n")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "EHLO"), strings.HasPrefix(line, "HELO"):
			fmt.Fprintf(conn, "250-localhost Hello\r\n250 OK\r\n")
		case strings.HasPrefix(line, "RCPT TO:"):
			s.mu.Lock()
			s.rcpts = append(s.rcpts, strings.TrimPrefix(line, "RCPT TO:"))
			s.mu.Unlock()
			fmt.Fprintf(conn, "250 OK\r\n")
		case strings.HasPrefix(line, "DATA"):
			fmt.Fprintf(conn, "354 End data with <CR><LF>.<CR><LF>\r\n")
			var b strings.Builder
			for {
				dline, derr := r.ReadString('\n')
				if derr != nil || strings.TrimSpace(dline) == "." {
					break
				}
				b.WriteString(dline)
			}
			s.mu.Lock()
			s.data = append(s.data, b.String())
			s.mu.Unlock()
			fmt.Fprintf(conn, "250 OK: queued as 12345\r\n")
		case strings.HasPrefix(line, "QUIT"):
			fmt.Fprintf(conn, "221 Bye\r\n")
			return
		default:
			fmt.Fprintf(conn, "250 OK\r\n")
		}
	}
}

func TestSMTPSender_SendsOverSharedConnection(t *testing.T) {
	srv := startTestSMTPServer(t)

	sender := NewSMTPSender(model.SMTPConfig{Host: srv.host, Port: srv.port})
	tr := NewTransport(sender, nil, TransportOptions{FromAddress: "audit@example.com"}, zap.NewNop().Sugar())

	require.NoError(t, tr.Send(context.Background(), auditMessage()))
	second := auditMessage()
	second.Subject = "Audit 456"
	require.NoError(t, tr.Send(context.Background(), second))
	require.NoError(t, tr.Close())

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, 1, srv.conns, "one session for the whole run")
	assert.Equal(t, []string{"<a1@x.com>", "<l1@x.com>", "<a1@x.com>", "<l1@x.com>"}, srv.rcpts)
	require.Len(t, srv.data, 2)
	assert.Contains(t, srv.data[0], "Subject: Audit 123")
	assert.Contains(t, srv.data[1], "Subject: Audit 456")
}

func TestSMTPSender_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	sender := NewSMTPSender(model.SMTPConfig{Host: "127.0.0.1", Port: port})
	tr := NewTransport(sender, nil, TransportOptions{FromAddress: "audit@example.com"}, zap.NewNop().Sugar())

	err = tr.Send(context.Background(), auditMessage())
	assert.True(t, IsTransportError(err))
	assert.NoError(t, sender.Close())
}

func TestSMTPSender_CanceledContext(t *testing.T) {
	sender := NewSMTPSender(model.SMTPConfig{Host: "127.0.0.1", Port: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := NewTransport(sender, nil, TransportOptions{FromAddress: "audit@example.com"}, zap.NewNop().Sugar())
	err := tr.Send(ctx, auditMessage())
	assert.ErrorIs(t, err, context.Canceled)
}
