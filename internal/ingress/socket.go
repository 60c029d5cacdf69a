package ingress

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"github.com/rehoboam-dev/rehoboam/internal/config"
	"github.com/rehoboam-dev/rehoboam/internal/event"
)

const (
	socketReadTimeout = 2 * time.Second
	socketBacklog     = 128
	minBackoff        = 100 * time.Millisecond
	maxBackoff        = 5 * time.Second
)

// ListenUnixSocket accepts newline-delimited JSON hook events on a Unix
// stream socket at socketPath until ctx is cancelled. At most MaxConnections
// connections are served concurrently; a connection that sends no complete
// line within socketReadTimeout is dropped as stale. Accept errors back off
// exponentially from 100ms to a 5s cap, and reset on the next success.
func (i *Ingress) ListenUnixSocket(ctx context.Context, socketPath string) error {
	if _, err := os.Stat(socketPath); err == nil {
		if rmErr := os.Remove(socketPath); rmErr != nil {
			return rmErr
		}
	}

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "unix", socketPath)
	if err != nil {
		return err
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	log.Printf("[ingress] listening on unix socket %s", socketPath)

	permits := make(chan struct{}, config.MaxConnections)
	backoff := time.Duration(0)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("[ingress] accept error: %v", err)
			if backoff == 0 {
				backoff = minBackoff
			} else {
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		backoff = 0

		select {
		case permits <- struct{}{}:
			go func() {
				defer func() { <-permits }()
				i.handleSocketConn(conn)
			}()
		default:
			log.Printf("[ingress] connection limit reached (%d max), dropping connection", config.MaxConnections)
			conn.Close()
		}
	}
}

func (i *Ingress) handleSocketConn(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(socketReadTimeout))

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return
		}
		if err.Error() != "EOF" {
			log.Printf("[ingress] socket read error: %v", err)
		}
		return
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	var e event.HookEvent
	if err := json.Unmarshal([]byte(line), &e); err != nil {
		log.Printf("[ingress] failed to parse event: %v — %s", err, line)
		return
	}
	if err := e.Validate(); err != nil {
		log.Printf("[ingress] invalid event: %v", err)
		return
	}
	e.Source = event.LocalSource()

	select {
	case i.Events <- &e:
	default:
		log.Printf("[ingress] event channel full, dropping event for pane %s", e.PaneID)
	}
}
