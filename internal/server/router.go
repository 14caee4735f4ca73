// Package server exposes a kv.Storage over a line-oriented TCP protocol so several processes can
// share one store.
//
// Protocol (one command per line):
//
//	GET <key>            -> OK <json-string> | ERR <msg>
//	SET <key> <json-str> -> OK | ERR <msg>
//	DEL <key>            -> OK | ERR <msg>
//	KEYS                 -> OK <json-array>
//	PING                 -> PONG
//	QUIT
//
// Values travel as JSON string literals so embedded newlines never break framing.
package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/propertydex/propertydex-store/pkg/kv"
)

const maxConnections = 100

type Router struct {
	store    kv.Storage
	logger   *slog.Logger
	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

// NewRouter serves s.
func NewRouter(s kv.Storage) *Router {
	return &Router{store: s, logger: slog.Default()}
}

// SetLogger replaces the router's logger.
func (r *Router) SetLogger(l *slog.Logger) {
	if l != nil {
		r.logger = l
	}
}

// Addr returns the bound address, or nil before Listen has bound.
func (r *Router) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// Listen starts the TCP server and blocks until Stop is called or accepting fails.
func (r *Router) Listen(port string) error {
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.listener = listener
	r.mu.Unlock()
	defer listener.Close()

	semaphore := make(chan struct{}, maxConnections)

	for {
		conn, err := listener.Accept()
		if err != nil {
			r.mu.Lock()
			closed := r.closed
			r.mu.Unlock()
			if closed || errors.Is(err, net.ErrClosed) {
				return nil
			}
			r.logger.Warn("accept failed", "error", err)
			continue
		}

		// Aggressive timeouts for light traffic to prevent resource exhaustion
		conn.SetDeadline(time.Now().Add(5 * time.Minute))

		go func(c net.Conn) {
			semaphore <- struct{}{}
			defer func() {
				<-semaphore
				c.Close()
			}()
			r.HandleConnection(c)
		}(conn)
	}
}

// Stop closes the listener; in-flight connections finish on their own.
func (r *Router) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.listener == nil {
		return nil
	}
	return r.listener.Close()
}

// HandleConnection serves commands from conn until QUIT, EOF or a read timeout.
func (r *Router) HandleConnection(conn net.Conn) {
	reader := bufio.NewReader(conn)

	for {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))

		line, err := reader.ReadString('\n')
		if err != nil {
			return // Connection closed or timeout
		}

		parts := strings.Fields(strings.TrimSpace(line))
		if len(parts) < 1 {
			continue
		}

		switch strings.ToUpper(parts[0]) {
		case "GET":
			if len(parts) < 2 {
				fmt.Fprintln(conn, "ERR usage: GET <key>")
				continue
			}
			val, err := r.store.GetItem(parts[1])
			if err != nil {
				fmt.Fprintln(conn, "ERR", err)
				continue
			}
			writeJSON(conn, val)

		case "SET":
			if len(parts) < 3 {
				fmt.Fprintln(conn, "ERR usage: SET <key> <value>")
				continue
			}
			// The value is everything after the key
			raw := skipFields(line, 2)
			var val string
			if err := json.Unmarshal([]byte(raw), &val); err != nil {
				fmt.Fprintln(conn, "ERR invalid json value")
				continue
			}
			if err := r.store.SetItem(parts[1], val); err != nil {
				fmt.Fprintln(conn, "ERR", err)
				continue
			}
			fmt.Fprintln(conn, "OK")

		case "DEL":
			if len(parts) < 2 {
				fmt.Fprintln(conn, "ERR usage: DEL <key>")
				continue
			}
			if err := r.store.RemoveItem(parts[1]); err != nil {
				fmt.Fprintln(conn, "ERR", err)
				continue
			}
			fmt.Fprintln(conn, "OK")

		case "KEYS":
			keys, err := r.store.Keys()
			if err != nil {
				fmt.Fprintln(conn, "ERR", err)
				continue
			}
			writeJSON(conn, keys)

		case "PING":
			fmt.Fprintln(conn, "PONG")

		case "QUIT":
			return

		default:
			fmt.Fprintln(conn, "ERR unknown command")
		}
	}
}

// skipFields returns the remainder of line after its first n whitespace-separated fields.
func skipFields(line string, n int) string {
	rest := strings.TrimSpace(line)
	for i := 0; i < n; i++ {
		idx := strings.IndexAny(rest, " \t")
		if idx < 0 {
			return ""
		}
		rest = strings.TrimSpace(rest[idx:])
	}
	return rest
}

func writeJSON(conn net.Conn, v any) {
	res, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintln(conn, "ERR internal error")
		return
	}
	fmt.Fprintln(conn, "OK", string(res))
}
