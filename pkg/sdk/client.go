// Package sdk provides the client-side storage for the PropertyDex store.
// It supports both remote connections to a propertydex-stored daemon and local embedded mode.
package sdk

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/propertydex/propertydex-store/pkg/kv"
)

// Ensure Client satisfies the kv.Storage interface at compile time.
var _ kv.Storage = (*Client)(nil)

const maxAttempts = 3

// Client is a remote client for a propertydex-stored daemon.
type Client struct {
	addr        string
	dialTimeout time.Duration
	logger      *slog.Logger
	conn        net.Conn
	reader      *bufio.Reader
	mu          sync.Mutex // Protects concurrent access to the connection
}

// Connect establishes a TCP connection to a remote store daemon.
func Connect(addr string, dialTimeout time.Duration) (*Client, error) {
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	c := &Client{addr: addr, dialTimeout: dialTimeout, logger: slog.Default()}
	if err := c.reconnect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) reconnect() error {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	dialer := &net.Dialer{
		Timeout:   c.dialTimeout,
		KeepAlive: 60 * time.Second,
	}
	conn, err := dialer.Dial("tcp", c.addr)
	if err != nil {
		return err
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

// remoteError maps a daemon error message back onto the kv sentinels.
func remoteError(msg string) error {
	switch msg {
	case kv.ErrKeyNotFound.Error():
		return kv.ErrKeyNotFound
	case kv.ErrInvalidKey.Error():
		return kv.ErrInvalidKey
	}
	return fmt.Errorf("%s", msg)
}

// Internal helper for TCP communication
func (c *Client) sendAndReceive(cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error

	// Try up to 3 times with backoff
	for i := 0; i < maxAttempts; i++ {
		if c.conn == nil {
			if reconnectErr := c.reconnect(); reconnectErr != nil {
				err = fmt.Errorf("reconnect failed: %w", reconnectErr)
				time.Sleep(time.Duration(i*100) * time.Millisecond)
				continue
			}
		}

		c.conn.SetDeadline(time.Now().Add(30 * time.Second))

		_, err = fmt.Fprint(c.conn, cmd+"\n")
		if err == nil {
			var resp string
			resp, err = c.reader.ReadString('\n')
			if err == nil {
				resp = strings.TrimSpace(resp)
				if strings.HasPrefix(resp, "ERR") {
					return "", remoteError(strings.TrimPrefix(resp, "ERR "))
				}
				return resp, nil
			}
		}

		c.logger.Warn("store request failed, reconnecting", "attempt", i+1, "addr", c.addr, "error", err)

		// Force a reconnect on the next iteration
		if closeErr := c.reconnect(); closeErr != nil {
			c.logger.Warn("reconnect attempt failed", "addr", c.addr, "error", closeErr)
		}

		time.Sleep(time.Duration((i+1)*200) * time.Millisecond)
	}

	return "", fmt.Errorf("failed after %d attempts. last error: %v", maxAttempts, err)
}

func (c *Client) GetItem(key string) (string, error) {
	if !kv.ValidKey(key) {
		return "", kv.ErrInvalidKey
	}
	resp, err := c.sendAndReceive("GET " + key)
	if err != nil {
		return "", err
	}
	var val string
	err = json.Unmarshal([]byte(strings.TrimPrefix(resp, "OK ")), &val)
	return val, err
}

func (c *Client) SetItem(key, value string) error {
	if !kv.ValidKey(key) {
		return kv.ErrInvalidKey
	}
	jsonData, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = c.sendAndReceive(fmt.Sprintf("SET %s %s", key, jsonData))
	return err
}

func (c *Client) RemoveItem(key string) error {
	if !kv.ValidKey(key) {
		return kv.ErrInvalidKey
	}
	_, err := c.sendAndReceive("DEL " + key)
	return err
}

func (c *Client) Keys() ([]string, error) {
	resp, err := c.sendAndReceive("KEYS")
	if err != nil {
		return nil, err
	}
	var list []string
	err = json.Unmarshal([]byte(strings.TrimPrefix(resp, "OK ")), &list)
	return list, err
}

// Ping checks the daemon is answering.
func (c *Client) Ping() error {
	resp, err := c.sendAndReceive("PING")
	if err != nil {
		return err
	}
	if resp != "PONG" {
		return fmt.Errorf("unexpected ping reply %q", resp)
	}
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	fmt.Fprintln(c.conn, "QUIT")
	err := c.conn.Close()
	c.conn = nil
	return err
}

// --- Generics Support ---

// Get retrieves a JSON value and decodes it into T.
func Get[T any](s kv.Reader, key string) (T, error) {
	var target T
	raw, err := s.GetItem(key)
	if err != nil {
		return target, err
	}
	err = json.Unmarshal([]byte(raw), &target)
	return target, err
}

// Set encodes val as JSON and stores it under key.
func Set[T any](s kv.Writer, key string, val T) error {
	bytes, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return s.SetItem(key, string(bytes))
}
