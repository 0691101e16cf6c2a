package csa

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const (
	TransportTCP       = "tcp"
	TransportWebSocket = "websocket"

	dialTimeout = 10 * time.Second
)

type DialConfig struct {
	Transport string
	Host      string
	Port      int
	// URL is used by the websocket transport.
	URL    string
	Header http.Header

	KeepAlive         bool
	KeepAliveIdle     time.Duration
	KeepAliveInterval time.Duration
	KeepAliveCount    int
}

// Conn is a line oriented connection to the server. Receive is meant for a
// single reader; Send may be called from any goroutine.
type Conn struct {
	nc     net.Conn
	r      *bufio.Reader
	logger *zap.Logger

	wmu       sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func Dial(ctx context.Context, cfg DialConfig, logger *zap.Logger) (*Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		nc  net.Conn
		err error
	)
	switch cfg.Transport {
	case "", TransportTCP:
		nc, err = dialTCP(ctx, cfg, logger)
	case TransportWebSocket:
		nc, err = dialWebSocket(ctx, cfg)
	default:
		return nil, &ConnectionError{Message: "unknown transport " + strconv.Quote(cfg.Transport)}
	}
	if err != nil {
		return nil, err
	}
	return newConn(nc, logger), nil
}

func newConn(nc net.Conn, logger *zap.Logger) *Conn {
	return &Conn{nc: nc, r: bufio.NewReader(nc), logger: logger}
}

func dialTCP(ctx context.Context, cfg DialConfig, logger *zap.Logger) (net.Conn, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	d := net.Dialer{Timeout: dialTimeout, KeepAlive: -1}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectionError{Message: "dial " + addr, Cause: err}
	}
	if cfg.KeepAlive {
		applyKeepAlive(nc, cfg, logger)
	}
	return nc, nil
}

// applyKeepAlive is best effort; platforms that reject a setting keep the
// connection as is.
func applyKeepAlive(nc net.Conn, cfg DialConfig, logger *zap.Logger) {
	tcp, ok := nc.(*net.TCPConn)
	if !ok {
		return
	}
	ka := net.KeepAliveConfig{
		Enable:   true,
		Idle:     cfg.KeepAliveIdle,
		Interval: cfg.KeepAliveInterval,
		Count:    cfg.KeepAliveCount,
	}
	if err := tcp.SetKeepAliveConfig(ka); err != nil {
		logger.Debug("keepalive not applied", zap.Error(err))
	}
}

func dialWebSocket(ctx context.Context, cfg DialConfig) (net.Conn, error) {
	url := cfg.URL
	if url == "" {
		url = "ws://" + net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)) + "/"
	}
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	c, _, err := websocket.Dial(dialCtx, url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      cfg.Header,
	})
	if err != nil {
		return nil, &ConnectionError{Message: "dial " + url, Cause: err}
	}
	return websocket.NetConn(context.Background(), c, websocket.MessageText), nil
}

// Receive blocks for the next complete line and returns it without the line
// terminator. Any error means the stream is finished.
func (c *Conn) Receive() (string, error) {
	line, err := c.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
			return "", ErrClosed
		}
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	c.logger.Debug("recv", zap.String("line", line))
	return line, nil
}

func (c *Conn) Send(text string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := io.WriteString(c.nc, text); err != nil {
		return err
	}
	return nil
}

func (c *Conn) SendLine(text string) error {
	c.logger.Debug("send", zap.String("line", redactLogin(text)))
	return c.Send(text + "\n")
}

// Close may be called any number of times.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { c.closeErr = c.nc.Close() })
	return c.closeErr
}

func redactLogin(line string) string {
	if !strings.HasPrefix(line, "LOGIN ") {
		return line
	}
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return line
	}
	return fields[0] + " " + fields[1] + " ****"
}
