package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var ErrNoConnection = errors.New("gateway: no connection")

type DialContextFunc func(ctx context.Context, network, addr string) (net.Conn, error)

type InvokeHandler func(ctx context.Context, req InvokeRequestParams) (interface{}, error)

// wsConn is the subset of *websocket.Conn the client uses.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (int, []byte, error)
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

const (
	defaultPingInterval = 30 * time.Second
	maxBackoff          = 30 * time.Second
	writeTimeout        = 5 * time.Second
	readTimeout         = 60 * time.Second
	invokeErrorCode     = 1
)

type Client struct {
	url          string
	header       http.Header
	dialer       DialContextFunc
	logger       zerolog.Logger
	register     NodeRegistration
	onInvoke     InvokeHandler
	pingInterval time.Duration
	connMu       sync.Mutex
	writeMu      sync.Mutex
	conn         wsConn
	requestSeq   atomic.Uint64
}

type Config struct {
	URL          string
	Header       http.Header
	Dialer       DialContextFunc
	Logger       zerolog.Logger
	Register     NodeRegistration
	OnInvoke     InvokeHandler
	PingInterval time.Duration
}

func New(cfg Config) *Client {
	pingInterval := cfg.PingInterval
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	return &Client{
		url:          cfg.URL,
		header:       cfg.Header,
		dialer:       cfg.Dialer,
		logger:       cfg.Logger,
		register:     cfg.Register,
		onInvoke:     cfg.OnInvoke,
		pingInterval: pingInterval,
	}
}

func (c *Client) Run(ctx context.Context) error {
	if c.dialer == nil {
		return errors.New("gateway: dialer required")
	}
	if c.onInvoke == nil {
		return errors.New("gateway: invoke handler required")
	}
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := c.connect(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Dur("backoff", backoff).Msg("gateway connect failed")
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = time.Second
		c.setConn(conn)
		if err := c.registerNode(ctx); err != nil {
			c.logger.Error().Err(err).Msg("gateway registration failed")
			c.closeConn()
			continue
		}
		c.logger.Info().Str("url", c.url).Msg("gateway connected")
		done := make(chan struct{})
		go c.pingLoop(ctx, conn, done)
		err = c.readLoop(ctx)
		close(done)
		c.closeConn()
		if err != nil && ctx.Err() == nil {
			c.logger.Warn().Err(err).Msg("gateway read loop ended")
		}
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func (c *Client) SendEvent(ctx context.Context, method string, params interface{}) error {
	payload, err := json.Marshal(params)
	if err != nil {
		return err
	}
	return c.send(ctx, Envelope{Method: method, Params: payload})
}

func (c *Client) send(ctx context.Context, env Envelope) error {
	conn := c.getConn()
	if conn == nil {
		return ErrNoConnection
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return c.write(conn, websocket.TextMessage, data)
}

// write serializes writers; gorilla connections allow a single concurrent
// writer.
func (c *Client) write(conn wsConn, messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(messageType, data)
}

func (c *Client) connect(ctx context.Context) (wsConn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
		NetDialContext:   c.dialer,
	}
	conn, _, err := dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(8 << 20)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	return conn, nil
}

func (c *Client) pingLoop(ctx context.Context, conn wsConn, done <-chan struct{}) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if err := c.write(conn, websocket.PingMessage, nil); err != nil {
				c.logger.Debug().Err(err).Msg("gateway ping failed")
				return
			}
		}
	}
}

func (c *Client) registerNode(ctx context.Context) error {
	params, err := json.Marshal(c.register)
	if err != nil {
		return err
	}
	idRaw := json.RawMessage(fmt.Sprintf("%q", c.nextID()))
	return c.send(ctx, Envelope{ID: &idRaw, Method: MethodRegister, Params: params})
}

func (c *Client) readLoop(ctx context.Context) error {
	conn := c.getConn()
	if conn == nil {
		return ErrNoConnection
	}
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn().Err(err).Msg("gateway: invalid message")
			continue
		}
		switch env.Method {
		case MethodInvokeRequest:
			if err := c.handleInvoke(ctx, env); err != nil {
				c.logger.Warn().Err(err).Msg("gateway: invoke handler error")
			}
		case "":
			if env.Error != nil {
				c.logger.Warn().Err(env.Error).Int("code", env.Error.Code).Msg("gateway: request failed")
			}
		default:
			c.logger.Debug().Str("method", env.Method).Msg("gateway: ignoring message")
		}
	}
}

func (c *Client) handleInvoke(ctx context.Context, env Envelope) error {
	var params InvokeRequestParams
	if err := json.Unmarshal(env.Params, &params); err != nil {
		return err
	}
	result, err := c.onInvoke(ctx, params)
	if err != nil {
		c.logger.Debug().Err(err).Str("command", params.Command).Msg("gateway: invoke failed")
	}
	if env.ID != nil {
		return c.respondRPC(ctx, env.ID, result, err)
	}
	return c.respondEvent(ctx, params.RequestID, result, err)
}

func (c *Client) respondRPC(ctx context.Context, id *json.RawMessage, result interface{}, err error) error {
	env := Envelope{ID: id}
	if err != nil {
		env.Error = &RPCError{Code: invokeErrorCode, Message: err.Error()}
		return c.send(ctx, env)
	}
	resultRaw, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		return marshalErr
	}
	env.Result = resultRaw
	return c.send(ctx, env)
}

func (c *Client) respondEvent(ctx context.Context, requestID string, result interface{}, err error) error {
	params := InvokeResultParams{RequestID: requestID}
	if err != nil {
		params.Error = &RPCError{Code: invokeErrorCode, Message: err.Error()}
	} else {
		params.Result = result
	}
	payload, marshalErr := json.Marshal(params)
	if marshalErr != nil {
		return marshalErr
	}
	return c.send(ctx, Envelope{Method: MethodInvokeResult, Params: payload})
}

func (c *Client) nextID() string {
	val := c.requestSeq.Add(1)
	seed := rand.Int63n(9999)
	return fmt.Sprintf("%d-%d", val, seed)
}

func (c *Client) getConn() wsConn {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn
}

func (c *Client) setConn(conn wsConn) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.conn = conn
}

func (c *Client) closeConn() {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}
