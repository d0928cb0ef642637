// Package tailnet brings the node onto the tailnet used to reach the gateway.
package tailnet

import (
	"context"
	"net"

	"github.com/rs/zerolog"
	"tailscale.com/tsnet"
)

type Config struct {
	Hostname   string
	StateDir   string
	AuthKey    string
	ControlURL string
	Logger     zerolog.Logger
}

type Server struct {
	srv *tsnet.Server
}

func New(cfg Config) *Server {
	logger := cfg.Logger.With().Str("component", "tsnet").Logger()
	return &Server{
		srv: &tsnet.Server{
			Hostname:   cfg.Hostname,
			Dir:        cfg.StateDir,
			AuthKey:    cfg.AuthKey,
			ControlURL: cfg.ControlURL,
			Logf:       logf(logger),
		},
	}
}

// logf adapts tsnet's printf logging; its backend chatter goes out at debug.
func logf(logger zerolog.Logger) func(format string, args ...interface{}) {
	return func(format string, args ...interface{}) {
		logger.Debug().Msgf(format, args...)
	}
}

// DialContext matches gateway.DialContextFunc.
func (s *Server) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return s.srv.Dial(ctx, network, address)
}

func (s *Server) Up(ctx context.Context) error {
	_, err := s.srv.Up(ctx)
	return err
}

func (s *Server) Close() error {
	return s.srv.Close()
}
