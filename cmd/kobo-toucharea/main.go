package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/openclaw/kobo-toucharea/internal/canvas"
	"github.com/openclaw/kobo-toucharea/internal/config"
	"github.com/openclaw/kobo-toucharea/internal/eink"
	"github.com/openclaw/kobo-toucharea/internal/gateway"
	"github.com/openclaw/kobo-toucharea/internal/power"
	"github.com/openclaw/kobo-toucharea/internal/tailnet"
	"github.com/openclaw/kobo-toucharea/internal/toucharea"
)

const powerLongPress = 3 * time.Second

func main() {
	cfgPath, overrides, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.Apply(overrides)
	cfg.SetDefaults(cfgPath)
	setupLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cancel, cfgPath, cfg, overrides); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("node exited")
	}
}

func run(ctx context.Context, cancel context.CancelFunc, cfgPath string, cfg config.FileConfig, overrides config.Overrides) error {
	tail := tailnet.New(tailnet.Config{
		Hostname:   cfg.Name,
		StateDir:   cfg.StateDir,
		AuthKey:    cfg.TailnetAuth,
		ControlURL: cfg.ControlURL,
		Logger:     log.Logger,
	})
	defer func() {
		_ = tail.Close()
	}()

	fb, err := eink.Open(cfg.Framebuffer)
	if err != nil {
		return fmt.Errorf("open framebuffer: %w", err)
	}
	defer func() {
		_ = fb.Close()
	}()

	renderer := canvas.NewRenderer(fb.Width, fb.Height)
	renderer.SetTouchOptions(touchOptions(cfg))

	sleeper := &power.Manager{
		IdleTimeout:    time.Duration(cfg.IdleSuspend),
		SuspendEnabled: true,
		Logger:         log.Logger,
	}

	var handler *canvas.Handler
	client := gateway.New(gateway.Config{
		URL:      cfg.GatewayURL(),
		Header:   http.Header{"User-Agent": {cfg.UserAgent()}},
		Dialer:   tail.DialContext,
		Logger:   log.Logger,
		Register: gateway.NewRegistration(canvas.Commands()),
		OnInvoke: func(ctx context.Context, req gateway.InvokeRequestParams) (interface{}, error) {
			if handler == nil {
				return nil, errors.New("handler not ready")
			}
			done := sleeper.BeginCommand()
			defer done()
			return handler.HandleInvokeRequest(ctx, canvas.InvokeRequest{Command: req.Command, Args: req.Args})
		},
	})
	handler = canvas.NewHandler(fb, renderer, client, log.Logger)
	sleeper.OnSuspend = func() {
		handler.HandleTouch(ctx, toucharea.Event{Kind: toucharea.Cancel, Time: time.Now()})
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.Run(ctx)
	})
	g.Go(func() error {
		return sleeper.Run(ctx)
	})
	if cfg.TouchDevice != "" {
		transform := touchTransform(cfg, fb.Width, fb.Height, fb.Rotate)
		g.Go(func() error {
			runTouchLoop(ctx, cfg.TouchDevice, transform, handler, sleeper, log.Logger, cancel)
			return nil
		})
	}
	if _, statErr := os.Stat(cfgPath); statErr == nil {
		watcher, err := config.NewWatcher(cfgPath, log.Logger, func(next config.FileConfig) {
			next.Apply(overrides)
			next.SetDefaults(cfgPath)
			setupLogger(next.LogLevel)
			if err := handler.SetTouchOptions(touchOptions(next)); err != nil {
				log.Warn().Err(err).Msg("failed to apply touch options")
			}
		})
		if err != nil {
			log.Warn().Err(err).Msg("config watcher disabled")
		} else {
			g.Go(func() error {
				return watcher.Run(ctx)
			})
		}
	}
	return g.Wait()
}

func parseFlags(args []string) (string, config.Overrides, error) {
	fs := flag.NewFlagSet("kobo-toucharea", flag.ContinueOnError)
	cfgPath := fs.String("config", "config.json", "path to config file (.json or .yaml)")
	var o config.Overrides
	fs.StringVar(&o.Gateway, "gateway", "", "gateway hostname")
	fs.IntVar(&o.GatewayPort, "gateway-port", 0, "gateway port")
	fs.BoolVar(&o.GatewayTLS, "gateway-tls", false, "use TLS for gateway")
	fs.StringVar(&o.GatewayPath, "gateway-path", "", "gateway websocket path")
	fs.StringVar(&o.Name, "name", "", "node name")
	fs.StringVar(&o.StateDir, "state-dir", "", "tsnet state directory")
	fs.StringVar(&o.TouchDevice, "touch-device", "", "touch input device path")
	fs.StringVar(&o.Framebuffer, "framebuffer", "", "framebuffer device path")
	fs.StringVar(&o.LogLevel, "log-level", "", "log level")
	insetX := fs.Int("touch-inset-x", 0, "default horizontal hit area inset, negative grows")
	insetY := fs.Int("touch-inset-y", 0, "default vertical hit area inset, negative grows")
	slop := fs.Int("touch-slop", config.DefaultTouchSlop, "touch slop in pixels, negative disables tracking")
	if err := fs.Parse(args); err != nil {
		return "", config.Overrides{}, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "touch-inset-x":
			o.TouchInsetX = insetX
		case "touch-inset-y":
			o.TouchInsetY = insetY
		case "touch-slop":
			o.TouchSlop = slop
		}
	})
	return *cfgPath, o, nil
}

func setupLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	if parsed, err := zerolog.ParseLevel(level); err == nil {
		zerolog.SetGlobalLevel(parsed)
	}
}

func touchOptions(cfg config.FileConfig) canvas.TouchOptions {
	return canvas.TouchOptions{
		InsetX: cfg.TouchInsetX,
		InsetY: cfg.TouchInsetY,
		Slop:   cfg.Slop(),
	}
}

func touchTransform(cfg config.FileConfig, width, height, rotate int) eink.Transform {
	if cfg.TouchFollowRotation {
		return eink.RotationTransform(rotate, width, height)
	}
	return eink.Transform{
		SwapXY:  cfg.TouchSwapXY,
		MirrorX: cfg.TouchMirrorX,
		MirrorY: cfg.TouchMirrorY,
		Width:   width,
		Height:  height,
	}
}

type powerAction int

const (
	powerNone powerAction = iota
	powerSuspend
	powerExit
)

// powerButton turns press and release edges into actions: a short press
// suspends, holding for powerLongPress exits.
type powerButton struct {
	downAt time.Time
}

func (b *powerButton) handle(ev eink.PowerEvent) powerAction {
	if ev.Pressed {
		b.downAt = ev.At
		return powerNone
	}
	if b.downAt.IsZero() {
		return powerNone
	}
	held := ev.At.Sub(b.downAt)
	b.downAt = time.Time{}
	if held >= powerLongPress {
		return powerExit
	}
	return powerSuspend
}

func runTouchLoop(ctx context.Context, device string, transform eink.Transform, handler *canvas.Handler, sleeper *power.Manager, logger zerolog.Logger, cancel context.CancelFunc) {
	input, err := eink.OpenInputDevice(device, transform)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to open touch device")
		return
	}
	defer func() {
		_ = input.Close()
	}()
	touchCh, powerCh, errCh := input.ReadEvents(ctx)

	var button powerButton
	for {
		select {
		case <-ctx.Done():
			return
		case touch, ok := <-touchCh:
			if !ok {
				return
			}
			sleeper.ObserveTouch(touch.Kind)
			handler.HandleTouch(ctx, touch.Pointer())
		case ev, ok := <-powerCh:
			if !ok {
				return
			}
			switch button.handle(ev) {
			case powerExit:
				logger.Info().Msg("power long press: exiting")
				cancel()
			case powerSuspend:
				if err := sleeper.Suspend(); err != nil {
					logger.Warn().Err(err).Msg("failed to suspend")
				}
			}
		case err, ok := <-errCh:
			if ok {
				logger.Warn().Err(err).Msg("input error")
			}
			return
		}
	}
}
