package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/openclaw/kobo-toucharea/internal/eink"
	"github.com/openclaw/kobo-toucharea/internal/toucharea"
)

type ActionSender interface {
	SendEvent(ctx context.Context, method string, params interface{}) error
}

type InvokeRequest struct {
	Command string
	Args    json.RawMessage
}

var ErrUnknownCommand = errors.New("canvas: unknown command")

const (
	CommandPresent         = "canvas.present"
	CommandHide            = "canvas.hide"
	CommandNavigate        = "canvas.navigate"
	CommandEval            = "canvas.eval"
	CommandSnapshot        = "canvas.snapshot"
	CommandA2UIPush        = "canvas.a2ui.push"
	CommandA2UIPushJSONL   = "canvas.a2ui.pushJSONL"
	CommandA2UIReset       = "canvas.a2ui.reset"
	CommandTouchAreaBounds = "canvas.touchArea.bounds"

	EventAction = "canvas.a2ui.action"
)

// Commands lists every command HandleInvokeRequest understands, for node
// registration.
func Commands() []string {
	return []string{
		CommandPresent,
		CommandHide,
		CommandNavigate,
		CommandEval,
		CommandSnapshot,
		CommandA2UIPush,
		CommandA2UIPushJSONL,
		CommandA2UIReset,
		CommandTouchAreaBounds,
	}
}

// ActionEvent reports a tap on an action component. X and Y are canvas
// coordinates and Time is in Unix milliseconds.
type ActionEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	X       int             `json:"x"`
	Y       int             `json:"y"`
	Time    int64           `json:"time"`
}

// Handler owns the scene. Renders, invokes and touches are serialized on mu,
// which is the only synchronization the hit-area dispatchers get.
type Handler struct {
	mu       sync.Mutex
	fb       *eink.Framebuffer
	renderer *Renderer
	state    *A2UIState
	logger   zerolog.Logger
	sender   ActionSender
	inverted *Node
}

func NewHandler(fb *eink.Framebuffer, renderer *Renderer, sender ActionSender, logger zerolog.Logger) *Handler {
	renderer.SetLogger(logger)
	return &Handler{
		fb:       fb,
		renderer: renderer,
		state:    NewA2UIState(),
		logger:   logger,
		sender:   sender,
	}
}

func (h *Handler) HandleInvokeRequest(ctx context.Context, req InvokeRequest) (interface{}, error) {
	req.Command = strings.TrimSpace(req.Command)
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.handleInvoke(ctx, req)
}

func (h *Handler) handleInvoke(ctx context.Context, req InvokeRequest) (interface{}, error) {
	switch req.Command {
	case CommandPresent:
		return h.present(false)
	case CommandHide:
		return nil, h.blank()
	case CommandNavigate:
		return nil, errors.New("canvas.navigate not supported on Kobo")
	case CommandEval:
		return nil, errors.New("canvas.eval not supported on Kobo")
	case CommandSnapshot:
		return h.snapshot(req.Args)
	case CommandA2UIPush:
		return h.handleA2UIPush(req.Args)
	case CommandA2UIPushJSONL:
		return h.handleA2UIPushJSONL(req.Args)
	case CommandA2UIReset:
		h.state.Reset()
		return nil, h.blank()
	case CommandTouchAreaBounds:
		return h.touchAreaBounds(req.Args)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, req.Command)
	}
}

func (h *Handler) blank() error {
	h.renderer.Clear()
	h.inverted = nil
	if err := h.fb.WriteGray(h.renderer.Image); err != nil {
		return err
	}
	return h.fb.Refresh(eink.Update{Full: true})
}

func (h *Handler) handleA2UIPush(args json.RawMessage) (interface{}, error) {
	push, err := DecodeA2UIPush(args)
	if err != nil {
		return nil, err
	}
	h.state.ApplyPush(push)
	return h.present(true)
}

func (h *Handler) handleA2UIPushJSONL(args json.RawMessage) (interface{}, error) {
	jsonl, err := unwrapStringArgs(args)
	if err != nil {
		return nil, err
	}
	pushes, err := DecodeA2UIJSONL([]byte(jsonl))
	if err != nil {
		return nil, err
	}
	for _, push := range pushes {
		h.state.ApplyPush(push)
	}
	return h.present(true)
}

func (h *Handler) present(partial bool) (interface{}, error) {
	h.renderer.Render(h.state.Components())
	h.inverted = nil
	if err := h.fb.WriteGray(h.renderer.Image); err != nil {
		return nil, err
	}
	update := eink.Update{Full: !partial}
	if partial {
		update.Fast = true
	}
	return nil, h.fb.Refresh(update)
}

type snapshotArgs struct {
	TouchAreas bool `json:"touchAreas,omitempty"`
}

func (h *Handler) snapshot(args json.RawMessage) (interface{}, error) {
	var opts snapshotArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &opts); err != nil {
			return nil, err
		}
	}
	return h.renderer.Snapshot(opts.TouchAreas)
}

type touchAreaArgs struct {
	ID        string `json:"id"`
	Container string `json:"container,omitempty"`
}

type rectResult struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

type touchAreaResult struct {
	Bounds  rectResult  `json:"bounds"`
	HitArea *rectResult `json:"hitArea,omitempty"`
}

func newRectResult(r toucharea.Rect) rectResult {
	return rectResult{Left: r.Left, Top: r.Top, Right: r.Right, Bottom: r.Bottom}
}

// touchAreaBounds answers with the node's bounds relative to the requested
// container and, for action nodes, the effective hit area in the same space.
func (h *Handler) touchAreaBounds(args json.RawMessage) (interface{}, error) {
	var req touchAreaArgs
	if err := json.Unmarshal(args, &req); err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, errors.New("canvas: touch area id required")
	}
	bounds, err := h.renderer.Bounds(req.ID, req.Container)
	if err != nil {
		return nil, fmt.Errorf("touch area %q: %w", req.ID, err)
	}
	out := touchAreaResult{Bounds: newRectResult(bounds)}
	for _, target := range h.renderer.HitTargets {
		if target.Node.ID != req.ID {
			continue
		}
		hit := bounds
		hit.Inset(target.Dispatcher.Insets())
		res := newRectResult(hit)
		out.HitArea = &res
		break
	}
	return out, nil
}

// SetTouchOptions replaces the default hit-area settings and rebuilds the
// scene so existing action components pick them up.
func (h *Handler) SetTouchOptions(opts TouchOptions) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.renderer.SetTouchOptions(opts)
	if len(h.state.Components()) == 0 {
		return nil
	}
	_, err := h.present(true)
	return err
}

// HandleTouch routes a canvas-space pointer event through the hit areas,
// shows press feedback and reports completed taps to the gateway.
func (h *Handler) HandleTouch(ctx context.Context, ev toucharea.Event) bool {
	h.mu.Lock()
	result := h.renderer.Dispatch(ev)
	h.feedback(result)
	h.mu.Unlock()

	if result.Tap == nil || h.sender == nil {
		return result.Consumed
	}
	tap := result.Tap
	at := ev.Time
	if at.IsZero() {
		at = time.Now()
	}
	event := ActionEvent{
		ID:      tap.Node.ID,
		Type:    tap.Action.Type,
		Payload: tap.Action.Payload,
		X:       tap.X,
		Y:       tap.Y,
		Time:    at.UnixMilli(),
	}
	if err := h.sender.SendEvent(ctx, EventAction, event); err != nil {
		h.logger.Warn().Err(err).Str("id", tap.Node.ID).Msg("failed to send A2UI action")
	}
	return result.Consumed
}

func (h *Handler) feedback(result TouchResult) {
	if result.Released != nil && result.Released == h.inverted {
		h.inverted = nil
		if result.Released.Attached() {
			h.flush(h.renderer.Invert(result.Released.Rect))
		}
	}
	if result.Pressed != nil && h.inverted == nil {
		h.inverted = result.Pressed
		h.flush(h.renderer.Invert(result.Pressed.Rect))
	}
}

func (h *Handler) flush(region image.Rectangle) {
	if region.Empty() {
		return
	}
	if err := h.fb.WriteGrayRegion(h.renderer.Image, region); err != nil {
		h.logger.Warn().Err(err).Msg("failed to write touch feedback")
		return
	}
	if err := h.fb.Refresh(eink.Update{Region: region, Fast: true}); err != nil {
		h.logger.Warn().Err(err).Msg("failed to refresh touch feedback")
	}
}

func unwrapStringArgs(args json.RawMessage) (string, error) {
	var asString string
	if err := json.Unmarshal(args, &asString); err == nil {
		return asString, nil
	}
	var obj map[string]string
	if err := json.Unmarshal(args, &obj); err == nil {
		if val, ok := obj["jsonl"]; ok {
			return val, nil
		}
	}
	return "", errors.New("invalid JSONL args")
}
