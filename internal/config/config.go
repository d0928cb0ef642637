// Package config loads the node configuration file and applies command line
// overrides on top of it.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultFramebuffer = "/dev/fb0"
	DefaultGatewayPath = "/ws"
	DefaultTouchSlop   = 8
	DefaultUserAgent   = "kobo-toucharea/0.1"
)

var (
	ErrMissingName    = errors.New("config: name is required")
	ErrMissingGateway = errors.New("config: gateway is required")
)

// FileConfig is the on-disk configuration. JSON and YAML files share the same
// keys; the format is picked from the file extension.
type FileConfig struct {
	Gateway       string `json:"gateway" yaml:"gateway"`
	GatewayPort   int    `json:"gatewayPort,omitempty" yaml:"gatewayPort,omitempty"`
	GatewayTLS    bool   `json:"gatewayTLS,omitempty" yaml:"gatewayTLS,omitempty"`
	GatewayPath   string `json:"gatewayPath,omitempty" yaml:"gatewayPath,omitempty"`
	Name          string `json:"name" yaml:"name"`
	StateDir      string `json:"stateDir,omitempty" yaml:"stateDir,omitempty"`
	TailnetAuth   string `json:"tailnetAuthKey,omitempty" yaml:"tailnetAuthKey,omitempty"`
	ControlURL    string `json:"tailnetControlURL,omitempty" yaml:"tailnetControlURL,omitempty"`
	TouchDevice   string `json:"touchDevice,omitempty" yaml:"touchDevice,omitempty"`
	Framebuffer   string `json:"framebuffer,omitempty" yaml:"framebuffer,omitempty"`
	LogLevel      string `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	HTTPUserAgent string `json:"httpUserAgent,omitempty" yaml:"httpUserAgent,omitempty"`

	TouchInsetX  int  `json:"touchInsetX,omitempty" yaml:"touchInsetX,omitempty"`
	TouchInsetY  int  `json:"touchInsetY,omitempty" yaml:"touchInsetY,omitempty"`
	TouchSlop    *int `json:"touchSlop,omitempty" yaml:"touchSlop,omitempty"`
	TouchSwapXY  bool `json:"touchSwapXY,omitempty" yaml:"touchSwapXY,omitempty"`
	TouchMirrorX bool `json:"touchMirrorX,omitempty" yaml:"touchMirrorX,omitempty"`
	TouchMirrorY bool `json:"touchMirrorY,omitempty" yaml:"touchMirrorY,omitempty"`

	// TouchFollowRotation derives the touch transform from the framebuffer
	// rotation and ignores the swap and mirror keys.
	TouchFollowRotation bool `json:"touchFollowRotation,omitempty" yaml:"touchFollowRotation,omitempty"`

	IdleSuspend Duration `json:"idleSuspend,omitempty" yaml:"idleSuspend,omitempty"`
}

// Duration accepts "90s" style strings in both file formats.
type Duration time.Duration

func (d *Duration) parse(raw string) error {
	if raw == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return d.parse(raw)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.parse(node.Value)
}

// Overrides carries command line values. Zero values leave the file setting
// alone; nil pointers mean the flag was not given.
type Overrides struct {
	Gateway     string
	GatewayPort int
	GatewayTLS  bool
	GatewayPath string
	Name        string
	StateDir    string
	TouchDevice string
	Framebuffer string
	LogLevel    string
	TouchInsetX *int
	TouchInsetY *int
	TouchSlop   *int
}

// Load reads path. A missing file yields an empty config so flags alone can
// configure the node.
func Load(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return FileConfig{}, nil
		}
		return FileConfig{}, err
	}
	var cfg FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return FileConfig{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (cfg *FileConfig) Apply(o Overrides) {
	if o.Gateway != "" {
		cfg.Gateway = o.Gateway
	}
	if o.GatewayPort != 0 {
		cfg.GatewayPort = o.GatewayPort
	}
	if o.GatewayPath != "" {
		cfg.GatewayPath = o.GatewayPath
	}
	if o.Name != "" {
		cfg.Name = o.Name
	}
	if o.StateDir != "" {
		cfg.StateDir = o.StateDir
	}
	if o.TouchDevice != "" {
		cfg.TouchDevice = o.TouchDevice
	}
	if o.Framebuffer != "" {
		cfg.Framebuffer = o.Framebuffer
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if o.TouchInsetX != nil {
		cfg.TouchInsetX = *o.TouchInsetX
	}
	if o.TouchInsetY != nil {
		cfg.TouchInsetY = *o.TouchInsetY
	}
	if o.TouchSlop != nil {
		slop := *o.TouchSlop
		cfg.TouchSlop = &slop
	}
	cfg.GatewayTLS = o.GatewayTLS || cfg.GatewayTLS
}

// SetDefaults fills unset fields. cfgPath anchors the default state dir.
func (cfg *FileConfig) SetDefaults(cfgPath string) {
	if cfg.StateDir == "" {
		cfg.StateDir = filepath.Join(filepath.Dir(cfgPath), "tsnet-state")
	}
	if cfg.GatewayPath == "" {
		cfg.GatewayPath = DefaultGatewayPath
	}
	if cfg.GatewayPort == 0 {
		cfg.GatewayPort = 443
		if !cfg.GatewayTLS {
			cfg.GatewayPort = 80
		}
	}
	if cfg.Framebuffer == "" {
		cfg.Framebuffer = DefaultFramebuffer
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.TouchSlop == nil {
		slop := DefaultTouchSlop
		cfg.TouchSlop = &slop
	}
}

func (cfg FileConfig) Validate() error {
	if cfg.Name == "" {
		return ErrMissingName
	}
	if cfg.Gateway == "" {
		return ErrMissingGateway
	}
	return nil
}

// Slop returns the configured touch slop; negative disables gesture tracking.
func (cfg FileConfig) Slop() int {
	if cfg.TouchSlop == nil {
		return DefaultTouchSlop
	}
	return *cfg.TouchSlop
}

func (cfg FileConfig) GatewayURL() string {
	scheme := "ws"
	if cfg.GatewayTLS {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, cfg.Gateway, cfg.GatewayPort, cfg.GatewayPath)
}

func (cfg FileConfig) UserAgent() string {
	if cfg.HTTPUserAgent != "" {
		return cfg.HTTPUserAgent
	}
	return DefaultUserAgent
}
