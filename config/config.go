package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	// Directory below $XDG_CONFIG_HOME holding the driver config.
	AppDir    = "wine-wayland"
	EnvPrefix = "WINEWAYLAND"
)

type Config struct {
	LogLevel string `envconfig:"LOG_LEVEL" toml:"log_level,omitempty" yaml:"log_level,omitempty"`
	// Compositor socket, overriding $WAYLAND_DISPLAY.
	Display string `envconfig:"DISPLAY" toml:"display,omitempty" yaml:"display,omitempty"`
	// Host Vulkan loader to dlopen.
	VulkanLibrary string `envconfig:"VULKAN_LIBRARY" toml:"vulkan_library,omitempty" yaml:"vulkan_library,omitempty"`
	// libwayland-client to dlopen for the surfaces host Vulkan renders to.
	WaylandLibrary string `envconfig:"WAYLAND_LIBRARY" toml:"wayland_library,omitempty" yaml:"wayland_library,omitempty"`
	// Allow presenting through the remote surface proxy when the rendering
	// process does not own the window surface.
	RemoteVulkan bool `envconfig:"REMOTE_VULKAN" toml:"remote_vulkan" yaml:"remote_vulkan"`
	// Socket of the remote surface server, derived from the display when
	// empty.
	RemoteSocket string `envconfig:"REMOTE_SOCKET" toml:"remote_socket,omitempty" yaml:"remote_socket,omitempty"`
	AppID        string `envconfig:"APP_ID" toml:"app_id,omitempty" yaml:"app_id,omitempty"`

	ShowSystray      bool `envconfig:"SHOW_SYSTRAY" toml:"show_systray" yaml:"show_systray"`
	UseSystemCursors bool `envconfig:"USE_SYSTEM_CURSORS" toml:"use_system_cursors" yaml:"use_system_cursors"`
}

func Default() *Config {
	return &Config{
		LogLevel:         "warning",
		VulkanLibrary:    "libvulkan.so.1",
		WaylandLibrary:   "libwayland-client.so.0",
		RemoteVulkan:     true,
		AppID:            "wine",
		ShowSystray:      true,
		UseSystemCursors: true,
	}
}

// Load reads config.toml or config.yaml from the XDG config directories and
// overlays WINEWAYLAND_* environment variables. A missing file is not an
// error.
func Load() (*Config, error) {
	cfg := Default()
	for _, name := range []string{"config.toml", "config.yaml", "config.yml"} {
		path, err := xdg.SearchConfigFile(filepath.Join(AppDir, name))
		if err != nil {
			continue
		}
		if err := cfg.ReadFile(path); err != nil {
			return nil, err
		}
		break
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, errors.Wrap(err, "unable to read environment")
	}
	return cfg, nil
}

// ReadFile merges the file at path into c, picking the parser by extension.
func (c *Config) ReadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "unable to read config %s", path)
	}
	switch filepath.Ext(path) {
	case ".toml":
		err = toml.Unmarshal(data, c)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		return errors.Errorf("unknown config format %s", path)
	}
	if err != nil {
		return errors.Wrapf(err, "unable to parse config %s", path)
	}
	logrus.WithField("component", "config").WithField("path", path).Debug("loaded config")
	return nil
}

// Level parses LogLevel, falling back to warning.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.WarnLevel
	}
	return lvl
}
