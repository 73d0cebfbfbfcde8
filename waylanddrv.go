// Package waylanddrv is the process side of the wayland display driver: it
// connects to the compositor, serves surfaces to rendering processes and
// routes guest window events to the wayland surface model.
package waylanddrv

import (
	"io"
	"os"
	"sync"

	"github.com/kichirouhoshino/wine-wayland/config"
	"github.com/kichirouhoshino/wine-wayland/remote"
	"github.com/kichirouhoshino/wine-wayland/ticker"
	"github.com/kichirouhoshino/wine-wayland/vulkan"
	"github.com/kichirouhoshino/wine-wayland/w32"
	"github.com/kichirouhoshino/wine-wayland/wl"
	"github.com/kichirouhoshino/wine-wayland/wl/native"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "waylanddrv")

const (
	InitVulkan = 1 << iota
	InitRemote
)

const InitEverything = InitVulkan | InitRemote

// Driver is the per-process driver state.
type Driver struct {
	Config *config.Config
	Client *wl.Client

	ws           w32.WindowSystem
	server       *remote.Server
	remoteSocket string
	openNative   func(library, display string) (nativeDisplay, error)

	mu     sync.Mutex
	vk     *vulkan.Driver
	native nativeDisplay
}

// nativeDisplay is the libwayland connection host Vulkan surfaces live on.
type nativeDisplay interface {
	vulkan.NativeDisplay
	io.Closer
}

type nativeConnection struct {
	vulkan.NativeDisplay
	io.Closer
}

func openNative(library, display string) (nativeDisplay, error) {
	nd, err := native.Connect(library, display)
	if err != nil {
		return nil, err
	}
	return nativeConnection{vulkan.NativeConnection(nd), nd}, nil
}

// Init loads the configuration and starts the driver. Without a compositor
// the process cannot do anything useful, so failures are fatal.
func Init(ws w32.WindowSystem, flags uint32) *Driver {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Warn("unable to load config, using defaults")
		cfg = config.Default()
	}
	d, err := Start(cfg, ws, flags)
	if err != nil {
		logrus.WithError(err).Fatal("can't open wayland display, ensure that the compositor is running and $WAYLAND_DISPLAY is set correctly")
	}
	return d
}

// Start connects to the compositor named by cfg and starts the driver on it.
func Start(cfg *config.Config, ws w32.WindowSystem, flags uint32) (*Driver, error) {
	logrus.SetLevel(cfg.Level())
	ticker.Initialize()
	client, err := wl.Connect(cfg.Display, ws, cfg.AppID)
	if err != nil {
		return nil, err
	}
	d, err := New(cfg, client, flags)
	if err != nil {
		client.Close()
		return nil, err
	}
	return d, nil
}

// New starts the driver on a connected client. The remote surface server
// runs only when remote vulkan is enabled.
func New(cfg *config.Config, client *wl.Client, flags uint32) (*Driver, error) {
	d := &Driver{
		Config:       cfg,
		Client:       client,
		ws:           client.WindowSystem(),
		remoteSocket: cfg.RemoteSocket,
		openNative:   openNative,
	}
	if d.remoteSocket == "" {
		display := cfg.Display
		if display == "" {
			display = os.Getenv("WAYLAND_DISPLAY")
		}
		d.remoteSocket = remote.SocketPath(display)
	}

	if flags&InitRemote != 0 && cfg.RemoteVulkan {
		d.server = remote.NewServer(remote.ClientHost{Client: client})
		if err := d.server.Listen(d.remoteSocket); err != nil {
			return nil, errors.Wrap(err, "unable to start remote surface server")
		}
		go func() {
			if err := d.server.Serve(); err != nil {
				log.WithError(err).Error("remote surface server stopped")
			}
		}()
	}
	if flags&InitVulkan != 0 {
		vulkan.SetLoader(d.loadVulkan)
	}
	log.WithFields(logrus.Fields{
		"remote": d.server != nil,
		"vulkan": flags&InitVulkan != 0,
	}).Debug("driver started")
	return d, nil
}

// vulkanOptions connects the native display host surfaces are created
// on. Without one the driver still loads but surface creation fails.
func (d *Driver) vulkanOptions() vulkan.Options {
	opts := vulkan.Options{
		Windows:      vulkan.ClientWindows(d.Client),
		Remote:       d.Config.RemoteVulkan,
		RemoteSocket: d.remoteSocket,
	}
	nd, err := d.openNative(d.Config.WaylandLibrary, d.Config.Display)
	if err != nil {
		log.WithError(err).Warn("unable to open native wayland display, vulkan surfaces are unavailable")
		return opts
	}
	d.mu.Lock()
	d.native = nd
	d.mu.Unlock()
	opts.Native = nd
	return opts
}

func (d *Driver) closeNative() error {
	d.mu.Lock()
	nd := d.native
	d.native = nil
	d.mu.Unlock()
	if nd == nil {
		return nil
	}
	return nd.Close()
}

func (d *Driver) loadVulkan() (*vulkan.Driver, error) {
	vk, err := vulkan.Load(d.Config.VulkanLibrary, d.vulkanOptions())
	if err != nil {
		if cerr := d.closeNative(); cerr != nil {
			log.WithError(cerr).Warn("unable to close native wayland display")
		}
		return nil, err
	}
	d.mu.Lock()
	d.vk = vk
	d.mu.Unlock()
	return vk, nil
}

// Vulkan returns the vulkan driver, loading the host library on first use.
func (d *Driver) Vulkan() (*vulkan.Driver, error) {
	return vulkan.GetDriver(vulkan.DriverVersion)
}

// loadedVulkan is the vulkan driver if something loaded it already.
func (d *Driver) loadedVulkan() *vulkan.Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.vk
}

// RemoteSocket is where rendering processes reach the surfaces of this
// process.
func (d *Driver) RemoteSocket() string {
	return d.remoteSocket
}

// Close stops serving remote surfaces and disconnects. The vulkan driver is
// released first since its objects reference wayland surfaces.
func (d *Driver) Close() error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	if d.server != nil {
		keep(d.server.Close())
	}
	if vk := d.loadedVulkan(); vk != nil {
		keep(vk.Close())
	}
	keep(d.closeNative())
	keep(d.Client.Close())
	return first
}
