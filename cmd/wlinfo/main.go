// Command wlinfo connects to the compositor the way the driver does and
// prints the globals it bound and the outputs it tracks.
package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kichirouhoshino/wine-wayland/config"
	"github.com/kichirouhoshino/wine-wayland/w32"
	"github.com/kichirouhoshino/wine-wayland/wl"
	"github.com/sirupsen/logrus"
)

func main() {
	display := flag.String("display", "", "wayland display, defaults to $WAYLAND_DISPLAY")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Warn("unable to load config, using defaults")
		cfg = config.Default()
	}
	if *display != "" {
		cfg.Display = *display
	}
	logrus.SetLevel(cfg.Level())
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	client, err := wl.Connect(cfg.Display, w32.NewDesktop(w32.NewRect(0, 0, 1920, 1080)), cfg.AppID)
	if err != nil {
		logrus.WithError(err).Fatal("can't open wayland display")
	}
	defer client.Close()

	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "global\tbound")
	for _, g := range []struct {
		name  string
		bound bool
	}{
		{"wl_compositor", client.Compositor != nil},
		{"wl_subcompositor", client.Subcompositor != nil},
		{"wl_shm", client.Shm != nil},
		{"xdg_wm_base", client.WmBase != nil},
		{"wl_seat", client.Seat != nil},
		{"zwp_pointer_constraints_v1", client.PointerConstraints != nil},
		{"zwp_relative_pointer_manager_v1", client.RelativePointerManager != nil},
		{"wp_viewporter", client.Viewporter != nil},
		{"zwp_linux_dmabuf_v1", client.LinuxDmabuf != nil},
	} {
		fmt.Fprintf(tw, "%s\t%t\n", g.name, g.bound)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "output\tmode\tscale\twine rect\twine scale")
	for _, o := range client.Outputs() {
		o.Mu.RLock()
		name, width, height, factor := o.Name, o.Width, o.Height, o.Factor
		o.Mu.RUnlock()
		r := o.WineRect()
		fmt.Fprintf(tw, "%s\t%dx%d\t%d\t%d,%d %dx%d\t%.3f\n",
			name, width, height, factor, r.Left, r.Top, r.Width(), r.Height(), o.WineScale())
	}
	if err := tw.Flush(); err != nil {
		logrus.WithError(err).Error("unable to write")
		os.Exit(1)
	}
}
