package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/diamondburned/gotk4/pkg/gio/v2"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"
	"github.com/spf13/cobra"

	"github.com/mvailland/subwave/host/gtkhost"
	"github.com/mvailland/subwave/player"
)

var playFlags struct {
	loop  bool
	muted bool
}

var playCmd = &cobra.Command{
	Use:   "play <uri-or-path>",
	Short: "Open a player window for a media file or stream",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlay,
}

func init() {
	playCmd.Flags().BoolVar(&playFlags.loop, "loop", false, "restart playback at end of stream")
	playCmd.Flags().BoolVar(&playFlags.muted, "muted", false, "start muted")
	rootCmd.AddCommand(playCmd)
}

func runPlay(_ *cobra.Command, args []string) error {
	uri, err := toURI(args[0])
	if err != nil {
		return err
	}

	backend := player.DetectBackend(app.Config.ForceBackend)
	app.Log.Info().Str("uri", uri).Str("backend", string(backend)).Msg("starting player")
	if backend != player.BackendSubsurface {
		return fmt.Errorf("no wayland display: the texture fallback has no standalone window")
	}

	gtkApp := gtk.NewApplication("com.github.mvailland.subwave", gio.ApplicationFlagsNone)
	gtkApp.ConnectActivate(func() { activate(gtkApp, uri) })
	if code := gtkApp.Run(nil); code != 0 {
		return fmt.Errorf("gtk application exited with code %d", code)
	}
	return nil
}

func activate(gtkApp *gtk.Application, uri string) {
	win := gtk.NewApplicationWindow(gtkApp)
	win.SetTitle("subwave")
	win.SetDefaultSize(1280, 720)

	// The video area stays unpainted; frames appear on a subsurface
	// beneath it.
	area := gtk.NewBox(gtk.OrientationVertical, 0)
	area.SetHExpand(true)
	area.SetVExpand(true)
	win.SetChild(area)

	var p *player.Player
	area.ConnectMap(func() {
		h, err := gtkhost.New(area)
		if err != nil {
			app.Log.Error().Err(err).Msg("host integration unavailable")
			win.Close()
			return
		}

		p = player.New(app.Config, app.Log, h)
		p.SetLooping(playFlags.loop)
		if playFlags.muted {
			p.SetMuted(true)
		}
		// Callbacks arrive off the GTK main loop; window work must be
		// marshalled back onto it.
		p.OnEndOfStream(func() {
			app.Log.Info().Msg("end of stream")
			gtkhost.RunOnMain(win.Close)
		})
		p.OnError(func(err error) {
			app.Log.Error().Err(err).Msg("playback failed")
			gtkhost.RunOnMain(win.Close)
		})

		ctx := context.Background()
		if err := p.Load(ctx, uri); err != nil {
			app.Log.Error().Err(err).Msg("load failed")
			win.Close()
			return
		}
		if err := p.Play(); err != nil {
			app.Log.Error().Err(err).Msg("play failed")
		}
	})

	win.ConnectCloseRequest(func() bool {
		if p != nil {
			p.Stop(context.Background())
			p = nil
		}
		return false
	})

	win.SetVisible(true)
}

// toURI turns a local path into a file:// URI and passes real URIs
// through untouched.
func toURI(arg string) (string, error) {
	if u, err := url.Parse(arg); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		return arg, nil
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", arg, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("open %q: %w", arg, err)
	}
	return "file://" + abs, nil
}
