// Package main provides the panel CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/cast"

	apiconnect "github.com/osa030/vlcpanel/internal/api/connect"
)

var (
	app     = kingpin.New("vlcpanel-ctl", "vlcpanel command line client")
	server  = app.Flag("server", "Panel address").Default("http://localhost:8090").String()
	token   = app.Flag("token", "Panel token (or set PANEL_TOKEN env)").Envar("PANEL_TOKEN").String()
	timeout = app.Flag("timeout", "Request timeout").Default("10s").Duration()

	// status command
	statusCmd = app.Command("status", "Show the rendered panel")

	// playback commands
	toggleCmd     = app.Command("toggle", "Toggle play/pause")
	playCmd       = app.Command("play", "Resume playback")
	playID        = playCmd.Arg("id", "Playlist item to play").String()
	pauseCmd      = app.Command("pause", "Pause playback")
	stopCmd       = app.Command("stop", "Stop playback")
	fullscreenCmd = app.Command("fullscreen", "Toggle fullscreen")

	// seek command
	seekCmd     = app.Command("seek", "Seek to a position")
	seekPercent = seekCmd.Arg("percent", "Position in percent").Required().Float64()

	// volume command
	volumeCmd     = app.Command("volume", "Set the volume")
	volumePercent = volumeCmd.Arg("percent", "Volume in percent").Required().Float64()

	// eq command
	eqCmd  = app.Command("eq", "Set an equalizer band")
	eqBand = eqCmd.Arg("band", "Band id").Required().String()
	eqGain = eqCmd.Arg("gain", "Gain in dB").Required().Float64()

	// open command
	openCmd  = app.Command("open", "Play a file on the player host")
	openPath = openCmd.Arg("path", "File path").Required().String()

	// vlm command
	vlmCmd     = app.Command("vlm", "Send a VLM batch (';' separated)")
	vlmCommand = vlmCmd.Arg("command", "VLM command").Required().String()

	// broadcast command
	broadcastCmd     = app.Command("broadcast", "Control a VLM broadcast")
	broadcastName    = broadcastCmd.Arg("name", "Broadcast name").Required().String()
	broadcastAction  = broadcastCmd.Arg("action", "play|pause|stop|seek|loop|unloop|del").Required().Enum("play", "pause", "stop", "seek", "loop", "unloop", "del")
	broadcastPercent = broadcastCmd.Flag("percent", "Seek position in percent").Float64()

	// queue command
	queueCmd  = app.Command("queue", "Switch the polled queue")
	queueName = queueCmd.Arg("name", "main|stream").Required().Enum("main", "stream")

	// lock/unlock commands
	lockCmd     = app.Command("lock", "Lock a widget against server updates")
	lockKind    = lockCmd.Arg("kind", "scalar|band|broadcast").Required().Enum("scalar", "band", "broadcast")
	lockID      = lockCmd.Arg("id", "Widget id").Required().String()
	lockFor     = lockCmd.Flag("for", "Lock duration (server default when zero)").Duration()
	unlockCmd   = app.Command("unlock", "Release a widget lock")
	unlockKind  = unlockCmd.Arg("kind", "scalar|band|broadcast").Required().Enum("scalar", "band", "broadcast")
	unlockID    = unlockCmd.Arg("id", "Widget id").Required().String()
	browseCmd   = app.Command("browse", "List a directory on the player host")
	browseDir   = browseCmd.Arg("dir", "Directory").Default("~").String()
	playlistCmd = app.Command("playlist", "Show the playlist")
	clearCmd    = app.Command("clear-errors", "Drop reported player errors")
	watchCmd    = app.Command("watch", "Stream render operations until interrupted")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *token == "" {
		fmt.Println("Error: panel token is required (use --token or PANEL_TOKEN env)")
		os.Exit(1)
	}

	client := apiconnect.NewClient(http.DefaultClient, *server, *token)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if command == watchCmd.FullCommand() {
		ctx, cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
	}

	var err error
	switch command {
	case statusCmd.FullCommand():
		err = status(ctx, client)
	case toggleCmd.FullCommand():
		err = send(ctx, client, "toggle", nil)
	case playCmd.FullCommand():
		err = send(ctx, client, "play", map[string]any{"id": *playID})
	case pauseCmd.FullCommand():
		err = send(ctx, client, "pause", nil)
	case stopCmd.FullCommand():
		err = send(ctx, client, "stop", nil)
	case fullscreenCmd.FullCommand():
		err = send(ctx, client, "fullscreen", nil)
	case seekCmd.FullCommand():
		err = send(ctx, client, "seek", map[string]any{"percent": *seekPercent})
	case volumeCmd.FullCommand():
		err = send(ctx, client, "volume", map[string]any{"percent": *volumePercent})
	case eqCmd.FullCommand():
		err = send(ctx, client, "eq", map[string]any{"band": *eqBand, "gain": *eqGain})
	case openCmd.FullCommand():
		err = send(ctx, client, "in_play", map[string]any{"path": *openPath})
	case vlmCmd.FullCommand():
		err = send(ctx, client, "vlm", map[string]any{"command": *vlmCommand})
	case broadcastCmd.FullCommand():
		err = send(ctx, client, "broadcast", map[string]any{
			"name":    *broadcastName,
			"action":  *broadcastAction,
			"percent": *broadcastPercent,
		})
	case queueCmd.FullCommand():
		if err = client.SwitchQueue(ctx, *queueName); err == nil {
			fmt.Printf("Polling %s queue\n", *queueName)
		}
	case lockCmd.FullCommand():
		if err = client.LockWidget(ctx, *lockKind, *lockID, lockFor.Milliseconds()); err == nil {
			fmt.Printf("Locked %s:%s\n", *lockKind, *lockID)
		}
	case unlockCmd.FullCommand():
		if err = client.UnlockWidget(ctx, *unlockKind, *unlockID); err == nil {
			fmt.Printf("Unlocked %s:%s\n", *unlockKind, *unlockID)
		}
	case browseCmd.FullCommand():
		err = browse(ctx, client, *browseDir)
	case playlistCmd.FullCommand():
		err = playlist(ctx, client)
	case watchCmd.FullCommand():
		err = watch(ctx, client)
	case clearCmd.FullCommand():
		if err = client.ClearErrors(ctx); err == nil {
			fmt.Println("Errors cleared")
		}
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func send(ctx context.Context, client *apiconnect.Client, control string, args map[string]any) error {
	desc, err := client.SendCommand(ctx, control, args, true)
	if err != nil {
		return err
	}
	fmt.Printf("Sent %s\n", desc)
	return nil
}

func status(ctx context.Context, client *apiconnect.Client) error {
	s, err := client.GetStatus(ctx)
	if err != nil {
		return err
	}

	fmt.Println("\n=== PANEL STATUS ===")
	fmt.Printf("Queue: %s (poll %s, version %v)\n", s["queue"], s["poll_state"], s["version"])
	if failures := cast.ToInt(s["failures"]); failures > 0 {
		fmt.Printf("Failures: %d (%s)\n", failures, s["last_error"])
	}

	scalars := cast.ToStringMap(s["scalars"])
	if len(scalars) > 0 {
		fmt.Println("\nPlayer:")
		for _, k := range sortedKeys(scalars) {
			fmt.Printf("  %-15s %v\n", k, scalars[k])
		}
	}
	flags := cast.ToStringMap(s["flags"])
	if len(flags) > 0 {
		fmt.Println("\nFlags:")
		for _, k := range sortedKeys(flags) {
			fmt.Printf("  %-15s %v\n", k, flags[k])
		}
	}
	if art := cast.ToString(s["artwork_url"]); art != "" {
		fmt.Printf("\nArtwork: %s\n", art)
	}

	if bands := cast.ToSlice(s["bands"]); len(bands) > 0 {
		fmt.Println("\nEqualizer:")
		for _, b := range bands {
			m := cast.ToStringMap(b)
			fmt.Printf("  band %-4s %+.1f dB\n", m["id"], cast.ToFloat64(m["gain"]))
		}
	}
	if broadcasts := cast.ToSlice(s["broadcasts"]); len(broadcasts) > 0 {
		fmt.Println("\nBroadcasts:")
		for _, b := range broadcasts {
			m := cast.ToStringMap(b)
			fmt.Printf("  %s: %s %s (loop: %v)\n", m["name"], m["state"], m["input"], m["loop"])
		}
	}
	if errs := cast.ToSlice(s["errors"]); len(errs) > 0 {
		fmt.Println("\nErrors:")
		for _, e := range errs {
			m := cast.ToStringMap(e)
			fmt.Printf("  %s: %s\n", m["command"], m["message"])
		}
	}
	fmt.Println()
	return nil
}

func browse(ctx context.Context, client *apiconnect.Client, dir string) error {
	entries, err := client.Browse(ctx, dir)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%d):\n", dir, len(entries))
	for _, e := range entries {
		m := cast.ToStringMap(e)
		name := cast.ToString(m["name"])
		if m["type"] == "dir" {
			name += "/"
		}
		fmt.Printf("  %s\n", name)
	}
	return nil
}

func playlist(ctx context.Context, client *apiconnect.Client) error {
	items, current, err := client.GetPlaylist(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Playlist (%d):\n", len(items))
	for _, it := range items {
		m := cast.ToStringMap(it)
		marker := " "
		if cast.ToString(m["id"]) == current {
			marker = ">"
		}
		d := time.Duration(cast.ToFloat64(m["duration"]) * float64(time.Second))
		fmt.Printf(" %s %s: %s (%s)\n", marker, m["id"], m["name"], d.Round(time.Second))
	}
	return nil
}

func watch(ctx context.Context, client *apiconnect.Client) error {
	err := client.WatchPanel(ctx, func(ev map[string]any) error {
		if ev["type"] == "initial" {
			s := cast.ToStringMap(ev["status"])
			fmt.Printf("Watching %s queue (version %v)\n", s["queue"], s["version"])
			return nil
		}
		for _, op := range cast.ToSlice(ev["ops"]) {
			m := cast.ToStringMap(op)
			fmt.Printf("[%v] %s %s\n", ev["sequence_no"], ev["queue"], formatOp(m))
		}
		return nil
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func formatOp(m map[string]any) string {
	switch {
	case m["field"] != nil && m["value"] != nil:
		return fmt.Sprintf("%s(%s=%v)", m["op"], m["field"], m["value"])
	case m["field"] != nil:
		return fmt.Sprintf("%s(%s=%v)", m["op"], m["field"], m["flag"])
	case m["widget"] != nil && m["value"] != nil:
		return fmt.Sprintf("%s(%s=%v)", m["op"], m["widget"], m["value"])
	case m["widget"] != nil:
		return fmt.Sprintf("%s(%s)", m["op"], m["widget"])
	case m["token"] != nil:
		return fmt.Sprintf("%s(%s)", m["op"], m["token"])
	default:
		return cast.ToString(m["op"])
	}
}

func sortedKeys(m map[string]any) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}
