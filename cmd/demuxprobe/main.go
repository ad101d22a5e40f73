// Command demuxprobe opens a media source, selects a demuxer for it, runs
// the stream to the end, and reports the tracks, timing, and capabilities
// it found.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/zsiec/demux"
	"github.com/zsiec/demux/adts"
	"github.com/zsiec/demux/engine"
	"github.com/zsiec/demux/media"
	"github.com/zsiec/demux/mpegts"
	"github.com/zsiec/demux/srt"
	"github.com/zsiec/demux/stream"
)

var version = "dev"

func main() {
	format := flag.String("format", "", "force a demux method by name (mpegts, adts, srt)")
	timeout := flag.Duration("timeout", 0, "stop demuxing after this long (0 = run to end of stream)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: demuxprobe [flags] <path | srt://host:port>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	if *timeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, *timeout)
		defer tcancel()
	}

	registry := demux.NewRegistry()
	registry.Register(mpegts.Format)
	registry.Register(adts.Format)
	registry.Register(srt.Format)

	out := &media.Buffer{}
	cfg := demux.Config{
		Access: "file",
		Name:   *format,
		Path:   path,
		Out:    out,
	}
	if strings.HasPrefix(path, "srt://") {
		cfg.Access = "srt"
	} else {
		s, closer, err := stream.OpenFile(path)
		if err != nil {
			slog.Error("failed to open input", "error", err)
			os.Exit(1)
		}
		defer closer.Close()
		cfg.Stream = s
	}

	slog.Info("demuxprobe starting", "version", version, "access", cfg.Access, "path", path)

	inst := demux.NewInstance(cfg)
	d, err := registry.Open(inst)
	if err != nil {
		if errors.Is(err, demux.ErrUnsupported) {
			slog.Error("no demuxer accepted the stream", "path", path)
		} else {
			slog.Error("failed to open demuxer", "error", err)
		}
		os.Exit(1)
	}
	defer d.Close()

	runner := engine.NewRunner(inst, d, nil)
	runner.OnNavigation = func(update demux.Update, title, seekpoint int) {
		slog.Info("navigation change",
			"title_changed", update.Has(demux.UpdateTitle), "title", title,
			"seekpoint_changed", update.Has(demux.UpdateSeekpoint), "seekpoint", seekpoint)
	}

	mgr := engine.NewManager(nil)
	if _, ok := mgr.Start(ctx, path, runner); !ok {
		slog.Error("failed to start demux session")
		os.Exit(1)
	}
	if err := mgr.Wait(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		slog.Error("demux failed", "error", err)
		os.Exit(1)
	}

	report(d, runner, out)
}

func report(d demux.Demuxer, runner *engine.Runner, out *media.Buffer) {
	caps := runner.Caps()

	fmt.Printf("units of work: %d\n", runner.Units())
	fmt.Printf("can pause: %v  can seek: %v  controls pace: %v\n",
		caps.CanPause(), caps.CanSeek(), caps.CanControlPace())

	var gl demux.GetLength
	if d.Control(&gl) == nil && gl.Length > 0 {
		fmt.Printf("length: %v\n", gl.Length.Round(time.Millisecond))
	}
	var fps demux.GetFPS
	if d.Control(&fps) == nil {
		fmt.Printf("frame rate: %.3f\n", fps.FPS)
	}
	var meta demux.GetMeta
	if d.Control(&meta) == nil {
		if meta.Meta.Title != "" {
			fmt.Printf("title: %s\n", meta.Meta.Title)
		}
		if meta.Meta.Artist != "" {
			fmt.Printf("artist: %s\n", meta.Meta.Artist)
		}
	}

	for i, f := range out.Tracks() {
		packets := out.TrackPackets(i)
		var keyframes int
		var last time.Duration
		for _, p := range packets {
			if p.Keyframe {
				keyframes++
			}
			if p.PTS > last {
				last = p.PTS
			}
		}
		fmt.Printf("track %d: %s/%s", i, f.Type, f.Codec)
		if f.SampleRate > 0 {
			fmt.Printf(" %d Hz, %d ch", f.SampleRate, f.Channels)
		}
		fmt.Printf(": %d packets", len(packets))
		if keyframes > 0 {
			fmt.Printf(", %d keyframes", keyframes)
		}
		if last > 0 {
			fmt.Printf(", last pts %v", last.Round(time.Millisecond))
		}
		fmt.Println()
	}
}
