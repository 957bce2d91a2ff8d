// Package main provides the CLI entry point for screenshow.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/user/screenshow/pkg/adapters/filesink"
	"github.com/user/screenshow/pkg/adapters/ggrenderer"
	"github.com/user/screenshow/pkg/adapters/h264encoder"
	"github.com/user/screenshow/pkg/adapters/logger"
	"github.com/user/screenshow/pkg/adapters/mp4muxer"
	"github.com/user/screenshow/pkg/adapters/mp4source"
	"github.com/user/screenshow/pkg/adapters/nullsink"
	"github.com/user/screenshow/pkg/adapters/osfilesystem"
	"github.com/user/screenshow/pkg/config"
	"github.com/user/screenshow/pkg/orchestrator"
	"github.com/user/screenshow/pkg/pipeline"
	"github.com/user/screenshow/pkg/ports"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "screenshow",
		Usage:   "Export screen recordings as polished MP4 videos",
		Version: version,
		Commands: []*cli.Command{
			exportCommand(),
			probeCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Render and encode a recording into an MP4 file",
		ArgsUsage: "<input.mp4>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Required: true, Usage: "Output MP4 file path"},
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Render configuration YAML file"},
			&cli.IntFlag{Name: "width", Aliases: []string{"W"}, Value: 1920, Usage: "Output video width"},
			&cli.IntFlag{Name: "height", Aliases: []string{"H"}, Value: 1080, Usage: "Output video height"},
			&cli.Float64Flag{Name: "fps", Value: 30, Usage: "Output frame rate"},
			&cli.IntFlag{Name: "trim-start", Usage: "Export start offset in milliseconds"},
			&cli.IntFlag{Name: "trim-end", Usage: "Export end offset in milliseconds (0 = source end)"},
			&cli.IntFlag{Name: "quality", Aliases: []string{"q"}, Value: 23, Usage: "Video quality (CRF 0-51, lower is better)"},
			&cli.IntFlag{Name: "bitrate", Usage: "Target bitrate in kbps (0 = CRF only)"},
			&cli.IntFlag{Name: "outro", Usage: "Duration to hold the final frame in milliseconds"},
			&cli.StringFlag{Name: "pip", Usage: "Picture-in-picture MP4 file (e.g. a camera track)"},
			&cli.IntFlag{Name: "workers", Usage: "Number of render workers (0 = derived from CPU count)"},
			&cli.IntFlag{Name: "queue-size", Value: 4, Usage: "Maximum frames in flight toward the encoder"},
			&cli.BoolFlag{Name: "single-thread", Usage: "Disable parallel rendering"},
			&cli.DurationFlag{Name: "seek-timeout", Value: 10 * time.Second, Usage: "Per-seek decode timeout"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "Save intermediate frames and configuration"},
			&cli.StringFlag{Name: "debug-dir", Value: "./debug", Usage: "Directory for debug output"},
			&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Value: "info", Usage: "Log level (debug, info, warn, error)"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"Q"}, Usage: "Suppress all log output"},
		},
		Action: runExport,
	}
}

func runExport(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one input file, got %d", c.NArg())
	}
	input := c.Args().First()

	var log ports.Logger
	if c.Bool("quiet") {
		log = logger.NewNoop()
	} else {
		log = logger.NewConsole(ports.ParseLogLevel(c.String("log-level")))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Warn(l10n.T("Interrupted, shutting down..."))
		cancel()
	}()

	fs := osfilesystem.New()
	renderer := ggrenderer.New()

	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(fs, path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if pip := c.String("pip"); pip != "" {
		cfg.PiP.Enabled = true
		cfg.PiP.SourcePath = pip
	}

	var sink ports.DebugSink
	if c.Bool("debug") {
		if err := fs.MkdirAll(c.String("debug-dir")); err != nil {
			return fmt.Errorf("create debug directory: %w", err)
		}
		sink = filesink.New(c.String("debug-dir"), fs, renderer)
	} else {
		sink = nullsink.New()
	}

	var openOverlay ports.SourceOpener
	if pip := c.String("pip"); pip != "" {
		openOverlay = mp4source.Opener(pip)
	}

	orch := orchestrator.New(
		mp4source.Opener(input),
		openOverlay,
		renderer,
		h264encoder.New(),
		mp4muxer.New(),
		fs,
		sink,
		log,
	)

	req := orchestrator.ExportRequest{
		OutputWidth:          c.Int("width"),
		OutputHeight:         c.Int("height"),
		TrimStartMs:          c.Int("trim-start"),
		TrimEndMs:            c.Int("trim-end"),
		FPS:                  c.Float64("fps"),
		OutputPath:           c.String("output"),
		UseParallelRendering: !c.Bool("single-thread"),
		WorkerCount:          c.Int("workers"),
		EncodeQueueSize:      c.Int("queue-size"),
		Quality:              c.Int("quality"),
		Bitrate:              c.Int("bitrate"),
		OutroMs:              c.Int("outro"),
		SeekTimeout:          c.Duration("seek-timeout"),
	}

	result, err := orch.Export(ctx, cfg, req, progressReporter(log))
	if err != nil {
		return err
	}
	if result.State == orchestrator.StateCancelled {
		// A clean cancellation exits nonzero without an error trace.
		os.Exit(130)
	}
	return nil
}

// progressReporter logs rendering progress at every decile.
func progressReporter(log ports.Logger) orchestrator.ProgressFunc {
	lastDecile := -1
	return func(p pipeline.Progress) {
		if p.TotalFrames == 0 {
			return
		}
		decile := int(p.FramesCompleted * 10 / p.TotalFrames)
		if decile != lastDecile {
			lastDecile = decile
			log.Info("Progress: %d/%d frames (%d%%)", p.FramesCompleted, p.TotalFrames, decile*10)
		}
	}
}

func probeCommand() *cli.Command {
	return &cli.Command{
		Name:      "probe",
		Usage:     "Print video track information for an MP4 file",
		ArgsUsage: "<input.mp4>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one input file, got %d", c.NArg())
			}
			info, err := mp4source.Probe(c.Args().First())
			if err != nil {
				return err
			}
			fmt.Printf("codec:     %s\n", info.Codec)
			fmt.Printf("size:      %dx%d\n", info.Width, info.Height)
			fmt.Printf("duration:  %.3fs\n", float64(info.DurationUs)/1e6)
			fmt.Printf("frames:    %d\n", info.FrameCount)
			fmt.Printf("fps:       %.3f\n", info.FPS)
			return nil
		},
	}
}
