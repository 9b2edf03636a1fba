package command

import (
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/Hommy-master/browserbox/internal/browser"
	"github.com/Hommy-master/browserbox/internal/capture"
	"github.com/Hommy-master/browserbox/internal/cli/output"
	"github.com/Hommy-master/browserbox/internal/core/domain"
	"github.com/Hommy-master/browserbox/internal/storage/archive"
	"github.com/Hommy-master/browserbox/internal/storage/snapshot"
)

// CaptureResult is printed by capture.
type CaptureResult struct {
	Snapshot string `json:"snapshot"`
	Archive  string `json:"archive"`
	Size     int64  `json:"size"`
	SHA256   string `json:"sha256"`
	Files    int    `json:"files"`
	Vanished int    `json:"vanished"`
	Locator  string `json:"locator,omitempty"`
}

// SnapshotInfo is printed by inspect.
type SnapshotInfo struct {
	Dir        string                       `json:"dir"`
	Descriptor domain.FingerprintDescriptor `json:"descriptor"`
	Files      int                          `json:"files"`
	Bytes      int64                        `json:"bytes"`
}

// Table lays the descriptor out one attribute per row.
func (i SnapshotInfo) Table() *output.Table {
	d := i.Descriptor
	t := &output.Table{Headers: []string{"FIELD", "VALUE"}}
	t.AddRow("dir", i.Dir)
	t.AddRow("user_agent", d.UserAgent)
	t.AddRow("viewport", fmt.Sprintf("%dx%d", d.Viewport.Width, d.Viewport.Height))
	for _, arg := range d.LaunchArgs {
		t.AddRow("browser_arg", arg)
	}
	if d.Language != "" {
		t.AddRow("language", d.Language)
	}
	if d.Timezone != "" {
		t.AddRow("timezone", d.Timezone)
	}
	if d.Platform != "" {
		t.AddRow("platform", d.Platform)
	}
	t.AddRow("files", fmt.Sprint(i.Files))
	t.AddRow("size", output.FormatBytes(i.Bytes))
	return t
}

// CaptureCommand returns the capture command.
func CaptureCommand() *cli.Command {
	return &cli.Command{
		Name:  "capture",
		Usage: "Open a browser, then snapshot and pack it when the browser closes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "output-dir",
				Usage: "Snapshot `DIR` (default from config, else bb_env)",
			},
			&cli.StringFlag{
				Name:  "archive",
				Usage: "Archive `FILE` (default bb_env.tar.gz next to the snapshot)",
			},
			&cli.StringFlag{
				Name:  "start-url",
				Usage: "Page opened when the browser starts",
			},
			&cli.BoolFlag{
				Name:  "pack-only",
				Usage: "Skip the upload",
			},
			uploadTargetFlag(),
		},
		Action: captureAction,
	}
}

func captureAction(c *cli.Context) error {
	s, err := settingsFrom(c)
	if err != nil {
		return err
	}
	outputDir := c.String("output-dir")
	if outputDir == "" {
		outputDir = s.Config.Capture.OutputDir
	}
	startURL := c.String("start-url")
	if startURL == "" {
		startURL = s.Config.Capture.StartURL
	}

	engine := browser.NewEngine(browser.Config{
		Bin:       s.Config.Browser.Bin,
		Stealth:   s.Config.Browser.Stealth,
		ExtraArgs: s.Config.Browser.ExtraArgs,
		Logger:    s.Logger,
	})
	snapshots, err := snapshot.NewStore(snapshot.DefaultConfig(), s.Logger)
	if err != nil {
		return err
	}
	capturer := capture.New(engine, snapshots, archive.New(archive.WithLogger(s.Logger)), s.Logger)

	// The first interrupt ends the session normally so the state is kept.
	stop := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			close(stop)
		case <-c.Context.Done():
		}
	}()

	s.Notef("Browser starting. Log in to your sites, then close the browser or press Ctrl+C to save.")
	res, err := capturer.Capture(c.Context, capture.Options{
		OutputDir:   outputDir,
		ArchivePath: c.String("archive"),
		StartURL:    startURL,
		Stop:        stop,
	})
	if err != nil {
		return err
	}

	result := CaptureResult{
		Snapshot: res.SnapshotDir,
		Archive:  res.Archive.Path,
		Size:     res.Archive.Size,
		SHA256:   res.Archive.SHA256,
		Files:    res.Stats.Copied,
		Vanished: res.Stats.Vanished,
	}
	if !c.Bool("pack-only") {
		locator, err := s.upload(c.Context, res.Archive.Path, c.String("to"), "")
		if err != nil {
			s.Notef("Upload failed; the archive is kept at %s. Retry with: browserbox-cli upload %s", res.Archive.Path, res.Archive.Path)
			return err
		}
		result.Locator = locator
	}
	return s.Print(result)
}

// PackCommand returns the pack command.
func PackCommand() *cli.Command {
	return &cli.Command{
		Name:      "pack",
		Usage:     "Pack a snapshot directory into an archive",
		ArgsUsage: "SNAPSHOT_DIR",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "archive",
				Usage: "Archive `FILE` (default bb_env.tar.gz next to the snapshot)",
			},
		},
		Action: packAction,
	}
}

func packAction(c *cli.Context) error {
	dir := c.Args().First()
	if dir == "" {
		return cli.Exit("snapshot directory required", 2)
	}
	s, err := settingsFrom(c)
	if err != nil {
		return err
	}
	if _, err := snapshot.Load(dir); err != nil {
		return err
	}

	archivePath := c.String("archive")
	if archivePath == "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return err
		}
		archivePath = filepath.Join(filepath.Dir(abs), archive.DefaultArchiveName)
	}

	info, err := archive.New(archive.WithLogger(s.Logger)).Pack(c.Context, dir, archivePath)
	if err != nil {
		return err
	}
	return s.Print(info)
}

// UnpackCommand returns the unpack command.
func UnpackCommand() *cli.Command {
	return &cli.Command{
		Name:      "unpack",
		Usage:     "Extract an archive into a directory",
		ArgsUsage: "ARCHIVE TARGET_DIR",
		Action:    unpackAction,
	}
}

func unpackAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: unpack ARCHIVE TARGET_DIR", 2)
	}
	s, err := settingsFrom(c)
	if err != nil {
		return err
	}

	dir, err := archive.New(archive.WithLogger(s.Logger)).Unpack(c.Context, c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		return err
	}
	info, err := inspect(dir)
	if err != nil {
		return err
	}
	return s.Print(info)
}

// InspectCommand returns the inspect command.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show the fingerprint descriptor of a snapshot",
		ArgsUsage: "SNAPSHOT_DIR",
		Action: func(c *cli.Context) error {
			dir := c.Args().First()
			if dir == "" {
				return cli.Exit("snapshot directory required", 2)
			}
			s, err := settingsFrom(c)
			if err != nil {
				return err
			}
			info, err := inspect(dir)
			if err != nil {
				return err
			}
			return s.Print(info)
		},
	}
}

func inspect(dir string) (*SnapshotInfo, error) {
	snap, err := snapshot.Load(dir)
	if err != nil {
		return nil, err
	}
	info := &SnapshotInfo{Dir: snap.Dir, Descriptor: snap.Descriptor}

	err = filepath.WalkDir(snap.UserStateDir(), func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		info.Files++
		info.Bytes += fi.Size()
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return info, nil
}
