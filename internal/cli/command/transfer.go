package command

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/Hommy-master/browserbox/internal/infra/tlsroots"
	"github.com/Hommy-master/browserbox/internal/transport"
)

// UploadResult is printed by upload and capture.
type UploadResult struct {
	Archive string `json:"archive"`
	Locator string `json:"locator"`
}

// DownloadResult is printed by download.
type DownloadResult struct {
	Locator string `json:"locator"`
	Path    string `json:"path"`
}

// UploadCommand returns the upload command.
func UploadCommand() *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Usage:     "Upload an environment archive and print its locator",
		ArgsUsage: "ARCHIVE",
		Flags: []cli.Flag{
			uploadTargetFlag(),
			&cli.StringFlag{
				Name:  "resume",
				Usage: "Resume a server upload by `UPLOAD_ID`",
			},
		},
		Action: uploadAction,
	}
}

func uploadTargetFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "to",
		Usage: "Upload target: empty for the server, s3://bucket/prefix or a directory",
	}
}

func uploadAction(c *cli.Context) error {
	archivePath := c.Args().First()
	if archivePath == "" {
		return cli.Exit("archive path required", 2)
	}
	s, err := settingsFrom(c)
	if err != nil {
		return err
	}

	locator, err := s.upload(c.Context, archivePath, c.String("to"), c.String("resume"))
	if err != nil {
		return err
	}
	return s.Print(UploadResult{Archive: archivePath, Locator: locator})
}

// upload sends archivePath to target and returns its locator.
func (s *Settings) upload(ctx context.Context, archivePath, target, resumeID string) (string, error) {
	bar := s.Progress("upload")
	var progress transport.ProgressFunc
	if bar != nil {
		progress = bar.Update
		defer bar.Finish()
	}

	if target == "" {
		ht, err := s.httpTransport(progress)
		if err != nil {
			return "", err
		}
		if resumeID != "" {
			return ht.Resume(ctx, resumeID, archivePath)
		}
		return ht.Upload(ctx, archivePath)
	}
	if resumeID != "" {
		return "", fmt.Errorf("--resume applies to server uploads only")
	}

	switch transport.Scheme(target) {
	case "s3":
		u, err := url.Parse(target)
		if err != nil {
			return "", fmt.Errorf("parse upload target: %w", err)
		}
		st, err := s.s3Transport(ctx, u.Host, strings.Trim(u.Path, "/"))
		if err != nil {
			return "", err
		}
		st.SetProgress(progress)
		return st.Upload(ctx, archivePath)
	case "file":
		dir := strings.TrimPrefix(target, "file://")
		return transport.NewFileTransport(filepath.FromSlash(dir), progress).Upload(ctx, archivePath)
	default:
		return "", fmt.Errorf("unsupported upload target %q", target)
	}
}

// DownloadCommand returns the download command.
func DownloadCommand() *cli.Command {
	return &cli.Command{
		Name:      "download",
		Usage:     "Download an environment archive by locator",
		ArgsUsage: "LOCATOR DEST",
		Action:    downloadAction,
	}
}

func downloadAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: download LOCATOR DEST", 2)
	}
	locator, dest := c.Args().Get(0), c.Args().Get(1)
	s, err := settingsFrom(c)
	if err != nil {
		return err
	}

	bar := s.Progress("download")
	var progress transport.ProgressFunc
	if bar != nil {
		progress = bar.Update
	}
	router, err := s.downloadRouter(c.Context, progress)
	if err != nil {
		return err
	}
	err = router.Download(c.Context, locator, dest)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}
	return s.Print(DownloadResult{Locator: locator, Path: dest})
}

// downloadRouter resolves file, http(s) and s3 locators. The S3 backend
// is only built for s3 locators so AWS configuration stays optional.
func (s *Settings) downloadRouter(ctx context.Context, progress transport.ProgressFunc) (*transport.Router, error) {
	router := transport.NewRouter()
	router.Register(transport.NewFileTransport("", progress), "file")

	ht, err := s.httpTransport(progress)
	if err != nil {
		return nil, err
	}
	router.Register(ht, "http", "https")

	st, err := s.s3Transport(ctx, "", "")
	if err != nil {
		s.Logger.Debug("s3 downloads disabled", "error", err)
		return router, nil
	}
	st.SetProgress(progress)
	router.Register(st, "s3")
	return router, nil
}

func (s *Settings) httpTransport(progress transport.ProgressFunc) (*transport.HTTPTransport, error) {
	opts := []transport.HTTPOption{
		transport.WithAPIKey(s.APIKey),
		transport.WithProgress(progress),
		transport.WithHTTPLogger(s.Logger),
	}
	if s.Config.Timeout > 0 {
		opts = append(opts, transport.WithTimeout(s.Config.Timeout))
	}
	tlsCfg, err := tlsroots.ClientConfig(s.Config.CAFile)
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		opts = append(opts, transport.WithTLSConfig(tlsCfg))
	}
	return transport.NewHTTPTransport(s.ServerURL, opts...), nil
}

func (s *Settings) s3Transport(ctx context.Context, bucket, prefix string) (*transport.S3Transport, error) {
	return transport.NewS3Transport(ctx, transport.S3Config{
		Bucket:       bucket,
		Prefix:       prefix,
		Region:       s.Config.S3.Region,
		Endpoint:     s.Config.S3.Endpoint,
		UsePathStyle: s.Config.S3.UsePathStyle,
		Anonymous:    s.Config.S3.Anonymous,
	}, s.Logger)
}
