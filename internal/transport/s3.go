package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Hommy-master/browserbox/internal/core/domain"
)

// S3Config configures the s3:// backend.
type S3Config struct {
	Bucket string
	Prefix string
	Region string

	// Endpoint overrides the service endpoint for S3-compatible stores.
	Endpoint     string
	UsePathStyle bool

	// Anonymous uses unsigned requests for public buckets.
	Anonymous bool

	AccessKeyID     string
	SecretAccessKey string
}

// S3Transport stores archives as objects. Locators are s3://bucket/key.
type S3Transport struct {
	client   *s3.Client
	bucket   string
	prefix   string
	progress ProgressFunc
	logger   *slog.Logger
}

// NewS3Transport loads the AWS configuration and creates the backend.
func NewS3Transport(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Transport, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	switch {
	case cfg.Anonymous:
		opts = append(opts, config.WithCredentialsProvider(aws.AnonymousCredentials{}))
	case cfg.AccessKeyID != "":
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("transport: load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewS3TransportWithClient(client, cfg.Bucket, cfg.Prefix, logger), nil
}

// NewS3TransportWithClient wraps an existing client.
func NewS3TransportWithClient(client *s3.Client, bucket, prefix string, logger *slog.Logger) *S3Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Transport{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}
}

// SetProgress sets a progress callback.
func (t *S3Transport) SetProgress(fn ProgressFunc) {
	t.progress = fn
}

// Upload puts the archive under a fresh key.
func (t *S3Transport) Upload(ctx context.Context, archivePath string) (string, error) {
	if t.bucket == "" {
		return "", domain.ErrLocatorUnsupported.WithDetails("s3 transport has no bucket")
	}
	id, err := domain.GenerateUploadID()
	if err != nil {
		return "", err
	}
	key := path.Join(t.prefix, id+".tar.gz")

	f, err := os.Open(archivePath)
	if err != nil {
		return "", transportError("upload", archivePath, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return "", transportError("upload", archivePath, err)
	}

	_, err = t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(t.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(st.Size()),
		ContentType:   aws.String("application/gzip"),
	})
	if err != nil {
		return "", transportError("put object", key, err)
	}
	if t.progress != nil {
		t.progress(st.Size(), st.Size())
	}

	locator := (&url.URL{Scheme: "s3", Host: t.bucket, Path: "/" + key}).String()
	t.logger.Info("archive uploaded", "locator", locator, "size", st.Size())
	return locator, nil
}

// Download fetches the object in ranged 1 MiB blocks, appending to a
// partial file so an interrupted download resumes where it stopped.
func (t *S3Transport) Download(ctx context.Context, locator, destPath string) error {
	bucket, key, err := parseS3Locator(locator)
	if err != nil {
		return err
	}

	out, offset, err := partialFile(destPath)
	if err != nil {
		return transportError("download", locator, err)
	}

	total := int64(-1)
	for total < 0 || offset < total {
		if err := ctx.Err(); err != nil {
			out.Close()
			return transportError("download", locator, err)
		}

		end := offset + domain.ChunkSize - 1
		resp, err := t.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Range:  aws.String(fmt.Sprintf("bytes=%d-%d", offset, end)),
		})
		if err != nil {
			out.Close()
			if offset > 0 && isInvalidRange(err) {
				// Partial file is at least as long as the object.
				os.Remove(out.Name())
				return t.Download(ctx, locator, destPath)
			}
			return transportError("get object", locator, err)
		}

		if total < 0 {
			total = objectSize(resp, offset)
		}
		n, err := copyChunks(ctx, out, resp.Body, offset, total, t.progress)
		resp.Body.Close()
		if err != nil {
			out.Close()
			return transportError("download", locator, err)
		}
		if n == 0 {
			out.Close()
			return domain.ErrTransport.WithDetailsf("download %s: empty block at offset %d", locator, offset)
		}
		offset += n
	}

	if err := finishPartial(out, destPath); err != nil {
		return transportError("download", locator, err)
	}
	t.logger.Debug("archive downloaded", "locator", locator, "dest", destPath, "bytes", offset)
	return nil
}

// objectSize extracts the full object size from a ranged response.
func objectSize(resp *s3.GetObjectOutput, offset int64) int64 {
	if resp.ContentRange != nil {
		// bytes 0-1048575/5000000
		if i := strings.LastIndexByte(*resp.ContentRange, '/'); i >= 0 {
			if n, err := strconv.ParseInt((*resp.ContentRange)[i+1:], 10, 64); err == nil {
				return n
			}
		}
	}
	if resp.ContentLength != nil {
		return offset + *resp.ContentLength
	}
	return offset
}

func isInvalidRange(err error) bool {
	var re interface{ HTTPStatusCode() int }
	return errors.As(err, &re) && re.HTTPStatusCode() == 416
}

func parseS3Locator(locator string) (bucket, key string, err error) {
	u, err := url.Parse(locator)
	if err != nil || u.Scheme != "s3" || u.Host == "" {
		return "", "", domain.ErrLocatorUnsupported.WithDetailsf("invalid s3 locator %q", locator)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" || filepath.Base(key) == "." {
		return "", "", domain.ErrLocatorUnsupported.WithDetailsf("s3 locator %q has no key", locator)
	}
	return u.Host, key, nil
}
