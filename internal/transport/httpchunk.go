package transport

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Hommy-master/browserbox/internal/core/domain"
	"github.com/Hommy-master/browserbox/internal/infra/buildinfo"
)

// API paths of the chunked upload protocol.
const (
	APIPrefix      = "/openapi/browserbox/v1"
	UploadsPath    = APIPrefix + "/uploads"
	ArchivesPath   = APIPrefix + "/archives"
	HeaderAPIKey   = "X-API-Key"
	DefaultTimeout = 5 * time.Minute
)

// UploadStatus is the server's view of an upload.
type UploadStatus struct {
	UploadID  string `json:"upload_id"`
	Size      int64  `json:"size"`
	Offset    int64  `json:"offset"`
	ChunkSize int64  `json:"chunk_size"`
	State     string `json:"state"`
	SHA256    string `json:"sha256,omitempty"`
	Locator   string `json:"locator,omitempty"`
}

type createUploadRequest struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type completeUploadRequest struct {
	SHA256 string `json:"sha256"`
}

// envelope mirrors the server's JSON response wrapper.
type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details any             `json:"details,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// HTTPTransport uploads archives to a BrowserBox server in 1 MiB chunks and
// downloads archives from any HTTP(S) URL with Range-based resume.
type HTTPTransport struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	progress ProgressFunc
	logger   *slog.Logger
}

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithAPIKey sets the X-API-Key header on every request.
func WithAPIKey(key string) HTTPOption {
	return func(t *HTTPTransport) {
		t.apiKey = key
	}
}

// WithTLSConfig sets the client TLS configuration.
func WithTLSConfig(cfg *tls.Config) HTTPOption {
	return func(t *HTTPTransport) {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = cfg
		t.client.Transport = tr
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(t *HTTPTransport) {
		t.client.Timeout = d
	}
}

// WithProgress sets a progress callback.
func WithProgress(fn ProgressFunc) HTTPOption {
	return func(t *HTTPTransport) {
		t.progress = fn
	}
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(logger *slog.Logger) HTTPOption {
	return func(t *HTTPTransport) {
		t.logger = logger
	}
}

// NewHTTPTransport creates an HTTP transport for the server at baseURL.
// baseURL may be empty for a download-only transport.
func NewHTTPTransport(baseURL string, opts ...HTTPOption) *HTTPTransport {
	if baseURL != "" && !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	t := &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// BaseURL returns the server base URL.
func (t *HTTPTransport) BaseURL() string {
	return t.baseURL
}

// Upload creates an upload session and sends the archive chunk by chunk.
// A failed chunk aborts the call with a retryable ErrTransport whose
// details name the upload ID; Resume continues from the committed offset.
func (t *HTTPTransport) Upload(ctx context.Context, archivePath string) (string, error) {
	if t.baseURL == "" {
		return "", domain.ErrLocatorUnsupported.WithDetails("http transport has no server URL")
	}

	st, err := os.Stat(archivePath)
	if err != nil {
		return "", transportError("upload", archivePath, err)
	}

	var status UploadStatus
	err = t.call(ctx, http.MethodPost, UploadsPath, "application/json",
		jsonBody(createUploadRequest{Name: filepath.Base(archivePath), Size: st.Size()}), &status)
	if err != nil {
		return "", transportError("create upload for", archivePath, err)
	}

	t.logger.Debug("upload created", "upload_id", status.UploadID, "size", st.Size())
	return t.Resume(ctx, status.UploadID, archivePath)
}

// Resume continues an upload from the offset the server has committed and
// completes it.
func (t *HTTPTransport) Resume(ctx context.Context, uploadID, archivePath string) (string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", transportError("upload", archivePath, err)
	}
	defer f.Close()

	digest, size, err := fileDigest(f)
	if err != nil {
		return "", transportError("hash", archivePath, err)
	}

	status, err := t.Status(ctx, uploadID)
	if err != nil {
		return "", err
	}
	if status.Size != size {
		return "", domain.ErrInvalidArgument.WithDetailsf("upload %s expects %d bytes, archive has %d", uploadID, status.Size, size)
	}

	offset := status.Offset
	buf := make([]byte, domain.ChunkSize)
	for offset < size {
		n, err := f.ReadAt(buf, offset)
		if err != nil && err != io.EOF {
			return "", transportError("read", archivePath, err)
		}

		var ack UploadStatus
		path := fmt.Sprintf("%s/%s/chunks?offset=%d", UploadsPath, url.PathEscape(uploadID), offset)
		if err := t.call(ctx, http.MethodPost, path, "application/octet-stream", bytes.NewReader(buf[:n]), &ack); err != nil {
			return "", transportError("upload chunk", fmt.Sprintf("%s@%d", uploadID, offset), err)
		}
		if ack.Offset != offset+int64(n) {
			return "", domain.ErrTransport.WithDetailsf("upload %s: server committed offset %d, expected %d", uploadID, ack.Offset, offset+int64(n))
		}
		offset = ack.Offset
		if t.progress != nil {
			t.progress(offset, size)
		}
	}

	var done UploadStatus
	path := fmt.Sprintf("%s/%s/complete", UploadsPath, url.PathEscape(uploadID))
	if err := t.call(ctx, http.MethodPost, path, "application/json", jsonBody(completeUploadRequest{SHA256: digest}), &done); err != nil {
		return "", transportError("complete upload", uploadID, err)
	}

	t.logger.Info("archive uploaded", "upload_id", uploadID, "locator", done.Locator, "size", size)
	return done.Locator, nil
}

// Status queries the server for an upload's committed offset.
func (t *HTTPTransport) Status(ctx context.Context, uploadID string) (*UploadStatus, error) {
	var status UploadStatus
	path := fmt.Sprintf("%s/%s", UploadsPath, url.PathEscape(uploadID))
	if err := t.call(ctx, http.MethodGet, path, "", nil, &status); err != nil {
		return nil, transportError("query upload", uploadID, err)
	}
	return &status, nil
}

// Download fetches locator into destPath. A partial file left by an earlier
// attempt is resumed with a Range request.
func (t *HTTPTransport) Download(ctx context.Context, locator, destPath string) error {
	out, have, err := partialFile(destPath)
	if err != nil {
		return transportError("download", locator, err)
	}
	closed := false
	defer func() {
		if !closed {
			out.Close()
		}
	}()

	resp, err := t.get(ctx, locator, have)
	if err != nil {
		return transportError("download", locator, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent:
	case http.StatusOK:
		// Server ignored the range; start over.
		if err := out.Truncate(0); err != nil {
			return transportError("download", locator, err)
		}
		if _, err := out.Seek(0, io.SeekStart); err != nil {
			return transportError("download", locator, err)
		}
		have = 0
	case http.StatusRequestedRangeNotSatisfiable:
		// The partial file does not belong to this object; discard it.
		resp.Body.Close()
		closed = true
		if err := out.Truncate(0); err != nil {
			out.Close()
			return transportError("download", locator, err)
		}
		out.Close()
		return t.Download(ctx, locator, destPath)
	default:
		return domain.ErrTransport.WithDetailsf("download %s: %s", locator, responseError(resp))
	}

	total := int64(-1)
	if resp.ContentLength >= 0 {
		total = have + resp.ContentLength
	}
	n, err := copyChunks(ctx, out, resp.Body, have, total, t.progress)
	if err != nil {
		return transportError("download", locator, err)
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return domain.ErrTransport.WithDetailsf("download %s: short body %d/%d", locator, n, resp.ContentLength)
	}

	closed = true
	if err := finishPartial(out, destPath); err != nil {
		return transportError("download", locator, err)
	}
	t.logger.Debug("archive downloaded", "locator", locator, "dest", destPath, "bytes", have+n)
	return nil
}

func (t *HTTPTransport) get(ctx context.Context, rawURL string, offset int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if offset > 0 {
		req.Header.Set("Range", "bytes="+strconv.FormatInt(offset, 10)+"-")
	}
	if t.sameServer(rawURL) {
		t.addHeaders(req)
	} else {
		req.Header.Set("User-Agent", buildinfo.UserAgent())
	}
	return t.client.Do(req)
}

// sameServer limits the API key to requests against the configured server.
func (t *HTTPTransport) sameServer(rawURL string) bool {
	return t.baseURL != "" && strings.HasPrefix(rawURL, t.baseURL+"/")
}

func (t *HTTPTransport) call(ctx context.Context, method, path, contentType string, body io.Reader, target any) error {
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	t.addHeaders(req)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return domain.ErrTransport.WithDetails(responseError(resp))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if target != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, target); err != nil {
			return fmt.Errorf("parse response data: %w", err)
		}
	}
	return nil
}

func (t *HTTPTransport) addHeaders(req *http.Request) {
	if t.apiKey != "" {
		req.Header.Set(HeaderAPIKey, t.apiKey)
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent())
}

// responseError renders a failed response as "[code] message" when the
// body is a server envelope.
func responseError(resp *http.Response) string {
	var env envelope
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &env); err == nil && env.Message != "" {
		return fmt.Sprintf("[%s] %s", env.Code, env.Message)
	}
	return fmt.Sprintf("request failed with status %d", resp.StatusCode)
}

func jsonBody(v any) io.Reader {
	data, err := json.Marshal(v)
	if err != nil {
		return strings.NewReader("")
	}
	return bytes.NewReader(data)
}

func fileDigest(f *os.File) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, io.NewSectionReader(f, 0, 1<<62))
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
