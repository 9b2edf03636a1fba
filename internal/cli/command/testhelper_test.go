package command

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/Hommy-master/browserbox/internal/core/domain"
	"github.com/Hommy-master/browserbox/internal/core/service"
	"github.com/Hommy-master/browserbox/internal/pool"
	"github.com/Hommy-master/browserbox/internal/server/httpserver"
	"github.com/Hommy-master/browserbox/internal/server/httpserver/handler"
	"github.com/Hommy-master/browserbox/internal/storage/blob"
	"github.com/Hommy-master/browserbox/internal/storage/snapshot"
	"github.com/Hommy-master/browserbox/pkg/token"
)

const testKey = "bbk_cli-test-key-0123456789"

type echoTasks struct{}

func (echoTasks) DoTask(_ context.Context, req *service.DoTaskRequest) (*service.DoTaskResponse, error) {
	return &service.DoTaskResponse{
		Result:     "Executed task with prompt: " + req.Prompt,
		ImageURL:   req.ImageURL,
		InstanceID: domain.DeriveInstanceID(req.Env),
	}, nil
}

type staticPool struct{}

func (staticPool) Stats() pool.Stats {
	return pool.Stats{CapacityInUse: 2, MaxConcurrent: 100, Instances: 3, InstancesInUse: 1}
}

// newTestServer starts the real API stack with an API key required.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := blob.Open(blob.DefaultConfig(t.TempDir()), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("blob.Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Handler: handler.Config{
			Tasks:   echoTasks{},
			Uploads: service.NewUploadService(store),
			Pool:    staticPool{},
			Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		},
		Keyring: token.NewKeyring([]string{token.Hash(testKey)}),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

// run executes the CLI with an isolated config file and captures output.
func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := App()
	app.Writer = &out
	app.ErrWriter = &errOut
	app.ExitErrHandler = func(*cli.Context, error) {}

	full := []string{"browserbox-cli", "--config", filepath.Join(t.TempDir(), "cli.yaml")}
	full = append(full, args...)
	err = app.Run(full)
	return out.String(), errOut.String(), err
}

// writeSnapshot creates a valid snapshot directory with two state files.
func writeSnapshot(t *testing.T, dir string) domain.FingerprintDescriptor {
	t.Helper()
	desc := domain.NewFingerprintDescriptor("Mozilla/5.0 Test",
		domain.Viewport{Width: 1280, Height: 720}, []string{"--lang=en-US"})
	data, err := desc.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	state := filepath.Join(dir, snapshot.UserStateDirName, "Default")
	if err := os.MkdirAll(state, 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, snapshot.DescriptorFileName), data, 0o640); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(state, "Cookies"), []byte("cookie-db"), 0o640); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(state, "Preferences"), []byte(`{"profile":{}}`), 0o640); err != nil {
		t.Fatal(err)
	}
	return desc
}

// unsetEnv clears an environment variable for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}
