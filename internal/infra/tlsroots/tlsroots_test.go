package tlsroots

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeTestPair writes a self-signed certificate and key and returns the
// certificate serial number.
func writeTestPair(t *testing.T, certFile, keyFile string, serial int64) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(serial),
		Subject:               pkix.Name{CommonName: "browserbox.test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		DNSNames:              []string{"browserbox.test"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate() error = %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey() error = %v", err)
	}
	if err := os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o644); err != nil {
		t.Fatal(err)
	}
	if keyFile != "" {
		if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPool_AddCertPEM(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "ca.pem")
	writeTestPair(t, certFile, "", 1)

	p := NewEmptyPool()
	if err := p.AddCertFile(certFile); err != nil {
		t.Fatalf("AddCertFile() error = %v", err)
	}
	if p.TLSConfig().RootCAs == nil {
		t.Error("TLSConfig() RootCAs is nil")
	}

	if err := p.AddCertPEM([]byte("no pem here")); !errors.Is(err, ErrNoCertsFound) {
		t.Errorf("AddCertPEM() error = %v, want ErrNoCertsFound", err)
	}
	bad := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte("garbage")})
	if err := p.AddCertPEM(bad); err == nil {
		t.Error("AddCertPEM() accepted an unparsable certificate")
	}
	if err := p.AddCertFile(filepath.Join(dir, "missing.pem")); err == nil {
		t.Error("AddCertFile() accepted a missing file")
	}
}

func TestClientConfig(t *testing.T) {
	cfg, err := ClientConfig("")
	if err != nil || cfg != nil {
		t.Fatalf("ClientConfig(\"\") = %v, %v; want nil, nil", cfg, err)
	}

	certFile := filepath.Join(t.TempDir(), "ca.pem")
	writeTestPair(t, certFile, "", 1)
	cfg, err = ClientConfig(certFile)
	if err != nil {
		t.Fatalf("ClientConfig() error = %v", err)
	}
	if cfg.RootCAs == nil || cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("ClientConfig() = %+v", cfg)
	}
}

func TestReloader(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "server.crt")
	keyFile := filepath.Join(dir, "server.key")
	writeTestPair(t, certFile, keyFile, 1)

	r, err := NewReloader(certFile, keyFile, WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewReloader() error = %v", err)
	}
	defer r.Close()

	serial := func() int64 {
		cert, err := r.ServerConfig().GetCertificate(nil)
		if err != nil {
			t.Fatalf("GetCertificate() error = %v", err)
		}
		leaf, err := x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			t.Fatalf("ParseCertificate() error = %v", err)
		}
		return leaf.SerialNumber.Int64()
	}
	if got := serial(); got != 1 {
		t.Fatalf("serial = %d, want 1", got)
	}

	time.Sleep(50 * time.Millisecond)
	writeTestPair(t, certFile, keyFile, 2)

	deadline := time.Now().Add(3 * time.Second)
	for serial() != 2 {
		if time.Now().After(deadline) {
			t.Fatal("certificate was not reloaded")
		}
		time.Sleep(20 * time.Millisecond)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestNewReloader_Invalid(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "server.crt")
	keyFile := filepath.Join(dir, "server.key")
	os.WriteFile(certFile, []byte("invalid"), 0o644)
	os.WriteFile(keyFile, []byte("invalid"), 0o600)

	if _, err := NewReloader(certFile, keyFile); err == nil {
		t.Error("NewReloader() accepted an invalid pair")
	}
	if _, err := NewReloader("/nonexistent/cert.pem", "/nonexistent/key.pem"); err == nil {
		t.Error("NewReloader() accepted missing files")
	}
}
