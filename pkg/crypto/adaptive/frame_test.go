package adaptive

import (
	"bytes"
	"crypto/rand"
	"errors"
	"io"
	"testing"
)

const testFrame = 64

func sealFrames(t *testing.T, c Cipher, plain []byte, stream string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf, c, testFrame, []byte(stream))
	// Uneven writes exercise frame boundaries.
	for p := plain; len(p) > 0; {
		n := min(len(p), 37)
		if _, err := w.Write(p[:n]); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		p = p[n:]
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return buf.Bytes()
}

func TestFrameRoundTrip(t *testing.T) {
	c, _ := New(key32)
	for _, n := range []int{0, 1, testFrame - 1, testFrame, testFrame + 1, 3 * testFrame, 5*testFrame + 17} {
		plain := make([]byte, n)
		rand.Read(plain)

		sealed := sealFrames(t, c, plain, "upl_a")
		if want := SealedSize(c, testFrame, int64(n)); int64(len(sealed)) != want {
			t.Errorf("n=%d: sealed size = %d, SealedSize() = %d", n, len(sealed), want)
		}

		r, err := NewReader(bytes.NewReader(sealed), int64(len(sealed)), c, testFrame, []byte("upl_a"))
		if err != nil {
			t.Fatalf("n=%d: NewReader() error = %v", n, err)
		}
		if r.Size() != int64(n) {
			t.Errorf("n=%d: Size() = %d", n, r.Size())
		}
		got, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("n=%d: ReadAll() error = %v", n, err)
		}
		if !bytes.Equal(got, plain) {
			t.Errorf("n=%d: round trip mismatch", n)
		}
	}
}

func TestFrameReaderSeek(t *testing.T) {
	c, _ := New(key32)
	plain := make([]byte, 4*testFrame+10)
	rand.Read(plain)
	sealed := sealFrames(t, c, plain, "s")
	r, err := NewReader(bytes.NewReader(sealed), int64(len(sealed)), c, testFrame, []byte("s"))
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}

	tests := []struct {
		offset int64
		whence int
		want   int64
	}{
		{testFrame + 5, io.SeekStart, testFrame + 5},
		{-10, io.SeekEnd, int64(len(plain)) - 10},
		{0, io.SeekStart, 0},
	}
	for _, tt := range tests {
		pos, err := r.Seek(tt.offset, tt.whence)
		if err != nil || pos != tt.want {
			t.Fatalf("Seek(%d, %d) = %d, %v; want %d", tt.offset, tt.whence, pos, err, tt.want)
		}
		buf := make([]byte, 20)
		n, _ := io.ReadFull(r, buf)
		if !bytes.Equal(buf[:n], plain[pos:pos+int64(n)]) {
			t.Errorf("read at %d mismatch", pos)
		}
	}

	if _, err := r.Seek(-1, io.SeekStart); err == nil {
		t.Error("Seek(-1) error = nil")
	}
}

func TestFrameTamper(t *testing.T) {
	c, _ := New(key32)
	plain := make([]byte, 3*testFrame)
	rand.Read(plain)
	sealed := sealFrames(t, c, plain, "s")
	full := testFrame + c.Overhead()

	t.Run("wrong stream", func(t *testing.T) {
		r, _ := NewReader(bytes.NewReader(sealed), int64(len(sealed)), c, testFrame, []byte("other"))
		if _, err := io.ReadAll(r); !errors.Is(err, ErrOpen) {
			t.Errorf("ReadAll() error = %v, want ErrOpen", err)
		}
	})

	t.Run("dropped tail frame", func(t *testing.T) {
		cut := sealed[:2*full]
		r, err := NewReader(bytes.NewReader(cut), int64(len(cut)), c, testFrame, []byte("s"))
		if err != nil {
			t.Fatalf("NewReader() error = %v", err)
		}
		if _, err := io.ReadAll(r); !errors.Is(err, ErrOpen) {
			t.Errorf("ReadAll() error = %v, want ErrOpen", err)
		}
	})

	t.Run("swapped frames", func(t *testing.T) {
		swapped := append([]byte(nil), sealed...)
		copy(swapped[:full], sealed[full:2*full])
		copy(swapped[full:2*full], sealed[:full])
		r, _ := NewReader(bytes.NewReader(swapped), int64(len(swapped)), c, testFrame, []byte("s"))
		if _, err := io.ReadAll(r); !errors.Is(err, ErrOpen) {
			t.Errorf("ReadAll() error = %v, want ErrOpen", err)
		}
	})

	t.Run("truncated below overhead", func(t *testing.T) {
		if _, err := NewReader(bytes.NewReader(nil), 3, c, testFrame, nil); !errors.Is(err, ErrFrameCorrupt) {
			t.Errorf("NewReader() error = %v, want ErrFrameCorrupt", err)
		}
	})
}
