package adaptive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrFrameCorrupt is returned when a framed stream is truncated or malformed.
var ErrFrameCorrupt = errors.New("adaptive: corrupt frame stream")

// frameAAD binds a frame to its stream, position and finality so frames
// cannot be reordered, moved between streams or dropped from the tail.
func frameAAD(stream []byte, index uint64, final bool) []byte {
	aad := make([]byte, len(stream)+9)
	copy(aad, stream)
	binary.BigEndian.PutUint64(aad[len(stream):], index)
	if final {
		aad[len(aad)-1] = 1
	}
	return aad
}

// SealedSize returns the size of a framed stream holding n plaintext bytes.
func SealedSize(c Cipher, frameSize int, n int64) int64 {
	fs := int64(frameSize)
	frames := n/fs + 1
	if n > 0 && n%fs == 0 {
		frames--
	}
	return n + frames*int64(c.Overhead())
}

// PlainSize returns the plaintext size of a framed stream of sealed bytes.
func PlainSize(c Cipher, frameSize int, sealed int64) (int64, error) {
	full := int64(frameSize + c.Overhead())
	if sealed < int64(c.Overhead()) {
		return 0, ErrFrameCorrupt
	}
	frames := (sealed + full - 1) / full
	last := sealed - (frames-1)*full
	if last < int64(c.Overhead()) {
		return 0, ErrFrameCorrupt
	}
	return (frames-1)*int64(frameSize) + last - int64(c.Overhead()), nil
}

// Writer seals a plaintext stream into fixed-size frames.
// The final frame is written by Close.
type Writer struct {
	w      io.Writer
	c      Cipher
	stream []byte
	buf    []byte
	size   int
	index  uint64
	closed bool
}

// NewWriter returns a Writer emitting frames of frameSize plaintext bytes to w.
// stream identifies the sealed object and must be passed to NewReader.
func NewWriter(w io.Writer, c Cipher, frameSize int, stream []byte) *Writer {
	return &Writer{
		w:      w,
		c:      c,
		stream: append([]byte(nil), stream...),
		buf:    make([]byte, 0, frameSize),
		size:   frameSize,
	}
}

func (fw *Writer) Write(p []byte) (int, error) {
	if fw.closed {
		return 0, errors.New("adaptive: write to closed frame writer")
	}
	n := 0
	for len(p) > 0 {
		// A full buffer is flushed only once more data arrives, so the last
		// frame is always the one sealed as final.
		if len(fw.buf) == fw.size {
			if err := fw.flush(false); err != nil {
				return n, err
			}
		}
		k := copy(fw.buf[len(fw.buf):fw.size], p)
		fw.buf = fw.buf[:len(fw.buf)+k]
		p = p[k:]
		n += k
	}
	return n, nil
}

// Close seals the final frame. It does not close the underlying writer.
func (fw *Writer) Close() error {
	if fw.closed {
		return nil
	}
	fw.closed = true
	return fw.flush(true)
}

func (fw *Writer) flush(final bool) error {
	sealed, err := fw.c.Seal(fw.buf, frameAAD(fw.stream, fw.index, final))
	if err != nil {
		return err
	}
	if _, err := fw.w.Write(sealed); err != nil {
		return err
	}
	fw.index++
	fw.buf = fw.buf[:0]
	return nil
}

// Reader decrypts a framed stream with random access.
type Reader struct {
	r      io.ReaderAt
	c      Cipher
	stream []byte
	fsize  int64
	frames int64
	sealed int64
	size   int64
	pos    int64

	cached int64
	plain  []byte
}

// NewReader opens a framed stream of sealed bytes read from r.
func NewReader(r io.ReaderAt, sealed int64, c Cipher, frameSize int, stream []byte) (*Reader, error) {
	size, err := PlainSize(c, frameSize, sealed)
	if err != nil {
		return nil, err
	}
	full := int64(frameSize + c.Overhead())
	return &Reader{
		r:      r,
		c:      c,
		stream: append([]byte(nil), stream...),
		fsize:  int64(frameSize),
		frames: (sealed + full - 1) / full,
		sealed: sealed,
		size:   size,
		cached: -1,
	}, nil
}

// Size returns the plaintext size.
func (fr *Reader) Size() int64 {
	return fr.size
}

func (fr *Reader) Read(p []byte) (int, error) {
	if fr.pos >= fr.size {
		return 0, io.EOF
	}
	idx := fr.pos / fr.fsize
	frame, err := fr.frame(idx)
	if err != nil {
		return 0, err
	}
	n := copy(p, frame[fr.pos-idx*fr.fsize:])
	fr.pos += int64(n)
	return n, nil
}

func (fr *Reader) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = fr.pos + offset
	case io.SeekEnd:
		abs = fr.size + offset
	default:
		return 0, errors.New("adaptive: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("adaptive: negative position")
	}
	fr.pos = abs
	return abs, nil
}

func (fr *Reader) frame(idx int64) ([]byte, error) {
	if idx == fr.cached {
		return fr.plain, nil
	}
	full := fr.fsize + int64(fr.c.Overhead())
	start := idx * full
	end := min(start+full, fr.sealed)
	buf := make([]byte, end-start)
	if _, err := fr.r.ReadAt(buf, start); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	plain, err := fr.c.Open(buf, frameAAD(fr.stream, uint64(idx), idx == fr.frames-1))
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", idx, err)
	}
	fr.cached, fr.plain = idx, plain
	return plain, nil
}
