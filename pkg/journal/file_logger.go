package journal

import (
	"io"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// DefaultMaxFileSize is the rotation threshold for journal files.
const DefaultMaxFileSize = 1 << 20 // 1 MiB

// FileLogger appends CBOR-encoded events to a file, rotating once the file
// exceeds the size cap. One rotated generation is kept at <path>.1.
// It is safe for concurrent use.
type FileLogger struct {
	path    string
	maxSize int64

	mu      sync.Mutex
	file    *os.File
	writer  *countingWriter
	encoder *cbor.Encoder
	closed  bool
}

// countingWriter tracks the journal file size across appends.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// NewFileLogger opens (or creates) the journal at path. maxSize of zero
// selects DefaultMaxFileSize.
func NewFileLogger(path string, maxSize int64) (*FileLogger, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	l := &FileLogger{path: path, maxSize: maxSize}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

// open initializes the file, size counter, and encoder. Caller holds the
// lock (or is the constructor).
func (l *FileLogger) open() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	l.file = f
	l.writer = &countingWriter{w: f, n: info.Size()}
	l.encoder = NewEncoder(l.writer)
	return nil
}

// Record appends one event. Encoding errors are swallowed: the journal
// must never disrupt the aggregation path.
func (l *FileLogger) Record(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if l.writer.n >= l.maxSize {
		if !l.rotate() {
			return
		}
	}
	_ = l.encoder.Encode(event)
}

// rotate shifts the current file to <path>.1 and starts fresh. Caller
// holds the lock.
func (l *FileLogger) rotate() bool {
	l.file.Close()
	_ = os.Rename(l.path, l.path+".1")
	if err := l.open(); err != nil {
		l.closed = true
		return false
	}
	return true
}

// Close closes the journal file. Safe to call multiple times; Record
// calls after Close are silently ignored.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

// Compile-time interface satisfaction check.
var _ Logger = (*FileLogger)(nil)
