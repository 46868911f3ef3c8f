package calibrate

import (
	"bufio"
	"context"
	"io"
	"sync"
	"time"
)

// lineBuffer bounds how many unread lines the reader holds.
const lineBuffer = 64

// Line is one line of operator input stamped with the time it was read
// off the stream.
type Line struct {
	Text string
	At   time.Time
}

// LineReader scans an input stream on its own goroutine so that lines are
// pulled off the stream as soon as they are typed. The confirmation prompt
// and the calibration Channel both consume from it.
type LineReader struct {
	lines chan Line
	stop  chan struct{}
	once  sync.Once

	mu  sync.Mutex
	err error
}

// NewLineReader starts scanning r. The goroutine ends at EOF, on a read
// error or after Close once a pending send is abandoned; a Read blocked
// on r itself cannot be interrupted.
func NewLineReader(r io.Reader) *LineReader {
	lr := &LineReader{
		lines: make(chan Line, lineBuffer),
		stop:  make(chan struct{}),
	}
	go lr.scan(r)
	return lr
}

func (lr *LineReader) scan(r io.Reader) {
	defer close(lr.lines)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		select {
		case lr.lines <- Line{Text: sc.Text(), At: time.Now()}:
		case <-lr.stop:
			return
		}
	}
	lr.mu.Lock()
	lr.err = sc.Err()
	lr.mu.Unlock()
}

// Lines is closed at end of input.
func (lr *LineReader) Lines() <-chan Line {
	return lr.lines
}

// Next blocks for one line. It returns io.EOF once input has ended, or the
// scanner error if reading failed.
func (lr *LineReader) Next(ctx context.Context) (string, error) {
	select {
	case line, ok := <-lr.lines:
		if !ok {
			return "", lr.Err()
		}
		return line.Text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Err is the read error that ended the stream, or io.EOF for a clean end.
// It is meaningful once Lines has been closed.
func (lr *LineReader) Err() error {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	if lr.err != nil {
		return lr.err
	}
	return io.EOF
}

// Close stops delivering lines.
func (lr *LineReader) Close() error {
	lr.once.Do(func() { close(lr.stop) })
	return nil
}
