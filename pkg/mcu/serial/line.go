package serial

import (
	"errors"
	"fmt"
	"io"

	"github.com/robotalks/mcu.go/pkg/framework"
)

const (
	// Terminator ends a line.
	Terminator byte = '\n'
	// DefaultLineCapacity is the line buffer size used when none is given.
	DefaultLineCapacity = 32
)

// ErrBufferOverflow matches every BufferOverflowError.
var ErrBufferOverflow = errors.New("line buffer overflow")

// BufferOverflowError reports a byte dropped because the line buffer was
// full.
type BufferOverflowError struct {
	Byte     byte
	Capacity int
}

// Error implements error.
func (e *BufferOverflowError) Error() string {
	return fmt.Sprintf("line buffer full (%d bytes), dropped %q", e.Capacity, e.Byte)
}

// Is makes errors.Is(err, ErrBufferOverflow) succeed.
func (e *BufferOverflowError) Is(target error) bool {
	return target == ErrBufferOverflow
}

// LineBuffer is a bounded byte buffer. Its storage is allocated once.
type LineBuffer struct {
	data []byte
}

// NewLineBuffer creates a buffer holding up to capacity bytes, or
// DefaultLineCapacity when capacity is not positive.
func NewLineBuffer(capacity int) *LineBuffer {
	if capacity <= 0 {
		capacity = DefaultLineCapacity
	}
	return &LineBuffer{data: make([]byte, 0, capacity)}
}

// Push appends b, or rejects it when the buffer is full.
func (l *LineBuffer) Push(b byte) error {
	if len(l.data) >= cap(l.data) {
		return &BufferOverflowError{Byte: b, Capacity: cap(l.data)}
	}
	l.data = append(l.data, b)
	return nil
}

// Bytes returns the buffered bytes. The slice aliases the buffer.
func (l *LineBuffer) Bytes() []byte { return l.data }

// Len returns the number of buffered bytes.
func (l *LineBuffer) Len() int { return len(l.data) }

// Cap returns the capacity.
func (l *LineBuffer) Cap() int { return cap(l.data) }

// Clear empties the buffer.
func (l *LineBuffer) Clear() { l.data = l.data[:0] }

// Reverse reverses the buffered bytes in place.
func (l *LineBuffer) Reverse() {
	for i, j := 0, len(l.data)-1; i < j; i, j = i+1, j-1 {
		l.data[i], l.data[j] = l.data[j], l.data[i]
	}
}

// FrameResult is the outcome of feeding one byte to a Framer.
type FrameResult struct {
	// Done is set when the byte was the terminator.
	Done bool
	// Line is the completed line without the terminator, valid until the
	// next Feed.
	Line *LineBuffer
	// Err is a *BufferOverflowError when the byte was dropped.
	Err error
}

// Framer accumulates bytes into lines.
type Framer struct {
	buf   *LineBuffer
	ended bool
}

// NewFramer creates a framer with the given line capacity.
func NewFramer(capacity int) *Framer {
	return &Framer{buf: NewLineBuffer(capacity)}
}

// Capacity returns the line capacity.
func (f *Framer) Capacity() int { return f.buf.Cap() }

// Feed consumes one byte. A byte arriving with the buffer full is dropped
// and reported, and the line continues until the terminator.
func (f *Framer) Feed(b byte) (fr FrameResult) {
	if f.ended {
		f.buf.Clear()
		f.ended = false
	}
	if b == Terminator {
		f.ended = true
		fr.Done, fr.Line = true, f.buf
		return
	}
	fr.Err = f.buf.Push(b)
	return
}

// Line is a received line.
type Line struct {
	// Data is the line without the terminator, valid until the next
	// ReadLine.
	Data *LineBuffer
	// Overflow aggregates one *BufferOverflowError per dropped byte, nil
	// when nothing was dropped.
	Overflow error
}

// LineReader reads lines from a byte source.
type LineReader struct {
	src    io.ByteReader
	framer *Framer
}

// NewLineReader creates a LineReader over src.
func NewLineReader(src io.ByteReader, capacity int) *LineReader {
	return &LineReader{src: src, framer: NewFramer(capacity)}
}

// ReadLine blocks until a terminator is received. An error is returned only
// when src fails; overflow is reported in Line.Overflow.
func (r *LineReader) ReadLine() (*Line, error) {
	var overflow framework.AggregatedError
	for {
		b, err := r.src.ReadByte()
		if err != nil {
			return nil, err
		}
		fr := r.framer.Feed(b)
		overflow.Add(fr.Err)
		if fr.Done {
			return &Line{Data: fr.Line, Overflow: overflow.Aggregate()}, nil
		}
	}
}
