package sandbox

import (
	"io"

	appErr "gradebox/pkg/errors"
)

// Truncator provides read-only access to a limited prefix of a wrapped
// stream. It presents a truncated view of the data without ever touching the
// underlying file on disk. Reads never return bytes past the ceiling no
// matter how long the underlying stream actually is.
type Truncator struct {
	rs   io.ReadSeeker
	size int64
}

// NewTruncator wraps rs and gives access to its first size bytes.
func NewTruncator(rs io.ReadSeeker, size int64) *Truncator {
	if size < 0 {
		size = 0
	}
	return &Truncator{rs: rs, size: size}
}

// Read clips the request to the remaining allowance before forwarding it, so
// the read can never overflow into the hidden suffix. Once the allowance is
// exhausted it reports io.EOF even though the underlying stream may have
// more data.
func (t *Truncator) Read(p []byte) (int, error) {
	pos, err := t.rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	remaining := t.size - pos
	if remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	return t.rs.Read(p)
}

// Seek forwards to the underlying stream. Seeks relative to the end are
// adjusted to the imposed size: the underlying end is clamped to the ceiling
// before the offset is applied, so seeking to the end of a Truncator never
// reports a position beyond its ceiling.
func (t *Truncator) Seek(offset int64, whence int) (int64, error) {
	if whence == io.SeekEnd {
		end, err := t.rs.Seek(0, io.SeekEnd)
		if err != nil {
			return 0, err
		}
		if end > t.size {
			if _, err := t.rs.Seek(t.size, io.SeekStart); err != nil {
				return 0, err
			}
		}
		return t.rs.Seek(offset, io.SeekCurrent)
	}
	return t.rs.Seek(offset, whence)
}

// Write always fails: a Truncator is a read-only view.
func (t *Truncator) Write(p []byte) (int, error) {
	return 0, appErr.New(appErr.UnsupportedOperation).WithMessage("write on truncated read-only view")
}

// Close closes the underlying stream when it supports closing.
func (t *Truncator) Close() error {
	if c, ok := t.rs.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
