package sandbox

import (
	"bytes"
	"io"
	"strings"
	"testing"

	appErr "gradebox/pkg/errors"
)

func TestTruncatorBoundedRead(t *testing.T) {
	payload := "0123456789abcdef"
	cases := []struct {
		name  string
		size  int64
		chunk int
		want  string
	}{
		{name: "ceiling below content", size: 10, chunk: 3, want: payload[:10]},
		{name: "ceiling above content", size: 100, chunk: 4, want: payload},
		{name: "ceiling equals content", size: int64(len(payload)), chunk: 5, want: payload},
		{name: "single byte chunks", size: 7, chunk: 1, want: payload[:7]},
		{name: "zero ceiling", size: 0, chunk: 8, want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := NewTruncator(strings.NewReader(payload), tc.size)
			var out bytes.Buffer
			buf := make([]byte, tc.chunk)
			for {
				n, err := tr.Read(buf)
				out.Write(buf[:n])
				if err == io.EOF {
					break
				}
				if err != nil {
					t.Fatalf("read: %v", err)
				}
			}
			if out.String() != tc.want {
				t.Fatalf("read %q, want %q", out.String(), tc.want)
			}
		})
	}
}

func TestTruncatorSeekEndClamps(t *testing.T) {
	payload := "0123456789abcdef"
	tr := NewTruncator(strings.NewReader(payload), 10)

	pos, err := tr.Seek(0, io.SeekEnd)
	if err != nil {
		t.Fatalf("seek end: %v", err)
	}
	if pos != 10 {
		t.Fatalf("seek end position = %d, want 10", pos)
	}

	pos, err = tr.Seek(-4, io.SeekEnd)
	if err != nil {
		t.Fatalf("seek end -4: %v", err)
	}
	if pos != 6 {
		t.Fatalf("seek end -4 position = %d, want 6", pos)
	}
	rest, err := io.ReadAll(tr)
	if err != nil {
		t.Fatalf("read rest: %v", err)
	}
	if string(rest) != "6789" {
		t.Fatalf("rest = %q, want %q", rest, "6789")
	}
}

func TestTruncatorSeekSetAndCur(t *testing.T) {
	tr := NewTruncator(strings.NewReader("0123456789"), 6)
	if _, err := tr.Seek(2, io.SeekStart); err != nil {
		t.Fatalf("seek start: %v", err)
	}
	if _, err := tr.Seek(2, io.SeekCurrent); err != nil {
		t.Fatalf("seek current: %v", err)
	}
	rest, err := io.ReadAll(tr)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(rest) != "45" {
		t.Fatalf("rest = %q, want %q", rest, "45")
	}
}

func TestTruncatorWriteAlwaysFails(t *testing.T) {
	tr := NewTruncator(strings.NewReader("payload"), 100)
	_, err := tr.Write([]byte("x"))
	if err == nil {
		t.Fatal("write succeeded on a read-only view")
	}
	if code := appErr.GetCode(err); code != appErr.UnsupportedOperation {
		t.Fatalf("write error = %v, want code %d", err, appErr.UnsupportedOperation)
	}
	// The underlying stream must stay readable after the refused write.
	data, err := io.ReadAll(tr)
	if err != nil {
		t.Fatalf("read after write: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("read %q after refused write", data)
	}
}
