package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const hourLayout = "2006-01-02-15"

// segmentLog appends events to hourly zstd segments named
// <prefix>-YYYY-MM-DD-HH.jsonl.zst under dir. Sequence numbers and times
// are stamped under the same lock as the write, so file order is seq order.
type segmentLog struct {
	dir    string
	prefix string
	now    func() time.Time

	mu    sync.Mutex
	seq   uint64
	hour  string
	lines int
	f     *os.File
	enc   *zstd.Encoder
	buf   *bufio.Writer
	js    *json.Encoder
}

func newSegmentLog(dir, prefix string) *segmentLog {
	return &segmentLog{dir: dir, prefix: prefix, now: time.Now}
}

// Append stamps ev and writes it to the segment for its hour.
func (l *segmentLog) Append(ev Event) (Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := l.now().UTC()
	if hour := t.Format(hourLayout); hour != l.hour {
		if err := l.openLocked(hour); err != nil {
			return ev, err
		}
	}
	l.seq++
	ev.Seq = l.seq
	ev.Time = t.Format(time.RFC3339Nano)
	if err := l.js.Encode(ev); err != nil {
		return ev, err
	}
	l.lines++
	return ev, nil
}

// Segment returns the open segment and the lines written to it by this log.
func (l *segmentLog) Segment() (string, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return "", 0
	}
	return l.f.Name(), l.lines
}

// Flush pushes buffered events through the encoder to the file.
func (l *segmentLog) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.buf == nil {
		return nil
	}
	if err := l.buf.Flush(); err != nil {
		return err
	}
	return l.enc.Flush()
}

func (l *segmentLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.sealLocked()
	l.enc = nil
	return err
}

// openLocked seals the current segment and opens the one for hour. The
// encoder is reset onto the new file rather than rebuilt.
func (l *segmentLog) openLocked(hour string) error {
	if err := l.sealLocked(); err != nil {
		return err
	}
	path := filepath.Join(l.dir, fmt.Sprintf("%s-%s.jsonl.zst", l.prefix, hour))
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if l.enc == nil {
		l.enc, err = zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			_ = f.Close()
			return err
		}
	} else {
		l.enc.Reset(f)
	}
	l.f = f
	l.buf = bufio.NewWriterSize(l.enc, 128*1024)
	l.js = json.NewEncoder(l.buf)
	l.hour = hour
	l.lines = 0
	return nil
}

// sealLocked ends the open zstd frame and closes the file. The encoder is
// kept for the next segment.
func (l *segmentLog) sealLocked() error {
	if l.f == nil {
		return nil
	}
	err := l.buf.Flush()
	if cerr := l.enc.Close(); err == nil {
		err = cerr
	}
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f, l.buf, l.js = nil, nil, nil
	l.hour = ""
	return err
}
