package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"

	"dominoes.run/internal/sim/world"
)

// JSONLZstdWriter appends one JSON document per line to hourly zstd files.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Flush pushes buffered lines through the encoder without closing the frame.
func (w *JSONLZstdWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.enc.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// ErrTickDropped is returned by WriteTick when the write buffer is full.
var ErrTickDropped = errors.New("tick log: buffer full, tick dropped")

// TickLogger writes one JSONL entry per tick that did something (compressed).
// Idle ticks are skipped so a paused board does not grow the log. Writes run
// on a background goroutine; errors it hits are returned by the next
// WriteTick or by Close.
type TickLogger struct {
	w *JSONLZstdWriter

	ch     chan world.TickReport
	wg     sync.WaitGroup
	once   sync.Once
	closed atomic.Bool

	errMu sync.Mutex
	err   error
}

func NewTickLogger(dataDir string) *TickLogger {
	l := &TickLogger{
		w:  NewJSONLZstdWriter(filepath.Join(dataDir, "ticks"), "ticks"),
		ch: make(chan world.TickReport, 1024),
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.loop()
	}()
	return l
}

func (l *TickLogger) WriteTick(rep world.TickReport) error {
	if l.closed.Load() {
		return nil
	}
	if err := l.takeErr(); err != nil {
		return err
	}
	if len(rep.Fired) == 0 && len(rep.Transitions) == 0 && rep.Skipped == 0 && rep.Misses == 0 {
		return nil
	}
	select {
	case l.ch <- rep:
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrTickDropped, rep.Tick)
	}
}

// Close drains queued ticks and closes the current file.
func (l *TickLogger) Close() error {
	var err error
	l.once.Do(func() {
		l.closed.Store(true)
		close(l.ch)
		l.wg.Wait()
		err = errors.Join(l.takeErr(), l.w.Close())
	})
	return err
}

func (l *TickLogger) loop() {
	for rep := range l.ch {
		if err := l.w.Write(rep); err != nil {
			l.errMu.Lock()
			if l.err == nil {
				l.err = err
			}
			l.errMu.Unlock()
		}
	}
}

func (l *TickLogger) takeErr() error {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	err := l.err
	l.err = nil
	return err
}

// ReadTicks decodes every tick report in the compressed files under dir,
// oldest file first.
func ReadTicks(dir string) ([]world.TickReport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jsonl.zst") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	var out []world.TickReport
	for _, p := range files {
		reps, err := readTickFile(p)
		if err != nil {
			return out, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, reps...)
	}
	return out, nil
}

func readTickFile(path string) ([]world.TickReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []world.TickReport
	jd := json.NewDecoder(bufio.NewReader(dec))
	for {
		var rep world.TickReport
		if err := jd.Decode(&rep); err != nil {
			if err == io.EOF {
				return out, nil
			}
			return out, err
		}
		out = append(out, rep)
	}
}
