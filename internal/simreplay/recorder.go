package simreplay

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
)

// Recorder persists a generated or live sample timeline as
// newline-delimited JSON, one Sample per line.
type Recorder struct {
	f      *os.File
	w      *bufio.Writer
	closed bool
}

func CreateRecorder(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Recorder{f: f, w: bufio.NewWriterSize(f, 64*1024)}, nil
}

func (r *Recorder) WriteSample(s Sample) error {
	if r.closed {
		return errors.New("simreplay: recorder is closed")
	}
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if _, err := r.w.Write(b); err != nil {
		return err
	}
	return r.w.WriteByte('\n')
}

func (r *Recorder) Flush() error {
	if r.closed {
		return nil
	}
	return r.w.Flush()
}

func (r *Recorder) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.w.Flush(); err != nil {
		_ = r.f.Close()
		return err
	}
	return r.f.Close()
}
