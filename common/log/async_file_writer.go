package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// AsyncFileWriter buffers log writes on a channel and flushes them to an
// hourly-rotated file from a single background goroutine. Writes never block
// the caller; if the buffer is full the message is dropped.
type AsyncFileWriter struct {
	sync.Mutex

	filename string
	fd       *os.File

	wg         sync.WaitGroup
	started    int32
	buf        chan []byte
	stop       chan struct{}
	hourTicker <-chan time.Time
}

func NewAsyncFileWriter(filename string, bufSize int64) *AsyncFileWriter {
	return &AsyncFileWriter{
		filename:   filename,
		buf:        make(chan []byte, bufSize),
		stop:       make(chan struct{}),
		hourTicker: newHourTicker(),
	}
}

// newHourTicker fires shortly after each wall-clock hour boundary.
func newHourTicker() <-chan time.Time {
	ch := make(chan time.Time)
	go func() {
		hour := time.Now().Hour()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for t := range ticker.C {
			if t.Hour() != hour {
				ch <- t
				hour = t.Hour()
			}
		}
	}()
	return ch
}

func (w *AsyncFileWriter) initLogFile() error {
	realFile, err := w.timeFilename()
	if err != nil {
		return err
	}

	fd, err := os.OpenFile(realFile, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0644)
	if err != nil {
		return err
	}

	w.fd = fd
	_, err = os.Lstat(w.filename)
	if err == nil || os.IsExist(err) {
		os.Remove(w.filename)
	}
	os.Symlink("./"+filepath.Base(realFile), w.filename)
	return nil
}

func (w *AsyncFileWriter) Start() {
	if !atomic.CompareAndSwapInt32(&w.started, 0, 1) {
		return
	}

	w.wg.Add(1)
	go func() {
		defer func() {
			atomic.StoreInt32(&w.started, 0)

			w.flushBuffer()
			w.wg.Done()
		}()

		for {
			select {
			case msg, ok := <-w.buf:
				if !ok {
					fmt.Fprintln(os.Stderr, "buf channel has been closed.")
					return
				}
				w.syncWrite(msg)
			case <-w.stop:
				return
			}
		}
	}()
}

func (w *AsyncFileWriter) flushBuffer() {
	for {
		select {
		case msg := <-w.buf:
			w.syncWrite(msg)
		default:
			w.Flush()
			return
		}
	}
}

func (w *AsyncFileWriter) syncWrite(msg []byte) {
	w.rotateFile()
	if w.fd != nil {
		w.fd.Write(msg)
	}
}

func (w *AsyncFileWriter) rotateFile() {
	select {
	case <-w.hourTicker:
		if w.fd != nil {
			w.fd.Sync()
			w.fd.Close()
		}
		w.initLogFile()
	default:
		if w.fd == nil {
			w.initLogFile()
		}
	}
}

func (w *AsyncFileWriter) Stop() {
	w.stop <- struct{}{}
	w.wg.Wait()
}

func (w *AsyncFileWriter) Write(msg []byte) (n int, err error) {
	// the underlying array may be reused by the caller, copy before queueing
	buf := make([]byte, len(msg))
	copy(buf, msg)

	select {
	case w.buf <- buf:
	default:
	}
	return len(msg), nil
}

func (w *AsyncFileWriter) Flush() error {
	if w.fd == nil {
		return nil
	}
	return w.fd.Sync()
}

func (w *AsyncFileWriter) timeFilename() (string, error) {
	absPath, err := filepath.Abs(w.filename)
	if err != nil {
		return "", err
	}
	return absPath + "." + time.Now().Format("2006-01-02_15"), nil
}
