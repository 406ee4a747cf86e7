package loki

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	flushEvery = time.Second
	flushSize  = 20
)

// Writer buffers log lines and sends them to Loki's push API. It is the sink
// behind the zap core built in infra/logging.
type Writer struct {
	url    string
	labels map[string]string
	client *http.Client
	mu     sync.Mutex
	buf    [][]string
	done   chan struct{}
	closed sync.Once
	wg     sync.WaitGroup
}

// NewWriter returns a Writer pushing to baseURL (e.g. http://loki:3100) under
// the job label. It returns nil when baseURL or job is empty.
func NewWriter(baseURL, job string) *Writer {
	if baseURL == "" || job == "" {
		return nil
	}
	w := &Writer{
		url:    strings.TrimSuffix(baseURL, "/") + "/loki/api/v1/push",
		labels: map[string]string{"job": job, "service": "inventory"},
		client: &http.Client{Timeout: 5 * time.Second},
		buf:    make([][]string, 0, 64),
		done:   make(chan struct{}),
	}
	w.wg.Add(1)
	go w.flushLoop()
	return w
}

// Write implements io.Writer. Each newline-separated line becomes one entry.
func (w *Writer) Write(p []byte) (int, error) {
	ts := strconv.FormatInt(time.Now().UnixNano(), 10)
	w.mu.Lock()
	for _, line := range bytes.Split(p, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		w.buf = append(w.buf, []string{ts, string(line)})
	}
	needFlush := len(w.buf) >= flushSize
	w.mu.Unlock()
	if needFlush {
		w.Sync()
	}
	return len(p), nil
}

// Sync pushes whatever is buffered. Push failures are dropped: logging must
// never block or fail the caller.
func (w *Writer) Sync() error {
	w.mu.Lock()
	if len(w.buf) == 0 {
		w.mu.Unlock()
		return nil
	}
	values := w.buf
	w.buf = make([][]string, 0, 64)
	w.mu.Unlock()

	body := pushRequest{Streams: []stream{{Stream: w.labels, Values: values}}}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil
	}
	req, err := http.NewRequest(http.MethodPost, w.url, bytes.NewReader(raw))
	if err != nil {
		return nil
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return nil
	}
	resp.Body.Close()
	return nil
}

func (w *Writer) flushLoop() {
	defer w.wg.Done()
	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.Sync()
		}
	}
}

// Close stops the background flusher and pushes the remaining buffer.
func (w *Writer) Close() error {
	w.closed.Do(func() {
		close(w.done)
		w.wg.Wait()
		w.Sync()
	})
	return nil
}

type pushRequest struct {
	Streams []stream `json:"streams"`
}

type stream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}
