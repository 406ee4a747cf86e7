package loki

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestNewWriter_EmptyConfig(t *testing.T) {
	if NewWriter("", "inventory") != nil {
		t.Fatalf("expected nil writer without url")
	}
	if NewWriter("http://loki:3100", "") != nil {
		t.Fatalf("expected nil writer without job")
	}
}

func TestWriter_PushesBufferedLines(t *testing.T) {
	var mu sync.Mutex
	var received []pushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loki/api/v1/push" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body pushRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
		mu.Lock()
		received = append(received, body)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWriter(srv.URL+"/", "inventory")
	if _, err := w.Write([]byte("{\"msg\":\"one\"}\n{\"msg\":\"two\"}\n")); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	_ = w.Close()
	_ = w.Close()

	mu.Lock()
	defer mu.Unlock()
	var lines int
	for _, body := range received {
		for _, s := range body.Streams {
			if s.Stream["job"] != "inventory" {
				t.Fatalf("expected job label inventory, got %v", s.Stream)
			}
			lines += len(s.Values)
		}
	}
	if lines != 2 {
		t.Fatalf("expected 2 lines pushed, got %d", lines)
	}
}
