package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rover-bridge/command"
	"rover-bridge/logging"
)

func TestHTTPRelayForward(t *testing.T) {
	var gotPath string
	var gotBody Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"Updated & driving"}`))
	}))
	defer srv.Close()

	relay := NewHTTPRelay(srv.URL, time.Second, logging.Discard())
	req := Request{
		Directional: command.Directional{Up: true},
		Command:     "forward",
		Speed:       0.8,
		Duration:    1.0,
	}
	reply, err := relay.Forward(context.Background(), req)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if gotPath != "POST /control/set" {
		t.Errorf("Expected POST /control/set, got %s", gotPath)
	}
	if gotBody != req {
		t.Errorf("Remote received %+v, want %+v", gotBody, req)
	}
	if string(reply) != `{"message":"Updated & driving"}` {
		t.Errorf("Unexpected reply %s", reply)
	}
}

func TestHTTPRelayStopAndStatusPaths(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	relay := NewHTTPRelay(srv.URL, time.Second, logging.Discard())
	if _, err := relay.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if _, err := relay.Status(context.Background()); err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	want := []string{"POST /control/stop", "GET /control/status"}
	if len(paths) != 2 || paths[0] != want[0] || paths[1] != want[1] {
		t.Errorf("Expected %v, got %v", want, paths)
	}
}

func TestHTTPRelayFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"non json body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>hello</html>"))
		}},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
			w.Write([]byte(`{}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			relay := NewHTTPRelay(srv.URL, 100*time.Millisecond, logging.Discard())
			_, err := relay.Status(context.Background())
			var unavailable *RemoteUnavailableError
			if !errors.As(err, &unavailable) {
				t.Fatalf("Expected RemoteUnavailableError, got %v", err)
			}
			if unavailable.Op != OpStatus {
				t.Errorf("Expected op %q, got %q", OpStatus, unavailable.Op)
			}
		})
	}
}

func TestHTTPRelayConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	relay := NewHTTPRelay(url, time.Second, logging.Discard())
	_, err := relay.Forward(context.Background(), Request{Command: "stop"})
	var unavailable *RemoteUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("Expected RemoteUnavailableError, got %v", err)
	}
	if unavailable.Target != url+"/control/set" {
		t.Errorf("Unexpected target %q", unavailable.Target)
	}
}
