package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"deckcast/internal/config"
	"deckcast/internal/testsupport"
)

// fakeBackend stands in for the generation API and the media host. Handlers
// never fail the test directly; assertions run on recorded calls afterwards.
type fakeBackend struct {
	mu          sync.Mutex
	fileID      string
	taskID      string
	statusCode  int
	statusBody  string
	searchCode  int
	searchBody  string
	videoExists bool
	videoBytes  []byte
	podcastOK   bool

	submitCalls int
	statusCalls int
	searchCalls int
	cancelCalls int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		fileID:      "f-1",
		taskID:      "t-1",
		statusCode:  http.StatusOK,
		statusBody:  `{"status":"processing","progress":10,"task_type":"both","filename":"deck.pdf"}`,
		searchCode:  http.StatusNotFound,
		searchBody:  `{"tasks":[]}`,
		videoExists: false,
		videoBytes:  []byte("mp4-bytes"),
		podcastOK:   true,
	}
}

func (f *fakeBackend) setStatus(code int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCode = code
	f.statusBody = body
}

func (f *fakeBackend) setVideoExists(exists bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videoExists = exists
}

func (f *fakeBackend) counts() (submits, statuses, cancels int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitCalls, f.statusCalls, f.cancelCalls
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/tasks", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		f.mu.Lock()
		f.submitCalls++
		resp := map[string]string{"file_id": f.fileID, "task_id": f.taskID}
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("/api/v1/tasks/search", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.searchCalls++
		code, body := f.searchCode, f.searchBody
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	})

	mux.HandleFunc("/api/v1/tasks/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/status"):
			f.mu.Lock()
			f.statusCalls++
			code, body := f.statusCode, f.statusBody
			f.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			_, _ = w.Write([]byte(body))
		case strings.HasSuffix(r.URL.Path, "/cancel"):
			f.mu.Lock()
			f.cancelCalls++
			f.mu.Unlock()
			w.WriteHeader(http.StatusAccepted)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	mux.HandleFunc("/media/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		videoExists := f.videoExists
		videoBytes := f.videoBytes
		podcastOK := f.podcastOK
		f.mu.Unlock()

		switch {
		case strings.HasSuffix(r.URL.Path, "/video.mp4"):
			if !videoExists {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusOK)
				return
			}
			_, _ = w.Write(videoBytes)
		case strings.HasSuffix(r.URL.Path, "/podcast.mp3"):
			if !podcastOK {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusOK)
				return
			}
			_, _ = w.Write([]byte("mp3-bytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	return mux
}

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	backend    *fakeBackend
	server     *httptest.Server
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	backend := newFakeBackend()
	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)

	baseOpts := []testsupport.ConfigOption{
		testsupport.WithBaseURL(server.URL),
		testsupport.WithMediaBaseURL(server.URL),
		testsupport.WithPollInterval(1),
	}
	cfg := testsupport.NewConfig(t, append(baseOpts, opts...)...)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	t.Setenv("DECKCAST_API_URL", "")
	t.Setenv("DECKCAST_API_TOKEN", "")
	t.Setenv("DECKCAST_NTFY_TOPIC", "")

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		backend:    backend,
		server:     server,
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// requireContains fails the test when substr is absent from output. The full
// output goes into the failure message so broken CLI text is easy to diff.
func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if strings.Contains(output, substr) {
		return
	}
	t.Fatalf("output missing %q:\n%s", substr, output)
}
