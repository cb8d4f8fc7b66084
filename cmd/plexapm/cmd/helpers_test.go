package cmd

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// execute runs the root command with args and returns combined output.
// Flag variables are reset first since cobra keeps them between runs.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgFile, logLevel, apiURL = defaultConfigFile, "", ""
	measureName, drainTimeout, checkTimeout = "", 30*time.Second, 10*time.Second
	initAppID, initAPIKey, initAppRoot, initForce = "", "", "", false
	for _, name := range []string{"version", "help"} {
		if f := rootCmd.Flags().Lookup(name); f != nil {
			_ = f.Value.Set("false")
		}
	}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plexapm.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

type fakeCollector struct {
	*httptest.Server
	mu    sync.Mutex
	paths []string
	names []string
}

// newFakeCollector answers every post with status.
func newFakeCollector(t *testing.T, status int) *fakeCollector {
	t.Helper()
	fc := &fakeCollector{}
	fc.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body io.Reader = r.Body
		if r.Header.Get("Content-Encoding") == "gzip" {
			gr, err := gzip.NewReader(r.Body)
			if err == nil {
				defer gr.Close()
				body = gr
			}
		}
		var payload struct {
			Job struct {
				Name string `json:"name"`
			} `json:"job"`
		}
		_ = json.NewDecoder(body).Decode(&payload)
		fc.mu.Lock()
		fc.paths = append(fc.paths, r.URL.Path)
		fc.names = append(fc.names, payload.Job.Name)
		fc.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(fc.Close)
	return fc
}

func (fc *fakeCollector) jobNames() []string {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return append([]string(nil), fc.names...)
}
