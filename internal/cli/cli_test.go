package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/hedgehog/internal/config"
	"github.com/ppiankov/hedgehog/internal/store"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.DefaultFile)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "", "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "hedgehog dev") {
		t.Fatalf("unexpected version output %q", out)
	}
}

func TestEchoCmd(t *testing.T) {
	cfg := writeConfig(t, "tick_interval: 10ms\n")
	for _, mode := range []string{"pool", "cooperative"} {
		t.Run(mode, func(t *testing.T) {
			args := []string{"echo", "3", "--times", "2", "--config", cfg}
			if mode == "cooperative" {
				args = append(args, "--cooperative")
			}
			out, err := execute(t, "", args...)
			if err != nil {
				t.Fatal(err)
			}
			want := "1: COMPLETE 4\n2: COMPLETE 8\n"
			if out != want {
				t.Fatalf("expected %q, got %q", want, out)
			}
		})
	}
}

func TestEchoCmd_StepFromConfig(t *testing.T) {
	cfg := writeConfig(t, "tick_interval: 10ms\necho_step: 10\n")
	out, err := execute(t, "", "echo", "1", "--config", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if out != "1: COMPLETE 11\n" {
		t.Fatalf("unexpected output %q", out)
	}

	out, err = execute(t, "", "echo", "1", "--step", "2", "--config", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if out != "1: COMPLETE 3\n" {
		t.Fatalf("flag should override config, got %q", out)
	}
}

func TestEchoCmd_BadArgs(t *testing.T) {
	cfg := writeConfig(t, "")
	if _, err := execute(t, "", "echo", "x", "--config", cfg); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := execute(t, "", "echo", "1", "--times", "0", "--config", cfg); err == nil {
		t.Fatal("expected --times error")
	}
}

func TestRegisterCmd(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/apps", func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "hedgehog/dev" {
			t.Errorf("user agent: %s", ua)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"client_id": "cid", "client_secret": "s"})
	})
	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("code") != "abc" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"})
	})
	mux.HandleFunc("GET /api/v1/accounts/verify_credentials", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "1", "username": "hedgie"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dataDir := t.TempDir()
	cfg := writeConfig(t, fmt.Sprintf("tick_interval: 10ms\ndata_dir: %s\n", dataDir))

	out, err := execute(t, "abc\n", "register", srv.URL, "--config", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "/oauth/authorize?") {
		t.Fatalf("should print the authorize url, got %q", out)
	}
	if !strings.Contains(out, "signed in as hedgie") {
		t.Fatalf("should report the account, got %q", out)
	}

	st, err := store.Open(filepath.Join(dataDir, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = st.Close() }()
	f, err := st.LoadFields(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if f.Username != "hedgie" || f.Instance != srv.URL {
		t.Fatalf("unexpected saved fields %+v", f)
	}
}

func TestRegisterCmd_BadCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/apps", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"client_id": "cid"})
	})
	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := writeConfig(t, fmt.Sprintf("tick_interval: 10ms\ndata_dir: %s\n", t.TempDir()))
	_, err := execute(t, "wrong\n", "register", srv.URL, "--config", cfg, "--no-save")
	if err == nil || !strings.Contains(err.Error(), "sign in") {
		t.Fatalf("expected sign in error, got %v", err)
	}
}

func TestRotatingWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hedgehog.log")

	w := rotatingWriter(path, &config.LogConfig{MaxSizeMB: 1, MaxBackups: 2, MaxAgeDays: 7, Compress: true})
	if w.MaxSize != 1 || w.MaxBackups != 2 || w.MaxAge != 7 || !w.Compress {
		t.Fatalf("configured rotation not kept: %+v", w)
	}

	w = rotatingWriter(path, nil)
	if w.MaxSize != config.DefaultLogMaxSizeMB || w.MaxBackups != config.DefaultLogBackups {
		t.Fatalf("expected defaults, got size %d backups %d", w.MaxSize, w.MaxBackups)
	}
}

func TestLogFileFlag_ClosedAfterCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "hedgehog.log")
	if _, err := execute(t, "", "version", "--log-file", path); err != nil {
		t.Fatal(err)
	}
	if logCloser != nil {
		t.Fatal("log file should be closed once the command returns")
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Fatalf("log dir should exist: %v", err)
	}
}
