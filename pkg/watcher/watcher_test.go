package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"
)

func writePayload(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDebouncer_CoalescesBurst(t *testing.T) {
	d := NewDebouncer(40 * time.Millisecond)
	var calls atomic.Int32
	for i := 0; i < 8; i++ {
		d.Trigger(func() { calls.Add(1) })
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(120 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 call, got %d", n)
	}
}

func TestDebouncer_LastFuncWins(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var got atomic.Int32
	d.Trigger(func() { got.Store(1) })
	d.Trigger(func() { got.Store(2) })
	time.Sleep(80 * time.Millisecond)
	if got.Load() != 2 {
		t.Errorf("ran func %d, want the last one", got.Load())
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	var called atomic.Bool
	d.Trigger(func() { called.Store(true) })
	d.Cancel()
	time.Sleep(80 * time.Millisecond)
	if called.Load() {
		t.Error("cancelled func ran")
	}
	if NewDebouncer(0).Duration() != DefaultDebounceDuration {
		t.Error("zero duration should use the default")
	}
}

func TestWatcher_PollingDetectsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facets.json")
	writePayload(t, path, `{"baseline":[],"facets":[]}`)

	var changes atomic.Int32
	w, err := New(path,
		WithDebounceDuration(20*time.Millisecond),
		WithPollInterval(25*time.Millisecond),
		WithForcePoll(true),
		WithOnChange(func() { changes.Add(1) }),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if !w.IsPolling() {
		t.Fatal("expected polling mode")
	}

	time.Sleep(40 * time.Millisecond)
	writePayload(t, path, `{"baseline":[["2020",1]],"facets":[]}`)

	select {
	case <-w.Changed():
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for change")
	}
	if changes.Load() == 0 {
		t.Error("OnChange not called")
	}
}

func TestWatcher_FsnotifyDetectsAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "facets.json")
	writePayload(t, path, `{}`)

	w, err := New(path, WithDebounceDuration(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if w.IsPolling() {
		t.Skip("fsnotify unavailable on this system")
	}

	time.Sleep(50 * time.Millisecond)
	tmp := filepath.Join(dir, ".facets.json.tmp")
	writePayload(t, tmp, `{"facets":[]}`)
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case <-w.Changed():
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for change")
	}
}

func TestWatcher_EnvForcesPolling(t *testing.T) {
	t.Setenv(ForcePollEnvVar, "yes")
	path := filepath.Join(t.TempDir(), "facets.json")
	writePayload(t, path, `{}`)

	w, _ := New(path, WithPollInterval(25*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if !w.IsPolling() {
		t.Errorf("%s should force polling", ForcePollEnvVar)
	}
}

func TestWatcher_NetworkFilesystemPolls(t *testing.T) {
	orig := detectFilesystemTypeFunc
	detectFilesystemTypeFunc = func(string) FilesystemType { return FSTypeNFS }
	t.Cleanup(func() { detectFilesystemTypeFunc = orig })

	path := filepath.Join(t.TempDir(), "facets.json")
	writePayload(t, path, `{}`)

	w, _ := New(path, WithDebounceDuration(10*time.Millisecond), WithPollInterval(25*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if !w.IsPolling() {
		t.Fatal("expected polling on a network filesystem")
	}
	if got := w.FilesystemType(); got != FSTypeNFS {
		t.Errorf("FilesystemType() = %v, want nfs", got)
	}

	time.Sleep(30 * time.Millisecond)
	writePayload(t, path, `{"baseline":[]}`)
	select {
	case <-w.Changed():
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for change")
	}
}

func TestWatcher_FUSEKeepsFsnotify(t *testing.T) {
	orig := detectFilesystemTypeFunc
	detectFilesystemTypeFunc = func(string) FilesystemType { return FSTypeFUSE }
	t.Cleanup(func() { detectFilesystemTypeFunc = orig })

	path := filepath.Join(t.TempDir(), "facets.json")
	writePayload(t, path, `{}`)
	w, _ := New(path)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if w.IsPolling() {
		t.Error("FUSE mounts should stay on fsnotify")
	}
}

func TestFilesystemType_String(t *testing.T) {
	tests := []struct {
		fsType FilesystemType
		want   string
	}{
		{FSTypeUnknown, "unknown"},
		{FSTypeLocal, "local"},
		{FSTypeNFS, "nfs"},
		{FSTypeSMB, "smb"},
		{FSTypeSSHFS, "sshfs"},
		{FSTypeFUSE, "fuse"},
		{FilesystemType(99), "unknown"},
	}
	for _, tc := range tests {
		if got := tc.fsType.String(); got != tc.want {
			t.Errorf("FilesystemType(%d).String() = %q, want %q", tc.fsType, got, tc.want)
		}
	}
}

func TestDetectFilesystemType(t *testing.T) {
	if got := DetectFilesystemType(""); got != FSTypeUnknown {
		t.Errorf("DetectFilesystemType(\"\") = %v, want unknown", got)
	}
	dir := t.TempDir()
	existing := DetectFilesystemType(dir)
	if got := DetectFilesystemType(filepath.Join(dir, "not-yet.json")); got != existing {
		t.Errorf("missing file classified %v, parent %v", got, existing)
	}
	if runtime.GOOS == "linux" && existing == FSTypeUnknown {
		t.Error("statfs should classify the temp dir on linux")
	}
}

func TestWatcher_FileRemoved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facets.json")
	writePayload(t, path, `{}`)

	errCh := make(chan error, 4)
	w, _ := New(path,
		WithPollInterval(25*time.Millisecond),
		WithForcePoll(true),
		WithOnError(func(err error) {
			select {
			case errCh <- err:
			default:
			}
		}),
	)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	time.Sleep(40 * time.Millisecond)
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-errCh:
		if !errors.Is(err, ErrFileRemoved) {
			t.Errorf("expected ErrFileRemoved, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("removal not reported")
	}
}

func TestWatcher_StartStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facets.json")
	writePayload(t, path, `{}`)

	w, err := New(path, WithForcePoll(true))
	if err != nil {
		t.Fatal(err)
	}
	abs, _ := filepath.Abs(path)
	if w.Path() != abs {
		t.Errorf("Path = %s, want %s", w.Path(), abs)
	}
	if w.IsStarted() {
		t.Error("started before Start")
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
	w.Stop()
	w.Stop()
	if w.IsStarted() {
		t.Error("still started after Stop")
	}
}

func TestWatcher_ContextCancelStopsPolling(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facets.json")
	writePayload(t, path, `{}`)

	var changes atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	w, _ := New(path,
		WithDebounceDuration(10*time.Millisecond),
		WithPollInterval(20*time.Millisecond),
		WithForcePoll(true),
		WithOnChange(func() { changes.Add(1) }),
	)
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	cancel()
	time.Sleep(40 * time.Millisecond)

	writePayload(t, path, `{"baseline":[]}`)
	time.Sleep(100 * time.Millisecond)
	if changes.Load() != 0 {
		t.Error("change reported after context was cancelled")
	}
}
