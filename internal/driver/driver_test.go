package driver

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/melih-ucgun/integra/internal/config"
	"github.com/melih-ucgun/integra/internal/core"
	"github.com/melih-ucgun/integra/internal/credentials"
	"github.com/melih-ucgun/integra/internal/logsink"
	"github.com/melih-ucgun/integra/internal/transport"
)

// --- fakes ---

type fakeShell struct {
	mu      sync.Mutex
	cmds    []string
	sudo    []string
	uploads []string
	failOn  string
	closed  bool
}

func (f *fakeShell) Run(ctx context.Context, cmd string, out func(string)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, cmd)
	if f.failOn != "" && cmd == f.failOn {
		out("boom")
		return errors.New("exit status 1")
	}
	return nil
}

func (f *fakeShell) RunWithSecret(ctx context.Context, cmd, secret string, out func(string)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sudo = append(f.sudo, cmd+" <"+secret+">")
	return nil
}

func (f *fakeShell) Upload(ctx context.Context, localPath, remotePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, remotePath)
	return nil
}

func (f *fakeShell) Close() error {
	f.closed = true
	return nil
}

type fakeShare struct {
	cfg     transport.ShareConfig
	missing bool
	wiped   bool
	copies  []string
	files   map[string]*bytes.Buffer
	closed  bool
}

type nopCloser struct{ *bytes.Buffer }

func (nopCloser) Close() error { return nil }

func (f *fakeShare) UNC() string {
	return `\\` + f.cfg.Host + `\` + f.cfg.Path
}

func (f *fakeShare) IsDir(name string) (bool, error) {
	return !f.missing, nil
}

func (f *fakeShare) Wipe(dir string) (int, error) {
	f.wiped = true
	return 2, nil
}

func (f *fakeShare) MkdirAll(name string) error { return nil }

func (f *fakeShare) Create(name string, mode os.FileMode) (io.WriteCloser, error) {
	if f.files == nil {
		f.files = make(map[string]*bytes.Buffer)
	}
	b := &bytes.Buffer{}
	f.files[name] = b
	return nopCloser{b}, nil
}

func (f *fakeShare) CopyFile(ctx context.Context, localPath, name string) error {
	f.copies = append(f.copies, name)
	return nil
}

func (f *fakeShare) Close() error {
	f.closed = true
	return nil
}

type fakeExec struct {
	cmds []string
	res  map[string]core.ProcResult
}

func (f *fakeExec) Run(ctx context.Context, cmd string) (core.ProcResult, error) {
	f.cmds = append(f.cmds, cmd)
	for prefix, r := range f.res {
		if strings.HasPrefix(cmd, prefix) {
			return r, nil
		}
	}
	return core.ProcResult{}, nil
}

type fakeDocker struct {
	removed []string
	runs    []transport.WebContainer
}

func (f *fakeDocker) RemoveIfExists(ctx context.Context, name string) (string, error) {
	f.removed = append(f.removed, name)
	return "abc123", nil
}

func (f *fakeDocker) RunWeb(ctx context.Context, w transport.WebContainer) (string, error) {
	f.runs = append(f.runs, w)
	return "0123456789ab", nil
}

func (f *fakeDocker) Close() error { return nil }

// funcRunner answers local processes through a callback.
type funcRunner struct {
	mu    sync.Mutex
	calls []string
	fn    func(line string) core.ProcResult
}

func (r *funcRunner) Run(ctx context.Context, name string, args ...string) (core.ProcResult, error) {
	line := core.CommandLine(name, args...)
	r.mu.Lock()
	r.calls = append(r.calls, line)
	r.mu.Unlock()
	if r.fn == nil {
		return core.ProcResult{}, nil
	}
	return r.fn(line), nil
}

type fixture struct {
	env    *Env
	rec    *logsink.Recorder
	shell  *fakeShell
	share  *fakeShare
	exec   *fakeExec
	docker *fakeDocker
	runner *funcRunner
}

func newFixture(t *testing.T, dev core.Device, pkg string) *fixture {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DownloadDir = dir
	local := filepath.Join(dir, pkg)
	if err := os.WriteFile(local, []byte("pkg"), 0644); err != nil {
		t.Fatal(err)
	}

	f := &fixture{
		rec:    &logsink.Recorder{},
		shell:  &fakeShell{},
		share:  &fakeShare{},
		exec:   &fakeExec{},
		docker: &fakeDocker{},
		runner: &funcRunner{},
	}
	dialShare := func(ctx context.Context, cfg transport.ShareConfig) (FileShare, error) {
		f.share.cfg = cfg
		return f.share, nil
	}
	f.env = &Env{
		Device:  dev,
		Package: core.NewPackage(pkg, local),
		Config:  cfg,
		Secrets: credentials.Static{dev.Username: "s3cret", dev.Name: "phrase", "key0": "kspass"},
		Log:     logsink.New(f.rec).Device(dev.Name),
		Runner:  f.runner,
		Dial: Dialers{
			SSH:    func(ctx context.Context, cfg transport.SSHConfig) (Shell, error) { return f.shell, nil },
			Share:  dialShare,
			WinRM:  func(cfg transport.WinRMConfig) (RemoteExec, error) { return f.exec, nil },
			Docker: func(ctx context.Context, host string, port int) (ContainerRuntime, error) { return f.docker, nil },
		},
	}
	return f
}

func countMarkers(lines []string) int {
	n := 0
	for _, l := range lines {
		if l == logsink.SuccessMarker || l == logsink.FailureMarker {
			n++
		}
	}
	return n
}

// --- protocol ---

type stubDriver struct {
	connectErr, cleanupErr, installErr error
	panicOn                            string
	cleaned, installed, closed         bool
}

func (s *stubDriver) Connect(ctx context.Context) error {
	if s.panicOn == "connect" {
		panic("kaboom")
	}
	return s.connectErr
}

func (s *stubDriver) Cleanup(ctx context.Context) error {
	s.cleaned = true
	return s.cleanupErr
}

func (s *stubDriver) Install(ctx context.Context) error {
	s.installed = true
	return s.installErr
}

func (s *stubDriver) Close() error {
	s.closed = true
	return nil
}

func TestDeploy_Protocol(t *testing.T) {
	tests := []struct {
		name          string
		drv           *stubDriver
		cleanup       bool
		wantErr       bool
		wantInstalled bool
		wantMarker    string
	}{
		{"Success", &stubDriver{}, true, false, true, logsink.SuccessMarker},
		{"ConnectFails", &stubDriver{connectErr: core.ErrConnection}, true, true, false, logsink.FailureMarker},
		{"CleanupFailureDoesNotGate", &stubDriver{cleanupErr: errors.New("busy")}, true, false, true, logsink.SuccessMarker},
		{"InstallFails", &stubDriver{installErr: core.ErrInstall}, false, true, true, logsink.FailureMarker},
		{"Panic", &stubDriver{panicOn: "connect"}, true, true, false, logsink.FailureMarker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &logsink.Recorder{}
			log := logsink.New(rec).Device("d1")
			dev := core.Device{Name: "d1", Cleanup: tt.cleanup}

			err := Deploy(context.Background(), tt.drv, dev, log)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Deploy() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.drv.installed != tt.wantInstalled {
				t.Errorf("installed = %v, want %v", tt.drv.installed, tt.wantInstalled)
			}
			if !tt.drv.closed {
				t.Error("driver was not closed")
			}
			lines := rec.Lines("d1")
			if countMarkers(lines) != 1 {
				t.Fatalf("want exactly one marker, got %v", lines)
			}
			if lines[len(lines)-1] != tt.wantMarker {
				t.Errorf("last line = %q, want %q", lines[len(lines)-1], tt.wantMarker)
			}
		})
	}
}

func TestDeploy_CleanupSkippedWhenDisabled(t *testing.T) {
	drv := &stubDriver{}
	log := logsink.New().Device("d1")
	if err := Deploy(context.Background(), drv, core.Device{Name: "d1"}, log); err != nil {
		t.Fatal(err)
	}
	if drv.cleaned {
		t.Error("Cleanup ran with cleanup disabled")
	}
}

func TestDeploy_CancelledBeforeInstall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	drv := &stubDriver{}
	rec := &logsink.Recorder{}
	err := Deploy(ctx, drv, core.Device{Name: "d1"}, logsink.New(rec).Device("d1"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if drv.installed {
		t.Error("Install ran after cancellation")
	}
	if countMarkers(rec.Lines("d1")) != 1 {
		t.Error("want one marker")
	}
}

// --- registry ---

func TestRegistry_Select(t *testing.T) {
	r := NewRegistry(config.Default())
	tests := []struct {
		ptype   string
		family  string
		wantErr bool
	}{
		{"win64", config.FamilyWindows, false},
		{"aab", config.FamilyAndroid, false},
		{"linux_arm64", config.FamilyRaspbian, false},
		{"debug.ipk", config.FamilyWebOSDebug, false},
		{"web", config.FamilyWeb, false},
		{"ipa", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.ptype, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				got, err := r.Select(tt.ptype)
				if (err != nil) != tt.wantErr {
					t.Fatalf("Select(%q) error = %v", tt.ptype, err)
				}
				if tt.wantErr && !errors.Is(err, core.ErrConfiguration) {
					t.Errorf("want configuration error, got %v", err)
				}
				if got != tt.family {
					t.Errorf("Select(%q) = %q, want %q", tt.ptype, got, tt.family)
				}
			}
		})
	}
}

// --- families ---

func TestLinux_Install(t *testing.T) {
	dev := core.Device{Name: "kiosk", PType: "linux_x86_64", Edition: "ar", Host: "10.0.0.2", Port: 22, Username: "pi", Cleanup: true}
	f := newFixture(t, dev, "player_linux_x86_64.zip")

	d := NewLinux(f.env)
	if err := Deploy(context.Background(), d, dev, f.env.Log); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}

	want := []string{
		`pkill "Addreality Play" || true`,
		`rm -rf ~/'player_linux_x86_64'`,
		`pkill "Addreality Play" || true`,
		`rm -rf ~/'player_linux_x86_64' ; mkdir -p ~/'player_linux_x86_64'`,
		`unzip -o ~/'Downloads/player_linux_x86_64.zip' -d ~/'player_linux_x86_64'`,
		`cd ~/'player_linux_x86_64' && DISPLAY=:0 nohup ./"Addreality Player" >/dev/null 2>&1 &`,
	}
	if strings.Join(f.shell.cmds, "\n") != strings.Join(want, "\n") {
		t.Errorf("commands:\n%s\nwant:\n%s", strings.Join(f.shell.cmds, "\n"), strings.Join(want, "\n"))
	}
	if len(f.shell.uploads) != 1 || f.shell.uploads[0] != "~/Downloads/player_linux_x86_64.zip" {
		t.Errorf("uploads = %v", f.shell.uploads)
	}
	if !f.shell.closed {
		t.Error("ssh session not closed")
	}
}

func TestLinux_CleanupFailureStillInstalls(t *testing.T) {
	dev := core.Device{Name: "kiosk", PType: "linux_x86_64", Edition: "ar", Username: "pi", Cleanup: true}
	f := newFixture(t, dev, "p.zip")
	f.shell.failOn = "rm -rf ~/'p'"

	if err := Deploy(context.Background(), NewLinux(f.env), dev, f.env.Log); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	lines := f.rec.Lines("kiosk")
	found := false
	for _, l := range lines {
		if strings.HasPrefix(l, "clean-up failed") {
			found = true
		}
	}
	if !found {
		t.Errorf("clean-up failure not logged: %v", lines)
	}
	if lines[len(lines)-1] != logsink.SuccessMarker {
		t.Errorf("last line = %q", lines[len(lines)-1])
	}
}

func TestMacOS_InstallUsesSudo(t *testing.T) {
	dev := core.Device{Name: "mac", PType: "pkg", Edition: "ar", Username: "admin"}
	f := newFixture(t, dev, "player.pkg")

	if err := Deploy(context.Background(), NewMacOS(f.env), dev, f.env.Log); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	want := "installer -allowUntrusted -pkg ~/'Downloads/player.pkg' -target / <s3cret>"
	if len(f.shell.sudo) != 1 || f.shell.sudo[0] != want {
		t.Errorf("sudo = %v", f.shell.sudo)
	}
}

func TestDebian_Install(t *testing.T) {
	dev := core.Device{Name: "deb1", PType: "deb", Edition: "ar", Username: "u"}
	f := newFixture(t, dev, "player.deb")

	if err := Deploy(context.Background(), NewDebian(f.env), dev, f.env.Log); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	if len(f.shell.sudo) != 1 || !strings.HasPrefix(f.shell.sudo[0], "dpkg -i ~/'Downloads/player.deb'") {
		t.Errorf("sudo = %v", f.shell.sudo)
	}
	last := f.shell.cmds[len(f.shell.cmds)-1]
	if last != "DISPLAY=:0 nohup addreality-player >/dev/null 2>&1 &" {
		t.Errorf("launch = %q", last)
	}
}

func TestRaspbian_Install(t *testing.T) {
	dev := core.Device{Name: "rpi", PType: "linux_arm64", Edition: "df", Username: "pi"}
	f := newFixture(t, dev, "Player")

	if err := Deploy(context.Background(), NewRaspbian(f.env), dev, f.env.Log); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	if f.shell.uploads[0] != "~/Desktop/Player" {
		t.Errorf("uploads = %v", f.shell.uploads)
	}
	if !strings.HasPrefix(f.shell.cmds[len(f.shell.cmds)-1], "chmod a+x ~/'Desktop/Player'") {
		t.Errorf("cmds = %v", f.shell.cmds)
	}
}

func TestShell_MissingSecretIsConnectionFailure(t *testing.T) {
	dev := core.Device{Name: "kiosk", PType: "linux_x86_64", Username: "nobody"}
	f := newFixture(t, dev, "p.zip")
	f.env.Secrets = credentials.Static{}

	err := Deploy(context.Background(), NewLinux(f.env), dev, f.env.Log)
	if !errors.Is(err, core.ErrConnection) || !errors.Is(err, core.ErrSecretNotFound) {
		t.Fatalf("err = %v", err)
	}
	if lines := f.rec.Lines("kiosk"); lines[len(lines)-1] != logsink.FailureMarker {
		t.Errorf("lines = %v", lines)
	}
}

func TestEdition_MissingIsConfigurationError(t *testing.T) {
	dev := core.Device{Name: "kiosk", PType: "linux_x86_64", Edition: "zz", Username: "pi"}
	f := newFixture(t, dev, "p.zip")

	err := Deploy(context.Background(), NewLinux(f.env), dev, f.env.Log)
	if !errors.Is(err, core.ErrConfiguration) {
		t.Fatalf("err = %v", err)
	}
}

func TestWindows_Install(t *testing.T) {
	dev := core.Device{Name: "win", PType: "win64", Edition: "ar", Host: "10.0.0.9", Port: 445, Username: "Admin", UploadDir: "Players", Cleanup: true}
	f := newFixture(t, dev, "player_win64.exe")

	if err := Deploy(context.Background(), NewWindows(f.env), dev, f.env.Log); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	if f.share.cfg.Password != "s3cret" || f.share.cfg.Path != "Players" {
		t.Errorf("share config = %+v", f.share.cfg)
	}
	if len(f.share.copies) != 1 || f.share.copies[0] != "player_win64.exe" {
		t.Errorf("copies = %v", f.share.copies)
	}
	// No windows edition configured: clean-up is a no-op.
	want := `C:\Players\player_win64.exe /VERYSILENT /SUPPRESSMSGBOXES /NOCANCEL /CURRENTUSER /LOWESTPRIVILEGES=true`
	if len(f.exec.cmds) != 1 || f.exec.cmds[0] != want {
		t.Errorf("winrm cmds = %v", f.exec.cmds)
	}
	if !f.share.closed {
		t.Error("share not closed")
	}
}

func TestWindows_InstallerFailure(t *testing.T) {
	dev := core.Device{Name: "win", PType: "win64", Username: "Admin", UploadDir: "Players"}
	f := newFixture(t, dev, "p.exe")
	f.exec.res = map[string]core.ProcResult{`C:\`: {Stderr: "access denied", ExitCode: 5}}

	err := Deploy(context.Background(), NewWindows(f.env), dev, f.env.Log)
	if !errors.Is(err, core.ErrInstall) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(strings.Join(f.rec.Lines("win"), "\n"), "access denied") {
		t.Error("stderr not logged")
	}
}

func TestWindows_MissingUploadDir(t *testing.T) {
	dev := core.Device{Name: "win", PType: "win64", Username: "Admin", UploadDir: "Players"}
	f := newFixture(t, dev, "p.exe")
	f.share.missing = true

	err := Deploy(context.Background(), NewWindows(f.env), dev, f.env.Log)
	if !errors.Is(err, core.ErrConnection) {
		t.Fatalf("err = %v", err)
	}
}

func TestAndroid_InstallAPK(t *testing.T) {
	dev := core.Device{Name: "tv1", PType: "arm", Edition: "ar", Host: "10.0.0.5", Port: 5555, Cleanup: true}
	f := newFixture(t, dev, "player_arm.apk")
	f.runner.fn = func(line string) core.ProcResult {
		switch {
		case strings.Contains(line, " connect "):
			return core.ProcResult{Stdout: "connected to 10.0.0.5:5555"}
		case strings.Contains(line, " install "):
			return core.ProcResult{Stdout: "Performing Streamed Install\nSuccess"}
		case strings.Contains(line, " uninstall "):
			return core.ProcResult{Stdout: "Failure [DELETE_FAILED_INTERNAL_ERROR]"}
		}
		return core.ProcResult{}
	}

	if err := Deploy(context.Background(), NewAndroid(f.env), dev, f.env.Log); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	want := []string{
		"adb start-server",
		"adb connect 10.0.0.5:5555",
		"adb -s 10.0.0.5:5555 uninstall com.addreality.player2",
		"adb -s 10.0.0.5:5555 install -r -d " + f.env.Package.Path,
	}
	if strings.Join(f.runner.calls, "\n") != strings.Join(want, "\n") {
		t.Errorf("calls:\n%s", strings.Join(f.runner.calls, "\n"))
	}
}

func TestAndroid_BundleIsNamespacedPerDevice(t *testing.T) {
	dev := core.Device{Name: "tv1", PType: "aab", Edition: "ar", Host: "10.0.0.5", Port: 5555}
	f := newFixture(t, dev, "player.aab")
	f.runner.fn = func(line string) core.ProcResult {
		if strings.Contains(line, " connect ") {
			return core.ProcResult{Stdout: "connected to 10.0.0.5:5555"}
		}
		return core.ProcResult{}
	}
	stale := filepath.Join(f.env.Config.DownloadDir, "tv1.apks")
	if err := os.WriteFile(stale, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Deploy(context.Background(), NewAndroid(f.env), dev, f.env.Log); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale apks was not removed")
	}

	var build, install string
	for _, c := range f.runner.calls {
		if strings.Contains(c, "build-apks") {
			build = c
		}
		if strings.Contains(c, "install-apks") {
			install = c
		}
	}
	for _, part := range []string{"--output=" + stale, "--ks-pass=pass:kspass", "--ks-key-alias=key0", "--connected-device", "--device-id=10.0.0.5:5555"} {
		if !strings.Contains(build, part) {
			t.Errorf("build-apks missing %q: %s", part, build)
		}
	}
	if !strings.Contains(install, "--apks="+stale) {
		t.Errorf("install-apks = %s", install)
	}
}

func TestTizen_ExtractsIntoShare(t *testing.T) {
	dev := core.Device{Name: "tz", PType: "tizen", UploadDir: `signage\tz`, Cleanup: true}
	f := newFixture(t, dev, "tizen.zip")
	writeZip(t, f.env.Package.Path, map[string]string{"index.html": "<html/>", "js/app.js": "x"})

	if err := Deploy(context.Background(), NewTizen(f.env), dev, f.env.Log); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	if f.share.cfg.Host != "shared_host" || f.share.cfg.User != "" {
		t.Errorf("share config = %+v", f.share.cfg)
	}
	if !f.share.wiped {
		t.Error("share not wiped")
	}
	if got := f.share.files["js/app.js"]; got == nil || got.String() != "x" {
		t.Errorf("files = %v", f.share.files)
	}
}

func TestWebOS_CopiesPlayer(t *testing.T) {
	dev := core.Device{Name: "lg", PType: "webos.ipk", UploadDir: `signage\lg`}
	f := newFixture(t, dev, "webos.ipk")

	if err := Deploy(context.Background(), NewWebOS(f.env), dev, f.env.Log); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	if len(f.share.copies) != 1 || f.share.copies[0] != "Player.ipk" {
		t.Errorf("copies = %v", f.share.copies)
	}
}

func TestWebOSDebug_Flow(t *testing.T) {
	dev := core.Device{Name: "lgd", PType: "debug.ipk", Host: "10.0.0.8", Port: 9922, Username: "prisoner", Cleanup: true}
	f := newFixture(t, dev, "debug.ipk")
	f.runner.fn = func(line string) core.ProcResult {
		switch {
		case strings.HasPrefix(line, "ares-setup-device"):
			return core.ProcResult{ExitCode: 1, Stderr: "already exists"}
		case strings.HasSuffix(line, "--list"):
			return core.ProcResult{Stdout: "com.example.other\ncom.lg.app.signage.dev\n"}
		}
		return core.ProcResult{}
	}

	if err := Deploy(context.Background(), NewWebOSDebug(f.env), dev, f.env.Log); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	calls := f.runner.calls
	if !strings.Contains(calls[0], "'passphrase':'phrase'") || !strings.Contains(calls[0], "'port':'9922'") {
		t.Errorf("setup = %s", calls[0])
	}
	want := []string{
		"ares-install --device lgd --list",
		"ares-launch --device lgd --close com.lg.app.signage.dev",
		"ares-install --device lgd --remove com.lg.app.signage.dev",
		"ares-install --device lgd " + f.env.Package.Path,
		"ares-install --device lgd --list",
		"ares-launch --device lgd com.lg.app.signage.dev",
	}
	if strings.Join(calls[1:], "\n") != strings.Join(want, "\n") {
		t.Errorf("calls:\n%s", strings.Join(calls[1:], "\n"))
	}
}

func TestWeb_LocalDeploy(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "site")
	dev := core.Device{Name: "web1", PType: "web", Host: "127.0.0.1", UploadDir: dest, CPort: 8080, Cleanup: true}
	f := newFixture(t, dev, "web.zip")
	writeZip(t, f.env.Package.Path, map[string]string{"index.html": "hello"})

	if err := Deploy(context.Background(), NewWeb(f.env), dev, f.env.Log); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dest, "index.html"))
	if err != nil || string(data) != "hello" {
		t.Fatalf("index.html = %q, %v", data, err)
	}
	if len(f.docker.removed) != 1 || f.docker.removed[0] != "web1" {
		t.Errorf("removed = %v", f.docker.removed)
	}
	if len(f.docker.runs) != 1 {
		t.Fatalf("runs = %v", f.docker.runs)
	}
	run := f.docker.runs[0]
	if run.HostPort != 8080 || run.HTMLDir != dest || run.Image != "nginx:alpine" {
		t.Errorf("run = %+v", run)
	}
	if len(f.shell.cmds) != 0 {
		t.Error("local web deploy used ssh")
	}
}

func TestWeb_RemoteDeploy(t *testing.T) {
	dev := core.Device{Name: "web2", PType: "web", Host: "10.0.0.3", Username: "u", UploadDir: "/srv/web2", CPort: 80, Remote: true}
	f := newFixture(t, dev, "web.zip")

	if err := Deploy(context.Background(), NewWeb(f.env), dev, f.env.Log); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	if f.shell.uploads[0] != "/srv/web2/web.zip" {
		t.Errorf("uploads = %v", f.shell.uploads)
	}
	if f.shell.cmds[len(f.shell.cmds)-1] != "unzip -o '/srv/web2/web.zip' -d '/srv/web2'" {
		t.Errorf("cmds = %v", f.shell.cmds)
	}
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	out, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()
	zw := zip.NewWriter(out)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(body))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}
