package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/melih-ucgun/integra/internal/core"
)

const (
	FileName        = "config.yaml"
	DefaultEdition  = "ar"
	DefaultPType    = "arm"
	DefaultPoolSize = 3
)

// Driver families.
const (
	FamilyWindows    = "windows"
	FamilyMacOS      = "macos"
	FamilyLinux      = "linux"
	FamilyRaspbian   = "raspbian"
	FamilyDebian     = "debian"
	FamilyAndroid    = "android"
	FamilyTizen      = "tizen"
	FamilyWebOS      = "webos"
	FamilyWebOSDebug = "webos-debug"
	FamilyWeb        = "web"
)

// PType describes one platform type: the package file name suffix it matches
// and the driver family that deploys it.
type PType struct {
	Mask   string `yaml:"mask"`
	Driver string `yaml:"driver"`
}

// Config represents the root structure of config.yaml.
type Config struct {
	FileserverURL  string   `yaml:"fileserver_url"`
	Username       string   `yaml:"username"`
	DownloadDir    string   `yaml:"download_dir"`
	Catalog        string   `yaml:"catalog"`     // http, dir
	CatalogDir     string   `yaml:"catalog_dir"` // used when catalog is dir
	Bundletool     string   `yaml:"bundletool"`
	AABKey         string   `yaml:"aab_key"`
	AABKeyAlias    string   `yaml:"aab_key_alias"`
	AABKeyPass     string   `yaml:"aab_key_pass"`
	Java           string   `yaml:"java"`
	ADB            string   `yaml:"adb"`
	AresDir        string   `yaml:"ares_dir"`
	SharedHost     string   `yaml:"shared_host"`
	DockerPort     int      `yaml:"docker_port"`
	WebImage       string   `yaml:"web_image"`
	WinRMPort      int      `yaml:"winrm_port"`
	SSHKeyPath     string   `yaml:"ssh_key_path"`
	Concurrency    int      `yaml:"concurrency"`
	ShutdownWindow Duration `yaml:"shutdown_window"`
	KeyringService string   `yaml:"keyring_service"`
	SecretsFile    string   `yaml:"secrets_file"`
	IdentityFile   string   `yaml:"identity_file"`
	HistoryDB      string   `yaml:"history_db"`

	PTypes   map[string]PType                   `yaml:"ptypes"`
	Editions map[string]map[string]core.Edition `yaml:"editions"`

	// Path is the file the config was read from, empty for defaults.
	Path string `yaml:"-"`
}

// Duration is a time.Duration read from a string such as "10s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(os.ExpandEnv(s))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		FileserverURL:  "https://fileserver.stable.team",
		Username:       "ar_user",
		DownloadDir:    "./downloads",
		Catalog:        "http",
		Bundletool:     "./utils/bundletool/bundletool.jar",
		AABKey:         "./utils/bundletool/default_aab_key.jks",
		AABKeyAlias:    "key0",
		Java:           "java",
		ADB:            "adb",
		SharedHost:     "shared_host",
		DockerPort:     2375,
		WebImage:       "nginx:alpine",
		WinRMPort:      5985,
		Concurrency:    DefaultPoolSize,
		ShutdownWindow: Duration(10 * time.Second),
		KeyringService: "system",
		HistoryDB:      "integra.db",
		PTypes:         defaultPTypes(),
		Editions:       defaultEditions(),
	}
}

func defaultPTypes() map[string]PType {
	return map[string]PType{
		"win32":        {Mask: "win32.exe", Driver: FamilyWindows},
		"win64":        {Mask: "win64.exe", Driver: FamilyWindows},
		"arm":          {Mask: "arm.apk", Driver: FamilyAndroid},
		"armv8":        {Mask: "armv8.apk", Driver: FamilyAndroid},
		"x86":          {Mask: "x86.apk", Driver: FamilyAndroid},
		"x86_64":       {Mask: "x86_64.apk", Driver: FamilyAndroid},
		"aab":          {Mask: ".aab", Driver: FamilyAndroid},
		"pkg":          {Mask: ".pkg", Driver: FamilyMacOS},
		"linux_arm64":  {Mask: "linux_arm64.zip", Driver: FamilyRaspbian},
		"linux_x86_64": {Mask: "linux_x86_64.zip", Driver: FamilyLinux},
		"deb":          {Mask: ".deb", Driver: FamilyDebian},
		"tizen":        {Mask: "tizen.zip", Driver: FamilyTizen},
		"webos.ipk":    {Mask: "webos.ipk", Driver: FamilyWebOS},
		"debug.ipk":    {Mask: "debug.ipk", Driver: FamilyWebOSDebug},
		"web":          {Mask: "web.zip", Driver: FamilyWeb},
	}
}

func defaultEditions() map[string]map[string]core.Edition {
	return map[string]map[string]core.Edition{
		"ar": {
			"general":  {App: "com.addreality.player2"},
			"raspbian": {App: "Player", Proc: "Player"},
			"ubuntu":   {App: "addreality-player", Proc: "addreality-play"},
			"linux":    {App: `"Addreality Player"`, Proc: `"Addreality Play"`},
		},
		"df": {
			"general":  {App: "ai.displayforce.player"},
			"raspbian": {App: "Player", Proc: "Player"},
		},
	}
}

// Locate returns the first config.yaml found next to the executable or in
// the working directory, or an empty string.
func Locate() string {
	var dirs []string
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}
	for _, dir := range dirs {
		p := filepath.Join(dir, FileName)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// Load reads the YAML file at path over the defaults. A missing file is not
// an error: the defaults are returned and a warning is logged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		slog.Warn("config file not found, defaults loaded")
		return cfg, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	// .env next to the config file feeds ${VAR} expansion below.
	envPath := filepath.Join(filepath.Dir(absPath), ".env")
	if _, err := os.Stat(envPath); err == nil {
		if loadErr := godotenv.Load(envPath); loadErr != nil {
			slog.Warn("failed to load .env file", "path", envPath, "error", loadErr)
		}
	}

	data, err := os.ReadFile(absPath)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("config file not found, defaults loaded", "path", absPath)
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file read error (%s): %w", absPath, err)
	}

	var user Config
	if err := yaml.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("yaml parse error (%s): %w", absPath, err)
	}
	cfg.merge(&user)
	cfg.expand()
	cfg.Path = absPath
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	slog.Debug("config loaded", "path", absPath)
	return cfg, nil
}

// merge overlays non-zero values from u. ptypes and editions are merged
// entry by entry so a user file can add one ptype without restating the rest.
func (c *Config) merge(u *Config) {
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setString(&c.FileserverURL, u.FileserverURL)
	setString(&c.Username, u.Username)
	setString(&c.DownloadDir, u.DownloadDir)
	setString(&c.Catalog, u.Catalog)
	setString(&c.CatalogDir, u.CatalogDir)
	setString(&c.Bundletool, u.Bundletool)
	setString(&c.AABKey, u.AABKey)
	setString(&c.AABKeyAlias, u.AABKeyAlias)
	setString(&c.AABKeyPass, u.AABKeyPass)
	setString(&c.Java, u.Java)
	setString(&c.ADB, u.ADB)
	setString(&c.AresDir, u.AresDir)
	setString(&c.SharedHost, u.SharedHost)
	setString(&c.WebImage, u.WebImage)
	setString(&c.SSHKeyPath, u.SSHKeyPath)
	setString(&c.KeyringService, u.KeyringService)
	setString(&c.SecretsFile, u.SecretsFile)
	setString(&c.IdentityFile, u.IdentityFile)
	setString(&c.HistoryDB, u.HistoryDB)

	if u.DockerPort != 0 {
		c.DockerPort = u.DockerPort
	}
	if u.WinRMPort != 0 {
		c.WinRMPort = u.WinRMPort
	}
	if u.Concurrency != 0 {
		c.Concurrency = u.Concurrency
	}
	if u.ShutdownWindow != 0 {
		c.ShutdownWindow = u.ShutdownWindow
	}

	for name, pt := range u.PTypes {
		c.PTypes[name] = pt
	}
	for name, families := range u.Editions {
		if c.Editions[name] == nil {
			c.Editions[name] = make(map[string]core.Edition)
		}
		for family, ed := range families {
			c.Editions[name][family] = ed
		}
	}
}

// expand performs env var substitution on all string values.
func (c *Config) expand() {
	for _, s := range []*string{
		&c.FileserverURL, &c.Username, &c.DownloadDir, &c.CatalogDir,
		&c.Bundletool, &c.AABKey, &c.AABKeyAlias, &c.AABKeyPass,
		&c.Java, &c.ADB, &c.AresDir, &c.SharedHost, &c.WebImage, &c.SSHKeyPath,
		&c.KeyringService, &c.SecretsFile, &c.IdentityFile, &c.HistoryDB,
	} {
		*s = os.ExpandEnv(*s)
	}
}

// Validate checks the ptype table and numeric limits.
func (c *Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be positive, got %d", core.ErrConfiguration, c.Concurrency)
	}
	switch c.Catalog {
	case "http", "dir":
	default:
		return fmt.Errorf("%w: unknown catalog %q", core.ErrConfiguration, c.Catalog)
	}
	for name, pt := range c.PTypes {
		if !IsFamily(pt.Driver) {
			return fmt.Errorf("%w: ptype %q maps to unknown driver %q", core.ErrConfiguration, name, pt.Driver)
		}
	}
	return nil
}

// Families lists every driver family.
func Families() []string {
	return []string{
		FamilyWindows, FamilyMacOS, FamilyLinux, FamilyRaspbian, FamilyDebian,
		FamilyAndroid, FamilyTizen, FamilyWebOS, FamilyWebOSDebug, FamilyWeb,
	}
}

// IsFamily reports whether name is a known driver family. Names are compared
// case-insensitively so "Windows" from older config files still resolves.
func IsFamily(name string) bool {
	name = strings.ToLower(name)
	for _, f := range Families() {
		if f == name {
			return true
		}
	}
	return false
}

// Family resolves the driver family for a ptype.
func (c *Config) Family(ptype string) (string, error) {
	pt, ok := c.PTypes[ptype]
	if !ok || ptype == "" {
		return "", fmt.Errorf("%w: unknown ptype %q", core.ErrConfiguration, ptype)
	}
	return strings.ToLower(pt.Driver), nil
}

// Mask returns the package file name suffix for a ptype.
func (c *Config) Mask(ptype string) (string, error) {
	pt, ok := c.PTypes[ptype]
	if !ok {
		return "", fmt.Errorf("%w: unknown ptype %q", core.ErrConfiguration, ptype)
	}
	return pt.Mask, nil
}

// Edition looks up the app and process names of an edition for one OS family key.
func (c *Config) Edition(edition, family string) (core.Edition, error) {
	families, ok := c.Editions[edition]
	if !ok {
		return core.Edition{}, fmt.Errorf("%w: unknown edition %q", core.ErrConfiguration, edition)
	}
	ed, ok := families[family]
	if !ok {
		return core.Edition{}, fmt.Errorf("%w: edition %q has no %q entry", core.ErrConfiguration, edition, family)
	}
	return ed, nil
}
