package app

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/agis/unical/internal/auth"
	"github.com/agis/unical/internal/contract"
)

// providerConfig is one [google] or [outlook] table.
type providerConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURL  string `toml:"redirect_url"`
	Tenant       string `toml:"tenant"`
	CalendarID   string `toml:"calendar_id"`
	BaseURL      string `toml:"base_url"`
}

func (c providerConfig) credentials() auth.Credentials {
	return auth.Credentials{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Tenant:       c.Tenant,
	}
}

func mergeProviderConfig(base, overlay providerConfig) providerConfig {
	if overlay.ClientID != "" {
		base.ClientID = overlay.ClientID
	}
	if overlay.ClientSecret != "" {
		base.ClientSecret = overlay.ClientSecret
	}
	if overlay.RedirectURL != "" {
		base.RedirectURL = overlay.RedirectURL
	}
	if overlay.Tenant != "" {
		base.Tenant = overlay.Tenant
	}
	if overlay.CalendarID != "" {
		base.CalendarID = overlay.CalendarID
	}
	if overlay.BaseURL != "" {
		base.BaseURL = overlay.BaseURL
	}
	return base
}

type fileConfig struct {
	TZ           string                `toml:"tz"`
	Output       string                `toml:"output"`
	Fields       string                `toml:"fields"`
	Profile      string                `toml:"profile"`
	Account      string                `toml:"account"`
	TokenDB      string                `toml:"token_db"`
	Granularity  int                   `toml:"granularity"`
	Google       providerConfig        `toml:"google"`
	Outlook      providerConfig        `toml:"outlook"`
	Availability map[string]string     `toml:"availability"`
	Profiles     map[string]fileConfig `toml:"profiles"`
}

func (o *globalOptions) providerConfig(source contract.Source) providerConfig {
	if source == contract.SourceOutlook {
		return o.Outlook
	}
	return o.Google
}

func resolveGlobalOptions(cmd *cobra.Command, defaults *globalOptions) (*globalOptions, error) {
	resolved := *defaults
	resolved.Availability = nil
	loadDotEnv()

	profile := firstNonEmpty(env("UNICAL_PROFILE"), defaults.Profile)
	if flagValueChanged(cmd, "profile") {
		profile = defaults.Profile
	}
	if profile == "" {
		profile = "default"
	}
	resolved.Profile = profile

	userPath := defaultUserConfigPath()
	projectPath := ".unical.toml"
	configPath := firstNonEmpty(env("UNICAL_CONFIG"), userPath)
	if flagValueChanged(cmd, "config") {
		configPath = defaults.Config
	}

	if cfg, ok := readConfigFile(userPath); ok {
		applyFileConfig(&resolved, cfg, profile)
	}
	if cfg, ok := readConfigFile(projectPath); ok {
		applyFileConfig(&resolved, cfg, profile)
	}
	if configPath != "" && configPath != userPath && configPath != projectPath {
		if cfg, ok := readConfigFile(configPath); ok {
			applyFileConfig(&resolved, cfg, profile)
		}
	}

	applyEnv(&resolved)
	applyFlags(cmd, &resolved, defaults)

	if resolved.Config == "" {
		resolved.Config = configPath
	}
	if resolved.TokenDB == "" {
		path, err := auth.DefaultStorePath()
		if err != nil {
			return nil, err
		}
		resolved.TokenDB = path
	}
	if resolved.Account == "" {
		resolved.Account = auth.DefaultAccount
	}
	return &resolved, nil
}

// loadDotEnv reads ./.env into the process environment. Variables that are
// already set win.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	_ = godotenv.Load(".env")
}

func applyFileConfig(dst *globalOptions, cfg fileConfig, profile string) {
	if p, ok := cfg.Profiles[profile]; ok {
		cfg = mergeFileConfig(cfg, p)
	}
	if cfg.TZ != "" {
		dst.TZ = cfg.TZ
	}
	if cfg.Fields != "" {
		dst.Fields = cfg.Fields
	}
	if cfg.Account != "" {
		dst.Account = cfg.Account
	}
	if cfg.TokenDB != "" {
		dst.TokenDB = cfg.TokenDB
	}
	if cfg.Granularity != 0 {
		dst.Granularity = cfg.Granularity
	}
	dst.Google = mergeProviderConfig(dst.Google, cfg.Google)
	dst.Outlook = mergeProviderConfig(dst.Outlook, cfg.Outlook)
	if len(cfg.Availability) > 0 {
		if dst.Availability == nil {
			dst.Availability = map[string]string{}
		}
		for day, window := range cfg.Availability {
			dst.Availability[day] = window
		}
	}
	if cfg.Output != "" {
		applyOutputMode(dst, cfg.Output)
	}
}

func mergeFileConfig(base, overlay fileConfig) fileConfig {
	if overlay.TZ != "" {
		base.TZ = overlay.TZ
	}
	if overlay.Output != "" {
		base.Output = overlay.Output
	}
	if overlay.Fields != "" {
		base.Fields = overlay.Fields
	}
	if overlay.Profile != "" {
		base.Profile = overlay.Profile
	}
	if overlay.Account != "" {
		base.Account = overlay.Account
	}
	if overlay.TokenDB != "" {
		base.TokenDB = overlay.TokenDB
	}
	if overlay.Granularity != 0 {
		base.Granularity = overlay.Granularity
	}
	base.Google = mergeProviderConfig(base.Google, overlay.Google)
	base.Outlook = mergeProviderConfig(base.Outlook, overlay.Outlook)
	if len(overlay.Availability) > 0 {
		merged := map[string]string{}
		for k, v := range base.Availability {
			merged[k] = v
		}
		for k, v := range overlay.Availability {
			merged[k] = v
		}
		base.Availability = merged
	}
	return base
}

func applyOutputMode(dst *globalOptions, mode string) {
	switch strings.ToLower(mode) {
	case "json":
		dst.JSON, dst.JSONL, dst.Plain = true, false, false
	case "jsonl":
		dst.JSON, dst.JSONL, dst.Plain = false, true, false
	case "plain":
		dst.JSON, dst.JSONL, dst.Plain = false, false, true
	}
}

func applyEnv(dst *globalOptions) {
	if v := env("UNICAL_TIMEZONE"); v != "" {
		dst.TZ = v
	}
	if v := env("UNICAL_FIELDS"); v != "" {
		dst.Fields = v
	}
	if v := env("UNICAL_OUTPUT"); v != "" {
		applyOutputMode(dst, v)
	}
	if v := env("UNICAL_NO_INPUT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			dst.NoInput = b
		}
	}
	if v := env("UNICAL_ACCOUNT"); v != "" {
		dst.Account = v
	}
	if v := env("UNICAL_TOKEN_DB"); v != "" {
		dst.TokenDB = v
	}
	if v := env("UNICAL_GRANULARITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			dst.Granularity = n
		}
	}
	dst.Google = mergeProviderConfig(dst.Google, providerConfig{
		ClientID:     env("UNICAL_GOOGLE_CLIENT_ID"),
		ClientSecret: env("UNICAL_GOOGLE_CLIENT_SECRET"),
		CalendarID:   env("UNICAL_GOOGLE_CALENDAR_ID"),
	})
	dst.Outlook = mergeProviderConfig(dst.Outlook, providerConfig{
		ClientID:     env("UNICAL_OUTLOOK_CLIENT_ID"),
		ClientSecret: env("UNICAL_OUTLOOK_CLIENT_SECRET"),
		Tenant:       env("UNICAL_OUTLOOK_TENANT"),
	})
}

func applyFlags(cmd *cobra.Command, dst, fromFlags *globalOptions) {
	copyIfChanged(cmd, "json", func() { dst.JSON = fromFlags.JSON })
	copyIfChanged(cmd, "jsonl", func() { dst.JSONL = fromFlags.JSONL })
	copyIfChanged(cmd, "plain", func() { dst.Plain = fromFlags.Plain })
	copyIfChanged(cmd, "fields", func() { dst.Fields = fromFlags.Fields })
	copyIfChanged(cmd, "quiet", func() { dst.Quiet = fromFlags.Quiet })
	copyIfChanged(cmd, "verbose", func() { dst.Verbose = fromFlags.Verbose })
	copyIfChanged(cmd, "no-color", func() { dst.NoColor = fromFlags.NoColor })
	copyIfChanged(cmd, "no-input", func() { dst.NoInput = fromFlags.NoInput })
	copyIfChanged(cmd, "profile", func() { dst.Profile = fromFlags.Profile })
	copyIfChanged(cmd, "config", func() { dst.Config = fromFlags.Config })
	copyIfChanged(cmd, "tz", func() { dst.TZ = fromFlags.TZ })
	copyIfChanged(cmd, "timeout", func() { dst.Timeout = fromFlags.Timeout })
	copyIfChanged(cmd, "schema-version", func() { dst.SchemaVersion = fromFlags.SchemaVersion })

	// If exactly one output mode flag is explicitly set, it overrides env/config output mode.
	modeSet := 0
	if flagValueChanged(cmd, "json") && fromFlags.JSON {
		modeSet++
	}
	if flagValueChanged(cmd, "jsonl") && fromFlags.JSONL {
		modeSet++
	}
	if flagValueChanged(cmd, "plain") && fromFlags.Plain {
		modeSet++
	}
	if modeSet == 1 {
		if flagValueChanged(cmd, "json") && fromFlags.JSON {
			applyOutputMode(dst, "json")
		}
		if flagValueChanged(cmd, "jsonl") && fromFlags.JSONL {
			applyOutputMode(dst, "jsonl")
		}
		if flagValueChanged(cmd, "plain") && fromFlags.Plain {
			applyOutputMode(dst, "plain")
		}
	}
}

func copyIfChanged(cmd *cobra.Command, name string, fn func()) {
	if flagValueChanged(cmd, name) {
		fn()
	}
}

func flagValueChanged(cmd *cobra.Command, name string) bool {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		return true
	}
	if f := cmd.InheritedFlags().Lookup(name); f != nil && f.Changed {
		return true
	}
	return false
}

func readConfigFile(path string) (fileConfig, bool) {
	if strings.TrimSpace(path) == "" {
		return fileConfig{}, false
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, false
	}
	var cfg fileConfig
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return fileConfig{}, false
	}
	return cfg, true
}

func defaultUserConfigPath() string {
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "unical", "config.toml")
	}
	home := strings.TrimSpace(os.Getenv("HOME"))
	if home == "" {
		return ""
	}
	return filepath.Join(home, ".config", "unical", "config.toml")
}

func env(k string) string { return strings.TrimSpace(os.Getenv(k)) }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
