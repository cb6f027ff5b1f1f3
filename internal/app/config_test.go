package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	tmp := t.TempDir()
	if err := os.Chdir(tmp); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", tmp)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_STATE_HOME", filepath.Join(tmp, "state"))
	return tmp
}

func TestResolveGlobalOptionsPrecedence(t *testing.T) {
	tmp := chdirTemp(t)
	t.Setenv("UNICAL_OUTPUT", "jsonl")
	t.Setenv("UNICAL_TIMEZONE", "Asia/Tokyo")

	userCfg := filepath.Join(tmp, ".config", "unical", "config.toml")
	if err := os.MkdirAll(filepath.Dir(userCfg), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(userCfg, []byte("tz='Europe/Berlin'\noutput='plain'\n[google]\nclient_id='user-id'\nclient_secret='user-secret'\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmp, ".unical.toml"), []byte("fields='id,summary'\n[google]\nclient_id='project-id'\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	defaults := &globalOptions{Profile: "default", SchemaVersion: "v1", JSON: true, TZ: "UTC", Granularity: 30}
	cmd := newTestCmd()
	if err := cmd.ParseFlags([]string{"--tz", "UTC", "--json"}); err != nil {
		t.Fatal(err)
	}

	resolved, err := resolveGlobalOptions(cmd, defaults)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.TZ != "UTC" {
		t.Fatalf("expected flag tz, got %q", resolved.TZ)
	}
	if !resolved.JSON || resolved.JSONL || resolved.Plain {
		t.Fatalf("expected JSON mode from flag override, got json=%v jsonl=%v plain=%v", resolved.JSON, resolved.JSONL, resolved.Plain)
	}
	if resolved.Fields != "id,summary" {
		t.Fatalf("expected fields from project config, got %q", resolved.Fields)
	}
	if resolved.Google.ClientID != "project-id" || resolved.Google.ClientSecret != "user-secret" {
		t.Fatalf("expected merged google credentials, got %+v", resolved.Google)
	}
	if resolved.TokenDB != filepath.Join(tmp, "state", "unical", "tokens.db") {
		t.Fatalf("unexpected token db %q", resolved.TokenDB)
	}
	if resolved.Account != "default" {
		t.Fatalf("expected default account, got %q", resolved.Account)
	}
}

func TestResolveGlobalOptionsProfile(t *testing.T) {
	tmp := chdirTemp(t)
	t.Setenv("UNICAL_PROFILE", "work")

	cfg := `granularity = 60
[availability]
monday = "09:00-17:00"
friday = "09:00-17:00"

[profiles.work]
granularity = 15
[profiles.work.availability]
friday = "09:00-12:00"
[profiles.work.outlook]
tenant = "contoso.onmicrosoft.com"
`
	if err := os.WriteFile(filepath.Join(tmp, ".unical.toml"), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	defaults := &globalOptions{Profile: "default", SchemaVersion: "v1", Granularity: 30}
	resolved, err := resolveGlobalOptions(newTestCmd(), defaults)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Profile != "work" {
		t.Fatalf("expected work profile, got %q", resolved.Profile)
	}
	if resolved.Granularity != 15 {
		t.Fatalf("expected profile granularity, got %d", resolved.Granularity)
	}
	if resolved.Availability["monday"] != "09:00-17:00" || resolved.Availability["friday"] != "09:00-12:00" {
		t.Fatalf("unexpected availability %+v", resolved.Availability)
	}
	if resolved.Outlook.Tenant != "contoso.onmicrosoft.com" {
		t.Fatalf("expected profile tenant, got %q", resolved.Outlook.Tenant)
	}
	if defaults.Availability != nil {
		t.Fatalf("defaults must not be mutated")
	}
}

func TestResolveGlobalOptionsEnvCredentials(t *testing.T) {
	tmp := chdirTemp(t)
	t.Setenv("UNICAL_OUTLOOK_CLIENT_ID", "env-outlook")
	t.Setenv("UNICAL_TOKEN_DB", filepath.Join(tmp, "custom.db"))
	t.Setenv("UNICAL_GRANULARITY", "60")
	if err := os.WriteFile(filepath.Join(tmp, ".unical.toml"), []byte("[outlook]\nclient_id='file-outlook'\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	resolved, err := resolveGlobalOptions(newTestCmd(), &globalOptions{Profile: "default", Granularity: 30})
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Outlook.ClientID != "env-outlook" {
		t.Fatalf("expected env client id, got %q", resolved.Outlook.ClientID)
	}
	if resolved.TokenDB != filepath.Join(tmp, "custom.db") || resolved.Granularity != 60 {
		t.Fatalf("unexpected env overrides: %+v", resolved)
	}
}

func TestResolveGlobalOptionsReadsDotEnv(t *testing.T) {
	tmp := chdirTemp(t)
	t.Setenv("UNICAL_GOOGLE_CLIENT_ID", "")
	_ = os.Unsetenv("UNICAL_GOOGLE_CLIENT_ID")
	if err := os.WriteFile(filepath.Join(tmp, ".env"), []byte("UNICAL_GOOGLE_CLIENT_ID=dotenv-id\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	resolved, err := resolveGlobalOptions(newTestCmd(), &globalOptions{Profile: "default"})
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Google.ClientID != "dotenv-id" {
		t.Fatalf("expected client id from .env, got %q", resolved.Google.ClientID)
	}
}

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Bool("json", false, "")
	cmd.Flags().Bool("jsonl", false, "")
	cmd.Flags().Bool("plain", false, "")
	cmd.Flags().String("fields", "", "")
	cmd.Flags().Bool("quiet", false, "")
	cmd.Flags().Bool("verbose", false, "")
	cmd.Flags().Bool("no-color", false, "")
	cmd.Flags().Bool("no-input", false, "")
	cmd.Flags().String("profile", "default", "")
	cmd.Flags().String("config", "", "")
	cmd.Flags().String("tz", "", "")
	cmd.Flags().Duration("timeout", 0, "")
	cmd.Flags().String("schema-version", "v1", "")
	return cmd
}
