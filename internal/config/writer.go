package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// WriteDefault writes a commented starter configuration to path. An existing
// file is backed up first.
func WriteDefault(path string) error {
	path = ExpandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		if err := BackupFile(path); err != nil {
			return fmt.Errorf("failed to back up existing config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(renderDefault(Default())), 0o644)
}

// Rendered by hand so the file carries comments next to each section.
func renderDefault(d Config) string {
	var sb strings.Builder
	sb.WriteString("# feedsieve configuration\n")

	sb.WriteString("database:\n")
	sb.WriteString("  # sqlite (dsn is a file path) or postgres (dsn is a connection string)\n")
	sb.WriteString(fmt.Sprintf("  driver: %s\n", d.Database.Driver))
	sb.WriteString(fmt.Sprintf("  dsn: %q\n", d.Database.DSN))

	sb.WriteString("log:\n")
	sb.WriteString(fmt.Sprintf("  level: %s\n", d.Log.Level))
	sb.WriteString(fmt.Sprintf("  format: %s  # text or json\n", d.Log.Format))
	sb.WriteString("  file: \"\"\n")

	sb.WriteString("schedule:\n")
	sb.WriteString(fmt.Sprintf("  poll: %q\n", d.Schedule.Poll))
	sb.WriteString(fmt.Sprintf("  digest: %q\n", d.Schedule.Digest))
	sb.WriteString(fmt.Sprintf("  timezone: %s\n", d.Schedule.Timezone))

	sb.WriteString("fetch:\n")
	sb.WriteString(fmt.Sprintf("  max_concurrency: %d\n", d.Fetch.MaxConcurrency))
	sb.WriteString(fmt.Sprintf("  per_host_delay_ms: %d\n", d.Fetch.PerHostDelayMS))

	sb.WriteString("llm:\n")
	sb.WriteString("  # openai (any OpenAI-compatible endpoint via base_url, e.g. Ollama) or anthropic\n")
	sb.WriteString("  provider: openai\n")
	sb.WriteString("  model: gpt-4o-mini\n")
	sb.WriteString("  # api_key is read from FEEDSIEVE_LLM_API_KEY / OPENAI_API_KEY / ANTHROPIC_API_KEY when empty\n")
	sb.WriteString("  api_key: \"\"\n")
	sb.WriteString("  base_url: \"\"\n")
	sb.WriteString(fmt.Sprintf("  max_chars: %d\n", d.LLM.MaxChars))
	sb.WriteString(fmt.Sprintf("  timeout_sec: %d\n", d.LLM.TimeoutSec))

	sb.WriteString("digest:\n")
	sb.WriteString("  recipient: you@example.com\n")
	sb.WriteString("  from: feedsieve@example.com\n")
	sb.WriteString(fmt.Sprintf("  subject_prefix: %q\n", d.Digest.SubjectPrefix))

	sb.WriteString("# leave smtp.host empty to log digests instead of mailing them\n")
	sb.WriteString("smtp:\n")
	sb.WriteString("  host: \"\"\n")
	sb.WriteString(fmt.Sprintf("  port: %d\n", d.SMTP.Port))
	sb.WriteString("  username: \"\"\n")
	sb.WriteString("  password: \"\"\n")
	sb.WriteString(fmt.Sprintf("  tls: %s\n", d.SMTP.TLS))

	sb.WriteString("api:\n")
	sb.WriteString("  addr: \"\"  # e.g. 127.0.0.1:8080\n")

	sb.WriteString("feeds:\n")
	sb.WriteString("  - name: Go Blog\n")
	sb.WriteString("    url: https://go.dev/blog/feed.atom\n")
	sb.WriteString("    extraction:\n")
	sb.WriteString("      body_selector: \"div.Article\"\n")
	sb.WriteString("      structured_data: true\n")
	sb.WriteString("    # custom_fields: [\"dc:creator\"]\n")

	sb.WriteString("topics:\n")
	sb.WriteString("  - name: Go releases\n")
	sb.WriteString("    description: |\n")
	sb.WriteString("      New Go releases, language changes and notable standard library additions.\n")
	return sb.String()
}

// Marshal renders cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// BackupFile creates a backup of the specified file with a timestamp
func BackupFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	ts := time.Now().Format("20060102-150405")
	bak := path + ".bak-" + ts
	return os.WriteFile(bak, b, 0o644)
}
