package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cexll/cpp-auto-formatter/internal/glob"
)

// EnvPrefix prefixes the environment variable of every flag:
// --bot-name is also read from CPP_AUTO_FORMATTER_BOT_NAME.
const EnvPrefix = "CPP_AUTO_FORMATTER"

// Flag names.
const (
	FlagGitHubToken         = "github-token"
	FlagGitHubAppID         = "github-app-id"
	FlagGitHubPrivateKey    = "github-private-key"
	FlagGitHubAPIURL        = "github-api-url"
	FlagGitHubURL           = "github-url"
	FlagBotName             = "bot-name"
	FlagBotEmail            = "bot-email"
	FlagInclude             = "include"
	FlagExclude             = "exclude"
	FlagClangFormatOverride = "clang-format-override"
	FlagClangFormatVersion  = "clang-format-version"
	FlagGitHubAction        = "github-action"
	FlagCommitMessage       = "commit-message"
	FlagParallelism         = "parallelism"
	FlagHTTPTimeout         = "http-timeout"
	FlagHTTPRetries         = "http-retries"
	FlagConfig              = "config"
	FlagDebug               = "debug"
)

// Defaults.
const (
	DefaultAPIURL        = "https://api.github.com/"
	DefaultGitHubURL     = "https://github.com"
	DefaultBotName       = "cpp-auto-formatter"
	DefaultCommitMessage = "GitHub clang-format Action"
	DefaultHTTPTimeout   = 30 * time.Second
	DefaultHTTPRetries   = 3
)

// Config holds all configuration for one run.
type Config struct {
	// GitHub credentials: a token, or a GitHub App id and private key
	GitHubToken      string
	GitHubAppID      string
	GitHubPrivateKey string

	GitHubAPIURL string
	GitHubURL    string

	// Bot identity
	BotName  string
	BotEmail string

	// File selection
	Includes []string
	Excludes []string

	// Formatter binary
	ClangFormatOverride string
	ClangFormatVersion  string
	GitHubAction        bool

	CommitMessage string
	Parallelism   int
	HTTPTimeout   time.Duration
	HTTPRetries   int
	Debug         bool

	// Set by the GitHub Actions runner
	EventPath string
	EventName string
	Workspace string
}

// RegisterFlags defines every configuration flag on fs. parallelism is the
// default of --parallelism.
func RegisterFlags(fs *pflag.FlagSet, parallelism int) {
	fs.String(FlagGitHubToken, "", "GitHub token used for API calls, clone and push (also read from GITHUB_TOKEN)")
	fs.String(FlagGitHubAppID, "", "GitHub App id, used with --github-private-key instead of a token")
	fs.String(FlagGitHubPrivateKey, "", "GitHub App private key, PEM text or a path to a PEM file")
	fs.String(FlagGitHubAPIURL, DefaultAPIURL, "GitHub REST API base URL")
	fs.String(FlagGitHubURL, DefaultGitHubURL, "GitHub web URL used to build clone URLs")
	fs.String(FlagBotName, DefaultBotName, "bot account name; comments must start with @<bot-name>")
	fs.String(FlagBotEmail, "", "commit email of the bot (default <bot-name>@users.noreply.github.com)")
	fs.StringArray(FlagInclude, glob.DefaultIncludes, "globs of files to format, comma-separated or repeated")
	fs.StringArray(FlagExclude, nil, "globs of files to skip, comma-separated or repeated; wins over --include")
	fs.String(FlagClangFormatOverride, "", "path of the clang-format binary")
	fs.String(FlagClangFormatVersion, "", "clang-format major version to use, e.g. 10")
	fs.Bool(FlagGitHubAction, false, "run inside the GitHub Action image: use /clang-format/clang-format-<version>")
	fs.String(FlagCommitMessage, DefaultCommitMessage, "message of the formatting commit")
	fs.Int(FlagParallelism, parallelism, "number of clang-format processes run at once")
	fs.Duration(FlagHTTPTimeout, DefaultHTTPTimeout, "timeout of each GitHub API request")
	fs.Int(FlagHTTPRetries, DefaultHTTPRetries, "retries of failed GitHub API reads")
	fs.String(FlagConfig, "", "YAML file with flag values keyed by flag name")
	fs.Bool(FlagDebug, false, "enable debug logging")
}

// Load builds the Config from the flags in fs, CPP_AUTO_FORMATTER_* and
// GitHub environment variables, and the optional --config file, in that order
// of precedence.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	// the runner and most setups export the unprefixed names
	for key, env := range map[string]string{
		FlagGitHubToken:      "GITHUB_TOKEN",
		FlagGitHubAppID:      "GITHUB_APP_ID",
		FlagGitHubPrivateKey: "GITHUB_PRIVATE_KEY",
	} {
		if err := v.BindEnv(key, envName(key), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path := v.GetString(FlagConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	privateKey, err := loadPrivateKey(v.GetString(FlagGitHubPrivateKey))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		GitHubToken:         strings.TrimSpace(v.GetString(FlagGitHubToken)),
		GitHubAppID:         strings.TrimSpace(v.GetString(FlagGitHubAppID)),
		GitHubPrivateKey:    privateKey,
		GitHubAPIURL:        v.GetString(FlagGitHubAPIURL),
		GitHubURL:           v.GetString(FlagGitHubURL),
		BotName:             strings.TrimPrefix(strings.TrimSpace(v.GetString(FlagBotName)), "@"),
		BotEmail:            v.GetString(FlagBotEmail),
		Includes:            getList(v, FlagInclude),
		Excludes:            getList(v, FlagExclude),
		ClangFormatOverride: v.GetString(FlagClangFormatOverride),
		ClangFormatVersion:  v.GetString(FlagClangFormatVersion),
		GitHubAction:        v.GetBool(FlagGitHubAction),
		CommitMessage:       v.GetString(FlagCommitMessage),
		Parallelism:         v.GetInt(FlagParallelism),
		HTTPTimeout:         v.GetDuration(FlagHTTPTimeout),
		HTTPRetries:         v.GetInt(FlagHTTPRetries),
		Debug:               v.GetBool(FlagDebug),
		EventPath:           os.Getenv("GITHUB_EVENT_PATH"),
		EventName:           os.Getenv("GITHUB_EVENT_NAME"),
		Workspace:           os.Getenv("GITHUB_WORKSPACE"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings every subcommand depends on.
func (c *Config) Validate() error {
	if c.BotName == "" {
		return fmt.Errorf("--%s must not be empty", FlagBotName)
	}
	if len(c.Includes) == 0 {
		return fmt.Errorf("--%s must name at least one pattern", FlagInclude)
	}
	if c.ClangFormatOverride != "" && c.ClangFormatVersion != "" {
		return fmt.Errorf("--%s and --%s are mutually exclusive", FlagClangFormatOverride, FlagClangFormatVersion)
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("--%s must be greater than 0", FlagParallelism)
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("--%s must not be negative", FlagHTTPTimeout)
	}
	if c.HTTPRetries < 0 {
		return fmt.Errorf("--%s must not be negative", FlagHTTPRetries)
	}
	if c.CommitMessage == "" {
		return fmt.Errorf("--%s must not be empty", FlagCommitMessage)
	}
	return nil
}

// RequireCredentials checks that a GitHub token or a complete set of GitHub
// App credentials is configured.
func (c *Config) RequireCredentials() error {
	if c.GitHubToken != "" {
		return nil
	}
	switch {
	case c.GitHubAppID != "" && c.GitHubPrivateKey != "":
		return nil
	case c.GitHubAppID != "":
		return fmt.Errorf("--%s is required with --%s", FlagGitHubPrivateKey, FlagGitHubAppID)
	case c.GitHubPrivateKey != "":
		return fmt.Errorf("--%s is required with --%s", FlagGitHubAppID, FlagGitHubPrivateKey)
	}
	return fmt.Errorf("--%s (or GITHUB_TOKEN) is required", FlagGitHubToken)
}

// RequireEvent checks that the runner described the triggering event.
func (c *Config) RequireEvent() error {
	if c.EventPath == "" {
		return errors.New("GITHUB_EVENT_PATH is required")
	}
	if c.EventName == "" {
		return errors.New("GITHUB_EVENT_NAME is required")
	}
	return nil
}

// UsesApp reports whether the run authenticates as a GitHub App.
func (c *Config) UsesApp() bool {
	return c.GitHubToken == "" && c.GitHubAppID != "" && c.GitHubPrivateKey != ""
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// getList reads a list setting. Every source may carry comma-separated
// patterns: `--include a,b`, CPP_AUTO_FORMATTER_INCLUDE=a,b or a YAML entry.
// Commas inside braces belong to the pattern, so `**/*.{c,h}` stays whole.
func getList(v *viper.Viper, key string) []string {
	var items []string
	switch val := v.Get(key).(type) {
	case string:
		items = []string{val}
	case []string:
		items = val
	case []any:
		for _, item := range val {
			items = append(items, fmt.Sprint(item))
		}
	}

	list := make([]string, 0, len(items))
	for _, item := range items {
		for _, pattern := range splitPatterns(item) {
			if pattern = strings.TrimSpace(pattern); pattern != "" {
				list = append(list, pattern)
			}
		}
	}
	return list
}

// splitPatterns splits s on commas outside `{...}` groups.
func splitPatterns(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// loadPrivateKey accepts PEM text or the path of a PEM file.
func loadPrivateKey(value string) (string, error) {
	key := normalizePrivateKey(value)
	if key == "" || strings.Contains(key, "-----BEGIN") {
		return key, nil
	}
	data, err := os.ReadFile(key)
	if err != nil {
		return "", fmt.Errorf("failed to read --%s file: %w", FlagGitHubPrivateKey, err)
	}
	return normalizePrivateKey(string(data)), nil
}

func normalizePrivateKey(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "\"") && strings.HasSuffix(trimmed, "\"") {
		trimmed = strings.TrimPrefix(trimmed, "\"")
		trimmed = strings.TrimSuffix(trimmed, "\"")
	}
	if strings.HasPrefix(trimmed, "'") && strings.HasSuffix(trimmed, "'") {
		trimmed = strings.TrimPrefix(trimmed, "'")
		trimmed = strings.TrimSuffix(trimmed, "'")
	}

	trimmed = strings.ReplaceAll(trimmed, "\r\n", "\n")
	trimmed = strings.ReplaceAll(trimmed, "\r", "\n")
	if strings.Contains(trimmed, "\\n") {
		trimmed = strings.ReplaceAll(trimmed, "\\r", "")
		trimmed = strings.ReplaceAll(trimmed, "\\n", "\n")
	}

	return trimmed
}
