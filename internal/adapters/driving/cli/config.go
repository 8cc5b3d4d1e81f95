package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/kcache/internal/adapters/driven/config"
	"github.com/custodia-labs/kcache/internal/core/domain"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View and change kcache configuration.

Settings live in config.toml in the config directory. Every key can be
overridden with an environment variable (KCACHE_ plus the key in upper case
with dots replaced by underscores) or a .env file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print a stored value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Store a value",
	Long: `Stores a value in config.toml.

Values are parsed as booleans or numbers where possible. A bracketed,
comma-separated value such as "[structure, dedupe]" becomes a list. When the value is omitted for embedding.api_key it is read without
echo.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runConfigSet,
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List known keys and their environment variables",
	Args:  cobra.NoArgs,
	RunE:  runConfigKeys,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.Println(configStore.Path())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configKeysCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if err := config.LoadEnvFiles(config.DefaultEnvFiles(configStore)...); err != nil {
		return err
	}
	s, err := config.LoadSettings(configStore)

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Search]")
	cmd.Printf("  Mode: %s\n", s.Search.Mode.Description())
	cmd.Printf("  Top K: %d\n", s.Search.TopK)
	cmd.Printf("  Per-source cap: %d\n", s.Search.PerSourceCap)
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", s.Embedding.Provider.Description())
	switch s.Embedding.Provider {
	case domain.EmbeddingProviderSubword:
		vocab := s.Embedding.VocabPath
		if vocab == "" {
			vocab = defaultVocabPath(configStore)
		}
		cmd.Printf("  Vocabulary: %s\n", vocab)
	default:
		cmd.Printf("  Model: %s\n", valueOr(s.Embedding.Model, "(provider default)"))
		cmd.Printf("  Base URL: %s\n", valueOr(s.Embedding.BaseURL, "(provider default)"))
	}
	if s.Embedding.Provider == domain.EmbeddingProviderOpenAI {
		if s.Embedding.APIKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(s.Embedding.APIKey))
		} else {
			cmd.Printf("  API Key: (not set)\n")
		}
	}
	cmd.Printf("  Dimensions: %d\n", s.Embedding.Dimensions)
	cmd.Println()

	cmd.Println("[Ingest]")
	cmd.Printf("  Chunk size: %d chars, overlap %d\n", s.Chunk.MaxChars, s.Chunk.OverlapChars)
	cmd.Printf("  Limits: %d chars, %d chunks\n", s.Ingest.MaxExtractedChars, s.Ingest.MaxChunks)
	cmd.Printf("  Processors: %s\n", strings.Join(s.Ingest.Processors, ", "))
	if len(s.Structurer.Command) > 0 {
		cmd.Printf("  Structurer: %s (timeout %s)\n", strings.Join(s.Structurer.Command, " "), s.Structurer.Timeout)
	}
	cmd.Println()

	cmd.Println("[Storage]")
	cmd.Printf("  Backend: %s\n", s.Storage.Backend)
	if s.Storage.DataDir != "" {
		cmd.Printf("  Data dir: %s\n", s.Storage.DataDir)
	}
	cmd.Println()

	if err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'kcache config set <key> <value>' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if v, ok := os.LookupEnv(config.EnvName(key)); ok {
		cmd.Printf("%s (from %s)\n", v, config.EnvName(key))
		return nil
	}
	val, ok := configStore.Get(key)
	if !ok {
		return fmt.Errorf("%w: %s is not set", domain.ErrNotFound, key)
	}
	cmd.Println(formatValue(val))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if !knownKey(key) {
		cmd.PrintErrf("Warning: %s is not a known key (see 'kcache config keys')\n", key)
	}

	var raw string
	if len(args) == 2 {
		raw = args[1]
	} else {
		if key != config.KeyEmbeddingAPIKey {
			return fmt.Errorf("%w: missing value for %s", domain.ErrInvalidInput, key)
		}
		cmd.Print("API key: ")
		raw = readPassword()
		cmd.Println()
	}

	if err := configStore.Set(key, config.ParseValue(raw)); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	if err := configStore.Save(); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	// Report problems the new value introduces without rejecting it.
	if _, err := config.LoadSettings(configStore); err != nil {
		cmd.PrintErrf("Warning: %v\n", err)
	}
	cmd.Printf("Set %s\n", key)
	return nil
}

func runConfigKeys(cmd *cobra.Command, _ []string) error {
	keys := config.KnownKeys()
	sort.Strings(keys)
	for _, k := range keys {
		cmd.Printf("  %-36s %s\n", k, config.EnvName(k))
	}
	return nil
}

func formatValue(val any) string {
	switch v := val.(type) {
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(v, ",")
	case time.Duration:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, errors.Join(fmt.Errorf("%w: invalid duration %q", domain.ErrInvalidInput, s), err)
	}
	return d, nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

//nolint:errcheck // CLI helper, error ignored for UX
func readPassword() string {
	// Try to read password without echo
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return string(password)
		}
	}
	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
