package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
	"github.com/custodia-labs/devrag-cli/internal/core/services"
)

// stdin is read for secrets when config set is given no value.
var stdin io.Reader = os.Stdin

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View and change devrag configuration.

Values live in config.toml under ~/.devrag unless --config names another
directory.
API keys may also come from OPENAI_API_KEY, ANTHROPIC_API_KEY,
GITHUB_TOKEN and DEVRAG_PG_DSN, which take precedence over the file.`,
	Annotations: needs(NeedsSettings),
	RunE:        runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration by section",
	RunE:  runConfigShow,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored keys with secrets masked",
	RunE:  runConfigList,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one stored value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> [value]",
	Short: "Store a value",
	Long: `Store a configuration value. Omitting the value for a secret key
(embedding.api_key, llm.api_key, github.token, index.dsn) prompts for it
without echo.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runConfigSet,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check configuration and reach the configured providers",
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return fmt.Errorf("settings: %w", errNotConfigured)
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	st := newStyles(cmd.OutOrStdout())

	cmd.Println(st.Title.Render("Current Configuration"))
	cmd.Println()

	cmd.Println(st.Subtitle.Render("[Embedding]"))
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.Embedding.Model)
	printEndpoint(cmd, settings.Embedding.Provider, settings.Embedding.BaseURL, settings.Embedding.APIKey)
	if settings.Embedding.Dimensions > 0 {
		cmd.Printf("  Dimensions: %d\n", settings.Embedding.Dimensions)
	}
	cmd.Printf("  Batch size: %d\n", settings.Embedding.BatchSize)
	cmd.Printf("  Status: %s\n", configuredStatus(settings.Embedding.IsConfigured()))
	cmd.Println()

	cmd.Println(st.Subtitle.Render("[LLM]"))
	cmd.Printf("  Provider: %s\n", settings.LLM.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.LLM.Model)
	printEndpoint(cmd, settings.LLM.Provider, settings.LLM.BaseURL, settings.LLM.APIKey)
	cmd.Printf("  Temperature: %g\n", settings.LLM.Temperature)
	cmd.Printf("  Status: %s\n", configuredStatus(settings.LLM.IsConfigured()))
	cmd.Println()

	cmd.Println(st.Subtitle.Render("[Index]"))
	cmd.Printf("  Backend: %s\n", settings.Index.Backend)
	switch settings.Index.Backend {
	case domain.IndexBackendSQLite:
		path := settings.Index.Path
		if path == "" {
			path = "(default)"
		}
		cmd.Printf("  Path: %s\n", path)
	case domain.IndexBackendPgVector:
		cmd.Printf("  DSN: %s\n", secretOrUnset(settings.Index.DSN))
		cmd.Printf("  Table: %s\n", settings.Index.Table)
	}
	cmd.Println()

	cmd.Println(st.Subtitle.Render("[Retrieval]"))
	cmd.Printf("  Chunk size: %d (overlap %d)\n", settings.Chunking.MaxSize, settings.Chunking.Overlap)
	cmd.Printf("  Top K: %d\n", settings.Retrieval.TopK)
	cmd.Printf("  Token budget: %d (answer reserve %d)\n", settings.Context.TokenBudget, settings.Context.AnswerTokens)
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Println(st.Warning.Render(fmt.Sprintf("Warning: %v", err)))
		cmd.Println("Run 'devrag config set <key> <value>' to fix configuration issues.")
	} else {
		cmd.Println(st.Success.Render("Configuration is valid."))
	}

	return nil
}

func printEndpoint(cmd *cobra.Command, p domain.AIProvider, baseURL, apiKey string) {
	if baseURL != "" || p == domain.AIProviderOllama {
		if baseURL == "" {
			baseURL = "(default)"
		}
		cmd.Printf("  Base URL: %s\n", baseURL)
	}
	if p.RequiresAPIKey() {
		cmd.Printf("  API Key: %s\n", secretOrUnset(apiKey))
	}
}

func secretOrUnset(v string) string {
	if v == "" {
		return "(not set)"
	}
	return services.MaskSecret(v)
}

func configuredStatus(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func runConfigList(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return fmt.Errorf("settings: %w", errNotConfigured)
	}

	values := settingsService.List()
	if len(values) == 0 {
		cmd.Println("No values stored. Defaults are in effect.")
		return nil
	}
	for _, key := range services.SortedKeys(values) {
		cmd.Printf("%s = %s\n", key, values[key])
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return fmt.Errorf("settings: %w", errNotConfigured)
	}

	value, ok := settingsService.List()[args[0]]
	if !ok {
		return fmt.Errorf("%s is not set", args[0])
	}
	cmd.Println(value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return fmt.Errorf("settings: %w", errNotConfigured)
	}

	key := args[0]
	var value string
	if len(args) == 2 {
		value = args[1]
	} else {
		if !services.IsSecretKey(key) {
			return fmt.Errorf("a value is required for %s", key)
		}
		cmd.Printf("Enter %s: ", key)
		value = readPassword()
		cmd.Println()
		if value == "" {
			return fmt.Errorf("no value entered for %s", key)
		}
	}

	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	shown := value
	if services.IsSecretKey(key) {
		shown = services.MaskSecret(value)
	}
	cmd.Printf("Set %s = %s\n", key, shown)
	return nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return fmt.Errorf("settings: %w", errNotConfigured)
	}
	st := newStyles(cmd.OutOrStdout())

	if err := settingsService.Validate(); err != nil {
		return err
	}
	cmd.Println(st.Success.Render("Configuration: ok"))

	cmd.Print("Embedding provider... ")
	if err := settingsService.ValidateEmbeddingConfig(); err != nil {
		cmd.Println(st.Error.Render("FAILED"))
		return fmt.Errorf("embedding provider: %w", err)
	}
	cmd.Println(st.Success.Render("OK"))

	cmd.Print("LLM provider... ")
	if err := settingsService.ValidateLLM(); err != nil {
		cmd.Println(st.Warning.Render("not configured"))
		cmd.Println(st.Muted.Render("  query and chat will return retrieved context without a generated answer"))
		return nil
	}
	if err := settingsService.ValidateLLMConfig(); err != nil {
		cmd.Println(st.Error.Render("FAILED"))
		return fmt.Errorf("llm provider: %w", err)
	}
	cmd.Println(st.Success.Render("OK"))
	return nil
}

// readPassword reads a line without echo when stdin is a terminal.
func readPassword() string {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(bufio.NewReader(stdin))
}

func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}
