package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/qbot/internal/model"
)

// Version is set at build time with -ldflags
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "qbot",
	Short: "qbot - question answering over the Quran with cited verses",
	Long: `qbot answers questions about the Quran by letting a language model
search a verse index, read surrounding context and browse themes before
it answers. Every answer lists the verses it cites.

The model decides which lookups to run; qbot only executes them and
feeds the results back until the model answers or asks a follow-up.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, cancelled on interrupt
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "qbot %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.qbot/config.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	flags.String("llm", "", "completion provider (openai, anthropic, ollama, mock)")
	flags.String("model", "", "completion model name")
	flags.String("store", "", "store backend (memory, sqlite, postgres)")
	flags.String("corpus", "", "corpus file loaded into the memory store at startup")

	// Bind flags to viper
	_ = viper.BindPFlag("llm.provider", flags.Lookup("llm"))
	_ = viper.BindPFlag("llm.model", flags.Lookup("model"))
	_ = viper.BindPFlag("store.backend", flags.Lookup("store"))
	_ = viper.BindPFlag("store.corpus", flags.Lookup("corpus"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in .env, the config file and ENV variables
func initConfig() {
	// A missing .env is normal
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(home + "/.qbot")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match QBOT_*, e.g. QBOT_LLM_MODEL
	viper.SetEnvPrefix("QBOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := setDefaults(viper.GetViper(), model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering defaults: %v\n", err)
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every key of cfg with v so that environment
// variables are honoured for keys absent from the config file
func setDefaults(v *viper.Viper, cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}
	setTree(v, "", tree)
	return nil
}

func setTree(v *viper.Viper, prefix string, tree map[string]any) {
	for key, value := range tree {
		if prefix != "" {
			key = prefix + "." + key
		}
		if sub, ok := value.(map[string]any); ok {
			setTree(v, key, sub)
			continue
		}
		v.SetDefault(key, value)
	}
}

// loadConfig merges defaults, config file, environment and flags
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnvFallbacks(cfg)
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// applyEnvFallbacks fills credentials from the conventional provider
// environment variables when the config leaves them empty
func applyEnvFallbacks(cfg *model.Config) {
	switch strings.ToLower(cfg.LLM.Provider) {
	case "openai", "":
		setIfEmpty(&cfg.LLM.APIKey, "OPENAI_API_KEY")
	case "anthropic", "claude":
		setIfEmpty(&cfg.LLM.APIKey, "ANTHROPIC_API_KEY")
	case "ollama":
		setIfEmpty(&cfg.LLM.BaseURL, "OLLAMA_BASE_URL")
	}

	switch strings.ToLower(cfg.Embedding.Provider) {
	case "openai":
		setIfEmpty(&cfg.Embedding.APIKey, "OPENAI_API_KEY")
	case "gemini", "genai":
		setIfEmpty(&cfg.Embedding.APIKey, "GEMINI_API_KEY")
		setIfEmpty(&cfg.Embedding.APIKey, "GOOGLE_API_KEY")
	case "ollama":
		setIfEmpty(&cfg.Embedding.BaseURL, "OLLAMA_BASE_URL")
	}

	setIfEmpty(&cfg.Store.DSN, "QBOT_PG_DSN")
}

func setIfEmpty(dst *string, env string) {
	if *dst == "" {
		*dst = os.Getenv(env)
	}
}
