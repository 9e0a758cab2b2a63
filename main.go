package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const deckManifestName = "deck.yaml"

var (
	apiKey               string
	settingsPath         string
	languagesFlag        string
	styleFlag            string
	providerFlag         string
	outputDirFlag        string
	retryErrors          bool
	overviewerPromptPath string
	analystPromptPath    string
	writerPromptPath     string
	auditorPromptPath    string
	translatorPromptPath string
)

var rootCmd = &cobra.Command{
	Use:   "notesmith [deck.yaml]",
	Short: "Slide-deck narration pipeline using AI",
	Long: `Generates or refines per-slide speaker notes for a deck, with resumable
progress, fingerprint-based change detection, and translated language
tracks derived from the baseline narration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manifest := deckManifestName
		if len(args) > 0 {
			manifest = args[0]
		}
		return runProcess([]string{manifest})
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch <folder>",
	Short: "Process every deck manifest found under a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manifests, err := findDeckManifests(args[0])
		if err != nil {
			return err
		}
		if len(manifests) == 0 {
			log.Printf("No %s files found under %s", deckManifestName, args[0])
			return nil
		}
		log.Printf("Found %d deck(s) to process", len(manifests))
		return runProcess(manifests)
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset [deck.yaml]",
	Short: "Delete stored progress for a deck so the next run starts from scratch",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manifest := deckManifestName
		if len(args) > 0 {
			manifest = args[0]
		}

		config, err := NewConfig(buildOverrides())
		if err != nil {
			return err
		}
		applyFlagOverrides(config.Settings)

		deck := NewFSDeckIO(config.Settings.OutputDirectory)
		doc, err := deck.Load(manifest)
		if err != nil {
			return err
		}

		languages := normalizeLanguages(parseLanguages(languagesFlag), config.Settings.BaselineLanguage)
		for _, lang := range languages {
			if err := ResetProgress(deck.OutputDir(doc), doc.ID, lang); err != nil {
				return err
			}
			log.Printf("Reset progress for %s/%s", doc.ID, lang)
		}
		return nil
	},
}

func runProcess(manifests []string) error {
	config, err := NewConfig(buildOverrides())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	applyFlagOverrides(config.Settings)

	caps, closeCaps, err := newCapabilities(config)
	if err != nil {
		return err
	}
	defer closeCaps()

	deck := NewFSDeckIO(config.Settings.OutputDirectory)
	languages := parseLanguages(languagesFlag)
	coordinator := NewBatchCoordinator(caps, deck, config.Settings, languages, styleFlag, retryErrors)

	summary := coordinator.Run(context.Background(), manifests)
	fmt.Println(renderRunSummary(summary))

	if n := summary.ErroredCount(); n > 0 {
		log.Printf("%d slide(s) errored; rerun with --retry-errors to reprocess them", n)
	}
	if summary.FatalCount() > 0 {
		return fmt.Errorf("%d unit(s) failed fatally", summary.FatalCount())
	}
	return nil
}

// newCapabilities selects the provider backend from settings.
func newCapabilities(config *Config) (Capabilities, func(), error) {
	switch config.Settings.Provider {
	case "anthropic":
		key := apiKey
		if key == "" {
			key = os.Getenv("ANTHROPIC_API_KEY")
		}
		if key == "" {
			return nil, nil, fmt.Errorf("API key required: use --api-key flag or ANTHROPIC_API_KEY environment variable")
		}
		return NewAnthropicCapabilities(key, config), func() {}, nil
	case "gemini":
		caps, err := NewGeminiCapabilities(context.Background(), config)
		if err != nil {
			return nil, nil, err
		}
		return caps, func() { _ = caps.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown provider: %s", config.Settings.Provider)
	}
}

func buildOverrides() *ConfigOverrides {
	overrides := &ConfigOverrides{}
	if settingsPath != "" {
		overrides.SettingsPath = &settingsPath
	}
	if overviewerPromptPath != "" {
		overrides.OverviewerPromptPath = &overviewerPromptPath
	}
	if analystPromptPath != "" {
		overrides.AnalystPromptPath = &analystPromptPath
	}
	if writerPromptPath != "" {
		overrides.WriterPromptPath = &writerPromptPath
	}
	if auditorPromptPath != "" {
		overrides.AuditorPromptPath = &auditorPromptPath
	}
	if translatorPromptPath != "" {
		overrides.TranslatorPromptPath = &translatorPromptPath
	}
	return overrides
}

func applyFlagOverrides(settings *Settings) {
	if providerFlag != "" {
		settings.Provider = providerFlag
	}
	if outputDirFlag != "" {
		settings.OutputDirectory = outputDirFlag
	}
}

// parseLanguages splits a comma-separated locale list.
func parseLanguages(flag string) []string {
	if flag == "" {
		return nil
	}
	parts := strings.Split(flag, ",")
	langs := make([]string, 0, len(parts))
	for _, part := range parts {
		if lang := strings.TrimSpace(part); lang != "" {
			langs = append(langs, lang)
		}
	}
	return langs
}

// findDeckManifests walks a folder for deck manifests.
func findDeckManifests(root string) ([]string, error) {
	var manifests []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == deckManifestName {
			manifests = append(manifests, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	return manifests, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Anthropic API key")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "Path to custom settings file")
	rootCmd.PersistentFlags().StringVar(&languagesFlag, "languages", "", "Comma-separated locale codes (baseline first, e.g. en,ja,fr)")
	rootCmd.PersistentFlags().StringVar(&styleFlag, "style", "", "Style descriptor forwarded to content generation")
	rootCmd.PersistentFlags().StringVar(&providerFlag, "provider", "", "Capability backend: anthropic or gemini")
	rootCmd.PersistentFlags().StringVar(&outputDirFlag, "output-dir", "", "Output directory name inside each deck directory")
	rootCmd.PersistentFlags().BoolVar(&retryErrors, "retry-errors", false, "Reprocess slides whose last attempt errored")
	rootCmd.PersistentFlags().StringVar(&overviewerPromptPath, "overviewer-prompt", "", "Path to custom overviewer prompt file")
	rootCmd.PersistentFlags().StringVar(&analystPromptPath, "analyst-prompt", "", "Path to custom analyst prompt file")
	rootCmd.PersistentFlags().StringVar(&writerPromptPath, "writer-prompt", "", "Path to custom writer prompt file")
	rootCmd.PersistentFlags().StringVar(&auditorPromptPath, "auditor-prompt", "", "Path to custom auditor prompt file")
	rootCmd.PersistentFlags().StringVar(&translatorPromptPath, "translator-prompt", "", "Path to custom translator prompt file")

	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(resetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
