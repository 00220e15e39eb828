// Package config resolves runtime configuration from flags, EXAMIZ_*
// environment variables, an optional examiz.yaml and .env files.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/abhisek/examiz/internal/feedback"
	"github.com/abhisek/examiz/internal/llm"
	"github.com/abhisek/examiz/internal/scoring"
)

// Keys shared by flags, environment variables and the config file.
const (
	KeyDB              = "db"
	KeyQuestions       = "questions"
	KeyScale           = "scale"
	KeyProduct         = "product"
	KeyTeacherName     = "teacher-name"
	KeyTeacherFocus    = "teacher-focus"
	KeyFeedbackTimeout = "feedback-timeout"
	KeyModules         = "modules"
	KeyBreak           = "break"
	KeyMinBreak        = "min-break"
	KeyLLMProvider     = "llm-provider"
	KeyLLMModel        = "llm-model"
	KeyLLMKey          = "llm-key"
	KeyLLMURL          = "llm-url"
	KeyLLMTimeout      = "llm-timeout"
	KeyLogLevel        = "log-level"
	KeyLogFormat       = "log-format"
)

// Config is the resolved configuration of one CLI invocation.
type Config struct {
	DBPath        string
	QuestionFiles []string

	Feedback feedback.Config
	LLM      llm.Config

	Simulation Simulation

	LogLevel  string
	LogFormat string
}

// Simulation configures the full mock exam.
type Simulation struct {
	Modules  []string
	Break    time.Duration
	MinBreak time.Duration
}

// AIEnabled reports whether an LLM provider was selected.
func (c Config) AIEnabled() bool {
	return c.LLM.Provider != ""
}

// NewViper binds cmd's flags (including inherited persistent flags) and
// the EXAMIZ_ environment to a fresh viper instance and reads examiz.yaml
// when one exists.
func NewViper(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())
	_ = v.BindPFlags(cmd.InheritedFlags())

	v.SetEnvPrefix("EXAMIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examiz")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examiz")
	v.AddConfigPath("/etc/examiz")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}
	return v
}

func setDefaults(v *viper.Viper) {
	fd := feedback.DefaultConfig()
	v.SetDefault(KeyScale, string(fd.Prompt.Scale))
	v.SetDefault(KeyProduct, fd.Prompt.Product)
	v.SetDefault(KeyFeedbackTimeout, fd.Timeout)
	v.SetDefault(KeyBreak, 15*time.Minute)
	v.SetDefault(KeyMinBreak, 5*time.Minute)
	v.SetDefault(KeyLLMTimeout, llm.DefaultConfig().Timeout)
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyLogFormat, "text")
}

// Load resolves a Config from v. When no LLM provider is named, the
// standard API key variables are probed; finding none leaves AI disabled.
func Load(v *viper.Viper) (Config, error) {
	setDefaults(v)

	c := Config{
		DBPath:        v.GetString(KeyDB),
		QuestionFiles: v.GetStringSlice(KeyQuestions),
		Feedback:      feedback.DefaultConfig(),
		LLM:           llm.DefaultConfig(),
		Simulation: Simulation{
			Modules:  v.GetStringSlice(KeyModules),
			Break:    v.GetDuration(KeyBreak),
			MinBreak: v.GetDuration(KeyMinBreak),
		},
		LogLevel:  v.GetString(KeyLogLevel),
		LogFormat: v.GetString(KeyLogFormat),
	}

	switch s := scoring.Scale(strings.ToLower(v.GetString(KeyScale))); s {
	case scoring.ScaleStandard, scoring.ScalePremium:
		c.Feedback.Prompt.Scale = s
	default:
		return Config{}, fmt.Errorf("unknown scale %q (want standard or premium)", s)
	}
	c.Feedback.Prompt.Product = v.GetString(KeyProduct)
	if name := v.GetString(KeyTeacherName); name != "" {
		c.Feedback.Prompt.Teacher = &feedback.Teacher{Name: name, Focus: v.GetString(KeyTeacherFocus)}
	}
	c.Feedback.Timeout = v.GetDuration(KeyFeedbackTimeout)
	if c.Feedback.Timeout <= 0 {
		return Config{}, fmt.Errorf("%s must be positive", KeyFeedbackTimeout)
	}

	if c.Simulation.Break <= 0 || c.Simulation.MinBreak <= 0 {
		return Config{}, fmt.Errorf("break durations must be positive")
	}
	if c.Simulation.MinBreak > c.Simulation.Break {
		return Config{}, fmt.Errorf("%s (%s) exceeds %s (%s)", KeyMinBreak, c.Simulation.MinBreak, KeyBreak, c.Simulation.Break)
	}

	if err := loadLLM(v, &c.LLM); err != nil {
		return Config{}, err
	}
	return c, nil
}

func loadLLM(v *viper.Viper, lc *llm.Config) error {
	lc.Timeout = v.GetDuration(KeyLLMTimeout)
	lc.Provider = strings.ToLower(v.GetString(KeyLLMProvider))
	if lc.Provider == "" && !lc.Discover() {
		return nil
	}

	model, key, url := v.GetString(KeyLLMModel), v.GetString(KeyLLMKey), v.GetString(KeyLLMURL)
	set := func(dst *string, val string) {
		if val != "" {
			*dst = val
		}
	}
	switch lc.Provider {
	case llm.ProviderAnthropic:
		set(&lc.Anthropic.Model, model)
		set(&lc.Anthropic.APIKey, key)
		if lc.Anthropic.APIKey == "" {
			lc.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	case llm.ProviderOpenAI:
		set(&lc.OpenAI.Model, model)
		set(&lc.OpenAI.APIKey, key)
		set(&lc.OpenAI.BaseURL, url)
		if lc.OpenAI.APIKey == "" {
			lc.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case llm.ProviderGemini:
		set(&lc.Gemini.Model, model)
		set(&lc.Gemini.APIKey, key)
		if lc.Gemini.APIKey == "" {
			lc.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	case llm.ProviderOpenRouter:
		set(&lc.OpenRouter.Model, model)
		set(&lc.OpenRouter.APIKey, key)
		set(&lc.OpenRouter.BaseURL, url)
		if lc.OpenRouter.APIKey == "" {
			lc.OpenRouter.APIKey = os.Getenv("OPENROUTER_API_KEY")
		}
	}
	return lc.Validate()
}

// LoadDotEnv loads the given .env files, or ./.env when none are named.
// Missing files are skipped and variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

// SetupLogging installs the default slog handler.
func SetupLogging(w io.Writer, level, format string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	switch strings.ToLower(format) {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
}
