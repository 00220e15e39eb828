package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/examiz/internal/llm"
	"github.com/abhisek/examiz/internal/scoring"
)

func clearKeys(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY"} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearKeys(t)
	c, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, scoring.ScaleStandard, c.Feedback.Prompt.Scale)
	assert.Equal(t, "examiz", c.Feedback.Prompt.Product)
	assert.Nil(t, c.Feedback.Prompt.Teacher)
	assert.Equal(t, 15*time.Second, c.Feedback.Timeout)
	assert.Equal(t, 15*time.Minute, c.Simulation.Break)
	assert.Equal(t, 5*time.Minute, c.Simulation.MinBreak)
	assert.False(t, c.AIEnabled())
	assert.Equal(t, "warn", c.LogLevel)
}

func TestLoad_Overrides(t *testing.T) {
	clearKeys(t)
	v := viper.New()
	v.Set(KeyScale, "PREMIUM")
	v.Set(KeyTeacherName, "Ms. Rivera")
	v.Set(KeyTeacherFocus, "geometry")
	v.Set(KeyFeedbackTimeout, "3s")
	v.Set(KeyModules, []string{"mathematics", "english"})
	v.Set(KeyBreak, "10m")
	v.Set(KeyMinBreak, "2m")
	v.Set(KeyQuestions, []string{"a.json", "b.json"})

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, scoring.ScalePremium, c.Feedback.Prompt.Scale)
	require.NotNil(t, c.Feedback.Prompt.Teacher)
	assert.Equal(t, "geometry", c.Feedback.Prompt.Teacher.Focus)
	assert.Equal(t, 3*time.Second, c.Feedback.Timeout)
	assert.Equal(t, []string{"mathematics", "english"}, c.Simulation.Modules)
	assert.Equal(t, 10*time.Minute, c.Simulation.Break)
	assert.Equal(t, []string{"a.json", "b.json"}, c.QuestionFiles)
}

func TestLoad_Invalid(t *testing.T) {
	clearKeys(t)
	tests := map[string]map[string]any{
		"scale":     {KeyScale: "gold"},
		"min break": {KeyBreak: "5m", KeyMinBreak: "6m"},
		"timeout":   {KeyFeedbackTimeout: "0s"},
		"no key":    {KeyLLMProvider: "anthropic"},
		"provider":  {KeyLLMProvider: "watson"},
	}
	for name, vals := range tests {
		t.Run(name, func(t *testing.T) {
			v := viper.New()
			for k, val := range vals {
				v.Set(k, val)
			}
			_, err := Load(v)
			assert.Error(t, err)
		})
	}
}

func TestLoad_ExplicitProvider(t *testing.T) {
	clearKeys(t)
	v := viper.New()
	v.Set(KeyLLMProvider, "openai")
	v.Set(KeyLLMURL, "http://localhost:11434/v1")
	v.Set(KeyLLMModel, "llama3.2")

	c, err := Load(v)
	require.NoError(t, err)
	assert.True(t, c.AIEnabled())
	assert.Equal(t, llm.ProviderOpenAI, c.LLM.Provider)
	assert.Equal(t, "llama3.2", c.LLM.OpenAI.Model)
	assert.Equal(t, "http://localhost:11434/v1", c.LLM.OpenAI.BaseURL)
}

func TestLoad_DiscoversProvider(t *testing.T) {
	clearKeys(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	v := viper.New()
	v.Set(KeyLLMModel, "claude-sonnet")
	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, llm.ProviderAnthropic, c.LLM.Provider)
	assert.Equal(t, "sk-test", c.LLM.Anthropic.APIKey)
	assert.Equal(t, "claude-sonnet", c.LLM.Anthropic.Model)
}

func TestNewViper_FlagsEnvAndFile(t *testing.T) {
	clearKeys(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "examiz.yaml"), []byte("scale: premium\nproduct: acme\n"), 0o644))
	t.Chdir(dir)
	t.Setenv("EXAMIZ_MIN_BREAK", "1m")

	root := &cobra.Command{Use: "examiz"}
	root.PersistentFlags().String(KeyDB, "", "")
	child := &cobra.Command{Use: "simulate", Run: func(*cobra.Command, []string) {}}
	child.Flags().String(KeyProduct, "", "")
	root.AddCommand(child)
	require.NoError(t, root.PersistentFlags().Set(KeyDB, "/tmp/x.db"))
	require.NoError(t, child.Flags().Set(KeyProduct, "flagged"))

	c, err := Load(NewViper(child))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", c.DBPath)
	assert.Equal(t, "flagged", c.Feedback.Prompt.Product, "flags beat the config file")
	assert.Equal(t, scoring.ScalePremium, c.Feedback.Prompt.Scale)
	assert.Equal(t, time.Minute, c.Simulation.MinBreak)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("EXAMIZ_TEST_DOTENV=loaded\nEXAMIZ_TEST_KEEP=file\n"), 0o644))
	t.Setenv("EXAMIZ_TEST_DOTENV", "")
	os.Unsetenv("EXAMIZ_TEST_DOTENV")
	t.Setenv("EXAMIZ_TEST_KEEP", "env")

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "loaded", os.Getenv("EXAMIZ_TEST_DOTENV"))
	assert.Equal(t, "env", os.Getenv("EXAMIZ_TEST_KEEP"), "existing variables win")

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "nope")))
}

func TestSetupLogging(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	SetupLogging(&buf, "warn", "json")
	slog.Info("hidden")
	slog.Warn("shown", "k", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
