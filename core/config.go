package core

import (
	"fmt"
	"time"
)

// Text engine backend modes.
const (
	// LLMModeLocal runs inference through the in-process llama.cpp runtime.
	LLMModeLocal = "local"
	// LLMModeOpenAI talks to an OpenAI-compatible HTTP endpoint.
	LLMModeOpenAI = "openai"
)

// Config holds all configuration values, sourced from the environment
// (optionally seeded from a .env file by main).
type Config struct {
	// Directory layout
	LibraryDir string // prompt variable library (LOCAL_LIBRARY_DIR)
	OutputDir  string // generated images (LOCAL_OUTPUT_DIR)
	ModelsDir  string // downloaded model files (MODELS_DIR)
	LogFile    string // rotating log file (LOG_FILE)
	DBPath     string // generation history database (DB_PATH)

	// Server
	Host          string
	Port          int
	WebUIPassword string // empty disables authentication

	// Text engine (LLM)
	LLMMode      string // "local" or "openai"
	LLMModelPath string // GGUF file for local mode
	LLMModelURL  string // optional auto-download source
	LLMBaseURL   string // OpenAI-compatible endpoint for openai mode
	LLMAPIKey    string
	LLMModelName string
	LLMMaxTokens int

	// Image engine (stable diffusion)
	SDModelPath      string
	SDModelURL       string // optional auto-download source
	SDSteps          int
	SDCFGScale       float64
	SDNegativePrompt string
	SDTimeout        time.Duration

	// Workflow
	VariableValueCount int // values requested per missing variable

	// Model presets file (modelcfg)
	ModelPresetsPath string

	// Misc
	AutoDownload bool
	DevMode      bool
}

// LoadConfig reads configuration from the environment, applying defaults.
// It returns an error for values that are present but out of range; missing
// values fall back to defaults so a bare environment still works.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		LibraryDir: GetEnvOrDefault("LOCAL_LIBRARY_DIR", "./library"),
		OutputDir:  GetEnvOrDefault("LOCAL_OUTPUT_DIR", "./output"),
		ModelsDir:  GetEnvOrDefault("MODELS_DIR", "./models"),
		LogFile:    GetEnvOrDefault("LOG_FILE", "zexplorer.log"),
		DBPath:     GetEnvOrDefault("DB_PATH", "./data/zexplorer.db"),

		Host:          GetEnvOrDefault("HOST", "localhost"),
		Port:          ParseIntEnv("PORT", 8000),
		WebUIPassword: GetEnvOrDefault("WEBUI_PASSWORD", ""),

		LLMMode:      GetEnvOrDefault("LLM_MODE", LLMModeLocal),
		LLMModelPath: GetEnvOrDefault("LLM_PATH", ""),
		LLMModelURL:  GetEnvOrDefault("LLM_MODEL_URL", ""),
		LLMBaseURL:   GetEnvOrDefault("LLM_BASE_URL", ""),
		LLMAPIKey:    GetEnvOrDefault("LLM_API_KEY", ""),
		LLMModelName: GetEnvOrDefault("LLM_MODEL_NAME", ""),
		LLMMaxTokens: ParseIntEnv("LLM_MAX_TOKENS", 1024),

		SDModelPath:      GetEnvOrDefault("SD_MODEL_PATH", ""),
		SDModelURL:       GetEnvOrDefault("SD_MODEL_URL", ""),
		SDSteps:          ParseIntEnv("SD_STEPS", 20),
		SDCFGScale:       ParseFloat64Env("SD_CFG_SCALE", 7.0),
		SDNegativePrompt: GetEnvOrDefault("SD_NEGATIVE_PROMPT", ""),
		SDTimeout:        ParseDurationEnv("SD_TIMEOUT", 5*time.Minute),

		VariableValueCount: ParseIntEnv("VAR_VALUE_COUNT", DefaultVariableValueCount),

		ModelPresetsPath: GetEnvOrDefault("MODELS_CONFIG", "models.yaml"),

		AutoDownload: ParseBoolEnv("AUTO_DOWNLOAD", false),
		DevMode:      ParseBoolEnv("DEV_MODE", false),
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid PORT %d: must be 1-65535", cfg.Port)
	}
	if cfg.LLMMode != LLMModeLocal && cfg.LLMMode != LLMModeOpenAI {
		return nil, fmt.Errorf("invalid LLM_MODE %q: must be %q or %q",
			cfg.LLMMode, LLMModeLocal, LLMModeOpenAI)
	}
	if cfg.LLMMode == LLMModeOpenAI && cfg.LLMBaseURL == "" && cfg.LLMAPIKey == "" {
		return nil, fmt.Errorf("LLM_MODE=openai requires LLM_BASE_URL or LLM_API_KEY")
	}
	if cfg.SDSteps < 1 || cfg.SDSteps > 100 {
		return nil, fmt.Errorf("invalid SD_STEPS %d: must be 1-100", cfg.SDSteps)
	}
	if cfg.SDCFGScale < 1.0 || cfg.SDCFGScale > 30.0 {
		return nil, fmt.Errorf("invalid SD_CFG_SCALE %.2f: must be 1.0-30.0", cfg.SDCFGScale)
	}
	if cfg.VariableValueCount < 1 {
		return nil, fmt.Errorf("invalid VAR_VALUE_COUNT %d: must be >= 1", cfg.VariableValueCount)
	}

	return cfg, nil
}
