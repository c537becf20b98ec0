package di

import (
	"time"

	"task-agent/internal/application/port/output"
)

type Config struct {
	OpenAIAPIKey   string
	OpenAIModel    string
	OpenAIBaseURL  string
	OpenAIJSONMode bool
	Temperature    float32

	WorkspacePath string
	// DatabasePath selects the SQLite store. Empty keeps everything in memory.
	DatabasePath  string
	PythonBin     string
	ScriptTimeout time.Duration
	ReadWebpage   bool

	MaxSteps     int
	HTTPAddr     string
	OTLPEndpoint string
	Version      string

	LogLevel  string
	LogFormat string
	LogDir    string
	// LogName names the per-run log file when LogDir is set.
	LogName string
}

func DefaultConfig() Config {
	return Config{
		OpenAIModel:   "gpt-4o",
		OpenAIBaseURL: "https://api.openai.com/v1",
		WorkspacePath: "./workspace",
		PythonBin:     "python3",
		ScriptTimeout: 5 * time.Minute,
		ReadWebpage:   true,
		MaxSteps:      30,
		HTTPAddr:      ":8000",
		Version:       "dev",
		LogLevel:      "info",
		LogFormat:     "console",
	}
}

// LoadConfig reads the process configuration. Keys that are not set keep
// their DefaultConfig value.
func LoadConfig(env output.ConfigPort) Config {
	def := DefaultConfig()
	return Config{
		OpenAIAPIKey:   env.Get("OPENAI_API_KEY"),
		OpenAIModel:    env.GetWithDefault("OPENAI_MODEL", def.OpenAIModel),
		OpenAIBaseURL:  env.GetWithDefault("OPENAI_BASE_URL", def.OpenAIBaseURL),
		OpenAIJSONMode: env.GetBool("OPENAI_JSON_MODE", false),
		Temperature:    float32(env.GetFloat("OPENAI_TEMPERATURE", float64(def.Temperature))),

		WorkspacePath: env.GetWithDefault("WORKSPACE_PATH", def.WorkspacePath),
		DatabasePath:  env.Get("DATABASE_PATH"),
		PythonBin:     env.GetWithDefault("PYTHON_BIN", def.PythonBin),
		ScriptTimeout: env.GetDuration("SCRIPT_TIMEOUT", def.ScriptTimeout),
		ReadWebpage:   env.GetBool("READ_WEBPAGE", def.ReadWebpage),

		MaxSteps:     env.GetInt("MAX_STEPS", def.MaxSteps),
		HTTPAddr:     env.GetWithDefault("HTTP_ADDR", def.HTTPAddr),
		OTLPEndpoint: env.Get("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Version:      def.Version,

		LogLevel:  env.GetWithDefault("LOG_LEVEL", def.LogLevel),
		LogFormat: env.GetWithDefault("LOG_FORMAT", def.LogFormat),
		LogDir:    env.Get("LOG_DIR"),
	}
}
