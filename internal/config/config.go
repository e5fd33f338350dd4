package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type UploadsConfig struct {
	Dir               string   `yaml:"dir"`
	MaxSizeMB         int      `yaml:"maxSizeMB"`
	AllowedExtensions []string `yaml:"allowedExtensions"`
}

// EngineConfig selects the transcription engine and its external tools.
type EngineConfig struct {
	ModelSize  string `yaml:"modelSize"`
	WhisperBin string `yaml:"whisperBin"`
	FfmpegBin  string `yaml:"ffmpegBin"`
	Language   string `yaml:"language"`
}

type WorkerConfig struct {
	MaxConcurrentJobs int `yaml:"maxConcurrentJobs"`
	MaxTrackedJobs    int `yaml:"maxTrackedJobs"`
}

// StreamConfig holds SSE policy values. Neither value is semantically
// load-bearing beyond keeping intermediaries from declaring the
// connection dead and reclaiming abandoned ones.
type StreamConfig struct {
	KeepaliveSeconds   int `yaml:"keepaliveSeconds"`
	IdleTimeoutSeconds int `yaml:"idleTimeoutSeconds"`
}

type SessionConfig struct {
	CookieName           string `yaml:"cookieName"`
	MaxAgeSeconds        int    `yaml:"maxAgeSeconds"`
	SweepIntervalMinutes int    `yaml:"sweepIntervalMinutes"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseURL"`
	Model   string `yaml:"model"`
}

type GoogleLLMConfig struct {
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"`
}

// LLMConfig controls the optional transcript enrichment endpoints
// (summary and meeting minutes).
type LLMConfig struct {
	DefaultProvider string          `yaml:"defaultProvider"`
	TimeoutMs       int             `yaml:"timeoutMs"`
	OpenAI          OpenAIConfig    `yaml:"openai"`
	Google          GoogleLLMConfig `yaml:"google"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type RateLimitConfig struct {
	DefaultPerMinute int `yaml:"defaultPerMinute"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Uploads   UploadsConfig   `yaml:"uploads"`
	Engine    EngineConfig    `yaml:"engine"`
	Worker    WorkerConfig    `yaml:"worker"`
	Stream    StreamConfig    `yaml:"stream"`
	Session   SessionConfig   `yaml:"session"`
	LLM       LLMConfig       `yaml:"llm"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
}

func Load(path string) *Config {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		log.Fatalf("failed to decode config: %v", err)
	}

	return &cfg
}
