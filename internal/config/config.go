package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		Env  string `yaml:"env"`
	} `yaml:"server"`

	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`

	JWT struct {
		Secret string `yaml:"secret"`
		TTL    int    `yaml:"ttl"` // minutes
	} `yaml:"jwt"`

	OpenAI struct {
		// Platform credential used when a job runs on the system tier.
		SystemAPIKey       string `yaml:"system_api_key"`
		TranscriptionModel string `yaml:"transcription_model"`
	} `yaml:"openai"`

	Engine struct {
		Workers      int           `yaml:"workers"`
		QueueSize    int           `yaml:"queue_size"`
		PollInterval time.Duration `yaml:"poll_interval"`
		PollTimeout  time.Duration `yaml:"poll_timeout"`
	} `yaml:"engine"`

	Upload struct {
		Dir          string   `yaml:"dir"`
		OutputDir    string   `yaml:"output_dir"`
		MaxSize      int64    `yaml:"max_size"`
		AllowedTypes []string `yaml:"allowed_types"`
	} `yaml:"upload"`

	Storage struct {
		Type       string `yaml:"type"` // local, s3
		BasePath   string `yaml:"base_path"`
		BaseURL    string `yaml:"base_url"`
		Bucket     string `yaml:"bucket"`
		Region     string `yaml:"region"`
		AccessKey  string `yaml:"access_key"`
		SecretKey  string `yaml:"secret_key"`
		Endpoint   string `yaml:"endpoint"`
		UseSSL     bool   `yaml:"use_ssl"`
		PublicRead bool   `yaml:"public_read"`
	} `yaml:"storage"`

	FirstAdminEmail    string `yaml:"first_admin_email"`
	FirstAdminPassword string `yaml:"first_admin_password"`
}

var AppConfig *Config

func LoadConfig() {
	var cfg Config

	dbURL := os.Getenv("DATABASE_URL")

	if dbURL == "" {
		configPath := os.Getenv("CONFIG_PATH")
		if configPath == "" {
			configPath = "config/config.yaml"
		}

		f, err := os.Open(configPath)
		if err != nil {
			log.Fatalf("Failed to open config file at %s: %v", configPath, err)
		}
		defer f.Close()

		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			log.Fatalf("Failed to parse config file at %s: %v", configPath, err)
		}

		applyDefaults(&cfg)
		AppConfig = &cfg
		return
	}

	// Env-driven mode, used by tests and containers.
	cfg.Database.DSN = dbURL
	cfg.Server.Env = os.Getenv("SERVER_ENV")
	cfg.Server.Port, _ = strconv.Atoi(os.Getenv("SERVER_PORT"))
	cfg.JWT.Secret = os.Getenv("JWT_SECRET")
	cfg.JWT.TTL = 60
	cfg.OpenAI.SystemAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.FirstAdminEmail = os.Getenv("FIRST_ADMIN_EMAIL")
	cfg.FirstAdminPassword = os.Getenv("FIRST_ADMIN_PASSWORD")

	applyDefaults(&cfg)
	AppConfig = &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.OpenAI.TranscriptionModel == "" {
		cfg.OpenAI.TranscriptionModel = "whisper-1"
	}
	if cfg.Engine.Workers <= 0 {
		cfg.Engine.Workers = 4
	}
	if cfg.Engine.QueueSize <= 0 {
		cfg.Engine.QueueSize = 256
	}
	if cfg.Engine.PollInterval <= 0 {
		cfg.Engine.PollInterval = 3 * time.Second
	}
	if cfg.Engine.PollTimeout <= 0 {
		cfg.Engine.PollTimeout = 5 * time.Minute
	}
	if cfg.Upload.Dir == "" {
		cfg.Upload.Dir = "./uploads/audio"
	}
	if cfg.Upload.OutputDir == "" {
		cfg.Upload.OutputDir = "./uploads/outputs"
	}
	if cfg.Upload.MaxSize <= 0 {
		cfg.Upload.MaxSize = 50 * 1024 * 1024 // 50MB
	}
	if len(cfg.Upload.AllowedTypes) == 0 {
		// File extensions, matched against the uploaded file name.
		cfg.Upload.AllowedTypes = []string{
			".mp3", ".mp4", ".m4a", ".wav",
			".webm", ".ogg", ".flac",
		}
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "local"
	}
	if cfg.Storage.BasePath == "" {
		cfg.Storage.BasePath = "./uploads"
	}
}

func GetConfig() *Config {
	if AppConfig == nil {
		LoadConfig()
	}
	return AppConfig
}
