package main

import (
	"crypto/sha256"
	"encoding/hex"
	"log"
	"os"

	"gopkg.in/yaml.v2"
)

// Config is the process configuration, loaded from config.yaml with
// environment overrides.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	API     APIConfig     `yaml:"api"`
}

// StorageConfig selects and configures the blob backend and the
// metadata database.
type StorageConfig struct {
	Backend  string   `yaml:"backend"` // "disk" or "s3"
	Path     string   `yaml:"path"`
	Database string   `yaml:"database"`
	S3       S3Config `yaml:"s3"`
}

// S3Config configures the S3-compatible blob backend.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	KeyPrefix string `yaml:"key_prefix"`
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	Port string `yaml:"port"`
	Key  string `yaml:"key"`
}

// LoadConfig reads config.yaml (or CONFIG_PATH) and falls back to
// defaults when the file is absent or malformed.
func LoadConfig() *Config {
	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		log.Printf("Failed to read config file, using defaults: %v", err)
		return defaultConfig()
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		log.Printf("Failed to parse config file, using defaults: %v", err)
		return defaultConfig()
	}

	applyDefaults(&config)

	// Override API key from environment variable if set
	if envAPIKey := os.Getenv("DEDUPSTORE_API_KEY"); envAPIKey != "" {
		config.API.Key = envAPIKey
	}

	// Log only a hash prefix so the key never lands in logs
	if config.API.Key != "" {
		hasher := sha256.New()
		hasher.Write([]byte(config.API.Key))
		hashBytes := hasher.Sum(nil)[:8]
		log.Printf("API Key configured (hash prefix: %s...)", hex.EncodeToString(hashBytes))
	}

	return &config
}

func defaultConfig() *Config {
	apiKey := os.Getenv("DEDUPSTORE_API_KEY")
	if apiKey == "" {
		log.Fatal("API key must be set via DEDUPSTORE_API_KEY environment variable or config file")
	}

	config := &Config{}
	applyDefaults(config)
	config.API.Key = apiKey
	return config
}

func applyDefaults(config *Config) {
	if config.Storage.Backend == "" {
		config.Storage.Backend = "disk"
	}
	if config.Storage.Path == "" {
		config.Storage.Path = "./storage"
	}
	if config.Storage.Database == "" {
		config.Storage.Database = "./storage.db"
	}
	if config.API.Port == "" {
		config.API.Port = "8080"
	}
}
