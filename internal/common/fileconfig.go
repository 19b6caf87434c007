package common

import (
	"time"

	"github.com/spf13/viper"
)

// ApplyConfigFile overlays values from an optional YAML config file onto
// cfg. Environment variables (IDEXTRACT_ prefix) take precedence over the
// file; values absent from both keep the defaults already in cfg.
//
// Priority order (highest to lowest):
//  1. Environment variables (via viper bindings)
//  2. Configuration file
//  3. Defaults from LoadConfig
func ApplyConfigFile(cfg *Config, configFile string) error {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("idextract")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/idextract")
		v.AddConfigPath("/etc/idextract")
	}

	v.SetEnvPrefix("IDEXTRACT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but couldn't be read
			return NewAppError("CONFIG_READ", "read config file", err)
		}
		// No config file; env bindings may still override below
	}

	overlayString(v, "server.http_addr", &cfg.Server.HTTPAddr)
	overlayDuration(v, "server.shutdown_timeout", &cfg.Server.ShutdownTimeout)

	overlayString(v, "upload.dir", &cfg.Upload.Dir)
	overlayInt64(v, "upload.max_size_mb", &cfg.Upload.MaxSizeMB)

	overlayString(v, "ocr.base_url", &cfg.OCR.BaseURL)
	overlayString(v, "ocr.api_key", &cfg.OCR.APIKey)
	overlayString(v, "ocr.language", &cfg.OCR.Language)
	overlayInt(v, "ocr.max_pages", &cfg.OCR.MaxPages)
	overlayDuration(v, "ocr.timeout", &cfg.OCR.Timeout)

	overlayString(v, "llm.base_url", &cfg.LLM.BaseURL)
	overlayString(v, "llm.model", &cfg.LLM.Model)
	overlayString(v, "llm.api_key", &cfg.LLM.APIKey)
	overlayDuration(v, "llm.timeout", &cfg.LLM.Timeout)
	if v.IsSet("llm.temperature") {
		cfg.LLM.Temperature = float32(v.GetFloat64("llm.temperature"))
	}

	overlayInt(v, "scheduler.workers", &cfg.Scheduler.Workers)
	overlayInt(v, "scheduler.queue_size", &cfg.Scheduler.QueueSize)
	overlayDuration(v, "scheduler.job_timeout", &cfg.Scheduler.JobTimeout)

	overlayDuration(v, "store.retention", &cfg.Store.Retention)

	return nil
}

func overlayString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

func overlayInt(v *viper.Viper, key string, dst *int) {
	if v.IsSet(key) {
		*dst = v.GetInt(key)
	}
}

func overlayInt64(v *viper.Viper, key string, dst *int64) {
	if v.IsSet(key) {
		*dst = v.GetInt64(key)
	}
}

func overlayDuration(v *viper.Viper, key string, dst *time.Duration) {
	if v.IsSet(key) {
		*dst = v.GetDuration(key)
	}
}
