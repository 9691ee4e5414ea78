package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Addr         string   `mapstructure:"addr"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
	ReadTimeout  int      `mapstructure:"read_timeout"`
	WriteTimeout int      `mapstructure:"write_timeout"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
	// RetentionDays prunes read events older than this many days; 0 keeps
	// everything.
	RetentionDays int `mapstructure:"retention_days"`
}

type PipelineConfig struct {
	// Policy selects the aggregation strategy: "session" (zone-timeout
	// state machine) or "identity" (per-track cooldown events). The two
	// must not be mixed within one deployment.
	Policy         string        `mapstructure:"policy"`
	SessionTimeout time.Duration `mapstructure:"session_timeout"`
	Cooldown       time.Duration `mapstructure:"cooldown"`
	QueueSize      int           `mapstructure:"queue_size"`
	DropPolicy     string        `mapstructure:"drop_policy"`
	MinCropHeight  int           `mapstructure:"min_crop_height"`
	Sharpen        bool          `mapstructure:"sharpen"`
	MinConfidence  float64       `mapstructure:"min_confidence"`
	LineTolerance  float64       `mapstructure:"line_tolerance"`
	AbsTolerance   float64       `mapstructure:"abs_tolerance"`
	// GlyphAliases maps raw model class names to display glyphs.
	GlyphAliases map[string]string `mapstructure:"glyph_aliases"`
	CropPadding  int               `mapstructure:"crop_padding"`
}

type ZonesConfig struct {
	PresetFile string `mapstructure:"preset_file"`
	Preset     string `mapstructure:"preset"`
	Mode       string `mapstructure:"mode"`
}

type SinkConfig struct {
	ImageRoot string `mapstructure:"image_root"`
	QueueSize int    `mapstructure:"queue_size"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Zones    ZonesConfig    `mapstructure:"zones"`
	Sink     SinkConfig     `mapstructure:"sink"`
}

// Load reads configuration from the given file (optional) and from LPR_*
// environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 15)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.retention_days", 0)
	v.SetDefault("pipeline.policy", "session")
	v.SetDefault("pipeline.session_timeout", "2500ms")
	v.SetDefault("pipeline.cooldown", "3s")
	v.SetDefault("pipeline.queue_size", 16)
	v.SetDefault("pipeline.drop_policy", "newest")
	v.SetDefault("pipeline.min_crop_height", 80)
	v.SetDefault("pipeline.sharpen", false)
	v.SetDefault("pipeline.min_confidence", 0.5)
	v.SetDefault("pipeline.line_tolerance", 0.6)
	v.SetDefault("pipeline.abs_tolerance", 0.0)
	v.SetDefault("pipeline.crop_padding", 10)
	v.SetDefault("zones.preset_file", "zones.json")
	v.SetDefault("zones.preset", "")
	v.SetDefault("zones.mode", "")
	v.SetDefault("sink.image_root", "img")
	v.SetDefault("sink.queue_size", 16)

	v.SetEnvPrefix("LPR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	switch cfg.Pipeline.Policy {
	case "session", "identity":
	default:
		return nil, fmt.Errorf("invalid pipeline policy %q", cfg.Pipeline.Policy)
	}
	return &cfg, nil
}
