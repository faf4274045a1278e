package settings

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// consts
const (
	Name = "LIONBOT"
)

// Config ...
type Config struct {
	Name    string `ignored:"true"`
	Version string `ignored:"true"`
	Develop bool   `envconfig:"DEVELOP"`

	HTTPListen   string   `envconfig:"HTTP_LISTEN" default:":3000"`
	RedisURI     string   `envconfig:"redis_uri"` // 为空时使用内存历史
	AllowOrigins []string `envconfig:"allow_origins" default:"*"`
	MaxBodySize  int64    `envconfig:"Max_Body_Size" default:"10485760"`
	RateLimit    string   `envconfig:"Rate_Limit" default:"60-M"`

	GeminiAPIKey    string        `envconfig:"gemini_api_key"`
	GeminiModel     string        `envconfig:"gemini_model" default:"gemini-2.5-flash"`
	GeminiBaseURL   string        `envconfig:"gemini_base_url" default:"https://generativelanguage.googleapis.com"`
	UpstreamTimeout time.Duration `envconfig:"upstream_timeout" default:"120s"`

	PresetFile      string        `envconfig:"preset_file"`
	HistoryLimit    int           `envconfig:"history_limit" default:"20"`
	HistoryLifetime time.Duration `envconfig:"history_lifetime" default:"24h"`
	AttachmentHints bool          `envconfig:"attachment_hints"`
}

var (
	// Current 当前配置
	Current = new(Config)
)

func init() {
	if err := envconfig.Process(Name, Current); err != nil {
		log.Printf("envconfig process fail: %s", err)
	}

	Current.Name = Name
	Current.Version = version
}

// Usage 打印配置帮助
func Usage() error {
	log.Printf("ver: %s", Current.Version)
	return envconfig.Usage(Current.Name, Current)
}

// InDevelop ...
func InDevelop() bool {
	return Current.Develop
}

// AllowAllOrigins ...
func AllowAllOrigins() bool {
	return 0 == len(Current.AllowOrigins) ||
		1 == len(Current.AllowOrigins) && Current.AllowOrigins[0] == "*"
}
