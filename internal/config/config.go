package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/viper"
)

type Config struct {
	Mode          string        `mapstructure:"mode"`
	Port          int           `mapstructure:"port"`
	ReadLimit     int64         `mapstructure:"read_limit"`
	PingPeriod    time.Duration `mapstructure:"ping_period"`
	Secret        string        `mapstructure:"secret"`
	OfferLimit    int           `mapstructure:"offer_limit"`
	OfferInterval time.Duration `mapstructure:"offer_interval"`

	Signal  SignalConfig  `mapstructure:"signal"`
	ICE     ICEConfig     `mapstructure:"ice"`
	Capture CaptureConfig `mapstructure:"capture"`
	Log     LogConfig     `mapstructure:"log"`
}

// SignalConfig is the peer side of the rendezvous service.
type SignalConfig struct {
	URL         string        `mapstructure:"url"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type ICEConfig struct {
	Servers []ICEServer `mapstructure:"servers"`
}

type CaptureConfig struct {
	Mode      string `mapstructure:"mode"`
	VideoFile string `mapstructure:"video_file"`
	AudioFile string `mapstructure:"audio_file"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// ICEServers converts the configured servers for pion.
func (c *Config) ICEServers() []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(c.ICE.Servers))
	for _, s := range c.ICE.Servers {
		srv := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			srv.Credential = s.Credential
		}
		out = append(out, srv)
	}
	return out
}

// Load reads config/config.<CONFIG_ENV>.yaml, dev when unset.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile reads fileName over the defaults. A missing file is not an error;
// DUET_* environment variables override both.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)

	v.SetEnvPrefix("DUET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("offer_limit", 10)
	v.SetDefault("offer_interval", "10s")
	v.SetDefault("signal.url", "ws://localhost:8080/api/peer")
	v.SetDefault("signal.dial_timeout", "10s")
	v.SetDefault("ice.servers", []map[string]any{
		{"urls": []string{"stun:stun1.l.google.com:19302", "stun:stun2.l.google.com:19302"}},
	})
	v.SetDefault("capture.mode", "files")
	v.SetDefault("capture.video_file", "media/video.ivf")
	v.SetDefault("capture.audio_file", "media/audio.ogg")
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.OfferLimit <= 0 {
		return nil, fmt.Errorf("offer_limit must be positive, got %d", cfg.OfferLimit)
	}
	return &cfg, nil
}
