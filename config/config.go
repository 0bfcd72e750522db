package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"quote-shorts-pipeline/types"
)

type Config struct {
	Topic       TopicConfig  `yaml:"topic"`
	Quote       QuoteConfig  `yaml:"quote"`
	Image       ImageConfig  `yaml:"image"`
	Audio       AudioConfig  `yaml:"audio"`
	Video       VideoConfig  `yaml:"video"`
	Upload      UploadConfig `yaml:"upload"`
	Paths       PathsConfig  `yaml:"paths"`
	Credentials Credentials  `yaml:"-"`
}

type TopicConfig struct {
	Default      string `yaml:"default"`
	FromReddit   bool   `yaml:"from_reddit"`
	Subreddit    string `yaml:"subreddit"`
	MaxPostsEval int    `yaml:"max_posts_to_evaluate"`
}

type QuoteConfig struct {
	Model          string  `yaml:"model"`
	Tone           string  `yaml:"tone"`
	MaxChars       int     `yaml:"max_chars"`
	Lang           string  `yaml:"lang"`
	Temperature    float64 `yaml:"temperature"`
	MaxAttempts    int     `yaml:"max_attempts"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

type ImageConfig struct {
	Model          string `yaml:"model"`
	StyleSuffix    string `yaml:"style_suffix"`
	MaxAttempts    int    `yaml:"max_attempts"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type AudioConfig struct {
	Extensions []string `yaml:"extensions"`
}

type VideoConfig struct {
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	FPS         int     `yaml:"fps"`
	DurationSec float64 `yaml:"duration_sec"`
	FontFile    string  `yaml:"font_file"`
	FontColor   string  `yaml:"font_color"`
	FontSizeMin int     `yaml:"font_size_min"`
	FontSizeMax int     `yaml:"font_size_max"`
	MarginRatio float64 `yaml:"margin_ratio"`
	Container   string  `yaml:"container"`
	VideoCodec  string  `yaml:"video_codec"`
	AudioCodec  string  `yaml:"audio_codec"`
}

type UploadConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Visibility  string   `yaml:"visibility"`
	CategoryID  string   `yaml:"category_id"`
	TitlePrefix string   `yaml:"title_prefix"`
	Tags        []string `yaml:"tags"`
	MaxAttempts int      `yaml:"max_attempts"`
}

type PathsConfig struct {
	AudioLibrary string `yaml:"audio_library"`
	Output       string `yaml:"output"`
	Logs         string `yaml:"logs"`
}

// Credentials are folded in from the environment at load time so the
// pipeline core never reads env vars itself.
type Credentials struct {
	GroqAPIKey          string
	YouTubeClientID     string
	YouTubeClientSecret string
	YouTubeRefreshToken string
}

// Load reads config.yaml, applies defaults, folds in env credentials and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	cfg.Credentials = Credentials{
		GroqAPIKey:          os.Getenv("GROQ_API_KEY"),
		YouTubeClientID:     os.Getenv("YOUTUBE_CLIENT_ID"),
		YouTubeClientSecret: os.Getenv("YOUTUBE_CLIENT_SECRET"),
		YouTubeRefreshToken: os.Getenv("YOUTUBE_REFRESH_TOKEN"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Quote.MaxChars == 0 {
		c.Quote.MaxChars = 120
	}
	if c.Quote.MaxAttempts == 0 {
		c.Quote.MaxAttempts = 3
	}
	if c.Quote.TimeoutSeconds == 0 {
		c.Quote.TimeoutSeconds = 30
	}
	if c.Quote.Lang == "" {
		c.Quote.Lang = "en"
	}
	if c.Image.MaxAttempts == 0 {
		c.Image.MaxAttempts = 3
	}
	if c.Image.TimeoutSeconds == 0 {
		c.Image.TimeoutSeconds = 60
	}
	if len(c.Audio.Extensions) == 0 {
		c.Audio.Extensions = []string{".mp3", ".wav", ".m4a", ".aac", ".ogg"}
	}
	if c.Video.Width == 0 {
		c.Video.Width = 1080
	}
	if c.Video.Height == 0 {
		c.Video.Height = 1920
	}
	if c.Video.FPS == 0 {
		c.Video.FPS = 30
	}
	if c.Video.DurationSec == 0 {
		c.Video.DurationSec = 15
	}
	if c.Video.FontColor == "" {
		c.Video.FontColor = "white"
	}
	if c.Video.FontSizeMin == 0 {
		c.Video.FontSizeMin = 28
	}
	if c.Video.FontSizeMax == 0 {
		c.Video.FontSizeMax = 110
	}
	if c.Video.MarginRatio == 0 {
		c.Video.MarginRatio = 0.1
	}
	if c.Video.Container == "" {
		c.Video.Container = "mp4"
	}
	if c.Video.VideoCodec == "" {
		c.Video.VideoCodec = "libx264"
	}
	if c.Video.AudioCodec == "" {
		c.Video.AudioCodec = "aac"
	}
	if c.Upload.Visibility == "" {
		c.Upload.Visibility = "public"
	}
	if c.Upload.CategoryID == "" {
		c.Upload.CategoryID = "22" // People & Blogs
	}
	if c.Upload.MaxAttempts == 0 {
		c.Upload.MaxAttempts = 2
	}
	if c.Paths.AudioLibrary == "" {
		c.Paths.AudioLibrary = "bg_audio_tracks"
	}
	if c.Paths.Output == "" {
		c.Paths.Output = "output_videos"
	}
	if c.Paths.Logs == "" {
		c.Paths.Logs = "logs"
	}
}

// Validate rejects configs the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Topic.Default == "" && !c.Topic.FromReddit {
		return fmt.Errorf("topic.default is required when topic.from_reddit is off")
	}
	if c.Topic.FromReddit && c.Topic.Subreddit == "" {
		return fmt.Errorf("topic.subreddit is required when topic.from_reddit is on")
	}
	if c.Quote.MaxChars < 10 {
		return fmt.Errorf("quote.max_chars must be at least 10, got %d", c.Quote.MaxChars)
	}
	if c.Video.Width <= 0 || c.Video.Height <= 0 {
		return fmt.Errorf("video resolution %dx%d is invalid", c.Video.Width, c.Video.Height)
	}
	if c.Video.DurationSec <= 0 {
		return fmt.Errorf("video.duration_sec must be positive, got %g", c.Video.DurationSec)
	}
	if c.Video.FontFile == "" {
		return fmt.Errorf("video.font_file is required")
	}
	if c.Video.FontSizeMin > c.Video.FontSizeMax {
		return fmt.Errorf("video.font_size_min %d exceeds font_size_max %d", c.Video.FontSizeMin, c.Video.FontSizeMax)
	}
	if c.Video.MarginRatio < 0 || c.Video.MarginRatio >= 0.5 {
		return fmt.Errorf("video.margin_ratio must be in [0, 0.5), got %g", c.Video.MarginRatio)
	}
	return nil
}

// RenderSpec builds the immutable per-run render target from the config.
func (c *Config) RenderSpec() types.RenderSpec {
	return types.RenderSpec{
		Width:       c.Video.Width,
		Height:      c.Video.Height,
		FPS:         c.Video.FPS,
		DurationSec: c.Video.DurationSec,
		FontFile:    c.Video.FontFile,
		FontColor:   c.Video.FontColor,
		FontSizeMin: c.Video.FontSizeMin,
		FontSizeMax: c.Video.FontSizeMax,
		MarginRatio: c.Video.MarginRatio,
		Container:   c.Video.Container,
		VideoCodec:  c.Video.VideoCodec,
		AudioCodec:  c.Video.AudioCodec,
	}
}
