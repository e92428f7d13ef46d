package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env     string        `yaml:"env" env:"ILLUST_NEST_ENV" env-default:"local"`
	API     APIConfig     `yaml:"api"`
	Session SessionConfig `yaml:"session"`
	Redis   RedisConf     `yaml:"redis"`
	Preview PreviewConfig `yaml:"preview"`
	Listing ListingConfig `yaml:"listing"`
	Export  ExportConfig  `yaml:"export"`
}

type APIConfig struct {
	BaseURL   string        `yaml:"base_url" env:"ILLUST_NEST_BASE_URL" env-required:"true"`
	Timeout   time.Duration `yaml:"timeout" env-default:"30s"`
	RateLimit float64       `yaml:"rate_limit" env-default:"10"` // requests per second, 0 disables
	Burst     int           `yaml:"burst" env-default:"5"`
	// RefreshBefore is how close to expiry a token may get before it is refreshed.
	RefreshBefore time.Duration `yaml:"refresh_before" env-default:"10m"`
}

type SessionConfig struct {
	Backend string `yaml:"backend" env-default:"file"` // file | redis
	Path    string `yaml:"path" env-default:".illust_nest/session.json"`
	Key     string `yaml:"key" env-default:"default"`
}

type RedisConf struct {
	RedisAddr     string `yaml:"redis_addr" env-default:"localhost:6379"`
	RedisPassword string `yaml:"redispassword"`
	RedisDB       int    `yaml:"redis_db"`
}

type PreviewConfig struct {
	Host      string        `yaml:"host" env-default:"127.0.0.1"`
	Port      string        `yaml:"port" env-default:"8088"`
	HandleTTL time.Duration `yaml:"handle_ttl" env-default:"0s"`
}

type ListingConfig struct {
	PageSize int `yaml:"page_size" env-default:"20"`
}

type ExportConfig struct {
	Dir string   `yaml:"dir" env-default:"exports"`
	S3  S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket" env:"ILLUST_NEST_S3_BUCKET"`
	Region          string `yaml:"region" env:"ILLUST_NEST_S3_REGION"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id" env:"ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"SECRET_ACCESS_KEY"`
	Prefix          string `yaml:"prefix" env-default:"exports/"`
}

func MustLoad() *Config {
	path := fetchConfigPath()
	if path == "" {
		panic("config path is empty")
	}

	return MustLoadPath(path)
}

func MustLoadPath(configPath string) *Config {
	cfg, err := LoadPath(configPath)
	if err != nil {
		panic(err.Error())
	}

	return cfg
}

// LoadPath is the non-panicking variant used by tests.
func LoadPath(configPath string) (*Config, error) {
	// check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, &os.PathError{Op: "config", Path: configPath, Err: os.ErrNotExist}
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func fetchConfigPath() string {
	var res string

	// --config="path/to/config.yaml"
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.StringVar(&res, "config", "", "path to config file")
	_ = fs.Parse(configArgs(os.Args[1:]))

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}

// configArgs picks the --config flag out of the argument list so subcommand
// flags are left for the command parsers.
func configArgs(args []string) []string {
	for i, a := range args {
		switch {
		case a == "--config" || a == "-config":
			if i+1 < len(args) {
				return []string{a, args[i+1]}
			}
		case strings.HasPrefix(a, "--config=") || strings.HasPrefix(a, "-config="):
			return []string{a}
		}
	}

	return nil
}

// CommandArgs returns args without the --config flag and its value.
func CommandArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--config" || a == "-config":
			i++
		case strings.HasPrefix(a, "--config=") || strings.HasPrefix(a, "-config="):
		default:
			out = append(out, a)
		}
	}

	return out
}
