package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	CONFIG_FILE = "ctfdump.yaml"
	ENV_FILE    = ".env"
)

// Config is the optional ctfdump.yaml, completed from the environment.
type Config struct {
	Url          string            `yaml:"url"`
	Username     string            `yaml:"username"`
	Password     string            `yaml:"password"`
	NoLogin      bool              `yaml:"no_login"`
	Cookies      map[string]string `yaml:"cookies"`
	Output       string            `yaml:"output"`
	Workers      int               `yaml:"workers"`
	Timeout      time.Duration     `yaml:"timeout"`
	Insecure     bool              `yaml:"insecure"`
	SkipExisting bool              `yaml:"skip_existing"`
}

func Default() *Config {
	return &Config{
		Output:  ".",
		Workers: 4,
		Timeout: 2 * time.Minute,
	}
}

// Load reads confPath, or ctfdump.yaml in the working directory when
// confPath is empty. A missing default file is not an error. Values the
// file leaves blank are taken from .env and the environment; credentials
// from the environment are left to the creds package.
func Load(confPath string) (*Config, error) {
	config := Default()

	explicit := confPath != ""
	if !explicit {
		dir, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		confPath = filepath.Join(dir, CONFIG_FILE)
	}
	if err := ParseYamlFromFile(confPath, config); err != nil {
		if explicit || !os.IsNotExist(err) {
			return nil, err
		}
	}

	_ = godotenv.Load(ENV_FILE)
	config.applyEnv()
	return config, nil
}

func (c *Config) applyEnv() {
	if c.Url == "" {
		c.Url = os.Getenv("CTF_URL")
	}
	if !c.NoLogin {
		if v, err := strconv.ParseBool(os.Getenv("CTF_NO_LOGIN")); err == nil {
			c.NoLogin = v
		}
	}
}

func ParseYamlFromFile(confPath string, data any) error {
	b, err := os.ReadFile(confPath)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, data); err != nil {
		return fmt.Errorf("error unmarshal yaml %s: %w", confPath, err)
	}
	return nil
}
