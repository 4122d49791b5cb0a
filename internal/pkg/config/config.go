package config

import (
	"os"
	"time"

	"github.com/ardanlabs/conf"
	"github.com/pkg/errors"
)

// Namespace prefixes every environment variable, e.g. ATTENDANCE_DB_HOST.
const Namespace = "ATTENDANCE"

type Config struct {
	conf.Version
	Args       conf.Args
	ConfigFile string `conf:"default:config.yaml"`
	Web        struct {
		Host            string        `conf:"default:0.0.0.0:8080"`
		ReadTimeout     time.Duration `conf:"default:10s"`
		WriteTimeout    time.Duration `conf:"default:30s"`
		ShutdownTimeout time.Duration `conf:"default:10s"`
		MediaDir        string        `conf:"default:./media"`
		AllowedOrigins  []string      `conf:"default:http://localhost:3000"`
	}
	DB struct {
		User        string        `conf:"default:postgres"`
		Password    string        `conf:"default:postgres,noprint"`
		Host        string        `conf:"default:localhost:5432"`
		Name        string        `conf:"default:attendance"`
		DisableTLS  bool          `conf:"default:true"`
		Debug       bool          `conf:"default:false"`
		LockTimeout time.Duration `conf:"default:2s"`
	}
	Redis struct {
		Addr     string `conf:"default:localhost:6379"`
		Password string `conf:"noprint"`
		DB       int    `conf:"default:0"`
		Disabled bool   `conf:"default:false"`
	}
	Auth struct {
		JWTKey   string        `conf:"default:change-me-in-production,noprint"`
		TokenTTL time.Duration `conf:"default:12h"`
	}
	Checkin struct {
		FuzzyCardBind bool          `conf:"default:false"`
		SnapshotTTL   time.Duration `conf:"default:10m"`
	}
}

// NewConfig builds the configuration. Precedence, lowest first: defaults,
// the yaml file named by ConfigFile (when it exists), environment, flags.
// conf.ErrHelpWanted and conf.ErrVersionWanted are returned untouched.
func NewConfig(args []string) (*Config, error) {
	var c Config
	c.Version.SVN = "develop"
	c.Version.Desc = "event attendance service"

	if err := conf.Parse(args, Namespace, &c); err != nil {
		return nil, err
	}

	if c.ConfigFile != "" {
		yamlFile, err := os.ReadFile(c.ConfigFile)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, errors.Wrapf(err, "reading %s", c.ConfigFile)
		default:
			src, err := newYAMLSource(yamlFile)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing %s", c.ConfigFile)
			}
			if err := conf.Parse(args, Namespace, &c, src); err != nil {
				return nil, err
			}
		}
	}

	if c.DB.User == "" || c.DB.Host == "" || c.DB.Name == "" {
		return nil, errors.New("missing required database configuration")
	}

	return &c, nil
}

// Usage renders the flag and env help text.
func Usage(c *Config) (string, error) {
	return conf.Usage(Namespace, c)
}

// VersionString renders the build version.
func VersionString(c *Config) (string, error) {
	return conf.VersionString(Namespace, c)
}

// String renders the effective configuration with secrets left out.
func String(c *Config) (string, error) {
	return conf.String(c)
}
