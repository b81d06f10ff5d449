// Package config builds the cobra command and viper-backed flag set the
// server boots from. Grounded on _examples/Seednode-partybox/config.go's
// cobra+viper+pflag wiring, adapted from a single-process party-game server's
// flags to this server's db/redis/auth surface.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every flag/env-derived setting the server needs to boot.
type Config struct {
	Bind            string
	Port            int
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	DBDriver        string
	MySQLDSN        string
	SQLitePath      string
	JWTSecret       string
	ReconnectGrace  time.Duration
	Verbose         bool
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	switch c.DBDriver {
	case "mysql":
		if c.MySQLDSN == "" {
			return fmt.Errorf("--db-driver=mysql requires --mysql-dsn")
		}
	case "sqlite":
	default:
		return fmt.Errorf("unknown --db-driver %q (must be mysql or sqlite)", c.DBDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("--jwt-secret is required")
	}
	if c.ReconnectGrace <= 0 {
		return fmt.Errorf("--reconnect-grace must be positive")
	}
	return nil
}

// NewCommand builds the root cobra command. run is invoked once flags are
// parsed and validated, with the resolved Config and the command's context.
func NewCommand(run func(ctx *cobra.Command, cfg *Config) error) *cobra.Command {
	godotenv.Load()

	cfg := &Config{}
	v := viper.New()
	v.SetEnvPrefix("HEARTS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "hearts-server",
		Short:         "Serves Hearts table sessions over WebSocket.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return run(cmd, cfg)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&cfg.Bind, "bind", "0.0.0.0", "address to bind to (env: HEARTS_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: HEARTS_PORT)")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", "localhost:6379", "redis address backing the session store and table lock (env: HEARTS_REDIS_ADDR)")
	fs.StringVar(&cfg.RedisPassword, "redis-password", "", "redis auth password (env: HEARTS_REDIS_PASSWORD)")
	fs.IntVar(&cfg.RedisDB, "redis-db", 0, "redis logical db index (env: HEARTS_REDIS_DB)")
	fs.StringVar(&cfg.DBDriver, "db-driver", "sqlite", "relational db driver: mysql or sqlite (env: HEARTS_DB_DRIVER)")
	fs.StringVar(&cfg.MySQLDSN, "mysql-dsn", "", "mysql DSN, required when --db-driver=mysql (env: HEARTS_MYSQL_DSN)")
	fs.StringVar(&cfg.SQLitePath, "sqlite-path", "hearts.db", "sqlite file path, used when --db-driver=sqlite (env: HEARTS_SQLITE_PATH)")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", "", "HMAC secret the external authenticator signs tokens with (env: HEARTS_JWT_SECRET)")
	fs.DurationVar(&cfg.ReconnectGrace, "reconnect-grace", 60*time.Second, "how long a table's in-memory coordinator survives with no live connections (env: HEARTS_RECONNECT_GRACE)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "display additional output (env: HEARTS_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	return cmd
}
