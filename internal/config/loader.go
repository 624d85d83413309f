package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/rpattn/equipreg/internal/db"
)

// Config holds everything the server binary needs.
type Config struct {
	Database db.Config
	Server   ServerConfig
	Import   ImportConfig
	Export   ExportConfig
}

type ServerConfig struct {
	Addr           string
	MigrationsPath string
}

type ImportConfig struct {
	// BackgroundThreshold is the row count above which an import is flagged
	// as a background-sized run.
	BackgroundThreshold int
}

type ExportConfig struct {
	// RowLimit caps export size when the request does not set its own limit.
	// Zero means unlimited.
	RowLimit int
}

func Default() Config {
	return Config{
		Database: db.DefaultConfig(),
		Server: ServerConfig{
			Addr:           ":8080",
			MigrationsPath: "migrations",
		},
		Import: ImportConfig{
			BackgroundThreshold: 500,
		},
		Export: ExportConfig{},
	}
}

// Load reads config.yaml from configPath, with environment overrides under
// the EQUIPREG prefix (EQUIPREG_DATABASE_HOST and friends). Missing file is
// fine, defaults plus env apply.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("EQUIPREG")

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("server.addr")
	v.BindEnv("server.migrations_path")
	v.BindEnv("import.background_threshold")
	v.BindEnv("export.row_limit")

	if err := v.ReadInConfig(); err != nil {
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.migrations_path") {
		cfg.Server.MigrationsPath = v.GetString("server.migrations_path")
	}
	if v.IsSet("import.background_threshold") {
		cfg.Import.BackgroundThreshold = v.GetInt("import.background_threshold")
	}
	if v.IsSet("export.row_limit") {
		cfg.Export.RowLimit = v.GetInt("export.row_limit")
	}

	return cfg, nil
}
