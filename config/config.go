package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type AppConfig struct {
	App struct {
		Name string `mapstructure:"NAME"`
		Port string `mapstructure:"PORT"`
	}

	DATABASE struct {
		Postgres struct {
			DSN string `mapstructure:"URL"`
		}
		Redis struct {
			Addr     string `mapstructure:"ADDR"`
			Password string `mapstructure:"PASSWORD"`
		}
		Mongo struct {
			Url      string `mapstructure:"URL"`
			Database string `mapstructure:"DATABASE"`
		}
	}

	JWT struct {
		PrivateKeyPath string `mapstructure:"PRIVATE_KEY_PATH"`
		PublicKeyPath  string `mapstructure:"PUBLIC_KEY_PATH"`
	}

	UPLOADS struct {
		Dir     string `mapstructure:"DIR"`
		BaseURL string `mapstructure:"BASE_URL"`
	}
}

var Conf *AppConfig

func LoadConfig() error {
	viper.SetConfigName("application")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("CHATAPP")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("JWT.PRIVATE_KEY_PATH", "private.pem")
	viper.SetDefault("JWT.PUBLIC_KEY_PATH", "public.pem")
	viper.SetDefault("UPLOADS.DIR", "./uploads")
	viper.SetDefault("UPLOADS.BASE_URL", "/uploads")
	viper.SetDefault("DATABASE.MONGO.DATABASE", "chat_db")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	var config AppConfig
	if err := viper.Unmarshal(&config); err != nil {
		return fmt.Errorf("error unmarshalling config: %w", err)
	}

	Conf = &config
	log.Info().Msg("configuration loaded...")
	return nil
}
