package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Pricing PricingConfig `mapstructure:"pricing"`
	Kiosk   KioskConfig   `mapstructure:"kiosk"`
	Camera  CameraConfig  `mapstructure:"camera"`
	HID     HIDConfig     `mapstructure:"hid"`
}

type ServerConfig struct {
	Port int `mapstructure:"port" validate:"min=1,max=65535"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

type PricingConfig struct {
	// APIBase may be empty; every resolution then fails without network access.
	APIBase string        `mapstructure:"api_base" validate:"omitempty,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type KioskConfig struct {
	ResultReset          time.Duration `mapstructure:"result_reset" validate:"gt=0"`
	ErrorReset           time.Duration `mapstructure:"error_reset" validate:"gt=0"`
	RestartDelay         time.Duration `mapstructure:"restart_delay" validate:"gte=0"`
	Locale               string        `mapstructure:"locale" validate:"required"`
	Currency             string        `mapstructure:"currency" validate:"len=3"`
	DefaultProductName   string        `mapstructure:"default_product_name" validate:"required"`
	PriceNotFoundMessage string        `mapstructure:"price_not_found_message" validate:"required"`
	ViewportWidth        int           `mapstructure:"viewport_width" validate:"gt=0"`
	ViewportHeight       int           `mapstructure:"viewport_height" validate:"gt=0"`
}

type CameraConfig struct {
	DeviceGlob  string        `mapstructure:"device_glob" validate:"required"`
	Device      string        `mapstructure:"device"`
	Command     string        `mapstructure:"command" validate:"required"`
	Args        []string      `mapstructure:"args"`
	FPS         int           `mapstructure:"fps" validate:"gt=0"`
	FacingMode  string        `mapstructure:"facing_mode"`
	StartSettle time.Duration `mapstructure:"start_settle" validate:"gte=0"`
}

type HIDConfig struct {
	Device  string `mapstructure:"device"`
	Charset string `mapstructure:"charset"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../configs")
	v.AddConfigPath("../../configs")

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")

	// Keys without a default are invisible to AutomaticEnv during Unmarshal.
	v.SetDefault("pricing.api_base", "")
	v.SetDefault("pricing.timeout", 10*time.Second)

	v.SetDefault("kiosk.result_reset", 7*time.Second)
	v.SetDefault("kiosk.error_reset", 2500*time.Millisecond)
	v.SetDefault("kiosk.restart_delay", 300*time.Millisecond)
	v.SetDefault("kiosk.locale", "es-AR")
	v.SetDefault("kiosk.currency", "ARS")
	v.SetDefault("kiosk.default_product_name", "Producto")
	v.SetDefault("kiosk.price_not_found_message", "Price not found. Please ask an attendant.")
	v.SetDefault("kiosk.viewport_width", 800)
	v.SetDefault("kiosk.viewport_height", 600)

	v.SetDefault("camera.device_glob", "/dev/video*")
	v.SetDefault("camera.device", "")
	v.SetDefault("camera.command", "zbarcam")
	v.SetDefault("camera.args", []string{"--raw", "--nodisplay", "--quiet", "{device}"})
	v.SetDefault("camera.fps", 10)
	v.SetDefault("camera.facing_mode", "environment")
	v.SetDefault("camera.start_settle", 500*time.Millisecond)

	v.SetDefault("hid.device", "")
	v.SetDefault("hid.charset", "windows-1252")
}
