package main

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// config holds usbls's resolved settings: flags win over
// USBLS_-prefixed environment variables, which win over an optional
// config file, which wins over the flag defaults.
type config struct {
	VendorID   string `mapstructure:"vid"`
	ProductID  string `mapstructure:"pid"`
	Open       bool   `mapstructure:"open"`
	JSON       bool   `mapstructure:"json"`
	Verbose    bool   `mapstructure:"verbose"`
	CPUProfile string `mapstructure:"cpuprofile"`
}

// loadConfig defines the flag set, binds it into viper alongside an
// optional config file and environment overrides, and decodes the
// result into a config.
func loadConfig() (*config, error) {
	cfgFile := flag.String("config", "", "Path to an optional usbls config file (yaml)")
	flag.String("vid", "", "Filter by vendor ID (hex, e.g. 046d)")
	flag.String("pid", "", "Filter by product ID (hex, e.g. c52b)")
	flag.Bool("open", false, "Open the first matching device and run a GET_DESCRIPTOR control transfer")
	flag.Bool("json", false, "Emit logs as JSON")
	flag.Bool("verbose", false, "Enable debug-level logging")
	flag.String("cpuprofile", "", "Write a CPU profile to this path (requires building with -tags profile)")
	flag.Parse()

	if err := viper.BindPFlags(flag.CommandLine); err != nil {
		return nil, fmt.Errorf("usbls: bind flags: %w", err)
	}

	if *cfgFile != "" {
		viper.SetConfigFile(*cfgFile)
	} else {
		viper.SetConfigName("usbls")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/usbls/")
	}

	viper.SetEnvPrefix("usbls")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("usbls: read config file: %w", err)
		}
	}

	var cfg config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &cfg,
		TagName: "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("usbls: build decoder: %w", err)
	}
	if err := decoder.Decode(viper.AllSettings()); err != nil {
		return nil, fmt.Errorf("usbls: decode config: %w", err)
	}
	return &cfg, nil
}
