package util

import (
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of the inspected environment variables.
const EnvPrefix = "SDR" // StatsD Relay

// InitViper sets up environment variable handling on top of the loaded config file.
// A file key like "dns_refresh_interval" can be overridden with SDR_DNS_REFRESH_INTERVAL.
func InitViper(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.SetEnvPrefix(EnvPrefix)
	v.SetTypeByDefaultValue(true)
	v.AutomaticEnv()
}
