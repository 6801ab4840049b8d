// SPDX-License-Identifier: MIT

package config

// Masked returns a copy of cfg that is safe to log.
func (cfg AppConfig) Masked() AppConfig {
	out := cfg
	mask := func(s *string) {
		if *s != "" {
			*s = "***"
		}
	}
	mask(&out.Device.Password)
	mask(&out.MQTT.Password)
	mask(&out.Cache.RedisPassword)
	out.Sync.ImageExt = append([]string(nil), cfg.Sync.ImageExt...)
	out.Sync.VideoExt = append([]string(nil), cfg.Sync.VideoExt...)
	return out
}
