package config

import "github.com/spf13/viper"

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 15)
	v.SetDefault("server.writeTimeout", 15)

	// Collaboration
	v.SetDefault("collab.saveDebounceMs", 2000)
	v.SetDefault("collab.sendBufferSize", 256)
	v.SetDefault("collab.shutdownTimeout", 10)
}
