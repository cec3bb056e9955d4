// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "jalscan")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "jalscan.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 1048576)

	viper.SetDefault("risk.artifactpath", "")
	viper.SetDefault("risk.inferencetimeout", "5s")
	viper.SetDefault("risk.topfactors", 6)
	viper.SetDefault("risk.horizonhours", 6)

	viper.SetDefault("features.windowshours", []int{1, 3, 6, 12, 24})
	viper.SetDefault("features.monsoonmonths", []int{6, 7, 8, 9})
	viper.SetDefault("features.deltatolerance", "45m")

	viper.SetDefault("vision.roi.bottomfraction", 0.5)
	viper.SetDefault("vision.roi.centerfraction", 0.5)
	viper.SetDefault("vision.flow.still", 2.0)
	viper.SetDefault("vision.flow.low", 8.0)
	viper.SetDefault("vision.flow.moderate", 20.0)
	viper.SetDefault("vision.flow.high", 40.0)
	viper.SetDefault("vision.textureflow.still", 0.5)
	viper.SetDefault("vision.textureflow.low", 1.5)
	viper.SetDefault("vision.textureflow.moderate", 3.0)
	viper.SetDefault("vision.textureflow.high", 5.0)
	viper.SetDefault("vision.erosion.stablessim", 0.95)
	viper.SetDefault("vision.erosion.minorssim", 0.85)

	viper.SetDefault("anomaly.weights.rapidrise", 0.4)
	viper.SetDefault("anomaly.weights.rapidfall", 0.35)
	viper.SetDefault("anomaly.weights.colorchange", 0.3)
	viper.SetDefault("anomaly.weights.flowspike", 0.3)
	viper.SetDefault("anomaly.weights.combinedalert", 0.6)
	viper.SetDefault("anomaly.thresholds.risedelta1h", 30.0)
	viper.SetDefault("anomaly.thresholds.risedelta3h", 50.0)
	viper.SetDefault("anomaly.thresholds.falldelta1h", 30.0)
	viper.SetDefault("anomaly.thresholds.colorindex", 0.3)
	viper.SetDefault("anomaly.thresholds.turbulencejump", 40.0)
	viper.SetDefault("anomaly.emitthreshold", 0.3)

	viper.SetDefault("tamper.enabled", true)

	viper.SetDefault("realtime.interval", 300)
	viper.SetDefault("realtime.mqtt.enabled", false)
	viper.SetDefault("realtime.mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("realtime.mqtt.topic", "jalscan")
	viper.SetDefault("realtime.mqtt.username", "")
	viper.SetDefault("realtime.mqtt.password", "")
	viper.SetDefault("realtime.mqtt.retain", false)
	viper.SetDefault("realtime.telemetry.enabled", false)
	viper.SetDefault("realtime.telemetry.listen", "0.0.0.0:8090")

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "jalscan.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "jalscan")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.database", "jalscan")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
}
