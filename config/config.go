// Package config loads gostatsd's settings: defaults, overridden by an
// INI file, overridden by command-line flags, exactly the two-tier
// precedence order spec.md §6 describes. Grounded on
// cmd/hekad/config.go's defaults-struct-then-decode shape, translated
// from that file's github.com/bbangert/toml onto
// github.com/spf13/viper (INI, since spec.md names INI rather than TOML)
// and github.com/spf13/pflag for flag binding.
package config

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/bicycleday/gostatsd/processor"
)

// Config is every setting named in spec.md §6, flattened into one
// struct for the CLI layer to consume.
type Config struct {
	ListenAddr            string
	FlushInterval         time.Duration
	PercentThreshold      int
	CarbonAddr            string
	MessagePrefix         string
	InternalMetricsPrefix string
	LegacyNamespace       bool
	DeleteIdleCounters    bool
	LightweightMode       bool
	DeltaGauges           bool
	MonitorMessage        string
	MonitorResponse       string
	StatCollectorInterval time.Duration
	MetricsAddr           string
	RedisAddr             string
}

// Defaults matches LoadHekadConfig's defaulted struct literal: every
// field that isn't overridden by file or flag gets a documented,
// operationally sane value.
func Defaults() Config {
	return Config{
		ListenAddr:            "0.0.0.0:8125",
		FlushInterval:         10 * time.Second,
		PercentThreshold:      90,
		CarbonAddr:            "127.0.0.1:2003",
		MessagePrefix:         "stats",
		InternalMetricsPrefix: "statsd.",
		LegacyNamespace:       true,
		DeleteIdleCounters:    false,
		LightweightMode:       false,
		DeltaGauges:           false,
		MonitorMessage:        "",
		MonitorResponse:       "",
		StatCollectorInterval: 60 * time.Second,
		MetricsAddr:           "127.0.0.1:9102",
		RedisAddr:             "127.0.0.1:6379",
	}
}

// Load builds the layered config: Defaults(), then configFile's [statsd]
// section (skipped entirely if path is empty), then flags (any
// pflag.FlagSet already parsed by the caller's cobra command). An empty
// configFile path is not an error; a configFile path that cannot be read
// is. Matches the original's ConfigParser convention of a single
// named "statsd" section (original_source/txstatsd/tests/test_service.py's
// config.add_section('statsd')) rather than an unsectioned/DEFAULT file:
// viper's INI codec nests a named section's keys under that section's
// name, so they're read here via a scoped sub-tree, not the root keys.
func Load(configFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetConfigType("ini")
	bindDefaults(v, Defaults())

	if configFile != "" {
		fileViper := viper.New()
		fileViper.SetConfigType("ini")
		fileViper.SetConfigFile(configFile)
		if err := fileViper.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", configFile, err)
		}
		section := fileViper.Sub("statsd")
		if section == nil {
			return Config{}, fmt.Errorf("config: %s: missing required [statsd] section", configFile)
		}
		if err := v.MergeConfigMap(section.AllSettings()); err != nil {
			return Config{}, fmt.Errorf("config: merging %s: %w", configFile, err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("config: binding flags: %w", err)
		}
	}

	return Config{
		ListenAddr:            v.GetString("listen-addr"),
		FlushInterval:         v.GetDuration("flush-interval"),
		PercentThreshold:      v.GetInt("percent-threshold"),
		CarbonAddr:            v.GetString("carbon-addr"),
		MessagePrefix:         v.GetString("message-prefix"),
		InternalMetricsPrefix: v.GetString("internal-metrics-prefix"),
		LegacyNamespace:       v.GetBool("legacy-namespace"),
		DeleteIdleCounters:    v.GetBool("delete-idle-counters"),
		LightweightMode:       v.GetBool("lightweight-mode"),
		DeltaGauges:           v.GetBool("delta-gauges"),
		MonitorMessage:        v.GetString("monitor-message"),
		MonitorResponse:       v.GetString("monitor-response"),
		StatCollectorInterval: v.GetDuration("stat-collector-interval"),
		MetricsAddr:           v.GetString("metrics-addr"),
		RedisAddr:             v.GetString("redis-addr"),
	}, nil
}

// WatchAndReload re-invokes onChange with a freshly loaded Config every
// time configFile changes on disk (viper.WatchConfig, backed
// transitively by github.com/fsnotify/fsnotify). Applying the new Config
// is left to onChange; cmd/statsd-server does not call WatchAndReload, so
// a running server keeps the settings it started with. A no-op if
// configFile is empty.
func WatchAndReload(configFile string, flags *pflag.FlagSet, onChange func(Config)) error {
	if configFile == "" {
		return nil
	}
	v := viper.New()
	v.SetConfigType("ini")
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: reading %s: %w", configFile, err)
	}
	v.WatchConfig()
	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := Load(configFile, flags)
		if err != nil {
			return
		}
		onChange(cfg)
	})
	return nil
}

func bindDefaults(v *viper.Viper, d Config) {
	v.SetDefault("listen-addr", d.ListenAddr)
	v.SetDefault("flush-interval", d.FlushInterval)
	v.SetDefault("percent-threshold", d.PercentThreshold)
	v.SetDefault("carbon-addr", d.CarbonAddr)
	v.SetDefault("message-prefix", d.MessagePrefix)
	v.SetDefault("internal-metrics-prefix", d.InternalMetricsPrefix)
	v.SetDefault("legacy-namespace", d.LegacyNamespace)
	v.SetDefault("delete-idle-counters", d.DeleteIdleCounters)
	v.SetDefault("lightweight-mode", d.LightweightMode)
	v.SetDefault("delta-gauges", d.DeltaGauges)
	v.SetDefault("monitor-message", d.MonitorMessage)
	v.SetDefault("monitor-response", d.MonitorResponse)
	v.SetDefault("stat-collector-interval", d.StatCollectorInterval)
	v.SetDefault("metrics-addr", d.MetricsAddr)
	v.SetDefault("redis-addr", d.RedisAddr)
}

// ProcessorConfig translates the flat Config into a processor.Config,
// the shape Processor.New expects.
func (c Config) ProcessorConfig() processor.Config {
	ns := processor.ConfigurableNamespace
	if c.LegacyNamespace {
		ns = processor.LegacyNamespace
	}
	return processor.Config{
		Namespace:             ns,
		MessagePrefix:         c.MessagePrefix,
		InternalMetricsPrefix: c.InternalMetricsPrefix,
		DeleteIdleCounters:    c.DeleteIdleCounters,
		LightweightMode:       c.LightweightMode,
		PercentThreshold:      c.PercentThreshold,
		FlushIntervalMillis:   c.FlushInterval.Milliseconds(),
		DeltaGauges:           c.DeltaGauges,
	}
}

// RegisterFlags adds every setting in Defaults() to flags as a pflag, so
// a cobra command's flag set can be passed straight to Load.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Defaults()
	flags.String("listen-addr", d.ListenAddr, "UDP address to listen for StatsD datagrams on")
	flags.Duration("flush-interval", d.FlushInterval, "interval between Graphite flushes")
	flags.Int("percent-threshold", d.PercentThreshold, "percentile used for the timer trimmed mean and upper_N")
	flags.String("carbon-addr", d.CarbonAddr, "TCP address of the downstream Graphite/carbon endpoint")
	flags.String("message-prefix", d.MessagePrefix, "metric path root used in configurable-namespace mode")
	flags.String("internal-metrics-prefix", d.InternalMetricsPrefix, "metric path root for self metrics in configurable-namespace mode")
	flags.Bool("legacy-namespace", d.LegacyNamespace, "use the legacy stats./stats_counts./stats.timers. layout")
	flags.Bool("delete-idle-counters", d.DeleteIdleCounters, "drop a counter's key entirely once it has gone a flush with no events, instead of reporting zero")
	flags.Bool("lightweight-mode", d.LightweightMode, "suppress per-sample-rate and count fields to shrink the rendered batch")
	flags.Bool("delta-gauges", d.DeltaGauges, "treat a leading +/- on a gauge value as a delta against the last reported value")
	flags.String("monitor-message", d.MonitorMessage, "exact datagram payload that triggers a monitor-ping reply instead of ingest")
	flags.String("monitor-response", d.MonitorResponse, "payload sent back for a monitor ping")
	flags.Duration("stat-collector-interval", d.StatCollectorInterval, "interval between host/self stat collection samples")
	flags.String("metrics-addr", d.MetricsAddr, "address to serve the internal Prometheus /metrics endpoint on")
	flags.String("redis-addr", d.RedisAddr, "address of the Redis backend used by the set-metric plugin")
}
