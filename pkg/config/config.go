package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	"equity-screener/pkg/types"
)

// Load 加载配置：./configs 或当前目录下的 config.local.yaml，其次 config.yaml
func Load() (*types.Config, error) {
	v := newViper()
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// 优先尝试读取本地配置文件
	v.SetConfigName("config.local")
	if err := v.ReadInConfig(); err != nil {
		// 如果本地配置文件不存在，尝试读取默认配置文件
		v.SetConfigName("config")
		if err := v.ReadInConfig(); err != nil {
			var configFileNotFoundError viper.ConfigFileNotFoundError
			if !errors.As(err, &configFileNotFoundError) {
				return nil, err
			}
		}
	}

	return unmarshal(v)
}

// LoadFile 从指定文件加载配置
func LoadFile(path string) (*types.Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	// 设置默认值
	setDefaults(v)

	// 读取环境变量，如 BROKER_SESSION_ID 覆盖 broker.session_id
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*types.Config, error) {
	var config types.Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file_path", "logs")
	v.SetDefault("log.max_size", 200)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.compress", false)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("database.mysql.host", "")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.username", "root")
	v.SetDefault("database.mysql.password", "")
	v.SetDefault("database.mysql.database", "screener")
	v.SetDefault("database.mysql.max_idle_conns", 10)
	v.SetDefault("database.mysql.max_open_conns", 50)

	v.SetDefault("broker.base_url", "https://ant.aliceblueonline.com/rest/AliceBlueAPIService/api/chart/history")
	v.SetDefault("broker.contract_url", "https://v2api.aliceblueonline.com/restpy/contract_master?exch=%s")
	v.SetDefault("broker.user_id", "")
	v.SetDefault("broker.session_id", "")
	v.SetDefault("broker.timeout", 30*time.Second)
	v.SetDefault("broker.proxy", "")

	v.SetDefault("screener.max_concurrency", 50)
	v.SetDefault("screener.batch_size", 0)
	v.SetDefault("screener.interval", "D")
	v.SetDefault("screener.cache_history", true)
	v.SetDefault("screener.result_ttl", 5*time.Minute)
	v.SetDefault("screener.top_n", 20)

	d := types.DefaultStrategyConfig()
	v.SetDefault("strategy.zone.history_days", d.Zone.HistoryDays)
	v.SetDefault("strategy.zone.min_bars", d.Zone.MinBars)
	v.SetDefault("strategy.zone.recent_bars", d.Zone.RecentBars)
	v.SetDefault("strategy.zone.swing_window", d.Zone.SwingWindow)
	v.SetDefault("strategy.zone.cluster_threshold", d.Zone.ClusterThreshold)
	v.SetDefault("strategy.zone.support_min_ratio", d.Zone.SupportMinRatio)
	v.SetDefault("strategy.zone.support_max_ratio", d.Zone.SupportMaxRatio)
	v.SetDefault("strategy.zone.resist_min_ratio", d.Zone.ResistMinRatio)
	v.SetDefault("strategy.zone.resist_max_ratio", d.Zone.ResistMaxRatio)
	v.SetDefault("strategy.zone.volume_ratio", d.Zone.VolumeRatio)
	v.SetDefault("strategy.zone.fast_ema", d.Zone.FastEMA)
	v.SetDefault("strategy.zone.slow_ema", d.Zone.SlowEMA)
	v.SetDefault("strategy.zone.rsi_period", d.Zone.RSIPeriod)
	v.SetDefault("strategy.zone.rsi_lower", d.Zone.RSILower)
	v.SetDefault("strategy.zone.rsi_upper", d.Zone.RSIUpper)

	v.SetDefault("strategy.advanced.history_days", d.Advanced.HistoryDays)
	v.SetDefault("strategy.advanced.min_bars", d.Advanced.MinBars)
	v.SetDefault("strategy.advanced.volume_bins", d.Advanced.VolumeBins)
	v.SetDefault("strategy.advanced.volume_avg_period", d.Advanced.VolumeAvgPeriod)
	v.SetDefault("strategy.advanced.volume_multiplier", d.Advanced.VolumeMultiplier)
	v.SetDefault("strategy.advanced.node_proximity", d.Advanced.NodeProximity)
	v.SetDefault("strategy.advanced.pattern_weight", d.Advanced.PatternWeight)
	v.SetDefault("strategy.advanced.node_weight", d.Advanced.NodeWeight)
	v.SetDefault("strategy.advanced.trend_score", d.Advanced.TrendScore)
	v.SetDefault("strategy.advanced.doji_body_ratio", d.Advanced.DojiBodyRatio)
	v.SetDefault("strategy.advanced.hammer_shadow_ratio", d.Advanced.HammerShadowRatio)

	v.SetDefault("strategy.price_movement.duration_days", d.PriceMovement.DurationDays)
	v.SetDefault("strategy.price_movement.target_percentage", d.PriceMovement.TargetPercentage)
	v.SetDefault("strategy.price_movement.direction", string(d.PriceMovement.Direction))

	v.SetDefault("strategy.market_structure.swing_window", d.MarketStructure.SwingWindow)
	v.SetDefault("strategy.market_structure.swing_count", d.MarketStructure.SwingCount)

	v.SetDefault("schedule.enabled", false)

	v.SetDefault("notifier.dingtalk_webhook", "")
	v.SetDefault("notifier.dingtalk_secret", "")
}
