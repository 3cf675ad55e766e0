package types

import "time"

// Config 主配置结构
type Config struct {
	Log      LogConfig                      `mapstructure:"log"`
	Redis    RedisConfig                    `mapstructure:"redis"`
	Database DatabaseConfig                 `mapstructure:"database"`
	Broker   BrokerConfig                   `mapstructure:"broker"`
	Screener ScreenerConfig                 `mapstructure:"screener"`
	Strategy StrategyConfig                 `mapstructure:"strategy"`
	Schedule ScheduleConfig                 `mapstructure:"schedule"`
	Notifier NotifierConfig                 `mapstructure:"notifier"`
	Universe map[string]map[string][]string `mapstructure:"universe"` // 静态股票池：交易所 -> 股票池名称 -> token列表
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // 日志级别
	FilePath   string `mapstructure:"file_path"`   // 日志输出目录
	MaxSize    int    `mapstructure:"max_size"`    // 日志文件大小 单位：MB，超限后会自动切割
	MaxAge     int    `mapstructure:"max_age"`     // 日志文件存放时间 单位：天
	MaxBackups int    `mapstructure:"max_backups"` // 日志文件备份数量
	Compress   bool   `mapstructure:"compress"`    // 日志文件压缩
}

// RedisConfig Redis配置
type RedisConfig struct {
	URL      string `mapstructure:"url"` // 为空时只使用内存缓存
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
}

// MySQLConfig MySQL配置
type MySQLConfig struct {
	Host         string `mapstructure:"host"` // 为空时使用配置文件中的静态股票池
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// BrokerConfig 券商接口配置
type BrokerConfig struct {
	BaseURL     string        `mapstructure:"base_url"`     // 历史K线接口
	ContractURL string        `mapstructure:"contract_url"` // 合约主数据下载地址，%s 为交易所
	UserID      string        `mapstructure:"user_id"`
	SessionID   string        `mapstructure:"session_id"`
	Timeout     time.Duration `mapstructure:"timeout"` // 网络超时时间
	Proxy       string        `mapstructure:"proxy"`   // HTTP代理地址，如 http://127.0.0.1:7890
}

// ScreenerConfig 筛选引擎配置
type ScreenerConfig struct {
	MaxConcurrency int           `mapstructure:"max_concurrency"` // 并发上限，默认50
	BatchSize      int           `mapstructure:"batch_size"`      // 分批大小，0表示不分批
	Interval       string        `mapstructure:"interval"`        // K线周期，默认 D
	CacheHistory   bool          `mapstructure:"cache_history"`   // 进程内缓存历史K线
	ResultTTL      time.Duration `mapstructure:"result_ttl"`      // 结果缓存有效期，默认5分钟
	TopN           int           `mapstructure:"top_n"`           // 控制台输出条数
}

// ScheduleConfig 定时筛选配置
type ScheduleConfig struct {
	Enabled bool           `mapstructure:"enabled"`
	Jobs    []ScheduledJob `mapstructure:"jobs"`
}

// ScheduledJob 定时筛选任务
type ScheduledJob struct {
	Name     string               `mapstructure:"name"`
	Cron     string               `mapstructure:"cron"` // 标准5段cron表达式
	Exchange string               `mapstructure:"exchange"`
	List     string               `mapstructure:"list"` // 股票池名称
	Strategy string               `mapstructure:"strategy"`
	Params   *PriceMovementParams `mapstructure:"params"`
}

// NotifierConfig 通知配置
type NotifierConfig struct {
	DingTalkWebhook string `mapstructure:"dingtalk_webhook"` // 为空时只输出到控制台
	DingTalkSecret  string `mapstructure:"dingtalk_secret"`  // 加签密钥
}
