package config

// Config 配置主体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	DB        DBConfig        `mapstructure:"database"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Logstash  LogstashConfig  `mapstructure:"logstash"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Support   SupportConfig   `mapstructure:"support"`
}

// ServerConfig Server 配置
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DBConfig 数据库配置
type DBConfig struct {
	DSN         string `mapstructure:"dsn"`
	MaxIdle     int    `mapstructure:"max_idle"`
	MaxOpen     int    `mapstructure:"max_open"`
	MaxLifetime int    `mapstructure:"max_lifetime"`
}

// MongoConfig 消息明细库配置
type MongoConfig struct {
	URL      string `mapstructure:"url"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type KafkaConfig struct {
	Brokers           []string   `mapstructure:"brokers"`
	NotificationTopic string     `mapstructure:"notification_topic"`
	Sasl              SaslConfig `mapstructure:"sasl"`
}

type SaslConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// LogstashConfig 远端日志配置，Address 为空则只写标准输出
type LogstashConfig struct {
	Address string `mapstructure:"address"`
	Index   string `mapstructure:"index"`
	Token   string `mapstructure:"token"`
}

// DirectoryConfig 账号目录服务配置，用于解析用户展示信息
type DirectoryConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"` // 秒
}

// SupportConfig 客服排队配置
type SupportConfig struct {
	ReminderCron      string `mapstructure:"reminder_cron"`       // 待认领提醒的调度表达式
	ReminderAfterMins int    `mapstructure:"reminder_after_mins"` // 等待超过该分钟数才提醒
}
