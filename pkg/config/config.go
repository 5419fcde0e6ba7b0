package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Store     StoreConfig     `mapstructure:"store"`
	DB        DBConfig        `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Events    EventsConfig    `mapstructure:"events"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
}

// ChainConfig 合约所在链的节点与确认参数
type ChainConfig struct {
	RpcUrl          string        `mapstructure:"rpc_url"`
	ContractAddress string        `mapstructure:"contract_address"`
	AbiPath         string        `mapstructure:"abi_path"`         // 为空时使用内置 ABI
	ConfirmInterval time.Duration `mapstructure:"confirm_interval"` // 回执查询间隔
	ConfirmTimeout  time.Duration `mapstructure:"confirm_timeout"`  // 0 表示一直等待
}

type WalletConfig struct {
	Provider       string `mapstructure:"provider"` // local | rpc | none
	RpcUrl         string `mapstructure:"rpc_url"`  // provider=rpc 时的钱包 JSON-RPC 地址
	KeystorePath   string `mapstructure:"keystore_path"`
	Password       string `mapstructure:"password"` // 通常通过环境变量 WALLET_PASSWORD 传入
	Mnemonic       string `mapstructure:"mnemonic"` // 仅开发环境
	PrivateKey     string `mapstructure:"private_key"`
	DerivationPath string `mapstructure:"derivation_path"`
	AutoApprove    bool   `mapstructure:"auto_approve"`
}

// StoreConfig 持久化计数器的存储后端
type StoreConfig struct {
	Type string `mapstructure:"type"` // badger | sqlite | redis | postgres | memory
	Path string `mapstructure:"path"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

type EventsConfig struct {
	Type  string `mapstructure:"type"` // none | redis | kafka
	Topic string `mapstructure:"topic"`
}

type TelemetryConfig struct {
	OtlpEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

var Global Config

// Init 加载 .env、配置文件和环境变量到 Global
// cfgFile 为空时在当前目录和 ./config 下查找 config.yaml
func Init(cfgFile string) error {
	cfg, err := Load(cfgFile)
	if err != nil {
		return err
	}
	Global = cfg
	return nil
}

// Load 读取配置但不修改 Global
func Load(cfgFile string) (Config, error) {
	// .env 不存在不是错误
	_ = godotenv.Load()

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// 环境变量设置
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 设置默认值
	setDefaults(v)

	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		// 配置文件不存在时只使用默认值和环境变量
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.http_port", "8080")

	v.SetDefault("chain.rpc_url", "http://localhost:8545")
	v.SetDefault("chain.contract_address", "")
	v.SetDefault("chain.abi_path", "")
	v.SetDefault("chain.confirm_interval", 2*time.Second)
	v.SetDefault("chain.confirm_timeout", 0)

	v.SetDefault("wallet.provider", "local")
	v.SetDefault("wallet.rpc_url", "")
	v.SetDefault("wallet.keystore_path", "wallet.json")
	v.SetDefault("wallet.password", "")
	v.SetDefault("wallet.mnemonic", "")
	v.SetDefault("wallet.private_key", "")
	v.SetDefault("wallet.derivation_path", "m/44'/60'/0'/0/0")
	v.SetDefault("wallet.auto_approve", false)

	v.SetDefault("store.type", "badger")
	v.SetDefault("store.path", "data/transfer")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "wallet_user")
	v.SetDefault("db.password", "wallet_password")
	v.SetDefault("db.name", "wallet_db")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})

	v.SetDefault("events.type", "none")
	v.SetDefault("events.topic", "wallet_events_transfer")

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "transfer-core")
}
