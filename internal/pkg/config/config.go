package config

import (
	"errors"
	"log"
	"os"

	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	App      AppConfig      `mapstructure:"app"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Checkout CheckoutConfig `mapstructure:"checkout"`
	Push     PushConfig     `mapstructure:"push"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Port     string `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Expire int64  `mapstructure:"expire"` // 小时
}

type AppConfig struct {
	Env   string `mapstructure:"env"`
	Debug bool   `mapstructure:"debug"`
}

// GatewayConfig 支付网关配置 (Checkout Session 模式)
type GatewayConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	SecretKey      string `mapstructure:"secret_key"`
	SuccessURL     string `mapstructure:"success_url"` // 同步跳转地址，网关会替换 {CHECKOUT_SESSION_ID}
	CancelURL      string `mapstructure:"cancel_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	DemoMode       bool   `mapstructure:"demo_mode"` // 演示模式：不调用真实网关
}

// CheckoutConfig 结算规则配置
type CheckoutConfig struct {
	FreeShippingOver  float64 `mapstructure:"free_shipping_over"` // 满额包邮
	ShippingFee       float64 `mapstructure:"shipping_fee"`
	TaxRate           float64 `mapstructure:"tax_rate"`
	CancelWindowHours int     `mapstructure:"cancel_window_hours"` // 客户自助取消窗口
}

type PushConfig struct {
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	AppKey          int64  `mapstructure:"app_key"`
	RegionID        string `mapstructure:"region_id"` // e.g., "cn-hangzhou"
}

var GlobalConfig Config

// Validate 验证配置
func (c *Config) Validate() error {
	if c.JWT.Secret == "" || c.JWT.Secret == "your_super_secret_key" {
		return errors.New("please set a secure JWT secret in production")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT secret should be at least 32 characters")
	}

	// 订单审计记录依赖数据库
	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return errors.New("database configuration is incomplete")
	}

	// 订单存储依赖 Redis
	if c.Redis.Addr == "" {
		return errors.New("redis address is required")
	}

	// 非演示模式必须配置真实网关
	if !c.Gateway.DemoMode && (c.Gateway.BaseURL == "" || c.Gateway.SecretKey == "") {
		return errors.New("gateway base_url and secret_key are required unless demo_mode is on")
	}

	if c.Checkout.TaxRate < 0 || c.Checkout.TaxRate >= 1 {
		return errors.New("checkout tax_rate must be in [0, 1)")
	}

	return nil
}

// LoadConfig 加载配置
func LoadConfig() {
	// 获取环境变量，默认为dev
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	// 根据环境选择配置文件
	configName := "config"
	if env != "" && env != "dev" {
		configName = "config." + env
	}

	viper.SetConfigName(configName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// 设置默认值
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("jwt.expire", 24)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("app.env", "dev")
	viper.SetDefault("app.debug", true)
	viper.SetDefault("gateway.timeout_seconds", 10)
	viper.SetDefault("gateway.demo_mode", true)
	viper.SetDefault("checkout.free_shipping_over", 50)
	viper.SetDefault("checkout.shipping_fee", 5)
	viper.SetDefault("checkout.tax_rate", 0.08)
	viper.SetDefault("checkout.cancel_window_hours", 24)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Config file not found, using defaults or env vars: %v", err)
	}

	// 绑定环境变量
	viper.AutomaticEnv()

	if err := viper.Unmarshal(&GlobalConfig); err != nil {
		log.Fatalf("Unable to decode into struct: %v", err)
	}

	// 手动覆盖，以防 viper 无法正确解析复杂结构或环境变量
	if host := os.Getenv("DB_HOST"); host != "" {
		GlobalConfig.Database.Host = host
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		GlobalConfig.Redis.Addr = redisAddr
	}
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		GlobalConfig.JWT.Secret = jwtSecret
	}
	if gatewayKey := os.Getenv("GATEWAY_SECRET_KEY"); gatewayKey != "" {
		GlobalConfig.Gateway.SecretKey = gatewayKey
	}

	// 验证配置
	if err := GlobalConfig.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	log.Printf("Configuration loaded and validated successfully. Environment: %s", GlobalConfig.App.Env)
}
