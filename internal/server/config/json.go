package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/pricewatch/internal/flagx"
	"github.com/dmitrijs2005/pricewatch/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations use timex.Duration so
// both "15m" and integer nanoseconds are accepted. Absent keys leave the
// corresponding Config field untouched.
type JsonConfig struct {
	EndpointAddrGRPC             *string         `json:"endpoint_addr_grpc"`
	MetricsAddr                  *string         `json:"metrics_addr"`
	LogLevel                     *string         `json:"log_level"`
	DatabaseDSN                  *string         `json:"database_dsn"`
	AccessTokenSecret            *string         `json:"access_token_secret"`
	RefreshTokenSecret           *string         `json:"refresh_token_secret"`
	SigningAlgorithm             *string         `json:"signing_algorithm"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	SecureCookies                *bool           `json:"secure_cookies"`
	EvaluationInterval           *timex.Duration `json:"evaluation_interval"`
	EvaluationConcurrency        *int            `json:"evaluation_concurrency"`
	OracleTimeout                *timex.Duration `json:"oracle_timeout"`
	OracleRequestsPerSecond      *float64        `json:"oracle_requests_per_second"`
	CoinGeckoBaseURL             *string         `json:"coingecko_base_url"`
	CoinGeckoAPIKey              *string         `json:"coingecko_api_key"`
	StockBaseURL                 *string         `json:"stock_base_url"`
	MailQueue                    *string         `json:"mail_queue"`
	RedisAddr                    *string         `json:"redis_addr"`
	RedisQueueKey                *string         `json:"redis_queue_key"`
	MailWorkers                  *int            `json:"mail_workers"`
	MailMaxRetries               *int            `json:"mail_max_retries"`
	SMTPHost                     *string         `json:"smtp_host"`
	SMTPPort                     *int            `json:"smtp_port"`
	SMTPUsername                 *string         `json:"smtp_username"`
	SMTPPassword                 *string         `json:"smtp_password"`
	MailFrom                     *string         `json:"mail_from"`
	MailFromName                 *string         `json:"mail_from_name"`
}

// parseJson loads the file named by -c/-config, if any, into config.
// It panics when the file cannot be read or is not valid JSON.
func parseJson(config *Config) {
	path := flagx.ConfigFile()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.MetricsAddr, c.MetricsAddr)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.AccessTokenSecret, c.AccessTokenSecret)
	setString(&config.RefreshTokenSecret, c.RefreshTokenSecret)
	setString(&config.SigningAlgorithm, c.SigningAlgorithm)
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.SecureCookies != nil {
		config.SecureCookies = *c.SecureCookies
	}
	if c.EvaluationInterval != nil {
		config.EvaluationInterval = c.EvaluationInterval.Duration
	}
	setInt(&config.EvaluationConcurrency, c.EvaluationConcurrency)
	if c.OracleTimeout != nil {
		config.OracleTimeout = c.OracleTimeout.Duration
	}
	if c.OracleRequestsPerSecond != nil {
		config.OracleRequestsPerSecond = *c.OracleRequestsPerSecond
	}
	setString(&config.CoinGeckoBaseURL, c.CoinGeckoBaseURL)
	setString(&config.CoinGeckoAPIKey, c.CoinGeckoAPIKey)
	setString(&config.StockBaseURL, c.StockBaseURL)
	setString(&config.MailQueue, c.MailQueue)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisQueueKey, c.RedisQueueKey)
	setInt(&config.MailWorkers, c.MailWorkers)
	setInt(&config.MailMaxRetries, c.MailMaxRetries)
	setString(&config.SMTPHost, c.SMTPHost)
	setInt(&config.SMTPPort, c.SMTPPort)
	setString(&config.SMTPUsername, c.SMTPUsername)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.MailFrom, c.MailFrom)
	setString(&config.MailFromName, c.MailFromName)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
