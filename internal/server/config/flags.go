package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/pricewatch/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   gRPC bind address (e.g. ":50051")
//	-m string   metrics bind address
//	-d string   PostgreSQL DSN
//	-s string   access token HMAC secret
//	-S string   refresh token HMAC secret
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-i int      alert evaluation interval, seconds
//	-q string   mail queue backend ("memory" or "redis")
//
// Only the flags above are taken from os.Args (see flagx.FilterArgs), so the
// -c/-config and -e/-env flags handled elsewhere do not collide.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-m", "-d", "-s", "-S", "-t", "-r", "-i", "-q"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run gRPC server")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "address and port to expose metrics")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.AccessTokenSecret, "s", config.AccessTokenSecret, "access token secret")
	fs.StringVar(&config.RefreshTokenSecret, "S", config.RefreshTokenSecret, "refresh token secret")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")
	evaluationInterval := fs.Int("i", int(config.EvaluationInterval.Seconds()), "alert evaluation interval (in seconds)")

	fs.StringVar(&config.MailQueue, "q", config.MailQueue, "mail queue backend: memory or redis")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
	config.EvaluationInterval = time.Duration(*evaluationInterval) * time.Second
}
