package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Session backends
const (
	SessionBackendCookie = "cookie"
	SessionBackendRedis  = "redis"
	SessionBackendMemory = "memory"
)

type Config struct {
	Env          string
	Build        string
	Debug        bool
	TestMode     bool
	AppName      string
	SecretKey    string
	RollbarToken string

	Server struct {
		Host            string
		Address         string
		DebugAddress    string
		ShutdownTimeout time.Duration
		DisableReqLogs  bool
	}

	// Backend is the REST API every screen talks to.
	Backend struct {
		BaseURL string
		Timeout time.Duration
	}

	Session struct {
		Backend       string
		CookieName    string
		CookieSecure  bool
		RedisAddr     string
		RedisPassword string
		RedisDB       int
	}
}

func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "LearnLog")
	v.SetDefault("secretKey", "k2v#9wq)plm$+31=rt&eozb7(a!x)#*d8(#hu6t^$nfsr4pl")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.debugAddress", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.disableReqLogs", false)
	v.SetDefault("backend.baseURL", "http://localhost:8081")
	v.SetDefault("backend.timeout", 10*time.Second)
	v.SetDefault("session.backend", SessionBackendCookie)
	v.SetDefault("session.cookieName", "learnlog_session")
	v.SetDefault("session.cookieSecure", false)
	v.SetDefault("session.redisAddr", "127.0.0.1:6379")
	v.SetDefault("session.redisPassword", "")
	v.SetDefault("session.redisDB", 0)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:          env,
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		AppName:      v.GetString("appName"),
		SecretKey:    v.GetString("secretKey"),
		RollbarToken: v.GetString("rollbarToken"),
	}

	conf.Server.Host = v.GetString("server.host")
	conf.Server.Address = v.GetString("server.address")
	conf.Server.DebugAddress = v.GetString("server.debugAddress")
	conf.Server.ShutdownTimeout = v.GetDuration("server.shutdownTimeout")
	conf.Server.DisableReqLogs = v.GetBool("server.disableReqLogs")

	conf.Backend.BaseURL = strings.TrimRight(v.GetString("backend.baseURL"), "/")
	conf.Backend.Timeout = v.GetDuration("backend.timeout")

	conf.Session.Backend = strings.ToLower(v.GetString("session.backend"))
	conf.Session.CookieName = v.GetString("session.cookieName")
	conf.Session.CookieSecure = v.GetBool("session.cookieSecure")
	conf.Session.RedisAddr = v.GetString("session.redisAddr")
	conf.Session.RedisPassword = v.GetString("session.redisPassword")
	conf.Session.RedisDB = v.GetInt("session.redisDB")

	return conf
}
