package core

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Address                   string
		DebugHost                 string
		Host                      string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		Address   string
		Password  string
		DB        int
		ReportTTL time.Duration
	}

	// SchoolProfile is the public information shown on the homepage.
	SchoolProfile struct {
		Name    string `json:"name"`
		Motto   string `json:"motto"`
		Address string `json:"address"`
		Phone   string `json:"phone"`
		Email   string `json:"email"`
		Website string `json:"website"`
	}

	GradingConfig struct {
		ExceedingMin   float64
		MeetingMin     float64
		ApproachingMin float64
		TermFormula    string
	}

	Config struct {
		AppName                   string
		Build                     string
		Env                       string
		Debug                     bool
		TestMode                  bool
		SecretKey                 string
		FrontendBaseURL           string
		WorkDir                   string
		PasswordResetTimeoutDelta time.Duration
		RollbarToken              string
		SendgridApiKey            string

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
		School   SchoolProfile
		Grading  GradingConfig

		defaultFromEmail string
	}
)

func (c DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) DefaultFromEmail() mail.Address {
	if addr, err := mail.ParseAddress(c.defaultFromEmail); err == nil {
		return *addr
	}
	return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
}

// NewConfig loads the configuration of the current ENV: DEV (local; default), TEST, QA, PROD.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Shule")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "k7%hv-2w!s0q@un(e=4r+8zd$ji3)xgc^b9l*tfpo&my61a5")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "Shule <noreply@localhost>")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("serverAddress", ":8000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 30*24*time.Hour)

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", 5432)
	v.SetDefault("dbName", "shule")
	v.SetDefault("dbUser", "shule")
	v.SetDefault("dbPassword", "shule")
	v.SetDefault("dbAdminUser", "postgres")
	v.SetDefault("dbAdminPassword", "postgres")
	v.SetDefault("dbDisableTLS", true)

	v.SetDefault("redisAddress", "")
	v.SetDefault("redisPassword", "")
	v.SetDefault("redisDB", 0)
	v.SetDefault("redisReportTTL", 10*time.Minute)

	v.SetDefault("schoolName", "Shule Academy")
	v.SetDefault("schoolMotto", "Knowledge is light")
	v.SetDefault("schoolAddress", "")
	v.SetDefault("schoolPhone", "")
	v.SetDefault("schoolEmail", "")
	v.SetDefault("schoolWebsite", "")

	v.SetDefault("gradingExceedingMin", 80.0)
	v.SetDefault("gradingMeetingMin", 50.0)
	v.SetDefault("gradingApproachingMin", 30.0)
	v.SetDefault("gradingTermFormula", "")

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	case "QA", "PROD":
		v.SetDefault("debug", false)
	}
	v.SetEnvPrefix(env)

	workDir := findWorkDir()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:                   v.GetString("appName"),
		Build:                     v.GetString("build"),
		Env:                       env,
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           v.GetString("frontendBaseURL"),
		WorkDir:                   workDir,
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		RollbarToken:              v.GetString("rollbarToken"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		defaultFromEmail:          v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Address:                   v.GetString("serverAddress"),
			DebugHost:                 v.GetString("serverDebugHost"),
			Host:                      v.GetString("serverHost"),
			ShutdownTimeout:           v.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetInt("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Redis: RedisConfig{
			Address:   v.GetString("redisAddress"),
			Password:  v.GetString("redisPassword"),
			DB:        v.GetInt("redisDB"),
			ReportTTL: v.GetDuration("redisReportTTL"),
		},
		School: SchoolProfile{
			Name:    v.GetString("schoolName"),
			Motto:   v.GetString("schoolMotto"),
			Address: v.GetString("schoolAddress"),
			Phone:   v.GetString("schoolPhone"),
			Email:   v.GetString("schoolEmail"),
			Website: v.GetString("schoolWebsite"),
		},
		Grading: GradingConfig{
			ExceedingMin:   v.GetFloat64("gradingExceedingMin"),
			MeetingMin:     v.GetFloat64("gradingMeetingMin"),
			ApproachingMin: v.GetFloat64("gradingApproachingMin"),
			TermFormula:    v.GetString("gradingTermFormula"),
		},
	}
}

// NewTestConfig returns a TEST config that never touches the environment.
func NewTestConfig() *Config {
	return &Config{
		AppName:                   "Shule",
		Build:                     "test",
		Env:                       "TEST",
		TestMode:                  true,
		SecretKey:                 "secret",
		FrontendBaseURL:           "http://localhost:3000",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		defaultFromEmail:          "Shule <noreply@localhost>",
		Server: ServerConfig{
			Host:                      "localhost",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Redis:  RedisConfig{ReportTTL: time.Minute},
		School: SchoolProfile{Name: "Shule Academy", Motto: "Knowledge is light"},
		Grading: GradingConfig{
			ExceedingMin:   80,
			MeetingMin:     50,
			ApproachingMin: 30,
		},
	}
}

// findWorkDir walks up from the working directory until it finds the module root (go.mod).
// go-test runs from the package directory, so relative paths need an anchor.
func findWorkDir() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if _, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}
