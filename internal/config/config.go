package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	ListenAddr  string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	StripeAPIKey string

	// UMA authorization server protecting the IdP and the license server.
	UMATokenEndpoint     string
	UMARPTEndpoint       string
	UMAAuthorizeEndpoint string
	UMAClientID          string
	UMAClientSecret      string

	SCIMUserEndpoint        string
	SCIMTestMode            bool
	SCIMTestModeAccessToken string

	LicenseGenerateEndpoint   string
	LicenseMetadataEndpoint   string
	LicenseStatisticsEndpoint string
	MockLicense               bool

	SMTPEnabled  bool
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	SupportEmail string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "ecommerce"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		ListenAddr:  getenv("LISTEN_ADDR", ":8080"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "ecommerce"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		StripeAPIKey: strings.TrimSpace(getenv("STRIPE_API_KEY", "")),

		UMATokenEndpoint:     getenv("UMA_TOKEN_ENDPOINT", "https://idp.gluu.org/oxauth/seam/resource/restv1/oxauth/token"),
		UMARPTEndpoint:       getenv("UMA_RPT_ENDPOINT", "https://idp.gluu.org/oxauth/seam/resource/restv1/requester/rpt"),
		UMAAuthorizeEndpoint: getenv("UMA_AUTHORIZE_ENDPOINT", "https://idp.gluu.org/oxauth/seam/resource/restv1/requester/perm"),
		UMAClientID:          strings.TrimSpace(getenv("UMA_CLIENT_ID", "")),
		UMAClientSecret:      strings.TrimSpace(getenv("UMA_CLIENT_SECRET", "")),

		SCIMUserEndpoint:        getenv("SCIM_USER_ENDPOINT", "https://idp.gluu.org/identity/seam/resource/restv1/scim/v2/Users"),
		SCIMTestMode:            getenvBool("SCIM_TEST_MODE", false),
		SCIMTestModeAccessToken: strings.TrimSpace(getenv("SCIM_TEST_MODE_ACCESS_TOKEN", "")),

		LicenseGenerateEndpoint:   getenv("LICENSE_GENERATE_ENDPOINT", "https://license.gluu.org/oxLicense/rest/generateLicenseId"),
		LicenseMetadataEndpoint:   getenv("LICENSE_METADATA_ENDPOINT", "https://license.gluu.org/oxLicense/rest/metadata"),
		LicenseStatisticsEndpoint: getenv("LICENSE_STATISTICS_ENDPOINT", "https://license.gluu.org/oxLicense/rest/statistic/monthly"),
		MockLicense:               getenvBool("MOCK_LICENSE", false),

		SMTPEnabled:  getenvBool("SMTP_ENABLED", true),
		SMTPHost:     getenv("SMTP_HOST", "localhost"),
		SMTPPort:     getenvInt("SMTP_PORT", 587),
		SMTPUsername: getenv("SMTP_USERNAME", ""),
		SMTPPassword: getenv("SMTP_PASSWORD", ""),
		SMTPFrom:     getenv("SMTP_FROM", "billing@gluu.org"),

		SupportEmail: getenv("SUPPORT_EMAIL", "support@gluu.org"),
	}
}

// Module wires application and billing configuration.
var Module = fx.Module("config",
	fx.Provide(
		Load,
		NewBillingConfigHolder,
	),
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
