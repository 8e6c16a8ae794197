package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net"
	"os"
	"regexp"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string        `validate:"required,hostname_port"`
	DBUrl       string        `validate:"required"`
	TokenSecret string        `validate:"required"`
	TokenTTL    time.Duration `validate:"min=1s"`
	Debug       bool

	MailerLiteURL     string        `validate:"required,url"`
	MailerLiteTimeout time.Duration `validate:"min=1s"`

	// ContactDelay is how long a respondent sees the thank-you screen
	// before the contact form is offered.
	ContactDelay time.Duration `validate:"min=0"`
	FormTTL      time.Duration `validate:"min=1m"`

	ExportLocation *time.Location

	// Args holds the positional arguments left after flag parsing.
	Args []string
}

// ParseFlags reads the process command line.
func ParseFlags() (Config, error) {
	return Parse(os.Args[1:])
}

// Parse reads flags from args. Defaults come from QSURVEY_* environment
// variables, optionally loaded from a .env file.
func Parse(args []string) (cfg Config, err error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	fset := flag.NewFlagSet("quick-survey", flag.ContinueOnError)

	var host string
	fset.StringVar(&host, "host", env("QSURVEY_HOST", "0.0.0.0"), "listen host name")
	var port uint
	fset.UintVar(&port, "port", envUint("QSURVEY_PORT", 80), "listen port number")
	fset.StringVar(&cfg.DBUrl, "db-url", env("QSURVEY_DB_URL", "qsurvey.sqlite"), "path to SQLite3 DB file")
	fset.StringVar(&cfg.TokenSecret, "token-secret", env("QSURVEY_TOKEN_SECRET", ""), "secret key for token encryption and decryption")
	var ttl uint
	fset.UintVar(&ttl, "token-ttl", envUint("QSURVEY_TOKEN_TTL", 120), "token TTL in seconds")
	fset.BoolVar(&cfg.Debug, "debug", env("QSURVEY_DEBUG", "") == "true", "log at DEBUG level")
	fset.StringVar(&cfg.MailerLiteURL, "mailerlite-url", env("QSURVEY_MAILERLITE_URL", "https://connect.mailerlite.com/api"), "MailerLite API base URL")
	fset.DurationVar(&cfg.MailerLiteTimeout, "mailerlite-timeout", envDuration("QSURVEY_MAILERLITE_TIMEOUT", 10*time.Second), "MailerLite request timeout")
	fset.DurationVar(&cfg.ContactDelay, "contact-delay", envDuration("QSURVEY_CONTACT_DELAY", 2*time.Second), "delay before offering the contact form")
	fset.DurationVar(&cfg.FormTTL, "form-ttl", envDuration("QSURVEY_FORM_TTL", 30*time.Minute), "idle time before an open form is discarded")
	var tz string
	fset.StringVar(&tz, "export-tz", env("QSURVEY_EXPORT_TZ", "Europe/Warsaw"), "time zone of exported timestamps")

	if err = fset.Parse(args); err != nil {
		return
	}
	cfg.Args = fset.Args()

	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(int(port)))
	cfg.TokenTTL = time.Duration(ttl) * time.Second

	var errs *multierror.Error
	cfg.ExportLocation, err = time.LoadLocation(tz)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("export-tz: %w", err))
	}
	if verr := cfg.Validate(); verr != nil {
		errs = multierror.Append(errs, verr)
	}
	err = errs.ErrorOrNil()
	return
}

// Validate checks every field and reports all failures at once.
func (cfg Config) Validate() error {
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	var errs *multierror.Error
	for _, fe := range verrs {
		errs = multierror.Append(errs, fmt.Errorf("invalid %s: failed %q", fe.Field(), fe.Tag()))
	}
	return errs.ErrorOrNil()
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}

func env(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envUint(key string, fallback uint) uint {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			return uint(n)
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
