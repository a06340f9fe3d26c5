package engine

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// Package-level validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// url_format validates URL structure
	validate.RegisterValidation("url_format", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		u, err := url.Parse(s)
		return err == nil && u.Scheme != "" && u.Host != ""
	})
}

// Config tunes one interpreter instance. Defaults come from struct tags;
// validation runs after defaults are applied.
type Config struct {
	// StepBudget caps block transitions per run, guarding against cycles.
	StepBudget int `yaml:"step_budget" default:"100" validate:"gte=1,lte=100000"`
	// RunTimeout is the wall-clock deadline for one run.
	RunTimeout time.Duration `yaml:"run_timeout" default:"30s" validate:"gte=1s"`
	// TemplateCacheSize bounds the shared compiled-template cache.
	TemplateCacheSize int `yaml:"template_cache_size" default:"256" validate:"gte=1"`
	// ExpressionCacheSize bounds the compiled filter-expression cache.
	ExpressionCacheSize int `yaml:"expression_cache_size" default:"256" validate:"gte=1"`
	// MaxLoopIterations caps a single loop block, independent of StepBudget.
	MaxLoopIterations int `yaml:"max_loop_iterations" default:"100" validate:"gte=1"`
	// APIRequestTimeout bounds a single outbound api_request call.
	APIRequestTimeout time.Duration `yaml:"api_request_timeout" default:"10s" validate:"gte=1s"`
}

// PrepareConfig applies defaults and validates the final values.
func PrepareConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := defaults.Set(cfg); err != nil {
		return fmt.Errorf("failed to apply default values: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			var msgs []string
			for _, fieldErr := range validationErrors {
				msgs = append(msgs, fmt.Sprintf("field '%s' failed rule '%s'", fieldErr.Field(), fieldErr.Tag()))
			}
			return fmt.Errorf("config validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
		}
		return fmt.Errorf("config validation failed: %w", err)
	}

	return nil
}

// ValidateWebhookURL checks a webhook registration target before the call to
// the messaging platform is made.
func ValidateWebhookURL(rawURL string) error {
	if rawURL == "" {
		return newValidationError("webhook url is required", nil)
	}
	if err := validate.Var(rawURL, "url_format"); err != nil {
		return newValidationError(fmt.Sprintf("invalid webhook url %q", rawURL), err)
	}
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:default} syntax
var envVarPattern = regexp.MustCompile(`^\$\{([A-Z_][A-Z0-9_]*)(:[^}]*)?\}$`)

// ResolveEnvVar resolves ${VAR} references in loaded bot definitions,
// e.g. bot tokens kept out of the YAML files.
func ResolveEnvVar(value string) (string, error) {
	matches := envVarPattern.FindStringSubmatch(value)
	if matches == nil {
		return value, nil
	}

	varName := matches[1]
	defaultPart := matches[2]

	if envValue, exists := os.LookupEnv(varName); exists {
		return envValue, nil
	}
	if defaultPart != "" {
		return strings.TrimPrefix(defaultPart, ":"), nil
	}
	return "", fmt.Errorf("required environment variable not set: %s", varName)
}
