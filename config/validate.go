package config

import (
	"fmt"
	"net"
	"regexp"
	"slices"
	"strings"
)

// Rule describes the constraints on one environment variable
type Rule struct {
	Name        string
	Aliases     []string
	Description string
	Required    bool
	Values      []string
	Pattern     *regexp.Regexp
	MinLength   int
	Check       func(value string) error
}

var httpURL = regexp.MustCompile(`^https?://.+`)

// Rules are the checks applied by Validate
var Rules = []Rule{
	{
		Name:        "APP_ENV",
		Aliases:     []string{"NODE_ENV"},
		Description: "runtime environment",
		Required:    true,
		Values:      []string{"development", "production", "test"},
	},
	{
		Name:        "API_BASE_URL",
		Aliases:     []string{"NEXT_PUBLIC_API_BASE_URL"},
		Description: "catalog API base URL",
		Required:    true,
		Pattern:     httpURL,
	},
	{
		Name:        "NEXT_PUBLIC_SITE_URL",
		Description: "public site URL",
		Pattern:     httpURL,
	},
	{
		Name:        "CACHE_SQLITE_PATH",
		Description: "local cache database file",
	},
	{
		Name:        "CACHE_REDIS_ADDR",
		Description: "shared cache Redis address",
		Check: func(v string) error {
			if _, _, err := net.SplitHostPort(v); err != nil {
				return fmt.Errorf("must be host:port: %w", err)
			}
			return nil
		},
	},
	{
		Name:        "LOG_LEVEL",
		Description: "log level",
		Values:      []string{"debug", "info", "warn", "error"},
	},
	{
		Name:        "PORT",
		Description: "port number",
		Pattern:     regexp.MustCompile(`^\d+$`),
	},
}

// Result is the outcome of checking one variable
type Result struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Set         bool     `json:"set"`
	Errors      []string `json:"errors,omitempty"`
}

// Report collects validation results
type Report struct {
	Environment string   `json:"environment"`
	Results     []Result `json:"results"`
	Warnings    []string `json:"warnings"`
}

// ErrorCount returns the number of failed checks
func (r *Report) ErrorCount() int {
	n := 0
	for _, res := range r.Results {
		n += len(res.Errors)
	}
	return n
}

// OK reports whether validation passed; warnings do not fail it
func (r *Report) OK() bool {
	return r.ErrorCount() == 0
}

// Status returns PASS or FAIL
func (r *Report) Status() string {
	if r.OK() {
		return "PASS"
	}
	return "FAIL"
}

// Validate checks every rule against lookup and then the consistency of the
// environment as a whole
func Validate(lookup func(string) (string, bool)) *Report {
	report := &Report{Environment: FromLookup(lookup).AppEnv}

	for _, rule := range Rules {
		value := rule.lookup(lookup)
		report.Results = append(report.Results, Result{
			Name:        rule.Name,
			Description: rule.Description,
			Set:         value != "",
			Errors:      rule.validate(value),
		})
	}

	report.Warnings = consistencyWarnings(lookup)
	return report
}

// lookup returns the first non-empty value among the name and its aliases
func (r Rule) lookup(lookup func(string) (string, bool)) string {
	for _, name := range append([]string{r.Name}, r.Aliases...) {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func (r Rule) validate(value string) []string {
	if value == "" {
		if r.Required {
			return []string{fmt.Sprintf("%s is required but not set", r.Name)}
		}
		return nil
	}

	var errs []string
	if len(r.Values) > 0 && !slices.Contains(r.Values, value) {
		errs = append(errs, fmt.Sprintf("%s value %q is not one of: %s", r.Name, value, strings.Join(r.Values, ", ")))
	}
	if r.Pattern != nil && !r.Pattern.MatchString(value) {
		errs = append(errs, fmt.Sprintf("%s has an invalid format: %q", r.Name, value))
	}
	if r.MinLength > 0 && len(value) < r.MinLength {
		errs = append(errs, fmt.Sprintf("%s must be at least %d characters", r.Name, r.MinLength))
	}
	if r.Check != nil {
		if err := r.Check(value); err != nil {
			errs = append(errs, fmt.Sprintf("%s %v", r.Name, err))
		}
	}
	return errs
}

func consistencyWarnings(lookup func(string) (string, bool)) []string {
	env := FromLookup(lookup)
	apiURL := Rule{Name: "API_BASE_URL", Aliases: []string{"NEXT_PUBLIC_API_BASE_URL"}}.lookup(lookup)
	siteURL := Rule{Name: "NEXT_PUBLIC_SITE_URL"}.lookup(lookup)

	var warnings []string
	switch env.AppEnv {
	case "development":
		if apiURL != "" && !strings.Contains(apiURL, "localhost") {
			warnings = append(warnings, "development should use a localhost API address")
		}
		if siteURL != "" && !strings.Contains(siteURL, "localhost") {
			warnings = append(warnings, "development should use a localhost site address")
		}
	case "production":
		if strings.Contains(apiURL, "localhost") {
			warnings = append(warnings, "production must not use a localhost API address")
		}
		if strings.Contains(siteURL, "localhost") {
			warnings = append(warnings, "production must not use a localhost site address")
		}
		if apiURL != "" && !strings.HasPrefix(apiURL, "https://") {
			warnings = append(warnings, "production should use HTTPS")
		}
	}
	return warnings
}
