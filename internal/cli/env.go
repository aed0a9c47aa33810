package cli

import (
	"errors"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/deeplooplabs/crystalcache/config"
)

// errValidation is returned when env validate finds errors; details are printed
var errValidation = errors.New("environment validation failed")

// envCommand creates the "env" command.
func (c *CLI) envCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Inspect the runtime environment",
	}

	cmd.AddCommand(c.envValidateCommand())
	cmd.AddCommand(c.envShowCommand())

	return cmd
}

// envValidateCommand creates the "env validate" subcommand.
func (c *CLI) envValidateCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check environment variables against the validation rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			report := config.Validate(os.LookupEnv)
			if asJSON {
				if err := c.printJSON(report); err != nil {
					return err
				}
			} else {
				c.printReport(report)
			}
			if !report.OK() {
				return errValidation
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func (c *CLI) printReport(report *config.Report) {
	c.printTitle("variables")
	for _, res := range report.Results {
		switch {
		case len(res.Errors) > 0:
			for _, e := range res.Errors {
				c.printError("%s", e)
			}
		case res.Set:
			c.printSuccess("%s: %s", res.Name, res.Description)
		default:
			c.printDetail("%s: %s (optional, not set)", res.Name, res.Description)
		}
	}

	c.printTitle("consistency")
	if len(report.Warnings) == 0 {
		c.printSuccess("environment is consistent")
	}
	for _, w := range report.Warnings {
		c.printWarning("%s", w)
	}

	c.printTitle("report")
	c.printKeyValue("environment", report.Environment)
	c.printKeyValue("errors", strconv.Itoa(report.ErrorCount()))
	c.printKeyValue("warnings", strconv.Itoa(len(report.Warnings)))
	c.printKeyValue("status", report.Status())
}

// envShowCommand creates the "env show" subcommand.
func (c *CLI) envShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			env := config.FromEnv()
			c.printKeyValue("APP_ENV", env.AppEnv)
			c.printKeyValue("API_BASE_URL", env.APIBaseURL)
			c.printKeyValue("CACHE_SQLITE_PATH", orDefault(env.SQLitePath, "(default)"))
			c.printKeyValue("CACHE_REDIS_ADDR", orDefault(env.RedisAddr, "(unset)"))
			c.printKeyValue("LOG_LEVEL", env.LogLevel)
			return nil
		},
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
