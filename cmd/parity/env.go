package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/scastiel/parity.coffee/internal/platform/config"
)

// envLookup merges the dotenv file named by --env-file with the process environment and
// returns the first non-empty value among keys.
func envLookup(cmd *cobra.Command) (func(keys ...string) string, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	values, err := config.EnvironmentValues(config.WithEnvFile(envFile))
	if err != nil {
		return nil, err
	}
	return func(keys ...string) string {
		for _, key := range keys {
			if value := strings.TrimSpace(values[key]); value != "" {
				return value
			}
		}
		return ""
	}, nil
}
