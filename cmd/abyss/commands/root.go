package commands

import (
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dyluth/abyss/pkg/abyss"
)

var (
	version string
	commit  string
	date    string

	instanceName string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "abyss",
	Short: "Abyss - shared resource broker",
	Long: `Abyss is a shared resource broker: one ordered collection of item
records that any number of viewers page through concurrently, fed by a
periodic ambient sweep and gated by a scheduled access window.

The CLI talks to a running abyssd instance over its Redis event stream.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&instanceName, "name", "n", "",
		"Target instance name (defaults to ABYSS_INSTANCE_NAME)")
}

// newClient connects to the instance's event stream using the --name flag,
// falling back to the ABYSS_INSTANCE_NAME and REDIS_URL environment.
func newClient() (*abyss.Client, error) {
	name := instanceName
	if name == "" {
		name = os.Getenv("ABYSS_INSTANCE_NAME")
	}
	if name == "" {
		return nil, fmt.Errorf("no instance name: pass --name or set ABYSS_INSTANCE_NAME")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	return abyss.NewClient(redisOpts, name)
}
