/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/seckatie/videfly/internal/core"
	"github.com/seckatie/videfly/internal/core/backend"
	"github.com/seckatie/videfly/internal/core/web"
	"github.com/spf13/cobra"
)

// DefaultAPIURL is used when neither --api-url nor the environment name a backend.
const DefaultAPIURL = "http://localhost:5000"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "videfly",
	Short: "Analyze and download videos through a Videfly backend",
	Long: `videfly serves a small web page where a video URL can be submitted.
The page shows the thumbnail and metadata returned by the backend and
offers the full video as a download.

The analyze and download subcommands run the same requests from the
terminal.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadDotEnv(".env")
	},
	Run: func(cmd *cobra.Command, args []string) {
		client, err := newBackendClient(cmd)
		if err != nil {
			log.Fatalf("Failed to configure backend: %v", err)
		}

		sessionTTL, err := cmd.Flags().GetDuration("session-ttl")
		if err != nil {
			log.Fatalf("Failed to get session ttl: %v", err)
		}
		rateLimit, err := cmd.Flags().GetFloat64("rate-limit")
		if err != nil {
			log.Fatalf("Failed to get rate limit: %v", err)
		}
		rateBurst, err := cmd.Flags().GetInt("rate-burst")
		if err != nil {
			log.Fatalf("Failed to get rate burst: %v", err)
		}

		objects := core.NewObjectStore(core.DefaultTransientTTL)
		analyzer := core.NewAnalyzer(client, objects)
		sessions := core.NewSessionStore(objects, sessionTTL)

		analyzer.RegisterEventListener(core.OnAnalysisFailedEvent, func(event core.Event) error {
			ev := event.(core.AnalysisFailedEvent)
			log.Printf("Session %s could not analyze %s", ev.SessionID, ev.URL)
			return nil
		})
		analyzer.RegisterEventListener(core.OnDownloadFinishedEvent, func(event core.Event) error {
			ev := event.(core.DownloadFinishedEvent)
			if ev.Err == nil {
				log.Printf("Session %s download ready as %s", ev.SessionID, ev.Ref)
			}
			return nil
		})

		// Get the host and port from the flags
		host, err := cmd.Flags().GetString("host")
		if err != nil {
			log.Fatalf("Failed to get host: %v", err)
		}
		port, err := cmd.Flags().GetInt("port")
		if err != nil {
			log.Fatalf("Failed to get port: %v", err)
		}

		log.Printf("Using backend %s", client.BaseURL)
		if err := web.StartServer(context.Background(), fmt.Sprintf("%s:%d", host, port), analyzer, sessions, web.Options{
			RateLimit: rateLimit,
			RateBurst: rateBurst,
		}); err != nil {
			log.Fatalf("Web server failed: %v", err)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("api-url", "", "Base URL of the analysis backend (env VIDEFLY_API_URL or API_URL, default "+DefaultAPIURL+")")
	rootCmd.PersistentFlags().Duration("request-timeout", 0, "Timeout for each backend request (0 = none)")
	rootCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	rootCmd.Flags().String("host", "localhost", "Host to listen on")
	rootCmd.Flags().Duration("session-ttl", core.DefaultSessionTTL, "Idle time after which a page session is discarded")
	rootCmd.Flags().Float64("rate-limit", 2, "Analyze and download requests per second per client (0 = unlimited)")
	rootCmd.Flags().Int("rate-burst", 5, "Requests a client may make in a burst")
}

// loadDotEnv loads path into the environment when it exists. Variables that
// are already set win.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// apiURL resolves the backend base URL from the flag, then the environment.
func apiURL(cmd *cobra.Command) (string, error) {
	u, err := cmd.Flags().GetString("api-url")
	if err != nil {
		return "", fmt.Errorf("failed to read --api-url: %w", err)
	}
	if u != "" {
		return u, nil
	}
	for _, key := range []string{"VIDEFLY_API_URL", "API_URL"} {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, nil
		}
	}
	return DefaultAPIURL, nil
}

func newBackendClient(cmd *cobra.Command) (*backend.Client, error) {
	base, err := apiURL(cmd)
	if err != nil {
		return nil, err
	}
	timeout, err := cmd.Flags().GetDuration("request-timeout")
	if err != nil {
		return nil, fmt.Errorf("failed to read --request-timeout: %w", err)
	}
	return backend.NewClient(base, backend.ClientOptions{Timeout: timeout}), nil
}
