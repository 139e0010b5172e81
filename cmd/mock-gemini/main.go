package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shpitdev/company-enricher/internal/mockgemini"
)

func main() {
	cmd := &cobra.Command{
		Use:   "mock-gemini",
		Short: "Serve canned Gemini generateContent replies for local testing",
		Long: `mock-gemini answers generateContent requests with replies keyed by the
company named in the prompt. Point the enricher at it with
GEMINI_BASE_URL=http://localhost:8080.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			repliesPath, _ := cmd.Flags().GetString("replies")
			apiKey, _ := cmd.Flags().GetString("api-key")

			srv := mockgemini.New()
			srv.RequireAPIKey(apiKey)
			if repliesPath != "" {
				replies, err := mockgemini.LoadReplies(repliesPath)
				if err != nil {
					return err
				}
				for company, r := range replies {
					srv.SetReply(company, r)
				}
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "mock-gemini listening on %s (replies=%q)\n", addr, repliesPath)
			return http.ListenAndServe(addr, srv.Handler())
		},
	}
	cmd.Flags().String("addr", defaultString("MOCK_GEMINI_ADDR", ":8080"), "listen address (env: MOCK_GEMINI_ADDR)")
	cmd.Flags().String("replies", defaultString("MOCK_GEMINI_REPLIES", ""), "YAML file mapping company names to replies (env: MOCK_GEMINI_REPLIES)")
	cmd.Flags().String("api-key", "", "require this x-goog-api-key on every request")

	if err := cmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
