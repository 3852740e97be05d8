package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cuemby/felt/pkg/api"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List public sessions on a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		asJSON, _ := cmd.Flags().GetBool("json")

		resp, err := fetchSessions(server)
		if err != nil {
			return err
		}
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}
		return printSessions(cmd.OutOrStdout(), resp)
	},
}

func init() {
	sessionsCmd.Flags().String("server", "http://localhost:8080", "Server base URL")
	sessionsCmd.Flags().Bool("json", false, "Print raw JSON")
}

func fetchSessions(server string) (*api.SessionsResponse, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	url := strings.TrimSuffix(server, "/") + "/api/sessions"

	res, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to reach %s: %w", server, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %s", res.Status)
	}
	var out api.SessionsResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode listing: %w", err)
	}
	return &out, nil
}

func printSessions(w io.Writer, resp *api.SessionsResponse) error {
	if len(resp.Sessions) == 0 {
		_, err := fmt.Fprintln(w, "No public sessions")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tNAME\tPLAYERS\tOPEN\tCREATED")
	for _, s := range resp.Sessions {
		open := "no"
		if s.HasOpenSeats {
			open = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\t%s\n",
			s.Code, s.Name, s.Players, s.MaxPlayers, open, s.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}
