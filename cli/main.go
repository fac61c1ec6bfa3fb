package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	apiToken  string
	Version   = "dev"
)

type LeaveRequest struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"user_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Days      int       `json:"days"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason"`
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "furlough",
		Short: "Furlough - leave management from the terminal",
		Long:  "Submit, inspect, and decide leave requests against a Furlough server",
	}

	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "Furlough server URL")
	rootCmd.PersistentFlags().StringVarP(&apiToken, "token", "t", os.Getenv("FURLOUGH_TOKEN"), "API bearer token")

	rootCmd.AddCommand(
		statusCmd(),
		requestsCmd(),
		approveCmd(),
		rejectCmd(),
		balanceCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pending request volume",
		RunE: func(cmd *cobra.Command, args []string) error {
			var pending []LeaveRequest
			if err := apiGet("/v1/requests?status=pending", &pending); err != nil {
				return err
			}

			days := 0
			for _, r := range pending {
				days += r.Days
			}

			fmt.Printf("Furlough Status\n")
			fmt.Printf("===============\n\n")
			fmt.Printf("Pending Requests:  %d\n", len(pending))
			fmt.Printf("Days Awaiting:     %d\n", days)
			return nil
		},
	}
}

func requestsCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "List leave requests visible to your account",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/v1/requests"
			if status != "" {
				path += "?status=" + status
			}
			var requests []LeaveRequest
			if err := apiGet(path, &requests); err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSER\tFROM\tTO\tDAYS\tSTATUS\tREASON")
			for _, r := range requests {
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%d\t%s\t%s\n",
					r.ID, r.UserID,
					r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"),
					r.Days, r.Status, r.Reason)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	return cmd
}

func approveCmd() *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "approve <request-id>",
		Short: "Approve a pending leave request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]string{"note": note}
			var decided LeaveRequest
			if err := apiPost("/v1/requests/"+args[0]+"/approve", payload, &decided); err != nil {
				return err
			}
			fmt.Printf("Request %d approved\n", decided.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "Optional decision note")
	return cmd
}

func rejectCmd() *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "reject <request-id>",
		Short: "Reject a pending leave request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if note == "" {
				return fmt.Errorf("a rejection note is required (--note)")
			}
			payload := map[string]string{"note": note}
			var decided LeaveRequest
			if err := apiPost("/v1/requests/"+args[0]+"/reject", payload, &decided); err != nil {
				return err
			}
			fmt.Printf("Request %d rejected\n", decided.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "Decision note")
	return cmd
}

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show your leave balances for the current year",
		RunE: func(cmd *cobra.Command, args []string) error {
			var body struct {
				Year     int `json:"year"`
				Balances []struct {
					LeaveType string `json:"leave_type"`
					Allowance int    `json:"allowance"`
					Used      int    `json:"used"`
					Pending   int    `json:"pending"`
					Available int    `json:"available"`
				} `json:"balances"`
			}
			if err := apiGet("/v1/balance", &body); err != nil {
				return err
			}

			fmt.Printf("Balances for %d\n\n", body.Year)
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tALLOWANCE\tUSED\tPENDING\tAVAILABLE")
			for _, b := range body.Balances {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n",
					b.LeaveType, b.Allowance, b.Used, b.Pending, b.Available)
			}
			return w.Flush()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("furlough %s\n", Version)
		},
	}
}

func apiGet(path string, out any) error {
	return callAPI(http.MethodGet, path, nil, out)
}

func apiPost(path string, body, out any) error {
	return callAPI(http.MethodPost, path, body, out)
}

// callAPI performs one request with retries on transient failures.
func callAPI(method, path string, body, out any) error {
	client := &http.Client{Timeout: 10 * time.Second}
	r := newRetrier(500, 5000, 3)

	return r.do(func() error {
		var reader io.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			if err != nil {
				return err
			}
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequest(method, serverURL+path, reader)
		if err != nil {
			return err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if apiToken != "" {
			req.Header.Set("Authorization", "Bearer "+apiToken)
		}

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if isRetryableStatus(resp) {
			return newRetryableStatusError(resp)
		}
		if resp.StatusCode >= 400 {
			data, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(data))
		}
		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}, isRetryableHTTP)
}
