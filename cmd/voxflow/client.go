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

	"github.com/voxflow-ai/voxflow/internal/session"
	"github.com/voxflow-ai/voxflow/internal/storage"
)

// apiClient talks to a running voxflow server's management API.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) do(method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server: %s", apiErr.Error)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func newCallCmd() *cobra.Command {
	var serverURL, contactID, campaignID string

	cmd := &cobra.Command{
		Use:   "call",
		Short: "Place an outbound call through a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if contactID == "" {
				return fmt.Errorf("--contact is required")
			}

			var call storage.Call
			client := newAPIClient(serverURL)
			err := client.do(http.MethodPost, "/v1/calls", map[string]string{
				"contact_id":  contactID,
				"campaign_id": campaignID,
			}, &call)
			if err != nil {
				return err
			}

			fmt.Printf("Call placed: %s\n", call.ID)
			fmt.Printf("  To:       %s\n", call.ToNumber)
			fmt.Printf("  Status:   %s\n", call.Status)
			fmt.Printf("  Provider: %s\n", call.ProviderCallID)
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "voxflow server URL")
	cmd.Flags().StringVar(&contactID, "contact", "", "contact ID to call")
	cmd.Flags().StringVar(&campaignID, "campaign", "", "campaign ID for the call script")
	return cmd
}

func newSessionsCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List active call sessions on a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Sessions []session.Summary `json:"sessions"`
				Count    int               `json:"count"`
			}
			if err := newAPIClient(serverURL).do(http.MethodGet, "/v1/sessions", nil, &resp); err != nil {
				return err
			}

			if resp.Count == 0 {
				fmt.Println("No active sessions.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CALL ID\tPHASE\tPHONE\tDURATION")
			for _, s := range resp.Sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					s.CallID, s.Phase, s.PhoneNumber,
					(time.Duration(s.DurationSeconds)*time.Second).String(),
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "voxflow server URL")
	return cmd
}
