package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dkeye/Venue/internal/auth"
	"github.com/dkeye/Venue/internal/core"
	"github.com/spf13/cobra"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

func apiURL(g *globals, path string) string {
	return strings.TrimSuffix(g.server, "/") + path
}

func decodeResponse(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Error == "" {
			body.Error = resp.Status
		}
		return fmt.Errorf("server: %s", body.Error)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func roomsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List live rooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := httpClient.Get(apiURL(g, "/api/rooms"))
			if err != nil {
				return err
			}
			var out struct {
				Rooms []core.RoomInfo `json:"rooms"`
			}
			if err := decodeResponse(resp, &out); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ROOM\tPARTICIPANTS\tSPEAKERS")
			for _, r := range out.Rooms {
				fmt.Fprintf(w, "%s\t%d\t%d/%d\n", r.Name, r.ParticipantCount, r.SpeakerCount, r.Capacity)
			}
			return w.Flush()
		},
	}
}

func loginCmd(g *globals) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Exchange the host password for a host token",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, _ := json.Marshal(map[string]string{"password": password})
			resp, err := httpClient.Post(apiURL(g, "/api/host/login"), "application/json", bytes.NewReader(body))
			if err != nil {
				return err
			}
			var out struct {
				Token     string    `json:"token"`
				ExpiresAt time.Time `json:"expiresAt"`
			}
			if err := decodeResponse(resp, &out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", out.ExpiresAt.Local().Format(time.RFC1123))
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "host password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func hashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for host_password_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
