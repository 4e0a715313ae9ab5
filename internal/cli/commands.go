package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/R3E-Network/statsgate/internal/httputil"
	"github.com/R3E-Network/statsgate/internal/peer"
	"github.com/R3E-Network/statsgate/internal/stats"
)

// PeerEnv is the fallback for the qr --peer flag.
const PeerEnv = "STATSGATE_PEER_URL"

func healthCmd(opts *globalOptions, p *Printer) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the API is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := opts.client().Get(cmd.Context(), "/health")
			if err != nil {
				return err
			}
			var out struct {
				Status string `json:"status"`
			}
			if err := httputil.DecodeResponse(resp, &out); err != nil {
				return err
			}
			p.Success(fmt.Sprintf("%s is %s", opts.server, out.Status))
			return nil
		},
	}
}

func loginCmd(opts *globalOptions, p *Printer) *cobra.Command {
	var username string

	c := &cobra.Command{
		Use:   "login",
		Short: "Request a token and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := login(cmd.Context(), opts, username)
			if err != nil {
				return err
			}
			p.Result(token)
			return nil
		},
	}

	c.Flags().StringVarP(&username, "username", "u", "", "Token subject (server default: demo)")
	return c
}

func statsCmd(opts *globalOptions, p *Printer) *cobra.Command {
	var file string
	var username string

	c := &cobra.Command{
		Use:   "stats",
		Short: "Aggregate a batch of matrices",
		Long: "Reads either an array of matrices or {\"matrices\": [...]} from --file " +
			"(\"-\" for stdin). Without --token a token is requested first.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			batch, err := batchPayload(data)
			if err != nil {
				return err
			}
			if err := ensureToken(cmd.Context(), opts, p, username); err != nil {
				return err
			}

			resp, err := opts.client().Post(cmd.Context(), "/stats", map[string]json.RawMessage{"matrices": batch})
			if err != nil {
				return err
			}
			var result stats.Result
			if err := httputil.DecodeResponse(resp, &result); err != nil {
				return err
			}
			return p.JSON(result)
		},
	}

	c.Flags().StringVarP(&file, "file", "f", "", "Batch file, or - for stdin (required)")
	c.Flags().StringVarP(&username, "username", "u", "", "Subject used when a token must be requested")
	_ = c.MarkFlagRequired("file")
	return c
}

func qrCmd(opts *globalOptions, p *Printer) *cobra.Command {
	var file string
	var peerURL string
	var username string

	c := &cobra.Command{
		Use:   "qr",
		Short: "Factorize a matrix on the QR peer",
		Long: "Reads a matrix or {\"matrix\": [...]} from --file and posts it to the peer. " +
			"The token is forwarded so the peer can attach statistics.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if peerURL == "" {
				return fmt.Errorf("--peer is required (or set %s)", PeerEnv)
			}
			data, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			matrix, err := matrixPayload(data)
			if err != nil {
				return err
			}
			if err := ensureToken(cmd.Context(), opts, p, username); err != nil {
				return err
			}

			client := peer.New(peer.Config{BaseURL: peerURL, Timeout: opts.timeout})
			f, err := client.Factorize(cmd.Context(), opts.token, matrix)
			if err != nil {
				return err
			}

			out := struct {
				Q     [][]float64     `json:"Q"`
				R     [][]float64     `json:"R"`
				Stats json.RawMessage `json:"stats,omitempty"`
			}{Q: f.Q, R: f.R, Stats: f.Stats}
			return p.JSON(out)
		},
	}

	c.Flags().StringVarP(&file, "file", "f", "", "Matrix file, or - for stdin (required)")
	c.Flags().StringVar(&peerURL, "peer", os.Getenv(PeerEnv), "QR peer base URL (env "+PeerEnv+")")
	c.Flags().StringVarP(&username, "username", "u", "", "Subject used when a token must be requested")
	_ = c.MarkFlagRequired("file")
	return c
}

func login(ctx context.Context, opts *globalOptions, username string) (string, error) {
	body := map[string]string{}
	if username != "" {
		body["username"] = username
	}

	resp, err := opts.client().Post(ctx, "/auth/login", body)
	if err != nil {
		return "", err
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := httputil.DecodeResponse(resp, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", fmt.Errorf("login response carried no token")
	}
	return out.Token, nil
}

func ensureToken(ctx context.Context, opts *globalOptions, p *Printer, username string) error {
	if opts.token != "" {
		return nil
	}
	token, err := login(ctx, opts, username)
	if err != nil {
		return fmt.Errorf("request token: %w", err)
	}
	opts.token = token
	p.Info("No token given; requested a new one")
	return nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

// batchPayload accepts either a bare batch or a full request body.
func batchPayload(data []byte) (json.RawMessage, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("input is not valid JSON")
	}
	doc := gjson.ParseBytes(data)
	if m := doc.Get("matrices"); doc.IsObject() && m.Exists() {
		doc = m
	}
	if !doc.IsArray() {
		return nil, fmt.Errorf(`expected an array of matrices or {"matrices": [...]}`)
	}
	return json.RawMessage(doc.Raw), nil
}

// matrixPayload accepts either a bare matrix or {"matrix": ...}.
func matrixPayload(data []byte) ([][]float64, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("input is not valid JSON")
	}
	doc := gjson.ParseBytes(data)
	if m := doc.Get("matrix"); doc.IsObject() && m.Exists() {
		doc = m
	}

	var matrix [][]float64
	if err := json.Unmarshal([]byte(doc.Raw), &matrix); err != nil {
		return nil, fmt.Errorf("expected a numeric matrix: %w", err)
	}
	return matrix, nil
}
