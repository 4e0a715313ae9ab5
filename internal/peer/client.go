// Package peer is a client for the QR factorization service that sits next
// to this API. The peer forwards the caller's bearer token back to /stats, so
// the same token is used on both hops.
package peer

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/R3E-Network/statsgate/internal/errors"
	"github.com/R3E-Network/statsgate/internal/httputil"
	"github.com/R3E-Network/statsgate/internal/stats"
)

// QRPath is the factorization endpoint on the peer.
const QRPath = "/qr"

// Peers disagree on key spelling; the first present key wins.
var (
	qKeys     = []string{"q", "Q", "q_matrix", "QMatrix"}
	rKeys     = []string{"r", "R", "r_matrix", "RMatrix"}
	statsKeys = []string{"stats", "statistics"}
)

var (
	// ErrMalformedResponse is returned when the peer body is not usable JSON.
	ErrMalformedResponse = stderrors.New("peer: malformed response")

	// ErrPeerFailed is returned when the peer reports success=false.
	ErrPeerFailed = stderrors.New("peer: factorization failed")
)

// Factorization is the normalized peer answer.
type Factorization struct {
	Q       [][]float64
	R       [][]float64
	Stats   json.RawMessage
	Success bool
}

// StatsResult decodes the optional statistics block, or returns nil.
func (f *Factorization) StatsResult() (*stats.Result, error) {
	if len(f.Stats) == 0 {
		return nil, nil
	}
	var res stats.Result
	if err := json.Unmarshal(f.Stats, &res); err != nil {
		return nil, fmt.Errorf("decode peer stats: %w", err)
	}
	return &res, nil
}

// Config configures the peer client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// Client calls the peer.
type Client struct {
	http *httputil.ServiceClient
}

// New creates a peer client.
func New(cfg Config) *Client {
	return &Client{
		http: httputil.NewServiceClient(httputil.ServiceClientConfig{
			BaseURL:    cfg.BaseURL,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		}),
	}
}

// Factorize posts matrix to the peer under token and normalizes the answer.
func (c *Client) Factorize(ctx context.Context, token string, matrix [][]float64) (*Factorization, error) {
	if err := validateMatrix(matrix); err != nil {
		return nil, err
	}

	if token != "" {
		ctx = httputil.WithBearerToken(ctx, token)
	}

	resp, err := c.http.Post(ctx, QRPath, map[string]interface{}{"matrix": matrix})
	if err != nil {
		return nil, fmt.Errorf("call peer: %w", err)
	}

	var raw json.RawMessage
	if err := httputil.DecodeResponse(resp, &raw); err != nil {
		return nil, err
	}

	return ParseFactorization(raw)
}

// ParseFactorization normalizes a peer response body.
func ParseFactorization(body []byte) (*Factorization, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrMalformedResponse
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, ErrMalformedResponse
	}

	out := &Factorization{Success: true}
	if v := doc.Get("success"); v.Exists() {
		out.Success = v.Bool()
	}
	if !out.Success {
		msg := firstOf(doc, "error", "message").String()
		if msg == "" {
			return nil, ErrPeerFailed
		}
		return nil, fmt.Errorf("%w: %s", ErrPeerFailed, msg)
	}

	var err error
	if out.Q, err = toMatrix(firstOf(doc, qKeys...)); err != nil {
		return nil, fmt.Errorf("%w: Q: %v", ErrMalformedResponse, err)
	}
	if out.R, err = toMatrix(firstOf(doc, rKeys...)); err != nil {
		return nil, fmt.Errorf("%w: R: %v", ErrMalformedResponse, err)
	}
	if v := firstOf(doc, statsKeys...); v.Exists() && v.Type != gjson.Null {
		out.Stats = json.RawMessage(v.Raw)
	}

	return out, nil
}

func firstOf(doc gjson.Result, keys ...string) gjson.Result {
	for _, key := range keys {
		if v := doc.Get(key); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

func toMatrix(v gjson.Result) ([][]float64, error) {
	if !v.Exists() {
		return nil, fmt.Errorf("missing")
	}
	if !v.IsArray() {
		return nil, fmt.Errorf("not an array")
	}

	rows := v.Array()
	out := make([][]float64, 0, len(rows))
	for i, row := range rows {
		if !row.IsArray() {
			return nil, fmt.Errorf("row %d is not an array", i)
		}
		cells := row.Array()
		values := make([]float64, len(cells))
		for j, cell := range cells {
			if cell.Type != gjson.Number {
				return nil, fmt.Errorf("cell [%d][%d] is not a number", i, j)
			}
			values[j] = cell.Float()
		}
		out = append(out, values)
	}
	return out, nil
}

// validateMatrix mirrors the peer's own checks so that bad input fails locally.
func validateMatrix(m [][]float64) error {
	if len(m) == 0 {
		return errors.BadRequest("matrix must not be empty")
	}
	cols := len(m[0])
	if cols == 0 {
		return errors.BadRequest("matrix must have at least one column")
	}
	for i := range m {
		if len(m[i]) != cols {
			return errors.JaggedMatrix(0, i, cols, len(m[i]))
		}
	}
	return nil
}
