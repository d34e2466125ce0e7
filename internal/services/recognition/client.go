package recognition

import (
	"context"
	"fmt"
	"time"

	drepo "TickFuse/internal/domain/repository"
	"TickFuse/pkg/config"
	xhttp "TickFuse/pkg/http"
)

// Client talks to the text-recognition service that extracts raw text from
// the configured screen region. Recognition itself is a black box; the
// engine only sees a string or a failure.
type Client struct {
	baseURL string
	region  Region
	client  *xhttp.Client
}

// Region is the screen rectangle the recognizer reads.
type Region struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func NewClient(cfg *config.Config) *Client {
	timeout := cfg.Recognition.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Client{
		baseURL: cfg.Recognition.ServiceURL,
		region: Region{
			Left:   cfg.Recognition.Region.Left,
			Top:    cfg.Recognition.Region.Top,
			Width:  cfg.Recognition.Region.Width,
			Height: cfg.Recognition.Region.Height,
		},
		client: xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

// SetRegion repoints the recognizer at a new screen rectangle.
func (c *Client) SetRegion(r Region) { c.region = r }

type recognizeReq struct {
	Region Region `json:"region"`
}

type recognizeResp struct {
	Text string `json:"text"`
	OK   bool   `json:"ok"`
}

// Recognize asks the service for the current text in the region.
func (c *Client) Recognize(ctx context.Context) (string, error) {
	var rr recognizeResp
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    c.baseURL + "/recognize",
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: recognizeReq{Region: c.region},
	}, &rr)
	if err != nil {
		return "", fmt.Errorf("post recognize: %w", err)
	}
	if !rr.OK {
		return "", fmt.Errorf("recognize: no text in region")
	}
	return rr.Text, nil
}

var _ drepo.Recognizer = (*Client)(nil)
