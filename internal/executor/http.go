package executor

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
)

// HTTPExecutor invokes an HTTP endpoint via go-resty. The descriptor is
// "METHOD URL"; named parameters become the JSON body for POST/PUT/PATCH or
// the query string for GET/DELETE.
type HTTPExecutor struct {
	Client *resty.Client
}

// NewHTTPExecutor builds an HTTPExecutor sharing one resty client across
// invocations (connection pooling, consistent timeouts).
func NewHTTPExecutor(client *resty.Client) *HTTPExecutor {
	if client == nil {
		client = resty.New()
	}
	return &HTTPExecutor{Client: client}
}

func (h *HTTPExecutor) Invoke(
	ctx context.Context,
	descriptor string,
	_ []any,
	named map[string]any,
) (*Outcome, error) {
	method, target, err := parseHTTPDescriptor(descriptor)
	if err != nil {
		return &Outcome{Error: err.Error()}, nil
	}
	req := h.Client.R().SetContext(ctx)
	var result map[string]any
	req.SetResult(&result)
	switch strings.ToUpper(method) {
	case "GET", "DELETE":
		q := url.Values{}
		for k, v := range named {
			q.Set(k, fmt.Sprintf("%v", v))
		}
		target += "?" + q.Encode()
	default:
		req.SetBody(named)
	}
	resp, err := req.Execute(strings.ToUpper(method), target)
	if err != nil {
		return &Outcome{Error: err.Error()}, nil
	}
	if resp.IsError() {
		return &Outcome{Error: fmt.Sprintf("http %d: %s", resp.StatusCode(), resp.String())}, nil
	}
	return &Outcome{Result: result}, nil
}

func parseHTTPDescriptor(descriptor string) (method, target string, err error) {
	parts := strings.SplitN(strings.TrimSpace(descriptor), " ", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("http executor: descriptor must be \"METHOD URL\", got %q", descriptor)
	}
	return parts[0], parts[1], nil
}
