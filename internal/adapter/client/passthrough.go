package client

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/corral-proxy/corral/internal/core/constants"
	"github.com/corral-proxy/corral/internal/core/domain"
)

// PassthroughClient posts the caller's payload unchanged to the configured URL
// and hands back the backend's status, headers and live body. OpenAI style
// backends authenticate with a bearer token, Azure OpenAI with an api-key
// header.
type PassthroughClient struct {
	http          *http.Client
	config        domain.EndpointConfig
	headerTimeout time.Duration
}

func NewPassthroughClient(cfg domain.EndpointConfig, httpClient *http.Client, headerTimeout time.Duration) *PassthroughClient {
	return &PassthroughClient{
		config:        cfg,
		http:          httpClient,
		headerTimeout: headerTimeout,
	}
}

func (c *PassthroughClient) Protocol() string {
	return c.config.Protocol
}

func (c *PassthroughClient) Invoke(ctx context.Context, req *domain.Request) *domain.Response {
	started := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URLString(), bytes.NewReader(req.Payload))
	if err != nil {
		return failure(c.config, err, started, c.headerTimeout)
	}
	httpReq.Header = outboundHeaders(req)
	c.authorise(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return failure(c.config, err, started, c.headerTimeout)
	}

	return &domain.Response{
		StatusCode: resp.StatusCode,
		Header:     CopyResponseHeaders(resp.Header),
		Body:       resp.Body,
		Backend:    c.config.Name,
	}
}

func (c *PassthroughClient) authorise(req *http.Request) {
	if c.config.APIKey == "" {
		return
	}
	if c.config.Protocol == constants.ProtocolAzure {
		req.Header.Set(constants.HeaderAzureAPIKey, c.config.APIKey)
		return
	}
	req.Header.Set(constants.HeaderAuthorization, "Bearer "+c.config.APIKey)
}
