package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

const (
	DefaultRequestTimeout = 30 * time.Second

	kernelsPath = "/api/kernels"
)

// RestClient implements ControlAPI against the REST API of a Jupyter server.
type RestClient struct {
	log logger.Logger

	baseUrl    string
	token      string
	httpClient *http.Client
}

// NewRestClient creates a RestClient for the server at baseUrl (e.g., "http://localhost:8888").
// If token is non-empty, it is sent in the Authorization header of every request.
func NewRestClient(baseUrl string, token string, httpClient *http.Client) *RestClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultRequestTimeout}
	}

	c := &RestClient{
		baseUrl:    strings.TrimSuffix(baseUrl, "/"),
		token:      token,
		httpClient: httpClient,
	}
	config.InitLogger(&c.log, c)

	return c
}

// BaseUrl returns the base URL of the Jupyter server.
func (c *RestClient) BaseUrl() string {
	return c.baseUrl
}

func (c *RestClient) ListKernels(ctx context.Context) ([]*Kernel, error) {
	kernels := make([]*Kernel, 0)
	if err := c.do(ctx, http.MethodGet, kernelsPath, nil, &kernels); err != nil {
		return nil, errors.Wrap(err, "failed to list kernels")
	}

	return kernels, nil
}

func (c *RestClient) GetKernel(ctx context.Context, kernelId string) (*Kernel, error) {
	var kernel Kernel
	if err := c.do(ctx, http.MethodGet, kernelPath(kernelId), nil, &kernel); err != nil {
		return nil, err
	}

	return &kernel, nil
}

func (c *RestClient) StartKernel(ctx context.Context, name string) (*Kernel, error) {
	body := make(map[string]interface{})
	if name != "" {
		body["name"] = name
	}

	var kernel Kernel
	if err := c.do(ctx, http.MethodPost, kernelsPath, body, &kernel); err != nil {
		return nil, errors.Wrap(err, "failed to start kernel")
	}

	if kernel.ID == "" {
		return nil, fmt.Errorf("%w: server returned a kernel without an ID", ErrInvalidKernelSpec)
	}

	c.log.Debug("Started kernel %s.", kernel.String())
	return &kernel, nil
}

func (c *RestClient) InterruptKernel(ctx context.Context, kernelId string) error {
	return c.do(ctx, http.MethodPost, kernelPath(kernelId)+"/interrupt", nil, nil)
}

func (c *RestClient) RestartKernel(ctx context.Context, kernelId string) (*Kernel, error) {
	var kernel Kernel
	if err := c.do(ctx, http.MethodPost, kernelPath(kernelId)+"/restart", nil, &kernel); err != nil {
		return nil, err
	}

	return &kernel, nil
}

func (c *RestClient) ShutdownKernel(ctx context.Context, kernelId string) error {
	return c.do(ctx, http.MethodDelete, kernelPath(kernelId), nil, nil)
}

func kernelPath(kernelId string) string {
	return kernelsPath + "/" + url.PathEscape(kernelId)
}

// do issues a request and decodes the JSON response body into out (if out is non-nil).
// A 404 is reported as ErrKernelNotFound and any other non-2xx status as ErrUnexpectedStatus.
func (c *RestClient) do(ctx context.Context, method string, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseUrl+path, reader)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s failed", method, path)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "failed to read response of %s %s", method, path)
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s %s", ErrKernelNotFound, method, path)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("%s %s returned %d: %s", method, path, resp.StatusCode, string(payload))
		return fmt.Errorf("%w: %s %s returned %d", ErrUnexpectedStatus, method, path, resp.StatusCode)
	}

	if out == nil || len(payload) == 0 {
		return nil
	}

	if err = json.Unmarshal(payload, out); err != nil {
		return errors.Wrapf(err, "failed to decode response of %s %s", method, path)
	}

	return nil
}
