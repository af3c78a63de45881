package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mkrupp/portal-session/internal/domain"
	context_ "github.com/mkrupp/portal-session/internal/infra/context"
	"github.com/mkrupp/portal-session/internal/infra/logging"
	http_ "github.com/mkrupp/portal-session/internal/infra/transport/http"
)

const (
	DeviceIDHeader   = "X-Device-ID"
	ContentTypeJSON  = "application/json"
	maxResponseBytes = 1 << 20
)

// ErrUnexpectedStatus is returned by Validate for non-2xx, non-401 responses.
var ErrUnexpectedStatus = errors.New("unexpected status")

// HTTPClientConfig holds configuration for the HTTP auth client.
type HTTPClientConfig struct {
	// BaseURL is the backend root, e.g. http://192.168.0.88:5276/api
	BaseURL string `env:"BASE_URL" default:"http://localhost:5276/api"`
	// LoginPath is appended to BaseURL for login requests
	LoginPath string `env:"LOGIN_PATH" default:"/auth/login"`
	// ValidatePath is appended to BaseURL for token validation requests
	ValidatePath string `env:"VALIDATE_PATH" default:"/auth/validate"`
}

// DeviceIDSource yields the installation ID sent with login requests.
type DeviceIDSource interface {
	DeviceID(ctx context.Context) string
}

// HTTPClient implements AuthClient using JSON over HTTP.
type HTTPClient struct {
	httpClient *http.Client
	devices    DeviceIDSource
	log        logging.Logger
	cfg        HTTPClientConfig
}

var _ AuthClient = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTPClient with the given configuration.
// If httpClient is nil, http.DefaultClient will be used. devices may be nil.
func NewHTTPClient(
	cfg HTTPClientConfig,
	httpClient *http.Client,
	devices DeviceIDSource,
) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &HTTPClient{
		httpClient: httpClient,
		devices:    devices,
		log:        logging.GetLogger("svc.sessionsvc.authclient.http_client"),
		cfg:        cfg,
	}
}

func (c *HTTPClient) endpoint(path string) (string, error) {
	base, err := url.Parse(strings.TrimRight(c.cfg.BaseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	return base.JoinPath(path).String(), nil
}

// Login implements AuthClient.Login by posting the credentials as JSON.
func (c *HTTPClient) Login(ctx context.Context, loginReq domain.LoginRequest) (_ domain.LoginResult, err error) {
	log := c.log.With(logging.Group("user", "username", loginReq.Username))

	defer func() {
		if err != nil {
			log.DebugContext(ctx, "login request failed", "error", err)
		} else {
			log.DebugContext(ctx, "login request succeeded")
		}
	}()

	endpoint, err := c.endpoint(c.cfg.LoginPath)
	if err != nil {
		return domain.LoginResult{}, err
	}

	body, err := json.Marshal(loginReq)
	if err != nil {
		return domain.LoginResult{}, fmt.Errorf("marshal request: %w", err)
	}

	// A fresh login must not present the token it is about to replace.
	req, err := http.NewRequestWithContext(context_.WithoutAuthorization(ctx), http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.LoginResult{}, fmt.Errorf("new request: %w", err)
	}

	req.Header.Set("Content-Type", ContentTypeJSON)
	req.Header.Set("Accept", ContentTypeJSON)

	if c.devices != nil {
		if id := c.devices.DeviceID(ctx); id != "" {
			req.Header.Set(DeviceIDHeader, id)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.LoginResult{}, errors.Join(domain.ErrNetwork, fmt.Errorf("post: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.LoginResult{}, errors.Join(domain.ErrNetwork, fmt.Errorf("read body: %w", err))
	}

	var loginResp domain.LoginResponse

	decodeErr := json.Unmarshal(raw, &loginResp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.LoginResult{}, &domain.RejectionError{
			StatusCode: resp.StatusCode,
			Message:    loginResp.Message,
		}
	}

	if decodeErr != nil {
		return domain.LoginResult{}, errors.Join(domain.ErrAuthRejected, domain.ErrInvalidLoginResponse, decodeErr)
	}

	if err := loginResp.Validate(); err != nil {
		return domain.LoginResult{}, errors.Join(domain.ErrAuthRejected, err)
	}

	return domain.LoginResult{
		Token:   loginResp.Token.AccessToken,
		Profile: loginResp.UserProfile,
	}, nil
}

// Validate implements AuthClient.Validate by calling the validate endpoint
// with the token in the Authorization header.
func (c *HTTPClient) Validate(ctx context.Context, token string) (bool, error) {
	endpoint, err := c.endpoint(c.cfg.ValidatePath)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("new request: %w", err)
	}

	req.Header.Set(http_.AuthorizationHeader, http_.BearerScheme+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, errors.Join(domain.ErrNetwork, fmt.Errorf("get: %w", err))
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return true, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return false, &domain.RejectionError{StatusCode: resp.StatusCode}
	default:
		return false, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
}
