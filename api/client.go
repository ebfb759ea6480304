// Package api - Client und Wire-Typen der waifu2x HTTP API.
//
// Package api implements the client-side API for code wishing to interact
// with the waifu2x service. The methods of the [Client] type correspond to
// the routes registered by the server package. The waifu2x command-line
// client uses this package to talk to a running server (version check,
// remote model listing and remote upscaling).
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"runtime"
	"strings"

	"github.com/7blacky7/waifu2x-go/envconfig"
	"github.com/7blacky7/waifu2x-go/version"
)

// Client encapsulates client state for interacting with the waifu2x
// service. Use [ClientFromEnvironment] to create new Clients.
type Client struct {
	base *url.URL
	http *http.Client
}

func checkError(resp *http.Response, body []byte) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	apiError := StatusError{StatusCode: resp.StatusCode, Status: resp.Status}

	err := json.Unmarshal(body, &apiError)
	if err != nil {
		// Use the full body as the message if we fail to decode a response.
		apiError.Message = string(body)
	}

	return apiError
}

// ClientFromEnvironment creates a new [Client] using configuration from the
// environment variable WAIFU2X_HOST, which points to the network host and
// port on which the waifu2x service is listening. The format of this
// variable is:
//
//	<scheme>://<host>:<port>
//
// If the variable is not specified, a default host and port will be used.
func ClientFromEnvironment() (*Client, error) {
	return &Client{
		base: envconfig.Host(),
		http: http.DefaultClient,
	}, nil
}

func NewClient(base *url.URL, http *http.Client) *Client {
	return &Client{
		base: base,
		http: http,
	}
}

func userAgent() string {
	return fmt.Sprintf("waifu2x/%s (%s %s) Go/%s", version.Version, runtime.GOARCH, runtime.GOOS, runtime.Version())
}

func (c *Client) do(ctx context.Context, method, path string, reqData, respData any) error {
	var reqBody io.Reader

	switch reqData := reqData.(type) {
	case io.Reader:
		reqBody = reqData
	case nil:
		// noop
	default:
		data, err := json.Marshal(reqData)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), reqBody)
	if err != nil {
		return err
	}

	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", userAgent())

	respObj, err := c.http.Do(request)
	if err != nil {
		return err
	}
	defer respObj.Body.Close()

	respBody, err := io.ReadAll(respObj.Body)
	if err != nil {
		return err
	}

	if err := checkError(respObj, respBody); err != nil {
		return err
	}

	if len(respBody) > 0 && respData != nil {
		if err := json.Unmarshal(respBody, respData); err != nil {
			return err
		}
	}
	return nil
}

// Heartbeat checks if the server has started and is responsive; if yes, it
// returns nil, otherwise an error.
func (c *Client) Heartbeat(ctx context.Context) error {
	return c.do(ctx, http.MethodHead, "/", nil, nil)
}

// Version returns the waifu2x server version as a string.
func (c *Client) Version(ctx context.Context) (string, error) {
	var resp VersionResponse
	if err := c.do(ctx, http.MethodGet, "/api/version", nil, &resp); err != nil {
		return "", err
	}
	return resp.Version, nil
}

// List lists the model artifacts available on the server.
func (c *Client) List(ctx context.Context) (*ListResponse, error) {
	var lr ListResponse
	if err := c.do(ctx, http.MethodGet, "/api/models", nil, &lr); err != nil {
		return nil, err
	}
	return &lr, nil
}

// Upscale sends the image read from r to the server and returns the
// restored image as PNG bytes together with the stages the server ran.
// filename is only used for the multipart header; the server detects the
// format from the content.
func (c *Client) Upscale(ctx context.Context, filename string, r io.Reader, req UpscaleRequest) (*UpscaleResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	for _, f := range req.Fields() {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, err
		}
	}

	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.JoinPath("/api/upscale").String(), &body)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", mw.FormDataContentType())
	request.Header.Set("Accept", "image/png")
	request.Header.Set("User-Agent", userAgent())

	resp, err := c.http.Do(request)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if err := checkError(resp, data); err != nil {
		return nil, err
	}

	out := &UpscaleResponse{
		Image:     data,
		RequestID: resp.Header.Get(RequestIDHeader),
	}
	if s := resp.Header.Get(StagesHeader); s != "" {
		out.Stages = strings.Split(s, ",")
	}
	return out, nil
}
