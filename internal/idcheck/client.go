// Package idcheck is the HTTP client for the external ID card validation
// service. The service runs the actual model inference; this package only
// speaks its contract: a multipart POST with name, university and image,
// answered by a JSON SubmissionResult.
package idcheck

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/aanand-mishra/idcard-portal/internal/types"
)

// Endpoint paths exposed by the validation service.
const (
	PathSingle = "/process-image"
	PathYOLO   = "/process-image-yolo"
	PathNLP    = "/process-image-nlp"
)

// maxResponseBytes caps how much of an upstream answer is read.
const maxResponseBytes = 1 << 20

var (
	// ErrUpstreamStatus is returned when the service answers with a non-2xx status.
	ErrUpstreamStatus = errors.New("upstream returned non-success status")

	// ErrUnknownModel is returned for a model selection outside 1/2 in the dual variant.
	ErrUnknownModel = errors.New("unknown model selection")
)

// Client talks to one validation service.
// A single *Client is safe for concurrent use.
type Client struct {
	baseURL string
	variant types.Variant
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client (which has no timeout:
// a submission runs until the service answers).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL string, variant types.Variant, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		variant: variant,
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Variant reports which flavour of the service the client targets.
func (c *Client) Variant() types.Variant { return c.variant }

// Endpoint returns the absolute URL a submission with the given model goes to.
// The single variant ignores the model.
func (c *Client) Endpoint(model types.Model) (string, error) {
	if c.variant != types.VariantDual {
		return c.baseURL + PathSingle, nil
	}
	switch model {
	case types.ModelYOLO:
		return c.baseURL + PathYOLO, nil
	case types.ModelNLP:
		return c.baseURL + PathNLP, nil
	}
	return "", fmt.Errorf("%w: %d", ErrUnknownModel, model)
}

// Submit sends one multipart request and decodes the JSON answer.
// Every failure (transport, status, decoding) comes back as an error; callers
// that show errors to users are expected to collapse them into one message.
func (c *Client) Submit(ctx context.Context, input types.FormInput, model types.Model) (types.SubmissionResult, error) {
	var result types.SubmissionResult

	endpoint, err := c.Endpoint(model)
	if err != nil {
		return result, err
	}

	body, contentType, err := encodeForm(input)
	if err != nil {
		return result, fmt.Errorf("Submit: encode form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return result, fmt.Errorf("Submit: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return result, fmt.Errorf("Submit: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return result, fmt.Errorf("Submit: %w: %d", ErrUpstreamStatus, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&result); err != nil {
		return types.SubmissionResult{}, fmt.Errorf("Submit: decode response: %w", err)
	}

	return result, nil
}

// Ping checks that the service answers on its root path.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("Ping: create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("Ping: send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Ping: %w: %d", ErrUpstreamStatus, resp.StatusCode)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// encodeForm builds the three-part multipart body: name, university, image.
func encodeForm(input types.FormInput) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	if err := w.WriteField("name", input.Name); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("university", input.University); err != nil {
		return nil, "", err
	}

	var img types.Image
	if input.Image != nil {
		img = *input.Image
	}
	filename := img.Filename
	if filename == "" {
		filename = "image"
	}
	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="image"; filename="%s"`, quoteEscaper.Replace(filename)))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body, w.FormDataContentType(), nil
}
