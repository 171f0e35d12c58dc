package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/mikey/email-verifier/internal/core"
	"go.uber.org/zap"
)

const defaultUploadName = "emails.csv"

// HTTPSubmitter posts verification jobs and hands back the streaming response body
type HTTPSubmitter struct {
	client          *http.Client
	verifyPath      string
	sendCredentials bool
	logger          *zap.Logger
}

// NewHTTPSubmitter creates a new submitter
func NewHTTPSubmitter(client *http.Client, verifyPath string, sendCredentials bool, logger *zap.Logger) *HTTPSubmitter {
	return &HTTPSubmitter{
		client:          client,
		verifyPath:      verifyPath,
		sendCredentials: sendCredentials,
		logger:          logger,
	}
}

// Submit sends the job as one multipart request. A non-2xx answer is a service error and
// its body is closed before returning.
func (s *HTTPSubmitter) Submit(ctx context.Context, endpoint core.Endpoint, job *core.UploadJob) (io.ReadCloser, error) {
	body, contentType, err := s.buildBody(job)
	if err != nil {
		return nil, fmt.Errorf("failed to build verification request: %w", err)
	}

	url := string(endpoint) + s.verifyPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, core.ConnectionError("gateway.submit", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "text/event-stream")

	s.logger.Debug("Submitting verification request",
		zap.String("url", url),
		zap.Int("size", body.Len()))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, core.ConnectionError("gateway.submit", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, core.ServiceError("gateway.submit", resp.StatusCode)
	}

	return resp.Body, nil
}

func (s *HTTPSubmitter) buildBody(job *core.UploadJob) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := job.FileName
	if name == "" {
		name = defaultUploadName
	}
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(job.Content); err != nil {
		return nil, "", err
	}

	for _, field := range ProxyFields(job.Proxies, s.sendCredentials) {
		if err := w.WriteField(field[0], field[1]); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// ProxyFields returns the proxy form fields in wire order. Without credential fields the
// whole pool is sent in its text form, one proxy per line. With credential fields only the
// first proxy is sent, split into address and credentials.
func ProxyFields(proxies []core.ProxySpec, sendCredentials bool) [][2]string {
	if !sendCredentials {
		lines := make([]string, 0, len(proxies))
		for _, p := range proxies {
			lines = append(lines, p.String())
		}
		return [][2]string{{"proxy", strings.Join(lines, "\n")}}
	}

	var first core.ProxySpec
	if len(proxies) > 0 {
		first = proxies[0]
	}
	return [][2]string{
		{"proxy", first.Address},
		{"proxyUser", first.Username},
		{"proxyPass", first.Password},
	}
}
