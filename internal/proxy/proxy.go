// Package proxy forwards backend-owned routes to the inference backend,
// injecting the server-verified identity and preserving upstream status
// semantics.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"

	"aigateway/internal/middleware"
	"aigateway/internal/response"

	"github.com/gin-gonic/gin"
)

type contextKey string

const identityContextKey = contextKey("verifiedUserID")

// deniedPrefixes are backend introspection paths that must never be reachable
// through the gateway.
var deniedPrefixes = []string{"/internal/", "/metrics", "/debug/"}

// maxErrorBody bounds how much of an upstream error body is read for unwrap.
const maxErrorBody = 64 << 10

// Proxy is the reverse proxy to the inference backend.
type Proxy struct {
	target       *url.URL
	reverseProxy *httputil.ReverseProxy
	logger       *slog.Logger
}

// New builds a Proxy against the backend base URL.
func New(target string, logger *slog.Logger) (*Proxy, error) {
	targetURL, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid backend base URL: %w", err)
	}

	p := &Proxy{
		target: targetURL,
		logger: logger.With("component", "proxy"),
	}

	p.reverseProxy = &httputil.ReverseProxy{
		Director:       p.direct,
		ModifyResponse: p.modifyResponse,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			if errors.Is(err, context.Canceled) || errors.Is(err, http.ErrAbortHandler) {
				p.logger.Warn("Client disconnected", "error", err)
				return
			}
			p.logger.Error("Backend unreachable", "error", err)
			writeEnvelope(w, http.StatusBadGateway, response.CodeServiceDown, "inference backend unreachable")
		},
	}
	return p, nil
}

// direct rewrites the request onto the backend and injects the verified
// identity. A client-supplied user_id is always stripped; the backend never
// trusts the client about who is calling.
func (p *Proxy) direct(req *http.Request) {
	req.URL.Scheme = p.target.Scheme
	req.URL.Host = p.target.Host
	req.Host = p.target.Host

	query := req.URL.Query()
	query.Del("user_id")
	if userID, ok := req.Context().Value(identityContextKey).(uint); ok {
		query.Set("user_id", strconv.FormatUint(uint64(userID), 10))
	}
	req.URL.RawQuery = query.Encode()
}

// modifyResponse unwraps structured upstream errors into the gateway's
// envelope while keeping the original HTTP status. A 429 from the backend
// stays a 429 here.
func (p *Proxy) modifyResponse(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
	if err != nil {
		return err
	}

	detail := extractDetail(body)
	if detail == "" {
		// Nothing recognizable; pass the body through untouched.
		resp.Body = io.NopCloser(bytes.NewReader(body))
		return nil
	}

	envelope, err := json.Marshal(response.Envelope{
		Success: false,
		Error:   &response.ErrorBody{Code: response.CodeUpstream, Message: detail},
	})
	if err != nil {
		resp.Body = io.NopCloser(bytes.NewReader(body))
		return nil
	}
	resp.Body = io.NopCloser(bytes.NewReader(envelope))
	resp.ContentLength = int64(len(envelope))
	resp.Header.Set("Content-Length", strconv.Itoa(len(envelope)))
	resp.Header.Set("Content-Type", "application/json")
	return nil
}

// extractDetail pulls the first of detail/message/error from a structured
// upstream error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	for _, candidate := range []string{parsed.Detail, parsed.Message, parsed.Error} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// Handler adapts the proxy into a gin handler. Denied paths 404 before any
// bytes leave the gateway; the verified identity, when present, rides the
// request context into the Director.
func (p *Proxy) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, prefix := range deniedPrefixes {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				response.Fail(c, http.StatusNotFound, response.CodeNotFound, "not found")
				return
			}
		}

		req := c.Request
		if user, ok := middleware.CurrentUser(c); ok {
			req = req.WithContext(context.WithValue(req.Context(), identityContextKey, user.ID))
		}
		p.reverseProxy.ServeHTTP(c.Writer, req)
	}
}

func writeEnvelope(w http.ResponseWriter, status int, code, message string) {
	body, err := json.Marshal(response.Envelope{
		Success: false,
		Error:   &response.ErrorBody{Code: code, Message: message},
	})
	if err != nil {
		http.Error(w, message, status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
