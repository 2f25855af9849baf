// Package rest implements the REST generation of the GMX SMS gateway.
package rest

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/wolfman30/gmx-sms-connector/internal/gateway"
)

const (
	DefaultHost    = "sms-submission-service.gmx.de"
	basePath       = "/sms-submission-service/gmx/sms/2.0"
	capabilities   = basePath + "/SmsCapabilities"
	submission     = basePath + "/SmsSubmission"
	clientType     = "GMX_ANDROID"
	textType       = "text/plain; charset=UTF-8"
	unknownBalance = "?"

	keyAvailable = "AVAILABLE_FREE_SMS"
	keyMaxMonth  = "MAX_MONTH_FREE_SMS"
)

// Options configures the REST protocol.
type Options struct {
	Host string
	// Insecure switches to plain http, used against local test servers.
	Insecure bool
}

// Protocol is the REST gateway generation.
type Protocol struct {
	host   string
	scheme string
}

// New creates the REST protocol.
func New(opts Options) *Protocol {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = DefaultHost
	}
	scheme := "https"
	if opts.Insecure {
		scheme = "http"
	}
	return &Protocol{host: host, scheme: scheme}
}

func (p *Protocol) Name() string    { return "rest" }
func (p *Protocol) Scheme() string  { return p.scheme }
func (p *Protocol) Hosts() []string { return []string{p.host} }

// NeedsBootstrap is always false, the REST gateway authenticates per call.
func (p *Protocol) NeedsBootstrap(gateway.Account) bool { return false }

// BuildRequest renders the HTTP call for op.
func (p *Protocol) BuildRequest(op gateway.Operation, acct gateway.Account, msg *gateway.OutgoingMessage) (*gateway.Request, error) {
	query := url.Values{}
	query.Set("clientType", clientType)
	req := &gateway.Request{
		Query:         query,
		Header:        http.Header{},
		BasicUser:     acct.Username,
		BasicPassword: acct.Password,
	}
	switch op {
	case gateway.OpUpdate:
		req.Method = http.MethodGet
		req.Path = capabilities
	case gateway.OpSend:
		if msg == nil {
			return nil, errors.New("rest: message required")
		}
		req.Method = http.MethodPost
		req.Path = submission
		query.Set("messageType", "SMS")
		if msg.Sender != "" {
			query.Set("sourceNumber", msg.Sender)
		}
		for _, r := range msg.Recipients {
			query.Add("destinationNumber", r)
		}
		if msg.SendAt != nil {
			query.Set("sendDate", strconv.FormatInt(msg.SendAt.UnixMilli(), 10))
		}
		req.Header.Set("Content-Type", textType)
		req.Body = []byte(msg.Text)
	default:
		return nil, fmt.Errorf("rest: unsupported operation %q", op)
	}
	return req, nil
}

// ClassifyResponse decodes the key=value&... payload. Update results carry
// the balance, send results are informational.
func (p *Protocol) ClassifyResponse(op gateway.Operation, resp *gateway.Response) (*gateway.Result, error) {
	fields := ParseFields(string(resp.Body))
	result := &gateway.Result{Code: 0, Fields: fields}
	if op == gateway.OpUpdate {
		result.Balance = Balance(fields)
	}
	return result, nil
}

// ParseFields splits an &-delimited payload into key/value pairs. Values are
// query-unescaped when possible and kept raw otherwise.
func ParseFields(body string) map[string]string {
	fields := make(map[string]string)
	for _, part := range strings.Split(strings.TrimSpace(body), "&") {
		key, value, ok := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		if _, seen := fields[key]; !seen {
			fields[key] = strings.TrimSpace(value)
		}
	}
	return fields
}

// Balance renders available/max, available alone, or "?".
func Balance(fields map[string]string) string {
	available := fields[keyAvailable]
	if available == "" {
		return unknownBalance
	}
	if limit := fields[keyMaxMonth]; limit != "" {
		return available + "/" + limit
	}
	return available
}
