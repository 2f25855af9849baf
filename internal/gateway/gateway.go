// Package gateway talks to the GMX SMS gateway. The wire format differs
// between the legacy WR protocol and the REST protocol, so each generation
// is a Protocol that builds requests and classifies responses while Client
// owns the HTTP round trip.
package gateway

import (
	"net/http"
	"net/url"
	"time"
)

// Operation is a gateway action.
type Operation string

const (
	OpBootstrap Operation = "bootstrap"
	OpUpdate    Operation = "update"
	OpSend      Operation = "send"
)

// Account holds the credentials used to authenticate a call. The customer
// id is only known after a legacy bootstrap.
type Account struct {
	Username   string
	Password   string
	CustomerID string
}

// OutgoingMessage is a text to deliver to one or more recipients.
type OutgoingMessage struct {
	ID           string     `json:"id,omitempty"`
	Text         string     `json:"text"`
	Recipients   []string   `json:"recipients"`
	CustomSender string     `json:"custom_sender,omitempty"`
	SendAt       *time.Time `json:"send_at,omitempty"`
	// Sender is resolved by the connector from CustomSender or the default.
	Sender string `json:"-"`
}

// Request is a protocol-built HTTP call, independent of the target host.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
	// BasicUser and BasicPassword enable HTTP Basic auth when BasicUser is set.
	BasicUser     string
	BasicPassword string
}

// Response is the raw HTTP answer handed back to the protocol.
type Response struct {
	StatusCode    int
	Header        http.Header
	ContentLength int64
	Body          []byte
}

// Result is a successfully classified gateway response.
type Result struct {
	Code int
	// Balance is the remaining free SMS, "" when the response carries none.
	Balance string
	// CustomerID is set when the gateway rotated the customer id.
	CustomerID string
	Fields     map[string]string
}

// Protocol encodes one gateway generation.
type Protocol interface {
	Name() string
	Scheme() string
	Hosts() []string
	// NeedsBootstrap reports whether a bootstrap call must precede update or send.
	NeedsBootstrap(acct Account) bool
	BuildRequest(op Operation, acct Account, msg *OutgoingMessage) (*Request, error)
	ClassifyResponse(op Operation, resp *Response) (*Result, error)
}
