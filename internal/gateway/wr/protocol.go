package wr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/gmx-sms-connector/internal/gateway"
	"github.com/wolfman30/gmx-sms-connector/internal/transliterate"
)

const (
	Path            = "/WRServer/WRServer.dll/WR"
	ContentEncoding = "wr-cs"
	ContentType     = "text/plain"
	UserAgent       = "Mozilla/3.0 (compatible)"

	// MaxCustomSender is the longest sender name the gateway accepts.
	MaxCustomSender = 10

	sendDateLayout = "2006-01-02 15-04-00"
	serverFault    = "The truth"
)

// DefaultHosts is the legacy host rotation.
var DefaultHosts = []string{
	"app0.wr-gmbh.de",
	"app1.wr-gmbh.de",
	"app2.wr-gmbh.de",
	"app3.wr-gmbh.de",
	"app4.wr-gmbh.de",
	"app5.wr-gmbh.de",
	"app6.wr-gmbh.de",
	"app7.wr-gmbh.de",
}

// Result codes returned in the rslt field.
const (
	CodeOK                 = 0
	CodeWrongSender        = 8
	CodeWrongCustomer      = 11
	CodeWrongMail          = 25
	CodeSenderUnregistered = 71
)

var reasons = map[int]string{
	CodeWrongSender:        "wrong sender",
	CodeWrongCustomer:      "wrong customer id or password",
	CodeWrongMail:          "wrong mail address or password",
	CodeSenderUnregistered: "sender is not registered",
}

type packetDef struct {
	name     string
	version  string
	customer bool
}

var packets = map[gateway.Operation]packetDef{
	gateway.OpBootstrap: {name: "GET_CUSTOMER", version: "1.10"},
	gateway.OpUpdate:    {name: "GET_SMS_CREDITS", version: "1.00", customer: true},
	gateway.OpSend:      {name: "SEND_SMS", version: "1.01", customer: true},
}

// Options configures the legacy protocol.
type Options struct {
	Hosts    []string
	Table    *transliterate.Table
	Location *time.Location
}

// Protocol is the legacy WR gateway generation.
type Protocol struct {
	hosts    []string
	table    *transliterate.Table
	location *time.Location
}

// New creates the legacy protocol.
func New(opts Options) *Protocol {
	hosts := opts.Hosts
	if len(hosts) == 0 {
		hosts = DefaultHosts
	}
	table := opts.Table
	if table == nil {
		table = transliterate.Default()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &Protocol{
		hosts:    append([]string(nil), hosts...),
		table:    table,
		location: loc,
	}
}

func (p *Protocol) Name() string    { return "legacy" }
func (p *Protocol) Scheme() string  { return "http" }
func (p *Protocol) Hosts() []string { return append([]string(nil), p.hosts...) }

// NeedsBootstrap is true until the customer id is known.
func (p *Protocol) NeedsBootstrap(acct gateway.Account) bool {
	return strings.TrimSpace(acct.CustomerID) == ""
}

// BuildRequest renders the packet for op.
func (p *Protocol) BuildRequest(op gateway.Operation, acct gateway.Account, msg *gateway.OutgoingMessage) (*gateway.Request, error) {
	body, err := p.Packet(op, acct, msg)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Content-Type", ContentType)
	header.Set("Content-Encoding", ContentEncoding)
	header.Set("User-Agent", UserAgent)
	// A transparently decompressed reply loses its Content-Length.
	header.Set("Accept-Encoding", "identity")
	return &gateway.Request{
		Method: http.MethodPost,
		Path:   Path,
		Header: header,
		Body:   EncodeBody(body),
	}, nil
}

// Packet renders the unencoded request text for op.
func (p *Protocol) Packet(op gateway.Operation, acct gateway.Account, msg *gateway.OutgoingMessage) (string, error) {
	def, ok := packets[op]
	if !ok {
		return "", fmt.Errorf("wr: unsupported operation %q", op)
	}
	pkt := NewPacket(def.name, def.version)
	if def.customer {
		if acct.CustomerID == "" {
			return "", errors.New("wr: customer id required, bootstrap first")
		}
		pkt.Pair("customer_id", acct.CustomerID)
		pkt.Pair("password", acct.Password)
	}
	switch op {
	case gateway.OpBootstrap:
		pkt.Pair("email_address", acct.Username)
		pkt.Pair("password", acct.Password)
		pkt.Pair("gmx", "1")
	case gateway.OpSend:
		if msg == nil {
			return "", errors.New("wr: message required")
		}
		pkt.Pair("sms_text", p.table.Apply(msg.Text))
		pkt.Pair("receivers", ReceiverTable(msg.Recipients))
		pkt.Pair("send_option", "sms")
		pkt.Pair("sms_sender", msg.Sender)
		if msg.SendAt != nil {
			pkt.Pair("send_date", msg.SendAt.In(p.location).Format(sendDateLayout))
		}
	}
	return pkt.String(), nil
}

// ClassifyResponse turns a 200/202 answer into a result or a typed error.
func (p *Protocol) ClassifyResponse(op gateway.Operation, resp *gateway.Response) (*gateway.Result, error) {
	if resp.ContentLength <= 0 {
		return nil, gateway.MalformedError("response header missing Content-Length", "")
	}
	body, err := DecodeBody(resp.Body)
	if err != nil {
		return nil, gateway.MalformedError(err.Error(), "")
	}
	if strings.HasPrefix(body, serverFault) {
		gwErr := gateway.UnclassifiedError(-1, body)
		gwErr.Reason = "gateway rejected the request"
		return nil, gwErr
	}
	fields, err := Decode(body)
	if err != nil {
		return nil, gateway.MalformedError(err.Error(), body)
	}
	code, err := fields.ResultCode()
	if err != nil {
		return nil, gateway.MalformedError(err.Error(), fields.Raw())
	}

	switch code {
	case CodeOK:
		result := &gateway.Result{Code: code, Fields: fields.Map()}
		if remaining, ok := fields.Get("free_rem_month"); ok {
			result.Balance = remaining
			if limit, ok := fields.Get("free_max_month"); ok {
				result.Balance += "/" + limit
			}
		}
		if id, ok := fields.Get("customer_id"); ok {
			result.CustomerID = id
		}
		return result, nil
	case CodeWrongSender, CodeWrongCustomer, CodeWrongMail, CodeSenderUnregistered:
		gwErr := gateway.AuthError(code, reasons[code])
		gwErr.Payload = fields.Raw()
		return nil, gwErr
	default:
		gwErr := gateway.UnclassifiedError(code, fields.Raw())
		gwErr.Reason = strings.TrimSpace(fields.Raw())
		return nil, gwErr
	}
}
