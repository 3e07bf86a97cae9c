package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kofuk/premises-launcher/internal/otel"
)

const (
	ParseError            = -32700
	ParseErrorMessage     = "Parse error"
	InvalidRequest        = -32600
	InvalidRequestMessage = "Invalid request"
	MethodNotFound        = -32601
	MethodNotFoundMessage = "Method not found"
	InvalidParams         = -32602
	InvalidParamsMessage  = "Invalid params"
	InternalError         = -32603
	InternalErrorMessage  = "Internal error"
	// Implementation-defined errors
	CallerError        = -32000
	ServerErrorMessage = "Server error"
)

const Version = "2.0"

type Request[T any] struct {
	Version     string `json:"jsonrpc"`
	ID          *int   `json:"id,omitempty"`
	Method      string `json:"method"`
	Params      T      `json:"params"`
	Traceparent string `json:"-"`
}

type AbstractRequest Request[json.RawMessage]

func (req *AbstractRequest) Bind(v any) error {
	if len(req.Params) == 0 {
		return errors.New("missing params")
	}
	return json.Unmarshal(req.Params, v)
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	msg := fmt.Sprintf("RPCError: %d: %s", e.Code, e.Message)
	if e.Data != "" {
		msg += ": " + e.Data
	}
	return msg
}

type Response[T any] struct {
	Version     string    `json:"jsonrpc"`
	ID          int       `json:"id"`
	Result      T         `json:"result,omitempty"`
	Error       *RPCError `json:"error,omitempty"`
	Traceparent string    `json:"-"`
}

// envelope is what comes off the wire before we know whether the peer sent a
// request, a notification or a response.
type envelope struct {
	Version string          `json:"jsonrpc"`
	ID      *int            `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

func (e *envelope) isResponse() bool {
	return e.Method == "" && e.ID != nil
}

func (e *envelope) request(traceparent string) *AbstractRequest {
	return &AbstractRequest{
		Version:     e.Version,
		ID:          e.ID,
		Method:      e.Method,
		Params:      e.Params,
		Traceparent: traceparent,
	}
}

func (e *envelope) response(traceparent string) *Response[json.RawMessage] {
	return &Response[json.RawMessage]{
		Version:     e.Version,
		ID:          *e.ID,
		Result:      e.Result,
		Error:       e.Error,
		Traceparent: traceparent,
	}
}

// MaxContentLength bounds the body of a single packet.
const MaxContentLength = 16 << 20

type Packet struct {
	ContentLength int
	Traceparent   string
	Body          json.RawMessage
}

// packetReader keeps one bufio.Reader for the lifetime of a stream, so bytes
// buffered past the end of a packet are not lost.
type packetReader struct {
	br *bufio.Reader
}

func newPacketReader(r io.Reader) *packetReader {
	return &packetReader{br: bufio.NewReader(r)}
}

func (pr *packetReader) Read() (*Packet, error) {
	packet := &Packet{
		ContentLength: -1,
	}
	for {
		l, _, err := pr.br.ReadLine()
		if err != nil {
			return nil, err
		}
		if len(l) == 0 {
			break
		}
		f := strings.SplitN(string(l), ": ", 2)
		if len(f) != 2 {
			return nil, errors.New("invalid header")
		}
		if strings.EqualFold(f[0], "content-length") {
			packet.ContentLength, err = strconv.Atoi(f[1])
			if err != nil {
				return nil, err
			}
		} else if strings.EqualFold(f[0], "traceparent") {
			packet.Traceparent = f[1]
		}
	}

	if packet.ContentLength < 0 {
		return nil, errors.New("invalid length")
	}
	if packet.ContentLength > MaxContentLength {
		return nil, fmt.Errorf("packet too large: %d bytes", packet.ContentLength)
	}

	buf := make([]byte, packet.ContentLength)
	if _, err := io.ReadFull(pr.br, buf); err != nil {
		return nil, err
	}

	var body json.RawMessage
	if err := json.Unmarshal(buf, &body); err != nil {
		return nil, err
	}

	packet.Body = body

	return packet, nil
}

func readPacket(r io.Reader) (*Packet, error) {
	return newPacketReader(r).Read()
}

func (pr *packetReader) readEnvelope() (*envelope, string, error) {
	packet, err := pr.Read()
	if err != nil {
		return nil, "", err
	}

	var env envelope
	if err := json.Unmarshal(packet.Body, &env); err != nil {
		return nil, "", err
	}

	return &env, packet.Traceparent, nil
}

func writePacket(ctx context.Context, w io.Writer, body any) error {
	bw := bufio.NewWriter(w)

	bodyJSON, err := json.Marshal(&body)
	if err != nil {
		return err
	}

	bw.WriteString(fmt.Sprintf("Content-Length: %d\r\n", len(bodyJSON)))
	if traceparent := otel.TraceContextFromContext(ctx); traceparent != "" {
		bw.WriteString(fmt.Sprintf("Traceparent: %s\r\n", traceparent))
	}
	bw.WriteString("\r\n")
	bw.Write(bodyJSON)

	return bw.Flush()
}
