package socketmap

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	// DefaultMaxRequestLen matches the Postfix socketmap request bound.
	DefaultMaxRequestLen uint64 = 100000
	// DefaultMaxReplyLen matches the reply bound the Postfix client enforces.
	DefaultMaxReplyLen uint64 = 100000
)

var (
	ErrInvalidRequest = errors.New("socketmap: invalid request")
	ErrInvalidReply   = errors.New("socketmap: invalid reply")

	// ErrEmptyRequest and ErrMissingKey narrow ErrInvalidRequest so
	// callers can tell which half of the payload was bad. Both still
	// match ErrInvalidRequest under errors.Is.
	ErrEmptyRequest = fmt.Errorf("%w: empty map name", ErrInvalidRequest)
	ErrMissingKey   = fmt.Errorf("%w: missing key", ErrInvalidRequest)
)

// Status is the first token of a reply payload.
type Status string

const (
	StatusOK       Status = "OK"
	StatusNotFound Status = "NOTFOUND"
	StatusTemp     Status = "TEMP"
	StatusPerm     Status = "PERM"
	StatusTimeout  Status = "TIMEOUT"
)

func (s Status) valid() bool {
	switch s {
	case StatusOK, StatusNotFound, StatusTemp, StatusPerm, StatusTimeout:
		return true
	}
	return false
}

// Request is one lookup: a map name and the key to resolve in it.
type Request struct {
	Name string
	Key  string
}

// Reply is one lookup answer. Text is the value for StatusOK, empty for
// StatusNotFound, and a diagnostic for the failure statuses.
type Reply struct {
	Status Status
	Text   string
}

// ParseRequest splits a decoded request payload at the first space. The
// map name must be non-empty and space-free; the key is the remainder and
// may itself contain spaces.
func ParseRequest(payload []byte) (Request, error) {
	if len(payload) == 0 {
		return Request{}, ErrEmptyRequest
	}
	name, key, found := bytes.Cut(payload, []byte{' '})
	if len(name) == 0 {
		return Request{}, ErrEmptyRequest
	}
	if !found || len(key) == 0 {
		return Request{}, ErrMissingKey
	}
	return Request{Name: string(name), Key: string(key)}, nil
}

// ParseReply splits a decoded reply payload into status and text. A reply
// with no space is a bare status with empty text.
func ParseReply(payload []byte) (Reply, error) {
	statusTok, text, _ := bytes.Cut(payload, []byte{' '})
	status := Status(statusTok)
	if !status.valid() {
		return Reply{}, fmt.Errorf("%w: unknown status %q", ErrInvalidReply, string(statusTok))
	}
	return Reply{Status: status, Text: string(text)}, nil
}

// WriteRequest frames "name SP key" as one netstring.
func WriteRequest(w io.Writer, name, key string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty map name", ErrInvalidRequest)
	}
	if strings.ContainsRune(name, ' ') {
		return fmt.Errorf("%w: map name %q contains a space", ErrInvalidRequest, name)
	}
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidRequest)
	}
	payload := make([]byte, 0, len(name)+1+len(key))
	payload = append(payload, name...)
	payload = append(payload, ' ')
	payload = append(payload, key...)
	return writeNetstring(w, payload)
}

// WriteReply frames "STATUS SP text" as one netstring. The space is
// always present, even with empty text, which is the shape the Postfix
// client expects.
func WriteReply(w io.Writer, reply Reply) error {
	if !reply.Status.valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidReply, string(reply.Status))
	}
	payload := make([]byte, 0, len(reply.Status)+1+len(reply.Text))
	payload = append(payload, reply.Status...)
	payload = append(payload, ' ')
	payload = append(payload, reply.Text...)
	return writeNetstring(w, payload)
}

// writeNetstring frames one payload in a single Write so concurrent
// writers cannot interleave partial records. Decoding stays in
// internal/protocol/netstring.
func writeNetstring(w io.Writer, payload []byte) error {
	wire := make([]byte, 0, len(payload)+22)
	wire = strconv.AppendUint(wire, uint64(len(payload)), 10)
	wire = append(wire, ':')
	wire = append(wire, payload...)
	wire = append(wire, ',')
	if _, err := w.Write(wire); err != nil {
		return fmt.Errorf("socketmap: writing record: %w", err)
	}
	return nil
}
