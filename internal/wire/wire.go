// Package wire encodes and decodes the one-line chat message format:
//
//	message = "<" host ":" port ">" SP name [SP body]
//	host    = 1*(any char except ":" and ">")
//	port    = 1*DIGIT            ; 1..65535
//	name    = 1*(non-whitespace) ; the sender's display name
//	body    = *(any char)        ; may be empty
//
// host:port is the sender's own listen address, so receivers learn how to
// reach it. A handshake is an ordinary message whose body is HandshakeToken.
package wire

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"p2pchat/internal/domain"
)

// HandshakeToken is the body sent by connect-to-peer.
const HandshakeToken = "HANDSHAKE"

// Encode renders one outbound message for id.
func Encode(id domain.Identity, body string) []byte {
	return []byte(fmt.Sprintf("<%s:%d> %s %s", id.Listen.Host, id.Listen.Port, id.Name, body))
}

// Decode parses one inbound message. ReceivedAt is left for the caller.
func Decode(data []byte) (domain.Message, error) {
	s := strings.ToValidUTF8(string(data), "\uFFFD")

	end := strings.IndexByte(s, '>')
	if end == -1 {
		return domain.Message{}, domain.ErrNoHeader
	}
	if !strings.HasPrefix(s, "<") {
		return domain.Message{}, fmt.Errorf("%w: missing '<'", domain.ErrBadHeader)
	}

	host, portStr, ok := strings.Cut(s[1:end], ":")
	if !ok || host == "" {
		return domain.Message{}, fmt.Errorf("%w: %q", domain.ErrBadHeader, s[:end+1])
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return domain.Message{}, fmt.Errorf("%w: %q", domain.ErrBadPort, portStr)
	}

	rest := strings.TrimLeft(s[end+1:], " ")
	rest = strings.TrimRight(rest, "\r\n")
	if rest == "" {
		return domain.Message{}, domain.ErrNoName
	}

	name, body := rest, ""
	if i := strings.IndexFunc(rest, unicode.IsSpace); i != -1 {
		_, w := utf8.DecodeRuneInString(rest[i:])
		name, body = rest[:i], rest[i+w:]
	}

	return domain.Message{
		From: domain.Address{Host: host, Port: port},
		Name: name,
		Body: body,
	}, nil
}

// IsHandshake reports whether msg is a connect-to-peer handshake.
func IsHandshake(msg domain.Message) bool {
	return msg.Body == HandshakeToken
}
