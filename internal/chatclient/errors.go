package chatclient

import "strings"

// ErrorKind classifies a surfaced failure so consumers can decide how to
// present it. Auth and permission errors persist until cleared explicitly or
// credentials change; transient and command errors clear on their own.
type ErrorKind string

const (
	ErrorAuth       ErrorKind = "auth"
	ErrorTransient  ErrorKind = "transient"
	ErrorCommand    ErrorKind = "command"
	ErrorPermission ErrorKind = "permission"
)

type ClientError struct {
	Kind    ErrorKind
	Message string
}

func (e *ClientError) Error() string {
	return e.Message
}

// classifyConnectError decides whether a handshake failure is credential
// related. The gateway reports auth rejections in the message text, so the
// check is on the text itself.
func classifyConnectError(msg string) ErrorKind {
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "auth") || strings.Contains(lower, "token") {
		return ErrorAuth
	}
	return ErrorTransient
}
