package controlplane

import (
	"errors"
	"net/http"

	"github.com/vhq-lag/vhq/internal/agents"
)

// Sentinel errors for control plane operations.
var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUnknownAgent   = agents.ErrUnknownAgent
	ErrTaskNotFound   = errors.New("task not found")
	ErrBadRequest     = errors.New("bad request")
)

// statusFor maps a service error onto an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnknownCommand), errors.Is(err, ErrUnknownAgent), errors.Is(err, ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errUpstream marks failures of services the daemon depends on, such as Ollama.
var errUpstream = errors.New("upstream unavailable")
