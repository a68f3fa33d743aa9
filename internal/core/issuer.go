package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Issuer submits one invoice to the external issuance service.
type Issuer interface {
	Issue(ctx context.Context, req IssueRequest) (*IssueResult, error)
}

// IssueRequest is a single submission. IdempotencyKey is fresh per attempt.
type IssueRequest struct {
	IdempotencyKey string
	Payload        Payload
}

// IssueResult is what the service returns for an issued document.
type IssueResult struct {
	AuthCode       string          `json:"cae,omitempty"`
	AuthCodeExpiry string          `json:"caeVencimiento,omitempty"`
	DocumentNumber string          `json:"numeroComprobante,omitempty"`
	Raw            json.RawMessage `json:"raw,omitempty"`
}

// Summary renders the success message shown for a row.
func (r *IssueResult) Summary() string {
	parts := []string{"Emitido"}
	if r.AuthCode != "" {
		parts = append(parts, "CAE "+r.AuthCode)
	}
	if r.AuthCodeExpiry != "" {
		parts = append(parts, "vto. "+r.AuthCodeExpiry)
	}
	if r.DocumentNumber != "" {
		parts = append(parts, "comprobante "+r.DocumentNumber)
	}
	return strings.Join(parts, " - ")
}

// IssueError is a structured rejection from the issuance service.
type IssueError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *IssueError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("issuance %s: %s", e.Code, msg)
	}
	return "issuance: " + msg
}

func (e *IssueError) Unwrap() error { return e.Err }

func asIssueError(err error) (*IssueError, bool) {
	var ie *IssueError
	ok := errors.As(err, &ie)
	return ie, ok
}

// FallbackIssueMessage is shown when a failure carries no readable message.
const FallbackIssueMessage = "No se pudo emitir el comprobante."

// IssueFailureMessage extracts the user-facing text of a submission failure.
func IssueFailureMessage(err error) string {
	if ie, ok := asIssueError(err); ok && strings.TrimSpace(ie.Message) != "" {
		return strings.TrimSpace(ie.Message)
	}
	return FallbackIssueMessage
}
