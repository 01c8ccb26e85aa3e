// Package responses writes the JSON envelopes every /api/v1 route returns:
// {"data": ...} on success and {"error": {...}} on failure.
package responses

import (
	"context"
	"encoding/json"
	"net/http"

	pkgerrors "github.com/all-if-r/5SCENT-WEB-sub001/pkg/errors"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
)

type Success struct {
	Data any `json:"data"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type Failure struct {
	Error ErrorBody `json:"error"`
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	write(w, status, Success{Data: data})
}

// ErrorOption adjusts how a single route renders an error.
type ErrorOption func(*errorOptions)

type errorOptions struct {
	status map[pkgerrors.Code]int
}

// OverrideStatus answers code with status on this route only.
func OverrideStatus(code pkgerrors.Code, status int) ErrorOption {
	return func(o *errorOptions) {
		if o.status == nil {
			o.status = make(map[pkgerrors.Code]int)
		}
		o.status[code] = status
	}
}

// WriteError logs err in full and sends the client only what its code allows.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error, opts ...ErrorOption) {
	var o errorOptions
	for _, opt := range opts {
		opt(&o)
	}

	pub := pkgerrors.Render(err)
	if status, ok := o.status[pub.Code]; ok {
		pub.Status = status
	}
	logFailure(ctx, logg, err, pub)

	write(w, pub.Status, Failure{Error: ErrorBody{
		Code:    string(pub.Code),
		Message: pub.Message,
		Details: pub.Details,
	}})
}

func logFailure(ctx context.Context, logg *logger.Logger, err error, pub pkgerrors.Public) {
	if logg == nil || err == nil {
		return
	}
	dump := pkgerrors.Dump(err)
	fields := map[string]any{
		"error_code":  pub.Code,
		"status":      pub.Status,
		"error_chain": dump.Chain,
	}
	if dump.PGCode != "" {
		fields["pg_code"] = dump.PGCode
		fields["pg_constraint"] = dump.PGConstraint
		fields["pg_table"] = dump.PGTable
		fields["pg_column"] = dump.PGColumn
		fields["pg_detail"] = dump.PGDetail
		fields["pg_message"] = dump.PGMessage
	}
	ctx = logg.WithFields(ctx, fields)
	if pub.Status >= http.StatusInternalServerError {
		logg.Error(ctx, "request.error", err)
		return
	}
	logg.Warn(logg.WithField(ctx, "error", err.Error()), "request.rejected")
}

// write ignores encode failures: the status line is already out and the only
// cause left is a client that went away.
func write(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
