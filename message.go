package xrpl

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const (
	MessageTypeResponse     = "response"
	MessageTypeTransaction  = "transaction"
	MessageTypeLedgerClosed = "ledgerClosed"
)

// Params are the command specific fields of a request.
type Params map[string]any

type request struct {
	ID      string
	Command string
	Params  Params
}

func (r request) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Params)+2)
	for k, v := range r.Params {
		out[k] = v
	}
	out["id"] = r.ID
	out["command"] = r.Command
	return json.Marshal(out)
}

// isResponse separates replies to our requests from stream messages.
func isResponse(msg gjson.Result) bool {
	typ := msg.Get("type").String()
	return typ == MessageTypeResponse || (typ == "" && msg.Get("id").Exists())
}

// parseResponse returns the result object of a response or the node error it
// carries.
func parseResponse(command string, msg gjson.Result) (result gjson.Result, err error) {
	if msg.Get("status").String() == "error" || msg.Get("error").Exists() {
		ledgerErr := &LedgerError{
			Code:    msg.Get("error").String(),
			Message: msg.Get("error_message").String(),
			Command: command,
		}
		if ledgerErr.Message == "" {
			ledgerErr.Message = msg.Get("error_exception").String()
		}
		err = errors.WithStack(ledgerErr)
		return
	}

	result = msg.Get("result")
	if !result.Exists() {
		err = errors.Errorf("%s: response without result: %s", command, msg.Raw)
		return
	}

	// Some node versions report errors inside the result object.
	if result.Get("status").String() == "error" {
		err = errors.WithStack(&LedgerError{
			Code:    result.Get("error").String(),
			Message: result.Get("error_message").String(),
			Command: command,
		})
		return
	}

	return
}
