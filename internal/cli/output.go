package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	crewerrors "github.com/mrz1836/crew/internal/errors"
)

// failureEnvelope is the uniform JSON failure shape every command emits.
type failureEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// successEnvelope wraps a result payload with the success flag.
type successEnvelope struct {
	Success bool `json:"success"`
	Result  any  `json:"result,omitempty"`
}

// printJSON writes v as indented JSON to the command's stdout.
func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return crewerrors.Wrap(err, "encoding result")
	}
	cmd.Println(string(data))
	return nil
}

// printResult emits the success envelope around a result payload.
func printResult(cmd *cobra.Command, result any) error {
	return printJSON(cmd, successEnvelope{Success: true, Result: result})
}

// printFailure emits the failure envelope for err to stdout and returns an
// error carrying ErrJSONErrorOutput so Execute does not emit it twice.
func printFailure(cmd *cobra.Command, err error) error {
	envelope := failureEnvelope{Error: err.Error()}
	data, marshalErr := json.Marshal(envelope)
	if marshalErr != nil {
		data = []byte(`{"success":false,"error":"internal encoding failure"}`)
	}
	cmd.Println(string(data))
	return fmt.Errorf("%w: %w", crewerrors.ErrJSONErrorOutput, err)
}
