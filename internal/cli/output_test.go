package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	crewerrors "github.com/mrz1836/crew/internal/errors"
)

func newCaptureCmd() (*cobra.Command, *bytes.Buffer) {
	buf := new(bytes.Buffer)
	cmd := &cobra.Command{Use: "test"}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	return cmd, buf
}

func TestPrintResult(t *testing.T) {
	t.Parallel()

	cmd, buf := newCaptureCmd()
	require.NoError(t, printResult(cmd, map[string]any{"team": "alpha"}))

	var envelope struct {
		Success bool           `json:"success"`
		Result  map[string]any `json:"result"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &envelope))
	assert.True(t, envelope.Success)
	assert.Equal(t, "alpha", envelope.Result["team"])
}

func TestPrintFailure(t *testing.T) {
	t.Parallel()

	t.Run("emits envelope and wraps sentinel", func(t *testing.T) {
		t.Parallel()

		cmd, buf := newCaptureCmd()
		cause := errors.New("disk gone")
		err := printFailure(cmd, cause)

		require.Error(t, err)
		assert.ErrorIs(t, err, crewerrors.ErrJSONErrorOutput)
		assert.ErrorIs(t, err, cause)

		var envelope failureEnvelope
		require.NoError(t, json.Unmarshal(buf.Bytes(), &envelope))
		assert.False(t, envelope.Success)
		assert.Equal(t, "disk gone", envelope.Error)
	})

	t.Run("preserves exit code mapping", func(t *testing.T) {
		t.Parallel()

		cmd, _ := newCaptureCmd()
		err := printFailure(cmd, crewerrors.ErrPermissionDenied)
		assert.Equal(t, ExitError, ExitCodeForError(err))
	})
}

func TestUnhealthyErr(t *testing.T) {
	t.Parallel()

	err := unhealthyErr("2 findings")
	assert.ErrorIs(t, err, crewerrors.ErrJSONErrorOutput)
	assert.Equal(t, ExitUnhealthy, ExitCodeForError(err))
	assert.Contains(t, err.Error(), "2 findings")
}

func TestFormatVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		info BuildInfo
		want string
	}{
		{
			name: "full info",
			info: BuildInfo{Version: "1.2.3", Commit: "abc1234", Date: "2026-01-01"},
			want: "1.2.3 (commit: abc1234, built: 2026-01-01)",
		},
		{
			name: "empty info",
			info: BuildInfo{},
			want: "dev (commit: none, built: unknown)",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, formatVersion(tc.info))
		})
	}
}

func TestParseMetadata(t *testing.T) {
	t.Parallel()

	t.Run("empty means none", func(t *testing.T) {
		t.Parallel()
		m, err := parseMetadata("")
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("valid object", func(t *testing.T) {
		t.Parallel()
		m, err := parseMetadata(`{"branch":"main","attempt":2}`)
		require.NoError(t, err)
		assert.Equal(t, "main", m["branch"])
	})

	t.Run("malformed JSON", func(t *testing.T) {
		t.Parallel()
		_, err := parseMetadata(`{"branch":`)
		require.Error(t, err)
	})

	t.Run("non-object JSON", func(t *testing.T) {
		t.Parallel()
		_, err := parseMetadata(`[1,2,3]`)
		require.Error(t, err)
	})
}
