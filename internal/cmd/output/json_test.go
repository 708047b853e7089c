package output

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type jsonServer struct {
	Name      string `json:"name"`
	Transport string `json:"transport"`
}

func TestNewJSONHandler_Writer(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	h := NewJSONHandler[jsonServer](buf, 2)
	require.Equal(t, buf, h.Writer())
}

func TestJSONHandler_HandleResult(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	h := NewJSONHandler[jsonServer](buf, 0)

	require.NoError(t, h.HandleResult(jsonServer{Name: "notes", Transport: "stdio"}))

	expected := `{"result":{"name":"notes","transport":"stdio"}}` + "\n"
	require.Equal(t, expected, buf.String())
}

func TestJSONHandler_HandleResults(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	h := NewJSONHandler[jsonServer](buf, 2)

	err := h.HandleResults(
		jsonServer{Name: "drive", Transport: "http"},
		jsonServer{Name: "notes", Transport: "stdio"},
	)
	require.NoError(t, err)

	expected := `{
  "results": [
    {
      "name": "drive",
      "transport": "http"
    },
    {
      "name": "notes",
      "transport": "stdio"
    }
  ]
}` + "\n"
	require.Equal(t, expected, buf.String())
}

func TestJSONHandler_HandleResults_Empty(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	h := NewJSONHandler[jsonServer](buf, 0)

	require.NoError(t, h.HandleResults())

	// No items serializes as a null results list, compact with zero indent.
	require.Equal(t, `{"results":null}`+"\n", buf.String())
}

func TestJSONHandler_HandleError(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	h := NewJSONHandler[jsonServer](buf, 4)

	require.NoError(t, h.HandleError(errors.New("connection refused")))

	expected := `{
    "error": "connection refused"
}` + "\n"
	require.Equal(t, expected, buf.String())
}

func TestJSONHandler_HandleError_EmptyMessage(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	h := NewJSONHandler[jsonServer](buf, 0)

	require.NoError(t, h.HandleError(errors.New("")))
	require.Equal(t, `{"error":""}`+"\n", buf.String())
}
