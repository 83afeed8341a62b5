package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "  hello \n world ", want: "hello world"},
		{name: "markup", input: "<p>RBI <b>cuts</b> repo rate</p><p>by 25 bps</p>", want: "RBI cuts repo rate by 25 bps"},
		{name: "entities", input: "<div>Tom &amp; Jerry</div>", want: "Tom & Jerry"},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, PlainText(tt.input))
		})
	}
}

func TestTruncateIsRuneSafe(t *testing.T) {
	require.Equal(t, "₹2.3", Truncate("₹2.3L/month", 4))
	require.Equal(t, "short", Truncate("short", 10))
	require.Equal(t, "", Truncate("anything", 0))
}
