package approval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		want  Command
	}{
		{input: "YES", want: Command{Kind: CommandApprove}},
		{input: " yes ", want: Command{Kind: CommandApprove}},
		{input: "No", want: Command{Kind: CommandReject}},
		{input: "SKIP", want: Command{Kind: CommandReject}},
		{input: "/refresh", want: Command{Kind: CommandRefresh}},
		{input: "status", want: Command{Kind: CommandStatus}},
		{input: "/history", want: Command{Kind: CommandHistory}},
		{input: "/top@news_bot", want: Command{Kind: CommandTop}},
		{input: "/start", want: Command{Kind: CommandHelp}},
		{input: "details 3", want: Command{Kind: CommandDetails, Index: 3}},
		{input: "Details x", want: Command{Kind: CommandDetails}},
		{input: "feedback 2 too generic", want: Command{Kind: CommandFeedback, Index: 2, Text: "too generic"}},
		{input: "feedback 2", want: Command{Kind: CommandFeedback, Index: 2}},
		{input: "yes please", want: Command{Kind: CommandUnknown, Text: "yes please"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			require.Equal(t, tt.want, ParseCommand(tt.input))
		})
	}
}

func TestCooldownPerCaller(t *testing.T) {
	c := NewCooldown(3 * time.Second)
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.True(t, c.Allow("alice"))
	require.False(t, c.Allow("alice"))
	require.True(t, c.Allow("bob"))

	now = now.Add(4 * time.Second)
	require.True(t, c.Allow("alice"))
}

func TestCooldownPrunesIdleCallers(t *testing.T) {
	c := NewCooldown(time.Second)
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.True(t, c.Allow("alice"))
	now = now.Add(time.Minute)
	require.True(t, c.Allow("bob"))

	require.Len(t, c.callers, 1)
}
