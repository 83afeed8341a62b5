package approval

import (
	"strconv"
	"strings"
)

// CommandKind identifies an inbound chat command.
type CommandKind int

const (
	CommandUnknown CommandKind = iota
	CommandApprove
	CommandReject
	CommandDetails
	CommandFeedback
	CommandRefresh
	CommandStatus
	CommandHistory
	CommandTop
	CommandHelp
)

// Command is a parsed inbound message.
type Command struct {
	Kind CommandKind
	// Index is the 1-based item number for details and feedback; 0 when missing or malformed.
	Index int
	Text  string
}

// Decision reports whether the command changes a digest status.
func (c Command) Decision() bool {
	return c.Kind == CommandApprove || c.Kind == CommandReject
}

// ParseCommand recognises the chat vocabulary. Unrecognised text yields CommandUnknown.
func ParseCommand(text string) Command {
	text = strings.TrimSpace(text)
	lower := strings.ToLower(text)

	switch {
	case strings.EqualFold(text, "yes"):
		return Command{Kind: CommandApprove}
	case strings.EqualFold(text, "no"), strings.EqualFold(text, "skip"):
		return Command{Kind: CommandReject}
	case lower == "/refresh" || lower == "refresh":
		return Command{Kind: CommandRefresh}
	case lower == "/status" || lower == "status":
		return Command{Kind: CommandStatus}
	case lower == "/history" || lower == "history":
		return Command{Kind: CommandHistory}
	case strings.HasPrefix(lower, "/top") || lower == "top":
		return Command{Kind: CommandTop}
	case lower == "/start" || lower == "/help" || lower == "help":
		return Command{Kind: CommandHelp}
	case strings.HasPrefix(lower, "details "):
		fields := strings.Fields(text)
		return Command{Kind: CommandDetails, Index: parseIndex(fields, 1)}
	case strings.HasPrefix(lower, "feedback "):
		parts := strings.SplitN(text, " ", 3)
		cmd := Command{Kind: CommandFeedback, Index: parseIndex(parts, 1)}
		if len(parts) == 3 {
			cmd.Text = strings.TrimSpace(parts[2])
		}
		return cmd
	default:
		return Command{Kind: CommandUnknown, Text: text}
	}
}

func parseIndex(parts []string, pos int) int {
	if len(parts) <= pos {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(parts[pos]))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
