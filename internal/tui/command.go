package tui

import "strings"

// Command is a parsed ':' prompt entry.
type Command struct {
	Name string
	Args string
}

// commandAliases maps short forms to command names.
var commandAliases = map[string]string{
	"o": "open",
	"q": "quit",
	"f": "filter",
	"h": "help",
}

// ParseCommand parses a command string (without the leading ':').
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	name, args, _ := strings.Cut(input, " ")
	cmd := Command{Name: strings.ToLower(name), Args: strings.TrimSpace(args)}
	if full, ok := commandAliases[cmd.Name]; ok {
		cmd.Name = full
	}
	return cmd
}
