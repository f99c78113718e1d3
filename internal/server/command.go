// Package server parses single-line chat commands into their typed form for
// the session state machine.
package server

import "strings"

// CommandKind identifies which of the fixed command grammars a line matched.
type CommandKind int

// The recognized command kinds. CommandUnknown is returned for any line that
// matches none of the grammars.
const (
	CommandUnknown CommandKind = iota
	CommandRegister
	CommandLogin
	CommandText
	CommandQuit
)

// Command is the parsed form of one inbound line. Only the fields relevant
// to the matched Kind are populated.
type Command struct {
	Kind      CommandKind
	Name      string
	Password  string
	Recipient string
	Content   string
}

// Keyword grammars are positional and case-sensitive. Content of a text
// command is a single whitespace-delimited token; multi-word bodies are not
// supported by the wire protocol.
var commandGrammars = map[string]func(args []string) (Command, bool){
	"reg":   parseRegister,
	"login": parseLogin,
	"text":  parseText,
	"quit":  parseQuit,
}

// ParseCommand tokenizes one line on whitespace runs and matches it against
// the fixed grammars. Lines matching no grammar, including empty lines,
// yield a Command with Kind CommandUnknown; parsing never fails the session.
func ParseCommand(line string) Command {
	args := strings.Fields(line)
	if len(args) == 0 {
		return Command{Kind: CommandUnknown}
	}

	parse, ok := commandGrammars[args[0]]
	if !ok {
		return Command{Kind: CommandUnknown}
	}

	cmd, ok := parse(args)
	if !ok {
		return Command{Kind: CommandUnknown}
	}
	return cmd
}

func parseRegister(args []string) (Command, bool) {
	if len(args) < 5 || args[1] != "-u" || args[3] != "-p" {
		return Command{}, false
	}
	return Command{Kind: CommandRegister, Name: args[2], Password: args[4]}, true
}

func parseLogin(args []string) (Command, bool) {
	if len(args) < 5 || args[1] != "-u" || args[3] != "-p" {
		return Command{}, false
	}
	return Command{Kind: CommandLogin, Name: args[2], Password: args[4]}, true
}

func parseText(args []string) (Command, bool) {
	if len(args) < 4 || args[1] != "-u" {
		return Command{}, false
	}
	return Command{Kind: CommandText, Recipient: args[2], Content: args[3]}, true
}

func parseQuit(_ []string) (Command, bool) {
	return Command{Kind: CommandQuit}, true
}
