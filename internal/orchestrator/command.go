package orchestrator

import (
	"errors"
	"strings"
)

// Command is an executable plus arguments.
type Command struct {
	Name string
	Args []string
}

// ParseCommand splits s on whitespace. Quoting is not supported.
func ParseCommand(s string) (Command, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Command{}, errors.New("empty command")
	}
	return Command{Name: fields[0], Args: fields[1:]}, nil
}

// MustParseCommand is ParseCommand for constants.
func MustParseCommand(s string) Command {
	c, err := ParseCommand(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}
