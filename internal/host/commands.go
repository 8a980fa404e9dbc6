package host

import (
	"fmt"
	"log"
	"strings"
)

// SenderType selects who runs a dispatched command
type SenderType string

const (
	SenderConsole SenderType = "console"
	SenderPlayer  SenderType = "player"
)

// ParseSenderType accepts the config spellings of a sender
func ParseSenderType(s string) (SenderType, error) {
	switch strings.ToLower(s) {
	case "console", "":
		return SenderConsole, nil
	case "player":
		return SenderPlayer, nil
	}
	return "", fmt.Errorf("unknown command sender %q", s)
}

// CommandDispatcher runs platform commands. Player may be nil for console commands.
type CommandDispatcher interface {
	Dispatch(sender SenderType, player Player, command string) error
}

// CommandFunc adapts a function to CommandDispatcher
type CommandFunc func(sender SenderType, player Player, command string) error

func (f CommandFunc) Dispatch(sender SenderType, player Player, command string) error {
	return f(sender, player, command)
}

// LogDispatcher logs commands instead of running them
type LogDispatcher struct{}

func (LogDispatcher) Dispatch(sender SenderType, player Player, command string) error {
	command = strings.TrimPrefix(command, "/")
	if player != nil {
		log.Printf("Dispatch (%s as %s): /%s", sender, player.Name(), command)
	} else {
		log.Printf("Dispatch (%s): /%s", sender, command)
	}
	return nil
}
