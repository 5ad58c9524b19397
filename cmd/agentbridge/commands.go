package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmora/agentbridge"
)

type commandKind int

const (
	cmdNone commandKind = iota
	cmdPrompt
	cmdAllow
	cmdCancel
	cmdQuit
	cmdHelp
)

// command is one parsed stdin line.
type command struct {
	kind   commandKind
	text   string
	id     agentbridge.RequestID
	option string
}

var errAllowUsage = errors.New("usage: /allow <request-id> <option-id>")

// parseLine interprets a stdin line. Lines starting with "/" are commands;
// "//" escapes a prompt that begins with a slash.
func parseLine(line string) (command, error) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return command{kind: cmdNone}, nil
	case strings.HasPrefix(line, "//"):
		return command{kind: cmdPrompt, text: line[1:]}, nil
	case !strings.HasPrefix(line, "/"):
		return command{kind: cmdPrompt, text: line}, nil
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/allow":
		if len(fields) != 3 {
			return command{}, errAllowUsage
		}
		id, err := parseIDArg(fields[1])
		if err != nil {
			return command{}, err
		}
		return command{kind: cmdAllow, id: id, option: fields[2]}, nil
	case "/cancel":
		return command{kind: cmdCancel}, nil
	case "/quit", "/exit":
		return command{kind: cmdQuit}, nil
	case "/help":
		return command{kind: cmdHelp}, nil
	default:
		return command{}, fmt.Errorf("unknown command %s (try /help)", fields[0])
	}
}

// parseIDArg reads a request id as printed by formatID: a quoted argument
// is always a string id.
func parseIDArg(s string) (agentbridge.RequestID, error) {
	if strings.HasPrefix(s, `"`) {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return agentbridge.RequestID{}, fmt.Errorf("bad request id %s: %w", s, err)
		}
		return agentbridge.StringID(unq), nil
	}
	return agentbridge.ParseRequestID(s), nil
}

// formatID prints id so that parseIDArg reads it back unchanged. String ids
// are quoted only when they would otherwise parse as numbers or contain
// spaces.
func formatID(id agentbridge.RequestID) string {
	s := id.String()
	if !id.IsString() {
		return s
	}
	if agentbridge.ParseRequestID(s).IsString() && s != "" && !strings.ContainsAny(s, " \t\"") {
		return s
	}
	return strconv.Quote(s)
}

const helpText = `Commands:
  <text>                      send a prompt
  //<text>                    send a prompt starting with "/"
  /allow <request-id> <option-id>
                              answer a permission request
  /cancel                     cancel the running turn
  /quit                       stop the agent and exit
`
