package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/sandeepkv93/mellow/internal/model"
)

type Type string

const (
	TypeAdd     Type = "add"
	TypeSub     Type = "sub"
	TypeStart   Type = "start"
	TypeDone    Type = "done"
	TypeCancel  Type = "cancel"
	TypeMeet    Type = "meet"
	TypeProject Type = "project"
)

type ErrorCode string

const (
	ErrCodeEmptyInput      ErrorCode = "empty_input"
	ErrCodeUnknownCommand  ErrorCode = "unknown_command"
	ErrCodeInvalidArgument ErrorCode = "invalid_argument"
	ErrCodeHandlerMissing  ErrorCode = "handler_missing"
)

type CommandError struct {
	Code    ErrorCode
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func invalid(format string, args ...any) *CommandError {
	return &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// Target addresses a task by 1-based list position or id, and optionally one
// of its subtasks: "2", "2.1", "launch/copy".
type Target struct {
	Task string
	Sub  string
}

func (t Target) String() string {
	if t.Sub == "" {
		return t.Task
	}
	return t.Task + "." + t.Sub
}

type AddArgs struct {
	Name    string
	Project string
}

type SubArgs struct {
	Parent Target
	Name   string
}

type StatusArgs struct {
	Target Target
	Status model.Status
}

type MeetArgs struct {
	Name string
	// Clock is the meeting time of day; only hour and minute are set.
	Clock time.Time
}

type ProjectArgs struct {
	Name  string
	Color string
}

type Command struct {
	Type    Type
	Raw     string
	Add     *AddArgs
	Sub     *SubArgs
	Status  *StatusArgs
	Meet    *MeetArgs
	Project *ProjectArgs
}

func Parse(input string) (Command, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}
	if strings.HasPrefix(raw, "/") {
		raw = strings.TrimSpace(strings.TrimPrefix(raw, "/"))
	}
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}

	parts := strings.Fields(raw)
	head := strings.ToLower(parts[0])
	args := parts[1:]

	switch Type(head) {
	case TypeAdd:
		return parseAdd(input, args)
	case TypeSub:
		return parseSub(input, args)
	case TypeStart:
		return parseStatus(input, TypeStart, model.StatusInProgress, args)
	case TypeDone:
		return parseStatus(input, TypeDone, model.StatusCompleted, args)
	case TypeCancel:
		return parseStatus(input, TypeCancel, model.StatusCancelled, args)
	case TypeMeet:
		return parseMeet(input, args)
	case TypeProject:
		return parseProject(input, args)
	default:
		return Command{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unsupported command: %s", head)}
	}
}

// parseAdd takes a trailing +project token as the project name.
func parseAdd(raw string, args []string) (Command, error) {
	project := ""
	if n := len(args); n > 0 && strings.HasPrefix(args[n-1], "+") && len(args[n-1]) > 1 {
		project = strings.TrimPrefix(args[n-1], "+")
		args = args[:n-1]
	}
	name := strings.TrimSpace(strings.Join(args, " "))
	if name == "" {
		return Command{}, invalid("add requires a name")
	}
	return Command{Type: TypeAdd, Raw: raw, Add: &AddArgs{Name: name, Project: project}}, nil
}

func parseSub(raw string, args []string) (Command, error) {
	if len(args) < 2 {
		return Command{}, invalid("sub requires a parent task and a name")
	}
	parent, err := ParseTarget(args[0])
	if err != nil {
		return Command{}, err
	}
	if parent.Sub != "" {
		return Command{}, invalid("subtasks cannot have subtasks")
	}
	return Command{Type: TypeSub, Raw: raw, Sub: &SubArgs{Parent: parent, Name: strings.Join(args[1:], " ")}}, nil
}

func parseStatus(raw string, typ Type, status model.Status, args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, invalid("%s requires exactly one task", typ)
	}
	target, err := ParseTarget(args[0])
	if err != nil {
		return Command{}, err
	}
	return Command{Type: typ, Raw: raw, Status: &StatusArgs{Target: target, Status: status}}, nil
}

func parseMeet(raw string, args []string) (Command, error) {
	if len(args) < 2 {
		return Command{}, invalid("meet requires a time (HH:MM) and a name")
	}
	clock, err := time.Parse("15:04", args[0])
	if err != nil {
		return Command{}, invalid("meet time %q is not HH:MM", args[0])
	}
	return Command{Type: TypeMeet, Raw: raw, Meet: &MeetArgs{Name: strings.Join(args[1:], " "), Clock: clock}}, nil
}

func parseProject(raw string, args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, invalid("project requires a name")
	}
	color := ""
	if n := len(args); n > 1 && strings.HasPrefix(args[n-1], "#") {
		color = args[n-1]
		args = args[:n-1]
	}
	return Command{Type: TypeProject, Raw: raw, Project: &ProjectArgs{Name: strings.Join(args, " "), Color: color}}, nil
}

func ParseTarget(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	for _, sep := range []string{"/", "."} {
		if task, sub, ok := strings.Cut(raw, sep); ok {
			if task == "" || sub == "" {
				return Target{}, invalid("malformed target %q", raw)
			}
			return Target{Task: task, Sub: sub}, nil
		}
	}
	if raw == "" {
		return Target{}, invalid("empty target")
	}
	return Target{Task: raw}, nil
}
