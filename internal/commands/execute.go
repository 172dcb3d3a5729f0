package commands

import "fmt"

type Result struct {
	Message string
}

// Handlers binds each verb to an action. start, done and cancel share Status.
type Handlers struct {
	Add     func(AddArgs) (Result, error)
	Sub     func(SubArgs) (Result, error)
	Status  func(StatusArgs) (Result, error)
	Meet    func(MeetArgs) (Result, error)
	Project func(ProjectArgs) (Result, error)
}

func Execute(cmd Command, handlers Handlers) (Result, error) {
	switch cmd.Type {
	case TypeAdd:
		if handlers.Add == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Add(*cmd.Add)
	case TypeSub:
		if handlers.Sub == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Sub(*cmd.Sub)
	case TypeStart, TypeDone, TypeCancel:
		if handlers.Status == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Status(*cmd.Status)
	case TypeMeet:
		if handlers.Meet == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Meet(*cmd.Meet)
	case TypeProject:
		if handlers.Project == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Project(*cmd.Project)
	default:
		return Result{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unknown command type: %s", cmd.Type)}
	}
}

func missing(t Type) *CommandError {
	return &CommandError{Code: ErrCodeHandlerMissing, Message: fmt.Sprintf("%s handler not configured", t)}
}
