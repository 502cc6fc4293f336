// Package errorhandler decides what a read does with a record it cannot
// translate. The default policy is to fail the read and return the records
// accumulated so far; handlers let callers opt into skipping or retrying
// instead.
package errorhandler

import (
	"context"
)

type ActionType int

const (
	ActionTypeFail  ActionType = iota // Finish the read as failed with partial results
	ActionTypeSkip                    // Advance past the record, keep draining
	ActionTypeRetry                   // Translate the same record again
)

func (a ActionType) String() string {
	switch a {
	case ActionTypeFail:
		return "Fail"
	case ActionTypeSkip:
		return "Skip"
	case ActionTypeRetry:
		return "Retry"
	default:
		return "Unknown"
	}
}

var _ Action = ActionFail{}
var _ Action = ActionSkip{}
var _ Action = ActionRetry{}

type Action interface {
	Type() ActionType
}

type ActionFail struct{}

func (a ActionFail) Type() ActionType {
	return ActionTypeFail
}

type ActionSkip struct{}

func (a ActionSkip) Type() ActionType {
	return ActionTypeSkip
}

type ActionRetry struct{}

func (a ActionRetry) Type() ActionType {
	return ActionTypeRetry
}

type Handler interface {
	Handle(ctx context.Context, ec ErrorContext) Action
}

type HandlerFunc func(ctx context.Context, ec ErrorContext) Action

func (f HandlerFunc) Handle(ctx context.Context, ec ErrorContext) Action {
	return f(ctx, ec)
}
