package errorhandler

import (
	"github.com/hugolhafner/go-consume/kafka"
)

// ErrorContext describes one failed translation. Attempt starts at 1 and
// increments each time the same record is retried.
type ErrorContext struct {
	Record  kafka.ConsumerRecord
	Error   error
	Attempt int
}

func NewErrorContext(record kafka.ConsumerRecord, err error) ErrorContext {
	return ErrorContext{
		Record:  record,
		Error:   err,
		Attempt: 1,
	}
}

func (ec ErrorContext) WithError(err error) ErrorContext {
	ec.Error = err
	return ec
}

func (ec ErrorContext) WithAttempt(attempt int) ErrorContext {
	ec.Attempt = attempt
	return ec
}
