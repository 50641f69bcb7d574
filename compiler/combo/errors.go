package combo

import (
	"fmt"

	"tlog.app/go/errors"
	"tlog.app/go/loc"
)

// InvariantError reports a fatal violation of one of the pass's internal
// invariants: a non-monotone retype, a leader mismatch inside a
// partition, or a Bad node with live users in the input graph. The pass
// never emits a
// partially-rewritten graph when one of these fires; Run returns the
// error instead of panicking through the caller.
type InvariantError struct {
	Msg  string
	Site loc.PC
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("combo: invariant violated: %s (at %v)", e.Msg, e.Site)
}

func newInvariantError(format string, args ...any) error {
	return &InvariantError{
		Msg:  fmt.Sprintf(format, args...),
		Site: loc.Caller(1),
	}
}

func wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return errors.Wrap(err, format, args...)
}
