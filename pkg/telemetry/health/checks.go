package health

import (
	"context"
	"errors"
	"fmt"
)

// NodeCountCheck fails while count reports fewer than minimum nodes. The
// proxy registers it as "nodes" with a minimum of one, so /ready turns
// unavailable when every upstream has been evicted.
func NodeCountCheck(count func() int, minimum int) CheckFunc {
	return func(ctx context.Context) error {
		if n := count(); n < minimum {
			return fmt.Errorf("%d live nodes, need at least %d", n, minimum)
		}
		return nil
	}
}

// FlagCheck fails with message while ok returns false.
func FlagCheck(ok func() bool, message string) CheckFunc {
	return func(ctx context.Context) error {
		if !ok() {
			return errors.New(message)
		}
		return nil
	}
}
