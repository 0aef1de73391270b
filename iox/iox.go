// Package iox holds small helpers for closing resources during teardown.
package iox

import (
	"errors"
	"io"
)

// DiscardClose closes c and drops the error. For defers where a close
// failure changes nothing:
//
//	defer iox.DiscardClose(resp.Body)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseAll closes every non-nil closer in order and joins the errors.
// Teardown continues past a failing closer.
func CloseAll(closers ...io.Closer) error {
	var errs []error
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
