// Package kaldi reads the Kaldi text artifacts consumed by the converter: the
// phone symbol table and the dumps of print-transitions, context-to-pdf and
// gmm-copy.
package kaldi

import "github.com/pkg/errors"

// ErrFormat is returned (wrapped) when a dump does not follow the expected layout.
var ErrFormat = errors.New("kaldi: data not understood")

func formatErr(lineNum int, format string, args ...interface{}) error {
	return errors.Wrapf(ErrFormat, "line %d: "+format, append([]interface{}{lineNum}, args...)...)
}
