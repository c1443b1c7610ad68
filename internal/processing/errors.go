// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

package processing

import "errors"

// ErrInvalidInput matches every InputError through errors.Is.
var ErrInvalidInput = errors.New("invalid input")

// InputError is a problem with the submitted sheets that the user can fix.
// Msg is shown to the user unchanged.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

func (e *InputError) Is(target error) bool { return target == ErrInvalidInput }
