// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package diamond

import (
	"fmt"
	"github.com/pkg/errors"
	"strings"
)

type ErrorKind string

const (
	ConfigurationInvalid    ErrorKind = "ConfigurationInvalid"
	VersionConflict         ErrorKind = "VersionConflict"
	SelectorCollision       ErrorKind = "SelectorCollision"
	CallbackNotFound        ErrorKind = "CallbackNotFound"
	CallbackExecutionFailed ErrorKind = "CallbackExecutionFailed"
	ApprovalTimeout         ErrorKind = "ApprovalTimeout"
	ChainOperationFailed    ErrorKind = "ChainOperationFailed"
)

type Error struct {
	Kind  ErrorKind
	Facet string
	Step  string
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Facet != "" {
		fmt.Fprintf(&b, " (facet %s)", e.Facet)
	}
	if e.Step != "" {
		fmt.Fprintf(&b, " (step %s)", e.Step)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Cause() error {
	return e.Err
}

func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func Errorf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Err: errors.Errorf(format, args...)}
}

func (e *Error) ForFacet(facet string) *Error {
	e.Facet = facet
	return e
}

func (e *Error) AtStep(step string) *Error {
	e.Step = step
	return e
}

// KindOf returns the kind of the outermost *Error in the chain, or "" if there is none
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	for err != nil {
		if de, ok := err.(*Error); ok && de.Kind == kind {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// Problems collects validation messages and turns them into one ConfigurationInvalid error
type Problems []string

func (p *Problems) Addf(format string, args ...interface{}) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

func (p Problems) Err(subject string) error {
	if len(p) == 0 {
		return nil
	}
	return Errorf(ConfigurationInvalid, "%s validation failed:\n  - %s", subject, strings.Join(p, "\n  - "))
}
