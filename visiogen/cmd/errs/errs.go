// Copyright © 2023-2024 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package errs defines the kinds of errors visiogen distinguishes.
//
// Input, Config, Index and IO errors carry the offending identifier
// (gene, file path or segment) in Subject. Filter rejections and
// excess off-target hits are decisions, not errors, and never use this package.
package errs

import (
	"errors"
	"fmt"
)

// Kind is the category of an error.
type Kind uint8

const (
	// Unknown is returned by KindOf for errors not created by this package.
	Unknown Kind = iota
	// InputError means malformed or missing annotation/graph/sequence records.
	InputError
	// ConfigError means invalid options, validated before any I/O.
	ConfigError
	// IndexError means a corrupt or incompatible off-target index file.
	IndexError
	// IOError means an unreadable or unwritable file.
	IOError
)

var kindNames = [...]string{"UnknownError", "InputError", "ConfigError", "IndexError", "IOError"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[0]
}

// Error is an error with a kind and the identifier it is about.
type Error struct {
	Kind    Kind
	Subject string
	Err     error
}

func (e *Error) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Subject, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, subject string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Subject: subject, Err: err}
}

// Input returns an InputError about subject, or nil if err is nil.
func Input(subject string, err error) error { return newError(InputError, subject, err) }

// Config returns a ConfigError about subject, or nil if err is nil.
func Config(subject string, err error) error { return newError(ConfigError, subject, err) }

// Index returns an IndexError about subject, or nil if err is nil.
func Index(subject string, err error) error { return newError(IndexError, subject, err) }

// IO returns an IOError about subject, or nil if err is nil.
func IO(subject string, err error) error { return newError(IOError, subject, err) }

// KindOf returns the kind of the outermost *Error in the chain of err.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err is of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
