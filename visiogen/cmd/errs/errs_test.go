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

package errs

import (
	"errors"
	"os"
	"testing"

	pkgerrors "github.com/pkg/errors"
)

var errUnknownGene = errors.New("unknown gene")

func TestKinds(t *testing.T) {
	err := Input("geneX", errUnknownGene)
	if !Is(err, InputError) {
		t.Errorf("expected InputError, got %s", KindOf(err))
	}
	if !errors.Is(err, errUnknownGene) {
		t.Errorf("sentinel error lost")
	}
	if err.Error() != "InputError: geneX: unknown gene" {
		t.Errorf("unexpected message: %s", err)
	}

	wrapped := pkgerrors.Wrap(err, "reading annotation")
	if KindOf(wrapped) != InputError {
		t.Errorf("kind lost after wrapping: %s", KindOf(wrapped))
	}

	if Config("k", nil) != nil {
		t.Errorf("nil error should stay nil")
	}

	if KindOf(os.ErrNotExist) != Unknown {
		t.Errorf("plain errors should have no kind")
	}
	if Is(nil, IOError) {
		t.Errorf("nil is not an IOError")
	}
}
