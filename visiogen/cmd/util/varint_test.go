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

package util

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/twotwotwo/sorts/sortutil"
)

var testsUint64 [][2]uint64

func init() {
	ntests := 10000
	testsUint64 = make([][2]uint64, ntests)
	var i int
	for ; i < ntests/4; i++ {
		testsUint64[i] = [2]uint64{rand.Uint64(), rand.Uint64()}
	}
	for ; i < ntests/2; i++ {
		testsUint64[i] = [2]uint64{uint64(rand.Uint32()), uint64(rand.Uint32())}
	}
	for ; i < ntests*3/4; i++ {
		testsUint64[i] = [2]uint64{uint64(rand.Intn(65536)), uint64(rand.Intn(256))}
	}
	for ; i < ntests; i++ {
		testsUint64[i] = [2]uint64{uint64(rand.Intn(256)), uint64(rand.Intn(256))}
	}
}

func TestStreamVByte64(t *testing.T) {
	buf := make([]byte, 16)
	var ctrl byte
	var n, n2 int
	var v1, v2 uint64
	for i, test := range testsUint64 {
		ctrl, n = PutUint64s(buf, test[0], test[1])
		if CtrlByte2ByteLengths(ctrl) != n {
			t.Errorf("#%d, wrong byte length", i)
		}

		v1, v2, n2 = Uint64s(ctrl, buf[0:n])
		if n2 == 0 {
			t.Errorf("#%d, wrong decoded number", i)
		}

		if v1 != test[0] || v2 != test[1] {
			t.Errorf("#%d, wrong decoded result: %d, %d, answer: %d, %d", i, v1, v2, test[0], test[1])
		}
	}
}

func TestSortedUint64s(t *testing.T) {
	for _, size := range []int{0, 1, 2, 3, 1000, 1001} {
		list := make([]uint64, size)
		for i := range list {
			list[i] = rand.Uint64()
		}
		sortutil.Uint64s(list)

		var buf bytes.Buffer
		nw, err := WriteSortedUint64s(&buf, list)
		if err != nil {
			t.Error(err)
			return
		}
		if nw != int64(buf.Len()) {
			t.Errorf("size %d: reported %d bytes, wrote %d", size, nw, buf.Len())
		}

		list2, nr, err := ReadSortedUint64s(&buf)
		if err != nil {
			t.Error(err)
			return
		}
		if nr != nw {
			t.Errorf("size %d: read %d bytes, wrote %d", size, nr, nw)
		}
		if len(list2) != len(list) {
			t.Errorf("size %d: unexpected length %d", size, len(list2))
			return
		}
		for i := range list {
			if list[i] != list2[i] {
				t.Errorf("size %d: #%d: expected %d, result %d", size, i, list[i], list2[i])
				return
			}
		}
	}
}

func TestSortedUint64sTruncated(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteSortedUint64s(&buf, []uint64{1, 300, 70000})
	if err != nil {
		t.Error(err)
		return
	}
	data := buf.Bytes()
	_, _, err = ReadSortedUint64s(bytes.NewReader(data[:len(data)-1]))
	if err != ErrTruncated {
		t.Errorf("expected ErrTruncated, got %v", err)
	}
}
