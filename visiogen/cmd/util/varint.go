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
	"bufio"
	"encoding/binary"
	"errors"
	"io"
)

// ErrTruncated means the stream ended inside a record.
var ErrTruncated = errors.New("varint: truncated data")

var offsets = []uint8{56, 48, 40, 32, 24, 16, 8, 0}

// PutUint64s encodes two uint64s into 2-16 bytes, and returns the control byte
// and the encoded byte length.
//
// The control byte stores (byte length - 1) of v1 in bits 3-5,
// and that of v2 in bits 0-2.
func PutUint64s(buf []byte, v1, v2 uint64) (ctrl byte, n int) {
	blen := ByteLength(v1)
	ctrl |= byte(blen - 1)
	for _, offset := range offsets[8-blen:] {
		buf[n] = byte((v1 >> offset) & 0xff)
		n++
	}

	ctrl <<= 3
	blen = ByteLength(v2)
	ctrl |= byte(blen - 1)
	for _, offset := range offsets[8-blen:] {
		buf[n] = byte((v2 >> offset) & 0xff)
		n++
	}
	return
}

// Uint64s decodes two uint64s. n is 0 if buf is too short.
func Uint64s(ctrl byte, buf []byte) (v1, v2 uint64, n int) {
	blen1 := int((ctrl>>3)&7) + 1
	blen2 := int(ctrl&7) + 1
	if len(buf) < blen1+blen2 {
		return 0, 0, 0
	}

	var j int
	for j = 0; j < blen1; j++ {
		v1 <<= 8
		v1 |= uint64(buf[n])
		n++
	}
	for j = 0; j < blen2; j++ {
		v2 <<= 8
		v2 |= uint64(buf[n])
		n++
	}
	return
}

// ByteLength returns the minimum number of bytes to store an integer.
func ByteLength(n uint64) uint8 {
	if n < 256 {
		return 1
	}
	if n < 65536 {
		return 2
	}
	if n < 16777216 {
		return 3
	}
	if n < 4294967296 {
		return 4
	}
	if n < 1099511627776 {
		return 5
	}
	if n < 281474976710656 {
		return 6
	}
	if n < 72057594037927936 {
		return 7
	}
	return 8
}

// CtrlByte2ByteLengths returns the byte length of a pair for a given control byte.
func CtrlByte2ByteLengths(ctrl byte) int {
	return int(ctrl>>3&7+ctrl&7) + 2
}

// WriteSortedUint64s writes an ascending list of uint64s.
//
// Format:
//
//	Number of values, 8 bytes.
//	Pairs of deltas to the previous value:
//		Control byte, 1 byte.
//		Deltas, 2-16 bytes.
//
// An odd list is padded with a zero delta, which is dropped on reading
// because the count is known.
func WriteSortedUint64s(w io.Writer, list []uint64) (int64, error) {
	bw := bufio.NewWriter(w)

	var N int64
	buf := make([]byte, 17)
	binary.BigEndian.PutUint64(buf[:8], uint64(len(list)))
	if _, err := bw.Write(buf[:8]); err != nil {
		return N, err
	}
	N += 8

	var pre, d1, d2 uint64
	var ctrl byte
	var n int
	for i := 0; i < len(list); i += 2 {
		d1 = list[i] - pre
		pre = list[i]
		if i+1 < len(list) {
			d2 = list[i+1] - pre
			pre = list[i+1]
		} else {
			d2 = 0
		}

		ctrl, n = PutUint64s(buf[1:], d1, d2)
		buf[0] = ctrl
		if _, err := bw.Write(buf[:n+1]); err != nil {
			return N, err
		}
		N += int64(n + 1)
	}

	return N, bw.Flush()
}

// ReadSortedUint64s reads a list written by WriteSortedUint64s.
func ReadSortedUint64s(r io.Reader) ([]uint64, int64, error) {
	br := bufio.NewReader(r)

	var N int64
	buf := make([]byte, 16)
	if _, err := io.ReadFull(br, buf[:8]); err != nil {
		return nil, N, err
	}
	N += 8
	total := binary.BigEndian.Uint64(buf[:8])

	list := make([]uint64, 0, min(total, 1<<20))
	var pre, v1, v2 uint64
	var ctrl byte
	var err error
	var n int
	for uint64(len(list)) < total {
		ctrl, err = br.ReadByte()
		if err != nil {
			return nil, N, ErrTruncated
		}
		n = CtrlByte2ByteLengths(ctrl)
		if _, err = io.ReadFull(br, buf[:n]); err != nil {
			return nil, N, ErrTruncated
		}
		N += int64(n + 1)

		v1, v2, _ = Uint64s(ctrl, buf[:n])
		pre += v1
		list = append(list, pre)
		if uint64(len(list)) < total {
			pre += v2
			list = append(list, pre)
		}
	}

	return list, N, nil
}
