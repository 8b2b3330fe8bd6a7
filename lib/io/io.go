package iolib

import "io"

// WriteFull writes buf to w, retrying partial writes until buf is drained.
// A writer that makes no progress without an error gets [io.ErrShortWrite].
func WriteFull(w io.Writer, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := w.Write(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}
