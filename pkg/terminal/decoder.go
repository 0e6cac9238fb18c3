package terminal

import (
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// streamDecoder decodes UTF-8 across chunk boundaries. Invalid bytes become
// U+FFFD; an incomplete sequence at the end of a chunk is held back until the
// next chunk completes or breaks it.
type streamDecoder struct {
	t     transform.Transformer
	carry []byte
}

func newStreamDecoder() *streamDecoder {
	return &streamDecoder{t: unicode.UTF8.NewDecoder()}
}

// Decode returns the text decodable so far
func (d *streamDecoder) Decode(chunk []byte) string {
	src := make([]byte, 0, len(d.carry)+len(chunk))
	src = append(src, d.carry...)
	src = append(src, chunk...)
	d.carry = nil

	// each source byte yields at most one 3 byte replacement character
	dst := make([]byte, 3*len(src)+4)
	var out []byte

	for len(src) > 0 {
		nDst, nSrc, err := d.t.Transform(dst, src, false)
		out = append(out, dst[:nDst]...)
		src = src[nSrc:]

		switch err {
		case nil:
			return string(out)
		case transform.ErrShortSrc:
			d.carry = append([]byte(nil), src...)
			return string(out)
		case transform.ErrShortDst:
			if nDst == 0 && nSrc == 0 {
				dst = make([]byte, 2*len(dst))
			}
		default:
			// the UTF-8 decoder reports no other errors; keep the rest verbatim
			return string(append(out, src...))
		}
	}
	return string(out)
}

// Flush ends the held back sequence, decoding its bytes as U+FFFD
func (d *streamDecoder) Flush() string {
	held := d.Take()
	if len(held) == 0 {
		return ""
	}

	out, _, err := transform.Bytes(unicode.UTF8.NewDecoder(), held)
	if err != nil {
		return "\uFFFD"
	}
	return string(out)
}

// Take returns the held back bytes undecoded and forgets them
func (d *streamDecoder) Take() []byte {
	held := d.carry
	d.carry = nil
	d.t.Reset()
	return held
}

// Pending reports whether bytes of an unfinished sequence are held back
func (d *streamDecoder) Pending() bool {
	return len(d.carry) > 0
}

// Reset drops any held back bytes
func (d *streamDecoder) Reset() {
	d.carry = nil
	d.t.Reset()
}
