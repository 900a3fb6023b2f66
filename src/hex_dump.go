package mfsk

import (
	"fmt"
	"io"
	"strings"
)

// HexDump writes bytes in the traditional offset, hex, printable layout.
func HexDump(w io.Writer, p []byte) {
	var offset = 0

	for len(p) > 0 {
		var n = min(len(p), 16)

		fmt.Fprintf(w, "  %03x: ", offset)

		for i := 0; i < n; i++ {
			fmt.Fprintf(w, " %02x", p[i])
		}

		for i := n; i < 16; i++ {
			fmt.Fprint(w, "   ")
		}

		fmt.Fprintf(w, "  %s\n", printable(p[:n]))

		p = p[n:]
		offset += n
	}
}

// HexBytesString formats bytes as "ab cd 00 05".
func HexBytesString(p []byte) string {
	var sb strings.Builder

	for i, b := range p {
		if i > 0 {
			sb.WriteByte(' ')
		}

		fmt.Fprintf(&sb, "%02x", b)
	}

	return sb.String()
}

// printable replaces anything outside printable ASCII with '.'.
func printable(p []byte) string {
	var out = make([]byte, len(p))

	for i, c := range p {
		if c >= 0x20 && c <= 0x7E {
			out[i] = c
		} else {
			out[i] = '.'
		}
	}

	return string(out)
}
