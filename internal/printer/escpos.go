package printer

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"tokopos/backend/internal/receipt"
)

const (
	esc = 0x1b
	gs  = 0x1d
	lf  = 0x0a

	// codePagePC858 is the ESC t slot of PC858 (Latin-1 with the euro sign)
	// on Epson-compatible printers.
	codePagePC858 = 19
)

// Glyphs the printer code page lacks, spelled out.
var transliterations = []struct {
	glyph string
	ascii string
}{
	{"₹", "Rs."},
}

// EncodeESCPOS turns the plain-text rendition of a receipt into a raw byte
// stream for thermal printers: initialize, select PC858, text lines, feed,
// partial cut. Text is single-byte PC858; characters it cannot encode print
// as '?'.
func EncodeESCPOS(doc receipt.Document) []byte {
	var buf bytes.Buffer
	buf.Write([]byte{esc, '@'})
	buf.Write([]byte{esc, 't', codePagePC858})
	for i, line := range doc.Lines {
		if i == 0 {
			// Store name in bold.
			buf.Write([]byte{esc, 'E', 1})
			buf.Write(encodeLine(line))
			buf.WriteByte(lf)
			buf.Write([]byte{esc, 'E', 0})
			continue
		}
		buf.Write(encodeLine(line))
		buf.WriteByte(lf)
	}
	buf.Write([]byte{lf, lf, lf})
	buf.Write([]byte{gs, 'V', 'A', 0x10})
	return buf.Bytes()
}

func encodeLine(line string) []byte {
	line = transliterate(line)
	out := make([]byte, 0, len(line))
	for _, r := range line {
		if r < 0x20 || r == 0x7f {
			out = append(out, ' ')
			continue
		}
		b, ok := charmap.CodePage858.EncodeRune(r)
		if !ok || b < 0x20 {
			b = '?'
		}
		out = append(out, b)
	}
	return out
}

// transliterate spells out glyphs the code page lacks, then gives back the
// extra columns from the widest padding so the line still fits the roll.
func transliterate(line string) string {
	changed := false
	for _, t := range transliterations {
		if strings.Contains(line, t.glyph) {
			line = strings.ReplaceAll(line, t.glyph, t.ascii)
			changed = true
		}
	}
	if !changed {
		return line
	}
	for utf8.RuneCountInString(line) > receipt.Width {
		i := strings.LastIndex(line, "  ")
		if i < 0 {
			break
		}
		line = line[:i] + line[i+1:]
	}
	return line
}
