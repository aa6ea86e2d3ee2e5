package imports

import (
	"bytes"
	"regexp"
	"strings"
)

var noqaRe = regexp.MustCompile(`(?i)#\s*noqa(?::\s*([a-z]+[0-9]+(?:[,\s]+[a-z]+[0-9]+)*))?`)

// unusedImportCode is the flake8 code for unused imports.
const unusedImportCode = "F401"

// hasNoqa reports whether line carries a bare noqa or one listing F401.
func hasNoqa(line []byte) bool {
	m := noqaRe.FindSubmatch(line)
	if m == nil {
		return false
	}
	if len(m[1]) == 0 {
		return true
	}
	for _, code := range strings.FieldsFunc(string(m[1]), func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	}) {
		if strings.EqualFold(code, unusedImportCode) {
			return true
		}
	}
	return false
}

// moduleIgnored reports whether module equals an ignored module or is a
// submodule of one.
func moduleIgnored(module string, ignored []string) bool {
	for _, ig := range ignored {
		if module == ig || strings.HasPrefix(module, ig+".") {
			return true
		}
	}
	return false
}

// suppress marks unused verdicts silenced by a noqa comment on the
// statement's first or last line or the name's own line, or by an ignored
// module.
func suppress(src []byte, verdicts []Verdict, ignored []string, noqa bool) {
	var lines [][]byte
	for i := range verdicts {
		v := &verdicts[i]
		if v.Status != StatusUnused {
			continue
		}
		b := v.Binding
		if moduleIgnored(b.ModulePath, ignored) {
			v.Suppressed = true
			continue
		}
		if !noqa {
			continue
		}
		if lines == nil {
			lines = bytes.Split(src, []byte("\n"))
		}
		for _, ln := range []int{b.StatementSpan.Start.Line, b.StatementSpan.End.Line, b.NameSpan.Start.Line} {
			if ln >= 1 && ln <= len(lines) && hasNoqa(lines[ln-1]) {
				v.Suppressed = true
				break
			}
		}
	}
}
