package expr

// InterpolationPart is one `${...}` occurrence inside attribute or text
// content. Code offsets are relative to the scanned content string.
type InterpolationPart struct {
	Code Range // the code between the braces
	Full Range // including the ${ and } delimiters
}

// SplitInterpolation scans content for `${...}` expressions. Parts holds
// the literal text around and between expressions: len(Parts) is always
// len(Exprs)+1, with empty strings where expressions touch the content
// edges or each other. Nested braces and string literals inside the
// expression are honored.
func SplitInterpolation(content string) (parts []string, exprs []InterpolationPart) {
	last := 0
	i := 0
	for i < len(content)-1 {
		if content[i] != '$' || content[i+1] != '{' {
			i++
			continue
		}
		open := i
		j := i + 2
		depth := 1
		var quote byte
		for j < len(content) {
			c := content[j]
			if quote != 0 {
				if c == '\\' {
					j += 2
					continue
				}
				if c == quote {
					quote = 0
				}
				j++
				continue
			}
			switch c {
			case '\'', '"', '`':
				quote = c
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					parts = append(parts, content[last:open])
					exprs = append(exprs, InterpolationPart{
						Code: Range{open + 2, j},
						Full: Range{open, j + 1},
					})
					last = j + 1
					i = j + 1
				}
			}
			if depth == 0 {
				break
			}
			j++
		}
		if depth != 0 {
			// Unterminated ${: treat the rest as literal text.
			break
		}
	}
	parts = append(parts, content[last:])
	return parts, exprs
}

// HasInterpolation reports whether content contains at least one complete
// `${...}` expression.
func HasInterpolation(content string) bool {
	_, exprs := SplitInterpolation(content)
	return len(exprs) > 0
}
