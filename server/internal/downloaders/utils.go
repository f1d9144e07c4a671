package downloaders

import (
	"bufio"
	"bytes"
	"io"
	"regexp"
	"slices"
	"strings"
)

var unsafeArg = regexp.MustCompile(`(\$\{)|(\&\&)`)

// argsSanitizer drops empty arguments and anything resembling shell
// expansion or command chaining. A rejected value takes the flag right
// before it along, so the flag cannot consume the next argument.
func argsSanitizer(params []string) []string {
	params = slices.DeleteFunc(params, func(e string) bool {
		return e == ""
	})

	var (
		out      = make([]string, 0, len(params))
		lastFlag bool
	)
	for _, p := range params {
		if unsafeArg.MatchString(p) {
			if lastFlag && !strings.HasPrefix(p, "-") {
				out = out[:len(out)-1]
			}
			lastFlag = false
			continue
		}
		out = append(out, p)
		lastFlag = strings.HasPrefix(p, "-")
	}

	return out
}

// buildTemplate makes sure a yt-dlp output template ends with exactly one
// extension placeholder. Planned paths already carrying ".mp4" are kept as
// is; extension-less audio paths get the placeholder appended.
func buildTemplate(tmpl string, audioOnly bool) string {
	if audioOnly && !strings.Contains(tmpl, "%(ext)s") {
		tmpl += ".%(ext)s"
	}

	return strings.Replace(tmpl, ".%(ext)s.%(ext)s", ".%(ext)s", 1)
}

// produceLogs forwards every line of r to fn. Lines are copied since the
// scanner reuses its buffer.
func produceLogs(r io.Reader, fn func([]byte)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimRight(scanner.Bytes(), "\r")
		if len(line) == 0 {
			continue
		}
		fn(bytes.Clone(line))
	}

	return scanner.Err()
}

// tail keeps the last n lines written to it.
type tail struct {
	n     int
	lines []string
}

func newTail(n int) *tail { return &tail{n: n} }

func (t *tail) add(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = slices.Delete(t.lines, 0, len(t.lines)-t.n)
	}
}

func (t *tail) snapshot() []string { return slices.Clone(t.lines) }
