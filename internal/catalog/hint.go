package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// maxTemplateOutput caps what a resolve template may produce.
const maxTemplateOutput = 4 << 10

// maxFormatWidth caps width and precision in printf verbs. The output cap
// only applies after fmt has built the whole string.
const maxFormatWidth = 256

// errTemplateOutputTooLarge is returned when a template exceeds maxTemplateOutput.
var errTemplateOutputTooLarge = errors.New("template output exceeds 4 KiB")

// EscapeError reports a computed path outside the package root.
type EscapeError struct {
	Root string
	Path string
}

func (e *EscapeError) Error() string {
	return fmt.Sprintf("path %q escapes package root %s", e.Path, e.Root)
}

// hintData is the data passed to resolve templates.
type hintData struct {
	Name    string
	Version string
	OS      string
	Arch    string
	Root    string
	Vars    map[string]interface{}
}

// blockedFuncs are sprig functions a resolve template may not call: they
// read the process environment, touch the network, are non-deterministic,
// or can allocate without bound.
var blockedFuncs = []string{
	"env", "expandenv",
	"getHostByName",
	"now", "date_in_zone", "dateInZone",
	"randAlpha", "randAlphaNum", "randAscii", "randNumeric", "randBytes", "randInt",
	"uuidv4", "shuffle",
	"genPrivateKey", "derivePassword", "buildCustomCert",
	"genCA", "genCAWithKey", "genSelfSignedCert", "genSelfSignedCertWithKey",
	"genSignedCert", "genSignedCertWithKey",
	"encryptAES", "decryptAES",
	"until", "untilStep", "seq", "repeat", "indent", "nindent",
}

func hintFuncMap() template.FuncMap {
	funcs := sprig.TxtFuncMap()
	for _, name := range blockedFuncs {
		delete(funcs, name)
	}
	// Replaces the text/template builtin.
	funcs["printf"] = boundedPrintf
	return funcs
}

// boundedPrintf is fmt.Sprintf with width and precision limited to
// maxFormatWidth and no '*' arguments.
func boundedPrintf(format string, args ...interface{}) (string, error) {
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}
		n := 0
		for i++; i < len(format); i++ {
			c := format[i]
			switch {
			case c >= '0' && c <= '9':
				n = n*10 + int(c-'0')
				if n > maxFormatWidth {
					return "", fmt.Errorf("printf width exceeds %d", maxFormatWidth)
				}
				continue
			case c == '.' || c == '[' || c == ']':
				n = 0
				continue
			case c == '*':
				return "", errors.New("printf '*' width is not allowed")
			case strings.IndexByte("+-# ", c) >= 0:
				continue
			}
			break
		}
	}
	return fmt.Sprintf(format, args...), nil
}

type limitedBuffer struct {
	buf bytes.Buffer
	max int
}

func (l *limitedBuffer) Write(p []byte) (int, error) {
	if l.buf.Len()+len(p) > l.max {
		return 0, errTemplateOutputTooLarge
	}
	return l.buf.Write(p)
}

// evalTemplate renders a resolve template.
func evalTemplate(text string, data hintData) (string, error) {
	tpl, err := template.New("resolve").Option("missingkey=error").Funcs(hintFuncMap()).Parse(text)
	if err != nil {
		return "", fmt.Errorf("invalid resolve template: %w", err)
	}
	out := &limitedBuffer{max: maxTemplateOutput}
	if err := tpl.Execute(out, data); err != nil {
		if errors.Is(err, errTemplateOutputTooLarge) {
			return "", errTemplateOutputTooLarge
		}
		return "", fmt.Errorf("resolve template failed: %w", err)
	}
	return strings.TrimSpace(out.buf.String()), nil
}

// evalGlob returns the lexically last regular file matching pattern under root.
func evalGlob(root, pattern string) (string, error) {
	pattern = filepath.FromSlash(strings.TrimSpace(pattern))
	if filepath.IsAbs(pattern) || hasParentSegment(pattern) {
		return "", &EscapeError{Root: root, Path: pattern}
	}
	matches, err := filepath.Glob(filepath.Join(root, pattern))
	if err != nil {
		return "", fmt.Errorf("invalid resolve glob %q: %w", pattern, err)
	}
	sort.Strings(matches)
	for i := len(matches) - 1; i >= 0; i-- {
		if isRegularFile(matches[i]) {
			return matches[i], nil
		}
	}
	return "", nil
}

// contained resolves candidate against root and verifies it stays inside.
// An empty candidate yields an empty result.
func contained(root, candidate string) (string, error) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return "", nil
	}
	p := filepath.FromSlash(candidate)
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &EscapeError{Root: root, Path: candidate}
	}
	return p, nil
}

func hasParentSegment(p string) bool {
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if part == ".." {
			return true
		}
	}
	return false
}

func isRegularFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
