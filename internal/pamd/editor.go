package pamd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rsh2prasad/authcfgd/internal/hostfs"
)

var (
	// ErrMissingTarget means the stack file does not exist. These files are
	// part of base system provisioning; the daemon edits them, never
	// creates them.
	ErrMissingTarget = errors.New("pam stack file missing")

	// ErrAmbiguousMarker means the file holds more than one managed region
	// (or an unbalanced marker pair). Guessing here risks a login lockout,
	// so the edit is refused.
	ErrAmbiguousMarker = errors.New("ambiguous managed-region markers")
)

// Fragment is the daemon-owned slice of a PAM stack file: an ordered list
// of directive lines bracketed by stable marker comments. An empty Lines
// slice means the region should not exist.
type Fragment struct {
	Name  string
	Lines []string
}

func (f Fragment) begin() string { return "# authcfgd:begin " + f.Name }
func (f Fragment) end() string   { return "# authcfgd:end " + f.Name }

// ApplyFile reads the stack file at path and returns its edited text. The
// write is left to the caller so a pass can collect every candidate edit
// before committing anything.
func ApplyFile(path string, frag Fragment) (string, error) {
	b, err := hostfs.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrMissingTarget, path)
		}
		return "", err
	}
	return Apply(string(b), frag)
}

// Apply edits content so it holds exactly one copy of frag's managed
// region (or none, for an empty fragment). Everything outside the markers
// is preserved byte for byte.
//
// A pre-existing region is replaced in place, keeping its file position so
// directive order relative to neighbouring lines never drifts. A new
// region is inserted immediately before the first auth-class directive:
// the managed methods must run ahead of the stock local fallback.
func Apply(content string, frag Fragment) (string, error) {
	lines := strings.Split(content, "\n")

	begin, end, err := findRegion(lines, frag)
	if err != nil {
		return "", err
	}

	if begin >= 0 {
		if len(frag.Lines) == 0 {
			// Remove markers and interior.
			out := append([]string{}, lines[:begin]...)
			out = append(out, lines[end+1:]...)
			return strings.Join(out, "\n"), nil
		}
		out := append([]string{}, lines[:begin+1]...)
		out = append(out, frag.Lines...)
		out = append(out, lines[end:]...)
		return strings.Join(out, "\n"), nil
	}

	if len(frag.Lines) == 0 {
		return content, nil
	}

	at := insertIndex(lines)
	region := make([]string, 0, len(frag.Lines)+2)
	region = append(region, frag.begin())
	region = append(region, frag.Lines...)
	region = append(region, frag.end())

	out := append([]string{}, lines[:at]...)
	out = append(out, region...)
	out = append(out, lines[at:]...)
	return strings.Join(out, "\n"), nil
}

// findRegion locates the marker pair for frag. Exactly zero or one
// balanced pair is acceptable; anything else is ErrAmbiguousMarker.
func findRegion(lines []string, frag Fragment) (int, int, error) {
	begin, end := -1, -1
	for i, l := range lines {
		switch strings.TrimSpace(l) {
		case frag.begin():
			if begin >= 0 {
				return 0, 0, fmt.Errorf("%w: multiple %q regions", ErrAmbiguousMarker, frag.Name)
			}
			begin = i
		case frag.end():
			if end >= 0 || begin < 0 {
				return 0, 0, fmt.Errorf("%w: stray end marker for %q", ErrAmbiguousMarker, frag.Name)
			}
			end = i
		}
	}
	if begin >= 0 && end < 0 {
		return 0, 0, fmt.Errorf("%w: unterminated %q region", ErrAmbiguousMarker, frag.Name)
	}
	return begin, end, nil
}

// insertIndex returns the line index of the first auth-class directive, or
// the end of the file when none exists.
func insertIndex(lines []string) int {
	for i, l := range lines {
		if isAuthDirective(l) {
			return i
		}
	}
	return len(lines)
}

func isAuthDirective(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "auth", "-auth":
		return true
	case "@include":
		return len(fields) > 1 && strings.HasPrefix(fields[1], "common-auth")
	}
	return false
}
