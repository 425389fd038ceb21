package output

import (
	"bufio"
	"io"
	"strings"

	domainErrors "fortrandep/internal/core/errors"
)

// ObjectListing is what a dependency file's "#:" header records.
type ObjectListing struct {
	BuildDir string
	Sources  []string
}

// ParseObjectListing reads "#: build_dir = DIR" and "#: SOURCE" lines. The
// first build_dir line wins; later ones are treated as sources.
func ParseObjectListing(r io.Reader) (*ObjectListing, error) {
	listing := &ObjectListing{}
	haveDir := false
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "#:") {
			continue
		}
		body := strings.TrimSpace(strings.TrimPrefix(line, "#:"))
		if !haveDir {
			if _, dir, ok := strings.Cut(body, "build_dir ="); ok {
				listing.BuildDir = strings.TrimSpace(dir)
				haveDir = true
				continue
			}
		}
		if body != "" {
			listing.Sources = append(listing.Sources, body)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, domainErrors.Wrap(err, domainErrors.CodeInternal, "read dependency file")
	}
	return listing, nil
}

// Objects returns the object path for every source.
func (l *ObjectListing) Objects(ext string) []string {
	if ext == "" {
		ext = DefaultObjectExt
	}
	out := make([]string, len(l.Sources))
	for i, src := range l.Sources {
		out[i] = ObjectPath(l.BuildDir, src, ext)
	}
	return out
}

// GenerateObjects renders an "objects" make variable fragment.
func (l *ObjectListing) GenerateObjects(ext string) string {
	var buf strings.Builder
	buf.WriteString(Header)
	buf.WriteString("objects :=\n")
	for _, obj := range l.Objects(ext) {
		buf.WriteString("objects += " + obj + "\n")
	}
	return buf.String()
}
