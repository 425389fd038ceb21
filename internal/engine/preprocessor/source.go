package preprocessor

import (
	"bufio"
	"bytes"
	"strings"
)

// Line is one retained source line and where it came from.
type Line struct {
	Text string
	File string
	Num  int
}

// SplitSource breaks file content into lines, dropping blank lines and
// full-line '!' comments. Numbers stay 1-based against the original file.
func SplitSource(file string, data []byte) []Line {
	var out []Line
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	num := 0
	for sc.Scan() {
		num++
		text := strings.TrimRight(sc.Text(), "\r")
		trimmed := strings.TrimSpace(text)
		if trimmed == "" || strings.HasPrefix(trimmed, "!") {
			continue
		}
		out = append(out, Line{Text: text, File: file, Num: num})
	}
	return out
}

// Texts returns just the text of each line.
func Texts(lines []Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}

// FromTexts builds lines for file numbered from 1.
func FromTexts(file string, texts []string) []Line {
	out := make([]Line, len(texts))
	for i, s := range texts {
		out[i] = Line{Text: s, File: file, Num: i + 1}
	}
	return out
}

// HasDirectives reports whether any line starts with '#'.
func HasDirectives(lines []Line) bool {
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimLeft(l.Text, " \t"), "#") {
			return true
		}
	}
	return false
}
