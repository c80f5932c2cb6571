package objects

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseVector parses one comma- or space-separated line of numbers.
func ParseVector(line string) ([]float32, error) {
	line = strings.TrimSpace(line)
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty vector line")
	}
	data := make([]float32, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", f, err)
		}
		data = append(data, float32(v))
	}
	return data, nil
}

// ReadObjects reads objects from a text stream, one per line. A line may be
// prefixed with "locator:"; otherwise the locator is the 1-based line number.
// Blank lines and '#' comments are skipped. All vectors must share one
// dimension.
func ReadObjects(r io.Reader) ([]*Object, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var out []*Object
	dimension := -1
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		locator := strconv.Itoa(lineNo)
		if idx := strings.IndexByte(line, ':'); idx >= 0 {
			locator = strings.TrimSpace(line[:idx])
			line = line[idx+1:]
		}
		data, err := ParseVector(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if dimension == -1 {
			dimension = len(data)
		} else if len(data) != dimension {
			return nil, fmt.Errorf("line %d: dimension %d does not match %d", lineNo, len(data), dimension)
		}
		out = append(out, New(locator, data))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
