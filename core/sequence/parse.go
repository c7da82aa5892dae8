package sequence

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"cu-planner/internal/errors"
)

// ParseCosts reads a cost file. It accepts a YAML or JSON list of integers, or
// plain text with one integer per line; blank lines and '#' comments are ignored.
// Unlike a log, a cost file with a malformed line is rejected as a whole.
func ParseCosts(data []byte, source string) ([]int64, error) {
	var costs []int64
	listErr := yaml.Unmarshal(data, &costs)
	if listErr == nil {
		return costs, nil
	}

	costs = costs[:0]
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		v, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return nil, errors.Parsing(source+" is neither a list nor one integer per line", listErr).
				WithContext("line", n).
				WithContext("text", line)
		}
		costs = append(costs, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(errors.TypeInput, err, "reading %s", source)
	}
	return costs, nil
}
