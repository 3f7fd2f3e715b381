package engine

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/valyala/fastjson"
)

// LogPrefix marks log messages that carry operation result rows.
const LogPrefix = "datametry_log:"

var maxLineSize = 16 * 1024 * 1024

// parseOutput scans JSON log events written by the engine.  It returns the rows carried by messages
// starting with LogPrefix and the messages of error level events.  Lines that are not JSON are skipped.
// A non-nil scanErr means the output could not be read to the end and rows may be incomplete.
func parseOutput(stdout []byte) (rows []string, engineErrs []error, scanErr error) {
	var p fastjson.Parser
	sc := bufio.NewScanner(bytes.NewReader(stdout))
	sc.Buffer(make([]byte, 0, min(64*1024, maxLineSize)), maxLineSize)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] != '{' {
			continue
		}

		v, err := p.ParseBytes(line)
		if err != nil {
			continue
		}

		msg := firstString(v, []string{"info", "msg"}, []string{"data", "msg"}, []string{"msg"})
		level := firstString(v, []string{"info", "level"}, []string{"level"})

		if rest, ok := strings.CutPrefix(msg, LogPrefix); ok {
			rows = append(rows, strings.TrimSpace(rest))
			continue
		}
		if strings.EqualFold(level, "error") && msg != "" {
			engineErrs = append(engineErrs, errors.New(msg))
		}
	}
	if err := sc.Err(); err != nil {
		return rows, engineErrs, fmt.Errorf("read engine output after %d rows: %w", len(rows), err)
	}
	return rows, engineErrs, nil
}

func firstString(v *fastjson.Value, paths ...[]string) string {
	for _, path := range paths {
		if b := v.GetStringBytes(path...); b != nil {
			return string(b)
		}
	}
	return ""
}
