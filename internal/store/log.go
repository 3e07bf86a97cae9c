package store

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/kofuk/premises-launcher/internal/host"
	"golang.org/x/exp/slices"
)

const MaxLogLines = 1000

// LogStore is a cell holding at most MaxLogLines lines. New lines are
// appended and the oldest ones are dropped first.
type LogStore struct {
	*Cell[[]string]
}

func newLogStore(h host.Host, name, fetchMethod string, fetchParams any, event string) *LogStore {
	return &LogStore{
		Cell: NewCell(h, CellOptions[[]string]{
			Name:        name,
			FetchMethod: fetchMethod,
			FetchParams: fetchParams,
			Event:       event,
			DecodeFetch: func(payload json.RawMessage) ([]string, error) {
				lines, err := decodeLines(payload)
				if err != nil {
					return nil, err
				}
				return appendLines(nil, lines...), nil
			},
			DecodeEvent: func(current []string, payload json.RawMessage) ([]string, error) {
				lines, err := decodeLines(payload)
				if err != nil {
					return nil, err
				}
				return appendLines(current, lines...), nil
			},
			ReplayOnFetch: true,
		}),
	}
}

func NewLauncherLogStore(h host.Host) *LogStore {
	return newLogStore(h, "launcher_logs", host.MethodGetLauncherLogsCache, nil, host.EventLauncherLog)
}

func NewGameLogStore(h host.Host) *LogStore {
	return newLogStore(h, "game_logs", host.MethodGetLogs, host.GetLogsInput{ID: host.LogGame}, host.EventLog)
}

// decodeLines accepts either a single line or a list of lines.
func decodeLines(payload json.RawMessage) ([]string, error) {
	if string(bytes.TrimSpace(payload)) == "null" {
		return nil, nil
	}

	var line string
	if err := json.Unmarshal(payload, &line); err == nil {
		return []string{line}, nil
	}

	var lines []string
	if err := json.Unmarshal(payload, &lines); err != nil {
		return nil, errors.New("log payload is neither a string nor a list of strings")
	}
	return lines, nil
}

func appendLines(buf []string, lines ...string) []string {
	result := make([]string, 0, len(buf)+len(lines))
	result = append(result, buf...)
	result = append(result, lines...)

	if len(result) > MaxLogLines {
		result = slices.Clone(result[len(result)-MaxLogLines:])
	}
	return result
}

// Log appends lines locally. The host is not involved.
func (s *LogStore) Log(lines ...string) {
	s.update(func(current []string) ([]string, error) {
		return appendLines(current, lines...), nil
	})
}

// Clear empties the buffer locally. The host keeps its own copy.
func (s *LogStore) Clear() {
	s.publish([]string{})
}
