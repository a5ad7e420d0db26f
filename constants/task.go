package constants

import "strings"

// TaskKind is the fixed enumeration of backend analysis tasks.
type TaskKind string

const (
	TaskAnalyze   TaskKind = "ANALYZE"
	TaskExtract   TaskKind = "EXTRACT"
	TaskSummarize TaskKind = "SUMMARIZE"
)

// TaskKinds holds every valid task kind.
var TaskKinds = []TaskKind{TaskAnalyze, TaskExtract, TaskSummarize}

// ParseTaskKind matches a string to a task kind, case-insensitively.
func ParseTaskKind(s string) (TaskKind, bool) {
	for _, k := range TaskKinds {
		if strings.EqualFold(string(k), s) {
			return k, true
		}
	}
	return "", false
}
