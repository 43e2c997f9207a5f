package logging

import (
	"fmt"
	"path/filepath"
	"time"
)

// FileBaseName prefixes every ghostctl log file.
const FileBaseName = "ghostctl"

// FilePath names the log file for one ghostctl invocation. The UTC start
// time and the pid keep concurrent commands (a race next to an upload, say)
// out of each other's files.
func FilePath(logsDir string, start time.Time, pid int) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.%d.log", FileBaseName, start.UTC().Format("20060102_150405"), pid),
	)
}
