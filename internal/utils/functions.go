package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
)

func GetRandomUserAgent() string {
	return userAgents[time.Now().UnixNano()%int64(len(userAgents))]
}

func ParseHeaderArgs(headers []string) map[string]string {
	result := make(map[string]string)
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			result[key] = value
		}
	}
	return result
}

// PartPath names the part file holding range index of outputPath.
func PartPath(outputPath string, index int) string {
	return fmt.Sprintf("%s.part%d", outputPath, index)
}

// SanitizeFileName strips quotes from name and shortens names longer than
// 205 characters to their first 200 and last 4 characters.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, `"`, ""))
	runes := []rune(name)
	if len(runes) > maxFileNameLen {
		name = string(runes[:200]) + string(runes[len(runes)-4:])
	}
	return name
}

func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func FormatSpeed(bytes int64, elapsed float64) string {
	if elapsed == 0 {
		return "0 B/s"
	}
	bps := float64(bytes) / elapsed
	formatted := FormatBytes(uint64(bps))
	return formatted[:len(formatted)-1] + "B/s" // Slice off "B" and add "B/s"
}

// CleanParts removes the part files and any stale merge file left for
// outputPath. It returns the number of files removed.
func CleanParts(fsys billy.Filesystem, outputPath string) (int, error) {
	dir := filepath.Dir(outputPath)
	base := filepath.Base(outputPath)
	files, err := fsys.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	removed := 0
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		name := file.Name()
		loc := ChunkIDRegex.FindStringIndex(name)
		isPart := loc != nil && name[:loc[0]] == base
		if !isPart && name != base+MergeSuffix {
			continue
		}
		if err := fsys.Remove(fsys.Join(dir, name)); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
