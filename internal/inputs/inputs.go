// Package inputs turns URL list files into download tasks.
//
// Three formats are read. Plain text holds one URL per line and needs a
// storage directory. JSON maps storage directories to URL lists. YAML is a
// list of {link, op} entries. Lines starting with # (and // in JSON) are
// comments. A URL prefixed with ep__ takes its file name from the server's
// Content-Disposition header.
package inputs

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/tanq16/partdl/internal/utils"
)

type Format string

const (
	FormatText Format = "txt"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"

	serverNamePrefix = "ep__"
	fallbackName     = "download"
)

func DetectFormat(inputPath string) Format {
	switch strings.ToLower(filepath.Ext(inputPath)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatText
	}
}

// Load reads inputPath from fsys and parses it by its extension. storageDir
// is required for text lists and is the base for relative YAML paths.
func Load(fsys billy.Filesystem, inputPath, storageDir string) ([]utils.DownloadTask, error) {
	f, err := fsys.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("error opening input file: %w", err)
	}
	defer f.Close()
	switch DetectFormat(inputPath) {
	case FormatJSON:
		return ParseJSON(fsys, f)
	case FormatYAML:
		return ParseYAML(f, storageDir)
	default:
		return ParseText(fsys, f, storageDir)
	}
}

// ParseText and ParseJSON resolve relative storage directories against the
// working directory.
func ParseText(fsys billy.Filesystem, r io.Reader, storageDir string) ([]utils.DownloadTask, error) {
	storageDir = utils.AbsPath(storageDir)
	if storageDir == "" {
		return nil, fmt.Errorf("storage directory required for text input")
	}
	if !dirExists(fsys, storageDir) {
		return nil, fmt.Errorf("storage directory %q does not exist", storageDir)
	}
	var tasks []utils.DownloadTask
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tasks = append(tasks, TaskFor(line, storageDir))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading input: %w", err)
	}
	return tasks, nil
}

func ParseJSON(fsys billy.Filesystem, r io.Reader) ([]utils.DownloadTask, error) {
	var filtered bytes.Buffer
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		trimmed := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") {
			continue
		}
		filtered.WriteString(scanner.Text())
		filtered.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading input: %w", err)
	}

	// decode through an ordered walk so tasks keep file order
	dec := json.NewDecoder(&filtered)
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, fmt.Errorf("JSON input must be an object of storage directory to URL list")
	}
	var tasks []utils.DownloadTask
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("error parsing JSON input: %w", err)
		}
		key, _ := tok.(string)
		storageDir := utils.AbsPath(key)
		var links []string
		if err := dec.Decode(&links); err != nil {
			return nil, fmt.Errorf("error parsing URLs for %q: %w", storageDir, err)
		}
		if !dirExists(fsys, storageDir) {
			log.Warn().Str("op", "inputs/json").Str("dir", storageDir).Msg("Storage directory does not exist, skipping its URLs")
			continue
		}
		for _, link := range links {
			link = strings.TrimSpace(link)
			if link == "" || strings.HasPrefix(link, "#") || strings.HasPrefix(link, "//") {
				continue
			}
			tasks = append(tasks, TaskFor(link, storageDir))
		}
	}
	return tasks, nil
}

// ParseYAML reads the {link, op} list format. Entries without op are named
// from their URL; relative op paths are placed under storageDir when set.
func ParseYAML(r io.Reader, storageDir string) ([]utils.DownloadTask, error) {
	var entries []utils.DownloadEntry
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("error parsing YAML input: %w", err)
	}
	var tasks []utils.DownloadTask
	for i, entry := range entries {
		link := strings.TrimSpace(entry.URL)
		if link == "" {
			return nil, fmt.Errorf("entry %d has no link", i+1)
		}
		if entry.OutputPath == "" {
			tasks = append(tasks, TaskFor(link, storageDir))
			continue
		}
		outputPath := entry.OutputPath
		if storageDir != "" && !filepath.IsAbs(outputPath) {
			outputPath = filepath.Join(storageDir, outputPath)
		}
		tasks = append(tasks, TaskAt(link, outputPath))
	}
	return tasks, nil
}

// SplitServerName removes the ep__ prefix from link and reports whether it
// was present.
func SplitServerName(link string) (string, bool) {
	trimmed, found := strings.CutPrefix(link, serverNamePrefix)
	return trimmed, found
}

// TaskFor builds the task for link stored under dir, honouring the ep__ prefix.
func TaskFor(link, dir string) utils.DownloadTask {
	bare, _ := SplitServerName(link)
	return TaskAt(link, filepath.Join(dir, FileNameFromURL(bare)))
}

// TaskAt builds the task writing link to outputPath, honouring the ep__ prefix.
func TaskAt(link, outputPath string) utils.DownloadTask {
	link, useServerName := SplitServerName(link)
	task := utils.NewTask(link, outputPath)
	task.UseServerName = useServerName
	return task
}

// FileNameFromURL derives a local file name from the last path segment of link.
func FileNameFromURL(link string) string {
	var name string
	if parsed, err := url.Parse(link); err == nil {
		name = path.Base(parsed.EscapedPath())
	} else {
		name = link[strings.LastIndex(link, "/")+1:]
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	name = strings.NewReplacer("/", "_", `\`, "_").Replace(name)
	name = utils.SanitizeFileName(name)
	switch name {
	case "", ".", "..", "_":
		return fallbackName
	}
	return name
}

func dirExists(fsys billy.Filesystem, dir string) bool {
	info, err := fsys.Stat(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Str("op", "inputs/stat").Err(err).Str("dir", dir).Msg("Could not check storage directory")
		}
		return false
	}
	return info.IsDir()
}
