package inputs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanq16/partdl/internal/utils"
)

type pair struct {
	url, outputPath string
	serverName      bool
}

func pairs(tasks []utils.DownloadTask) []pair {
	var out []pair
	for _, task := range tasks {
		out = append(out, pair{task.URL, task.OutputPath, task.UseServerName})
	}
	return out
}

func newFS(t *testing.T, dirs ...string) billy.Filesystem {
	t.Helper()
	fsys := memfs.New()
	for _, dir := range dirs {
		require.NoError(t, fsys.MkdirAll(dir, 0755))
	}
	return fsys
}

func TestFileNameFromURL(t *testing.T) {
	cases := map[string]string{
		"https://cdn.example.com/files/My%20Show%20%5B1080p%5D.mkv": "My Show [1080p].mkv",
		"https://cdn.example.com/a/b/archive.tar.gz?sig=abc":        "archive.tar.gz",
		"https://cdn.example.com/":                                  "download",
		"https://cdn.example.com":                                   "download",
		"https://cdn.example.com/%22quoted%22.txt":                  "quoted.txt",
		"https://cdn.example.com/evil%2F..":                         "evil_..",
		"https://cdn.example.com/..":                                "download",
	}
	for link, want := range cases {
		assert.Equal(t, want, FileNameFromURL(link), link)
	}

	long := "https://cdn.example.com/" + strings.Repeat("n", 300) + ".mp4"
	name := FileNameFromURL(long)
	assert.Len(t, name, 204)
	assert.True(t, strings.HasSuffix(name, ".mp4"))
}

func TestTaskForServerName(t *testing.T) {
	task := TaskFor("ep__https://example.com/get?id=1", "dl")
	assert.Equal(t, "https://example.com/get?id=1", task.URL)
	assert.Equal(t, filepath.Join("dl", "get"), task.OutputPath)
	assert.True(t, task.UseServerName)
	assert.NotEmpty(t, task.ID)
}

func TestParseText(t *testing.T) {
	fsys := newFS(t, "/media")
	input := strings.Join([]string{
		"# season one",
		"https://example.com/ep1.mkv",
		"",
		"   https://example.com/ep2.mkv   ",
		"  # skipped",
		"ep__https://example.com/dl?id=3",
	}, "\n")

	tasks, err := ParseText(fsys, strings.NewReader(input), "/media")
	require.NoError(t, err)
	assert.Equal(t, []pair{
		{"https://example.com/ep1.mkv", filepath.Join("/media", "ep1.mkv"), false},
		{"https://example.com/ep2.mkv", filepath.Join("/media", "ep2.mkv"), false},
		{"https://example.com/dl?id=3", filepath.Join("/media", "dl"), true},
	}, pairs(tasks))
}

func TestParseTextNeedsStorageDir(t *testing.T) {
	fsys := newFS(t)
	_, err := ParseText(fsys, strings.NewReader("https://example.com/a"), "")
	assert.Error(t, err)
	_, err = ParseText(fsys, strings.NewReader("https://example.com/a"), "/absent")
	assert.Error(t, err)
}

func TestParseJSON(t *testing.T) {
	fsys := newFS(t, "/movies", "/shows")
	input := `{
  # comment line
  "/shows": [
    "https://example.com/s1e1.mkv",
    // "https://example.com/disabled.mkv",
    "#https://example.com/also-disabled.mkv",
    "ep__https://example.com/s1e2"
  ],
  "/missing": ["https://example.com/lost.bin"],
  "/movies": ["https://example.com/film.mp4"]
}`
	tasks, err := ParseJSON(fsys, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []pair{
		{"https://example.com/s1e1.mkv", filepath.Join("/shows", "s1e1.mkv"), false},
		{"https://example.com/s1e2", filepath.Join("/shows", "s1e2"), true},
		{"https://example.com/film.mp4", filepath.Join("/movies", "film.mp4"), false},
	}, pairs(tasks))
}

func TestParseJSONRejectsList(t *testing.T) {
	_, err := ParseJSON(newFS(t), strings.NewReader(`["https://example.com/a"]`))
	assert.Error(t, err)
}

func TestParseYAML(t *testing.T) {
	input := `
- link: https://example.com/one.iso
  op: isos/one.iso
- link: https://example.com/two.iso
- link: https://example.com/three.iso
  op: /abs/three.iso
`
	tasks, err := ParseYAML(strings.NewReader(input), "/data")
	require.NoError(t, err)
	assert.Equal(t, []pair{
		{"https://example.com/one.iso", filepath.Join("/data", "isos", "one.iso"), false},
		{"https://example.com/two.iso", filepath.Join("/data", "two.iso"), false},
		{"https://example.com/three.iso", "/abs/three.iso", false},
	}, pairs(tasks))

	_, err = ParseYAML(strings.NewReader("- op: x\n"), "")
	assert.Error(t, err)
}

func TestLoadDetectsFormat(t *testing.T) {
	fsys := newFS(t, "/dl")
	require.NoError(t, util.WriteFile(fsys, "/lists/urls.txt", []byte("https://example.com/a.bin\n"), 0644))
	require.NoError(t, util.WriteFile(fsys, "/lists/urls.json", []byte(`{"/dl": ["https://example.com/b.bin"]}`), 0644))
	require.NoError(t, util.WriteFile(fsys, "/lists/urls.yml", []byte("- link: https://example.com/c.bin\n"), 0644))

	txt, err := Load(fsys, "/lists/urls.txt", "/dl")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/dl", "a.bin"), txt[0].OutputPath)

	js, err := Load(fsys, "/lists/urls.json", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/dl", "b.bin"), js[0].OutputPath)

	yml, err := Load(fsys, "/lists/urls.yml", "/dl")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/dl", "c.bin"), yml[0].OutputPath)

	_, err = Load(fsys, "/lists/none.txt", "/dl")
	assert.Error(t, err)
	assert.Equal(t, FormatYAML, DetectFormat("x.YAML"))
}

func TestParseJSONRelativeDirOnDisk(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.Mkdir("media", 0755))

	tasks, err := ParseJSON(utils.LocalFS(), strings.NewReader(`{"media": ["https://example.com/a.bin"]}`))
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.True(t, filepath.IsAbs(tasks[0].OutputPath))
	assert.Equal(t, "a.bin", filepath.Base(tasks[0].OutputPath))
	assert.Equal(t, "media", filepath.Base(filepath.Dir(tasks[0].OutputPath)))
}

func TestTaskAtServerName(t *testing.T) {
	task := TaskAt("ep__https://example.com/get?id=9", "/dl/fallback.bin")
	assert.Equal(t, "https://example.com/get?id=9", task.URL)
	assert.Equal(t, "/dl/fallback.bin", task.OutputPath)
	assert.True(t, task.UseServerName)
	assert.False(t, TaskAt("https://example.com/x", "/dl/x").UseServerName)
}
