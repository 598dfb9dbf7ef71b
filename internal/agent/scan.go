package agent

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrNoMaster means a template folder holds no usable design file.
var ErrNoMaster = errors.New("no master design file found")

// ScanResult is what a template scan reports: the master design file and
// the remaining assets, as paths relative to the scanned folder.
type ScanResult struct {
	MasterFile string
	Assets     []string
}

// Design file MIME types in order of preference.
var designTypes = []string{
	"image/vnd.adobe.photoshop",
	"application/pdf",
	"application/postscript",
}

func designRank(m *mimetype.MIME) int {
	for i, t := range designTypes {
		if m.Is(t) {
			return i
		}
	}
	return -1
}

// ScanFolder walks root, detects each file's type by content, and picks the
// master design: the best-ranked design type, preferring a file named after
// the folder, then the shallowest path, then name order. Hidden files and
// directories are skipped.
func ScanFolder(root string) (ScanResult, error) {
	info, err := os.Stat(root)
	if err != nil {
		return ScanResult{}, err
	}
	if !info.IsDir() {
		return ScanResult{}, errors.New(root + " is not a directory")
	}

	type candidate struct {
		rel  string
		rank int
	}
	var files []candidate
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		m, err := mimetype.DetectFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		files = append(files, candidate{rel: filepath.ToSlash(rel), rank: designRank(m)})
		return nil
	})
	if err != nil {
		return ScanResult{}, err
	}

	base := strings.ToLower(filepath.Base(root))
	better := func(a, b candidate) bool {
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		an := strings.EqualFold(stem(a.rel), base)
		bn := strings.EqualFold(stem(b.rel), base)
		if an != bn {
			return an
		}
		ad, bd := strings.Count(a.rel, "/"), strings.Count(b.rel, "/")
		if ad != bd {
			return ad < bd
		}
		return a.rel < b.rel
	}

	master := -1
	for i, c := range files {
		if c.rank < 0 {
			continue
		}
		if master < 0 || better(c, files[master]) {
			master = i
		}
	}
	if master < 0 {
		return ScanResult{}, ErrNoMaster
	}

	res := ScanResult{MasterFile: files[master].rel, Assets: []string{}}
	for i, c := range files {
		if i != master {
			res.Assets = append(res.Assets, c.rel)
		}
	}
	sort.Strings(res.Assets)
	return res, nil
}

func stem(rel string) string {
	b := filepath.Base(rel)
	return strings.TrimSuffix(b, filepath.Ext(b))
}

// findPreview returns the first JPEG or PNG directly inside dir, by name.
func findPreview(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		m, err := mimetype.DetectFile(p)
		if err != nil {
			continue
		}
		if m.Is("image/jpeg") || m.Is("image/png") {
			return p
		}
	}
	return ""
}
