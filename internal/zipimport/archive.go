package zipimport

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/text/unicode/norm"

	"glossvideo/internal/failure"
)

// zstdMethod is the zip compression method id assigned to Zstandard.
const zstdMethod uint16 = 93

// member is one file of a validated archive.
type member struct {
	file     *zip.File
	name     string
	language string
	stem     string
}

type archive struct {
	reader  *zip.ReadCloser
	members []member
}

func openArchive(archivePath string) (*archive, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, failure.Wrap(failure.ErrStructuralValidation, component, "open", "Archive is not a readable zip file", err)
	}
	reader.RegisterDecompressor(zstdMethod, newZstdReader)
	return &archive{reader: reader}, nil
}

func (a *archive) Close() error {
	return a.reader.Close()
}

// validate checks that every file sits directly in "{acronym}/{lang3}/" with
// lang3 among languages. All violations are collected into one error.
func (a *archive) validate(acronym string, languages map[string]bool) error {
	var problems []string
	for _, file := range a.reader.File {
		name := norm.NFC.String(file.Name)
		if file.FileInfo().IsDir() {
			if !validDirectory(name, acronym, languages) {
				problems = append(problems, fmt.Sprintf("%s: unexpected folder", name))
			}
			continue
		}
		segments := strings.Split(name, "/")
		switch {
		case path.IsAbs(name) || strings.Contains(name, `\`) || path.Clean(name) != name:
			problems = append(problems, fmt.Sprintf("%s: unsafe path", name))
		case segments[0] != acronym:
			problems = append(problems, fmt.Sprintf("%s: outside %s/", name, acronym))
		case len(segments) != 3:
			problems = append(problems, fmt.Sprintf("%s: not directly inside %s/{language}/", name, acronym))
		case !languages[segments[1]]:
			problems = append(problems, fmt.Sprintf("%s: %q is not a language of dataset %s", name, segments[1], acronym))
		default:
			stem := strings.TrimSpace(strings.TrimSuffix(segments[2], path.Ext(segments[2])))
			if stem == "" {
				problems = append(problems, fmt.Sprintf("%s: empty annotation", name))
				continue
			}
			a.members = append(a.members, member{file: file, name: name, language: segments[1], stem: stem})
		}
	}
	if len(problems) > 0 {
		a.members = nil
		return failure.Wrap(failure.ErrStructuralValidation, component, "validate",
			fmt.Sprintf("%d invalid entries: %s", len(problems), strings.Join(problems, "; ")), nil)
	}
	if len(a.members) == 0 {
		return failure.Wrap(failure.ErrStructuralValidation, component, "validate", "Archive contains no videos", nil)
	}
	return nil
}

func validDirectory(name, acronym string, languages map[string]bool) bool {
	segments := strings.Split(strings.TrimSuffix(name, "/"), "/")
	switch len(segments) {
	case 1:
		return segments[0] == acronym
	case 2:
		return segments[0] == acronym && languages[segments[1]]
	default:
		return false
	}
}

// extract writes every member below dir and returns the extracted paths in
// member order.
func (a *archive) extract(dir string) ([]string, error) {
	paths := make([]string, len(a.members))
	for i, m := range a.members {
		target := filepath.Join(dir, fmt.Sprintf("%04d", i), filepath.Base(m.name))
		if err := extractFile(m.file, target); err != nil {
			return nil, failure.Wrap(failure.ErrPhysicalIO, component, "extract", fmt.Sprintf("Failed to extract %s", m.name), err)
		}
		paths[i] = target
	}
	return paths, nil
}

func extractFile(file *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}

func newZstdReader(r io.Reader) io.ReadCloser {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return errReadCloser{err: err}
	}
	return decoder.IOReadCloser()
}

type errReadCloser struct{ err error }

func (e errReadCloser) Read([]byte) (int, error) { return 0, e.err }

func (e errReadCloser) Close() error { return nil }
