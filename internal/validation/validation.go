// Package validation checks paths and files supplied on the command line or
// named by script content before they are opened.
package validation

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/FocuswithJustin/JuniperScript/core/errors"
)

// Limits applied to untrusted input.
const (
	// MaxFileSize caps USX and TSV input (64 MB).
	MaxFileSize = 64 << 20
	// MaxFilenameLength is the maximum allowed filename length.
	MaxFilenameLength = 255
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// ValidatePath rejects empty or overlong paths and paths holding control
// characters.
func ValidatePath(path string) error {
	if path == "" {
		return errors.NewValidation("path", "path cannot be empty")
	}
	if len(path) > MaxPathLength {
		return errors.NewValidation("path", "path too long")
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return errors.NewValidation("path", "control character not allowed")
		}
	}
	return nil
}

// ValidateFilename checks a single path element.
func ValidateFilename(name string) error {
	switch {
	case name == "":
		return errors.NewValidation("filename", "filename cannot be empty")
	case len(name) > MaxFilenameLength:
		return errors.NewValidation("filename", "filename too long")
	case name == "." || name == "..":
		return errors.NewValidation("filename", "reserved name")
	case strings.ContainsAny(name, `/\`):
		return errors.NewValidation("filename", "path separator not allowed")
	case strings.HasPrefix(name, "-"):
		return errors.NewValidation("filename", "filename cannot start with hyphen")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return errors.NewValidation("filename", "control character not allowed")
		}
	}
	return nil
}

// SanitizePath joins name onto baseDir and fails if the result escapes it.
func SanitizePath(baseDir, name string) (string, error) {
	if err := ValidatePath(name); err != nil {
		return "", err
	}
	if filepath.IsAbs(name) {
		return "", errors.NewValidation("path", "absolute path not allowed")
	}
	full := filepath.Join(baseDir, name)
	rel, err := filepath.Rel(filepath.Clean(baseDir), full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.NewValidation("path", "path escapes "+baseDir)
	}
	return full, nil
}

// BookFile returns the path of the script for bookID inside dir. Book IDs
// come from file content, so they are checked like any other filename.
func BookFile(dir, bookID, ext string) (string, error) {
	name := bookID + ext
	if err := ValidateFilename(name); err != nil {
		return "", err
	}
	return SanitizePath(dir, name)
}

// CheckFileSize fails when path is not a regular file or exceeds max bytes.
func CheckFileSize(path string, max int64) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFound("file", path)
		}
		return errors.NewIO("stat", path, err)
	}
	if !info.Mode().IsRegular() {
		return errors.NewValidation("path", path+" is not a regular file")
	}
	if info.Size() > max {
		return errors.NewValidation("path", path+" exceeds the size limit")
	}
	return nil
}

// FileType is a content type recognised by its leading bytes.
type FileType string

// Types the CLI distinguishes.
const (
	FileTypeSQLite  FileType = "sqlite"
	FileTypeXZ      FileType = "xz"
	FileTypeXML     FileType = "xml"
	FileTypeText    FileType = "text"
	FileTypeUnknown FileType = "unknown"
)

var magicBytes = []struct {
	fileType FileType
	magic    []byte
}{
	{FileTypeSQLite, []byte("SQLite format 3\x00")},
	{FileTypeXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
}

// DetectFileType sniffs the first bytes of r.
func DetectFileType(r io.Reader) (FileType, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return FileTypeUnknown, errors.Wrap(err, "read header")
	}
	return detect(buf[:n]), nil
}

// DetectFile sniffs the file at path.
func DetectFile(path string) (FileType, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileTypeUnknown, errors.NewNotFound("file", path)
		}
		return FileTypeUnknown, errors.NewIO("open", path, err)
	}
	defer f.Close()
	return DetectFileType(f)
}

func detect(buf []byte) FileType {
	for _, m := range magicBytes {
		if bytes.HasPrefix(buf, m.magic) {
			return m.fileType
		}
	}
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(buf, []byte("\xef\xbb\xbf")), " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("<")) {
		return FileTypeXML
	}
	if isLikelyText(buf) {
		return FileTypeText
	}
	return FileTypeUnknown
}

// isLikelyText reports whether buf has no NUL bytes and few control characters.
func isLikelyText(buf []byte) bool {
	if len(buf) == 0 {
		return false
	}
	control := 0
	for _, b := range buf {
		if b == 0 {
			return false
		}
		if b < 32 && b != '\t' && b != '\n' && b != '\r' {
			control++
		}
	}
	return control*10 < len(buf)
}
