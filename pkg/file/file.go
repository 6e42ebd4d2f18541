package file

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joelmire/DESAttack/pkg/utils"
)

const (
	NewLine = byte('\n')
	Comment = "#"
)

// FileReader reads hex values from a file, one per line.
type FileReader struct {
	file     io.Closer
	filename string
	reader   *bufio.Reader
	line     int
}

func NewFileReader(filename string) (*FileReader, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, utils.Error(fmt.Sprintf("failed to read file '%s'",
			filename), err)
	}

	return &FileReader{
		file:     f,
		filename: filename,
		reader:   bufio.NewReader(f),
	}, nil
}

// NewReader reads from r rather than a named file. name is only used in
// error messages.
func NewReader(name string, r io.Reader) *FileReader {
	return &FileReader{
		filename: name,
		reader:   bufio.NewReader(r),
	}
}

// Line is the number of the last line read.
func (f *FileReader) Line() int {
	return f.line
}

// ReadLine returns the next line without its trailing newline. io.EOF is
// returned, wrapped, once the input is exhausted.
func (f *FileReader) ReadLine() (string, error) {
	b, err := f.reader.ReadString(NewLine)
	if err == io.EOF && len(b) > 0 {
		// Last line without a newline.
		err = nil
	}
	if err != nil {
		return "", utils.Error(fmt.Sprintf("failed to read line from "+
			"'%s'", f.filename), err)
	}

	f.line++

	return strings.TrimRight(b, "\r\n"), nil
}

// ReadValue returns the next line that is not blank or a comment, with
// whitespace and any trailing comment removed.
func (f *FileReader) ReadValue() (string, error) {
	for {
		l, err := f.ReadLine()
		if err != nil {
			return "", err
		}

		if i := strings.Index(l, Comment); i >= 0 {
			l = l[:i]
		}

		if l = strings.TrimSpace(l); l != "" {
			return l, nil
		}
	}
}

// ReadUint64 reads the next value as hex.
func (f *FileReader) ReadUint64() (uint64, error) {
	v, err := f.ReadValue()
	if err != nil {
		return 0, err
	}

	z, err := utils.HexToUint64(v)
	if err != nil {
		return 0, utils.Error(fmt.Sprintf("%s:%d", f.filename, f.line),
			err)
	}

	return z, nil
}

func (f *FileReader) CloseFile() error {
	if f.file == nil {
		return nil
	}

	if err := f.file.Close(); err != nil {
		return utils.Error(fmt.Sprintf("failed to close file '%s'",
			f.filename), err)
	}

	return nil
}
