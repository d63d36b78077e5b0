/*Package tslog records frame timestamps to an xlsx workbook.

The workbook has one worksheet.  Row 0 holds the headers, with
"Timestamp (ns)" in column 0; frame n is written to row n+1.  Rows are
streamed in order and the file is only complete once Close returns.
*/
package tslog

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	// Sheet is the worksheet the timestamps are written to
	Sheet = "Sheet1"

	// TimestampHeader is the header of column 0
	TimestampHeader = "Timestamp (ns)"
)

// Headers are the column headers, in column order
var Headers = []interface{}{TimestampHeader, "File", "CRC-32"}

// Row is one captured frame
type Row struct {
	// Index is the frame index, which also names the frame file
	Index int

	// Timestamp is the device timestamp in ns
	Timestamp uint64

	// File is the base name of the frame file
	File string

	// Checksum is the CRC-32 of the frame's pixel buffer
	Checksum uint32
}

// Log is an append-only timestamp workbook.  It is not thread safe.
type Log struct {
	path string
	f    *excelize.File
	sw   *excelize.StreamWriter
	rows int
}

// Create starts a new workbook at path, replacing any existing one, and
// writes the header row.  Nothing is on disk until Close.
func Create(path string) (*Log, error) {
	f := excelize.NewFile()
	sw, err := f.NewStreamWriter(Sheet)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err = sw.SetRow("A1", Headers); err != nil {
		f.Close()
		return nil, err
	}
	return &Log{path: path, f: f, sw: sw}, nil
}

// Path is where the workbook is saved
func (l *Log) Path() string {
	return l.path
}

// Rows is the number of data rows appended so far
func (l *Log) Rows() int {
	return l.rows
}

// Append writes r below the previous row.  r.Index must equal Rows() so the
// spreadsheet row always matches the frame index.
func (l *Log) Append(r Row) error {
	if l.sw == nil {
		return fmt.Errorf("timestamp log %s is closed", l.path)
	}
	if r.Index != l.rows {
		return fmt.Errorf("frame %d out of order, expected frame %d", r.Index, l.rows)
	}
	cell, err := excelize.CoordinatesToCellName(1, r.Index+2)
	if err != nil {
		return err
	}
	err = l.sw.SetRow(cell, []interface{}{r.Timestamp, r.File, r.Checksum})
	if err != nil {
		return err
	}
	l.rows++
	return nil
}

// Close flushes the rows and saves the workbook
func (l *Log) Close() error {
	if l.sw == nil {
		return nil
	}
	err := l.sw.Flush()
	l.sw = nil
	if err == nil {
		err = l.f.SaveAs(l.path)
	}
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Discard closes the workbook without saving it
func (l *Log) Discard() error {
	l.sw = nil
	return l.f.Close()
}
