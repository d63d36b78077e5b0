package tslog_test

import (
	"path/filepath"
	"strconv"
	"testing"

	"github.com/xuri/excelize/v2"
	"github.jpl.nasa.gov/bdube/migcap/tslog"
)

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := f.GetRows(tslog.Sheet)
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestHeaderAndRowsInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Gain_0_Exposure_3000.xlsx")
	l, err := tslog.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	stamps := []uint64{1000, 34333333, 66666666}
	for i, ts := range stamps {
		err = l.Append(tslog.Row{Index: i, Timestamp: ts, File: "frame_" + strconv.Itoa(i) + ".png", Checksum: uint32(i)})
		if err != nil {
			t.Fatal(err)
		}
	}
	if l.Rows() != len(stamps) {
		t.Errorf("expected %d rows got %d", len(stamps), l.Rows())
	}
	if err = l.Close(); err != nil {
		t.Fatal(err)
	}

	rows := readRows(t, path)
	if len(rows) != len(stamps)+1 {
		t.Fatalf("expected %d rows including header, got %d", len(stamps)+1, len(rows))
	}
	if rows[0][0] != tslog.TimestampHeader {
		t.Errorf("expected header %q got %q", tslog.TimestampHeader, rows[0][0])
	}
	for i, ts := range stamps {
		got := rows[i+1][0]
		if got != strconv.FormatUint(ts, 10) {
			t.Errorf("row %d: expected %d got %s", i+1, ts, got)
		}
		if rows[i+1][1] != "frame_"+strconv.Itoa(i)+".png" {
			t.Errorf("row %d: unexpected file %s", i+1, rows[i+1][1])
		}
	}
}

func TestAppendOutOfOrder(t *testing.T) {
	l, err := tslog.Create(filepath.Join(t.TempDir(), "x.xlsx"))
	if err != nil {
		t.Fatal(err)
	}
	defer l.Discard()
	if err := l.Append(tslog.Row{Index: 1, Timestamp: 5}); err == nil {
		t.Error("expected an error appending frame 1 before frame 0")
	}
	if l.Rows() != 0 {
		t.Errorf("expected no rows, got %d", l.Rows())
	}
}

func TestAppendAfterClose(t *testing.T) {
	l, err := tslog.Create(filepath.Join(t.TempDir(), "x.xlsx"))
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if err := l.Append(tslog.Row{Index: 0}); err == nil {
		t.Error("expected an error appending to a closed log")
	}
	if err := l.Close(); err != nil {
		t.Errorf("expected a second Close to be a no-op, got %v", err)
	}
}

func TestEmptyLogHasHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	l, err := tslog.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	rows := readRows(t, path)
	if len(rows) != 1 {
		t.Errorf("expected only the header row, got %d rows", len(rows))
	}
}
