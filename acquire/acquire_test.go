package acquire_test

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.jpl.nasa.gov/bdube/migcap/acquire"
	"github.jpl.nasa.gov/bdube/migcap/camera"
	"github.jpl.nasa.gov/bdube/migcap/logger"
	"github.jpl.nasa.gov/bdube/migcap/sim"
	"github.jpl.nasa.gov/bdube/migcap/tslog"
)

func settings(t *testing.T) acquire.Settings {
	t.Helper()
	root := t.TempDir()
	s := acquire.DefaultSettings()
	s.ImageRoot = filepath.Join(root, "images")
	s.TimestampRoot = filepath.Join(root, "timestamps")
	return s
}

func simulator() *sim.System {
	sys := sim.New(8, 4)
	sys.Period = time.Millisecond
	return sys
}

// keys replays key codes from WaitKey, then -1
type keys struct {
	codes  []int
	shown  int
	closed bool
}

func (k *keys) Show(*image.Gray) error { k.shown++; return nil }
func (k *keys) Close() error          { k.closed = true; return nil }
func (k *keys) WaitKey(int) int {
	if len(k.codes) == 0 {
		return -1
	}
	c := k.codes[0]
	k.codes = k.codes[1:]
	return c
}

type tally struct {
	persisted []acquire.Record
	failed    map[string]int
}

func (t *tally) Persisted(r acquire.Record) { t.persisted = append(t.persisted, r) }
func (t *tally) Failed(stage string, err error) {
	if t.failed == nil {
		t.failed = map[string]int{}
	}
	t.failed[stage]++
}

func workbook(t *testing.T, path string) [][]string {
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

func run(t *testing.T, sys *sim.System, s acquire.Settings, disp acquire.Display, obs ...acquire.Observer) (*acquire.Session, int) {
	t.Helper()
	ss, err := acquire.Open(sys, s, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	ss.Observers = obs
	n := ss.Run(context.Background(), disp)
	if err := ss.Close(); err != nil {
		t.Fatal(err)
	}
	return ss, n
}

func TestRunNamesOutputAfterGainAndExposure(t *testing.T) {
	s := settings(t)
	s.MaxFrames = 3
	ss, n := run(t, simulator(), s, nil)
	if n != 3 {
		t.Fatalf("expected 3 frames got %d", n)
	}
	if ss.Folder != "Gain_0_Exposure_3000" {
		t.Errorf("expected Gain_0_Exposure_3000 got %s", ss.Folder)
	}
	for i := 0; i < n; i++ {
		fn := filepath.Join(s.ImageRoot, "Gain_0_Exposure_3000", fmt.Sprintf("frame_%d.png", i))
		if _, err := os.Stat(fn); err != nil {
			t.Errorf("frame %d: %v", i, err)
		}
	}
	rows := workbook(t, filepath.Join(s.TimestampRoot, "Gain_0_Exposure_3000.xlsx"))
	if rows[0][0] != "Timestamp (ns)" {
		t.Errorf("expected header Timestamp (ns) got %q", rows[0][0])
	}
	if len(rows) != n+1 {
		t.Errorf("expected %d rows got %d", n+1, len(rows))
	}
}

func TestNoCameraCreatesNothing(t *testing.T) {
	s := settings(t)
	sys := simulator()
	sys.NCameras = 0
	_, err := acquire.Open(sys, s, logger.Discard())
	if !errors.Is(err, camera.ErrNoCamera) {
		t.Fatalf("expected ErrNoCamera got %v", err)
	}
	if _, err := os.Stat(s.ImageRoot); !os.IsNotExist(err) {
		t.Error("expected no image folder")
	}
	if _, err := os.Stat(s.TimestampRoot); !os.IsNotExist(err) {
		t.Error("expected no timestamp folder")
	}
	if sys.Started() || sys.Shutdowns() != 1 {
		t.Errorf("expected the API to be shut down once, started=%v shutdowns=%d", sys.Started(), sys.Shutdowns())
	}
}

func TestStartupFailure(t *testing.T) {
	sys := simulator()
	sys.StartupErr = errors.New("transport layer not found")
	if _, err := acquire.Open(sys, settings(t), logger.Discard()); err == nil {
		t.Fatal("expected an error")
	}
	if sys.Shutdowns() != 0 {
		t.Error("expected no shutdown of an API that never started")
	}
}

func TestOpenFailureShutsDown(t *testing.T) {
	sys := simulator()
	sys.OpenErr = errors.New("access denied")
	if _, err := acquire.Open(sys, settings(t), logger.Discard()); err == nil {
		t.Fatal("expected an error")
	}
	if sys.Started() {
		t.Error("expected the API to be shut down")
	}
}

func TestStreamFailureClosesCamera(t *testing.T) {
	sys := simulator()
	sys.StreamErr = errors.New("no stream")
	if _, err := acquire.Open(sys, settings(t), logger.Discard()); err == nil {
		t.Fatal("expected an error")
	}
	cams := sys.Opened()
	if len(cams) != 1 || !cams[0].Closed() {
		t.Error("expected the camera to be closed")
	}
	if sys.Started() {
		t.Error("expected the API to be shut down")
	}
}

// flaky fails the first n opens
type flaky struct {
	*sim.System
	n int
}

func (f *flaky) Open(id string) (camera.Device, error) {
	if f.n > 0 {
		f.n--
		return nil, errors.New("camera busy")
	}
	return f.System.Open(id)
}

func TestOpenRetry(t *testing.T) {
	s := settings(t)
	s.OpenRetry = 5 * time.Second
	s.MaxFrames = 1
	sys := &flaky{System: simulator(), n: 2}
	ss, err := acquire.Open(sys, s, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	defer ss.Close()
	if sys.n != 0 {
		t.Errorf("expected every failing attempt to be used, %d left", sys.n)
	}
}

func TestTimeoutDoesNotAdvanceIndex(t *testing.T) {
	s := settings(t)
	s.MaxFrames = 3
	sys := simulator()
	sys.Faults[3] = sim.Fault{Acquire: fmt.Errorf("frame wait: %w", camera.ErrTimeout)}
	obs := &tally{}
	ss, n := run(t, sys, s, nil, obs)
	if n != 3 {
		t.Fatalf("expected 3 frames got %d", n)
	}
	if obs.failed[acquire.StageAcquire] != 1 {
		t.Errorf("expected one failed acquisition, got %v", obs.failed)
	}
	// attempts 1, 2 and 4 persisted; the device clock ran through attempt 3
	want := []uint64{1e6, 2e6, 4e6}
	rows := workbook(t, ss.WorkbookPath())
	for i, ts := range want {
		if rows[i+1][0] != strconv.FormatUint(ts, 10) {
			t.Errorf("row %d: expected %d got %s", i+1, ts, rows[i+1][0])
		}
		if obs.persisted[i].Index != i {
			t.Errorf("expected record %d to have index %d, got %d", i, i, obs.persisted[i].Index)
		}
	}
	if _, err := os.Stat(filepath.Join(ss.ImageFolder(), "frame_3.png")); !os.IsNotExist(err) {
		t.Error("expected no frame_3.png")
	}
}

func TestBadFramesAreSkipped(t *testing.T) {
	s := settings(t)
	s.MaxFrames = 2
	sys := simulator()
	sys.Faults[1] = sim.Fault{Image: errors.New("incomplete")}
	sys.Faults[2] = sim.Fault{Timestamp: errors.New("no chunk")}
	sys.Faults[3] = sim.Fault{Short: true}
	obs := &tally{}
	ss, n := run(t, sys, s, nil, obs)
	if n != 2 {
		t.Fatalf("expected 2 frames got %d", n)
	}
	if obs.failed[acquire.StageExtract] != 3 {
		t.Errorf("expected 3 dropped frames, got %v", obs.failed)
	}
	if got := len(workbook(t, ss.WorkbookPath())); got != 3 {
		t.Errorf("expected header and 2 rows, got %d rows", got)
	}
	entries, err := os.ReadDir(ss.ImageFolder())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 frame files got %d", len(entries))
	}
}

func TestEnterStopsAndClosesDisplay(t *testing.T) {
	s := settings(t)
	disp := &keys{codes: []int{-1, 'a', acquire.EnterKey, -1}}
	sys := simulator()
	_, n := run(t, sys, s, disp)
	if n != 3 {
		t.Errorf("expected Enter on the third frame to stop, got %d frames", n)
	}
	if disp.shown != 3 {
		t.Errorf("expected 3 frames shown got %d", disp.shown)
	}
	if !disp.closed {
		t.Error("expected the display to be closed")
	}
	if !sys.Opened()[0].Closed() || sys.Started() {
		t.Error("expected the camera closed and the API shut down")
	}
}

func TestCancelStops(t *testing.T) {
	ss, err := acquire.Open(simulator(), settings(t), logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	defer ss.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if n := ss.Run(ctx, nil); n != 0 {
		t.Errorf("expected no frames after cancel, got %d", n)
	}
}

func TestMaxFPS(t *testing.T) {
	s := settings(t)
	s.MaxFPS = 100
	s.MaxFrames = 5
	start := time.Now()
	run(t, simulator(), s, nil)
	if el := time.Since(start); el < 35*time.Millisecond {
		t.Errorf("expected 5 frames at 100 fps to take at least 40ms, took %v", el)
	}
}

func TestRejectedWriteKeepsRequestedName(t *testing.T) {
	s := settings(t)
	s.MaxFrames = 1
	sim.ReadOnly["Gain"] = true
	defer delete(sim.ReadOnly, "Gain")
	ss, _ := run(t, simulator(), s, nil)
	if ss.Folder != "Gain_0_Exposure_3000" {
		t.Errorf("expected Gain_0_Exposure_3000 got %s", ss.Folder)
	}
	if ss.Features.Gain != 0 {
		t.Errorf("expected the requested gain 0, got %v", ss.Features.Gain)
	}
	// the camera still reports the value it kept
	if v := ss.Features.Values["Gain"]; v != 4 {
		t.Errorf("expected the read gain 4 in Values, got %v", v)
	}
}

func TestMissingFeaturesDoNotStopTheRun(t *testing.T) {
	s := settings(t)
	s.MaxFrames = 1
	sys := simulator()
	sys.Missing = []string{"Gain", "Gamma"}
	ss, n := run(t, sys, s, nil)
	if n != 1 {
		t.Errorf("expected 1 frame got %d", n)
	}
	if ss.Folder != "Gain_0_Exposure_3000" {
		t.Errorf("expected the requested gain to name the run, got %s", ss.Folder)
	}
	if _, ok := ss.Features.Values["Gamma"]; ok {
		t.Error("expected no value for a missing feature")
	}
	if v := ss.Features.Values["BlackLevel"]; v != 4 {
		t.Errorf("expected BlackLevel 4 got %v", v)
	}
}

func TestSecondRunOverwrites(t *testing.T) {
	s := settings(t)
	s.MaxFrames = 4
	run(t, simulator(), s, nil)
	s.MaxFrames = 2
	ss, _ := run(t, simulator(), s, nil)
	if got := len(workbook(t, ss.WorkbookPath())); got != 3 {
		t.Errorf("expected the workbook to be replaced, got %d rows", got)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	ss, err := acquire.Open(simulator(), settings(t), logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if err = ss.Close(); err != nil {
		t.Fatal(err)
	}
	if err = ss.Close(); err != nil {
		t.Errorf("expected a second Close to be a no-op, got %v", err)
	}
}

// blocker turns the next frame's path into a folder so the write fails once
type blocker struct {
	folder  string
	blocked string
	tally
}

func (b *blocker) Persisted(r acquire.Record) {
	b.tally.Persisted(r)
	if r.Index == 0 {
		b.blocked = filepath.Join(b.folder, "frame_1.png")
		os.Mkdir(b.blocked, 0777)
	}
}

func (b *blocker) Failed(stage string, err error) {
	b.tally.Failed(stage, err)
	if stage == acquire.StageWrite {
		os.Remove(b.blocked)
	}
}

func TestWriteFailureDoesNotAdvanceIndex(t *testing.T) {
	s := settings(t)
	s.MaxFrames = 3
	ss, err := acquire.Open(simulator(), s, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	obs := &blocker{folder: ss.ImageFolder()}
	ss.Observers = []acquire.Observer{obs}
	n := ss.Run(context.Background(), nil)
	if err := ss.Close(); err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("expected 3 frames got %d", n)
	}
	if obs.failed[acquire.StageWrite] != 1 {
		t.Errorf("expected one failed write, got %v", obs.failed)
	}
	for i, r := range obs.persisted {
		if r.Index != i {
			t.Errorf("expected record %d to have index %d, got %d", i, i, r.Index)
		}
	}
	// attempt 2 could not be written, so frame 1 is attempt 3
	rows := workbook(t, ss.WorkbookPath())
	if len(rows) != n+1 {
		t.Fatalf("expected %d rows got %d", n+1, len(rows))
	}
	if rows[2][0] != "3000000" {
		t.Errorf("expected frame 1 at 3000000 ns, got %s", rows[2][0])
	}
	entries, err := os.ReadDir(ss.ImageFolder())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != n {
		t.Errorf("expected %d frame files got %d", n, len(entries))
	}
}

func TestExtractReportsEveryAccessor(t *testing.T) {
	s := settings(t)
	s.MaxFrames = 1
	errImage := errors.New("incomplete")
	errStamp := errors.New("no chunk")
	sys := simulator()
	sys.Faults[1] = sim.Fault{Image: errImage, Timestamp: errStamp}
	obs := &errs{}
	run(t, sys, s, nil, obs)
	if len(obs.errs) != 1 {
		t.Fatalf("expected one dropped frame, got %d", len(obs.errs))
	}
	if !errors.Is(obs.errs[0], errImage) || !errors.Is(obs.errs[0], errStamp) {
		t.Errorf("expected both accessor errors, got %v", obs.errs[0])
	}
}

// errs keeps every error Failed is called with
type errs struct {
	errs []error
}

func (e *errs) Persisted(acquire.Record)        {}
func (e *errs) Failed(stage string, err error) { e.errs = append(e.errs, err) }
