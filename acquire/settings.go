/*Package acquire runs a capture session: it starts the camera SDK, opens the
first camera, fixes exposure and gain, prepares the output folders and the
timestamp workbook, then captures single frames until told to stop.

Every persisted frame has exactly one workbook row with the same index, and
the index only advances when both were written.  A Session is driven by one
goroutine; Observers are called from that goroutine.
*/
package acquire

import (
	"time"

	"github.jpl.nasa.gov/bdube/migcap/imgrec"
)

// FeatureSet is a feature overwritten with a fixed value at startup
type FeatureSet struct {
	// Name is the SDK feature name
	Name string

	// Value is written to the feature
	Value float64
}

// Settings parameterize a Session
type Settings struct {
	// CameraID selects a camera, empty means the first one enumerated
	CameraID string

	// OpenRetry is how long to keep retrying to open the camera, zero means
	// a single attempt
	OpenRetry time.Duration

	// Timeout is how long one acquisition may wait for its frame
	Timeout time.Duration

	// Exposure is the exposure time feature, in us
	Exposure FeatureSet

	// Gain is the gain feature
	Gain FeatureSet

	// Inspect lists features that are only read and logged
	Inspect []string

	// ImageRoot is the parent folder of the per-run image folder
	ImageRoot string

	// TimestampRoot is the folder the timestamp workbooks are written to
	TimestampRoot string

	// Format is the frame file format
	Format imgrec.Format

	// MaxFrames ends the run after this many persisted frames, zero for no limit
	MaxFrames int

	// MaxFPS caps the acquisition attempt rate, zero for no cap
	MaxFPS float64
}

// DefaultSettings are the settings of the bench the MIG datasets are taken on
func DefaultSettings() Settings {
	return Settings{
		Timeout:  50 * time.Millisecond,
		Exposure: FeatureSet{Name: "ExposureTimeAbs", Value: 3000},
		Gain:     FeatureSet{Name: "Gain", Value: 0},
		Inspect: []string{
			"BlackLevel",
			"Gamma",
			"AcquisitionFrameRateAbs",
			"AcquisitionFrameRateLimit"},
		ImageRoot:     "../images",
		TimestampRoot: "../timestamps",
		Format:        imgrec.PNG}
}
