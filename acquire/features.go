package acquire

import (
	"github.com/sirupsen/logrus"
	"github.jpl.nasa.gov/bdube/migcap/camera"
)

// Features is what was read from and written to the camera at startup
type Features struct {
	// Exposure is the exposure time the run is named after, in us
	Exposure float64

	// Gain is the gain the run is named after
	Gain float64

	// Values holds every feature that could be read, after any write
	Values map[string]float64
}

// Configure reads and logs the exposure and gain, overwrites them with the
// fixed values of s, then reads and logs the inspected features.  Failures
// are logged and never stop the run; a feature that cannot be accessed only
// invalidates that measurement.
//
// The returned exposure and gain are always the requested values, whether or
// not the write succeeded, so a run is named after what it was configured
// with.  Values holds what the camera reported instead: the written value, or
// the value read beforehand when the write failed.
func Configure(dev camera.Device, s Settings, log logrus.FieldLogger) Features {
	f := Features{Values: make(map[string]float64)}
	f.Exposure = apply(dev, s.Exposure, "us", f.Values, log)
	f.Gain = apply(dev, s.Gain, "", f.Values, log)
	for _, name := range s.Inspect {
		v, err := dev.GetFloat(name)
		if err != nil {
			log.WithError(err).WithField("feature", name).Error("could not read feature")
			continue
		}
		f.Values[name] = v
		log.WithFields(logrus.Fields{"feature": name, "value": v}).Info("feature")
	}
	return f
}

func apply(dev camera.Device, fs FeatureSet, unit string, values map[string]float64, log logrus.FieldLogger) float64 {
	flog := log.WithField("feature", fs.Name)
	if unit != "" {
		flog = flog.WithField("unit", unit)
	}

	before, rerr := dev.GetFloat(fs.Name)
	if rerr != nil {
		flog.WithError(rerr).Error("could not read feature")
	} else {
		flog.WithField("before", before).Info("feature")
	}

	err := dev.SetFloat(fs.Name, fs.Value)
	switch {
	case err == nil:
		flog.WithField("after", fs.Value).Info("feature")
		values[fs.Name] = fs.Value
	case rerr == nil:
		flog.WithError(err).WithField("requested", fs.Value).Error("could not write feature")
		values[fs.Name] = before
	default:
		flog.WithError(err).WithField("requested", fs.Value).Error("could not write feature")
	}
	return fs.Value
}
