/*Package monitor serves the state of a running acquisition over HTTP.

Routes:

	GET /status             run, camera and counters as JSON
	GET /frame.png          the last persisted frame, full size
	GET /frame              the last frame file as written to disk
	GET /preview.png?width= the last frame resized to width pixels (default 320)
	GET /metrics            prometheus metrics
	GET /endpoints          the list of routes

The monitor is an acquire.Observer; it is read-only and never slows the
capture loop beyond a mutex.
*/
package monitor

import (
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/disintegration/gift"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.jpl.nasa.gov/bdube/migcap/acquire"
	"github.jpl.nasa.gov/bdube/migcap/camera"
	"github.jpl.nasa.gov/bdube/migcap/server"
)

// DefaultPreviewWidth is the preview width when none is requested
const DefaultPreviewWidth = 320

// Status is the JSON body of GET /status
type Status struct {
	Camera        camera.Info        `json:"camera"`
	Folder        string             `json:"folder"`
	Workbook      string             `json:"workbook"`
	Features      map[string]float64 `json:"features"`
	Started       time.Time          `json:"started"`
	Frames        int                `json:"frames"`
	Dropped       map[string]int     `json:"dropped"`
	LastIndex     int                `json:"lastIndex"`
	LastTimestamp uint64             `json:"lastTimestamp"`
	LastFile      string             `json:"lastFile"`
	LastChecksum  uint32             `json:"lastChecksum"`
}

// Monitor tracks a session and serves it
type Monitor struct {
	mu     sync.RWMutex
	status Status
	last   *image.Gray

	reg     *prometheus.Registry
	frames  prometheus.Counter
	dropped *prometheus.CounterVec
	stamp   prometheus.Gauge

	log logrus.FieldLogger
}

// New returns a Monitor for ss.  It does not register itself as an observer.
func New(ss *acquire.Session, log logrus.FieldLogger) *Monitor {
	m := &Monitor{
		status: Status{
			Camera:    ss.Camera(),
			Folder:    ss.ImageFolder(),
			Workbook:  ss.WorkbookPath(),
			Features:  ss.Features.Values,
			Started:   time.Now(),
			Dropped:   map[string]int{},
			LastIndex: -1},
		reg: prometheus.NewRegistry(),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "migcap",
			Name:      "frames_persisted_total",
			Help:      "Frames written to disk and logged to the workbook"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "migcap",
			Name:      "frames_dropped_total",
			Help:      "Acquisition attempts that did not produce a persisted frame"},
			[]string{"stage"}),
		stamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "migcap",
			Name:      "last_frame_timestamp_ns",
			Help:      "Device timestamp of the last persisted frame"}),
		log: log}
	m.reg.MustRegister(m.frames, m.dropped, m.stamp)
	return m
}

// Persisted satisfies acquire.Observer
func (m *Monitor) Persisted(r acquire.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.Frames++
	m.status.LastIndex = r.Index
	m.status.LastTimestamp = r.Timestamp
	m.status.LastFile = r.Path
	m.status.LastChecksum = r.Checksum
	m.last = r.Image
	m.frames.Inc()
	m.stamp.Set(float64(r.Timestamp))
}

// Failed satisfies acquire.Observer
func (m *Monitor) Failed(stage string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.Dropped[stage]++
	m.dropped.WithLabelValues(stage).Inc()
}

// Status returns a copy of the current status
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.status
	s.Dropped = make(map[string]int, len(m.status.Dropped))
	for k, v := range m.status.Dropped {
		s.Dropped[k] = v
	}
	return s
}

func (m *Monitor) lastFrame() (*image.Gray, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last, m.status.LastFile
}

// RT returns the route table of the monitor
func (m *Monitor) RT() server.RouteTable {
	return server.RouteTable{
		{Method: http.MethodGet, Path: "/status"}:      m.httpStatus,
		{Method: http.MethodGet, Path: "/frame.png"}:   m.httpFrame,
		{Method: http.MethodGet, Path: "/frame"}:       m.httpFile,
		{Method: http.MethodGet, Path: "/preview.png"}: m.httpPreview,
		{Method: http.MethodGet, Path: "/metrics"}:     promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}).ServeHTTP,
	}
}

// Handler returns a router serving every route
func (m *Monitor) Handler() http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.Recoverer)
	m.RT().Bind(root)
	return root
}

// ListenAndServe serves the monitor on addr until ctx is done
func (m *Monitor) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: m.Handler()}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(sctx)
	}()
	m.log.WithField("addr", addr).Info("monitor listening")
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (m *Monitor) httpStatus(w http.ResponseWriter, r *http.Request) {
	server.EncodeAndRespond(w, m.Status())
}

func (m *Monitor) httpFrame(w http.ResponseWriter, r *http.Request) {
	img, _ := m.lastFrame()
	if img == nil {
		http.Error(w, "no frame captured yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	png.Encode(w, img)
}

func (m *Monitor) httpFile(w http.ResponseWriter, r *http.Request) {
	_, fn := m.lastFrame()
	if fn == "" {
		http.Error(w, "no frame captured yet", http.StatusNotFound)
		return
	}
	server.ReplyWithFile(w, r, fn)
}

func (m *Monitor) httpPreview(w http.ResponseWriter, r *http.Request) {
	width := DefaultPreviewWidth
	if s := r.URL.Query().Get("width"); s != "" {
		var err error
		width, err = strconv.Atoi(s)
		if err != nil || width <= 0 {
			http.Error(w, "width must be a positive integer", http.StatusBadRequest)
			return
		}
	}
	img, _ := m.lastFrame()
	if img == nil {
		http.Error(w, "no frame captured yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	png.Encode(w, Preview(img, width))
}

// Preview resizes img to width pixels, preserving the aspect ratio
func Preview(img *image.Gray, width int) *image.Gray {
	g := gift.New(gift.Resize(width, 0, gift.LinearResampling))
	dst := image.NewGray(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}
