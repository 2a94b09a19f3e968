package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pingcap-incubator/tinystm/kv/transaction/commands"
	"github.com/pingcap-incubator/tinystm/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/unrolled/render"
	"github.com/urfave/negroni"
	"golang.org/x/time/rate"
)

const (
	apiPrefix = "/api/v1"
	// unmatchedPath labels requests no route matched, so arbitrary paths do not create new series.
	unmatchedPath = "unmatched"
)

var requestCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tinystm",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Counter of HTTP requests by route and status.",
	}, []string{"path", "status"})

func init() {
	prometheus.MustRegister(requestCounter)
}

// Server is the tinystm command server, it 'faces outwards', decoding requests from clients into commands and
// encoding their results.
type Server struct {
	env     *commands.Env
	rd      *render.Render
	limiter *rate.Limiter
}

// NewServer creates a server running commands against env. maxQPS bounds the accepted request rate, 0 means no
// limit.
func NewServer(env *commands.Env, maxQPS float64) *Server {
	s := &Server{
		env: env,
		rd:  render.New(render.Options{IndentJSON: true}),
	}
	if maxQPS > 0 {
		burst := int(maxQPS)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(maxQPS), burst)
	}
	return s
}

// Handler returns the HTTP handler serving the API and the metrics.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	api := router.PathPrefix(apiPrefix).Subrouter()
	txnHandler := newTxnHandler(s.env, s.rd)
	api.HandleFunc("/txns", txnHandler.Submit).Methods("POST")

	valueHandler := newValueHandler(s.env, s.rd)
	api.HandleFunc("/values/{addr}", valueHandler.Get).Methods("GET")
	api.HandleFunc("/values", valueHandler.Scan).Methods("GET")

	allocHandler := newAllocHandler(s.env, s.rd)
	api.HandleFunc("/reallocate", allocHandler.Reallocate).Methods("POST")

	statusHandler := newStatusHandler(s.env, s.rd)
	api.HandleFunc("/status", statusHandler.Get).Methods("GET")

	logHandler := newLogHandler(s.rd)
	api.HandleFunc("/log", logHandler.Handle).Methods("POST")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	recovery := negroni.NewRecovery()
	recovery.PrintStack = false
	n := negroni.New(countRequests(router), recovery, negroni.HandlerFunc(accessLog))
	if s.limiter != nil {
		n.Use(negroni.HandlerFunc(s.rateLimit))
	}
	n.UseHandler(router)
	return n
}

func (s *Server) rateLimit(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	if !s.limiter.Allow() {
		s.rd.JSON(w, http.StatusTooManyRequests, "too many requests")
		return
	}
	next(w, r)
}

func accessLog(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	start := time.Now()
	next(w, r)
	status := 0
	if nw, ok := w.(negroni.ResponseWriter); ok {
		status = nw.Status()
	}
	log.Debugf("%s %s status=%d elapsed=%v", r.Method, r.URL.Path, status, time.Since(start))
}

// countRequests counts every request by route template and status, including the ones no route matched, those
// rejected by the rate limit and those that panicked.
func countRequests(router *mux.Router) negroni.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		path := unmatchedPath
		var match mux.RouteMatch
		if router.Match(r, &match) && match.Route != nil {
			if tpl, err := match.Route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}
		next(w, r)
		status := http.StatusOK
		if nw, ok := w.(negroni.ResponseWriter); ok && nw.Status() != 0 {
			status = nw.Status()
		}
		requestCounter.WithLabelValues(path, strconv.Itoa(status)).Inc()
	}
}
