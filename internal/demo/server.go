package demo

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/sidewalk-ota/otadash/internal/ota"
)

// Server exposes a Backend over the OTA REST API. Every route except /login
// requires a bearer token issued by /login.
type Server struct {
	backend *Backend
	logger  zerolog.Logger
	handler http.Handler

	mu     sync.RWMutex
	tokens map[string]string
}

// NewHandler returns the HTTP server for backend.
func NewHandler(backend *Backend, logger zerolog.Logger) *Server {
	s := &Server{
		backend: backend,
		logger:  logger.With().Str("component", "mock-server").Logger(),
		tokens:  make(map[string]string),
	}

	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/login", s.login).Methods(http.MethodPost)

	api := router.NewRoute().Subrouter()
	api.Use(s.requireToken)
	api.HandleFunc("/ota/deviceTransfers", s.listDevices).Methods(http.MethodGet)
	api.HandleFunc("/ota/deviceTransfers/{id}", s.getDevice).Methods(http.MethodGet)
	api.HandleFunc("/ota/transferTasks", s.listTasks).Methods(http.MethodGet)
	api.HandleFunc("/otaGetS3", s.listFiles).Methods(http.MethodGet)
	api.HandleFunc("/otaStart", s.start).Methods(http.MethodPost)
	api.HandleFunc("/otaCancel", s.cancel).Methods(http.MethodPost)
	api.HandleFunc("/otaUpload", s.upload).Methods(http.MethodPost)
	api.HandleFunc("/otaSetCurrentFirmware", s.setFirmware).Methods(http.MethodPost)
	api.HandleFunc("/devices", s.listSensorDevices).Methods(http.MethodGet)
	api.HandleFunc("/measurements/{id}", s.measurements).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	})
	s.handler = c.Handler(s.accessLog(router))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// RevokeAll invalidates every issued token.
func (s *Server) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]string)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		s.mu.RLock()
		_, ok := s.tokens[token]
		s.mu.RUnlock()
		if token == "" || !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := s.backend.Login(r.Context(), body.Username, body.Password); err != nil {
		s.logger.Info().Str("username", body.Username).Msg("login rejected")
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = body.Username
	s.mu.Unlock()
	s.logger.Info().Str("username", body.Username).Msg("login")
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) listDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.backend.ListDevices(r.Context())
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"wirelessDevices": devices})
}

func (s *Server) getDevice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if r.URL.Query().Get("view") == "status" {
		status, err := s.backend.FetchDeviceStatus(r.Context(), id)
		if err != nil {
			writeBackendError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}
	device, err := s.backend.FetchDevice(r.Context(), id)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.backend.ListTasks(r.Context())
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transferTasks": tasks})
}

func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.backend.ListFiles(r.Context())
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) start(w http.ResponseWriter, r *http.Request) {
	var req ota.StartTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	task, err := s.backend.StartTransfer(r.Context(), req)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	s.logger.Info().Str("task_id", task.TaskID).Strs("device_ids", task.DeviceIDs).Msg("transfer started")
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TaskIDs []string `json:"taskIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := s.backend.CancelTasks(r.Context(), body.TaskIDs); err != nil {
		writeBackendError(w, err)
		return
	}
	s.logger.Info().Strs("task_ids", body.TaskIDs).Msg("tasks cancelled")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FileName string `json:"filename"`
		File     string `json:"file"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	content, err := base64.StdEncoding.DecodeString(body.File)
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is not base64")
		return
	}
	if err := s.backend.UploadFile(r.Context(), ota.UploadRequest{FileName: body.FileName, Content: content}); err != nil {
		writeBackendError(w, err)
		return
	}
	s.logger.Info().Str("file", body.FileName).Int("bytes", len(content)).Msg("file uploaded")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setFirmware(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FileName string `json:"filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := s.backend.SetCurrentFirmware(r.Context(), body.FileName); err != nil {
		writeBackendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listSensorDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.backend.ListSensorDevices(r.Context())
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) measurements(w http.ResponseWriter, r *http.Request) {
	readings, err := s.backend.FetchMeasurements(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, readings)
}

func writeBackendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"message": message})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
