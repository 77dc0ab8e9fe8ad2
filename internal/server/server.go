// Package server exposes the inference engine over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"

	"github.com/pallav-m/surya-isolation/internal/imageio"
	"github.com/pallav-m/surya-isolation/internal/inference"
	"github.com/pallav-m/surya-isolation/internal/logger"
	"github.com/pallav-m/surya-isolation/pkg/models"
)

// maxMultipartMemory bounds the in-memory portion of an upload; larger
// parts spill to disk.
const maxMultipartMemory = 32 << 20

var allowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
	"image/tiff": true,
}

// Server routes HTTP requests to the inference engine.
type Server struct {
	engine    *inference.Engine
	handler   http.Handler
	maxImages int
	log       zerolog.Logger
}

// New builds the server around a started engine. maxImages caps the batch
// size of a single request.
func New(engine *inference.Engine, maxImages int) *Server {
	s := &Server{
		engine:    engine,
		maxImages: maxImages,
		log:       logger.WithComponent("http"),
	}

	router := mux.NewRouter()
	router.Handle("/run_inference", instrumentInferenceHandler(http.HandlerFunc(s.handleInference))).Methods(http.MethodPost)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", metricsHandler()).Methods(http.MethodGet)

	// Origins are open on purpose; the service runs behind the caller's
	// own ingress.
	s.handler = cors.AllowAll().Handler(router)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// handleInference accepts a multipart batch of images plus a task_type and
// returns one normalized result per image.
func (s *Server) handleInference(w http.ResponseWriter, r *http.Request) {
	requestID := ksuid.New().String()
	log := logger.WithRequestID(requestID)

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		log.Warn().Err(err).Msg("failed to parse multipart form")
		s.writeError(w, http.StatusBadRequest, "request must be multipart/form-data with image files")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	task := r.URL.Query().Get("task_type")
	if task == "" {
		task = r.FormValue("task_type")
	}

	files := r.MultipartForm.File["files"]
	if err := s.validateFiles(files); err != nil {
		log.Warn().Err(err).Int("files", len(files)).Msg("rejected upload")
		s.writeError(w, statusForValidation(err), err.Error())
		return
	}

	images, err := decodeFiles(files)
	if err != nil {
		log.Warn().Err(err).Msg("failed to decode uploaded image")
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.Info().
		Str("task", task).
		Int("images", len(images)).
		Msg("inference request accepted")

	results, err := s.engine.Run(r.Context(), task, images)
	if err != nil {
		if errors.Is(err, inference.ErrUnknownTask) {
			s.writeError(w, http.StatusBadRequest,
				fmt.Sprintf("Invalid task type. Must be one of: %s", strings.Join(s.engine.Tasks(), ", ")))
			return
		}
		log.Error().Err(err).Str("task", task).Msg("inference failed")
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("Processing error: %v", err))
		return
	}

	s.writeJSON(w, http.StatusOK, models.ProcessingResponse{
		Success:         true,
		ImagesProcessed: len(images),
		Results:         results,
		Message:         "Processing completed successfully",
	})
}

// handleHealth reports readiness. The engine is constructed before the
// server starts listening, so a reachable server implies loaded predictors.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:         "healthy",
		PipelineLoaded: s.engine != nil,
	})
}

func (s *Server) validateFiles(files []*multipart.FileHeader) error {
	if len(files) == 0 {
		return errValidation{status: http.StatusBadRequest, msg: "No images provided"}
	}
	if len(files) > s.maxImages {
		return errValidation{status: http.StatusBadRequest, msg: fmt.Sprintf("Maximum %d images allowed", s.maxImages)}
	}
	for _, file := range files {
		contentType := file.Header.Get("Content-Type")
		if !allowedContentTypes[contentType] {
			return errValidation{
				status: http.StatusUnsupportedMediaType,
				msg:    fmt.Sprintf("Unsupported file type: %s. Allowed: image/jpeg, image/jpg, image/png, image/webp, image/tiff", contentType),
			}
		}
	}
	return nil
}

func decodeFiles(files []*multipart.FileHeader) ([]image.Image, error) {
	images := make([]image.Image, 0, len(files))
	for _, file := range files {
		f, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("error opening image %s: %w", file.Filename, err)
		}
		img, err := imageio.Decode(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("error processing image %s: %w", file.Filename, err)
		}
		images = append(images, img)
	}
	return images, nil
}

type errValidation struct {
	status int
	msg    string
}

func (e errValidation) Error() string { return e.msg }

func statusForValidation(err error) int {
	var v errValidation
	if errors.As(err, &v) {
		return v.status
	}
	return http.StatusBadRequest
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error().Err(err).Msg("failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, models.ErrorResponse{
		Success:    false,
		Error:      msg,
		StatusCode: status,
	})
}
