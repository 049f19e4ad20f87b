package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Capeo/SupplAI/internal/middleware"
	"github.com/Capeo/SupplAI/internal/models"
	"github.com/Capeo/SupplAI/internal/services"
	"github.com/Capeo/SupplAI/internal/storage"
	"github.com/Capeo/SupplAI/internal/utils"
)

const (
	fieldCompany   = "company"
	fieldTender    = "tender"
	fieldTenderKey = "tenderKey"
	fieldResponse  = "response"

	// formOverhead is the allowance for multipart boundaries and text fields.
	formOverhead = 1 << 20
	maxMemory    = 32 << 20
)

// Analyzer runs one qualification analysis.
type Analyzer interface {
	Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error)
}

type AnalysisHandler struct {
	service     Analyzer
	storage     storage.Storage
	maxFileSize int64
	timeout     time.Duration
	logger      *utils.Logger
}

// NewAnalysisHandler wires the handler. A nil store disables tenderKey.
func NewAnalysisHandler(service Analyzer, store storage.Storage, maxFileSize int64, timeout time.Duration, logger *utils.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		service:     service,
		storage:     store,
		maxFileSize: maxFileSize,
		timeout:     timeout,
		logger:      logger,
	}
}

// CreateAnalysis runs the pipeline and returns the result as JSON. A degraded
// result is still a 200; clients check success.
func (h *AnalysisHandler) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	result, ok := h.analyze(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// StreamAnalysis runs the pipeline and sends the result as a single
// server-sent event.
func (h *AnalysisHandler) StreamAnalysis(w http.ResponseWriter, r *http.Request) {
	result, ok := h.analyze(w, r)
	if !ok {
		return
	}

	body, err := result.JSON()
	if err != nil {
		h.respondError(w, utils.NewInternalError("Failed to encode analysis result"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if _, err := fmt.Fprintf(w, "data: %s\n\n", body); err != nil {
		h.logger.Warn("Failed to write event", zap.Error(err))
		return
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// analyze parses the request and runs the pipeline under the configured
// deadline. It writes the error response itself and reports false when the
// caller has nothing left to send.
func (h *AnalysisHandler) analyze(w http.ResponseWriter, r *http.Request) (*models.AnalysisResult, bool) {
	logger := h.logger.With(zap.String("request_id", middleware.GetRequestID(r.Context())))

	req, err := h.parseRequest(w, r)
	if err != nil {
		h.respondError(w, err)
		return nil, false
	}

	logger.Info("Analysis requested",
		zap.String("company", req.CompanyName),
		zap.String("tender", req.Tender.Filename),
		zap.Int("tender_size", len(req.Tender.Data)),
		zap.String("response", req.Response.Filename),
		zap.Int("response_size", len(req.Response.Data)),
	)

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result, err := h.service.Analyze(ctx, *req)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			h.respondError(w, utils.NewGatewayTimeoutError("Analysis did not complete in time"))
		case errors.Is(err, services.ErrCancelled):
			logger.Info("Client went away before analysis completed")
		default:
			h.respondError(w, err)
		}
		return nil, false
	}

	return result, true
}

func (h *AnalysisHandler) parseRequest(w http.ResponseWriter, r *http.Request) (*models.AnalysisRequest, error) {
	limit := 2*h.maxFileSize + formOverhead
	if r.ContentLength > limit {
		return nil, h.tooLarge()
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, h.tooLarge()
		}
		return nil, utils.NewBadRequestError("Invalid form data")
	}

	company := strings.TrimSpace(r.FormValue(fieldCompany))
	if company == "" {
		return nil, utils.NewBadRequestError("company is required")
	}

	tenderKey := strings.TrimSpace(r.FormValue(fieldTenderKey))
	tender, err := h.readFile(r, fieldTender)
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		return nil, err
	}

	switch {
	case tender != nil && tenderKey != "":
		return nil, utils.NewBadRequestError("provide either tender or tenderKey, not both")
	case tender == nil && tenderKey == "":
		return nil, utils.NewBadRequestError("tender document is required")
	case tender == nil:
		tender, err = h.fetchTender(r.Context(), tenderKey)
		if err != nil {
			return nil, err
		}
	}

	response, err := h.readFile(r, fieldResponse)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, utils.NewBadRequestError("response document is required")
	}
	if err != nil {
		return nil, err
	}

	return &models.AnalysisRequest{
		Tender:      *tender,
		Response:    *response,
		CompanyName: company,
	}, nil
}

// readFile reads one uploaded file. Empty files are passed through; the
// pipeline reports them.
func (h *AnalysisHandler) readFile(r *http.Request, field string) (*models.Document, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if header.Size > h.maxFileSize {
		return nil, h.tooLarge()
	}

	data, err := readLimited(file, h.maxFileSize)
	if err != nil {
		return nil, err
	}

	return &models.Document{
		Data:        data,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}, nil
}

func readLimited(file multipart.File, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, utils.NewInternalError("Failed to read file")
	}
	if int64(len(data)) > limit {
		return nil, utils.NewBadRequestError(fmt.Sprintf("File size exceeds %dMB limit", limit>>20))
	}
	return data, nil
}

func (h *AnalysisHandler) fetchTender(ctx context.Context, key string) (*models.Document, error) {
	if h.storage == nil {
		return nil, utils.NewBadRequestError("tenderKey is not supported: object storage is not configured")
	}

	doc, err := h.storage.Fetch(ctx, key, h.maxFileSize)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, utils.NewNotFoundError("tender document not found")
		}
		h.logger.Error("Failed to fetch tender", zap.String("key", key), zap.Error(err))
		return nil, &utils.AppError{StatusCode: http.StatusBadGateway, Message: "Failed to fetch tender document", Err: err}
	}
	return doc, nil
}

func (h *AnalysisHandler) tooLarge() error {
	return utils.NewBadRequestError(fmt.Sprintf("File size exceeds %dMB limit", h.maxFileSize>>20))
}

func (h *AnalysisHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

func (h *AnalysisHandler) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "Internal server error"

	if appErr, ok := utils.AsAppError(err); ok {
		status = appErr.StatusCode
		message = appErr.Message
	}

	h.logger.Warn("Request error", zap.Int("status", status), zap.String("error", message))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
