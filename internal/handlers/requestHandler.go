package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/immihelp/formapi/internal/api"
	"github.com/immihelp/formapi/internal/config"
	"github.com/immihelp/formapi/internal/data/store"
	"github.com/immihelp/formapi/internal/docstore"
	"github.com/immihelp/formapi/internal/formcfg"
	"github.com/immihelp/formapi/internal/formfill"
	"github.com/immihelp/formapi/internal/metrics"
	"github.com/immihelp/formapi/internal/rag"
	"github.com/immihelp/formapi/pkg/logging"
)

// Handlers holds every collaborator the HTTP surface needs. All of them
// arrive through the constructor so tests can swap in fakes.
type Handlers struct {
	chat      rag.Service
	history   store.ChatStore
	documents *docstore.Store
	forms     *formcfg.Loader
	filler    formfill.Service
	logger    *logging.Logger
}

func NewHandlers(chat rag.Service, history store.ChatStore, documents *docstore.Store, forms *formcfg.Loader, filler formfill.Service) *Handlers {
	return &Handlers{
		chat:      chat,
		history:   history,
		documents: documents,
		forms:     forms,
		filler:    filler,
		logger:    logging.NewLogger("Handlers"),
	}
}

// HealthHandler godoc
// @Summary      Liveness probe
// @Tags         Operations
// @Success      200 "Service is up"
// @Router       /healthz [get]
func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// ChatHandler godoc
// @Summary      Ask an immigration question
// @Description  Answers from the knowledge base. The literal command "fill form <id>" is recognized and returned as an action instead of being sent to the model.
// @Tags         Chat
// @Accept       json
// @Produce      json
// @Param        request  body      api.ChatRequest   true  "Message and session ID"
// @Success      200      {object}  api.ChatResponse  "Answer or fill-form action"
// @Failure      400      {object}  api.ErrorResponse "Invalid request data"
// @Failure      503      {object}  api.ErrorResponse "Model or knowledge base unavailable"
// @Router       /api/chat [post]
func (h *Handlers) ChatHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logRH.Warn("invalid context by request", "remoteAddr", r.RemoteAddr)
		return
	}
	log := h.logger.With("traceId", traceId(r.Context()))

	var requestData api.ChatRequest
	defer closeBody(r.Body)
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil ||
		requestData.Message == "" || requestData.SessionID == "" {
		log.Warn("bad chat request", "error", err)
		WriteErrorResponse(w, http.StatusBadRequest, "BAD_REQUEST", "message and session_id are required")
		return
	}

	// form-fill commands never reach the model
	if isFillFormCommand(requestData.Message) {
		log.Info("fill-form command detected", "session", requestData.SessionID)
		writeJsonResponse(w, http.StatusOK, api.ChatResponse{
			Reply:        "Starting the form-fill flow. Make sure your documents are uploaded.",
			ActionNeeded: "trigger_fill_form",
		})
		return
	}

	history, err := h.history.History(r.Context(), requestData.SessionID)
	if err != nil {
		// a lost history only degrades the answer
		log.Warn("could not load chat history", "error", err)
	}

	answer, err := h.chat.Answer(r.Context(), requestData.Message, history)
	if err != nil {
		log.Error("chat answer failed", "error", err)
		writeAppError(w, err)
		return
	}

	if err := h.history.AppendExchange(r.Context(), requestData.SessionID, requestData.Message, answer); err != nil {
		log.Warn("could not save chat history", "error", err)
	}

	writeJsonResponse(w, http.StatusOK, api.ChatResponse{Reply: answer})
}

// UploadHandler godoc
// @Summary      Upload a supporting document
// @Description  Stores one file in the session's upload area. Its text feeds later fill-form requests.
// @Tags         Documents
// @Accept       multipart/form-data
// @Produce      json
// @Param        session_id  formData  string  true  "Session ID"
// @Param        file        formData  file    true  "Document (txt, pdf, image, docx, rtf)"
// @Success      200  {object}  api.UploadResponse
// @Failure      400  {object}  api.ErrorResponse "Missing fields or disallowed file type"
// @Failure      500  {object}  api.ErrorResponse "Storage error"
// @Router       /api/upload [post]
func (h *Handlers) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logRH.Warn("invalid context by request", "remoteAddr", r.RemoteAddr)
		return
	}
	log := h.logger.With("traceId", traceId(r.Context()))

	if err := r.ParseMultipartForm(config.MaxUploadSize); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "BAD_REQUEST", "File too large or bad request")
		return
	}

	sessionID := r.FormValue("session_id")
	if sessionID == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "BAD_REQUEST", "session_id is required")
		return
	}

	fileReader, fileMetadata, err := r.FormFile("file")
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "BAD_REQUEST", "Could not retrieve file")
		return
	}
	defer closeBody(fileReader)

	saved, err := h.documents.Save(sessionID, fileMetadata.Filename, fileReader)
	if err != nil {
		log.Error("upload failed", "session", sessionID, "file", fileMetadata.Filename, "error", err)
		writeAppError(w, err)
		return
	}

	metrics.IncrementUploadedDocuments()
	log.Info("document uploaded", "session", sessionID, "file", saved)
	writeJsonResponse(w, http.StatusOK, api.UploadResponse{
		Message:  "File uploaded successfully.",
		Filename: saved,
	})
}

// FillFormHandler godoc
// @Summary      Fill a USCIS form from uploaded documents
// @Description  Runs extraction over the session's documents and streams back the filled PDF. The session's uploads and the generated file are deleted after delivery.
// @Tags         Forms
// @Accept       json
// @Produce      application/pdf
// @Param        request  body  api.FillFormRequest  true  "Form type and session ID"
// @Success      200  {file}    file               "The filled PDF"
// @Failure      400  {object}  api.ErrorResponse  "Invalid request or form config"
// @Failure      404  {object}  api.ErrorResponse  "Unknown form type or missing template"
// @Failure      503  {object}  api.ErrorResponse  "Model unavailable"
// @Router       /api/fill-form [post]
func (h *Handlers) FillFormHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logRH.Warn("invalid context by request", "remoteAddr", r.RemoteAddr)
		return
	}
	log := h.logger.With("traceId", traceId(r.Context()))
	start := time.Now()

	var requestData api.FillFormRequest
	defer closeBody(r.Body)
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil ||
		requestData.FormType == "" || requestData.SessionID == "" {
		log.Warn("bad fill-form request", "error", err)
		WriteErrorResponse(w, http.StatusBadRequest, "BAD_REQUEST", "form_type and session_id are required")
		return
	}

	result, err := h.filler.FillForm(r.Context(), requestData.SessionID, requestData.FormType)
	if err != nil {
		log.Error("fill-form failed", "session", requestData.SessionID, "formType", requestData.FormType, "error", err)
		writeAppError(w, err)
		h.documents.Purge(requestData.SessionID)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+result.DownloadFilename+`"`)
	http.ServeFile(w, r, result.OutputPath)

	// the response is already written: cleanup failures can only be logged
	h.documents.RemoveOutput(result.OutputPath)
	h.documents.Purge(requestData.SessionID)

	metrics.CaptureFillDuration(requestData.FormType, time.Since(start))
	log.Info("filled form delivered", "session", requestData.SessionID, "formType", requestData.FormType)
}

// ListFormsHandler godoc
// @Summary      List available forms
// @Tags         Forms
// @Produce      json
// @Success      200  {object}  api.ListFormsResponse
// @Failure      500  {object}  api.ErrorResponse
// @Router       /api/forms [get]
func (h *Handlers) ListFormsHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logRH.Warn("invalid context by request", "remoteAddr", r.RemoteAddr)
		return
	}

	summaries, err := h.forms.List()
	if err != nil {
		h.logger.Error("listing forms failed", "error", err)
		writeAppError(w, err)
		return
	}

	forms := make([]api.FormInfo, 0, len(summaries))
	for _, s := range summaries {
		forms = append(forms, api.FormInfo{ID: s.ID, Name: s.Name})
	}
	writeJsonResponse(w, http.StatusOK, api.ListFormsResponse{Forms: forms})
}

// isFillFormCommand recognizes the literal frontend command, with or
// without a form id after it.
func isFillFormCommand(message string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(message)), "fill form")
}

func closeBody(body io.Closer) {
	if err := body.Close(); err != nil {
		logRH.Error("couldn't close the request reader", "error", err)
	}
}
