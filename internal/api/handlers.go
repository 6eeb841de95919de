package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/maxvaer/dirscan/internal/output"
	"github.com/maxvaer/dirscan/internal/scanner"
	"github.com/maxvaer/dirscan/internal/storage"
	"github.com/maxvaer/dirscan/internal/wordlist"
	"github.com/maxvaer/dirscan/pkg/version"
)

const (
	maxUploadBytes = 10 << 20
	// maxFormOverhead is the room left for the other multipart fields.
	maxFormOverhead = 1 << 20
)

// Messages sent back to clients verbatim.
const (
	msgSessionNotFound  = "Session not found"
	msgTargetRequired   = "Target URL is required"
	msgWordlistRequired = "Wordlist (text or file) is required"
	msgWordlistInvalid  = "Wordlist is empty or invalid"
	msgBadFileType      = "Invalid file type. Please upload .txt, .list, or .wordlist files"
	msgFileTooLarge     = "File too large. Maximum size is 10MB"
	msgBodyTooLarge     = "Request body too large"
)

// requestError is a client error with the status and message to respond with.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &requestError{status: http.StatusBadRequest, msg: msg}
}

func tooLarge(msg string) error {
	return &requestError{status: http.StatusRequestEntityTooLarge, msg: msg}
}

// bodyError turns a body read failure into a 413 when the size cap was hit.
func bodyError(err error, msg string) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return tooLarge(msgBodyTooLarge)
	}
	return badRequest(msg)
}

var allowedWordlistExts = []string{".txt", ".list", ".wordlist"}

// Handlers holds dependencies for the API handlers.
type Handlers struct {
	registry *scanner.Registry
	archive  storage.Archive
	log      zerolog.Logger
	started  time.Time
}

// NewHandlers creates a new Handlers struct. archive may be nil.
func NewHandlers(registry *scanner.Registry, archive storage.Archive, logger zerolog.Logger) *Handlers {
	return &Handlers{
		registry: registry,
		archive:  archive,
		log:      logger,
		started:  time.Now(),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeScanError maps registry errors onto HTTP responses.
func (h *Handlers) writeScanError(w http.ResponseWriter, err error) {
	var verr *scanner.ValidationError
	switch {
	case errors.Is(err, scanner.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, msgSessionNotFound)
	case errors.Is(err, scanner.ErrEmptyBaseURL):
		writeError(w, http.StatusBadRequest, msgTargetRequired)
	case errors.Is(err, scanner.ErrNoTargets):
		writeError(w, http.StatusBadRequest, msgWordlistInvalid)
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, scanner.ErrTooManySessions), errors.Is(err, scanner.ErrRegistryClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// textOrList accepts either a JSON string or an array of strings.
type textOrList struct {
	text   string
	list   []string
	isList bool
	set    bool
}

func (t *textOrList) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	t.set = true
	if err := json.Unmarshal(b, &t.text); err == nil {
		return nil
	}
	if err := json.Unmarshal(b, &t.list); err != nil {
		return fmt.Errorf("must be a string or an array of strings")
	}
	t.isList = true
	return nil
}

func (t textOrList) joined(sep string) string {
	if t.isList {
		return strings.Join(t.list, sep)
	}
	return t.text
}

type startJSON struct {
	TargetURL   string     `json:"target_url"`
	Wordlist    textOrList `json:"wordlist"`
	Extensions  textOrList `json:"extensions"`
	Concurrency int        `json:"concurrency"`
}

type startInput struct {
	req    scanner.Request
	source string
}

type startResponse struct {
	SessionID       string `json:"session_id"`
	Message         string `json:"message"`
	TotalPaths      int64  `json:"total_paths"`
	WordlistEntries int    `json:"wordlist_entries"`
	WordlistSource  string `json:"wordlist_source"`
}

// StartScan handles scan creation from JSON, urlencoded or multipart bodies.
func (h *Handlers) StartScan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+maxFormOverhead)
	in, err := parseStart(r)
	if err != nil {
		var rerr *requestError
		if !errors.As(err, &rerr) {
			rerr = &requestError{status: http.StatusBadRequest, msg: err.Error()}
		}
		writeError(w, rerr.status, rerr.msg)
		return
	}

	sess, err := h.registry.Start(r.Context(), in.req)
	if err != nil {
		h.writeScanError(w, err)
		return
	}
	snap := sess.Snapshot()
	writeJSON(w, http.StatusCreated, startResponse{
		SessionID:       snap.ID,
		Message:         "Scan started successfully",
		TotalPaths:      snap.Total,
		WordlistEntries: len(in.req.Paths),
		WordlistSource:  in.source,
	})
}

func parseStart(r *http.Request) (startInput, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		return parseStartMultipart(r)
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return startInput{}, bodyError(err, "invalid form body")
		}
		return startFromForm(r.PostFormValue, "", false)
	default:
		return parseStartJSON(r)
	}
}

func parseStartJSON(r *http.Request) (startInput, error) {
	var body startJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return startInput{}, bodyError(err, fmt.Sprintf("invalid request body: %v", err))
	}
	if strings.TrimSpace(body.TargetURL) == "" {
		return startInput{}, badRequest(msgTargetRequired)
	}
	if !body.Wordlist.set {
		return startInput{}, badRequest(msgWordlistRequired)
	}
	return startInput{
		req: scanner.Request{
			BaseURL:    body.TargetURL,
			Paths:      wordlist.Parse(body.Wordlist.joined("\n")),
			Extensions: wordlist.ParseExtensions(body.Extensions.joined(",")),
			Threads:    body.Concurrency,
		},
		source: "text",
	}, nil
}

func parseStartMultipart(r *http.Request) (startInput, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return startInput{}, bodyError(err, "invalid multipart body")
	}
	file, header, err := r.FormFile("wordlist_file")
	if errors.Is(err, http.ErrMissingFile) {
		return startFromForm(r.FormValue, "", false)
	}
	if err != nil {
		return startInput{}, badRequest("Error reading file: " + err.Error())
	}
	defer file.Close()

	if !allowedWordlistFile(header.Filename) {
		return startInput{}, badRequest(msgBadFileType)
	}
	if header.Size > maxUploadBytes {
		return startInput{}, tooLarge(msgFileTooLarge)
	}
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return startInput{}, badRequest("Error reading file: " + err.Error())
	}
	if len(data) > maxUploadBytes {
		return startInput{}, tooLarge(msgFileTooLarge)
	}
	return startFromForm(r.FormValue, string(data), true)
}

func allowedWordlistFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range allowedWordlistExts {
		if ext == allowed {
			return true
		}
	}
	return false
}

// startFromForm reads the form fields. When fromFile is set, fileText replaces
// the wordlist field.
func startFromForm(get func(string) string, fileText string, fromFile bool) (startInput, error) {
	target := strings.TrimSpace(get("target_url"))
	if target == "" {
		return startInput{}, badRequest(msgTargetRequired)
	}

	text, source := get("wordlist"), "text"
	if fromFile {
		text, source = fileText, "file"
	}
	if !fromFile && strings.TrimSpace(text) == "" {
		return startInput{}, badRequest(msgWordlistRequired)
	}

	threads := 0
	if c := strings.TrimSpace(get("concurrency")); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil {
			return startInput{}, badRequest(fmt.Sprintf("invalid concurrency %q", c))
		}
		threads = n
	}

	return startInput{
		req: scanner.Request{
			BaseURL:    target,
			Paths:      wordlist.Parse(text),
			Extensions: wordlist.ParseExtensions(get("extensions")),
			Threads:    threads,
		},
		source: source,
	}, nil
}

type statusResponse struct {
	SessionID      string         `json:"session_id"`
	TargetURL      string         `json:"target_url"`
	Status         scanner.Status `json:"status"`
	Progress       float64        `json:"progress"`
	CompletedPaths int64          `json:"completed_paths"`
	TotalPaths     int64          `json:"total_paths"`
	ResultsCount   int            `json:"results_count"`
	Results        []output.Entry `json:"results"`
	Concurrency    int            `json:"concurrency"`
	CreatedAt      time.Time      `json:"created_at"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	FinishedAt     *time.Time     `json:"finished_at,omitempty"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func newStatusResponse(snap scanner.Snapshot) statusResponse {
	return statusResponse{
		SessionID:      snap.ID,
		TargetURL:      snap.BaseURL,
		Status:         snap.Status,
		Progress:       snap.Progress(),
		CompletedPaths: snap.Completed,
		TotalPaths:     snap.Total,
		ResultsCount:   snap.ResultCount,
		Results:        output.Entries(snap.Recent),
		Concurrency:    snap.Threads,
		CreatedAt:      snap.CreatedAt,
		StartedAt:      optionalTime(snap.StartedAt),
		FinishedAt:     optionalTime(snap.FinishedAt),
	}
}

// ScanStatus returns the live snapshot of one session.
func (h *Handlers) ScanStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := h.registry.Status(r.PathValue("id"))
	if err != nil {
		h.writeScanError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStatusResponse(snap))
}

// ListScans returns snapshots of every live session.
func (h *Handlers) ListScans(w http.ResponseWriter, r *http.Request) {
	snaps := h.registry.List()
	items := make([]statusResponse, len(snaps))
	for i, snap := range snaps {
		items[i] = newStatusResponse(snap)
	}
	writeJSON(w, http.StatusOK, struct {
		Items []statusResponse `json:"items"`
	}{Items: items})
}

// StopScan sets the cancellation flag of a session.
func (h *Handlers) StopScan(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Stop(r.PathValue("id")); err != nil {
		h.writeScanError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Scan stopped"})
}

// DeleteScan stops a session and removes it from the registry.
func (h *Handlers) DeleteScan(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Delete(r.PathValue("id")); err != nil {
		h.writeScanError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Session deleted"})
}

type resultsResponse struct {
	SessionID  string         `json:"session_id"`
	Status     string         `json:"status"`
	TotalFound int            `json:"total_found"`
	Results    []output.Entry `json:"results"`
}

// ScanResults exports every finding of a live session. The format query
// parameter selects json (default), csv, text or report; sort reorders.
func (h *Handlers) ScanResults(w http.ResponseWriter, r *http.Request) {
	sess, err := h.registry.Get(r.PathValue("id"))
	if err != nil {
		h.writeScanError(w, err)
		return
	}
	snap := sess.Snapshot()
	h.export(w, r, snap.ID, snap.Status.String(), sess.Results(), output.StatsFromSnapshot(snap), r.URL.Query().Get("format"))
}

// DownloadResults serves the plain text report as an attachment.
func (h *Handlers) DownloadResults(w http.ResponseWriter, r *http.Request) {
	sess, err := h.registry.Get(r.PathValue("id"))
	if err != nil {
		h.writeScanError(w, err)
		return
	}
	snap := sess.Snapshot()
	h.export(w, r, snap.ID, snap.Status.String(), sess.Results(), output.StatsFromSnapshot(snap), "report")
}

func (h *Handlers) export(w http.ResponseWriter, r *http.Request, id, status string, findings []scanner.Finding, stats output.Stats, format string) {
	sortBy := r.URL.Query().Get("sort")
	if format == "" || format == "json" {
		if sortBy != "" {
			sorted, err := sortFindings(findings, sortBy)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			findings = sorted
		}
		writeJSON(w, http.StatusOK, resultsResponse{
			SessionID:  id,
			Status:     status,
			TotalFound: len(findings),
			Results:    output.Entries(findings),
		})
		return
	}

	// Render into memory first so format errors still produce a clean 4xx.
	var buf strings.Builder
	wr, err := output.New(format, &buf, nil, true, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if sortBy != "" {
		if wr, err = output.NewSortedWriter(wr, sortBy); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if err := output.WriteAll(wr, findings, stats); err != nil {
		h.log.Error().Err(err).Str("session_id", id).Msg("export failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="scan_results_%s.csv"`, shortID(id)))
	case "report":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="scan_results_%s.txt"`, shortID(id)))
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, buf.String())
}

func sortFindings(findings []scanner.Finding, sortBy string) ([]scanner.Finding, error) {
	collect := &collector{}
	sw, err := output.NewSortedWriter(collect, sortBy)
	if err != nil {
		return nil, err
	}
	if err := output.WriteAll(sw, findings, output.Stats{}); err != nil {
		return nil, err
	}
	return collect.findings, nil
}

// collector is an output.Writer that keeps findings in memory.
type collector struct {
	findings []scanner.Finding
}

func (c *collector) WriteHeader() error { return nil }
func (c *collector) WriteResult(f *scanner.Finding) error {
	c.findings = append(c.findings, *f)
	return nil
}
func (c *collector) WriteFooter(output.Stats) error { return nil }
func (c *collector) Close() error                   { return nil }

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type historyItem struct {
	SessionID    string         `json:"session_id"`
	TargetURL    string         `json:"target_url"`
	Status       string         `json:"status"`
	Completed    int64          `json:"completed_paths"`
	Total        int64          `json:"total_paths"`
	ResultsCount int            `json:"results_count"`
	Concurrency  int            `json:"concurrency"`
	CreatedAt    time.Time      `json:"created_at"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`
	Results      []output.Entry `json:"results,omitempty"`
}

func newHistoryItem(rec *storage.ScanRecord) historyItem {
	item := historyItem{
		SessionID:    rec.ID,
		TargetURL:    rec.BaseURL,
		Status:       rec.Status,
		Completed:    rec.Completed,
		Total:        rec.Total,
		ResultsCount: rec.ResultCount,
		Concurrency:  rec.Threads,
		CreatedAt:    rec.CreatedAt,
		FinishedAt:   optionalTime(rec.FinishedAt),
	}
	if rec.Findings != nil {
		item.Results = output.Entries(rec.Findings)
	}
	return item
}

// ListHistory lists archived scans, most recent first.
func (h *Handlers) ListHistory(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusNotImplemented, "scan history is not enabled")
		return
	}
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}
	recs, err := h.archive.ListScans(r.Context(), storage.ListScansParams{Limit: limit})
	if err != nil {
		h.log.Error().Err(err).Msg("list history failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	items := make([]historyItem, len(recs))
	for i := range recs {
		items[i] = newHistoryItem(&recs[i])
	}
	writeJSON(w, http.StatusOK, struct {
		Items []historyItem `json:"items"`
	}{Items: items})
}

// GetHistory returns one archived scan. A format other than json exports its
// findings like ScanResults does.
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusNotImplemented, "scan history is not enabled")
		return
	}
	rec, err := h.archive.GetScan(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgSessionNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("get history failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" || format == "json" {
		writeJSON(w, http.StatusOK, newHistoryItem(rec))
		return
	}
	stats := output.Stats{
		Completed: rec.Completed,
		Total:     rec.Total,
		Found:     rec.ResultCount,
		Duration:  rec.FinishedAt.Sub(rec.StartedAt),
	}
	h.export(w, r, rec.ID, rec.Status, rec.Findings, stats, format)
}

type healthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
	Sessions  int       `json:"sessions"`
	History   bool      `json:"history"`
	Endpoints []string  `json:"endpoints"`
}

// Healthz reports liveness and the available endpoints.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Version:   version.Version,
		Timestamp: time.Now(),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Sessions:  h.registry.Len(),
		History:   h.archive != nil,
		Endpoints: endpoints,
	})
}
