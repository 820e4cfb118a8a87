package routes

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/x402kit/walletgate/internal/dataproc"
	"github.com/x402kit/walletgate/internal/wallet"
)

// Handler mounts the data-utility routes. The payment gate runs as
// engine-level middleware before any of these handlers; they never see
// an unpaid request.
type Handler struct {
	receipts wallet.ReceiptStore
	log      *zap.Logger
}

func NewHandler(receipts wallet.ReceiptStore, log *zap.Logger) *Handler {
	return &Handler{receipts: receipts, log: log}
}

func (h *Handler) Register(r *gin.Engine) {
	r.POST("/validate/csv", h.handleValidateCSV)
	r.POST("/clean/dataframe", h.handleCleanDataframe)
	r.POST("/extract/pdf", h.handleExtractPDF)
	r.POST("/summarize/logs", h.handleSummarizeLogs)

	// Ungated lookup of a previously issued receipt.
	r.GET("/receipts/:id", h.handleGetReceipt)
}

// ── CSV validation ──────────────────────────────────────────────────────────

func (h *Handler) handleValidateCSV(c *gin.Context) {
	if !strings.Contains(c.ContentType(), "multipart/form-data") {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "Unsupported Content-Type. Use multipart/form-data."})
		return
	}

	header, rows, ok := h.readCSVUpload(c)
	if !ok {
		return
	}

	cfg := dataproc.DefaultValidationConfig()

	if raw := c.Query("required_columns"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.RequiredColumns); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "required_columns must be valid JSON: " + err.Error()})
			return
		}
	}
	if raw := c.Query("types"); raw != "" {
		var types map[string]string
		if err := json.Unmarshal([]byte(raw), &types); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "types must be valid JSON: " + err.Error()})
			return
		}
		cfg.TypeRules = make(map[string]dataproc.TypeRule, len(types))
		for col, t := range types {
			cfg.TypeRules[col] = dataproc.TypeRule{Type: t}
		}
	}

	rawCfg := c.PostForm("config")
	if rawCfg == "" {
		rawCfg = c.Query("config")
	}
	if rawCfg != "" {
		// Overrides are unmarshalled on top of the defaults; absent
		// fields keep their default values.
		if err := json.Unmarshal([]byte(rawCfg), &cfg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "config must be valid JSON: " + err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, dataproc.ValidateTable(header, rows, cfg))
}

// ── Cleaning ────────────────────────────────────────────────────────────────

type cleanJSONRequest struct {
	Data       []map[string]any `json:"data"`
	Rules      json.RawMessage  `json:"rules"`
	IncludeCSV bool             `json:"include_csv"`
}

func (h *Handler) handleCleanDataframe(c *gin.Context) {
	contentType := c.ContentType()

	var header []string
	var rows [][]string
	rules := dataproc.DefaultCleanRules()
	includeCSV := false

	switch {
	case strings.Contains(contentType, "application/json"):
		var req cleanJSONRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
			return
		}
		if req.Data == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "JSON body must include 'data' (list of rows)."})
			return
		}
		if len(req.Rules) > 0 {
			if err := json.Unmarshal(req.Rules, &rules); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "rules must be a JSON object: " + err.Error()})
				return
			}
		}
		includeCSV = req.IncludeCSV
		header, rows = recordsToTable(req.Data)

	case strings.Contains(contentType, "multipart/form-data"):
		var ok bool
		header, rows, ok = h.readCSVUpload(c)
		if !ok {
			return
		}
		if raw := c.PostForm("rules"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &rules); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "rules must be valid JSON string: " + err.Error()})
				return
			}
		}
		includeCSV = strings.EqualFold(c.PostForm("include_csv"), "true")

	default:
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "Unsupported Content-Type. Use application/json or multipart/form-data."})
		return
	}

	rowsBefore := len(rows)
	columnsBefore := append([]string(nil), header...)

	cleanedHeader, cleanedRows, changes := dataproc.CleanTable(header, rows, rules)

	resp := gin.H{
		"rows_before":    rowsBefore,
		"rows_after":     len(cleanedRows),
		"columns_before": columnsBefore,
		"columns_after":  cleanedHeader,
		"changes":        changes,
		"cleaned_data":   tableToRecords(cleanedHeader, cleanedRows),
	}
	if includeCSV {
		resp["csv"] = tableToCSV(cleanedHeader, cleanedRows)
	}
	c.JSON(http.StatusOK, resp)
}

// ── PDF extraction ──────────────────────────────────────────────────────────

func (h *Handler) handleExtractPDF(c *gin.Context) {
	mode := c.DefaultQuery("mode", "text")
	if mode != "text" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be: text"})
		return
	}

	file, fh, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form must include a PDF file field named 'file'."})
		return
	}
	defer file.Close()
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please upload a .pdf file"})
		return
	}

	raw, err := io.ReadAll(file)
	if err != nil || len(raw) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Uploaded file is empty."})
		return
	}

	result, err := dataproc.ExtractPDFText(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// ── Log summarization ───────────────────────────────────────────────────────

func (h *Handler) handleSummarizeLogs(c *gin.Context) {
	topK := 10
	if raw := c.Query("top_k"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			topK = n
		}
	}

	var text string
	if strings.Contains(c.ContentType(), "application/json") {
		var payload struct {
			Text string `json:"text"`
		}
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
			return
		}
		text = payload.Text
	} else {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "read body: " + err.Error()})
			return
		}
		text = string(body)
	}

	if strings.TrimSpace(text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Provide log text in the body (or JSON {'text': ...})."})
		return
	}

	c.JSON(http.StatusOK, dataproc.SummarizeLogs(text, topK))
}

// ── Receipts ────────────────────────────────────────────────────────────────

func (h *Handler) handleGetReceipt(c *gin.Context) {
	rcpt, err := h.receipts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.log.Error("receipt lookup failed", zap.String("receipt_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "receipt store unavailable"})
		return
	}
	if rcpt == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "receipt not found"})
		return
	}
	c.JSON(http.StatusOK, rcpt)
}

// ── Helpers ─────────────────────────────────────────────────────────────────

// readCSVUpload parses the multipart "file" field into header + rows.
// Writes the error response itself and returns ok=false on failure.
func (h *Handler) readCSVUpload(c *gin.Context) ([]string, [][]string, bool) {
	file, fh, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form must include a CSV file field named 'file'."})
		return nil, nil, false
	}
	defer file.Close()
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please upload a .csv file"})
		return nil, nil, false
	}

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse CSV: " + err.Error()})
		return nil, nil, false
	}
	if len(records) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Uploaded file is empty."})
		return nil, nil, false
	}
	return records[0], records[1:], true
}

// recordsToTable flattens JSON records into a table. Columns are the
// union of keys, sorted for a deterministic order.
func recordsToTable(records []map[string]any) ([]string, [][]string) {
	colSet := make(map[string]struct{})
	for _, rec := range records {
		for k := range rec {
			colSet[k] = struct{}{}
		}
	}
	header := make([]string, 0, len(colSet))
	for k := range colSet {
		header = append(header, k)
	}
	sort.Strings(header)

	rows := make([][]string, len(records))
	for i, rec := range records {
		row := make([]string, len(header))
		for j, col := range header {
			row[j] = jsonValueString(rec[col])
		}
		rows[i] = row
	}
	return header, rows
}

func tableToRecords(header []string, rows [][]string) []map[string]string {
	out := make([]map[string]string, len(rows))
	for i, row := range rows {
		rec := make(map[string]string, len(header))
		for j, col := range header {
			if j < len(row) {
				rec[col] = row[j]
			}
		}
		out[i] = rec
	}
	return out
}

func tableToCSV(header []string, rows [][]string) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	_ = w.Write(header)
	_ = w.WriteAll(rows)
	w.Flush()
	return sb.String()
}

func jsonValueString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
