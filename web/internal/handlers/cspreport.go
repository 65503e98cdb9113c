package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shisei-toshokan/shisei/common/httputil"
	"github.com/shisei-toshokan/shisei/common/logging"
	"github.com/shisei-toshokan/shisei/common/messaging"
	"github.com/shisei-toshokan/shisei/web/internal/cspreport"
	"github.com/shisei-toshokan/shisei/web/internal/metrics"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// CSPReportHandler receives browser violation reports and serves them back to
// administrators.
type CSPReportHandler struct {
	store     cspreport.Store
	publisher messaging.Publisher
	maxBody   int64
	logger    *slog.Logger
	now       func() time.Time
}

func NewCSPReportHandler(store cspreport.Store, publisher messaging.Publisher, maxBody int64, logger *slog.Logger) *CSPReportHandler {
	if store == nil {
		store = cspreport.DiscardStore{}
	}
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if maxBody <= 0 {
		maxBody = httputil.DefaultMaxBodyBytes
	}
	return &CSPReportHandler{
		store:     store,
		publisher: publisher,
		maxBody:   maxBody,
		logger:    logger,
		now:       time.Now,
	}
}

// Receive accepts the legacy csp-report envelope and Reporting API arrays.
// Persistence failures never reach the browser.
func (h *CSPReportHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, "Report too large")
			return
		}
		httputil.WriteError(w, http.StatusBadRequest, "Invalid CSP report")
		return
	}

	reports, err := cspreport.Parse(body)
	if err != nil {
		h.logger.DebugContext(r.Context(), "rejected CSP report", logging.Error(err))
		httputil.WriteError(w, http.StatusBadRequest, "Invalid CSP report")
		return
	}

	ctx := r.Context()
	for _, report := range reports {
		stored := cspreport.NewStoredReport(h.now(), r.UserAgent(), report)
		metrics.CSPReports.WithLabelValues(report.Directive()).Inc()

		h.logger.WarnContext(ctx, "CSP violation",
			logging.Directive(report.Directive()),
			logging.URL(report.CSPReport.DocumentURI),
			slog.String("blocked_uri", report.CSPReport.BlockedURI),
		)

		if err := h.store.Save(ctx, stored); err != nil {
			metrics.SinkErrors.WithLabelValues("csp_report_store").Inc()
			h.logger.ErrorContext(ctx, "failed to store CSP report", logging.Error(err))
		}
		if err := messaging.PublishJSON(ctx, h.publisher, messaging.SubjectCSPReportsReceived, stored); err != nil {
			h.logger.WarnContext(ctx, "failed to publish CSP report", logging.Error(err))
		}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

// List returns stored reports, newest first.
func (h *CSPReportHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := httputil.ParseLimit(r, defaultListLimit, maxListLimit)

	reports, err := h.store.List(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list CSP reports", logging.Error(err))
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"reports": reports,
		"count":   len(reports),
	})
}

// Summary aggregates every stored report.
func (h *CSPReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	reports, err := h.store.List(r.Context(), 0)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list CSP reports", logging.Error(err))
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cspreport.Summarize(reports))
}
