package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cleared-dev/stmtimport/internal/buildinfo"
	"github.com/cleared-dev/stmtimport/internal/category"
	"github.com/cleared-dev/stmtimport/internal/logger"
	"github.com/cleared-dev/stmtimport/internal/mapping"
	"github.com/cleared-dev/stmtimport/internal/model"
	"github.com/cleared-dev/stmtimport/internal/review"
	"github.com/cleared-dev/stmtimport/internal/runlog"
	"github.com/cleared-dev/stmtimport/internal/transform"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": buildinfo.Version})
}

// kindOrDefault parses a kind parameter; empty means spending.
func kindOrDefault(raw string) (model.Kind, error) {
	if raw == "" {
		return model.KindSpending, nil
	}
	return model.ParseKind(raw)
}

// analyzeFile accepts a multipart upload ("file", optional "kind") and returns its Structure.
func (s *Server) analyzeFile(c *gin.Context) {
	kind, err := kindOrDefault(c.PostForm("kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file upload"})
		return
	}
	if fh.Size > MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	if s.registry.ForFile(fh.Filename) == nil {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported file type " + filepath.Ext(fh.Filename)})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reading upload"})
		return
	}
	defer f.Close()

	structure, err := s.registry.Analyze(f, filepath.Ext(fh.Filename), kind)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, structure)
}

type suggestRequest struct {
	Headers []string   `json:"headers" binding:"required"`
	Kind    model.Kind `json:"kind"`
}

func (s *Server) suggestMappings(c *gin.Context) {
	var req suggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	kind, err := kindOrDefault(string(req.Kind))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mappings": mapping.Suggest(req.Headers, kind)})
}

// listCategories returns the jars a review UI can offer and the keyword rules
// that pick the suggested one.
func (s *Server) listCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"jars":    model.Jars,
		"default": category.Default,
		"rules":   category.Rules(),
	})
}

type prepareRequest struct {
	Rows     []model.RawRow        `json:"rows"`
	Mappings []model.ColumnMapping `json:"mappings"`
	Account  string                `json:"account"`
	Kind     model.Kind            `json:"kind"`
	Source   string                `json:"source"`
}

type prepareResponse struct {
	RunID        string              `json:"runId"`
	Transactions []model.Transaction `json:"transactions"`
	Dropped      []transform.Drop    `json:"dropped"`
	Summary      review.Summary      `json:"summary"`
}

// prepareTransactions runs transform, conversion and duplicate detection on rows.
func (s *Server) prepareTransactions(c *gin.Context) {
	var req prepareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	kind, err := kindOrDefault(string(req.Kind))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	set, err := mapping.NewSet(req.Mappings)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	runID := runlog.NewRunID()
	sess, err := s.pipeline.Run(ctx, review.Input{
		Rows:     req.Rows,
		Mappings: set.Mappings(),
		Account:  req.Account,
		Kind:     kind,
	})
	if err != nil {
		var me *transform.MappingError
		if errors.As(err, &me) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": me.Error(), "missing": me.Targets})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sum := sess.Summary()
	s.record(ctx, runlog.Entry{
		RunID:      runID,
		Source:     sourceOr(req.Source),
		Kind:       kind,
		Rows:       len(req.Rows),
		Kept:       sum.Total,
		Dropped:    sum.Dropped,
		Duplicates: sum.Duplicates,
		Status:     runlog.StatusReviewed,
	})

	dropped := sess.Dropped()
	if dropped == nil {
		dropped = []transform.Drop{}
	}
	c.JSON(http.StatusOK, prepareResponse{
		RunID:        runID,
		Transactions: sess.Transactions(),
		Dropped:      dropped,
		Summary:      sum,
	})
}

type importRequest struct {
	RunID        string            `json:"runId"`
	Kind         model.Kind        `json:"kind"`
	Transactions []json.RawMessage `json:"transactions"`
	Source       string            `json:"source"`
}

// importTransactions writes the selected, non-duplicate subset of a reviewed batch.
func (s *Server) importTransactions(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	kind, err := kindOrDefault(string(req.Kind))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// Records are decoded as the batch kind, whatever their own "kind" field says.
	txns := make([]model.Transaction, len(req.Transactions))
	for i, raw := range req.Transactions {
		if txns[i], err = model.UnmarshalTransaction(raw, kind); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("transaction %d: %v", i, err)})
			return
		}
	}

	runID := req.RunID
	if runID == "" {
		runID = runlog.NewRunID()
	}
	ctx := c.Request.Context()
	sess := review.NewSession(kind, txns)
	sum := sess.Summary()
	entry := runlog.Entry{
		RunID:      runID,
		Source:     sourceOr(req.Source),
		Kind:       kind,
		Rows:       sum.Total,
		Kept:       sum.Total,
		Duplicates: sum.Duplicates,
	}

	n, err := sess.Import(ctx, s.sink)
	switch {
	case errors.Is(err, review.ErrNothingSelected):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, review.ErrNotImportable):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	case err != nil:
		entry.Status = runlog.StatusFailed
		entry.Details = err.Error()
		s.record(ctx, entry)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	entry.Status = runlog.StatusImported
	entry.Imported = n
	s.record(ctx, entry)
	c.JSON(http.StatusOK, gin.H{"runId": runID, "imported": n})
}

func sourceOr(s string) string {
	if s == "" {
		return "api"
	}
	return s
}

func (s *Server) record(ctx context.Context, e runlog.Entry) {
	if s.opts.Root == "" {
		return
	}
	e.Timestamp = time.Now().UTC()
	if err := runlog.Append(s.opts.Root, []runlog.Entry{e}); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("writing import log")
	}
}
