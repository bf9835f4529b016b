package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/labstack/echo/v4"

	"ragserver/internal/helper"
	"ragserver/internal/models"
	"ragserver/internal/rag"
)

type uploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Chunks  int    `json:"chunks"`
	Context string `json:"context"`
}

type promptRequest struct {
	Query   string `json:"query"`
	K       int    `json:"k"`
	Context string `json:"context"`
}

type chunkMetadata struct {
	Source  string `json:"source"`
	Part    int    `json:"part"`
	Context string `json:"context"`
}

type retrievedChunk struct {
	Text     string        `json:"text"`
	Metadata chunkMetadata `json:"metadata"`
	Distance float32       `json:"distance"`
}

type promptResponse struct {
	Answer    string           `json:"answer"`
	Retrieved []retrievedChunk `json:"retrieved"`
}

type rechunkRequest struct {
	ChunkLength int    `json:"chunkLength"`
	Context     string `json:"context"`
}

type rechunkResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	OldChunks int    `json:"oldChunks"`
	NewChunks int    `json:"newChunks"`
}

type healthResponse struct {
	Status           string `json:"status"`
	Backend          string `json:"backend"`
	BackendError     string `json:"backendError,omitempty"`
	DocumentsIndexed int    `json:"documentsIndexed"`
}

// handleUpload stages the multipart files to disk and hands them to the
// ingestion workflow. Staged copies are owned by the workflow from that point
// on and are removed whether ingestion succeeds or not.
func (s *Server) handleUpload(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return &rag.ValidationError{Field: "files", Reason: "multipart form required"}
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return &rag.ValidationError{Field: "files", Reason: "at least one file is required"}
	}

	if err := helper.CreateFolder(s.uploadDir); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	files := make([]models.UploadedFile, 0, len(headers))
	for _, h := range headers {
		staged, err := s.stageFile(h)
		if err != nil {
			for _, f := range files {
				os.Remove(f.Path)
			}
			return fmt.Errorf("stage %s: %w", h.Filename, err)
		}
		files = append(files, models.UploadedFile{Path: staged, Name: h.Filename})
	}

	res, err := s.svc.Ingest(c.Request().Context(), files, c.FormValue("context"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, uploadResponse{
		Success: true,
		Message: fmt.Sprintf("ingested %d file(s) into %d chunk(s)", len(files), res.Chunks),
		Chunks:  res.Chunks,
		Context: res.Context,
	})
}

func (s *Server) stageFile(h *multipart.FileHeader) (string, error) {
	src, err := h.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	id, err := helper.NewChunkID()
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.uploadDir, id+filepath.Ext(h.Filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// handlePrompt serves both /prompt and /chat.
func (s *Server) handlePrompt(c echo.Context) error {
	var req promptRequest
	if err := c.Bind(&req); err != nil {
		return &rag.ValidationError{Field: "body", Reason: "invalid JSON body"}
	}
	res, err := s.svc.Retrieve(c.Request().Context(), req.Query, req.K, req.Context)
	if err != nil {
		return err
	}

	retrieved := make([]retrievedChunk, 0, len(res.Retrieved))
	for _, rc := range res.Retrieved {
		retrieved = append(retrieved, retrievedChunk{
			Text: rc.Text,
			Metadata: chunkMetadata{
				Source:  rc.Source,
				Part:    rc.Part,
				Context: rc.Context,
			},
			Distance: rc.Distance,
		})
	}
	return c.JSON(http.StatusOK, promptResponse{Answer: res.Answer, Retrieved: retrieved})
}

func (s *Server) handleRechunk(c echo.Context) error {
	var req rechunkRequest
	if err := c.Bind(&req); err != nil {
		return &rag.ValidationError{Field: "body", Reason: "invalid JSON body"}
	}
	res, err := s.svc.Rechunk(c.Request().Context(), req.ChunkLength, req.Context)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rechunkResponse{
		Success:   true,
		Message:   fmt.Sprintf("rechunked %d chunk(s) into %d chunk(s)", res.OldChunks, res.NewChunks),
		OldChunks: res.OldChunks,
		NewChunks: res.NewChunks,
	})
}

// handleHealth always answers 200; backend trouble is reported in the body so
// probes can distinguish a dead process from a degraded one.
func (s *Server) handleHealth(c echo.Context) error {
	resp := healthResponse{Status: "ok", Backend: s.backend}
	ctx := c.Request().Context()
	if err := s.store.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.BackendError = err.Error()
	} else if n, err := s.store.Count(ctx); err != nil {
		resp.Status = "degraded"
		resp.BackendError = err.Error()
	} else {
		resp.DocumentsIndexed = n
	}
	return c.JSON(http.StatusOK, resp)
}
