package collections

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"CollectRecon/api"
	"CollectRecon/api/constants"
	"CollectRecon/api/utils"
	"CollectRecon/internal/batch"
	"CollectRecon/internal/checksum"
	"CollectRecon/internal/tabular"

	"github.com/gorilla/mux"
)

type batchResponse struct {
	Success bool `json:"success"`
	*batch.FileBatch
}

// UploadHandler ingests a multipart file. The upload is spooled to a temp
// file while it is hashed so the parser can stream it afterwards.
func UploadHandler(e *Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadBytes)
		if err := r.ParseMultipartForm(constants.MaxUploadBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				api.RespondWithError(w, http.StatusRequestEntityTooLarge, constants.ErrFileTooLarge)
				return
			}
			api.LogError("parse multipart form: %v", err)
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrFileUploadFailed)
			return
		}

		file, header, err := r.FormFile(constants.FormFieldFile)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrMissingFile)
			return
		}
		defer file.Close()

		mimeType := header.Header.Get(constants.ContentTypeText)
		format, err := tabular.DetectFormat(header.Filename, mimeType)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidFileFormat)
			return
		}

		spool, err := os.CreateTemp("", "collections-upload-*")
		if err != nil {
			api.LogError("create spool file: %v", err)
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrInternalServer)
			return
		}
		cleanup := func() {
			spool.Close()
			os.Remove(spool.Name())
		}

		fp, size, err := checksum.FingerprintReader(io.TeeReader(file, spool))
		if err != nil {
			cleanup()
			api.LogError("spool upload %s: %v", header.Filename, err)
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrFileUploadFailed)
			return
		}
		if size == 0 {
			cleanup()
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrEmptyFile)
			return
		}
		if _, err := spool.Seek(0, io.SeekStart); err != nil {
			cleanup()
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrInternalServer)
			return
		}

		actor := strings.TrimSpace(r.FormValue(constants.FormFieldUserID))
		if actor == "" {
			actor = constants.DefaultActor
		}
		// once the bytes are read the batch runs to a terminal state even if
		// the client goes away
		ctx := context.WithoutCancel(r.Context())
		b, err := e.Batches.Submit(ctx, batch.Submission{
			FileName:    header.Filename,
			MimeType:    mimeType,
			Size:        size,
			Fingerprint: fp,
			CreatedBy:   actor,
			Content:     spool,
		})
		if err != nil {
			cleanup()
			var dup *batch.DuplicateError
			if errors.As(err, &dup) {
				api.RespondWithJSON(w, http.StatusConflict, map[string]interface{}{
					"success":           false,
					"error":             fmt.Sprintf(constants.ErrFileAlreadyProcessed, dup.ExistingBatchID),
					"existing_batch_id": dup.ExistingBatchID,
				})
				return
			}
			api.LogError("submit %s: %v", header.Filename, err)
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrFileUploadFailed)
			return
		}

		if async, _ := strconv.ParseBool(r.FormValue(constants.FormFieldAsync)); async {
			go func() {
				defer cleanup()
				if _, err := e.Batches.Process(context.Background(), b.ID, spool, format); err != nil {
					api.LogError("async batch %s: %v", b.ID, err)
				}
			}()
			api.RespondWithJSON(w, http.StatusAccepted, batchResponse{Success: true, FileBatch: b})
			return
		}

		defer cleanup()
		done, err := e.Batches.Process(ctx, b.ID, spool, format)
		if err != nil {
			if done == nil || done.Status != batch.StatusFailed {
				api.LogError("process batch %s: %v", b.ID, err)
				api.RespondWithError(w, http.StatusInternalServerError, constants.ErrOperationFailed)
				return
			}
			api.RespondWithJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"success":  false,
				"error":    fmt.Sprintf(constants.ErrFileParsingFailed, done.ErrorMessage),
				"batch_id": done.ID,
				"status":   done.Status,
			})
			return
		}
		api.RespondWithJSON(w, http.StatusOK, batchResponse{Success: true, FileBatch: done})
	})
}

func GetBatchHandler(e *Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := e.Batches.Get(r.Context(), mux.Vars(r)["id"])
		if errors.Is(err, batch.ErrNotFound) {
			api.RespondWithError(w, http.StatusNotFound, constants.ErrBatchNotFound)
			return
		}
		if err != nil {
			api.LogError("get batch: %v", err)
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrInternalServer)
			return
		}
		api.RespondWithJSON(w, http.StatusOK, batchResponse{Success: true, FileBatch: b})
	})
}

func ListBatchesHandler(e *Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, err := utils.ExtractPagination(r)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		list, total, err := e.Batches.List(r.Context(), page.Limit, page.Offset)
		if err != nil {
			api.LogError("list batches: %v", err)
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrInternalServer)
			return
		}
		page.SetPaginationStats(total)
		api.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
			"success":    true,
			"rows":       list,
			"pagination": page,
		})
	})
}

// CheckDuplicateHandler lets a client ask before uploading whether a file
// with this fingerprint was already ingested.
func CheckDuplicateHandler(e *Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Fingerprint string `json:"fingerprint"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
			return
		}
		res, err := e.Batches.CheckDuplicate(r.Context(), req.Fingerprint)
		if errors.Is(err, checksum.ErrInvalidFingerprint) {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidFingerprint)
			return
		}
		if err != nil {
			api.LogError("duplicate check: %v", err)
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrInternalServer)
			return
		}
		api.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
			"success":           true,
			"exists":            res.Exists,
			"existing_batch_id": res.ExistingBatchID,
		})
	})
}
