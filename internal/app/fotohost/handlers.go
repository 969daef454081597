package fotohost

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/fotohosting/fotohost/internal/pkg/monitoring"
	"github.com/fotohosting/fotohost/internal/pkg/storage"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func parseCredentials(r *http.Request) (*credentials, error) {
	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	var creds credentials
	if err = json.Unmarshal(body, &creds); err != nil {
		return nil, err
	}
	if creds.Email == "" || creds.Password == "" {
		return nil, fmt.Errorf("email and password are required")
	}
	return &creds, nil
}

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "Hello, here is your dashboard")
}

func handleRegister(appCtx *AppContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creds, err := parseCredentials(r)
		if failOnError(w, err, "error on parsing register request", http.StatusBadRequest) {
			return
		}

		ok, msg := appCtx.DB.RegisterUser(r.Context(), creds.Email, creds.Password)

		action := "register_failed"
		if ok {
			action = "register_success"
		}
		appCtx.LogStatAsync(&storage.StatEntry{
			ActionType:     action,
			UserEmail:      creds.Email,
			IPAddress:      getClientIP(r),
			UserAgent:      r.UserAgent(),
			AdditionalInfo: msg,
		})

		if !ok {
			respondWithJSON(w, msg, nil, http.StatusBadRequest)
			return
		}
		respondWithJSON(w, "", msg, http.StatusOK)
	}
}

func handleLogin(appCtx *AppContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creds, err := parseCredentials(r)
		if failOnError(w, err, "error on parsing login request", http.StatusBadRequest) {
			return
		}

		ok, msg := appCtx.DB.AuthenticateUser(r.Context(), creds.Email, creds.Password)

		action := "login_failed"
		if ok {
			action = "login_success"
		}
		appCtx.LogStatAsync(&storage.StatEntry{
			ActionType:     action,
			UserEmail:      creds.Email,
			IPAddress:      getClientIP(r),
			UserAgent:      r.UserAgent(),
			AdditionalInfo: msg,
		})

		if !ok {
			respondWithJSON(w, msg, nil, http.StatusUnauthorized)
			return
		}
		respondWithJSON(w, "", msg, http.StatusOK)
	}
}

type profilePayload struct {
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"created_at"`
	TotalImages int64     `json:"total_images"`
}

func handleProfile(appCtx *AppContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, password, provided := r.BasicAuth()
		if !provided {
			respondWithJSON(w, "authorization required", nil, http.StatusUnauthorized)
			return
		}
		ok, msg := appCtx.DB.AuthenticateUser(r.Context(), email, password)
		if !ok {
			respondWithJSON(w, msg, nil, http.StatusUnauthorized)
			return
		}

		user, err := appCtx.DB.GetUser(r.Context(), email)
		if failOnError(w, err, "failed to fetch account", http.StatusInternalServerError) {
			return
		}
		if user == nil {
			respondWithJSON(w, "account not found", nil, http.StatusNotFound)
			return
		}
		total, err := appCtx.DB.GetTotalUserImages(r.Context(), email)
		if err != nil {
			log.Printf("ERROR: failed to count images for %v - %v", email, err)
		}
		respondWithJSON(w, "", profilePayload{
			Email:       user.Email,
			CreatedAt:   user.CreatedAt,
			TotalImages: total,
		}, http.StatusOK)
	}
}

// handleDeleteProfile removes the authenticated account. Owned images go
// with it, statistics entries stay.
func handleDeleteProfile(appCtx *AppContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, password, provided := r.BasicAuth()
		if !provided {
			respondWithJSON(w, "authorization required", nil, http.StatusUnauthorized)
			return
		}
		ok, msg := appCtx.DB.AuthenticateUser(r.Context(), email, password)
		if !ok {
			respondWithJSON(w, msg, nil, http.StatusUnauthorized)
			return
		}

		if err := appCtx.DB.DeleteUser(r.Context(), email); failOnError(w, err, "failed to delete account", http.StatusInternalServerError) {
			return
		}
		appCtx.LogStatAsync(&storage.StatEntry{
			ActionType: "account_deleted",
			IPAddress:  getClientIP(r),
			UserAgent:  r.UserAgent(),
		})
		respondWithJSON(w, "", "account deleted", http.StatusOK)
	}
}

func handleUpload(appCtx *AppContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userEmail, authorized := currentUser(appCtx, r)
		if !authorized {
			respondWithJSON(w, "invalid credentials", nil, http.StatusUnauthorized)
			return
		}

		if err := r.ParseMultipartForm(appCtx.Config.MaxImageSize); err != nil {
			respondWithJSON(w, "error on reading multipart form", nil, http.StatusBadRequest)
			return
		}
		files := r.MultipartForm.File["file"]
		if len(files) == 0 {
			respondWithJSON(w, "no files provided", nil, http.StatusBadRequest)
			return
		}

		storageDays := appCtx.Config.StorageDays
		if raw := r.FormValue("storage_days"); raw != "" {
			if days, err := strconv.Atoi(raw); err == nil && days > 0 {
				storageDays = days
			}
		}

		svc := NewUploadService(appCtx)
		results := make([]UploadResult, 0, len(files))
		for _, header := range files {
			result := svc.ProcessFile(r.Context(), header, userEmail, storageDays)
			if result.Success {
				monitoring.TrackUpload("success")
				appCtx.LogStatAsync(&storage.StatEntry{
					ActionType: "upload",
					UserEmail:  userEmail,
					FileID:     result.FileID,
					IPAddress:  getClientIP(r),
					UserAgent:  r.UserAgent(),
					AdditionalInfo: fmt.Sprintf("Size: %v bytes, Storage: %v days",
						result.Size, storageDays),
				})
			} else {
				monitoring.TrackUpload("error")
				log.Printf("WARN: upload of %v rejected - %v", header.Filename, result.Error)
			}
			results = append(results, result)
		}
		appCtx.Cache.Invalidate(summaryCacheKey)

		respondWithJSON(w, "", results, http.StatusOK)
	}
}

// handleListImages lists images with pagination. Read failures are collapsed
// to an empty page: the gallery stays available even when the store is not.
func handleListImages(appCtx *AppContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := intQueryParam(r, "page", 1)
		perPage := intQueryParam(r, "per_page", appCtx.Config.ImagesPerPage)
		sortBy := r.URL.Query().Get("sort_by")
		owner := r.URL.Query().Get("user")

		var images []storage.Image
		var total int64
		var err error
		if owner != "" {
			images, err = appCtx.DB.GetUserImages(r.Context(), owner, page, perPage)
			if err == nil {
				total, err = appCtx.DB.GetTotalUserImages(r.Context(), owner)
			}
		} else {
			images, err = appCtx.DB.GetImagesList(r.Context(), page, perPage, sortBy)
			if err == nil {
				total, err = appCtx.DB.GetTotalImages(r.Context())
			}
		}
		if err != nil {
			log.Printf("ERROR: failed to list images - %v", err)
			images, total = nil, 0
		}
		if images == nil {
			images = []storage.Image{}
		}

		respondWithJSON(w, "", pagePayload{Items: images, Total: total, Page: page, PerPage: perPage}, http.StatusOK)
	}
}

func handleGetImage(appCtx *AppContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if failOnError(w, err, "", http.StatusBadRequest) {
			return
		}

		img, err := appCtx.DB.GetImageByID(r.Context(), id)
		if err != nil {
			log.Printf("ERROR: failed to fetch image %v - %v", id, err)
		}
		if img == nil {
			respondWithJSON(w, "image not found", nil, http.StatusNotFound)
			return
		}
		respondWithJSON(w, "", img, http.StatusOK)
	}
}

func handleDeleteImage(appCtx *AppContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if failOnError(w, err, "", http.StatusBadRequest) {
			return
		}

		email, password, provided := r.BasicAuth()
		if !provided {
			respondWithJSON(w, "authorization required", nil, http.StatusUnauthorized)
			return
		}
		ok, _ := appCtx.DB.AuthenticateUser(r.Context(), email, password)
		if !ok {
			respondWithJSON(w, "invalid credentials", nil, http.StatusUnauthorized)
			return
		}

		img, err := appCtx.DB.GetImageByID(r.Context(), id)
		if err != nil {
			log.Printf("ERROR: failed to fetch image %v - %v", id, err)
		}
		if img == nil {
			respondWithJSON(w, "image not found", nil, http.StatusNotFound)
			return
		}
		if img.UserEmail != email && !appCtx.Config.IsAdmin(email) {
			respondWithJSON(w, "not an owner of the image", nil, http.StatusForbidden)
			return
		}

		path := filepath.Join(appCtx.Config.UploadFolder, folderFor(img.UserEmail), img.Filename)
		if err = os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("WARN: failed to remove file %v - %v", path, err)
		}

		if err = appCtx.DB.DeleteImage(r.Context(), id); err != nil {
			log.Printf("ERROR: failed to delete image %v - %v", id, err)
			respondWithJSON(w, "failed to delete image", nil, http.StatusInternalServerError)
			return
		}

		appCtx.Cache.Invalidate(summaryCacheKey)
		appCtx.LogStatAsync(&storage.StatEntry{
			ActionType: "delete",
			UserEmail:  email,
			FileID:     id,
			IPAddress:  getClientIP(r),
			UserAgent:  r.UserAgent(),
		})
		respondWithJSON(w, "", "ok", http.StatusOK)
	}
}

func handleServeFile(appCtx *AppContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		owner, filename := vars["user"], vars["filename"]

		// Reject anything that could escape the upload folder.
		if strings.Contains(owner, "..") || strings.Contains(filename, "..") ||
			strings.ContainsAny(owner+filename, `/\`) {
			respondWithJSON(w, "invalid path", nil, http.StatusBadRequest)
			return
		}

		path := filepath.Join(appCtx.Config.UploadFolder, owner, filename)
		if _, err := os.Stat(path); err != nil {
			respondWithJSON(w, "file not found", nil, http.StatusNotFound)
			return
		}

		monitoring.TrackDownload()
		var ownerEmail string
		if owner != "anonymous" {
			ownerEmail = owner
		}
		appCtx.LogStatAsync(&storage.StatEntry{
			ActionType:     "download",
			UserEmail:      ownerEmail,
			IPAddress:      getClientIP(r),
			UserAgent:      r.UserAgent(),
			AdditionalInfo: filename,
		})

		http.ServeFile(w, r, path)
	}
}

type statisticsPayload struct {
	Entries     []storage.StatEntry `json:"entries"`
	Total       int64               `json:"total"`
	Page        int                 `json:"page"`
	PerPage     int                 `json:"per_page"`
	ActionTypes []string            `json:"action_types"`
	Users       []string            `json:"users"`
}

// handleStatistics serves the admin audit log view with filtering and
// pagination. Read failures collapse to empty sets.
func handleStatistics(appCtx *AppContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := intQueryParam(r, "page", 1)
		perPage := intQueryParam(r, "per_page", appCtx.Config.StatisticsPerPage)
		filter := storage.StatFilter{
			ActionType: r.URL.Query().Get("action_type"),
			UserEmail:  r.URL.Query().Get("user"),
		}

		ctx := r.Context()
		entries, err := appCtx.DB.GetStatistics(ctx, filter, perPage, (page-1)*perPage)
		if err != nil {
			log.Printf("ERROR: failed to get statistics - %v", err)
			entries = nil
		}
		if entries == nil {
			entries = []storage.StatEntry{}
		}
		total, err := appCtx.DB.CountStatistics(ctx, filter)
		if err != nil {
			log.Printf("ERROR: failed to count statistics - %v", err)
			total = 0
		}
		actionTypes, err := appCtx.DB.GetActionTypes(ctx)
		if err != nil {
			log.Printf("ERROR: failed to get action types - %v", err)
		}
		users, err := appCtx.DB.GetUsers(ctx)
		if err != nil {
			log.Printf("ERROR: failed to get users - %v", err)
		}

		respondWithJSON(w, "", statisticsPayload{
			Entries:     entries,
			Total:       total,
			Page:        page,
			PerPage:     perPage,
			ActionTypes: actionTypes,
			Users:       users,
		}, http.StatusOK)
	}
}

type summaryPayload struct {
	Summary        []storage.ActionCount `json:"summary"`
	TotalImages    int64                 `json:"total_images"`
	TotalDownloads int64                 `json:"total_downloads"`
}

const summaryCacheKey = "fotohost:statistics:summary"

func handleStatisticsSummary(appCtx *AppContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload summaryPayload
		if appCtx.Cache.Get(summaryCacheKey, &payload) {
			respondWithJSON(w, "", payload, http.StatusOK)
			return
		}

		ctx := r.Context()
		summary, err := appCtx.DB.GetStatisticsSummary(ctx)
		if err != nil {
			log.Printf("ERROR: failed to get statistics summary - %v", err)
		}
		if summary == nil {
			summary = []storage.ActionCount{}
		}
		totalImages, err := appCtx.DB.GetTotalImages(ctx)
		if err != nil {
			log.Printf("ERROR: failed to get total images - %v", err)
		}
		totalDownloads, err := appCtx.DB.GetTotalDownloads(ctx)
		if err != nil {
			log.Printf("ERROR: failed to get total downloads - %v", err)
		}

		payload = summaryPayload{
			Summary:        summary,
			TotalImages:    totalImages,
			TotalDownloads: totalDownloads,
		}
		appCtx.Cache.Set(summaryCacheKey, payload)
		respondWithJSON(w, "", payload, http.StatusOK)
	}
}

// handleCleanup triggers an expiration sweep, enqueued when the worker pool
// is attached, synchronous otherwise.
func handleCleanup(appCtx *AppContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if appCtx.ScheduleCleanup() {
			respondWithJSON(w, "", "cleanup scheduled", http.StatusAccepted)
			return
		}
		deleted, errs := RunCleanup(appCtx)
		respondWithJSON(w, "", map[string]interface{}{
			"deleted": deleted,
			"errors":  errs,
		}, http.StatusOK)
	}
}

func handleHealth(appCtx *AppContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := monitoring.Collect(r.Context(), appCtx.DB.Pool())
		code := http.StatusOK
		status := "healthy"
		if !snap.Healthy {
			code = http.StatusServiceUnavailable
			status = "unhealthy"
		}
		respondWithJSON(w, "", map[string]interface{}{
			"status":       status,
			"pool_metrics": snap,
		}, code)
	}
}

func handleMetricsJSON(appCtx *AppContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := monitoring.Collect(r.Context(), appCtx.DB.Pool())
		respondWithJSON(w, "", snap, http.StatusOK)
	}
}
