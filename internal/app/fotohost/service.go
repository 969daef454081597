package fotohost

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/fotohosting/fotohost/internal/pkg/storage"
)

// allowedExtensions - upload allow-list; only common web image formats.
var allowedExtensions = map[string]bool{
	"png":  true,
	"jpeg": true,
	"jpg":  true,
	"gif":  true,
	"webp": true,
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// UploadResult - outcome of processing one uploaded file.
type UploadResult struct {
	Success      bool   `json:"success"`
	Filename     string `json:"filename,omitempty"`
	OriginalName string `json:"original_name,omitempty"`
	Size         int64  `json:"size,omitempty"`
	FileID       int64  `json:"file_id,omitempty"`
	URL          string `json:"url,omitempty"`
	Error        string `json:"error,omitempty"`
}

// UploadService - validates, stores and records uploaded images.
type UploadService struct {
	ctx *AppContext
}

func NewUploadService(ctx *AppContext) *UploadService {
	return &UploadService{ctx: ctx}
}

// ProcessFile runs the full single-file upload cycle: validation, filename
// generation, filesystem write, image verification and metadata insert. All
// failure modes are reported through the result, never as a panic or a raw
// store error.
func (svc *UploadService) ProcessFile(ctx context.Context, header *multipart.FileHeader, userEmail string, storageDays int) UploadResult {
	cfg := svc.ctx.Config

	if header.Size > cfg.MaxImageSize {
		return UploadResult{Error: fmt.Sprintf("file size exceeds the limit (%v bytes): %v bytes", cfg.MaxImageSize, header.Size)}
	}
	if !allowedFile(header.Filename) {
		return UploadResult{Error: "unsupported file format, allowed: png, jpeg, jpg, gif, webp"}
	}

	file, err := header.Open()
	if err != nil {
		return UploadResult{Error: fmt.Sprintf("failed to read uploaded file: %v", err)}
	}
	defer file.Close()

	var buffer bytes.Buffer
	if _, err = io.Copy(&buffer, io.LimitReader(file, cfg.MaxImageSize+1)); err != nil {
		return UploadResult{Error: fmt.Sprintf("failed to read uploaded file: %v", err)}
	}
	if int64(buffer.Len()) > cfg.MaxImageSize {
		return UploadResult{Error: fmt.Sprintf("file size exceeds the limit (%v bytes)", cfg.MaxImageSize)}
	}

	fileType := extensionOf(header.Filename)
	if err = verifyImage(buffer.Bytes(), fileType); err != nil {
		return UploadResult{Error: fmt.Sprintf("file is not a valid image: %v", err)}
	}

	uploadTime := time.Now()
	newFilename := makeFilename(header.Filename, uploadTime)

	userFolder := filepath.Join(cfg.UploadFolder, folderFor(userEmail))
	if err = os.MkdirAll(userFolder, 0755); err != nil {
		return UploadResult{Error: fmt.Sprintf("failed to prepare upload folder: %v", err)}
	}

	path := filepath.Join(userFolder, newFilename)
	if err = writeFile(path, buffer.Bytes()); err != nil {
		return UploadResult{Error: fmt.Sprintf("failed to store file: %v", err)}
	}
	log.Printf("INFO: file %v saved to %v", newFilename, path)

	img := &storage.Image{
		Filename:     newFilename,
		OriginalName: header.Filename,
		Size:         int64(buffer.Len()),
		UploadTime:   uploadTime,
		FileType:     fileType,
		UserEmail:    userEmail,
	}
	fileID, err := svc.ctx.DB.SaveImage(ctx, img, storageDays)
	if err != nil {
		os.Remove(path)
		if pqerr, isPq := err.(*pq.Error); isPq && pqerr.Code.Name() == "foreign_key_violation" {
			// The session points at a deleted account.
			return UploadResult{Error: "user session is stale, please log in again"}
		}
		log.Printf("ERROR: failed to save image metadata - %v", err)
		return UploadResult{Error: "failed to save image metadata"}
	}

	return UploadResult{
		Success:      true,
		Filename:     newFilename,
		OriginalName: header.Filename,
		Size:         img.Size,
		FileID:       fileID,
		URL:          fmt.Sprintf("/files/%s/%s", folderFor(userEmail), newFilename),
	}
}

// makeFilename builds the server-side name. The embedded second-resolution
// timestamp keeps the name practically unique; the original base name is
// kept for recognizability but stripped of anything unsafe for a path.
func makeFilename(original string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(original))
	base := strings.TrimSuffix(filepath.Base(original), filepath.Ext(original))
	base = unsafeFilenameChars.ReplaceAllString(base, "_")
	if base == "" {
		base = "image"
	}
	return fmt.Sprintf("%s_(Foto-Hosting_%s)%s", base, now.Format("2006-01-02_15-04-05"), ext)
}

func allowedFile(filename string) bool {
	if !strings.Contains(filename, ".") {
		return false
	}
	return allowedExtensions[extensionOf(filename)]
}

func extensionOf(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// verifyImage decodes the header of the payload. webp has no stdlib decoder,
// so for it an unknown-format answer is accepted after the extension check.
func verifyImage(data []byte, fileType string) error {
	_, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err == image.ErrFormat && fileType == "webp" {
		return nil
	}
	return err
}

func folderFor(userEmail string) string {
	if userEmail == "" {
		return "anonymous"
	}
	return userEmail
}

func writeFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err = f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
