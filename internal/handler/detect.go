package handler

import (
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"

	"objectsguesser/internal/config"
	"objectsguesser/internal/logger"
	"objectsguesser/internal/service"
	"objectsguesser/internal/service/imageio"
)

// DetectHandler runs detection on a multipart upload ("image") or a remote
// image ("image_url"). Without either it answers {image: null, rows: []}.
func DetectHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	client := &http.Client{Timeout: cfg.ProxyTimeout}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			respondError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadSize)
		if err := r.ParseMultipartForm(cfg.MaxUploadSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondError(w, fmt.Sprintf("Upload exceeds %d bytes", cfg.MaxUploadSize), http.StatusRequestEntityTooLarge)
				return
			}
			respondError(w, "Failed to parse form", http.StatusBadRequest)
			return
		}

		threshold, err := parseThreshold(r.FormValue("threshold"), cfg.DefaultThreshold)
		if err != nil {
			respondError(w, "Invalid threshold", http.StatusBadRequest)
			return
		}

		img, source, err := readInputImage(r, client)
		if err != nil {
			var fetchErr *fetchError
			if errors.As(err, &fetchErr) {
				logger.Warning("Image fetch failed: %v", err)
				respondError(w, err.Error(), http.StatusBadGateway)
				return
			}
			respondDetectError(w, logger, err)
			return
		}

		result, err := manager.Detect(r.Context(), img, threshold, source)
		if err != nil {
			respondDetectError(w, logger, err)
			return
		}

		resp, err := buildDetectResponse(result)
		if err != nil {
			logger.Error("Failed to encode annotated image: %v", err)
			respondError(w, "Failed to encode image", http.StatusInternalServerError)
			return
		}
		respondJSON(w, resp, http.StatusOK)
	}
}

// fetchError marks a failure to download image_url.
type fetchError struct {
	err error
}

func (e *fetchError) Error() string { return e.err.Error() }
func (e *fetchError) Unwrap() error { return e.err }

// readInputImage returns the uploaded or referenced image, or nil when the
// request carries neither.
func readInputImage(r *http.Request, client *http.Client) (image.Image, string, error) {
	file, _, err := r.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, service.SourceUpload, fmt.Errorf("failed to read upload: %w", err)
		}
		img, err := imageio.Decode(data)
		return img, service.SourceUpload, err

	case !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart):
		return nil, service.SourceUpload, fmt.Errorf("%w: %v", imageio.ErrDecode, err)
	}

	url := r.FormValue("image_url")
	if url == "" {
		return nil, service.SourceUpload, nil
	}
	if !imageio.IsURL(url) {
		return nil, service.SourceURL, fmt.Errorf("%w: image_url must be an http(s) URL", imageio.ErrDecode)
	}

	data, err := imageio.Fetch(r.Context(), client, url)
	if err != nil {
		return nil, service.SourceURL, &fetchError{err: err}
	}
	img, err := imageio.Decode(data)
	return img, service.SourceURL, err
}
