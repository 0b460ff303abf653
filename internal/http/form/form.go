// Package form reads the validation form out of an incoming request.
// Both the HTML page and the JSON API accept the same three parts:
// name, university and image.
package form

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aanand-mishra/idcard-portal/internal/types"
)

// Read parses a multipart (or urlencoded) submission into a FormInput.
// A missing file part yields a nil Image; the widget decides what that means.
func Read(w http.ResponseWriter, r *http.Request, maxBytes int64) (types.FormInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return types.FormInput{}, fmt.Errorf("Read: parse: %w", err)
	}

	input := types.FormInput{
		Name:       r.FormValue("name"),
		University: r.FormValue("university"),
	}

	file, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return input, nil
	case err != nil:
		return types.FormInput{}, fmt.Errorf("Read: image: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return types.FormInput{}, fmt.Errorf("Read: read image: %w", err)
	}

	input.Image = &types.Image{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	return input, nil
}
