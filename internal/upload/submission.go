package upload

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/gabriel-vasile/mimetype"

	"github.com/centrodecompra/catalog/internal/catalog"
)

// ImagePayload is one uploaded image as received from the client.
type ImagePayload struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// Submission carries the raw form values of a create or update request.
type Submission struct {
	Name        string
	Description string
	Category    string
	Store       string
	Link        string
	Price       string
	Images      []ImagePayload
}

// ValidationError lists everything wrong with a submission. It is returned
// before any external call is made.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid submission: " + strings.Join(e.Problems, "; ")
}

type validatedImage struct {
	payload ImagePayload
	ext     string
}

type validated struct {
	price    catalog.Price
	hasPrice bool
	images   []validatedImage
}

// validate checks sub without touching disk beyond reading image headers.
// For creation every mandatory field and at least one image is required.
func (o *Orchestrator) validate(sub Submission, create bool) (*validated, error) {
	var problems []string
	v := &validated{}

	if create {
		for _, f := range []struct{ field, value string }{
			{"nome", sub.Name},
			{"categoria", sub.Category},
			{"loja", sub.Store},
			{"link", sub.Link},
			{"preco", sub.Price},
		} {
			if strings.TrimSpace(f.value) == "" {
				problems = append(problems, f.field+" is required")
			}
		}
	}

	if strings.TrimSpace(sub.Price) != "" {
		p, err := catalog.ParsePrice(sub.Price)
		switch {
		case errors.Is(err, catalog.ErrPriceOutOfRange):
			problems = append(problems, fmt.Sprintf("preco must be below 10^12 with at most %d decimal places", catalog.MaxPriceScale))
		case err != nil:
			problems = append(problems, "preco must be a number")
		case p.IsNegative():
			problems = append(problems, "preco must not be negative")
		default:
			v.price = p
			v.hasPrice = true
		}
	}

	n := len(sub.Images)
	switch {
	case create && n == 0:
		problems = append(problems, "at least one image is required")
	case n > catalog.MaxImages:
		problems = append(problems, fmt.Sprintf("at most %d images are allowed", catalog.MaxImages))
	}

	if n <= catalog.MaxImages {
		for _, img := range sub.Images {
			vi, problem := o.checkImage(img)
			if problem != "" {
				problems = append(problems, problem)
				continue
			}
			v.images = append(v.images, vi)
		}
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return v, nil
}

func (o *Orchestrator) checkImage(img ImagePayload) (validatedImage, string) {
	name := img.Filename
	if name == "" {
		name = "image"
	}
	if img.Size > o.maxFileBytes {
		return validatedImage{}, fmt.Sprintf("%s exceeds %d bytes", name, o.maxFileBytes)
	}
	// a generic declared type defers to sniffing
	if img.ContentType != "" && img.ContentType != "application/octet-stream" {
		declared, _, err := mime.ParseMediaType(img.ContentType)
		if err != nil || !strings.HasPrefix(declared, "image/") {
			return validatedImage{}, fmt.Sprintf("%s is not an image (%s)", name, img.ContentType)
		}
	}
	if img.Open == nil {
		return validatedImage{}, fmt.Sprintf("%s has no content", name)
	}
	rc, err := img.Open()
	if err != nil {
		return validatedImage{}, fmt.Sprintf("%s could not be read", name)
	}
	defer rc.Close()
	detected, err := mimetype.DetectReader(rc)
	if err != nil || !strings.HasPrefix(detected.String(), "image/") {
		return validatedImage{}, fmt.Sprintf("%s content is not an image", name)
	}

	// the client's extension is kept only when it names the sniffed type
	ext := detected.Extension()
	if own := strings.ToLower(filepath.Ext(img.Filename)); own != "" {
		if t := mime.TypeByExtension(own); t != "" && detected.Is(t) {
			ext = own
		}
	}
	return validatedImage{payload: img, ext: ext}, ""
}

// stage copies each image into dir under a name derived from the product
// name, the current time and the image position.
func (o *Orchestrator) stage(dir, productName string, images []validatedImage) ([]string, error) {
	base := sanitize(productName)
	stamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	paths := make([]string, 0, len(images))
	for i, img := range images {
		path := filepath.Join(dir, base+"-"+stamp+"-"+strconv.Itoa(i)+img.ext)
		if err := o.copyPayload(path, img.payload); err != nil {
			for _, p := range paths {
				removeStaged(p)
			}
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (o *Orchestrator) copyPayload(path string, img ImagePayload) error {
	rc, err := img.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", img.Filename, err)
	}
	defer rc.Close()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("stage %s: %w", img.Filename, err)
	}
	written, err := io.Copy(f, io.LimitReader(rc, o.maxFileBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		removeStaged(path)
		return fmt.Errorf("stage %s: %w", img.Filename, err)
	}
	if written > o.maxFileBytes {
		removeStaged(path)
		return &ValidationError{Problems: []string{fmt.Sprintf("%s exceeds %d bytes", img.Filename, o.maxFileBytes)}}
	}
	return nil
}

// sanitize lowercases s and turns whitespace runs into single hyphens. Path
// separators and other punctuation are dropped.
func sanitize(s string) string {
	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsSpace(r):
			if !hyphen && b.Len() > 0 {
				b.WriteByte('-')
				hyphen = true
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_':
			b.WriteRune(r)
			hyphen = r == '-'
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "produto"
	}
	return out
}
