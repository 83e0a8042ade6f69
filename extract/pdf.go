package extract

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/poiesic/ragline/core"
)

// PDFSource reads the text layer of PDF documents one page at a time.
type PDFSource struct {
	validate bool
	logger   *slog.Logger
}

var _ Source = (*PDFSource)(nil)

// NewPDFSource creates a PDF page source.
func NewPDFSource(opts ...Option) *PDFSource {
	o := buildOptions(opts)
	return &PDFSource{
		validate: o.validate,
		logger:   o.logger.With("component", "pdf-source"),
	}
}

// Extract yields the pages of the PDF at path. The file stays open until
// iteration ends, whether by exhaustion, error, or the consumer stopping early.
func (s *PDFSource) Extract(ctx context.Context, jobID, path string) iter.Seq2[core.PageRecord, error] {
	return func(yield func(core.PageRecord, error) bool) {
		if s.validate {
			if err := validatePDF(path); err != nil {
				yield(core.PageRecord{}, fmt.Errorf("%w: %w: %s: %w", ErrOpenDocument, ErrInvalidPDF, path, err))
				return
			}
		}

		f, r, err := pdf.Open(path)
		if err != nil {
			yield(core.PageRecord{}, fmt.Errorf("%w: %s: %w", ErrOpenDocument, path, err))
			return
		}
		defer f.Close()

		total := r.NumPage()
		s.logger.Debug("opened pdf", "path", path, "pages", total)

		for i := 1; i <= total; i++ {
			if err := ctx.Err(); err != nil {
				yield(core.PageRecord{}, err)
				return
			}

			text, err := pageText(r, i)
			if err != nil {
				yield(core.PageRecord{}, fmt.Errorf("%w %d: %w", ErrDecodePage, i, err))
				return
			}

			page := core.PageRecord{
				JobID:      jobID,
				PageNumber: i,
				TotalPages: total,
				Content:    strings.TrimSpace(text),
				Source:     path,
			}
			if !yield(page, nil) {
				return
			}
		}
	}
}

// pageText decodes one page. The pdf package panics on some malformed
// content streams, so a panic is reported as a decode error.
func pageText(r *pdf.Reader, num int) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("malformed page content: %v", p)
		}
	}()

	page := r.Page(num)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(make(map[string]*pdf.Font))
}

func validatePDF(path string) error {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.ValidateFile(path, conf)
}
