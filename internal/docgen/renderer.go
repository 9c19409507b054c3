package docgen

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"supplydocs/internal/model"
)

// ErrMalformedTemplate is returned when the template buffer cannot be parsed
// as a DOCX container.
var ErrMalformedTemplate = errors.New("malformed document template")

// Placeholder tokens recognized inside template text runs.
const (
	PlaceholderRequestID       = "[REQUEST_ID]"
	PlaceholderRequestOwner    = "[REQUEST_OWNER]"
	PlaceholderApprovalManager = "[APPROVAL_MANAGER]"
	PlaceholderItemsList       = "[ITEMS_LIST]"
	PlaceholderRequestCourier  = "[REQUEST_COURIER]"
	PlaceholderClaimsText      = "[CLAIMS_TEXT]"
)

const documentPart = "word/document.xml"

// textRunPattern matches a single <w:t> text span. Substitution is scoped to
// each span independently: a placeholder split across two runs is left alone.
// That mirrors how the DOCX format stores text and is intentional.
var textRunPattern = regexp.MustCompile(`(?s)(<w:t(?:\s[^>]*)?>)(.*?)(</w:t>)`)

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Renderer produces document bytes from a record and a DOCX template.
// Rendering is pure: the same record and template bytes always yield
// byte-identical output.
type Renderer interface {
	RenderSupplyDocument(doc model.SupplyDocument, template []byte) ([]byte, error)
	RenderClaimsDocument(doc model.ClaimsDocument, template []byte) ([]byte, error)
}

// DocxRenderer renders documents by literal placeholder substitution over
// the template's text runs.
type DocxRenderer struct{}

func NewDocxRenderer() *DocxRenderer {
	return &DocxRenderer{}
}

var _ Renderer = (*DocxRenderer)(nil)

type substitution struct {
	token string
	value string
}

// RenderSupplyDocument fills a supply authorization template.
func (r *DocxRenderer) RenderSupplyDocument(doc model.SupplyDocument, template []byte) ([]byte, error) {
	return render(template, []substitution{
		{PlaceholderRequestID, strconv.Itoa(doc.RequestID)},
		{PlaceholderRequestOwner, doc.OwnerName},
		{PlaceholderApprovalManager, doc.ApproverName},
		{PlaceholderItemsList, strings.Join(doc.Items, "\n")},
	})
}

// RenderClaimsDocument fills a claims template; it recognizes the supply
// tokens plus the courier and claims text.
func (r *DocxRenderer) RenderClaimsDocument(doc model.ClaimsDocument, template []byte) ([]byte, error) {
	return render(template, []substitution{
		{PlaceholderRequestID, strconv.Itoa(doc.RequestID)},
		{PlaceholderRequestOwner, doc.OwnerName},
		{PlaceholderApprovalManager, doc.ApproverName},
		{PlaceholderRequestCourier, doc.CourierName},
		{PlaceholderClaimsText, doc.ClaimsText},
		{PlaceholderItemsList, strings.Join(doc.Items, "\n")},
	})
}

// render rewrites the zip container, substituting placeholders inside the
// main document part and copying every other entry through unchanged.
func render(template []byte, subs []substitution) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(template), int64(len(template)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedTemplate, err)
	}

	found := false
	for _, f := range zr.File {
		if f.Name == documentPart {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedTemplate, documentPart)
	}

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %w", ErrMalformedTemplate, f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrMalformedTemplate, f.Name, err)
		}

		if f.Name == documentPart {
			content = substituteRuns(content, subs)
		}

		// Entry order and headers are copied from the template so rendering
		// stays deterministic for identical inputs.
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   f.Method,
			Modified: f.Modified,
		})
		if err != nil {
			return nil, fmt.Errorf("write %s: %w", f.Name, err)
		}
		if _, err := w.Write(content); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize document: %w", err)
	}

	return out.Bytes(), nil
}

// substituteRuns replaces placeholder tokens inside each text span.
// Unmatched placeholders are left verbatim.
//
// Tokens contain no XML-special characters, so they match the escaped run
// text as-is and only the substituted value needs escaping. Everything
// around the token, entities and character references included, is kept
// byte-for-byte.
func substituteRuns(document []byte, subs []substitution) []byte {
	return textRunPattern.ReplaceAllFunc(document, func(run []byte) []byte {
		parts := textRunPattern.FindSubmatch(run)
		text := string(parts[2])

		replaced := false
		for _, s := range subs {
			if strings.Contains(text, s.token) {
				text = strings.ReplaceAll(text, s.token, xmlEscaper.Replace(s.value))
				replaced = true
			}
		}
		if !replaced {
			return run
		}

		var b bytes.Buffer
		b.Write(parts[1])
		b.WriteString(text)
		b.Write(parts[3])
		return b.Bytes()
	})
}
