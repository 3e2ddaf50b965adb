package upload

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

// Kind is a supported document format.
type Kind string

const (
	KindPDF Kind = "pdf"
	KindEML Kind = "eml"
	KindTXT Kind = "txt"
)

// ErrUnsupportedType is returned for files that are not PDF, EML or TXT.
var ErrUnsupportedType = errors.New("unsupported file type")

var kindByMIME = map[string]Kind{
	"application/pdf": KindPDF,
	"message/rfc822":  KindEML,
	"text/plain":      KindTXT,
}

// DetectKind decides the document format from the file extension, then the
// declared content type, then the content itself.
func DetectKind(fileName, contentType string, data []byte) (Kind, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return KindPDF, nil
	case ".eml":
		return KindEML, nil
	case ".txt":
		return KindTXT, nil
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if k, ok := kindByMIME[mt]; ok {
			return k, nil
		}
	}
	detected := mimetype.Detect(data)
	for m := detected; m != nil; m = m.Parent() {
		if k, ok := kindByMIME[m.String()]; ok {
			return k, nil
		}
		if mt, _, err := mime.ParseMediaType(m.String()); err == nil {
			if k, ok := kindByMIME[mt]; ok {
				return k, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, detected.String())
}

// ExtractText returns the readable text of a document.
func ExtractText(kind Kind, data []byte) (string, error) {
	switch kind {
	case KindTXT:
		if !utf8.Valid(data) {
			return strings.ToValidUTF8(string(data), " "), nil
		}
		return string(data), nil
	case KindEML:
		return emailText(data)
	case KindPDF:
		return pdfText(data)
	}
	return "", ErrUnsupportedType
}

var (
	wordDecoder = new(mime.WordDecoder)
	htmlTag     = regexp.MustCompile(`(?s)<[^>]*>`)
)

// emailText renders the sender, subject and text body of an RFC 822 message.
func emailText(data []byte) (string, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("read message: %w", err)
	}

	var b strings.Builder
	if from, err := mail.ParseAddress(msg.Header.Get("From")); err == nil && from.Name != "" {
		fmt.Fprintf(&b, "Vendor: %s\n", from.Name)
	}
	subject, err := wordDecoder.DecodeHeader(msg.Header.Get("Subject"))
	if err != nil {
		subject = msg.Header.Get("Subject")
	}
	if subject != "" {
		fmt.Fprintf(&b, "Subject: %s\n\n", subject)
	}

	body, err := partText(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body, 0)
	if err != nil {
		return "", err
	}
	b.WriteString(body)
	return b.String(), nil
}

const maxMIMEDepth = 5

// partText returns the text/plain content of a MIME entity, falling back to
// tag-stripped text/html.
func partText(contentType, encoding string, r io.Reader, depth int) (string, error) {
	if contentType == "" {
		contentType = "text/plain"
	}
	mt, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = "text/plain"
	}

	if strings.HasPrefix(mt, "multipart/") {
		if depth >= maxMIMEDepth || params["boundary"] == "" {
			return "", nil
		}
		mr := multipart.NewReader(r, params["boundary"])
		var plain, html string
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return "", fmt.Errorf("read mime part: %w", err)
			}
			ct := p.Header.Get("Content-Type")
			text, err := partText(ct, p.Header.Get("Content-Transfer-Encoding"), p, depth+1)
			if err != nil {
				return "", err
			}
			switch {
			case strings.HasPrefix(strings.ToLower(ct), "text/html"):
				if html == "" {
					html = text
				}
			case text != "":
				if plain != "" {
					plain += "\n"
				}
				plain += text
			}
		}
		if plain != "" {
			return plain, nil
		}
		return html, nil
	}

	if !strings.HasPrefix(mt, "text/") {
		return "", nil
	}

	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, newlineStripper{r})
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	text := strings.ToValidUTF8(string(raw), " ")
	if mt == "text/html" {
		text = htmlTag.ReplaceAllString(strings.ReplaceAll(text, "<br", "\n<br"), " ")
	}
	return text, nil
}

// newlineStripper drops CR and LF so wrapped base64 bodies decode.
type newlineStripper struct{ r io.Reader }

func (n newlineStripper) Read(p []byte) (int, error) {
	for {
		c, err := n.r.Read(p)
		j := 0
		for _, b := range p[:c] {
			if b != '\r' && b != '\n' {
				p[j] = b
				j++
			}
		}
		if j > 0 || err != nil {
			return j, err
		}
	}
}
