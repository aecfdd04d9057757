package loader

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
)

// Attachment is a supported file carried by a mail.
type Attachment struct {
	FileName string
	Content  []byte
}

type emlBook struct {
	attachments []Attachment
	body        *htmlBook
}

func openEML(content []byte) (workbook, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	book := &emlBook{attachments: attachmentsOf(env)}
	if len(book.attachments) == 0 && strings.TrimSpace(env.HTML) != "" {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(env.HTML))
		if err == nil {
			book.body = htmlTables(doc)
		}
	}
	return book, nil
}

// MailAttachments parses a raw mail and returns its loadable attachments.
func MailAttachments(raw []byte) ([]Attachment, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return attachmentsOf(env), nil
}

func attachmentsOf(env *enmime.Envelope) []Attachment {
	out := []Attachment{}
	for _, att := range env.Attachments {
		name := strings.TrimSpace(att.FileName)
		ext := strings.ToLower(filepath.Ext(name))
		if name == "" || ext == ".eml" || !Supported(name) {
			continue
		}
		out = append(out, Attachment{FileName: name, Content: att.Content})
	}
	return out
}

func (b *emlBook) Sheets() []string {
	if len(b.attachments) == 0 {
		if b.body != nil && len(b.body.names) > 0 {
			return []string{""}
		}
		return nil
	}
	out := make([]string, len(b.attachments))
	for i, a := range b.attachments {
		out[i] = a.FileName
	}
	return out
}

func (b *emlBook) Rows(sheet string) ([][]string, error) {
	if len(b.attachments) == 0 {
		if b.body == nil || len(b.body.names) == 0 {
			return nil, ErrEmptyTable
		}
		return b.body.Rows(b.body.names[0])
	}
	for _, a := range b.attachments {
		if a.FileName != sheet {
			continue
		}
		inner, err := open(a.FileName, a.Content)
		if err != nil {
			return nil, err
		}
		defer inner.Close()
		sheets := inner.Sheets()
		if len(sheets) == 0 {
			return nil, ErrEmptyTable
		}
		return inner.Rows(sheets[0])
	}
	return nil, ErrSheetNotFound
}

func (b *emlBook) Close() error { return nil }
