package notion

import (
	"context"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aiki-no/aiki-cli/internal/model"
)

// Property names of the document and lead databases.
const (
	PropTitle      = "Navn"
	PropDocumentID = "Dokument-ID"
	PropKind       = "Type"
	PropIssued     = "Dato"

	PropScore     = "Score"
	PropEmployees = "Ansatte"
	PropContact   = "Kontaktperson"
	PropEmail     = "E-post"
	PropIndustry  = "Bransje"
	PropStatus    = "Status"
)

// Notion limits: 2000 characters per rich text object, 100 blocks per
// request.
const (
	maxTextLen      = 2000
	maxBlocksPerReq = 100
)

// LeadStatusNew is the status given to leads created by PublishLeads.
const LeadStatusNew = "Ny"

// PublishResult describes a published document page.
type PublishResult struct {
	PageID  string
	Created bool
	Blocks  int
}

// PublishDocument writes doc to the database as one page whose body holds
// the document text. A page already carrying the document number gets its
// properties refreshed instead of a duplicate.
func PublishDocument(ctx context.Context, c Client, dbID string, doc *model.RenderedDocument) (PublishResult, error) {
	if doc == nil || doc.ID == "" {
		return PublishResult{}, eris.New("notion: document has no id")
	}
	log := zap.L().With(zap.String("document_id", doc.ID))

	existing, err := FindDocument(ctx, c, dbID, doc.ID)
	if err != nil {
		return PublishResult{}, err
	}
	props := documentProperties(doc)

	if existing != nil {
		pageID := string(existing.ID)
		if _, err := c.UpdatePage(ctx, pageID, &notionapi.PageUpdateRequest{Properties: props}); err != nil {
			return PublishResult{}, eris.Wrap(err, "notion: refresh document page")
		}
		log.Info("notion: document page refreshed", zap.String("page_id", pageID))
		return PublishResult{PageID: pageID}, nil
	}

	blocks := bodyBlocks(doc.Body)
	first := blocks[:min(len(blocks), maxBlocksPerReq)]
	page, err := c.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(dbID),
		},
		Properties: props,
		Children:   first,
	})
	if err != nil {
		return PublishResult{}, eris.Wrap(err, "notion: create document page")
	}
	pageID := string(page.ID)

	for rest := blocks[len(first):]; len(rest) > 0; {
		n := min(len(rest), maxBlocksPerReq)
		if err := c.AppendBlocks(ctx, pageID, &notionapi.AppendBlockChildrenRequest{Children: rest[:n]}); err != nil {
			return PublishResult{PageID: pageID, Created: true}, eris.Wrap(err, "notion: append document body")
		}
		rest = rest[n:]
	}

	log.Info("notion: document published", zap.String("page_id", pageID), zap.Int("blocks", len(blocks)))
	return PublishResult{PageID: pageID, Created: true, Blocks: len(blocks)}, nil
}

// PublishLeads creates one page per lead, skipping repeated company names.
// It returns the number of pages created.
func PublishLeads(ctx context.Context, c Client, dbID string, leads []model.Lead) (int, error) {
	seen := make(map[string]struct{}, len(leads))
	created := 0
	for _, l := range leads {
		if ctx.Err() != nil {
			return created, eris.Wrap(ctx.Err(), "notion: publish leads cancelled")
		}
		key := strings.ToLower(strings.TrimSpace(l.Name))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		_, err := c.CreatePage(ctx, &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(dbID),
			},
			Properties: leadProperties(l),
		})
		if err != nil {
			return created, eris.Wrap(err, "notion: create lead page "+l.Name)
		}
		created++
	}
	return created, nil
}

func documentProperties(doc *model.RenderedDocument) notionapi.Properties {
	issued := notionapi.Date(doc.IssuedAt)
	return notionapi.Properties{
		PropTitle:      titleProp(doc.Title()),
		PropDocumentID: textProp(doc.ID),
		PropKind: notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: doc.Kind.String()},
		},
		PropIssued: notionapi.DateProperty{
			Type: notionapi.PropertyTypeDate,
			Date: &notionapi.DateObject{Start: &issued},
		},
	}
}

func leadProperties(l model.Lead) notionapi.Properties {
	props := notionapi.Properties{
		PropTitle:     titleProp(strings.TrimSpace(l.Name)),
		PropScore:     notionapi.NumberProperty{Type: notionapi.PropertyTypeNumber, Number: float64(l.Score)},
		PropEmployees: notionapi.NumberProperty{Type: notionapi.PropertyTypeNumber, Number: float64(l.Employees)},
		PropStatus:    notionapi.StatusProperty{Status: notionapi.Status{Name: LeadStatusNew}},
	}
	if l.Contact.Name != "" {
		props[PropContact] = textProp(l.Contact.Name)
	}
	if l.Contact.Email != "" {
		props[PropEmail] = notionapi.EmailProperty{Type: notionapi.PropertyTypeEmail, Email: l.Contact.Email}
	}
	if l.IndustryDetail != "" {
		props[PropIndustry] = textProp(l.IndustryDetail)
	}
	return props
}

func titleProp(s string) notionapi.TitleProperty {
	return notionapi.TitleProperty{
		Type:  notionapi.PropertyTypeTitle,
		Title: richText(s),
	}
}

func textProp(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		Type:     notionapi.PropertyTypeRichText,
		RichText: richText(s),
	}
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}}}
}

// bodyBlocks splits text into paragraph blocks at blank lines, cutting
// paragraphs longer than Notion's text limit. It never returns an empty
// slice.
func bodyBlocks(body string) []notionapi.Block {
	var blocks []notionapi.Block
	for _, para := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n") {
		para = strings.Trim(para, "\n")
		if strings.TrimSpace(para) == "" {
			continue
		}
		for _, chunk := range chunkRunes(para, maxTextLen) {
			blocks = append(blocks, &notionapi.ParagraphBlock{
				BasicBlock: notionapi.BasicBlock{
					Object: notionapi.ObjectTypeBlock,
					Type:   notionapi.BlockTypeParagraph,
				},
				Paragraph: notionapi.Paragraph{RichText: richText(chunk)},
			})
		}
	}
	if len(blocks) == 0 {
		blocks = append(blocks, &notionapi.ParagraphBlock{
			BasicBlock: notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeParagraph},
			Paragraph:  notionapi.Paragraph{RichText: richText("")},
		})
	}
	return blocks
}

func chunkRunes(s string, n int) []string {
	r := []rune(s)
	if len(r) <= n {
		return []string{s}
	}
	var out []string
	for len(r) > 0 {
		k := min(len(r), n)
		out = append(out, string(r[:k]))
		r = r[k:]
	}
	return out
}
