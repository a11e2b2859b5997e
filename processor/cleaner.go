package processor

import (
	"log/slog"
	"regexp"
	"strings"

	"docrag/types"
)

var (
	urlPattern     = regexp.MustCompile(`http[s]?://(?:[a-zA-Z]|[0-9]|[$-_@.&+]|[!*\(\),]|(?:%[0-9a-fA-F][0-9a-fA-F]))+`)
	emailPattern   = regexp.MustCompile(`[\p{L}\p{N}_.-]+@[\p{L}\p{N}_.-]+\.[\p{L}\p{N}_]+`)
	phonePattern   = regexp.MustCompile(`\+?[\p{Nd}\p{Z}\s-]{10,}`)
	specialPattern = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?-]`)
	spacePattern   = regexp.MustCompile(`[\p{Z}\s]+`)
)

type Cleaner struct {
	cfg    types.CleaningConfig
	logger *slog.Logger
}

func NewCleaner(cfg types.CleaningConfig) *Cleaner {
	return &Cleaner{
		cfg:    cfg,
		logger: slog.Default(),
	}
}

// CleanDocuments returns cleaned copies marked with cleaned=true. Documents
// shorter than MinLength words after cleaning are dropped.
func (c *Cleaner) CleanDocuments(docs []types.Document) []types.Document {
	out := make([]types.Document, 0, len(docs))
	for _, doc := range docs {
		cleaned := c.CleanText(doc.Content)
		if !c.valid(cleaned) {
			c.logger.Warn("[CLEANER] document skipped: content too short or invalid", "doc_id", doc.DocID)
			continue
		}
		out = append(out, types.NewDocument(cleaned, doc.Metadata).WithMetadata(map[string]any{
			types.MetaCleaned: true,
		}))
	}
	return out
}

// CleanText applies the enabled stages in a fixed order: URLs, emails, phone
// numbers, special characters, whitespace, case.
func (c *Cleaner) CleanText(text string) string {
	if text == "" {
		return ""
	}
	cleaned := text
	if c.cfg.RemoveURLs {
		cleaned = urlPattern.ReplaceAllString(cleaned, " ")
	}
	if c.cfg.RemoveEmail {
		cleaned = emailPattern.ReplaceAllString(cleaned, " ")
	}
	if c.cfg.RemovePhone {
		cleaned = phonePattern.ReplaceAllString(cleaned, " ")
	}
	if c.cfg.RemoveSpecialChars {
		cleaned = specialPattern.ReplaceAllString(cleaned, " ")
	}
	if c.cfg.NormalizeWhitespace {
		cleaned = strings.TrimSpace(spacePattern.ReplaceAllString(cleaned, " "))
	}
	if c.cfg.Lowercase {
		cleaned = strings.ToLower(cleaned)
	}
	return cleaned
}

func (c *Cleaner) valid(content string) bool {
	if content == "" {
		return false
	}
	return len(strings.Fields(content)) >= c.cfg.MinLength
}
