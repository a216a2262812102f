package llm

import (
	"embed"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

//go:embed prompts
var embedded embed.FS

const (
	placeholderText  = "{{ocr_text}}"
	placeholderToday = "{{today}}"
	placeholderInput = "{{input_json}}"
)

// Template files, relative to the prompts root.
const (
	ParserSystemFile  = "system/parser.txt"
	AuditorSystemFile = "system/auditor.txt"
	ReceiptTaskFile   = "tasks/receipt.txt"
	InvoiceTaskFile   = "tasks/invoice.txt"
	AuditTaskFile     = "tasks/audit.txt"
)

// Prompts holds every instruction template the extractor and auditor use.
type Prompts struct {
	ParserSystem  string
	AuditorSystem string
	ReceiptTask   string
	InvoiceTask   string
	AuditTask     string
}

// DefaultPrompts returns the templates compiled into the binary.
func DefaultPrompts() Prompts {
	p, _ := LoadPrompts("", nil)
	return p
}

// LoadPrompts reads each template from dir, falling back to the embedded
// copy when dir is empty or the file is missing or blank. The returned
// list names the files that came from dir.
func LoadPrompts(dir string, logger *slog.Logger) (Prompts, []string) {
	if logger == nil {
		logger = slog.Default()
	}
	var overridden []string
	load := func(name string) string {
		if dir != "" {
			b, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
			switch {
			case err == nil && strings.TrimSpace(string(b)) != "":
				overridden = append(overridden, name)
				return string(b)
			case err != nil && !errors.Is(err, fs.ErrNotExist):
				logger.Warn("llm.prompt.read_error", "file", name, "dir", dir, "error", err)
			}
		}
		b, err := embedded.ReadFile("prompts/" + name)
		if err != nil {
			// embedded templates are part of the build
			panic(err)
		}
		return string(b)
	}
	p := Prompts{
		ParserSystem:  load(ParserSystemFile),
		AuditorSystem: load(AuditorSystemFile),
		ReceiptTask:   load(ReceiptTaskFile),
		InvoiceTask:   load(InvoiceTaskFile),
		AuditTask:     load(AuditTaskFile),
	}
	if len(overridden) > 0 {
		logger.Info("llm.prompt.overrides", "dir", dir, "files", overridden)
	}
	return p, overridden
}

// ExtractionPrompt returns the parser system prompt and the category task
// with the OCR text substituted. Receipts get the receipt template; every
// other category uses the invoice template.
func (p Prompts) ExtractionPrompt(docType constants.DocType, ocrText string) (system, prompt string) {
	task := p.InvoiceTask
	if docType == constants.DocTypeReceipt {
		task = p.ReceiptTask
	}
	return p.ParserSystem, strings.ReplaceAll(task, placeholderText, ocrText)
}

// AuditPrompt returns the auditor system prompt dated "today" and the task
// carrying the extraction JSON.
func (p Prompts) AuditPrompt(input []byte, today time.Time) (system, prompt string) {
	system = strings.ReplaceAll(p.AuditorSystem, placeholderToday, today.Format(time.DateOnly))
	prompt = strings.ReplaceAll(p.AuditTask, placeholderInput, string(input))
	return system, prompt
}
