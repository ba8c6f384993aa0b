// Package i18n provides localized client-facing messages for error codes.
package i18n

import (
	"fmt"

	platformi18n "github.com/louisbranch/echochambers/internal/platform/i18n"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Code is a machine-readable error code (duplicated from errors package to avoid cycle).
type Code = string

// Error codes must match the codes defined in internal/platform/errors/codes.go.
const (
	CodeUnknown            = "UNKNOWN"
	CodeScoreInvalidData   = "SCORE_INVALID_DATA"
	CodeScoreNameRequired  = "SCORE_NAME_REQUIRED"
	CodeStorageWriteFailed = "STORAGE_WRITE_FAILED"
)

var locales = map[language.Tag]map[Code]string{
	language.AmericanEnglish: {
		CodeUnknown:            "Internal error",
		CodeScoreInvalidData:   "Invalid data",
		CodeScoreNameRequired:  "Name is required",
		CodeStorageWriteFailed: "Failed to save score",
	},
	language.BrazilianPortuguese: {
		CodeUnknown:            "Erro interno",
		CodeScoreInvalidData:   "Dados inválidos",
		CodeScoreNameRequired:  "O nome é obrigatório",
		CodeStorageWriteFailed: "Falha ao salvar a pontuação",
	},
}

var builder = mustBuildCatalog()

func mustBuildCatalog() *catalog.Builder {
	b, err := buildCatalog(platformi18n.SupportedTags())
	if err != nil {
		panic(err)
	}
	return b
}

// buildCatalog registers messages for every tag, falling back to the default
// locale. Each tag must carry every code the default locale defines.
func buildCatalog(tags []language.Tag) (*catalog.Builder, error) {
	defaults := locales[platformi18n.DefaultTag()]
	b := catalog.NewBuilder(catalog.Fallback(platformi18n.DefaultTag()))
	for _, tag := range tags {
		messages, ok := locales[tag]
		if !ok {
			return nil, fmt.Errorf("no error messages for locale %s", tag)
		}
		for code := range defaults {
			msg, ok := messages[code]
			if !ok {
				return nil, fmt.Errorf("locale %s is missing %s", tag, code)
			}
			if err := b.SetString(tag, code, msg); err != nil {
				return nil, fmt.Errorf("register %s for %s: %w", code, tag, err)
			}
		}
	}
	return b, nil
}

// Printer returns a message printer bound to the error catalog.
func Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(builder))
}

// Message returns the user-facing message for code in the given locale.
// Unknown codes render the generic internal error message.
func Message(tag language.Tag, code Code) string {
	if _, ok := locales[platformi18n.DefaultTag()][code]; !ok {
		code = CodeUnknown
	}
	return Printer(tag).Sprintf(code)
}
