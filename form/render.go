package form

import (
	"fmt"
	"html/template"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"irisnet/ml"
)

// ResultRenderer displays a prediction.
type ResultRenderer interface {
	Render(prediction ml.Prediction) error
}

// resultKey doubles as the Spanish text.
const resultKey = "Especie predicha: <strong>%s</strong> (Confianza: %s%%)"

var supported = []language.Tag{language.Spanish, language.English}

var matcher = language.NewMatcher(supported)

func init() {
	message.SetString(language.Spanish, resultKey, resultKey)
	message.SetString(language.English, resultKey, "Predicted species: <strong>%s</strong> (Confidence: %s%%)")
}

// MatchLanguage picks the best supported language for an Accept-Language
// header, falling back to fallback.
func MatchLanguage(acceptLanguage string, fallback language.Tag) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return fallback
	}
	return supported[index]
}

// ParseLanguage returns the supported language closest to name, Spanish if
// none is.
func ParseLanguage(name string) language.Tag {
	tag, err := language.Parse(name)
	if err != nil {
		return language.Spanish
	}
	_, index, confidence := matcher.Match(tag)
	if confidence == language.No {
		return language.Spanish
	}
	return supported[index]
}

// Format renders prediction as the HTML fragment shown under the form.
func Format(prediction ml.Prediction, lang language.Tag) template.HTML {
	p := message.NewPrinter(lang)
	class := template.HTMLEscapeString(prediction.Class.String())
	return template.HTML(p.Sprintf(resultKey, class, ml.FormatConfidence(prediction.Confidence)))
}

// HTMLRenderer writes the formatted fragment to W.
type HTMLRenderer struct {
	W    io.Writer
	Lang language.Tag
}

func (r HTMLRenderer) Render(prediction ml.Prediction) error {
	if _, err := io.WriteString(r.W, string(Format(prediction, r.Lang))); err != nil {
		return fmt.Errorf("render prediction: %w", err)
	}
	return nil
}

// ResultHolder keeps the last rendered fragment, for callers that embed it in
// a larger page.
type ResultHolder struct {
	Lang   language.Tag
	Result template.HTML
}

func (r *ResultHolder) Render(prediction ml.Prediction) error {
	r.Result = Format(prediction, r.Lang)
	return nil
}
