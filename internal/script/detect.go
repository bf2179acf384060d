package script

import (
	"strings"

	lingua "github.com/pemistahl/lingua-go"
)

// detectSampleUnits bounds how many units feed the language detector.
// Detection quality plateaus quickly and building the sample is linear.
const detectSampleUnits = 50

// DetectSourceLanguage guesses the ISO 639-1 code of the script's source
// language from a sample of unit text. It returns false when the sample is
// empty or the detector cannot reach a confident answer, in which case the
// caller should require an explicit source language.
func DetectSourceLanguage(units []Unit) (string, bool) {
	var sb strings.Builder
	for i, u := range units {
		if i >= detectSampleUnits {
			break
		}
		sb.WriteString(u.Text)
		sb.WriteByte('\n')
	}
	sample := strings.TrimSpace(sb.String())
	if sample == "" {
		return "", false
	}

	det := lingua.NewLanguageDetectorBuilder().FromAllLanguages().Build()
	lang, ok := det.DetectLanguageOf(sample)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}
