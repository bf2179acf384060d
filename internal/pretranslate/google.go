// Package pretranslate produces machine drafts for the pretranslation
// phase. Unlike the agent phases it does not go through an LLM pool; Google
// Cloud Translate serves whole scenes in single calls and later phases
// treat the result as a disposable draft.
package pretranslate

import (
	"context"
	"fmt"

	translate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"
)

// Google wraps the Cloud Translate v2 client.
type Google struct {
	credentialsFile string
}

// NewGoogle builds the provider. credentialsFile may be empty when ambient
// credentials are configured.
func NewGoogle(credentialsFile string) *Google {
	return &Google{credentialsFile: credentialsFile}
}

// TranslateBatch translates texts in order, returning one draft per input.
func (g *Google) TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	target, err := language.Parse(targetLang)
	if err != nil {
		return nil, fmt.Errorf("invalid target language: %w", err)
	}

	var opts []option.ClientOption
	if g.credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(g.credentialsFile))
	}
	client, err := translate.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	defer client.Close()

	var tOpts *translate.Options
	if sourceLang != "" && sourceLang != "auto" {
		source, perr := language.Parse(sourceLang)
		if perr == nil {
			tOpts = &translate.Options{Source: source}
		}
	}

	translations, err := client.Translate(ctx, texts, target, tOpts)
	if err != nil {
		return nil, fmt.Errorf("translation failed: %w", err)
	}
	if len(translations) != len(texts) {
		return nil, fmt.Errorf("expected %d translations, got %d", len(texts), len(translations))
	}

	drafts := make([]string, len(translations))
	for i, t := range translations {
		drafts[i] = t.Text
	}
	return drafts, nil
}
