package analyze

import (
	"context"
	"fmt"
	"strings"

	"varsle/models"

	log "github.com/sirupsen/logrus"
)

// Generator produces a digest from a fully assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// DefaultEntries is how many recent entries go into a digest when the
// configuration does not say otherwise.
const DefaultEntries = 5

// Analyzer turns recent entries into a readable digest. It never fails:
// every error is folded into the returned text so the result can be posted
// to a channel as-is.
type Analyzer struct {
	generator Generator
	template  string
	entries   int
}

func NewAnalyzer(generator Generator, template string, entries int) *Analyzer {
	if entries <= 0 {
		entries = DefaultEntries
	}
	return &Analyzer{
		generator: generator,
		template:  template,
		entries:   entries,
	}
}

// Digest summarizes the given entries, newest first. The returned string is
// always suitable for posting, even when generation failed.
func (a *Analyzer) Digest(ctx context.Context, entries []models.Entry) string {
	if len(entries) == 0 {
		return "No recent entries to analyze."
	}
	if len(entries) > a.entries {
		entries = entries[:a.entries]
	}

	prompt := a.prompt(entries)

	digest, err := a.generator.Generate(ctx, prompt)
	if err != nil {
		log.WithField("error", err).Warn("Digest generation failed")
		return fmt.Sprintf("Could not generate a digest: %s.", err)
	}

	return digest
}

func (a *Analyzer) prompt(entries []models.Entry) string {
	blocks := make([]string, 0, len(entries))
	for _, entry := range entries {
		blocks = append(blocks, fmt.Sprintf("[%s] %s\n%s", entry.PublishedAt, entry.Title, entry.Description))
	}

	return fmt.Sprintf("%s\n\nLatest %d entries:\n%s",
		a.template, len(entries), strings.Join(blocks, "\n\n"))
}
