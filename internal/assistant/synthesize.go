package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/finsight/finsight/internal/retrieval"
	"github.com/finsight/finsight/internal/router"
)

const (
	// minContextLength is the shortest context worth sending to the model.
	// Anything shorter is noise and short-circuits to the canned answer
	// without spending a model call.
	minContextLength = 50

	// maxContextLength caps the assembled context so a wide retrieval
	// cannot blow the model's input window.
	maxContextLength = 120000
)

// insufficientContextAnswer is returned when no usable source material was
// found for the question. It names the source that was consulted.
func insufficientContextAnswer(route router.Route) string {
	return fmt.Sprintf("I found only limited information in %s for that question. "+
		"Try rephrasing it, or ask about recent press releases, SEC filings, or property financials.",
		sourceLabel(route))
}

// sourceLabel is the human-readable name of a route's data source.
func sourceLabel(route router.Route) string {
	switch route {
	case router.RoutePressReleases:
		return "recent press releases"
	case router.RouteSECReports:
		return "SEC filings"
	case router.RouteStructuredData:
		return "the property financials database"
	default:
		return "the available sources"
	}
}

// Answers for retrieval paths that found nothing to ground a reply in.
const (
	noPressResultsAnswer = "No relevant press releases found."
	noSECResultsAnswer   = "No relevant SEC reports found."
)

// synthesisFailureAnswer is returned when the model call itself fails.
const synthesisFailureAnswer = "I apologize, but I ran into a problem while generating an answer. " +
	"Please try again in a moment."

const synthesisPromptTemplate = `You are a financial analyst assistant for an industrial REIT. Answer the user's question using ONLY the context below.

CONTEXT:
%s

QUESTION: %s

RULES:
- Base every statement on the context. Do not use outside knowledge.
- If the context does not contain the answer, say so plainly instead of guessing.
- Quote concrete figures (amounts, dates, percentages) exactly as they appear.
- Be concise: a few sentences, or a short list when enumerating.

ANSWER:`

// synthesize produces the final answer text from the question and its
// assembled context. It never fails: an unusable context or a model error
// degrades to a fixed explanatory answer.
func (a *Assistant) synthesize(ctx context.Context, route router.Route, question, docContext string) string {
	if len(strings.TrimSpace(docContext)) < minContextLength {
		a.logger.Info("context too short, skipping synthesis", "route", route)
		return insufficientContextAnswer(route)
	}

	text, err := a.gen.Generate(ctx, fmt.Sprintf(synthesisPromptTemplate, docContext, question))
	if err != nil {
		a.logger.Error("answer synthesis failed", "error", err)
		return synthesisFailureAnswer
	}
	return text
}

// assembleChunks joins retrieved chunks into one context block, best match
// first, separated by blank lines and truncated at the context cap.
func assembleChunks(chunks []retrieval.Chunk) string {
	var b strings.Builder
	for i, chunk := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if chunk.Title != "" {
			fmt.Fprintf(&b, "[%s] ", chunk.Title)
		}
		b.WriteString(chunk.Content)
		if b.Len() >= maxContextLength {
			break
		}
	}
	s := b.String()
	if len(s) > maxContextLength {
		s = s[:maxContextLength]
	}
	return s
}
