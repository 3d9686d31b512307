// Package matcher classifies voice transcripts into intents.
//
// A Matcher holds a compiled registry (see package compiler) and runs a
// cascade of strategies over each preprocessed transcript:
//
//	exact     structural template match; confidence from covered span
//	fuzzy     per-token similarity to template words   (capped at 0.95)
//	partial   keyword hits from example phrases        (capped at 0.8)
//	semantic  overlap with intent and example concepts (capped at 0.85)
//
// Fuzzy runs while the best confidence is below Thresholds.High, partial
// and semantic while it is below Thresholds.Medium. A later strategy only
// wins with a strictly higher confidence, and never over an exact match:
// a template that matched part of the transcript outranks any fuzzy,
// partial or semantic score on the same input.
//
// Every strategy scales its score by the pattern's authored Confidence.
// Only partial matches must also reach Thresholds.Low.
//
// Parameters of an exact match come from the template's slots; the other
// strategies fill declared parameters from extracted entities.
package matcher
