// Package pipeline drives the confidence-gated extraction run.
//
// A run folds an ordered stage list over an explicit run state: cap
// truncation, primary extraction, suspicion evaluation, optional
// cross-verification, selective escalation, aggregation into a summary,
// and the optional title consistency check. Stages mutate only the run
// state; the session (download cache, extraction cache, usage ledger) is
// passed in explicitly so independent runs never share state.
//
// Per-image failures degrade to suspicion records and never abort the
// run. Summarization failure is surfaced as error-tagged summary text.
// Nothing is retried.
package pipeline
