// Package datamark wraps externally authored text in tamper-evident
// delimiters before it reaches an LLM consumer, and annotates text that
// matches known prompt-injection phrasings.
//
// The delimiter token is randomized once per process start: stable within a
// session so every response's open and close delimiters match, and
// unpredictable to an attacker who has not observed this server's current
// session, so forging a closing delimiter to escape a marked region is
// guesswork. This is a best-effort mitigation, not a cryptographic
// guarantee.
//
// Detection favors recall over precision. A false positive only adds a
// warning sentence; a false negative defeats the defense. Marking is a
// safety layer, not a correctness path: values that are not strings pass
// through unmarked rather than failing the response.
package datamark
