package pipeline

import "regexp"

// Ref is a single typed reference extracted from a stage's free-text fields.
// Exactly one of Stage or Input is set.
type Ref struct {
	// Stage is the name of a referenced stage output (outputs.NAME).
	Stage string

	// Input is the name of a referenced top-level input (input.NAME).
	Input string
}

var (
	outputRefPattern = regexp.MustCompile(`\boutputs\.([A-Za-z_][A-Za-z0-9_-]*)`)
	inputRefPattern  = regexp.MustCompile(`\binput\.([A-Za-z_][A-Za-z0-9_-]*)`)
)

// ExtractRefs scans one free-text field and returns its stage-output and
// input-parameter references in order of appearance. Duplicates are preserved;
// callers dedupe as needed.
func ExtractRefs(text string) []Ref {
	if text == "" {
		return nil
	}

	var refs []Ref
	for _, m := range outputRefPattern.FindAllStringSubmatch(text, -1) {
		refs = append(refs, Ref{Stage: m[1]})
	}
	for _, m := range inputRefPattern.FindAllStringSubmatch(text, -1) {
		refs = append(refs, Ref{Input: m[1]})
	}
	return refs
}

// stageRefs returns the deduplicated stage-output references of a stage's
// scanned fields, in first-seen order.
func stageRefs(def StageDef) []string {
	return dedupe(collectRefs(def, func(r Ref) string { return r.Stage }))
}

// inputRefs returns the deduplicated input-parameter references of a stage's
// scanned fields, in first-seen order.
func inputRefs(def StageDef) []string {
	return dedupe(collectRefs(def, func(r Ref) string { return r.Input }))
}

func collectRefs(def StageDef, pick func(Ref) string) []string {
	var names []string
	for _, field := range []string{def.Instructions, def.Code} {
		for _, r := range ExtractRefs(field) {
			if name := pick(r); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
