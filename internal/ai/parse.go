package ai

import "strings"

// tagsMarker separates the rewritten article from the suggested tags in a
// pretreatment answer.
const tagsMarker = "TAGS:"

// ExtractContentAndTags splits an answer of the form
//
//	rewritten article
//	TAGS:[tag1, tag2]
//
// into its content and lowercased tags. Without a marker the whole answer is
// returned as content and tags is nil.
func ExtractContentAndTags(answer string) (string, []string) {
	parts := strings.Split(answer, tagsMarker)
	if len(parts) < 2 {
		return answer, nil
	}

	content := strings.TrimSpace(parts[0])
	raw := strings.NewReplacer("[", "", "]", "", ".", "").Replace(strings.TrimSpace(parts[1]))
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return content, []string{}
	}

	fields := strings.Split(raw, ",")
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, strings.ToLower(strings.TrimSpace(f)))
	}
	return content, out
}

// fillTemplate replaces {name} placeholders in tmpl. Unknown placeholders are
// left as is.
func fillTemplate(tmpl string, values map[string]string) string {
	pairs := make([]string, 0, 2*len(values))
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
