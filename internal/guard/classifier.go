package guard

// Classify tests text against every category in ruleset order and
// returns the name of the first category with a matching pattern.
// Matching is case-insensitive substring/regex search, so a dangerous
// command buried in a pipeline or subshell still matches. Empty text
// never matches.
func (r *Ruleset) Classify(text string) (string, bool) {
	if text == "" {
		return "", false
	}

	for i := range r.Categories {
		cat := &r.Categories[i]
		for _, re := range cat.compiled {
			if re.MatchString(text) {
				return cat.Name, true
			}
		}
	}
	return "", false
}

// CategoryNames returns the category names in evaluation order.
func (r *Ruleset) CategoryNames() []string {
	names := make([]string, len(r.Categories))
	for i := range r.Categories {
		names[i] = r.Categories[i].Name
	}
	return names
}
