package tag

// Dedupe drops case-insensitive repeats, keeping the first spelling seen and the input order.
func Dedupe(titles []string) []string {
	seen := make(map[string]struct{}, len(titles))
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		key := lowerKey(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
