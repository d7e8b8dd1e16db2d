package services

const (
	defaultTitle = "Untitled"
	defaultPrice = "N/A"
)

// firstPresent returns the first non-nil value, or nil when all are absent.
func firstPresent(vals ...*string) *string {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

// firstPresentOr is firstPresent with a final default.
func firstPresentOr(def string, vals ...*string) string {
	if v := firstPresent(vals...); v != nil {
		return *v
	}
	return def
}
